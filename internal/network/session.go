package network

import (
	"context"
	"net"
	"time"

	"github.com/xtaci/kcp-go/v5"

	"github.com/annel0/mmo-game/internal/logging"
	"github.com/annel0/mmo-game/internal/protocol"
	"github.com/annel0/mmo-game/internal/server"
)

const (
	sendQueueSize  = 256
	readPollPeriod = 100 * time.Millisecond
	maxFrameBody   = 1 << 20
)

// NetworkSession wraps one KCP connection, decoding and dispatching
// frames until the peer disconnects or ctx is cancelled. Exactly one
// NetworkSession exists per connected socket, mirroring the teacher's
// KCPChannel (kcp_channel.go): a read loop and a write loop each driven
// off their own goroutine, talking to the rest of the session through
// plain buffered channels rather than shared mutable state.
type NetworkSession struct {
	conn    *kcp.UDPSession
	reactor *Reactor
	log     *logging.Logger

	protocolVersion protocol.Version
	nickname        string
	authenticated   bool
	playerIndex     uint16

	gameSession *server.Session

	sendCh chan []byte
}

func newNetworkSession(conn *kcp.UDPSession, r *Reactor) *NetworkSession {
	return &NetworkSession{
		conn:    conn,
		reactor: r,
		log:     logging.GetComponentLogger("network"),
		sendCh:  make(chan []byte, sendQueueSize),
	}
}

// Send implements server.SendFunc: it frames one packet and queues it
// for the write loop. A full queue means the peer's connection can't
// keep up; the sample is dropped rather than blocking the caller, since
// the caller is always the single-threaded tick loop (§5: game logic
// never blocks on the network).
func (s *NetworkSession) Send(opcode protocol.Opcode, body []byte) {
	frame := EncodeFrame(opcode, body)
	select {
	case s.sendCh <- frame:
	default:
		s.log.Warn("player %q: send queue full, dropping %s", s.nickname, opcode)
	}
}

func (s *NetworkSession) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.writeLoop(ctx)
		close(done)
	}()

	s.readLoop(ctx)
	cancel()
	<-done

	if s.authenticated {
		s.reactor.unregister(s.playerIndex)
		s.reactor.srv.Leave(s.playerIndex)
	}
	s.conn.Close()
}

func (s *NetworkSession) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-s.sendCh:
			if _, err := s.conn.Write(frame); err != nil {
				s.log.Warn("write failed: %v", err)
				return
			}
		}
	}
}

func (s *NetworkSession) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(readPollPeriod))
		opcode, body, err := ReadFrame(s.conn)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return
		}

		if err := s.dispatch(opcode, body); err != nil {
			s.log.Warn("player %q: %v", s.nickname, err)
			return
		}
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
