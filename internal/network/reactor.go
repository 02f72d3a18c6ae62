// Package network is the reactor that turns the opcode/wire protocol
// in internal/protocol into live KCP connections feeding
// internal/server. One Reactor owns one KCP listener and the single
// dedicated worker goroutine spec.md §5 assigns to "one reactor per
// IP-family-in-use"; everything downstream of accept is per-session
// goroutines that only ever call into internal/server through the
// narrow SendFunc/HandleXxx surface, never touching world state
// directly.
package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/xtaci/kcp-go/v5"

	"github.com/annel0/mmo-game/internal/chat"
	"github.com/annel0/mmo-game/internal/logging"
	"github.com/annel0/mmo-game/internal/protocol"
	"github.com/annel0/mmo-game/internal/server"
)

// MinSupportedVersion is the oldest client build this reactor accepts
// (§7 Authentication error, §8 scenario S6: a client below this is
// rejected with AuthErrUpgradeRequired).
var MinSupportedVersion = protocol.BuildVersion(0, 3, 0)

// Reactor accepts KCP connections and turns each into a NetworkSession
// bound to srv.
type Reactor struct {
	listener *kcp.Listener
	srv      *server.Server
	log      *logging.Logger

	// requireToken rejects AuthRequests with no connection token
	// instead of treating an empty token as anonymous play. Off by
	// default, matching packets.go's documented "empty when anonymous
	// play is allowed."
	requireToken bool

	// chat is optional: a reactor with no chat service attached still
	// accepts OpSendChatMessage but only relays to its own sessions,
	// never persists history or fans out across processes.
	chat *chat.Service

	mu       sync.Mutex
	sessions map[uint16]*NetworkSession
}

// UseChat attaches a chat service for history and cross-process
// relay.
func (r *Reactor) UseChat(svc *chat.Service) {
	r.chat = svc
}

// NewReactor creates a reactor bound to srv. Listen must be called
// before Run.
func NewReactor(srv *server.Server, requireToken bool) *Reactor {
	return &Reactor{
		srv:          srv,
		log:          logging.GetComponentLogger("reactor"),
		requireToken: requireToken,
		sessions:     make(map[uint16]*NetworkSession),
	}
}

// Listen opens the KCP listener on addr.
func (r *Reactor) Listen(addr string) error {
	l, err := kcp.ListenWithOptions(addr, nil, 10, 3)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	r.listener = l
	r.log.Info("listening on %s", addr)
	return nil
}

// Run accepts connections until ctx is cancelled, spawning one session
// goroutine pair (read loop + write loop) per connection. This is the
// reactor's dedicated worker thread (§5).
func (r *Reactor) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		r.listener.Close()
	}()

	for {
		conn, err := r.listener.AcceptKCP()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				r.log.Error("accept failed: %v", err)
				continue
			}
		}
		ConfigureKCP(conn)
		sess := newNetworkSession(conn, r)
		go sess.run(ctx)
	}
}

// ConfigureKCP applies the teacher's game-traffic KCP tuning: stream
// mode, no write delay, aggressive no-delay/resend/nc, a wide window,
// and a standard internet MTU. Shared by the reactor's accept path and
// the reference client's dial path so both sides of a connection agree
// on the same tuning.
func ConfigureKCP(conn *kcp.UDPSession) {
	conn.SetStreamMode(true)
	conn.SetWriteDelay(false)
	conn.SetNoDelay(1, 20, 2, 1)
	conn.SetWindowSize(512, 512)
	conn.SetMtu(1400)
}

func (r *Reactor) register(playerIndex uint16, sess *NetworkSession) {
	r.mu.Lock()
	r.sessions[playerIndex] = sess
	r.mu.Unlock()
}

func (r *Reactor) unregister(playerIndex uint16) {
	r.mu.Lock()
	delete(r.sessions, playerIndex)
	r.mu.Unlock()
}

// SessionCount reports how many sessions are currently authenticated
// and registered, for metrics/observability.
func (r *Reactor) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Broadcast sends one already-encoded packet to every currently
// registered session, used for global chat relay (§4.4 channel 0).
func (r *Reactor) Broadcast(opcode protocol.Opcode, body []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sess := range r.sessions {
		sess.Send(opcode, body)
	}
}
