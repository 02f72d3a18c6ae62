// cmd/client is a reference network client: it speaks the wire
// protocol and runs the prediction/reconciliation loop from
// internal/client, but does no rendering, windowing, or input capture
// of its own (§1 Non-goals: those are external collaborators). The
// --width/--height/--no-vsync flags are accepted and logged, matching
// the CLI surface the real windowed client would honor, but have no
// effect here.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xtaci/kcp-go/v5"

	"github.com/annel0/mmo-game/internal/client"
	"github.com/annel0/mmo-game/internal/logging"
	"github.com/annel0/mmo-game/internal/network"
	"github.com/annel0/mmo-game/internal/protocol"
)

// rotationSpeedDegPerSec bounds how much predicted rotation one tick
// may apply locally (§4.6); the server applies each received rotation
// delta without such a bound.
const rotationSpeedDegPerSec = 180

func main() {
	serverAddress := flag.String("server-address", "127.0.0.1:7778", "server address to connect to")
	nickname := flag.String("nickname", "player", "nickname to authenticate with")
	connectionToken := flag.String("token", "", "bearer connection token, empty for anonymous play")
	autoConnect := flag.Bool("auto-connect", false, "connect immediately instead of waiting at a menu")
	width := flag.Int("width", 1280, "window width (rendering is out of scope; accepted for CLI compatibility)")
	height := flag.Int("height", 720, "window height (rendering is out of scope; accepted for CLI compatibility)")
	noVsync := flag.Bool("no-vsync", false, "disable vsync (rendering is out of scope; accepted for CLI compatibility)")
	flag.Parse()

	log, err := logging.NewLogger("client")
	if err != nil {
		panic(err)
	}
	defer log.Close()
	log.Info("reference client starting, window %dx%d vsync=%v", *width, *height, !*noVsync)

	if !*autoConnect {
		log.Info("--auto-connect not set; a real client would wait at a menu here, connecting anyway since this binary has no menu")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if err := run(ctx, log, *serverAddress, *nickname, *connectionToken); err != nil {
		log.Error("client exited with error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logging.Logger, addr, nickname, token string) error {
	conn, err := kcp.DialWithOptions(addr, nil, 10, 3)
	if err != nil {
		return err
	}
	defer conn.Close()
	network.ConfigureKCP(conn)

	authReq := protocol.AuthRequest{
		GameVersion:     protocol.CurrentVersion,
		ConnectionToken: token,
		Nickname:        nickname,
	}
	if _, err := conn.Write(network.EncodeFrame(protocol.OpAuthRequest, authReq.Encode())); err != nil {
		return err
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	opcode, body, err := network.ReadFrame(conn)
	if err != nil {
		return err
	}
	if opcode != protocol.OpAuthResponse {
		log.Error("expected AuthResponse, got %s", opcode)
		return err
	}
	resp, err := protocol.DecodeAuthResponse(body)
	if err != nil {
		return err
	}
	if !resp.Ok {
		log.Error("authentication rejected: %s", authErrString(resp.Err))
		return nil
	}
	log.Info("authenticated, server resolved version %s", resp.ResolvedVersion)

	entity := client.NewControlledEntity(rotationSpeedDegPerSec)
	const tickDuration = time.Second / 30

	errCh := make(chan error, 1)
	go func() {
		errCh <- readLoop(ctx, conn, entity, log)
	}()

	ticker := time.NewTicker(tickDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case <-ticker.C:
			in := entity.SampleInput(client.MovementFlags{}, tickDuration)
			if _, err := conn.Write(network.EncodeFrame(protocol.OpUpdatePlayerInputs, in.Encode())); err != nil {
				return err
			}
		}
	}
}

func readLoop(ctx context.Context, conn *kcp.UDPSession, entity *client.ControlledEntity, log *logging.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		opcode, body, err := network.ReadFrame(conn)
		if err != nil {
			if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				continue
			}
			return err
		}
		if opcode != protocol.OpEntitiesStateUpdate {
			continue
		}
		update, err := protocol.DecodeEntitiesStateUpdate(body)
		if err != nil {
			log.Warn("decode EntitiesStateUpdate: %v", err)
			continue
		}
		entity.ApplyUpdate(update)
	}
}

func authErrString(e protocol.AuthError) string {
	switch e {
	case protocol.AuthErrServerIsOutdated:
		return "server is outdated"
	case protocol.AuthErrUpgradeRequired:
		return "client upgrade required"
	case protocol.AuthErrProtocolError:
		return "protocol error"
	case protocol.AuthErrInvalidToken:
		return "invalid token"
	default:
		return "unknown"
	}
}
