package network

import (
	"fmt"

	"github.com/annel0/mmo-game/internal/auth"
	"github.com/annel0/mmo-game/internal/protocol"
)

// handleAuthRequest validates an AuthRequest and, on success, joins the
// peer to the game server. On rejection the AuthResponse is written
// synchronously (bypassing the buffered send queue) so the error
// reaches the peer before the caller tears the connection down — §7's
// "disconnect Later" (the response must land before the socket closes,
// not instead of it).
func (s *NetworkSession) handleAuthRequest(body []byte) error {
	req, err := protocol.DecodeAuthRequest(body)
	if err != nil {
		return fmt.Errorf("decode AuthRequest: %w", err)
	}

	if req.GameVersion < MinSupportedVersion {
		s.rejectAuth(protocol.AuthErrUpgradeRequired)
		return fmt.Errorf("client version %s below minimum %s", req.GameVersion, MinSupportedVersion)
	}
	if req.GameVersion > protocol.CurrentVersion {
		s.rejectAuth(protocol.AuthErrServerIsOutdated)
		return fmt.Errorf("client version %s ahead of server %s", req.GameVersion, protocol.CurrentVersion)
	}

	if s.reactor.requireToken || req.ConnectionToken != "" {
		if _, valid, _ := auth.ValidateJWT(req.ConnectionToken); !valid {
			s.rejectAuth(protocol.AuthErrInvalidToken)
			return fmt.Errorf("invalid connection token for %q", req.Nickname)
		}
	}

	s.protocolVersion = req.GameVersion
	s.nickname = req.Nickname
	s.gameSession = s.reactor.srv.Join(req.Nickname, req.GameVersion, s.Send)
	s.playerIndex = s.gameSession.PlayerIndex
	s.authenticated = true
	s.reactor.register(s.playerIndex, s)

	s.Send(protocol.OpAuthResponse, protocol.AuthResponse{
		Ok:              true,
		ResolvedVersion: protocol.CurrentVersion,
	}.Encode())

	s.log.Info("player %q authenticated as index %d", s.nickname, s.playerIndex)
	return nil
}

func (s *NetworkSession) rejectAuth(reason protocol.AuthError) {
	frame := EncodeFrame(protocol.OpAuthResponse, protocol.AuthResponse{
		Ok:  false,
		Err: reason,
	}.Encode())
	s.conn.Write(frame)
}
