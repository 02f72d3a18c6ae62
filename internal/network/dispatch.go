package network

import (
	"fmt"

	"github.com/annel0/mmo-game/internal/protocol"
)

// dispatch decodes one frame's body by opcode and routes it to the
// owning server. Before authentication, only OpAuthRequest is
// accepted; everything else is a protocol error that drops the
// connection (§7: the reactor never trusts an unauthenticated peer with
// world state).
func (s *NetworkSession) dispatch(opcode protocol.Opcode, body []byte) error {
	if !s.authenticated {
		if opcode != protocol.OpAuthRequest {
			return fmt.Errorf("opcode %s before authentication", opcode)
		}
		return s.handleAuthRequest(body)
	}

	switch opcode {
	case protocol.OpUpdatePlayerInputs:
		in, err := protocol.DecodePlayerInputs(body)
		if err != nil {
			return fmt.Errorf("decode PlayerInputs: %w", err)
		}
		s.reactor.srv.HandlePlayerInputs(s.playerIndex, in)

	case protocol.OpMineBlock:
		m, err := protocol.DecodeMineBlock(body)
		if err != nil {
			return fmt.Errorf("decode MineBlock: %w", err)
		}
		s.reactor.srv.HandleMineBlock(m)

	case protocol.OpPlaceBlock:
		p, err := protocol.DecodePlaceBlock(body)
		if err != nil {
			return fmt.Errorf("decode PlaceBlock: %w", err)
		}
		s.reactor.srv.HandlePlaceBlock(p)

	case protocol.OpSendChatMessage:
		req, err := protocol.DecodeSendChatMessage(body)
		if err != nil {
			return fmt.Errorf("decode SendChatMessage: %w", err)
		}
		s.relayChatMessage(req)

	default:
		s.log.Warn("player %q: unrecognized opcode %s", s.nickname, opcode)
	}
	return nil
}
