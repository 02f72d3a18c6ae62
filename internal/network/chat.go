package network

import (
	"context"
	"time"

	"github.com/annel0/mmo-game/internal/protocol"
)

// relayChatMessage handles one authenticated peer's SendChatMessage: it
// persists the message (when a chat service is attached) and rebroadcasts
// it to every session on this reactor as a ChatMessage (§4.4 channel 0).
// A reactor with no chat service still relays locally, it just never
// builds history or fans out to sibling processes.
func (s *NetworkSession) relayChatMessage(req protocol.SendChatMessage) {
	var msg protocol.ChatMessage
	if s.reactor.chat != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		stored, err := s.reactor.chat.Publish(ctx, s.nickname, req.Body)
		if err != nil {
			s.log.Warn("player %q: storing chat message: %v", s.nickname, err)
		}
		msg = stored
	} else {
		msg = protocol.ChatMessage{SenderName: s.nickname, Body: req.Body}
	}
	s.reactor.Broadcast(protocol.OpChatMessage, msg.Encode())
}
