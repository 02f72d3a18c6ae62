// Package chat implements the global chat channel sketched in §4.4
// (channel 0, Reliable): a Redis-backed ring of recent messages new
// joiners can be shown, and cross-process fanout over the event bus so
// multiple reactor processes sharing one Redis instance relay the same
// conversation. Delivery to a single reactor's own connected sessions
// is the reactor's job (network.Reactor.Broadcast); this package only
// owns persistence and cross-process distribution.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/mmo-game/internal/eventbus"
	"github.com/annel0/mmo-game/internal/logging"
	"github.com/annel0/mmo-game/internal/protocol"
)

const (
	recentKey      = "chat:recent"
	defaultHistory = 50
)

// eventType is the eventbus.Envelope.EventType this package publishes
// under, named in the event bus's own doc comment as the canonical
// chat example.
const eventType = "ChatEvent"

// Service is the global chat channel: history storage plus optional
// cross-process relay.
type Service struct {
	redis   *redis.Client
	history int
	bus     eventbus.EventBus
	log     *logging.Logger
}

// NewService connects to Redis at addr and keeps up to historySize
// recent messages (0 uses the default of 50).
func NewService(addr string, historySize int) (*Service, error) {
	if historySize <= 0 {
		historySize = defaultHistory
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to chat redis at %s: %w", addr, err)
	}

	return &Service{
		redis:   client,
		history: historySize,
		log:     logging.GetComponentLogger("chat"),
	}, nil
}

// UseEventBus attaches an event bus for cross-process fanout. Without
// one, Publish only persists history; a single reactor process already
// sees every message through its own in-process broadcast.
func (s *Service) UseEventBus(bus eventbus.EventBus) {
	s.bus = bus
}

// Close releases the Redis connection.
func (s *Service) Close() error {
	return s.redis.Close()
}

// entry is the JSON shape stored in the recent-history ring; kept
// separate from protocol.ChatMessage's wire encoding since history
// storage has no reason to share the bit-packed wire format.
type entry struct {
	SenderName string    `json:"sender"`
	Body       string    `json:"body"`
	At         time.Time `json:"at"`
}

// Publish records a chat message in the recent-history ring and, if an
// event bus is attached, announces it for other reactor processes to
// relay to their own sessions. It does not deliver the message to any
// locally connected session — the caller (internal/network) does that
// with the returned ChatMessage.
func (s *Service) Publish(ctx context.Context, senderName, body string) (protocol.ChatMessage, error) {
	msg := protocol.ChatMessage{SenderName: senderName, Body: body}

	e := entry{SenderName: senderName, Body: body, At: time.Now()}
	data, err := json.Marshal(e)
	if err != nil {
		return msg, fmt.Errorf("marshal chat entry: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.LPush(ctx, recentKey, data)
	pipe.LTrim(ctx, recentKey, 0, int64(s.history-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return msg, fmt.Errorf("storing chat entry: %w", err)
	}

	if s.bus != nil {
		env := &eventbus.Envelope{
			Source:    "chat",
			EventType: eventType,
			Payload:   data,
		}
		if err := s.bus.Publish(ctx, env); err != nil {
			s.log.Warn("publishing chat event: %v", err)
		}
	}

	return msg, nil
}

// Recent returns up to the configured history size of recent messages,
// oldest first, for populating a freshly joined client's scrollback.
func (s *Service) Recent(ctx context.Context) ([]protocol.ChatMessage, error) {
	raw, err := s.redis.LRange(ctx, recentKey, 0, int64(s.history-1)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("loading chat history: %w", err)
	}

	out := make([]protocol.ChatMessage, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- { // stored newest-first, return oldest-first
		var e entry
		if err := json.Unmarshal([]byte(raw[i]), &e); err != nil {
			s.log.Warn("skipping malformed chat history entry: %v", err)
			continue
		}
		out = append(out, protocol.ChatMessage{SenderName: e.SenderName, Body: e.Body})
	}
	return out, nil
}
