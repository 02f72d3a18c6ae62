package chunk

import "sync"

// SubscriptionToken is returned by Signal.Subscribe and revokes the
// subscription when passed to Signal.Unsubscribe. It is opaque by design
// (§9 design notes: "explicit subscribe/unsubscribe returning an opaque
// token").
type SubscriptionToken uint64

// Signal is a minimal synchronous observer channel, the Go stand-in for
// the source engine's intrusive signal/slot pattern. Handlers run
// synchronously on the emitting goroutine and must not call back into
// the chunk that is dispatching (re-entrancy is forbidden, see §5).
type Signal[T any] struct {
	mu        sync.Mutex
	nextToken SubscriptionToken
	handlers  map[SubscriptionToken]func(T)
}

func NewSignal[T any]() *Signal[T] {
	return &Signal[T]{handlers: make(map[SubscriptionToken]func(T))}
}

// Subscribe registers a handler and returns a token to unsubscribe it.
func (s *Signal[T]) Subscribe(handler func(T)) SubscriptionToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := s.nextToken
	s.nextToken++
	s.handlers[token] = handler
	return token
}

// Unsubscribe removes a previously registered handler. It is a no-op if
// the token is unknown (already unsubscribed).
func (s *Signal[T]) Unsubscribe(token SubscriptionToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, token)
}

// Emit synchronously invokes every currently registered handler with the
// given payload, in an unspecified order.
func (s *Signal[T]) Emit(payload T) {
	s.mu.Lock()
	handlers := make([]func(T), 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}
