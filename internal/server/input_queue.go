package server

import "github.com/annel0/mmo-game/internal/protocol"

// InputQueue is one player's FIFO of unconsumed PlayerInputs samples.
// The tick loop pops exactly one per tick regardless of depth (§4.5).
type InputQueue struct {
	items []protocol.PlayerInputs
}

// Enqueue appends a newly received sample to the tail.
func (q *InputQueue) Enqueue(in protocol.PlayerInputs) {
	q.items = append(q.items, in)
}

// Pop removes and returns the oldest queued sample. ok is false when the
// queue is empty.
func (q *InputQueue) Pop() (protocol.PlayerInputs, bool) {
	if len(q.items) == 0 {
		return protocol.PlayerInputs{}, false
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true
}

func (q *InputQueue) Len() int { return len(q.items) }
