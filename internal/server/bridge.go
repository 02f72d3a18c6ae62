package server

import (
	"github.com/annel0/mmo-game/internal/physics"
	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/world/chunk"
	"github.com/annel0/mmo-game/internal/world/container"
)

// chunkBridgeEntry tracks one chunk's physics body and the subscription
// tokens that keep it in sync with block edits.
type chunkBridgeEntry struct {
	chunk      *chunk.Chunk
	indices    vec.Vec3
	body       physics.BodyHandle
	hasBody    bool
	blockToken chunk.SubscriptionToken
	resetToken chunk.SubscriptionToken
}

// ChunkEntityBridge maintains one static physics body per chunk, its
// collider rebuilt from the greedy box packer exactly once per tick for
// every chunk touched since the last sync, never per block edit (§4.7).
type ChunkEntityBridge struct {
	world     physics.World
	blockSize float32
	entries   map[vec.Vec3]*chunkBridgeEntry
	dirty     map[vec.Vec3]bool
}

// NewChunkEntityBridge wires a bridge to world, which may be nil — the
// bridge still tracks chunks and coalesces dirtiness, it simply skips
// body add/remove calls, matching how a host without a physics engine
// wired in yet can still run the rest of the tick loop (§6: physics is
// a consumed interface, not a required one at this layer).
func NewChunkEntityBridge(world physics.World, blockSize float32) *ChunkEntityBridge {
	return &ChunkEntityBridge{
		world:     world,
		blockSize: blockSize,
		entries:   make(map[vec.Vec3]*chunkBridgeEntry),
		dirty:     make(map[vec.Vec3]bool),
	}
}

// Track starts following ch: block updates and resets mark it dirty for
// the next SyncColliders pass, which also covers the chunk's initial
// collider build.
func (b *ChunkEntityBridge) Track(ch *chunk.Chunk) {
	idx := ch.Indices()
	entry := &chunkBridgeEntry{chunk: ch, indices: idx}
	entry.blockToken = ch.OnBlockUpdated.Subscribe(func(chunk.BlockUpdated) {
		b.dirty[idx] = true
	})
	entry.resetToken = ch.OnReset.Subscribe(func(struct{}) {
		b.dirty[idx] = true
	})
	b.entries[idx] = entry
	b.dirty[idx] = true
}

// Untrack stops following ch and removes its physics body.
func (b *ChunkEntityBridge) Untrack(ch *chunk.Chunk) {
	idx := ch.Indices()
	entry, ok := b.entries[idx]
	if !ok {
		return
	}
	entry.chunk.OnBlockUpdated.Unsubscribe(entry.blockToken)
	entry.chunk.OnReset.Unsubscribe(entry.resetToken)
	if entry.hasBody && b.world != nil {
		b.world.RemoveBody(entry.body)
	}
	delete(b.entries, idx)
	delete(b.dirty, idx)
}

// SyncColliders rebuilds the collider for every chunk marked dirty since
// the previous call. Multiple block edits to the same chunk within a
// tick collapse into a single rebuild.
func (b *ChunkEntityBridge) SyncColliders() {
	if len(b.dirty) == 0 {
		return
	}
	pending := b.dirty
	b.dirty = make(map[vec.Vec3]bool)
	for idx := range pending {
		entry, ok := b.entries[idx]
		if !ok {
			continue
		}
		b.rebuild(entry)
	}
}

func (b *ChunkEntityBridge) rebuild(entry *chunkBridgeEntry) {
	collider := entry.chunk.BuildCollider()

	if b.world == nil {
		return
	}
	if entry.hasBody {
		b.world.RemoveBody(entry.body)
		entry.hasBody = false
	}
	if len(collider.Boxes) == 0 {
		return
	}

	boxes := make([]physics.BoxShape, len(collider.Boxes))
	for i, box := range collider.Boxes {
		boxes[i] = physics.BoxShape{Offset: box.Offset, Size: box.Size}
	}
	// Collider boxes are relative to the chunk center, so the body sits
	// half a chunk past the chunk's near corner.
	size := entry.chunk.Size()
	half := vec.Vec3Float{X: float64(size.X), Y: float64(size.Y), Z: float64(size.Z)}.Mul(float64(b.blockSize) / 2)
	offset := container.WorldOffset(entry.indices, b.blockSize).Add(half)
	entry.body = b.world.AddStaticBody(offset, boxes)
	entry.hasBody = true
}

// DirtyCount reports how many chunks are awaiting their next
// SyncColliders pass, used by tests to assert the once-per-tick
// coalescing.
func (b *ChunkEntityBridge) DirtyCount() int { return len(b.dirty) }
