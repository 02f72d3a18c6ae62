package visibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-game/internal/entity"
	"github.com/annel0/mmo-game/internal/protocol"
	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/world/block"
	"github.com/annel0/mmo-game/internal/world/chunk"
)

func testChunkAt(t *testing.T, indices vec.Vec3) *chunk.Chunk {
	t.Helper()
	lib := block.NewDefaultLibrary()
	return chunk.New(lib, indices, vec.Vec3u{X: 4, Y: 4, Z: 4}, 1)
}

func noopEncode(ch *chunk.Chunk) (protocol.ChunkCreate, error) {
	return protocol.ChunkCreate{Indices: ch.Indices(), Size: ch.Size(), TileSize: ch.BlockSize()}, nil
}

func noopLookup(entity.ID) (entity.Pose, bool) { return entity.Pose{}, false }

func opcodes(packets []Packet) []protocol.Opcode {
	ops := make([]protocol.Opcode, len(packets))
	for i, p := range packets {
		ops[i] = p.Opcode
	}
	return ops
}

// Property 5: dispatching twice with nothing changed between calls
// produces no packets the second time.
func TestDispatch_IdempotentWhenNothingChanged(t *testing.T) {
	h := NewHandler()
	ch := testChunkAt(t, vec.Vec3{})
	h.CreateChunk(ch)

	first, err := h.Dispatch(vec.Vec3Float{}, noopEncode, noopLookup)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := h.Dispatch(vec.Vec3Float{}, noopEncode, noopLookup)
	require.NoError(t, err)
	assert.Empty(t, second)
}

// Property 6 / reset dominance: a reset and further block updates to the
// same chunk within one tick produce one ChunkReset, never a ChunkUpdate.
func TestDispatch_ResetDominatesUpdateSameTick(t *testing.T) {
	h := NewHandler()
	ch := testChunkAt(t, vec.Vec3{})
	h.CreateChunk(ch)
	_, err := h.Dispatch(vec.Vec3Float{}, noopEncode, noopLookup) // consume the initial create+reset
	require.NoError(t, err)

	stone := block.Index(1)
	ch.UpdateBlock(vec.Vec3u{X: 0, Y: 0, Z: 0}, stone) // triggers onBlockUpdated -> updated bit
	ch.Reset(func(blocks []block.Index) {
		for i := range blocks {
			blocks[i] = stone
		}
	}) // triggers onChunkReset -> reset dominates, pending discarded
	ch.UpdateBlock(vec.Vec3u{X: 1, Y: 1, Z: 1}, block.Empty) // after reset, should be discarded too per "while reset set, no further pendingUpdates recorded"

	packets, err := h.Dispatch(vec.Vec3Float{}, noopEncode, noopLookup)
	require.NoError(t, err)
	require.Len(t, packets, 1)
	assert.Equal(t, protocol.OpChunkReset, packets[0].Opcode)
}

// Scenario S2: a chunk created and destroyed within the same tick yields
// zero packets and its network id is returned to the free pool.
func TestDispatch_CreateDestroySameTickYieldsNoPackets(t *testing.T) {
	h := NewHandler()
	a := testChunkAt(t, vec.Vec3{X: 0})
	b := testChunkAt(t, vec.Vec3{X: 1})

	id := h.CreateChunk(a)
	h.DestroyChunk(a)
	h.CreateChunk(b) // should reuse id, since a's slot was freed immediately

	packets, err := h.Dispatch(vec.Vec3Float{}, noopEncode, noopLookup)
	require.NoError(t, err)
	// b is newly visible, so it does still produce a ChunkCreate; what must
	// be absent is any packet naming a's id after a was collapsed away.
	for _, p := range packets {
		if p.Opcode == protocol.OpChunkDestroy {
			t.Fatalf("expected no ChunkDestroy for a chunk created and destroyed within one tick")
		}
	}
	assert.EqualValues(t, id, h.chunkIndex[vec.Vec3{X: 1}])
}

// Scenario S3-style coalescing: two edits to the same chunk in one tick
// arrive as one ChunkUpdate with entries ordered by position.
func TestDispatch_CoalescesUpdatesOrderedByPosition(t *testing.T) {
	h := NewHandler()
	ch := testChunkAt(t, vec.Vec3{})
	h.CreateChunk(ch)
	_, err := h.Dispatch(vec.Vec3Float{}, noopEncode, noopLookup)
	require.NoError(t, err)

	b := block.Index(2)
	c := block.Index(3)
	ch.UpdateBlock(vec.Vec3u{X: 2, Y: 3, Z: 4}, b)
	ch.UpdateBlock(vec.Vec3u{X: 1, Y: 0, Z: 0}, c)

	packets, err := h.Dispatch(vec.Vec3Float{}, noopEncode, noopLookup)
	require.NoError(t, err)
	require.Len(t, packets, 1)
	require.Equal(t, protocol.OpChunkUpdate, packets[0].Opcode)

	update, err := protocol.DecodeChunkUpdate(packets[0].Body)
	require.NoError(t, err)
	require.Len(t, update.Edits, 2)
	assert.Equal(t, vec.Vec3u{X: 1, Y: 0, Z: 0}, update.Edits[0].Position)
	assert.Equal(t, uint8(c), update.Edits[0].NewBlock)
	assert.Equal(t, vec.Vec3u{X: 2, Y: 3, Z: 4}, update.Edits[1].Position)
	assert.Equal(t, uint8(b), update.Edits[1].NewBlock)
}

// Property 10 / scenario S4: the bandwidth cap admits at most
// MaxConcurrentChunkUpdate unacknowledged ChunkReset packets per
// dispatch; the remainder is sent only after acks free up budget.
func TestDispatch_ChunkResetBandwidthCap(t *testing.T) {
	h := NewHandler()
	const total = 10
	ids := make([]uint16, 0, total)
	for i := 0; i < total; i++ {
		ch := testChunkAt(t, vec.Vec3{X: i})
		ids = append(ids, h.CreateChunk(ch))
	}

	first, err := h.Dispatch(vec.Vec3Float{}, noopEncode, noopLookup)
	require.NoError(t, err)
	var resets int
	for _, p := range first {
		if p.Opcode == protocol.OpChunkReset || p.Opcode == protocol.OpChunkCreate {
			resets++
		}
	}
	// every chunk is newly visible this round, so all 10 ChunkCreates go
	// out (creates are not bandwidth-gated); the cap only governs
	// already-visible chunks that are later reset.
	assert.Equal(t, total, resets)

	for _, id := range ids {
		ch := h.chunks[id].chunk
		ch.Reset(func(blocks []block.Index) {})
	}

	second, err := h.Dispatch(vec.Vec3Float{}, noopEncode, noopLookup)
	require.NoError(t, err)
	var sentResets int
	for _, p := range second {
		if p.Opcode == protocol.OpChunkReset {
			sentResets++
		}
	}
	assert.Equal(t, MaxConcurrentChunkUpdate, sentResets)
	assert.Equal(t, MaxConcurrentChunkUpdate, h.activeChunkUpdates)

	for i := 0; i < MaxConcurrentChunkUpdate; i++ {
		h.AckChunkReset(ids[i])
	}
	assert.Equal(t, 0, h.activeChunkUpdates)

	third, err := h.Dispatch(vec.Vec3Float{}, noopEncode, noopLookup)
	require.NoError(t, err)
	var thirdResets int
	for _, p := range third {
		if p.Opcode == protocol.OpChunkReset {
			thirdResets++
		}
	}
	assert.Equal(t, MaxConcurrentChunkUpdate, thirdResets)
}

func TestDispatch_EntityStateUpdateSuppressedWhenEmpty(t *testing.T) {
	h := NewHandler()
	packets, err := h.Dispatch(vec.Vec3Float{}, noopEncode, noopLookup)
	require.NoError(t, err)
	assert.Empty(t, packets)
}

func TestDispatch_EntityCreateThenDestroySameTickIsFree(t *testing.T) {
	h := NewHandler()
	id := h.CreateEntity(entity.ID(1), false)
	h.DestroyEntity(entity.ID(1))

	packets, err := h.Dispatch(vec.Vec3Float{}, noopEncode, noopLookup)
	require.NoError(t, err)
	assert.Empty(t, packets)

	reused := h.CreateEntity(entity.ID(2), false)
	assert.Equal(t, id, reused)
}

func TestDispatch_EntitiesCreationAndDeleteOrdering(t *testing.T) {
	h := NewHandler()
	h.CreateEntity(entity.ID(1), true)

	packets, err := h.Dispatch(vec.Vec3Float{}, noopEncode, noopLookup)
	require.NoError(t, err)
	require.Len(t, packets, 1)
	assert.Equal(t, protocol.OpEntitiesCreation, packets[0].Opcode)

	h.DestroyEntity(entity.ID(1))
	packets2, err := h.Dispatch(vec.Vec3Float{}, noopEncode, noopLookup)
	require.NoError(t, err)
	require.Len(t, packets2, 1)
	assert.Equal(t, protocol.OpEntitiesDelete, packets2[0].Opcode)
}
