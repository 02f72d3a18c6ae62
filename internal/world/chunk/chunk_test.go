package chunk

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/world/block"
)

func testLibrary() *block.Library {
	lib := block.NewLibrary()
	lib.Register(block.Definition{Name: "stone", HasCollisions: true})
	lib.Register(block.Definition{Name: "water", HasCollisions: false})
	return lib
}

func TestChunk_LocalIndexRoundTrip(t *testing.T) {
	lib := testLibrary()
	c := New(lib, vec.Vec3{}, vec.Vec3u{X: 4, Y: 3, Z: 2}, 1)

	for linear := 0; linear < c.BlockCount(); linear++ {
		p := c.LocalIndices(linear)
		require.Equal(t, linear, c.localIndex(p), "linear index must round-trip through LocalIndices")
	}
}

func TestChunk_UpdateBlockMaintainsMaskAndCounts(t *testing.T) {
	lib := testLibrary()
	c := New(lib, vec.Vec3{}, vec.Vec3u{X: 2, Y: 2, Z: 2}, 1)
	stone := lib.IndexOf("stone")
	water := lib.IndexOf("water")

	p := vec.Vec3u{X: 0, Y: 0, Z: 0}
	c.UpdateBlock(p, stone)
	assert.True(t, c.CollisionCellMask().Test(c.localIndex(p)))
	assert.EqualValues(t, 1, c.BlockTypeCount(stone))
	assert.EqualValues(t, c.BlockCount()-1, c.BlockTypeCount(block.Empty))

	// water has no collisions even though it is not Empty
	c.UpdateBlock(p, water)
	assert.False(t, c.CollisionCellMask().Test(c.localIndex(p)))
	assert.EqualValues(t, 1, c.BlockTypeCount(water))
	assert.EqualValues(t, 0, c.BlockTypeCount(stone))
}

func TestChunk_UpdateBlockEmitsOnNoOpWrite(t *testing.T) {
	lib := testLibrary()
	c := New(lib, vec.Vec3{}, vec.Vec3u{X: 1, Y: 1, Z: 1}, 1)

	calls := 0
	c.OnBlockUpdated.Subscribe(func(BlockUpdated) { calls++ })

	p := vec.Vec3u{}
	c.UpdateBlock(p, block.Empty) // already Empty: no-op write, signal still fires
	assert.Equal(t, 1, calls)
}

func TestChunk_ResetRecomputesMaskAndEmits(t *testing.T) {
	lib := testLibrary()
	c := New(lib, vec.Vec3{}, vec.Vec3u{X: 2, Y: 1, Z: 1}, 1)
	stone := lib.IndexOf("stone")

	resets := 0
	c.OnReset.Subscribe(func(struct{}) { resets++ })

	c.Reset(func(blocks []block.Index) {
		blocks[0] = stone
		blocks[1] = block.Empty
	})

	assert.Equal(t, 1, resets)
	assert.True(t, c.CollisionCellMask().Test(0))
	assert.False(t, c.CollisionCellMask().Test(1))
	assert.EqualValues(t, 1, c.BlockTypeCount(stone))
}

func TestChunk_SerializeDeserializeRoundTrip(t *testing.T) {
	lib := testLibrary()
	size := vec.Vec3u{X: 3, Y: 3, Z: 3}
	src := New(lib, vec.Vec3{X: 1, Y: -2, Z: 5}, size, 1)
	stone := lib.IndexOf("stone")
	water := lib.IndexOf("water")

	src.UpdateBlock(vec.Vec3u{X: 0, Y: 0, Z: 0}, stone)
	src.UpdateBlock(vec.Vec3u{X: 1, Y: 1, Z: 1}, water)
	src.UpdateBlock(vec.Vec3u{X: 2, Y: 2, Z: 2}, stone)

	var buf bytes.Buffer
	require.NoError(t, src.Serialize(&buf))

	dst := New(lib, vec.Vec3{X: 1, Y: -2, Z: 5}, size, 1)
	require.NoError(t, dst.Deserialize(bytes.NewReader(buf.Bytes()), lib))

	for linear := 0; linear < src.BlockCount(); linear++ {
		assert.Equal(t, src.GetBlockLinear(linear), dst.GetBlockLinear(linear), "block %d", linear)
	}
}

func TestChunk_DeserializeRejectsSizeMismatch(t *testing.T) {
	lib := testLibrary()
	src := New(lib, vec.Vec3{}, vec.Vec3u{X: 2, Y: 2, Z: 2}, 1)

	var buf bytes.Buffer
	require.NoError(t, src.Serialize(&buf))

	dst := New(lib, vec.Vec3{}, vec.Vec3u{X: 3, Y: 2, Z: 2}, 1)
	err := dst.Deserialize(bytes.NewReader(buf.Bytes()), lib)
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestChunk_PaletteOnlyListsPresentBlocks(t *testing.T) {
	lib := block.NewDefaultLibrary()
	c := New(lib, vec.Vec3{}, vec.Vec3u{X: 4, Y: 4, Z: 4}, 1)
	stone := lib.IndexOf("stone")

	c.Reset(func(blocks []block.Index) {
		for i := range blocks {
			blocks[i] = stone
		}
	})

	var buf bytes.Buffer
	require.NoError(t, c.Serialize(&buf))

	var version, sx, sy, sz uint32
	require.NoError(t, binary.Read(&buf, binary.LittleEndian, &version))
	require.NoError(t, binary.Read(&buf, binary.LittleEndian, &sx))
	require.NoError(t, binary.Read(&buf, binary.LittleEndian, &sy))
	require.NoError(t, binary.Read(&buf, binary.LittleEndian, &sz))

	var paletteSize uint16
	require.NoError(t, binary.Read(&buf, binary.LittleEndian, &paletteSize))
	assert.EqualValues(t, 1, paletteSize, "an all-stone chunk should serialize a single palette entry")
}

func TestChunk_EmptyChunkHasNoCollider(t *testing.T) {
	lib := testLibrary()
	c := New(lib, vec.Vec3{}, vec.Vec3u{X: 4, Y: 4, Z: 4}, 1)
	collider := c.BuildCollider()
	assert.Empty(t, collider.Boxes)
}

func TestChunk_ColliderCoversEveryStoneCell(t *testing.T) {
	lib := testLibrary()
	c := New(lib, vec.Vec3{}, vec.Vec3u{X: 4, Y: 4, Z: 4}, 1)
	stone := lib.IndexOf("stone")

	c.Reset(func(blocks []block.Index) {
		for i := range blocks {
			blocks[i] = stone
		}
	})

	collider := c.BuildCollider()
	require.NotEmpty(t, collider.Boxes)

	var totalVolume float64
	for _, box := range collider.Boxes {
		totalVolume += box.Size.X * box.Size.Y * box.Size.Z
	}
	assert.InDelta(t, 64.0, totalVolume, 1e-9, "collider volume must equal the solid cell count times block volume")
}
