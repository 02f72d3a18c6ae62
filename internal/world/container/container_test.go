package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/world/block"
	"github.com/annel0/mmo-game/internal/world/chunk"
)

func TestChunkIndicesOfBlock_RoundTrip(t *testing.T) {
	cases := []vec.Vec3{
		{X: 0, Y: 0, Z: 0},
		{X: 31, Y: 31, Z: 31},
		{X: 32, Y: 0, Z: 0},
		{X: -1, Y: -1, Z: -1},
		{X: -33, Y: 5, Z: 70},
	}

	for _, block := range cases {
		chunkIdx, local := ChunkIndicesOfBlock(block)
		require.True(t, local.X < ChunkSize && local.Y < ChunkSize && local.Z < ChunkSize)

		reconstructed := vec.Vec3{
			X: chunkIdx.X*ChunkSize + int(local.X),
			Y: chunkIdx.Y*ChunkSize + int(local.Y),
			Z: chunkIdx.Z*ChunkSize + int(local.Z),
		}
		assert.Equal(t, block, reconstructed)
	}
}

func TestContainer_DuplicateInsertionPanics(t *testing.T) {
	lib := block.NewDefaultLibrary()
	c := New(1)
	idx := vec.Vec3{}
	c.AddChunk(idx, chunk.New(lib, idx, vec.Vec3u{X: ChunkSize, Y: ChunkSize, Z: ChunkSize}, 1))

	assert.Panics(t, func() {
		c.AddChunk(idx, chunk.New(lib, idx, vec.Vec3u{X: ChunkSize, Y: ChunkSize, Z: ChunkSize}, 1))
	})
}

func TestContainer_RemoveMissingPanics(t *testing.T) {
	c := New(1)
	assert.Panics(t, func() {
		c.RemoveChunk(vec.Vec3{X: 99})
	})
}

func TestContainer_AddRemoveEmitsSignals(t *testing.T) {
	lib := block.NewDefaultLibrary()
	c := New(1)
	idx := vec.Vec3{X: 2, Y: 0, Z: -1}

	var added, removed vec.Vec3
	c.OnChunkAdded.Subscribe(func(i vec.Vec3) { added = i })
	c.OnChunkRemoved.Subscribe(func(i vec.Vec3) { removed = i })

	c.AddChunk(idx, chunk.New(lib, idx, vec.Vec3u{X: ChunkSize, Y: ChunkSize, Z: ChunkSize}, 1))
	assert.Equal(t, idx, added)
	assert.Equal(t, 1, c.ChunkCount())

	c.RemoveChunk(idx)
	assert.Equal(t, idx, removed)
	assert.Equal(t, 0, c.ChunkCount())
}

func TestPlanet_ComputeUpDirectionPointsOutwardOnFaces(t *testing.T) {
	lib := block.NewDefaultLibrary()
	p := NewPlanet(lib, 1, vec.Vec3{X: 4, Y: 4, Z: 4}, 8, 9.8)
	center := p.Center()

	// far outside the +X face, near the planet's own Y/Z center
	pos := vec.Vec3Float{X: center.X + 1000, Y: center.Y, Z: center.Z}
	up := p.ComputeUpDirection(pos)

	assert.InDelta(t, 1.0, up.X, 1e-6)
	assert.InDelta(t, 0.0, up.Y, 1e-6)
	assert.InDelta(t, 0.0, up.Z, 1e-6)
}

func TestPlanet_GenerateChunkIsDeterministic(t *testing.T) {
	lib := block.NewDefaultLibrary()
	size := vec.Vec3u{X: ChunkSize, Y: ChunkSize, Z: ChunkSize}

	p := NewPlanet(lib, 1, vec.Vec3{X: 2, Y: 2, Z: 2}, 8, 9.8)
	a := chunk.New(lib, vec.Vec3{}, size, 1)
	b := chunk.New(lib, vec.Vec3{}, size, 1)

	p.GenerateChunk(42, vec.Vec3{}, a)
	p.GenerateChunk(42, vec.Vec3{}, b)

	for i := 0; i < a.BlockCount(); i++ {
		assert.Equal(t, a.GetBlockLinear(i), b.GetBlockLinear(i))
	}
}
