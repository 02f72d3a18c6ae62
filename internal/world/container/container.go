// Package container implements the chunk-indexed world: the mapping
// from signed chunk/block coordinates to the chunk.Chunk holding that
// data, and the planet-shaped generator that populates it.
package container

import (
	"sync"

	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/world/chunk"
)

// ChunkSize is the edge length, in blocks, of every chunk this engine
// produces. Spec §3 fixes chunks at a uniform cube size.
const ChunkSize = 32

// Container maps signed chunk coordinates to chunks and signed block
// coordinates to the (chunk, local-index) pair that stores them.
// It owns no generation logic; Planet composes it with a generator.
type Container struct {
	mu        sync.RWMutex
	chunks    map[vec.Vec3]*chunk.Chunk
	blockSize float32

	OnChunkAdded   *chunk.Signal[vec.Vec3]
	OnChunkRemoved *chunk.Signal[vec.Vec3]
}

// New creates an empty container. blockSize is the world-space edge
// length of one block (the teacher's "tile size").
func New(blockSize float32) *Container {
	return &Container{
		chunks:         make(map[vec.Vec3]*chunk.Chunk),
		blockSize:      blockSize,
		OnChunkAdded:   chunk.NewSignal[vec.Vec3](),
		OnChunkRemoved: chunk.NewSignal[vec.Vec3](),
	}
}

func (c *Container) BlockSize() float32 { return c.blockSize }

// AddChunk inserts a newly-created chunk at the given indices. It panics
// if a chunk already exists there — duplicate insertion is a programmer
// error (§9: duplicate insertion/missing removal are forbidden, not
// silently absorbed).
func (c *Container) AddChunk(indices vec.Vec3, ch *chunk.Chunk) {
	c.mu.Lock()
	if _, exists := c.chunks[indices]; exists {
		c.mu.Unlock()
		panic("container: duplicate chunk insertion")
	}
	c.chunks[indices] = ch
	c.mu.Unlock()

	c.OnChunkAdded.Emit(indices)
}

// RemoveChunk deletes the chunk at indices. It panics if no chunk exists
// there, mirroring AddChunk's duplicate-insertion guard.
func (c *Container) RemoveChunk(indices vec.Vec3) {
	c.mu.Lock()
	if _, exists := c.chunks[indices]; !exists {
		c.mu.Unlock()
		panic("container: removal of nonexistent chunk")
	}
	delete(c.chunks, indices)
	c.mu.Unlock()

	c.OnChunkRemoved.Emit(indices)
}

// GetChunk returns the chunk at indices, or nil if none exists.
func (c *Container) GetChunk(indices vec.Vec3) *chunk.Chunk {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.chunks[indices]
}

// ChunkCount returns the number of chunks currently loaded.
func (c *Container) ChunkCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chunks)
}

// ForEachChunk calls fn for every loaded chunk. fn must not call back
// into AddChunk/RemoveChunk on this container (no re-entrancy, same rule
// as chunk.Signal).
func (c *Container) ForEachChunk(fn func(indices vec.Vec3, ch *chunk.Chunk)) {
	c.mu.RLock()
	snapshot := make(map[vec.Vec3]*chunk.Chunk, len(c.chunks))
	for k, v := range c.chunks {
		snapshot[k] = v
	}
	c.mu.RUnlock()

	for indices, ch := range snapshot {
		fn(indices, ch)
	}
}

// ChunkIndicesOfBlock returns the chunk indices and in-chunk local
// indices for a world-space block position, replacing every caller's
// own floor-division arithmetic with one correct implementation (floor
// division, not truncation, so negative block coordinates resolve into
// the chunk below rather than wrapping toward the origin).
func ChunkIndicesOfBlock(block vec.Vec3) (chunkIndices vec.Vec3, local vec.Vec3u) {
	chunkIndices = vec.Vec3{
		X: floorDiv(block.X, ChunkSize),
		Y: floorDiv(block.Y, ChunkSize),
		Z: floorDiv(block.Z, ChunkSize),
	}
	local = vec.Vec3u{
		X: uint(floorMod(block.X, ChunkSize)),
		Y: uint(floorMod(block.Y, ChunkSize)),
		Z: uint(floorMod(block.Z, ChunkSize)),
	}
	return chunkIndices, local
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}

// WorldOffset returns the world-space position of a chunk's near corner
// (its minimum X,Y,Z block), used by callers that need a chunk's
// absolute placement rather than its indices.
func WorldOffset(indices vec.Vec3, blockSize float32) vec.Vec3Float {
	return vec.Vec3Float{
		X: float64(indices.X*ChunkSize) * float64(blockSize),
		Y: float64(indices.Y*ChunkSize) * float64(blockSize),
		Z: float64(indices.Z*ChunkSize) * float64(blockSize),
	}
}
