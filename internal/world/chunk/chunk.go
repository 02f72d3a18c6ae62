// Package chunk implements the block-data model described in spec.md §3
// and §4.1: a dense 3D array of block.Index values behind a
// readers-writer lock, with signals for single-cell and bulk mutation,
// and the collider/mesh builders and binary codec consumed by the rest
// of the engine.
package chunk

import (
	"fmt"
	"sync"

	"github.com/annel0/mmo-game/internal/util"
	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/world/block"
)

// BlockUpdated is emitted by Chunk.OnBlockUpdated on every single-cell
// mutation, including writes that reassign the value already present
// (observers rely on that to re-sync, spec §4.1).
type BlockUpdated struct {
	Indices  vec.Vec3u
	NewBlock block.Index
}

// Chunk is a fixed-size dense cube of blocks.
type Chunk struct {
	mu sync.RWMutex

	lib       *block.Library
	indices   vec.Vec3 // signed chunk coordinates within its container
	size      vec.Vec3u
	blockSize float32 // world units per block ("tileSize")

	blocks            []block.Index
	collisionCellMask *util.Bitset
	blockTypeCount    []uint32 // indexed by block.Index; grown lazily

	OnBlockUpdated *Signal[BlockUpdated]
	OnReset        *Signal[struct{}]
}

// New creates an empty (all-Empty) chunk of the given size at indices
// within its eventual container. lib resolves each stored block.Index to
// its HasCollisions flag, so the chunk never needs the library passed
// back in on every call that touches the mask.
func New(lib *block.Library, indices vec.Vec3, size vec.Vec3u, blockSize float32) *Chunk {
	count := int(size.X * size.Y * size.Z)
	return &Chunk{
		lib:               lib,
		indices:           indices,
		size:              size,
		blockSize:         blockSize,
		blocks:            make([]block.Index, count),
		collisionCellMask: util.NewBitset(),
		blockTypeCount:    []uint32{uint32(count)}, // all Empty initially
		OnBlockUpdated:    NewSignal[BlockUpdated](),
		OnReset:           NewSignal[struct{}](),
	}
}

func (c *Chunk) Indices() vec.Vec3    { return c.indices }
func (c *Chunk) Size() vec.Vec3u      { return c.size }
func (c *Chunk) BlockSize() float32   { return c.blockSize }

func (c *Chunk) localIndex(p vec.Vec3u) int {
	return int(p.X) + int(p.Y)*int(c.size.X) + int(p.Z)*int(c.size.X)*int(c.size.Y)
}

// LocalIndices converts a flat block-array index back into local 3D
// indices; the inverse of localIndex. Required by §8 property 2's
// coordinate round-trip and exposed for callers that only hold a linear
// index (§9: "linear-index APIs are implementation details").
func (c *Chunk) LocalIndices(linear int) vec.Vec3u {
	sx, sy := int(c.size.X), int(c.size.Y)
	z := linear / (sx * sy)
	rem := linear % (sx * sy)
	y := rem / sx
	x := rem % sx
	return vec.Vec3u{X: uint(x), Y: uint(y), Z: uint(z)}
}

func (c *Chunk) inRange(p vec.Vec3u) bool {
	return p.X < c.size.X && p.Y < c.size.Y && p.Z < c.size.Z
}

// GetBlock reads a single cell under the shared lock.
func (c *Chunk) GetBlock(p vec.Vec3u) block.Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[c.localIndex(p)]
}

// GetBlockLinear reads by flat array index, for callers iterating the
// whole chunk (mesh/collider builders, codec).
func (c *Chunk) GetBlockLinear(i int) block.Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[i]
}

// GetNeighborBlock reads the block offset by `offset` from `p`, reporting
// false if the neighbor falls outside the chunk (used by BuildMesh to
// decide face visibility at chunk boundaries, spec §4.1).
func (c *Chunk) GetNeighborBlock(p vec.Vec3u, offset vec.Vec3) (block.Index, bool) {
	nx := int(p.X) + offset.X
	ny := int(p.Y) + offset.Y
	nz := int(p.Z) + offset.Z
	if nx < 0 || ny < 0 || nz < 0 || nx >= int(c.size.X) || ny >= int(c.size.Y) || nz >= int(c.size.Z) {
		return block.Empty, false
	}
	return c.GetBlock(vec.Vec3u{X: uint(nx), Y: uint(ny), Z: uint(nz)}), true
}

func (c *Chunk) ensureTypeCount(idx block.Index) {
	for int(idx) >= len(c.blockTypeCount) {
		c.blockTypeCount = append(c.blockTypeCount, 0)
	}
}

// UpdateBlock writes a single cell under the exclusive lock, maintains
// collisionCellMask and blockTypeCount, and emits OnBlockUpdated. Writing
// the value already present is a no-op on the stored data but still
// emits the signal (spec §4.1).
func (c *Chunk) UpdateBlock(p vec.Vec3u, newBlock block.Index) {
	c.mu.Lock()

	li := c.localIndex(p)
	old := c.blocks[li]
	if old != newBlock {
		c.blocks[li] = newBlock

		c.blockTypeCount[old]--
		c.ensureTypeCount(newBlock)
		c.blockTypeCount[newBlock]++

		if c.lib.HasCollisions(newBlock) {
			c.collisionCellMask.Set(li)
		} else {
			c.collisionCellMask.Reset(li)
		}
	}

	c.mu.Unlock()

	c.OnBlockUpdated.Emit(BlockUpdated{Indices: p, NewBlock: newBlock})
}

// Reset bulk-replaces the whole block array via fillFn, which must write
// exactly len(blocks) entries (index order matches localIndex), then
// recomputes the mask/counts and emits OnReset.
func (c *Chunk) Reset(fillFn func(blocks []block.Index)) {
	c.mu.Lock()
	fillFn(c.blocks)
	c.recomputeLocked()
	c.mu.Unlock()

	c.OnReset.Emit(struct{}{})
}

func (c *Chunk) recomputeLocked() {
	c.collisionCellMask = util.NewBitset()
	c.blockTypeCount = c.blockTypeCount[:0]
	for i, b := range c.blocks {
		c.ensureTypeCount(b)
		c.blockTypeCount[b]++
		if c.lib.HasCollisions(b) {
			c.collisionCellMask.Set(i)
		}
	}
}

// CollisionCellMask exposes the mask for external consumers (physics
// body sync, tests checking §8 property 3).
func (c *Chunk) CollisionCellMask() *util.Bitset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collisionCellMask
}

// BlockTypeCount returns occurrences of idx across the chunk.
func (c *Chunk) BlockTypeCount(idx block.Index) uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if int(idx) >= len(c.blockTypeCount) {
		return 0
	}
	return c.blockTypeCount[idx]
}

// BlockCount returns sx*sy*sz.
func (c *Chunk) BlockCount() int {
	return int(c.size.X) * int(c.size.Y) * int(c.size.Z)
}

// ErrSizeMismatch is returned by Deserialize when the stream's chunk size
// doesn't match the host chunk.
var ErrSizeMismatch = fmt.Errorf("chunk: size mismatch")

// ErrUnknownBlockName is returned by Deserialize when a palette entry is
// not registered in the current block library.
var ErrUnknownBlockName = fmt.Errorf("chunk: unknown block name in palette")

// ErrBadVersion is returned by Deserialize when the stream's version byte
// isn't the one this codec implements.
var ErrBadVersion = fmt.Errorf("chunk: unsupported binary version")
