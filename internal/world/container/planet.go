package container

import (
	"math"

	"github.com/aquilax/go-perlin"

	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/world/block"
	"github.com/annel0/mmo-game/internal/world/chunk"
)

// Planet is a Container shaped like a rounded cube: gravity pulls toward
// its center everywhere except near the corners, where it blends into a
// sphere-like pull so characters can walk around edges without falling
// through them.
type Planet struct {
	*Container

	lib          *block.Library
	gridSize     vec.Vec3 // chunk-space extent, in chunks
	cornerRadius float64
	gravity      float64
}

// NewPlanet creates an empty planet of gridSize chunks per axis.
// cornerRadius controls how sharply gravity bends near the cube's edges
// (larger is rounder); gravity is the acceleration magnitude applied by
// ComputeUpDirection's caller.
func NewPlanet(lib *block.Library, blockSize float32, gridSize vec.Vec3, cornerRadius, gravity float64) *Planet {
	return &Planet{
		Container:    New(blockSize),
		lib:          lib,
		gridSize:     gridSize,
		cornerRadius: cornerRadius,
		gravity:      gravity,
	}
}

// CornerRadius and Gravity expose the construction parameters so
// callers outside the package (the environment-notification packets in
// internal/server) can describe this planet without duplicating them.
func (p *Planet) CornerRadius() float64 { return p.cornerRadius }
func (p *Planet) Gravity() float64      { return p.gravity }

func (p *Planet) Center() vec.Vec3Float {
	return vec.Vec3Float{
		X: float64(p.gridSize.X*ChunkSize) * float64(p.BlockSize()) / 2,
		Y: float64(p.gridSize.Y*ChunkSize) * float64(p.BlockSize()) / 2,
		Z: float64(p.gridSize.Z*ChunkSize) * float64(p.BlockSize()) / 2,
	}
}

// ComputeUpDirection returns the unit vector pointing away from the
// planet's rounded-cube surface at position, i.e. the local "up" used to
// orient gravity and character rotation. With d the largest per-axis
// distance from position to the planet center, it clamps position into
// the center-aligned box of half-size max(d - max(cornerRadius, 1), 0)
// and points from that clamped point to position — which degenerates to a
// face normal away from flat faces and to a true radial direction near
// corners, exactly the rounded-box distance-field gradient the original
// engine uses for a flat-faced "planet" gravity well.
func (p *Planet) ComputeUpDirection(position vec.Vec3Float) vec.Vec3Float {
	center := p.Center()
	halfExtent := math.Max(
		math.Abs(position.X-center.X),
		math.Max(math.Abs(position.Y-center.Y), math.Abs(position.Z-center.Z)),
	)

	reduction := math.Max(halfExtent-math.Max(p.cornerRadius, 1), 0)

	clamp := func(v, lo, hi float64) float64 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}

	inner := vec.Vec3Float{
		X: clamp(position.X, center.X-reduction, center.X+reduction),
		Y: clamp(position.Y, center.Y-reduction, center.Y+reduction),
		Z: clamp(position.Z, center.Z-reduction, center.Z+reduction),
	}

	dir := position.Sub(inner)
	return dir.Normalized()
}

// GravityFactor is the acceleration magnitude ComputeUpDirection's
// caller should scale its up-direction by. Uniform across the planet;
// the position parameter is accepted for forward compatibility with a
// non-uniform gravity field and is currently unused.
func (p *Planet) GravityFactor(position vec.Vec3Float) float64 {
	return p.gravity
}

// GenerateChunk deterministically fills chunk ch (already inserted at
// indices by the caller) from one 2D Perlin noise field sampled at each
// block's world X/Z: the block's depth below the nearest cube face,
// compared with the noise-derived surface depth, makes it empty, grass,
// dirt or stone. The same seed always produces the same chunk.
func (p *Planet) GenerateChunk(seed int64, indices vec.Vec3, ch *chunk.Chunk) {
	noise := perlin.NewPerlin(2, 2, int32(3), seed)

	dirt := p.lib.IndexOf("dirt")
	grass := p.lib.IndexOf("grass")
	stone := p.lib.IndexOf("stone")

	sizeBlocks := int(p.gridSize.X) * ChunkSize // cube: same extent on every axis
	const scale = 0.02
	const heightScale = 24.0

	ch.Reset(func(blocks []block.Index) {
		for i := range blocks {
			local := ch.LocalIndices(i)
			world := vec.Vec3{
				X: int(indices.X)*ChunkSize + int(local.X),
				Y: int(indices.Y)*ChunkSize + int(local.Y),
				Z: int(indices.Z)*ChunkSize + int(local.Z),
			}

			depth := minInt(
				minInt(world.X, world.Y),
				minInt(world.Z, minInt(sizeBlocks-world.X-1, minInt(sizeBlocks-world.Y-1, sizeBlocks-world.Z-1))),
			)

			surfaceNoise := noise.Noise2D(float64(world.X)*scale, float64(world.Z)*scale)
			surfaceDepth := int((surfaceNoise + 1) / 2 * heightScale)

			switch {
			case depth < surfaceDepth:
				blocks[i] = block.Empty
			case depth == surfaceDepth:
				blocks[i] = grass
			case depth < surfaceDepth+4:
				blocks[i] = dirt
			default:
				blocks[i] = stone
			}
		}
	})
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
