package chunk

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/world/block"
)

// Vertex is one mesh vertex: position relative to the chunk's own
// center, the outward face normal, and the UV coordinate projected onto
// that face's texture slice.
type Vertex struct {
	Position vec.Vec3Float
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
	Slice    uint32
}

// faceDir lists the six outward offsets a block face can be culled
// against, in the same order as block.Face's constants.
var faceDir = [block.FaceCount]vec.Vec3{
	block.FaceUp:    {X: 0, Y: 1, Z: 0},
	block.FaceDown:  {X: 0, Y: -1, Z: 0},
	block.FaceFront: {X: 0, Y: 0, Z: 1},
	block.FaceBack:  {X: 0, Y: 0, Z: -1},
	block.FaceLeft:  {X: -1, Y: 0, Z: 0},
	block.FaceRight: {X: 1, Y: 0, Z: 0},
}

// faceNormal mirrors faceDir as a renderer-facing float normal.
var faceNormal = [block.FaceCount]mgl32.Vec3{
	block.FaceUp:    {0, 1, 0},
	block.FaceDown:  {0, -1, 0},
	block.FaceFront: {0, 0, 1},
	block.FaceBack:  {0, 0, -1},
	block.FaceLeft:  {-1, 0, 0},
	block.FaceRight: {1, 0, 0},
}

// corner enumerates the eight corners of a unit block's bounding box by
// name rather than raw min/max, matching how the source engine's
// DrawFace assembles each face from named corners instead of an index
// buffer over a fixed cube layout.
type corner int

const (
	farLeftTop corner = iota
	farRightTop
	nearLeftTop
	nearRightTop
	farRightBottom
	farLeftBottom
	nearRightBottom
	nearLeftBottom
)

// faceCorners lists each face's four corners in counter-clockwise
// winding order as seen from outside the block.
var faceCorners = [block.FaceCount][4]corner{
	block.FaceUp:    {farLeftTop, farRightTop, nearRightTop, nearLeftTop},
	block.FaceDown:  {farRightBottom, farLeftBottom, nearLeftBottom, nearRightBottom},
	block.FaceFront: {nearLeftTop, nearRightTop, nearRightBottom, nearLeftBottom},
	block.FaceBack:  {farRightTop, farLeftTop, farLeftBottom, farRightBottom},
	block.FaceLeft:  {farLeftTop, nearLeftTop, nearLeftBottom, farLeftBottom},
	block.FaceRight: {nearRightTop, farRightTop, farRightBottom, nearRightBottom},
}

// faceUV is the canonical cubemap-style UV projection: each face's four
// corners map to the same unit-square UVs regardless of orientation, so
// every block face samples its texture slice consistently (the "cubemap
// projection" from the source engine's mesh builder, ported without its
// quaternion-based corner-rotation trick since Go's fixed corner table
// already yields the same per-face winding).
var faceUV = [4]mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

func cornerOffset(c corner, half vec.Vec3Float) vec.Vec3Float {
	switch c {
	case farLeftTop:
		return vec.Vec3Float{X: -half.X, Y: -half.Y, Z: half.Z}
	case farRightTop:
		return vec.Vec3Float{X: half.X, Y: -half.Y, Z: half.Z}
	case nearLeftTop:
		return vec.Vec3Float{X: -half.X, Y: half.Y, Z: half.Z}
	case nearRightTop:
		return vec.Vec3Float{X: half.X, Y: half.Y, Z: half.Z}
	case farRightBottom:
		return vec.Vec3Float{X: half.X, Y: -half.Y, Z: -half.Z}
	case farLeftBottom:
		return vec.Vec3Float{X: -half.X, Y: -half.Y, Z: -half.Z}
	case nearRightBottom:
		return vec.Vec3Float{X: half.X, Y: half.Y, Z: -half.Z}
	default: // nearLeftBottom
		return vec.Vec3Float{X: -half.X, Y: half.Y, Z: -half.Z}
	}
}

// BuildMesh emits one quad (as two triangles via sink) per visible face:
// a face is visible when the neighboring cell inside this chunk lacks
// collisions (Empty included) or, across the chunk boundary, when
// outsideNeighbor reports that cell Empty or does not report it — i.e. greedy per-cell
// face culling rather than a mesh simplification pass, matching the
// source engine's per-block DrawFace loop. outsideNeighbor may be nil,
// in which case chunk-boundary faces are always emitted (conservative:
// correct but over-draws at chunk seams until a neighbor chunk is wired
// in by the caller).
func (c *Chunk) BuildMesh(sink func(a, b, c2, d Vertex), outsideNeighbor func(worldOffset vec.Vec3) (block.Index, bool)) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sx, sy, sz := int(c.size.X), int(c.size.Y), int(c.size.Z)
	bs := float64(c.blockSize)
	half := vec.Vec3Float{X: bs / 2, Y: bs / 2, Z: bs / 2}
	chunkOrigin := vec.Vec3Float{
		X: -float64(sx) * bs / 2,
		Y: -float64(sy) * bs / 2,
		Z: -float64(sz) * bs / 2,
	}

	for z := 0; z < sz; z++ {
		for y := 0; y < sy; y++ {
			for x := 0; x < sx; x++ {
				p := vec.Vec3u{X: uint(x), Y: uint(y), Z: uint(z)}
				idx := c.blocks[c.localIndex(p)]
				if idx == block.Empty {
					continue
				}
				def, ok := c.lib.Get(idx)
				if !ok {
					continue
				}

				center := vec.Vec3Float{
					X: chunkOrigin.X + (float64(x)+0.5)*bs,
					Y: chunkOrigin.Y + (float64(y)+0.5)*bs,
					Z: chunkOrigin.Z + (float64(z)+0.5)*bs,
				}

				for face := block.Face(0); face < block.FaceCount; face++ {
					dir := faceDir[face]
					neighborSolid := false
					if n, within := c.neighborAt(x, y, z, dir); within {
						if ndef, ok := c.lib.Get(n); ok {
							neighborSolid = ndef.HasCollisions
						}
					} else if outsideNeighbor != nil {
						worldOff := vec.Vec3{
							X: c.indices.X*sx + x + dir.X,
							Y: c.indices.Y*sy + y + dir.Y,
							Z: c.indices.Z*sz + z + dir.Z,
						}
						if n, ok := outsideNeighbor(worldOff); ok {
							neighborSolid = n != block.Empty
						}
					}
					if neighborSolid {
						continue
					}

					corners := faceCorners[face]
					slice := def.FaceTextures[face]
					var verts [4]Vertex
					for i, corn := range corners {
						verts[i] = Vertex{
							Position: center.Add(cornerOffset(corn, half)),
							Normal:   faceNormal[face],
							UV:       faceUV[i],
							Slice:    slice,
						}
					}
					sink(verts[0], verts[1], verts[2], verts[3])
				}
			}
		}
	}
}

func (c *Chunk) neighborAt(x, y, z int, dir vec.Vec3) (block.Index, bool) {
	nx, ny, nz := x+dir.X, y+dir.Y, z+dir.Z
	sx, sy, sz := int(c.size.X), int(c.size.Y), int(c.size.Z)
	if nx < 0 || ny < 0 || nz < 0 || nx >= sx || ny >= sy || nz >= sz {
		return block.Empty, false
	}
	return c.blocks[c.localIndex(vec.Vec3u{X: uint(nx), Y: uint(ny), Z: uint(nz)})], true
}
