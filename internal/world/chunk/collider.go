package chunk

import (
	"github.com/annel0/mmo-game/internal/util"
	"github.com/annel0/mmo-game/internal/vec"
)

// BoxCollider is one axis-aligned box of a chunk's compound collider,
// expressed relative to the chunk's own center so it can be attached
// directly to a physics body positioned at the chunk's world transform.
type BoxCollider struct {
	Offset vec.Vec3Float
	Size   vec.Vec3Float
}

// Collider is the compound shape produced by BuildCollider: zero boxes
// means the chunk is empty and callers should skip attaching a body.
type Collider struct {
	Boxes []BoxCollider
}

// BuildCollider greedily packs the chunk's solid cells into axis-aligned
// boxes: for every still-uncommitted solid run along X, it grows the run
// first along Y for as long as the whole X-range stays solid at the next
// Y, then along Z for as long as the whole X,Y-range stays solid at the
// next Z, consuming every cell it covers before moving on. This mirrors
// the greedy row/column/layer extension used by the source engine's flat
// chunk collider builder rather than emitting one box per solid cell.
func (c *Chunk) BuildCollider() Collider {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.collisionCellMask.None() {
		return Collider{}
	}

	sx, sy, sz := int(c.size.X), int(c.size.Y), int(c.size.Z)
	available := util.NewBitset()
	for i := 0; i < sx*sy*sz; i++ {
		if c.collisionCellMask.Test(i) {
			available.Set(i)
		}
	}

	linear := func(x, y, z int) int { return x + y*sx + z*sx*sy }

	solidAt := func(x, y, z int) bool {
		if x < 0 || y < 0 || z < 0 || x >= sx || y >= sy || z >= sz {
			return false
		}
		return available.Test(linear(x, y, z))
	}

	consume := func(x0, x1, y0, y1, z0, z1 int) {
		for z := z0; z < z1; z++ {
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					available.Reset(linear(x, y, z))
				}
			}
		}
	}

	var out Collider
	bs := float64(c.blockSize)
	chunkSize := vec.Vec3Float{X: float64(sx) * bs, Y: float64(sy) * bs, Z: float64(sz) * bs}

	for z := 0; z < sz; z++ {
		for y := 0; y < sy; y++ {
			x := 0
			for x < sx {
				if !solidAt(x, y, z) {
					x++
					continue
				}
				startX := x
				for x < sx && solidAt(x, y, z) {
					x++
				}
				endX := x

				// Grow along Y while the whole [startX,endX) row stays solid.
				endY := y + 1
				for endY < sy && rowSolid(solidAt, startX, endX, endY, z) {
					endY++
				}

				// Grow along Z while the whole [startX,endX)x[y,endY) slab stays solid.
				endZ := z + 1
				for endZ < sz && slabSolid(solidAt, startX, endX, y, endY, endZ) {
					endZ++
				}

				consume(startX, endX, y, endY, z, endZ)

				startOffset := vec.Vec3Float{X: float64(startX) * bs, Y: float64(y) * bs, Z: float64(z) * bs}
				endOffset := vec.Vec3Float{X: float64(endX) * bs, Y: float64(endY) * bs, Z: float64(endZ) * bs}
				size := endOffset.Sub(startOffset)
				center := startOffset.Add(size.Mul(0.5)).Sub(chunkSize.Mul(0.5))

				out.Boxes = append(out.Boxes, BoxCollider{Offset: center, Size: size})
			}
		}
	}

	return out
}

func rowSolid(solidAt func(x, y, z int) bool, x0, x1, y, z int) bool {
	for x := x0; x < x1; x++ {
		if !solidAt(x, y, z) {
			return false
		}
	}
	return true
}

func slabSolid(solidAt func(x, y, z int) bool, x0, x1, y0, y1, z int) bool {
	for y := y0; y < y1; y++ {
		if !rowSolid(solidAt, x0, x1, y, z) {
			return false
		}
	}
	return true
}
