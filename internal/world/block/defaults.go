package block

// NewDefaultLibrary registers the stock block set used by the bundled
// Planet generator and tests. Face textures are slice indices into
// whatever texture atlas the (out of scope) renderer loads; the engine
// only needs them to round-trip through the wire and disk codecs.
func NewDefaultLibrary() *Library {
	lib := NewLibrary()

	uniform := func(slice uint32) [FaceCount]uint32 {
		var faces [FaceCount]uint32
		for i := range faces {
			faces[i] = slice
		}
		return faces
	}

	lib.Register(Definition{Name: "dirt", FaceTextures: uniform(1), HasCollisions: true})
	lib.Register(Definition{Name: "grass", FaceTextures: [FaceCount]uint32{2, 1, 3, 3, 3, 3}, HasCollisions: true})
	lib.Register(Definition{Name: "stone", FaceTextures: uniform(4), HasCollisions: true})
	lib.Register(Definition{Name: "sand", FaceTextures: uniform(5), HasCollisions: true})
	lib.Register(Definition{Name: "water", FaceTextures: uniform(6), HasCollisions: false, Permeability: 0.6})
	lib.Register(Definition{Name: "oak_log", FaceTextures: [FaceCount]uint32{7, 7, 8, 8, 8, 8}, HasCollisions: true})
	lib.Register(Definition{Name: "oak_leaves", FaceTextures: uniform(9), HasCollisions: true, Permeability: 0.2})
	lib.Register(Definition{Name: "cactus", FaceTextures: uniform(10), HasCollisions: true})

	return lib
}
