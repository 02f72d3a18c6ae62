package persistence

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/world/block"
	"github.com/annel0/mmo-game/internal/world/chunk"
)

func TestChunkFileName_UsesExplicitSignedComponents(t *testing.T) {
	assert.Equal(t, "-1_+0_+5.chunk", ChunkFileName(vec.Vec3{X: -1, Y: 0, Z: 5}))
}

// Scenario S1: a chunk saved and reloaded round-trips its full palette
// and block counts.
func TestChunkStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewChunkStore(dir)

	lib := block.NewDefaultLibrary()
	dirt := lib.IndexOf("dirt")
	grass := lib.IndexOf("grass")
	stone := lib.IndexOf("stone")
	require.NotEqual(t, block.Invalid, dirt)

	indices := vec.Vec3{X: 2, Y: -3, Z: 0}
	ch := chunk.New(lib, indices, vec.Vec3u{X: 32, Y: 32, Z: 32}, 1)
	ch.UpdateBlock(vec.Vec3u{X: 0, Y: 0, Z: 0}, dirt)
	ch.UpdateBlock(vec.Vec3u{X: 1, Y: 0, Z: 0}, grass)
	ch.UpdateBlock(vec.Vec3u{X: 2, Y: 0, Z: 0}, stone)

	require.NoError(t, store.Save(ch))
	assert.True(t, store.Exists(indices))

	loaded := chunk.New(lib, indices, vec.Vec3u{X: 32, Y: 32, Z: 32}, 1)
	require.NoError(t, store.Load(indices, loaded, lib))

	assert.Equal(t, dirt, loaded.GetBlock(vec.Vec3u{X: 0, Y: 0, Z: 0}))
	assert.Equal(t, grass, loaded.GetBlock(vec.Vec3u{X: 1, Y: 0, Z: 0}))
	assert.Equal(t, stone, loaded.GetBlock(vec.Vec3u{X: 2, Y: 0, Z: 0}))
	assert.Equal(t, uint32(32*32*32-3), loaded.BlockTypeCount(block.Empty))
}

func TestChunkStore_LoadMissingFileReportsNotExist(t *testing.T) {
	dir := t.TempDir()
	store := NewChunkStore(dir)
	lib := block.NewDefaultLibrary()
	dst := chunk.New(lib, vec.Vec3{}, vec.Vec3u{X: 4, Y: 4, Z: 4}, 1)

	err := store.Load(vec.Vec3{X: 99}, dst, lib)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}
