package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-game/internal/cache"
	"github.com/annel0/mmo-game/internal/config"
	"github.com/annel0/mmo-game/internal/entity"
	"github.com/annel0/mmo-game/internal/persistence"
	"github.com/annel0/mmo-game/internal/physics"
	"github.com/annel0/mmo-game/internal/protocol"
	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/world/block"
	"github.com/annel0/mmo-game/internal/world/chunk"
	"github.com/annel0/mmo-game/internal/world/container"
)

// fakeCacheRepo is an in-memory stand-in for cache.CacheRepo, enough to
// exercise lookupPlayerRecord's read-through behavior without a real
// Redis instance.
type fakeCacheRepo struct {
	data map[string][]byte
	gets int
	sets int
}

func newFakeCacheRepo() *fakeCacheRepo { return &fakeCacheRepo{data: make(map[string][]byte)} }

func (f *fakeCacheRepo) Get(_ context.Context, key string) ([]byte, error) {
	f.gets++
	v, ok := f.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}
func (f *fakeCacheRepo) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.sets++
	f.data[key] = value
	return nil
}
func (f *fakeCacheRepo) Delete(_ context.Context, key string) error { delete(f.data, key); return nil }
func (f *fakeCacheRepo) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.data[key]
	return ok, nil
}
func (f *fakeCacheRepo) Invalidate(ctx context.Context, key string) error { return f.Delete(ctx, key) }
func (f *fakeCacheRepo) BatchGet(_ context.Context, keys []string) (map[string][]byte, error) {
	return nil, nil
}
func (f *fakeCacheRepo) BatchSet(_ context.Context, items map[string][]byte, _ time.Duration) error {
	return nil
}
func (f *fakeCacheRepo) Close() error                    { return nil }
func (f *fakeCacheRepo) GetMetrics() *cache.CacheMetrics { return &cache.CacheMetrics{} }

// fakeWorld is a minimal physics.World recording which static bodies
// were added and removed, enough to assert the bridge's once-per-tick
// rebuild behavior without a real solver.
type fakeWorld struct {
	adds    int
	removes int
	bodies  map[physics.BodyHandle]bool
	next    physics.BodyHandle
}

func newFakeWorld() *fakeWorld { return &fakeWorld{bodies: make(map[physics.BodyHandle]bool)} }

func (f *fakeWorld) Step(ctx context.Context, dt time.Duration) error { return nil }
func (f *fakeWorld) AddStaticBody(worldOffset vec.Vec3Float, boxes []physics.BoxShape) physics.BodyHandle {
	f.adds++
	f.next++
	f.bodies[f.next] = true
	return f.next
}
func (f *fakeWorld) AddDynamicBody(position vec.Vec3Float, boxes []physics.BoxShape) physics.BodyHandle {
	f.next++
	return f.next
}
func (f *fakeWorld) RemoveBody(handle physics.BodyHandle) {
	f.removes++
	delete(f.bodies, handle)
}
func (f *fakeWorld) SetGravity(handle physics.BodyHandle, gravity vec.Vec3Float) {}
func (f *fakeWorld) Position(handle physics.BodyHandle) vec.Vec3Float            { return vec.Vec3Float{} }
func (f *fakeWorld) RaycastFirst(origin, direction vec.Vec3Float, maxDistance float64) (physics.RayHit, bool) {
	return physics.RayHit{}, false
}

func newTestChunk(lib *block.Library, indices vec.Vec3) *chunk.Chunk {
	return chunk.New(lib, indices, vec.Vec3u{X: 4, Y: 4, Z: 4}, 1)
}

// Property 7: three inputs enqueued with indices [i, i+1, i+2] are
// consumed in that order across three successive ticks.
func TestSession_ApplyOneInput_ConsumesInFIFOOrder(t *testing.T) {
	store := entity.NewStore()
	e := store.Create(entity.Pose{}, entity.Tags{Moving: true, PlayerControlled: true})

	sess := NewSession(0, "alice", protocol.CurrentVersion, e.ID, func(protocol.Opcode, []byte) {})
	sess.Inputs.Enqueue(protocol.PlayerInputs{Index: 5, Yaw: 1})
	sess.Inputs.Enqueue(protocol.PlayerInputs{Index: 6, Yaw: 2})
	sess.Inputs.Enqueue(protocol.PlayerInputs{Index: 7, Yaw: 4})

	var consumed []uint8
	for i := 0; i < 3; i++ {
		before := sess.Inputs.Len()
		sess.ApplyOneInput(e)
		require.Equal(t, before-1, sess.Inputs.Len())
		consumed = append(consumed, sess.Visibility.LastAckedInput())
	}

	assert.Equal(t, []uint8{5, 6, 7}, consumed)
	assert.InDelta(t, 7.0, e.Pose.CameraYawDeg, 1e-6)
}

// When the queue runs dry, the previously consumed rotation delta is not
// reapplied (only fresh samples move the camera).
func TestSession_ApplyOneInput_EmptyQueueDoesNotReapplyRotation(t *testing.T) {
	store := entity.NewStore()
	e := store.Create(entity.Pose{}, entity.Tags{Moving: true, PlayerControlled: true})
	sess := NewSession(0, "bob", protocol.CurrentVersion, e.ID, func(protocol.Opcode, []byte) {})

	sess.Inputs.Enqueue(protocol.PlayerInputs{Index: 1, Yaw: 10})
	sess.ApplyOneInput(e)
	assert.InDelta(t, 10.0, e.Pose.CameraYawDeg, 1e-6)

	sess.ApplyOneInput(e) // queue empty now
	assert.InDelta(t, 10.0, e.Pose.CameraYawDeg, 1e-6)
}

func TestSession_ApplyOneInput_ClampsPitch(t *testing.T) {
	store := entity.NewStore()
	e := store.Create(entity.Pose{}, entity.Tags{Moving: true, PlayerControlled: true})
	sess := NewSession(0, "carl", protocol.CurrentVersion, e.ID, func(protocol.Opcode, []byte) {})

	sess.Inputs.Enqueue(protocol.PlayerInputs{Index: 1, Pitch: 200})
	sess.ApplyOneInput(e)
	assert.Equal(t, float32(protocol.MaxCameraPitchDeg), e.Pose.CameraPitchDeg)
}

// §4.7: multiple block edits to the same chunk within a tick coalesce
// into a single collider rebuild.
func TestChunkEntityBridge_CoalescesEditsIntoOneRebuildPerTick(t *testing.T) {
	lib := block.NewDefaultLibrary()
	ch := newTestChunk(lib, vec.Vec3{})
	world := newFakeWorld()
	bridge := NewChunkEntityBridge(world, 1)

	bridge.Track(ch)
	assert.Equal(t, 1, bridge.DirtyCount())
	bridge.SyncColliders()
	assert.Equal(t, 0, world.adds) // initial build: empty chunk, no boxes, no body

	dirt := lib.IndexOf("dirt")
	ch.UpdateBlock(vec.Vec3u{X: 0, Y: 0, Z: 0}, dirt)
	ch.UpdateBlock(vec.Vec3u{X: 1, Y: 0, Z: 0}, dirt)
	ch.UpdateBlock(vec.Vec3u{X: 2, Y: 0, Z: 0}, dirt)
	assert.Equal(t, 1, bridge.DirtyCount())

	bridge.SyncColliders()
	assert.Equal(t, 1, world.adds) // exactly one rebuild, not three
	assert.Equal(t, 0, bridge.DirtyCount())
}

func TestChunkEntityBridge_UntrackRemovesBody(t *testing.T) {
	lib := block.NewDefaultLibrary()
	ch := newTestChunk(lib, vec.Vec3{})
	dirt := lib.IndexOf("dirt")
	ch.UpdateBlock(vec.Vec3u{X: 0, Y: 0, Z: 0}, dirt)

	world := newFakeWorld()
	bridge := NewChunkEntityBridge(world, 1)
	bridge.Track(ch)
	bridge.SyncColliders()
	require.Equal(t, 1, world.adds)

	bridge.Untrack(ch)
	assert.Equal(t, 1, world.removes)
}

func TestInputQueue_FIFO(t *testing.T) {
	var q InputQueue
	q.Enqueue(protocol.PlayerInputs{Index: 1})
	q.Enqueue(protocol.PlayerInputs{Index: 2})

	first, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, uint8(1), first.Index)

	second, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, uint8(2), second.Index)

	_, ok = q.Pop()
	assert.False(t, ok)
}

// Smoke-tests that a server built over a tiny planet can join a player,
// run a handful of ticks, and produce no panics while streaming chunks
// and consuming inputs — not a full integration test of networking,
// just the wiring between entity store, visibility and the bridge.
func TestServer_TickProducesNoPanicsWithOneSession(t *testing.T) {
	lib := block.NewDefaultLibrary()
	planet := container.NewPlanet(lib, 1, vec.Vec3{X: 2, Y: 2, Z: 2}, 8, 9.8)

	dir := t.TempDir()
	chunks := persistence.NewChunkStore(dir)
	meta, err := persistence.NewMetadataStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { meta.Close() })

	cfg := &config.WorldConfig{ViewDistanceChunks: 1, SaveIntervalS: 3600}
	srv := New(cfg, lib, planet, newFakeWorld(), chunks, meta)

	var sent []protocol.Opcode
	sess := srv.Join("dana", protocol.CurrentVersion, func(op protocol.Opcode, _ []byte) {
		sent = append(sent, op)
	})
	require.NotNil(t, sess)

	sess.Inputs.Enqueue(protocol.PlayerInputs{Index: 1, MoveForward: true})

	srv.tick()
	srv.tick()

	assert.NotEmpty(t, sent, "expected at least one packet from the first dispatch")
}

// A freshly joined session must learn which environment it's in before
// anything else, so a client never sees an EntityEnvironmentUpdate
// referencing an environment id it hasn't heard of yet.
func TestServer_Join_SendsEnvironmentInfoBeforeAnythingElse(t *testing.T) {
	lib := block.NewDefaultLibrary()
	planet := container.NewPlanet(lib, 1, vec.Vec3{X: 2, Y: 2, Z: 2}, 8, 9.8)

	dir := t.TempDir()
	chunks := persistence.NewChunkStore(dir)
	meta, err := persistence.NewMetadataStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { meta.Close() })

	cfg := &config.WorldConfig{ViewDistanceChunks: 0, SaveIntervalS: 3600}
	srv := New(cfg, lib, planet, newFakeWorld(), chunks, meta)

	var sent []protocol.Opcode
	srv.Join("remy", protocol.CurrentVersion, func(op protocol.Opcode, _ []byte) {
		sent = append(sent, op)
	})

	require.GreaterOrEqual(t, len(sent), 3)
	assert.Equal(t, protocol.OpEnvironmentCreate, sent[0])
	assert.Equal(t, protocol.OpUpdateRootEnvironment, sent[1])
	assert.Equal(t, protocol.OpEntityEnvironmentUpdate, sent[2])
}

// A reconnecting player whose placement is already in the hot cache
// must resume there without ever touching the metadata store, and a
// cache miss must backfill the cache so the following reconnect does.
func TestServer_LookupPlayerRecord_CacheReadThrough(t *testing.T) {
	lib := block.NewDefaultLibrary()
	planet := container.NewPlanet(lib, 1, vec.Vec3{X: 2, Y: 2, Z: 2}, 8, 9.8)

	dir := t.TempDir()
	chunks := persistence.NewChunkStore(dir)
	meta, err := persistence.NewMetadataStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { meta.Close() })

	cfg := &config.WorldConfig{ViewDistanceChunks: 0, SaveIntervalS: 3600}
	srv := New(cfg, lib, planet, newFakeWorld(), chunks, meta)

	fc := newFakeCacheRepo()
	srv.UseCache(fc)

	require.NoError(t, meta.SavePlayer(persistence.PlayerRecord{
		Nickname: "remy",
		Position: vec.Vec3Float{X: 1, Y: 2, Z: 3},
	}))

	rec, found := srv.lookupPlayerRecord("remy")
	require.True(t, found)
	assert.Equal(t, vec.Vec3Float{X: 1, Y: 2, Z: 3}, rec.Position)
	assert.Equal(t, 1, fc.sets, "a cache miss must backfill the cache")

	rec2, found2 := srv.lookupPlayerRecord("remy")
	require.True(t, found2)
	assert.Equal(t, rec.Position, rec2.Position)
	assert.Equal(t, 1, fc.sets, "a cache hit must not write again")

	_, found3 := srv.lookupPlayerRecord("nobody")
	assert.False(t, found3)
}
