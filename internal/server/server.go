// Package server implements the authoritative simulation loop: the
// fixed-step tick accumulator, per-player input consumption, the chunk
// entity bridge, and periodic persistence (spec.md §4.5, §4.7).
package server

import (
	"context"
	"time"

	"github.com/annel0/mmo-game/internal/cache"
	"github.com/annel0/mmo-game/internal/config"
	"github.com/annel0/mmo-game/internal/entity"
	"github.com/annel0/mmo-game/internal/logging"
	"github.com/annel0/mmo-game/internal/persistence"
	"github.com/annel0/mmo-game/internal/physics"
	"github.com/annel0/mmo-game/internal/protocol"
	"github.com/annel0/mmo-game/internal/util"
	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/world/block"
	"github.com/annel0/mmo-game/internal/world/chunk"
	"github.com/annel0/mmo-game/internal/world/container"
)

// tickDuration is the fixed step spec.md §4.5 fixes at ~33ms (30Hz).
const tickDuration = time.Second / 30

// idleSleep is how long the loop sleeps between accumulator checks when
// no session is connected, avoiding a busy spin (§4.5).
const idleSleep = 100 * time.Millisecond

// Server owns the authoritative world state and every connected
// session. It is driven exclusively by Run's tick loop; nothing else
// may mutate sessions, the entity store or the chunk container
// concurrently (§5 threading model).
type Server struct {
	log *logging.Logger

	planet   *container.Planet
	lib      *block.Library
	entities *entity.Store
	bridge   *ChunkEntityBridge
	physics  physics.World

	chunks      *persistence.ChunkStore
	meta        *persistence.MetadataStore
	playerCache cache.CacheRepo

	sessions      map[uint16]*Session
	freePlayerIDs *util.Bitset
	viewDistance  int
	saveInterval  time.Duration
	sinceLastSave time.Duration
	tickIndex     uint16
	seed          int64
}

// New creates a server over an already-populated planet. world may be
// nil, in which case the chunk entity bridge tracks dirtiness but never
// touches a physics engine (§6: physics is a consumed interface).
func New(cfg *config.WorldConfig, lib *block.Library, planet *container.Planet, world physics.World, chunks *persistence.ChunkStore, meta *persistence.MetadataStore) *Server {
	s := &Server{
		log:           logging.GetComponentLogger("server"),
		planet:        planet,
		lib:           lib,
		entities:      entity.NewStore(),
		bridge:        NewChunkEntityBridge(world, planet.BlockSize()),
		physics:       world,
		chunks:        chunks,
		meta:          meta,
		sessions:      make(map[uint16]*Session),
		freePlayerIDs: util.NewBitset(),
		viewDistance:  cfg.GetViewDistanceChunks(),
		saveInterval:  time.Duration(cfg.GetSaveInterval()) * time.Second,
		seed:          cfg.Seed,
	}

	planet.OnChunkAdded.Subscribe(func(idx vec.Vec3) {
		if ch := planet.GetChunk(idx); ch != nil {
			s.bridge.Track(ch)
		}
	})

	return s
}

// UseCache attaches an optional hot-read cache in front of player
// placement lookups (Join always still falls back to meta on a miss or
// with no cache attached at all).
func (s *Server) UseCache(c cache.CacheRepo) {
	s.playerCache = c
}

// Run blocks, driving the fixed-step tick loop until ctx is cancelled.
// elapsed is measured with a monotonic clock between iterations, the
// same accumulator pattern as the teacher's ticker-driven loops, just
// expressed without a fixed-rate ticker so idle sleeps can be longer
// than one tick when no session is connected.
func (s *Server) Run(ctx context.Context) {
	var accumulator time.Duration
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		default:
		}

		now := time.Now()
		elapsed := now.Sub(last)
		last = now

		if len(s.sessions) == 0 {
			time.Sleep(idleSleep)
			continue
		}

		accumulator += elapsed
		for accumulator >= tickDuration {
			s.tick()
			accumulator -= tickDuration
		}

		s.sinceLastSave += elapsed
		if s.sinceLastSave >= s.saveInterval {
			s.saveDirtyChunks()
			s.sinceLastSave = 0
		}
	}
}

// tick runs exactly one fixed-step iteration: §4.5's accumulator body.
func (s *Server) tick() {
	s.tickIndex++

	for _, sess := range s.sessions {
		e, ok := s.entities.Get(sess.EntityID)
		if !ok {
			continue
		}
		sess.ApplyOneInput(e)
	}

	s.bridge.SyncColliders()

	if s.physics != nil {
		if err := s.physics.Step(context.Background(), tickDuration); err != nil {
			s.log.Error("physics step failed: %v", err)
		}
	}

	for _, sess := range s.sessions {
		sess.PostSimulate()
	}

	for _, sess := range s.sessions {
		s.dispatch(sess)
	}
}

func (s *Server) dispatch(sess *Session) {
	e, ok := s.entities.Get(sess.EntityID)
	origin := vec.Vec3Float{}
	if ok {
		origin = e.Pose.Position
	}

	encodeChunk := func(ch *chunk.Chunk) (protocol.ChunkCreate, error) {
		body, err := protocol.EncodeChunkBody(ch, sess.ProtocolVersion)
		if err != nil {
			return protocol.ChunkCreate{}, err
		}
		return protocol.ChunkCreate{
			Indices:  ch.Indices(),
			Size:     ch.Size(),
			TileSize: ch.BlockSize(),
			Body:     body,
		}, nil
	}
	lookupPose := func(id entity.ID) (entity.Pose, bool) {
		ent, ok := s.entities.Get(id)
		if !ok {
			return entity.Pose{}, false
		}
		return ent.Pose, true
	}

	packets, err := sess.Visibility.Dispatch(origin, encodeChunk, lookupPose)
	if err != nil {
		s.log.Error("session %d dispatch failed: %v", sess.PlayerIndex, err)
		return
	}
	for _, p := range packets {
		sess.Send(p.Opcode, p.Body)
	}
}

// saveDirtyChunks persists every loaded chunk. Failures are logged and
// left for the next interval (§7 Persistence error).
func (s *Server) saveDirtyChunks() {
	s.planet.ForEachChunk(func(_ vec.Vec3, ch *chunk.Chunk) {
		if err := s.chunks.Save(ch); err != nil {
			s.log.Error("save chunk %v failed: %v", ch.Indices(), err)
		}
	})
	if err := s.meta.SaveLastTick(s.tickIndex); err != nil {
		s.log.Error("save last tick failed: %v", err)
	}
}

func (s *Server) shutdown() {
	s.saveDirtyChunks()
	s.log.Info("tick loop stopped at tick %d", s.tickIndex)
}

// LoadOrGenerateChunk returns the chunk at indices, loading it from disk
// if a save exists and generating fresh terrain otherwise (§7: "failed
// chunk read leaves the chunk in its default state and logs").
func (s *Server) LoadOrGenerateChunk(indices vec.Vec3) *chunk.Chunk {
	if ch := s.planet.GetChunk(indices); ch != nil {
		return ch
	}

	ch := chunk.New(s.lib, indices, vec.Vec3u{X: container.ChunkSize, Y: container.ChunkSize, Z: container.ChunkSize}, s.planet.BlockSize())
	s.planet.AddChunk(indices, ch)

	if s.chunks.Exists(indices) {
		if err := s.chunks.Load(indices, ch, s.lib); err != nil {
			s.log.Error("load chunk %v failed, using default state: %v", indices, err)
		}
		return ch
	}

	s.planet.GenerateChunk(s.seed, indices, ch)
	return ch
}

// UnloadChunk removes a chunk no session needs anymore.
func (s *Server) UnloadChunk(indices vec.Vec3) {
	ch := s.planet.GetChunk(indices)
	if ch == nil {
		return
	}
	s.bridge.Untrack(ch)
	s.planet.RemoveChunk(indices)
}
