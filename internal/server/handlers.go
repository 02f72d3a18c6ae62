package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/annel0/mmo-game/internal/entity"
	"github.com/annel0/mmo-game/internal/persistence"
	"github.com/annel0/mmo-game/internal/protocol"
	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/world/block"
	"github.com/annel0/mmo-game/internal/world/container"
)

const playerCacheTTL = 5 * time.Minute

// rootEnvironmentNetworkID identifies the single planet this server
// hosts. Multiple environments (e.g. an orbital station alongside a
// planet) would each get their own id and their own EnvironmentCreate,
// but this server only ever constructs one Planet.
const rootEnvironmentNetworkID = 1

// Join authenticates a new player and creates their session and
// controlled entity. The caller (internal/network's session handler)
// is responsible for having already validated the AuthRequest; Join
// only does the game-state half of accepting a player.
func (s *Server) Join(nickname string, protocolVersion protocol.Version, send SendFunc) *Session {
	spawn := s.planet.Center()
	if rec, found := s.lookupPlayerRecord(nickname); found {
		spawn = rec.Position
	}

	e := s.entities.Create(entity.Pose{
		Position:  spawn,
		GravityUp: s.planet.ComputeUpDirection(spawn),
	}, entity.Tags{Moving: true, Replicated: true, PlayerControlled: true})

	playerIndex := uint16(s.freePlayerIDs.FindFirstUnset())
	s.freePlayerIDs.Set(int(playerIndex))

	sess := NewSession(playerIndex, nickname, protocolVersion, e.ID, send)
	sess.Visibility.SetControlledEntity(e.ID)
	s.sessions[playerIndex] = sess

	s.streamChunksAround(sess, spawn)
	s.sendEnvironmentInfo(sess, e.ID)

	s.log.Info("player %q joined as index %d, entity %d", nickname, playerIndex, e.ID)
	return sess
}

// sendEnvironmentInfo tells a freshly joined session which environment
// (planet) it's in before any chunk or entity traffic references it, so
// a client never has to buffer EntityEnvironmentUpdate against an
// environment it hasn't heard of yet.
func (s *Server) sendEnvironmentInfo(sess *Session, entityID entity.ID) {
	sess.Send(protocol.OpEnvironmentCreate, protocol.EnvironmentCreate{
		NetworkID:    rootEnvironmentNetworkID,
		TileSize:     s.planet.BlockSize(),
		CornerRadius: float32(s.planet.CornerRadius()),
		Gravity:      float32(s.planet.Gravity()),
	}.Encode())
	sess.Send(protocol.OpUpdateRootEnvironment, protocol.UpdateRootEnvironment{
		EnvironmentNetworkID: rootEnvironmentNetworkID,
	}.Encode())
	sess.Send(protocol.OpEntityEnvironmentUpdate, protocol.EntityEnvironmentUpdate{
		EntityNetworkID:      uint32(entityID),
		EnvironmentNetworkID: rootEnvironmentNetworkID,
	}.Encode())
}

// lookupPlayerRecord checks the optional hot cache before falling back
// to the embedded metadata store, and backfills the cache on a miss so
// the next reconnect for the same nickname skips the disk read.
func (s *Server) lookupPlayerRecord(nickname string) (persistence.PlayerRecord, bool) {
	ctx := context.Background()
	if s.playerCache != nil {
		if data, err := s.playerCache.Get(ctx, nickname); err == nil {
			var rec persistence.PlayerRecord
			if json.Unmarshal(data, &rec) == nil {
				return rec, true
			}
		}
	}

	rec, found, err := s.meta.LoadPlayer(nickname)
	if err != nil || !found {
		return persistence.PlayerRecord{}, false
	}
	if s.playerCache != nil {
		if data, err := json.Marshal(rec); err == nil {
			_ = s.playerCache.Set(ctx, nickname, data, playerCacheTTL)
		}
	}
	return rec, true
}

// Leave tears down a session: its placement is saved (metadata store,
// plus the player cache when attached), its entity is destroyed, and
// the session and its player index are released. Its chunks are not
// hidden through the visibility handler.
func (s *Server) Leave(playerIndex uint16) {
	sess, ok := s.sessions[playerIndex]
	if !ok {
		return
	}
	if e, ok := s.entities.Get(sess.EntityID); ok {
		rec := persistence.PlayerRecord{
			Nickname:        sess.Nickname,
			Position:        e.Pose.Position,
			ReferenceYawDeg: e.Pose.ReferenceYawDeg,
		}
		_ = s.meta.SavePlayer(rec)
		if s.playerCache != nil {
			if data, err := json.Marshal(rec); err == nil {
				_ = s.playerCache.Set(context.Background(), sess.Nickname, data, playerCacheTTL)
			}
		}
		s.entities.Destroy(sess.EntityID)
	}
	delete(s.sessions, playerIndex)
	s.freePlayerIDs.Reset(int(playerIndex))
	s.log.Info("player %q (index %d) left", sess.Nickname, playerIndex)
}

// HandlePlayerInputs enqueues a received sample on the session's FIFO.
// Out-of-order or duplicate network delivery is the transport's problem
// (§5: "reliable packets arrive exactly once" on ordered channels);
// UpdatePlayerInputs rides the unreliable channel, so a dropped or
// reordered sample is simply never enqueued or enqueued late, both of
// which the FIFO consumption rule already tolerates.
func (s *Server) HandlePlayerInputs(playerIndex uint16, in protocol.PlayerInputs) {
	sess, ok := s.sessions[playerIndex]
	if !ok {
		return
	}
	sess.Inputs.Enqueue(in)
}

// HandleMineBlock validates and applies a mine request. Invalid targets
// (out of range, already empty) are silently ignored — the server
// remains the source of truth and a later ChunkUpdate will correct any
// client-side misprediction (§7 Validation error).
func (s *Server) HandleMineBlock(m protocol.MineBlock) {
	chunkIdx, local := container.ChunkIndicesOfBlock(m.Position)
	ch := s.planet.GetChunk(chunkIdx)
	if ch == nil {
		return
	}
	if ch.GetBlock(local) == block.Empty {
		return
	}
	ch.UpdateBlock(local, block.Empty)
}

// HandlePlaceBlock validates and applies a place request: the target
// cell must currently be empty and the block index must be known to the
// library.
func (s *Server) HandlePlaceBlock(p protocol.PlaceBlock) {
	chunkIdx, local := container.ChunkIndicesOfBlock(p.Position)
	ch := s.planet.GetChunk(chunkIdx)
	if ch == nil {
		return
	}
	if ch.GetBlock(local) != block.Empty {
		return
	}
	if _, ok := s.lib.Get(block.Index(p.Block)); !ok {
		return
	}
	ch.UpdateBlock(local, block.Index(p.Block))
}

// streamChunksAround loads every chunk within the server's configured
// view distance of position and marks it visible on sess, the initial
// fill a freshly joined (or teleported) session needs before its first
// Dispatch.
func (s *Server) streamChunksAround(sess *Session, position vec.Vec3Float) {
	center, _ := container.ChunkIndicesOfBlock(vec.Vec3{
		X: int(position.X / float64(s.planet.BlockSize())),
		Y: int(position.Y / float64(s.planet.BlockSize())),
		Z: int(position.Z / float64(s.planet.BlockSize())),
	})

	d := s.viewDistance
	for x := -d; x <= d; x++ {
		for y := -d; y <= d; y++ {
			for z := -d; z <= d; z++ {
				idx := vec.Vec3{X: center.X + x, Y: center.Y + y, Z: center.Z + z}
				ch := s.LoadOrGenerateChunk(idx)
				sess.Visibility.CreateChunk(ch)
			}
		}
	}
}
