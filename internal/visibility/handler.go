// Package visibility implements the per-session bookkeeping that turns
// raw world mutations (chunks entering/leaving range, entities spawning,
// blocks changing) into the bounded set of packets one client needs each
// tick (spec.md §4.2 — "the hardest component"). A Handler never talks
// to the network directly: Dispatch returns what should be sent, and the
// caller (internal/network/internal/server) is responsible for framing
// and actually writing bytes.
package visibility

import (
	"sort"

	"github.com/annel0/mmo-game/internal/entity"
	"github.com/annel0/mmo-game/internal/protocol"
	"github.com/annel0/mmo-game/internal/util"
	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/world/chunk"
)

// MaxConcurrentChunkUpdate bounds how many ChunkReset packets a session
// may have unacknowledged at once (§4.2 "bandwidth cap").
const MaxConcurrentChunkUpdate = 3

type chunkState struct {
	chunk      *chunk.Chunk
	indices    vec.Vec3
	blockToken chunk.SubscriptionToken
	resetToken chunk.SubscriptionToken
	pending    []protocol.BlockEdit
}

// insertPending merges an edit into state.pending, keeping it sorted by
// position and overwriting an existing entry at the same position
// (§4.2: "insertion-sort-merge by blockPos ... overwrite if same
// position exists").
func (s *chunkState) insertPending(edit protocol.BlockEdit) {
	key := vec.Vec3{X: int(edit.Position.X), Y: int(edit.Position.Y), Z: int(edit.Position.Z)}
	for i := range s.pending {
		ik := vec.Vec3{X: int(s.pending[i].Position.X), Y: int(s.pending[i].Position.Y), Z: int(s.pending[i].Position.Z)}
		if ik == key {
			s.pending[i] = edit
			return
		}
		if key.Less(ik) {
			s.pending = append(s.pending, protocol.BlockEdit{})
			copy(s.pending[i+1:], s.pending[i:])
			s.pending[i] = edit
			return
		}
	}
	s.pending = append(s.pending, edit)
}

// Handler is one session's visibility state. It is not safe for
// concurrent use — like every other piece of per-tick state in this
// engine, it is owned by the single-threaded simulation loop (§5).
type Handler struct {
	chunkIndex   map[vec.Vec3]uint16
	chunks       map[uint16]*chunkState
	newlyVisible *util.Bitset
	newlyHidden  *util.Bitset
	reset        *util.Bitset
	updated      *util.Bitset
	freeChunkIDs *util.Bitset

	entityToNetwork map[entity.ID]uint32
	networkToEntity map[uint32]entity.ID
	pendingCreate   map[uint32]bool // networkID -> moving, not yet dispatched
	liveEntities    map[uint32]bool // networkID -> moving, already dispatched as created
	deletedEntities []uint32
	freeEntityIDs   *util.Bitset

	hasController      bool
	controlledEntityID entity.ID
	lastInputIndex     uint8

	activeChunkUpdates int
}

func NewHandler() *Handler {
	return &Handler{
		chunkIndex:      make(map[vec.Vec3]uint16),
		chunks:          make(map[uint16]*chunkState),
		newlyVisible:    util.NewBitset(),
		newlyHidden:     util.NewBitset(),
		reset:           util.NewBitset(),
		updated:         util.NewBitset(),
		freeChunkIDs:    util.NewBitset(),
		entityToNetwork: make(map[entity.ID]uint32),
		networkToEntity: make(map[uint32]entity.ID),
		pendingCreate:   make(map[uint32]bool),
		liveEntities:    make(map[uint32]bool),
		freeEntityIDs:   util.NewBitset(),
	}
}

// CreateChunk marks ch as visible to this session, returning its network
// id. If the chunk was hidden earlier this same tick (never actually
// dispatched as destroyed), its id is resurrected instead of allocating
// a new one (§4.2: "resurrect if newlyHidden this tick").
func (h *Handler) CreateChunk(ch *chunk.Chunk) uint16 {
	idx := ch.Indices()
	if id, ok := h.chunkIndex[idx]; ok && h.newlyHidden.Test(int(id)) {
		h.newlyHidden.Reset(int(id))
		h.newlyVisible.Set(int(id))
		h.reset.Set(int(id))
		h.chunks[id].chunk = ch
		return id
	}

	id := uint16(h.freeChunkIDs.FindFirstUnset())
	h.freeChunkIDs.Set(int(id))

	state := &chunkState{chunk: ch, indices: idx}
	state.blockToken = ch.OnBlockUpdated.Subscribe(func(u chunk.BlockUpdated) {
		h.onBlockUpdated(id, u)
	})
	state.resetToken = ch.OnReset.Subscribe(func(struct{}) {
		h.onChunkReset(id)
	})
	h.chunks[id] = state
	h.chunkIndex[idx] = id
	h.newlyVisible.Set(int(id))
	h.reset.Set(int(id))
	return id
}

// DestroyChunk marks ch as no longer visible to this session. A chunk
// that was created and destroyed within the same tick (never dispatched)
// is forgotten immediately and its id returned to the pool — it produces
// no packets at all (§8 scenario S2 and property: create+destroy same
// tick yields zero packets).
func (h *Handler) DestroyChunk(ch *chunk.Chunk) {
	idx := ch.Indices()
	id, ok := h.chunkIndex[idx]
	if !ok {
		panic("visibility: destroy of chunk never created for this session")
	}
	if h.newlyVisible.Test(int(id)) {
		h.forgetChunk(id)
		return
	}
	h.newlyHidden.Set(int(id))
}

func (h *Handler) forgetChunk(id uint16) {
	state := h.chunks[id]
	state.chunk.OnBlockUpdated.Unsubscribe(state.blockToken)
	state.chunk.OnReset.Unsubscribe(state.resetToken)
	delete(h.chunks, id)
	delete(h.chunkIndex, state.indices)
	h.newlyVisible.Reset(int(id))
	h.newlyHidden.Reset(int(id))
	h.reset.Reset(int(id))
	h.updated.Reset(int(id))
	h.freeChunkIDs.Reset(int(id))
}

func (h *Handler) onBlockUpdated(id uint16, u chunk.BlockUpdated) {
	if h.reset.Test(int(id)) {
		return // reset dominates: a full resend is already pending
	}
	state, ok := h.chunks[id]
	if !ok {
		return
	}
	state.insertPending(protocol.BlockEdit{Position: u.Indices, NewBlock: uint8(u.NewBlock)})
	h.updated.Set(int(id))
}

func (h *Handler) onChunkReset(id uint16) {
	state, ok := h.chunks[id]
	if !ok {
		return
	}
	state.pending = nil
	h.updated.Reset(int(id))
	h.reset.Set(int(id))
}

// CreateEntity records a new entity in this session's visibility set.
func (h *Handler) CreateEntity(id entity.ID, moving bool) uint32 {
	netID := uint32(h.freeEntityIDs.FindFirstUnset())
	h.freeEntityIDs.Set(int(netID))
	h.entityToNetwork[id] = netID
	h.networkToEntity[netID] = id
	h.pendingCreate[netID] = moving
	return netID
}

// DestroyEntity forgets id. If it was created and never dispatched this
// tick, its network id is freed immediately with no DeleteEntity packet
// ever produced (mirrors the chunk create+destroy collapse).
func (h *Handler) DestroyEntity(id entity.ID) {
	netID, ok := h.entityToNetwork[id]
	if !ok {
		panic("visibility: destroy of entity never created for this session")
	}
	delete(h.entityToNetwork, id)
	delete(h.networkToEntity, netID)

	if _, pending := h.pendingCreate[netID]; pending {
		delete(h.pendingCreate, netID)
		h.freeEntityIDs.Reset(int(netID))
		return
	}
	delete(h.liveEntities, netID)
	h.deletedEntities = append(h.deletedEntities, netID)
	if h.hasController && h.controlledEntityID == id {
		h.hasController = false
	}
}

// SetControlledEntity marks id as the character this session controls;
// its pose is included in every EntitiesStateUpdate.
func (h *Handler) SetControlledEntity(id entity.ID) {
	h.hasController = true
	h.controlledEntityID = id
}

// AckInput records the index of the latest PlayerInputs the server has
// consumed for this session's controlled character.
func (h *Handler) AckInput(index uint8) {
	h.lastInputIndex = index
}

// LastAckedInput returns the index most recently passed to AckInput.
func (h *Handler) LastAckedInput() uint8 {
	return h.lastInputIndex
}

// AckChunkReset must be called once the transport confirms delivery of a
// ChunkReset for networkID, freeing a slot in the bandwidth cap for the
// next dispatch.
func (h *Handler) AckChunkReset(networkID uint16) {
	if h.activeChunkUpdates > 0 {
		h.activeChunkUpdates--
	}
}

// Dispatch produces this tick's packets in the fixed order spec.md §4.2
// mandates: entity deletes, entity creates, chunk destroys, chunk
// creates, chunk resets (bandwidth-gated), chunk incremental updates,
// entity state update. encodeChunk renders a chunk's ChunkCreate body
// (already version/LZ4 gated by the caller); lookupPose resolves a live
// moving entity's current pose for the final EntitiesStateUpdate.
type EncodeChunkFunc func(ch *chunk.Chunk) (protocol.ChunkCreate, error)
type LookupPoseFunc func(entity.ID) (entity.Pose, bool)

// Packet is one packet produced by Dispatch this tick, already
// opcode-tagged and body-encoded, ready for the session to hand to its
// reactor.
type Packet struct {
	Opcode protocol.Opcode
	Body   []byte
}

func (h *Handler) Dispatch(originPosition vec.Vec3Float, encodeChunk EncodeChunkFunc, lookupPose LookupPoseFunc) ([]Packet, error) {
	var out []Packet

	if len(h.deletedEntities) > 0 {
		out = append(out, Packet{protocol.OpEntitiesDelete, protocol.EntitiesDelete{NetworkIDs: h.deletedEntities}.Encode()})
		for _, netID := range h.deletedEntities {
			h.freeEntityIDs.Reset(int(netID))
		}
		h.deletedEntities = nil
	}

	if len(h.pendingCreate) > 0 {
		creates := make([]protocol.EntityCreate, 0, len(h.pendingCreate))
		ids := make([]uint32, 0, len(h.pendingCreate))
		for netID := range h.pendingCreate {
			ids = append(ids, netID)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, netID := range ids {
			moving := h.pendingCreate[netID]
			creates = append(creates, protocol.EntityCreate{NetworkID: netID, Moving: moving})
			h.liveEntities[netID] = moving
		}
		h.pendingCreate = make(map[uint32]bool)
		out = append(out, Packet{protocol.OpEntitiesCreation, protocol.EntitiesCreation{Entities: creates}.Encode()})
	}

	var destroyedIDs []uint16
	h.newlyHidden.ForEachSet(func(i int) { destroyedIDs = append(destroyedIDs, uint16(i)) })
	for _, id := range destroyedIDs {
		out = append(out, Packet{protocol.OpChunkDestroy, protocol.ChunkDestroy{NetworkID: id}.Encode()})
		h.forgetChunk(id)
	}

	var createdIDs []uint16
	h.newlyVisible.ForEachSet(func(i int) { createdIDs = append(createdIDs, uint16(i)) })
	for _, id := range createdIDs {
		state := h.chunks[id]
		body, err := encodeChunk(state.chunk)
		if err != nil {
			return nil, err
		}
		body.NetworkID = id
		out = append(out, Packet{protocol.OpChunkCreate, body.Encode()})
		h.newlyVisible.Reset(int(id))
		h.reset.Reset(int(id)) // the create body is already a full, fresh snapshot
	}

	budget := MaxConcurrentChunkUpdate - h.activeChunkUpdates
	if budget > 0 {
		var candidates []uint16
		h.reset.ForEachSet(func(i int) { candidates = append(candidates, uint16(i)) })
		sort.Slice(candidates, func(i, j int) bool {
			return h.squaredDistanceTo(candidates[i], originPosition) < h.squaredDistanceTo(candidates[j], originPosition)
		})
		if len(candidates) > budget {
			candidates = candidates[:budget]
		}
		for _, id := range candidates {
			state := h.chunks[id]
			body, err := encodeChunk(state.chunk)
			if err != nil {
				return nil, err
			}
			body.NetworkID = id
			out = append(out, Packet{protocol.OpChunkReset, body.Encode()})
			h.reset.Reset(int(id))
			state.pending = nil
			h.updated.Reset(int(id))
			h.activeChunkUpdates++
		}
	}

	var updatedIDs []uint16
	h.updated.ForEachSet(func(i int) { updatedIDs = append(updatedIDs, uint16(i)) })
	for _, id := range updatedIDs {
		state := h.chunks[id]
		if len(state.pending) == 0 {
			h.updated.Reset(int(id))
			continue
		}
		out = append(out, Packet{protocol.OpChunkUpdate, protocol.ChunkUpdate{NetworkID: id, Edits: state.pending}.Encode()})
		state.pending = nil
		h.updated.Reset(int(id))
	}

	if stateUpdate, ok := h.buildEntitiesStateUpdate(lookupPose); ok {
		out = append(out, Packet{protocol.OpEntitiesStateUpdate, stateUpdate.Encode()})
	}

	return out, nil
}

func (h *Handler) squaredDistanceTo(id uint16, origin vec.Vec3Float) float64 {
	state := h.chunks[id]
	size := state.chunk.Size()
	blockSize := float64(state.chunk.BlockSize())
	center := vec.Vec3Float{
		X: (float64(state.indices.X)*float64(size.X) + float64(size.X)*0.5) * blockSize,
		Y: (float64(state.indices.Y)*float64(size.Y) + float64(size.Y)*0.5) * blockSize,
		Z: (float64(state.indices.Z)*float64(size.Z) + float64(size.Z)*0.5) * blockSize,
	}
	dx := center.X - origin.X
	dy := center.Y - origin.Y
	dz := center.Z - origin.Z
	return dx*dx + dy*dy + dz*dz
}

// buildEntitiesStateUpdate reports ok=false when there is nothing worth
// sending: no controller and no moving entities (§4.2: "suppress packet
// if neither controlled character nor entities present").
func (h *Handler) buildEntitiesStateUpdate(lookupPose LookupPoseFunc) (protocol.EntitiesStateUpdate, bool) {
	var out protocol.EntitiesStateUpdate

	if h.hasController {
		pose, ok := lookupPose(h.controlledEntityID)
		if ok {
			out.HasController = true
			out.LastInputIndex = h.lastInputIndex
			out.Position = pose.Position
			out.ReferenceYawDeg = pose.ReferenceYawDeg
			out.CameraPitchDeg = pose.CameraPitchDeg
			out.CameraYawDeg = pose.CameraYawDeg
		}
	}

	for netID, moving := range h.liveEntities {
		if !moving {
			continue
		}
		id, ok := h.networkToEntity[netID]
		if !ok {
			continue
		}
		pose, ok := lookupPose(id)
		if !ok {
			continue
		}
		out.MovingEntities = append(out.MovingEntities, protocol.MovingEntityState{
			NetworkID: netID,
			Position:  pose.Position,
			YawDeg:    pose.Rotation(),
		})
	}
	sort.Slice(out.MovingEntities, func(i, j int) bool {
		return out.MovingEntities[i].NetworkID < out.MovingEntities[j].NetworkID
	})

	if !out.HasController && len(out.MovingEntities) == 0 {
		return out, false
	}
	return out, true
}
