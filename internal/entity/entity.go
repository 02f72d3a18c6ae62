// Package entity holds the plain struct-of-components store backing
// every network-visible object in the world: player characters, moving
// creatures, and anything else the visibility handler must replicate.
// There is no behavior-plugin layer here — movement and AI live in
// internal/server, which mutates components directly each tick (§9
// design note: "ECS → plain struct-of-components store with component
// bitsets for position/rotation + moving/replicated/player-controlled
// tags").
package entity

import (
	"github.com/annel0/mmo-game/internal/util"
	"github.com/annel0/mmo-game/internal/vec"
)

// ID identifies an entity for the lifetime of the store; ids are never
// reused while an entity is alive but are recycled once Store.Destroy
// frees them, the same free-list pattern as chunk network ids.
type ID uint32

// Pose is the position/rotation component shared by every entity in the
// store. ReferenceRotation and camera angles only matter for
// player-controlled entities, but keeping a uniform component avoids a
// second parallel array for the common position+yaw case.
type Pose struct {
	Position          vec.Vec3Float
	ReferenceYawDeg   float32
	CameraPitchDeg    float32
	CameraYawDeg      float32
	GravityUp         vec.Vec3Float
}

// Tags records which optional behaviors apply to an entity. Moving means
// the visibility handler replicates this entity's Pose every tick;
// Replicated means it appears in EntitiesCreation/Delete at all (a
// purely server-side marker entity would not be); PlayerControlled means
// its Pose is driven by consumed PlayerInputs rather than AI or physics
// alone.
type Tags struct {
	Moving           bool
	Replicated       bool
	PlayerControlled bool
}

// Entity is one row of the store: identity, pose, and tags. Systems in
// internal/server read and write Pose directly; there is no per-entity
// virtual dispatch.
type Entity struct {
	ID   ID
	Pose Pose
	Tags Tags
}

// Store owns every live entity and the free-list of retired ids.
type Store struct {
	entities map[ID]*Entity
	free     *util.Bitset
	next     ID
}

func NewStore() *Store {
	return &Store{
		entities: make(map[ID]*Entity),
		free:     util.NewBitset(),
	}
}

// Create allocates an id (reusing a freed one when available) and
// inserts e with that id.
func (s *Store) Create(pose Pose, tags Tags) *Entity {
	id := s.allocateID()
	e := &Entity{ID: id, Pose: pose, Tags: tags}
	s.entities[id] = e
	return e
}

func (s *Store) allocateID() ID {
	if i := s.free.FindFirstSet(); i >= 0 {
		s.free.Reset(i)
		return ID(i)
	}
	id := s.next
	s.next++
	return id
}

// Destroy removes e from the store and returns its id to the free list.
func (s *Store) Destroy(id ID) {
	if _, ok := s.entities[id]; !ok {
		panic("entity: destroy of unknown id")
	}
	delete(s.entities, id)
	s.free.Set(int(id))
}

func (s *Store) Get(id ID) (*Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// ForEach visits every live entity in an unspecified order; fn must not
// call Create or Destroy on s.
func (s *Store) ForEach(fn func(*Entity)) {
	for _, e := range s.entities {
		fn(e)
	}
}

// Moving returns every entity tagged Moving, used by the
// visibility handler to build its per-tick EntitiesStateUpdate.
func (s *Store) Moving() []*Entity {
	var out []*Entity
	for _, e := range s.entities {
		if e.Tags.Moving {
			out = append(out, e)
		}
	}
	return out
}

func (p Pose) Rotation() float32 {
	return p.ReferenceYawDeg + p.CameraYawDeg
}
