// Package physics declares the interfaces internal/server consumes for
// rigid-body simulation and character movement (spec.md §6). This
// engine does not ship a physics implementation — a production
// deployment wires in a real engine (Jolt, Bullet, a custom solver)
// behind these interfaces; tests use the in-memory fakes in
// internal/server's test files.
package physics

import (
	"context"
	"time"

	"github.com/annel0/mmo-game/internal/vec"
)

// BodyHandle identifies a body registered with a World. Opaque to
// callers, comparable, zero value means "no body".
type BodyHandle uint64

// BodyKind distinguishes bodies the solver may move (Dynamic) from ones
// that only other bodies collide against (Static) — chunk colliders are
// always Static.
type BodyKind uint8

const (
	Static BodyKind = iota
	Dynamic
)

// BoxShape is a static body's geometry, expressed the way
// chunk.BoxCollider already produces it (§4.1 BuildCollider).
type BoxShape struct {
	Offset vec.Vec3Float
	Size   vec.Vec3Float
}

// RayHit is the result of a World.RaycastFirst query.
type RayHit struct {
	Body     BodyHandle
	Point    vec.Vec3Float
	Normal   vec.Vec3Float
	Distance float64
}

// World is the fixed-step rigid-body simulation spec.md §6 requires:
// zero or variable gravity per region (the Planet's gravity well is not
// uniform), static bodies for chunk colliders, dynamic bodies for
// characters and props, and ray/shape queries for gameplay code (mining
// reach, placement validation).
type World interface {
	// Step advances the simulation by exactly dt; callers own pacing
	// (internal/server's fixed tickDuration accumulator), the World
	// itself is not responsible for wall-clock timing.
	Step(ctx context.Context, dt time.Duration) error

	// AddStaticBody registers an immovable collider (a chunk's built
	// collider, §4.7) at worldOffset and returns its handle. Calling
	// AddStaticBody again for an already-registered chunk without first
	// calling RemoveBody is a programmer error.
	AddStaticBody(worldOffset vec.Vec3Float, boxes []BoxShape) BodyHandle

	// AddDynamicBody registers a movable body (a character or prop).
	AddDynamicBody(position vec.Vec3Float, boxes []BoxShape) BodyHandle

	// RemoveBody unregisters a body added by either Add* method.
	RemoveBody(handle BodyHandle)

	// SetGravity sets the gravitational acceleration vector a dynamic
	// body experiences, letting the Planet's ComputeUpDirection drive a
	// per-body, non-uniform gravity well rather than one global vector.
	SetGravity(handle BodyHandle, gravity vec.Vec3Float)

	// Position reports a dynamic body's current simulated position.
	Position(handle BodyHandle) vec.Vec3Float

	// RaycastFirst returns the closest body hit along the ray, if any.
	RaycastFirst(origin, direction vec.Vec3Float, maxDistance float64) (RayHit, bool)
}

// CharacterController drives one dynamic body's movement each tick
// around the World's own integration step, the two-phase shape spec.md
// §6 names explicitly: PreSimulate applies input-derived desired
// velocity before World.Step, PostSimulate reconciles the body against
// what the solver actually resolved (step-up, ground snapping).
type CharacterController interface {
	PreSimulate(body physicsBodyRef, dt time.Duration)
	PostSimulate(body physicsBodyRef, dt time.Duration)
}

// physicsBodyRef is the argument CharacterController methods receive —
// named distinctly from BodyHandle since a controller typically needs
// more than a bare handle (desired velocity, grounded state, gravity
// up), supplied by whatever concrete controller implementation is wired
// in. Left as a type alias point for the concrete engine to define.
type physicsBodyRef = BodyHandle

// TaskScheduler runs pure, reentrant work (chunk generation, collider
// rebuilding) off the main simulation thread and rejoins results on it
// (§5 Concurrency model: "optional task-pool workers for chunk
// generation/collider build ... results rejoined on main thread").
type TaskScheduler interface {
	// Spawn schedules fn to run on a worker goroutine.
	Spawn(fn func())
	// WaitAll blocks until every Spawn'd fn since the last WaitAll call
	// has returned.
	WaitAll()
}
