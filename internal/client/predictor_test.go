package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/annel0/mmo-game/internal/protocol"
	"github.com/annel0/mmo-game/internal/vec"
)

const testTick = 33 * time.Millisecond

// S5: pitch deltas [+5,+5,+5] predict +15; an ack at index 0 with
// cameraPitch=+5 drops entry 0 and recomputes 5+5+5=15, unchanged.
func TestPredictor_ReconcileRecomputesUnchangedPrediction(t *testing.T) {
	p := NewPredictor(1000) // fast enough that 5 deg/tick is never clamped
	p.AccumulateMouseDelta(5, 0)
	p.BuildInput(MovementFlags{}, testTick) // index 0
	p.AccumulateMouseDelta(5, 0)
	p.BuildInput(MovementFlags{}, testTick) // index 1
	p.AccumulateMouseDelta(5, 0)
	p.BuildInput(MovementFlags{}, testTick) // index 2

	assert.InDelta(t, 15.0, p.Predicted().PitchDeg, 1e-4)

	// The server has consumed only the oldest of the three inputs
	// (index 0) and confirms the pitch delta it produced.
	p.Reconcile(protocol.EntitiesStateUpdate{
		HasController:  true,
		LastInputIndex: 0,
		CameraPitchDeg: 5,
	})

	assert.InDelta(t, 15.0, p.Predicted().PitchDeg, 1e-4)
}

// Property 9: an empty replay list and an acknowledged rotation equal
// to the current prediction leaves the prediction unchanged.
func TestPredictor_ReconcileFixpointWhenReplayEmpty(t *testing.T) {
	p := NewPredictor(1000)
	p.AccumulateMouseDelta(10, 20)
	p.BuildInput(MovementFlags{}, testTick) // index 0

	p.Reconcile(protocol.EntitiesStateUpdate{
		HasController:  true,
		LastInputIndex: 0,
		CameraPitchDeg: p.Predicted().PitchDeg,
		CameraYawDeg:   p.Predicted().YawDeg,
	})
	before := p.Predicted()

	p.Reconcile(protocol.EntitiesStateUpdate{
		HasController:  true,
		LastInputIndex: 0,
		CameraPitchDeg: before.PitchDeg,
		CameraYawDeg:   before.YawDeg,
	})

	assert.Equal(t, before, p.Predicted())
}

func TestPredictor_PitchClampedAtMax(t *testing.T) {
	p := NewPredictor(100000)
	p.AccumulateMouseDelta(500, 0)
	p.BuildInput(MovementFlags{}, time.Second)
	assert.Equal(t, float32(protocol.MaxCameraPitchDeg), p.Predicted().PitchDeg)
}

// A slice that exceeds the per-tick rotation speed leaves a remainder
// accumulated for the next tick rather than being discarded outright.
func TestPredictor_BuildInput_ClampsToRotationSpeedAndCarriesRemainder(t *testing.T) {
	p := NewPredictor(30) // 30 deg/sec
	p.AccumulateMouseDelta(2, 0)
	in := p.BuildInput(MovementFlags{}, testTick) // max delta ~= 0.99 deg

	assert.Less(t, in.Pitch, float32(1.1))
	assert.Greater(t, p.incomingPitch, float32(0.5)) // remainder carried over
}

func TestControlledEntity_TransformReflectsAuthoritativePositionAndPredictedRotation(t *testing.T) {
	ce := NewControlledEntity(1000)
	ce.AccumulateMouseDelta(0, 9)
	ce.SampleInput(MovementFlags{MoveForward: true}, testTick)

	ce.ApplyUpdate(protocol.EntitiesStateUpdate{
		HasController:   true,
		LastInputIndex:  0,
		Position:        vec.Vec3Float{X: 1, Y: 2, Z: 3},
		ReferenceYawDeg: 42,
		CameraYawDeg:    9, // server confirms the yaw delta from input index 0
	})

	tr := ce.Transform()
	assert.Equal(t, vec.Vec3Float{X: 1, Y: 2, Z: 3}, tr.Position)
	assert.Equal(t, float32(42), tr.ReferenceYawDeg)
	assert.InDelta(t, 9.0, tr.Rotation.YawDeg, 1e-4)
}
