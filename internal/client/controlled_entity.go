package client

import (
	"time"

	"github.com/annel0/mmo-game/internal/protocol"
	"github.com/annel0/mmo-game/internal/vec"
)

// Transform is the character pose the client should render after a
// reconciliation pass: authoritative position and reference yaw, with
// the locally predicted camera rotation layered on top (§4.6: "Set the
// character's transform to authoritative position and
// referenceRotation · yaw(predictedCameraYaw)").
type Transform struct {
	Position        vec.Vec3Float
	ReferenceYawDeg float32
	Rotation        Rotation
}

// ControlledEntity is the client-side state for the one character this
// session predicts and reconciles: the rotation predictor plus the
// last authoritative position and reference yaw received from the
// server.
type ControlledEntity struct {
	predictor *Predictor
	position  vec.Vec3Float
	refYawDeg float32
}

// NewControlledEntity creates client state for a freshly acquired
// controlled character.
func NewControlledEntity(rotationSpeedDegPerSec float32) *ControlledEntity {
	return &ControlledEntity{predictor: NewPredictor(rotationSpeedDegPerSec)}
}

// AccumulateMouseDelta forwards to the underlying predictor.
func (c *ControlledEntity) AccumulateMouseDelta(dPitchDeg, dYawDeg float32) {
	c.predictor.AccumulateMouseDelta(dPitchDeg, dYawDeg)
}

// SampleInput builds this tick's PlayerInputs sample from the movement
// flags currently held down and the accumulated mouse delta.
func (c *ControlledEntity) SampleInput(m MovementFlags, tickDuration time.Duration) protocol.PlayerInputs {
	return c.predictor.BuildInput(m, tickDuration)
}

// Predicted exposes the current predicted rotation, e.g. for rendering
// the local camera immediately without waiting on reconciliation.
func (c *ControlledEntity) Predicted() Rotation { return c.predictor.Predicted() }

// ApplyUpdate reconciles against an authoritative EntitiesStateUpdate
// and records its position/reference yaw for Transform.
func (c *ControlledEntity) ApplyUpdate(update protocol.EntitiesStateUpdate) {
	if !update.HasController {
		return
	}
	c.predictor.Reconcile(update)
	c.position = update.Position
	c.refYawDeg = update.ReferenceYawDeg
}

// Transform returns the pose to render: authoritative position and
// reference yaw, predicted camera rotation layered on top.
func (c *ControlledEntity) Transform() Transform {
	return Transform{
		Position:        c.position,
		ReferenceYawDeg: c.refYawDeg,
		Rotation:        c.predictor.Predicted(),
	}
}
