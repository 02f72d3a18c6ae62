// Package client implements the thin, predicting half of §4.6: local
// rotation prediction between server ticks and replay-based
// reconciliation once an authoritative EntitiesStateUpdate arrives.
// Movement itself is never predicted — only camera rotation is, since
// that is the only thing the player feels latency on directly between
// input and visual feedback.
package client

import (
	"time"

	"github.com/annel0/mmo-game/internal/protocol"
)

// Rotation is a predicted or authoritative camera orientation.
type Rotation struct {
	PitchDeg float32
	YawDeg   float32
}

func clampPitch(p float32) float32 {
	if p > protocol.MaxCameraPitchDeg {
		return protocol.MaxCameraPitchDeg
	}
	if p < -protocol.MaxCameraPitchDeg {
		return -protocol.MaxCameraPitchDeg
	}
	return p
}

// replayEntry is one not-yet-acknowledged input's rotation delta, kept
// around so it can be re-applied on top of a fresher authoritative
// rotation during reconciliation.
type replayEntry struct {
	index      uint8
	deltaPitch float32
	deltaYaw   float32
}

// Predictor tracks one locally controlled character's rotation across
// the gap between input sampling (every render frame) and
// acknowledgement (every server tick it takes for a round trip).
//
// Movement booleans are never predicted or replayed — only
// PlayerInputs.Pitch/Yaw deltas are, since §4.6 only names rotation as
// client-predicted state. The server is always the sole source of
// truth for position.
type Predictor struct {
	nextInputIndex uint8
	predicted      Rotation
	replay         []replayEntry

	// rotationSpeedDegPerSec bounds how much of the accumulated raw
	// mouse delta a single tick's input sample may consume (§4.6 step
	// 2: "clamped slice of incomingRotation").
	rotationSpeedDegPerSec float32
	incomingPitch          float32
	incomingYaw            float32
}

// NewPredictor creates a predictor with no rotation yet and an empty
// replay list.
func NewPredictor(rotationSpeedDegPerSec float32) *Predictor {
	return &Predictor{rotationSpeedDegPerSec: rotationSpeedDegPerSec}
}

// Predicted returns the current locally predicted camera rotation.
func (p *Predictor) Predicted() Rotation { return p.predicted }

// AccumulateMouseDelta folds one frame's raw mouse movement into the
// rotation not yet consumed by a tick's input sample (§4.6 step 1).
func (p *Predictor) AccumulateMouseDelta(dPitchDeg, dYawDeg float32) {
	p.incomingPitch += dPitchDeg
	p.incomingYaw += dYawDeg
}

// MovementFlags carries the boolean half of a PlayerInputs sample;
// BuildInput never looks inside it, just copies it through — movement
// itself is never predicted, only rotation is (§4.6).
type MovementFlags struct {
	Jump, Crouch, Sprint                           bool
	MoveForward, MoveBackward, MoveLeft, MoveRight bool
}

// BuildInput runs one tick's worth of §4.6 steps 2-5: it takes a
// bounded slice of the accumulated mouse delta, applies it to the
// local prediction, records it for replay, and returns the
// PlayerInputs sample ready to send. The returned sample's Index is
// nextInputIndex before this call; calling BuildInput again advances
// it (mod 256, matching the wire format's uint8 index).
func (p *Predictor) BuildInput(m MovementFlags, tickDuration time.Duration) protocol.PlayerInputs {
	maxDelta := p.rotationSpeedDegPerSec * float32(tickDuration.Seconds())

	slicePitch := clampMagnitude(p.incomingPitch, maxDelta)
	sliceYaw := clampMagnitude(p.incomingYaw, maxDelta)
	p.incomingPitch -= slicePitch
	p.incomingYaw -= sliceYaw

	index := p.nextInputIndex
	p.nextInputIndex++

	p.predicted.PitchDeg = clampPitch(p.predicted.PitchDeg + slicePitch)
	p.predicted.YawDeg += sliceYaw

	p.replay = append(p.replay, replayEntry{index: index, deltaPitch: slicePitch, deltaYaw: sliceYaw})

	return protocol.PlayerInputs{
		Index:        index,
		Jump:         m.Jump,
		Crouch:       m.Crouch,
		Sprint:       m.Sprint,
		MoveForward:  m.MoveForward,
		MoveBackward: m.MoveBackward,
		MoveLeft:     m.MoveLeft,
		MoveRight:    m.MoveRight,
		Pitch:        slicePitch,
		Yaw:          sliceYaw,
	}
}

func clampMagnitude(v, max float32) float32 {
	if max <= 0 {
		return 0
	}
	if v > max {
		return max
	}
	if v < -max {
		return -max
	}
	return v
}

// Reconcile applies an authoritative EntitiesStateUpdate per §4.6's
// five reconciliation steps: drop acknowledged replay entries, snap
// the predicted rotation to the authoritative value, then replay
// whatever inputs the server hasn't seen yet to reproduce the current
// prediction on top of fresher ground truth.
//
// If update.HasController is false (this session has no controlled
// character, e.g. spectating), Reconcile does nothing.
func (p *Predictor) Reconcile(update protocol.EntitiesStateUpdate) {
	if !update.HasController {
		return
	}

	kept := p.replay[:0]
	for _, entry := range p.replay {
		if protocol.IsNewer(entry.index, update.LastInputIndex) {
			kept = append(kept, entry)
		}
	}
	p.replay = kept

	p.predicted = Rotation{PitchDeg: update.CameraPitchDeg, YawDeg: update.CameraYawDeg}
	for _, entry := range p.replay {
		p.predicted.PitchDeg = clampPitch(p.predicted.PitchDeg + entry.deltaPitch)
		p.predicted.YawDeg += entry.deltaYaw
	}
}
