package server

import (
	"github.com/annel0/mmo-game/internal/entity"
	"github.com/annel0/mmo-game/internal/physics"
	"github.com/annel0/mmo-game/internal/protocol"
	"github.com/annel0/mmo-game/internal/visibility"
)

// SendFunc hands one already-encoded packet to whatever transport owns
// this session's connection. internal/server never touches the network
// directly (§5: the tick loop only produces packets, the reactor ships
// them).
type SendFunc func(opcode protocol.Opcode, body []byte)

// Session is one connected player's server-side state: which entity
// they control, their visibility bookkeeping, and their pending inputs.
// Like visibility.Handler, a Session is owned by the single-threaded
// tick loop and is not safe for concurrent use.
type Session struct {
	PlayerIndex     uint16
	Nickname        string
	ProtocolVersion protocol.Version
	EntityID        entity.ID
	Visibility      *visibility.Handler
	Inputs          InputQueue
	Send            SendFunc

	// Controller and Body are set once a concrete physics engine is
	// wired in; nil here means this session's character is driven by
	// rotation state alone (§6: PhysWorld/CharacterController are
	// consumed interfaces, not implemented by this repository).
	Controller physics.CharacterController
	Body       physics.BodyHandle
	HasBody    bool

	lastInput    protocol.PlayerInputs
	hasLastInput bool
}

// NewSession creates a session for a newly authenticated player already
// bound to entityID.
func NewSession(playerIndex uint16, nickname string, protocolVersion protocol.Version, entityID entity.ID, send SendFunc) *Session {
	return &Session{
		PlayerIndex:     playerIndex,
		Nickname:        nickname,
		ProtocolVersion: protocolVersion,
		EntityID:        entityID,
		Visibility:      visibility.NewHandler(),
		Send:            send,
	}
}

// ApplyOneInput consumes exactly one queued PlayerInputs — if any is
// queued — and applies its rotation delta to e's Pose. Movement booleans
// from the most recently consumed sample keep taking effect on ticks
// where the queue runs dry, so the character keeps moving rather than
// freezing (§4.5: "if the queue is empty, the previous input's effects
// persist"). Rotation deltas themselves are one-shot: replaying the same
// delta on an empty tick would keep turning the camera with no new
// input, so only a freshly dequeued sample ever touches CameraYawDeg /
// CameraPitchDeg.
func (s *Session) ApplyOneInput(e *entity.Entity) {
	if in, ok := s.Inputs.Pop(); ok {
		applyRotationDelta(e, in)
		s.lastInput = in
		s.hasLastInput = true
		s.Visibility.AckInput(in.Index)
	}
	if !s.hasLastInput {
		return
	}
	if s.Controller != nil && s.HasBody {
		s.Controller.PreSimulate(s.Body, tickDuration)
	}
}

func applyRotationDelta(e *entity.Entity, in protocol.PlayerInputs) {
	e.Pose.CameraYawDeg += in.Yaw

	pitch := e.Pose.CameraPitchDeg + in.Pitch
	if pitch > protocol.MaxCameraPitchDeg {
		pitch = protocol.MaxCameraPitchDeg
	}
	if pitch < -protocol.MaxCameraPitchDeg {
		pitch = -protocol.MaxCameraPitchDeg
	}
	e.Pose.CameraPitchDeg = pitch
}

// MovementIntent reports the movement flags of the most recently
// consumed input sample, for a physics.CharacterController
// implementation that needs them outside the narrow PreSimulate/
// PostSimulate signature.
func (s *Session) MovementIntent() (protocol.PlayerInputs, bool) {
	return s.lastInput, s.hasLastInput
}

// PostSimulate runs the controller's post-step hook, letting it read
// back the body's position/velocity after physics.World.Step.
func (s *Session) PostSimulate() {
	if s.Controller != nil && s.HasBody {
		s.Controller.PostSimulate(s.Body, tickDuration)
	}
}
