package protocol

import "github.com/annel0/mmo-game/internal/vec"

// AuthRequest opens a session: the client announces its build version
// and, optionally, a bearer connection token (§6, §7 Authentication
// error).
type AuthRequest struct {
	GameVersion     Version
	ConnectionToken string // empty when anonymous play is allowed
	Nickname        string
}

func (p AuthRequest) Encode() []byte {
	w := NewWriter()
	w.WriteUint32(uint32(p.GameVersion))
	w.WriteString16(p.ConnectionToken)
	w.WriteString16(p.Nickname)
	return w.Bytes()
}

func DecodeAuthRequest(body []byte) (AuthRequest, error) {
	r := NewReader(body)
	var p AuthRequest
	v, err := r.ReadUint32()
	if err != nil {
		return p, err
	}
	p.GameVersion = Version(v)
	if p.ConnectionToken, err = r.ReadString16(); err != nil {
		return p, err
	}
	if p.Nickname, err = r.ReadString16(); err != nil {
		return p, err
	}
	return p, nil
}

// AuthResponse answers an AuthRequest with the negotiated version on
// success, or a tagged AuthError on rejection.
type AuthResponse struct {
	Ok              bool
	ResolvedVersion Version // valid when Ok
	Err             AuthError
}

func (p AuthResponse) Encode() []byte {
	w := NewWriter()
	w.WriteBool(p.Ok)
	if p.Ok {
		w.WriteUint32(uint32(p.ResolvedVersion))
	} else {
		w.WriteUint8(uint8(p.Err))
	}
	return w.Bytes()
}

func DecodeAuthResponse(body []byte) (AuthResponse, error) {
	r := NewReader(body)
	var p AuthResponse
	ok, err := r.ReadBool()
	if err != nil {
		return p, err
	}
	p.Ok = ok
	if ok {
		v, err := r.ReadUint32()
		if err != nil {
			return p, err
		}
		p.ResolvedVersion = Version(v)
	} else {
		e, err := r.ReadUint8()
		if err != nil {
			return p, err
		}
		p.Err = AuthError(e)
	}
	return p, nil
}

// MaxCameraPitchDeg bounds CameraPitchDeg on both sides of the wire: the
// server clamps it when applying a rotation delta, and the client
// applies the same clamp when predicting locally so its prediction
// never has to be corrected just because it turned too far (§4.6).
const MaxCameraPitchDeg = 89

// PlayerInputs is one input sample (spec §3 PlayerInputs, §4.5/§4.6).
// Index is monotonic modulo 256; IsNewer implements the wraparound-aware
// comparison used both to order server-side consumption and to prune
// the client's replay list.
type PlayerInputs struct {
	Index                                           uint8
	Jump, Crouch, Sprint                            bool
	MoveForward, MoveBackward, MoveLeft, MoveRight  bool
	Pitch, Yaw                                      float32 // degrees, this sample's delta rotation
}

// IsNewer reports whether a is strictly newer than b under modulo-256
// wraparound: "(a - b) mod 256 < 128" and a != b (§3, §8 property 8).
// Equal indices are never "newer" than themselves.
func IsNewer(a, b uint8) bool {
	return a != b && uint8(a-b) < 128
}

func (p PlayerInputs) Encode() []byte {
	w := NewWriter()
	w.WriteUint8(p.Index)
	flags := uint8(0)
	if p.Jump {
		flags |= 1 << 0
	}
	if p.Crouch {
		flags |= 1 << 1
	}
	if p.Sprint {
		flags |= 1 << 2
	}
	if p.MoveForward {
		flags |= 1 << 3
	}
	if p.MoveBackward {
		flags |= 1 << 4
	}
	if p.MoveLeft {
		flags |= 1 << 5
	}
	if p.MoveRight {
		flags |= 1 << 6
	}
	w.WriteUint8(flags)
	w.WriteFloat32(p.Pitch)
	w.WriteFloat32(p.Yaw)
	return w.Bytes()
}

func DecodePlayerInputs(body []byte) (PlayerInputs, error) {
	r := NewReader(body)
	var p PlayerInputs
	var err error
	if p.Index, err = r.ReadUint8(); err != nil {
		return p, err
	}
	flags, err := r.ReadUint8()
	if err != nil {
		return p, err
	}
	p.Jump = flags&(1<<0) != 0
	p.Crouch = flags&(1<<1) != 0
	p.Sprint = flags&(1<<2) != 0
	p.MoveForward = flags&(1<<3) != 0
	p.MoveBackward = flags&(1<<4) != 0
	p.MoveLeft = flags&(1<<5) != 0
	p.MoveRight = flags&(1<<6) != 0
	if p.Pitch, err = r.ReadFloat32(); err != nil {
		return p, err
	}
	if p.Yaw, err = r.ReadFloat32(); err != nil {
		return p, err
	}
	return p, nil
}

// BlockEdit is one (position, newBlock) entry of a ChunkUpdate body
// (§4.2 pendingUpdates).
type BlockEdit struct {
	Position vec.Vec3u
	NewBlock uint8
}

// ChunkUpdate carries a chunk's coalesced incremental block edits.
type ChunkUpdate struct {
	NetworkID uint16
	Edits     []BlockEdit
}

func (p ChunkUpdate) Encode() []byte {
	w := NewWriter()
	w.WriteUint16(p.NetworkID)
	w.WriteUvarint(uint64(len(p.Edits)))
	for _, e := range p.Edits {
		w.WriteUvarint(uint64(e.Position.X))
		w.WriteUvarint(uint64(e.Position.Y))
		w.WriteUvarint(uint64(e.Position.Z))
		w.WriteUint8(e.NewBlock)
	}
	return w.Bytes()
}

func DecodeChunkUpdate(body []byte) (ChunkUpdate, error) {
	r := NewReader(body)
	var p ChunkUpdate
	var err error
	if p.NetworkID, err = r.ReadUint16(); err != nil {
		return p, err
	}
	n, err := r.ReadUvarint()
	if err != nil {
		return p, err
	}
	p.Edits = make([]BlockEdit, 0, n)
	for i := uint64(0); i < n; i++ {
		x, err := r.ReadUvarint()
		if err != nil {
			return p, err
		}
		y, err := r.ReadUvarint()
		if err != nil {
			return p, err
		}
		z, err := r.ReadUvarint()
		if err != nil {
			return p, err
		}
		nb, err := r.ReadUint8()
		if err != nil {
			return p, err
		}
		p.Edits = append(p.Edits, BlockEdit{Position: vec.Vec3u{X: uint(x), Y: uint(y), Z: uint(z)}, NewBlock: nb})
	}
	return p, nil
}

// ChunkDestroy tells a client a chunk has left its visibility set.
type ChunkDestroy struct {
	NetworkID uint16
}

func (p ChunkDestroy) Encode() []byte {
	w := NewWriter()
	w.WriteUint16(p.NetworkID)
	return w.Bytes()
}

func DecodeChunkDestroy(body []byte) (ChunkDestroy, error) {
	r := NewReader(body)
	id, err := r.ReadUint16()
	return ChunkDestroy{NetworkID: id}, err
}

// EntityCreate is one entry of an EntitiesCreation packet.
type EntityCreate struct {
	NetworkID uint32
	Moving    bool
}

type EntitiesCreation struct {
	Entities []EntityCreate
}

func (p EntitiesCreation) Encode() []byte {
	w := NewWriter()
	w.WriteUvarint(uint64(len(p.Entities)))
	for _, e := range p.Entities {
		w.WriteUint32(e.NetworkID)
		w.WriteBool(e.Moving)
	}
	return w.Bytes()
}

func DecodeEntitiesCreation(body []byte) (EntitiesCreation, error) {
	r := NewReader(body)
	var p EntitiesCreation
	n, err := r.ReadUvarint()
	if err != nil {
		return p, err
	}
	p.Entities = make([]EntityCreate, 0, n)
	for i := uint64(0); i < n; i++ {
		id, err := r.ReadUint32()
		if err != nil {
			return p, err
		}
		moving, err := r.ReadBool()
		if err != nil {
			return p, err
		}
		p.Entities = append(p.Entities, EntityCreate{NetworkID: id, Moving: moving})
	}
	return p, nil
}

type EntitiesDelete struct {
	NetworkIDs []uint32
}

func (p EntitiesDelete) Encode() []byte {
	w := NewWriter()
	w.WriteUvarint(uint64(len(p.NetworkIDs)))
	for _, id := range p.NetworkIDs {
		w.WriteUint32(id)
	}
	return w.Bytes()
}

func DecodeEntitiesDelete(body []byte) (EntitiesDelete, error) {
	r := NewReader(body)
	var p EntitiesDelete
	n, err := r.ReadUvarint()
	if err != nil {
		return p, err
	}
	p.NetworkIDs = make([]uint32, 0, n)
	for i := uint64(0); i < n; i++ {
		id, err := r.ReadUint32()
		if err != nil {
			return p, err
		}
		p.NetworkIDs = append(p.NetworkIDs, id)
	}
	return p, nil
}

// MovingEntityState is one entry of an EntitiesStateUpdate packet (§4.2
// "Entity state update").
type MovingEntityState struct {
	NetworkID uint32
	Position  vec.Vec3Float
	YawDeg    float32
}

// EntitiesStateUpdate carries the controlled character's authoritative
// pose plus the positions of every other moving entity this session
// tracks. HasController is false when this session has no controlled
// character (e.g. a spectator), in which case the controller fields are
// unset.
type EntitiesStateUpdate struct {
	HasController     bool
	LastInputIndex    uint8
	Position          vec.Vec3Float
	ReferenceYawDeg   float32 // reference rotation, flattened to its yaw component for the wire
	CameraPitchDeg    float32
	CameraYawDeg      float32
	MovingEntities    []MovingEntityState
}

func (p EntitiesStateUpdate) Encode() []byte {
	w := NewWriter()
	w.WriteBool(p.HasController)
	if p.HasController {
		w.WriteUint8(p.LastInputIndex)
		w.WriteFloat32(float32(p.Position.X))
		w.WriteFloat32(float32(p.Position.Y))
		w.WriteFloat32(float32(p.Position.Z))
		w.WriteFloat32(p.ReferenceYawDeg)
		w.WriteFloat32(p.CameraPitchDeg)
		w.WriteFloat32(p.CameraYawDeg)
	}
	w.WriteUvarint(uint64(len(p.MovingEntities)))
	for _, e := range p.MovingEntities {
		w.WriteUint32(e.NetworkID)
		w.WriteFloat32(float32(e.Position.X))
		w.WriteFloat32(float32(e.Position.Y))
		w.WriteFloat32(float32(e.Position.Z))
		w.WriteFloat32(e.YawDeg)
	}
	return w.Bytes()
}

func DecodeEntitiesStateUpdate(body []byte) (EntitiesStateUpdate, error) {
	r := NewReader(body)
	var p EntitiesStateUpdate
	var err error
	if p.HasController, err = r.ReadBool(); err != nil {
		return p, err
	}
	if p.HasController {
		if p.LastInputIndex, err = r.ReadUint8(); err != nil {
			return p, err
		}
		x, err := r.ReadFloat32()
		if err != nil {
			return p, err
		}
		y, err := r.ReadFloat32()
		if err != nil {
			return p, err
		}
		z, err := r.ReadFloat32()
		if err != nil {
			return p, err
		}
		p.Position = vec.Vec3Float{X: float64(x), Y: float64(y), Z: float64(z)}
		if p.ReferenceYawDeg, err = r.ReadFloat32(); err != nil {
			return p, err
		}
		if p.CameraPitchDeg, err = r.ReadFloat32(); err != nil {
			return p, err
		}
		if p.CameraYawDeg, err = r.ReadFloat32(); err != nil {
			return p, err
		}
	}
	n, err := r.ReadUvarint()
	if err != nil {
		return p, err
	}
	p.MovingEntities = make([]MovingEntityState, 0, n)
	for i := uint64(0); i < n; i++ {
		id, err := r.ReadUint32()
		if err != nil {
			return p, err
		}
		x, err := r.ReadFloat32()
		if err != nil {
			return p, err
		}
		y, err := r.ReadFloat32()
		if err != nil {
			return p, err
		}
		z, err := r.ReadFloat32()
		if err != nil {
			return p, err
		}
		yaw, err := r.ReadFloat32()
		if err != nil {
			return p, err
		}
		p.MovingEntities = append(p.MovingEntities, MovingEntityState{
			NetworkID: id,
			Position:  vec.Vec3Float{X: float64(x), Y: float64(y), Z: float64(z)},
			YawDeg:    yaw,
		})
	}
	return p, nil
}

// MineBlock / PlaceBlock target one world-space block (§7 Validation
// error: out-of-range or already-empty/non-empty targets are silently
// ignored by the server, not rejected with a reply packet).
type MineBlock struct {
	Position vec.Vec3
}

func (p MineBlock) Encode() []byte {
	w := NewWriter()
	w.WriteVarint(int64(p.Position.X))
	w.WriteVarint(int64(p.Position.Y))
	w.WriteVarint(int64(p.Position.Z))
	return w.Bytes()
}

func DecodeMineBlock(body []byte) (MineBlock, error) {
	r := NewReader(body)
	x, err := r.ReadVarint()
	if err != nil {
		return MineBlock{}, err
	}
	y, err := r.ReadVarint()
	if err != nil {
		return MineBlock{}, err
	}
	z, err := r.ReadVarint()
	if err != nil {
		return MineBlock{}, err
	}
	return MineBlock{Position: vec.Vec3{X: int(x), Y: int(y), Z: int(z)}}, nil
}

type PlaceBlock struct {
	Position vec.Vec3
	Block    uint8
}

func (p PlaceBlock) Encode() []byte {
	w := NewWriter()
	w.WriteVarint(int64(p.Position.X))
	w.WriteVarint(int64(p.Position.Y))
	w.WriteVarint(int64(p.Position.Z))
	w.WriteUint8(p.Block)
	return w.Bytes()
}

func DecodePlaceBlock(body []byte) (PlaceBlock, error) {
	r := NewReader(body)
	x, err := r.ReadVarint()
	if err != nil {
		return PlaceBlock{}, err
	}
	y, err := r.ReadVarint()
	if err != nil {
		return PlaceBlock{}, err
	}
	z, err := r.ReadVarint()
	if err != nil {
		return PlaceBlock{}, err
	}
	b, err := r.ReadUint8()
	if err != nil {
		return PlaceBlock{}, err
	}
	return PlaceBlock{Position: vec.Vec3{X: int(x), Y: int(y), Z: int(z)}, Block: b}, nil
}

// SendChatMessage is the client→server request; ChatMessage is the
// server→client broadcast, tagging the sender (§4.4 channel 0 Reliable).
type SendChatMessage struct {
	Body string
}

func (p SendChatMessage) Encode() []byte {
	w := NewWriter()
	w.WriteString16(p.Body)
	return w.Bytes()
}

func DecodeSendChatMessage(body []byte) (SendChatMessage, error) {
	r := NewReader(body)
	s, err := r.ReadString16()
	return SendChatMessage{Body: s}, err
}

type ChatMessage struct {
	SenderName string
	Body       string
}

func (p ChatMessage) Encode() []byte {
	w := NewWriter()
	w.WriteString16(p.SenderName)
	w.WriteString16(p.Body)
	return w.Bytes()
}

func DecodeChatMessage(body []byte) (ChatMessage, error) {
	r := NewReader(body)
	name, err := r.ReadString16()
	if err != nil {
		return ChatMessage{}, err
	}
	msg, err := r.ReadString16()
	if err != nil {
		return ChatMessage{}, err
	}
	return ChatMessage{SenderName: name, Body: msg}, nil
}

// PlayerJoin/PlayerLeave/PlayerNameUpdate announce session membership
// changes to every connected client.
type PlayerJoin struct {
	PlayerIndex uint16
	Nickname    string
}

func (p PlayerJoin) Encode() []byte {
	w := NewWriter()
	w.WriteUint16(p.PlayerIndex)
	w.WriteString16(p.Nickname)
	return w.Bytes()
}

func DecodePlayerJoin(body []byte) (PlayerJoin, error) {
	r := NewReader(body)
	idx, err := r.ReadUint16()
	if err != nil {
		return PlayerJoin{}, err
	}
	name, err := r.ReadString16()
	if err != nil {
		return PlayerJoin{}, err
	}
	return PlayerJoin{PlayerIndex: idx, Nickname: name}, nil
}

type PlayerLeave struct {
	PlayerIndex uint16
}

func (p PlayerLeave) Encode() []byte {
	w := NewWriter()
	w.WriteUint16(p.PlayerIndex)
	return w.Bytes()
}

func DecodePlayerLeave(body []byte) (PlayerLeave, error) {
	r := NewReader(body)
	idx, err := r.ReadUint16()
	return PlayerLeave{PlayerIndex: idx}, err
}

type PlayerNameUpdate struct {
	PlayerIndex uint16
	Nickname    string
}

func (p PlayerNameUpdate) Encode() []byte {
	w := NewWriter()
	w.WriteUint16(p.PlayerIndex)
	w.WriteString16(p.Nickname)
	return w.Bytes()
}

func DecodePlayerNameUpdate(body []byte) (PlayerNameUpdate, error) {
	r := NewReader(body)
	idx, err := r.ReadUint16()
	if err != nil {
		return PlayerNameUpdate{}, err
	}
	name, err := r.ReadString16()
	if err != nil {
		return PlayerNameUpdate{}, err
	}
	return PlayerNameUpdate{PlayerIndex: idx, Nickname: name}, nil
}

// NetworkStrings interns a batch of strings a client can later reference
// by id instead of re-sending the bytes (supplemented feature, grounded
// in original_source's NetworkStringStore).
type NetworkStrings struct {
	FirstID uint32 // id assigned to Strings[0]; subsequent entries are sequential
	Strings []string
}

func (p NetworkStrings) Encode() []byte {
	w := NewWriter()
	w.WriteUint32(p.FirstID)
	w.WriteUvarint(uint64(len(p.Strings)))
	for _, s := range p.Strings {
		w.WriteString16(s)
	}
	return w.Bytes()
}

func DecodeNetworkStrings(body []byte) (NetworkStrings, error) {
	r := NewReader(body)
	var p NetworkStrings
	var err error
	if p.FirstID, err = r.ReadUint32(); err != nil {
		return p, err
	}
	n, err := r.ReadUvarint()
	if err != nil {
		return p, err
	}
	p.Strings = make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		s, err := r.ReadString16()
		if err != nil {
			return p, err
		}
		p.Strings = append(p.Strings, s)
	}
	return p, nil
}

// EntityEnvironmentUpdate tells a client which environment (Planet) an
// entity currently belongs to (supplemented feature).
type EntityEnvironmentUpdate struct {
	EntityNetworkID      uint32
	EnvironmentNetworkID uint32
}

func (p EntityEnvironmentUpdate) Encode() []byte {
	w := NewWriter()
	w.WriteUint32(p.EntityNetworkID)
	w.WriteUint32(p.EnvironmentNetworkID)
	return w.Bytes()
}

func DecodeEntityEnvironmentUpdate(body []byte) (EntityEnvironmentUpdate, error) {
	r := NewReader(body)
	entity, err := r.ReadUint32()
	if err != nil {
		return EntityEnvironmentUpdate{}, err
	}
	env, err := r.ReadUint32()
	if err != nil {
		return EntityEnvironmentUpdate{}, err
	}
	return EntityEnvironmentUpdate{EntityNetworkID: entity, EnvironmentNetworkID: env}, nil
}

// EnvironmentCreate/Destroy/Update and UpdateRootEnvironment manage the
// set of environments (planets/containers) a client knows about,
// independent of the chunks within them.
type EnvironmentCreate struct {
	NetworkID    uint32
	TileSize     float32
	CornerRadius float32
	Gravity      float32
}

func (p EnvironmentCreate) Encode() []byte {
	w := NewWriter()
	w.WriteUint32(p.NetworkID)
	w.WriteFloat32(p.TileSize)
	w.WriteFloat32(p.CornerRadius)
	w.WriteFloat32(p.Gravity)
	return w.Bytes()
}

func DecodeEnvironmentCreate(body []byte) (EnvironmentCreate, error) {
	r := NewReader(body)
	var p EnvironmentCreate
	var err error
	if p.NetworkID, err = r.ReadUint32(); err != nil {
		return p, err
	}
	if p.TileSize, err = r.ReadFloat32(); err != nil {
		return p, err
	}
	if p.CornerRadius, err = r.ReadFloat32(); err != nil {
		return p, err
	}
	if p.Gravity, err = r.ReadFloat32(); err != nil {
		return p, err
	}
	return p, nil
}

type EnvironmentDestroy struct {
	NetworkID uint32
}

func (p EnvironmentDestroy) Encode() []byte {
	w := NewWriter()
	w.WriteUint32(p.NetworkID)
	return w.Bytes()
}

func DecodeEnvironmentDestroy(body []byte) (EnvironmentDestroy, error) {
	r := NewReader(body)
	id, err := r.ReadUint32()
	return EnvironmentDestroy{NetworkID: id}, err
}

type EnvironmentUpdate struct {
	NetworkID    uint32
	CornerRadius float32
	Gravity      float32
}

func (p EnvironmentUpdate) Encode() []byte {
	w := NewWriter()
	w.WriteUint32(p.NetworkID)
	w.WriteFloat32(p.CornerRadius)
	w.WriteFloat32(p.Gravity)
	return w.Bytes()
}

func DecodeEnvironmentUpdate(body []byte) (EnvironmentUpdate, error) {
	r := NewReader(body)
	var p EnvironmentUpdate
	var err error
	if p.NetworkID, err = r.ReadUint32(); err != nil {
		return p, err
	}
	if p.CornerRadius, err = r.ReadFloat32(); err != nil {
		return p, err
	}
	if p.Gravity, err = r.ReadFloat32(); err != nil {
		return p, err
	}
	return p, nil
}

type UpdateRootEnvironment struct {
	EnvironmentNetworkID uint32
}

func (p UpdateRootEnvironment) Encode() []byte {
	w := NewWriter()
	w.WriteUint32(p.EnvironmentNetworkID)
	return w.Bytes()
}

func DecodeUpdateRootEnvironment(body []byte) (UpdateRootEnvironment, error) {
	r := NewReader(body)
	id, err := r.ReadUint32()
	return UpdateRootEnvironment{EnvironmentNetworkID: id}, err
}

// GameData is sent once after a successful AuthResponse: the server's
// tick rate and chunk size, so the client can size its prediction buffer
// and mesh pool without a second round trip.
type GameData struct {
	TickRateHz uint16
	ChunkSize  uint16
}

func (p GameData) Encode() []byte {
	w := NewWriter()
	w.WriteUint16(p.TickRateHz)
	w.WriteUint16(p.ChunkSize)
	return w.Bytes()
}

func DecodeGameData(body []byte) (GameData, error) {
	r := NewReader(body)
	var p GameData
	var err error
	if p.TickRateHz, err = r.ReadUint16(); err != nil {
		return p, err
	}
	if p.ChunkSize, err = r.ReadUint16(); err != nil {
		return p, err
	}
	return p, nil
}
