// Package protocol implements the wire format spoken between server and
// client: opcode-prefixed, versioned packet framing over the channels
// exposed by internal/network, plus the chunk binary codec shared with
// internal/persistence.
package protocol

// Opcode indexes the canonical packet-type list. The first two entries
// are frozen across protocol versions since they carry version
// negotiation itself.
type Opcode uint8

const (
	OpAuthRequest Opcode = iota
	OpAuthResponse
	OpChatMessage
	OpChunkCreate
	OpChunkDestroy
	OpChunkReset
	OpChunkUpdate
	OpEntitiesCreation
	OpEntitiesDelete
	OpEntitiesStateUpdate
	OpEntityEnvironmentUpdate
	OpEnvironmentCreate
	OpEnvironmentDestroy
	OpEnvironmentUpdate
	OpGameData
	OpMineBlock
	OpNetworkStrings
	OpPlaceBlock
	OpPlayerLeave
	OpPlayerJoin
	OpPlayerNameUpdate
	OpSendChatMessage
	OpUpdateRootEnvironment
	OpUpdatePlayerInputs

	opcodeCount
)

// opcodeNames backs Opcode.String and is kept in exact sync with the
// const block above — a mismatch would misname packets in logs, not
// misroute them, since the wire only ever carries the numeric value.
var opcodeNames = [opcodeCount]string{
	"AuthRequest", "AuthResponse", "ChatMessage", "ChunkCreate", "ChunkDestroy",
	"ChunkReset", "ChunkUpdate", "EntitiesCreation", "EntitiesDelete",
	"EntitiesStateUpdate", "EntityEnvironmentUpdate", "EnvironmentCreate",
	"EnvironmentDestroy", "EnvironmentUpdate", "GameData", "MineBlock",
	"NetworkStrings", "PlaceBlock", "PlayerLeave", "PlayerJoin",
	"PlayerNameUpdate", "SendChatMessage", "UpdateRootEnvironment",
	"UpdatePlayerInputs",
}

func (o Opcode) String() string {
	if int(o) >= len(opcodeNames) {
		return "Unknown"
	}
	return opcodeNames[o]
}

// Valid reports whether o indexes a known packet type.
func (o Opcode) Valid() bool { return o < opcodeCount }

// Channel identifies one of the reactor's ordered delivery channels.
type Channel uint8

const (
	ChannelControl  Channel = 0 // auth, chat, join/leave
	ChannelWorld    Channel = 1 // chunk lifecycle, block edits, player inputs
	ChannelEntities Channel = 2 // entity lifecycle and state updates
)

// Reliability selects whether a packet is resent until acknowledged or
// fired-and-forgotten.
type Reliability uint8

const (
	Reliable Reliability = iota
	Unreliable
)

// route describes one opcode's delivery channel and reliability, the Go
// stand-in for ENet's per-packet flags.
type route struct {
	channel     Channel
	reliability Reliability
}

var routes = map[Opcode]route{
	OpAuthRequest:             {ChannelControl, Reliable},
	OpAuthResponse:            {ChannelControl, Reliable},
	OpChatMessage:             {ChannelControl, Reliable},
	OpSendChatMessage:         {ChannelControl, Reliable},
	OpPlayerJoin:              {ChannelControl, Reliable},
	OpPlayerLeave:             {ChannelControl, Reliable},
	OpPlayerNameUpdate:        {ChannelControl, Reliable},
	OpGameData:                {ChannelControl, Reliable},
	OpNetworkStrings:          {ChannelControl, Reliable},
	OpChunkCreate:             {ChannelWorld, Reliable},
	OpChunkDestroy:            {ChannelWorld, Reliable},
	OpChunkReset:              {ChannelWorld, Reliable},
	OpChunkUpdate:             {ChannelWorld, Reliable},
	OpMineBlock:               {ChannelWorld, Reliable},
	OpPlaceBlock:              {ChannelWorld, Reliable},
	OpUpdatePlayerInputs:      {ChannelWorld, Unreliable},
	OpEntitiesCreation:        {ChannelEntities, Reliable},
	OpEntitiesDelete:          {ChannelEntities, Reliable},
	OpEntitiesStateUpdate:     {ChannelEntities, Unreliable},
	OpEntityEnvironmentUpdate: {ChannelEntities, Reliable},
	OpEnvironmentCreate:       {ChannelEntities, Reliable},
	OpEnvironmentDestroy:      {ChannelEntities, Reliable},
	OpEnvironmentUpdate:       {ChannelEntities, Reliable},
	OpUpdateRootEnvironment:   {ChannelEntities, Reliable},
}

// RouteFor returns the channel and reliability a packet of this opcode
// must be sent on. Every opcode is present in routes; a missing entry is
// a programmer error caught by the test suite, not a runtime fallback.
func RouteFor(op Opcode) (Channel, Reliability) {
	r, ok := routes[op]
	if !ok {
		panic("protocol: opcode " + op.String() + " has no routing entry")
	}
	return r.channel, r.reliability
}
