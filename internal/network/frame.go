package network

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/annel0/mmo-game/internal/protocol"
)

// EncodeFrame prefixes a 4-byte little-endian length (covering the
// opcode byte and the body) ahead of the opcode and body themselves,
// the same length-prefixed shape kcp_channel.go used for its protobuf
// payloads, minus the protobuf. Shared by the reactor's session code
// and the reference client in cmd/client so both sides speak the
// identical framing.
func EncodeFrame(opcode protocol.Opcode, body []byte) []byte {
	frame := make([]byte, 4+1+len(body))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(1+len(body)))
	frame[4] = byte(opcode)
	copy(frame[5:], body)
	return frame
}

// ReadFrame blocks until one full length-prefixed frame has been read
// from r, returning its opcode and body. Read deadlines, if any, are
// the caller's responsibility.
func ReadFrame(r io.Reader) (protocol.Opcode, []byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	length := binary.LittleEndian.Uint32(header)
	if length == 0 || length > maxFrameBody {
		return 0, nil, fmt.Errorf("invalid frame length %d", length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return protocol.Opcode(body[0]), body[1:], nil
}
