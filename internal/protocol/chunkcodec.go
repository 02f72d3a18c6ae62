package protocol

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/world/block"
	"github.com/annel0/mmo-game/internal/world/chunk"
)

// EncodeChunkBody serializes ch with chunk.Chunk's binary codec, then
// LZ4-compresses the result when peerVersion is new enough (§4.4 step 5,
// §9: version-gated, never auto-detected).
func EncodeChunkBody(ch *chunk.Chunk, peerVersion Version) ([]byte, error) {
	var raw bytes.Buffer
	if err := ch.Serialize(&raw); err != nil {
		return nil, fmt.Errorf("protocol: serialize chunk body: %w", err)
	}

	if !UsesLZ4Chunks(peerVersion) {
		return raw.Bytes(), nil
	}

	var compressed bytes.Buffer
	zw := lz4.NewWriter(&compressed)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("protocol: lz4 compress chunk body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("protocol: lz4 compress chunk body: %w", err)
	}
	return compressed.Bytes(), nil
}

// DecodeChunkBody reverses EncodeChunkBody into dst, using peerVersion to
// decide whether body is LZ4-compressed.
func DecodeChunkBody(body []byte, peerVersion Version, dst *chunk.Chunk, lib *block.Library) error {
	var raw io.Reader = bytes.NewReader(body)
	if UsesLZ4Chunks(peerVersion) {
		raw = lz4.NewReader(bytes.NewReader(body))
	}
	if err := dst.Deserialize(raw, lib); err != nil {
		return fmt.Errorf("protocol: deserialize chunk body: %w", err)
	}
	return nil
}

// ChunkCreate is the wire envelope carrying a full chunk to a client
// seeing it for the first time (§4.4: "ChunkCreate carries the chunk's
// network id, its signed 3D location, size, tileSize, and the
// compressed-or-raw body").
type ChunkCreate struct {
	NetworkID uint16
	Indices   vec.Vec3
	Size      vec.Vec3u
	TileSize  float32
	Body      []byte // already encoded by EncodeChunkBody for the target peer's version
}

func (c ChunkCreate) Encode() []byte {
	w := NewWriter()
	w.WriteUint16(c.NetworkID)
	w.WriteVarint(int64(c.Indices.X))
	w.WriteVarint(int64(c.Indices.Y))
	w.WriteVarint(int64(c.Indices.Z))
	w.WriteUvarint(uint64(c.Size.X))
	w.WriteUvarint(uint64(c.Size.Y))
	w.WriteUvarint(uint64(c.Size.Z))
	w.WriteFloat32(c.TileSize)
	w.WriteUvarint(uint64(len(c.Body)))
	w.WriteBytes(c.Body)
	return w.Bytes()
}

func DecodeChunkCreate(body []byte) (ChunkCreate, error) {
	r := NewReader(body)
	var c ChunkCreate
	var err error
	if c.NetworkID, err = r.ReadUint16(); err != nil {
		return c, err
	}
	x, err := r.ReadVarint()
	if err != nil {
		return c, err
	}
	y, err := r.ReadVarint()
	if err != nil {
		return c, err
	}
	z, err := r.ReadVarint()
	if err != nil {
		return c, err
	}
	c.Indices = vec.Vec3{X: int(x), Y: int(y), Z: int(z)}

	sx, err := r.ReadUvarint()
	if err != nil {
		return c, err
	}
	sy, err := r.ReadUvarint()
	if err != nil {
		return c, err
	}
	sz, err := r.ReadUvarint()
	if err != nil {
		return c, err
	}
	c.Size = vec.Vec3u{X: uint(sx), Y: uint(sy), Z: uint(sz)}

	if c.TileSize, err = r.ReadFloat32(); err != nil {
		return c, err
	}
	bodyLen, err := r.ReadUvarint()
	if err != nil {
		return c, err
	}
	if c.Body, err = r.ReadBytes(int(bodyLen)); err != nil {
		return c, err
	}
	return c, nil
}
