package chunk

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/world/block"
)

// BinaryVersion is the on-disk/on-wire format version this codec reads
// and writes. Deserialize rejects anything else rather than guess at
// forward compatibility (§6).
const BinaryVersion uint32 = 1

// paletteWideThreshold is the palette size above which local ids are
// written as u16 instead of u8; mirrors the source engine's switch from
// a byte-per-cell to a short-per-cell encoding once a chunk references
// more than eight distinct block kinds.
const paletteWideThreshold = 8

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// Serialize writes the chunk's block data as a minimal palette: only
// block kinds actually present are written, re-indexed consecutively in
// first-occurrence order, so an all-stone chunk costs one palette entry
// regardless of how many kinds the library has registered.
func (c *Chunk) Serialize(w io.Writer) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := binary.Write(w, binary.LittleEndian, BinaryVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(c.size.X)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(c.size.Y)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(c.size.Z)); err != nil {
		return err
	}

	localOf := make(map[block.Index]uint16)
	palette := make([]string, 0, 8)
	for _, b := range c.blocks {
		if _, ok := localOf[b]; ok {
			continue
		}
		localOf[b] = uint16(len(palette))
		palette = append(palette, c.lib.Name(b))
	}

	if err := binary.Write(w, binary.LittleEndian, uint16(len(palette))); err != nil {
		return err
	}
	for _, name := range palette {
		if err := writeString(w, name); err != nil {
			return err
		}
	}

	wide := len(palette) > paletteWideThreshold
	for _, b := range c.blocks {
		local := localOf[b]
		if wide {
			if err := binary.Write(w, binary.LittleEndian, local); err != nil {
				return err
			}
		} else {
			if err := binary.Write(w, binary.LittleEndian, uint8(local)); err != nil {
				return err
			}
		}
	}

	return nil
}

// Deserialize replaces the chunk's contents from r, translating palette
// names through lib. On any validation failure (version mismatch, size
// mismatch, unknown palette name) the chunk is left unmodified and the
// error is returned; partial writes never become visible.
func (c *Chunk) Deserialize(r io.Reader, lib *block.Library) error {
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != BinaryVersion {
		return fmt.Errorf("%w: got %d want %d", ErrBadVersion, version, BinaryVersion)
	}

	var sx, sy, sz uint32
	if err := binary.Read(r, binary.LittleEndian, &sx); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &sy); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &sz); err != nil {
		return err
	}

	c.mu.RLock()
	wantSize := c.size
	c.mu.RUnlock()
	if vec.Vec3u{X: uint(sx), Y: uint(sy), Z: uint(sz)} != wantSize {
		return ErrSizeMismatch
	}

	var paletteSize uint16
	if err := binary.Read(r, binary.LittleEndian, &paletteSize); err != nil {
		return err
	}
	paletteToIndex := make([]block.Index, paletteSize)
	for i := range paletteToIndex {
		name, err := readString(r)
		if err != nil {
			return err
		}
		idx := lib.IndexOf(name)
		if idx == block.Invalid {
			return fmt.Errorf("%w: %q", ErrUnknownBlockName, name)
		}
		paletteToIndex[i] = idx
	}

	count := int(sx) * int(sy) * int(sz)
	blocks := make([]block.Index, count)
	wide := paletteSize > paletteWideThreshold
	for i := 0; i < count; i++ {
		var local uint16
		if wide {
			if err := binary.Read(r, binary.LittleEndian, &local); err != nil {
				return err
			}
		} else {
			var b uint8
			if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
				return err
			}
			local = uint16(b)
		}
		if int(local) >= len(paletteToIndex) {
			return fmt.Errorf("%w: local id %d exceeds palette size %d", ErrUnknownBlockName, local, len(paletteToIndex))
		}
		blocks[i] = paletteToIndex[local]
	}

	c.lib = lib
	c.Reset(func(dst []block.Index) { copy(dst, blocks) })
	return nil
}
