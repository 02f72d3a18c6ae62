// Package persistence implements the on-disk chunk file format and the
// badger-backed world metadata store spec.md §6 and SPEC_FULL.md's
// DOMAIN STACK both call for.
package persistence

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/annel0/mmo-game/internal/vec"
	"github.com/annel0/mmo-game/internal/world/block"
	"github.com/annel0/mmo-game/internal/world/chunk"
)

// ChunkFileName returns the on-disk name for a chunk at indices, using
// explicit signed decimal components (§6: "{cx}_{cy}_{cz}.chunk").
func ChunkFileName(indices vec.Vec3) string {
	return fmt.Sprintf("%+d_%+d_%+d.chunk", indices.X, indices.Y, indices.Z)
}

// ChunkStore persists individual chunks as flat files under a root
// directory, one file per chunk, using chunk.Chunk's own binary codec
// (§4.1, §6) — no compression, no wrapping format, since this is the
// disk path rather than the wire path (wire compression lives in
// internal/protocol and is a distinct concern, per that package's
// DESIGN.md entry).
type ChunkStore struct {
	root string
}

func NewChunkStore(root string) *ChunkStore {
	return &ChunkStore{root: root}
}

// Save writes ch to its chunk file, creating the root directory if
// necessary. A write error is the caller's responsibility to log and
// retry next save interval (§7 Persistence error: "failed write logged
// and retried next interval").
func (s *ChunkStore) Save(ch *chunk.Chunk) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("persistence: create chunk directory: %w", err)
	}
	path := filepath.Join(s.root, ChunkFileName(ch.Indices()))
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("persistence: create chunk file: %w", err)
	}
	if err := ch.Serialize(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("persistence: serialize chunk: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("persistence: close chunk file: %w", err)
	}
	// Atomic rename: a crash mid-write never leaves a half-written file
	// at the real path for the next load to trip over.
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("persistence: finalize chunk file: %w", err)
	}
	return nil
}

// Load reads a chunk file into dst in place. A missing file is reported
// via os.IsNotExist on the returned error — callers treat it as "no save
// yet" and leave dst at its default (all-Empty) contents, exactly as a
// failed read does (§7 Persistence error: "failed read leaves chunk
// default and logs").
func (s *ChunkStore) Load(indices vec.Vec3, dst *chunk.Chunk, lib *block.Library) error {
	path := filepath.Join(s.root, ChunkFileName(indices))
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := dst.Deserialize(f, lib); err != nil {
		return fmt.Errorf("persistence: deserialize %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a save file is present for indices, without
// loading it.
func (s *ChunkStore) Exists(indices vec.Vec3) bool {
	_, err := os.Stat(filepath.Join(s.root, ChunkFileName(indices)))
	return err == nil
}
