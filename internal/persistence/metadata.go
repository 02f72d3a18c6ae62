package persistence

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v3"

	"github.com/annel0/mmo-game/internal/vec"
)

// PlayerRecord is a player's last-known world placement, persisted so a
// reconnecting session resumes where it left off rather than at a fixed
// spawn point.
type PlayerRecord struct {
	Nickname        string        `json:"nickname"`
	Position        vec.Vec3Float `json:"position"`
	ReferenceYawDeg float32       `json:"reference_yaw_deg"`
	LastChunk       vec.Vec3      `json:"last_chunk"`
}

// MetadataStore is the embedded KV side of persistence: everything that
// is not itself a chunk's block data — player placement and save
// bookkeeping — keyed and versioned independently of the per-chunk flat
// files (§6, SPEC_FULL.md DOMAIN STACK: "embedded KV for world metadata
// alongside the per-chunk flat files mandated by §6").
type MetadataStore struct {
	db *badger.DB
	mu sync.RWMutex
}

// NewMetadataStore opens (creating if absent) a badger database under
// dataDir/meta, the same DefaultOptions-with-Logger-disabled shape the
// teacher's WorldStorage uses.
func NewMetadataStore(dataDir string) (*MetadataStore, error) {
	opts := badger.DefaultOptions(filepath.Join(dataDir, "meta"))
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("persistence: open metadata store: %w", err)
	}
	return &MetadataStore{db: db}, nil
}

func (m *MetadataStore) Close() error {
	return m.db.Close()
}

func playerKey(nickname string) []byte {
	// xxhash keeps the key fixed-width and avoids leaking raw nicknames
	// (which may contain arbitrary client-supplied bytes) into the
	// badger key space verbatim.
	h := xxhash.Sum64String(nickname)
	return []byte(fmt.Sprintf("player:%016x", h))
}

func (m *MetadataStore) SavePlayer(rec PlayerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("persistence: marshal player record: %w", err)
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(playerKey(rec.Nickname), data)
	})
}

// LoadPlayer returns the saved record for nickname, or ok=false if none
// exists yet (a first-time connection).
func (m *MetadataStore) LoadPlayer(nickname string) (PlayerRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rec PlayerRecord
	var found bool
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(playerKey(nickname))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return PlayerRecord{}, false, fmt.Errorf("persistence: load player %q: %w", nickname, err)
	}
	return rec, found, nil
}

// SaveLastTick records the tick index at which the world was last
// durably saved, so a restart can log how stale the save directory is.
func (m *MetadataStore) SaveLastTick(tick uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("meta:last_save_tick"), []byte(fmt.Sprintf("%d", tick)))
	})
}
