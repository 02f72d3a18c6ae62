package persistence

import (
	"context"
	"encoding/json"
	"fmt"
)

// PlayerColdStorage adapts MetadataStore to the cache.ColdStorage
// interface so a cache.RedisCache can sit in front of player placement
// lookups as a hot-read layer, independent of the per-chunk flat files.
// Keys are bare nicknames; MetadataStore's own xxhash keying stays an
// internal badger concern the cache layer never sees.
type PlayerColdStorage struct {
	meta *MetadataStore
}

func NewPlayerColdStorage(meta *MetadataStore) *PlayerColdStorage {
	return &PlayerColdStorage{meta: meta}
}

func (p *PlayerColdStorage) Load(_ context.Context, nickname string) ([]byte, error) {
	rec, found, err := p.meta.LoadPlayer(nickname)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("persistence: no saved record for %q", nickname)
	}
	return json.Marshal(rec)
}

func (p *PlayerColdStorage) Store(_ context.Context, nickname string, value []byte) error {
	var rec PlayerRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return fmt.Errorf("persistence: unmarshal cached player record for %q: %w", nickname, err)
	}
	return p.meta.SavePlayer(rec)
}

func (p *PlayerColdStorage) BatchLoad(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		v, err := p.Load(ctx, k)
		if err != nil {
			continue
		}
		out[k] = v
	}
	return out, nil
}

func (p *PlayerColdStorage) BatchStore(ctx context.Context, items map[string][]byte) error {
	for k, v := range items {
		if err := p.Store(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (p *PlayerColdStorage) Close() error { return nil }
