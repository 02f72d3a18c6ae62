package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateDestroyReusesFreedID(t *testing.T) {
	s := NewStore()
	a := s.Create(Pose{}, Tags{Replicated: true})
	b := s.Create(Pose{}, Tags{Replicated: true})
	assert.NotEqual(t, a.ID, b.ID)

	s.Destroy(a.ID)
	_, ok := s.Get(a.ID)
	assert.False(t, ok)

	c := s.Create(Pose{}, Tags{})
	assert.Equal(t, a.ID, c.ID, "freed id should be reused before minting a new one")
}

func TestStore_DestroyUnknownIDPanics(t *testing.T) {
	s := NewStore()
	assert.Panics(t, func() { s.Destroy(ID(42)) })
}

func TestStore_MovingFiltersByTag(t *testing.T) {
	s := NewStore()
	s.Create(Pose{}, Tags{Moving: true})
	s.Create(Pose{}, Tags{Moving: false})
	s.Create(Pose{}, Tags{Moving: true})

	moving := s.Moving()
	require.Len(t, moving, 2)
	for _, e := range moving {
		assert.True(t, e.Tags.Moving)
	}
}
