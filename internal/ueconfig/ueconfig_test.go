package ueconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCreateAndReconfigure(t *testing.T) {
	s := New()
	snap := &Snapshot{UEIndex: 1, RNTI: 0x4601, Fallback: true}
	require.NoError(t, s.Create(snap))
	assert.True(t, s.Current(1).Fallback)
	assert.Nil(t, s.Previous(1))

	err := s.Create(&Snapshot{UEIndex: 1})
	assert.Error(t, err, "duplicate ue index must fail")

	next := &Snapshot{UEIndex: 1, RNTI: 0x4601, Fallback: true}
	require.NoError(t, s.Reconfigure(next))
	assert.Same(t, next, s.Current(1))
	assert.Same(t, snap, s.Previous(1))
}

func TestApplyReconfigurationClearsFallback(t *testing.T) {
	s := New()
	require.NoError(t, s.Create(&Snapshot{UEIndex: 2, Fallback: true}))
	s.ApplyReconfiguration(2)
	assert.False(t, s.Current(2).Fallback)
}

func TestRemoveDropsConfig(t *testing.T) {
	s := New()
	require.NoError(t, s.Create(&Snapshot{UEIndex: 3}))
	s.Remove(3)
	assert.Nil(t, s.Current(3))
}

func TestDefaultTDDPatternDirections(t *testing.T) {
	p := DefaultTDDPattern()
	assert.Equal(t, SlotDL, p.Direction(0))
	assert.Equal(t, SlotDL, p.Direction(6))
	assert.Equal(t, SlotSpecial, p.Direction(7))
	assert.Equal(t, SlotUL, p.Direction(8))
	assert.Equal(t, SlotUL, p.Direction(9))
	assert.Equal(t, SlotDL, p.Direction(10), "pattern repeats every 10 slots")
}

func TestDefaultFDDPatternAlwaysDL(t *testing.T) {
	p := DefaultFDDPattern()
	for _, si := range []int{0, 1, 9999} {
		assert.Equal(t, SlotDL, p.Direction(si))
	}
}
