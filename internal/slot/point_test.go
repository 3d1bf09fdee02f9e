package slot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHyperFrameWrap(t *testing.T) {
	scs := SCS30kHz
	spf := SlotsPerFrame(scs)
	last := New(scs, framesInHyperFrame-1, spf-1)

	next := last.Add(1)
	assert.EqualValues(t, 0, next.SFN())
	assert.EqualValues(t, 0, next.SlotIndex())
}

func TestCircularCompare(t *testing.T) {
	scs := SCS15kHz
	a := New(scs, 0, 0)
	b := a.Add(5)

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.False(t, a.Equal(b))
	assert.Equal(t, -5, a.Sub(b))
	assert.Equal(t, 5, b.Sub(a))
}

func TestDifferentSCSPanics(t *testing.T) {
	a := New(SCS15kHz, 0, 0)
	b := New(SCS30kHz, 0, 0)
	assert.Panics(t, func() { a.Sub(b) })
}

func TestRingSizeAtLeast(t *testing.T) {
	frameSlots := uint32(1024 * 20) // 30kHz
	k := RingSizeAtLeast(frameSlots, 17)
	require.True(t, frameSlots%k == 0)
	assert.GreaterOrEqual(t, k, uint32(17))
}

func TestWheelScheduleAdvance(t *testing.T) {
	w := NewWheel[string](8)
	w.Schedule(3, "a")
	w.Schedule(11, "b") // aliases bucket 3 (3 mod 8 == 11 mod 8)

	due := w.Advance(3)
	assert.ElementsMatch(t, []string{"a", "b"}, due)
	assert.Empty(t, w.Advance(3))
}
