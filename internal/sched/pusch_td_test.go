package sched

import (
	"testing"

	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPUSCHTimeDomainFDDEveryPDCCHSlotMapsToItself(t *testing.T) {
	// FDD: every slot carries both PDCCH and PUSCH, k2=4 throughout.
	isUL := []bool{true}
	td := NewPUSCHTimeDomain(1, isUL, []int{4})

	k2, ok := td.K2For(slot.New(slot.SCS30kHz, 0, 0))
	require.True(t, ok)
	assert.Equal(t, 4, k2)
	assert.True(t, td.IsPUSCHSlot(slot.New(slot.SCS30kHz, 0, 4)))
}

func TestPUSCHTimeDomainTDDMapsDLOffsetsToNextULSlot(t *testing.T) {
	// A 5-slot TDD period: DDUDU (offsets 0,1 DL; 2 UL; 3 DL; 4 UL).
	isUL := []bool{false, false, true, false, true}
	td := NewPUSCHTimeDomain(5, isUL, []int{1, 4})

	for offset, ul := range isUL {
		k2, ok := td.K2For(slot.New(slot.SCS30kHz, 0, uint32(offset)))
		if ul {
			assert.False(t, ok, "PDCCH isn't scheduled on a UL-only slot (offset %d)", offset)
			continue
		}
		require.True(t, ok, "offset %d must map to some UL slot", offset)
		target := (offset + k2) % 5
		assert.True(t, isUL[target], "offset %d + k2=%d must land on a UL slot, landed on %d", offset, k2, target)
	}
}

func TestPUSCHTimeDomainIsPUSCHSlotMatchesMappedTargets(t *testing.T) {
	isUL := []bool{false, false, true, false, true}
	td := NewPUSCHTimeDomain(5, isUL, []int{1, 4})

	assert.True(t, td.IsPUSCHSlot(slot.New(slot.SCS30kHz, 0, 2)))
	assert.True(t, td.IsPUSCHSlot(slot.New(slot.SCS30kHz, 0, 4)))
}

func TestPUSCHTimeDomainNoULSlotsLeavesTableEmpty(t *testing.T) {
	isUL := []bool{false, false, false}
	td := NewPUSCHTimeDomain(3, isUL, []int{4})
	_, ok := td.K2For(slot.New(slot.SCS30kHz, 0, 0))
	assert.False(t, ok)
	assert.False(t, td.IsPUSCHSlot(slot.New(slot.SCS30kHz, 0, 0)))
}
