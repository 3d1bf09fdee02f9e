package pdcch

import (
	"testing"

	"github.com/open-ran-go/gnb-mac-rlc/internal/grid"
	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGrid(t *testing.T) *grid.Grid {
	t.Helper()
	g := grid.New(slot.SCS30kHz, 8,
		map[grid.BWPID]grid.BWPConfig{0: {NumPRBs: 51, NumSymbol: 14}},
		map[grid.CoresetID]grid.CoresetConfig{0: {NumCCEs: 48}},
	)
	g.SlotIndication(slot.New(slot.SCS30kHz, 0, 0))
	return g
}

func testSearchSpace() SearchSpace {
	return SearchSpace{
		CoresetID:        0,
		NumCCEsInCoreset: 48,
		CandidatesByLevel: map[AggregationLevel]uint8{
			AggLevel1: 6,
			AggLevel2: 6,
			AggLevel4: 4,
			AggLevel8: 2,
		},
	}
}

func TestAllocateAvoidsCollision(t *testing.T) {
	g := newTestGrid(t)
	a := New(g)
	sl := slot.New(slot.SCS30kHz, 0, 0)
	ss := testSearchSpace()

	seen := map[int]bool{}
	for rnti := uint32(0x4601); rnti < 0x4601+6; rnti++ {
		grant, ok := a.Allocate(sl, rnti, ss, AggLevel2, DCIFormat1_0)
		require.True(t, ok, "rnti %#x should find a free candidate", rnti)
		for _, cce := range grant.CCEs {
			assert.False(t, seen[cce], "cce %d reused within the same slot", cce)
			seen[cce] = true
		}
	}
}

func TestAllocateFailsWhenCoresetFull(t *testing.T) {
	g := grid.New(slot.SCS30kHz, 8,
		map[grid.BWPID]grid.BWPConfig{0: {NumPRBs: 51, NumSymbol: 14}},
		map[grid.CoresetID]grid.CoresetConfig{0: {NumCCEs: 2}},
	)
	sl := slot.New(slot.SCS30kHz, 0, 0)
	g.SlotIndication(sl)
	a := New(g)
	ss := SearchSpace{CoresetID: 0, NumCCEsInCoreset: 2, CandidatesByLevel: map[AggregationLevel]uint8{AggLevel2: 1}}

	_, ok := a.Allocate(sl, 0x4601, ss, AggLevel2, DCIFormat1_0)
	require.True(t, ok)

	_, ok = a.Allocate(sl, 0x4602, ss, AggLevel2, DCIFormat1_0)
	assert.False(t, ok, "only one AL2 candidate exists in a 2-CCE coreset")
}

func TestAllocateAnyLevelPrefersEarlierLevel(t *testing.T) {
	g := newTestGrid(t)
	a := New(g)
	sl := slot.New(slot.SCS30kHz, 0, 0)
	ss := testSearchSpace()

	grant, ok := a.AllocateAnyLevel(sl, 0x4601, ss, []AggregationLevel{AggLevel1, AggLevel2, AggLevel4}, DCIFormat0_0)
	require.True(t, ok)
	assert.Equal(t, AggLevel1, grant.AggLevel)
}
