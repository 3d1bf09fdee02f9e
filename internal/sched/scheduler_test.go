package sched

import (
	"testing"

	"github.com/open-ran-go/gnb-mac-rlc/internal/logging"
	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
	"github.com/open-ran-go/gnb-mac-rlc/internal/ueconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	req := CellConfigurationRequest{
		CellID:       1,
		SCS:          slot.SCS30kHz,
		NumPRBs:      testNumPRBs,
		NumSymbols:   14,
		CoresetID:    0,
		NumCCEs:      16,
		GridHorizonK: 16,
		PUCCHMaxPRB:  40,
		DLSymbols:    []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13},
		ULSymbols:    []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13},
		TDDPeriodSlots: 1,
		IsULSlot:       []bool{true},
		K2Candidates:   []int{4},
		SIWindowCoeff:  2,
		DefaultPagingCycleFrames: 32,
		RARWindowSlots:   4,
		Msg3K2:           4,
		MaxMsg3Retx:      4,
		ConResTimeoutSlots: 35,
		MaxULHarqProcsCommon: 4,
	}
	s, err := NewScheduler(req, nil, logging.NewNoOpLogger())
	require.NoError(t, err)
	return s
}

func TestSchedulerUELifecycleAndSlotIndication(t *testing.T) {
	s := newTestScheduler(t)

	err := s.HandleUECreationRequest(UECreationRequest{
		UEIndex: 0, RNTI: 0x4601, NofDLHarq: 4, NofULHarq: 4, NofHARQAckPUCCH: 2,
		Snapshot: &ueconfig.Snapshot{
			UEIndex: 0, RNTI: 0x4601, CellID: 1, SCS: slot.SCS30kHz,
			DedicatedBWP: testBWP(), FallbackBWP: testBWP(),
			K1Candidates: []int{4}, MinK2: 4,
		},
	})
	require.NoError(t, err)

	s.HandleDLBufferStateIndication(0, ueconfig.LCID(4), 100)

	sl := slot.New(slot.SCS30kHz, 0, 0)
	res := s.SlotIndication(sl)
	require.Len(t, res.PDSCH, 1)
	assert.Equal(t, GrantNewTx, res.PDSCH[0].Kind)

	s.HandleUERemovalRequest(0)
	assert.Nil(t, s.cfg.Current(0))
}

func TestSchedulerRACHThroughMsg3(t *testing.T) {
	s := newTestScheduler(t)

	sl := slot.New(slot.SCS30kHz, 0, 0)
	tcs := s.RACHIndication(sl, []RACHOccasion{{Preamble: 9}})
	require.Len(t, tcs, 1)
	require.NotZero(t, tcs[0])

	rarSlot := sl.Add(4)
	res := s.SlotIndication(rarSlot)
	require.Len(t, res.PDSCH, 1, "RAR PDSCH emitted at the RAR window slot")

	msg3Slot := rarSlot.Add(4)
	res2 := s.SlotIndication(msg3Slot)
	require.Len(t, res2.PUSCH, 1, "Msg3 UL grant emitted at the scheduled slot")

	s.CRCIndication([]CRCReport{{TCRNTI: tcs[0], PUSCHSlot: msg3Slot, Ack: true}})

	s.ConResIndication(tcs[0], true, true, false)
	res3 := s.SlotIndication(msg3Slot.Add(1))
	require.Len(t, res3.PDSCH, 1, "Msg4 PDSCH emitted once the ConRes CE and an SRB0 SDU have both arrived")
	assert.Equal(t, tcs[0], res3.PDSCH[0].RNTI)
	assert.True(t, res3.PDSCH[0].NoCSIRS)
}

func TestSchedulerRejectsReconfigurationOfDifferentCell(t *testing.T) {
	s := newTestScheduler(t)
	err := s.HandleCellConfigurationRequest(CellConfigurationRequest{CellID: 2})
	assert.Error(t, err)
}
