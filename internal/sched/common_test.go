package sched

import (
	"testing"

	"github.com/open-ran-go/gnb-mac-rlc/internal/harq"
	"github.com/open-ran-go/gnb-mac-rlc/internal/logging"
	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommonHarq(t *testing.T) *harq.UEHarqEntity {
	t.Helper()
	mgr := harq.NewCellManager(harq.Config{
		MaxUEs: 4, MaxDLHARQsPerUE: 1, MaxULHARQsPerUE: 4, MaxAckWaitSlots: 8, SCS: slot.SCS30kHz,
	}, nil, logging.NewNoOpLogger())
	e, err := mgr.AddUE(0, 0, 1, 4)
	require.NoError(t, err)
	return e
}

// TestMsg3Retx covers spec scenario S3: a Msg3 CRC-NACK schedules a retx
// within the retx window on the same HARQ process, and the attempt is
// dropped once its retx budget is exhausted.
func TestMsg3Retx(t *testing.T) {
	h := newTestCommonHarq(t)
	ra := NewRAScheduler(h, 4, 4, 1)

	sl := slot.New(slot.SCS30kHz, 0, 0)
	tc := ra.RACHIndication(sl, 17)
	require.NotZero(t, tc)

	res := &Result{}
	rarSlot := sl.Add(4)
	ra.SlotIndication(rarSlot, res)
	require.Len(t, res.PDSCH, 1, "RAR PDSCH emitted at the RAR window slot")

	msg3Slot := rarSlot.Add(4)
	res2 := &Result{}
	ra.SlotIndication(msg3Slot, res2)
	require.Len(t, res2.PUSCH, 1, "Msg3 UL grant emitted at the scheduled Msg3 slot")
	originalID := res2.PUSCH[0].HARQ.ID()

	cr := ra.Msg3CRC(false, tc, msg3Slot, 35)
	assert.Nil(t, cr, "a NACK does not complete contention resolution")

	res3 := &Result{}
	ra.SlotIndication(msg3Slot.Add(16), res3)
	require.Len(t, res3.PUSCH, 1, "Msg3 retx scheduled within 16 slots on the same HARQ id")
	assert.Equal(t, GrantRetx, res3.PUSCH[0].Kind)
	assert.Equal(t, originalID, res3.PUSCH[0].HARQ.ID())

	cr2 := ra.Msg3CRC(false, tc, msg3Slot.Add(16), 35)
	assert.Nil(t, cr2, "second NACK exhausts the max_retxs=1 budget and drops the attempt")

	cr3 := ra.Msg3CRC(true, tc, msg3Slot.Add(16), 35)
	assert.Nil(t, cr3, "attempt was already dropped; a late CRC is a no-op")
}

func TestMsg3CRCAckStartsContentionResolution(t *testing.T) {
	h := newTestCommonHarq(t)
	ra := NewRAScheduler(h, 4, 4, 4)

	sl := slot.New(slot.SCS30kHz, 0, 0)
	tc := ra.RACHIndication(sl, 5)
	res := &Result{}
	ra.SlotIndication(sl.Add(4), res)
	ra.SlotIndication(sl.Add(8), res)

	cr := ra.Msg3CRC(true, tc, sl.Add(8), 35)
	require.NotNil(t, cr)
	assert.False(t, cr.Ready(), "ConRes not ready until the CE and an SRB0/1 SDU arrive")
}

// TestConResMsg4ScheduledOnceReady covers spec scenario S4: a Msg4 PDSCH,
// addressed to the TC-RNTI with no CSI-RS multiplexed, is emitted the slot
// the ConRes CE and an SRB0/SRB1 Msg4 SDU have both arrived, and the
// attempt then drops out of tracking (no further Msg4 is emitted).
func TestConResMsg4ScheduledOnceReady(t *testing.T) {
	h := newTestCommonHarq(t)
	ra := NewRAScheduler(h, 4, 4, 4)

	sl := slot.New(slot.SCS30kHz, 0, 0)
	tc := ra.RACHIndication(sl, 5)
	ra.SlotIndication(sl.Add(4), &Result{})
	msg3Slot := sl.Add(8)
	ra.SlotIndication(msg3Slot, &Result{})

	cr := ra.Msg3CRC(true, tc, msg3Slot, 35)
	require.NotNil(t, cr)

	// Not ready yet: no Msg4 PDSCH before the CE/SDU arrive.
	notReady := &Result{}
	ra.SlotIndication(msg3Slot.Add(1), notReady)
	assert.Empty(t, notReady.PDSCH)

	ra.ConResIndication(tc, true, false, true)

	ready := &Result{}
	ra.SlotIndication(msg3Slot.Add(2), ready)
	require.Len(t, ready.PDSCH, 1)
	assert.Equal(t, tc, ready.PDSCH[0].RNTI)
	assert.True(t, ready.PDSCH[0].NoCSIRS, "no CSI-RS may be multiplexed with the ConRes Msg4 grant")

	// The attempt is complete: no further Msg4 is ever scheduled for it.
	again := &Result{}
	ra.SlotIndication(msg3Slot.Add(3), again)
	assert.Empty(t, again.PDSCH)
}

// TestConResExpiresWithoutMsg4 covers the §8 boundary property: once the
// ConRes timer elapses with no CE/SDU, no further ConRes PDSCH is ever
// scheduled for that attempt.
func TestConResExpiresWithoutMsg4(t *testing.T) {
	h := newTestCommonHarq(t)
	ra := NewRAScheduler(h, 4, 4, 4)

	sl := slot.New(slot.SCS30kHz, 0, 0)
	tc := ra.RACHIndication(sl, 5)
	ra.SlotIndication(sl.Add(4), &Result{})
	msg3Slot := sl.Add(8)
	ra.SlotIndication(msg3Slot, &Result{})

	cr := ra.Msg3CRC(true, tc, msg3Slot, 2)
	require.NotNil(t, cr)
	require.Equal(t, msg3Slot.Add(2), cr.ExpirySlot)

	atExpiry := &Result{}
	ra.SlotIndication(msg3Slot.Add(2), atExpiry)
	assert.Empty(t, atExpiry.PDSCH, "timer elapsed before the CE/SDU arrived")

	ra.ConResIndication(tc, true, true, false)
	afterExpiry := &Result{}
	ra.SlotIndication(msg3Slot.Add(3), afterExpiry)
	assert.Empty(t, afterExpiry.PDSCH, "no ConRes PDSCH is scheduled once the timer has expired")
}

func TestSIScheduleDueOncePerWindow(t *testing.T) {
	si := NewSIScheduler([]SIMessage{{ID: 1, PayloadBytes: 200, PeriodFrames: 16}}, 2, 32)
	sl := slot.New(slot.SCS30kHz, 0, 0)
	due := si.MaybeSchedule(sl)
	require.Len(t, due, 1)

	sl2 := slot.New(slot.SCS30kHz, 1, 0)
	due2 := si.MaybeSchedule(sl2)
	assert.Empty(t, due2, "not due again until its own period elapses")

	sl3 := slot.New(slot.SCS30kHz, 16, 0)
	due3 := si.MaybeSchedule(sl3)
	assert.Len(t, due3, 1, "due again once its configured period has elapsed")
}

func TestPagingOnlyWhilePending(t *testing.T) {
	pg := NewPagingScheduler([]uint64{1, 2}, 1)
	sl := slot.New(slot.SCS30kHz, 0, 0)
	assert.Empty(t, pg.Occasions(sl))

	pg.NotifyUpdatePending()
	occ := pg.Occasions(sl)
	assert.Len(t, occ, 2)

	pg.ClearUpdatePending()
	assert.Empty(t, pg.Occasions(sl))
}
