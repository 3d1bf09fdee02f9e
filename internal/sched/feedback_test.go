package sched

import (
	"testing"

	"github.com/open-ran-go/gnb-mac-rlc/internal/harq"
	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
	"github.com/open-ran-go/gnb-mac-rlc/internal/ueconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDLBufferStateIndicationRestrictsFallbackToLowLCIDs(t *testing.T) {
	f := newUEFixture(t)
	f.addUE(t, 0, 0x4601, true)
	fd := NewFeedbackDispatcher(f.sched, f.cfg)

	fd.DLBufferStateIndication(0, ueconfig.LCID(5), 5000)
	assert.Zero(t, f.sched.ues[0].dlBufferedBytes[ueconfig.LCID(5)])

	fd.DLBufferStateIndication(0, ueconfig.LCID(1), 100)
	assert.EqualValues(t, 100, f.sched.ues[0].dlBufferedBytes[ueconfig.LCID(1)])
}

func TestULBSRIndicationUpdatesBufferedBytes(t *testing.T) {
	f := newUEFixture(t)
	f.addUE(t, 0, 0x4601, false)
	fd := NewFeedbackDispatcher(f.sched, f.cfg)

	fd.ULBSRIndication(0, 4096)
	assert.EqualValues(t, 4096, f.sched.ues[0].ulBSRBytes)
}

func TestCRCIndicationFeedsULHarq(t *testing.T) {
	f := newUEFixture(t)
	f.addUE(t, 0, 0x4601, false)
	fd := NewFeedbackDispatcher(f.sched, f.cfg)

	sl := slot.New(slot.SCS30kHz, 0, 0)
	u := f.sched.ues[0]
	h, ok := u.harq.AllocULHarq(sl, 4)
	require.True(t, ok)
	h.SaveGrantParams(harq.AllocParams{RBs: 4, TBSBytes: 400})

	fd.CRCIndication(0, sl, true)
	assert.False(t, h.Process().Status() == harq.StateWaitingAck, "a positive CRC deallocates the process")
}

func TestUCIIndicationFeedsDLHarqAndCQI(t *testing.T) {
	f := newUEFixture(t)
	f.addUE(t, 0, 0x4601, false)
	fd := NewFeedbackDispatcher(f.sched, f.cfg)

	sl := slot.New(slot.SCS30kHz, 0, 0)
	u := f.sched.ues[0]
	_, ok := u.harq.AllocDLHarq(sl, 4, 4, 0)
	require.True(t, ok)
	ackSlot := sl.Add(4)

	fd.UCIIndication(UCI{
		UEIndex:  0,
		Slot:     ackSlot,
		HarqAcks: []HarqAckBit{{BitIndex: 0, Ack: harq.AckACK, SNR: 10, SNROK: true}},
		CSI:      &CSIReport{WidebandCQI: 12},
	})

	assert.EqualValues(t, 12, u.dlCQI)
	assert.EqualValues(t, 12, u.ulCQI)
}

func TestErrorIndicationFlushesFirstTxULHarq(t *testing.T) {
	f := newUEFixture(t)
	f.addUE(t, 0, 0x4601, false)
	fd := NewFeedbackDispatcher(f.sched, f.cfg)

	sl := slot.New(slot.SCS30kHz, 0, 0)
	u := f.sched.ues[0]
	ulH, ok := u.harq.AllocULHarq(sl, 4)
	require.True(t, ok)

	fd.ErrorIndication(sl)

	_, stillWaiting := u.harq.FindULHarqWaitingAck()
	assert.False(t, stillWaiting, "a first-transmission UL HARQ is flushed outright on error indication")
	_ = ulH
}
