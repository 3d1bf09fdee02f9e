package harq

import (
	"testing"

	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	calls []struct {
		ueIdx int
		isDL  bool
		ack   bool
	}
}

func (r *recordingNotifier) OnHARQTimeout(ueIdx int, isDL bool, ack bool) {
	r.calls = append(r.calls, struct {
		ueIdx int
		isDL  bool
		ack   bool
	}{ueIdx, isDL, ack})
}

func newTestManager(t *testing.T, notifier TimeoutNotifier) *CellManager {
	t.Helper()
	return NewCellManager(Config{
		MaxUEs:          4,
		MaxDLHARQsPerUE: 8,
		MaxULHARQsPerUE: 8,
		MaxAckWaitSlots: 8,
		SCS:             slot.SCS30kHz,
	}, notifier, nil)
}

func TestAllocAckDeallocates(t *testing.T) {
	m := newTestManager(t, nil)
	ue, err := m.AddUE(0, 0x4601, 8, 8)
	require.NoError(t, err)
	defer ue.Destroy()

	sl := slot.New(slot.SCS30kHz, 0, 0)
	h, ok := ue.AllocDLHarq(sl, 4, 4, 0)
	require.True(t, ok)
	assert.Equal(t, StateWaitingAck, h.Process().Status())

	update := h.DLAckInfo(AckACK, 0, false)
	assert.Equal(t, StatusAcked, update)
	assert.Equal(t, StateEmpty, h.Process().Status())
}

func TestNackRetxLifecycle(t *testing.T) {
	m := newTestManager(t, nil)
	ue, err := m.AddUE(0, 0x4601, 8, 8)
	require.NoError(t, err)
	defer ue.Destroy()

	sl := slot.New(slot.SCS30kHz, 0, 0)
	h, ok := ue.AllocDLHarq(sl, 4, 2, 0)
	require.True(t, ok)

	update := h.DLAckInfo(AckNACK, 0, false)
	assert.Equal(t, StatusNacked, update)
	assert.Equal(t, StatePendingRetx, h.Process().Status())

	retxH, found := ue.FindPendingDLRetx()
	require.True(t, found)
	assert.Equal(t, h.ID(), retxH.ID())

	nextSlot := sl.Add(8)
	require.True(t, retxH.NewRetx(nextSlot, 4, 0))
	assert.Equal(t, StateWaitingAck, retxH.Process().Status())
	assert.Equal(t, 1, retxH.Process().NumRetx())
}

func TestMaxRetxExceededDeallocates(t *testing.T) {
	m := newTestManager(t, nil)
	ue, err := m.AddUE(0, 0x4601, 8, 8)
	require.NoError(t, err)
	defer ue.Destroy()

	sl := slot.New(slot.SCS30kHz, 0, 0)
	h, ok := ue.AllocDLHarq(sl, 4, 0, 0)
	require.True(t, ok)

	update := h.DLAckInfo(AckNACK, 0, false)
	assert.Equal(t, StatusNacked, update)
	assert.Equal(t, StateEmpty, h.Process().Status())
}

func TestAckTimeoutFiresNotifier(t *testing.T) {
	notifier := &recordingNotifier{}
	m := newTestManager(t, notifier)
	ue, err := m.AddUE(1, 0x4602, 8, 8)
	require.NoError(t, err)
	defer ue.Destroy()

	sl := slot.New(slot.SCS30kHz, 0, 0)
	h, ok := ue.AllocDLHarq(sl, 0, 4, 0)
	require.True(t, ok)
	ackSlot := sl

	timeoutSlot := ackSlot.Add(8) // maxAckWaitSlots
	m.SlotIndication(timeoutSlot)

	assert.Equal(t, StateEmpty, h.Process().Status())
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, 1, notifier.calls[0].ueIdx)
	assert.True(t, notifier.calls[0].isDL)
}

func TestULAllocAndCRC(t *testing.T) {
	m := newTestManager(t, nil)
	ue, err := m.AddUE(0, 0x4601, 8, 8)
	require.NoError(t, err)
	defer ue.Destroy()

	sl := slot.New(slot.SCS30kHz, 0, 4)
	h, ok := ue.AllocULHarq(sl, 4)
	require.True(t, ok)
	h.SaveGrantParams(AllocParams{TBSBytes: 128})

	n := h.ULCRCInfo(true)
	assert.Equal(t, 128, n)
	assert.Equal(t, StateEmpty, h.Process().Status())
}

func TestCancelRetxsDiscardsPending(t *testing.T) {
	m := newTestManager(t, nil)
	ue, err := m.AddUE(0, 0x4601, 8, 8)
	require.NoError(t, err)
	defer ue.Destroy()

	sl := slot.New(slot.SCS30kHz, 0, 0)
	h, ok := ue.AllocDLHarq(sl, 4, 2, 0)
	require.True(t, ok)
	h.DLAckInfo(AckNACK, 0, false)
	assert.Equal(t, StatePendingRetx, h.Process().Status())

	h.CancelRetxs()
	assert.Equal(t, StateEmpty, h.Process().Status())
}

func TestAllocExhaustionReturnsFalse(t *testing.T) {
	m := newTestManager(t, nil)
	ue, err := m.AddUE(0, 0x4601, 1, 1)
	require.NoError(t, err)
	defer ue.Destroy()

	sl := slot.New(slot.SCS30kHz, 0, 0)
	_, ok := ue.AllocDLHarq(sl, 4, 4, 0)
	require.True(t, ok)

	_, ok = ue.AllocDLHarq(sl, 4, 4, 0)
	assert.False(t, ok, "ue has only one dl harq id reserved")
}
