package sched

import (
	"github.com/open-ran-go/gnb-mac-rlc/internal/harq"
	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
	"github.com/open-ran-go/gnb-mac-rlc/internal/ueconfig"
)

// UCI is one slot's decoded uplink control information for a UE, split
// into its three components per spec 4.9: HARQ-ACK bits, scheduling
// request, and CSI report.
type UCI struct {
	UEIndex  int
	Slot     slot.Point
	HarqAcks []HarqAckBit
	SR       *bool // nil if no SR occasion this slot
	CSI      *CSIReport
}

// HarqAckBit is one decoded HARQ-ACK codebook bit.
type HarqAckBit struct {
	BitIndex uint8
	Ack      harq.AckStatus
	SNR      float64
	SNROK    bool
}

// CSIReport is a decoded channel-quality report (simplified to a single
// wideband CQI, the only part the scheduler's MCS selection consumes).
type CSIReport struct {
	WidebandCQI uint8
}

// FeedbackDispatcher routes PHY indications (buffer state, BSR, CRC, UCI,
// error indication) into the HARQ repositories and UE scheduler state
// carrying them, per spec 4.9. Grounded on spec.md's own prose for the
// dispatch policy and on internal/harq's handle-based CRC/ACK feeding
// methods for the actual state transitions.
type FeedbackDispatcher struct {
	ues *UEScheduler
	cfg *ueconfig.Store
}

// NewFeedbackDispatcher constructs a dispatcher wired to the UE scheduler's
// per-UE state and the config store it needs to determine fallback mode.
func NewFeedbackDispatcher(ues *UEScheduler, cfg *ueconfig.Store) *FeedbackDispatcher {
	return &FeedbackDispatcher{ues: ues, cfg: cfg}
}

// DLBufferStateIndication records one logical channel's RLC buffer
// occupancy, restricted to LCID 0/1 while the UE is in fallback mode (spec
// 4.8's "Fallback mode... DL scheduling is restricted to LCID 0/1").
func (f *FeedbackDispatcher) DLBufferStateIndication(ueIndex int, lcid ueconfig.LCID, bytes uint32) {
	snap := f.cfg.Current(ueIndex)
	if snap != nil && snap.Fallback && lcid > 1 {
		return
	}
	f.ues.OnDLBufferState(ueIndex, lcid, bytes)
}

// ULBSRIndication records a UE's total UL buffer-status-report byte count.
func (f *FeedbackDispatcher) ULBSRIndication(ueIndex int, bytes uint32) {
	f.ues.OnULBSR(ueIndex, bytes)
}

// CRCIndication feeds a decoded PUSCH CRC result into the UE's UL HARQ
// process transmitted at puschSlot.
func (f *FeedbackDispatcher) CRCIndication(ueIndex int, puschSlot slot.Point, ack bool) {
	u, ok := f.ues.ues[ueIndex]
	if !ok {
		return
	}
	h, ok := u.harq.FindULHarq(puschSlot)
	if !ok {
		return
	}
	h.ULCRCInfo(ack)
}

// UCIIndication feeds one slot's decoded HARQ-ACK bits, SR, and CSI into
// the UE's DL HARQ processes and scheduler-local CQI tracker.
func (f *FeedbackDispatcher) UCIIndication(u UCI) {
	ue, ok := f.ues.ues[u.UEIndex]
	if !ok {
		return
	}
	for _, bit := range u.HarqAcks {
		h, ok := ue.harq.FindDLHarq(u.Slot, bit.BitIndex)
		if !ok {
			continue
		}
		h.DLAckInfo(bit.Ack, bit.SNR, bit.SNROK)
	}
	if u.CSI != nil {
		ue.dlCQI = u.CSI.WidebandCQI
		ue.ulCQI = u.CSI.WidebandCQI
	}
}

// ErrorIndication handles a PHY error report for sl. For each UE it checks
// only the first DL HARQ process found waiting for feedback and the first
// UL one: the DL process is marked retx-ready if its PDSCH was in sl, and
// the UL process is flushed outright if it was a first transmission in
// sl. Any other waiting process of the UE in that slot is not touched and
// is left to the ack-timeout wheel.
func (f *FeedbackDispatcher) ErrorIndication(sl slot.Point) {
	for _, ue := range f.ues.ues {
		if h, ok := ue.harq.FindDLHarqWaitingAck(); ok {
			p := h.Process()
			if p.SlotTx().Equal(sl) {
				h.DLAckInfo(harq.AckNACK, 0, false)
			}
		}
		if h, ok := ue.harq.FindULHarqWaitingAck(); ok {
			p := h.Process()
			if p.SlotTx().Equal(sl) && p.NumRetx() == 0 {
				h.CancelRetxs()
				h.ULCRCInfo(false)
			}
		}
	}
}
