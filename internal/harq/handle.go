package harq

import (
	"github.com/open-ran-go/gnb-mac-rlc/internal/logging"
	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
)

// StatusUpdate is the result of feeding a decoded HARQ-ACK into a DL HARQ
// process, mirroring dl_harq_process_handle::status_update.
type StatusUpdate uint8

const (
	// StatusNoUpdate means more feedback bits are still expected.
	StatusNoUpdate StatusUpdate = iota
	StatusAcked
	StatusNacked
	StatusError
)

// DLHandle is a lightweight reference to one DL HARQ process living inside
// a CellManager; it is invalidated once the process is deallocated, same
// as dl_harq_process_handle wrapping a pointer into the repository arena.
type DLHandle struct {
	repo *repository
	h    Handle
}

// Valid reports whether the handle refers to a live process.
func (d DLHandle) Valid() bool { return d.repo != nil && d.h != InvalidHandle }

func (d DLHandle) proc() *Process { return d.repo.proc(d.h) }

// ID returns the per-UE DL HARQ process id.
func (d DLHandle) ID() uint8 { return d.proc().ID() }

// Process exposes the underlying process state for read access (grants,
// grid accounting).
func (d DLHandle) Process() *Process { return d.proc() }

// NewRetx schedules a pending DL retransmission, returning false if the
// process has no pending retx.
func (d DLHandle) NewRetx(pdschSlot slot.Point, k1 int, harqBitIdx uint8) bool {
	if !d.repo.handleNewRetx(d.h, pdschSlot, pdschSlot.Add(k1)) {
		return false
	}
	p := d.proc()
	p.harqBitIdx = harqBitIdx
	p.pucchAckToReceive = 0
	p.chosenAck = AckDTX
	p.hasSNR = false
	return true
}

// IncrementPUCCHCounter records that one more HARQ-ACK bit is expected for
// this process (multi-PUCCH-resource scenarios).
func (d DLHandle) IncrementPUCCHCounter() { d.proc().pucchAckToReceive++ }

// SaveGrantParams records the transport-block parameters of the grant
// just built for this process's current transmission.
func (d DLHandle) SaveGrantParams(params AllocParams) { d.proc().SetPrevTxParams(params) }

// DLAckInfo feeds one decoded PUCCH HARQ-ACK bit into the process. snr,
// when snrOK is true, is used to pick between conflicting HARQ-ACK reports
// the way the original prefers the higher-SNR decode.
func (d DLHandle) DLAckInfo(ack AckStatus, snr float64, snrOK bool) StatusUpdate {
	p := d.proc()
	if p.status != StateWaitingAck {
		d.repo.logger.Log(logging.Entry{Level: logging.LevelWarn, Category: "harq", Message: "ack arrived for inactive DL HARQ"})
		return StatusError
	}

	if ack != AckDTX && (!p.hasSNR || (snrOK && p.lastPUCCHSNR < snr)) {
		p.chosenAck = ack
		p.lastPUCCHSNR = snr
		p.hasSNR = snrOK
	}

	if p.pucchAckToReceive <= 1 {
		final := p.chosenAck == AckACK
		d.repo.handleAck(d.h, final)
		if final {
			return StatusAcked
		}
		return StatusNacked
	}

	p.pucchAckToReceive--
	p.ackOnTimeout = p.chosenAck == AckACK
	d.repo.popWheel(d.h)
	p.slotAckTO = d.repo.lastSlot.Add(shortAckTimeoutDTX)
	d.repo.pushWheel(d.h)
	return StatusNoUpdate
}

// ULHandle is a lightweight reference to one UL HARQ process.
type ULHandle struct {
	repo *repository
	h    Handle
}

// Valid reports whether the handle refers to a live process.
func (u ULHandle) Valid() bool { return u.repo != nil && u.h != InvalidHandle }

func (u ULHandle) proc() *Process { return u.repo.proc(u.h) }

// ID returns the per-UE UL HARQ process id.
func (u ULHandle) ID() uint8 { return u.proc().ID() }

// Process exposes the underlying process state.
func (u ULHandle) Process() *Process { return u.proc() }

// NewRetx schedules a pending UL retransmission.
func (u ULHandle) NewRetx(puschSlot slot.Point) bool {
	return u.repo.handleNewRetx(u.h, puschSlot, puschSlot)
}

// SaveGrantParams records the transport-block parameters of the grant
// just built for this process's current transmission.
func (u ULHandle) SaveGrantParams(params AllocParams) { u.proc().SetPrevTxParams(params) }

// ULCRCInfo feeds a decoded PUSCH CRC result into the process, returning
// the transport-block size in bytes on a positive CRC, 0 on a negative
// one, or -1 if the process was not expecting CRC feedback.
func (u ULHandle) ULCRCInfo(ack bool) int {
	p := u.proc()
	if p.status != StateWaitingAck {
		u.repo.logger.Log(logging.Entry{Level: logging.LevelWarn, Category: "harq", Message: "crc arrived for UL HARQ not expecting it"})
		return -1
	}
	u.repo.handleAck(u.h, ack)
	if ack {
		return int(p.prevTx.TBSBytes)
	}
	return 0
}

// CancelRetxs prevents d's underlying process from being retransmitted
// again.
func (d DLHandle) CancelRetxs() { d.repo.cancelRetxs(d.h) }

// CancelRetxs prevents u's underlying process from being retransmitted
// again.
func (u ULHandle) CancelRetxs() { u.repo.cancelRetxs(u.h) }

// UEHarqEntity owns the HARQ process ids reserved for one UE across both
// directions; Destroy (or CellManager.DestroyUE) returns them all to the cell
// pools, matching unique_ue_harq_entity's RAII ownership in Go terms.
type UEHarqEntity struct {
	mgr   *CellManager
	ueIdx int
	rnti  uint32
}

// Destroy releases every HARQ process still held by this UE.
func (e *UEHarqEntity) Destroy() {
	if e.mgr == nil {
		return
	}
	e.mgr.DestroyUE(e.ueIdx)
	e.mgr = nil
}

// AllocDLHarq allocates a fresh DL HARQ process for a new transmission.
func (e *UEHarqEntity) AllocDLHarq(slTx slot.Point, k1 int, maxRetx int, harqBitIdx uint8) (DLHandle, bool) {
	return e.mgr.NewDLTx(e.ueIdx, e.rnti, slTx, k1, maxRetx, harqBitIdx)
}

// AllocULHarq allocates a fresh UL HARQ process for a new transmission.
func (e *UEHarqEntity) AllocULHarq(slTx slot.Point, maxRetx int) (ULHandle, bool) {
	return e.mgr.NewULTx(e.ueIdx, e.rnti, slTx, maxRetx)
}

// FindPendingDLRetx returns a handle to this UE's DL HARQ process
// awaiting retransmission, if any.
func (e *UEHarqEntity) FindPendingDLRetx() (DLHandle, bool) {
	h := e.mgr.dl.findUEHarqInState(e.ueIdx, StatePendingRetx)
	if h == InvalidHandle {
		return DLHandle{}, false
	}
	return DLHandle{repo: e.mgr.dl, h: h}, true
}

// FindPendingULRetx returns a handle to this UE's UL HARQ process
// awaiting retransmission, if any.
func (e *UEHarqEntity) FindPendingULRetx() (ULHandle, bool) {
	h := e.mgr.ul.findUEHarqInState(e.ueIdx, StatePendingRetx)
	if h == InvalidHandle {
		return ULHandle{}, false
	}
	return ULHandle{repo: e.mgr.ul, h: h}, true
}

// FindDLHarqWaitingAck returns a handle to this UE's DL HARQ process
// waiting for feedback, if any.
func (e *UEHarqEntity) FindDLHarqWaitingAck() (DLHandle, bool) {
	h := e.mgr.dl.findUEHarqInState(e.ueIdx, StateWaitingAck)
	if h == InvalidHandle {
		return DLHandle{}, false
	}
	return DLHandle{repo: e.mgr.dl, h: h}, true
}

// FindULHarqWaitingAck returns a handle to this UE's UL HARQ process
// waiting for feedback, if any.
func (e *UEHarqEntity) FindULHarqWaitingAck() (ULHandle, bool) {
	h := e.mgr.ul.findUEHarqInState(e.ueIdx, StateWaitingAck)
	if h == InvalidHandle {
		return ULHandle{}, false
	}
	return ULHandle{repo: e.mgr.ul, h: h}, true
}

// FindDLHarq locates the DL HARQ process expecting its HARQ-ACK at
// uciSlot and harqBitIdx.
func (e *UEHarqEntity) FindDLHarq(uciSlot slot.Point, harqBitIdx uint8) (DLHandle, bool) {
	for _, h := range e.mgr.dl.ues[e.ueIdx].handles {
		if h == InvalidHandle {
			continue
		}
		p := e.mgr.dl.proc(h)
		if p.status == StateWaitingAck && p.slotAck.Equal(uciSlot) && p.harqBitIdx == harqBitIdx {
			return DLHandle{repo: e.mgr.dl, h: h}, true
		}
	}
	return DLHandle{}, false
}

// FindULHarq locates the UL HARQ process transmitted at puschSlot.
func (e *UEHarqEntity) FindULHarq(puschSlot slot.Point) (ULHandle, bool) {
	for _, h := range e.mgr.ul.ues[e.ueIdx].handles {
		if h == InvalidHandle {
			continue
		}
		p := e.mgr.ul.proc(h)
		if p.status == StateWaitingAck && p.slotTx.Equal(puschSlot) {
			return ULHandle{repo: e.mgr.ul, h: h}, true
		}
	}
	return ULHandle{}, false
}
