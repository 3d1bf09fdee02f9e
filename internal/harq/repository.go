package harq

import (
	"container/list"

	"github.com/open-ran-go/gnb-mac-rlc/internal/logging"
	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
)

// ueEntry tracks one UE's reserved HARQ ids within a direction's
// repository, mirroring cell_harq_repository::ue_harq_entity_impl.
type ueEntry struct {
	handles []Handle // harq id -> Handle, InvalidHandle if unused
	freeIDs []uint8  // stack of free harq ids
}

// repository is cell_harq_repository<IsDl>: a fixed arena of Process
// slots shared by every UE on the cell, a free list, a slot-indexed
// ack-timeout wheel, and a FIFO of processes awaiting retransmission.
type repository struct {
	isDL     bool
	maxWait  uint32 // max_ack_wait_in_slots
	notifier TimeoutNotifier
	logger   logging.Logger

	procs     []Process
	freeProcs []Handle

	ues []ueEntry

	wheel     [][]Handle
	wheelSize uint32

	pendingRetx   *list.List // elements are Handle
	retxElem      []*list.Element
	lastSlotValid bool
	lastSlot      slot.Point
}

func newRepository(isDL bool, maxUEs, maxHARQsPerUE int, maxAckWaitSlots uint32, scs slot.SCS, notifier TimeoutNotifier, logger logging.Logger) *repository {
	if notifier == nil {
		notifier = noopTimeoutNotifier{}
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	total := maxUEs * maxHARQsPerUE
	modulus := slot.New(scs, 0, 0).Modulus()
	wheelSize := slot.RingSizeAtLeast(modulus, maxAckWaitSlots+maxULAllocDelay)

	r := &repository{
		isDL:        isDL,
		maxWait:     maxAckWaitSlots,
		notifier:    notifier,
		logger:      logger,
		procs:       make([]Process, total),
		freeProcs:   make([]Handle, total),
		ues:         make([]ueEntry, maxUEs),
		wheel:       make([][]Handle, wheelSize),
		wheelSize:   wheelSize,
		pendingRetx: list.New(),
		retxElem:    make([]*list.Element, total),
	}
	for i := range r.procs {
		r.freeProcs[i] = Handle(total - i - 1)
		r.procs[i].wheelSlot = -1
	}
	return r
}

func (r *repository) proc(h Handle) *Process { return &r.procs[h] }

// reserveUEHarqs allocates n HARQ ids for ueIdx, all initially free.
func (r *repository) reserveUEHarqs(ueIdx, n int) {
	e := &r.ues[ueIdx]
	e.handles = make([]Handle, n)
	e.freeIDs = make([]uint8, n)
	for i := 0; i < n; i++ {
		e.freeIDs[i] = uint8(n - i - 1)
		e.handles[i] = InvalidHandle
	}
}

// destroyUEHarqs returns every process still allocated to ueIdx to the
// cell free list.
func (r *repository) destroyUEHarqs(ueIdx int) {
	e := &r.ues[ueIdx]
	for _, h := range e.handles {
		if h != InvalidHandle {
			r.deallocHARQ(h)
		}
	}
	e.freeIDs = nil
}

// allocHARQ assigns a free process to ueIdx, returning InvalidHandle if
// either the cell or the UE has exhausted its HARQ ids.
func (r *repository) allocHARQ(ueIdx int, rnti uint32, slTx, slAck slot.Point, maxRetx int) Handle {
	e := &r.ues[ueIdx]
	if len(r.freeProcs) == 0 || len(e.freeIDs) == 0 {
		return InvalidHandle
	}

	id := e.freeIDs[len(e.freeIDs)-1]
	e.freeIDs = e.freeIDs[:len(e.freeIDs)-1]

	h := r.freeProcs[len(r.freeProcs)-1]
	r.freeProcs = r.freeProcs[:len(r.freeProcs)-1]
	e.handles[id] = h

	p := r.proc(h)
	*p = Process{
		ueIdx:     ueIdx,
		rnti:      rnti,
		id:        id,
		status:    StateWaitingAck,
		slotTx:    slTx,
		slotAck:   slAck,
		maxRetx:   maxRetx,
		ndi:       !p.ndi,
		wheelSlot: -1,
	}
	p.slotAckTO = slAck.Add(int(r.maxWait))
	r.pushWheel(h)
	return h
}

// deallocHARQ returns h to the cell free list, unlinking it from whatever
// timing structure (wheel or pending-retx list) currently references it.
func (r *repository) deallocHARQ(h Handle) {
	p := r.proc(h)
	if p.status == StateEmpty {
		return
	}
	e := &r.ues[p.ueIdx]
	e.handles[p.id] = InvalidHandle
	e.freeIDs = append(e.freeIDs, p.id)
	r.freeProcs = append(r.freeProcs, h)

	if p.status == StateWaitingAck {
		r.popWheel(h)
	} else {
		r.popRetxQueue(h)
	}
	p.status = StateEmpty
}

func (r *repository) wheelIndex(sl slot.Point) uint32 { return sl.Count() % r.wheelSize }

func (r *repository) pushWheel(h Handle) {
	p := r.proc(h)
	idx := r.wheelIndex(p.slotAckTO)
	r.wheel[idx] = append(r.wheel[idx], h)
	p.wheelSlot = int(idx)
}

func (r *repository) popWheel(h Handle) {
	p := r.proc(h)
	if p.wheelSlot < 0 {
		return
	}
	bucket := r.wheel[p.wheelSlot]
	for i, v := range bucket {
		if v == h {
			r.wheel[p.wheelSlot] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	p.wheelSlot = -1
}

func (r *repository) pushRetxQueue(h Handle) {
	p := r.proc(h)
	r.retxElem[h] = r.pendingRetx.PushBack(h)
	p.inRetxQ = true
}

func (r *repository) popRetxQueue(h Handle) {
	p := r.proc(h)
	if !p.inRetxQ {
		return
	}
	r.pendingRetx.Remove(r.retxElem[h])
	r.retxElem[h] = nil
	p.inRetxQ = false
}

// handleAck applies the outcome of a decoded HARQ-ACK/CRC: a positive ack,
// or a negative one that has exhausted its retransmission budget,
// deallocates the process; otherwise it is queued for retransmission.
func (r *repository) handleAck(h Handle, ack bool) {
	p := r.proc(h)
	if !ack && p.numRetx >= p.maxRetx {
		if p.retxCancelled {
			r.logger.Log(logging.Entry{Level: logging.LevelDebug, Category: "harq", Message: "discarding HARQ: retransmissions were cancelled"})
		} else {
			r.logger.Log(logging.Entry{Level: logging.LevelInfo, Category: "harq", Message: "discarding HARQ: maximum retransmissions exceeded"})
		}
	}
	if ack || p.numRetx >= p.maxRetx {
		r.deallocHARQ(h)
		return
	}
	r.setPendingRetx(h)
}

func (r *repository) setPendingRetx(h Handle) {
	p := r.proc(h)
	if p.status == StatePendingRetx {
		return
	}
	r.popWheel(h)
	p.status = StatePendingRetx
	r.pushRetxQueue(h)
}

// handleNewRetx transitions a pending-retx process back into waiting_ack
// for a freshly scheduled retransmission. Returns false if h has no
// pending retransmission.
func (r *repository) handleNewRetx(h Handle, slTx, slAck slot.Point) bool {
	p := r.proc(h)
	if p.status != StatePendingRetx {
		r.logger.Log(logging.Entry{Level: logging.LevelWarn, Category: "harq", Message: "retx attempted on HARQ with no pending retx"})
		return false
	}
	r.popRetxQueue(h)
	p.status = StateWaitingAck
	p.slotTx = slTx
	p.slotAck = slAck
	p.ackOnTimeout = false
	p.numRetx++
	p.slotAckTO = slAck.Add(int(r.maxWait))
	r.pushWheel(h)
	return true
}

// cancelRetxs prevents any further retransmission of h: if a retx is
// already pending it is discarded outright; if still waiting for
// feedback, the retx budget is capped so the next handleAck call
// deallocates it instead of requeuing it.
func (r *repository) cancelRetxs(h Handle) {
	p := r.proc(h)
	switch p.status {
	case StateEmpty:
		return
	case StatePendingRetx:
		r.deallocHARQ(h)
	default:
		p.maxRetx = p.numRetx
		p.retxCancelled = true
	}
}

func (r *repository) findUEHarqInState(ueIdx int, state State) Handle {
	for _, h := range r.ues[ueIdx].handles {
		if h != InvalidHandle && r.proc(h).status == state {
			return h
		}
	}
	return InvalidHandle
}

// slotIndication advances the repository's notion of "now": it drains
// ack-timed-out processes from the wheel bucket due this slot, and sweeps
// the head of the pending-retx queue for processes that have sat
// unscheduled for too long (a scheduler-policy bug safety net, not a
// protocol timer).
func (r *repository) slotIndication(sl slot.Point) {
	r.lastSlot = sl
	r.lastSlotValid = true

	idx := r.wheelIndex(sl)
	for len(r.wheel[idx]) > 0 {
		h := r.wheel[idx][0]
		r.handleTimeout(h, sl)
	}

	slotsPerSystemFrame := sl.Modulus()
	maxSlotsForRetx := slotsPerSystemFrame / 4
	for r.pendingRetx.Len() > 0 {
		h := r.pendingRetx.Front().Value.(Handle)
		p := r.proc(h)
		if sl.Sub(p.slotAck) < int(maxSlotsForRetx) {
			break
		}
		r.logger.Log(logging.Entry{
			Level:    logging.LevelWarn,
			Category: "harq",
			Message:  "discarding trapped HARQ: too long since last transmission",
		})
		r.deallocHARQ(h)
	}
}

func (r *repository) handleTimeout(h Handle, sl slot.Point) {
	p := r.proc(h)
	if r.maxWait != 1 {
		if p.ackOnTimeout {
			r.logger.Log(logging.Entry{Level: logging.LevelDebug, Category: "harq", Message: "HARQ ack-wait timeout reached with a prior positive ack"})
		} else {
			r.logger.Log(logging.Entry{Level: logging.LevelWarn, Category: "harq", Message: "discarding HARQ: ack-wait timeout reached with no positive ack"})
		}
		r.notifier.OnHARQTimeout(p.ueIdx, r.isDL, p.ackOnTimeout)
	}
	r.deallocHARQ(h)
}
