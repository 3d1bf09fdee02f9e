package harq

import (
	"fmt"

	"github.com/open-ran-go/gnb-mac-rlc/internal/logging"
	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
)

// Config bounds a CellManager's process arena.
type Config struct {
	MaxUEs           int
	MaxDLHARQsPerUE  int
	MaxULHARQsPerUE  int
	MaxAckWaitSlots  uint32
	SCS              slot.SCS
}

// CellManager is cell_harq_manager: a cell-wide pair of DL/UL HARQ
// repositories, one slot_indication call advancing both.
type CellManager struct {
	dl         *repository
	ul         *repository
	lastSlotTx slot.Point
}

// NewCellManager constructs a CellManager with the given bounds. notifier
// may be nil, in which case timeouts are silently discarded (matching the
// original's noop_harq_timeout_notifier default).
func NewCellManager(cfg Config, notifier TimeoutNotifier, logger logging.Logger) *CellManager {
	return &CellManager{
		dl: newRepository(true, cfg.MaxUEs, cfg.MaxDLHARQsPerUE, cfg.MaxAckWaitSlots, cfg.SCS, notifier, logger),
		ul: newRepository(false, cfg.MaxUEs, cfg.MaxULHARQsPerUE, cfg.MaxAckWaitSlots, cfg.SCS, notifier, logger),
	}
}

// SlotIndication advances both repositories' ack-timeout wheels and
// trapped-retx sweeps to sl.
func (m *CellManager) SlotIndication(sl slot.Point) {
	m.lastSlotTx = sl
	m.dl.slotIndication(sl)
	m.ul.slotIndication(sl)
}

// Contains reports whether ueIdx currently has any reserved HARQ ids.
func (m *CellManager) Contains(ueIdx int) bool {
	if ueIdx >= len(m.dl.ues) {
		return false
	}
	e := &m.dl.ues[ueIdx]
	if len(e.freeIDs) != 0 {
		return true
	}
	for _, h := range e.handles {
		if h != InvalidHandle {
			return true
		}
	}
	return false
}

// AddUE reserves nofDL/nofUL HARQ ids for ueIdx and returns a handle to
// manage them. ueIdx must not already be in use.
func (m *CellManager) AddUE(ueIdx int, rnti uint32, nofDL, nofUL int) (*UEHarqEntity, error) {
	if nofDL <= 0 || nofUL <= 0 {
		return nil, fmt.Errorf("harq: invalid number of harq processes (dl=%d ul=%d)", nofDL, nofUL)
	}
	if m.Contains(ueIdx) {
		return nil, fmt.Errorf("harq: ue index %d already in use", ueIdx)
	}
	m.dl.reserveUEHarqs(ueIdx, nofDL)
	m.ul.reserveUEHarqs(ueIdx, nofUL)
	return &UEHarqEntity{mgr: m, ueIdx: ueIdx, rnti: rnti}, nil
}

// DestroyUE releases every HARQ process still held by ueIdx.
func (m *CellManager) DestroyUE(ueIdx int) {
	m.dl.destroyUEHarqs(ueIdx)
	m.ul.destroyUEHarqs(ueIdx)
}

// NewDLTx allocates a DL HARQ process for a fresh (non-retx) transmission.
func (m *CellManager) NewDLTx(ueIdx int, rnti uint32, pdschSlot slot.Point, k1 int, maxRetx int, harqBitIdx uint8) (DLHandle, bool) {
	h := m.dl.allocHARQ(ueIdx, rnti, pdschSlot, pdschSlot.Add(k1), maxRetx)
	if h == InvalidHandle {
		return DLHandle{}, false
	}
	p := m.dl.proc(h)
	p.harqBitIdx = harqBitIdx
	p.pucchAckToReceive = 0
	p.chosenAck = AckDTX
	p.hasSNR = false
	return DLHandle{repo: m.dl, h: h}, true
}

// NewULTx allocates a UL HARQ process for a fresh (non-retx) transmission.
func (m *CellManager) NewULTx(ueIdx int, rnti uint32, puschSlot slot.Point, maxRetx int) (ULHandle, bool) {
	h := m.ul.allocHARQ(ueIdx, rnti, puschSlot, puschSlot, maxRetx)
	if h == InvalidHandle {
		return ULHandle{}, false
	}
	return ULHandle{repo: m.ul, h: h}, true
}
