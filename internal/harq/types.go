// Package harq implements the per-cell HARQ process pools of spec section
// 4.2: a fixed arena of DL and UL HARQ processes per UE, a slot-indexed
// ack-timeout wheel, and a trapped-retransmission sweep, closely following
// original_source/lib/scheduler/ue_scheduling/cell_harq_manager.cpp (the
// cell_harq_repository<IsDl> template, its free lists, its timeout wheel
// and pending-retx list).
//
// Go has no template-over-bool equivalent; the two directions are kept as
// one Process shape carrying both DL-only and UL-only fields (the UL-only
// repository simply never touches the DL fields), and two repository
// instances - dl and ul - inside CellManager, matching the original's
// "cell_harq_repository<true> dl; cell_harq_repository<false> ul;" layout.
package harq

import (
	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
)

// Handle is an index into a repository's process arena. InvalidHandle
// marks "no such HARQ process", mirroring INVALID_HARQ_REF_INDEX.
type Handle int32

// InvalidHandle is the zero-value-safe sentinel for "no process".
const InvalidHandle Handle = -1

// State is a HARQ process's lifecycle state.
type State uint8

const (
	// StateEmpty means the process is on the free list.
	StateEmpty State = iota
	// StateWaitingAck means a transmission is in flight, awaiting feedback.
	StateWaitingAck
	// StatePendingRetx means feedback was negative and a retransmission
	// has not yet been scheduled.
	StatePendingRetx
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateWaitingAck:
		return "waiting_ack"
	case StatePendingRetx:
		return "pending_retx"
	default:
		return "unknown"
	}
}

// AckStatus is the decoded HARQ-ACK value carried by mac_harq_ack_report_status.
type AckStatus uint8

const (
	AckDTX  AckStatus = iota // no detection
	AckACK                   // positive
	AckNACK                  // negative
)

// AllocParams records the transport-block parameters of the HARQ
// process's current (re)transmission, kept invariant across retxs per the
// original's sanity checks (TBS, DCI format and fallback state cannot
// change between retransmissions of the same HARQ process).
type AllocParams struct {
	TBSBytes   uint32
	MCS        uint8
	MCSTable   uint8
	RBs        int
	NumLayers  uint8
	NumSymbols uint8
	IsFallback bool
	SliceID    uint8
	DCIFormat  uint8
}

// maxULAllocDelay is the implementation-defined maximum K2 (PUSCH
// scheduling delay) the cell grid horizon must accommodate, matching the
// original's get_max_slot_ul_alloc_delay(0) used to size the ack-timeout
// wheel generously enough that a process scheduled near the horizon edge
// never wraps onto itself.
const maxULAllocDelay = 4

// shortAckTimeoutDTX is SHORT_ACK_TIMEOUT_DTX: once one of two expected
// PUCCH HARQ-ACK bits has arrived, the wait for the second is shortened to
// this many slots, since both are expected to arrive together.
//
// Open question resolution: the original leaves this implementation-
// defined; 4 slots was chosen to comfortably span one SR/CSI opportunity
// without leaving the HARQ allocated for long after a partial ACK.
const shortAckTimeoutDTX = 4

// TimeoutNotifier is informed whenever a HARQ process is torn down by the
// ack-wait timeout rather than by an explicit ACK/NACK.
type TimeoutNotifier interface {
	OnHARQTimeout(ueIdx int, isDL bool, ackOnTimeout bool)
}

type noopTimeoutNotifier struct{}

func (noopTimeoutNotifier) OnHARQTimeout(int, bool, bool) {}

// Process is one HARQ process slot, shared shape for DL and UL.
type Process struct {
	ueIdx         int
	rnti          uint32
	id            uint8
	status        State
	slotTx        slot.Point
	slotAck       slot.Point
	slotAckTO     slot.Point
	numRetx       int
	maxRetx       int
	ndi           bool
	ackOnTimeout  bool
	retxCancelled bool
	prevTx        AllocParams

	// DL-only fields; unused and left zero by the UL repository.
	harqBitIdx        uint8
	pucchAckToReceive int
	chosenAck         AckStatus
	lastPUCCHSNR      float64
	hasSNR            bool

	wheelSlot int // -1 when not linked into the timeout wheel
	inRetxQ   bool
}

// ID returns the per-UE HARQ process id (0..nof_harqs-1).
func (p *Process) ID() uint8 { return p.id }

// RNTI returns the UE's radio network temporary identifier.
func (p *Process) RNTI() uint32 { return p.rnti }

// Status returns the process's lifecycle state.
func (p *Process) Status() State { return p.status }

// SlotTx returns the slot of the process's current (re)transmission.
func (p *Process) SlotTx() slot.Point { return p.slotTx }

// SlotAck returns the slot at which feedback for the current transmission
// is expected.
func (p *Process) SlotAck() slot.Point { return p.slotAck }

// NumRetx returns the number of retransmissions already performed.
func (p *Process) NumRetx() int { return p.numRetx }

// MaxRetx returns the configured maximum number of retransmissions.
func (p *Process) MaxRetx() int { return p.maxRetx }

// NDI returns the new-data-indicator toggle of the current transmission.
func (p *Process) NDI() bool { return p.ndi }

// PrevTxParams returns the transport-block parameters of the current
// transmission.
func (p *Process) PrevTxParams() AllocParams { return p.prevTx }

// SetPrevTxParams overwrites the transport-block parameters, used by
// save_grant_params call sites once a grant has actually been built.
func (p *Process) SetPrevTxParams(params AllocParams) { p.prevTx = params }

// HARQBitIdx returns the DL HARQ-ACK codebook bit index this process's
// feedback is expected at.
func (p *Process) HARQBitIdx() uint8 { return p.harqBitIdx }
