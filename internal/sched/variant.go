// Package sched implements the common-channel (SI/RA/paging), per-UE
// DL/UL, and feedback-dispatch components of spec sections 4.7-4.9, plus
// the external Scheduler façade of section 6.
//
// Structural idioms follow internal/harq and internal/grid (arena-style
// pools addressed by small integer indices, direct calls in a fixed
// per-slot order rather than virtual calls on the hot path, per
// spec section 9's "Dynamic dispatch" and "Arena + index" design notes).
package sched

import "fmt"

// Direction tags a grant or HARQ table as downlink or uplink.
type Direction uint8

const (
	DirectionDL Direction = iota
	DirectionUL
)

func (d Direction) String() string {
	if d == DirectionDL {
		return "dl"
	}
	return "ul"
}

// GrantKind tags how a grant came to be: a fresh transmission, a
// retransmission, or a common-channel allocation (SI/RAR/paging/ConRes),
// matching spec 4.8's "pending_retx HARQs... before new transmissions" and
// 4.7's common-channel allocators.
type GrantKind uint8

const (
	GrantNewTx GrantKind = iota
	GrantRetx
	GrantCommon
)

func (k GrantKind) String() string {
	switch k {
	case GrantNewTx:
		return "newtx"
	case GrantRetx:
		return "retx"
	case GrantCommon:
		return "common"
	default:
		return "unknown"
	}
}

// schedPhase names the stages of the per-slot pipeline (spec section 2's
// "Control flow per slot"). The façade's SlotIndication runs its stages as
// direct calls in a fixed order, with no virtual dispatch on the hot path
// (spec section 9); these tags only name the stages, and no code switches
// on them.
type schedPhase uint8

const (
	phaseCommon schedPhase = iota
	phaseFallback
	phaseUEDL
	phaseUEUL
	phaseFinalize
)

func (p schedPhase) String() string {
	switch p {
	case phaseCommon:
		return "common"
	case phaseFallback:
		return "fallback"
	case phaseUEDL:
		return "ue_dl"
	case phaseUEUL:
		return "ue_ul"
	case phaseFinalize:
		return "finalize"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}
