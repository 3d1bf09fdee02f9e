package sched

import (
	"github.com/open-ran-go/gnb-mac-rlc/internal/harq"
	"github.com/open-ran-go/gnb-mac-rlc/internal/pdcch"
	"github.com/open-ran-go/gnb-mac-rlc/internal/pucch"
	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
)

// FailedAttempt records a grant attempt that could not be satisfied (spec
// section 7: "resource exhaustion... recorded in sched_result.failed_attempts... never fatal").
type FailedAttempt struct {
	UEIndex   int
	Direction Direction
	Reason    string
}

// PDSCHGrant is one downlink grant, common-channel or per-UE.
type PDSCHGrant struct {
	UEIndex    int // -1 for common-channel grants (SI/RAR/paging)
	RNTI       uint32
	Kind       GrantKind
	PRBs       []int
	MCS        uint8
	TBSBytes   uint32
	HARQ       harq.DLHandle
	PDCCH      pdcch.Grant
	IsFallback bool
	NoCSIRS    bool // set on the ConRes Msg4 grant: no CSI-RS may be multiplexed with it (spec 4.7)
}

// PUSCHGrant is one uplink grant, common-channel (Msg3) or per-UE.
type PUSCHGrant struct {
	UEIndex  int
	RNTI     uint32
	Kind     GrantKind
	PRBs     []int
	MCS      uint8
	TBSBytes uint32
	HARQ     harq.ULHandle
	PDCCH    pdcch.Grant
}

// Result is sched_result (spec section 6): the complete per-slot scheduler
// decision returned synchronously to the PHY.
type Result struct {
	Slot           slot.Point
	DLPDCCH        []pdcch.Grant
	ULPDCCH        []pdcch.Grant
	PDSCH          []PDSCHGrant
	PUSCH          []PUSCHGrant
	PUCCH          []pucch.Resource
	FailedAttempts []FailedAttempt
}

func (r *Result) fail(ueIdx int, dir Direction, reason string) {
	r.FailedAttempts = append(r.FailedAttempts, FailedAttempt{UEIndex: ueIdx, Direction: dir, Reason: reason})
}
