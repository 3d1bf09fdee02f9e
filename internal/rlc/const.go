// Package rlc implements the TM/UM/AM entities of spec sections 4.3-4.5:
// per-bearer TX/RX state machines, segmentation, reassembly and ARQ,
// grounded on original_source/lib/rlc/*.{h,cpp} for exact semantics and on
// the teacher's ChunkedIngress / CoalescingFlag idioms for the buffer-state
// notification deferral.
package rlc

import "time"

// SNSize is the RLC sequence-number width, UM supports {6,12}, AM {12,18}.
type SNSize uint8

const (
	SN6  SNSize = 6
	SN12 SNSize = 12
	SN18 SNSize = 18
)

// Modulus returns 2^sn_size.
func (s SNSize) Modulus() uint32 { return 1 << uint(s) }

// WindowSize returns 2^(sn_size-1), the reassembly/reception window size.
func (s SNSize) WindowSize() uint32 { return 1 << uint(s-1) }

// Mode is the RLC bearer mode.
type Mode uint8

const (
	ModeTM Mode = iota
	ModeUM
	ModeAM
)

func (m Mode) String() string {
	switch m {
	case ModeTM:
		return "TM"
	case ModeUM:
		return "UM"
	case ModeAM:
		return "AM"
	default:
		return "unknown"
	}
}

// defaultTReassembly is a representative t-Reassembly value (ms) used when
// a bearer config does not override it.
const defaultTReassembly = 35 * time.Millisecond

// defaultTStatusProhibit is a representative t-StatusProhibit value (ms).
const defaultTStatusProhibit = 10 * time.Millisecond

// defaultTPollRetransmit is a representative t-PollRetransmit value (ms).
const defaultTPollRetransmit = 45 * time.Millisecond

// bufferStateVeryLargeBytes is the threshold above which UM/AM TX
// notifications are suppressed until occupancy falls back below one PDU's
// worth, per spec 4.4 "suppressed once the buffer gets 'very large'".
const bufferStateVeryLargeBytes = 1 << 20

// SI is the UM/AM segmentation-info field.
type SI uint8

const (
	SIFull SI = iota
	SIFirst
	SILast
	SIMiddle
)
