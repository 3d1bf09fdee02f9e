package ueconfig

import "github.com/open-ran-go/gnb-mac-rlc/internal/slot"

// CellProfile is a named cell-wide configuration preset, grounded on
// original_source's cell_config_builder_profiles (tdd()/fdd() factory
// functions returning a cell_config_builder_params for common lab/test
// band configurations).
type CellProfile struct {
	SCS          slot.SCS
	NumPRBs      uint16
	NumSymbols   uint8
	TDD          bool
	DLSlots      int // per TDD period, ignored for FDD
	ULSlots      int
	SpecialSlots int
}

// DefaultTDDPattern mirrors cell_config_builder_profiles::tdd(scs30, 20MHz):
// a 30kHz-SCS, 51-PRB cell with a 10-slot (5ms) DDDDDDDSUU pattern (7 DL,
// then 1 special, then 2 UL slots per period).
func DefaultTDDPattern() CellProfile {
	return CellProfile{
		SCS: slot.SCS30kHz, NumPRBs: 51, NumSymbols: 14,
		TDD: true, DLSlots: 7, ULSlots: 2, SpecialSlots: 1,
	}
}

// DefaultTDDPattern2x2 is DefaultTDDPattern at 60kHz SCS with double the
// slots per frame, matching the wider-bandwidth profile variant used for
// mid-band n78 deployments.
func DefaultTDDPattern2x2() CellProfile {
	p := DefaultTDDPattern()
	p.SCS = slot.SCS60kHz
	p.DLSlots, p.ULSlots, p.SpecialSlots = 14, 4, 2
	return p
}

// DefaultFDDPattern mirrors cell_config_builder_profiles::fdd(): a 15kHz
// SCS, 106-PRB (20MHz) FDD cell with every slot available in both
// directions.
func DefaultFDDPattern() CellProfile {
	return CellProfile{SCS: slot.SCS15kHz, NumPRBs: 106, NumSymbols: 14, TDD: false}
}

// SlotDirection is the TDD classification of a slot.
type SlotDirection uint8

const (
	SlotDL SlotDirection = iota
	SlotUL
	SlotSpecial
)

// Direction returns the TDD direction of slot index si within the
// profile's DL/special/UL period, or SlotDL unconditionally for FDD
// profiles (every slot is both DL- and UL-capable there).
func (c CellProfile) Direction(si int) SlotDirection {
	if !c.TDD {
		return SlotDL
	}
	period := c.DLSlots + c.SpecialSlots + c.ULSlots
	if period == 0 {
		return SlotDL
	}
	i := si % period
	switch {
	case i < c.DLSlots:
		return SlotDL
	case i < c.DLSlots+c.SpecialSlots:
		return SlotSpecial
	default:
		return SlotUL
	}
}
