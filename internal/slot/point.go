// Package slot implements the slot-point value type, a generic per-slot
// bucket ring (Wheel), and the RingSizeAtLeast ring-sizing helper used by
// the HARQ repositories (spec section 3 "Slot point" and section 2 "Slot
// clock & timers"). The HARQ ack-timeout wheel and the resource grid keep
// their own rings; the RLC timers use time.AfterFunc.
package slot

import "fmt"

// SCS is subcarrier spacing, expressed as a 3GPP numerology index: 0 => 15
// kHz, 1 => 30 kHz, 2 => 60 kHz, 3 => 120 kHz.
type SCS uint8

const (
	SCS15kHz SCS = iota
	SCS30kHz
	SCS60kHz
	SCS120kHz
)

// framesInHyperFrame is the SFN modulus: SFN wraps at 1024.
const framesInHyperFrame = 1024

// SlotsPerFrame returns the number of slots in a 10ms radio frame for scs.
func SlotsPerFrame(scs SCS) uint32 {
	return 10 << uint(scs)
}

// Point is a circular (SFN, slot) pair for a specific SCS, per spec section
// 3: "comparison is circular with a half-modulus window; arithmetic wraps.
// Invariant: any two slot points compared must share the same SCS."
type Point struct {
	scs  SCS
	sfn  uint16
	slot uint16
}

// New constructs a Point, wrapping sfn and slot into their valid ranges.
func New(scs SCS, sfn, slotIdx uint32) Point {
	spf := SlotsPerFrame(scs)
	total := sfn*spf + slotIdx
	mod := uint32(framesInHyperFrame) * spf
	total %= mod
	return Point{scs: scs, sfn: uint16(total / spf), slot: uint16(total % spf)}
}

// FromCount constructs a Point from an absolute slot count modulo the
// hyper-frame modulus.
func FromCount(scs SCS, count uint32) Point {
	spf := SlotsPerFrame(scs)
	mod := uint32(framesInHyperFrame) * spf
	count %= mod
	return Point{scs: scs, sfn: uint16(count / spf), slot: uint16(count % spf)}
}

// SCS returns the subcarrier spacing this point is expressed in.
func (p Point) SCS() SCS { return p.scs }

// SFN returns the system frame number, in [0, 1024).
func (p Point) SFN() uint16 { return p.sfn }

// SlotIndex returns the intra-frame slot index, in [0, SlotsPerFrame(scs)).
func (p Point) SlotIndex() uint16 { return p.slot }

// Modulus returns the circular arithmetic modulus for this point's SCS:
// 1024 * slots_per_frame.
func (p Point) Modulus() uint32 {
	return uint32(framesInHyperFrame) * SlotsPerFrame(p.scs)
}

// Count returns the absolute slot count in [0, Modulus()).
func (p Point) Count() uint32 {
	return uint32(p.sfn)*SlotsPerFrame(p.scs) + uint32(p.slot)
}

// Valid reports whether the point was constructed with a sane state; the
// zero value is valid (SFN=0, slot=0, SCS15kHz).
func (p Point) Valid() bool {
	return uint32(p.slot) < SlotsPerFrame(p.scs) && uint32(p.sfn) < framesInHyperFrame
}

func (p Point) requireSameSCS(other Point) {
	if p.scs != other.scs {
		panic(fmt.Sprintf("slot: comparing points with different SCS (%d vs %d)", p.scs, other.scs))
	}
}

// Add returns p advanced (or, if n is negative, retreated) by n slots,
// wrapping around the hyper-frame modulus.
func (p Point) Add(n int) Point {
	mod := int64(p.Modulus())
	c := (int64(p.Count()) + int64(n)) % mod
	if c < 0 {
		c += mod
	}
	return FromCount(p.scs, uint32(c))
}

// Sub returns the signed circular distance p-other, in slots, using a
// half-modulus window so that results fall in (-Modulus()/2, Modulus()/2].
// Panics if the two points don't share an SCS.
func (p Point) Sub(other Point) int {
	p.requireSameSCS(other)
	mod := int64(p.Modulus())
	half := mod / 2
	diff := (int64(p.Count()) - int64(other.Count())) % mod
	if diff <= -half {
		diff += mod
	} else if diff > half {
		diff -= mod
	}
	return int(diff)
}

// Equal reports whether p and other denote the same slot (same SCS
// required).
func (p Point) Equal(other Point) bool {
	p.requireSameSCS(other)
	return p.Count() == other.Count()
}

// Before reports whether p occurs strictly before other, using the
// half-modulus circular window.
func (p Point) Before(other Point) bool {
	return p.Sub(other) < 0
}

// After reports whether p occurs strictly after other.
func (p Point) After(other Point) bool {
	return p.Sub(other) > 0
}

// String implements fmt.Stringer.
func (p Point) String() string {
	return fmt.Sprintf("%d.%d", p.sfn, p.slot)
}
