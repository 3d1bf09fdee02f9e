// Package pdcch implements the PDCCH candidate allocator of spec section
// 4.6: per-slot CCE occupancy tracking plus TS 38.213 section 10.1-style
// search-space candidate generation, grounded on
// original_source/lib/scheduler/support/pdcch_aggregation_level_calculator.*
// and the CORESET/search-space candidate hashing function it implements
// (the Y_p,n_CI pseudo-random sequence). The CCE occupancy bitset itself is
// internal/grid.Grid, reused rather than re-implemented (spec section 4.1's
// ring already carries a cceUsed bitset per CORESET).
package pdcch

import (
	"github.com/open-ran-go/gnb-mac-rlc/internal/grid"
	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
)

// AggregationLevel is one of the five standardised PDCCH aggregation
// levels (number of CCEs a candidate occupies).
type AggregationLevel uint8

const (
	AggLevel1  AggregationLevel = 1
	AggLevel2  AggregationLevel = 2
	AggLevel4  AggregationLevel = 4
	AggLevel8  AggregationLevel = 8
	AggLevel16 AggregationLevel = 16
)

// DCIFormat names the four formats spec section 4.6 lists.
type DCIFormat uint8

const (
	DCIFormat0_0 DCIFormat = iota
	DCIFormat0_1
	DCIFormat1_0
	DCIFormat1_1
)

// SearchSpace names the candidate-generation parameters for one UE's
// configured search space within a CORESET.
type SearchSpace struct {
	CoresetID      grid.CoresetID
	NumCCEsInCoreset uint16
	// CandidatesByLevel maps an aggregation level to its configured
	// candidate count (0 means the level isn't monitored), matching
	// pdcch-ConfigCommon/pdcch-Config's nrofCandidates field.
	CandidatesByLevel map[AggregationLevel]uint8
}

// Grant describes one successfully allocated PDCCH candidate.
type Grant struct {
	CoresetID grid.CoresetID
	AggLevel  AggregationLevel
	CCEs      []int
	Format    DCIFormat
}

// Allocator tracks per-slot CCE occupancy via a shared grid.Grid (spec
// section 4.1's ring already owns the bitset; this package only adds
// candidate enumeration and collision search on top of it).
type Allocator struct {
	grid *grid.Grid
}

// New constructs an Allocator over an existing resource grid.
func New(g *grid.Grid) *Allocator {
	return &Allocator{grid: g}
}

// candidateHash implements the Y_p,n_CI pseudo-random sequence of TS
// 38.213 10.1 equation 10.1-1, a linear-congruential recurrence seeded by
// RNTI: Y_{p,-1} = RNTI, Y_{p,n} = (A_p * Y_{p,n-1}) mod D, with
// (A_p, D) = (39827, 65537) for p mod 3 == 0 (the only coreset-group index
// this scheduler uses). Unrolled to its closed form, Y_{p,n} = RNTI *
// A_p^(n+1) mod D, and evaluated by modPow instead of iterating n times:
// this runs on every DL/UL grant attempt, every slot, for every UE.
func candidateHash(rnti uint32, slotIdx uint32) uint64 {
	const a, d = 39827, 65537
	n := uint64(slotIdx % d)
	return (modPow(a, n+1, d) * uint64(rnti)) % d
}

// modPow computes base^exp mod m by repeated squaring in O(log exp).
func modPow(base, exp, m uint64) uint64 {
	result := uint64(1)
	base %= m
	for exp > 0 {
		if exp&1 == 1 {
			result = (result * base) % m
		}
		exp >>= 1
		base = (base * base) % m
	}
	return result
}

// candidates enumerates the up-to-numCandidates CCE start positions for
// (ss, aggLevel) at sl, per TS 38.213 10.1-1:
// L * ((Y + floor(m*N_CCE/(L*M)) + n_CI) mod floor(N_CCE/L)).
func candidates(ss SearchSpace, aggLevel AggregationLevel, rnti uint32, sl slot.Point) []int {
	m := ss.CandidatesByLevel[aggLevel]
	l := int(aggLevel)
	nCCE := int(ss.NumCCEsInCoreset)
	if m == 0 || l == 0 || nCCE < l {
		return nil
	}
	floorNCCEoverL := nCCE / l
	if floorNCCEoverL == 0 {
		return nil
	}
	y := candidateHash(rnti, sl.Count())
	out := make([]int, 0, m)
	seen := make(map[int]bool, m)
	for mCand := 0; mCand < int(m); mCand++ {
		start := l * int((y+uint64(mCand*nCCE/(l*int(m))))%uint64(floorNCCEoverL))
		if start < 0 || start+l > nCCE || seen[start] {
			continue
		}
		seen[start] = true
		out = append(out, start)
	}
	return out
}

// Allocate walks ss's candidate list for aggLevel in ascending order and
// returns the first whose CCEs are all free, marking them used. Returns
// ok=false (a failed attempt, spec section 7) if every candidate collides
// or the search space has no room at this aggregation level.
func (a *Allocator) Allocate(sl slot.Point, rnti uint32, ss SearchSpace, aggLevel AggregationLevel, format DCIFormat) (Grant, bool) {
	for _, start := range candidates(ss, aggLevel, rnti, sl) {
		cces := make([]int, aggLevel)
		for i := range cces {
			cces[i] = start + i
		}
		free, err := a.grid.CCEsFree(sl, ss.CoresetID, cces)
		if err != nil || !free {
			continue
		}
		if err := a.grid.FillCCEs(sl, ss.CoresetID, cces); err != nil {
			continue
		}
		return Grant{CoresetID: ss.CoresetID, AggLevel: aggLevel, CCEs: cces, Format: format}, true
	}
	return Grant{}, false
}

// AllocateAnyLevel tries each level in levels (typically ascending, so the
// smallest viable aggregation is preferred) and returns the first
// successful allocation.
func (a *Allocator) AllocateAnyLevel(sl slot.Point, rnti uint32, ss SearchSpace, levels []AggregationLevel, format DCIFormat) (Grant, bool) {
	for _, l := range levels {
		if g, ok := a.Allocate(sl, rnti, ss, l, format); ok {
			return g, true
		}
	}
	return Grant{}, false
}
