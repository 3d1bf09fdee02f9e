// Package grid implements the slot-indexed resource allocator of spec
// section 4.1: a fixed-size circular array of per-slot PRB/CCE occupancy,
// advanced by slot_indication and queried/written by fill/collides/all_set/
// used_crbs.
//
// The ring is this package's own slot-count-modulo array (the same idiom
// as internal/slot.Wheel, which it does not use); each entry carries the
// 2-D symbol x PRB occupancy bitmap and per-CORESET CCE bitset state the
// spec asks the ring to carry.
package grid

import (
	"fmt"

	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
)

// BWPID identifies a bandwidth part within a cell.
type BWPID uint8

// CoresetID identifies a CORESET within a cell.
type CoresetID uint8

// BWPConfig describes the PRB/symbol extent of one BWP.
type BWPConfig struct {
	NumPRBs   uint16
	NumSymbol uint8 // symbols per slot, normally 14
}

// CoresetConfig describes the CCE extent of one CORESET.
type CoresetConfig struct {
	NumCCEs uint16
}

// bitmap2D is a dense symbol x PRB occupancy grid.
type bitmap2D struct {
	symbols int
	prbs    int
	words   []uint64 // symbols * ceil(prbs/64) words
}

func newBitmap2D(symbols, prbs int) *bitmap2D {
	wordsPerSymbol := (prbs + 63) / 64
	return &bitmap2D{symbols: symbols, prbs: prbs, words: make([]uint64, symbols*wordsPerSymbol)}
}

func (b *bitmap2D) wordsPerSymbol() int { return (b.prbs + 63) / 64 }

func (b *bitmap2D) idx(symbol, prb int) (int, uint64) {
	wps := b.wordsPerSymbol()
	word := symbol*wps + prb/64
	mask := uint64(1) << uint(prb%64)
	return word, mask
}

func (b *bitmap2D) get(symbol, prb int) bool {
	w, m := b.idx(symbol, prb)
	return b.words[w]&m != 0
}

func (b *bitmap2D) set(symbol, prb int) {
	w, m := b.idx(symbol, prb)
	b.words[w] |= m
}

func (b *bitmap2D) clear() {
	for i := range b.words {
		b.words[i] = 0
	}
}

// slotState holds the occupancy of one ring entry.
type slotState struct {
	valid     bool
	count     uint32
	occupancy map[BWPID]*bitmap2D
	cceUsed   map[CoresetID][]bool
}

// Grid is the slot-indexed resource allocator.
//
// Not safe for concurrent use; owned by a single pcell executor (spec
// section 5).
type Grid struct {
	scs      slot.SCS
	k        uint32
	bwps     map[BWPID]BWPConfig
	coresets map[CoresetID]CoresetConfig
	ring     []slotState
	latest   slot.Point
	hasTick  bool
}

// New constructs a Grid for the given SCS and ring size K (see
// slot.RingSizeAtLeast), with the given BWP and CORESET configurations.
func New(scs slot.SCS, k uint32, bwps map[BWPID]BWPConfig, coresets map[CoresetID]CoresetConfig) *Grid {
	if k == 0 {
		panic("grid: k must be > 0")
	}
	g := &Grid{scs: scs, k: k, bwps: bwps, coresets: coresets, ring: make([]slotState, k)}
	for i := range g.ring {
		g.ring[i] = g.freshSlot()
	}
	return g
}

func (g *Grid) freshSlot() slotState {
	s := slotState{occupancy: make(map[BWPID]*bitmap2D), cceUsed: make(map[CoresetID][]bool)}
	for id, cfg := range g.bwps {
		s.occupancy[id] = newBitmap2D(int(cfg.NumSymbol), int(cfg.NumPRBs))
	}
	for id, cfg := range g.coresets {
		s.cceUsed[id] = make([]bool, cfg.NumCCEs)
	}
	return s
}

func (g *Grid) entry(p slot.Point) *slotState {
	idx := p.Count() % g.k
	return &g.ring[idx]
}

// SlotIndication advances the grid to sl, wiping the ring entry at
// sl mod K (spec section 3 invariant).
func (g *Grid) SlotIndication(sl slot.Point) {
	e := g.entry(sl)
	*e = g.freshSlot()
	e.valid = true
	e.count = sl.Count()
	g.latest = sl
	g.hasTick = true
}

func (g *Grid) checkBounds(sl slot.Point) error {
	if !g.hasTick {
		return nil
	}
	delta := sl.Sub(g.latest)
	if delta < 0 || uint32(delta) >= g.k {
		return fmt.Errorf("grid: slot %s is outside the %d-slot allocation horizon from %s", sl, g.k, g.latest)
	}
	return nil
}

// Collides reports whether any (symbol, PRB) cell in the given ranges is
// already occupied for bwp at slot sl. O(len(symbols)*len(prbs)).
func (g *Grid) Collides(sl slot.Point, bwp BWPID, symbols []int, prbs []int) (bool, error) {
	if err := g.checkBounds(sl); err != nil {
		return false, err
	}
	e := g.entry(sl)
	bm, ok := e.occupancy[bwp]
	if !ok {
		return false, fmt.Errorf("grid: unknown bwp %d", bwp)
	}
	for _, s := range symbols {
		for _, p := range prbs {
			if bm.get(s, p) {
				return true, nil
			}
		}
	}
	return false, nil
}

// Fill marks the given (symbol, PRB) cells as occupied for bwp at slot sl.
// Returns an error (and does not partially apply) if any cell already
// collides.
func (g *Grid) Fill(sl slot.Point, bwp BWPID, symbols []int, prbs []int) error {
	collide, err := g.Collides(sl, bwp, symbols, prbs)
	if err != nil {
		return err
	}
	if collide {
		return fmt.Errorf("grid: fill collides with an existing grant on bwp %d at slot %s", bwp, sl)
	}
	e := g.entry(sl)
	bm := e.occupancy[bwp]
	for _, s := range symbols {
		for _, p := range prbs {
			bm.set(s, p)
		}
	}
	return nil
}

// AllSet reports whether every (symbol, PRB) cell in the given ranges is
// occupied for bwp at slot sl.
func (g *Grid) AllSet(sl slot.Point, bwp BWPID, symbols []int, prbs []int) (bool, error) {
	if err := g.checkBounds(sl); err != nil {
		return false, err
	}
	e := g.entry(sl)
	bm, ok := e.occupancy[bwp]
	if !ok {
		return false, fmt.Errorf("grid: unknown bwp %d", bwp)
	}
	for _, s := range symbols {
		for _, p := range prbs {
			if !bm.get(s, p) {
				return false, nil
			}
		}
	}
	return true, nil
}

// UsedCRBs returns the set of PRB indices occupied in any of the given
// symbols, for bwp at slot sl.
func (g *Grid) UsedCRBs(sl slot.Point, bwp BWPID, symbols []int) ([]int, error) {
	if err := g.checkBounds(sl); err != nil {
		return nil, err
	}
	e := g.entry(sl)
	bm, ok := e.occupancy[bwp]
	if !ok {
		return nil, fmt.Errorf("grid: unknown bwp %d", bwp)
	}
	var used []int
	for p := 0; p < bm.prbs; p++ {
		for _, s := range symbols {
			if bm.get(s, p) {
				used = append(used, p)
				break
			}
		}
	}
	return used, nil
}

// FillCCEs marks cceIndices as used within coreset at slot sl, failing if
// any index is already used.
func (g *Grid) FillCCEs(sl slot.Point, coreset CoresetID, cceIndices []int) error {
	if err := g.checkBounds(sl); err != nil {
		return err
	}
	e := g.entry(sl)
	used, ok := e.cceUsed[coreset]
	if !ok {
		return fmt.Errorf("grid: unknown coreset %d", coreset)
	}
	for _, i := range cceIndices {
		if i < 0 || i >= len(used) {
			return fmt.Errorf("grid: cce index %d out of range for coreset %d", i, coreset)
		}
		if used[i] {
			return fmt.Errorf("grid: cce %d of coreset %d already used at slot %s", i, coreset, sl)
		}
	}
	for _, i := range cceIndices {
		used[i] = true
	}
	return nil
}

// CCEsFree reports whether every index in cceIndices is free within
// coreset at slot sl.
func (g *Grid) CCEsFree(sl slot.Point, coreset CoresetID, cceIndices []int) (bool, error) {
	if err := g.checkBounds(sl); err != nil {
		return false, err
	}
	e := g.entry(sl)
	used, ok := e.cceUsed[coreset]
	if !ok {
		return false, fmt.Errorf("grid: unknown coreset %d", coreset)
	}
	for _, i := range cceIndices {
		if i < 0 || i >= len(used) {
			return false, fmt.Errorf("grid: cce index %d out of range for coreset %d", i, coreset)
		}
		if used[i] {
			return false, nil
		}
	}
	return true, nil
}

// K returns the ring size.
func (g *Grid) K() uint32 { return g.k }

// CoresetNumCCEs returns the configured CCE count of coreset id, or 0 if
// unknown.
func (g *Grid) CoresetNumCCEs(id CoresetID) uint16 { return g.coresets[id].NumCCEs }
