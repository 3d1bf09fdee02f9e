// Package ueconfig implements the UE configuration store of spec section
// 4 ("UE entity... per-cell configuration (current and previous, for
// seamless reconfiguration)") and section 5's "the UE configuration
// (published via pointer swap, immutable after publication)".
//
// Grounded on original_source's serving_cell_config / ue_cell_configuration
// (an immutable snapshot swapped atomically on reconfiguration) and on the
// teacher's handle-over-arena idiom used throughout internal/harq: a Store
// holds one *Snapshot pointer per UE, swapped with atomic.Pointer so a pcell
// executor reader never observes a half-built config.
package ueconfig

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
)

// LCID identifies a logical channel within a UE.
type LCID uint8

// QoS carries the per-logical-channel QoS parameters spec section 4 lists
// under "UE entity": 5QI priority, ARP priority, packet-delay budget, and
// GBR rates (zero means non-GBR).
type QoS struct {
	FiveQIPriority uint8
	ARPPriority    uint8
	PDBMillis      uint32
	GBRDLKbps      uint32
	GBRULKbps      uint32
}

// BWP describes one UE-dedicated bandwidth part: its PRB extent and the
// search spaces/CORESETs it monitors.
type BWP struct {
	NumPRBs     uint16
	NumSymbols  uint8
	SearchSpace SearchSpaceConfig
}

// SearchSpaceConfig names the CORESET and aggregation-level candidate
// counts a UE monitors, consumed by internal/pdcch's candidate generator.
type SearchSpaceConfig struct {
	CoresetID     uint8
	CandidatesByAggLevel map[uint8]uint8 // agg level (1/2/4/8/16) -> candidate count
}

// PUCCHResourceRef is an opaque pointer into a cell's PUCCH resource pool,
// assigned at UE creation by internal/pucch's builder.
type PUCCHResourceRef struct {
	Format uint8 // 0/1 or 2
	Index  uint16
}

// Snapshot is one immutable UE configuration, published by pointer swap.
// Every field is set once at construction and never mutated afterward -
// reconfiguration builds a new Snapshot and swaps the pointer.
type Snapshot struct {
	UEIndex    int
	RNTI       uint32
	CellID     uint16
	SCS        slot.SCS
	DedicatedBWP BWP
	FallbackBWP  BWP
	K1Candidates []int // PDSCH-to-HARQ-ACK feedback timing candidates
	MinK2        int
	PUCCHDedicated []PUCCHResourceRef
	PUCCHCommon    PUCCHResourceRef
	LogicalChannels map[LCID]QoS
	Fallback        bool // true until RRC reconfiguration is applied

	// SliceID is the RRM slice this UE's RRC-configured logical channels
	// belong to; SliceMinRBs/SliceMaxRBs are that slice's per-slot PRB
	// quota (spec 4.8 input "(e) per-slice RB min/max bounds"). Zero
	// SliceMaxRBs means unbounded; zero SliceMinRBs means no guarantee.
	SliceID     uint8
	SliceMinRBs int
	SliceMaxRBs int
}

// LookupQoS returns the configured QoS for lcid, or the zero value if the
// channel isn't configured (treated as best-effort, lowest priority).
func (s *Snapshot) LookupQoS(lcid LCID) QoS {
	if s == nil {
		return QoS{}
	}
	return s.LogicalChannels[lcid]
}

// ueSlot holds the current and previous snapshot for one UE, matching spec
// section 4's "current and previous, for seamless reconfiguration".
type ueSlot struct {
	current  atomic.Pointer[Snapshot]
	previous atomic.Pointer[Snapshot]
}

// Store is the cell-wide UE configuration store: one ueSlot per UE index,
// safe for concurrent publication (RRC thread) and reads (pcell and ue
// executors), per spec section 5's "Shared resources" list. Readers take
// the map mutex only for the UE lookup; the snapshot itself is loaded
// atomically.
type Store struct {
	mu   sync.Mutex // guards map structure only, not the snapshots within
	ues  map[int]*ueSlot
}

// New constructs an empty Store.
func New() *Store {
	return &Store{ues: make(map[int]*ueSlot)}
}

// Create publishes the initial configuration for a UE. Returns an error if
// the UE index is already in use.
func (s *Store) Create(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ues[snap.UEIndex]; ok {
		return fmt.Errorf("ueconfig: ue index %d already configured", snap.UEIndex)
	}
	slot := &ueSlot{}
	slot.current.Store(snap)
	s.ues[snap.UEIndex] = slot
	return nil
}

// Reconfigure publishes a new snapshot for an existing UE, keeping the
// prior one reachable via Previous until the next reconfiguration.
func (s *Store) Reconfigure(snap *Snapshot) error {
	s.mu.Lock()
	slot, ok := s.ues[snap.UEIndex]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("ueconfig: ue index %d not configured", snap.UEIndex)
	}
	prev := slot.current.Load()
	slot.previous.Store(prev)
	slot.current.Store(snap)
	return nil
}

// Remove deletes a UE's configuration entirely.
func (s *Store) Remove(ueIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ues, ueIndex)
}

// Current returns the UE's live snapshot, or nil if unconfigured.
func (s *Store) Current(ueIndex int) *Snapshot {
	s.mu.Lock()
	slot, ok := s.ues[ueIndex]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return slot.current.Load()
}

// Previous returns the UE's prior snapshot (before the last Reconfigure),
// or nil if there wasn't one.
func (s *Store) Previous(ueIndex int) *Snapshot {
	s.mu.Lock()
	slot, ok := s.ues[ueIndex]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return slot.previous.Load()
}

// ApplyReconfiguration publishes a copy of the current snapshot with the
// fallback flag cleared (a no-op if it is not set); the previous snapshot
// is left as it is, matching handle_config_applied in spec section 4.8's "Fallback
// mode... remain in fallback until RRC reconfiguration is applied".
func (s *Store) ApplyReconfiguration(ueIndex int) {
	s.mu.Lock()
	slot, ok := s.ues[ueIndex]
	s.mu.Unlock()
	if !ok {
		return
	}
	cur := slot.current.Load()
	if cur == nil || !cur.Fallback {
		return
	}
	next := *cur
	next.Fallback = false
	slot.current.Store(&next)
}
