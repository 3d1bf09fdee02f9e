// Package pucch implements the PUCCH resource allocator of spec section
// 4.6: a cell-wide resource pool partitioned per-UE at bring-up, and a
// per-slot collision-avoiding allocator for SR/CSI/HARQ-ACK resources.
//
// Grounded on original_source/lib/scheduler/support/pucch_allocator_impl.*
// and its resource-builder counterpart referenced by
// tests/test_doubles/scheduler/pucch_res_test_builder_helper.{h,cpp}: a
// pucch_resource_manager tracks, per slot, which (PRB, symbols, cyclic
// shift, OCC) tuples are already in use, and a per-UE resource list
// (format-1/format-0 HARQ-ACK, format-2, SR, CSI) is built once at UE
// creation by partitioning the cell's pucch-ResourceSet.
package pucch

import (
	"fmt"

	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
)

// Format is the PUCCH format used for a resource.
type Format uint8

const (
	Format0 Format = iota
	Format1
	Format2
)

// Resource is one configured PUCCH resource: its PRB/symbol/code location
// and the format it's allocated in.
type Resource struct {
	Format      Format
	PRB         int
	Symbols     [2]int // start, count
	CyclicShift uint8
	OCC         uint8
	MaxPayload  int // bits carryable by this resource (format2 only)
}

func (r Resource) key() resKey {
	return resKey{prb: r.PRB, sym0: r.Symbols[0], sym1: r.Symbols[1], cs: r.CyclicShift, occ: r.OCC}
}

type resKey struct {
	prb, sym0, sym1 int
	cs, occ         uint8
}

// UEResources is one UE's private slice of the cell PUCCH pool, built once
// at UE creation by Builder.Partition.
type UEResources struct {
	HARQAck []Resource // format-0/1 candidates, one per configured PUCCH resource index
	Format2 []Resource // format-2 candidates (larger payload: HARQ-ACK+SR+CSI mixing)
	SR      Resource
	CSI     Resource
}

// Builder partitions a cell's PUCCH resource pool across UEs so that no two
// UEs are ever assigned the same (PRB, symbols, cyclic shift, OCC) tuple,
// matching spec 4.6's "a resource builder partitions the cell PUCCH
// resource pool across UEs".
type Builder struct {
	nextPRB int
	maxPRB  int
}

// NewBuilder constructs a Builder over a cell BWP with the given PRB
// extent reserved for PUCCH (typically the edge PRBs of the BWP).
func NewBuilder(maxPRB int) *Builder {
	return &Builder{maxPRB: maxPRB}
}

// Partition assigns one UE its own (PRB, cyclic-shift) slice of the pool:
// nofHarqAck format-1 resources, one format-2 resource, and dedicated SR
// and CSI resources, all guaranteed disjoint from every previously
// partitioned UE's resources.
func (b *Builder) Partition(nofHarqAck int) (UEResources, error) {
	var ue UEResources
	for i := 0; i < nofHarqAck; i++ {
		prb, err := b.nextPRBIndex()
		if err != nil {
			return UEResources{}, err
		}
		ue.HARQAck = append(ue.HARQAck, Resource{Format: Format1, PRB: prb, Symbols: [2]int{0, 14}, CyclicShift: uint8(i % 12)})
	}
	prb, err := b.nextPRBIndex()
	if err != nil {
		return UEResources{}, err
	}
	ue.Format2 = []Resource{{Format: Format2, PRB: prb, Symbols: [2]int{0, 2}, MaxPayload: 11}}

	prb, err = b.nextPRBIndex()
	if err != nil {
		return UEResources{}, err
	}
	ue.SR = Resource{Format: Format1, PRB: prb, Symbols: [2]int{0, 14}, CyclicShift: 6}

	prb, err = b.nextPRBIndex()
	if err != nil {
		return UEResources{}, err
	}
	ue.CSI = Resource{Format: Format2, PRB: prb, Symbols: [2]int{0, 2}, MaxPayload: 11}
	return ue, nil
}

func (b *Builder) nextPRBIndex() (int, error) {
	if b.nextPRB >= b.maxPRB {
		return 0, fmt.Errorf("pucch: resource pool exhausted (max %d PRBs)", b.maxPRB)
	}
	p := b.nextPRB
	b.nextPRB++
	return p, nil
}

// slotUsage tracks which resource tuples are in use for one slot.
type slotUsage map[resKey]bool

// Manager is the per-slot collision-avoiding allocator (spec invariant 6:
// "no two PUCCHs in the same slot share (PRB, symbols, cyclic_shift,
// OCC)"), indexed over a bounded slot horizon like internal/grid.
type Manager struct {
	k     uint32
	ring  []slotUsage
	latest slot.Point
	ticked bool
}

// NewManager constructs a Manager with ring horizon k (typically the same
// K as the cell's resource grid).
func NewManager(k uint32) *Manager {
	if k == 0 {
		panic("pucch: k must be > 0")
	}
	m := &Manager{k: k, ring: make([]slotUsage, k)}
	for i := range m.ring {
		m.ring[i] = make(slotUsage)
	}
	return m
}

// SlotIndication advances the ring, wiping the entry k slots behind sl.
func (m *Manager) SlotIndication(sl slot.Point) {
	idx := sl.Count() % m.k
	m.ring[idx] = make(slotUsage)
	m.latest = sl
	m.ticked = true
}

func (m *Manager) entry(sl slot.Point) slotUsage {
	return m.ring[sl.Count()%m.k]
}

// AllocateHARQAck assigns a HARQ-ACK resource for ue at sl. If the UE
// already holds a resource at sl (an SR or CSI occasion), the allocator
// mixes the HARQ-ACK bits into the existing format-2 resource rather than
// adding a second PUCCH, matching spec 4.6's mixing/upgrade rule.
func (m *Manager) AllocateHARQAck(sl slot.Point, ue UEResources, existing *Resource) (Resource, bool) {
	usage := m.entry(sl)
	if existing != nil {
		// Already have a PUCCH this slot (SR/CSI): mix into it if it's a
		// format-2 resource with spare payload, else upgrade format-1 to
		// format-2.
		if existing.Format == Format2 {
			return *existing, true
		}
		for _, r := range ue.Format2 {
			if !usage[r.key()] {
				usage[r.key()] = true
				return r, true
			}
		}
		return *existing, true
	}
	for _, r := range ue.HARQAck {
		if !usage[r.key()] {
			usage[r.key()] = true
			return r, true
		}
	}
	return Resource{}, false
}

// AllocateSR assigns ue's dedicated SR resource at sl if free.
func (m *Manager) AllocateSR(sl slot.Point, ue UEResources) (Resource, bool) {
	usage := m.entry(sl)
	if usage[ue.SR.key()] {
		return Resource{}, false
	}
	usage[ue.SR.key()] = true
	return ue.SR, true
}

// AllocateCSI assigns ue's dedicated CSI resource at sl if free.
func (m *Manager) AllocateCSI(sl slot.Point, ue UEResources) (Resource, bool) {
	usage := m.entry(sl)
	if usage[ue.CSI.key()] {
		return Resource{}, false
	}
	usage[ue.CSI.key()] = true
	return ue.CSI, true
}
