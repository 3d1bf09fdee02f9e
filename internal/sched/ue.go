package sched

import (
	"sort"

	"github.com/open-ran-go/gnb-mac-rlc/internal/grid"
	"github.com/open-ran-go/gnb-mac-rlc/internal/harq"
	"github.com/open-ran-go/gnb-mac-rlc/internal/pdcch"
	"github.com/open-ran-go/gnb-mac-rlc/internal/pucch"
	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
	"github.com/open-ran-go/gnb-mac-rlc/internal/ueconfig"
)

// mcsTable is a coarse MCS -> (bits/PRB/symbol-ish) efficiency table, a
// stand-in for the full CQI/MCS lookup spec 4.8 leaves as an implementation
// detail ("MCS selection"); bytesPerPRB already folds in a 14-symbol slot
// and a fixed code rate per step.
var mcsTable = []struct {
	mcs        uint8
	bytesPerPRB float64
}{
	{mcs: 2, bytesPerPRB: 4},
	{mcs: 6, bytesPerPRB: 8},
	{mcs: 10, bytesPerPRB: 14},
	{mcs: 16, bytesPerPRB: 22},
	{mcs: 22, bytesPerPRB: 30},
	{mcs: 27, bytesPerPRB: 38},
}

func selectMCS(cqi uint8) (uint8, float64) {
	idx := int(cqi) * len(mcsTable) / 16
	if idx >= len(mcsTable) {
		idx = len(mcsTable) - 1
	}
	if idx < 0 {
		idx = 0
	}
	e := mcsTable[idx]
	return e.mcs, e.bytesPerPRB
}

// ueState is one UE's scheduler-local bookkeeping: its HARQ entity handle,
// PUCCH resource slice, smoothed-throughput trackers for the PF weight, and
// the buffer/BSR state fed by the feedback dispatcher.
type ueState struct {
	ueIndex int
	harq    *harq.UEHarqEntity
	pucch   pucch.UEResources

	dlSmoothedRate float64
	ulSmoothedRate float64

	dlBufferedBytes map[ueconfig.LCID]uint32
	ulBSRBytes      uint32

	dlCQI uint8
	ulCQI uint8

	lastDLPUCCH *pucch.Resource
}

// UEScheduler is the per-UE DL/UL weighted proportional-fair scheduler of
// spec 4.8, grounded on spec.md's own prose (no equivalent library source
// was retrieved into the pack) and structurally on internal/harq's
// handle-based retx lookup plus internal/grid's PRB bitmap.
type UEScheduler struct {
	cfg     *ueconfig.Store
	grid    *grid.Grid
	pdcch   *pdcch.Allocator
	pucch   *pucch.Manager
	bwp     grid.BWPID
	fbBWP   grid.BWPID
	dlSyms  []int
	ulSyms  []int

	pfFairnessAlpha float64 // smoothing factor for the throughput EWMA

	ues   map[int]*ueState
	order []int // stable iteration order, oldest-added first

	// sliceUsedDLRBs/sliceUsedULRBs track each slice's PRB consumption for
	// the slot currently being scheduled, reset at the top of
	// ScheduleDL/ScheduleUL, and consulted by pfOrder (slice-minimum
	// priority boost) and grantDLNewtx/grantULNewtx (slice-maximum cap).
	sliceUsedDLRBs map[uint8]int
	sliceUsedULRBs map[uint8]int
}

// NewUEScheduler constructs a UEScheduler sharing the cell's config store,
// resource grid, PDCCH allocator and PUCCH manager.
func NewUEScheduler(cfg *ueconfig.Store, g *grid.Grid, pa *pdcch.Allocator, pm *pucch.Manager, bwp, fallbackBWP grid.BWPID, dlSymbols, ulSymbols []int) *UEScheduler {
	return &UEScheduler{
		cfg: cfg, grid: g, pdcch: pa, pucch: pm,
		bwp: bwp, fbBWP: fallbackBWP,
		dlSyms: dlSymbols, ulSyms: ulSymbols,
		pfFairnessAlpha: 0.2,
		ues:             make(map[int]*ueState),
		sliceUsedDLRBs:  make(map[uint8]int),
		sliceUsedULRBs:  make(map[uint8]int),
	}
}

// AddUE registers a UE with the scheduler; h must already hold the UE's
// reserved HARQ processes and res its partitioned PUCCH resources.
func (s *UEScheduler) AddUE(ueIndex int, h *harq.UEHarqEntity, res pucch.UEResources) {
	s.ues[ueIndex] = &ueState{ueIndex: ueIndex, harq: h, pucch: res, dlBufferedBytes: make(map[ueconfig.LCID]uint32)}
	s.order = append(s.order, ueIndex)
}

// RemoveUE drops a UE's scheduler-local state.
func (s *UEScheduler) RemoveUE(ueIndex int) {
	delete(s.ues, ueIndex)
	for i, idx := range s.order {
		if idx == ueIndex {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// OnDLBufferState updates a UE's per-logical-channel DL buffer occupancy.
func (s *UEScheduler) OnDLBufferState(ueIndex int, lcid ueconfig.LCID, bytes uint32) {
	if u, ok := s.ues[ueIndex]; ok {
		u.dlBufferedBytes[lcid] = bytes
	}
}

// OnULBSR updates a UE's UL buffer-status-report byte count.
func (s *UEScheduler) OnULBSR(ueIndex int, bytes uint32) {
	if u, ok := s.ues[ueIndex]; ok {
		u.ulBSRBytes = bytes
	}
}

func (s *UEScheduler) snapshot(ueIndex int) *ueconfig.Snapshot { return s.cfg.Current(ueIndex) }

// weight computes the proportional-fair priority score: a throughput
// target (derived from GBR/ARP/5QI priority and a PDB-urgency multiplier)
// divided by the smoothed achieved rate, matching spec 4.8's "per-UE weight
// = throughput_target / smoothed_rate with QoS-priority/ARP-priority/
// PDB-urgency factors". sliceBelowMin multiplies in a large priority boost
// while the UE's slice hasn't yet reached its per-slot RB minimum, so
// slices are served to their minimum before leftover RBs are shared by
// weight alone (spec 4.8 Policy ¶1: "Slice ordering... served first up to
// their minimum... by priority weight share the leftover RBs").
func weight(snap *ueconfig.Snapshot, bufferedBytes uint64, smoothedRate float64, sliceBelowMin bool) float64 {
	if smoothedRate <= 0 {
		smoothedRate = 1
	}
	target := 1.0
	urgency := 1.0
	for _, qos := range snap.LogicalChannels {
		if qos.GBRDLKbps > 0 || qos.GBRULKbps > 0 {
			target += float64(qos.GBRDLKbps+qos.GBRULKbps) / 100.0
		}
		priorityFactor := 1.0 + float64(16-qos.FiveQIPriority)/4.0 + float64(16-qos.ARPPriority)/8.0
		if priorityFactor > target {
			target = priorityFactor
		}
		if qos.PDBMillis > 0 && qos.PDBMillis < 50 {
			urgency = 2.0
		}
	}
	if sliceBelowMin {
		urgency *= 8.0
	}
	return (target * urgency * float64(bufferedBytes+1)) / smoothedRate
}

func (s *UEScheduler) pfOrder(dir Direction) []int {
	sliceUsed := s.sliceUsedDLRBs
	if dir == DirectionUL {
		sliceUsed = s.sliceUsedULRBs
	}
	type scored struct {
		idx int
		w   float64
	}
	var scored_ []scored
	for _, idx := range s.order {
		u := s.ues[idx]
		snap := s.snapshot(idx)
		if snap == nil {
			continue
		}
		var buffered uint64
		rate := u.dlSmoothedRate
		if dir == DirectionDL {
			for _, b := range u.dlBufferedBytes {
				buffered += uint64(b)
			}
		} else {
			buffered = uint64(u.ulBSRBytes)
			rate = u.ulSmoothedRate
		}
		if buffered == 0 {
			continue
		}
		belowMin := snap.SliceMinRBs > 0 && sliceUsed[snap.SliceID] < snap.SliceMinRBs
		scored_ = append(scored_, scored{idx: idx, w: weight(snap, buffered, rate, belowMin)})
	}
	sort.SliceStable(scored_, func(i, j int) bool { return scored_[i].w > scored_[j].w })
	out := make([]int, len(scored_))
	for i, sc := range scored_ {
		out[i] = sc.idx
	}
	return out
}

// sliceRemainingRBs returns how many more PRBs snap's slice may be granted
// this slot, or need unchanged if the slice has no configured maximum.
func sliceRemainingRBs(sliceUsed map[uint8]int, snap *ueconfig.Snapshot, need int) int {
	if snap.SliceMaxRBs <= 0 {
		return need
	}
	remain := snap.SliceMaxRBs - sliceUsed[snap.SliceID]
	if remain < 0 {
		remain = 0
	}
	if need > remain {
		return remain
	}
	return need
}

func (s *UEScheduler) freePRBs(sl slot.Point, bwp grid.BWPID, symbols []int, numPRBs int, need int) []int {
	used, err := s.grid.UsedCRBs(sl, bwp, symbols)
	if err != nil {
		return nil
	}
	usedSet := make(map[int]bool, len(used))
	for _, p := range used {
		usedSet[p] = true
	}
	var free []int
	for p := 0; p < numPRBs && len(free) < need; p++ {
		if !usedSet[p] {
			free = append(free, p)
		}
	}
	return free
}

// ScheduleDL runs the retx-before-newtx DL sweep for sl, appending grants
// and failed attempts to res.
func (s *UEScheduler) ScheduleDL(sl slot.Point, res *Result) {
	for k := range s.sliceUsedDLRBs {
		delete(s.sliceUsedDLRBs, k)
	}
	for _, idx := range s.order {
		s.ues[idx].lastDLPUCCH = nil
	}
	for _, idx := range s.order {
		u := s.ues[idx]
		snap := s.snapshot(idx)
		if snap == nil {
			continue
		}
		if h, ok := u.harq.FindPendingDLRetx(); ok {
			s.grantDLRetx(sl, snap, u, h, res)
		}
	}
	for _, idx := range s.pfOrder(DirectionDL) {
		u := s.ues[idx]
		snap := s.snapshot(idx)
		s.grantDLNewtx(sl, snap, u, res)
	}
}

func (s *UEScheduler) bwpFor(snap *ueconfig.Snapshot) (grid.BWPID, ueconfig.BWP) {
	if snap.Fallback {
		return s.fbBWP, snap.FallbackBWP
	}
	return s.bwp, snap.DedicatedBWP
}

func (s *UEScheduler) grantDLRetx(sl slot.Point, snap *ueconfig.Snapshot, u *ueState, h harq.DLHandle, res *Result) {
	bwpID, bwp := s.bwpFor(snap)
	prbs := int(h.Process().PrevTxParams().RBs)
	if prbs == 0 {
		prbs = 1
	}
	free := s.freePRBs(sl, bwpID, s.dlSyms, int(bwp.NumPRBs), prbs)
	if len(free) < prbs {
		res.fail(u.ueIndex, DirectionDL, "no_free_prbs_retx")
		return
	}
	coresetID := grid.CoresetID(bwp.SearchSpace.CoresetID)
	ss := pdcch.SearchSpace{CoresetID: coresetID, NumCCEsInCoreset: s.grid.CoresetNumCCEs(coresetID), CandidatesByLevel: toAggMap(bwp.SearchSpace.CandidatesByAggLevel)}
	grant, ok := s.pdcch.AllocateAnyLevel(sl, snap.RNTI, ss, []pdcch.AggregationLevel{pdcch.AggLevel1, pdcch.AggLevel2, pdcch.AggLevel4, pdcch.AggLevel8}, pdcch.DCIFormat1_0)
	if !ok {
		res.fail(u.ueIndex, DirectionDL, "no_pdcch_retx")
		return
	}
	_ = s.grid.Fill(sl, bwpID, s.dlSyms, free)
	k1 := minK1(snap.K1Candidates)
	harqBit := h.Process().HARQBitIdx()
	if !h.NewRetx(sl, k1, harqBit) {
		res.fail(u.ueIndex, DirectionDL, "retx_not_pending")
		return
	}
	res.DLPDCCH = append(res.DLPDCCH, grant)
	res.PDSCH = append(res.PDSCH, PDSCHGrant{UEIndex: u.ueIndex, RNTI: snap.RNTI, Kind: GrantRetx, PRBs: free, HARQ: h, PDCCH: grant, IsFallback: snap.Fallback})
	s.sliceUsedDLRBs[snap.SliceID] += len(free)
	s.allocDLPUCCH(sl, u, res)
}

func (s *UEScheduler) grantDLNewtx(sl slot.Point, snap *ueconfig.Snapshot, u *ueState, res *Result) {
	bwpID, bwp := s.bwpFor(snap)
	var lcid ueconfig.LCID
	var bytes uint32
	for l, b := range u.dlBufferedBytes {
		if snap.Fallback && l > 1 {
			continue // fallback mode restricts DL to SRB0/SRB1 (lcid 0/1)
		}
		if b > bytes {
			lcid, bytes = l, b
		}
	}
	if bytes == 0 {
		return
	}
	mcs, bytesPerPRB := selectMCS(u.dlCQI)
	needPRBs := int(float64(bytes)/bytesPerPRB) + 1
	needPRBs = sliceRemainingRBs(s.sliceUsedDLRBs, snap, needPRBs)
	if needPRBs == 0 {
		res.fail(u.ueIndex, DirectionDL, "slice_rb_quota_exhausted")
		return
	}
	free := s.freePRBs(sl, bwpID, s.dlSyms, int(bwp.NumPRBs), needPRBs)
	if len(free) == 0 {
		res.fail(u.ueIndex, DirectionDL, "no_free_prbs_newtx")
		return
	}
	coresetID := grid.CoresetID(bwp.SearchSpace.CoresetID)
	ss := pdcch.SearchSpace{CoresetID: coresetID, NumCCEsInCoreset: s.grid.CoresetNumCCEs(coresetID), CandidatesByLevel: toAggMap(bwp.SearchSpace.CandidatesByAggLevel)}
	grant, ok := s.pdcch.AllocateAnyLevel(sl, snap.RNTI, ss, []pdcch.AggregationLevel{pdcch.AggLevel1, pdcch.AggLevel2, pdcch.AggLevel4, pdcch.AggLevel8}, pdcch.DCIFormat1_0)
	if !ok {
		res.fail(u.ueIndex, DirectionDL, "no_pdcch_newtx")
		return
	}
	if err := s.grid.Fill(sl, bwpID, s.dlSyms, free); err != nil {
		res.fail(u.ueIndex, DirectionDL, "prb_fill_race")
		return
	}
	k1 := minK1(snap.K1Candidates)
	h, ok := u.harq.AllocDLHarq(sl, k1, 4, 0)
	if !ok {
		res.fail(u.ueIndex, DirectionDL, "no_free_harq_newtx")
		return
	}
	tbs := uint32(float64(len(free)) * bytesPerPRB)
	h.SaveGrantParams(harq.AllocParams{RBs: len(free), TBSBytes: tbs, MCS: mcs})
	res.DLPDCCH = append(res.DLPDCCH, grant)
	res.PDSCH = append(res.PDSCH, PDSCHGrant{UEIndex: u.ueIndex, RNTI: snap.RNTI, Kind: GrantNewTx, PRBs: free, MCS: mcs, TBSBytes: tbs, HARQ: h, PDCCH: grant, IsFallback: snap.Fallback})
	u.dlSmoothedRate = s.pfFairnessAlpha*float64(tbs) + (1-s.pfFairnessAlpha)*u.dlSmoothedRate
	s.sliceUsedDLRBs[snap.SliceID] += len(free)
	s.allocDLPUCCH(sl, u, res)
	_ = lcid
}

// allocDLPUCCH reserves the UE's HARQ-ACK PUCCH resource for sl, mixing
// into an SR/CSI resource already held this slot rather than adding a
// second PUCCH (spec 4.6's mixing/upgrade rule).
func (s *UEScheduler) allocDLPUCCH(sl slot.Point, u *ueState, res *Result) {
	r, ok := s.pucch.AllocateHARQAck(sl, u.pucch, u.lastDLPUCCH)
	if !ok {
		res.fail(u.ueIndex, DirectionDL, "no_free_pucch")
		return
	}
	u.lastDLPUCCH = &r
	res.PUCCH = append(res.PUCCH, r)
}

// ScheduleUL runs the retx-before-newtx UL sweep for sl using pusch_td's
// time-domain slot mapping to decide which UEs may be granted this slot.
func (s *UEScheduler) ScheduleUL(sl slot.Point, td *PUSCHTimeDomain, res *Result) {
	if !td.IsPUSCHSlot(sl) {
		return
	}
	for k := range s.sliceUsedULRBs {
		delete(s.sliceUsedULRBs, k)
	}
	for _, idx := range s.order {
		u := s.ues[idx]
		snap := s.snapshot(idx)
		if snap == nil {
			continue
		}
		if h, ok := u.harq.FindPendingULRetx(); ok {
			s.grantULRetx(sl, snap, u, h, res)
		}
	}
	for _, idx := range s.pfOrder(DirectionUL) {
		u := s.ues[idx]
		snap := s.snapshot(idx)
		s.grantULNewtx(sl, snap, u, res)
	}
}

func (s *UEScheduler) grantULRetx(sl slot.Point, snap *ueconfig.Snapshot, u *ueState, h harq.ULHandle, res *Result) {
	bwpID, bwp := s.bwpFor(snap)
	prbs := int(h.Process().PrevTxParams().RBs)
	if prbs == 0 {
		prbs = 1
	}
	free := s.freePRBs(sl, bwpID, s.ulSyms, int(bwp.NumPRBs), prbs)
	if len(free) < prbs {
		res.fail(u.ueIndex, DirectionUL, "no_free_prbs_retx")
		return
	}
	coresetID := grid.CoresetID(bwp.SearchSpace.CoresetID)
	ss := pdcch.SearchSpace{CoresetID: coresetID, NumCCEsInCoreset: s.grid.CoresetNumCCEs(coresetID), CandidatesByLevel: toAggMap(bwp.SearchSpace.CandidatesByAggLevel)}
	grant, ok := s.pdcch.AllocateAnyLevel(sl, snap.RNTI, ss, []pdcch.AggregationLevel{pdcch.AggLevel1, pdcch.AggLevel2, pdcch.AggLevel4, pdcch.AggLevel8}, pdcch.DCIFormat0_0)
	if !ok {
		res.fail(u.ueIndex, DirectionUL, "no_pdcch_retx")
		return
	}
	_ = s.grid.Fill(sl, bwpID, s.ulSyms, free)
	if !h.NewRetx(sl) {
		res.fail(u.ueIndex, DirectionUL, "retx_not_pending")
		return
	}
	res.ULPDCCH = append(res.ULPDCCH, grant)
	res.PUSCH = append(res.PUSCH, PUSCHGrant{UEIndex: u.ueIndex, RNTI: snap.RNTI, Kind: GrantRetx, PRBs: free, HARQ: h, PDCCH: grant})
	s.sliceUsedULRBs[snap.SliceID] += len(free)
}

func (s *UEScheduler) grantULNewtx(sl slot.Point, snap *ueconfig.Snapshot, u *ueState, res *Result) {
	if u.ulBSRBytes == 0 {
		return
	}
	bwpID, bwp := s.bwpFor(snap)
	mcs, bytesPerPRB := selectMCS(u.ulCQI)
	needPRBs := int(float64(u.ulBSRBytes)/bytesPerPRB) + 1
	needPRBs = sliceRemainingRBs(s.sliceUsedULRBs, snap, needPRBs)
	if needPRBs == 0 {
		res.fail(u.ueIndex, DirectionUL, "slice_rb_quota_exhausted")
		return
	}
	free := s.freePRBs(sl, bwpID, s.ulSyms, int(bwp.NumPRBs), needPRBs)
	if len(free) == 0 {
		res.fail(u.ueIndex, DirectionUL, "no_free_prbs_newtx")
		return
	}
	coresetID := grid.CoresetID(bwp.SearchSpace.CoresetID)
	ss := pdcch.SearchSpace{CoresetID: coresetID, NumCCEsInCoreset: s.grid.CoresetNumCCEs(coresetID), CandidatesByLevel: toAggMap(bwp.SearchSpace.CandidatesByAggLevel)}
	grant, ok := s.pdcch.AllocateAnyLevel(sl, snap.RNTI, ss, []pdcch.AggregationLevel{pdcch.AggLevel1, pdcch.AggLevel2, pdcch.AggLevel4, pdcch.AggLevel8}, pdcch.DCIFormat0_0)
	if !ok {
		res.fail(u.ueIndex, DirectionUL, "no_pdcch_newtx")
		return
	}
	if err := s.grid.Fill(sl, bwpID, s.ulSyms, free); err != nil {
		res.fail(u.ueIndex, DirectionUL, "prb_fill_race")
		return
	}
	h, ok := u.harq.AllocULHarq(sl, 4)
	if !ok {
		res.fail(u.ueIndex, DirectionUL, "no_free_harq_newtx")
		return
	}
	tbs := uint32(float64(len(free)) * bytesPerPRB)
	h.SaveGrantParams(harq.AllocParams{RBs: len(free), TBSBytes: tbs, MCS: mcs})
	res.ULPDCCH = append(res.ULPDCCH, grant)
	res.PUSCH = append(res.PUSCH, PUSCHGrant{UEIndex: u.ueIndex, RNTI: snap.RNTI, Kind: GrantNewTx, PRBs: free, MCS: mcs, TBSBytes: tbs, HARQ: h, PDCCH: grant})
	u.ulSmoothedRate = s.pfFairnessAlpha*float64(tbs) + (1-s.pfFairnessAlpha)*u.ulSmoothedRate
	s.sliceUsedULRBs[snap.SliceID] += len(free)
}

func minK1(candidates []int) int {
	min := candidates[0]
	for _, k := range candidates[1:] {
		if k < min {
			min = k
		}
	}
	return min
}

func toAggMap(m map[uint8]uint8) map[pdcch.AggregationLevel]uint8 {
	out := make(map[pdcch.AggregationLevel]uint8, len(m))
	for k, v := range m {
		out[pdcch.AggregationLevel(k)] = v
	}
	return out
}
