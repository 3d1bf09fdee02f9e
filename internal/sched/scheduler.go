package sched

import (
	"fmt"

	"github.com/open-ran-go/gnb-mac-rlc/internal/grid"
	"github.com/open-ran-go/gnb-mac-rlc/internal/harq"
	"github.com/open-ran-go/gnb-mac-rlc/internal/logging"
	"github.com/open-ran-go/gnb-mac-rlc/internal/metrics"
	"github.com/open-ran-go/gnb-mac-rlc/internal/pdcch"
	"github.com/open-ran-go/gnb-mac-rlc/internal/pucch"
	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
	"github.com/open-ran-go/gnb-mac-rlc/internal/ueconfig"
)

const commonUEIndex = -1

// CellConfigurationRequest carries the parameters of
// handle_cell_configuration_request (spec section 6): carrier/SSB/CORESET#0
// extent, TDD pattern, PUCCH guard bands, and RACH/SI/paging parameters.
// Simplified to the fields this scheduler's components actually consume.
type CellConfigurationRequest struct {
	CellID       uint16
	SCS          slot.SCS
	NumPRBs      uint16
	NumSymbols   uint8
	CoresetID    grid.CoresetID
	NumCCEs      uint16
	GridHorizonK uint32
	PUCCHMaxPRB  int
	DLSymbols    []int
	ULSymbols    []int
	TDDPeriodSlots int
	IsULSlot       []bool
	K2Candidates   []int
	SIMessages       []SIMessage
	SIWindowCoeff    int
	DefaultPagingCycleFrames int
	PagingUEIDs      []uint64
	RARWindowSlots   int
	Msg3K2           int
	MaxMsg3Retx      int
	ConResTimeoutSlots int
	MaxULHarqProcsCommon int
}

// UECreationRequest carries handle_ue_creation_request's parameters.
type UECreationRequest struct {
	UEIndex         int
	RNTI            uint32
	NofDLHarq       int
	NofULHarq       int
	NofHARQAckPUCCH int
	Snapshot        *ueconfig.Snapshot
}

// UEReconfigurationRequest carries handle_ue_reconfiguration_request's
// parameters: a freshly built immutable snapshot replacing the UE's current
// one (spec section 6: "Reconfiguration publishes a new immutable config
// snapshot; the running UE swaps to it atomically before its next slot").
type UEReconfigurationRequest struct {
	Snapshot *ueconfig.Snapshot
}

// RACHOccasion is one detected preamble reported by rach_indication.
type RACHOccasion struct {
	Preamble uint8
}

// CRCReport is one decoded PUSCH CRC reported by crc_indication.
type CRCReport struct {
	UEIndex   int
	TCRNTI    uint32 // set instead of UEIndex for a still-contending Msg3
	PUSCHSlot slot.Point
	Ack       bool
}

// Scheduler is the external façade of spec section 6: the gNB MAC
// scheduler, wiring the resource grid, HARQ manager, PDCCH/PUCCH
// allocators, common-channel schedulers, per-UE scheduler, and feedback
// dispatcher into one per-slot pipeline of direct calls in a fixed order
// (common, UE DL, UE UL, finalize) rather than virtual dispatch (spec
// section 9).
//
// Not safe for concurrent use; intended to run on one internal/executor
// CellExecutor per cell, as every other package in this module assumes.
type Scheduler struct {
	cellID uint16
	scs    slot.SCS

	grid  *grid.Grid
	harq  *harq.CellManager
	pdcch *pdcch.Allocator
	pucch *pucch.Manager

	cfg *ueconfig.Store

	si       *SIScheduler
	paging   *PagingScheduler
	ra       *RAScheduler
	ueSched  *UEScheduler
	feedback *FeedbackDispatcher
	td       *PUSCHTimeDomain

	bwp       grid.BWPID
	fallback  grid.BWPID
	pucchBldr *pucch.Builder

	metrics *metrics.Scheduler
	logger  logging.Logger

	conResTimeoutSlots int
	lastSlot           slot.Point
}

// NewScheduler applies req and constructs a fully wired Scheduler for one
// cell, matching handle_cell_configuration_request's "once per cell"
// contract.
func NewScheduler(req CellConfigurationRequest, m *metrics.Scheduler, logger logging.Logger) (*Scheduler, error) {
	if req.NumPRBs == 0 || req.NumCCEs == 0 || req.GridHorizonK == 0 {
		return nil, fmt.Errorf("sched: invalid cell configuration for cell %d", req.CellID)
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	const bwpID, fallbackBWPID grid.BWPID = 0, 1
	bwps := map[grid.BWPID]grid.BWPConfig{
		bwpID:         {NumPRBs: req.NumPRBs, NumSymbol: req.NumSymbols},
		fallbackBWPID: {NumPRBs: req.NumPRBs, NumSymbol: req.NumSymbols},
	}
	coresets := map[grid.CoresetID]grid.CoresetConfig{req.CoresetID: {NumCCEs: req.NumCCEs}}
	g := grid.New(req.SCS, req.GridHorizonK, bwps, coresets)

	hm := harq.NewCellManager(harq.Config{
		MaxUEs: 256, MaxDLHARQsPerUE: 16, MaxULHARQsPerUE: 16,
		MaxAckWaitSlots: 16, SCS: req.SCS,
	}, nil, logger)

	pa := pdcch.New(g)
	pm := pucch.NewManager(req.GridHorizonK)
	pb := pucch.NewBuilder(req.PUCCHMaxPRB)

	cfgStore := ueconfig.New()

	si := NewSIScheduler(req.SIMessages, req.SIWindowCoeff, req.DefaultPagingCycleFrames)
	pg := NewPagingScheduler(req.PagingUEIDs, 1)

	commonEntity, err := hm.AddUE(commonUEIndex+256, 0, 1, req.MaxULHarqProcsCommon)
	if err != nil {
		return nil, fmt.Errorf("sched: reserving common-channel harq pool: %w", err)
	}
	ra := NewRAScheduler(commonEntity, req.RARWindowSlots, req.Msg3K2, req.MaxMsg3Retx)

	ues := NewUEScheduler(cfgStore, g, pa, pm, bwpID, fallbackBWPID, req.DLSymbols, req.ULSymbols)
	fb := NewFeedbackDispatcher(ues, cfgStore)
	td := NewPUSCHTimeDomain(req.TDDPeriodSlots, req.IsULSlot, req.K2Candidates)

	return &Scheduler{
		cellID: req.CellID, scs: req.SCS,
		grid: g, harq: hm, pdcch: pa, pucch: pm,
		cfg: cfgStore, si: si, paging: pg, ra: ra,
		ueSched: ues, feedback: fb, td: td,
		bwp: bwpID, fallback: fallbackBWPID, pucchBldr: pb,
		metrics: m, logger: logger,
		conResTimeoutSlots: req.ConResTimeoutSlots,
	}, nil
}

// HandleCellConfigurationRequest is a no-op placeholder satisfying the
// external-interface contract for a cell already constructed via
// NewScheduler; re-configuring an already-running cell is out of scope
// (spec's "once per cell").
func (s *Scheduler) HandleCellConfigurationRequest(req CellConfigurationRequest) error {
	if req.CellID != s.cellID {
		return fmt.Errorf("sched: cell %d cannot be reconfigured to cell %d in place", s.cellID, req.CellID)
	}
	return nil
}

// HandleUECreationRequest reserves the UE's HARQ processes and PUCCH
// resources and publishes its initial configuration snapshot.
func (s *Scheduler) HandleUECreationRequest(req UECreationRequest) error {
	h, err := s.harq.AddUE(req.UEIndex, req.RNTI, req.NofDLHarq, req.NofULHarq)
	if err != nil {
		return err
	}
	res, err := s.pucchBldr.Partition(req.NofHARQAckPUCCH)
	if err != nil {
		h.Destroy()
		return err
	}
	if err := s.cfg.Create(req.Snapshot); err != nil {
		h.Destroy()
		return err
	}
	s.ueSched.AddUE(req.UEIndex, h, res)
	return nil
}

// HandleUEReconfigurationRequest publishes a new snapshot; the UE swaps to
// it atomically before its next slot, per spec section 6.
func (s *Scheduler) HandleUEReconfigurationRequest(req UEReconfigurationRequest) error {
	return s.cfg.Reconfigure(req.Snapshot)
}

// HandleUERemovalRequest releases a UE's HARQ processes, scheduler state
// and configuration.
func (s *Scheduler) HandleUERemovalRequest(ueIndex int) {
	s.harq.DestroyUE(ueIndex)
	s.ueSched.RemoveUE(ueIndex)
	s.cfg.Remove(ueIndex)
}

// HandleDLBufferStateIndication implements handle_dl_buffer_state_indication.
func (s *Scheduler) HandleDLBufferStateIndication(ueIndex int, lcid ueconfig.LCID, bytes uint32) {
	s.feedback.DLBufferStateIndication(ueIndex, lcid, bytes)
}

// HandleULBSRIndication implements handle_ul_bsr_indication, simplified to
// a single aggregated byte count (the per-LCG breakdown spec.md's prose
// allows is not needed by this scheduler's PF weight, which only consumes
// the total).
func (s *Scheduler) HandleULBSRIndication(ueIndex int, bytes uint32) {
	s.feedback.ULBSRIndication(ueIndex, bytes)
}

// RACHIndication implements rach_indication: every reported occasion is
// assigned a fresh TC-RNTI.
func (s *Scheduler) RACHIndication(slotRx slot.Point, occasions []RACHOccasion) []uint32 {
	out := make([]uint32, len(occasions))
	for i, o := range occasions {
		out[i] = s.ra.RACHIndication(slotRx, o.Preamble)
	}
	return out
}

// CRCIndication implements crc_indication, routing each report either to a
// UE's UL HARQ process (by UEIndex) or to an in-flight RA attempt's Msg3
// (by TCRNTI).
func (s *Scheduler) CRCIndication(reports []CRCReport) {
	for _, r := range reports {
		if r.TCRNTI != 0 {
			s.ra.Msg3CRC(r.Ack, r.TCRNTI, r.PUSCHSlot, s.conResTimeoutSlots)
			continue
		}
		s.feedback.CRCIndication(r.UEIndex, r.PUSCHSlot, r.Ack)
	}
}

// ConResIndication reports the arrival of the contention-resolution CE
// and/or an SRB0/SRB1 Msg4 SDU for a still-contending TC-RNTI, feeding the
// Msg4 scheduling decision made every SlotIndication (spec 4.7).
func (s *Scheduler) ConResIndication(tcRNTI uint32, ceReceived, srb0Ready, srb1Ready bool) {
	s.ra.ConResIndication(tcRNTI, ceReceived, srb0Ready, srb1Ready)
}

// UCIIndication implements uci_indication.
func (s *Scheduler) UCIIndication(ucis []UCI) {
	for _, u := range ucis {
		s.feedback.UCIIndication(u)
	}
}

// ErrorIndication implements error_indication.
func (s *Scheduler) ErrorIndication(sl slot.Point) {
	s.feedback.ErrorIndication(sl)
}

// SlotIndication implements slot_indication: the complete per-slot
// pipeline (spec section 2's control flow), advancing every slot-indexed
// structure, then running the common-channel, UE DL, and UE UL phases in
// turn and collecting their grants into one Result.
func (s *Scheduler) SlotIndication(sl slot.Point) *Result {
	s.lastSlot = sl
	s.grid.SlotIndication(sl)
	s.harq.SlotIndication(sl)
	s.pucch.SlotIndication(sl)

	res := &Result{Slot: sl}

	// phaseCommon
	for _, m := range s.si.MaybeSchedule(sl) {
		res.PDSCH = append(res.PDSCH, PDSCHGrant{UEIndex: commonUEIndex, Kind: GrantCommon, TBSBytes: uint32(m.PayloadBytes)})
	}
	for range s.paging.Occasions(sl) {
		res.PDSCH = append(res.PDSCH, PDSCHGrant{UEIndex: commonUEIndex, Kind: GrantCommon})
	}
	s.ra.SlotIndication(sl, res)

	// phaseUEDL
	s.ueSched.ScheduleDL(sl, res)

	// phaseUEUL
	s.ueSched.ScheduleUL(sl, s.td, res)

	// phaseFinalize
	s.recordMetrics(res)
	s.logger.Log(logging.Entry{
		Level:    logging.LevelDebug,
		Category: "sched",
		CellID:   s.cellID,
		Message:  "slot_indication complete",
		Fields: map[string]any{
			"slot":            sl.String(),
			"dl_grants":       len(res.PDSCH),
			"ul_grants":       len(res.PUSCH),
			"failed_attempts": len(res.FailedAttempts),
		},
	})
	return res
}

func (s *Scheduler) recordMetrics(res *Result) {
	if s.metrics == nil {
		return
	}
	for _, g := range res.PDSCH {
		s.metrics.RecordGrant("pdsch", g.Kind.String())
	}
	for _, g := range res.PUSCH {
		s.metrics.RecordGrant("pusch", g.Kind.String())
	}
	for _, f := range res.FailedAttempts {
		s.metrics.RecordFailedAttempt(f.Reason)
	}
}
