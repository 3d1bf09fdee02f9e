package sched

import (
	"github.com/open-ran-go/gnb-mac-rlc/internal/harq"
	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
)

// SIMessage is one configured SIB/SI message (spec 4.7's "A configured
// payload size and period (in radio frames)").
type SIMessage struct {
	ID           uint8
	PayloadBytes int
	PeriodFrames int
}

// SIScheduler allocates SI message PDSCHs within each SI-change window,
// grounded on spec 4.7's window/version-flip rule (modeled on
// original_source/tests/unittests/scheduler/common_scheduling/si_scheduler_test.cpp's
// window-boundary expectations, since the production si_scheduler.cpp
// itself wasn't retrieved into the pack).
type SIScheduler struct {
	messages            []SIMessage
	windowFrames         int
	lastSentFrame        map[uint8]int
	pendingVersionUpdate bool
}

// NewSIScheduler constructs a scheduler for the given messages with a
// window of modificationPeriodCoeff * defaultPagingCycleFrames frames.
func NewSIScheduler(messages []SIMessage, modificationPeriodCoeff, defaultPagingCycleFrames int) *SIScheduler {
	return &SIScheduler{
		messages:      messages,
		windowFrames:  modificationPeriodCoeff * defaultPagingCycleFrames,
		lastSentFrame: make(map[uint8]int),
	}
}

// MarkVersionUpdate records that new SI content is pending; it applies at
// the next window boundary (spec 4.7: "version updates supplied out-of-
// band apply only at window boundaries").
func (s *SIScheduler) MarkVersionUpdate() { s.pendingVersionUpdate = true }

// MaybeSchedule returns the SI messages due for (re)transmission in sl's
// frame, ensuring every active message is sent at least once per window.
func (s *SIScheduler) MaybeSchedule(sl slot.Point) []SIMessage {
	frame := int(sl.SFN())
	windowStart := (frame / s.windowFrames) * s.windowFrames
	var due []SIMessage
	for _, m := range s.messages {
		last, sent := s.lastSentFrame[m.ID]
		if !sent || last < windowStart || (frame-last) >= m.PeriodFrames {
			due = append(due, m)
			s.lastSentFrame[m.ID] = frame
		}
	}
	if frame == windowStart && s.pendingVersionUpdate {
		s.pendingVersionUpdate = false
	}
	return due
}

// PagingOccasion marks one (UE ID, slot) pair a short paging message must
// be sent in, per spec 4.7's "a short-message PDCCH... is sent in every
// paging occasion of every UE ID until the next window flip".
type PagingOccasion struct {
	UEID uint64
	Slot slot.Point
}

// PagingScheduler emits a P-RNTI short message (flag 0x80) in every paging
// occasion while a system-info update is pending.
type PagingScheduler struct {
	updatePending bool
	ueIDs         []uint64
	occasionsPerFrame int
}

// NewPagingScheduler constructs a scheduler over the given UE ID space.
func NewPagingScheduler(ueIDs []uint64, occasionsPerFrame int) *PagingScheduler {
	return &PagingScheduler{ueIDs: ueIDs, occasionsPerFrame: occasionsPerFrame}
}

// NotifyUpdatePending begins emitting the short message every occasion.
func (p *PagingScheduler) NotifyUpdatePending() { p.updatePending = true }

// ClearUpdatePending stops emission immediately: the next Occasions call
// returns nil.
func (p *PagingScheduler) ClearUpdatePending() { p.updatePending = false }

// Occasions returns every UE ID's paging occasion due at sl, or nil if no
// update is pending.
func (p *PagingScheduler) Occasions(sl slot.Point) []PagingOccasion {
	if !p.updatePending {
		return nil
	}
	var out []PagingOccasion
	for _, id := range p.ueIDs {
		out = append(out, PagingOccasion{UEID: id, Slot: sl})
	}
	return out
}

// raAttempt is one in-flight RACH attempt awaiting its RAR/Msg3 cycle, or,
// once Msg3 is ACKed, its contention-resolution (Msg4) cycle.
type raAttempt struct {
	tcRNTI   uint32
	preamble uint8
	slotRx   slot.Point
	rarSlot  slot.Point
	rarSent  bool
	msg3Slot slot.Point
	msg3HARQ harq.ULHandle
	conRes   *ConResState

	retxDue  bool // a CRC-NACK left msg3HARQ pending retx, awaiting a new grant
	retxSlot slot.Point
}

// ConResState tracks contention-resolution progress for one RA attempt
// (spec 4.7's "ConRes CE AND either an SRB0 or SRB1 Msg4 SDU").
type ConResState struct {
	CEReceived   bool
	SRB0SDUReady bool
	SRB1SDUReady bool
	ExpirySlot   slot.Point
}

// Ready reports whether Msg4 may now be scheduled.
func (c *ConResState) Ready() bool {
	return c.CEReceived && (c.SRB0SDUReady || c.SRB1SDUReady)
}

// Expired reports whether the ConRes timer has elapsed by sl, after which
// no further ConRes-related PDSCH/PUCCH may be scheduled (spec 4.7).
func (c *ConResState) Expired(sl slot.Point) bool {
	return sl.After(c.ExpirySlot) || sl.Equal(c.ExpirySlot)
}

// RAScheduler assigns TC-RNTIs to detected preambles and schedules
// RAR/Msg3 within the configured window, grounded on spec 4.7 directly (no
// ra_scheduler.cpp was retrieved into the pack) and on internal/harq's
// handle-based UL allocation for Msg3 retransmissions. Msg3 HARQ processes
// are drawn from a dedicated common-channel UEHarqEntity reserved by the
// caller at cell bring-up, since internal/harq's repositories index by a
// fixed-size per-UE array and have no notion of a UE-less allocation.
type RAScheduler struct {
	nextTCRNTI     uint32
	rarWindowSlots int
	msg3K2         int
	maxMsg3Retx    int
	attempts       []*raAttempt
	harq           *harq.UEHarqEntity
}

// NewRAScheduler constructs an RAScheduler. rarWindowSlots bounds how many
// slots after detection the RAR may be sent in; msg3K2 is the PDCCH-to-
// PUSCH delay for the Msg3 UL grant; commonHarq is the reserved entity
// backing every Msg3 transmission.
func NewRAScheduler(commonHarq *harq.UEHarqEntity, rarWindowSlots, msg3K2, maxMsg3Retx int) *RAScheduler {
	return &RAScheduler{nextTCRNTI: 0x4601, rarWindowSlots: rarWindowSlots, msg3K2: msg3K2, maxMsg3Retx: maxMsg3Retx, harq: commonHarq}
}

// RACHIndication registers one detected preamble, assigning it a fresh
// TC-RNTI from the free-running pool.
func (r *RAScheduler) RACHIndication(slotRx slot.Point, preamble uint8) uint32 {
	tc := r.nextTCRNTI
	r.nextTCRNTI++
	r.attempts = append(r.attempts, &raAttempt{tcRNTI: tc, preamble: preamble, slotRx: slotRx, rarSlot: slotRx.Add(r.rarWindowSlots)})
	return tc
}

// SlotIndication emits RAR PDSCH grants, schedules the initial Msg3 UL
// HARQ, re-grants any Msg3 left pending retx by a CRC-NACK (spec S3: "a
// Msg3 retx is scheduled within ≤ 16 slots with the same HARQ id"), and
// drives contention resolution to completion for every Msg3-ACKed attempt:
// a Msg4 PDSCH using the TC-RNTI is emitted once ConResState.Ready(), and
// the attempt is dropped (with no further ConRes PDSCH/PUCCH) once its
// timer expires first.
func (r *RAScheduler) SlotIndication(sl slot.Point, res *Result) {
	remaining := r.attempts[:0]
	for _, a := range r.attempts {
		if !a.rarSent && sl.Equal(a.rarSlot) {
			a.rarSent = true
			res.PDSCH = append(res.PDSCH, PDSCHGrant{RNTI: a.tcRNTI, Kind: GrantCommon, UEIndex: -1})
			a.msg3Slot = sl.Add(r.msg3K2)
		}
		if a.rarSent && !a.msg3HARQ.Valid() && sl.Equal(a.msg3Slot) {
			h, ok := r.harq.AllocULHarq(a.msg3Slot, r.maxMsg3Retx)
			if !ok {
				res.fail(-1, DirectionUL, "no_free_harq_msg3")
				remaining = append(remaining, a)
				continue
			}
			a.msg3HARQ = h
			res.PUSCH = append(res.PUSCH, PUSCHGrant{RNTI: a.tcRNTI, Kind: GrantCommon, UEIndex: -1, HARQ: h})
			remaining = append(remaining, a)
			continue
		}
		if a.retxDue && sl.Equal(a.retxSlot) {
			a.retxDue = false
			if a.msg3HARQ.NewRetx(sl) {
				res.PUSCH = append(res.PUSCH, PUSCHGrant{RNTI: a.tcRNTI, Kind: GrantRetx, UEIndex: -1, HARQ: a.msg3HARQ})
			}
		}
		if a.conRes != nil {
			switch {
			case a.conRes.Ready():
				// Msg4: TC-RNTI on the common search space, DCI format 1_0,
				// no CSI-RS multiplexed (spec 4.7). Contention is resolved;
				// the attempt is complete and drops out of tracking.
				res.PDSCH = append(res.PDSCH, PDSCHGrant{RNTI: a.tcRNTI, Kind: GrantCommon, UEIndex: -1, NoCSIRS: true})
				continue
			case a.conRes.Expired(sl):
				continue
			}
		}
		remaining = append(remaining, a)
	}
	r.attempts = remaining
}

// ConResIndication records the arrival of the ConRes CE and/or an SRB0/SRB1
// Msg4 SDU for tcRNTI's attempt (spec 4.7: Msg4 waits for "the ConRes CE
// AND (an SRB0 or SRB1 Msg4 SDU)"). A no-op if the attempt has no tracked
// ConResState yet (Msg3 not yet ACKed) or no longer exists.
func (r *RAScheduler) ConResIndication(tcRNTI uint32, ceReceived, srb0Ready, srb1Ready bool) {
	for _, a := range r.attempts {
		if a.tcRNTI != tcRNTI || a.conRes == nil {
			continue
		}
		a.conRes.CEReceived = a.conRes.CEReceived || ceReceived
		a.conRes.SRB0SDUReady = a.conRes.SRB0SDUReady || srb0Ready
		a.conRes.SRB1SDUReady = a.conRes.SRB1SDUReady || srb1Ready
		return
	}
}

// Msg3CRC feeds a CRC result, decoded at crcSlot, for the attempt owning
// tcRNTI's Msg3. An ACK starts contention resolution: the attempt remains
// tracked (its ConResState is reachable from SlotIndication every
// subsequent slot) until Msg4 is scheduled or the ConRes timer expires. A
// NACK schedules a retx within 16 slots of crcSlot (spec S3) unless the
// retx budget is already exhausted, in which case the attempt is dropped.
func (r *RAScheduler) Msg3CRC(ack bool, tcRNTI uint32, crcSlot slot.Point, conResTimeoutSlots int) *ConResState {
	for i, a := range r.attempts {
		if a.tcRNTI != tcRNTI {
			continue
		}
		tbs := a.msg3HARQ.ULCRCInfo(ack)
		if ack && tbs >= 0 {
			cr := &ConResState{ExpirySlot: a.msg3Slot.Add(conResTimeoutSlots)}
			a.conRes = cr
			return cr
		}
		if a.msg3HARQ.Process().Status() != harq.StatePendingRetx {
			// retx budget exhausted; the repository already deallocated it.
			r.attempts = append(r.attempts[:i], r.attempts[i+1:]...)
			return nil
		}
		a.retxDue = true
		a.retxSlot = crcSlot.Add(16)
		return nil
	}
	return nil
}
