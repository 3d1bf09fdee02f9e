package rlc

import (
	"time"

	"github.com/open-ran-go/gnb-mac-rlc/internal/buffer"
	"github.com/open-ran-go/gnb-mac-rlc/internal/executor"
	"github.com/open-ran-go/gnb-mac-rlc/internal/logging"
	"github.com/open-ran-go/gnb-mac-rlc/internal/metrics"
)

// StatusProvider is implemented by an RxAM entity and consulted by its
// sibling TxAM before building a data PDU, modelling spec section 9's
// "the TX consults the RX for the latest status" capability interface.
type StatusProvider interface {
	// PendingStatus reports whether a status report is due and, if so,
	// returns it and marks it handed-out (restarting t_StatusProhibit).
	PendingStatus() (StatusPDU, bool)
}

// StatusHandler is implemented by a TxAM entity and invoked by its sibling
// RxAM when a control PDU (sent by the peer's TX entity describing our own
// transmissions) is received - spec section 9's "status_handler".
type StatusHandler interface {
	ApplyStatus(s StatusPDU)
}

// defaultPollByteThresh/PDUThresh are representative poll-triggering
// thresholds; real deployments configure these per bearer.
const (
	defaultPollByteThresh = 1 << 18
	defaultPollPDUThresh  = 16
	defaultMaxRetxThresh  = 4
)

// amTxSDU is one SDU tracked between TX_Next_Ack and TX_Next.
type amTxSDU struct {
	chain       *buffer.Chain
	pdcpSN      uint32
	sn          uint32
	assigned    bool
	transmitted bool
	retx        int
}

// retxItem is one queued (re)transmission of a previously-sent segment.
type retxItem struct {
	sn     uint32
	so     int
	length int // -1 means "to end of SDU"
}

// TxAM is the Acknowledged Mode TX entity (spec section 4.5), grounded on
// original_source/lib/rlc/rlc_am_entity.h and the UM segmentation path it
// shares.
type TxAM struct {
	snSize SNSize

	txNextAck uint32
	txNext    uint32

	queue      []*amTxSDU
	inflight   map[uint32]*amTxSDU // sn -> sdu, for TX_Next_Ack..TX_Next
	inProgress *amTxSDU
	segOffset  int

	retxQueue []retxItem

	pollByteCounter int
	pollPDUCounter  int
	pollByteThresh  int
	pollPDUThresh   int
	pendingPoll     bool

	maxRetxThresh int
	failed        bool

	status StatusProvider

	txNotify  TxNotifier
	protoNotify ProtocolNotifier
	metrics   *metrics.RLC
	bearer    string
	state     *deferredBufferState
}

// NewTxAM constructs an AM TX entity. status (the sibling RxAM) may be
// wired after construction via SetStatusProvider if the RX entity isn't
// built yet (cyclic graph, spec section 9).
func NewTxAM(snSize SNSize, exec *executor.CellExecutor, bufNotify BufferStateNotifier, txNotify TxNotifier, protoNotify ProtocolNotifier, m *metrics.RLC, bearer string) *TxAM {
	if txNotify == nil {
		txNotify = noopTxNotifier{}
	}
	if protoNotify == nil {
		protoNotify = noopProtocolNotifier{}
	}
	t := &TxAM{
		snSize:        snSize,
		inflight:      make(map[uint32]*amTxSDU),
		pollByteThresh: defaultPollByteThresh,
		pollPDUThresh:  defaultPollPDUThresh,
		maxRetxThresh:  defaultMaxRetxThresh,
		txNotify:       txNotify,
		protoNotify:    protoNotify,
		metrics:        m,
		bearer:         bearer,
	}
	t.state = newDeferredBufferState(exec, bufNotify, t.bufferStateBytes)
	return t
}

// SetStatusProvider wires the sibling RxAM's status capability.
func (t *TxAM) SetStatusProvider(s StatusProvider) { t.status = s }

// HandleSDU enqueues sdu for transmission.
func (t *TxAM) HandleSDU(sdu *buffer.Chain, pdcpSN uint32) {
	t.queue = append(t.queue, &amTxSDU{chain: sdu, pdcpSN: pdcpSN})
	t.state.arm()
}

// Discard removes a not-yet-transmitted SDU by pdcpSN, a no-op if it has
// already left the entity.
func (t *TxAM) Discard(pdcpSN uint32) {
	for i, s := range t.queue {
		if s.pdcpSN == pdcpSN {
			t.queue = append(t.queue[:i], t.queue[i+1:]...)
			t.state.arm()
			return
		}
	}
}

// PullPDU builds the next PDU to send: a pending status report takes
// priority, then queued retransmissions, then new segmentation - matching
// spec 4.5's "status report required... P bit" priority and the shared
// UM-style segmentation path.
func (t *TxAM) PullPDU(grant int) *buffer.Chain {
	if t.status != nil {
		if s, ok := t.status.PendingStatus(); ok {
			packed := PackStatus(t.snSize, s)
			if len(packed) <= grant {
				out := buffer.NewChain()
				out.Append(buffer.NewSlice(buffer.WrapBuffer(packed), 0, len(packed)))
				return out
			}
		}
	}
	if t.failed {
		return nil
	}
	if len(t.retxQueue) > 0 {
		return t.pullRetx(grant)
	}
	return t.pullNewtx(grant)
}

func (t *TxAM) pullRetx(grant int) *buffer.Chain {
	item := t.retxQueue[0]
	sdu, ok := t.inflight[item.sn]
	if !ok {
		t.retxQueue = t.retxQueue[1:]
		return t.PullPDU(grant)
	}
	total := sdu.chain.Len()
	length := item.length
	if length < 0 {
		length = total - item.so
	}
	si := SIFull
	if item.so > 0 || item.so+length < total {
		switch {
		case item.so == 0:
			si = SIFirst
		case item.so+length >= total:
			si = SILast
		default:
			si = SIMiddle
		}
	}
	headLen := headerLen(ModeAM, t.snSize, false)
	if si != SIFull {
		headLen = headerLen(ModeAM, t.snSize, si == SILast || si == SIMiddle)
	}
	if grant < headLen {
		return nil
	}
	n := length
	if n > grant-headLen {
		n = grant - headLen
	}
	payload := sdu.chain.Sub(item.so, n)
	hdr := Header{DC: 1, SI: si, SN: item.sn, SNSize: t.snSize}
	if si == SIMiddle || si == SILast {
		hdr.SO = uint16(item.so)
	}
	t.applyPoll(&hdr)
	packed := PackAM(hdr)
	out := t.assemble(packed, payload)

	if n >= length {
		t.retxQueue = t.retxQueue[1:]
	} else {
		t.retxQueue[0].so += n
		t.retxQueue[0].length = length - n
	}
	t.updatePollCounters(len(packed) + n)
	return out
}

func (t *TxAM) pullNewtx(grant int) *buffer.Chain {
	if t.inProgress == nil {
		if len(t.queue) == 0 {
			return nil
		}
		t.inProgress = t.queue[0]
		t.queue = t.queue[1:]
		t.segOffset = 0
	}
	sdu := t.inProgress
	if !sdu.assigned {
		sdu.sn = t.txNext
		sdu.assigned = true
		t.inflight[sdu.sn] = sdu
	}
	remaining := sdu.chain.Len() - t.segOffset

	var si SI
	var headLen int
	if t.segOffset == 0 {
		if remaining <= grant-headerLen(ModeAM, t.snSize, false) {
			si = SIFull
			headLen = headerLen(ModeAM, t.snSize, false)
		} else {
			si = SIFirst
			headLen = headerLen(ModeAM, t.snSize, false)
		}
	} else {
		headLen = headerLen(ModeAM, t.snSize, true)
		if remaining <= grant-headLen {
			si = SILast
		} else {
			si = SIMiddle
		}
	}
	if grant < headLen {
		return nil
	}
	n := grant - headLen
	if n > remaining {
		n = remaining
	}
	if n <= 0 && remaining > 0 {
		return nil
	}

	payload := sdu.chain.Sub(t.segOffset, n)
	hdr := Header{DC: 1, SI: si, SN: sdu.sn, SNSize: t.snSize}
	if si == SIMiddle || si == SILast {
		hdr.SO = uint16(t.segOffset)
	}
	t.applyPoll(&hdr)
	packed := PackAM(hdr)
	out := t.assemble(packed, payload)

	if !sdu.transmitted {
		sdu.transmitted = true
		t.txNotify.OnTransmittedSDU(sdu.pdcpSN, t.bufferStateBytes())
	}

	if si == SIFull || si == SILast {
		t.txNext = (t.txNext + 1) % t.snSize.Modulus()
		t.inProgress = nil
		t.segOffset = 0
	} else {
		t.segOffset += n
	}
	t.updatePollCounters(len(packed) + n)
	t.state.arm()
	return out
}

func (t *TxAM) assemble(header []byte, payload *buffer.Chain) *buffer.Chain {
	out := buffer.NewChain()
	out.Append(buffer.NewSlice(buffer.WrapBuffer(header), 0, len(header)))
	for _, s := range payload.Slices() {
		out.Append(s)
	}
	return out
}

// applyPoll sets P=1 on hdr if a poll was pending from the previous PDU's
// threshold crossing, consuming the flag (spec 4.5: "when either crosses
// its configured threshold, the next PDU's P bit is set").
func (t *TxAM) applyPoll(hdr *Header) {
	if t.pendingPoll {
		hdr.Poll = true
		t.pendingPoll = false
	}
}

func (t *TxAM) updatePollCounters(pduBytes int) {
	t.pollByteCounter += pduBytes
	t.pollPDUCounter++
	if t.pollByteCounter >= t.pollByteThresh || t.pollPDUCounter >= t.pollPDUThresh {
		t.pendingPoll = true
		t.pollByteCounter = 0
		t.pollPDUCounter = 0
	}
}

// ApplyStatus implements StatusHandler: frees delivered SDUs below ACK_SN
// and requeues NACKed segments for retransmission, per spec 4.5.
func (t *TxAM) ApplyStatus(s StatusPDU) {
	mod := t.snSize.Modulus()
	nacked := make(map[uint32]bool, len(s.NACKs))
	for _, n := range s.NACKs {
		nacked[n.SN] = true
		if n.HasRange {
			for sn := n.SN; sn != n.RangeEnd; sn = (sn + 1) % mod {
				nacked[sn] = true
			}
			nacked[n.RangeEnd] = true
		}
	}
	for sn, sdu := range t.inflight {
		if !nacked[sn] && modGreater(s.ACKSN, sn, mod) {
			delete(t.inflight, sn)
			t.txNotify.OnDeliveredSDU(sdu.pdcpSN)
		}
	}
	if modGreater(s.ACKSN, t.txNextAck, mod) || s.ACKSN == t.txNextAck {
		t.txNextAck = s.ACKSN
	}
	for _, n := range s.NACKs {
		sdu, ok := t.inflight[n.SN]
		if !ok {
			continue
		}
		sdu.retx++
		if sdu.retx > t.maxRetxThresh {
			t.failed = true
			if t.metrics != nil {
				t.metrics.RecordMaxRetx(t.bearer)
			}
			t.protoNotify.OnMaxRetx()
			continue
		}
		switch {
		case n.HasRange:
			for sn := n.SN; ; sn = (sn + 1) % mod {
				t.retxQueue = append(t.retxQueue, retxItem{sn: sn, so: 0, length: -1})
				if sn == n.RangeEnd {
					break
				}
			}
		case n.HasSO:
			t.retxQueue = append(t.retxQueue, retxItem{sn: n.SN, so: int(n.SOStart), length: int(n.SOEnd) - int(n.SOStart) + 1})
		default:
			t.retxQueue = append(t.retxQueue, retxItem{sn: n.SN, so: 0, length: -1})
		}
	}
}

// Failed reports whether this entity has entered the protocol-failure
// absorbing state (spec 4.5 / 7 "raise on_max_retx").
func (t *TxAM) Failed() bool { return t.failed }

func (t *TxAM) bufferStateBytes() uint32 {
	n := uint32(0)
	for _, s := range t.queue {
		n += uint32(s.chain.Len() + headerLen(ModeAM, t.snSize, false))
	}
	if t.inProgress != nil {
		remaining := t.inProgress.chain.Len() - t.segOffset
		n += uint32(remaining + headerLen(ModeAM, t.snSize, true))
	}
	return n
}

// RxAM is the Acknowledged Mode RX entity (spec section 4.5), reusing the
// UM reassembly bookkeeping and adding poll handling and status-PDU
// generation.
type RxAM struct {
	snSize SNSize

	rxNext        uint32
	rxNextHighest uint32
	rxHighestStatus uint32
	reassembly    map[uint32]*sduAssembly

	statusRequired bool
	statusProhibit bool
	statusHandler  StatusHandler

	notifier   DataNotifier
	rlcMetrics *metrics.RLC
	logger     *logging.WarnLimiter
	bearer     uint8

	exec          *executor.UEExecutor
	tReassembly   time.Duration
	tStatusProhibit time.Duration
	reassemblyTimer *time.Timer
	reassemblyRunning bool
	statusProhibitTimer *time.Timer
}

// NewRxAM constructs an AM RX entity. handler (the sibling TxAM) may be
// wired after construction via SetStatusHandler.
func NewRxAM(snSize SNSize, exec *executor.UEExecutor, notifier DataNotifier, m *metrics.RLC, logger logging.Logger, bearer uint8) *RxAM {
	if notifier == nil {
		notifier = noopDataNotifier{}
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &RxAM{
		snSize:      snSize,
		reassembly:  make(map[uint32]*sduAssembly),
		notifier:    notifier,
		rlcMetrics:  m,
		logger:      logging.NewWarnLimiter(logger, time.Second),
		bearer:      bearer,
		exec:        exec,
		tReassembly: defaultTReassembly,
		tStatusProhibit: defaultTStatusProhibit,
	}
}

// SetStatusHandler wires the sibling TxAM's status capability.
func (r *RxAM) SetStatusHandler(h StatusHandler) { r.statusHandler = h }

// HandlePDU routes a received byte sequence to data or control processing
// based on its leading D/C bit.
func (r *RxAM) HandlePDU(pdu []byte) {
	if len(pdu) == 0 {
		r.drop("empty")
		return
	}
	if pdu[0]>>7 == 0 {
		s, err := UnpackStatus(r.snSize, pdu)
		if err != nil {
			r.drop("malformed_status")
			return
		}
		if r.statusHandler != nil {
			r.statusHandler.ApplyStatus(s)
		}
		return
	}
	r.handleData(pdu)
}

func (r *RxAM) handleData(pdu []byte) {
	hdr, n, err := UnpackAM(r.snSize, pdu)
	if err != nil {
		r.drop("malformed")
		return
	}
	payload := pdu[n:]
	mod := r.snSize.Modulus()
	window := r.snSize.WindowSize()

	if !inWindow(hdr.SN, r.rxNext, window, mod) {
		r.drop("out_of_window")
		return
	}

	if hdr.Poll && !r.statusProhibit {
		r.statusRequired = true
	}

	if hdr.SI == SIFull {
		out := buffer.NewChain()
		out.Append(buffer.NewSlice(buffer.WrapBuffer(fullSDU(payload)), 0, len(payload)))
		r.notifier.OnNewSDU(out)
		delete(r.reassembly, hdr.SN)
	} else {
		a, ok := r.reassembly[hdr.SN]
		if !ok {
			a = newSDUAssembly()
			r.reassembly[hdr.SN] = a
		}
		a.add(hdr.SO, payload, hdr.SI)
		if a.complete() {
			data := a.assemble()
			out := buffer.NewChain()
			out.Append(buffer.NewSlice(buffer.WrapBuffer(data), 0, len(data)))
			r.notifier.OnNewSDU(out)
			delete(r.reassembly, hdr.SN)
		}
	}

	if modGreater(hdr.SN+1, r.rxNextHighest, mod) {
		r.rxNextHighest = (hdr.SN + 1) % mod
	}
	r.advanceRxNext()
	r.maybeStartReassembly()
}

// advanceRxNext moves RX_Next forward over every SN that has already been
// fully delivered (no pending reassembly entry and not the next-awaited
// gap), matching TS 38.322's receive-window advance on in-order delivery.
func (r *RxAM) advanceRxNext() {
	mod := r.snSize.Modulus()
	for r.rxNext != r.rxNextHighest {
		if _, pending := r.reassembly[r.rxNext]; pending {
			break
		}
		r.rxNext = (r.rxNext + 1) % mod
	}
	if modGreater(r.rxNext, r.rxHighestStatus, mod) {
		r.rxHighestStatus = r.rxNext
	}
}

func (r *RxAM) drop(reason string) {
	if r.rlcMetrics != nil {
		r.rlcMetrics.RecordDroppedPDU("am", reason)
	}
	r.logger.Log(r.bearer, logging.Entry{Level: logging.LevelWarn, Category: "rlc.am", Bearer: r.bearer, Message: "dropped malformed/out-of-window AM PDU"})
}

func (r *RxAM) maybeStartReassembly() {
	if r.reassemblyRunning {
		return
	}
	mod := r.snSize.Modulus()
	nextPlus1 := (r.rxNext + 1) % mod
	if modGreater(r.rxNextHighest, nextPlus1, mod) {
		r.startReassemblyTimer()
		return
	}
	if r.rxNextHighest == nextPlus1 {
		if a, ok := r.reassembly[r.rxNext]; ok && !a.complete() {
			r.startReassemblyTimer()
		}
	}
}

func (r *RxAM) startReassemblyTimer() {
	r.reassemblyRunning = true
	r.reassemblyTimer = time.AfterFunc(r.tReassembly, func() {
		if r.exec != nil {
			_ = r.exec.Submit(r.onReassemblyExpiry)
			return
		}
		r.onReassemblyExpiry()
	})
}

// onReassemblyExpiry implements spec 4.5's "on t_Reassembly expiry, advance
// RX_Highest_Status to RX_Next_Highest." Any SDU still incomplete at expiry
// is reported as an explicit NACK (with a byte-range SO for a partially
// received one) rather than blocking the ACK boundary from advancing.
func (r *RxAM) onReassemblyExpiry() {
	r.reassemblyRunning = false
	r.rxHighestStatus = r.rxNextHighest
	r.statusRequired = true
	r.maybeStartReassembly()
}

// PendingStatus implements StatusProvider: returns the current status
// report if one is required and not suppressed by t_StatusProhibit,
// restarting the prohibit timer once handed out (spec 4.5).
func (r *RxAM) PendingStatus() (StatusPDU, bool) {
	if !r.statusRequired || r.statusProhibit {
		return StatusPDU{}, false
	}
	s := r.buildStatus()
	r.statusRequired = false
	r.startStatusProhibit()
	return s, true
}

func (r *RxAM) buildStatus() StatusPDU {
	s := StatusPDU{ACKSN: r.rxHighestStatus}
	mod := r.snSize.Modulus()
	var rangeStart uint32
	inRange := false
	flushRange := func(end uint32) {
		if inRange {
			s.NACKs = append(s.NACKs, NACK{SN: rangeStart, HasRange: rangeStart != end, RangeEnd: end})
			inRange = false
		}
	}
	for sn := r.rxNext; sn != r.rxHighestStatus; sn = (sn + 1) % mod {
		a, ok := r.reassembly[sn]
		switch {
		case !ok:
			if !inRange {
				rangeStart = sn
				inRange = true
			}
		case ok && !a.complete():
			flushRange((sn + mod - 1) % mod)
			gaps := a.missingRanges()
			if len(gaps) == 0 {
				s.NACKs = append(s.NACKs, NACK{SN: sn})
				break
			}
			for _, g := range gaps {
				s.NACKs = append(s.NACKs, NACK{SN: sn, HasSO: true, SOStart: uint16(g.start), SOEnd: uint16(g.end)})
			}
		default:
			flushRange((sn + mod - 1) % mod)
		}
	}
	flushRange((r.rxHighestStatus + mod - 1) % mod)
	return s
}

func (r *RxAM) startStatusProhibit() {
	r.statusProhibit = true
	r.statusProhibitTimer = time.AfterFunc(r.tStatusProhibit, func() {
		if r.exec != nil {
			_ = r.exec.Submit(func() { r.statusProhibit = false })
			return
		}
		r.statusProhibit = false
	})
}
