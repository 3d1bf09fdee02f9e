package rlc

import (
	"time"

	"github.com/open-ran-go/gnb-mac-rlc/internal/buffer"
	"github.com/open-ran-go/gnb-mac-rlc/internal/executor"
	"github.com/open-ran-go/gnb-mac-rlc/internal/logging"
	"github.com/open-ran-go/gnb-mac-rlc/internal/metrics"
)

// umSDU is one queued or in-flight SDU on the UM TX path.
type umSDU struct {
	chain       *buffer.Chain
	pdcpSN      uint32
	arrival     time.Time
	transmitted bool // on_transmitted_sdu already called for this SDU
}

// TxUM is the Unacknowledged Mode TX entity (spec section 4.4), grounded
// on original_source/lib/rlc/rlc_tx_um_entity.{h,cpp}.
type TxUM struct {
	snSize SNSize
	txNext uint32

	queue      []*umSDU
	inProgress *umSDU
	segOffset  int

	notify  TxNotifier
	metrics *metrics.RLC
	bearer  string
	state   *deferredBufferState

	suppressed bool
}

// NewTxUM constructs a UM TX entity with the given SN size.
func NewTxUM(snSize SNSize, exec *executor.CellExecutor, bufNotify BufferStateNotifier, txNotify TxNotifier, m *metrics.RLC, bearer string) *TxUM {
	if txNotify == nil {
		txNotify = noopTxNotifier{}
	}
	t := &TxUM{snSize: snSize, notify: txNotify, metrics: m, bearer: bearer}
	t.state = newDeferredBufferState(exec, bufNotify, t.bufferStateBytes)
	return t
}

// HandleSDU timestamps and enqueues sdu, matching spec "handle_sdu(sdu,
// pdcp_sn) timestamps the SDU on arrival and enqueues it".
func (t *TxUM) HandleSDU(sdu *buffer.Chain, pdcpSN uint32) {
	t.queue = append(t.queue, &umSDU{chain: sdu, pdcpSN: pdcpSN, arrival: time.Now()})
	t.arm()
}

// PullPDU implements spec 4.4's pull_pdu state machine. Returns nil if
// grant is too small to carry even a minimal header, or if there is
// nothing to send.
func (t *TxUM) PullPDU(grant int) *buffer.Chain {
	if t.inProgress == nil {
		if len(t.queue) == 0 {
			return nil
		}
		t.inProgress = t.queue[0]
		t.queue = t.queue[1:]
		t.segOffset = 0
	}
	sdu := t.inProgress
	remaining := sdu.chain.Len() - t.segOffset

	var si SI
	var headLen int
	if t.segOffset == 0 {
		if remaining <= grant-FullHeaderLen() {
			si = SIFull
			headLen = FullHeaderLen()
		} else {
			si = SIFirst
			headLen = headerLen(ModeUM, t.snSize, false)
		}
	} else {
		headLen = headerLen(ModeUM, t.snSize, true)
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
	hdr := Header{SI: si, SN: t.txNext, SNSize: t.snSize}
	if si == SIMiddle || si == SILast {
		hdr.SO = uint16(t.segOffset)
	}
	packed := PackUM(hdr)

	out := buffer.NewChain()
	out.Append(buffer.NewSlice(buffer.WrapBuffer(packed), 0, len(packed)))
	for _, s := range payload.Slices() {
		out.Append(s)
	}

	if !sdu.transmitted {
		sdu.transmitted = true
		t.notify.OnTransmittedSDU(sdu.pdcpSN, t.bufferStateBytes())
	}

	if si == SIFull || si == SILast {
		t.txNext = (t.txNext + 1) % t.snSize.Modulus()
		t.inProgress = nil
		t.segOffset = 0
	} else {
		t.segOffset += n
	}
	t.arm()
	return out
}

// GetBufferState returns the total queued bytes: every queued SDU's bytes
// plus a full header, plus the in-progress SDU's remaining bytes plus a
// non-first header, per spec 4.4.
func (t *TxUM) GetBufferState() (bytes uint32, holArrival time.Time) {
	return t.bufferStateBytes(), t.holArrival()
}

func (t *TxUM) bufferStateBytes() uint32 {
	n := uint32(0)
	for _, s := range t.queue {
		n += uint32(s.chain.Len() + FullHeaderLen())
	}
	if t.inProgress != nil {
		remaining := t.inProgress.chain.Len() - t.segOffset
		n += uint32(remaining + headerLen(ModeUM, t.snSize, true))
	}
	return n
}

func (t *TxUM) holArrival() time.Time {
	if t.inProgress != nil {
		return t.inProgress.arrival
	}
	if len(t.queue) > 0 {
		return t.queue[0].arrival
	}
	return time.Time{}
}

// arm schedules a deferred buffer-state notification, applying spec 4.4's
// "very large buffer" suppression: once bufferStateVeryLargeBytes is
// crossed, further arms are skipped until occupancy falls back below one
// MAC PDU's worth (taken as segmentSize-equivalent, 1500 bytes).
func (t *TxUM) arm() {
	bytes := t.bufferStateBytes()
	const onePDUWorth = 1500
	if t.suppressed {
		if bytes < onePDUWorth {
			t.suppressed = false
		} else {
			return
		}
	}
	if bytes >= bufferStateVeryLargeBytes {
		t.suppressed = true
		return
	}
	t.state.arm()
}

// RxUM is the Unacknowledged Mode RX entity (spec section 4.4), grounded
// on the same source family (no standalone rlc_rx_um_entity.cpp ships in
// the retrieval pack; semantics follow the pack's rlc_um_pdu.h framing and
// TS 38.322 section 5.2.2 as described in spec section 4.4).
type RxUM struct {
	snSize     SNSize
	rxNextReassembly  uint32
	rxTimerTrigger    uint32
	rxNextHighest     uint32
	reassembly        map[uint32]*sduAssembly

	notifier DataNotifier
	rlcMetrics *metrics.RLC
	logger   *logging.WarnLimiter
	bearer   uint8

	exec      *executor.UEExecutor
	tReassembly time.Duration
	timer     *time.Timer
	timerRunning bool
}

// NewRxUM constructs a UM RX entity.
func NewRxUM(snSize SNSize, exec *executor.UEExecutor, notifier DataNotifier, m *metrics.RLC, logger logging.Logger, bearer uint8) *RxUM {
	if notifier == nil {
		notifier = noopDataNotifier{}
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &RxUM{
		snSize:      snSize,
		reassembly:  make(map[uint32]*sduAssembly),
		notifier:    notifier,
		rlcMetrics:  m,
		logger:      logging.NewWarnLimiter(logger, time.Second),
		bearer:      bearer,
		exec:        exec,
		tReassembly: defaultTReassembly,
	}
}

// HandlePDU parses and processes one received UM PDU.
func (r *RxUM) HandlePDU(pdu []byte) {
	hdr, n, err := UnpackUM(r.snSize, pdu)
	if err != nil {
		r.drop("malformed")
		return
	}
	payload := pdu[n:]

	if hdr.SI == SIFull {
		out := buffer.NewChain()
		out.Append(buffer.NewSlice(buffer.WrapBuffer(fullSDU(payload)), 0, len(payload)))
		r.notifier.OnNewSDU(out)
		r.advanceHighest(hdr.SN + 1)
		return
	}

	window := r.snSize.WindowSize()
	mod := r.snSize.Modulus()
	if !inWindow(hdr.SN, r.rxNextReassembly, window, mod) {
		r.drop("out_of_window")
		return
	}

	a, ok := r.reassembly[hdr.SN]
	if !ok {
		a = newSDUAssembly()
		r.reassembly[hdr.SN] = a
	}
	a.add(hdr.SO, payload, hdr.SI)

	if a.complete() {
		out := buffer.NewChain()
		data := a.assemble()
		out.Append(buffer.NewSlice(buffer.WrapBuffer(data), 0, len(data)))
		r.notifier.OnNewSDU(out)
		delete(r.reassembly, hdr.SN)
	}

	if modGreater(hdr.SN+1, r.rxNextHighest, mod) {
		r.advanceHighest(hdr.SN + 1)
	}
	r.maybeRestartReassembly()
}

func (r *RxUM) drop(reason string) {
	if r.rlcMetrics != nil {
		r.rlcMetrics.RecordDroppedPDU("um", reason)
	}
	r.logger.Log(r.bearer, logging.Entry{Level: logging.LevelWarn, Category: "rlc.um", Bearer: r.bearer, Message: "dropped malformed/out-of-window UM PDU"})
}

func (r *RxUM) advanceHighest(sn uint32) {
	mod := r.snSize.Modulus()
	if modGreater(sn, r.rxNextHighest, mod) {
		r.rxNextHighest = sn % mod
	}
	r.maybeRestartReassembly()
}

// maybeRestartReassembly implements spec 4.4's restart condition: "whenever
// RX_Next_Highest > RX_Next_Reassembly + 1 after progress, or when
// RX_Next_Highest == RX_Next_Reassembly + 1 and at least one byte is still
// missing before the last received byte of that SDU."
func (r *RxUM) maybeRestartReassembly() {
	mod := r.snSize.Modulus()
	nextPlus1 := (r.rxNextReassembly + 1) % mod
	if r.timerRunning {
		return
	}
	if modGreater(r.rxNextHighest, nextPlus1, mod) {
		r.startReassemblyTimer()
		return
	}
	if r.rxNextHighest == nextPlus1 {
		if a, ok := r.reassembly[r.rxNextReassembly]; ok && !a.complete() {
			r.startReassemblyTimer()
		}
	}
}

func (r *RxUM) startReassemblyTimer() {
	r.timerRunning = true
	r.rxTimerTrigger = r.rxNextHighest
	r.timer = time.AfterFunc(r.tReassembly, func() {
		if r.exec != nil {
			_ = r.exec.Submit(r.onReassemblyExpiry)
			return
		}
		r.onReassemblyExpiry()
	})
}

// onReassemblyExpiry advances RX_Next_Reassembly, starting from
// RX_Timer_Trigger (RX_Next_Highest when the timer was started), past every
// fully-received SN and discards partially-received SDUs in front of the
// new boundary, per spec 4.4.
func (r *RxUM) onReassemblyExpiry() {
	r.timerRunning = false
	mod := r.snSize.Modulus()

	newBoundary := r.rxTimerTrigger
	for newBoundary != r.rxNextHighest {
		if _, ok := r.reassembly[newBoundary]; ok {
			break
		}
		newBoundary = (newBoundary + 1) % mod
	}
	for sn := r.rxNextReassembly; sn != newBoundary; sn = (sn + 1) % mod {
		if _, ok := r.reassembly[sn]; !ok {
			continue
		}
		delete(r.reassembly, sn)
		if r.rlcMetrics != nil {
			r.rlcMetrics.RecordDroppedPDU("um", "reassembly_timeout")
		}
	}
	r.rxNextReassembly = newBoundary
	r.maybeRestartReassembly()
}

func inWindow(sn, base, window, mod uint32) bool {
	diff := (sn + mod - base) % mod
	return diff < window
}

// modGreater reports whether a is circularly strictly greater than b
// modulo mod, using a half-modulus window.
func modGreater(a, b, mod uint32) bool {
	diff := (a + mod - b) % mod
	return diff != 0 && diff < mod/2
}

func modGreaterOrEqual(a, b, mod uint32) bool {
	return a == b || modGreater(a, b, mod)
}
