package rlc

import (
	"github.com/open-ran-go/gnb-mac-rlc/internal/buffer"
	"github.com/open-ran-go/gnb-mac-rlc/internal/executor"
	"github.com/open-ran-go/gnb-mac-rlc/internal/metrics"
)

// TxTM is the Transparent Mode TX entity (spec section 4.3): memoryless
// framing over an SPSC SDU queue, grounded on
// original_source/lib/rlc/rlc_tx_tm_entity.{h,cpp}.
type TxTM struct {
	sdus    []*buffer.Chain
	metrics *metrics.RLC
	bearer  string
	state   *deferredBufferState
}

// NewTxTM constructs a TM TX entity. exec may be nil (synchronous buffer-
// state notification, used by tests).
func NewTxTM(exec *executor.CellExecutor, notify BufferStateNotifier, m *metrics.RLC, bearer string) *TxTM {
	t := &TxTM{metrics: m, bearer: bearer}
	t.state = newDeferredBufferState(exec, notify, t.bufferStateBytes)
	return t
}

// HandleSDU enqueues sdu for transmission.
func (t *TxTM) HandleSDU(sdu *buffer.Chain) {
	t.sdus = append(t.sdus, sdu)
	t.state.arm()
}

// PullPDU dequeues the next SDU: if it fits in grant bytes it is returned
// verbatim; otherwise it is dropped (TM cannot segment) and a small-alloc
// metric is incremented, returning nil. Returns nil if the queue is empty.
func (t *TxTM) PullPDU(grant int) *buffer.Chain {
	if len(t.sdus) == 0 {
		return nil
	}
	sdu := t.sdus[0]
	t.sdus = t.sdus[1:]
	t.state.arm()
	if sdu.Len() > grant {
		if t.metrics != nil {
			t.metrics.RecordDroppedPDU("tm", "small_alloc")
		}
		return nil
	}
	return sdu
}

// Discard is unsupported in TM; spec: "Discard is not supported and raises
// a discard-failure metric."
func (t *TxTM) Discard(uint32) {
	if t.metrics != nil {
		t.metrics.RecordDiscardFailure()
	}
}

// BufferState returns the total bytes currently queued.
func (t *TxTM) BufferState() uint32 { return t.bufferStateBytes() }

func (t *TxTM) bufferStateBytes() uint32 {
	n := uint32(0)
	for _, s := range t.sdus {
		n += uint32(s.Len())
	}
	return n
}

// RxTM is the Transparent Mode RX entity: forwards every PDU to the upper
// data notifier unchanged, no framing.
type RxTM struct {
	notifier DataNotifier
}

// NewRxTM constructs a TM RX entity.
func NewRxTM(notifier DataNotifier) *RxTM {
	if notifier == nil {
		notifier = noopDataNotifier{}
	}
	return &RxTM{notifier: notifier}
}

// HandlePDU forwards pdu to the upper layer unchanged.
func (r *RxTM) HandlePDU(pdu *buffer.Chain) {
	r.notifier.OnNewSDU(pdu)
}
