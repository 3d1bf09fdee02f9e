package rlc

import (
	"github.com/open-ran-go/gnb-mac-rlc/internal/buffer"
	"github.com/open-ran-go/gnb-mac-rlc/internal/executor"
)

// DataNotifier receives reassembled/forwarded SDUs on the RX path
// (spec section 6 "on_new_sdu").
type DataNotifier interface {
	OnNewSDU(chain *buffer.Chain)
}

// TxNotifier receives TX-path lifecycle events (spec section 6
// "on_transmitted_sdu" / "on_delivered_sdu").
type TxNotifier interface {
	OnTransmittedSDU(pdcpSN uint32, desiredBufSize uint32)
	OnDeliveredSDU(pdcpSN uint32)
}

// ProtocolNotifier receives AM protocol-failure events (spec section 6
// "on_protocol_failure" / "on_max_retx").
type ProtocolNotifier interface {
	OnProtocolFailure()
	OnMaxRetx()
}

// BufferStateNotifier receives the coalesced MAC buffer-state update
// (spec section 6 "on_buffer_state_update").
type BufferStateNotifier interface {
	OnBufferStateUpdate(bytes uint32)
}

// noop implementations let every entity be constructed with a nil notifier
// during tests without nil-checking every call site.
type noopDataNotifier struct{}

func (noopDataNotifier) OnNewSDU(*buffer.Chain) {}

type noopTxNotifier struct{}

func (noopTxNotifier) OnTransmittedSDU(uint32, uint32) {}
func (noopTxNotifier) OnDeliveredSDU(uint32)           {}

type noopProtocolNotifier struct{}

func (noopProtocolNotifier) OnProtocolFailure() {}
func (noopProtocolNotifier) OnMaxRetx()         {}

type noopBufferStateNotifier struct{}

func (noopBufferStateNotifier) OnBufferStateUpdate(uint32) {}

// deferredBufferState implements the "pending_buffer_state_update"
// coalescing behaviour shared by TM/UM/AM TX entities (spec 4.3): on any
// SDU enqueue or discard, if the flag was clear it is set and a single
// update_mac_buffer_state task is deferred to the pcell executor; the
// handler clears the flag and emits the current buffer state, coalescing
// bursts into at most one notification per executor run.
type deferredBufferState struct {
	flag   executor.CoalescingFlag
	exec   *executor.CellExecutor
	get    func() uint32
	notify BufferStateNotifier
}

func newDeferredBufferState(exec *executor.CellExecutor, notify BufferStateNotifier, get func() uint32) *deferredBufferState {
	if notify == nil {
		notify = noopBufferStateNotifier{}
	}
	return &deferredBufferState{exec: exec, notify: notify, get: get}
}

// arm schedules (at most once per drain) a deferred buffer-state emission.
// If no executor is wired, the update fires synchronously - useful for
// tests that exercise the entity without a running executor.
func (d *deferredBufferState) arm() {
	if d.exec == nil {
		d.notify.OnBufferStateUpdate(d.get())
		return
	}
	if d.flag.TryArm() {
		_ = d.exec.Submit(func() {
			d.flag.Disarm()
			d.notify.OnBufferStateUpdate(d.get())
		})
	}
}
