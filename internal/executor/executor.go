// Package executor implements the cooperative, single-threaded task
// owners of spec section 5: one CellExecutor per cell serializes PDCCH/
// PDSCH/PUSCH scheduling decisions and grid/HARQ state, and one
// UEExecutor per UE serializes that UE's RLC entities and configuration
// updates. Neither type spins up a goroutine of its own - the caller's
// discipline of "only ever call RunPending/the slot decision from one
// goroutine at a time" is what makes the owned state single-threaded,
// exactly as the teacher's own Loop is driven by whichever goroutine
// calls Run, while Submit remains safe from any goroutine (spec's "lock-
// free MPSC queue" contract, implemented here as a mutex-guarded chunked
// list in ingress.go, the same choice the teacher's ChunkedIngress makes
// over a true lock-free ring).
package executor

import "errors"

// ErrTerminated is returned by Submit once the executor has been
// terminated.
var ErrTerminated = errors.New("executor: terminated")

// base is the shared implementation behind CellExecutor and UEExecutor;
// kept unexported so the two call-site types stay distinct and callers
// cannot accidentally hand a UE executor to an API expecting a cell
// executor, or vice versa.
type base struct {
	state fastState
	q     ingress
}

// Submit enqueues task to run on the next RunPending call. Safe to call
// from any goroutine, including the executor's own. Returns ErrTerminated
// once BeginDrain or Terminate has been called.
func (b *base) submit(task Task) error {
	if b.state.load() != StateRunning {
		return ErrTerminated
	}
	b.q.push(task)
	return nil
}

// runPending drains and runs every task queued since the last call, in
// submission order, on the calling goroutine. Tasks submitted by a task
// that is itself running are picked up by the *next* RunPending call, not
// the current one - this bounds a single RunPending call's duration to
// the queue depth observed at its start, matching spec section 2's "never
// do heavy computation inline" expectation for the drain step.
func (b *base) runPending() int {
	tasks := b.q.drainAll()
	for _, t := range tasks {
		t()
	}
	return len(tasks)
}

// beginDrain stops new Submit calls from being accepted while still
// allowing already-queued tasks to run via RunPending, for graceful
// shutdown.
func (b *base) beginDrain() {
	b.state.compareAndSwap(StateRunning, StateDraining)
}

// terminate runs any remaining queued tasks once more, then marks the
// executor terminated; further Submit calls fail with ErrTerminated.
func (b *base) terminate() {
	b.beginDrain()
	b.runPending()
	b.state.store(StateTerminated)
}

func (b *base) pending() int { return b.q.len() }

// CellExecutor owns one cell's scheduling state: the resource grid, HARQ
// manager, PDCCH/PUCCH allocators and per-slot sched_result accumulator.
// PHY indications (RACH, CRC, UCI, slot errors) and upper-MAC updates
// (DL buffer occupancy, BSR) are Submitted from whatever goroutine
// receives them; the cell's own slot_indication call drains them via
// RunPending immediately before computing the slot's grants, so the
// scheduling decision itself always observes a consistent, fully-applied
// view of the cell's state.
type CellExecutor struct{ base }

// NewCellExecutor constructs an idle, running CellExecutor.
func NewCellExecutor() *CellExecutor { return &CellExecutor{} }

// Submit enqueues task to run on the next RunPending call.
func (e *CellExecutor) Submit(task Task) error { return e.submit(task) }

// RunPending drains and executes every queued task.
func (e *CellExecutor) RunPending() int { return e.runPending() }

// BeginDrain stops accepting new work while letting queued work finish.
func (e *CellExecutor) BeginDrain() { e.beginDrain() }

// Terminate runs any remaining tasks once more, then stops accepting work.
func (e *CellExecutor) Terminate() { e.terminate() }

// State reports the executor's current lifecycle state.
func (e *CellExecutor) State() State { return e.state.load() }

// Pending reports the number of tasks currently queued.
func (e *CellExecutor) Pending() int { return e.pending() }

// UEExecutor owns one UE's RLC entities (TM/UM/AM, one per bearer),
// timers, and configuration snapshot. Distinct from CellExecutor only in
// the state it is documented to own - the underlying primitive is
// identical, matching the symmetry the spec draws between the two
// executor kinds in section 5.
type UEExecutor struct{ base }

// NewUEExecutor constructs an idle, running UEExecutor.
func NewUEExecutor() *UEExecutor { return &UEExecutor{} }

// Submit enqueues task to run on the next RunPending call.
func (e *UEExecutor) Submit(task Task) error { return e.submit(task) }

// RunPending drains and executes every queued task.
func (e *UEExecutor) RunPending() int { return e.runPending() }

// BeginDrain stops accepting new work while letting queued work finish.
func (e *UEExecutor) BeginDrain() { e.beginDrain() }

// Terminate runs any remaining tasks once more, then stops accepting work.
func (e *UEExecutor) Terminate() { e.terminate() }

// State reports the executor's current lifecycle state.
func (e *UEExecutor) State() State { return e.state.load() }

// Pending reports the number of tasks currently queued.
func (e *UEExecutor) Pending() int { return e.pending() }
