package executor

import (
	"fmt"
	"sync/atomic"
)

// State is the lifecycle state of a CellExecutor or UEExecutor, stored as
// an int32 for lock-free reads from any goroutine (callers decide whether
// to still enqueue, independent of whether the owning goroutine has
// observed termination yet). Grounded on the teacher's FastState
// (github.com/joeycumines/go-eventloop/state.go), trimmed to the three
// states this executor actually distinguishes.
type State int32

const (
	// StateRunning accepts Submit calls and runs drained tasks.
	StateRunning State = iota
	// StateDraining still runs already-queued tasks but rejects new ones.
	StateDraining
	// StateTerminated no longer drains or accepts tasks.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type fastState struct {
	v atomic.Int32
}

func (f *fastState) load() State { return State(f.v.Load()) }

func (f *fastState) store(s State) { f.v.Store(int32(s)) }

// compareAndSwap transitions from `from` to `to`, returning whether it
// happened.
func (f *fastState) compareAndSwap(from, to State) bool {
	return f.v.CompareAndSwap(int32(from), int32(to))
}
