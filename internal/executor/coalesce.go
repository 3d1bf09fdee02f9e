package executor

import "sync/atomic"

// CoalescingFlag elides redundant deferred tasks: multiple arm attempts
// between drains collapse into a single queued task, matching spec
// section 9's "pending buffer-state-update" behaviour and the RLC TM/UM/AM
// entities' update_mac_buffer_state deferral (section 4.4/4.5) - on any
// SDU enqueue or discard, if the flag was clear it is set and exactly one
// task is deferred; the handler clears the flag before emitting state, so
// a fresh arm racing the handler is never lost.
//
// Grounded on the teacher's FastState atomic state machine
// (github.com/joeycumines/go-eventloop/state.go), narrowed from a full
// multi-state machine to the single compare-and-swap this use case needs.
type CoalescingFlag struct {
	pending atomic.Bool
}

// TryArm sets the flag if it was clear, reporting whether this call armed
// it. Callers should enqueue their deferred task only when TryArm returns
// true - a false result means a task is already queued and will observe
// the latest state when it runs.
func (c *CoalescingFlag) TryArm() bool {
	return c.pending.CompareAndSwap(false, true)
}

// Disarm clears the flag. Called by the deferred task itself, before it
// reads whatever state it is about to report, so a concurrent TryArm
// during its own execution is never silently dropped.
func (c *CoalescingFlag) Disarm() {
	c.pending.Store(false)
}

// Armed reports whether the flag is currently set.
func (c *CoalescingFlag) Armed() bool {
	return c.pending.Load()
}
