package slot

// Wheel is a fixed-size ring of per-slot buckets, one slot's worth of
// deadline callbacks each, grounded on the teacher's ringBuffer[E]
// (github.com/joeycumines/go-catrate/ring.go) mask-and-cursor idiom,
// generalized from "a sorted window of timestamped samples" to "a
// fixed-horizon schedule of due-by-slot-count items".
//
// It is a standalone "cooperative timer wheel" (spec section 2) rather
// than a heap: every deadline is a bounded slot offset, so a fixed ring is
// simpler and allocation-free once warmed up. The HARQ repositories keep
// their own ack-timeout ring of handles, and the RLC entities' timers use
// time.AfterFunc; neither is built on Wheel.
//
// Wheel is not safe for concurrent use; an owner accesses it only from
// its executor goroutine (spec section 5).
type Wheel[T any] struct {
	buckets [][]T
	size    uint32
}

// NewWheel constructs a Wheel with size buckets. size must be > 0 and
// should satisfy "slots_per_system_frame mod size == 0" per spec section 3
// so indices never alias across a hyper-frame wrap.
func NewWheel[T any](size uint32) *Wheel[T] {
	if size == 0 {
		panic("slot: wheel size must be > 0")
	}
	return &Wheel[T]{buckets: make([][]T, size), size: size}
}

// Size returns the configured ring size (K).
func (w *Wheel[T]) Size() uint32 { return w.size }

// index maps an absolute slot count to its bucket.
func (w *Wheel[T]) index(count uint32) uint32 { return count % w.size }

// Schedule appends item to the bucket for the given absolute slot count.
// The caller must never schedule more than Size() slots ahead of the most
// recent Advance call (spec section 4.1's overflow-free guarantee).
func (w *Wheel[T]) Schedule(count uint32, item T) {
	i := w.index(count)
	w.buckets[i] = append(w.buckets[i], item)
}

// Advance drains and returns the bucket due at the given absolute slot
// count, clearing it for reuse K slots later.
func (w *Wheel[T]) Advance(count uint32) []T {
	i := w.index(count)
	due := w.buckets[i]
	w.buckets[i] = nil
	return due
}

// Peek returns the bucket due at count without draining it.
func (w *Wheel[T]) Peek(count uint32) []T {
	return w.buckets[w.index(count)]
}

// RingSizeAtLeast returns the smallest K >= min such that frameSlots mod K
// == 0, matching spec section 3's get_allocator_ring_size_gt_min. Falls
// back to frameSlots itself if no smaller divisor qualifies (frameSlots
// always divides itself).
func RingSizeAtLeast(frameSlots, min uint32) uint32 {
	if min == 0 {
		min = 1
	}
	for k := min; k <= frameSlots; k++ {
		if frameSlots%k == 0 {
			return k
		}
	}
	return frameSlots
}
