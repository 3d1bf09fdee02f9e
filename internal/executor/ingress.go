package executor

import "sync"

// chunkSize is the number of tasks per node in the chunked ingress queue.
// Matches the order of magnitude of the teacher's own chunkSize
// (github.com/joeycumines/go-eventloop/ingress.go): enough for cache
// locality and amortized allocation without being wastefully large for a
// per-slot indication burst.
const chunkSize = 64

// Task is a unit of deferred work posted to an executor.
type Task func()

var chunkPool = sync.Pool{New: func() any { return &chunk{} }}

type chunk struct {
	tasks   [chunkSize]Task
	next    *chunk
	readPos int
	pos     int
}

func newChunk() *chunk {
	c := chunkPool.Get().(*chunk)
	c.pos, c.readPos, c.next = 0, 0, nil
	return c
}

func returnChunk(c *chunk) {
	for i := 0; i < c.pos; i++ {
		c.tasks[i] = nil
	}
	c.pos, c.readPos, c.next = 0, 0, nil
	chunkPool.Put(c)
}

// ingress is a chunked linked-list MPSC task queue: push is safe from any
// goroutine under the queue's own mutex; drainAll is only called from the
// executor's single consuming goroutine. Grounded on the
// teacher's ChunkedIngress, generalized with the same "fixed array node +
// pool recycling" shape.
type ingress struct {
	mu         sync.Mutex
	head, tail *chunk
	length     int
}

func (q *ingress) push(task Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.tail == nil {
		q.tail = newChunk()
		q.head = q.tail
	}
	if q.tail.pos == chunkSize {
		nt := newChunk()
		q.tail.next = nt
		q.tail = nt
	}
	q.tail.tasks[q.tail.pos] = task
	q.tail.pos++
	q.length++
}

// drainAll removes and returns every queued task, in submission order,
// leaving the queue empty. Called once per slot by the owning executor
// before the slot decision runs, matching spec section 2's "these enqueue
// deferred work but never do heavy computation inline" - the drain itself
// is O(pending tasks), and each task executes synchronously thereafter.
func (q *ingress) drainAll() []Task {
	q.mu.Lock()
	head, length := q.head, q.length
	q.head, q.tail, q.length = nil, nil, 0
	q.mu.Unlock()

	if length == 0 {
		return nil
	}
	out := make([]Task, 0, length)
	for c := head; c != nil; {
		for i := c.readPos; i < c.pos; i++ {
			out = append(out, c.tasks[i])
		}
		next := c.next
		returnChunk(c)
		c = next
	}
	return out
}

func (q *ingress) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.length
}
