// Package buffer implements the zero-copy scatter-gather byte buffer
// primitives that cross the MAC/RLC/PDCP boundary (spec section 3).
//
// The design is grounded on the teacher's ChunkedIngress
// (github.com/joeycumines/go-eventloop/ingress.go): fixed-size backing
// arrays recycled through a sync.Pool, generalized here from "a queue of
// task closures" to "a queue of byte segments" joined without copying.
package buffer

import "sync"

// segmentSize is the capacity of one pooled backing array. Matches the
// order of magnitude of the teacher's chunkSize (128 entries ~ 1KB); sized
// here for typical RLC SDU/segment granularity.
const segmentSize = 1500

var segmentPool = sync.Pool{
	New: func() any {
		b := make([]byte, segmentSize)
		return &b
	},
}

// Buffer exclusively owns a heap-allocated byte segment. It is not safe for
// concurrent use; ownership transfers when a Buffer is sliced into a Slice.
type Buffer struct {
	data []byte
	pool bool // true if data came from segmentPool and must be returned on Release
}

// NewBuffer allocates a Buffer with capacity at least size, pooling the
// backing array when size fits within segmentSize.
func NewBuffer(size int) *Buffer {
	if size <= segmentSize {
		p := segmentPool.Get().(*[]byte)
		return &Buffer{data: (*p)[:size], pool: true}
	}
	return &Buffer{data: make([]byte, size)}
}

// WrapBuffer constructs a Buffer over an existing slice without copying or
// pooling it; Release is then a no-op. Useful for data received from the
// PHY/PDCP boundary that already owns its own allocation.
func WrapBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the full owned byte range.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the number of owned bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Release returns the backing array to the pool if it came from one. After
// Release, any Slice still referencing this Buffer's data is invalid; the
// caller (exactly one owner at a time, per spec's single-writer/reader
// contract) is responsible for not releasing a Buffer a Slice still views.
func (b *Buffer) Release() {
	if b.pool && cap(b.data) == segmentSize {
		full := b.data[:segmentSize]
		segmentPool.Put(&full)
		b.pool = false
	}
	b.data = nil
}

// Slice is a shared, immutable view over a sub-range of a Buffer's bytes.
// Multiple Slices may reference the same Buffer concurrently for reading.
type Slice struct {
	owner *Buffer
	data  []byte
}

// NewSlice returns a Slice over owner.Bytes()[offset:offset+length].
func NewSlice(owner *Buffer, offset, length int) Slice {
	return Slice{owner: owner, data: owner.Bytes()[offset : offset+length]}
}

// Bytes returns the immutable byte range viewed by this Slice.
func (s Slice) Bytes() []byte { return s.data }

// Len returns the number of bytes viewed.
func (s Slice) Len() int { return len(s.data) }
