package buffer

import "io"

// Chain is an ordered, append-only sequence of Slices appended without
// copying. It is logically contiguous over [0, Len()): iterating a Chain
// yields bytes in insertion order (spec section 3 invariant). Chains are
// the type crossing MAC<->RLC<->PDCP.
//
// Chain is not safe for concurrent use; it follows the same single-writer
// discipline as the rest of this package.
type Chain struct {
	slices []Slice
	length int
}

// NewChain returns an empty Chain.
func NewChain() *Chain { return &Chain{} }

// Append adds s to the end of the chain without copying its bytes.
func (c *Chain) Append(s Slice) {
	if s.Len() == 0 {
		return
	}
	c.slices = append(c.slices, s)
	c.length += s.Len()
}

// Len returns the total number of bytes across every slice in the chain.
func (c *Chain) Len() int { return c.length }

// Slices returns the underlying slice list; callers must not mutate it.
func (c *Chain) Slices() []Slice { return c.slices }

// CopyTo copies the chain's bytes, in order, into dst, returning the number
// of bytes copied (min(c.Len(), len(dst))).
func (c *Chain) CopyTo(dst []byte) int {
	n := 0
	for _, s := range c.slices {
		if n >= len(dst) {
			break
		}
		k := copy(dst[n:], s.Bytes())
		n += k
	}
	return n
}

// Flatten returns the chain's bytes copied into one contiguous buffer. It
// is provided for callers (e.g. PDU header parsers) that need random
// access; the hot segmentation/reassembly paths avoid it where possible.
func (c *Chain) Flatten() []byte {
	out := make([]byte, c.length)
	c.CopyTo(out)
	return out
}

// WriteTo implements io.WriterTo, handing each slice to w without an
// intermediate copy.
func (c *Chain) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, s := range c.slices {
		n, err := w.Write(s.Bytes())
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Sub returns a new Chain viewing the byte range [offset, offset+length) of
// c, copying only Slice headers (not bytes).
func (c *Chain) Sub(offset, length int) *Chain {
	out := NewChain()
	if length <= 0 {
		return out
	}
	pos := 0
	end := offset + length
	for _, s := range c.slices {
		sStart, sEnd := pos, pos+s.Len()
		pos = sEnd
		if sEnd <= offset || sStart >= end {
			continue
		}
		lo := max(0, offset-sStart)
		hi := min(s.Len(), end-sStart)
		out.Append(Slice{owner: s.owner, data: s.data[lo:hi]})
	}
	return out
}
