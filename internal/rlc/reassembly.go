package rlc

import "sort"

// segment is one received fragment of a segmented SDU, keyed by its byte
// offset into the reassembled SDU.
type segment struct {
	so     uint16
	data   []byte
	isLast bool
}

// sduAssembly accumulates the segments of one SN's SDU until it can be
// assembled without gaps, shared by UM and AM RX (spec 4.4 "insert into an
// ordered segment list; when the list covers [0, total_len) without gaps
// with last_segment present, assemble and deliver upward").
type sduAssembly struct {
	segs       []segment
	totalLen   int // -1 until the last segment has been seen
	firstSeen  bool
}

func newSDUAssembly() *sduAssembly {
	return &sduAssembly{totalLen: -1}
}

// fullSDU returns a copy of a full, unsegmented SDU's payload, used by the
// full_sdu fast path (no reassembly bookkeeping needed).
func fullSDU(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

// add inserts one segment; si is the segment's SI value (first/middle/last)
// and used only to mark whether this fragment ends the SDU.
func (a *sduAssembly) add(so uint16, data []byte, si SI) {
	a.firstSeen = a.firstSeen || so == 0
	seg := segment{so: so, data: append([]byte(nil), data...), isLast: si == SILast}
	if seg.isLast {
		a.totalLen = int(so) + len(data)
	}
	// Replace any exact-duplicate offset (retransmitted segment) instead of
	// double-counting it.
	for i, s := range a.segs {
		if s.so == so {
			a.segs[i] = seg
			return
		}
	}
	a.segs = append(a.segs, seg)
	sort.Slice(a.segs, func(i, j int) bool { return a.segs[i].so < a.segs[j].so })
}

// complete reports whether the accumulated segments cover [0, totalLen)
// without gaps.
func (a *sduAssembly) complete() bool {
	if a.totalLen < 0 || !a.firstSeen {
		return false
	}
	next := 0
	for _, s := range a.segs {
		if int(s.so) != next {
			return false
		}
		next += len(s.data)
	}
	return next == a.totalLen
}

// assemble concatenates the segments in SO order. Caller must have checked
// complete() first.
func (a *sduAssembly) assemble() []byte {
	out := make([]byte, 0, a.totalLen)
	for _, s := range a.segs {
		out = append(out, s.data...)
	}
	return out
}

// highestContiguousByte returns the offset just past the last contiguous run
// of received bytes starting at 0, used by the status-PDU SO_end logic:
// how far into the SDU reception has progressed before the first gap.
func (a *sduAssembly) highestContiguousByte() int {
	next := 0
	for _, s := range a.segs {
		if int(s.so) != next {
			break
		}
		next += len(s.data)
	}
	return next
}

// bytesReceived returns the number of distinct bytes received so far
// (sum of segment lengths), used for buffer-state-independent diagnostics.
func (a *sduAssembly) bytesReceived() int {
	n := 0
	for _, s := range a.segs {
		n += len(s.data)
	}
	return n
}

// byteRange is an inclusive [start,end] byte offset range.
type byteRange struct{ start, end int }

// missingRanges returns every gap in [0, totalLen) not covered by a
// received segment, used to build per-SN SO_start/SO_end NACK entries
// (spec section 4.5's "per-SN SO ranges for partially-received SDUs").
// Returns nil if totalLen is unknown (last segment not yet seen).
func (a *sduAssembly) missingRanges() []byteRange {
	if a.totalLen < 0 {
		return nil
	}
	var gaps []byteRange
	next := 0
	for _, s := range a.segs {
		if int(s.so) > next {
			gaps = append(gaps, byteRange{start: next, end: int(s.so) - 1})
		}
		if end := int(s.so) + len(s.data); end > next {
			next = end
		}
	}
	if next < a.totalLen {
		gaps = append(gaps, byteRange{start: next, end: a.totalLen - 1})
	}
	return gaps
}
