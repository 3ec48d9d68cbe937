// Package intervalset implements the interval set abstraction used as the
// sync record and as the basis for set operations against peer records
// (spec §4.1). It is grounded on bee's
// pkg/puller/intervalstore.Intervals — the same "sorted slice of ranges,
// fuse on overlap/touch" algorithm — generalized from uint64 ranges to
// 256-bit Offset ranges and extended with the operations the source lacks:
// inverse, intersection, outerjoin, nth-interior-point lookup, size-bounded
// compaction and probabilistic serialization.
package intervalset

import (
	"sort"

	"github.com/goomario/arweave/pkg/offset"
)

// Interval is a half-open range [Start, End) with End > Start >= 0. End may
// be infinite only as the topmost interval produced by Inverse.
type Interval struct {
	Start offset.Offset
	End   offset.Offset
	// EndInf marks "+infinity" as used by Inverse's topmost interval; when
	// true, End is ignored for comparisons.
	EndInf bool
}

func finite(start, end offset.Offset) Interval {
	return Interval{Start: start, End: end}
}

func infinite(start offset.Offset) Interval {
	return Interval{Start: start, EndInf: true}
}

func (iv Interval) less(o Interval) bool {
	if iv.EndInf != o.EndInf {
		return o.EndInf
	}
	if iv.EndInf {
		return iv.Start.Less(o.Start)
	}
	return iv.End.Less(o.End)
}

func (iv Interval) length() uint64 {
	if iv.EndInf {
		panic("intervalset: length of infinite interval")
	}
	return offset.Distance(iv.End, iv.Start)
}

// Set is a set of disjoint, non-touching half-open intervals, stored sorted
// ascending by End. It is not safe for concurrent use; callers serialize
// access the way the sync engine actor does for its SyncRecord.
type Set struct {
	ivs []Interval
}

// New returns an empty Set.
func New() *Set {
	return &Set{}
}

// Count returns the number of intervals in the set.
func (s *Set) Count() int { return len(s.ivs) }

// IsEmpty reports whether the set has no intervals.
func (s *Set) IsEmpty() bool { return len(s.ivs) == 0 }

// Clone returns an independent copy, so callers can Cut or mutate it
// without disturbing the original (e.g. sync-one cutting a peer's record
// to the local weave_size before computing outerjoin).
func (s *Set) Clone() *Set {
	out := &Set{ivs: make([]Interval, len(s.ivs))}
	copy(out.ivs, s.ivs)
	return out
}

// Intervals returns the intervals in ascending End order. The slice must
// not be mutated by the caller.
func (s *Set) Intervals() []Interval { return s.ivs }

func (s *Set) insertSorted(iv Interval) {
	i := sort.Search(len(s.ivs), func(i int) bool { return iv.less(s.ivs[i]) })
	s.ivs = append(s.ivs, Interval{})
	copy(s.ivs[i+1:], s.ivs[i:])
	s.ivs[i] = iv
}

// Add inserts [start, end) into the set, fusing any existing interval that
// overlaps or touches it (spec: "Touching intervals ... MUST be fused").
func (s *Set) Add(end, start offset.Offset) {
	if end.Cmp(start) <= 0 {
		panic("intervalset: Add requires End > Start")
	}
	newStart, newEnd := start, end
	kept := s.ivs[:0:0]
	for _, iv := range s.ivs {
		if touchesOrOverlaps(iv, newStart, newEnd) {
			newStart = offset.Min(newStart, iv.Start)
			newEnd = offset.Max(newEnd, iv.End)
			continue
		}
		kept = append(kept, iv)
	}
	s.ivs = kept
	s.insertSorted(finite(newStart, newEnd))
}

// touchesOrOverlaps reports whether iv overlaps or touches [start, end).
func touchesOrOverlaps(iv Interval, start, end offset.Offset) bool {
	// Overlap: iv.Start < end && start < iv.End.
	// Touch: iv.End == start or end == iv.Start.
	if iv.Start.Less(end) && start.Less(iv.End) {
		return true
	}
	if iv.End.Equal(start) || end.Equal(iv.Start) {
		return true
	}
	return false
}

// Delete removes [start, end) from the set, splitting any interval that
// only partially overlaps it into up to two residual intervals.
func (s *Set) Delete(end, start offset.Offset) {
	if end.Cmp(start) <= 0 {
		panic("intervalset: Delete requires End > Start")
	}
	var out []Interval
	for _, iv := range s.ivs {
		if !(iv.Start.Less(end) && start.Less(iv.End)) {
			out = append(out, iv)
			continue
		}
		// left residual: (iv.Start, min(start, iv.End))
		lEnd := offset.Min(start, iv.End)
		if lEnd.Cmp(iv.Start) > 0 {
			out = append(out, finite(iv.Start, lEnd))
		}
		// right residual: (max(end, iv.Start), iv.End)
		rStart := offset.Max(end, iv.Start)
		if iv.End.Cmp(rStart) > 0 {
			out = append(out, finite(rStart, iv.End))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	s.ivs = out
}

// Cut removes every interval strictly above c; an interval straddling c is
// replaced by its left part (c, I.Start)... per spec: "replace it with its
// left part (C, I.Start)" meaning the remaining covered range keeps
// I.Start but is truncated to end at C.
func (s *Set) Cut(c offset.Offset) {
	var out []Interval
	for _, iv := range s.ivs {
		if iv.Start.Cmp(c) >= 0 {
			continue // strictly above (or starting exactly at) c: dropped
		}
		if iv.End.Cmp(c) > 0 {
			out = append(out, finite(iv.Start, c))
			continue
		}
		out = append(out, iv)
	}
	s.ivs = out
}

// IsInside reports whether n is covered: left-exclusive, right-inclusive,
// i.e. some interval I has I.Start < n <= I.End.
func (s *Set) IsInside(n offset.Offset) bool {
	for _, iv := range s.ivs {
		if iv.Start.Less(n) && n.Cmp(iv.End) <= 0 {
			return true
		}
	}
	return false
}

// Sum returns the total covered length, sum(End-Start) over all intervals.
func (s *Set) Sum() uint64 {
	var total uint64
	for _, iv := range s.ivs {
		total += iv.length()
	}
	return total
}

// Inverse returns the complement of s over [0, +infinity). Its union with s
// covers the whole non-negative line and its intersection with s is empty.
func (s *Set) Inverse() *Set {
	out := New()
	cursor := offset.Zero
	for _, iv := range s.ivs {
		if cursor.Less(iv.Start) {
			out.ivs = append(out.ivs, finite(cursor, iv.Start))
		}
		cursor = offset.Max(cursor, iv.End)
	}
	out.ivs = append(out.ivs, infinite(cursor))
	return out
}

// Intersection returns the set of maximal subintervals common to both a and
// b, via a coordinated two-pointer walk in ascending End order.
func Intersection(a, b *Set) *Set {
	out := New()
	i, j := 0, 0
	for i < len(a.ivs) && j < len(b.ivs) {
		ai, bj := a.ivs[i], b.ivs[j]
		start := offset.Max(ai.Start, bj.Start)
		end := minEnd(ai, bj)
		if end.Cmp(start) > 0 {
			out.ivs = append(out.ivs, finite(start, end))
		}
		if endLess(ai, bj) {
			i++
		} else {
			j++
		}
	}
	return out
}

func minEnd(a, b Interval) offset.Offset {
	if a.EndInf {
		return b.End
	}
	if b.EndInf {
		return a.End
	}
	return offset.Min(a.End, b.End)
}

func endLess(a, b Interval) bool {
	if a.EndInf {
		return false
	}
	if b.EndInf {
		return true
	}
	return a.End.Cmp(b.End) <= 0
}

// OuterJoin returns the bytes in b that are not in a:
// outerjoin(A, B) := intersection(inverse(A), B).
func OuterJoin(a, b *Set) *Set {
	return Intersection(a.Inverse(), b)
}

// ErrNoSuchPoint is returned by GetIntervalByNthInnerNumber when n is
// outside the covered range.
type noSuchPointError struct{}

func (noSuchPointError) Error() string { return "intervalset: no such point" }

// ErrNoSuchPoint is the sentinel for GetIntervalByNthInnerNumber's failure.
var ErrNoSuchPoint error = noSuchPointError{}

// GetIntervalByNthInnerNumber walks intervals in ascending End order,
// summing their lengths, and returns (Start, Start+n', End) for the first
// interval whose running total exceeds n, where n' is the residual offset
// within that interval. Fails with ErrNoSuchPoint if n >= Sum(s).
func (s *Set) GetIntervalByNthInnerNumber(n uint64) (start, byteAt, end offset.Offset, err error) {
	var running uint64
	for _, iv := range s.ivs {
		l := iv.length()
		if n < running+l {
			residual := n - running
			return iv.Start, iv.Start.Add(residual), iv.End, nil
		}
		running += l
	}
	return offset.Zero, offset.Zero, offset.Zero, ErrNoSuchPoint
}

// TakeLargest returns the interval with the greatest length, and whether
// the set was non-empty.
func (s *Set) TakeLargest() (Interval, bool) {
	if len(s.ivs) == 0 {
		return Interval{}, false
	}
	best := s.ivs[0]
	for _, iv := range s.ivs[1:] {
		if iv.length() > best.length() {
			best = iv
		}
	}
	return best, true
}

// Compact reduces the set to at most Limit intervals by fusing the
// (count-Limit) closest-spaced neighbors: only gaps strictly between two
// existing intervals are eligible (the uncovered region before the first
// interval or after the last has no second neighbor to fuse with, so it is
// never a compaction candidate, even though Inverse would include it).
// Ties are broken by encounter order (ascending Start), which is
// deterministic for a given representation; downstream logic must not rely
// on any particular tie-break per spec open question. Returns the absorbed
// gaps and the new set.
func (s *Set) Compact(limit int) (absorbed []Interval, out *Set) {
	if s.Count() <= limit {
		return nil, s
	}
	gaps := make([]Interval, 0, len(s.ivs)-1)
	for i := 1; i < len(s.ivs); i++ {
		prev, cur := s.ivs[i-1], s.ivs[i]
		gaps = append(gaps, finite(prev.End, cur.Start))
	}
	sort.SliceStable(gaps, func(i, j int) bool {
		return gaps[i].length() < gaps[j].length()
	})

	need := s.Count() - limit
	if need > len(gaps) {
		need = len(gaps)
	}
	out = New()
	out.ivs = append(out.ivs, s.ivs...)
	absorbed = make([]Interval, 0, need)
	for i := 0; i < need; i++ {
		g := gaps[i]
		absorbed = append(absorbed, g)
		out.Add(g.End, g.Start)
	}
	return absorbed, out
}
