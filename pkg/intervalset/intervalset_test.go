package intervalset

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goomario/arweave/pkg/offset"
)

func off(v int64) offset.Offset { return offset.New(v) }

func intervals(s *Set) [][2]uint64 {
	var out [][2]uint64
	for _, iv := range s.Intervals() {
		out = append(out, [2]uint64{iv.Start.Uint64(), iv.End.Uint64()})
	}
	return out
}

func assertIntervals(t *testing.T, s *Set, want [][2]uint64) {
	t.Helper()
	got := intervals(s)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("intervals mismatch (-want +got):\n%s", diff)
	}
}

// S1: new -> add(2,1) -> get_interval_by_nth_inner_number(_, 0) = (1,1,2).
func TestScenarioS1(t *testing.T) {
	s := New()
	s.Add(off(2), off(1))
	start, at, end, err := s.GetIntervalByNthInnerNumber(0)
	if err != nil {
		t.Fatal(err)
	}
	if start.Uint64() != 1 || at.Uint64() != 1 || end.Uint64() != 2 {
		t.Fatalf("got (%d,%d,%d)", start.Uint64(), at.Uint64(), end.Uint64())
	}
}

// S2: add(new,2,1) then add(_,6,3) -> intervals (1,2),(3,6);
// compact(_,1) fuses the between-gap [2,3) -> {(1,6)}.
func TestScenarioS2(t *testing.T) {
	s := New()
	s.Add(off(2), off(1))
	s.Add(off(6), off(3))
	assertIntervals(t, s, [][2]uint64{{1, 2}, {3, 6}})

	absorbed, out := s.Compact(1)
	if len(absorbed) != 1 || absorbed[0].Start.Uint64() != 2 || absorbed[0].End.Uint64() != 3 {
		t.Fatalf("absorbed = %+v", absorbed)
	}
	assertIntervals(t, out, [][2]uint64{{1, 6}})
}

// S3: four intervals with a unique smallest between-gap [2,5); compact(_,3)
// must fuse exactly that gap.
func TestScenarioS3(t *testing.T) {
	s := New()
	s.Add(off(2), off(1))   // [1,2)
	s.Add(off(10), off(5))  // [5,10) -- gap to previous (2,5) len 3, smallest
	s.Add(off(26), off(25)) // [25,26) -- gap to previous (10,25) len 15
	s.Add(off(40), off(30)) // [30,40) -- gap to previous (26,30) len 4
	assertIntervals(t, s, [][2]uint64{{1, 2}, {5, 10}, {25, 26}, {30, 40}})

	absorbed, out := s.Compact(3)
	if len(absorbed) != 1 || absorbed[0].Start.Uint64() != 2 || absorbed[0].End.Uint64() != 5 {
		t.Fatalf("absorbed = %+v", absorbed)
	}
	assertIntervals(t, out, [][2]uint64{{1, 10}, {25, 26}, {30, 40}})
}

// S4: S = [3,5) U [9,10); compact(S,1) absorbs the between-gap [5,9) (not
// the leading gap [0,3)), fusing to a single interval [3,10).
func TestScenarioS4(t *testing.T) {
	s := New()
	s.Add(off(5), off(3))
	s.Add(off(10), off(9))
	absorbed, out := s.Compact(1)
	if len(absorbed) != 1 || absorbed[0].Start.Uint64() != 5 || absorbed[0].End.Uint64() != 9 {
		t.Fatalf("absorbed = %+v", absorbed)
	}
	assertIntervals(t, out, [][2]uint64{{3, 10}})
}

// S5: deleting a middle subrange splits an interval into two residuals.
func TestScenarioS5Delete(t *testing.T) {
	s := New()
	s.Add(off(10), off(0))
	s.Delete(off(6), off(4))
	assertIntervals(t, s, [][2]uint64{{0, 4}, {6, 10}})
}

func TestAddFusesTouchingAndOverlapping(t *testing.T) {
	s := New()
	s.Add(off(5), off(1))
	s.Add(off(9), off(5)) // touches at 5
	assertIntervals(t, s, [][2]uint64{{1, 9}})

	s2 := New()
	s2.Add(off(5), off(1))
	s2.Add(off(8), off(3)) // overlaps [3,5)
	assertIntervals(t, s2, [][2]uint64{{1, 8}})
}

func TestCutTruncatesStraddler(t *testing.T) {
	s := New()
	s.Add(off(10), off(0))
	s.Add(off(20), off(15))
	s.Cut(off(8))
	assertIntervals(t, s, [][2]uint64{{0, 8}})
}

func TestIsInsideLeftExclusiveRightInclusive(t *testing.T) {
	s := New()
	s.Add(off(10), off(0))
	if s.IsInside(off(0)) {
		t.Fatal("0 should not be inside (0,10]")
	}
	if !s.IsInside(off(10)) {
		t.Fatal("10 should be inside (0,10]")
	}
	if !s.IsInside(off(5)) {
		t.Fatal("5 should be inside (0,10]")
	}
}

func TestInverseRoundTrip(t *testing.T) {
	s := New()
	s.Add(off(5), off(1))
	s.Add(off(10), off(8))
	inv := s.Inverse()
	want := [][2]uint64{{0, 1}, {5, 8}}
	if len(inv.Intervals()) != len(want)+1 { // + trailing infinite
		t.Fatalf("inverse = %+v", intervals(inv))
	}
	for i, w := range want {
		iv := inv.Intervals()[i]
		if iv.Start.Uint64() != w[0] || iv.End.Uint64() != w[1] {
			t.Fatalf("inverse[%d] = %+v, want %v", i, iv, w)
		}
	}
	last := inv.Intervals()[len(inv.Intervals())-1]
	if !last.EndInf || last.Start.Uint64() != 10 {
		t.Fatalf("trailing interval = %+v", last)
	}
}

func TestIntersectionAndOuterJoin(t *testing.T) {
	a := New()
	a.Add(off(10), off(0))
	b := New()
	b.Add(off(5), off(2))
	b.Add(off(15), off(8))

	inter := Intersection(a, b)
	assertIntervals(t, inter, [][2]uint64{{2, 5}, {8, 10}})

	oj := OuterJoin(a, b)
	assertIntervals(t, oj, [][2]uint64{{10, 15}})
}

func TestSerializeBinaryRoundTrip(t *testing.T) {
	s := New()
	s.Add(off(2), off(1))
	s.Add(off(6), off(3))

	raw := s.SerializeBinary(10, func() float64 { return 0 })
	got, err := DeserializeBinary(raw)
	if err != nil {
		t.Fatal(err)
	}
	assertIntervals(t, got, [][2]uint64{{1, 2}, {3, 6}})
}

// S6: serialize({(6,3),(2,1)}, 10) emits descending-by-End JSON.
func TestScenarioS6JSON(t *testing.T) {
	s := New()
	s.Add(off(6), off(3))
	s.Add(off(2), off(1))
	raw, err := s.SerializeJSON(10, func() float64 { return 0 })
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"6":"3"},{"2":"1"}]`
	if string(raw) != want {
		t.Fatalf("got %s, want %s", raw, want)
	}
}

func TestDeserializeBinaryRejectsOutOfOrder(t *testing.T) {
	s := New()
	s.Add(off(10), off(0))
	s.Add(off(20), off(15))
	raw := s.SerializeBinary(10, func() float64 { return 0 })
	// Corrupt: swap the two records so End is ascending instead of
	// strictly decreasing.
	step := 2 * offset.Width
	mixed := append(append([]byte{}, raw[step:]...), raw[:step]...)
	if _, err := DeserializeBinary(mixed); err != ErrInvalidFormat {
		t.Fatalf("got %v, want ErrInvalidFormat", err)
	}
}

func TestGetIntervalByNthInnerNumberOutOfRange(t *testing.T) {
	s := New()
	s.Add(off(2), off(1))
	if _, _, _, err := s.GetIntervalByNthInnerNumber(1); err != ErrNoSuchPoint {
		t.Fatalf("got %v, want ErrNoSuchPoint", err)
	}
}

func TestTakeLargest(t *testing.T) {
	s := New()
	s.Add(off(2), off(1))
	s.Add(off(20), off(5))
	iv, ok := s.TakeLargest()
	if !ok || iv.Start.Uint64() != 5 || iv.End.Uint64() != 20 {
		t.Fatalf("got %+v", iv)
	}
}
