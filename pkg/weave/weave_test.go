package weave

import (
	"testing"

	"github.com/goomario/arweave/pkg/offset"
)

func TestDataRootKeyRoundTrip(t *testing.T) {
	k := DataRootKey{DataRoot: HashOf([]byte("root")), TxSize: 4096}
	got := DataRootKeyFromBytes(k.Bytes())
	if !got.Equal(k) {
		t.Fatalf("got %+v, want %+v", got, k)
	}
}

func TestDiskPoolChunkKeyRoundTripAndOrder(t *testing.T) {
	a := DiskPoolChunkKey{TimestampUs: 100, DataPathHash: HashOf([]byte("a"))}
	b := DiskPoolChunkKey{TimestampUs: 200, DataPathHash: HashOf([]byte("b"))}
	if got := DiskPoolChunkKeyFromBytes(a.Bytes()); got.TimestampUs != a.TimestampUs || got.DataPathHash != a.DataPathHash {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	ab, bb := a.Bytes(), b.Bytes()
	less := false
	for i := range ab {
		if ab[i] != bb[i] {
			less = ab[i] < bb[i]
			break
		}
	}
	if !less {
		t.Fatal("lexicographic order of keys must match ascending timestamp order")
	}
}

func TestDataRootIndexEntryAddHasRemoveFrom(t *testing.T) {
	e := &DataRootIndexEntry{}
	p1 := TxPlacement{TxRoot: HashOf([]byte("block1")), AbsoluteTxStart: offset.New(100)}
	p2 := TxPlacement{TxRoot: HashOf([]byte("block2")), AbsoluteTxStart: offset.New(500)}
	e.Add(p1)
	e.Add(p2)
	if !e.Has(p1) || !e.Has(p2) {
		t.Fatalf("entry should have both placements: %+v", e.Placements)
	}
	if emptied := e.RemoveFrom(offset.New(200)); emptied {
		t.Fatal("entry should not be emptied: p1 survives the cut")
	}
	if e.Has(p2) {
		t.Fatal("p2 should have been removed by the cut")
	}
	if emptied := e.RemoveFrom(offset.New(0)); !emptied {
		t.Fatal("entry should be emptied once every placement is at or above cut_point")
	}
}

func TestDiskPoolDataRootValueConfirmedSentinel(t *testing.T) {
	v := DiskPoolDataRootValue{TxIDs: nil}
	if !v.Confirmed() {
		t.Fatal("nil TxIDs must mean confirmed")
	}
	v.TxIDs = map[string]struct{}{"tx1": {}}
	if v.Confirmed() {
		t.Fatal("non-nil TxIDs must mean not yet confirmed")
	}
}
