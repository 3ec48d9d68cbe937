package kvstore

import (
	"testing"

	"github.com/goomario/arweave/pkg/weaveerr"
)

func put(t *testing.T, s Store, k, v string) {
	t.Helper()
	if err := s.Put([]byte(k), []byte(v)); err != nil {
		t.Fatal(err)
	}
}

func TestMemStoreGetNextGetPrev(t *testing.T) {
	s := NewMemStore()
	put(t, s, "b", "1")
	put(t, s, "d", "2")
	put(t, s, "f", "3")

	kv, err := s.GetNext([]byte("c"))
	if err != nil || string(kv.Key) != "d" {
		t.Fatalf("GetNext(c) = %v, %v", kv, err)
	}
	kv, err = s.GetNext([]byte("b"))
	if err != nil || string(kv.Key) != "b" {
		t.Fatalf("GetNext(b) = %v, %v", kv, err)
	}
	if _, err := s.GetNext([]byte("g")); err == nil {
		t.Fatal("expected NotFound")
	} else if k, ok := weaveerr.KindOf(err); !ok || k != weaveerr.NotFound {
		t.Fatalf("got %v", err)
	}

	kv, err = s.GetPrev([]byte("e"))
	if err != nil || string(kv.Key) != "d" {
		t.Fatalf("GetPrev(e) = %v, %v", kv, err)
	}
	kv, err = s.GetPrev([]byte("f"))
	if err != nil || string(kv.Key) != "f" {
		t.Fatalf("GetPrev(f) = %v, %v", kv, err)
	}
	if _, err := s.GetPrev([]byte("a")); err == nil {
		t.Fatal("expected NotFound")
	}
}

func TestMemStoreGetRangeDeleteRange(t *testing.T) {
	s := NewMemStore()
	put(t, s, "a", "1")
	put(t, s, "b", "2")
	put(t, s, "c", "3")
	put(t, s, "d", "4")

	kvs, err := s.GetRange([]byte("b"), []byte("d"))
	if err != nil || len(kvs) != 2 || string(kvs[0].Key) != "b" || string(kvs[1].Key) != "c" {
		t.Fatalf("GetRange = %+v, %v", kvs, err)
	}

	if err := s.DeleteRange([]byte("b"), []byte("d")); err != nil {
		t.Fatal(err)
	}
	kvs, _ = s.GetRange([]byte("a"), []byte("z"))
	if len(kvs) != 2 || string(kvs[0].Key) != "a" || string(kvs[1].Key) != "d" {
		t.Fatalf("after delete_range = %+v", kvs)
	}
}

func TestMemStoreCyclicIteratorMoveWrapsAndNeverLoopsOnEmpty(t *testing.T) {
	s := NewMemStore()
	if _, _, err := s.CyclicIteratorMove(FirstCursor()); err == nil {
		t.Fatal("expected NotFound on empty store")
	}

	put(t, s, "a", "1")
	put(t, s, "b", "2")

	kv, cur, err := s.CyclicIteratorMove(FirstCursor())
	if err != nil || string(kv.Key) != "a" {
		t.Fatalf("first move = %v, %v", kv, err)
	}
	kv, cur, err = s.CyclicIteratorMove(cur)
	if err != nil || string(kv.Key) != "b" {
		t.Fatalf("second move = %v, %v", kv, err)
	}
	kv, _, err = s.CyclicIteratorMove(cur)
	if err != nil || string(kv.Key) != "a" {
		t.Fatalf("wrap move = %v, %v", kv, err)
	}
}
