package statepersist_test

import (
	"testing"

	"github.com/goomario/arweave/pkg/kvstore"
	"github.com/goomario/arweave/pkg/statepersist"
	"github.com/goomario/arweave/pkg/syncengine"
)

func TestLoadStateOnFreshStoreReportsNotFound(t *testing.T) {
	s := statepersist.New(kvstore.NewMemStore())
	_, found, err := s.LoadState()
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected found=false on a fresh store")
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := statepersist.New(kvstore.NewMemStore())
	want := syncengine.State{
		WeaveSize: 100,
		BlockIndex: []syncengine.BlockIndexEntry{
			{CumulativeWeaveSize: 100},
		},
	}
	if err := s.SaveState(want); err != nil {
		t.Fatal(err)
	}
	got, found, err := s.LoadState()
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected found=true after SaveState")
	}
	if got.WeaveSize != want.WeaveSize {
		t.Fatalf("weave_size: got %d want %d", got.WeaveSize, want.WeaveSize)
	}
	if len(got.BlockIndex) != 1 || got.BlockIndex[0].CumulativeWeaveSize != 100 {
		t.Fatalf("block_index: got %+v", got.BlockIndex)
	}
}
