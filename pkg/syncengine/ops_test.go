package syncengine

import (
	"context"
	"testing"
	"time"

	"github.com/goomario/arweave/pkg/chunkstore"
	"github.com/goomario/arweave/pkg/config"
	"github.com/goomario/arweave/pkg/diskpool"
	"github.com/goomario/arweave/pkg/kvstore"
	"github.com/goomario/arweave/pkg/log"
	"github.com/goomario/arweave/pkg/weave"
	"github.com/goomario/arweave/pkg/weaveerr"
)

// TestStoreFetchedChunkTimesOutWithoutCallerDeadline exercises §5's default
// admission timeout: with nothing draining the mailbox, a caller that set
// no deadline of its own must still give up after
// cfg.DefaultAdmitChunkTimeout and report weaveerr.TimedOut, not the raw
// context error.
func TestStoreFetchedChunkTimesOutWithoutCallerDeadline(t *testing.T) {
	cfg := config.Default(50)
	cfg.DefaultAdmitChunkTimeout = 20 * time.Millisecond
	e := &Engine{
		idx:     Indices{ChunksIndex: kvstore.NewMemStore()},
		cfg:     cfg,
		mailbox: make(chan message, 1),
		quit:    make(chan struct{}),
	}

	err := e.StoreFetchedChunk(context.Background(), weave.Hash{}, nil, nil, 0, nil)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if k, ok := weaveerr.KindOf(err); !ok || k != weaveerr.TimedOut {
		t.Fatalf("got %v, want weaveerr.TimedOut", err)
	}
}

// TestStoreFetchedChunkRespectsCallerDeadline confirms StoreFetchedChunk
// does not override a deadline the caller already set with the (here,
// deliberately tiny) DefaultAdmitChunkTimeout: the op must still reach the
// actor and run, surfacing addChunkLocked's own NotJoined error rather
// than a timeout.
func TestStoreFetchedChunkRespectsCallerDeadline(t *testing.T) {
	e := newTestEngine(t)
	cfg := config.Default(50)
	cfg.DefaultAdmitChunkTimeout = time.Nanosecond
	e.cfg = cfg

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := e.StoreFetchedChunk(ctx, weave.Hash{}, nil, nil, 0, nil)
	if k, ok := weaveerr.KindOf(err); !ok || k != weaveerr.NotJoined {
		t.Fatalf("got %v, want weaveerr.NotJoined", err)
	}
}

// TestAdmitChunkUnknownDataRootRejected exercises §4.5's Admission
// procedure end to end through the engine: an unsubmitted data root must
// surface diskpool's DataRootNotFound, proving AdmitChunk actually reaches
// diskpool.Manager.Admit via the actor rather than being dead code.
func TestAdmitChunkUnknownDataRootRejected(t *testing.T) {
	e := newTestEngine(t)
	e.cfg = config.Default(50)
	index := &fakeDataRootIndex{entries: map[weave.DataRootKey]*weave.DataRootIndexEntry{}}
	e.diskPool = diskpool.New(e.idx.DiskPoolChunksIndex, e.idx.DiskPoolDataRoots, chunkstore.New(kvstore.NewMemStore()), index, &fakeDataPathValidator{}, e, e.cfg, log.Noop())
	e.freeSpace = func() uint64 { return ^uint64(0) }

	_, err := e.AdmitChunk(context.Background(), weave.HashOf([]byte("root")), 1000, 0, []byte("dp"), []byte("chunk"))
	if k, ok := weaveerr.KindOf(err); !ok || k != weaveerr.DataRootNotFound {
		t.Fatalf("got %v, want weaveerr.DataRootNotFound", err)
	}
}

type fakeDataRootIndex struct {
	entries map[weave.DataRootKey]*weave.DataRootIndexEntry
}

func (f *fakeDataRootIndex) Get(key weave.DataRootKey) (*weave.DataRootIndexEntry, bool, error) {
	e, ok := f.entries[key]
	return e, ok, nil
}

type fakeDataPathValidator struct{}

func (fakeDataPathValidator) ValidateDataPath(dataRoot weave.Hash, offsetInTx, txSize uint64, dataPath, chunk []byte) (uint64, error) {
	return uint64(len(chunk)), nil
}
