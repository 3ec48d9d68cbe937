package diskpool

import (
	"testing"
	"time"

	"github.com/goomario/arweave/pkg/chunkstore"
	"github.com/goomario/arweave/pkg/config"
	"github.com/goomario/arweave/pkg/kvstore"
	"github.com/goomario/arweave/pkg/log"
	"github.com/goomario/arweave/pkg/offset"
	"github.com/goomario/arweave/pkg/weave"
	"github.com/goomario/arweave/pkg/weaveerr"
)

type fakeIndex struct {
	entries map[weave.DataRootKey]*weave.DataRootIndexEntry
}

func (f *fakeIndex) Get(key weave.DataRootKey) (*weave.DataRootIndexEntry, bool, error) {
	e, ok := f.entries[key]
	return e, ok, nil
}

type fakeValidator struct {
	chunkEnd uint64
	fail     bool
}

func (f *fakeValidator) ValidateDataPath(dataRoot weave.Hash, offsetInTx, txSize uint64, dataPath, chunk []byte) (uint64, error) {
	if f.fail {
		return 0, weaveerr.New(weaveerr.InvalidProof, "bad proof")
	}
	return f.chunkEnd, nil
}

type fakeUpdater struct {
	calls int
}

func (f *fakeUpdater) UpdateChunksIndex(absoluteTxStart offset.Offset, relativeEndInTx uint64, dataPathHash, txRoot, dataRoot weave.Hash, txPath []byte, chunkSize, txSize uint64) error {
	f.calls++
	return nil
}

func newTestManager(index *fakeIndex, validator Validator, updater ChunksIndexUpdater) *Manager {
	cfg := config.Default(50)
	return New(kvstore.NewMemStore(), kvstore.NewMemStore(), chunkstore.New(kvstore.NewMemStore()), index, validator, updater, cfg, log.Noop())
}

func TestAdmitUnknownDataRootRejected(t *testing.T) {
	mgr := newTestManager(&fakeIndex{entries: map[weave.DataRootKey]*weave.DataRootIndexEntry{}}, &fakeValidator{}, &fakeUpdater{})
	_, err := mgr.Admit(weave.HashOf([]byte("root")), 1000, 0, []byte("dp"), []byte("chunk"), false)
	if k, ok := weaveerr.KindOf(err); !ok || k != weaveerr.DataRootNotFound {
		t.Fatalf("got %v", err)
	}
}

func TestAdmitDiskFull(t *testing.T) {
	mgr := newTestManager(&fakeIndex{entries: map[weave.DataRootKey]*weave.DataRootIndexEntry{}}, &fakeValidator{}, &fakeUpdater{})
	_, err := mgr.Admit(weave.HashOf([]byte("root")), 1000, 0, []byte("dp"), []byte("chunk"), true)
	if k, ok := weaveerr.KindOf(err); !ok || k != weaveerr.DiskFull {
		t.Fatalf("got %v", err)
	}
}

func TestAdmitConfirmedDataRootGoesStraightToChunksIndex(t *testing.T) {
	dataRoot := weave.HashOf([]byte("root"))
	key := weave.DataRootKey{DataRoot: dataRoot, TxSize: 1000}
	entry := &weave.DataRootIndexEntry{}
	entry.Add(weave.TxPlacement{TxRoot: weave.HashOf([]byte("block")), AbsoluteTxStart: offset.New(500)})
	index := &fakeIndex{entries: map[weave.DataRootKey]*weave.DataRootIndexEntry{key: entry}}
	updater := &fakeUpdater{}
	mgr := newTestManager(index, &fakeValidator{chunkEnd: 10}, updater)

	res, err := mgr.Admit(dataRoot, 1000, 0, []byte("dp"), []byte("chunk"), false)
	if err != nil {
		t.Fatal(err)
	}
	if res != AdmitConfirmed {
		t.Fatalf("got %v", res)
	}
	if updater.calls != 1 {
		t.Fatalf("calls = %d", updater.calls)
	}
	if has, _ := mgr.blobs.Has(weave.HashOf([]byte("dp"))); !has {
		t.Fatal("blob should have been written")
	}
}

func TestAdmitUnconfirmedDataRootPooledAndScanned(t *testing.T) {
	dataRoot := weave.HashOf([]byte("root"))
	key := weave.DataRootKey{DataRoot: dataRoot, TxSize: 1000}
	index := &fakeIndex{entries: map[weave.DataRootKey]*weave.DataRootIndexEntry{}}
	updater := &fakeUpdater{}
	mgr := newTestManager(index, &fakeValidator{chunkEnd: 10}, updater)

	// Seed the data-root-buffer entry the way a prior join would have.
	if err := mgr.putDataRootValue(key, weave.DiskPoolDataRootValue{TimestampUs: 1000, TxIDs: map[string]struct{}{"tx": {}}}); err != nil {
		t.Fatal(err)
	}

	res, err := mgr.Admit(dataRoot, 1000, 0, []byte("dp"), []byte("chunk"), false)
	if err != nil {
		t.Fatal(err)
	}
	if res != AdmitPooled {
		t.Fatalf("got %v", res)
	}

	// Still unconfirmed: ProcessOnePending should skip past the timestamp.
	cur, err := mgr.ProcessOnePending(kvstore.FirstCursor())
	if err != nil {
		t.Fatal(err)
	}
	if updater.calls != 0 {
		t.Fatalf("updater should not run while unconfirmed: calls=%d", updater.calls)
	}

	// Now confirm the data root and re-scan: should promote.
	entry := &weave.DataRootIndexEntry{}
	entry.Add(weave.TxPlacement{TxRoot: weave.HashOf([]byte("block")), AbsoluteTxStart: offset.New(500)})
	index.entries[key] = entry
	if _, err := mgr.ProcessOnePending(kvstore.FirstCursor()); err != nil {
		t.Fatal(err)
	}
	if updater.calls != 1 {
		t.Fatalf("calls after confirm = %d", updater.calls)
	}
	_ = cur
}

func TestExpireDataRootsDropsStaleUnconfirmedEntries(t *testing.T) {
	mgr := newTestManager(&fakeIndex{entries: map[weave.DataRootKey]*weave.DataRootIndexEntry{}}, &fakeValidator{}, &fakeUpdater{})
	key := weave.DataRootKey{DataRoot: weave.HashOf([]byte("stale")), TxSize: 10}
	old := time.Now().Add(-3 * time.Hour)
	if err := mgr.putDataRootValue(key, weave.DiskPoolDataRootValue{
		TimestampUs: uint64(old.UnixMicro()), TxIDs: map[string]struct{}{"tx": {}}, AccumulatedSize: 5,
	}); err != nil {
		t.Fatal(err)
	}
	expired, size, err := mgr.ExpireDataRoots(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if expired != 1 || size != 0 {
		t.Fatalf("expired=%d size=%d", expired, size)
	}
}

// TestRefreshTimestampExtendsExpirationWindow is the orphaned-data-root
// scenario §4.6's join/reorg depends on: a reorg calls RefreshTimestamp on
// a data root whose placement got cut, and the refreshed entry must
// survive an ExpireDataRoots pass that would otherwise have dropped it.
func TestRefreshTimestampExtendsExpirationWindow(t *testing.T) {
	mgr := newTestManager(&fakeIndex{entries: map[weave.DataRootKey]*weave.DataRootIndexEntry{}}, &fakeValidator{}, &fakeUpdater{})
	key := weave.DataRootKey{DataRoot: weave.HashOf([]byte("orphan")), TxSize: 10}
	old := time.Now().Add(-3 * time.Hour)
	if err := mgr.putDataRootValue(key, weave.DiskPoolDataRootValue{
		TimestampUs: uint64(old.UnixMicro()), TxIDs: map[string]struct{}{"tx": {}},
	}); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	if err := mgr.RefreshTimestamp(key, now); err != nil {
		t.Fatal(err)
	}

	got, err := mgr.getDataRootValue(key)
	if err != nil {
		t.Fatal(err)
	}
	if got.TimestampUs != uint64(now.UnixMicro()) {
		t.Fatalf("TimestampUs = %d, want %d", got.TimestampUs, uint64(now.UnixMicro()))
	}

	expired, _, err := mgr.ExpireDataRoots(now)
	if err != nil {
		t.Fatal(err)
	}
	if expired != 0 {
		t.Fatalf("expired = %d, want 0 after refresh", expired)
	}
}

// TestRefreshTimestampUnknownKeyIsNoop covers a data root that was never
// admitted to the disk pool (e.g. it was confirmed and dropped already).
func TestRefreshTimestampUnknownKeyIsNoop(t *testing.T) {
	mgr := newTestManager(&fakeIndex{entries: map[weave.DataRootKey]*weave.DataRootIndexEntry{}}, &fakeValidator{}, &fakeUpdater{})
	key := weave.DataRootKey{DataRoot: weave.HashOf([]byte("never-seen")), TxSize: 10}
	if err := mgr.RefreshTimestamp(key, time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.getDataRootValue(key); err == nil {
		t.Fatal("expected no entry to have been created")
	}
}
