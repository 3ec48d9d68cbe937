package cmd

import (
	"errors"
	"path/filepath"

	"github.com/goomario/arweave/pkg/kvstore"
	"github.com/goomario/arweave/pkg/kvstore/leveldb"
	"github.com/goomario/arweave/pkg/log"
	"github.com/goomario/arweave/pkg/offset"
	"github.com/goomario/arweave/pkg/peer"
	"github.com/goomario/arweave/pkg/syncengine"
	"github.com/goomario/arweave/pkg/weave"
)

// deferredUpdater forward-references the *syncengine.Engine a disk-pool
// Manager must be handed at construction time, even though the Engine
// itself cannot exist until the Manager it owns has already been built.
// engine is set once, immediately after syncengine.New returns and before
// Run is called; every other call into the Manager happens afterwards.
type deferredUpdater struct {
	engine *syncengine.Engine
}

func (u *deferredUpdater) UpdateChunksIndex(absoluteTxStart offset.Offset, relativeEndInTx uint64, dataPathHash, txRoot, dataRoot weave.Hash, txPath []byte, chunkSize, txSize uint64) error {
	return u.engine.UpdateChunksIndex(absoluteTxStart, relativeEndInTx, dataPathHash, txRoot, dataRoot, txPath, chunkSize, txSize)
}

// notImplementedMerkle is a placeholder for spec §6's Merkle tree/path
// verifier, an external collaborator this module intentionally does not
// implement (see DESIGN.md): the weave's actual Merkle path format is a
// deployment-specific concern supplied by whoever operates the consensus
// layer this daemon syncs against.
type notImplementedMerkle struct{}

var errMerkleNotConfigured = errors.New("weave-syncd: no Merkle tree verifier configured; plug in a proof.Merkle implementation for this deployment's consensus layer")

func (notImplementedMerkle) VerifyTxPath(txRoot weave.Hash, txPath []byte, offsetInBlock, blockSize uint64) (weave.Hash, uint64, uint64, error) {
	return weave.Hash{}, 0, 0, errMerkleNotConfigured
}

func (notImplementedMerkle) VerifyDataPath(dataRoot weave.Hash, dataPath []byte, offsetInTx, txSize uint64) (weave.Hash, uint64, uint64, error) {
	return weave.Hash{}, 0, 0, errMerkleNotConfigured
}

func (notImplementedMerkle) ChunkIdOf(chunk []byte) weave.Hash {
	return weave.HashOf(chunk)
}

// staticDiscovery implements peer.Discovery over a fixed, CLI-supplied
// peer list (SUPPLEMENTED FEATURE: spec §6 names Discovery as a host
// concern without specifying its shape).
type staticDiscovery struct {
	peers []peer.ID
}

func newStaticDiscovery(addrs []string) *staticDiscovery {
	ids := make([]peer.ID, len(addrs))
	for i, a := range addrs {
		ids[i] = peer.ID(a)
	}
	return &staticDiscovery{peers: ids}
}

func (d *staticDiscovery) Peers() []peer.ID { return d.peers }

// storeCloser groups every leveldb handle opened by openStores so the
// caller can close them all on shutdown.
type storeCloser interface {
	Close() error
}

// openStores opens the seven index column families, the disk-pool data-root
// store, the chunk blob store and the state-persistence store, each its own
// leveldb database under dataDir, per spec §6's "host opens these as named
// databases".
func openStores(dataDir string, logger log.Logger) (syncengine.Indices, kvstore.Store, kvstore.Store, []storeCloser, error) {
	open := func(name string) (kvstore.Store, error) {
		return leveldb.New(filepath.Join(dataDir, name), logger)
	}

	var closers []storeCloser
	var firstErr error
	must := func(name string) kvstore.Store {
		if firstErr != nil {
			return nil
		}
		s, err := open(name)
		if err != nil {
			firstErr = err
			return nil
		}
		closers = append(closers, s)
		return s
	}

	idx := syncengine.Indices{
		ChunksIndex:         must("chunks_index"),
		MissingChunksIndex:  must("missing_chunks_index"),
		DataRootIndex:       must("data_root_index"),
		DataRootOffsetIndex: must("data_root_offset_index"),
		TXIndex:             must("tx_index"),
		TXOffsetIndex:       must("tx_offset_index"),
		DiskPoolChunksIndex: must("disk_pool_chunks_index"),
		DiskPoolDataRoots:   must("disk_pool_data_roots"),
	}
	blobsStore := must("blobs")
	stateStore := must("state")
	if firstErr != nil {
		for _, cl := range closers {
			_ = cl.Close()
		}
		return syncengine.Indices{}, nil, nil, nil, firstErr
	}
	return idx, blobsStore, stateStore, closers, nil
}
