// Package diskpool implements the §4.5/§4.7 Disk-Pool Manager: admission
// of unconfirmed chunks ahead of their data root being placed on chain,
// the cyclic scan that promotes or expires them, and the periodic sweep
// that drops data roots nobody confirmed in time. Grounded on the
// teacher's pkg/pusher.chunksWorker ticker-plus-quit-channel polling loop
// and pkg/puller's cursor-driven per-bin resumption, generalized from
// "bin" cursors to the spec's cyclic_iterator_move contract.
package diskpool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goomario/arweave/pkg/chunkstore"
	"github.com/goomario/arweave/pkg/config"
	"github.com/goomario/arweave/pkg/kvstore"
	"github.com/goomario/arweave/pkg/log"
	"github.com/goomario/arweave/pkg/metrics"
	"github.com/goomario/arweave/pkg/offset"
	"github.com/goomario/arweave/pkg/weave"
	"github.com/goomario/arweave/pkg/weaveerr"
)

// DataRootIndex is the subset of the sync engine's DataRootIndex the
// disk-pool manager consults; it never mutates confirmed placements
// itself (only the sync engine does, via ChunksIndexUpdater), but it does
// need to know whether a data root has been confirmed yet.
type DataRootIndex interface {
	Get(key weave.DataRootKey) (*weave.DataRootIndexEntry, bool, error)
}

// Validator is the subset of pkg/proof.Validator the disk pool needs:
// confirm a chunk's data_path against a data_root and return its end
// offset within the transaction.
type Validator interface {
	ValidateDataPath(dataRoot weave.Hash, offsetInTx, txSize uint64, dataPath, chunk []byte) (chunkEnd uint64, err error)
}

// ChunksIndexUpdater is the sync engine's update-chunks-index operation
// (spec §4.5), injected here because it mutates SyncRecord, which only the
// single-owner actor may touch.
type ChunksIndexUpdater interface {
	UpdateChunksIndex(absoluteTxStart offset.Offset, relativeEndInTx uint64, dataPathHash, txRoot, dataRoot weave.Hash, txPath []byte, chunkSize, txSize uint64) error
}

// Manager is the Disk-Pool Manager. It owns the DiskPoolChunksIndex and
// DiskPoolDataRoots column families and the blob store's admission path;
// it is driven by the sync engine's periodic tasks, not by its own
// goroutine, keeping all mutation inside the single-owner actor's mailbox
// per spec §5.
type Manager struct {
	chunks    kvstore.Store
	dataRoots kvstore.Store
	blobs     chunkstore.BlobStore
	index     DataRootIndex
	validator Validator
	updater   ChunksIndexUpdater
	cfg       config.Config
	logger    log.Logger
	now       func() time.Time

	m *diskPoolMetrics
}

type diskPoolMetrics struct {
	Admitted prometheus.Counter
	Rejected prometheus.Counter
	Promoted prometheus.Counter
	Expired  prometheus.Counter
	Size     prometheus.Gauge
}

func newMetrics() *diskPoolMetrics {
	return &diskPoolMetrics{
		Admitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace, Subsystem: "diskpool", Name: "admitted_total",
			Help: "Number of chunks admitted to the disk pool.",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace, Subsystem: "diskpool", Name: "rejected_total",
			Help: "Number of admission attempts rejected.",
		}),
		Promoted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace, Subsystem: "diskpool", Name: "promoted_total",
			Help: "Number of disk-pool chunks promoted to the confirmed chunk index.",
		}),
		Expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace, Subsystem: "diskpool", Name: "expired_total",
			Help: "Number of disk-pool chunks/data roots expired.",
		}),
		Size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metrics.Namespace, Subsystem: "diskpool", Name: "size_bytes",
			Help: "Accumulated disk-pool size across all unconfirmed data roots.",
		}),
	}
}

// Metrics returns the manager's prometheus collectors for a host registry.
func (mgr *Manager) Metrics() []prometheus.Collector {
	return metrics.PrometheusCollectorsFromFields(mgr.m)
}

// New returns a disk-pool Manager.
func New(chunks, dataRoots kvstore.Store, blobs chunkstore.BlobStore, index DataRootIndex, validator Validator, updater ChunksIndexUpdater, cfg config.Config, logger log.Logger) *Manager {
	return &Manager{
		chunks: chunks, dataRoots: dataRoots, blobs: blobs, index: index,
		validator: validator, updater: updater, cfg: cfg, logger: logger,
		now: time.Now, m: newMetrics(),
	}
}

// AdmitResult reports which admission path (§4.5) a call took.
type AdmitResult int

const (
	AdmitConfirmed AdmitResult = iota // data root already confirmed: chunk went straight to ChunksIndex
	AdmitPooled                       // data root unconfirmed: chunk buffered in the disk pool
)

// Admit implements the §4.5 "Admission" procedure: a user submits a chunk
// along with its claimed (data_root, data_path, offset_in_tx, tx_size).
func (mgr *Manager) Admit(dataRoot weave.Hash, txSize, offsetInTx uint64, dataPath, chunk []byte, diskFull bool) (AdmitResult, error) {
	if diskFull {
		return 0, weaveerr.New(weaveerr.DiskFull, "diskpool: out of disk space")
	}
	key := weave.DataRootKey{DataRoot: dataRoot, TxSize: txSize}
	dataPathHash := weave.HashOf(dataPath)

	if entry, found, err := mgr.index.Get(key); err != nil {
		return 0, err
	} else if found {
		chunkEnd, err := mgr.validator.ValidateDataPath(dataRoot, offsetInTx, txSize, dataPath, chunk)
		if err != nil {
			mgr.m.Rejected.Inc()
			return 0, err
		}
		for _, p := range entry.Placements {
			if err := mgr.updater.UpdateChunksIndex(p.AbsoluteTxStart, chunkEnd, dataPathHash, p.TxRoot, dataRoot, p.TxPath, uint64(len(chunk)), txSize); err != nil {
				return 0, err
			}
		}
		if err := mgr.blobs.Write(dataPathHash, chunk, dataPath); err != nil {
			return 0, err
		}
		return AdmitConfirmed, nil
	}

	val, err := mgr.getDataRootValue(key)
	if err != nil {
		if k, ok := weaveerr.KindOf(err); ok && k == weaveerr.NotFound {
			mgr.m.Rejected.Inc()
			return 0, weaveerr.New(weaveerr.DataRootNotFound, "diskpool: unknown data root")
		}
		return 0, err
	}

	chunkSize := uint64(len(chunk))
	if val.AccumulatedSize+chunkSize > mgr.cfg.MaxDiskPoolDataRootBuffer {
		mgr.m.Rejected.Inc()
		return 0, weaveerr.New(weaveerr.ExceedsDataRootSizeLimit, "diskpool: per-data-root buffer exceeded")
	}
	total, err := mgr.totalSize()
	if err != nil {
		return 0, err
	}
	if total+chunkSize > mgr.cfg.MaxDiskPoolBuffer {
		mgr.m.Rejected.Inc()
		return 0, weaveerr.New(weaveerr.ExceedsDiskPoolSizeLimit, "diskpool: global buffer exceeded")
	}

	chunkEnd, err := mgr.validator.ValidateDataPath(dataRoot, offsetInTx, txSize, dataPath, chunk)
	if err != nil {
		mgr.m.Rejected.Inc()
		return 0, err
	}

	dpKey := weave.DiskPoolChunkKey{TimestampUs: val.TimestampUs, DataPathHash: dataPathHash}
	dpVal := weave.DiskPoolChunkValue{RelativeEndOffset: chunkEnd, ChunkSize: chunkSize, DataRoot: dataRoot, TxSize: txSize}
	if err := mgr.putDiskPoolChunk(dpKey, dpVal); err != nil {
		return 0, err
	}
	if err := mgr.blobs.Write(dataPathHash, chunk, dataPath); err != nil {
		return 0, err
	}

	val.AccumulatedSize += chunkSize
	if err := mgr.putDataRootValue(key, val); err != nil {
		return 0, err
	}
	mgr.m.Admitted.Inc()
	mgr.m.Size.Add(float64(chunkSize))
	return AdmitPooled, nil
}
