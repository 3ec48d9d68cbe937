// Package syncengine implements the §4.4-§4.8 Sync Engine: the
// single-owner actor that drives every weave state transition through a
// serialized mailbox, plus the two lock-free fast paths (GetChunk,
// GetTxRoot) that bypass the actor entirely. Grounded on the teacher's
// pkg/puller.Puller (self-rescheduling per-peer workers driven by a
// mailbox, cancel-func bookkeeping) and pkg/pullsync.Syncer (offer/want/
// deliver cycle shape informing fetchFromPeer), with the mailbox itself
// modeled after pkg/pusher's ticker+quit-channel polling loop generalized
// to a typed message channel.
package syncengine

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goomario/arweave/pkg/chunkstore"
	"github.com/goomario/arweave/pkg/config"
	"github.com/goomario/arweave/pkg/diskpool"
	"github.com/goomario/arweave/pkg/intervalset"
	"github.com/goomario/arweave/pkg/kvstore"
	"github.com/goomario/arweave/pkg/log"
	"github.com/goomario/arweave/pkg/metrics"
	"github.com/goomario/arweave/pkg/peer"
	"github.com/goomario/arweave/pkg/proof"
	"github.com/goomario/arweave/pkg/weave"
	"github.com/goomario/arweave/pkg/weaveerr"
)

// message is the actor's mailbox envelope: every state transition is a
// typed request with a reply channel (the "call" pattern of spec §9).
// The periodic tasks' ticks use the same ask path and also wait for
// their message to run.
type message struct {
	apply func(e *Engine)
	done  chan struct{}
}

// Engine is the Sync Engine actor. All exported methods except GetChunk
// and GetTxRoot enqueue a message and block for the actor goroutine to
// process it; the actor goroutine is the only thing that ever mutates
// syncRecord, peers, or the disk-pool/block bookkeeping.
type Engine struct {
	idx       Indices
	blobs     chunkstore.BlobStore
	validator *proof.Validator
	transport peer.Transport
	discovery peer.Discovery
	cfg       config.Config
	logger    log.Logger
	persist   StatePersister

	mailbox chan message
	quit    chan struct{}
	wg      sync.WaitGroup

	// State owned exclusively by the actor goroutine.
	joined      bool
	weaveSize   uint64
	syncRecord  *intervalset.Set
	blockIndex  []BlockIndexEntry
	peers       *peer.Records
	diskPool    *diskpool.Manager
	missingCur  kvstore.Cursor
	diskPoolCur kvstore.Cursor

	m *engineMetrics

	rng       func() float64
	now       func() time.Time
	freeSpace func() uint64
}

// BlockIndexEntry is one tracked recent block (spec §4.6's join/reorg
// intersection search).
type BlockIndexEntry struct {
	BlockHash           weave.Hash
	CumulativeWeaveSize uint64
	TxRoot              weave.Hash
}

// StatePersister is the §6 "persistence for the serialized state blob
// data_sync_state" external collaborator.
type StatePersister interface {
	SaveState(s State) error
	LoadState() (State, bool, error)
}

type engineMetrics struct {
	ChunksFetched  prometheus.Counter
	ChunksRejected prometheus.Counter
	Compactions    prometheus.Counter
	JoinReorgs     prometheus.Counter
}

func newEngineMetrics() *engineMetrics {
	return &engineMetrics{
		ChunksFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace, Subsystem: "syncengine", Name: "chunks_fetched_total",
			Help: "Number of chunks successfully fetched and persisted from peers.",
		}),
		ChunksRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace, Subsystem: "syncengine", Name: "chunks_rejected_total",
			Help: "Number of fetched chunks rejected (bad ratio, bad proof, transport error).",
		}),
		Compactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace, Subsystem: "syncengine", Name: "compactions_total",
			Help: "Number of sync-record compactions performed.",
		}),
		JoinReorgs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace, Subsystem: "syncengine", Name: "join_reorgs_total",
			Help: "Number of joins that triggered a reorg (cut_point < weave_size).",
		}),
	}
}

// Metrics returns the engine's prometheus collectors for a host registry.
func (e *Engine) Metrics() []prometheus.Collector {
	return metrics.PrometheusCollectorsFromFields(e.m)
}

// New constructs an Engine. The caller must call Run to start the actor
// goroutine before issuing any requests. freeSpace reports current free
// disk space in bytes for the §5 DISK_DATA_BUFFER backoff check; pass nil
// to disable the check (treated as unlimited space).
func New(idx Indices, blobs chunkstore.BlobStore, validator *proof.Validator, transport peer.Transport, discovery peer.Discovery, diskPool *diskpool.Manager, persist StatePersister, cfg config.Config, logger log.Logger, rng func() float64, freeSpace func() uint64) *Engine {
	if freeSpace == nil {
		freeSpace = func() uint64 { return ^uint64(0) }
	}
	return &Engine{
		idx: idx, blobs: blobs, validator: validator, transport: transport, discovery: discovery,
		diskPool: diskPool, persist: persist, cfg: cfg, logger: logger,
		mailbox:     make(chan message, 256),
		quit:        make(chan struct{}),
		syncRecord:  intervalset.New(),
		peers:       peer.New(),
		missingCur:  kvstore.FirstCursor(),
		diskPoolCur: kvstore.FirstCursor(),
		m:           newEngineMetrics(),
		rng:         rng,
		now:         time.Now,
		freeSpace:   freeSpace,
	}
}

// Run starts the actor goroutine and its periodic tasks. It attempts to
// recover a persisted state blob first.
func (e *Engine) Run(ctx context.Context) {
	if s, ok, err := e.persist.LoadState(); err != nil {
		e.logger.Error(err, "syncengine: failed to load persisted state")
	} else if ok {
		e.restoreState(s)
	}

	e.wg.Add(1)
	go e.loop(ctx)

	e.startPeriodicTask(ctx, e.cfg.ScanMissingChunksFrequency, e.syncOne)
	e.startPeriodicTask(ctx, e.cfg.PeerSyncRecordsFrequency, e.peerRecordsRefresh)
	e.startPeriodicTask(ctx, e.cfg.DiskPoolScanFrequency, e.diskPoolScanTick)
	e.startPeriodicTask(ctx, e.cfg.RemoveExpiredDataRootsFreq, e.expireDiskPoolRootsTick)
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case <-e.quit:
			e.shutdown()
			return
		case msg := <-e.mailbox:
			msg.apply(e)
			close(msg.done)
		}
	}
}

// startPeriodicTask runs task every freq until ctx/quit fires. A task
// returning a non-zero duration asks to be rescheduled after that interval
// instead of freq just this once — the §5 DISK_SPACE_CHECK_FREQUENCY
// backoff uses this to back off to a longer, fixed interval when free disk
// space is short, rather than retrying at its own tight ticker cadence.
func (e *Engine) startPeriodicTask(ctx context.Context, freq time.Duration, task func(ctx context.Context) time.Duration) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		t := time.NewTimer(freq)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.quit:
				return
			case <-t.C:
				wait := task(ctx)
				if wait <= 0 {
					wait = freq
				}
				t.Reset(wait)
			}
		}
	}()
}

// ask enqueues fn to run inside the actor goroutine and blocks until it
// has run, implementing spec §9's "call" pattern.
func (e *Engine) ask(ctx context.Context, fn func(e *Engine)) error {
	msg := message{apply: fn, done: make(chan struct{})}
	select {
	case e.mailbox <- msg:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.quit:
		return weaveerr.New(weaveerr.NotJoined, "syncengine: engine shutting down")
	}
	select {
	case <-msg.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the actor goroutine and its periodic tasks and waits for
// them; the actor's shutdown saves the state blob. Close does not close
// the index stores in Indices; they stay open for whoever opened them.
func (e *Engine) Close() error {
	close(e.quit)
	e.wg.Wait()
	return nil
}

func (e *Engine) shutdown() {
	if err := e.persist.SaveState(e.snapshotState()); err != nil {
		e.logger.Error(err, "syncengine: failed to persist state on shutdown")
	}
}

// checkFreeSpace implements the §5 DISK_DATA_BUFFER backoff check shared by
// every periodic task that writes new chunk bytes to disk.
func (e *Engine) checkFreeSpace(freeBytes uint64) bool {
	return freeBytes >= e.cfg.DiskDataBuffer
}
