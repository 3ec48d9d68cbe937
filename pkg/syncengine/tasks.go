package syncengine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/goomario/arweave/pkg/intervalset"
	"github.com/goomario/arweave/pkg/offset"
	"github.com/goomario/arweave/pkg/peer"
	"github.com/goomario/arweave/pkg/proof"
	"github.com/goomario/arweave/pkg/weave"
)

const peerFailureCooldown = 2 * time.Minute

// syncOneTarget is the result of spec §4.4 step 1/2's target selection.
type syncOneTarget struct {
	peer                  peer.ID
	leftBound, rightBound uint64
}

// syncOne is the §4.4 "sync-one" periodic task. Target selection and
// every index mutation run inside the actor via ask; the network fetch
// itself runs on this ticker goroutine, per §5's "the actor itself never
// blocks on network I/O." Short on free disk space, it backs off to
// DiskSpaceCheckFrequency instead of its own tight ScanMissingChunksFrequency
// cadence.
func (e *Engine) syncOne(ctx context.Context) time.Duration {
	if !e.checkFreeSpace(e.freeSpace()) {
		return e.cfg.DiskSpaceCheckFrequency
	}

	var target syncOneTarget
	var found bool
	if err := e.ask(ctx, func(e *Engine) {
		target, found = e.selectSyncTargetLocked()
	}); err != nil {
		return 0
	}
	if !found {
		return 0
	}

	left, right := target.leftBound, target.rightBound
	for left < right {
		p, err := e.transport.GetChunk(target.peer, left+1)
		if err != nil {
			e.peers.Cooldown(target.peer, e.now().Add(peerFailureCooldown))
			return 0
		}
		if !proof.AttractiveRatio(p.DataPath, p.Chunk) {
			e.peers.Drop(target.peer)
			e.m.ChunksRejected.Inc()
			return 0
		}

		var opErr error
		if err := e.ask(ctx, func(e *Engine) {
			opErr = e.addChunkLocked(weave.HashFromBytes(p.TxRoot), p.TxPath, p.DataPath, left, p.Chunk)
		}); err != nil {
			return 0
		}
		if opErr != nil {
			e.peers.Drop(target.peer)
			e.m.ChunksRejected.Inc()
			return 0
		}
		e.m.ChunksFetched.Inc()
		left += uint64(len(p.Chunk))
	}
	return 0
}

// selectSyncTargetLocked implements §4.4 steps 1-2; it must only run
// inside the actor since it reads syncRecord/weaveSize/missingCur.
func (e *Engine) selectSyncTargetLocked() (syncOneTarget, bool) {
	weaveSize := offset.New(int64(e.weaveSize))
	for _, p := range e.peers.Snapshot(e.now()) {
		candidate := p.Record.Clone()
		candidate.Cut(weaveSize)
		want := intervalset.OuterJoin(e.syncRecord, candidate)
		sum := want.Sum()
		if sum == 0 {
			continue
		}
		r := uint64(e.rng() * float64(sum))
		if r >= sum {
			r = sum - 1
		}
		l, byteAt, right, err := want.GetIntervalByNthInnerNumber(r)
		if err != nil {
			continue
		}
		window := uint64(1)
		if e.cfg.MaxSharedIntervals > 0 {
			window = e.weaveSize / uint64(e.cfg.MaxSharedIntervals)
			if window == 0 {
				window = 1
			}
		}
		leftBound := maxOffset(l, subClamped(byteAt, window/2))
		rightBound := minOffset(right, l.Add(window))
		return syncOneTarget{peer: p.ID, leftBound: leftBound.Uint64(), rightBound: rightBound.Uint64()}, true
	}

	kv, next, err := e.idx.MissingChunksIndex.CyclicIteratorMove(e.missingCur)
	if err != nil {
		return syncOneTarget{}, false
	}
	e.missingCur = next
	start := offset.FromBytes(kv.Value)
	byteAt := start.Add(1)
	for _, p := range e.peers.Snapshot(e.now()) {
		if p.Record.IsInside(byteAt) {
			return syncOneTarget{peer: p.ID, leftBound: byteAt.Uint64() - 1, rightBound: byteAt.Uint64()}, true
		}
	}
	return syncOneTarget{}, false
}

func maxOffset(a, b offset.Offset) offset.Offset {
	if a.Less(b) {
		return b
	}
	return a
}

func minOffset(a, b offset.Offset) offset.Offset {
	if a.Less(b) {
		return a
	}
	return b
}

func subClamped(o offset.Offset, d uint64) offset.Offset {
	if o.Uint64() < d {
		return offset.Zero
	}
	return o.Sub(d)
}

// peerRecordsRefresh is the §4.4 "Peer-records refresh" periodic task: it
// samples PICK_PEERS_OUT_OF_RANDOM_N candidates, shuffles, takes
// CONSULT_PEER_RECORDS_COUNT, fetches each one's sync record over the
// network, and replaces PeerSyncRecords atomically.
func (e *Engine) peerRecordsRefresh(ctx context.Context) time.Duration {
	if e.discovery == nil {
		return 0
	}
	candidates := e.discovery.Peers()
	if len(candidates) > e.cfg.PickPeersOutOfRandomN {
		idx := rand.Perm(len(candidates))[:e.cfg.PickPeersOutOfRandomN]
		sampled := make([]peer.ID, len(idx))
		for i, j := range idx {
			sampled[i] = candidates[j]
		}
		candidates = sampled
	}
	rand.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	if len(candidates) > e.cfg.ConsultPeerRecordsCount {
		candidates = candidates[:e.cfg.ConsultPeerRecordsCount]
	}

	// Each candidate's get_sync_record RPC is independent, so fan them out
	// concurrently rather than paying CONSULT_PEER_RECORDS_COUNT round
	// trips serially.
	var mu sync.Mutex
	fresh := make(map[peer.ID]*intervalset.Set, len(candidates))
	g, _ := errgroup.WithContext(ctx)
	for _, id := range candidates {
		id := id
		g.Go(func() error {
			rec, err := e.transport.GetSyncRecord(id)
			if err != nil {
				return nil // a single unreachable peer doesn't abort the refresh
			}
			mu.Lock()
			fresh[id] = rec
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(fresh) == 0 {
		return 0
	}
	e.peers.Replace(fresh)
	return 0
}

// diskPoolScanTick drives §4.7's "process one pending chunk" once per
// tick. It must run inside the actor: ProcessOnePending calls back into
// UpdateChunksIndex, which mutates SyncRecord. Short on free disk space, it
// backs off to DiskSpaceCheckFrequency instead of DiskPoolScanFrequency.
func (e *Engine) diskPoolScanTick(ctx context.Context) time.Duration {
	if !e.checkFreeSpace(e.freeSpace()) {
		return e.cfg.DiskSpaceCheckFrequency
	}
	_ = e.ask(ctx, func(e *Engine) {
		next, err := e.diskPool.ProcessOnePending(e.diskPoolCur)
		if err != nil {
			e.logger.Error(err, "syncengine: disk-pool scan failed")
			return
		}
		e.diskPoolCur = next
	})
	return 0
}

// expireDiskPoolRootsTick drives §4.7's periodic disk-pool data-root
// expiry. It does not touch SyncRecord, but it shares DiskPoolDataRoots
// with UpdateChunksIndex, so it still runs through the actor to avoid
// racing a concurrent admission/promotion on the same column family.
func (e *Engine) expireDiskPoolRootsTick(ctx context.Context) time.Duration {
	_ = e.ask(ctx, func(e *Engine) {
		if _, _, err := e.diskPool.ExpireDataRoots(e.now()); err != nil {
			e.logger.Error(err, "syncengine: disk-pool expiry failed")
		}
	})
	return 0
}
