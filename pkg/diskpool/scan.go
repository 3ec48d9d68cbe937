package diskpool

import (
	"time"

	"github.com/goomario/arweave/pkg/kvstore"
	"github.com/goomario/arweave/pkg/weave"
	"github.com/goomario/arweave/pkg/weaveerr"
)

// ProcessOnePending implements §4.7's "process one pending chunk": advance
// the disk-pool cursor once and either skip, expire, or promote the
// picked chunk.
func (mgr *Manager) ProcessOnePending(cursor kvstore.Cursor) (kvstore.Cursor, error) {
	kv, next, err := mgr.chunks.CyclicIteratorMove(cursor)
	if err != nil {
		if k, ok := weaveerr.KindOf(err); ok && k == weaveerr.NotFound {
			return cursor, nil // empty disk pool: nothing to do this cycle
		}
		return cursor, err
	}
	dpKey := weave.DiskPoolChunkKeyFromBytes(kv.Key)
	val, err := decodeDiskPoolChunkValue(kv.Value)
	if err != nil {
		return next, weaveerr.Wrap(weaveerr.Invalid, "diskpool: corrupt chunk value", err)
	}

	drKey := weave.DataRootKey{DataRoot: val.DataRoot, TxSize: val.TxSize}
	entry, found, err := mgr.index.Get(drKey)
	if err != nil {
		return next, err
	}
	_, inDiskPool, err := mgr.lookupDataRootValue(drKey)
	if err != nil {
		return next, err
	}

	switch {
	case !found && inDiskPool:
		// Still unconfirmed: jump past every remaining chunk of this
		// timestamp by seeking (Timestamp+1 ‖ 0...0).
		skipTo := weave.DiskPoolChunkKey{TimestampUs: dpKey.TimestampUs + 1}
		return kvstore.FirstCursor().WithKey(skipTo.Bytes()), nil

	case !found && !inDiskPool:
		if err := mgr.chunks.Delete(kv.Key); err != nil {
			return next, err
		}
		if err := mgr.blobs.Delete(dpKey.DataPathHash); err != nil {
			return next, err
		}
		mgr.m.Expired.Inc()
		return next, nil

	default: // found
		for _, p := range entry.Placements {
			if err := mgr.updater.UpdateChunksIndex(p.AbsoluteTxStart, val.RelativeEndOffset, dpKey.DataPathHash, p.TxRoot, val.DataRoot, p.TxPath, val.ChunkSize, val.TxSize); err != nil {
				return next, err
			}
		}
		if !inDiskPool {
			if err := mgr.chunks.Delete(kv.Key); err != nil {
				return next, err
			}
		}
		mgr.m.Promoted.Inc()
		return next, nil
	}
}

// lookupDataRootValue reports whether key is still present in
// DiskPoolDataRoots ("InDiskPool" in spec §4.7's case table).
func (mgr *Manager) lookupDataRootValue(key weave.DataRootKey) (weave.DiskPoolDataRootValue, bool, error) {
	v, err := mgr.getDataRootValue(key)
	if err != nil {
		if k, ok := weaveerr.KindOf(err); ok && k == weaveerr.NotFound {
			return weave.DiskPoolDataRootValue{}, false, nil
		}
		return weave.DiskPoolDataRootValue{}, false, err
	}
	return v, true, nil
}

// ExpireDataRoots implements §4.7's "expire disk-pool data roots": any
// data root whose timestamp + expiration has passed is dropped, and the
// total pool size is recomputed.
func (mgr *Manager) ExpireDataRoots(now time.Time) (expired int, newSize uint64, err error) {
	kvs, err := mgr.dataRoots.GetRange(zeroKeyBound, maxKeyBound)
	if err != nil {
		return 0, 0, err
	}
	cutoffUs := uint64(now.Add(-mgr.cfg.DiskPoolDataRootExpiration).UnixMicro())
	for _, kv := range kvs {
		v, err := decodeDataRootValue(kv.Value)
		if err != nil {
			return 0, 0, weaveerr.Wrap(weaveerr.Invalid, "diskpool: corrupt data root value", err)
		}
		if v.Confirmed() {
			continue // confirmed data roots are retired by the sync engine, not by expiry
		}
		if v.TimestampUs < cutoffUs {
			if err := mgr.dataRoots.Delete(kv.Key); err != nil {
				return 0, 0, err
			}
			expired++
			mgr.m.Expired.Inc()
		}
	}
	total, err := mgr.totalSize()
	if err != nil {
		return expired, 0, err
	}
	mgr.m.Size.Set(float64(total))
	return expired, total, nil
}
