package syncengine

import (
	"encoding/json"

	"github.com/goomario/arweave/pkg/intervalset"
)

// State is the persisted state blob spec §6 names: (sync_record,
// block_index, disk_pool_data_roots, disk_pool_size). disk_pool_data_roots
// itself lives in the DiskPoolDataRoots column family, so here it is
// represented as that column family's raw KV dump to keep the blob
// self-contained across a cold restore with no other index populated yet.
type State struct {
	SyncRecord        []byte            `json:"sync_record"`
	BlockIndex        []BlockIndexEntry `json:"block_index"`
	DiskPoolDataRoots map[string][]byte `json:"disk_pool_data_roots"`
	DiskPoolSize      uint64            `json:"disk_pool_size"`
	WeaveSize         uint64            `json:"weave_size"`
}

func (e *Engine) snapshotState() State {
	s := State{
		BlockIndex:        append([]BlockIndexEntry(nil), e.blockIndex...),
		DiskPoolDataRoots: make(map[string][]byte),
		WeaveSize:         e.weaveSize,
	}
	// The §6 MAX_SHARED_INTERVALS cap and probabilistic sampling apply only
	// to the peer-facing get_sync_record_etf/_json wire protocol. The
	// persisted state blob must round-trip the exact set: since compaction
	// only fires once count(SyncRecord) exceeds
	// MaxSharedIntervals+ExtraBeforeCompaction, an ordinary sync record
	// frequently sits right at that cap, and sampling here would silently
	// drop a random subset of it on every join/add_tip_block/shutdown save.
	s.SyncRecord = e.syncRecord.SerializeBinary(e.syncRecord.Count(), e.rng)
	if kvs, err := e.idx.DiskPoolDataRoots.GetRange(zeroBound, maxBound); err == nil {
		var total uint64
		for _, kv := range kvs {
			s.DiskPoolDataRoots[string(kv.Key)] = kv.Value
			var v struct {
				AccumulatedSize uint64 `json:"accumulated_size"`
			}
			if json.Unmarshal(kv.Value, &v) == nil {
				total += v.AccumulatedSize
			}
		}
		s.DiskPoolSize = total
	}
	return s
}

func (e *Engine) restoreState(s State) {
	if rec, err := intervalset.DeserializeBinary(s.SyncRecord); err == nil {
		e.syncRecord = rec
	}
	e.blockIndex = s.BlockIndex
	e.weaveSize = s.WeaveSize
	e.joined = len(s.BlockIndex) > 0
	for k, v := range s.DiskPoolDataRoots {
		_ = e.idx.DiskPoolDataRoots.Put([]byte(k), v)
	}
}

var zeroBound = make([]byte, 40)
var maxBound = func() []byte {
	b := make([]byte, 41)
	for i := range b {
		b[i] = 0xff
	}
	return b
}()
