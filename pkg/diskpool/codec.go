package diskpool

import (
	"time"

	"github.com/goomario/arweave/pkg/weave"
	"github.com/goomario/arweave/pkg/weaveerr"
)

func (mgr *Manager) getDataRootValue(key weave.DataRootKey) (weave.DiskPoolDataRootValue, error) {
	b, err := mgr.dataRoots.Get(key.Bytes())
	if err != nil {
		return weave.DiskPoolDataRootValue{}, err
	}
	return weave.DecodeDiskPoolDataRootValue(b)
}

func (mgr *Manager) putDataRootValue(key weave.DataRootKey, v weave.DiskPoolDataRootValue) error {
	b, err := weave.EncodeDiskPoolDataRootValue(v)
	if err != nil {
		return err
	}
	return mgr.dataRoots.Put(key.Bytes(), b)
}

// RefreshTimestamp resets key's disk-pool entry to now, giving it a fresh
// expiration window under ExpireDataRoots. A key with no disk-pool entry
// (never submitted, already confirmed and dropped, or already expired) is
// a silent no-op: there is nothing left to extend.
func (mgr *Manager) RefreshTimestamp(key weave.DataRootKey, now time.Time) error {
	v, err := mgr.getDataRootValue(key)
	if err != nil {
		if k, ok := weaveerr.KindOf(err); ok && k == weaveerr.NotFound {
			return nil
		}
		return err
	}
	v.TimestampUs = uint64(now.UnixMicro())
	return mgr.putDataRootValue(key, v)
}

func (mgr *Manager) putDiskPoolChunk(key weave.DiskPoolChunkKey, v weave.DiskPoolChunkValue) error {
	b, err := weave.EncodeDiskPoolChunkValue(v)
	if err != nil {
		return err
	}
	return mgr.chunks.Put(key.Bytes(), b)
}

func decodeDiskPoolChunkValue(b []byte) (weave.DiskPoolChunkValue, error) {
	return weave.DecodeDiskPoolChunkValue(b)
}

func decodeDataRootValue(b []byte) (weave.DiskPoolDataRootValue, error) {
	return weave.DecodeDiskPoolDataRootValue(b)
}

// totalSize sums AccumulatedSize across every tracked data root with a
// linear scan. It runs once per pooled admission (the MAX_DISK_POOL_BUFFER
// check) and once per ExpireDataRoots sweep.
func (mgr *Manager) totalSize() (uint64, error) {
	kvs, err := mgr.dataRoots.GetRange(zeroKeyBound, maxKeyBound)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, kv := range kvs {
		v, err := decodeDataRootValue(kv.Value)
		if err != nil {
			return 0, weaveerr.Wrap(weaveerr.Invalid, "diskpool: corrupt data root value", err)
		}
		total += v.AccumulatedSize
	}
	return total, nil
}

var zeroKeyBound = make([]byte, weave.HashSize+8)

// maxKeyBound is one byte longer than any real DataRootKey so that the
// exclusive upper bound of GetRange never excludes the all-0xff key.
var maxKeyBound = bytesAllFF(weave.HashSize + 8 + 1)

func bytesAllFF(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 0xff
	}
	return b
}
