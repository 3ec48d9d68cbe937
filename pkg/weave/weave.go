// Package weave defines the data-model value types and key encodings for
// the seven logical indices named in spec §3, grounded on bee's pattern of
// small, immutable, comparable value types (pkg/swarm.Address/Chunk) rather
// than on any particular storage engine.
package weave

import (
	"bytes"
	"encoding/binary"
	"sort"

	"golang.org/x/crypto/sha3"

	"github.com/goomario/arweave/pkg/offset"
)

// HashSize is the width of a content-address hash used to key chunk blobs.
const HashSize = 32

// Hash is a content-address hash, e.g. of a data_path blob.
type Hash [HashSize]byte

// HashOf hashes data the way the disk pool and chunk store key their blobs,
// matching bee's own content-addressing hash (pkg/crypto, pkg/bmt/pool).
// Proof verification's own ChunkIdOf is supplied by the host Merkle
// collaborator (spec §6); this is purely the blob-store dedup key.
func HashOf(data []byte) Hash {
	return sha3.Sum256(data)
}

func (h Hash) Bytes() []byte { return h[:] }

func HashFromBytes(b []byte) (h Hash) {
	copy(h[:], b)
	return h
}

// DataRootKey is the concatenation of a data_root hash and its tx_size,
// the key of DataRootIndex and DiskPoolDataRoots. tx_size is encoded as a
// fixed 8-byte big-endian uint64, not in the NOTE_SIZE-wide form that
// offset keys use.
type DataRootKey struct {
	DataRoot Hash
	TxSize   uint64
}

// Bytes encodes the key as data_root ‖ big-endian tx_size.
func (k DataRootKey) Bytes() []byte {
	buf := make([]byte, HashSize+8)
	copy(buf, k.DataRoot[:])
	binary.BigEndian.PutUint64(buf[HashSize:], k.TxSize)
	return buf
}

func DataRootKeyFromBytes(b []byte) DataRootKey {
	var k DataRootKey
	copy(k.DataRoot[:], b[:HashSize])
	k.TxSize = binary.BigEndian.Uint64(b[HashSize:])
	return k
}

func (k DataRootKey) Equal(o DataRootKey) bool {
	return bytes.Equal(k.DataRoot[:], o.DataRoot[:]) && k.TxSize == o.TxSize
}

// ChunkRecord is the value stored under ChunksIndex[absolute_chunk_end_offset].
type ChunkRecord struct {
	DataPathHash        Hash
	TxRoot              Hash
	DataRoot            Hash
	TxPath              []byte
	ChunkRelativeOffset uint64 // offset of the chunk's start within its tx
	ChunkSize           uint64
}

// TxPlacement is a confirmed placement of a transaction: which block
// (tx_root) it is in, and its absolute start offset in the weave.
type TxPlacement struct {
	TxRoot          Hash
	AbsoluteTxStart offset.Offset
	TxPath          []byte
}

// DataRootIndexEntry is the value stored under DataRootIndex[DataRootKey]:
// the set of (tx_root, tx_start) placements a data root has been confirmed
// at, tx_root-major/tx_start-minor per spec §8's iteration-order note.
type DataRootIndexEntry struct {
	Placements []TxPlacement
}

// Has reports whether p's (TxRoot, AbsoluteTxStart) pair is already present.
func (e *DataRootIndexEntry) Has(p TxPlacement) bool {
	for _, existing := range e.Placements {
		if existing.TxRoot == p.TxRoot && existing.AbsoluteTxStart.Equal(p.AbsoluteTxStart) {
			return true
		}
	}
	return false
}

// Add appends p, keeping tx_root-major/tx_start-minor order.
func (e *DataRootIndexEntry) Add(p TxPlacement) {
	i := sort.Search(len(e.Placements), func(i int) bool {
		existing := e.Placements[i]
		if !bytes.Equal(existing.TxRoot[:], p.TxRoot[:]) {
			return bytes.Compare(existing.TxRoot[:], p.TxRoot[:]) >= 0
		}
		return existing.AbsoluteTxStart.Cmp(p.AbsoluteTxStart) >= 0
	})
	e.Placements = append(e.Placements, TxPlacement{})
	copy(e.Placements[i+1:], e.Placements[i:])
	e.Placements[i] = p
}

// RemoveFrom removes every placement with AbsoluteTxStart >= cutPoint,
// reporting whether the entry became empty (spec §4.6's "orphaned data
// roots").
func (e *DataRootIndexEntry) RemoveFrom(cutPoint offset.Offset) (emptied bool) {
	kept := e.Placements[:0:0]
	for _, p := range e.Placements {
		if p.AbsoluteTxStart.Less(cutPoint) {
			kept = append(kept, p)
		}
	}
	e.Placements = kept
	return len(e.Placements) == 0
}

// DataRootOffsetEntry is the value stored under
// DataRootOffsetIndex[absolute_block_start_offset].
type DataRootOffsetEntry struct {
	TxRoot    Hash
	BlockSize uint64
	Keys      map[DataRootKey]struct{}
}

// TXRecord is the value stored under TXIndex[tx_id].
type TXRecord struct {
	AbsoluteTxEndOffset offset.Offset
	TxSize              uint64
}

// DiskPoolChunkKey is the key of DiskPoolChunksIndex: timestamp (256-bit,
// microseconds) concatenated with the data_path hash, so iteration in key
// order processes the oldest pending chunks first.
type DiskPoolChunkKey struct {
	TimestampUs uint64
	DataPathHash Hash
}

func (k DiskPoolChunkKey) Bytes() []byte {
	buf := make([]byte, offset.Width+HashSize)
	ts := offset.New(int64(k.TimestampUs))
	copy(buf, ts.Bytes())
	copy(buf[offset.Width:], k.DataPathHash[:])
	return buf
}

func DiskPoolChunkKeyFromBytes(b []byte) DiskPoolChunkKey {
	var k DiskPoolChunkKey
	k.TimestampUs = offset.FromBytes(b[:offset.Width]).Uint64()
	copy(k.DataPathHash[:], b[offset.Width:offset.Width+HashSize])
	return k
}

// DiskPoolChunkValue is the value stored under DiskPoolChunksIndex.
type DiskPoolChunkValue struct {
	RelativeEndOffset uint64
	ChunkSize         uint64
	DataRoot          Hash
	TxSize            uint64
}

// DiskPoolDataRootValue is the value stored under DiskPoolDataRoots. A nil
// TxIDs set is the "not_set" sentinel: confirmed on chain, ignore mempool
// drops.
type DiskPoolDataRootValue struct {
	AccumulatedSize uint64
	TimestampUs     uint64
	TxIDs           map[string]struct{} // nil means "not_set" (confirmed)
}

// Confirmed reports the "not_set" sentinel described in spec §3.
func (v DiskPoolDataRootValue) Confirmed() bool { return v.TxIDs == nil }
