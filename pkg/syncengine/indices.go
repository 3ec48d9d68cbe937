package syncengine

import (
	"encoding/json"

	"github.com/goomario/arweave/pkg/kvstore"
	"github.com/goomario/arweave/pkg/offset"
	"github.com/goomario/arweave/pkg/weave"
	"github.com/goomario/arweave/pkg/weaveerr"
)

// Indices bundles the seven column families spec §6 requires the host to
// open plus the disk pool's DiskPoolDataRoots store, each a distinct
// kvstore.Store. Grounded on the teacher's
// leveldb.store-per-concern convention (pkg/statestore/leveldb) rather
// than a single multi-prefix database.
type Indices struct {
	ChunksIndex         kvstore.Store
	MissingChunksIndex  kvstore.Store
	DataRootIndex       kvstore.Store
	DataRootOffsetIndex kvstore.Store
	TXIndex             kvstore.Store
	TXOffsetIndex       kvstore.Store
	DiskPoolChunksIndex kvstore.Store
	DiskPoolDataRoots   kvstore.Store
}

func isNotFound(err error) bool {
	k, ok := weaveerr.KindOf(err)
	return ok && k == weaveerr.NotFound
}

// dataRootIndexView adapts a DataRootIndex column family to
// diskpool.DataRootIndex, so a *diskpool.Manager can be constructed with
// the same store the engine itself reads from.
type dataRootIndexView struct {
	store kvstore.Store
}

// NewDataRootIndexView returns the diskpool.DataRootIndex view of store,
// for the host to pass to diskpool.New when wiring a Manager ahead of the
// Engine that will drive it.
func NewDataRootIndexView(store kvstore.Store) dataRootIndexView {
	return dataRootIndexView{store: store}
}

func (v dataRootIndexView) Get(key weave.DataRootKey) (*weave.DataRootIndexEntry, bool, error) {
	e, err := getDataRootIndexEntry(v.store, key)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return e, true, nil
}

type chunkRecordWire struct {
	DataPathHash        weave.Hash `json:"data_path_hash"`
	TxRoot              weave.Hash `json:"tx_root"`
	DataRoot            weave.Hash `json:"data_root"`
	TxPath              []byte     `json:"tx_path"`
	ChunkRelativeOffset uint64     `json:"chunk_relative_offset"`
	ChunkSize           uint64     `json:"chunk_size"`
}

func putChunkRecord(s kvstore.Store, end offset.Offset, rec weave.ChunkRecord) error {
	b, err := json.Marshal(chunkRecordWire(rec))
	if err != nil {
		return err
	}
	return s.Put(end.Bytes(), b)
}

func getChunkRecord(s kvstore.Store, end offset.Offset) (weave.ChunkRecord, error) {
	b, err := s.Get(end.Bytes())
	if err != nil {
		return weave.ChunkRecord{}, err
	}
	var w chunkRecordWire
	if err := json.Unmarshal(b, &w); err != nil {
		return weave.ChunkRecord{}, err
	}
	return weave.ChunkRecord(w), nil
}

// getPrevChunkRecord returns the ChunksIndex entry covering offset o via
// get_next(ChunksIndex, o): a chunk is keyed by its END offset, so the
// first key >= o is the chunk that can contain o.
func getPrevChunkRecord(s kvstore.Store, o offset.Offset) (offset.Offset, weave.ChunkRecord, error) {
	kv, err := s.GetNext(o.Bytes())
	if err != nil {
		return offset.Zero, weave.ChunkRecord{}, err
	}
	end := offset.FromBytes(kv.Key)
	var w chunkRecordWire
	if err := json.Unmarshal(kv.Value, &w); err != nil {
		return offset.Zero, weave.ChunkRecord{}, err
	}
	return end, weave.ChunkRecord(w), nil
}

type dataRootOffsetEntryJSON struct {
	TxRoot    weave.Hash `json:"tx_root"`
	BlockSize uint64     `json:"block_size"`
	Keys      [][]byte   `json:"keys"` // DataRootKey.Bytes() per key (base64 in JSON), see encodeDRKeyToken
}

func encodeDRKeyToken(k weave.DataRootKey) []byte {
	return k.Bytes()
}

func putDataRootOffsetEntry(s kvstore.Store, blockStart offset.Offset, e weave.DataRootOffsetEntry) error {
	w := dataRootOffsetEntryJSON{TxRoot: e.TxRoot, BlockSize: e.BlockSize}
	for k := range e.Keys {
		w.Keys = append(w.Keys, encodeDRKeyToken(k))
	}
	b, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return s.Put(blockStart.Bytes(), b)
}

func getDataRootOffsetEntry(s kvstore.Store, blockStart offset.Offset) (weave.DataRootOffsetEntry, error) {
	b, err := s.Get(blockStart.Bytes())
	if err != nil {
		return weave.DataRootOffsetEntry{}, err
	}
	var w dataRootOffsetEntryJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return weave.DataRootOffsetEntry{}, err
	}
	e := weave.DataRootOffsetEntry{TxRoot: w.TxRoot, BlockSize: w.BlockSize, Keys: map[weave.DataRootKey]struct{}{}}
	for _, tok := range w.Keys {
		e.Keys[weave.DataRootKeyFromBytes([]byte(tok))] = struct{}{}
	}
	return e, nil
}

// getPrevDataRootOffsetEntry implements §4.4 step 5's
// get_prev(DataRootOffsetIndex, leftBound).
func getPrevDataRootOffsetEntry(s kvstore.Store, at offset.Offset) (offset.Offset, weave.DataRootOffsetEntry, error) {
	kv, err := s.GetPrev(at.Bytes())
	if err != nil {
		return offset.Zero, weave.DataRootOffsetEntry{}, err
	}
	blockStart := offset.FromBytes(kv.Key)
	var w dataRootOffsetEntryJSON
	if err := json.Unmarshal(kv.Value, &w); err != nil {
		return offset.Zero, weave.DataRootOffsetEntry{}, err
	}
	e := weave.DataRootOffsetEntry{TxRoot: w.TxRoot, BlockSize: w.BlockSize, Keys: map[weave.DataRootKey]struct{}{}}
	for _, tok := range w.Keys {
		e.Keys[weave.DataRootKeyFromBytes([]byte(tok))] = struct{}{}
	}
	return blockStart, e, nil
}

type dataRootIndexEntryJSON struct {
	Placements []placementJSON `json:"placements"`
}

type placementJSON struct {
	TxRoot          weave.Hash `json:"tx_root"`
	AbsoluteTxStart []byte     `json:"absolute_tx_start"`
	TxPath          []byte     `json:"tx_path"`
}

func putDataRootIndexEntry(s kvstore.Store, key weave.DataRootKey, e *weave.DataRootIndexEntry) error {
	w := dataRootIndexEntryJSON{}
	for _, p := range e.Placements {
		w.Placements = append(w.Placements, placementJSON{TxRoot: p.TxRoot, AbsoluteTxStart: p.AbsoluteTxStart.Bytes(), TxPath: p.TxPath})
	}
	b, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return s.Put(key.Bytes(), b)
}

func getDataRootIndexEntry(s kvstore.Store, key weave.DataRootKey) (*weave.DataRootIndexEntry, error) {
	b, err := s.Get(key.Bytes())
	if err != nil {
		return nil, err
	}
	var w dataRootIndexEntryJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, err
	}
	e := &weave.DataRootIndexEntry{}
	for _, p := range w.Placements {
		e.Placements = append(e.Placements, weave.TxPlacement{TxRoot: p.TxRoot, AbsoluteTxStart: offset.FromBytes(p.AbsoluteTxStart), TxPath: p.TxPath})
	}
	return e, nil
}

type txRecordWire struct {
	AbsoluteTxEndOffset []byte `json:"absolute_tx_end_offset"`
	TxSize              uint64 `json:"tx_size"`
}

func putTXRecord(s kvstore.Store, txID []byte, rec weave.TXRecord) error {
	b, err := json.Marshal(txRecordWire{AbsoluteTxEndOffset: rec.AbsoluteTxEndOffset.Bytes(), TxSize: rec.TxSize})
	if err != nil {
		return err
	}
	return s.Put(txID, b)
}

func getTXRecord(s kvstore.Store, txID []byte) (weave.TXRecord, error) {
	b, err := s.Get(txID)
	if err != nil {
		return weave.TXRecord{}, err
	}
	var w txRecordWire
	if err := json.Unmarshal(b, &w); err != nil {
		return weave.TXRecord{}, err
	}
	return weave.TXRecord{AbsoluteTxEndOffset: offset.FromBytes(w.AbsoluteTxEndOffset), TxSize: w.TxSize}, nil
}

// putTXOffset / getTXOffsetRange implement the TXOffsetIndex reverse
// lookup (absolute_tx_start_offset -> tx_id) used to scavenge orphaned
// tx ids during reorg (§4.6).
func putTXOffset(s kvstore.Store, start offset.Offset, txID []byte) error {
	return s.Put(start.Bytes(), txID)
}

func getTXOffsetRange(s kvstore.Store, lo, hi offset.Offset) ([]kvstore.KV, error) {
	return s.GetRange(lo.Bytes(), hi.Bytes())
}
