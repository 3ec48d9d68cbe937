package syncengine

import (
	"github.com/goomario/arweave/pkg/offset"
	"github.com/goomario/arweave/pkg/weave"
	"github.com/goomario/arweave/pkg/weaveerr"
)

// ChunkResult is get_chunk's reply: everything a peer needs to re-verify
// the chunk independently (tx_root, tx_path, data_path, chunk bytes).
type ChunkResult struct {
	TxRoot   weave.Hash
	TxPath   []byte
	DataPath []byte
	Chunk    []byte
}

// GetChunk implements spec §4.4/§5/§9's get_chunk_by_offset fast path: it
// never touches the actor's mailbox, relying solely on the KV store's
// get_next/get_prev atomicity (the handles in e.idx/e.blobs are safe for
// concurrent use from any goroutine once Run has started).
func (e *Engine) GetChunk(absoluteOffset uint64) (ChunkResult, error) {
	at := offset.New(int64(absoluteOffset))
	end, rec, err := getPrevChunkRecord(e.idx.ChunksIndex, at)
	if err != nil {
		return ChunkResult{}, weaveerr.New(weaveerr.ChunkNotFound, "syncengine: no chunk covers offset")
	}
	start := end.Sub(rec.ChunkSize)
	if !start.Less(at) {
		return ChunkResult{}, weaveerr.New(weaveerr.ChunkNotFound, "syncengine: offset falls in a gap")
	}
	chunk, dataPath, err := e.blobs.Read(rec.DataPathHash)
	if err != nil {
		return ChunkResult{}, err
	}
	return ChunkResult{TxRoot: rec.TxRoot, TxPath: rec.TxPath, DataPath: dataPath, Chunk: chunk}, nil
}

// GetTxRoot implements §4.4/§5/§9's get_tx_root_at_offset fast path: the
// block covering absoluteOffset's tx_root, recovered the same way
// add_chunk recovers block placement (get_prev(DataRootOffsetIndex, n)).
func (e *Engine) GetTxRoot(absoluteOffset uint64) (weave.Hash, error) {
	_, entry, err := getPrevDataRootOffsetEntry(e.idx.DataRootOffsetIndex, offset.New(int64(absoluteOffset)))
	if err != nil {
		return weave.Hash{}, weaveerr.New(weaveerr.NotFound, "syncengine: no block covers offset")
	}
	return entry.TxRoot, nil
}
