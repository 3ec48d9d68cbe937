package syncengine

import (
	"context"

	"github.com/goomario/arweave/pkg/offset"
	"github.com/goomario/arweave/pkg/weave"
	"github.com/goomario/arweave/pkg/weaveerr"
)

// SizeTaggedTx is one (tx_id, tx_size) pair of a block's transaction list,
// in block order, as add_block's host-supplied size_tagged_txs argument.
type SizeTaggedTx struct {
	TxID   []byte
	TxSize uint64
}

// AddBlock implements spec §6's add_block(block, size_tagged_txs): index
// a block's transactions into TXIndex/TXOffsetIndex. AddTipBlock calls
// this for the tip block it is admitting, after join settles block_index
// (see addTipBlockLocked).
func (e *Engine) AddBlock(ctx context.Context, block BlockDescriptor, sizeTaggedTxs []SizeTaggedTx) error {
	var opErr error
	if err := e.ask(ctx, func(e *Engine) {
		opErr = e.addBlockLocked(block, sizeTaggedTxs)
	}); err != nil {
		return err
	}
	return opErr
}

func (e *Engine) addBlockLocked(block BlockDescriptor, sizeTaggedTxs []SizeTaggedTx) error {
	blockStart := uint64(0)
	for _, b := range e.blockIndex {
		if b.BlockHash == block.BlockHash {
			break
		}
		blockStart = b.CumulativeWeaveSize
	}
	cursor := blockStart
	for _, tx := range sizeTaggedTxs {
		txStart := offset.New(int64(cursor))
		txEnd := offset.New(int64(cursor + tx.TxSize))
		if err := putTXRecord(e.idx.TXIndex, tx.TxID, weave.TXRecord{AbsoluteTxEndOffset: txEnd, TxSize: tx.TxSize}); err != nil {
			return err
		}
		if err := putTXOffset(e.idx.TXOffsetIndex, txStart, tx.TxID); err != nil {
			return err
		}
		cursor += tx.TxSize
	}
	return nil
}

// AddDataRootToDiskPool implements add_data_root_to_disk_pool: admits a
// new (data_root‖tx_size) into DiskPoolDataRoots, or records tx_id
// against an existing pending entry.
func (e *Engine) AddDataRootToDiskPool(ctx context.Context, dataRoot weave.Hash, txSize uint64, txID string) error {
	var opErr error
	if err := e.ask(ctx, func(e *Engine) {
		key := weave.DataRootKey{DataRoot: dataRoot, TxSize: txSize}
		val, found, err := e.diskPoolDataRootValue(key)
		if err != nil {
			opErr = err
			return
		}
		if !found {
			val = weave.DiskPoolDataRootValue{TimestampUs: uint64(e.now().UnixMicro()), TxIDs: map[string]struct{}{}}
		} else if val.Confirmed() {
			return // already confirmed on chain: nothing to track
		}
		val.TxIDs[txID] = struct{}{}
		wire, err := weave.EncodeDiskPoolDataRootValue(val)
		if err != nil {
			opErr = err
			return
		}
		opErr = e.idx.DiskPoolDataRoots.Put(key.Bytes(), wire)
	}); err != nil {
		return err
	}
	return opErr
}

// MaybeDropDataRootFromDiskPool implements
// maybe_drop_data_root_from_disk_pool: removes tx_id from the entry's
// tracked mempool tx ids, deleting the entry entirely if it is left with
// no tracked tx ids and no admitted chunk bytes.
func (e *Engine) MaybeDropDataRootFromDiskPool(ctx context.Context, dataRoot weave.Hash, txSize uint64, txID string) error {
	var opErr error
	if err := e.ask(ctx, func(e *Engine) {
		key := weave.DataRootKey{DataRoot: dataRoot, TxSize: txSize}
		val, found, err := e.diskPoolDataRootValue(key)
		if err != nil {
			opErr = err
			return
		}
		if !found || val.Confirmed() {
			return
		}
		delete(val.TxIDs, txID)
		if len(val.TxIDs) == 0 && val.AccumulatedSize == 0 {
			opErr = e.idx.DiskPoolDataRoots.Delete(key.Bytes())
			return
		}
		wire, err := weave.EncodeDiskPoolDataRootValue(val)
		if err != nil {
			opErr = err
			return
		}
		opErr = e.idx.DiskPoolDataRoots.Put(key.Bytes(), wire)
	}); err != nil {
		return err
	}
	return opErr
}

// TxData is get_tx_data's reply: every chunk belonging to the tx,
// ordered by offset, concatenated by the caller.
type TxData struct {
	DataRoot weave.Hash
	TxSize   uint64
	Chunks   [][]byte
}

// GetTxData implements get_tx_data(tx_id): rejects outsized transactions
// per spec, otherwise walks TXIndex → ChunksIndex to assemble the tx's
// chunk bytes in order.
func (e *Engine) GetTxData(ctx context.Context, txID []byte) (TxData, error) {
	var result TxData
	var opErr error
	if err := e.ask(ctx, func(e *Engine) {
		rec, err := getTXRecord(e.idx.TXIndex, txID)
		if err != nil {
			opErr = weaveerr.New(weaveerr.NotFound, "syncengine: unknown tx_id")
			return
		}
		if rec.TxSize > e.cfg.MaxServedTxDataSize {
			opErr = weaveerr.New(weaveerr.TxDataTooBig, "syncengine: tx exceeds MAX_SERVED_TX_DATA_SIZE")
			return
		}
		result.TxSize = rec.TxSize
		txStart := rec.AbsoluteTxEndOffset.Sub(rec.TxSize)
		cursor := txStart
		for cursor.Less(rec.AbsoluteTxEndOffset) {
			end, crec, err := getPrevChunkRecord(e.idx.ChunksIndex, cursor.Add(1))
			if err != nil {
				opErr = weaveerr.New(weaveerr.NotFound, "syncengine: chunk missing for tx")
				return
			}
			chunk, _, err := e.blobs.Read(crec.DataPathHash)
			if err != nil {
				opErr = err
				return
			}
			result.Chunks = append(result.Chunks, chunk)
			result.DataRoot = crec.DataRoot
			cursor = end
		}
	}); err != nil {
		return TxData{}, err
	}
	return result, opErr
}

// GetTxOffset implements get_tx_offset(tx_id).
func (e *Engine) GetTxOffset(ctx context.Context, txID []byte) (uint64, uint64, error) {
	var end, size uint64
	var opErr error
	if err := e.ask(ctx, func(e *Engine) {
		rec, err := getTXRecord(e.idx.TXIndex, txID)
		if err != nil {
			opErr = weaveerr.New(weaveerr.NotFound, "syncengine: unknown tx_id")
			return
		}
		end, size = rec.AbsoluteTxEndOffset.Uint64(), rec.TxSize
	}); err != nil {
		return 0, 0, err
	}
	return end, size, opErr
}

// GetSyncRecordBinary implements get_sync_record_etf: the binary wire
// format capped at MAX_SHARED_INTERVALS intervals via probabilistic
// sampling (intervalset.Set.SerializeBinary already implements the cap).
func (e *Engine) GetSyncRecordBinary(ctx context.Context) ([]byte, error) {
	var out []byte
	err := e.ask(ctx, func(e *Engine) {
		out = e.syncRecord.SerializeBinary(e.cfg.MaxSharedIntervals, e.rng)
	})
	return out, err
}

// GetSyncRecordJSON implements get_sync_record_json.
func (e *Engine) GetSyncRecordJSON(ctx context.Context) ([]byte, error) {
	var out []byte
	var opErr error
	if err := e.ask(ctx, func(e *Engine) {
		out, opErr = e.syncRecord.SerializeJSON(e.cfg.MaxSharedIntervals, e.rng)
	}); err != nil {
		return nil, err
	}
	return out, opErr
}
