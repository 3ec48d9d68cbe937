package syncengine

import (
	"context"

	"github.com/goomario/arweave/pkg/offset"
	"github.com/goomario/arweave/pkg/weave"
	"github.com/goomario/arweave/pkg/weaveerr"
)

// BlockDescriptor is one block in a host-supplied block_index: its
// cumulative weave size (i.e. the block's end offset) and the tx_root it
// carries. join/add_tip_block use these to (re)seed DataRootOffsetIndex.
type BlockDescriptor struct {
	BlockHash           weave.Hash
	CumulativeWeaveSize uint64
	TxRoot              weave.Hash
}

func (d BlockDescriptor) toEntry() BlockIndexEntry {
	return BlockIndexEntry{BlockHash: d.BlockHash, CumulativeWeaveSize: d.CumulativeWeaveSize, TxRoot: d.TxRoot}
}

// Join implements spec §4.6's join(new_block_index).
func (e *Engine) Join(ctx context.Context, newBlockIndex []BlockDescriptor) error {
	var opErr error
	if err := e.ask(ctx, func(e *Engine) {
		opErr = e.joinLocked(newBlockIndex)
	}); err != nil {
		return err
	}
	return opErr
}

func (e *Engine) joinLocked(newBlockIndex []BlockDescriptor) error {
	if !e.joined {
		return e.seedFresh(newBlockIndex)
	}

	cutIdx, found := intersect(e.blockIndex, newBlockIndex)
	if !found {
		return weaveerr.New(weaveerr.FatalJoinNoIntersection, "syncengine: no common ancestor within TRACK_CONFIRMATIONS")
	}
	cutPoint := e.blockIndex[cutIdx].CumulativeWeaveSize
	prevWeaveSize := e.weaveSize

	orphanedDataRoots, err := e.removeOrphans(offset.New(int64(cutPoint)), offset.New(int64(prevWeaveSize)))
	if err != nil {
		return err
	}
	for _, drKey := range orphanedDataRoots {
		if err := e.diskPool.RefreshTimestamp(drKey, e.now()); err != nil {
			return err
		}
	}
	e.syncRecord.Cut(offset.New(int64(cutPoint)))
	if cutPoint < prevWeaveSize {
		e.m.JoinReorgs.Inc()
	}

	e.blockIndex = e.blockIndex[:cutIdx+1]
	return e.reseedFrom(newBlockIndex, cutPoint)
}

// seedFresh implements the "current block_index is empty" branch of §4.6.
func (e *Engine) seedFresh(newBlockIndex []BlockDescriptor) error {
	if err := e.reseedFrom(newBlockIndex, 0); err != nil {
		return err
	}
	e.joined = true
	return nil
}

// reseedFrom seeds DataRootOffsetIndex from blockStart onward with an
// empty key set, oldest to newest, and updates weaveSize/blockIndex.
func (e *Engine) reseedFrom(newBlockIndex []BlockDescriptor, blockStart uint64) error {
	cursor := blockStart
	for _, b := range newBlockIndex {
		if b.CumulativeWeaveSize <= blockStart {
			continue
		}
		blockSize := b.CumulativeWeaveSize - cursor
		entry := weave.DataRootOffsetEntry{TxRoot: b.TxRoot, BlockSize: blockSize, Keys: map[weave.DataRootKey]struct{}{}}
		if err := putDataRootOffsetEntry(e.idx.DataRootOffsetIndex, offset.New(int64(cursor)), entry); err != nil {
			return err
		}
		e.blockIndex = append(e.blockIndex, b.toEntry())
		cursor = b.CumulativeWeaveSize
	}
	e.weaveSize = cursor
	return nil
}

// intersect finds the highest block present in both indices, matched by
// (CumulativeWeaveSize, BlockHash) equality, per §4.6.
func intersect(old []BlockIndexEntry, fresh []BlockDescriptor) (int, bool) {
	freshByOffset := make(map[uint64]weave.Hash, len(fresh))
	for _, b := range fresh {
		freshByOffset[b.CumulativeWeaveSize] = b.BlockHash
	}
	for i := len(old) - 1; i >= 0; i-- {
		if h, ok := freshByOffset[old[i].CumulativeWeaveSize]; ok && h == old[i].BlockHash {
			return i, true
		}
	}
	return 0, false
}

// removeOrphans implements §4.6's remove_orphans(cut_point, prev): deletes
// every ChunksIndex/TXOffsetIndex/DataRootOffsetIndex entry above
// cut_point, scavenges orphaned tx ids and data roots.
func (e *Engine) removeOrphans(cutPoint, prev offset.Offset) (orphanedDataRoots []weave.DataRootKey, err error) {
	chunksLo := cutPoint.Add(1)
	chunksHi := prev.Add(1)
	if err := e.idx.ChunksIndex.DeleteRange(chunksLo.Bytes(), chunksHi.Bytes()); err != nil {
		return nil, err
	}

	// TXOffsetIndex is keyed by tx START offset: a tx starting exactly at
	// cut_point belongs to the now-orphaned block and must go too, so the
	// range here (unlike ChunksIndex above) is inclusive of cut_point.
	txOffsetEntries, err := getTXOffsetRange(e.idx.TXOffsetIndex, cutPoint, chunksHi)
	if err != nil {
		return nil, err
	}
	for _, kv := range txOffsetEntries {
		if err := e.idx.TXOffsetIndex.Delete(kv.Key); err != nil {
			return nil, err
		}
		if err := e.idx.TXIndex.Delete(kv.Value); err != nil {
			return nil, err
		}
	}

	drOffsetEntries, err := e.idx.DataRootOffsetIndex.GetRange(cutPoint.Bytes(), chunksHi.Bytes())
	if err != nil {
		return nil, err
	}
	emptiedSet := map[weave.DataRootKey]struct{}{}
	for _, kv := range drOffsetEntries {
		entry, err := getDataRootOffsetEntry(e.idx.DataRootOffsetIndex, offset.FromBytes(kv.Key))
		if err != nil {
			continue
		}
		for drKey := range entry.Keys {
			drEntry, err := getDataRootIndexEntry(e.idx.DataRootIndex, drKey)
			if err != nil {
				if isNotFound(err) {
					continue
				}
				return nil, err
			}
			if emptied := drEntry.RemoveFrom(cutPoint); emptied {
				if err := e.idx.DataRootIndex.Delete(drKey.Bytes()); err != nil {
					return nil, err
				}
				emptiedSet[drKey] = struct{}{}
			} else if err := putDataRootIndexEntry(e.idx.DataRootIndex, drKey, drEntry); err != nil {
				return nil, err
			}
		}
		if err := e.idx.DataRootOffsetIndex.Delete(kv.Key); err != nil {
			return nil, err
		}
	}
	for k := range emptiedSet {
		orphanedDataRoots = append(orphanedDataRoots, k)
	}
	return orphanedDataRoots, nil
}

// AddTipBlock implements spec §4.6's add_tip_block(new_block_tx_pairs,
// new_block_index): a join applied incrementally, using the same trailing
// block-index window join(new_block_index) does to find the cut point,
// indexing the new tip block's transactions the same way add_block does,
// and confirming any disk-pool data roots the new block placed. newBlockIndex
// must be non-empty and end with the newly-announced tip block.
func (e *Engine) AddTipBlock(ctx context.Context, newBlockIndex []BlockDescriptor, sizeTaggedTxs []SizeTaggedTx, confirmedDataRoots []weave.DataRootKey) error {
	var opErr error
	if err := e.ask(ctx, func(e *Engine) {
		opErr = e.addTipBlockLocked(newBlockIndex, sizeTaggedTxs, confirmedDataRoots)
	}); err != nil {
		return err
	}
	return opErr
}

// addTipBlockLocked marks the newly confirmed data roots' disk-pool
// entries "not_set" with AccumulatedSize zeroed, per spec line 164's
// "reduces disk_pool_size ... replacing them in place": the entry stays
// (so a later re-announcement of the same data root is still a no-op)
// but no longer counts toward the global disk-pool size cap.
func (e *Engine) addTipBlockLocked(newBlockIndex []BlockDescriptor, sizeTaggedTxs []SizeTaggedTx, confirmedDataRoots []weave.DataRootKey) error {
	if len(newBlockIndex) == 0 {
		return weaveerr.New(weaveerr.Invalid, "syncengine: add_tip_block requires a non-empty block index")
	}
	tip := newBlockIndex[len(newBlockIndex)-1]

	// joinLocked runs first: it settles (and, on a reorg, rewrites)
	// e.blockIndex up through tip. addBlockLocked's blockStart scan then
	// walks the now-settled e.blockIndex to find tip's immediate
	// predecessor, which is correct whether or not this call triggered a
	// reorg.
	if err := e.joinLocked(newBlockIndex); err != nil {
		return err
	}
	if err := e.addBlockLocked(tip, sizeTaggedTxs); err != nil {
		return err
	}
	for _, drKey := range confirmedDataRoots {
		val, found, err := e.diskPoolDataRootValue(drKey)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		val.AccumulatedSize = 0
		val.TxIDs = nil // mark confirmed: the "not_set" sentinel, spec §3
		wire, err := weave.EncodeDiskPoolDataRootValue(val)
		if err != nil {
			return err
		}
		if err := e.idx.DiskPoolDataRoots.Put(drKey.Bytes(), wire); err != nil {
			return err
		}
	}
	return nil
}
