package syncengine

import (
	"context"

	"github.com/goomario/arweave/pkg/diskpool"
	"github.com/goomario/arweave/pkg/kvstore"
	"github.com/goomario/arweave/pkg/offset"
	"github.com/goomario/arweave/pkg/weave"
	"github.com/goomario/arweave/pkg/weaveerr"
)

// UpdateChunksIndex implements spec §4.5's update-chunks-index and
// diskpool.ChunksIndexUpdater. It must only ever run on the actor
// goroutine: both StoreFetchedChunk (via the fetch path) and the disk-pool
// manager invoke it from inside a mailbox-dispatched apply function.
func (e *Engine) UpdateChunksIndex(absoluteTxStart offset.Offset, relativeEndInTx uint64, dataPathHash, txRoot, dataRoot weave.Hash, txPath []byte, chunkSize, txSize uint64) error {
	absoluteEnd := absoluteTxStart.Add(relativeEndInTx)

	chunkIsNew := !e.syncRecord.IsInside(absoluteEnd)
	if !chunkIsNew {
		if _, err := getChunkRecord(e.idx.ChunksIndex, absoluteEnd); err == nil {
			return nil // NotUpdated: spec S7, idempotent re-store.
		}
	}

	rec := weave.ChunkRecord{
		DataPathHash:        dataPathHash,
		TxRoot:               txRoot,
		DataRoot:             dataRoot,
		TxPath:               txPath,
		ChunkRelativeOffset: relativeEndInTx - chunkSize,
		ChunkSize:            chunkSize,
	}
	if err := putChunkRecord(e.idx.ChunksIndex, absoluteEnd, rec); err != nil {
		return err
	}

	drKey := weave.DataRootKey{DataRoot: dataRoot, TxSize: txSize}
	if dpVal, found, err := e.diskPoolDataRootValue(drKey); err != nil {
		return err
	} else if found {
		dpChunkKey := weave.DiskPoolChunkKey{TimestampUs: dpVal.TimestampUs, DataPathHash: dataPathHash}
		if _, err := e.idx.DiskPoolChunksIndex.Get(dpChunkKey.Bytes()); err != nil {
			if !isNotFound(err) {
				return err
			}
			wire, err := weave.EncodeDiskPoolChunkValue(weave.DiskPoolChunkValue{
				RelativeEndOffset: relativeEndInTx, ChunkSize: chunkSize, DataRoot: dataRoot, TxSize: txSize,
			})
			if err != nil {
				return err
			}
			if err := e.idx.DiskPoolChunksIndex.Put(dpChunkKey.Bytes(), wire); err != nil {
				return err
			}
		}
	}

	e.syncRecord.Add(absoluteEnd, absoluteEnd.Sub(chunkSize))
	if e.syncRecord.Count() > e.cfg.MaxSharedIntervals+e.cfg.ExtraBeforeCompaction {
		e.requestCompaction()
	}
	return nil
}

func (e *Engine) diskPoolDataRootValue(key weave.DataRootKey) (weave.DiskPoolDataRootValue, bool, error) {
	b, err := e.idx.DiskPoolDataRoots.Get(key.Bytes())
	if err != nil {
		if isNotFound(err) {
			return weave.DiskPoolDataRootValue{}, false, nil
		}
		return weave.DiskPoolDataRootValue{}, false, err
	}
	v, err := weave.DecodeDiskPoolDataRootValue(b)
	if err != nil {
		return weave.DiskPoolDataRootValue{}, false, err
	}
	return v, true, nil
}

// requestCompaction implements spec §4.8: compact the sync record and
// remember absorbed gaps in MissingChunksIndex.
func (e *Engine) requestCompaction() {
	absorbed, compacted := e.syncRecord.Compact(e.cfg.MaxSharedIntervals)
	e.syncRecord = compacted
	for _, gap := range absorbed {
		_ = e.idx.MissingChunksIndex.Put(gap.End.Bytes(), gap.Start.Bytes())
	}
	if len(absorbed) > 0 {
		e.missingCur = kvstore.FirstCursor().WithKey(absorbed[0].End.Bytes())
	}
	e.m.Compactions.Inc()
}

// withDefaultTimeout applies cfg.DefaultAdmitChunkTimeout as ctx's deadline
// when the caller hasn't already set one of its own, per §5 "Timeouts".
func (e *Engine) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.cfg.DefaultAdmitChunkTimeout)
}

// askTimed runs fn through ask under the §5 default admission timeout,
// translating a blown deadline into weaveerr.TimedOut rather than the raw
// context error, so callers can dispatch on it via weaveerr.KindOf instead
// of comparing against ctx.Err() themselves.
func (e *Engine) askTimed(ctx context.Context, opName string, fn func(e *Engine)) error {
	ctx, cancel := e.withDefaultTimeout(ctx)
	defer cancel()
	if err := e.ask(ctx, fn); err != nil {
		if ctx.Err() != nil {
			return weaveerr.New(weaveerr.TimedOut, "syncengine: "+opName+" timed out")
		}
		return err
	}
	return nil
}

// StoreFetchedChunk implements the public add_chunk(proof[, timeout]) call
// (spec.md's own store_fetched_chunk): it validates a chunk against the
// block placement recovered via get_prev(DataRootOffsetIndex) using a full
// Merkle proof (tx_root, tx_path, data_path), then runs
// update-chunks-index. sync-one itself drives this path directly (see
// tasks.go's addChunkLocked call); this export is for a caller that
// already holds a full proof obtained some other way (e.g. replaying one
// fetched out of band). For a host that only knows a chunk's
// (data_root, offset_in_tx, tx_size) — §4.5's separate "Admission"
// procedure — use AdmitChunk instead.
func (e *Engine) StoreFetchedChunk(ctx context.Context, txRoot weave.Hash, txPath, dataPath []byte, leftBound uint64, chunk []byte) error {
	var opErr error
	if err := e.askTimed(ctx, "add_chunk", func(e *Engine) {
		opErr = e.addChunkLocked(txRoot, txPath, dataPath, leftBound, chunk)
	}); err != nil {
		return err
	}
	return opErr
}

func (e *Engine) addChunkLocked(txRoot weave.Hash, txPath, dataPath []byte, leftBound uint64, chunk []byte) error {
	if !e.joined {
		return weaveerr.New(weaveerr.NotJoined, "syncengine: not yet joined")
	}
	blockStart, entry, err := getPrevDataRootOffsetEntry(e.idx.DataRootOffsetIndex, offset.New(int64(leftBound)))
	if err != nil {
		return weaveerr.New(weaveerr.Invalid, "syncengine: no block covers offset")
	}
	offsetInBlock := leftBound - blockStart.Uint64()

	res, err := e.validator.ValidateProof(txRoot, txPath, dataPath, offsetInBlock, entry.BlockSize, chunk)
	if err != nil {
		return err
	}

	absoluteTxStart := blockStart.Add(res.TxStart)
	drKey := weave.DataRootKey{DataRoot: res.DataRoot, TxSize: res.TxSize}
	if _, ok := entry.Keys[drKey]; !ok {
		entry.Keys[drKey] = struct{}{}
		if err := putDataRootOffsetEntry(e.idx.DataRootOffsetIndex, blockStart, entry); err != nil {
			return err
		}
	}
	drEntry, err := getDataRootIndexEntry(e.idx.DataRootIndex, drKey)
	if err != nil {
		if !isNotFound(err) {
			return err
		}
		drEntry = &weave.DataRootIndexEntry{}
	}
	placement := weave.TxPlacement{TxRoot: txRoot, AbsoluteTxStart: absoluteTxStart, TxPath: txPath}
	if !drEntry.Has(placement) {
		drEntry.Add(placement)
		if err := putDataRootIndexEntry(e.idx.DataRootIndex, drKey, drEntry); err != nil {
			return err
		}
	}

	dataPathHash := weave.HashOf(dataPath)
	if err := e.UpdateChunksIndex(absoluteTxStart, res.ChunkEnd, dataPathHash, txRoot, res.DataRoot, txPath, uint64(len(chunk)), res.TxSize); err != nil {
		return err
	}
	return e.blobs.Write(dataPathHash, chunk, dataPath)
}

// AdmitResult reports which path Engine.AdmitChunk's admission took,
// mirroring diskpool.AdmitResult at the engine's public boundary so
// callers outside pkg/syncengine don't need to import pkg/diskpool just to
// read it.
type AdmitResult int

const (
	AdmitConfirmed AdmitResult = iota // data root already confirmed: chunk went straight to ChunksIndex
	AdmitPooled                       // data root unconfirmed: chunk buffered in the disk pool
)

// AdmitChunk implements spec §4.5's "Admission" procedure: a host submits
// a chunk it already knows via (data_root, data_path, chunk, offset_in_tx,
// tx_size), without needing the full tx_root/tx_path Merkle proof
// StoreFetchedChunk requires — the engine itself resolves the placement,
// either confirmed (DataRootIndex) or still pending (the disk pool).
// Diskpool.Admit mutates DiskPoolDataRoots/DiskPoolChunksIndex and, on a
// confirmed placement, calls back into UpdateChunksIndex, so this runs on
// the actor like every other index mutation.
func (e *Engine) AdmitChunk(ctx context.Context, dataRoot weave.Hash, txSize, offsetInTx uint64, dataPath, chunk []byte) (AdmitResult, error) {
	var res diskpool.AdmitResult
	var opErr error
	if err := e.askTimed(ctx, "admit_chunk", func(e *Engine) {
		res, opErr = e.diskPool.Admit(dataRoot, txSize, offsetInTx, dataPath, chunk, !e.checkFreeSpace(e.freeSpace()))
	}); err != nil {
		return 0, err
	}
	if opErr != nil {
		return 0, opErr
	}
	if res == diskpool.AdmitConfirmed {
		return AdmitConfirmed, nil
	}
	return AdmitPooled, nil
}
