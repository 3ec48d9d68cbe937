// Package proof implements the §4.3 validator: given a tx_path and a
// data_path it locates the chunk inside a block and inside its
// transaction and confirms the chunk's content hash matches, without
// itself building or walking a Merkle tree (tree construction is an
// external collaborator named by spec §6). Grounded on the teacher's
// pkg/bmt interface shape (a Hasher/Verifier boundary kept separate from
// the tree implementation), though no bmt algorithm is ported.
package proof

import (
	"github.com/goomario/arweave/pkg/weave"
	"github.com/goomario/arweave/pkg/weaveerr"
)

// Merkle is the host-supplied tree/path verifier spec §6 names as an
// external collaborator. VerifyTxPath checks a tx_path against a tx_root
// and returns the transaction's placement within the block; VerifyDataPath
// checks a data_path against a data_root and returns the chunk's
// placement within the transaction. ChunkIdOf derives the expected
// content id for a chunk's bytes, in whatever hash the tree uses (not
// necessarily weave.HashOf, which is only the blob-store dedup key).
type Merkle interface {
	VerifyTxPath(txRoot weave.Hash, txPath []byte, offsetInBlock, blockSize uint64) (dataRoot weave.Hash, txStart, txEnd uint64, err error)
	VerifyDataPath(dataRoot weave.Hash, dataPath []byte, offsetInTx, txSize uint64) (chunkID weave.Hash, chunkStart, chunkEnd uint64, err error)
	ChunkIdOf(chunk []byte) weave.Hash
}

// Result is the outcome of a successful validate_proof call.
type Result struct {
	DataRoot  weave.Hash
	TxStart   uint64
	ChunkEnd  uint64
	TxSize    uint64
}

// Validator runs validate_proof / validate_data_path against a Merkle
// collaborator and the deployment's maximum chunk size.
type Validator struct {
	merkle        Merkle
	dataChunkSize uint64
}

// New returns a Validator. dataChunkSize is the deployment's
// DATA_CHUNK_SIZE constant (spec §6).
func New(merkle Merkle, dataChunkSize uint64) *Validator {
	return &Validator{merkle: merkle, dataChunkSize: dataChunkSize}
}

// ValidateProof implements spec §4.3's validate_proof.
func (v *Validator) ValidateProof(txRoot weave.Hash, txPath, dataPath []byte, offsetInBlock, blockSize uint64, chunk []byte) (Result, error) {
	dataRoot, txStart, txEnd, err := v.merkle.VerifyTxPath(txRoot, txPath, offsetInBlock, blockSize)
	if err != nil || txEnd <= txStart || offsetInBlock < txStart {
		return Result{}, weaveerr.New(weaveerr.InvalidProof, "proof: invalid tx_path")
	}
	chunkOffsetInTx := offsetInBlock - txStart
	txSize := txEnd - txStart

	chunkID, chunkStart, chunkEnd, err := v.merkle.VerifyDataPath(dataRoot, dataPath, chunkOffsetInTx, txSize)
	if err != nil {
		return Result{}, weaveerr.New(weaveerr.InvalidProof, "proof: invalid data_path")
	}
	if err := v.checkChunk(chunkID, chunkStart, chunkEnd, chunk); err != nil {
		return Result{}, err
	}
	return Result{DataRoot: dataRoot, TxStart: txStart, ChunkEnd: chunkEnd, TxSize: txSize}, nil
}

// ValidateDataPath implements spec §4.3's validate_data_path: the
// single-transaction case of ValidateProof, used by chunk admission
// (§4.5) where only a data_root (not a full block placement) is known.
func (v *Validator) ValidateDataPath(dataRoot weave.Hash, offsetInTx, txSize uint64, dataPath []byte, chunk []byte) (chunkEnd uint64, err error) {
	chunkID, chunkStart, chunkEnd, err := v.merkle.VerifyDataPath(dataRoot, dataPath, offsetInTx, txSize)
	if err != nil {
		return 0, weaveerr.New(weaveerr.InvalidProof, "proof: invalid data_path")
	}
	if err := v.checkChunk(chunkID, chunkStart, chunkEnd, chunk); err != nil {
		return 0, err
	}
	return chunkEnd, nil
}

func (v *Validator) checkChunk(chunkID weave.Hash, chunkStart, chunkEnd uint64, chunk []byte) error {
	if chunkEnd <= chunkStart || chunkEnd-chunkStart != uint64(len(chunk)) {
		return weaveerr.New(weaveerr.InvalidProof, "proof: chunk length does not match proof range")
	}
	if chunkID != v.merkle.ChunkIdOf(chunk) {
		return weaveerr.New(weaveerr.InvalidProof, "proof: chunk id mismatch")
	}
	if uint64(len(chunk)) > v.dataChunkSize {
		return weaveerr.New(weaveerr.InvalidProof, "proof: chunk exceeds maximum chunk size")
	}
	return nil
}

// AttractiveRatio implements the §4.4 step 4 / §8 S.o.: the source's
// "chunk proof ratio not attractive" heuristic, preserved verbatim.
func AttractiveRatio(dataPath, chunk []byte) bool {
	return len(dataPath) != 0 && len(dataPath) <= len(chunk)
}
