package proof

import (
	"crypto/sha256"
	"testing"

	"github.com/goomario/arweave/pkg/weave"
	"github.com/goomario/arweave/pkg/weaveerr"
)

// fakeMerkle ignores the tx_path/data_path bytes and returns the fixed
// placements and chunk id set in its fields, enough to exercise the
// validator's own arithmetic and error plumbing without a real tree
// implementation.
type fakeMerkle struct {
	dataRoot   weave.Hash
	txStart    uint64
	txEnd      uint64
	chunkID    weave.Hash
	chunkStart uint64
	chunkEnd   uint64
	failTx     bool
	failData   bool
}

func (f *fakeMerkle) VerifyTxPath(txRoot weave.Hash, txPath []byte, offsetInBlock, blockSize uint64) (weave.Hash, uint64, uint64, error) {
	if f.failTx {
		return weave.Hash{}, 0, 0, errInvalid
	}
	return f.dataRoot, f.txStart, f.txEnd, nil
}

func (f *fakeMerkle) VerifyDataPath(dataRoot weave.Hash, dataPath []byte, offsetInTx, txSize uint64) (weave.Hash, uint64, uint64, error) {
	if f.failData {
		return weave.Hash{}, 0, 0, errInvalid
	}
	return f.chunkID, f.chunkStart, f.chunkEnd, nil
}

func (f *fakeMerkle) ChunkIdOf(chunk []byte) weave.Hash {
	return sha256.Sum256(chunk)
}

type sentinelErr struct{}

func (sentinelErr) Error() string { return "invalid" }

var errInvalid = sentinelErr{}

func TestValidateProofSuccess(t *testing.T) {
	chunk := []byte("hello world")
	m := &fakeMerkle{
		dataRoot:   weave.Hash{1},
		txStart:    100,
		txEnd:      200,
		chunkID:    sha256.Sum256(chunk),
		chunkStart: 10,
		chunkEnd:   10 + uint64(len(chunk)),
	}
	v := New(m, 256*1024)
	res, err := v.ValidateProof(weave.Hash{2}, []byte("txpath"), []byte("datapath"), 110, 1000, chunk)
	if err != nil {
		t.Fatal(err)
	}
	if res.DataRoot != m.dataRoot || res.TxStart != 100 || res.ChunkEnd != m.chunkEnd || res.TxSize != 100 {
		t.Fatalf("got %+v", res)
	}
}

func TestValidateProofRejectsBadChunkID(t *testing.T) {
	chunk := []byte("hello world")
	m := &fakeMerkle{txStart: 0, txEnd: 100, chunkID: sha256.Sum256(chunk), chunkStart: 0, chunkEnd: uint64(len(chunk))}
	v := New(m, 256*1024)
	// Same length as chunk, so only the chunk id comparison can reject it.
	_, err := v.ValidateProof(weave.Hash{}, []byte("tp"), []byte("dp"), 5, 100, []byte("HELLO WORLD"))
	if k, ok := weaveerr.KindOf(err); !ok || k != weaveerr.InvalidProof {
		t.Fatalf("got %v", err)
	}
}

func TestValidateProofRejectsLengthMismatch(t *testing.T) {
	m := &fakeMerkle{txStart: 0, txEnd: 50, chunkStart: 0, chunkEnd: 5}
	v := New(m, 256*1024)
	_, err := v.ValidateProof(weave.Hash{}, []byte("tp"), []byte("dp"), 1, 50, []byte("too long chunk"))
	if k, ok := weaveerr.KindOf(err); !ok || k != weaveerr.InvalidProof {
		t.Fatalf("got %v", err)
	}
}

func TestValidateProofPropagatesTxPathFailure(t *testing.T) {
	m := &fakeMerkle{failTx: true}
	v := New(m, 256*1024)
	_, err := v.ValidateProof(weave.Hash{}, []byte("tp"), []byte("dp"), 1, 50, []byte("x"))
	if k, ok := weaveerr.KindOf(err); !ok || k != weaveerr.InvalidProof {
		t.Fatalf("got %v", err)
	}
}

func TestAttractiveRatio(t *testing.T) {
	if AttractiveRatio(nil, []byte("x")) {
		t.Fatal("empty data_path must be unattractive")
	}
	if AttractiveRatio([]byte("toolong"), []byte("x")) {
		t.Fatal("data_path longer than chunk must be unattractive")
	}
	if !AttractiveRatio([]byte("ok"), []byte("longer-chunk")) {
		t.Fatal("shorter-or-equal data_path should be attractive")
	}
}
