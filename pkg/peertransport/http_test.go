package peertransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goomario/arweave/pkg/intervalset"
	"github.com/goomario/arweave/pkg/offset"
	"github.com/goomario/arweave/pkg/peer"
	"github.com/goomario/arweave/pkg/peertransport"
	"github.com/goomario/arweave/pkg/syncengine"
	"github.com/goomario/arweave/pkg/weave"
)

type stubEngine struct {
	chunk       syncengine.ChunkResult
	chunkErr    error
	syncWire    []byte
	syncWireE   error
	admitResult syncengine.AdmitResult
	admitErr    error
	admitCalled *admitChunkCall
}

type admitChunkCall struct {
	dataRoot             weave.Hash
	txSize, offsetInTx   uint64
	dataPath, chunkBytes []byte
}

func (s stubEngine) GetChunk(absoluteOffset uint64) (syncengine.ChunkResult, error) {
	return s.chunk, s.chunkErr
}

func (s stubEngine) GetSyncRecordBinary(ctx context.Context) ([]byte, error) {
	return s.syncWire, s.syncWireE
}

func (s stubEngine) AdmitChunk(ctx context.Context, dataRoot weave.Hash, txSize, offsetInTx uint64, dataPath, chunk []byte) (syncengine.AdmitResult, error) {
	if s.admitCalled != nil {
		*s.admitCalled = admitChunkCall{dataRoot: dataRoot, txSize: txSize, offsetInTx: offsetInTx, dataPath: dataPath, chunkBytes: chunk}
	}
	return s.admitResult, s.admitErr
}

func TestClientGetChunkRoundTrip(t *testing.T) {
	want := syncengine.ChunkResult{
		TxRoot:   weave.Hash{1, 2, 3},
		TxPath:   []byte("tx-path"),
		DataPath: []byte("data-path"),
		Chunk:    []byte("chunk-bytes"),
	}
	srv := httptest.NewServer(peertransport.NewServer(stubEngine{chunk: want}))
	defer srv.Close()

	c := peertransport.NewClient(0)
	got, err := c.GetChunk(peer.ID(srv.URL), 42)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.TxRoot) != string(want.TxRoot[:]) {
		t.Errorf("tx_root: got %x want %x", got.TxRoot, want.TxRoot)
	}
	if string(got.TxPath) != string(want.TxPath) {
		t.Errorf("tx_path: got %q want %q", got.TxPath, want.TxPath)
	}
	if string(got.DataPath) != string(want.DataPath) {
		t.Errorf("data_path: got %q want %q", got.DataPath, want.DataPath)
	}
	if string(got.Chunk) != string(want.Chunk) {
		t.Errorf("chunk: got %q want %q", got.Chunk, want.Chunk)
	}
}

func TestClientGetSyncRecordRoundTrip(t *testing.T) {
	want := intervalset.New()
	want.Add(offset.New(10), offset.New(0))
	want.Add(offset.New(30), offset.New(20))
	wire := want.SerializeBinary(100, func() float64 { return 0 })

	srv := httptest.NewServer(peertransport.NewServer(stubEngine{syncWire: wire}))
	defer srv.Close()

	c := peertransport.NewClient(0)
	got, err := c.GetSyncRecord(peer.ID(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	if got.Sum() != want.Sum() {
		t.Errorf("sum: got %d want %d", got.Sum(), want.Sum())
	}
	if !got.IsInside(offset.New(5)) {
		t.Error("expected offset 5 to be inside the deserialized record")
	}
	if got.IsInside(offset.New(15)) {
		t.Error("expected offset 15 to be outside the deserialized record")
	}
}

func TestClientGetChunkNotFound(t *testing.T) {
	srv := httptest.NewServer(peertransport.NewServer(stubEngine{chunkErr: errNotFound{}}))
	defer srv.Close()

	c := peertransport.NewClient(0)
	if _, err := c.GetChunk(peer.ID(srv.URL), 1); err == nil {
		t.Fatal("expected an error for a 404 response")
	}
}

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

func TestServerAdmitChunkRoute(t *testing.T) {
	var call admitChunkCall
	srv := httptest.NewServer(peertransport.NewServer(stubEngine{admitResult: syncengine.AdmitPooled, admitCalled: &call}))
	defer srv.Close()

	body, err := json.Marshal(map[string]any{
		"data_root":    []byte("root"),
		"tx_size":      1000,
		"offset_in_tx": 42,
		"data_path":    []byte("dp"),
		"chunk":        []byte("chunk-bytes"),
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(srv.URL+"/weave/chunk", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		Pooled bool `json:"pooled"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Pooled {
		t.Fatal("expected pooled=true")
	}
	if call.txSize != 1000 || call.offsetInTx != 42 {
		t.Fatalf("got %+v, want tx_size=1000 offset_in_tx=42", call)
	}
}
