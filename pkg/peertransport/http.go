// Package peertransport implements the §6 "Peer transport" external
// collaborator over plain HTTP: a client satisfying peer.Transport, and a
// server exposing the lock-free get_chunk fast path, get_sync_record_etf
// and §4.5 chunk admission to remote peers. Grounded on the teacher's
// pkg/api (gorilla/mux routing, http.Client usage in pkg/pingpong) rather
// than bee's libp2p stream protocol, since the specification's peer
// transport is a plain request/reply fetch with no streaming or
// connection-lifecycle concerns (see DESIGN.md).
package peertransport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/atomic"

	"github.com/goomario/arweave/pkg/intervalset"
	"github.com/goomario/arweave/pkg/peer"
	"github.com/goomario/arweave/pkg/syncengine"
	"github.com/goomario/arweave/pkg/weave"
)

// Client implements peer.Transport by issuing HTTP requests against a
// peer's advertised base URL (the peer.ID itself).
type Client struct {
	http *http.Client
}

// NewClient returns a Client with the given request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

type chunkWire struct {
	TxRoot   []byte `json:"tx_root"`
	TxPath   []byte `json:"tx_path"`
	DataPath []byte `json:"data_path"`
	Chunk    []byte `json:"chunk"`
}

// GetChunk fetches the proof covering absoluteOffset from the peer.
func (c *Client) GetChunk(id peer.ID, absoluteOffset uint64) (peer.Proof, error) {
	url := fmt.Sprintf("%s/weave/chunk/%d", string(id), absoluteOffset)
	resp, err := c.http.Get(url)
	if err != nil {
		return peer.Proof{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return peer.Proof{}, fmt.Errorf("peertransport: %s returned %s", id, resp.Status)
	}
	var w chunkWire
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return peer.Proof{}, err
	}
	return peer.Proof{TxRoot: w.TxRoot, TxPath: w.TxPath, DataPath: w.DataPath, Chunk: w.Chunk}, nil
}

// GetSyncRecord fetches the peer's advertised binary sync record.
func (c *Client) GetSyncRecord(id peer.ID) (*intervalset.Set, error) {
	url := fmt.Sprintf("%s/weave/sync_record", string(id))
	resp, err := c.http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("peertransport: %s returned %s", id, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return intervalset.DeserializeBinary(body)
}

// FastPaths is the subset of *syncengine.Engine the Server needs: the
// lock-free get_chunk_by_offset read, the actor-serialized capped
// get_sync_record_etf read, and §4.5's Admission entry point for a host
// submitting a chunk it already knows by (data_root, offset_in_tx,
// tx_size) rather than a full Merkle proof.
type FastPaths interface {
	GetChunk(absoluteOffset uint64) (syncengine.ChunkResult, error)
	GetSyncRecordBinary(ctx context.Context) ([]byte, error)
	AdmitChunk(ctx context.Context, dataRoot weave.Hash, txSize, offsetInTx uint64, dataPath, chunk []byte) (syncengine.AdmitResult, error)
}

// Server exposes FastPaths over HTTP for remote peers to consume via
// Client. net/http serves each request on its own goroutine, so the
// served-chunk counter is an atomic rather than a field guarded by a
// mutex shared with the routing hot path.
type Server struct {
	router       *mux.Router
	engine       FastPaths
	chunksServed atomic.Uint64
}

// NewServer builds the routed http.Handler.
func NewServer(engine FastPaths) *Server {
	s := &Server{router: mux.NewRouter(), engine: engine}
	s.router.HandleFunc("/weave/chunk/{offset}", s.handleChunk).Methods(http.MethodGet)
	s.router.HandleFunc("/weave/sync_record", s.handleSyncRecord).Methods(http.MethodGet)
	s.router.HandleFunc("/weave/chunk", s.handleAdmitChunk).Methods(http.MethodPost)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// ChunksServed reports how many get_chunk requests this Server has
// answered successfully, safe to read from any goroutine.
func (s *Server) ChunksServed() uint64 { return s.chunksServed.Load() }

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	offsetStr := mux.Vars(r)["offset"]
	offset, err := strconv.ParseUint(offsetStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid offset", http.StatusBadRequest)
		return
	}
	res, err := s.engine.GetChunk(offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.chunksServed.Inc()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(chunkWire{TxRoot: res.TxRoot[:], TxPath: res.TxPath, DataPath: res.DataPath, Chunk: res.Chunk})
}

func (s *Server) handleSyncRecord(w http.ResponseWriter, r *http.Request) {
	body, err := s.engine.GetSyncRecordBinary(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(body)
}

type admitChunkRequest struct {
	DataRoot   []byte `json:"data_root"`
	TxSize     uint64 `json:"tx_size"`
	OffsetInTx uint64 `json:"offset_in_tx"`
	DataPath   []byte `json:"data_path"`
	Chunk      []byte `json:"chunk"`
}

type admitChunkResponse struct {
	Pooled bool `json:"pooled"`
}

// handleAdmitChunk serves §4.5's Admission procedure: a host that already
// knows a chunk's (data_root, offset_in_tx, tx_size) submits it directly,
// without needing a full tx_root/tx_path Merkle proof.
func (s *Server) handleAdmitChunk(w http.ResponseWriter, r *http.Request) {
	var req admitChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	res, err := s.engine.AdmitChunk(r.Context(), weave.HashFromBytes(req.DataRoot), req.TxSize, req.OffsetInTx, req.DataPath, req.Chunk)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(admitChunkResponse{Pooled: res == syncengine.AdmitPooled})
}
