// Package chunkstore implements the content-addressed blob store (spec
// §2.3, §6's ChunkBlobStore collaborator): write/read/has/delete keyed by
// hash(data_path), deduplicating storage across chunks that share the same
// proof path. Grounded on the teacher's pkg/storage Getter/Putter/Deleter
// interface shape, backed by a pkg/kvstore.Store rather than bee's
// sharky/localstore shard allocator (see DESIGN.md for why sharky's
// slot-recycling machinery does not fit a pure dedup map with no eviction
// policy).
package chunkstore

import (
	"encoding/json"

	"github.com/goomario/arweave/pkg/kvstore"
	"github.com/goomario/arweave/pkg/weave"
	"github.com/goomario/arweave/pkg/weaveerr"
)

// BlobStore is the §6 ChunkBlobStore collaborator.
type BlobStore interface {
	Write(hash weave.Hash, chunk, dataPath []byte) error
	Read(hash weave.Hash) (chunk, dataPath []byte, err error)
	Has(hash weave.Hash) (bool, error)
	Delete(hash weave.Hash) error
}

type record struct {
	Chunk    []byte `json:"chunk"`
	DataPath []byte `json:"data_path"`
}

// store is a BlobStore backed by a kvstore.Store, keyed directly by the
// content hash (spec: "stores (chunk bytes, data-path bytes) pairs,
// deduplicating by key").
type store struct {
	kv kvstore.Store
}

// New returns a BlobStore backed by kv. kv should be dedicated to chunk
// blobs, a database of its own beside the host's index column families.
func New(kv kvstore.Store) BlobStore {
	return &store{kv: kv}
}

func (s *store) Write(hash weave.Hash, chunk, dataPath []byte) error {
	if has, err := s.Has(hash); err != nil {
		return err
	} else if has {
		// Dedup: an identical data_path hash always reproduces the same
		// chunk bytes, so a repeat write is a no-op rather than an error.
		return nil
	}
	buf, err := json.Marshal(record{Chunk: chunk, DataPath: dataPath})
	if err != nil {
		return err
	}
	return s.kv.Put(hash.Bytes(), buf)
}

func (s *store) Read(hash weave.Hash) ([]byte, []byte, error) {
	buf, err := s.kv.Get(hash.Bytes())
	if err != nil {
		if k, ok := weaveerr.KindOf(err); ok && k == weaveerr.NotFound {
			return nil, nil, weaveerr.New(weaveerr.ChunkNotFound, "chunkstore: chunk not found")
		}
		return nil, nil, weaveerr.Wrap(weaveerr.FailedToReadChunk, "chunkstore: read", err)
	}
	var r record
	if err := json.Unmarshal(buf, &r); err != nil {
		return nil, nil, weaveerr.Wrap(weaveerr.FailedToReadChunk, "chunkstore: decode", err)
	}
	return r.Chunk, r.DataPath, nil
}

func (s *store) Has(hash weave.Hash) (bool, error) {
	_, err := s.kv.Get(hash.Bytes())
	if err == nil {
		return true, nil
	}
	if k, ok := weaveerr.KindOf(err); ok && k == weaveerr.NotFound {
		return false, nil
	}
	return false, err
}

func (s *store) Delete(hash weave.Hash) error {
	return s.kv.Delete(hash.Bytes())
}
