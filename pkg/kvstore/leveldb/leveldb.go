// Package leveldb implements kvstore.Store on goleveldb, grounded on the
// teacher's pkg/statestore/leveldb.store (open/recover, logger field) and
// pkg/shed db.go's First/Last/Seek iterator idioms, generalized into the
// get_next/get_prev/get_range/delete_range/cyclic_iterator_move contract
// spec §4.2 requires.
package leveldb

import (
	"bytes"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	ldbutil "github.com/syndtr/goleveldb/leveldb/util"

	"github.com/goomario/arweave/pkg/kvstore"
	"github.com/goomario/arweave/pkg/log"
	"github.com/goomario/arweave/pkg/weaveerr"
)

// store is a goleveldb-backed kvstore.Store. One store instance backs one
// of the seven column families named in spec §6 (or one of the host's other
// stores); the host opens one of these per store, each in its own
// subdirectory of the data directory,
// following the teacher's one-database-per-concern convention rather than
// a single multi-prefix database.
type store struct {
	db     *leveldb.DB
	logger log.Logger
}

// New opens (or creates/recovers) a goleveldb database at path.
func New(path string, logger log.Logger) (kvstore.Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		if errors.IsCorrupted(err) {
			logger.Warning("leveldb: database corrupted, attempting recovery", "path", path)
			db, err = leveldb.RecoverFile(path, &opt.Options{})
		}
		if err != nil {
			return nil, weaveerr.Wrap(weaveerr.FailedToReadChunk, "leveldb: open", err)
		}
	}
	return &store{db: db, logger: logger}, nil
}

func (s *store) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, weaveerr.New(weaveerr.NotFound, "leveldb: key not found")
		}
		return nil, err
	}
	return v, nil
}

func (s *store) Put(key, value []byte) error {
	return s.db.Put(key, value, nil)
}

func (s *store) Delete(key []byte) error {
	return s.db.Delete(key, nil)
}

func (s *store) GetNext(key []byte) (kvstore.KV, error) {
	it := s.db.NewIterator(&ldbutil.Range{Start: key}, nil)
	defer it.Release()
	if !it.First() {
		return kvstore.KV{}, weaveerr.New(weaveerr.NotFound, "leveldb: no next key")
	}
	return kvstore.KV{Key: cloneBytes(it.Key()), Value: cloneBytes(it.Value())}, it.Error()
}

func (s *store) GetPrev(key []byte) (kvstore.KV, error) {
	// Range end is exclusive, so probe [0, key] inclusive by extending
	// with a zero byte, the standard goleveldb idiom for an inclusive
	// upper bound.
	upper := append(append([]byte(nil), key...), 0x00)
	it := s.db.NewIterator(&ldbutil.Range{Limit: upper}, nil)
	defer it.Release()
	if !it.Last() {
		return kvstore.KV{}, weaveerr.New(weaveerr.NotFound, "leveldb: no prev key")
	}
	return kvstore.KV{Key: cloneBytes(it.Key()), Value: cloneBytes(it.Value())}, it.Error()
}

func (s *store) GetRange(lo, hi []byte) ([]kvstore.KV, error) {
	it := s.db.NewIterator(&ldbutil.Range{Start: lo, Limit: hi}, nil)
	defer it.Release()
	var out []kvstore.KV
	for it.Next() {
		out = append(out, kvstore.KV{Key: cloneBytes(it.Key()), Value: cloneBytes(it.Value())})
	}
	return out, it.Error()
}

func (s *store) DeleteRange(lo, hi []byte) error {
	it := s.db.NewIterator(&ldbutil.Range{Start: lo, Limit: hi}, nil)
	defer it.Release()
	batch := new(leveldb.Batch)
	for it.Next() {
		batch.Delete(cloneBytes(it.Key()))
	}
	if err := it.Error(); err != nil {
		return err
	}
	return s.db.Write(batch, nil)
}

func (s *store) CyclicIteratorMove(cursor kvstore.Cursor) (kvstore.KV, kvstore.Cursor, error) {
	kv, next, err := s.advance(cursor)
	if err == nil {
		return kv, next, nil
	}
	// Wrap: retry from the smallest key once, as required by spec §6's
	// "must NOT loop forever on an empty store" clause.
	kv, next, err2 := s.advance(kvstore.FirstCursor())
	if err2 != nil {
		return kvstore.KV{}, kvstore.Cursor{}, weaveerr.New(weaveerr.NotFound, "leveldb: empty store")
	}
	return kv, next, nil
}

func (s *store) advance(cursor kvstore.Cursor) (kvstore.KV, kvstore.Cursor, error) {
	var it = s.db.NewIterator(nil, nil)
	defer it.Release()
	if cursor.IsFirst() {
		if !it.First() {
			return kvstore.KV{}, kvstore.Cursor{}, weaveerr.New(weaveerr.NotFound, "leveldb: empty store")
		}
		k, v := cloneBytes(it.Key()), cloneBytes(it.Value())
		return kvstore.KV{Key: k, Value: v}, kvstore.FirstCursor().WithKey(k), nil
	}
	if !it.Seek(cursor.Key()) {
		return kvstore.KV{}, kvstore.Cursor{}, weaveerr.New(weaveerr.NotFound, "leveldb: cursor past end")
	}
	if bytes.Equal(it.Key(), cursor.Key()) {
		if !it.Next() {
			return kvstore.KV{}, kvstore.Cursor{}, weaveerr.New(weaveerr.NotFound, "leveldb: cursor past end")
		}
	}
	k, v := cloneBytes(it.Key()), cloneBytes(it.Value())
	return kvstore.KV{Key: k, Value: v}, kvstore.FirstCursor().WithKey(k), nil
}

func (s *store) Close() error {
	return s.db.Close()
}

func cloneBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}
