// Package kvstore defines the §4.2 key-value index contract shared by all
// seven weave indices, grounded on bee's pkg/storage.Store interface shape
// (Get/Put/Delete plus an Iterate walk) generalized with the ordered-key
// primitives (get_next, get_prev, get_range, cyclic_iterator_move) the
// spec's indices need and bee's own Store does not expose.
package kvstore

import (
	"bytes"
	"sync"

	"github.com/goomario/arweave/pkg/weaveerr"
)

// KV is a single key/value pair, returned by ordered-key lookups.
type KV struct {
	Key   []byte
	Value []byte
}

// Cursor is opaque cyclic-iteration state. The zero Cursor is the "first"
// sentinel that starts a walk at the smallest key.
type Cursor struct {
	key []byte
	set bool
}

// FirstCursor returns the sentinel that starts a cyclic walk at the
// smallest key.
func FirstCursor() Cursor { return Cursor{} }

// IsFirst reports whether c is the "first" sentinel.
func (c Cursor) IsFirst() bool { return !c.set }

// Key returns the cursor's last-returned key. Only valid when !IsFirst().
func (c Cursor) Key() []byte { return c.key }

// WithKey returns a non-sentinel cursor positioned at key.
func (c Cursor) WithKey(key []byte) Cursor { return Cursor{key: key, set: true} }

// Store is the ordered key-value contract required of every index's
// backing engine (spec §4.2). Keys are compared byte-lexicographically,
// which is why every index's key encoding is a fixed-width or
// prefix-free big-endian byte string (§3, §6).
type Store interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error

	// GetNext returns the smallest key >= key with its value, or a
	// weaveerr.NotFound error if none exists.
	GetNext(key []byte) (KV, error)
	// GetPrev returns the greatest key <= key with its value, or a
	// weaveerr.NotFound error if none exists.
	GetPrev(key []byte) (KV, error)
	// GetRange returns every entry with lo <= key < hi, in ascending
	// key order.
	GetRange(lo, hi []byte) ([]KV, error)
	// DeleteRange deletes every entry with lo <= key < hi.
	DeleteRange(lo, hi []byte) error

	// CyclicIteratorMove advances once from cursor: it returns the
	// smallest key greater than cursor's key, wrapping to the smallest
	// key in the store once the end is reached. A FirstCursor() starts
	// the walk at the smallest key. Returns weaveerr.NotFound (never an
	// infinite loop) if the store is empty.
	CyclicIteratorMove(cursor Cursor) (KV, Cursor, error)

	Close() error
}

// memStore is an in-memory Store used by tests and by components that do
// not need persistence (the disk-pool admission path's unit tests, e.g.),
// grounded on bee's pkg/storage/inmemstore sorted-map pattern.
type memStore struct {
	mu   sync.RWMutex
	keys [][]byte
	vals map[string][]byte
}

// NewMemStore returns an in-memory Store.
func NewMemStore() Store {
	return &memStore{vals: make(map[string][]byte)}
}

func (m *memStore) find(key []byte) (int, bool) {
	lo, hi := 0, len(m.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		switch bytes.Compare(m.keys[mid], key) {
		case -1:
			lo = mid + 1
		case 1:
			hi = mid
		default:
			return mid, true
		}
	}
	return lo, false
}

func (m *memStore) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vals[string(key)]
	if !ok {
		return nil, weaveerr.New(weaveerr.NotFound, "kvstore: key not found")
	}
	return v, nil
}

func (m *memStore) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := append([]byte(nil), key...)
	if _, ok := m.vals[string(k)]; !ok {
		i, _ := m.find(k)
		m.keys = append(m.keys, nil)
		copy(m.keys[i+1:], m.keys[i:])
		m.keys[i] = k
	}
	m.vals[string(k)] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.find(key); ok {
		m.keys = append(m.keys[:i], m.keys[i+1:]...)
	}
	delete(m.vals, string(key))
	return nil
}

func (m *memStore) GetNext(key []byte) (KV, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, _ := m.find(key)
	if i >= len(m.keys) {
		return KV{}, weaveerr.New(weaveerr.NotFound, "kvstore: no next key")
	}
	return KV{Key: m.keys[i], Value: m.vals[string(m.keys[i])]}, nil
}

func (m *memStore) GetPrev(key []byte) (KV, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, exact := m.find(key)
	if !exact {
		i--
	}
	if i < 0 {
		return KV{}, weaveerr.New(weaveerr.NotFound, "kvstore: no prev key")
	}
	return KV{Key: m.keys[i], Value: m.vals[string(m.keys[i])]}, nil
}

func (m *memStore) GetRange(lo, hi []byte) ([]KV, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start, _ := m.find(lo)
	var out []KV
	for i := start; i < len(m.keys); i++ {
		if bytes.Compare(m.keys[i], hi) >= 0 {
			break
		}
		out = append(out, KV{Key: m.keys[i], Value: m.vals[string(m.keys[i])]})
	}
	return out, nil
}

func (m *memStore) DeleteRange(lo, hi []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	start, _ := m.find(lo)
	end := start
	for end < len(m.keys) && bytes.Compare(m.keys[end], hi) < 0 {
		delete(m.vals, string(m.keys[end]))
		end++
	}
	m.keys = append(m.keys[:start], m.keys[end:]...)
	return nil
}

func (m *memStore) CyclicIteratorMove(cursor Cursor) (KV, Cursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.keys) == 0 {
		return KV{}, Cursor{}, weaveerr.New(weaveerr.NotFound, "kvstore: empty store")
	}
	if !cursor.set {
		k := m.keys[0]
		return KV{Key: k, Value: m.vals[string(k)]}, Cursor{key: k, set: true}, nil
	}
	i, exact := m.find(cursor.key)
	if exact {
		i++
	}
	if i >= len(m.keys) {
		i = 0
	}
	k := m.keys[i]
	return KV{Key: k, Value: m.vals[string(k)]}, Cursor{key: k, set: true}, nil
}

func (m *memStore) Close() error { return nil }
