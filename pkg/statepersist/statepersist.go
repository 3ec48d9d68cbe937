// Package statepersist implements syncengine.StatePersister: the §6
// "persistence for the serialized state blob data_sync_state" external
// collaborator. Grounded on the teacher's pkg/storage.StateStorer
// (Get/Put a JSON value under a string key against a kvstore), narrowed to
// the single fixed key the sync engine's one state blob needs.
package statepersist

import (
	"encoding/json"

	"github.com/goomario/arweave/pkg/kvstore"
	"github.com/goomario/arweave/pkg/syncengine"
	"github.com/goomario/arweave/pkg/weaveerr"
)

var stateKey = []byte("data_sync_state")

// Store persists syncengine.State as a single JSON row in a kvstore.Store.
type Store struct {
	kv kvstore.Store
}

// New returns a Store backed by kv, typically its own leveldb database
// distinct from the seven index column families.
func New(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

// SaveState implements syncengine.StatePersister.
func (s *Store) SaveState(state syncengine.State) error {
	b, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.kv.Put(stateKey, b)
}

// LoadState implements syncengine.StatePersister. found is false when no
// state has been persisted yet (a fresh data directory).
func (s *Store) LoadState() (syncengine.State, bool, error) {
	b, err := s.kv.Get(stateKey)
	if err != nil {
		if k, ok := weaveerr.KindOf(err); ok && k == weaveerr.NotFound {
			return syncengine.State{}, false, nil
		}
		return syncengine.State{}, false, err
	}
	var state syncengine.State
	if err := json.Unmarshal(b, &state); err != nil {
		return syncengine.State{}, false, err
	}
	return state, true, nil
}
