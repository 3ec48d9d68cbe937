// Package peer implements the §6 Peer transport collaborator's
// bookkeeping: identity, the advertised-sync-record table (PeerSyncRecords,
// spec §3), and per-peer cooldown tracking for failing/unattractive peers
// (SUPPLEMENTED FEATURES). Grounded on the teacher's pkg/puller.syncPeer
// per-peer state struct and pkg/topology's peer-address-keyed maps,
// generalized from libp2p's swarm.Address identity to a transport-agnostic
// ID string.
package peer

import (
	"sync"
	"time"

	"github.com/goomario/arweave/pkg/intervalset"
)

// ID identifies a peer. Transport-agnostic: a libp2p address, an HTTP
// base URL, or anything the concrete Transport implementation resolves.
type ID string

// Discovery supplies the candidate peer universe that
// peer-records-refresh samples PICK_PEERS_OUT_OF_RANDOM_N from (spec
// §4.4); how peers are found is a host concern outside this package.
type Discovery interface {
	Peers() []ID
}

// Transport is the §6 "Peer transport" external collaborator.
type Transport interface {
	// GetChunk fetches the proof for the chunk covering absoluteOffset.
	GetChunk(id ID, absoluteOffset uint64) (Proof, error)
	// GetSyncRecord fetches the peer's advertised, possibly-stale sync
	// record.
	GetSyncRecord(id ID) (*intervalset.Set, error)
}

// Proof is the wire shape returned by a peer's get_chunk, carrying
// everything §4.4 steps 4-8 need to validate and persist the chunk.
type Proof struct {
	TxRoot        []byte
	TxPath        []byte
	DataPath      []byte
	Chunk         []byte
}

// Records is the PeerSyncRecords table: a snapshot of known peers' advertised
// sync records plus cooldown state, replaced atomically by the
// peer-records-refresh task (spec §4.4) and consulted (never mutated
// in-place by readers) by sync-one.
type Records struct {
	mu       sync.RWMutex
	records  map[ID]*intervalset.Set
	cooldown map[ID]time.Time
}

// New returns an empty Records table.
func New() *Records {
	return &Records{
		records:  make(map[ID]*intervalset.Set),
		cooldown: make(map[ID]time.Time),
	}
}

// Replace atomically swaps the entire advertised-record table, per §4.4's
// "replaces PeerSyncRecords atomically".
func (r *Records) Replace(records map[ID]*intervalset.Set) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = records
}

// Snapshot returns peer IDs with their advertised record, in an
// unspecified but stable-for-this-call order (spec: "iteration order
// unspecified"), skipping peers currently in cooldown.
func (r *Records) Snapshot(now time.Time) []struct {
	ID     ID
	Record *intervalset.Set
} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]struct {
		ID     ID
		Record *intervalset.Set
	}, 0, len(r.records))
	for id, rec := range r.records {
		if until, ok := r.cooldown[id]; ok && now.Before(until) {
			continue
		}
		out = append(out, struct {
			ID     ID
			Record *intervalset.Set
		}{ID: id, Record: rec})
	}
	return out
}

// Cooldown marks id as recently-failed for one scheduling cycle (§4.4 step
// 3: "mark that peer recently-failed (one attempt)"), excluding it from
// Snapshot until the cooldown expires.
func (r *Records) Cooldown(id ID, until time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cooldown[id] = until
}

// Drop removes id from the table entirely (§4.4 step 4/6: "Drop that peer
// from PeerSyncRecords").
func (r *Records) Drop(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	delete(r.cooldown, id)
}

// Len reports the number of tracked peers, cooldown or not.
func (r *Records) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
