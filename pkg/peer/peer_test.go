package peer

import (
	"testing"
	"time"

	"github.com/goomario/arweave/pkg/intervalset"
)

func TestReplaceIsAtomicSnapshot(t *testing.T) {
	r := New()
	r.Replace(map[ID]*intervalset.Set{
		"a": intervalset.New(),
		"b": intervalset.New(),
	})
	if r.Len() != 2 {
		t.Fatalf("Len = %d", r.Len())
	}
	snap := r.Snapshot(time.Now())
	if len(snap) != 2 {
		t.Fatalf("Snapshot = %+v", snap)
	}
}

func TestCooldownExcludesUntilExpiry(t *testing.T) {
	r := New()
	r.Replace(map[ID]*intervalset.Set{"a": intervalset.New(), "b": intervalset.New()})
	now := time.Now()
	r.Cooldown("a", now.Add(time.Minute))

	snap := r.Snapshot(now)
	if len(snap) != 1 || snap[0].ID != "b" {
		t.Fatalf("Snapshot during cooldown = %+v", snap)
	}

	snap = r.Snapshot(now.Add(2 * time.Minute))
	if len(snap) != 2 {
		t.Fatalf("Snapshot after cooldown expiry = %+v", snap)
	}
}

func TestDropRemovesPeer(t *testing.T) {
	r := New()
	r.Replace(map[ID]*intervalset.Set{"a": intervalset.New()})
	r.Drop("a")
	if r.Len() != 0 {
		t.Fatalf("Len after Drop = %d", r.Len())
	}
}
