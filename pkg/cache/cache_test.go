package cache

import (
	"testing"
	"time"

	"github.com/benholden/tdoasolve/internal/tdoa"
)

func anchorSet() []tdoa.Anchor {
	return []tdoa.Anchor{
		{Position: tdoa.Vec3{X: 0, Y: 0, Z: 0}, TimeDifference: 0},
		{Position: tdoa.Vec3{X: 100, Y: 0, Z: 0}, TimeDifference: 50},
		{Position: tdoa.Vec3{X: 0, Y: 100, Z: 0}, TimeDifference: 75},
	}
}

func TestSolveCache_Basic(t *testing.T) {
	c := NewSolveCache(2, 0)

	key := DeriveKey(anchorSet(), 343.0, 10)
	result := tdoa.Result{{Position: tdoa.Vec3{X: 1, Y: 2, Z: 3}, Weight: 1}}
	stats := tdoa.SolveStats{AnchorCount: 3, ResultCount: 1}

	c.Put(key, result, stats)
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}

	got, gotStats, found := c.Get(key)
	if !found {
		t.Fatal("Get() didn't find existing key")
	}
	if len(got) != 1 || got[0].Position != result[0].Position {
		t.Errorf("Get() = %v, want %v", got, result)
	}
	if gotStats.AnchorCount != 3 {
		t.Errorf("stats.AnchorCount = %d, want 3", gotStats.AnchorCount)
	}

	_, _, found = c.Get(DeriveKey(anchorSet(), 1500.0, 10))
	if found {
		t.Error("Get() found a key that was never put")
	}
}

func TestSolveCache_Eviction(t *testing.T) {
	c := NewSolveCache(2, 0)

	k1 := DeriveKey(anchorSet(), 343.0, 1)
	k2 := DeriveKey(anchorSet(), 343.0, 2)
	k3 := DeriveKey(anchorSet(), 343.0, 3)

	c.Put(k1, tdoa.Result{}, tdoa.SolveStats{})
	c.Put(k2, tdoa.Result{}, tdoa.SolveStats{})
	c.Put(k3, tdoa.Result{}, tdoa.SolveStats{})

	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
	if _, _, found := c.Get(k1); found {
		t.Error("k1 should have been evicted")
	}
	if _, _, found := c.Get(k2); !found {
		t.Error("k2 should still exist")
	}
	if _, _, found := c.Get(k3); !found {
		t.Error("k3 should still exist")
	}
}

func TestSolveCache_LRUOrdering(t *testing.T) {
	c := NewSolveCache(2, 0)

	k1 := DeriveKey(anchorSet(), 343.0, 1)
	k2 := DeriveKey(anchorSet(), 343.0, 2)
	k3 := DeriveKey(anchorSet(), 343.0, 3)

	c.Put(k1, tdoa.Result{}, tdoa.SolveStats{})
	c.Put(k2, tdoa.Result{}, tdoa.SolveStats{})
	c.Get(k1) // touch k1, making k2 the least recently used

	c.Put(k3, tdoa.Result{}, tdoa.SolveStats{})

	if _, _, found := c.Get(k1); !found {
		t.Error("k1 should still exist")
	}
	if _, _, found := c.Get(k2); found {
		t.Error("k2 should have been evicted")
	}
}

func TestSolveCache_TTLExpiry(t *testing.T) {
	c := NewSolveCache(10, time.Millisecond)

	key := DeriveKey(anchorSet(), 343.0, 10)
	c.Put(key, tdoa.Result{}, tdoa.SolveStats{})

	time.Sleep(5 * time.Millisecond)

	if _, _, found := c.Get(key); found {
		t.Error("entry should have expired")
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0 after expiry eviction", c.Size())
	}
}

func TestSolveCache_Stats(t *testing.T) {
	c := NewSolveCache(10, 0)
	key := DeriveKey(anchorSet(), 343.0, 10)

	c.Put(key, tdoa.Result{}, tdoa.SolveStats{})
	c.Get(key)
	c.Get(key)
	c.Get(DeriveKey(anchorSet(), 1500.0, 10))

	stats := c.Stats()
	if stats.Hits != 2 {
		t.Errorf("Hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	if stats.Size != 1 {
		t.Errorf("Size = %d, want 1", stats.Size)
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	k1 := DeriveKey(anchorSet(), 343.0, 10)
	k2 := DeriveKey(anchorSet(), 343.0, 10)
	if k1 != k2 {
		t.Error("DeriveKey should be deterministic for identical inputs")
	}
}

func TestDeriveKey_DistinguishesInputs(t *testing.T) {
	base := DeriveKey(anchorSet(), 343.0, 10)

	differentSpeed := DeriveKey(anchorSet(), 1500.0, 10)
	if base == differentSpeed {
		t.Error("DeriveKey should distinguish different speeds")
	}

	differentCycles := DeriveKey(anchorSet(), 343.0, 20)
	if base == differentCycles {
		t.Error("DeriveKey should distinguish different cycle counts")
	}

	mutated := anchorSet()
	mutated[0].TimeDifference += 1
	differentAnchors := DeriveKey(mutated, 343.0, 10)
	if base == differentAnchors {
		t.Error("DeriveKey should distinguish different anchor sets")
	}
}
