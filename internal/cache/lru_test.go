package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("/accounts", "a")
	c.Set("/people", "b")
	if _, ok := c.Get("/accounts"); !ok {
		t.Fatal("expected /accounts to be cached")
	}
	c.Set("/groups", "c")

	if _, ok := c.Get("/people"); ok {
		t.Error("/people should have been evicted")
	}
	if c.Size() != 2 {
		t.Errorf("expected size 2, got %d", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clock := newTestCache(10, time.Second)
	c.Set("/stats/dashboard", "x")
	clock.t = clock.t.Add(500 * time.Millisecond)
	if _, ok := c.Get("/stats/dashboard"); !ok {
		t.Fatal("entry should still be valid")
	}
	clock.t = clock.t.Add(time.Second)
	if _, ok := c.Get("/stats/dashboard"); ok {
		t.Fatal("entry should have expired")
	}

	c.Set("a", "1")
	c.Set("b", "2")
	clock.t = clock.t.Add(2 * time.Second)
	c.Set("c", "3")
	if n := c.CleanExpired(); n != 2 {
		t.Errorf("expected 2 expired entries, got %d", n)
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("unexpected stats hits=%d misses=%d", hits, misses)
	}
}

func TestLRUCache_Purge(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Size())
	}
	c.Set("a", "3")
	if v, ok := c.Get("a"); !ok || v != "3" {
		t.Fatalf("cache unusable after purge: %q %v", v, ok)
	}
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager(nil)
	m.Stop()

	m = NewManager(nil)
	c, _ := newTestCache(1, time.Millisecond)
	m.Register(c)
	m.StartCleanup(time.Millisecond)
	m.Stop()
}
