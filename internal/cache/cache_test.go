package cache

import (
	"testing"
	"time"

	"registro/internal/core"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Fatal("empty cache returned a value")
	}
	c.Set("a", 1)
	c.Set("b", 2)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}

	// "b" is now least recently used.
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 2 {
		t.Errorf("stats = %+v, want 1 hit 2 misses", stats)
	}
}

func TestLRUCache_TTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute)
	c.now = clock.now

	c.Set("k", "v")
	c.Set("other", "v")
	clock.t = clock.t.Add(30 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired too early")
	}

	clock.t = clock.t.Add(time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("expected entry to expire")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestManager_CleanNowAndStop(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := NewLRUCache[int](10, time.Second)
	c.now = clock.now
	c.Set("a", 1)

	m := NewManager()
	m.Register(c)
	m.StartCleanup(time.Hour)

	clock.t = clock.t.Add(2 * time.Second)
	if n := m.CleanNow(); n != 1 {
		t.Errorf("CleanNow() = %d, want 1", n)
	}
	m.Stop()
	m.Stop()
}

func TestSummaryCache(t *testing.T) {
	c := NewSummaryCache(10, time.Minute)
	c.Store(core.Summary{
		OwnerID: "u1",
		Sequences: []core.SequenceBalance{
			{Sequence: core.Transactions, Balance: core.MustMoney("10"), Events: 1},
		},
	})

	got, ok := c.Lookup("u1")
	if !ok {
		t.Fatal("expected cached summary")
	}
	got.Sequences[0].Events = 99
	again, _ := c.Lookup("u1")
	if again.Sequences[0].Events != 1 {
		t.Error("cached summary was mutated through a lookup result")
	}

	c.Invalidate("u1")
	if _, ok := c.Lookup("u1"); ok {
		t.Error("expected summary to be invalidated")
	}
}
