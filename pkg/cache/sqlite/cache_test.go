package sqlite

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache_test.db")
	c, err := New(dbPath, ttl)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPutAndGet(t *testing.T) {
	c := newTestCache(t, time.Hour)

	if err := c.Put("models", []byte(`{"data":[]}`)); err != nil {
		t.Fatal(err)
	}

	data, ok := c.Get("models")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(data) != `{"data":[]}` {
		t.Errorf("unexpected body: %s", data)
	}

	if _, ok := c.Get("providers"); ok {
		t.Error("expected cache miss for different key")
	}
}

func TestPutReplaces(t *testing.T) {
	c := newTestCache(t, time.Hour)
	_ = c.Put("models", []byte("old"))
	_ = c.Put("models", []byte("new"))

	data, ok := c.Get("models")
	if !ok || string(data) != "new" {
		t.Errorf("expected replaced body, got %q", data)
	}
}

func TestExpiredStillStale(t *testing.T) {
	c := newTestCache(t, time.Minute)
	base := time.Now()
	c.now = func() time.Time { return base }
	if err := c.Put("models", []byte("data")); err != nil {
		t.Fatal(err)
	}

	c.now = func() time.Time { return base.Add(2 * time.Minute) }

	if _, ok := c.Get("models"); ok {
		t.Error("expected miss after TTL expiration")
	}
	data, ok := c.GetStale("models")
	if !ok || string(data) != "data" {
		t.Errorf("expected stale body, got %q ok=%v", data, ok)
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Stale != 1 {
		t.Errorf("expected 1 stale entry, got %d", stats.Stale)
	}
}

func TestStats(t *testing.T) {
	c := newTestCache(t, time.Hour)

	_ = c.Put("k1", []byte("data"))
	c.Get("k1") // hit
	c.Get("k2") // miss

	stats, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry, got %d", stats.Entries)
	}
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}

func TestClear(t *testing.T) {
	c := newTestCache(t, time.Hour)

	_ = c.Put("k1", []byte("data"))
	_ = c.Put("k2", []byte("data"))

	if err := c.Clear(false); err != nil {
		t.Fatal(err)
	}

	stats, _ := c.Stats()
	if stats.Entries != 0 {
		t.Errorf("expected 0 entries after clear, got %d", stats.Entries)
	}
}
