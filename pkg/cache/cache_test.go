package cache

import (
	"context"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "key")
	if err != nil || hit || data != nil {
		t.Errorf("Get() = %q, %v, %v; want miss", data, hit, err)
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestKey(t *testing.T) {
	a := Key("crossref", "https://api.crossref.org/works/10.1/x")
	b := Key("pubmed", "https://api.crossref.org/works/10.1/x")
	if a == b {
		t.Error("different prefixes should produce different keys")
	}
	if a[:9] != "crossref:" {
		t.Errorf("Key() = %q, want crossref: prefix", a)
	}
}

// backends returns fresh instances of every local backend.
func backends(t *testing.T) map[string]Cache {
	t.Helper()
	fc, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	lc, err := NewLRUCache(8)
	if err != nil {
		t.Fatal(err)
	}
	return map[string]Cache{"file": fc, "lru": lc}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer c.Close()
			if _, hit, _ := c.Get(ctx, "k"); hit {
				t.Fatal("empty cache reported a hit")
			}
			if err := c.Set(ctx, "k", []byte("v"), time.Hour); err != nil {
				t.Fatalf("Set error: %v", err)
			}
			data, hit, err := c.Get(ctx, "k")
			if err != nil || !hit || string(data) != "v" {
				t.Fatalf("Get() = %q, %v, %v", data, hit, err)
			}
			if err := c.Delete(ctx, "k"); err != nil {
				t.Fatalf("Delete error: %v", err)
			}
			if _, hit, _ := c.Get(ctx, "k"); hit {
				t.Error("deleted key still present")
			}
			if err := c.Delete(ctx, "missing"); err != nil {
				t.Errorf("Delete(missing) error: %v", err)
			}
		})
	}
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	fc, _ := NewFileCache(t.TempDir())
	fc.now = clock
	lc, _ := NewLRUCache(8)
	lc.now = clock

	for name, c := range map[string]Cache{"file": fc, "lru": lc} {
		t.Run(name, func(t *testing.T) {
			now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			_ = c.Set(ctx, "short", []byte("x"), time.Minute)
			_ = c.Set(ctx, "forever", []byte("y"), 0)

			now = now.Add(2 * time.Minute)
			if _, hit, _ := c.Get(ctx, "short"); hit {
				t.Error("expired entry returned")
			}
			if _, hit, _ := c.Get(ctx, "forever"); !hit {
				t.Error("entry without ttl expired")
			}
		})
	}
}

func TestLRUEviction(t *testing.T) {
	ctx := context.Background()
	c, _ := NewLRUCache(2)
	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	_, _, _ = c.Get(ctx, "a")
	_ = c.Set(ctx, "c", []byte("3"), 0)

	if _, hit, _ := c.Get(ctx, "b"); hit {
		t.Error("least recently used entry should have been evicted")
	}
	if _, hit, _ := c.Get(ctx, "a"); !hit {
		t.Error("recently used entry was evicted")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())
	_ = c.Set(ctx, "a", []byte("1"), 0)
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("entry survived Clear")
	}
}
