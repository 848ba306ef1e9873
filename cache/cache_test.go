package cache

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func newMemCache(t *testing.T, max int) *Cache {
	t.Helper()
	c, err := New(Options{MaxEntries: max})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestGetAfterPut(t *testing.T) {
	c := newMemCache(t, 8)
	fp := FingerprintBytes([]byte("image-bytes"))

	c.Put(fp, "basic", []byte(`{"text":"hello"}`))

	got, ok := c.Get(fp, "basic")
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if !bytes.Equal(got, []byte(`{"text":"hello"}`)) {
		t.Fatalf("got %q", got)
	}
}

func TestMissOnUnknownKey(t *testing.T) {
	c := newMemCache(t, 8)
	if _, ok := c.Get(FingerprintBytes([]byte("never stored")), "basic"); ok {
		t.Fatal("expected miss")
	}
}

func TestModeIsPartOfKey(t *testing.T) {
	c := newMemCache(t, 8)
	fp := FingerprintBytes([]byte("same image"))
	c.Put(fp, "basic", []byte("basic result"))

	if _, ok := c.Get(fp, "formula"); ok {
		t.Fatal("result stored under basic must not satisfy formula lookup")
	}
	if got, ok := c.Get(fp, "basic"); !ok || string(got) != "basic result" {
		t.Fatalf("basic lookup: ok=%v got=%q", ok, got)
	}
}

func TestOverwriteKeepsSingleEntry(t *testing.T) {
	c := newMemCache(t, 8)
	fp := FingerprintBytes([]byte("doc"))

	c.Put(fp, "basic", []byte("v1"))
	c.Put(fp, "basic", []byte("v2"))

	got, ok := c.Get(fp, "basic")
	if !ok || string(got) != "v2" {
		t.Fatalf("ok=%v got=%q, want v2", ok, got)
	}
	if n := c.Stats().Entries; n != 1 {
		t.Fatalf("entries = %d, want 1", n)
	}
}

func TestEvictionIsOldestFirst(t *testing.T) {
	c := newMemCache(t, 3)
	fps := make([]Fingerprint, 4)
	for i := range fps {
		fps[i] = FingerprintBytes([]byte(fmt.Sprintf("doc-%d", i)))
		c.Put(fps[i], "basic", []byte(fmt.Sprintf("result-%d", i)))
	}

	if _, ok := c.Get(fps[0], "basic"); ok {
		t.Fatal("oldest entry should have been evicted")
	}
	for i := 1; i < 4; i++ {
		if _, ok := c.Get(fps[i], "basic"); !ok {
			t.Fatalf("entry %d unexpectedly evicted", i)
		}
	}
}

func TestOverwriteDoesNotRefreshAge(t *testing.T) {
	c := newMemCache(t, 2)
	a := FingerprintBytes([]byte("a"))
	b := FingerprintBytes([]byte("b"))
	d := FingerprintBytes([]byte("d"))

	c.Put(a, "basic", []byte("a1"))
	c.Put(b, "basic", []byte("b1"))
	c.Put(a, "basic", []byte("a2")) // overwrite, a stays oldest
	c.Put(d, "basic", []byte("d1")) // evicts a

	if _, ok := c.Get(a, "basic"); ok {
		t.Fatal("overwritten entry kept its insertion age and should be evicted")
	}
	if _, ok := c.Get(b, "basic"); !ok {
		t.Fatal("b should survive")
	}
	if _, ok := c.Get(d, "basic"); !ok {
		t.Fatal("d should survive")
	}
}

func TestDiskTierSurvivesEviction(t *testing.T) {
	dir := t.TempDir()
	c, err := New(Options{Dir: dir, MaxEntries: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a := FingerprintBytes([]byte("a"))
	b := FingerprintBytes([]byte("b"))
	c.Put(a, "basic", []byte("result-a"))
	c.Put(b, "basic", []byte("result-b")) // evicts a from memory

	got, ok := c.Get(a, "basic")
	if !ok {
		t.Fatal("expected disk-tier hit for evicted entry")
	}
	if string(got) != "result-a" {
		t.Fatalf("got %q", got)
	}
}

func TestDiskTierPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	fp := FingerprintBytes([]byte("doc"))

	first, err := New(Options{Dir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	first.Put(fp, "structure", []byte("persisted"))

	second, err := New(Options{Dir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, ok := second.Get(fp, "structure")
	if !ok || string(got) != "persisted" {
		t.Fatalf("ok=%v got=%q", ok, got)
	}
}

func TestDiskFileNameIsKey(t *testing.T) {
	dir := t.TempDir()
	c, err := New(Options{Dir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fp := FingerprintBytes([]byte("doc"))
	c.Put(fp, "table", []byte("x"))

	if _, err := os.Stat(filepath.Join(dir, Key(fp, "table"))); err != nil {
		t.Fatalf("expected file named after key: %v", err)
	}
}

func TestMissingDirEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	c, err := New(Options{Dir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := c.Get(FingerprintBytes([]byte("nope")), "basic"); ok {
		t.Fatal("expected miss")
	}
}

func TestStatsCounting(t *testing.T) {
	c := newMemCache(t, 8)
	fp := FingerprintBytes([]byte("doc"))

	c.Get(fp, "basic") // miss
	c.Put(fp, "basic", []byte("r"))
	c.Get(fp, "basic") // hit
	c.Get(fp, "basic") // hit

	s := c.Stats()
	if s.Queries != 3 || s.Hits != 2 || s.Misses != 1 {
		t.Fatalf("stats = %+v", s)
	}
	if s.HitRate <= 0.66 || s.HitRate >= 0.67 {
		t.Fatalf("hit rate = %v, want ~2/3", s.HitRate)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := newMemCache(t, 64)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				fp := FingerprintBytes([]byte(fmt.Sprintf("doc-%d-%d", n, j)))
				c.Put(fp, "basic", []byte("r"))
				c.Get(fp, "basic")
			}
		}(i)
	}
	wg.Wait()
}
