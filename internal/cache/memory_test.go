package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestByteCacheSetGet(t *testing.T) {
	c := NewByteCache(time.Minute)
	c.Set("k", []byte("segment"), "video/mp2t")

	data, ct, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(data) != "segment" || ct != "video/mp2t" {
		t.Fatalf("got %q %q", data, ct)
	}

	if _, _, ok := c.Get("missing"); ok {
		t.Fatal("unexpected hit for missing key")
	}
}

func TestByteCacheExpiry(t *testing.T) {
	c := NewByteCache(10 * time.Millisecond)
	c.Set("k", []byte("x"), "")

	if _, _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit before TTL")
	}

	time.Sleep(20 * time.Millisecond)
	if _, _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after TTL")
	}
	// The lazy delete on Get removed the entry.
	if n := c.Len(); n != 0 {
		t.Fatalf("Len = %d, want 0", n)
	}
}

func TestByteCacheSweep(t *testing.T) {
	c := NewByteCache(10 * time.Millisecond)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("old-%d", i), []byte("x"), "")
	}
	time.Sleep(20 * time.Millisecond)
	c.Set("fresh", []byte("y"), "")

	if evicted := c.Sweep(); evicted != 5 {
		t.Fatalf("evicted = %d, want 5", evicted)
	}
	if _, _, ok := c.Get("fresh"); !ok {
		t.Fatal("fresh entry must survive the sweep")
	}
	if n := c.Len(); n != 1 {
		t.Fatalf("Len = %d, want 1", n)
	}
}

func TestByteCacheConcurrentAccess(t *testing.T) {
	c := NewByteCache(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("k-%d", n%4)
			for j := 0; j < 100; j++ {
				c.Set(key, []byte("data"), "application/octet-stream")
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	if n := c.Len(); n != 4 {
		t.Fatalf("Len = %d, want 4", n)
	}
}
