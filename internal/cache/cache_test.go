package cache

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestCache_SetAndGet(t *testing.T) {
	cache := New(0, time.Hour)

	if err := cache.Set("key1", "value1"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	value, found := cache.Get("key1")
	if !found {
		t.Fatal("expected to find key1")
	}
	if value != "value1" {
		t.Errorf("expected value1, got %v", value)
	}
}

func TestCache_GetNonExistent(t *testing.T) {
	cache := New(0, time.Hour)

	value, found := cache.Get("nonexistent")
	if found {
		t.Error("expected not to find nonexistent key")
	}
	if value != "" {
		t.Errorf("expected empty value, got %q", value)
	}
}

func TestCache_TTLExpiration(t *testing.T) {
	cache := New(0, time.Second)

	if err := cache.Set("key1", "value1"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if _, found := cache.Get("key1"); !found {
		t.Fatal("expected to find key1 immediately after setting")
	}

	time.Sleep(2100 * time.Millisecond)

	if _, found := cache.Get("key1"); found {
		t.Error("expected key1 to be expired")
	}
}

func TestCache_NoExpiry(t *testing.T) {
	cache := New(0, 0)

	if err := cache.Set("forever", "v"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if v, found := cache.Get("forever"); !found || v != "v" {
		t.Errorf("expected forever=v, got %q (found=%v)", v, found)
	}
}

func TestTTLSeconds(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want int
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{time.Hour, 3600},
	}
	for _, tt := range tests {
		if got := ttlSeconds(tt.ttl); got != tt.want {
			t.Errorf("ttlSeconds(%s) = %d, want %d", tt.ttl, got, tt.want)
		}
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := New(0, time.Hour)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = cache.Set("key", strconv.Itoa(i))
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			cache.Get("key")
		}
	}()

	wg.Wait()
}
