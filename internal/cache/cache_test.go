package cache

import (
	"errors"
	"testing"
	"time"
)

func newTestCache() (*Cache[int, string], *time.Time) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New[int, string]()
	c.now = func() time.Time { return now }
	return c, &now
}

func TestGetHonoursTTL(t *testing.T) {
	c, now := newTestCache()
	c.Set(1, "identity", TTLSlow)

	if v, ok := c.Get(1); !ok || v != "identity" {
		t.Fatalf("Get = %q, %v", v, ok)
	}

	*now = now.Add(TTLSlow + time.Second)
	if _, ok := c.Get(1); ok {
		t.Error("expired entry returned")
	}
	if e, ok := c.GetEntry(1); !ok || e.Value != "identity" {
		t.Error("GetEntry should return expired entries")
	}

	c.Cleanup()
	if c.Len() != 0 {
		t.Errorf("Len after Cleanup = %d", c.Len())
	}
}

func TestGetOrFetch(t *testing.T) {
	c, now := newTestCache()
	calls := 0
	fetch := func() (string, error) {
		calls++
		return "v", nil
	}

	for i := 0; i < 3; i++ {
		if v, err := c.GetOrFetch(7, TTLFast, fetch); err != nil || v != "v" {
			t.Fatalf("GetOrFetch = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}

	*now = now.Add(TTLFast * 2)
	c.GetOrFetch(7, TTLFast, fetch)
	if calls != 2 {
		t.Errorf("fetch called %d times after expiry, want 2", calls)
	}

	failing := errors.New("rejected")
	if _, err := c.GetOrFetch(8, TTLFast, func() (string, error) { return "", failing }); !errors.Is(err, failing) {
		t.Errorf("err = %v", err)
	}
	if _, ok := c.Get(8); ok {
		t.Error("failed fetch was cached")
	}
}

func TestDeleteAndClear(t *testing.T) {
	c, _ := newTestCache()
	c.Set(1, "a", TTLStatic)
	c.Set(2, "b", TTLStatic)

	c.Delete(1)
	if _, ok := c.Get(1); ok {
		t.Error("deleted entry returned")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}
}
