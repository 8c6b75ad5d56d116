package utils

import (
	"testing"
	"time"
)

func TestStateCacheSetGet(t *testing.T) {
	c := NewStateCache(time.Minute)
	if _, ok := c.Get(1); ok {
		t.Fatal("Get hit on an empty cache")
	}
	c.Set(1, 1)
	c.Set(2, 0)
	if v, ok := c.Get(1); !ok || v != 1 {
		t.Errorf("Get(1) = %d,%v, want 1,true", v, ok)
	}
	if v, ok := c.Get(2); !ok || v != 0 {
		t.Errorf("Get(2) = %d,%v, want 0,true", v, ok)
	}
}

func TestStateCacheExpiry(t *testing.T) {
	c := NewStateCache(10 * time.Millisecond)
	c.Set(1, 1)
	time.Sleep(25 * time.Millisecond)
	if _, ok := c.Get(1); ok {
		t.Fatal("Get returned an expired entry")
	}
}

func TestStateCacheOverwrite(t *testing.T) {
	c := NewStateCache(time.Minute)
	c.Set(1, 0)
	c.Set(1, 1)
	if v, _ := c.Get(1); v != 1 {
		t.Errorf("Get(1) = %d after overwrite, want 1", v)
	}
}
