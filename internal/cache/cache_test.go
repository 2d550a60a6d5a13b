package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetSet(t *testing.T) {
	c := New[string](time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", "one")
	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "one", got)
}

func TestExpiry(t *testing.T) {
	c := New[int](time.Minute)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Set("n", 42)

	got, ok := c.Get("n")
	assert.True(t, ok)
	assert.Equal(t, 42, got)

	c.now = func() time.Time { return base.Add(2 * time.Minute) }

	_, ok = c.Get("n")
	assert.False(t, ok)
}

func TestSetEvictsExpired(t *testing.T) {
	c := New[int](time.Minute)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Set("old", 1)

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	c.Set("new", 2)

	c.mu.RLock()
	defer c.mu.RUnlock()
	_, hasOld := c.entries["old"]
	_, hasNew := c.entries["new"]
	assert.False(t, hasOld)
	assert.True(t, hasNew)
}

func TestDeletePrefix(t *testing.T) {
	c := New[int](time.Minute)
	c.Set("project:1:tree", 1)
	c.Set("project:1:stats", 2)
	c.Set("project:2:tree", 3)

	c.DeletePrefix("project:1:")

	_, ok := c.Get("project:1:tree")
	assert.False(t, ok)
	_, ok = c.Get("project:1:stats")
	assert.False(t, ok)
	_, ok = c.Get("project:2:tree")
	assert.True(t, ok)
}
