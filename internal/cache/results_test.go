package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResultCache(t *testing.T) {
	c := NewResultCache(2, time.Hour)

	k1 := Key("POLYGON((0 0,1 0,1 1,0 0))", 2017, 2024, 0.7)
	k2 := Key("POLYGON((0 0,1 0,1 1,0 0))", 2018, 2024, 0.7)
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, k1, Key("POLYGON((0 0,1 0,1 1,0 0))", 2017, 2024, 0.7))

	_, ok := c.Get(k1)
	assert.False(t, ok)

	c.Put(k1, 42.75)
	v, ok := c.Get(k1)
	assert.True(t, ok)
	assert.Equal(t, 42.75, v)

	entries, hits, misses := c.Stats()
	assert.Equal(t, 1, entries)
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	c.Clear()
	_, ok = c.Get(k1)
	assert.False(t, ok)
}

func TestResultCacheEvictsOldest(t *testing.T) {
	c := NewResultCache(2, time.Hour)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)
}

func TestResultCacheExpires(t *testing.T) {
	c := NewResultCache(4, 20*time.Millisecond)
	c.Put("a", 1)
	time.Sleep(60 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
}
