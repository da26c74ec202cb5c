package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var fixedTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestNewCacheKey_Normalizes(t *testing.T) {
	a := NewCacheKey("  Nike   Jordan ", "Sneakers", " New ")
	b := NewCacheKey("nike jordan", "sneakers", "new")
	assert.Equal(t, a, b)
	assert.Equal(t, "nike jordan|sneakers|new", a.String())
}

func TestCache_TTL(t *testing.T) {
	clock := &fakeClock{t: fixedTime}
	c := NewCache(time.Hour, 10, clock.Now)
	key := NewCacheKey("q", "", "")
	r := &Result{Source: SourceSold}

	c.Set(key, r, clock.Now())

	clock.Advance(59 * time.Minute)
	got, ok := c.Get(key)
	assert.True(t, ok)
	assert.Same(t, r, got)

	clock.Advance(time.Minute)
	_, ok = c.Get(key)
	assert.False(t, ok, "entry expires at exactly ttl")
	assert.Equal(t, 0, c.Len())
}

func TestCache_LRUEviction(t *testing.T) {
	c := NewCache(time.Hour, 2, func() time.Time { return fixedTime })
	a, b, d := NewCacheKey("a", "", ""), NewCacheKey("b", "", ""), NewCacheKey("d", "", "")

	c.Set(a, &Result{}, fixedTime)
	c.Set(b, &Result{}, fixedTime)
	_, ok := c.Get(a) // a is now most recently used
	assert.True(t, ok)

	c.Set(d, &Result{}, fixedTime)

	_, ok = c.Get(b)
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get(a)
	assert.True(t, ok)
	_, ok = c.Get(d)
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestCache_SetOverwritesAndClear(t *testing.T) {
	c := NewCache(0, 0, nil)
	key := NewCacheKey("q", "", "")
	first, second := &Result{Source: SourceSold}, &Result{Source: SourceActive}

	c.Set(key, first, time.Now())
	c.Set(key, second, time.Now())
	got, ok := c.Get(key)
	assert.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}
