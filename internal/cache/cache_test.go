package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMemoryExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory[int](time.Minute).WithClock(func() time.Time { return now })

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(59 * time.Second)
	_, ok = c.Get("a")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestMemoryDeleteAndPurge(t *testing.T) {
	c := NewMemory[string](time.Hour)
	c.Set("a", "x")
	c.Set("b", "y")
	c.Set("c", "z")

	c.Delete("a", "b")
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)

	c.Purge()
	_, ok = c.Get("c")
	assert.False(t, ok)
}

func TestMemoryZeroTTLDisables(t *testing.T) {
	c := NewMemory[int](0)
	c.Set("a", 1)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestMemoryConcurrent(t *testing.T) {
	c := NewMemory[int](time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("k", i)
				c.Get("k")
			}
		}(i)
	}
	wg.Wait()
	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestMemorySetIfCurrent(t *testing.T) {
	c := NewMemory[string](time.Hour)

	gen := c.Generation()
	assert.True(t, c.SetIfCurrent("a", "fresh", gen))
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "fresh", v)

	// an invalidation between the read of gen and the store wins
	gen = c.Generation()
	c.Delete("a")
	assert.False(t, c.SetIfCurrent("a", "stale", gen))
	_, ok = c.Get("a")
	assert.False(t, ok)

	gen = c.Generation()
	c.Purge()
	assert.False(t, c.SetIfCurrent("a", "stale", gen))

	assert.False(t, NewMemory[string](0).SetIfCurrent("a", "x", 0))
}
