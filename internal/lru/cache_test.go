package lru_test

import (
	"sync"
	"testing"

	"github.com/parchment-dev/kbase/internal/lru"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPutBasic(t *testing.T) {
	c := lru.New[string, int](2)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestCapacityNeverExceeded(t *testing.T) {
	c := lru.New[int, int](3)
	for i := 0; i < 10; i++ {
		c.Put(i, i*i)
		assert.LessOrEqual(t, c.Len(), 3)
	}
	assert.Equal(t, 3, c.Len())
}

func TestStrictLRUEviction(t *testing.T) {
	c := lru.New[string, int](3)
	c.Put("k1", 1)
	c.Put("k2", 2)
	c.Put("k3", 3)

	// k1 is least recently used; inserting k4 must evict it.
	c.Put("k4", 4)

	_, ok := c.Get("k1")
	assert.False(t, ok, "k1 should have been evicted")

	for _, k := range []string{"k2", "k3", "k4"} {
		_, ok := c.Get(k)
		assert.True(t, ok, "%s should still be present", k)
	}
}

func TestGetRefreshesRecency(t *testing.T) {
	c := lru.New[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)

	// touch "a" so "b" becomes the LRU entry
	c.Get("a")
	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted, not a")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestPutExistingKeyMovesToFrontAndReplaces(t *testing.T) {
	c := lru.New[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("a", 100) // update + refresh recency
	c.Put("c", 3)   // must evict "b", not "a"

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 100, v)
}

func TestClear(t *testing.T) {
	c := lru.New[string, int](4)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestStatsUtilization(t *testing.T) {
	c := lru.New[string, int](4)
	c.Put("a", 1)
	c.Put("b", 2)

	c.Get("a")   // hit
	c.Get("nope") // miss

	s := c.Stats()
	assert.Equal(t, 2, s.Size)
	assert.Equal(t, 4, s.Capacity)
	assert.InDelta(t, 0.5, s.Utilization, 0.0001)
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
}

func TestNewPanicsOnNonPositiveCapacity(t *testing.T) {
	assert.Panics(t, func() { lru.New[string, int](0) })
	assert.Panics(t, func() { lru.New[string, int](-1) })
}

// TestConcurrentAccess exercises the contract described in the hybrid
// retrieval spec: 100 goroutines issuing 1000 operations each against a
// capacity-100 cache must never observe len > capacity, and must never
// panic or corrupt state.
func TestConcurrentAccess(t *testing.T) {
	const (
		capacity    = 100
		goroutines  = 100
		opsPerGorou = 1000
	)

	c := lru.New[int, int](capacity)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < opsPerGorou; i++ {
				key := (g*opsPerGorou + i) % (capacity * 2)
				c.Put(key, key)
				c.Get(key)
				assert.LessOrEqual(t, c.Len(), capacity)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), capacity)
}
