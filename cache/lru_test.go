package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byLength(_ string, v string) int { return len(v) }

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, string]("test_evict", 10, byLength)

	c.Set("a", "aaaa")
	c.Set("b", "bbbb")
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", "cccc")

	assert.True(t, c.Contains("a"))
	assert.False(t, c.Contains("b"))
	assert.True(t, c.Contains("c"))
	assert.Equal(t, 8, c.Size())
	assert.Equal(t, 1.0, testutil.ToFloat64(cacheEvictions.WithLabelValues("test_evict")))
}

func TestLRURejectsOversizedEntry(t *testing.T) {
	c := New[string, string]("test_oversize", 4, byLength)

	assert.True(t, c.Set("small", "ab"))
	assert.False(t, c.Set("big", "abcdef"))

	assert.False(t, c.Contains("big"))
	assert.True(t, c.Contains("small"))
	assert.Equal(t, 2, c.Size())
}

func TestLRUReplaceAdjustsSize(t *testing.T) {
	c := New[string, string]("test_replace", 100, byLength)

	c.Set("k", "12345")
	c.Set("k", "12")

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 2, c.Size())

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "12", v)
}

func TestLRUMaxEntries(t *testing.T) {
	c := New[string, string]("test_max_entries", 1000, byLength, WithMaxEntries(2))

	c.Set("a", "x")
	c.Set("b", "x")
	c.Set("c", "x")

	assert.Equal(t, 2, c.Len())
	assert.False(t, c.Contains("a"))
}

func TestLRUHitMissMetrics(t *testing.T) {
	c := New[string, string]("test_metrics", 100, byLength)
	c.Set("a", "x")

	c.Get("a")
	c.Get("a")
	c.Get("missing")

	assert.Equal(t, 2.0, testutil.ToFloat64(cacheHits.WithLabelValues("test_metrics")))
	assert.Equal(t, 1.0, testutil.ToFloat64(cacheMisses.WithLabelValues("test_metrics")))
}

func TestLRURemove(t *testing.T) {
	c := New[string, string]("test_remove", 100, byLength)
	c.Set("a", "xyz")
	c.Remove("a")
	c.Remove("a")

	assert.Zero(t, c.Len())
	assert.Zero(t, c.Size())
}

func TestLRUConcurrentAccess(t *testing.T) {
	c := New[string, string]("test_concurrent", 64, byLength)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("%d-%d", i, j%10)
				c.Set(key, "value")
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Size(), 64)
}
