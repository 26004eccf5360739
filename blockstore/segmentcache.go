package blockstore

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// segmentCache bounds the number of segment files held open for reads.
// The writer does not use this cache: writes require fsync immediately
// before the index commit and an unconditional close on every exit
// path, so each write opens and closes its own descriptor. Reads carry
// no such constraint, so repeated reads of a hot segment reuse one
// descriptor instead of reopening it every call.
type segmentCache struct {
	mu      sync.Mutex
	cache   *lru.Cache[string, *segmentFile]
	metrics Metrics
	// open tracks the descriptor count outside the lru.Cache itself.
	// onEvict runs synchronously under the Cache's own internal lock
	// (from inside Add/Remove), so the callback must never call back
	// into the Cache (e.g. Len()) — that's a self-deadlock. A plain
	// counter, updated here and decremented in onEvict, avoids it.
	open int
}

// newSegmentCache returns a cache holding at most size open segment
// descriptors, closing the least-recently-used one on eviction.
func newSegmentCache(size int, metrics Metrics) *segmentCache {
	c := &segmentCache{metrics: metrics}
	cache, _ := lru.NewWithEvict(size, func(_ string, f *segmentFile) {
		_ = f.close()
		c.open--
		c.metrics.SetOpenSegments(c.open)
	})
	c.cache = cache
	return c
}

// getForRead returns an open read descriptor for path, opening and
// caching one if absent.
func (c *segmentCache) getForRead(path string) (*segmentFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.cache.Get(path); ok {
		return f, nil
	}
	f, err := openSegmentForRead(path)
	if err != nil {
		return nil, err
	}
	c.cache.Add(path, f)
	c.open++
	c.metrics.SetOpenSegments(c.open)
	return f, nil
}

// invalidate drops and closes any cached descriptor for path, used
// after a prune (single or batched) unlinks a segment so a stale
// descriptor is never read from again.
func (c *segmentCache) invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cache.Get(path); ok {
		// Remove triggers onEvict synchronously, which closes the
		// descriptor and decrements c.open itself.
		c.cache.Remove(path)
	}
}

func (c *segmentCache) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
	c.open = 0
	c.metrics.SetOpenSegments(0)
}
