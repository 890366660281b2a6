// Package cache provides a thread-safe LRU+TTL cache for solve results,
// keyed on the anchor set and speed that produced them.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benholden/tdoasolve/internal/tdoa"
)

// Key identifies a cached solve by the inputs that determine its outcome.
type Key string

// SolveCache is a thread-safe LRU cache of tdoa.Result keyed by Key.
type SolveCache struct {
	capacity int
	ttl      time.Duration

	mu    sync.RWMutex
	cache map[Key]*list.Element
	lru   *list.List

	hits   int64
	misses int64
}

type entry struct {
	key       Key
	result    tdoa.Result
	stats     tdoa.SolveStats
	expiresAt time.Time
}

// NewSolveCache creates a cache holding at most capacity entries. ttl == 0
// means entries never expire on their own (only eviction reclaims them).
func NewSolveCache(capacity int, ttl time.Duration) *SolveCache {
	return &SolveCache{
		capacity: capacity,
		ttl:      ttl,
		cache:    make(map[Key]*list.Element, capacity),
		lru:      list.New(),
	}
}

// Get retrieves a cached solve result. The second return is false on a miss
// or an expired entry, in which case the entry is evicted.
func (c *SolveCache) Get(key Key) (tdoa.Result, tdoa.SolveStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.cache[key]
	if !ok {
		c.misses++
		return nil, tdoa.SolveStats{}, false
	}

	e := elem.Value.(*entry)
	if c.ttl > 0 && time.Now().After(e.expiresAt) {
		c.removeElement(elem)
		c.misses++
		return nil, tdoa.SolveStats{}, false
	}

	c.lru.MoveToFront(elem)
	c.hits++
	return e.result, e.stats, true
}

// Put stores a solve result, evicting the least-recently-used entry if the
// cache is over capacity.
func (c *SolveCache) Put(key Key, result tdoa.Result, stats tdoa.SolveStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		e := elem.Value.(*entry)
		e.result = result
		e.stats = stats
		if c.ttl > 0 {
			e.expiresAt = time.Now().Add(c.ttl)
		}
		c.lru.MoveToFront(elem)
		return
	}

	e := &entry{key: key, result: result, stats: stats}
	if c.ttl > 0 {
		e.expiresAt = time.Now().Add(c.ttl)
	}

	elem := c.lru.PushFront(e)
	c.cache[key] = elem

	if c.lru.Len() > c.capacity {
		c.evictOldest()
	}
}

// Size returns the current number of cached entries.
func (c *SolveCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

// Stats reports cumulative hit/miss counters and the current size.
type Stats struct {
	Hits    int64
	Misses  int64
	Size    int
	HitRate float64
}

// Stats returns the cache's cumulative hit/miss statistics.
func (c *SolveCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Size:    c.lru.Len(),
		HitRate: hitRate,
	}
}

func (c *SolveCache) evictOldest() {
	elem := c.lru.Back()
	if elem != nil {
		c.removeElement(elem)
	}
}

func (c *SolveCache) removeElement(elem *list.Element) {
	c.lru.Remove(elem)
	e := elem.Value.(*entry)
	delete(c.cache, e.key)
}

// DeriveKey builds a cache key from the inputs to a solve:
// anchors are hashed in the order given (callers should normalize or
// otherwise canonicalize ordering first if order-independence is wanted),
// together with the propagation speed and the cycle count, since cycle
// count changes the accuracy (and thus the result) of a solve.
func DeriveKey(anchors []tdoa.Anchor, speed float64, cycles int) Key {
	h := sha256.New()

	for _, a := range anchors {
		writeFloat64(h, a.Position.X)
		writeFloat64(h, a.Position.Y)
		writeFloat64(h, a.Position.Z)
		writeFloat64(h, a.TimeDifference)
	}
	writeFloat64(h, speed)
	binary.Write(h, binary.LittleEndian, int32(cycles))

	return Key(fmt.Sprintf("tdoa:%x", h.Sum(nil)[:16]))
}

func writeFloat64(h interface{ Write([]byte) (int, error) }, f float64) {
	bits := math.Float64bits(f)
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, bits)
	h.Write(buf)
}
