package runtime

import (
	"container/list"

	configpkg "github.com/capkit/capkit/internal/runtime/config"
)

// resultCache memoizes terminal results by fingerprint. It is not safe for
// concurrent use on its own: every access happens under the owning
// capability's mutex, like the queue and the in-flight table.
//
// The default policy (EvictionNone) preserves the source behaviour of
// insert-until-full-then-freeze: once size reaches capacity, further distinct
// inserts are silently dropped and older entries are never replaced.
// EvictionLRU opts into least-recently-used eviction instead.
type resultCache struct {
	capacity int
	eviction string

	items map[Fingerprint]*list.Element
	order *list.List // front = most recently used
}

type cacheEntry struct {
	fingerprint Fingerprint
	result      *Result
}

func newResultCache(capacity int, eviction string) *resultCache {
	if eviction == "" {
		eviction = configpkg.EvictionNone
	}
	return &resultCache{
		capacity: capacity,
		eviction: eviction,
		items:    make(map[Fingerprint]*list.Element),
		order:    list.New(),
	}
}

func (c *resultCache) Get(fp Fingerprint) (*Result, bool) {
	elem, ok := c.items[fp]
	if !ok {
		return nil, false
	}
	if c.eviction == configpkg.EvictionLRU {
		c.order.MoveToFront(elem)
	}
	return elem.Value.(*cacheEntry).result, true
}

func (c *resultCache) Put(fp Fingerprint, res *Result) {
	if c.capacity <= 0 {
		return
	}
	if elem, ok := c.items[fp]; ok {
		elem.Value.(*cacheEntry).result = res
		if c.eviction == configpkg.EvictionLRU {
			c.order.MoveToFront(elem)
		}
		return
	}
	if len(c.items) >= c.capacity {
		if c.eviction != configpkg.EvictionLRU {
			// Frozen: the cache never admits newer results once full.
			return
		}
		c.removeElement(c.order.Back())
	}
	elem := c.order.PushFront(&cacheEntry{fingerprint: fp, result: res})
	c.items[fp] = elem
}

func (c *resultCache) Clear() {
	c.items = make(map[Fingerprint]*list.Element)
	c.order.Init()
}

func (c *resultCache) Len() int { return len(c.items) }

// Resize applies a new capacity. Shrinking does not expel existing entries
// under EvictionNone (they were admitted while there was room); under LRU the
// excess least-recently-used entries are evicted immediately.
func (c *resultCache) Resize(capacity int, eviction string) {
	c.capacity = capacity
	if eviction != "" {
		c.eviction = eviction
	}
	if c.eviction == configpkg.EvictionLRU {
		for len(c.items) > c.capacity && c.order.Len() > 0 {
			c.removeElement(c.order.Back())
		}
	}
}

func (c *resultCache) removeElement(elem *list.Element) {
	if elem == nil {
		return
	}
	entry := elem.Value.(*cacheEntry)
	delete(c.items, entry.fingerprint)
	c.order.Remove(elem)
}
