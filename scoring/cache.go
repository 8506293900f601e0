package scoring

import (
	"container/list"

	"github.com/ieee0824/translate-go/language"
)

// DefaultCacheSize is the default capacity of the per-task lookup cache.
const DefaultCacheSize = 5

type lookupKey struct {
	history language.HistoryKey
	word    language.WordID
}

type lookupEntry struct {
	key     lookupKey
	logProb float64
	next    language.HistoryKey
}

// lookupCache is a bounded LRU of probability lookups. It is owned by one
// task and never shared, so it needs no locking.
type lookupCache struct {
	capacity int
	ll       *list.List
	items    map[lookupKey]*list.Element
}

func newLookupCache(capacity int) *lookupCache {
	return &lookupCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[lookupKey]*list.Element, capacity),
	}
}

func (c *lookupCache) get(k lookupKey) (lookupEntry, bool) {
	if c == nil {
		return lookupEntry{}, false
	}
	el, ok := c.items[k]
	if !ok {
		return lookupEntry{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(lookupEntry), true
}

func (c *lookupCache) put(e lookupEntry) {
	if c == nil || c.capacity <= 0 {
		return
	}
	if el, ok := c.items[e.key]; ok {
		el.Value = e
		c.ll.MoveToFront(el)
		return
	}
	c.items[e.key] = c.ll.PushFront(e)
	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(lookupEntry).key)
	}
}

func (c *lookupCache) len() int {
	if c == nil {
		return 0
	}
	return c.ll.Len()
}
