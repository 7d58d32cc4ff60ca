package store

import (
	"container/list"
	"sync"
)

// lruCache keeps recently used artifact payloads in memory.
type lruCache struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List // front = most recent
	items   map[string]*list.Element
}

type lruEntry struct {
	key  string
	data []byte
}

func newLRUCache(maxSize int) *lruCache {
	return &lruCache{
		maxSize: maxSize,
		order:   list.New(),
		items:   make(map[string]*list.Element),
	}
}

func (c *lruCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*lruEntry).data, true
}

func (c *lruCache) Add(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*lruEntry).data = data
		c.order.MoveToFront(elem)
		return
	}

	for len(c.items) >= c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*lruEntry).key)
	}

	c.items[key] = c.order.PushFront(&lruEntry{key: key, data: data})
}

func (c *lruCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.order.Remove(elem)
		delete(c.items, key)
	}
}
