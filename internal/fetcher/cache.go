package fetcher

import (
	"container/list"
	"sync"

	"github.com/hyperjump/refine/internal/models"
)

// pageCache is an LRU cache of fetched pages keyed by URL. Results repeat across rounds
// of the same session, so a page is downloaded once.
type pageCache struct {
	capacity int
	entries  map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	url  string
	page *models.Page
}

func newPageCache(capacity int) *pageCache {
	return &pageCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

func (c *pageCache) get(url string) (*models.Page, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[url]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return elem.Value.(*cacheEntry).page, true
}

// put stores page, evicting the least recently used entry when over capacity.
func (c *pageCache) put(url string, page *models.Page) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[url]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).page = page
		return
	}
	c.entries[url] = c.lru.PushFront(&cacheEntry{url: url, page: page})
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).url)
	}
}

func (c *pageCache) len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
