// Package pagecache exposes a lazy, potentially long-running result stream
// as a sequence of RESTful pages addressable by opaque UUIDs, bounded by an
// LRU so that abandoned iterators are eventually released.
package pagecache

import (
	"io"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/google/uuid"
)

// defaultMaxEntries is the default number of cache entries retained before
// the oldest is evicted, per the "default 10" in the page cache's bounded
// size.
const defaultMaxEntries = 10

// Iterator produces successive batches of items. Next returns up to n
// items and whether more remain beyond them. An Iterator that also
// implements io.Closer is closed when evicted from the cache while still
// suspended, so a request that's never resumed doesn't leak whatever
// resource backs it (an open FileIndex cursor, a goroutine, etc).
type Iterator[T any] interface {
	Next(n int) (items []T, hasMore bool, err error)
}

// Page is one materialized result page.
type Page[T any] struct {
	Results    []T
	Offset     int
	NextOffset int
	This       string
	Prev       string
	Next       string
}

type suspended[T any] struct {
	iter       Iterator[T]
	prevUUID   string
	nextOffset int
}

type cacheEntry[T any] struct {
	materialized *Page[T]
	suspendedS   *suspended[T]
}

// PageCache implements the page-serving protocol over a bounded LRU of
// cache entries, keyed by page UUID.
type PageCache[T any] struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// New creates a PageCache bounded to maxEntries; 0 uses the default of 10.
func New[T any](maxEntries int) *PageCache[T] {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	c := &PageCache[T]{cache: lru.New(maxEntries)}
	c.cache.OnEvicted = func(_ lru.Key, value interface{}) {
		if entry, ok := value.(*cacheEntry[T]); ok && entry.suspendedS != nil {
			if closer, ok := entry.suspendedS.iter.(io.Closer); ok {
				closer.Close()
			}
		}
	}
	return c
}

// Get implements the page-serving protocol: it resolves pageUUID (if
// given) against the cache, resuming a suspended iterator or replaying a
// materialized page verbatim, or starts a fresh iterator from factory when
// pageUUID is empty or no longer cached (an evicted UUID transparently
// behaves as a fresh query using skip). It pulls pages of pageSize items
// until accumulated skip is exhausted or the iterator is drained.
func (c *PageCache[T]) Get(pageUUID string, skip int, factory func() Iterator[T], pageSize int) (*Page[T], error) {
	var iter Iterator[T]
	var thisUUID, prevUUID string
	var offset int

	if pageUUID != "" {
		if entry, ok := c.lookup(pageUUID); ok {
			if entry.materialized != nil {
				return entry.materialized, nil
			}
			if entry.suspendedS != nil {
				iter = entry.suspendedS.iter
				thisUUID = pageUUID
				prevUUID = entry.suspendedS.prevUUID
				offset = entry.suspendedS.nextOffset
			}
		}
	}

	if iter == nil {
		iter = factory()
		thisUUID = uuid.NewString()
		offset = 0
	}

	for {
		items, hasMore, err := iter.Next(pageSize)
		if err != nil {
			return nil, err
		}

		page := &Page[T]{
			Results:    items,
			Offset:     offset,
			NextOffset: offset + len(items),
			This:       thisUUID,
			Prev:       prevUUID,
		}

		var nextUUID string
		if hasMore {
			nextUUID = uuid.NewString()
			page.Next = nextUUID
		}

		c.store(thisUUID, &cacheEntry[T]{materialized: page})

		if hasMore {
			c.store(nextUUID, &cacheEntry[T]{suspendedS: &suspended[T]{
				iter:       iter,
				prevUUID:   thisUUID,
				nextOffset: page.NextOffset,
			}})
		}

		skip -= len(items)
		offset = page.NextOffset

		if skip < 0 || !hasMore {
			return page, nil
		}

		prevUUID = thisUUID
		thisUUID = nextUUID
	}
}

func (c *PageCache[T]) lookup(key string) (*cacheEntry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	entry, ok := value.(*cacheEntry[T])
	return entry, ok
}

func (c *PageCache[T]) store(key string, entry *cacheEntry[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, entry)
}
