package geocode

import (
	"strings"
	"sync"
	"time"

	"github.com/example/provider-matching/internal/models"
)

// Client resolves free-text addresses to coordinates. A nil coordinate with
// a nil error means the address did not resolve; match requests proceed
// without a location in that case.
type Client interface {
	Geocode(address string) (*models.Coordinate, error)
}

// Cache is a tiny in-memory cache for geocoding results keyed by the
// normalized address text.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	coord *models.Coordinate
	ts    time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl}
}

func normalize(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

// Get returns the cached result and true when present and fresh. A cached
// nil coordinate is a remembered miss.
func (c *Cache) Get(address string) (*models.Coordinate, bool) {
	k := normalize(address)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return nil, false
	}
	if e.coord == nil {
		return nil, true
	}
	cp := *e.coord
	return &cp, true
}

func (c *Cache) Set(address string, coord *models.Coordinate) {
	k := normalize(address)
	if coord != nil {
		cp := *coord
		coord = &cp
	}
	c.mu.Lock()
	c.store[k] = cacheEntry{coord: coord, ts: time.Now()}
	c.mu.Unlock()
}

// CachedClient wraps a Client with a TTL cache. Lookup failures are not
// cached; unresolved addresses are.
type CachedClient struct {
	Inner Client
	cache *Cache
}

func NewCachedClient(inner Client, ttl time.Duration) *CachedClient {
	return &CachedClient{Inner: inner, cache: NewCache(ttl)}
}

func (c *CachedClient) Geocode(address string) (*models.Coordinate, error) {
	if coord, ok := c.cache.Get(address); ok {
		return coord, nil
	}
	coord, err := c.Inner.Geocode(address)
	if err != nil {
		return nil, err
	}
	c.cache.Set(address, coord)
	return coord, nil
}
