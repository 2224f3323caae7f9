package mapbox

import (
	"container/list"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/couchcryptid/storm-hazard-routing/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, name, region string) (domain.GeocodingResult, error) {
	key := fmt.Sprintf("fwd:%s|%s", strings.ToLower(strings.TrimSpace(name)), strings.ToLower(strings.TrimSpace(region)))
	if result, ok := c.lookup("forward", key); ok {
		return result, nil
	}
	result, err := c.inner.ForwardGeocode(ctx, name, region)
	if err != nil {
		return result, err
	}
	// Only cache matches so transient "not found" responses can be retried.
	if result.Found() {
		c.cache.put(key, result)
	}
	return result, nil
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := fmt.Sprintf("rev:%.5f,%.5f", lat, lon)
	if result, ok := c.lookup("reverse", key); ok {
		return result, nil
	}
	result, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	if result.FormattedAddress != "" {
		c.cache.put(key, result)
	}
	return result, nil
}

func (c *CachedGeocoder) lookup(method, key string) (domain.GeocodingResult, bool) {
	result, ok := c.cache.get(key)
	outcome := "miss"
	if ok {
		outcome = "hit"
	}
	c.metrics.GeocodeCache.WithLabelValues(method, outcome).Inc()
	return result, ok
}

// lruCache holds at most size results, dropping the least recently used.
type lruCache struct {
	mu    sync.Mutex
	size  int
	order *list.List
	items map[string]*list.Element
}

type cached struct {
	key    string
	result domain.GeocodingResult
}

func newLRUCache(size int) *lruCache {
	return &lruCache{size: size, order: list.New(), items: make(map[string]*list.Element)}
}

func (c *lruCache) get(key string) (domain.GeocodingResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return domain.GeocodingResult{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cached).result, true
}

func (c *lruCache) put(key string, result domain.GeocodingResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*cached).result = result
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&cached{key: key, result: result})
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cached).key)
	}
}
