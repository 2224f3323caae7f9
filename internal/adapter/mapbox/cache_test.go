package mapbox

import (
	"context"
	"testing"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	forwardCalls int
	reverseCalls int
	result       domain.GeocodingResult
}

func (m *countingGeocoder) ForwardGeocode(_ context.Context, _, _ string) (domain.GeocodingResult, error) {
	m.forwardCalls++
	return m.result, nil
}

func (m *countingGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.GeocodingResult, error) {
	m.reverseCalls++
	return m.result, nil
}

// --- CachedGeocoder tests ---

func TestCachedGeocoder_ForwardCacheHit(t *testing.T) {
	inner := &countingGeocoder{
		result: domain.GeocodingResult{Lat: 35.5686, Lon: -82.5435, PlaceName: "Biltmore Village", FormattedAddress: "Biltmore Village, Asheville, NC"},
	}
	metrics := testMetrics()
	cached := NewCachedGeocoder(inner, 10, metrics)

	r1, err := cached.ForwardGeocode(context.Background(), "Biltmore Village", "Asheville, NC")
	require.NoError(t, err)
	assert.Equal(t, "Biltmore Village", r1.PlaceName)

	// Case and surrounding whitespace do not defeat the cache.
	r2, err := cached.ForwardGeocode(context.Background(), " biltmore village", "asheville, nc")
	require.NoError(t, err)
	assert.Equal(t, "Biltmore Village", r2.PlaceName)

	assert.Equal(t, 1, inner.forwardCalls, "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("forward", "hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("forward", "miss")), 0)
}

func TestCachedGeocoder_ForwardNotFoundIsNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	_, _ = cached.ForwardGeocode(context.Background(), "Nowhere", "")
	_, _ = cached.ForwardGeocode(context.Background(), "Nowhere", "")

	assert.Equal(t, 2, inner.forwardCalls)
}

func TestCachedGeocoder_ReverseCacheHit(t *testing.T) {
	inner := &countingGeocoder{
		result: domain.GeocodingResult{FormattedAddress: "Broadway St, Asheville, NC"},
	}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	_, err := cached.ReverseGeocode(context.Background(), 35.5948, -82.5516)
	require.NoError(t, err)

	_, err = cached.ReverseGeocode(context.Background(), 35.5948, -82.5516)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.reverseCalls, "should only call inner once")
}

func TestCachedGeocoder_DifferentKeysMiss(t *testing.T) {
	inner := &countingGeocoder{
		result: domain.GeocodingResult{Lat: 35.6, Lon: -82.5, PlaceName: "Place", FormattedAddress: "Place, NC"},
	}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	_, _ = cached.ForwardGeocode(context.Background(), "West Asheville", "NC")
	_, _ = cached.ForwardGeocode(context.Background(), "Swannanoa", "NC")

	assert.Equal(t, 2, inner.forwardCalls)
}

func TestLRUCache(t *testing.T) {
	place := func(name string) domain.GeocodingResult { return domain.GeocodingResult{PlaceName: name} }

	t.Run("least recently used is evicted", func(t *testing.T) {
		c := newLRUCache(2)
		c.put("biltmore", place("Biltmore Village"))
		c.put("haywood", place("West Asheville"))
		_, _ = c.get("biltmore")
		c.put("swannanoa", place("Swannanoa"))

		_, ok := c.get("haywood")
		assert.False(t, ok)
		got, ok := c.get("biltmore")
		require.True(t, ok)
		assert.Equal(t, "Biltmore Village", got.PlaceName)
		_, ok = c.get("swannanoa")
		assert.True(t, ok)
	})

	t.Run("put replaces and promotes", func(t *testing.T) {
		c := newLRUCache(2)
		c.put("biltmore", place("old"))
		c.put("haywood", place("West Asheville"))
		c.put("biltmore", place("Biltmore Village"))
		c.put("swannanoa", place("Swannanoa"))

		got, ok := c.get("biltmore")
		require.True(t, ok)
		assert.Equal(t, "Biltmore Village", got.PlaceName)
		_, ok = c.get("haywood")
		assert.False(t, ok)
	})

	t.Run("miss", func(t *testing.T) {
		_, ok := newLRUCache(1).get("nowhere")
		assert.False(t, ok)
	})
}
