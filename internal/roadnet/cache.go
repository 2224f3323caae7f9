package roadnet

import (
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"golang.org/x/sync/singleflight"
)

// EventSource supplies the event set a snapshot is built from.
type EventSource interface {
	Snapshot() ([]domain.Event, uint64)
	Version() uint64
}

// Cache lazily materializes snapshots and publishes them through an atomic
// pointer. A snapshot is reused while the source version and scenario time
// are unchanged; concurrent readers that find it stale share one rebuild.
type Cache struct {
	network *Network
	source  EventSource
	params  Params
	onBuild func(time.Duration)

	current atomic.Pointer[Snapshot]
	group   singleflight.Group
}

// NewCache creates a snapshot cache over a static network. onBuild, if not
// nil, is called with the duration of every rebuild.
func NewCache(n *Network, src EventSource, p Params, onBuild func(time.Duration)) *Cache {
	return &Cache{network: n, source: src, params: p, onBuild: onBuild}
}

// Network returns the static network.
func (c *Cache) Network() *Network { return c.network }

// Current returns the last published snapshot, or nil before the first build.
func (c *Cache) Current() *Snapshot { return c.current.Load() }

// Get returns a snapshot that reflects the source at least as of the call and
// the given scenario time. A caller that joins a rebuild started before its
// own call retries until the result covers the version it observed.
func (c *Cache) Get(at time.Time) *Snapshot {
	want := c.source.Version()
	if s := c.current.Load(); s != nil && s.fresh(want, at) {
		return s
	}

	key := at.UTC().Format(time.RFC3339Nano)
	for {
		v, _, _ := c.group.Do(key, func() (any, error) {
			if s := c.current.Load(); s != nil && s.fresh(c.source.Version(), at) {
				return s, nil
			}
			start := time.Now()
			events, version := c.source.Snapshot()
			snap := Materialize(c.network, events, at, version, c.params)
			c.publish(snap)
			if c.onBuild != nil {
				c.onBuild(time.Since(start))
			}
			return snap, nil
		})
		if snap := v.(*Snapshot); snap.Version() >= want {
			return snap
		}
	}
}

// publish stores snap unless a snapshot of a newer source version is
// already current.
func (c *Cache) publish(snap *Snapshot) {
	for {
		cur := c.current.Load()
		if cur != nil && cur.Version() > snap.Version() {
			return
		}
		if c.current.CompareAndSwap(cur, snap) {
			return
		}
	}
}
