package roadnet

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 9, 28, 12, 0, 0, 0, time.UTC)

func seg(id string, cost float64, pts ...domain.Geo) domain.RoadSegment {
	return domain.RoadSegment{ID: id, Name: id, Geometry: pts, BaseCost: cost}
}

func event(id string, typ domain.EventType, at domain.Geo, conf float64) domain.Event {
	return domain.Event{
		ID:         id,
		EventType:  typ,
		Location:   domain.Location{Lat: at.Lat, Lon: at.Lon},
		FirstSeen:  t0,
		LastSeen:   t0,
		Confidence: conf,
		IsActive:   true,
	}
}

var (
	a = domain.Geo{Lat: 35.60, Lon: -82.55}
	b = domain.Geo{Lat: 35.60, Lon: -82.54}
	c = domain.Geo{Lat: 35.61, Lon: -82.54}
)

func mid(p, q domain.Geo) domain.Geo {
	return domain.Geo{Lat: (p.Lat + q.Lat) / 2, Lon: (p.Lon + q.Lon) / 2}
}

func TestNewNetwork(t *testing.T) {
	n, err := NewNetwork([]domain.RoadSegment{
		seg("s2", 0, b, c),
		seg("s1", 10, a, b),
		{ID: "s3", Geometry: []domain.Geo{c, a}, OneWay: true},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, n.Len())
	assert.Equal(t, 3, n.NodeCount())
	assert.Equal(t, "s1", n.Segment(0).ID, "segments are sorted by id")

	i, ok := n.Index("s2")
	require.True(t, ok)
	s2 := n.Segment(i)
	assert.InDelta(t, 1113.2, s2.LengthM, 0.5)
	assert.InDelta(t, s2.LengthM, s2.BaseCost, 1e-9, "base cost defaults to length")

	from, to := n.Ends(0)
	assert.Equal(t, a, n.Node(from))
	assert.Equal(t, b, n.Node(to))
	assert.Len(t, n.Out(from), 1, "one-way s3 does not leave a")
	assert.Len(t, n.Touching(from), 2)

	_, ok = n.Index("missing")
	assert.False(t, ok)
}

func TestNewNetwork_Errors(t *testing.T) {
	tests := []struct {
		name string
		segs []domain.RoadSegment
		msg  string
	}{
		{"empty", nil, "no segments"},
		{"missing id", []domain.RoadSegment{seg("", 1, a, b)}, "id is required"},
		{"duplicate id", []domain.RoadSegment{seg("x", 1, a, b), seg("x", 1, b, c)}, "duplicate id"},
		{"short geometry", []domain.RoadSegment{seg("x", 1, a)}, "at least two points"},
		{"negative cost", []domain.RoadSegment{seg("x", -1, a, b)}, "non-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNetwork(tt.segs)
			require.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestSegmentCost(t *testing.T) {
	s := seg("s1", 10, a, b)
	at := t0.Add(time.Hour)
	p := DefaultParams
	onRoad := mid(a, b)

	t.Run("open", func(t *testing.T) {
		st := SegmentCost(s, nil, at, p)
		assert.Equal(t, domain.StatusOpen, st.Status)
		assert.InDelta(t, 10, st.Cost, 1e-9)
		assert.InDelta(t, 1.0, st.Confidence, 1e-9)
		assert.False(t, st.Blocked)
		assert.Empty(t, st.EventIDs)
	})

	t.Run("damaged", func(t *testing.T) {
		st := SegmentCost(s, []domain.Event{event("e1", domain.EventRoadDamage, onRoad, 0.6)}, at, p)
		assert.Equal(t, domain.StatusDamaged, st.Status)
		assert.InDelta(t, 30, st.Cost, 1e-9)
		assert.InDelta(t, 0.6, st.Confidence, 1e-9)
		assert.Equal(t, "e1", st.GoverningEventID)
	})

	t.Run("higher confidence governs within a status", func(t *testing.T) {
		st := SegmentCost(s, []domain.Event{
			event("e1", domain.EventRoadDamage, onRoad, 0.9),
			event("e2", domain.EventFlooding, onRoad, 0.3),
		}, at, p)
		assert.InDelta(t, 30, st.Cost, 1e-9)
		assert.Equal(t, "e1", st.GoverningEventID)
		assert.InDelta(t, 0.9, st.Confidence, 1e-9)
		assert.Equal(t, []string{"e1", "e2"}, st.EventIDs)
		assert.Equal(t, 2, st.HazardCount())
	})

	t.Run("confident flooding governs damage", func(t *testing.T) {
		st := SegmentCost(s, []domain.Event{
			event("e1", domain.EventRoadDamage, onRoad, 0.4),
			event("e2", domain.EventFlooding, onRoad, 0.9),
		}, at, p)
		assert.InDelta(t, 50, st.Cost, 1e-9)
		assert.Equal(t, "e2", st.GoverningEventID)
	})

	t.Run("larger multiplier breaks a confidence tie", func(t *testing.T) {
		st := SegmentCost(s, []domain.Event{
			event("e1", domain.EventRoadDamage, onRoad, 0.7),
			event("e2", domain.EventFlooding, onRoad, 0.7),
		}, at, p)
		assert.InDelta(t, 50, st.Cost, 1e-9)
		assert.Equal(t, "e2", st.GoverningEventID)
	})

	t.Run("closure blocks", func(t *testing.T) {
		st := SegmentCost(s, []domain.Event{
			event("e1", domain.EventRoadDamage, onRoad, 0.9),
			event("e2", domain.EventRoadClosure, onRoad, 0.3),
		}, at, p)
		assert.True(t, st.Blocked)
		assert.Equal(t, domain.StatusClosed, st.Status)
		assert.True(t, math.IsInf(st.Cost, 1))
		assert.InDelta(t, 0.3, st.Confidence, 1e-9)
	})

	t.Run("highest confidence governs among equals", func(t *testing.T) {
		st := SegmentCost(s, []domain.Event{
			event("e1", domain.EventRoadClosure, onRoad, 0.5),
			event("e2", domain.EventBridgeCollapse, onRoad, 0.8),
		}, at, p)
		assert.Equal(t, "e2", st.GoverningEventID)
		assert.InDelta(t, 0.8, st.Confidence, 1e-9)
	})

	t.Run("ignored events", func(t *testing.T) {
		inactive := event("e1", domain.EventRoadClosure, onRoad, 0.9)
		inactive.IsActive = false
		far := event("e2", domain.EventRoadClosure, domain.Geo{Lat: 35.62, Lon: -82.545}, 0.9)
		shelter := event("e3", domain.EventShelterNeed, onRoad, 0.9)
		decayed := event("e4", domain.EventRoadClosure, onRoad, 0.3)

		st := SegmentCost(s, []domain.Event{inactive, far, shelter, decayed}, t0.Add(48*time.Hour), p)
		assert.Equal(t, domain.StatusOpen, st.Status)
		assert.Empty(t, st.EventIDs)
	})

	t.Run("within buffer of the polyline", func(t *testing.T) {
		near := domain.Geo{Lat: onRoad.Lat + 0.0008, Lon: onRoad.Lon}
		st := SegmentCost(s, []domain.Event{event("e1", domain.EventRoadClosure, near, 0.9)}, at, p)
		assert.True(t, st.Blocked)
	})

	t.Run("static closed status", func(t *testing.T) {
		closed := s
		closed.BaseStatus = domain.StatusClosed
		st := SegmentCost(closed, nil, at, p)
		assert.True(t, st.Blocked)
		assert.InDelta(t, 1.0, st.Confidence, 1e-9)
	})
}

func TestMaterialize(t *testing.T) {
	n, err := NewNetwork([]domain.RoadSegment{
		seg("s1", 10, a, b),
		seg("s2", 10, b, c),
		seg("s3", 10, c, a),
	})
	require.NoError(t, err)

	events := []domain.Event{
		event("closure", domain.EventRoadClosure, mid(a, b), 0.8),
		event("damage", domain.EventRoadDamage, mid(b, c), 0.6),
		event("shelter", domain.EventShelterOpening, domain.Geo{Lat: 35.7, Lon: -82.6}, 0.9),
	}
	snap := Materialize(n, events, t0, 7, DefaultParams)

	assert.Equal(t, uint64(7), snap.Version())
	assert.Equal(t, t0, snap.ScenarioTime())

	st := snap.Status()
	assert.Equal(t, 3, st.TotalSegments)
	assert.Equal(t, 1, st.BlockedSegments)
	assert.Equal(t, 1, st.DamagedSegments)
	assert.Equal(t, 1, st.OpenSegments)
	assert.InDelta(t, (0.8+0.6+1.0)/3, st.MeanConfidence, 1e-9)
	assert.Equal(t, 3, st.ActiveEvents)
	assert.Equal(t, 1, st.ActiveEventsByType[domain.EventRoadClosure])

	// The closed segment s1 is absent from the routable adjacency.
	from, _ := n.Ends(0)
	for _, arc := range snap.Out(from) {
		assert.NotEqual(t, 0, arc.Segment)
	}
	assert.Len(t, n.Out(from), 2)
	assert.Len(t, snap.Out(from), 1)

	e, ok := snap.Event("damage")
	require.True(t, ok)
	assert.Equal(t, domain.EventRoadDamage, e.EventType)

	// Status returns a copy.
	st.ActiveEventsByType[domain.EventRoadClosure] = 99
	assert.Equal(t, 1, snap.Status().ActiveEventsByType[domain.EventRoadClosure])
}

type fakeSource struct {
	mu      sync.Mutex
	events  []domain.Event
	version uint64
	reads   atomic.Int32
}

func (f *fakeSource) Snapshot() ([]domain.Event, uint64) {
	f.reads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Event(nil), f.events...), f.version
}

func (f *fakeSource) Version() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

func (f *fakeSource) add(e domain.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	f.version++
}

func TestCache(t *testing.T) {
	n, err := NewNetwork([]domain.RoadSegment{seg("s1", 10, a, b)})
	require.NoError(t, err)

	src := &fakeSource{}
	var builds atomic.Int32
	cache := NewCache(n, src, DefaultParams, func(time.Duration) { builds.Add(1) })
	assert.Nil(t, cache.Current())

	first := cache.Get(t0)
	assert.Same(t, first, cache.Get(t0), "unchanged source reuses the snapshot")
	assert.Same(t, first, cache.Current())
	assert.Equal(t, int32(1), builds.Load())

	src.add(event("e1", domain.EventRoadClosure, mid(a, b), 0.9))
	second := cache.Get(t0)
	assert.NotSame(t, first, second)
	assert.True(t, second.State(0).Blocked)
	assert.False(t, first.State(0).Blocked, "published snapshots are immutable")

	third := cache.Get(t0.Add(time.Hour))
	assert.NotSame(t, second, third, "advancing scenario time invalidates")
	assert.Equal(t, int32(3), builds.Load())
}

func TestCache_ConcurrentReadersShareOneBuild(t *testing.T) {
	n, err := NewNetwork([]domain.RoadSegment{seg("s1", 10, a, b)})
	require.NoError(t, err)

	src := &fakeSource{}
	var builds atomic.Int32
	cache := NewCache(n, src, DefaultParams, func(time.Duration) { builds.Add(1) })

	var wg sync.WaitGroup
	snaps := make([]*Snapshot, 32)
	for i := range snaps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snaps[i] = cache.Get(t0)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	for _, s := range snaps {
		assert.Same(t, snaps[0], s)
	}
}

// gatedSource blocks the first Snapshot read until release is closed.
type gatedSource struct {
	*fakeSource
	entered, release chan struct{}
	gated            atomic.Bool
}

func (g *gatedSource) Snapshot() ([]domain.Event, uint64) {
	events, v := g.fakeSource.Snapshot()
	if g.gated.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return events, v
}

func TestCache_ReaderJoiningStaleBuildSeesCommittedWrite(t *testing.T) {
	n, err := NewNetwork([]domain.RoadSegment{seg("s1", 10, a, b)})
	require.NoError(t, err)

	src := &gatedSource{fakeSource: &fakeSource{}, entered: make(chan struct{}), release: make(chan struct{})}
	src.gated.Store(true)
	cache := NewCache(n, src, DefaultParams, nil)

	early := make(chan *Snapshot, 1)
	go func() { early <- cache.Get(t0) }()
	<-src.entered

	src.add(event("e1", domain.EventRoadClosure, mid(a, b), 0.9))
	late := make(chan *Snapshot, 1)
	go func() { late <- cache.Get(t0) }()
	time.Sleep(20 * time.Millisecond)
	close(src.release)

	assert.Equal(t, uint64(0), (<-early).Version())
	got := <-late
	assert.Equal(t, uint64(1), got.Version())
	assert.True(t, got.State(0).Blocked)
	assert.Equal(t, uint64(1), cache.Current().Version())
}

func TestCache_StaleBuildDoesNotReplaceNewer(t *testing.T) {
	n, err := NewNetwork([]domain.RoadSegment{seg("s1", 10, a, b)})
	require.NoError(t, err)
	cache := NewCache(n, &fakeSource{}, DefaultParams, nil)

	closure := []domain.Event{event("e1", domain.EventRoadClosure, mid(a, b), 0.9)}
	newer := Materialize(n, closure, t0, 2, DefaultParams)
	cache.publish(newer)
	cache.publish(Materialize(n, nil, t0, 1, DefaultParams))

	assert.Same(t, newer, cache.Current())
}
