// Package roadnet models the static road network and the immutable,
// hazard-aware snapshots derived from it.
package roadnet

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
)

// Arc is one traversable direction of a segment.
type Arc struct {
	Segment int
	From    int
	To      int
	Forward bool // travels along the segment geometry
}

// Network is the static road graph. It is immutable after NewNetwork and safe
// for concurrent use.
type Network struct {
	segments []domain.RoadSegment
	byID     map[string]int
	bounds   []domain.BBox
	ends     [][2]int
	nodes    []domain.Geo
	out      [][]Arc
	touching [][]int
}

type nodeKey struct {
	lat, lon int64
}

func keyOf(g domain.Geo) nodeKey {
	return nodeKey{lat: int64(math.Round(g.Lat * 1e6)), lon: int64(math.Round(g.Lon * 1e6))}
}

// NewNetwork builds a graph from segments. Segment endpoints that agree to six
// decimal places share a node. Missing lengths are computed from geometry and
// a missing base cost defaults to the length in meters.
func NewNetwork(segments []domain.RoadSegment) (*Network, error) {
	if len(segments) == 0 {
		return nil, errors.New("road network has no segments")
	}

	segs := slices.Clone(segments)
	slices.SortFunc(segs, func(a, b domain.RoadSegment) int { return cmp.Compare(a.ID, b.ID) })

	n := &Network{
		segments: segs,
		byID:     make(map[string]int, len(segs)),
		bounds:   make([]domain.BBox, len(segs)),
		ends:     make([][2]int, len(segs)),
	}
	nodeIndex := make(map[nodeKey]int)
	node := func(g domain.Geo) int {
		k := keyOf(g)
		if i, ok := nodeIndex[k]; ok {
			return i
		}
		i := len(n.nodes)
		nodeIndex[k] = i
		n.nodes = append(n.nodes, g)
		n.out = append(n.out, nil)
		n.touching = append(n.touching, nil)
		return i
	}

	for i := range n.segments {
		s := &n.segments[i]
		if s.ID == "" {
			return nil, fmt.Errorf("segment %d: id is required", i)
		}
		if _, dup := n.byID[s.ID]; dup {
			return nil, fmt.Errorf("segment %s: duplicate id", s.ID)
		}
		if len(s.Geometry) < 2 {
			return nil, fmt.Errorf("segment %s: geometry needs at least two points", s.ID)
		}
		s.Geometry = slices.Clone(s.Geometry)
		if s.LengthM <= 0 {
			s.LengthM = domain.LengthMeters(s.Geometry)
		}
		if s.BaseCost == 0 {
			s.BaseCost = s.LengthM
		}
		if s.BaseCost < 0 || math.IsNaN(s.BaseCost) || math.IsInf(s.BaseCost, 0) {
			return nil, fmt.Errorf("segment %s: base cost must be a non-negative finite number", s.ID)
		}

		n.byID[s.ID] = i
		n.bounds[i] = domain.BoundsOf(s.Geometry)
		from, to := node(s.Start()), node(s.End())
		n.ends[i] = [2]int{from, to}

		n.out[from] = append(n.out[from], Arc{Segment: i, From: from, To: to, Forward: true})
		if !s.OneWay {
			n.out[to] = append(n.out[to], Arc{Segment: i, From: to, To: from, Forward: false})
		}
		n.touching[from] = append(n.touching[from], i)
		if to != from {
			n.touching[to] = append(n.touching[to], i)
		}
	}
	return n, nil
}

// Len is the number of segments.
func (n *Network) Len() int { return len(n.segments) }

// Segment returns the segment at index i.
func (n *Network) Segment(i int) domain.RoadSegment { return n.segments[i] }

// Segments returns every segment sorted by ID. The slice must not be modified.
func (n *Network) Segments() []domain.RoadSegment { return n.segments }

// Index returns the index of the segment with the given ID.
func (n *Network) Index(id string) (int, bool) {
	i, ok := n.byID[id]
	return i, ok
}

// Bounds returns the bounding box of segment i.
func (n *Network) Bounds(i int) domain.BBox { return n.bounds[i] }

// Ends returns the start and end node of segment i.
func (n *Network) Ends(i int) (from, to int) { return n.ends[i][0], n.ends[i][1] }

// NodeCount is the number of distinct segment endpoints.
func (n *Network) NodeCount() int { return len(n.nodes) }

// Node returns the position of node i.
func (n *Network) Node(i int) domain.Geo { return n.nodes[i] }

// Out returns the arcs leaving node i regardless of segment state.
func (n *Network) Out(i int) []Arc { return n.out[i] }

// Touching returns the segments with an endpoint at node i.
func (n *Network) Touching(i int) []int { return n.touching[i] }
