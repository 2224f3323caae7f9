package routing

import (
	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/couchcryptid/storm-hazard-routing/internal/roadnet"
)

// anchor is the graph node a query endpoint snapped to.
type anchor struct {
	node    int
	segment int
}

// snapTo finds the segment nearest to p within radius degrees and anchors at
// its nearer endpoint. Equal distances resolve to the lower segment index,
// which is ID order. Closed segments are candidates too: their endpoints may
// still be reachable through other roads.
func snapTo(n *roadnet.Network, endpoint string, p domain.Geo, radius float64) (anchor, error) {
	bestSeg := -1
	bestDist := radius
	for i := range n.Len() {
		if !n.Bounds(i).Expand(radius).Contains(p) {
			continue
		}
		d := domain.DistanceToPolyline(p, n.Segment(i).Geometry)
		if d < bestDist || (d == bestDist && bestSeg < 0) {
			bestSeg, bestDist = i, d
		}
	}
	if bestSeg < 0 {
		return anchor{}, &domain.UnreachableLocationError{Endpoint: endpoint, Location: p, RadiusDeg: radius}
	}

	from, to := n.Ends(bestSeg)
	node := from
	if domain.PlanarDistance(p, n.Node(to)) < domain.PlanarDistance(p, n.Node(from)) {
		node = to
	}
	return anchor{node: node, segment: bestSeg}, nil
}
