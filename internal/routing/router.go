// Package routing computes hazard-aware least-cost routes over road network
// snapshots.
package routing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/couchcryptid/storm-hazard-routing/internal/roadnet"
	"github.com/google/uuid"
)

var planNamespace = uuid.MustParse("2f1c8a52-7a0e-4c8e-9a55-3b1f4a6f0d21")

// Params bounds and calibrates route search.
type Params struct {
	SnapRadiusDeg   float64
	Timeout         time.Duration
	SpeedNormalKmh  float64
	SpeedDamagedKmh float64
}

// DefaultParams are used for zero fields passed to NewRouter.
var DefaultParams = Params{
	SnapRadiusDeg:   0.02,
	Timeout:         2 * time.Second,
	SpeedNormalKmh:  50,
	SpeedDamagedKmh: 20,
}

// Router answers route queries against a snapshot. It holds no mutable state
// and is safe for concurrent use.
type Router struct {
	params Params
}

func NewRouter(p Params) *Router {
	if p.SnapRadiusDeg <= 0 {
		p.SnapRadiusDeg = DefaultParams.SnapRadiusDeg
	}
	if p.SpeedNormalKmh <= 0 {
		p.SpeedNormalKmh = DefaultParams.SpeedNormalKmh
	}
	if p.SpeedDamagedKmh <= 0 {
		p.SpeedDamagedKmh = DefaultParams.SpeedDamagedKmh
	}
	return &Router{params: p}
}

// Params returns the effective parameters.
func (r *Router) Params() Params { return r.params }

// Route finds the least-cost path between the query endpoints. Closed
// segments are never traversed. Errors are *domain.UnreachableLocationError,
// *domain.NoPathError, or wrap domain.ErrRoutingTimeout or context.Canceled.
func (r *Router) Route(ctx context.Context, snap *roadnet.Snapshot, q domain.RouteQuery) (domain.RoutePlan, error) {
	if r.params.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.params.Timeout)
		defer cancel()
	}

	n := snap.Network()
	origin, err := snapTo(n, "origin", q.Origin, r.params.SnapRadiusDeg)
	if err != nil {
		return domain.RoutePlan{}, err
	}
	dest, err := snapTo(n, "destination", q.Destination, r.params.SnapRadiusDeg)
	if err != nil {
		return domain.RoutePlan{}, err
	}

	skip := pruned(snap, q.Constraints)
	res, err := search(ctx, snap, origin.node, dest.node, skip)
	if err != nil {
		return domain.RoutePlan{}, err
	}
	if !res.found {
		return domain.RoutePlan{}, &domain.NoPathError{BlockingSegments: blockingSegments(snap, res, skip)}
	}
	return r.plan(snap, q, res, skip, dest.node), nil
}

// pruned marks segments the query's constraints rule out. Unknown segment
// IDs are ignored.
func pruned(snap *roadnet.Snapshot, c domain.Constraints) []bool {
	n := snap.Network()
	skip := make([]bool, n.Len())
	for _, id := range c.ExcludeSegments {
		if i, ok := n.Index(id); ok {
			skip[i] = true
		}
	}
	if c.AvoidDamaged {
		for i, st := range snap.States() {
			if st.Status == domain.StatusDamaged {
				skip[i] = true
			}
		}
	}
	return skip
}

func (r *Router) plan(snap *roadnet.Snapshot, q domain.RouteQuery, res *result, skip []bool, destNode int) domain.RoutePlan {
	n := snap.Network()
	plan := domain.RoutePlan{
		Segments:        make([]string, 0, len(res.arcs)),
		TotalCost:       res.label.cost,
		Confidence:      res.label.minConf,
		SnapshotVersion: snap.Version(),
		ScenarioTime:    snap.ScenarioTime(),
	}

	for i, a := range res.arcs {
		seg := n.Segment(a.Segment)
		plan.Segments = append(plan.Segments, seg.ID)
		plan.DistanceM += seg.LengthM
		speed := r.params.SpeedNormalKmh
		if snap.State(a.Segment).Status == domain.StatusDamaged {
			speed = r.params.SpeedDamagedKmh
		}
		plan.DurationMin += seg.LengthM / 1000 / speed * 60

		geom := oriented(n, a)
		if i > 0 {
			geom = geom[1:]
		}
		plan.Waypoints = append(plan.Waypoints, geom...)
	}
	if len(res.arcs) == 0 {
		plan.Waypoints = []domain.Geo{n.Node(destNode)}
	}

	plan.HazardsAvoided = avoidedHazards(snap, res, skip)
	plan.Steps = buildSteps(n, res.arcs, n.Node(destNode))
	plan.Summary = summarize(snap, res.arcs, plan.HazardsAvoided)
	plan.ID = planID(snap, q, plan.Segments)
	return plan
}

// planID is stable for a snapshot, query, and path.
func planID(snap *roadnet.Snapshot, q domain.RouteQuery, segments []string) string {
	key := fmt.Sprintf("%d|%s|%s|%s|%s",
		snap.Version(),
		snap.ScenarioTime().UTC().Format(time.RFC3339Nano),
		q.Origin, q.Destination,
		strings.Join(segments, ","),
	)
	return "route-" + uuid.NewSHA1(planNamespace, []byte(key)).String()
}
