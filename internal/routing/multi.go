package routing

import (
	"context"
	"fmt"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/couchcryptid/storm-hazard-routing/internal/roadnet"
)

// RouteMulti plans consecutive legs from origin through every destination,
// all against the same snapshot. With optimizeOrder the visiting order is a
// greedy nearest-neighbour tour by planar distance; ties keep input order.
// The first failing leg fails the whole request.
func (r *Router) RouteMulti(ctx context.Context, snap *roadnet.Snapshot, origin domain.Geo, destinations []domain.Geo, c domain.Constraints, optimizeOrder bool) ([]domain.RoutePlan, error) {
	if optimizeOrder {
		destinations = NearestNeighbourOrder(origin, destinations)
	}

	plans := make([]domain.RoutePlan, 0, len(destinations))
	current := origin
	for i, dest := range destinations {
		plan, err := r.Route(ctx, snap, domain.RouteQuery{Origin: current, Destination: dest, Constraints: c})
		if err != nil {
			return nil, fmt.Errorf("leg %d: %w", i+1, err)
		}
		plans = append(plans, plan)
		current = dest
	}
	return plans, nil
}

// NearestNeighbourOrder returns destinations reordered so that each stop is
// the closest remaining one to the previous stop.
func NearestNeighbourOrder(origin domain.Geo, destinations []domain.Geo) []domain.Geo {
	if len(destinations) <= 1 {
		return destinations
	}
	remaining := append([]domain.Geo(nil), destinations...)
	ordered := make([]domain.Geo, 0, len(destinations))
	current := origin
	for len(remaining) > 0 {
		best := 0
		for i := 1; i < len(remaining); i++ {
			if domain.PlanarDistance(current, remaining[i]) < domain.PlanarDistance(current, remaining[best]) {
				best = i
			}
		}
		current = remaining[best]
		ordered = append(ordered, current)
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return ordered
}
