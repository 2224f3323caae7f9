package http

import (
	"math"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/couchcryptid/storm-hazard-routing/internal/engine"
)

// endpoint is a route endpoint given either as coordinates or as a place
// name for the geocoder.
type endpoint struct {
	Lat    *float64 `json:"lat,omitempty"`
	Lon    *float64 `json:"lon,omitempty"`
	Name   string   `json:"name,omitempty"`
	Region string   `json:"region,omitempty"`
}

type routeRequest struct {
	Origin      endpoint           `json:"origin"`
	Destination endpoint           `json:"destination"`
	Constraints domain.Constraints `json:"constraints"`
}

type multiRouteRequest struct {
	Origin        endpoint           `json:"origin"`
	Destinations  []endpoint         `json:"destinations"`
	Constraints   domain.Constraints `json:"constraints"`
	OptimizeOrder bool               `json:"optimize_order"`
}

type multiRouteResponse struct {
	Legs        []domain.RoutePlan `json:"legs"`
	TotalCost   float64            `json:"total_cost"`
	DistanceM   float64            `json:"distance_m"`
	DurationMin float64            `json:"duration_estimate_min"`
}

func newMultiRouteResponse(plans []domain.RoutePlan) multiRouteResponse {
	resp := multiRouteResponse{Legs: plans}
	for _, p := range plans {
		resp.TotalCost += p.TotalCost
		resp.DistanceM += p.DistanceM
		resp.DurationMin += p.DurationMin
	}
	return resp
}

// segmentView carries cost and multiplier as null for blocked segments, since
// JSON has no infinity.
type segmentView struct {
	domain.RoadSegment
	State      domain.SegmentState `json:"state"`
	Cost       *float64            `json:"cost"`
	Multiplier *float64            `json:"multiplier"`
}

func newSegmentView(s engine.SegmentView) segmentView {
	v := segmentView{RoadSegment: s.Segment, State: s.State}
	if !math.IsInf(s.State.Cost, 0) {
		cost, mult := s.State.Cost, s.State.Multiplier
		v.Cost, v.Multiplier = &cost, &mult
	}
	return v
}
