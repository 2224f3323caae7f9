package roadnet

import (
	"math"
	"slices"
	"time"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
)

// Params control how events are projected onto segments.
type Params struct {
	BufferDeg   float64
	Multipliers domain.Multipliers
	Decay       domain.Decay
}

// DefaultParams are the values used when configuration leaves them unset.
var DefaultParams = Params{
	BufferDeg:   0.001,
	Multipliers: domain.DefaultMultipliers,
	Decay:       domain.Decay{After: 24 * time.Hour, HalfLife: 12 * time.Hour, Floor: 0.2},
}

// Attaches reports whether an event at point p affects the segment with the
// given geometry and bounds.
func Attaches(p domain.Geo, geometry []domain.Geo, bounds domain.BBox, buffer float64) bool {
	if !bounds.Expand(buffer).Contains(p) {
		return false
	}
	return domain.DistanceToPolyline(p, geometry) <= buffer
}

// SegmentCost derives the state of seg at scenario time at from events.
// Events that are inactive, decayed below the floor, out of range, or that
// do not affect roads are ignored.
func SegmentCost(seg domain.RoadSegment, events []domain.Event, at time.Time, p Params) domain.SegmentState {
	bounds := domain.BoundsOf(seg.Geometry)
	var attached []domain.Event
	for _, e := range events {
		if !e.InForce(at, p.Decay) {
			continue
		}
		if _, ok := p.Multipliers.ImpactOf(e.EventType); !ok {
			continue
		}
		if Attaches(e.Location.Geo(), seg.Geometry, bounds, p.BufferDeg) {
			attached = append(attached, e)
		}
	}
	return derive(seg, attached, at, p)
}

// derive picks the governing condition among the base status and attached
// hazard events: the most severe status wins, then the higher effective
// confidence, then the larger multiplier, then the earlier event.
func derive(seg domain.RoadSegment, attached []domain.Event, at time.Time, p Params) domain.SegmentState {
	best := p.Multipliers.ImpactOfStatus(seg.BaseStatus)
	bestConf := 1.0
	governing := ""
	ids := make([]string, 0, len(attached))

	for _, e := range attached {
		impact, ok := p.Multipliers.ImpactOf(e.EventType)
		if !ok {
			continue
		}
		ids = append(ids, e.ID)
		conf := e.EffectiveConfidence(at, p.Decay)
		if domain.MoreSevere(impact, best) || (impact.Status == best.Status &&
			(conf > bestConf || (conf == bestConf && impact.Multiplier > best.Multiplier))) {
			best = impact
			bestConf = conf
			governing = e.ID
		}
	}

	state := domain.SegmentState{
		SegmentID:        seg.ID,
		Status:           best.Status,
		Blocked:          best.Closed(),
		Multiplier:       best.Multiplier,
		Confidence:       bestConf,
		GoverningEventID: governing,
	}
	if len(ids) > 0 {
		state.EventIDs = slices.Clip(ids)
	}
	if state.Blocked {
		state.Cost = math.Inf(1)
	} else {
		state.Cost = seg.BaseCost * best.Multiplier
	}
	return state
}
