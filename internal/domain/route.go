package domain

import "time"

// Constraints narrow the set of usable segments for one query.
type Constraints struct {
	AvoidDamaged    bool     `json:"avoid_damaged,omitempty"`
	ExcludeSegments []string `json:"exclude_segments,omitempty"`
}

// RouteQuery asks for the cheapest hazard-aware path between two points.
type RouteQuery struct {
	Origin      Geo         `json:"origin"`
	Destination Geo         `json:"destination"`
	Constraints Constraints `json:"constraints"`
}

// HazardRef is an event the router steered around.
type HazardRef struct {
	EventID     string    `json:"event_id"`
	EventType   EventType `json:"event_type"`
	Location    Geo       `json:"location"`
	Description string    `json:"description,omitempty"`
	Confidence  float64   `json:"confidence"`
	SegmentIDs  []string  `json:"segment_ids"`
}

// Maneuver is the turn taken at the start of a step.
type Maneuver string

const (
	ManeuverDepart      Maneuver = "depart"
	ManeuverContinue    Maneuver = "continue"
	ManeuverSlightLeft  Maneuver = "slight_left"
	ManeuverSlightRight Maneuver = "slight_right"
	ManeuverLeft        Maneuver = "left"
	ManeuverRight       Maneuver = "right"
	ManeuverSharpLeft   Maneuver = "sharp_left"
	ManeuverSharpRight  Maneuver = "sharp_right"
	ManeuverUTurn       Maneuver = "u_turn"
	ManeuverArrive      Maneuver = "arrive"
)

// Step is one turn-by-turn instruction: a maneuver onto a road followed by
// the distance travelled on it.
type Step struct {
	Maneuver    Maneuver `json:"maneuver"`
	Road        string   `json:"road"`
	Instruction string   `json:"instruction"`
	DistanceM   float64  `json:"distance_m"`
	Location    Geo      `json:"location"`
	SegmentIDs  []string `json:"segment_ids,omitempty"`
}

// RoutePlan is the answer to a RouteQuery.
type RoutePlan struct {
	ID              string      `json:"id"`
	Segments        []string    `json:"segments_traversed"`
	Waypoints       []Geo       `json:"waypoints"`
	Steps           []Step      `json:"steps"`
	DistanceM       float64     `json:"distance_m"`
	DurationMin     float64     `json:"duration_estimate_min"`
	TotalCost       float64     `json:"total_cost"`
	HazardsAvoided  []HazardRef `json:"hazards_avoided"`
	Confidence      float64     `json:"confidence"`
	Summary         string      `json:"summary"`
	SnapshotVersion uint64      `json:"snapshot_version"`
	ScenarioTime    time.Time   `json:"scenario_time"`
}
