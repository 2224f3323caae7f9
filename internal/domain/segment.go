package domain

import "time"

// RoadSegment is a static piece of the road network between two nodes.
// Geometry runs from the first node to the last.
type RoadSegment struct {
	ID         string  `json:"id"`
	Name       string  `json:"name,omitempty"`
	Highway    string  `json:"highway,omitempty"`
	Geometry   []Geo   `json:"geometry"`
	LengthM    float64 `json:"length_m"`
	BaseCost   float64 `json:"base_cost"`
	BaseStatus Status  `json:"base_status"`
	OneWay     bool    `json:"one_way,omitempty"`
}

// Start returns the first point of the segment geometry.
func (s RoadSegment) Start() Geo { return s.Geometry[0] }

// End returns the last point of the segment geometry.
func (s RoadSegment) End() Geo { return s.Geometry[len(s.Geometry)-1] }

// SegmentState is a segment's derived state inside one snapshot.
// Cost and Multiplier are +Inf when Blocked.
type SegmentState struct {
	SegmentID        string   `json:"segment_id"`
	Status           Status   `json:"status"`
	Blocked          bool     `json:"blocked"`
	Multiplier       float64  `json:"-"`
	Cost             float64  `json:"-"`
	Confidence       float64  `json:"confidence"`
	EventIDs         []string `json:"event_ids,omitempty"`
	GoverningEventID string   `json:"governing_event_id,omitempty"`
}

// HazardCount is the number of in-force hazard events attached to the segment.
func (s SegmentState) HazardCount() int {
	return len(s.EventIDs)
}

// NetworkStatus aggregates the current snapshot for the presentation layer.
type NetworkStatus struct {
	TotalSegments      int               `json:"total_segments"`
	OpenSegments       int               `json:"open_segments"`
	DamagedSegments    int               `json:"damaged_segments"`
	BlockedSegments    int               `json:"blocked_segments"`
	MeanConfidence     float64           `json:"mean_confidence"`
	ActiveEvents       int               `json:"active_events"`
	ActiveEventsByType map[EventType]int `json:"active_events_by_type"`
	SnapshotVersion    uint64            `json:"snapshot_version"`
	ScenarioTime       time.Time         `json:"scenario_time"`
}
