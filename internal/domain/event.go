package domain

import (
	"context"
	"math"
	"slices"
	"time"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Event is the fused view of one or more corroborating reports.
type Event struct {
	ID                 string     `json:"id"`
	EventType          EventType  `json:"event_type"`
	Location           Location   `json:"location"`
	Description        string     `json:"description,omitempty"`
	FirstSeen          time.Time  `json:"first_seen"`
	LastSeen           time.Time  `json:"last_seen"`
	CorroborationCount int        `json:"corroboration_count"`
	Confidence         float64    `json:"confidence"`
	IsActive           bool       `json:"is_active"`
	Sources            []Source   `json:"sources"`
	ReportIDs          []string   `json:"report_ids"`
	DeactivatedAt      *time.Time `json:"deactivated_at,omitempty"`
	ClearedBy          string     `json:"cleared_by,omitempty"`
}

// Clone returns a deep copy that shares no slices with e.
func (e Event) Clone() Event {
	e.Sources = slices.Clone(e.Sources)
	e.ReportIDs = slices.Clone(e.ReportIDs)
	if e.DeactivatedAt != nil {
		t := *e.DeactivatedAt
		e.DeactivatedAt = &t
	}
	return e
}

// Decay controls how confidence fades once an event stops being reported.
type Decay struct {
	After    time.Duration // grace period after LastSeen
	HalfLife time.Duration // 0 disables decay
	Floor    float64       // below this the event no longer counts
}

// Apply returns the decayed confidence for a sighting of the given age.
func (d Decay) Apply(confidence float64, age time.Duration) float64 {
	if d.HalfLife <= 0 || age <= d.After {
		return confidence
	}
	halvings := float64(age-d.After) / float64(d.HalfLife)
	return confidence * math.Pow(0.5, halvings)
}

// EffectiveConfidence is the event's confidence at scenario time at.
func (e Event) EffectiveConfidence(at time.Time, d Decay) float64 {
	if at.IsZero() || !at.After(e.LastSeen) {
		return e.Confidence
	}
	return d.Apply(e.Confidence, at.Sub(e.LastSeen))
}

// InForce reports whether the event is active and still above the decay floor
// at time at. The stored IsActive flag is not changed by decay.
func (e Event) InForce(at time.Time, d Decay) bool {
	return e.IsActive && e.EffectiveConfidence(at, d) >= d.Floor
}

// Outcome names what ingesting a report did.
type Outcome string

const (
	OutcomeCreated      Outcome = "created"
	OutcomeCorroborated Outcome = "corroborated"
	OutcomeCleared      Outcome = "cleared"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeSuperseded   Outcome = "superseded"
)

// IngestResult describes the effect of one accepted report.
type IngestResult struct {
	ReportID   string  `json:"report_id"`
	Event      Event   `json:"event"`
	Outcome    Outcome `json:"outcome"`
	Cleared    []Event `json:"cleared,omitempty"`
	Stale      bool    `json:"stale"`
	Duplicate  bool    `json:"duplicate"`
	Superseded bool    `json:"superseded"`
}

// Changed reports whether the ingest altered stored state.
func (r IngestResult) Changed() bool {
	return !r.Duplicate
}

// EventUpdate is published to the sink topic for every accepted report.
type EventUpdate struct {
	IngestResult
	ProcessedAt time.Time `json:"processed_at"`
}

// NewEventUpdate stamps an ingest result with the processing time.
func NewEventUpdate(res IngestResult) EventUpdate {
	return EventUpdate{IngestResult: res, ProcessedAt: Now()}
}
