package engine

import (
	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
)

// EventFilter narrows an event listing. Zero values match everything.
type EventFilter struct {
	Type   domain.EventType
	Active *bool
}

func (f EventFilter) match(e domain.Event) bool {
	if f.Type != "" && e.EventType != f.Type {
		return false
	}
	if f.Active != nil && e.IsActive != *f.Active {
		return false
	}
	return true
}

// Events lists stored events ordered by first sighting, then ID. It reads the
// store directly, so it works before a road network is loaded.
func (e *Engine) Events(f EventFilter) []domain.Event {
	all, _ := e.store.Snapshot()
	out := make([]domain.Event, 0, len(all))
	for _, ev := range all {
		if f.match(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// SegmentView pairs a segment with its state in the current snapshot.
type SegmentView struct {
	Segment domain.RoadSegment  `json:"segment"`
	State   domain.SegmentState `json:"state"`
}

// Segments lists segments in ID order, optionally only those with the given
// status.
func (e *Engine) Segments(status *domain.Status) ([]SegmentView, error) {
	snap, err := e.Snapshot()
	if err != nil {
		return nil, err
	}
	n := snap.Network()
	out := make([]SegmentView, 0, n.Len())
	for i, st := range snap.States() {
		if status != nil && st.Status != *status {
			continue
		}
		out = append(out, SegmentView{Segment: n.Segment(i), State: st})
	}
	return out, nil
}
