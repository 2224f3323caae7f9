package roadnet

import (
	"maps"
	"time"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
)

// Snapshot is the network state at one store version and scenario time.
// It is never modified after Materialize returns, so any number of readers
// may use it concurrently.
type Snapshot struct {
	version      uint64
	scenarioTime time.Time
	builtAt      time.Time

	network    *Network
	states     []domain.SegmentState
	out        [][]Arc
	events     []domain.Event
	eventIndex map[string]int
	status     domain.NetworkStatus
}

// Materialize derives per-segment state from events and prunes closed
// segments from the routable adjacency.
func Materialize(n *Network, events []domain.Event, at time.Time, version uint64, p Params) *Snapshot {
	s := &Snapshot{
		version:      version,
		scenarioTime: at,
		builtAt:      domain.Now(),
		network:      n,
		states:       make([]domain.SegmentState, n.Len()),
		out:          make([][]Arc, n.NodeCount()),
		events:       events,
		eventIndex:   make(map[string]int, len(events)),
	}

	var hazards []domain.Event
	for i, e := range events {
		s.eventIndex[e.ID] = i
		if !e.InForce(at, p.Decay) {
			continue
		}
		if _, ok := p.Multipliers.ImpactOf(e.EventType); ok {
			hazards = append(hazards, e)
		}
	}

	var attached []domain.Event
	for i, seg := range n.Segments() {
		attached = attached[:0]
		for _, e := range hazards {
			if Attaches(e.Location.Geo(), seg.Geometry, n.Bounds(i), p.BufferDeg) {
				attached = append(attached, e)
			}
		}
		s.states[i] = derive(seg, attached, at, p)
	}

	for node := range s.out {
		for _, a := range n.Out(node) {
			if !s.states[a.Segment].Blocked {
				s.out[node] = append(s.out[node], a)
			}
		}
	}

	s.status = s.aggregate(at, p.Decay)
	return s
}

func (s *Snapshot) aggregate(at time.Time, d domain.Decay) domain.NetworkStatus {
	st := domain.NetworkStatus{
		TotalSegments:      len(s.states),
		ActiveEventsByType: make(map[domain.EventType]int),
		SnapshotVersion:    s.version,
		ScenarioTime:       s.scenarioTime,
	}
	var confSum float64
	for _, ss := range s.states {
		switch ss.Status {
		case domain.StatusClosed:
			st.BlockedSegments++
		case domain.StatusDamaged:
			st.DamagedSegments++
		default:
			st.OpenSegments++
		}
		confSum += ss.Confidence
	}
	if len(s.states) > 0 {
		st.MeanConfidence = confSum / float64(len(s.states))
	}
	for _, e := range s.events {
		if e.InForce(at, d) {
			st.ActiveEvents++
			st.ActiveEventsByType[e.EventType]++
		}
	}
	return st
}

// Version is the event store version the snapshot was built from.
func (s *Snapshot) Version() uint64 { return s.version }

// ScenarioTime is the time decay was evaluated at.
func (s *Snapshot) ScenarioTime() time.Time { return s.scenarioTime }

// BuiltAt is the wall-clock time of materialization.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Network returns the static network the snapshot overlays.
func (s *Snapshot) Network() *Network { return s.network }

// State returns the state of segment i.
func (s *Snapshot) State(i int) domain.SegmentState { return s.states[i] }

// States returns every segment state in network order. The slice must not be
// modified.
func (s *Snapshot) States() []domain.SegmentState { return s.states }

// Out returns the routable arcs leaving node i. Closed segments are absent.
func (s *Snapshot) Out(i int) []Arc { return s.out[i] }

// Events returns every event known at build time, active or not, ordered by
// first sighting. The slice must not be modified.
func (s *Snapshot) Events() []domain.Event { return s.events }

// Event looks up an event by ID.
func (s *Snapshot) Event(id string) (domain.Event, bool) {
	i, ok := s.eventIndex[id]
	if !ok {
		return domain.Event{}, false
	}
	return s.events[i], true
}

// Status returns the aggregate network status.
func (s *Snapshot) Status() domain.NetworkStatus {
	st := s.status
	st.ActiveEventsByType = maps.Clone(s.status.ActiveEventsByType)
	return st
}

// fresh reports whether the snapshot still reflects the given version and
// scenario time.
func (s *Snapshot) fresh(version uint64, at time.Time) bool {
	return s.version == version && s.scenarioTime.Equal(at)
}
