// Package ingest fuses reports into events.
//
// The store is partitioned into grid cells whose side equals the match radius.
// A submit locks the shards of the 3x3 cell neighbourhood around the report,
// so reports that could touch the same event are serialized while reports in
// unrelated parts of the map are ingested in parallel. A store-wide RW lock is
// held shared by submits and exclusively by Snapshot, which therefore always
// observes a state between two complete submits.
package ingest

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/google/uuid"
)

var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:storm-hazard-routing:event"))

// EventID derives the ID of the event first created from a report.
func EventID(reportID string) string {
	return uuid.NewSHA1(eventNamespace, []byte(reportID)).String()
}

// Params tune report matching.
type Params struct {
	MatchRadiusDeg float64
	StaleTolerance time.Duration
	Shards         int
}

// DefaultParams are the values used when configuration leaves them unset.
var DefaultParams = Params{
	MatchRadiusDeg: 0.005,
	StaleTolerance: 15 * time.Minute,
	Shards:         64,
}

// Store holds every event ever created. Events are deactivated, never removed.
type Store struct {
	params Params
	mu     sync.RWMutex
	grid   *grid

	seenMu sync.Mutex
	seen   map[string]*seenEntry

	version atomic.Uint64
	events  atomic.Int64
}

// seenEntry records where a report landed. done is closed once event is set.
type seenEntry struct {
	done  chan struct{}
	cell  cell
	event domain.Event
}

// NewStore creates an empty store. Zero-valued params fall back to DefaultParams.
func NewStore(p Params) *Store {
	if p.MatchRadiusDeg <= 0 {
		p.MatchRadiusDeg = DefaultParams.MatchRadiusDeg
	}
	if p.Shards <= 0 {
		p.Shards = DefaultParams.Shards
	}
	return &Store{
		params: p,
		grid:   newGrid(p.MatchRadiusDeg, p.Shards),
		seen:   make(map[string]*seenEntry),
	}
}

// Version increases every time stored state changes.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Len is the number of stored events, active or not.
func (s *Store) Len() int {
	return int(s.events.Load())
}

// Submit validates and ingests one report. scenarioTime decides the stale
// flag; a zero value disables it. Invalid reports return an
// *domain.InvalidReportError and leave the store untouched. Submitting a
// report that was already ingested (same ID or same fingerprint) returns the
// event it landed in with Duplicate set and changes nothing.
func (s *Store) Submit(r domain.Report, scenarioTime time.Time) (domain.IngestResult, error) {
	if err := r.Validate(); err != nil {
		return domain.IngestResult{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c := cellOf(r.Location.Geo(), s.grid.size)
	unlock := s.grid.lockNeighbourhood(c)
	defer unlock()

	stale := s.isStale(r, scenarioTime)
	keys := []string{"id:" + r.ID, "fp:" + domain.Fingerprint(r)}

	entry, dup := s.reserve(keys)
	if dup {
		return s.duplicate(r, entry, c, stale), nil
	}

	res := s.apply(r, c)
	res.Stale = stale

	entry.cell = cellOf(res.Event.Location.Geo(), s.grid.size)
	entry.event = res.Event.Clone()
	close(entry.done)

	s.version.Add(1)
	return res, nil
}

func (s *Store) isStale(r domain.Report, at time.Time) bool {
	if at.IsZero() {
		return false
	}
	return r.Timestamp.Before(at.Add(-s.params.StaleTolerance))
}

// reserve claims every key for a new entry, or returns the entry that already
// owns one of them.
func (s *Store) reserve(keys []string) (*seenEntry, bool) {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()

	for _, k := range keys {
		if e, ok := s.seen[k]; ok {
			return e, true
		}
	}
	e := &seenEntry{done: make(chan struct{})}
	for _, k := range keys {
		s.seen[k] = e
	}
	return e, false
}

func (s *Store) duplicate(r domain.Report, entry *seenEntry, c cell, stale bool) domain.IngestResult {
	// A copy with the same ID may be in flight in a distant cell.
	<-entry.done

	event := entry.event.Clone()
	if adjacent(c, entry.cell) {
		for _, e := range s.grid.nearby(c) {
			if e.ID == entry.event.ID {
				event = e.Clone()
				break
			}
		}
	}
	return domain.IngestResult{
		ReportID:  r.ID,
		Event:     event,
		Outcome:   domain.OutcomeDuplicate,
		Duplicate: true,
		Stale:     stale,
	}
}

func adjacent(a, b cell) bool {
	return a.x-b.x >= -1 && a.x-b.x <= 1 && a.y-b.y >= -1 && a.y-b.y <= 1
}

// apply runs the corroboration rules. Callers hold the neighbourhood lock.
func (s *Store) apply(r domain.Report, c cell) domain.IngestResult {
	candidates := s.candidates(r, c)
	res := domain.IngestResult{ReportID: r.ID}

	for _, e := range candidates {
		if e.IsActive && domain.Retires(r.EventType, e.EventType) && !e.LastSeen.After(r.Timestamp) {
			retire(e, r)
			res.Cleared = append(res.Cleared, e.Clone())
		}
	}

	if target := firstMatch(candidates, r); target != nil {
		corroborate(target, r)
		res.Event = target.Clone()
		res.Outcome = domain.OutcomeCorroborated
	} else if clearing := supersededBy(candidates, r); clearing != nil {
		e := s.create(r)
		e.IsActive = false
		at := clearing.LastSeen
		e.DeactivatedAt = &at
		e.ClearedBy = clearing.ID
		res.Event = e.Clone()
		res.Outcome = domain.OutcomeSuperseded
		res.Superseded = true
	} else {
		res.Event = s.create(r).Clone()
		res.Outcome = domain.OutcomeCreated
	}

	if len(res.Cleared) > 0 {
		res.Outcome = domain.OutcomeCleared
	}
	return res
}

// candidates returns the events within the match radius of r, nearest first.
func (s *Store) candidates(r domain.Report, c cell) []*domain.Event {
	at := r.Location.Geo()
	var out []*domain.Event
	for _, e := range s.grid.nearby(c) {
		if domain.Near(e.Location.Geo(), at, s.params.MatchRadiusDeg) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b *domain.Event) int {
		da := domain.PlanarDistance(a.Location.Geo(), at)
		db := domain.PlanarDistance(b.Location.Geo(), at)
		if d := cmp.Compare(da, db); d != 0 {
			return d
		}
		if d := a.FirstSeen.Compare(b.FirstSeen); d != 0 {
			return d
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func firstMatch(candidates []*domain.Event, r domain.Report) *domain.Event {
	for _, e := range candidates {
		if e.IsActive && domain.ActionFor(e.EventType, r.EventType) == domain.ActionCorroborate {
			return e
		}
	}
	return nil
}

// supersededBy returns an active event that clears r's type and was seen
// after r was observed.
func supersededBy(candidates []*domain.Event, r domain.Report) *domain.Event {
	for _, e := range candidates {
		if e.IsActive && domain.Retires(e.EventType, r.EventType) && e.LastSeen.After(r.Timestamp) {
			return e
		}
	}
	return nil
}

func (s *Store) create(r domain.Report) *domain.Event {
	e := &domain.Event{
		ID:          EventID(r.ID),
		EventType:   r.EventType,
		Location:    r.Location,
		Description: r.Description,
		FirstSeen:   r.Timestamp,
		LastSeen:    r.Timestamp,
		Confidence:  r.Confidence,
		IsActive:    true,
		Sources:     []domain.Source{r.Source},
		ReportIDs:   []string{r.ID},
	}
	s.grid.insert(e)
	s.events.Add(1)
	return e
}

func corroborate(e *domain.Event, r domain.Report) {
	e.CorroborationCount++
	e.Confidence = max(e.Confidence, r.Confidence)
	if r.Timestamp.After(e.LastSeen) {
		e.LastSeen = r.Timestamp
	}
	if r.Timestamp.Before(e.FirstSeen) {
		e.FirstSeen = r.Timestamp
	}
	if !slices.Contains(e.Sources, r.Source) {
		e.Sources = append(e.Sources, r.Source)
	}
	e.ReportIDs = append(e.ReportIDs, r.ID)
	if e.Description == "" {
		e.Description = r.Description
	}
	if e.Location.Address == "" {
		e.Location.Address = r.Location.Address
	}
}

func retire(e *domain.Event, r domain.Report) {
	at := r.Timestamp
	e.IsActive = false
	e.DeactivatedAt = &at
	e.ClearedBy = r.ID
}

// Snapshot returns a deep copy of every event, ordered by first sighting, and
// the store version it reflects.
func (s *Store) Snapshot() ([]domain.Event, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.grid.all()
	out := make([]domain.Event, len(all))
	for i, e := range all {
		out[i] = e.Clone()
	}
	SortEvents(out)
	return out, s.version.Load()
}

// SortEvents orders events by first sighting, then ID.
func SortEvents(events []domain.Event) {
	slices.SortFunc(events, func(a, b domain.Event) int {
		if c := a.FirstSeen.Compare(b.FirstSeen); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
