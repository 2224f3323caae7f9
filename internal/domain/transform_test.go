package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testReportID = "r-123"

func TestParseRawReport(t *testing.T) {
	msgTime := time.Date(2024, 9, 28, 14, 0, 0, 0, time.UTC)

	t.Run("full report", func(t *testing.T) {
		data := []byte(`{"id":"r-123","timestamp":"2024-09-28T13:30:00Z","event_type":"Road_Closure",
			"location":{"lat":35.6,"lon":-82.55,"address":" Broadway St "},"description":"trees down",
			"source":"NCDOT","confidence":0.8,"agent_name":"dot-feed"}`)
		r, err := ParseRawReport(RawEvent{Value: data, Timestamp: msgTime})
		require.NoError(t, err)

		assert.Equal(t, testReportID, r.ID)
		assert.Equal(t, EventRoadClosure, r.EventType)
		assert.Equal(t, SourceNCDOT, r.Source)
		assert.Equal(t, "Broadway St", r.Location.Address)
		assert.Equal(t, time.Date(2024, 9, 28, 13, 30, 0, 0, time.UTC), r.Timestamp)
		assert.InDelta(t, 0.8, r.Confidence, 1e-9)
		assert.Equal(t, "dot-feed", r.AgentName)
	})

	t.Run("missing id and timestamp", func(t *testing.T) {
		data := []byte(`{"event_type":"flooding","location":{"lat":35.6,"lon":-82.55},"source":"usgs","confidence":0.5}`)
		r, err := ParseRawReport(RawEvent{Value: data, Timestamp: msgTime})
		require.NoError(t, err)

		assert.Equal(t, msgTime, r.Timestamp)
		assert.Regexp(t, `^flooding-[0-9a-f]{16}$`, r.ID)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ParseRawReport(RawEvent{Value: []byte(`{not json`)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse raw report")
	})
}

func TestFingerprint(t *testing.T) {
	base := Report{
		EventType: EventRoadClosure,
		Location:  Location{Lat: 35.6, Lon: -82.55},
		Timestamp: time.Date(2024, 9, 28, 13, 0, 0, 0, time.UTC),
		Source:    SourceFEMA,
	}

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, Fingerprint(base), Fingerprint(base))
	})

	t.Run("ignores id and description", func(t *testing.T) {
		other := base
		other.ID = "different"
		other.Description = "different"
		assert.Equal(t, Fingerprint(base), Fingerprint(other))
	})

	t.Run("differs by source", func(t *testing.T) {
		other := base
		other.Source = SourceTwitter
		assert.NotEqual(t, Fingerprint(base), Fingerprint(other))
	})

	t.Run("no type prefix when type is empty", func(t *testing.T) {
		other := base
		other.EventType = ""
		assert.Len(t, Fingerprint(other), 16)
	})
}

func TestReportValidate(t *testing.T) {
	valid := func() Report {
		return Report{
			ID:         testReportID,
			Timestamp:  time.Date(2024, 9, 28, 13, 0, 0, 0, time.UTC),
			EventType:  EventRoadDamage,
			Location:   Location{Lat: 35.6, Lon: -82.55},
			Source:     SourceCitizen,
			Confidence: 0.5,
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Report)
		reason string
	}{
		{"missing id", func(r *Report) { r.ID = "" }, "id is required"},
		{"missing type", func(r *Report) { r.EventType = "" }, "event_type is required"},
		{"unknown type", func(r *Report) { r.EventType = "meteor" }, `unknown event type "meteor"`},
		{"missing source", func(r *Report) { r.Source = "" }, "source is required"},
		{"confidence above one", func(r *Report) { r.Confidence = 1.2 }, "confidence must be within [0,1]"},
		{"confidence below zero", func(r *Report) { r.Confidence = -0.1 }, "confidence must be within [0,1]"},
		{"missing location", func(r *Report) { r.Location = Location{} }, "location is required"},
		{"latitude out of range", func(r *Report) { r.Location.Lat = 95 }, "location.lat 95 is out of range"},
		{"missing timestamp", func(r *Report) { r.Timestamp = time.Time{} }, "timestamp is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(&r)
			err := r.Validate()
			require.ErrorIs(t, err, ErrInvalidReport)

			var ire *InvalidReportError
			require.ErrorAs(t, err, &ire)
			assert.Equal(t, tt.reason, ire.Reason)
		})
	}
}

func TestEventEffectiveConfidence(t *testing.T) {
	seen := time.Date(2024, 9, 28, 12, 0, 0, 0, time.UTC)
	e := Event{Confidence: 0.8, LastSeen: seen, IsActive: true}
	d := Decay{After: 24 * time.Hour, HalfLife: 12 * time.Hour, Floor: 0.2}

	assert.InDelta(t, 0.8, e.EffectiveConfidence(seen.Add(time.Hour), d), 1e-9)
	assert.InDelta(t, 0.8, e.EffectiveConfidence(seen.Add(24*time.Hour), d), 1e-9)
	assert.InDelta(t, 0.4, e.EffectiveConfidence(seen.Add(36*time.Hour), d), 1e-9)
	assert.InDelta(t, 0.2, e.EffectiveConfidence(seen.Add(48*time.Hour), d), 1e-9)

	assert.True(t, e.InForce(seen.Add(48*time.Hour), d))
	assert.False(t, e.InForce(seen.Add(60*time.Hour), d))
	assert.InDelta(t, 0.8, e.Confidence, 1e-9, "stored confidence is not rewritten")

	t.Run("zero half-life disables decay", func(t *testing.T) {
		assert.InDelta(t, 0.8, e.EffectiveConfidence(seen.Add(1000*time.Hour), Decay{}), 1e-9)
	})

	t.Run("inactive events are never in force", func(t *testing.T) {
		inactive := e
		inactive.IsActive = false
		assert.False(t, inactive.InForce(seen, d))
	})
}

func TestEventClone(t *testing.T) {
	at := time.Date(2024, 9, 28, 12, 0, 0, 0, time.UTC)
	e := Event{ReportIDs: []string{"a"}, Sources: []Source{SourceFEMA}, DeactivatedAt: &at}
	c := e.Clone()
	c.ReportIDs[0] = "b"
	c.Sources[0] = SourceNews
	*c.DeactivatedAt = at.Add(time.Hour)

	assert.Equal(t, "a", e.ReportIDs[0])
	assert.Equal(t, SourceFEMA, e.Sources[0])
	assert.Equal(t, at, *e.DeactivatedAt)
}

func TestSerializeEventUpdate(t *testing.T) {
	fixed := time.Date(2024, 9, 28, 15, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	defer SetClock(nil)

	update := NewEventUpdate(IngestResult{
		ReportID: testReportID,
		Outcome:  OutcomeCreated,
		Event:    Event{ID: "evt-1", EventType: EventRoadClosure, IsActive: true},
	})

	data, err := json.Marshal(update)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "created", m["outcome"])
	assert.Equal(t, testReportID, m["report_id"])
	assert.Equal(t, "2024-09-28T15:00:00Z", m["processed_at"])
	event, ok := m["event"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "road_closure", event["event_type"])
}

func TestSetClock(t *testing.T) {
	t.Run("set custom clock", func(t *testing.T) {
		fixedTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		SetClock(clockwork.NewFakeClockAt(fixedTime))
		defer SetClock(nil)

		assert.Equal(t, fixedTime, Now())
	})

	t.Run("reset to real clock", func(t *testing.T) {
		SetClock(clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
		SetClock(nil)

		assert.Less(t, time.Since(Now()), time.Second)
	})
}
