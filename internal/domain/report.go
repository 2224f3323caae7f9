package domain

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// EventType is the kind of situation a report describes.
type EventType string

const (
	EventRoadClosure          EventType = "road_closure"
	EventRoadDamage           EventType = "road_damage"
	EventRoadClear            EventType = "road_clear"
	EventFlooding             EventType = "flooding"
	EventBridgeCollapse       EventType = "bridge_collapse"
	EventShelterOpening       EventType = "shelter_opening"
	EventShelterClosing       EventType = "shelter_closing"
	EventShelterNeed          EventType = "shelter_need"
	EventPowerOutage          EventType = "power_outage"
	EventInfrastructureDamage EventType = "infrastructure_damage"
	EventRescueNeeded         EventType = "rescue_needed"
	EventSuppliesNeeded       EventType = "supplies_needed"
)

var eventTypes = map[EventType]struct{}{
	EventRoadClosure:          {},
	EventRoadDamage:           {},
	EventRoadClear:            {},
	EventFlooding:             {},
	EventBridgeCollapse:       {},
	EventShelterOpening:       {},
	EventShelterClosing:       {},
	EventShelterNeed:          {},
	EventPowerOutage:          {},
	EventInfrastructureDamage: {},
	EventRescueNeeded:         {},
	EventSuppliesNeeded:       {},
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

// Source identifies where a report came from. Unknown sources are accepted
// and kept verbatim; the constants cover the feeds seen in practice.
type Source string

const (
	SourceSatellite      Source = "satellite"
	SourceTwitter        Source = "twitter"
	SourceReddit         Source = "reddit"
	SourceFEMA           Source = "fema"
	SourceNCDOT          Source = "ncdot"
	SourceUSGS           Source = "usgs"
	SourceLocalEmergency Source = "local_emergency"
	SourceNews           Source = "news"
	SourceCitizen        Source = "citizen_report"
)

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// IsZero reports whether g is the (0,0) pair, which upstream feeds use for
// "no coordinates".
func (g Geo) IsZero() bool {
	return g.Lat == 0 && g.Lon == 0
}

func (g Geo) String() string {
	return fmt.Sprintf("%.5f,%.5f", g.Lat, g.Lon)
}

// Location is where a report or event is situated.
type Location struct {
	Lat     float64 `json:"lat" validate:"latitude"`
	Lon     float64 `json:"lon" validate:"longitude"`
	Address string  `json:"address,omitempty"`
	Region  string  `json:"region,omitempty"`
}

// Geo returns the coordinate pair of the location.
func (l Location) Geo() Geo {
	return Geo{Lat: l.Lat, Lon: l.Lon}
}

// Report is a single observation from one source. Immutable once accepted.
type Report struct {
	ID          string    `json:"id" validate:"required"`
	Timestamp   time.Time `json:"timestamp"`
	EventType   EventType `json:"event_type" validate:"required,event_type"`
	Location    Location  `json:"location"`
	Description string    `json:"description,omitempty"`
	Source      Source    `json:"source" validate:"required"`
	Confidence  float64   `json:"confidence" validate:"gte=0,lte=1"`
	AgentName   string    `json:"agent_name,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	//nolint:errcheck // tag name is a constant
	v.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
		return EventType(fl.Field().String()).Valid()
	})
	return v
}

// Validate checks a report before ingest. It returns an *InvalidReportError
// naming the first problem found.
func (r Report) Validate() error {
	if math.IsNaN(r.Confidence) || math.IsInf(r.Confidence, 0) {
		return &InvalidReportError{ReportID: r.ID, Reason: "confidence must be a finite number"}
	}
	if !isFinite(r.Location.Lat) || !isFinite(r.Location.Lon) {
		return &InvalidReportError{ReportID: r.ID, Reason: "location coordinates must be finite"}
	}
	if r.Location.Geo().IsZero() {
		return &InvalidReportError{ReportID: r.ID, Reason: "location is required"}
	}
	if r.Timestamp.IsZero() {
		return &InvalidReportError{ReportID: r.ID, Reason: "timestamp is required"}
	}

	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &InvalidReportError{ReportID: r.ID, Reason: describeFieldError(verrs[0])}
		}
		return &InvalidReportError{ReportID: r.ID, Reason: err.Error()}
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Namespace())
	field = strings.TrimPrefix(field, "report.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "event_type":
		return fmt.Sprintf("unknown event type %q", fe.Value())
	case "gte", "lte":
		return field + " must be within [0,1]"
	case "latitude", "longitude":
		return fmt.Sprintf("%s %v is out of range", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s check", field, fe.Tag())
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
