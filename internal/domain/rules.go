package domain

import (
	"fmt"
	"math"
)

// Status is the routability of a road segment.
type Status int

const (
	StatusOpen Status = iota
	StatusDamaged
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusDamaged:
		return "damaged"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatus parses "open", "damaged" or "closed". The empty string is open.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "", "open":
		return StatusOpen, nil
	case "damaged":
		return StatusDamaged, nil
	case "closed":
		return StatusClosed, nil
	default:
		return StatusOpen, fmt.Errorf("unknown segment status %q", s)
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Multipliers are the configurable cost factors for degraded segments.
type Multipliers struct {
	Damage float64
	Flood  float64
}

// DefaultMultipliers are used when configuration leaves them unset.
var DefaultMultipliers = Multipliers{Damage: 3, Flood: 5}

// Impact is what an event type does to the segments it touches.
type Impact struct {
	Status     Status
	Multiplier float64
}

// Closed reports whether the impact makes a segment impassable.
func (i Impact) Closed() bool {
	return i.Status == StatusClosed
}

// ImpactOf returns the road impact of an event type. ok is false for types
// that do not affect routing (shelters, outages, requests for help).
func (m Multipliers) ImpactOf(t EventType) (Impact, bool) {
	switch t {
	case EventRoadClosure, EventBridgeCollapse:
		return Impact{Status: StatusClosed, Multiplier: math.Inf(1)}, true
	case EventRoadDamage:
		return Impact{Status: StatusDamaged, Multiplier: m.Damage}, true
	case EventFlooding:
		return Impact{Status: StatusDamaged, Multiplier: m.Flood}, true
	default:
		return Impact{}, false
	}
}

// ImpactOfStatus maps a static segment status to its cost impact.
func (m Multipliers) ImpactOfStatus(s Status) Impact {
	switch s {
	case StatusClosed:
		return Impact{Status: StatusClosed, Multiplier: math.Inf(1)}
	case StatusDamaged:
		return Impact{Status: StatusDamaged, Multiplier: m.Damage}
	default:
		return Impact{Status: StatusOpen, Multiplier: 1}
	}
}

// MoreSevere reports whether a has a higher status than b. Impacts of the same
// status rank equal; callers break that tie on confidence before multiplier.
func MoreSevere(a, b Impact) bool {
	return a.Status > b.Status
}

// Action is what an incoming report does to an existing nearby event.
type Action int

const (
	ActionNone Action = iota
	ActionCorroborate
	ActionRetire
)

type typePair struct {
	existing EventType
	incoming EventType
}

// actions is the (existing, incoming) lookup table. Same-type pairs
// corroborate and are handled in ActionFor.
var actions = map[typePair]Action{
	{EventRoadClosure, EventRoadClear}: ActionRetire,
	{EventRoadDamage, EventRoadClear}:  ActionRetire,
	{EventFlooding, EventRoadClear}:    ActionRetire,
}

// ActionFor returns how an incoming report of type incoming affects an
// existing event of type existing within the match radius.
func ActionFor(existing, incoming EventType) Action {
	if existing == incoming {
		return ActionCorroborate
	}
	return actions[typePair{existing, incoming}]
}

// Retires reports whether an event of type clearing deactivates an event of
// type target.
func Retires(clearing, target EventType) bool {
	return ActionFor(target, clearing) == ActionRetire
}
