package routing

import (
	"fmt"
	"math"
	"slices"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/couchcryptid/storm-hazard-routing/internal/roadnet"
)

const unnamedRoad = "unnamed road"

// oriented returns the geometry of a traversed in its direction of travel.
func oriented(n *roadnet.Network, a roadnet.Arc) []domain.Geo {
	g := n.Segment(a.Segment).Geometry
	if a.Forward {
		return g
	}
	r := slices.Clone(g)
	slices.Reverse(r)
	return r
}

func roadName(s domain.RoadSegment) string {
	if s.Name == "" {
		return unnamedRoad
	}
	return s.Name
}

// maneuverFor classifies a signed heading change in degrees.
func maneuverFor(turn float64) domain.Maneuver {
	abs := math.Abs(turn)
	right := turn > 0
	switch {
	case abs < 20:
		return domain.ManeuverContinue
	case abs < 60:
		if right {
			return domain.ManeuverSlightRight
		}
		return domain.ManeuverSlightLeft
	case abs < 120:
		if right {
			return domain.ManeuverRight
		}
		return domain.ManeuverLeft
	case abs < 170:
		if right {
			return domain.ManeuverSharpRight
		}
		return domain.ManeuverSharpLeft
	default:
		return domain.ManeuverUTurn
	}
}

var cardinals = [...]string{"north", "northeast", "east", "southeast", "south", "southwest", "west", "northwest"}

func cardinal(bearing float64) string {
	return cardinals[int(math.Round(bearing/45))%len(cardinals)]
}

func instruction(m domain.Maneuver, road string, bearing float64) string {
	switch m {
	case domain.ManeuverDepart:
		return fmt.Sprintf("Head %s on %s", cardinal(bearing), road)
	case domain.ManeuverContinue:
		return "Continue onto " + road
	case domain.ManeuverSlightLeft:
		return "Bear left onto " + road
	case domain.ManeuverSlightRight:
		return "Bear right onto " + road
	case domain.ManeuverLeft:
		return "Turn left onto " + road
	case domain.ManeuverRight:
		return "Turn right onto " + road
	case domain.ManeuverSharpLeft:
		return "Turn sharp left onto " + road
	case domain.ManeuverSharpRight:
		return "Turn sharp right onto " + road
	case domain.ManeuverUTurn:
		return "Make a U-turn onto " + road
	default:
		return "Arrive at destination"
	}
}

// buildSteps merges consecutive arcs on the same road into one step and
// derives the maneuver at each road change from the bearing difference.
func buildSteps(n *roadnet.Network, arcs []roadnet.Arc, dest domain.Geo) []domain.Step {
	steps := make([]domain.Step, 0, 2)
	var lastBearing float64

	for i, a := range arcs {
		seg := n.Segment(a.Segment)
		geom := oriented(n, a)
		road := roadName(seg)

		if i > 0 && steps[len(steps)-1].Road == road {
			cur := &steps[len(steps)-1]
			cur.DistanceM += seg.LengthM
			cur.SegmentIDs = append(cur.SegmentIDs, seg.ID)
			lastBearing = domain.Bearing(geom[len(geom)-2], geom[len(geom)-1])
			continue
		}

		inBearing := domain.Bearing(geom[0], geom[1])
		m := domain.ManeuverDepart
		if i > 0 {
			m = maneuverFor(domain.TurnAngle(lastBearing, inBearing))
		}
		steps = append(steps, domain.Step{
			Maneuver:    m,
			Road:        road,
			Instruction: instruction(m, road, inBearing),
			DistanceM:   seg.LengthM,
			Location:    geom[0],
			SegmentIDs:  []string{seg.ID},
		})
		lastBearing = domain.Bearing(geom[len(geom)-2], geom[len(geom)-1])
	}

	return append(steps, domain.Step{
		Maneuver:    domain.ManeuverArrive,
		Instruction: instruction(domain.ManeuverArrive, "", 0),
		Location:    dest,
	})
}
