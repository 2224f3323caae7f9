package routing

import (
	"fmt"
	"slices"
	"strings"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/couchcryptid/storm-hazard-routing/internal/roadnet"
)

// rejected reports whether segment i was unusable for this query.
func rejected(snap *roadnet.Snapshot, skip []bool, i int) bool {
	return skip[i] || snap.State(i).Blocked
}

// avoidedHazards lists the in-force events attached to segments the search
// reached but did not take: pruned segments and hazardous segments left off
// the path. Events that also sit on the path are not avoided. The result is
// ordered by first sighting, then ID.
func avoidedHazards(snap *roadnet.Snapshot, res *result, skip []bool) []domain.HazardRef {
	n := snap.Network()
	onPath := make([]bool, n.Len())
	traversed := make(map[string]bool)
	for _, a := range res.arcs {
		onPath[a.Segment] = true
		for _, id := range snap.State(a.Segment).EventIDs {
			traversed[id] = true
		}
	}

	seen := make([]bool, n.Len())
	segmentsByEvent := make(map[string][]int)
	for node, settled := range res.settled {
		if !settled {
			continue
		}
		for _, i := range n.Touching(node) {
			if seen[i] || onPath[i] {
				continue
			}
			seen[i] = true
			st := snap.State(i)
			if !rejected(snap, skip, i) && st.HazardCount() == 0 {
				continue
			}
			for _, id := range st.EventIDs {
				if !traversed[id] {
					segmentsByEvent[id] = append(segmentsByEvent[id], i)
				}
			}
		}
	}

	refs := make([]domain.HazardRef, 0, len(segmentsByEvent))
	for _, e := range snap.Events() {
		segs, ok := segmentsByEvent[e.ID]
		if !ok {
			continue
		}
		slices.Sort(segs)
		ids := make([]string, len(segs))
		for j, i := range segs {
			ids[j] = n.Segment(i).ID
		}
		refs = append(refs, domain.HazardRef{
			EventID:     e.ID,
			EventType:   e.EventType,
			Location:    e.Location.Geo(),
			Description: e.Description,
			Confidence:  e.Confidence,
			SegmentIDs:  ids,
		})
	}
	return refs
}

// blockingSegments lists the rejected segments on the border of the region
// reachable from the origin, sorted by ID.
func blockingSegments(snap *roadnet.Snapshot, res *result, skip []bool) []string {
	n := snap.Network()
	seen := make([]bool, n.Len())
	var out []string
	for node, settled := range res.settled {
		if !settled {
			continue
		}
		for _, i := range n.Touching(node) {
			if seen[i] {
				continue
			}
			seen[i] = true
			from, to := n.Ends(i)
			if res.settled[from] && res.settled[to] {
				continue
			}
			if rejected(snap, skip, i) {
				out = append(out, n.Segment(i).ID)
			}
		}
	}
	slices.Sort(out)
	return out
}

// summarize explains the route choice in one or two sentences.
func summarize(snap *roadnet.Snapshot, arcs []roadnet.Arc, hazards []domain.HazardRef) string {
	var parts []string
	if len(hazards) > 0 {
		names := make([]string, 0, 3)
		for _, h := range hazards[:min(3, len(hazards))] {
			names = append(names, hazardName(snap, h))
		}
		parts = append(parts, fmt.Sprintf("Avoiding %d hazard(s) including: %s", len(hazards), strings.Join(names, ", ")))
	}

	damaged := 0
	for _, a := range arcs {
		if snap.State(a.Segment).Status == domain.StatusDamaged {
			damaged++
		}
	}
	if damaged > 0 {
		parts = append(parts, fmt.Sprintf("Route includes %d damaged but passable road segment(s)", damaged))
	} else {
		parts = append(parts, "All segments on route are clear")
	}
	return strings.Join(parts, ". ") + "."
}

func hazardName(snap *roadnet.Snapshot, h domain.HazardRef) string {
	road := ""
	if i, ok := snap.Network().Index(h.SegmentIDs[0]); ok {
		road = snap.Network().Segment(i).Name
	}
	if road == "" {
		return string(h.EventType)
	}
	return fmt.Sprintf("%s on %s", h.EventType, road)
}
