package routing

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"github.com/couchcryptid/storm-hazard-routing/internal/roadnet"
)

// ctxCheckInterval is how many queue pops happen between context checks.
const ctxCheckInterval = 256

const costEpsilon = 1e-9

// label orders partial paths: lower cost, then higher minimum confidence,
// then fewer hazards, then the lower incoming segment index.
//
// Each node keeps only its best label, so the secondary keys are settled
// greedily per node. Among equal-cost paths the result prefers higher
// confidence and fewer hazards at every node it passes, which is not always
// the globally best pair for the whole route.
type label struct {
	cost    float64
	minConf float64
	hazards int
	via     int
}

func sameCost(a, b float64) bool {
	return math.Abs(a-b) <= costEpsilon*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func better(a, b label) bool {
	if !sameCost(a.cost, b.cost) {
		return a.cost < b.cost
	}
	if a.minConf != b.minConf {
		return a.minConf > b.minConf
	}
	if a.hazards != b.hazards {
		return a.hazards < b.hazards
	}
	return a.via < b.via
}

type item struct {
	node int
	l    label
}

type queue []item

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if better(q[i].l, q[j].l) {
		return true
	}
	if better(q[j].l, q[i].l) {
		return false
	}
	return q[i].node < q[j].node
}
func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x any)   { *q = append(*q, x.(item)) }
func (q *queue) Pop() any {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}

// result is the outcome of one search. settled marks the nodes whose best
// label was final when the search stopped; when the destination was not
// reached it is the whole region reachable from the source.
type result struct {
	found   bool
	arcs    []roadnet.Arc
	label   label
	settled []bool
}

// search runs a label-setting shortest path search from src to dst over the
// routable arcs of snap, ignoring segments marked in skip.
func search(ctx context.Context, snap *roadnet.Snapshot, src, dst int, skip []bool) (*result, error) {
	n := snap.Network()
	nodes := n.NodeCount()
	best := make([]label, nodes)
	reached := make([]bool, nodes)
	prev := make([]roadnet.Arc, nodes)
	res := &result{settled: make([]bool, nodes)}

	start := label{cost: 0, minConf: 1, via: -1}
	best[src], reached[src] = start, true
	q := &queue{{node: src, l: start}}

	for pops := 0; q.Len() > 0; pops++ {
		if pops%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, searchError(err)
			}
		}

		it := heap.Pop(q).(item)
		if res.settled[it.node] || it.l != best[it.node] {
			continue
		}
		res.settled[it.node] = true
		if it.node == dst {
			break
		}

		for _, arc := range snap.Out(it.node) {
			if skip[arc.Segment] || res.settled[arc.To] {
				continue
			}
			st := snap.State(arc.Segment)
			next := label{
				cost:    it.l.cost + st.Cost,
				minConf: math.Min(it.l.minConf, st.Confidence),
				hazards: it.l.hazards + st.HazardCount(),
				via:     arc.Segment,
			}
			if reached[arc.To] && !better(next, best[arc.To]) {
				continue
			}
			best[arc.To], reached[arc.To], prev[arc.To] = next, true, arc
			heap.Push(q, item{node: arc.To, l: next})
		}
	}

	if !res.settled[dst] {
		return res, nil
	}
	res.found = true
	res.label = best[dst]
	for node := dst; node != src; node = prev[node].From {
		res.arcs = append(res.arcs, prev[node])
		if len(res.arcs) > nodes {
			return nil, errors.New("route search: predecessor cycle")
		}
	}
	for i, j := 0, len(res.arcs)-1; i < j; i, j = i+1, j-1 {
		res.arcs[i], res.arcs[j] = res.arcs[j], res.arcs[i]
	}
	return res, nil
}

func searchError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrRoutingTimeout, err)
	}
	return fmt.Errorf("route search: %w", err)
}
