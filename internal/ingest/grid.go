package ingest

import (
	"math"
	"slices"
	"sync"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
)

// cell is a grid square whose side equals the match radius, so every event
// that can match a report lies in the report's cell or one of its eight
// neighbours.
type cell struct {
	x, y int64
}

func cellOf(g domain.Geo, size float64) cell {
	return cell{
		x: int64(math.Floor(g.Lon / size)),
		y: int64(math.Floor(g.Lat / size)),
	}
}

func (c cell) neighbourhood() [9]cell {
	var out [9]cell
	i := 0
	for dy := int64(-1); dy <= 1; dy++ {
		for dx := int64(-1); dx <= 1; dx++ {
			out[i] = cell{x: c.x + dx, y: c.y + dy}
			i++
		}
	}
	return out
}

// shard owns the events of every cell hashed to it. Its mutex guards cells
// and every event reachable from it.
type shard struct {
	mu    sync.Mutex
	cells map[cell][]*domain.Event
}

type grid struct {
	size   float64
	shards []shard
}

func newGrid(size float64, shards int) *grid {
	g := &grid{size: size, shards: make([]shard, shards)}
	for i := range g.shards {
		g.shards[i].cells = make(map[cell][]*domain.Event)
	}
	return g
}

func (g *grid) shardIndex(c cell) int {
	h := uint64(c.x)*73856093 ^ uint64(c.y)*19349663
	return int(h % uint64(len(g.shards)))
}

// lockNeighbourhood locks every shard covering the 3x3 cells around c in
// ascending index order and returns the matching unlock.
func (g *grid) lockNeighbourhood(c cell) (unlock func()) {
	idx := make([]int, 0, 9)
	for _, n := range c.neighbourhood() {
		idx = append(idx, g.shardIndex(n))
	}
	slices.Sort(idx)
	idx = slices.Compact(idx)

	for _, i := range idx {
		g.shards[i].mu.Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			g.shards[idx[j]].mu.Unlock()
		}
	}
}

// nearby returns events in the neighbourhood of c. Callers must hold the
// neighbourhood lock.
func (g *grid) nearby(c cell) []*domain.Event {
	var out []*domain.Event
	for _, n := range c.neighbourhood() {
		out = append(out, g.shards[g.shardIndex(n)].cells[n]...)
	}
	return out
}

// insert adds e to its cell. Callers must hold the lock of e's shard.
func (g *grid) insert(e *domain.Event) cell {
	c := cellOf(e.Location.Geo(), g.size)
	s := &g.shards[g.shardIndex(c)]
	s.cells[c] = append(s.cells[c], e)
	return c
}

// all returns every stored event. Callers must exclude all writers.
func (g *grid) all() []*domain.Event {
	var out []*domain.Event
	for i := range g.shards {
		for _, events := range g.shards[i].cells {
			out = append(out, events...)
		}
	}
	return out
}
