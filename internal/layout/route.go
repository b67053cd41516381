package layout

import (
	"container/heap"

	"github.com/nereid-dev/nereid/internal/model"
)

// Routing tuning. Occupied street segments stay traversable but cost extra,
// spreading parallel edges across lanes. The search is bounded; exhaustion
// falls back to an L-shaped polyline and never fails.
const (
	occupiedPenalty  = 4
	maxSearchExpands = 20000
)

type segment struct {
	a, b GridPoint
}

func segKey(a, b GridPoint) segment {
	if b.X < a.X || (b.X == a.X && b.Y < a.Y) {
		a, b = b, a
	}
	return segment{a: a, b: b}
}

// RouteEdges routes every edge as an orthogonal polyline on the street grid.
// Edges are routed in lexicographic (from_id, to_id, edge_id) order; each
// routed edge marks its street segments occupied so later edges prefer free
// lanes. Searched routes keep their intermediate waypoints off even/even
// cells, keeping connectors out of node box interiors; the L-shaped fallback
// used when search exhausts applies no such check.
func RouteEdges(ast *model.FlowAST, l *FlowLayout) map[model.ObjectID][]GridPoint {
	maxX, maxY := 0, 0
	for _, c := range l.Coords {
		if c.X > maxX {
			maxX = c.X
		}
		if c.Y > maxY {
			maxY = c.Y
		}
	}
	r := &router{
		minX: -1, minY: -1,
		maxX: maxX + 1, maxY: maxY + 1,
		occupied: make(map[segment]bool),
	}

	routes := make(map[model.ObjectID][]GridPoint, len(ast.Edges))
	for _, e := range ast.SortedEdges() {
		from, okFrom := l.Coords[e.From]
		to, okTo := l.Coords[e.To]
		if !okFrom || !okTo {
			continue
		}
		var path []GridPoint
		if from == to {
			path = selfLoop(from)
		} else {
			path = r.shortestPath(from, to)
			if path == nil {
				path = fallbackL(from, to)
			}
		}
		r.occupy(path)
		routes[e.ID] = path
	}
	return routes
}

type router struct {
	minX, minY, maxX, maxY int
	occupied               map[segment]bool
}

func (r *router) occupy(path []GridPoint) {
	for i := 1; i < len(path); i++ {
		for _, s := range unitSegments(path[i-1], path[i]) {
			r.occupied[s] = true
		}
	}
}

// unitSegments splits a straight polyline run into unit-length segments.
func unitSegments(a, b GridPoint) []segment {
	var out []segment
	step := GridPoint{X: sign(b.X - a.X), Y: sign(b.Y - a.Y)}
	for cur := a; cur != b; {
		next := GridPoint{X: cur.X + step.X, Y: cur.Y + step.Y}
		out = append(out, segKey(cur, next))
		cur = next
	}
	return out
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

type searchItem struct {
	point GridPoint
	cost  int
	seq   int
}

type searchQueue []searchItem

func (q searchQueue) Len() int { return len(q) }
func (q searchQueue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	return q[i].seq < q[j].seq
}
func (q searchQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *searchQueue) Push(x any)   { *q = append(*q, x.(searchItem)) }
func (q *searchQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Fixed neighbor expansion order keeps tie-breaks deterministic.
var directions = [4]GridPoint{{0, -1}, {1, 0}, {0, 1}, {-1, 0}} // N, E, S, W

func (r *router) shortestPath(from, to GridPoint) []GridPoint {
	dist := map[GridPoint]int{from: 0}
	prev := map[GridPoint]GridPoint{}
	q := &searchQueue{{point: from, cost: 0, seq: 0}}
	seq := 0
	expands := 0

	for q.Len() > 0 {
		item := heap.Pop(q).(searchItem)
		if item.cost > dist[item.point] {
			continue
		}
		if item.point == to {
			return reconstruct(prev, from, to)
		}
		expands++
		if expands > maxSearchExpands {
			return nil
		}
		for _, d := range directions {
			next := GridPoint{X: item.point.X + d.X, Y: item.point.Y + d.Y}
			if next.X < r.minX || next.X > r.maxX || next.Y < r.minY || next.Y > r.maxY {
				continue
			}
			// Lane-only traversal: intermediate waypoints must not sit on
			// node cells.
			if next != to && isNodeCell(next) {
				continue
			}
			cost := item.cost + 1
			if r.occupied[segKey(item.point, next)] {
				cost += occupiedPenalty
			}
			if best, seen := dist[next]; seen && cost >= best {
				continue
			}
			dist[next] = cost
			prev[next] = item.point
			seq++
			heap.Push(q, searchItem{point: next, cost: cost, seq: seq})
		}
	}
	return nil
}

func isNodeCell(p GridPoint) bool {
	return p.X%2 == 0 && p.Y%2 == 0 && p.X >= 0 && p.Y >= 0
}

func reconstruct(prev map[GridPoint]GridPoint, from, to GridPoint) []GridPoint {
	var rev []GridPoint
	for cur := to; ; {
		rev = append(rev, cur)
		if cur == from {
			break
		}
		cur = prev[cur]
	}
	path := make([]GridPoint, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return simplify(path)
}

// simplify merges collinear runs into single polyline spans.
func simplify(path []GridPoint) []GridPoint {
	if len(path) <= 2 {
		return path
	}
	out := []GridPoint{path[0]}
	for i := 1; i < len(path)-1; i++ {
		prevDir := GridPoint{X: sign(path[i].X - path[i-1].X), Y: sign(path[i].Y - path[i-1].Y)}
		nextDir := GridPoint{X: sign(path[i+1].X - path[i].X), Y: sign(path[i+1].Y - path[i].Y)}
		if prevDir != nextDir {
			out = append(out, path[i])
		}
	}
	return append(out, path[len(path)-1])
}

// fallbackL is the deterministic baseline polyline when search exhausts:
// vertical leg to the target's own row, then horizontal to the goal. The
// corner cell is not checked against node cells.
func fallbackL(from, to GridPoint) []GridPoint {
	if from.X == to.X || from.Y == to.Y {
		return []GridPoint{from, to}
	}
	corner := GridPoint{X: from.X, Y: to.Y}
	return []GridPoint{from, corner, to}
}

// selfLoop routes an edge whose endpoints coincide around the node's
// east/south streets.
func selfLoop(p GridPoint) []GridPoint {
	return []GridPoint{
		p,
		{X: p.X + 1, Y: p.Y},
		{X: p.X + 1, Y: p.Y + 1},
		{X: p.X, Y: p.Y + 1},
		p,
	}
}
