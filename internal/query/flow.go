package query

import (
	"sort"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/pkg/schema"
)

// Direction selects edge traversal orientation for reachability.
type Direction string

const (
	DirOut  Direction = "out"
	DirIn   Direction = "in"
	DirBoth Direction = "both"
)

// DegreeSort selects the ranking key for Degrees.
type DegreeSort string

const (
	SortByIn    DegreeSort = "in"
	SortByOut   DegreeSort = "out"
	SortByTotal DegreeSort = "total"
)

// DegreeEntry is one row of a degree ranking.
type DegreeEntry struct {
	NodeID model.ObjectID `json:"node_id"`
	In     int            `json:"in"`
	Out    int            `json:"out"`
	Total  int            `json:"total"`
}

func requireFlow(d *model.Diagram) (*model.FlowAST, error) {
	if d.Kind != model.KindFlowchart {
		return nil, schema.NewErrorf(schema.ErrCodeKindMismatch, "diagram %s is not a flowchart", d.ID)
	}
	return d.Flow, nil
}

// adjacency of a flow AST with successor lists sorted by id.
func flowAdjacency(ast *model.FlowAST) (succs, preds map[model.ObjectID][]model.ObjectID) {
	succs = make(map[model.ObjectID][]model.ObjectID)
	preds = make(map[model.ObjectID][]model.ObjectID)
	for _, e := range ast.SortedEdges() {
		succs[e.From] = append(succs[e.From], e.To)
		preds[e.To] = append(preds[e.To], e.From)
	}
	return succs, preds
}

// Reachable returns every node reachable from fromID in the given direction,
// including fromID itself, sorted by id.
func Reachable(d *model.Diagram, fromID model.ObjectID, dir Direction) ([]model.ObjectID, error) {
	ast, err := requireFlow(d)
	if err != nil {
		return nil, err
	}
	if ast.Node(fromID) == nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "unknown node %s", fromID)
	}
	succs, preds := flowAdjacency(ast)
	neighbors := func(id model.ObjectID) []model.ObjectID {
		switch dir {
		case DirIn:
			return preds[id]
		case DirBoth:
			return append(append([]model.ObjectID(nil), succs[id]...), preds[id]...)
		default:
			return succs[id]
		}
	}

	seen := map[model.ObjectID]bool{fromID: true}
	queue := []model.ObjectID{fromID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range neighbors(id) {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	out := make([]model.ObjectID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Paths returns the shortest path from→to plus alternates whose length
// exceeds the shortest by at most maxExtraHops, capped at limit. Paths are
// simple and ordered by (length, lexicographic node sequence).
func Paths(d *model.Diagram, from, to model.ObjectID, limit, maxExtraHops int) ([][]model.ObjectID, error) {
	ast, err := requireFlow(d)
	if err != nil {
		return nil, err
	}
	if ast.Node(from) == nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "unknown node %s", from)
	}
	if ast.Node(to) == nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "unknown node %s", to)
	}
	if limit <= 0 {
		return nil, nil
	}
	succs, preds := flowAdjacency(ast)

	// Backward BFS distances prune the enumeration.
	distTo := map[model.ObjectID]int{to: 0}
	queue := []model.ObjectID{to}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, p := range preds[id] {
			if _, seen := distTo[p]; !seen {
				distTo[p] = distTo[id] + 1
				queue = append(queue, p)
			}
		}
	}
	shortest, reachable := distTo[from]
	if !reachable {
		return nil, nil
	}
	budget := shortest + maxExtraHops

	var paths [][]model.ObjectID
	var walk func(path []model.ObjectID, onPath map[model.ObjectID]bool)
	walk = func(path []model.ObjectID, onPath map[model.ObjectID]bool) {
		cur := path[len(path)-1]
		if cur == to {
			paths = append(paths, append([]model.ObjectID(nil), path...))
			return
		}
		for _, next := range succs[cur] {
			if onPath[next] {
				continue
			}
			rem, ok := distTo[next]
			if !ok || len(path)+rem > budget {
				continue
			}
			onPath[next] = true
			walk(append(path, next), onPath)
			delete(onPath, next)
		}
	}
	walk([]model.ObjectID{from}, map[model.ObjectID]bool{from: true})

	sort.SliceStable(paths, func(i, j int) bool {
		if len(paths[i]) != len(paths[j]) {
			return len(paths[i]) < len(paths[j])
		}
		return lessIDPath(paths[i], paths[j])
	})
	if len(paths) > limit {
		paths = paths[:limit]
	}
	return paths, nil
}

func lessIDPath(a, b []model.ObjectID) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// Cycles returns the strongly connected components that contain a cycle
// (size > 1, or a self-loop), each sorted by id, components ordered by their
// first node.
func Cycles(d *model.Diagram) ([][]model.ObjectID, error) {
	ast, err := requireFlow(d)
	if err != nil {
		return nil, err
	}
	succs, _ := flowAdjacency(ast)

	// Tarjan's SCC over nodes in sorted order.
	index := make(map[model.ObjectID]int)
	low := make(map[model.ObjectID]int)
	onStack := make(map[model.ObjectID]bool)
	var stack []model.ObjectID
	next := 0
	var components [][]model.ObjectID

	var strongconnect func(v model.ObjectID)
	strongconnect = func(v model.ObjectID) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true
		for _, w := range succs[v] {
			if _, seen := index[w]; !seen {
				strongconnect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] && index[w] < low[v] {
				low[v] = index[w]
			}
		}
		if low[v] == index[v] {
			var comp []model.ObjectID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			components = append(components, comp)
		}
	}
	for _, n := range ast.SortedNodes() {
		if _, seen := index[n.ID]; !seen {
			strongconnect(n.ID)
		}
	}

	selfLoop := make(map[model.ObjectID]bool)
	for _, e := range ast.Edges {
		if e.From == e.To {
			selfLoop[e.From] = true
		}
	}

	var cycles [][]model.ObjectID
	for _, comp := range components {
		if len(comp) > 1 || (len(comp) == 1 && selfLoop[comp[0]]) {
			sort.Slice(comp, func(i, j int) bool { return comp[i] < comp[j] })
			cycles = append(cycles, comp)
		}
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles, nil
}

// DeadEnds returns nodes with out-degree zero, sorted by id.
func DeadEnds(d *model.Diagram) ([]model.ObjectID, error) {
	ast, err := requireFlow(d)
	if err != nil {
		return nil, err
	}
	outdeg := make(map[model.ObjectID]int)
	for _, e := range ast.Edges {
		outdeg[e.From]++
	}
	var out []model.ObjectID
	for _, n := range ast.SortedNodes() {
		if outdeg[n.ID] == 0 {
			out = append(out, n.ID)
		}
	}
	return out, nil
}

// Unreachable returns the complement of Reachable(start, out), sorted by id.
// With no start, nodes with in-degree zero stand in as the entry set; when no
// such node exists (the graph is all cycles) every node counts as an entry.
func Unreachable(d *model.Diagram, start model.ObjectID) ([]model.ObjectID, error) {
	ast, err := requireFlow(d)
	if err != nil {
		return nil, err
	}
	seen := make(map[model.ObjectID]bool)
	mark := func(from model.ObjectID) error {
		reached, rerr := Reachable(d, from, DirOut)
		if rerr != nil {
			return rerr
		}
		for _, id := range reached {
			seen[id] = true
		}
		return nil
	}
	if start != "" {
		if err := mark(start); err != nil {
			return nil, err
		}
	} else {
		indeg := make(map[model.ObjectID]int)
		for _, e := range ast.Edges {
			indeg[e.To]++
		}
		var starts []model.ObjectID
		for _, n := range ast.SortedNodes() {
			if indeg[n.ID] == 0 {
				starts = append(starts, n.ID)
			}
		}
		// A graph with no sources (every node on a cycle) treats all nodes
		// as entry points, so nothing reports as unreachable.
		if len(starts) == 0 {
			for _, n := range ast.SortedNodes() {
				starts = append(starts, n.ID)
			}
		}
		for _, id := range starts {
			if err := mark(id); err != nil {
				return nil, err
			}
		}
	}
	var out []model.ObjectID
	for _, n := range ast.SortedNodes() {
		if !seen[n.ID] {
			out = append(out, n.ID)
		}
	}
	return out, nil
}

// Degrees returns the top nodes ranked by the requested degree, descending,
// ties broken by id.
func Degrees(d *model.Diagram, top int, sortBy DegreeSort) ([]DegreeEntry, error) {
	ast, err := requireFlow(d)
	if err != nil {
		return nil, err
	}
	entries := make([]DegreeEntry, 0, len(ast.Nodes))
	indeg := make(map[model.ObjectID]int)
	outdeg := make(map[model.ObjectID]int)
	for _, e := range ast.Edges {
		outdeg[e.From]++
		indeg[e.To]++
	}
	for _, n := range ast.SortedNodes() {
		entries = append(entries, DegreeEntry{
			NodeID: n.ID,
			In:     indeg[n.ID],
			Out:    outdeg[n.ID],
			Total:  indeg[n.ID] + outdeg[n.ID],
		})
	}
	key := func(e DegreeEntry) int {
		switch sortBy {
		case SortByIn:
			return e.In
		case SortByOut:
			return e.Out
		default:
			return e.Total
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if key(entries[i]) != key(entries[j]) {
			return key(entries[i]) > key(entries[j])
		}
		return entries[i].NodeID < entries[j].NodeID
	})
	if top > 0 && len(entries) > top {
		entries = entries[:top]
	}
	return entries, nil
}
