package query

import (
	"sort"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/pkg/schema"
)

// RouteOrdering selects result ordering for FindRoutes.
type RouteOrdering string

const (
	OrderFewestHops    RouteOrdering = "fewest_hops"
	OrderLexicographic RouteOrdering = "lexicographic"
)

// maxRouteEnumeration bounds simple-path enumeration so pathological graphs
// stay cheap; enumeration order is deterministic so the bound is too.
const maxRouteEnumeration = 10000

// Adjacency is the derived session meta-graph: canonical reference strings
// with sorted neighbor lists. Build it once and reuse it across queries; it
// is valid until the session mutates.
type Adjacency struct {
	neighbors map[string][]string
}

// BuildAdjacency derives the meta-graph:
//   - flow: node→node along edges (directed), node↔edge and edge↔endpoint
//     structural adjacency (bidirectional);
//   - sequence: message→next chronological message (directed),
//     participant↔its messages (bidirectional);
//   - xrefs: endpoint↔endpoint (bidirectional).
func BuildAdjacency(s *model.Session) *Adjacency {
	adj := make(map[string]map[string]bool)
	link := func(from, to string, bidi bool) {
		if adj[from] == nil {
			adj[from] = make(map[string]bool)
		}
		adj[from][to] = true
		if bidi {
			if adj[to] == nil {
				adj[to] = make(map[string]bool)
			}
			adj[to][from] = true
		}
	}

	for _, did := range s.SortedDiagramIDs() {
		d := s.Diagrams[did]
		switch d.Kind {
		case model.KindFlowchart:
			for _, e := range d.Flow.Edges {
				fromRef := d.Ref(model.CategoryFlowNode, e.From).String()
				toRef := d.Ref(model.CategoryFlowNode, e.To).String()
				edgeRef := d.Ref(model.CategoryFlowEdge, e.ID).String()
				link(fromRef, toRef, false)
				link(fromRef, edgeRef, true)
				link(toRef, edgeRef, true)
			}
		case model.KindSequence:
			sorted := d.Seq.SortedMessages()
			for i, m := range sorted {
				msgRef := d.Ref(model.CategorySeqMessage, m.ID).String()
				if i+1 < len(sorted) {
					nextRef := d.Ref(model.CategorySeqMessage, sorted[i+1].ID).String()
					link(msgRef, nextRef, false)
				}
				link(d.Ref(model.CategorySeqParticipant, m.From).String(), msgRef, true)
				link(d.Ref(model.CategorySeqParticipant, m.To).String(), msgRef, true)
			}
		}
	}
	for _, x := range s.XRefs {
		if x.Status == model.XRefOk {
			link(x.From.String(), x.To.String(), true)
		}
	}

	out := &Adjacency{neighbors: make(map[string][]string, len(adj))}
	for ref, set := range adj {
		list := make([]string, 0, len(set))
		for n := range set {
			list = append(list, n)
		}
		sort.Strings(list)
		out.neighbors[ref] = list
	}
	return out
}

// Neighbors returns the sorted adjacency of a reference.
func (a *Adjacency) Neighbors(ref string) []string {
	return a.neighbors[ref]
}

// FindRoutes returns up to limit simple paths from→to with at most maxHops
// hops, ordered by the requested policy with a lexicographic tie-break over
// the path's reference strings. limit <= 0 returns nothing; maxHops = 0
// yields a single-element path iff from == to.
func (a *Adjacency) FindRoutes(from, to string, limit, maxHops int, ordering RouteOrdering) ([][]string, error) {
	switch ordering {
	case OrderFewestHops, OrderLexicographic, "":
	default:
		return nil, schema.NewErrorf(schema.ErrCodeInvalidParams, "unknown route ordering %q", ordering)
	}
	if limit <= 0 {
		return [][]string{}, nil
	}

	var paths [][]string
	enumerated := 0
	var walk func(path []string, onPath map[string]bool)
	walk = func(path []string, onPath map[string]bool) {
		if enumerated >= maxRouteEnumeration {
			return
		}
		cur := path[len(path)-1]
		if cur == to {
			enumerated++
			paths = append(paths, append([]string(nil), path...))
			return
		}
		if len(path)-1 >= maxHops {
			return
		}
		for _, next := range a.neighbors[cur] {
			if onPath[next] {
				continue
			}
			onPath[next] = true
			walk(append(path, next), onPath)
			delete(onPath, next)
		}
	}
	walk([]string{from}, map[string]bool{from: true})

	sort.SliceStable(paths, func(i, j int) bool {
		if ordering != OrderLexicographic && len(paths[i]) != len(paths[j]) {
			return len(paths[i]) < len(paths[j])
		}
		return lessStringPath(paths[i], paths[j])
	})
	if len(paths) > limit {
		paths = paths[:limit]
	}
	return paths, nil
}

func lessStringPath(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
