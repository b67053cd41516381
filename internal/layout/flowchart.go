package layout

import (
	"sort"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/pkg/schema"
)

// GridPoint is a coordinate on the routing grid. Nodes occupy even/even
// cells; streets are the odd coordinates.
type GridPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NodePos is a node's layered position.
type NodePos struct {
	Layer int `json:"layer"`
	Index int `json:"index"`
}

// FlowLayout is the deterministic layered placement of a flowchart.
type FlowLayout struct {
	Positions map[model.ObjectID]NodePos
	Coords    map[model.ObjectID]GridPoint
	Layers    [][]model.ObjectID
}

// Flowchart assigns each node to layer = longest path from any source (in
// topological order), then orders each layer with a single barycentric sweep
// over previous-layer positions, tie-broken by object id. Cyclic graphs fail
// with CYCLE_DETECTED naming every node the topological pass could not place:
// the nodes on cycles and the nodes downstream of them.
func Flowchart(ast *model.FlowAST) (*FlowLayout, error) {
	for _, e := range ast.Edges {
		if ast.Node(e.From) == nil || ast.Node(e.To) == nil {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound, "edge %s references unknown node", e.ID)
		}
	}

	indeg := make(map[model.ObjectID]int, len(ast.Nodes))
	succs := make(map[model.ObjectID][]model.ObjectID)
	preds := make(map[model.ObjectID][]model.ObjectID)
	for _, n := range ast.Nodes {
		indeg[n.ID] = 0
	}
	for _, e := range ast.SortedEdges() {
		succs[e.From] = append(succs[e.From], e.To)
		preds[e.To] = append(preds[e.To], e.From)
		indeg[e.To]++
	}

	// Kahn's algorithm with a sorted frontier for determinism.
	var frontier []model.ObjectID
	for id, d := range indeg {
		if d == 0 {
			frontier = append(frontier, id)
		}
	}
	sortObjectIDs(frontier)

	layer := make(map[model.ObjectID]int, len(ast.Nodes))
	visited := 0
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		visited++
		for _, next := range succs[id] {
			if layer[id]+1 > layer[next] {
				layer[next] = layer[id] + 1
			}
			indeg[next]--
			if indeg[next] == 0 {
				frontier = insertSorted(frontier, next)
			}
		}
	}
	if visited != len(ast.Nodes) {
		var cyclic []model.ObjectID
		for id, d := range indeg {
			if d > 0 {
				cyclic = append(cyclic, id)
			}
		}
		sortObjectIDs(cyclic)
		names := make([]string, len(cyclic))
		for i, id := range cyclic {
			names[i] = string(id)
		}
		return nil, schema.NewError(schema.ErrCodeCycleDetected, "flowchart contains a cycle").
			WithDetail("nodes", names)
	}

	maxLayer := 0
	for _, lv := range layer {
		if lv > maxLayer {
			maxLayer = lv
		}
	}
	layers := make([][]model.ObjectID, maxLayer+1)
	for _, n := range ast.SortedNodes() {
		lv := layer[n.ID]
		layers[lv] = append(layers[lv], n.ID)
	}

	// Single barycentric sweep, previous layer only. No iteration so the
	// result stays deterministic and bounded.
	prevIndex := make(map[model.ObjectID]int)
	for li, ids := range layers {
		if li > 0 {
			type ranked struct {
				id   model.ObjectID
				bary float64
			}
			rankedIDs := make([]ranked, 0, len(ids))
			for _, id := range ids {
				sum, count := 0.0, 0
				for _, p := range preds[id] {
					if idx, ok := prevIndex[p]; ok {
						sum += float64(idx)
						count++
					}
				}
				bary := 0.0
				if count > 0 {
					bary = sum / float64(count)
				}
				rankedIDs = append(rankedIDs, ranked{id: id, bary: bary})
			}
			sort.SliceStable(rankedIDs, func(i, j int) bool {
				if rankedIDs[i].bary != rankedIDs[j].bary {
					return rankedIDs[i].bary < rankedIDs[j].bary
				}
				return rankedIDs[i].id < rankedIDs[j].id
			})
			for i, r := range rankedIDs {
				ids[i] = r.id
			}
		}
		prevIndex = make(map[model.ObjectID]int, len(ids))
		for i, id := range ids {
			prevIndex[id] = i
		}
	}

	l := &FlowLayout{
		Positions: make(map[model.ObjectID]NodePos, len(ast.Nodes)),
		Coords:    make(map[model.ObjectID]GridPoint, len(ast.Nodes)),
		Layers:    layers,
	}
	for li, ids := range layers {
		for i, id := range ids {
			l.Positions[id] = NodePos{Layer: li, Index: i}
			l.Coords[id] = GridPoint{X: li * 2, Y: i * 2}
		}
	}
	return l, nil
}

func sortObjectIDs(ids []model.ObjectID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func insertSorted(ids []model.ObjectID, id model.ObjectID) []model.ObjectID {
	pos := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	ids = append(ids, "")
	copy(ids[pos+1:], ids[pos:])
	ids[pos] = id
	return ids
}
