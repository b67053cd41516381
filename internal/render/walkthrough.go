package render

import (
	"sort"
	"strings"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/pkg/schema"
)

const (
	wtMinBoxWidth = 12
	wtBoxHeight   = 4
	wtGapX        = 3
	wtGapY        = 2
)

// Walkthrough renders a walkthrough as layered node boxes (title plus body
// preview) with directed arrows between them. Layers follow BFS discovery
// order from the root nodes; cycles are tolerated.
func Walkthrough(w *model.Walkthrough) (*Rendered, error) {
	if len(w.Nodes) == 0 {
		return &Rendered{Text: "", Highlights: HighlightIndex{}}, nil
	}

	layers := wtLayers(w)

	// Box extents per node.
	type box struct {
		x0, y0, x1, y1 int
	}
	boxes := make(map[model.WnID]box, len(w.Nodes))
	width := 0
	y := 0
	for _, layer := range layers {
		x := 0
		rowH := wtBoxHeight
		for _, id := range layer {
			n := w.Nodes[id]
			wBox := runeLen(n.Title) + 4
			if preview := wtPreview(n); preview != "" && runeLen(preview)+4 > wBox {
				wBox = runeLen(preview) + 4
			}
			if wBox < wtMinBoxWidth {
				wBox = wtMinBoxWidth
			}
			boxes[id] = box{x0: x, y0: y, x1: x + wBox - 1, y1: y + wtBoxHeight - 1}
			x += wBox + wtGapX
		}
		if x-wtGapX > width {
			width = x - wtGapX
		}
		y += rowH + wtGapY
	}
	height := y - wtGapY

	c, err := NewCanvas(width, height)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeRender, "walkthrough render failed").WithCause(err)
	}
	hi := HighlightIndex{}

	for _, n := range w.SortedNodes() {
		b := boxes[n.ID]
		c.DrawBox(b.x0, b.y0, b.x1, b.y1)
		inner := b.x1 - b.x0 - 1
		title := clipLabel(n.Title, inner)
		c.WriteString(b.x0+1+(inner-runeLen(title))/2, b.y0+1, title)
		if preview := wtPreview(n); preview != "" {
			c.WriteString(b.x0+1, b.y0+2, clipLabel(preview, inner))
		}
		ref := "node/" + string(n.ID)
		for yy := b.y0; yy <= b.y1; yy++ {
			hi.Add(ref, yy, b.x0, b.x1)
		}
	}

	for _, e := range w.Edges {
		src, okSrc := boxes[e.From]
		dst, okDst := boxes[e.To]
		if !okSrc || !okDst {
			continue
		}
		sx := (src.x0 + src.x1) / 2
		dx := (dst.x0 + dst.x1) / 2
		if dst.y0 > src.y1 {
			midY := src.y1 + 1
			c.MergeEdges(sx, src.y1, edgeDown)
			c.DrawVLine(sx, src.y1+1, midY)
			if sx != dx {
				c.DrawHLine(sx, dx, midY)
			}
			if dst.y0-1 > midY {
				c.DrawVLine(dx, midY, dst.y0-1)
			}
			c.MergeEdges(dx, dst.y0, edgeUp)
			c.SetOverlay(dx, dst.y0-1, GlyphArrowDown)
		} else {
			// Lateral or back edge: route along the row above the target.
			c.MergeEdges(sx, src.y0, edgeUp)
			if src.y0 > 0 {
				c.SetOverlay(sx, src.y0-1, GlyphVertical)
			}
		}
	}

	text := c.String()
	hi.clampToText(text)
	return &Rendered{Text: text, Highlights: hi}, nil
}

func wtPreview(n *model.WnNode) string {
	body, _, _ := strings.Cut(n.BodyMD, "\n")
	return strings.TrimSpace(body)
}

// wtLayers assigns nodes to BFS layers from the roots (nodes with no
// incoming edges); unreached nodes start new layers in id order.
func wtLayers(w *model.Walkthrough) [][]model.WnID {
	incoming := make(map[model.WnID]int, len(w.Nodes))
	succs := make(map[model.WnID][]model.WnID)
	for _, e := range w.Edges {
		incoming[e.To]++
		succs[e.From] = append(succs[e.From], e.To)
	}
	for _, targets := range succs {
		sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	}

	var roots []model.WnID
	for _, n := range w.SortedNodes() {
		if incoming[n.ID] == 0 {
			roots = append(roots, n.ID)
		}
	}

	depth := make(map[model.WnID]int, len(w.Nodes))
	seen := make(map[model.WnID]bool, len(w.Nodes))
	var queue []model.WnID
	enqueue := func(id model.WnID, d int) {
		if seen[id] {
			return
		}
		seen[id] = true
		depth[id] = d
		queue = append(queue, id)
	}
	i := 0
	drain := func() {
		for ; i < len(queue); i++ {
			id := queue[i]
			for _, next := range succs[id] {
				enqueue(next, depth[id]+1)
			}
		}
	}
	for _, r := range roots {
		enqueue(r, 0)
	}
	drain()
	// Nodes on cycles with no root path start fresh layers.
	for _, n := range w.SortedNodes() {
		if !seen[n.ID] {
			enqueue(n.ID, 0)
			drain()
		}
	}

	maxDepth := 0
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}
	layers := make([][]model.WnID, maxDepth+1)
	for _, n := range w.SortedNodes() {
		d := depth[n.ID]
		layers[d] = append(layers[d], n.ID)
	}
	return layers
}
