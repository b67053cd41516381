package render

import (
	"github.com/nereid-dev/nereid/internal/layout"
	"github.com/nereid-dev/nereid/internal/model"
)

// Flowchart box and lane sizing.
const (
	flowMinBoxWidth = 8
	flowBorderPad   = 2
	flowLaneWidth   = 5
	flowLaneHeight  = 3

	roundTopLeft     = '╭'
	roundTopRight    = '╮'
	roundBottomLeft  = '╰'
	roundBottomRight = '╯'
)

// flowGrid projects routing-grid coordinates onto canvas cells. Even grid
// indices are node rows/columns sized to their content; odd indices are
// streets with fixed lane size. Grid index -1 (the outer margin street) maps
// to a leading lane.
type flowGrid struct {
	colStart  []int
	colWidth  []int
	rowStart  []int
	rowHeight []int
	boxW      map[model.ObjectID]int
	boxH      int
}

func buildFlowGrid(ast *model.FlowAST, lay *layout.FlowLayout, opts Options) *flowGrid {
	g := &flowGrid{boxW: make(map[model.ObjectID]int, len(ast.Nodes)), boxH: 3}
	if opts.ShowNotes {
		g.boxH = 4
	}

	maxGX, maxGY := 0, 0
	layerWidth := make(map[int]int)
	for _, n := range ast.Nodes {
		coord := lay.Coords[n.ID]
		w := runeLen(n.Label) + 2*flowBorderPad
		if opts.ShowNotes && runeLen(n.Note)+2*flowBorderPad > w {
			w = runeLen(n.Note) + 2*flowBorderPad
		}
		if w < flowMinBoxWidth {
			w = flowMinBoxWidth
		}
		g.boxW[n.ID] = w
		if w > layerWidth[coord.X] {
			layerWidth[coord.X] = w
		}
		if coord.X > maxGX {
			maxGX = coord.X
		}
		if coord.Y > maxGY {
			maxGY = coord.Y
		}
	}

	// Grid indices run -1 .. max+1; slot i holds grid index i-1.
	nCols := maxGX + 3
	nRows := maxGY + 3
	g.colStart = make([]int, nCols)
	g.colWidth = make([]int, nCols)
	g.rowStart = make([]int, nRows)
	g.rowHeight = make([]int, nRows)

	x := 0
	for i := 0; i < nCols; i++ {
		gx := i - 1
		w := flowLaneWidth
		if gx >= 0 && gx%2 == 0 {
			w = layerWidth[gx]
			if w == 0 {
				w = flowMinBoxWidth
			}
		}
		g.colStart[i] = x
		g.colWidth[i] = w
		x += w
	}
	y := 0
	for i := 0; i < nRows; i++ {
		gy := i - 1
		h := flowLaneHeight
		if gy >= 0 && gy%2 == 0 {
			h = g.boxH
		}
		g.rowStart[i] = y
		g.rowHeight[i] = h
		y += h
	}
	return g
}

func (g *flowGrid) width() int {
	last := len(g.colStart) - 1
	return g.colStart[last] + g.colWidth[last]
}

func (g *flowGrid) height() int {
	last := len(g.rowStart) - 1
	return g.rowStart[last] + g.rowHeight[last]
}

// center maps a grid point to the canvas cell at the middle of its region.
func (g *flowGrid) center(p layout.GridPoint) (int, int) {
	ci := p.X + 1
	ri := p.Y + 1
	return g.colStart[ci] + g.colWidth[ci]/2, g.rowStart[ri] + g.rowHeight[ri]/2
}

// nodeRect returns the box extent of a node centered in its grid cell.
func (g *flowGrid) nodeRect(id model.ObjectID, coord layout.GridPoint) (x0, y0, x1, y1 int) {
	cx, cy := g.center(coord)
	w := g.boxW[id]
	x0 = cx - w/2
	x1 = x0 + w - 1
	y0 = cy - g.boxH/2
	y1 = y0 + g.boxH - 1
	return x0, y0, x1, y1
}

// Flowchart renders node boxes at layered grid positions and orthogonal
// connectors along routed street polylines.
func Flowchart(d *model.Diagram, ast *model.FlowAST, opts Options) (*Rendered, error) {
	if len(ast.Nodes) == 0 {
		return &Rendered{Text: "", Highlights: HighlightIndex{}}, nil
	}
	lay, err := layout.Flowchart(ast)
	if err != nil {
		return nil, err
	}
	routes := layout.RouteEdges(ast, lay)
	grid := buildFlowGrid(ast, lay, opts)

	c, err := NewCanvas(grid.width(), grid.height())
	if err != nil {
		return nil, err
	}
	hi := HighlightIndex{}

	for _, n := range ast.SortedNodes() {
		drawFlowNode(c, hi, d, grid, lay, n, opts)
	}
	for _, e := range ast.SortedEdges() {
		drawFlowEdge(c, hi, d, grid, lay, ast, e, routes[e.ID])
	}

	text := c.String()
	hi.clampToText(text)
	return &Rendered{Text: text, Highlights: hi}, nil
}

func drawFlowNode(c *Canvas, hi HighlightIndex, d *model.Diagram, g *flowGrid, lay *layout.FlowLayout, n *model.FlowNode, opts Options) {
	x0, y0, x1, y1 := g.nodeRect(n.ID, lay.Coords[n.ID])
	c.DrawBox(x0, y0, x1, y1)
	if n.Shape == model.ShapeRound {
		c.SetOverlay(x0, y0, roundTopLeft)
		c.SetOverlay(x1, y0, roundTopRight)
		c.SetOverlay(x0, y1, roundBottomLeft)
		c.SetOverlay(x1, y1, roundBottomRight)
	}

	inner := x1 - x0 - 1
	label := clipLabel(n.Label, inner)
	c.WriteString(x0+1+(inner-runeLen(label))/2, y0+1, label)
	if opts.ShowNotes && n.Note != "" {
		note := clipLabel(n.Note, inner)
		c.WriteString(x0+1+(inner-runeLen(note))/2, y0+2, note)
	}

	ref := d.Ref(model.CategoryFlowNode, n.ID).String()
	hi.Add(ref, y0, x0, x1)
	hi.Add(ref, y1, x0, x1)
	for y := y0 + 1; y < y1; y++ {
		hi.AddCell(ref, x0, y)
		hi.AddCell(ref, x1, y)
	}
	hi.Add(ref, y0+1, x0, x1)
}

type canvasPoint struct {
	x, y int
}

// drawFlowEdge projects a routed polyline to canvas lanes, clips it to the
// endpoint box borders, then draws segments, the label on the longest
// horizontal segment, and finally the arrowhead (which wins collisions).
func drawFlowEdge(c *Canvas, hi HighlightIndex, d *model.Diagram, g *flowGrid, lay *layout.FlowLayout, ast *model.FlowAST, e *model.FlowEdge, route []layout.GridPoint) {
	if len(route) < 2 {
		return
	}
	pts := make([]canvasPoint, len(route))
	for i, p := range route {
		x, y := g.center(p)
		pts[i] = canvasPoint{x: x, y: y}
	}

	ref := d.Ref(model.CategoryFlowEdge, e.ID).String()

	// Clip the first run to the source border and merge the junction.
	fx0, fy0, fx1, fy1 := g.nodeRect(e.From, lay.Coords[e.From])
	pts[0], _ = clipToBox(pts[0], pts[1], fx0, fy0, fx1, fy1, c)

	// Clip the final run to the target border; remember the approach
	// direction for the arrowhead.
	tx0, ty0, tx1, ty1 := g.nodeRect(e.To, lay.Coords[e.To])
	last := len(pts) - 1
	var arrow rune
	pts[last], arrow = clipToBox(pts[last], pts[last-1], tx0, ty0, tx1, ty1, c)

	// Segments.
	type hseg struct {
		y, x0, x1 int
	}
	var hsegs []hseg
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		if a.y == b.y {
			lo, hiX := a.x, b.x
			if hiX < lo {
				lo, hiX = hiX, lo
			}
			c.DrawHLine(lo, hiX, a.y)
			hsegs = append(hsegs, hseg{y: a.y, x0: lo, x1: hiX})
			hi.Add(ref, a.y, lo, hiX)
		} else {
			lo, hiY := a.y, b.y
			if hiY < lo {
				lo, hiY = hiY, lo
			}
			c.DrawVLine(a.x, lo, hiY)
			for y := lo; y <= hiY; y++ {
				hi.AddCell(ref, a.x, y)
			}
		}
	}

	// Label on the longest horizontal segment, earliest qualifying wins.
	if e.Label != "" {
		best := -1
		for i, s := range hsegs {
			if best < 0 || s.x1-s.x0 > hsegs[best].x1-hsegs[best].x0 {
				best = i
			}
		}
		if best >= 0 {
			s := hsegs[best]
			segW := s.x1 - s.x0 + 1
			label := clipLabel(e.Label, segW-2)
			if label != "" {
				lx := s.x0 + (segW-runeLen(label))/2
				c.WriteString(lx, s.y, label)
				hi.Add(ref, s.y, lx, lx+runeLen(label)-1)
			}
		}
	}

	// Arrowhead one cell before the target border.
	if arrow != 0 {
		c.SetOverlay(pts[last].x, pts[last].y, arrow)
		hi.AddCell(ref, pts[last].x, pts[last].y)
	}
}

// clipToBox moves p (a node-center endpoint) just outside the box border
// along the axis toward its neighbor waypoint, merging the junction glyph
// into the border cell. Returns the clipped point and the arrowhead glyph
// pointing into the box.
func clipToBox(p, neighbor canvasPoint, x0, y0, x1, y1 int, c *Canvas) (canvasPoint, rune) {
	switch {
	case neighbor.x > p.x: // leaves through the right border
		c.MergeEdges(x1, p.y, edgeRight)
		return canvasPoint{x: x1 + 1, y: p.y}, GlyphArrowLeft
	case neighbor.x < p.x: // left border
		c.MergeEdges(x0, p.y, edgeLeft)
		return canvasPoint{x: x0 - 1, y: p.y}, GlyphArrowRight
	case neighbor.y > p.y: // bottom border
		c.MergeEdges(p.x, y1, edgeDown)
		return canvasPoint{x: p.x, y: y1 + 1}, GlyphArrowUp
	default: // top border
		c.MergeEdges(p.x, y0, edgeUp)
		return canvasPoint{x: p.x, y: y0 - 1}, GlyphArrowDown
	}
}
