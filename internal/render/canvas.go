// Package render draws diagrams onto a fixed-width character grid and emits
// both the text and an annotated highlight index mapping object identities to
// cell spans.
package render

import (
	"strings"

	"github.com/nereid-dev/nereid/pkg/schema"
)

// Box-drawing glyphs used by the renderers.
const (
	GlyphHorizontal  = '─'
	GlyphVertical    = '│'
	GlyphTopLeft     = '┌'
	GlyphTopRight    = '┐'
	GlyphBottomLeft  = '└'
	GlyphBottomRight = '┘'
	GlyphTeeRight    = '├'
	GlyphTeeLeft     = '┤'
	GlyphTeeDown     = '┬'
	GlyphTeeUp       = '┴'
	GlyphCross       = '┼'
	GlyphDashed      = '┈'

	GlyphArrowRight = '▶'
	GlyphArrowLeft  = '◀'
	GlyphArrowDown  = '▼'
	GlyphArrowUp    = '▲'
)

// edgeBits records which directions a box-drawing cell connects to.
type edgeBits uint8

const (
	edgeLeft edgeBits = 1 << iota
	edgeRight
	edgeUp
	edgeDown
)

var glyphEdges = map[rune]edgeBits{
	GlyphHorizontal:  edgeLeft | edgeRight,
	GlyphVertical:    edgeUp | edgeDown,
	GlyphTopLeft:     edgeRight | edgeDown,
	GlyphTopRight:    edgeLeft | edgeDown,
	GlyphBottomLeft:  edgeRight | edgeUp,
	GlyphBottomRight: edgeLeft | edgeUp,
	GlyphTeeRight:    edgeUp | edgeDown | edgeRight,
	GlyphTeeLeft:     edgeUp | edgeDown | edgeLeft,
	GlyphTeeDown:     edgeLeft | edgeRight | edgeDown,
	GlyphTeeUp:       edgeLeft | edgeRight | edgeUp,
	GlyphCross:       edgeLeft | edgeRight | edgeUp | edgeDown,
}

var edgeGlyphs = func() map[edgeBits]rune {
	m := make(map[edgeBits]rune, len(glyphEdges))
	for g, e := range glyphEdges {
		m[e] = g
	}
	// Degenerate unions render as straight lines.
	m[edgeLeft] = GlyphHorizontal
	m[edgeRight] = GlyphHorizontal
	m[edgeUp] = GlyphVertical
	m[edgeDown] = GlyphVertical
	return m
}()

// Canvas is a bounds-checked glyph grid. Writing a box-drawing glyph onto an
// existing box-drawing glyph merges into the correct junction; non-box glyphs
// follow last-writer-wins.
type Canvas struct {
	width  int
	height int
	cells  [][]rune
	edges  [][]edgeBits
}

// NewCanvas creates a space-filled canvas.
func NewCanvas(width, height int) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, schema.NewErrorf(schema.ErrCodeCanvas, "canvas %dx%d is too small", width, height)
	}
	cells := make([][]rune, height)
	edges := make([][]edgeBits, height)
	for y := range cells {
		row := make([]rune, width)
		for x := range row {
			row[x] = ' '
		}
		cells[y] = row
		edges[y] = make([]edgeBits, width)
	}
	return &Canvas{width: width, height: height, cells: cells, edges: edges}, nil
}

// Width returns the canvas width in cells.
func (c *Canvas) Width() int { return c.width }

// Height returns the canvas height in cells.
func (c *Canvas) Height() int { return c.height }

// InBounds reports whether (x, y) lies on the canvas.
func (c *Canvas) InBounds(x, y int) bool {
	return x >= 0 && x < c.width && y >= 0 && y < c.height
}

// Get returns the glyph at (x, y), or a space when out of bounds.
func (c *Canvas) Get(x, y int) rune {
	if !c.InBounds(x, y) {
		return ' '
	}
	return c.cells[y][x]
}

// Set writes a glyph. Box-drawing glyphs merge with existing box glyphs into
// junctions; anything else overwrites. Out-of-bounds writes are dropped.
func (c *Canvas) Set(x, y int, ch rune) {
	if !c.InBounds(x, y) {
		return
	}
	newEdges, isBox := glyphEdges[ch]
	if isBox {
		merged := c.edges[y][x] | newEdges
		c.edges[y][x] = merged
		if g, ok := edgeGlyphs[merged]; ok {
			c.cells[y][x] = g
			return
		}
	}
	c.edges[y][x] = newEdges
	c.cells[y][x] = ch
}

// MergeEdges adds connection bits to a cell, producing the junction glyph
// for the union. Used where a line meets another line from one side only
// (├ rather than ┼).
func (c *Canvas) MergeEdges(x, y int, bits edgeBits) {
	if !c.InBounds(x, y) {
		return
	}
	merged := c.edges[y][x] | bits
	if g, ok := edgeGlyphs[merged]; ok {
		c.edges[y][x] = merged
		c.cells[y][x] = g
	}
}

// SetOverlay overwrites the glyph without merging, used for labels written
// over borders after line drawing.
func (c *Canvas) SetOverlay(x, y int, ch rune) {
	if !c.InBounds(x, y) {
		return
	}
	c.cells[y][x] = ch
	c.edges[y][x] = glyphEdges[ch]
}

// WriteString overlays text starting at (x, y), clipping at the right edge.
func (c *Canvas) WriteString(x, y int, text string) {
	for i, r := range []rune(text) {
		c.SetOverlay(x+i, y, r)
	}
}

// DrawHLine draws a horizontal box line between x0 and x1 inclusive.
func (c *Canvas) DrawHLine(x0, x1, y int) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	for x := x0; x <= x1; x++ {
		c.Set(x, y, GlyphHorizontal)
	}
}

// DrawVLine draws a vertical box line between y0 and y1 inclusive. The end
// cells connect inward only, so a line that stops on a horizontal border
// merges into a tee rather than a cross.
func (c *Canvas) DrawVLine(x, y0, y1 int) {
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	if y0 == y1 {
		c.Set(x, y0, GlyphVertical)
		return
	}
	c.MergeEdges(x, y0, edgeDown)
	for y := y0 + 1; y < y1; y++ {
		c.Set(x, y, GlyphVertical)
	}
	c.MergeEdges(x, y1, edgeUp)
}

// DrawBox draws a rectangle with corners at (x0, y0) and (x1, y1) inclusive.
func (c *Canvas) DrawBox(x0, y0, x1, y1 int) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for x := x0 + 1; x < x1; x++ {
		c.Set(x, y0, GlyphHorizontal)
		c.Set(x, y1, GlyphHorizontal)
	}
	for y := y0 + 1; y < y1; y++ {
		c.Set(x0, y, GlyphVertical)
		c.Set(x1, y, GlyphVertical)
	}
	c.Set(x0, y0, GlyphTopLeft)
	c.Set(x1, y0, GlyphTopRight)
	c.Set(x0, y1, GlyphBottomLeft)
	c.Set(x1, y1, GlyphBottomRight)
}

// String renders the canvas, trimming trailing whitespace per line and
// dropping trailing empty lines.
func (c *Canvas) String() string {
	lines := make([]string, 0, c.height)
	for _, row := range c.cells {
		lines = append(lines, strings.TrimRight(string(row), " "))
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n")
}
