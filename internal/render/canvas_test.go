package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanvasSetAndGet(t *testing.T) {
	c, err := NewCanvas(4, 2)
	require.NoError(t, err)
	c.Set(1, 1, 'x')
	assert.Equal(t, 'x', c.Get(1, 1))
	assert.Equal(t, ' ', c.Get(0, 0))
	// Out of bounds reads and writes are inert.
	c.Set(99, 0, 'y')
	assert.Equal(t, ' ', c.Get(99, 0))
}

func TestCanvasRejectsDegenerateSize(t *testing.T) {
	_, err := NewCanvas(0, 5)
	assert.Error(t, err)
	_, err = NewCanvas(5, -1)
	assert.Error(t, err)
}

func TestCanvasLineCrossingMergesToCross(t *testing.T) {
	c, err := NewCanvas(5, 5)
	require.NoError(t, err)
	c.DrawHLine(0, 4, 2)
	c.DrawVLine(2, 0, 4)
	assert.Equal(t, GlyphCross, c.Get(2, 2))
	assert.Equal(t, GlyphHorizontal, c.Get(1, 2))
	assert.Equal(t, GlyphVertical, c.Get(2, 1))
}

func TestCanvasBoxJunctions(t *testing.T) {
	c, err := NewCanvas(7, 5)
	require.NoError(t, err)
	c.DrawBox(0, 0, 6, 4)
	// A vertical line through the box merges tees into both borders.
	c.DrawVLine(3, 0, 4)
	assert.Equal(t, GlyphVertical, c.Get(3, 2))
	assert.Equal(t, GlyphVertical, c.Get(3, 1))
	assert.Equal(t, GlyphTeeDown, c.Get(3, 0))
	assert.Equal(t, GlyphTeeUp, c.Get(3, 4))
}

func TestCanvasMergeEdgesProducesTee(t *testing.T) {
	c, err := NewCanvas(3, 3)
	require.NoError(t, err)
	c.DrawVLine(1, 0, 2)
	c.MergeEdges(1, 1, edgeRight)
	assert.Equal(t, GlyphTeeRight, c.Get(1, 1))
}

func TestCanvasOverlayWins(t *testing.T) {
	c, err := NewCanvas(5, 1)
	require.NoError(t, err)
	c.DrawHLine(0, 4, 0)
	c.WriteString(1, 0, "ab")
	assert.Equal(t, 'a', c.Get(1, 0))
	assert.Equal(t, 'b', c.Get(2, 0))
	assert.Equal(t, GlyphHorizontal, c.Get(3, 0))
}

func TestCanvasStringTrimsTrailing(t *testing.T) {
	c, err := NewCanvas(6, 4)
	require.NoError(t, err)
	c.Set(0, 0, 'a')
	c.Set(2, 1, 'b')
	out := c.String()
	assert.Equal(t, "a\n  b", out)
	assert.False(t, strings.HasSuffix(out, "\n"))
}

func TestCanvasEmptyRendersEmptyString(t *testing.T) {
	c, err := NewCanvas(10, 3)
	require.NoError(t, err)
	assert.Equal(t, "", c.String())
}
