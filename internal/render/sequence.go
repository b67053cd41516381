package render

import (
	"github.com/nereid-dev/nereid/internal/layout"
	"github.com/nereid-dev/nereid/internal/model"
)

// Sequence renders a sequence diagram: participant header boxes, lifelines,
// message arrows on even rows, and block frames on the gap rows between them.
func Sequence(d *model.Diagram, ast *model.SeqAST, opts Options) (*Rendered, error) {
	if len(ast.Participants) == 0 {
		return &Rendered{Text: "", Highlights: HighlightIndex{}}, nil
	}

	lay := layout.Sequence(ast, layout.SequenceOptions{
		ColumnWidth: opts.ColumnWidth,
		RowSpacing:  opts.RowSpacing,
		ShowNotes:   opts.ShowNotes,
	})
	colWidth := lay.Options.ColumnWidth

	width := lay.Width
	for _, m := range ast.Messages {
		if m.Kind.IsSelf() || m.From == m.To {
			need := lay.ParticipantX[m.From] + 7 + runeLen(m.Text)
			if need > width {
				width = need
			}
		}
	}
	height := lay.Height
	if height < lay.HeaderHeight+1 {
		height = lay.HeaderHeight + 1
	}

	c, err := NewCanvas(width, height)
	if err != nil {
		return nil, err
	}
	hi := HighlightIndex{}

	drawSeqParticipants(c, hi, d, ast, lay, opts, colWidth, height)
	drawSeqMessages(c, hi, d, ast, lay)
	drawSeqBlocks(c, hi, d, ast, lay, width)

	text := c.String()
	hi.clampToText(text)
	return &Rendered{Text: text, Highlights: hi}, nil
}

func drawSeqParticipants(c *Canvas, hi HighlightIndex, d *model.Diagram, ast *model.SeqAST, lay *layout.SequenceLayout, opts Options, colWidth, height int) {
	boxW := colWidth - 4
	if boxW < 6 {
		boxW = 6
	}
	for _, p := range ast.SortedParticipants() {
		colX := lay.ParticipantX[p.ID]
		x0 := colX - boxW/2
		x1 := x0 + boxW - 1
		y1 := lay.HeaderHeight - 1
		c.DrawBox(x0, 0, x1, y1)

		label := clipLabel(p.Label(), boxW-2)
		c.WriteString(x0+1+(boxW-2-runeLen(label))/2, 1, label)
		if opts.ShowNotes && p.Note != "" {
			note := clipLabel(p.Note, boxW-2)
			c.WriteString(x0+1, 2, note)
		}

		c.DrawVLine(colX, lay.HeaderHeight, height-1)

		ref := d.Ref(model.CategorySeqParticipant, p.ID).String()
		for y := 0; y <= y1; y++ {
			hi.Add(ref, y, x0, x1)
		}
		for y := lay.HeaderHeight; y < height; y++ {
			hi.AddCell(ref, colX, y)
		}
	}
}

func drawSeqMessages(c *Canvas, hi HighlightIndex, d *model.Diagram, ast *model.SeqAST, lay *layout.SequenceLayout) {
	for _, m := range ast.SortedMessages() {
		y := lay.MessageY[m.ID]
		ref := d.Ref(model.CategorySeqMessage, m.ID).String()
		if m.Kind.IsSelf() || m.From == m.To {
			drawSelfMessage(c, hi, ref, lay.ParticipantX[m.From], y, m.Text)
			continue
		}
		xa := lay.ParticipantX[m.From]
		xb := lay.ParticipantX[m.To]
		drawMessageArrow(c, xa, xb, y, m.Kind, m.Text)
		lo, hiX := xa, xb
		if hiX < lo {
			lo, hiX = hiX, lo
		}
		hi.Add(ref, y, lo, hiX)
	}
}

// drawMessageArrow draws one horizontal message: junctions merged into both
// lifelines, centered text overlay, arrowhead at the receiver side. Return
// arrows are post-processed to ┈ between the sender junction and the
// arrowhead, both exclusive.
func drawMessageArrow(c *Canvas, xa, xb, y int, kind model.MessageKind, text string) {
	lo, hiX := xa, xb
	if hiX < lo {
		lo, hiX = hiX, lo
	}
	c.DrawHLine(lo+1, hiX-1, y)
	if xa < xb {
		c.MergeEdges(xa, y, edgeRight)
		c.MergeEdges(xb, y, edgeLeft)
	} else {
		c.MergeEdges(xa, y, edgeLeft)
		c.MergeEdges(xb, y, edgeRight)
	}

	span := hiX - lo - 1
	label := clipLabel(text, span-4)
	if label != "" {
		c.WriteString(lo+1+(span-runeLen(label))/2, y, label)
	}

	if xa < xb {
		c.SetOverlay(xb-1, y, GlyphArrowRight)
	} else {
		c.SetOverlay(xb+1, y, GlyphArrowLeft)
	}

	if kind == model.MessageReturn {
		for x := lo + 1; x < hiX; x++ {
			if c.Get(x, y) == GlyphHorizontal {
				c.SetOverlay(x, y, GlyphDashed)
			}
		}
	}
}

// drawSelfMessage draws a two-row loop returning to the sender lifeline.
func drawSelfMessage(c *Canvas, hi HighlightIndex, ref string, x, y int, text string) {
	c.MergeEdges(x, y, edgeRight)
	c.DrawHLine(x+1, x+3, y)
	c.Set(x+4, y, GlyphTopRight)
	c.Set(x+4, y+1, GlyphBottomRight)
	c.DrawHLine(x+2, x+3, y+1)
	c.SetOverlay(x+1, y+1, GlyphArrowLeft)
	if text != "" {
		c.WriteString(x+6, y, text)
	}
	hi.Add(ref, y, x, x+6+runeLen(text))
	hi.Add(ref, y+1, x+1, x+4)
}

// blockSpan is the transitive message row extent of one block or section.
func seqBlockRows(lay *layout.SequenceLayout, b *model.Block) (minY, maxY int, ok bool) {
	minY, maxY = 1<<30, -1
	var walkSection func(s *model.Section)
	var walkBlock func(b *model.Block)
	walkSection = func(s *model.Section) {
		for _, mid := range s.Messages {
			if y, found := lay.MessageY[mid]; found {
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
		for _, child := range s.Children {
			walkBlock(child)
		}
	}
	walkBlock = func(b *model.Block) {
		for _, s := range b.Sections {
			walkSection(s)
		}
	}
	walkBlock(b)
	return minY, maxY, maxY >= 0
}

func seqSectionRows(lay *layout.SequenceLayout, s *model.Section) (minY, maxY int, ok bool) {
	wrapper := &model.Block{Sections: []*model.Section{s}}
	return seqBlockRows(lay, wrapper)
}

// drawSeqBlocks renders block frames on gap rows: top border above the first
// message, bottom border below the last, section separators at each
// section's first gap row. Nested blocks inset by 2*depth on both sides.
// Header labels are overlaid after line drawing to preserve junctions.
func drawSeqBlocks(c *Canvas, hi HighlightIndex, d *model.Diagram, ast *model.SeqAST, lay *layout.SequenceLayout, width int) {
	ast.WalkBlocks(func(b *model.Block, depth int) {
		minY, maxY, ok := seqBlockRows(lay, b)
		if !ok {
			return
		}
		x0 := 2 * depth
		x1 := width - 1 - 2*depth
		y0 := minY - 1
		y1 := maxY + 1
		c.DrawBox(x0, y0, x1, y1)

		blockRef := d.Ref(model.CategorySeqBlock, b.ID).String()
		hi.Add(blockRef, y0, x0, x1)
		hi.Add(blockRef, y1, x0, x1)
		for y := y0 + 1; y < y1; y++ {
			hi.AddCell(blockRef, x0, y)
			hi.AddCell(blockRef, x1, y)
		}

		for si, s := range b.Sections {
			secRef := d.Ref(model.CategorySeqSection, s.ID).String()
			header := string(b.Kind)
			sepY := y0
			if si > 0 {
				sMin, _, sOK := seqSectionRows(lay, s)
				if !sOK {
					continue
				}
				sepY = sMin - 1
				c.DrawHLine(x0+1, x1-1, sepY)
				c.MergeEdges(x0, sepY, edgeRight)
				c.MergeEdges(x1, sepY, edgeLeft)
				header = "else"
				if s.Kind == model.SectionAnd {
					header = "and"
				}
			} else if b.Header != "" {
				header = string(b.Kind) + " " + b.Header
			}
			if si > 0 && s.Header != "" {
				header = header + " " + s.Header
			}
			label := clipLabel(header, x1-x0-3)
			c.WriteString(x0+2, sepY, label)
			hi.Add(secRef, sepY, x0, x1)
		}
	})
}
