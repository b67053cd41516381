package render

import (
	"sort"
	"strings"
)

// LineSpan is one highlighted run of cells on a rendered line.
type LineSpan struct {
	Y  int `json:"y"`
	X0 int `json:"x0"`
	X1 int `json:"x1"`
}

// HighlightIndex maps canonical object reference strings to the cell spans
// they occupy in the rendered text.
type HighlightIndex map[string][]LineSpan

// Add records a span; empty or inverted spans are dropped.
func (h HighlightIndex) Add(ref string, y, x0, x1 int) {
	if x1 < x0 || y < 0 {
		return
	}
	h[ref] = append(h[ref], LineSpan{Y: y, X0: x0, X1: x1})
}

// AddCell records a single-cell span.
func (h HighlightIndex) AddCell(ref string, x, y int) {
	h.Add(ref, y, x, x)
}

// clampToText clips every span to the trimmed rendered text, dropping spans
// that fall entirely outside. Runs of a ref's spans are normalized: sorted
// and de-duplicated so output is deterministic.
func (h HighlightIndex) clampToText(text string) {
	var lines []string
	if text != "" {
		lines = strings.Split(text, "\n")
	}
	for ref, spans := range h {
		kept := spans[:0]
		for _, s := range spans {
			if s.Y < 0 || s.Y >= len(lines) {
				continue
			}
			width := len([]rune(lines[s.Y]))
			if s.X0 >= width {
				continue
			}
			if s.X1 >= width {
				s.X1 = width - 1
			}
			if s.X0 < 0 {
				s.X0 = 0
			}
			if s.X1 < s.X0 {
				continue
			}
			kept = append(kept, s)
		}
		if len(kept) == 0 {
			delete(h, ref)
			continue
		}
		sort.Slice(kept, func(i, j int) bool {
			if kept[i].Y != kept[j].Y {
				return kept[i].Y < kept[j].Y
			}
			if kept[i].X0 != kept[j].X0 {
				return kept[i].X0 < kept[j].X0
			}
			return kept[i].X1 < kept[j].X1
		})
		dedup := kept[:0]
		for i, s := range kept {
			if i > 0 && s == kept[i-1] {
				continue
			}
			dedup = append(dedup, s)
		}
		h[ref] = dedup
	}
}
