package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nereid-dev/nereid/internal/mermaid"
	"github.com/nereid-dev/nereid/internal/model"
)

func seqDiagramFromText(t *testing.T, text string) *model.Diagram {
	t.Helper()
	d := model.NewSequenceDiagram("seq", "test")
	ast, err := mermaid.ParseSequence(text, d.Alloc)
	require.NoError(t, err)
	d.Seq = ast
	return d
}

func checkSpans(t *testing.T, r *Rendered) {
	t.Helper()
	lines := strings.Split(r.Text, "\n")
	for ref, spans := range r.Highlights {
		require.NotEmpty(t, spans, ref)
		for _, s := range spans {
			require.GreaterOrEqual(t, s.Y, 0, ref)
			require.Less(t, s.Y, len(lines), ref)
			width := len([]rune(lines[s.Y]))
			assert.GreaterOrEqual(t, s.X0, 0, ref)
			assert.LessOrEqual(t, s.X0, s.X1, ref)
			assert.Less(t, s.X1, width, "%s span %+v exceeds line %q", ref, s, lines[s.Y])
		}
	}
}

func TestRenderSequencePingScenario(t *testing.T) {
	d := seqDiagramFromText(t, `sequenceDiagram
  participant a
  participant b
  a->>b: ping
`)
	r, err := Sequence(d, d.Seq, Options{})
	require.NoError(t, err)

	lines := strings.Split(r.Text, "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.True(t, strings.HasPrefix(strings.TrimLeft(lines[0], " "), "┌"), "first line starts a header box: %q", lines[0])

	var arrowLine string
	for _, l := range lines {
		if strings.Contains(l, "▶") || strings.Contains(l, "◀") {
			arrowLine = l
		}
	}
	require.NotEmpty(t, arrowLine, "a message row carries an arrowhead:\n%s", r.Text)
	assert.Contains(t, arrowLine, "─")
	assert.Contains(t, r.Text, "ping")
	checkSpans(t, r)
}

func TestRenderSequenceDeterministic(t *testing.T) {
	text := `sequenceDiagram
  participant a
  participant b
  a->>b: one
  b-->>a: two
`
	d1 := seqDiagramFromText(t, text)
	d2 := seqDiagramFromText(t, text)
	r1, err := Sequence(d1, d1.Seq, Options{})
	require.NoError(t, err)
	r2, err := Sequence(d2, d2.Seq, Options{})
	require.NoError(t, err)
	assert.Equal(t, r1.Text, r2.Text)
	assert.Equal(t, r1.Highlights, r2.Highlights)
}

func TestRenderSequenceReturnArrowDashed(t *testing.T) {
	d := seqDiagramFromText(t, `sequenceDiagram
  participant a
  participant b
  b-->>a: pong
`)
	r, err := Sequence(d, d.Seq, Options{})
	require.NoError(t, err)
	assert.Contains(t, r.Text, "┈", "return arrows render dashed")
	assert.Contains(t, r.Text, "◀")
}

func TestRenderSequenceSelfMessage(t *testing.T) {
	d := seqDiagramFromText(t, `sequenceDiagram
  participant a
  a->>a: think
`)
	r, err := Sequence(d, d.Seq, Options{})
	require.NoError(t, err)
	assert.Contains(t, r.Text, "think")
	assert.Contains(t, r.Text, "◀")
	checkSpans(t, r)
}

func TestRenderSequenceBlockFrames(t *testing.T) {
	d := seqDiagramFromText(t, `sequenceDiagram
  participant a
  participant b
  alt good
    a->>b: yes
  else bad
    a->>b: no
  end
`)
	r, err := Sequence(d, d.Seq, Options{})
	require.NoError(t, err)
	assert.Contains(t, r.Text, "alt good")
	assert.Contains(t, r.Text, "else bad")

	// Frame borders exist for the block and both sections in the index.
	blockRefs := 0
	for ref := range r.Highlights {
		if strings.Contains(ref, "/seq/block/") || strings.Contains(ref, "/seq/section/") {
			blockRefs++
		}
	}
	assert.Equal(t, 3, blockRefs)
	checkSpans(t, r)
}

func TestRenderSequenceEmptyDiagram(t *testing.T) {
	d := model.NewSequenceDiagram("seq", "empty")
	r, err := Sequence(d, d.Seq, Options{})
	require.NoError(t, err)
	assert.Equal(t, "", r.Text)
	assert.Empty(t, r.Highlights)
}

func TestRenderSequenceShowNotes(t *testing.T) {
	d := seqDiagramFromText(t, `sequenceDiagram
  participant a
  participant b
  a->>b: hi
`)
	d.Seq.Participants[0].Note = "the client"
	r, err := Sequence(d, d.Seq, Options{ShowNotes: true})
	require.NoError(t, err)
	assert.Contains(t, r.Text, "the client")
	checkSpans(t, r)
}
