package mermaid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/pkg/schema"
)

func parseSeq(t *testing.T, text string) *model.SeqAST {
	t.Helper()
	ast, err := ParseSequence(text, model.NewIDAllocator())
	require.NoError(t, err)
	return ast
}

func TestParseSequenceBasics(t *testing.T) {
	ast := parseSeq(t, `sequenceDiagram
  participant a
  participant b as Bob
  a->>b: ping
  b-->>a: pong
  a-)b: fire and forget
`)
	require.Len(t, ast.Participants, 2)
	assert.Equal(t, "Bob", ast.ParticipantByIdent("b").DisplayLabel)
	require.Len(t, ast.Messages, 3)
	assert.Equal(t, model.MessageSync, ast.Messages[0].Kind)
	assert.Equal(t, model.MessageReturn, ast.Messages[1].Kind)
	assert.Equal(t, model.MessageAsync, ast.Messages[2].Kind)
	assert.Equal(t, "ping", ast.Messages[0].Text)
	require.NoError(t, ast.Validate())
}

func TestParseSequenceAutoDeclaresParticipants(t *testing.T) {
	ast := parseSeq(t, "sequenceDiagram\n  a->>b: hi\n")
	assert.NotNil(t, ast.ParticipantByIdent("a"))
	assert.NotNil(t, ast.ParticipantByIdent("b"))
}

func TestParseSequenceSelfMessages(t *testing.T) {
	ast := parseSeq(t, "sequenceDiagram\n  a->>a: think\n  a-)a: later\n")
	assert.Equal(t, model.MessageSelfSync, ast.Messages[0].Kind)
	assert.Equal(t, model.MessageSelfAsync, ast.Messages[1].Kind)
}

func TestParseSequenceBlocks(t *testing.T) {
	ast := parseSeq(t, `sequenceDiagram
  participant a
  participant b
  alt happy path
    a->>b: try
    loop retries
      a->>b: again
    end
  else sad path
    b-->>a: fail
  end
`)
	require.Len(t, ast.Blocks, 1)
	blk := ast.Blocks[0]
	assert.Equal(t, model.BlockAlt, blk.Kind)
	assert.Equal(t, "happy path", blk.Header)
	require.Len(t, blk.Sections, 2)
	assert.Equal(t, model.SectionElse, blk.Sections[1].Kind)
	require.Len(t, blk.Sections[0].Children, 1)
	assert.Equal(t, model.BlockLoop, blk.Sections[0].Children[0].Kind)
	require.NoError(t, ast.Validate())
}

func TestParseSequenceBlockErrors(t *testing.T) {
	cases := []struct {
		name string
		text string
		kind string
	}{
		{"else outside alt", "sequenceDiagram\n  loop x\n    a->>b: m\n  else y\n  end\n", ParseKindElseOutsideAlt},
		{"and outside par", "sequenceDiagram\n  alt x\n    a->>b: m\n  and y\n  end\n", ParseKindAndOutsidePar},
		{"end without block", "sequenceDiagram\n  a->>b: m\n  end\n", ParseKindBlockUnderflow},
		{"empty section", "sequenceDiagram\n  alt x\n  end\n", ParseKindEmptyBlock},
		{"unclosed block", "sequenceDiagram\n  alt x\n    a->>b: m\n", ParseKindUnclosedBlock},
		{"alias conflict", "sequenceDiagram\n  participant a as X\n  participant a as Y\n", ParseKindAliasConflict},
		{"invalid arrow", "sequenceDiagram\n  a->b: m\n", ParseKindInvalidArrow},
		{"invalid ident", "sequenceDiagram\n  a!->>b: m\n", ParseKindInvalidIdent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSequence(tc.text, model.NewIDAllocator())
			require.Error(t, err)
			assert.Equal(t, tc.kind, schema.KindOf(err))
		})
	}
}

func TestParseSequenceDepthLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("sequenceDiagram\n")
	for i := 0; i <= model.MaxBlockNestDepth; i++ {
		b.WriteString("loop l\n")
	}
	b.WriteString("a->>b: m\n")
	for i := 0; i <= model.MaxBlockNestDepth; i++ {
		b.WriteString("end\n")
	}
	_, err := ParseSequence(b.String(), model.NewIDAllocator())
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeParse, schema.CodeOf(err))
	assert.Equal(t, ParseKindBlockOverflow, schema.KindOf(err))
}

func TestParseSequenceUnsupportedLineCarriesLine(t *testing.T) {
	_, err := ParseSequence("sequenceDiagram\n  activate a\n", model.NewIDAllocator())
	require.Error(t, err)
	var se *schema.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, schema.ErrCodeUnsupported, se.Code)
	assert.Equal(t, ParseKindUnsupportedLine, se.Kind)
	assert.Equal(t, 2, se.Details["line_no"])
	assert.Equal(t, "activate a", se.Details["line"])
}

func TestExportSequenceCanonicalRoundTrip(t *testing.T) {
	src := `sequenceDiagram
  participant a
  participant b as Bob
  a->>b: ping
  alt ok
    b-->>a: pong
  else nope
    b-->>a: error
  end
`
	ast := parseSeq(t, src)
	out, err := ExportSequence(ast)
	require.NoError(t, err)

	reparsed, err := ParseSequence(out, model.NewIDAllocator())
	require.NoError(t, err)
	assert.Equal(t, len(ast.Participants), len(reparsed.Participants))
	assert.Equal(t, len(ast.Messages), len(reparsed.Messages))
	require.Len(t, reparsed.Blocks, 1)
	assert.Equal(t, model.BlockAlt, reparsed.Blocks[0].Kind)
	require.Len(t, reparsed.Blocks[0].Sections, 2)
	assert.Equal(t, "nope", reparsed.Blocks[0].Sections[1].Header)

	// Canonical export is a fixed point.
	out2, err := ExportSequence(reparsed)
	require.NoError(t, err)
	assert.Equal(t, out, out2)
}

func TestExportSequenceRejectsDuplicateIdent(t *testing.T) {
	ast := model.NewSeqAST()
	ast.Participants = []*model.Participant{
		{ID: "p:1", MermaidIdent: "a"},
		{ID: "p:2", MermaidIdent: "a"},
	}
	_, err := ExportSequence(ast)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeExport, schema.CodeOf(err))
}

func TestDetect(t *testing.T) {
	kind, err := Detect("%% comment\nsequenceDiagram\n")
	require.NoError(t, err)
	assert.Equal(t, model.KindSequence, kind)

	kind, err = Detect("flowchart LR\n")
	require.NoError(t, err)
	assert.Equal(t, model.KindFlowchart, kind)

	_, err = Detect("graph TD\n")
	assert.Error(t, err)
	_, err = Detect("classDiagram\n")
	assert.Error(t, err)
}
