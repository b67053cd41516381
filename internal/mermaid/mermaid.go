// Package mermaid parses the supported Mermaid subset into diagram ASTs and
// exports ASTs back to canonical text that re-parses to an equivalent AST.
package mermaid

import (
	"strings"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/pkg/schema"
)

// Headers accepted by Detect.
const (
	sequenceHeader  = "sequenceDiagram"
	flowchartHeader = "flowchart"
)

// Parse failure kinds, carried on every parse error alongside line_no and
// the verbatim line. unknown_participant, unknown_node, and
// duplicate_participant stay reserved: the subset auto-declares message and
// edge endpoints, and re-declaring an identical participant is idempotent.
const (
	ParseKindUnsupportedLine      = "unsupported_line"
	ParseKindUnknownParticipant   = "unknown_participant"
	ParseKindUnknownNode          = "unknown_node"
	ParseKindBlockUnderflow       = "block_underflow"
	ParseKindBlockOverflow        = "block_overflow"
	ParseKindUnclosedBlock        = "unclosed_block"
	ParseKindEmptyBlock           = "empty_block"
	ParseKindElseOutsideAlt       = "else_outside_alt"
	ParseKindAndOutsidePar        = "and_outside_par"
	ParseKindDuplicateParticipant = "duplicate_participant"
	ParseKindDuplicateNodeID      = "duplicate_node_id"
	ParseKindAliasConflict        = "alias_conflict"
	ParseKindInvalidArrow         = "invalid_arrow"
	ParseKindInvalidIdent         = "invalid_identifier"
	ParseKindUnterminatedLabel    = "unterminated_label"
	ParseKindUnknownDirection     = "unknown_direction"
	ParseKindEmptyDiagram         = "empty_diagram"
)

// Detect returns the diagram kind declared by the first significant line.
func Detect(text string) (model.DiagramKind, error) {
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		if line == sequenceHeader {
			return model.KindSequence, nil
		}
		if fields := strings.Fields(line); fields[0] == flowchartHeader {
			return model.KindFlowchart, nil
		}
		if fields := strings.Fields(line); fields[0] == "graph" {
			return "", unsupportedErr(i+1, line, "legacy 'graph' header is not supported; use 'flowchart'")
		}
		return "", unsupportedErr(i+1, line, "expected 'sequenceDiagram' or 'flowchart' header")
	}
	return "", schema.NewError(schema.ErrCodeParse, "empty diagram text").WithKind(ParseKindEmptyDiagram)
}

// Parse detects the kind and parses with the given allocator, returning a new
// diagram-shaped AST pair. Exactly one of seq/flow is non-nil.
func Parse(text string, alloc *model.IDAllocator) (model.DiagramKind, *model.SeqAST, *model.FlowAST, error) {
	kind, err := Detect(text)
	if err != nil {
		return "", nil, nil, err
	}
	switch kind {
	case model.KindSequence:
		ast, err := ParseSequence(text, alloc)
		return kind, ast, nil, err
	default:
		ast, err := ParseFlowchart(text, alloc)
		return kind, nil, ast, err
	}
}

// Export renders the diagram's AST as canonical Mermaid text.
func Export(d *model.Diagram) (string, error) {
	switch d.Kind {
	case model.KindSequence:
		return ExportSequence(d.Seq)
	case model.KindFlowchart:
		return ExportFlowchart(d.Flow)
	default:
		return "", schema.NewErrorf(schema.ErrCodeKindMismatch, "unknown diagram kind %q", d.Kind)
	}
}

func parseErr(lineNo int, line, kind, format string, args ...any) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeParse, format, args...).
		WithKind(kind).
		WithDetails(map[string]any{"line_no": lineNo, "line": line})
}

func unsupportedErr(lineNo int, line, message string) *schema.Error {
	return schema.NewError(schema.ErrCodeUnsupported, message).
		WithKind(ParseKindUnsupportedLine).
		WithDetails(map[string]any{"line_no": lineNo, "line": line})
}

func exportErr(format string, args ...any) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeExport, format, args...)
}

// validateIdent checks a mermaid identifier: non-empty ASCII alphanumerics
// and underscores.
func validateIdent(ident string) error {
	if ident == "" {
		return schema.NewError(schema.ErrCodeParse, "identifier must not be empty")
	}
	for _, r := range ident {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return schema.NewErrorf(schema.ErrCodeParse, "identifier %q contains invalid character %q", ident, string(r))
		}
	}
	return nil
}

// fallbackIdent derives a mermaid identifier from a stable object id when the
// stored identifier is absent.
func fallbackIdent(id model.ObjectID) string {
	var b strings.Builder
	for _, r := range string(id) {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
