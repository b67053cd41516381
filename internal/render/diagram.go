package render

import (
	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/pkg/schema"
)

// Diagram renders any diagram kind, dispatching on the AST variant.
func Diagram(d *model.Diagram, opts Options) (*Rendered, error) {
	switch d.Kind {
	case model.KindSequence:
		return Sequence(d, d.Seq, opts)
	case model.KindFlowchart:
		return Flowchart(d, d.Flow, opts)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeKindMismatch, "unknown diagram kind %q", d.Kind)
	}
}
