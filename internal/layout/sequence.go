// Package layout computes deterministic coordinate assignments for diagrams:
// sequence column/row placement, flowchart layered positions, and orthogonal
// edge routes on a street grid. Layout never modifies the AST.
package layout

import (
	"github.com/nereid-dev/nereid/internal/model"
)

// Default sequence layout tuning.
const (
	DefaultColumnWidth = 16
	DefaultRowSpacing  = 2
)

// SequenceOptions tunes sequence placement.
type SequenceOptions struct {
	ColumnWidth int
	RowSpacing  int
	ShowNotes   bool
}

func (o SequenceOptions) withDefaults() SequenceOptions {
	if o.ColumnWidth <= 0 {
		o.ColumnWidth = DefaultColumnWidth
	}
	if o.RowSpacing <= 0 {
		o.RowSpacing = DefaultRowSpacing
	}
	return o
}

// SequenceLayout is the coordinate-only result of sequence placement.
// ParticipantX maps each participant to its lifeline column (cell x of the
// column center); MessageY maps each message to its arrow row.
type SequenceLayout struct {
	Options      SequenceOptions
	ParticipantX map[model.ObjectID]int
	MessageY     map[model.ObjectID]int
	HeaderHeight int
	Width        int
	Height       int
}

// Sequence assigns participants to columns in canonical object-id order and
// messages to rows in canonical (order_key, id) order. Row spacing keeps odd
// gap rows free for block frames; self-messages reserve one extra row.
func Sequence(ast *model.SeqAST, opts SequenceOptions) *SequenceLayout {
	opts = opts.withDefaults()
	l := &SequenceLayout{
		Options:      opts,
		ParticipantX: make(map[model.ObjectID]int, len(ast.Participants)),
		MessageY:     make(map[model.ObjectID]int, len(ast.Messages)),
		HeaderHeight: 3,
	}
	if opts.ShowNotes {
		l.HeaderHeight = 4
	}

	for i, p := range ast.SortedParticipants() {
		l.ParticipantX[p.ID] = i*opts.ColumnWidth + opts.ColumnWidth/2
	}
	l.Width = len(ast.Participants) * opts.ColumnWidth

	y := l.HeaderHeight + 1
	for _, m := range ast.SortedMessages() {
		l.MessageY[m.ID] = y
		y += opts.RowSpacing
		if m.Kind.IsSelf() || m.From == m.To {
			y++
		}
	}
	l.Height = y
	return l
}
