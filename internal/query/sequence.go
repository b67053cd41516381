// Package query implements the read-side primitives: sequence filters and
// traces, flowchart graph analysis, and routes over the derived session
// meta-graph.
package query

import (
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/pkg/schema"
)

// MessageFilter narrows a message listing. Where is an optional expr
// expression evaluated per message against {from, to, kind, text}.
type MessageFilter struct {
	From  model.ObjectID
	To    model.ObjectID
	Kind  model.MessageKind
	Where string
}

// SearchMode selects needle matching for Search.
type SearchMode string

const (
	SearchSubstring SearchMode = "substring"
	SearchRegex     SearchMode = "regex"
)

// TraceDirection selects the slice of the timeline around a message.
type TraceDirection string

const (
	TraceBefore TraceDirection = "before"
	TraceAfter  TraceDirection = "after"
	TraceBoth   TraceDirection = "both"
)

// whereCache holds compiled expr programs, shared across queries.
var whereCache = struct {
	mu    sync.RWMutex
	progs map[string]*vm.Program
}{progs: make(map[string]*vm.Program)}

func compileWhere(expression string) (*vm.Program, error) {
	whereCache.mu.RLock()
	prg, ok := whereCache.progs[expression]
	whereCache.mu.RUnlock()
	if ok {
		return prg, nil
	}
	prg, err := expr.Compile(expression, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidParams, "invalid where expression %q: %s", expression, err.Error()).WithCause(err)
	}
	whereCache.mu.Lock()
	whereCache.progs[expression] = prg
	whereCache.mu.Unlock()
	return prg, nil
}

func requireSequence(d *model.Diagram) (*model.SeqAST, error) {
	if d.Kind != model.KindSequence {
		return nil, schema.NewErrorf(schema.ErrCodeKindMismatch, "diagram %s is not a sequence diagram", d.ID)
	}
	return d.Seq, nil
}

// Messages returns messages matching the filter in canonical order.
func Messages(d *model.Diagram, f MessageFilter) ([]*model.Message, error) {
	ast, err := requireSequence(d)
	if err != nil {
		return nil, err
	}
	var prg *vm.Program
	if f.Where != "" {
		if prg, err = compileWhere(f.Where); err != nil {
			return nil, err
		}
	}
	var out []*model.Message
	for _, m := range ast.SortedMessages() {
		if f.From != "" && m.From != f.From {
			continue
		}
		if f.To != "" && m.To != f.To {
			continue
		}
		if f.Kind != "" && m.Kind != f.Kind {
			continue
		}
		if prg != nil {
			env := map[string]any{
				"from": identOf(ast, m.From),
				"to":   identOf(ast, m.To),
				"kind": string(m.Kind),
				"text": m.Text,
			}
			res, runErr := vm.Run(prg, env)
			if runErr != nil {
				return nil, schema.NewErrorf(schema.ErrCodeInvalidParams, "where expression failed: %s", runErr.Error()).WithCause(runErr)
			}
			keep, _ := res.(bool)
			if !keep {
				continue
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func identOf(ast *model.SeqAST, id model.ObjectID) string {
	if p := ast.Participant(id); p != nil {
		return p.MermaidIdent
	}
	return string(id)
}

// Search finds messages whose text matches the needle. Both modes are
// case-insensitive by default; pass caseSensitive to override. A regex
// compile failure is INVALID_PARAMS.
func Search(d *model.Diagram, needle string, mode SearchMode, caseSensitive bool) ([]*model.Message, error) {
	ast, err := requireSequence(d)
	if err != nil {
		return nil, err
	}
	var match func(string) bool
	switch mode {
	case SearchRegex:
		pattern := needle
		if !caseSensitive {
			pattern = "(?i)" + pattern
		}
		re, compErr := regexp.Compile(pattern)
		if compErr != nil {
			return nil, schema.NewErrorf(schema.ErrCodeInvalidParams, "invalid regex %q: %s", needle, compErr.Error()).WithCause(compErr)
		}
		match = re.MatchString
	case SearchSubstring, "":
		if caseSensitive {
			match = func(s string) bool { return strings.Contains(s, needle) }
		} else {
			lowered := strings.ToLower(needle)
			match = func(s string) bool { return strings.Contains(strings.ToLower(s), lowered) }
		}
	default:
		return nil, schema.NewErrorf(schema.ErrCodeInvalidParams, "unknown search mode %q", mode)
	}

	var out []*model.Message
	for _, m := range ast.SortedMessages() {
		if match(m.Text) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Trace returns the timeline slice around a message. With no anchor it
// returns the first (or last, for before) messages up to limit.
func Trace(d *model.Diagram, fromMessageID model.ObjectID, direction TraceDirection, limit int) ([]*model.Message, error) {
	ast, err := requireSequence(d)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	sorted := ast.SortedMessages()
	anchor := -1
	if fromMessageID != "" {
		for i, m := range sorted {
			if m.ID == fromMessageID {
				anchor = i
				break
			}
		}
		if anchor < 0 {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound, "unknown message %s", fromMessageID)
		}
	}

	switch direction {
	case TraceBefore:
		end := len(sorted)
		if anchor >= 0 {
			end = anchor
		}
		start := end - limit
		if start < 0 {
			start = 0
		}
		return sorted[start:end], nil
	case TraceAfter:
		start := 0
		if anchor >= 0 {
			start = anchor + 1
		}
		end := start + limit
		if end > len(sorted) {
			end = len(sorted)
		}
		return sorted[start:end], nil
	case TraceBoth, "":
		if anchor < 0 {
			end := limit
			if end > len(sorted) {
				end = len(sorted)
			}
			return sorted[:end], nil
		}
		start := anchor - limit
		if start < 0 {
			start = 0
		}
		end := anchor + limit + 1
		if end > len(sorted) {
			end = len(sorted)
		}
		return sorted[start:end], nil
	default:
		return nil, schema.NewErrorf(schema.ErrCodeInvalidParams, "unknown trace direction %q", direction)
	}
}
