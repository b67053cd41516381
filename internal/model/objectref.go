package model

import (
	"strings"

	"github.com/nereid-dev/nereid/pkg/schema"
)

// Object categories addressable inside a diagram.
const (
	CategorySeqParticipant = "seq/participant"
	CategorySeqMessage     = "seq/message"
	CategorySeqBlock       = "seq/block"
	CategorySeqSection     = "seq/section"
	CategoryFlowNode       = "flow/node"
	CategoryFlowEdge       = "flow/edge"
)

// ObjectRef is the canonical stable reference to an addressable AST object.
//
// Canonical format: d:<diagram_id>/<category...>/<object_id>. Categories with
// unknown segments remain representable so refs survive forward-compatible
// reads.
type ObjectRef struct {
	Diagram  DiagramID
	Category string
	Object   ObjectID
}

// NewObjectRef builds a reference from its parts.
func NewObjectRef(diagram DiagramID, category string, object ObjectID) ObjectRef {
	return ObjectRef{Diagram: diagram, Category: category, Object: object}
}

// String formats the reference canonically.
func (r ObjectRef) String() string {
	return "d:" + string(r.Diagram) + "/" + r.Category + "/" + string(r.Object)
}

// IsZero reports whether the reference is empty.
func (r ObjectRef) IsZero() bool {
	return r == ObjectRef{}
}

// ParseObjectRef parses a canonical reference string. Parsing is strict and
// round-trips with String.
func ParseObjectRef(input string) (ObjectRef, error) {
	rest, ok := strings.CutPrefix(input, "d:")
	if !ok {
		return ObjectRef{}, schema.NewErrorf(schema.ErrCodeInvalidParams, "object ref %q must start with 'd:'", input)
	}
	diagramStr, remainder, ok := strings.Cut(rest, "/")
	if !ok {
		return ObjectRef{}, schema.NewErrorf(schema.ErrCodeInvalidParams, "object ref %q is missing category path", input)
	}
	if diagramStr == "" {
		return ObjectRef{}, schema.NewErrorf(schema.ErrCodeInvalidParams, "object ref %q is missing diagram id", input)
	}
	if err := ValidateID(diagramStr); err != nil {
		return ObjectRef{}, schema.NewErrorf(schema.ErrCodeInvalidParams, "object ref %q has invalid diagram id", input).WithCause(err)
	}
	if remainder == "" {
		return ObjectRef{}, schema.NewErrorf(schema.ErrCodeInvalidParams, "object ref %q is missing category path", input)
	}
	idx := strings.LastIndex(remainder, "/")
	if idx < 0 {
		return ObjectRef{}, schema.NewErrorf(schema.ErrCodeInvalidParams, "object ref %q is missing object id", input)
	}
	category, objectStr := remainder[:idx], remainder[idx+1:]
	if category == "" {
		return ObjectRef{}, schema.NewErrorf(schema.ErrCodeInvalidParams, "object ref %q is missing category path", input)
	}
	for _, seg := range strings.Split(category, "/") {
		if seg == "" {
			return ObjectRef{}, schema.NewErrorf(schema.ErrCodeInvalidParams, "object ref %q has empty category segment", input)
		}
	}
	if objectStr == "" {
		return ObjectRef{}, schema.NewErrorf(schema.ErrCodeInvalidParams, "object ref %q is missing object id", input)
	}
	if err := ValidateID(objectStr); err != nil {
		return ObjectRef{}, schema.NewErrorf(schema.ErrCodeInvalidParams, "object ref %q has invalid object id", input).WithCause(err)
	}
	return ObjectRef{Diagram: DiagramID(diagramStr), Category: category, Object: ObjectID(objectStr)}, nil
}
