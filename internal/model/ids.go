package model

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/nereid-dev/nereid/pkg/schema"
)

// Typed identifiers. All are opaque non-empty strings constrained to
// printable characters with no '/' and no newline, because they appear as
// path segments inside canonical ObjectRef strings.
type (
	SessionID     string
	DiagramID     string
	WalkthroughID string
	WnID          string
	XRefID        string
	ObjectID      string
)

// ValidateID checks that s is usable as an identifier path segment.
func ValidateID(s string) error {
	if s == "" {
		return schema.NewError(schema.ErrCodeInvalidID, "id must not be empty")
	}
	if strings.ContainsAny(s, "/\n\r") {
		return schema.NewErrorf(schema.ErrCodeInvalidID, "id %q must not contain '/' or newlines", s)
	}
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return schema.NewErrorf(schema.ErrCodeInvalidID, "id %q contains non-printable character", s)
		}
	}
	return nil
}

// NewSessionID mints a fresh UUID-backed session id.
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// NewDiagramID mints a fresh UUID-backed diagram id.
func NewDiagramID() DiagramID {
	return DiagramID(uuid.New().String())
}

// NewWalkthroughID mints a fresh UUID-backed walkthrough id.
func NewWalkthroughID() WalkthroughID {
	return WalkthroughID(uuid.New().String())
}

// NewXRefID mints a fresh UUID-backed xref id.
func NewXRefID() XRefID {
	return XRefID(uuid.New().String())
}

// Object id prefixes, one per object kind. Minted ids look like "p:3".
const (
	PrefixParticipant = "p"
	PrefixMessage     = "m"
	PrefixBlock       = "b"
	PrefixSection     = "s"
	PrefixNode        = "n"
	PrefixEdge        = "e"
	PrefixWnNode      = "w"
)

// IDAllocator mints monotonically increasing object ids per kind prefix.
// Values are never reused within a diagram lifetime, even after removal.
type IDAllocator struct {
	next map[string]uint64
}

// NewIDAllocator creates an empty allocator.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: make(map[string]uint64)}
}

// Mint returns the next id for the given prefix, e.g. "m:7".
func (a *IDAllocator) Mint(prefix string) ObjectID {
	a.next[prefix]++
	return ObjectID(fmt.Sprintf("%s:%d", prefix, a.next[prefix]))
}

// Observe raises the allocator floor so future mints never collide with id.
// Non-numeric or foreign-prefix ids are ignored.
func (a *IDAllocator) Observe(id ObjectID) {
	prefix, rest, ok := strings.Cut(string(id), ":")
	if !ok {
		return
	}
	n, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return
	}
	if n > a.next[prefix] {
		a.next[prefix] = n
	}
}
