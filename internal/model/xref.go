package model

// XRefStatus tracks endpoint resolvability of a cross-reference.
type XRefStatus string

const (
	XRefOk           XRefStatus = "ok"
	XRefDanglingFrom XRefStatus = "dangling_from"
	XRefDanglingTo   XRefStatus = "dangling_to"
	XRefDanglingBoth XRefStatus = "dangling_both"
)

// XRef links two addressable objects across (or within) diagrams. Endpoints
// are value-copied ObjectRefs, never ownership.
type XRef struct {
	ID     XRefID
	From   ObjectRef
	To     ObjectRef
	Kind   string
	Label  string
	Status XRefStatus
}

// ComputeXRefStatus derives the status from endpoint resolvability.
func ComputeXRefStatus(fromOk, toOk bool) XRefStatus {
	switch {
	case fromOk && toOk:
		return XRefOk
	case !fromOk && !toOk:
		return XRefDanglingBoth
	case !fromOk:
		return XRefDanglingFrom
	default:
		return XRefDanglingTo
	}
}
