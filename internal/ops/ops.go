// Package ops implements the structured mutation engine: typed operations,
// base-revision conflict gating, delta computation, and bounded per-object
// delta history.
package ops

import (
	"github.com/nereid-dev/nereid/internal/model"
)

// Diagram op types.
const (
	OpAddParticipant     = "add_participant"
	OpUpdateParticipant  = "update_participant"
	OpRemoveParticipant  = "remove_participant"
	OpSetParticipantNote = "set_participant_note"
	OpAddMessage         = "add_message"
	OpUpdateMessage      = "update_message"
	OpRemoveMessage      = "remove_message"
	OpAddBlock           = "add_block"
	OpUpdateBlock        = "update_block"
	OpRemoveBlock        = "remove_block"

	OpAddNode             = "add_node"
	OpUpdateNode          = "update_node"
	OpRemoveNode          = "remove_node"
	OpRenameNodeMermaidID = "rename_node_mermaid_id"
	OpSetNodeNote         = "set_node_note"
	OpAddEdge             = "add_edge"
	OpUpdateEdge          = "update_edge"
	OpRemoveEdge          = "remove_edge"
)

// SectionSpec is the payload shape for sections inside an add_block op.
type SectionSpec struct {
	ID       model.ObjectID   `json:"id,omitempty"`
	Kind     string           `json:"kind,omitempty"`
	Header   string           `json:"header,omitempty"`
	Messages []model.ObjectID `json:"message_ids,omitempty"`
}

// Op is one typed mutation. Type selects the operation; the remaining fields
// carry the minimum payload that op needs. Pointer fields distinguish "leave
// unchanged" from "set to empty" in update ops.
type Op struct {
	Type string         `json:"type"`
	ID   model.ObjectID `json:"id,omitempty"`

	// Participant / node identity.
	Ident    string  `json:"ident,omitempty"`
	NewIdent string  `json:"new_ident,omitempty"`
	Label    *string `json:"label,omitempty"`
	Role     *string `json:"role,omitempty"`
	Note     *string `json:"note,omitempty"`

	// Message / edge endpoints and content.
	From     model.ObjectID `json:"from,omitempty"`
	To       model.ObjectID `json:"to,omitempty"`
	Kind     string         `json:"kind,omitempty"`
	Text     *string        `json:"text,omitempty"`
	OrderKey model.OrderKey `json:"order_key,omitempty"`
	Style    *string        `json:"style,omitempty"`

	// Node shape.
	Shape string `json:"shape,omitempty"`

	// Block payload.
	Header   *string       `json:"header,omitempty"`
	Sections []SectionSpec `json:"sections,omitempty"`
}

// Walkthrough op types.
const (
	WtOpAddNode    = "add_node"
	WtOpUpdateNode = "update_node"
	WtOpRemoveNode = "remove_node"
	WtOpAddEdge    = "add_edge"
	WtOpRemoveEdge = "remove_edge"
	WtOpSetTitle   = "set_title"
)

// WtOp is one typed walkthrough mutation.
type WtOp struct {
	Type   string     `json:"type"`
	ID     model.WnID `json:"id,omitempty"`
	Title  *string    `json:"title,omitempty"`
	BodyMD *string    `json:"body_md,omitempty"`
	Refs   []string   `json:"refs,omitempty"`
	Tags   []string   `json:"tags,omitempty"`
	Status *string    `json:"status,omitempty"`
	From   model.WnID `json:"from,omitempty"`
	To     model.WnID `json:"to,omitempty"`
	Kind   string     `json:"kind,omitempty"`
	Label  string     `json:"label,omitempty"`
}
