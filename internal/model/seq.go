package model

import (
	"sort"
	"strings"

	"github.com/nereid-dev/nereid/pkg/schema"
)

// MaxBlockNestDepth bounds block nesting in sequence diagrams.
const MaxBlockNestDepth = 8

// MessageKind classifies a sequence message arrow.
type MessageKind string

const (
	MessageSync      MessageKind = "sync"
	MessageAsync     MessageKind = "async"
	MessageReturn    MessageKind = "return"
	MessageSelfSync  MessageKind = "self_sync"
	MessageSelfAsync MessageKind = "self_async"
)

// IsSelf reports whether the kind is a self-message.
func (k MessageKind) IsSelf() bool {
	return k == MessageSelfSync || k == MessageSelfAsync
}

// BlockKind classifies a sequence block frame.
type BlockKind string

const (
	BlockAlt  BlockKind = "alt"
	BlockOpt  BlockKind = "opt"
	BlockLoop BlockKind = "loop"
	BlockPar  BlockKind = "par"
)

// SectionKind classifies a section within a block.
type SectionKind string

const (
	SectionMain SectionKind = "main"
	SectionElse SectionKind = "else"
	SectionAnd  SectionKind = "and"
)

// Participant is one lifeline in a sequence diagram.
type Participant struct {
	ID           ObjectID
	MermaidIdent string
	DisplayLabel string
	Role         string
	Note         string
}

// Label returns the display label, falling back to the mermaid identifier.
func (p *Participant) Label() string {
	if p.DisplayLabel != "" {
		return p.DisplayLabel
	}
	return p.MermaidIdent
}

// Message is one arrow between participants.
type Message struct {
	ID       ObjectID
	From     ObjectID
	To       ObjectID
	Kind     MessageKind
	Text     string
	OrderKey OrderKey
}

// Section is one compartment of a block (main body, else branch, par lane).
type Section struct {
	ID       ObjectID
	Kind     SectionKind
	Header   string
	Messages []ObjectID
	Children []*Block
}

// Block is an alt/opt/loop/par frame over a contiguous range of messages.
type Block struct {
	ID       ObjectID
	Kind     BlockKind
	Header   string
	Sections []*Section
}

// SeqAST is the sequence diagram model: ordered participants, messages in
// canonical (order_key, id) order, and a tree of blocks.
type SeqAST struct {
	Participants []*Participant
	Messages     []*Message
	Blocks       []*Block
}

// NewSeqAST returns an empty sequence AST.
func NewSeqAST() *SeqAST {
	return &SeqAST{}
}

// Participant returns the participant with the given id, or nil.
func (a *SeqAST) Participant(id ObjectID) *Participant {
	for _, p := range a.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// ParticipantByIdent returns the participant with the given mermaid
// identifier, or nil.
func (a *SeqAST) ParticipantByIdent(ident string) *Participant {
	for _, p := range a.Participants {
		if p.MermaidIdent == ident {
			return p
		}
	}
	return nil
}

// Message returns the message with the given id, or nil.
func (a *SeqAST) Message(id ObjectID) *Message {
	for _, m := range a.Messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// SortedMessages returns messages in canonical (order_key, message_id) order.
func (a *SeqAST) SortedMessages() []*Message {
	out := make([]*Message, len(a.Messages))
	copy(out, a.Messages)
	sort.SliceStable(out, func(i, j int) bool {
		if c := CompareOrderKeys(out[i].OrderKey, out[j].OrderKey); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SortedParticipants returns participants ordered by object id.
func (a *SeqAST) SortedParticipants() []*Participant {
	out := make([]*Participant, len(a.Participants))
	copy(out, a.Participants)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Block returns the block with the given id searching the whole tree, or nil.
func (a *SeqAST) Block(id ObjectID) *Block {
	var find func(blocks []*Block) *Block
	find = func(blocks []*Block) *Block {
		for _, b := range blocks {
			if b.ID == id {
				return b
			}
			for _, s := range b.Sections {
				if found := find(s.Children); found != nil {
					return found
				}
			}
		}
		return nil
	}
	return find(a.Blocks)
}

// Section returns the section with the given id searching the whole tree,
// or nil.
func (a *SeqAST) Section(id ObjectID) *Section {
	var find func(blocks []*Block) *Section
	find = func(blocks []*Block) *Section {
		for _, b := range blocks {
			for _, s := range b.Sections {
				if s.ID == id {
					return s
				}
				if found := find(s.Children); found != nil {
					return found
				}
			}
		}
		return nil
	}
	return find(a.Blocks)
}

// WalkBlocks visits every block in the tree, depth-first, with its nesting
// depth (top-level blocks are depth 0).
func (a *SeqAST) WalkBlocks(visit func(b *Block, depth int)) {
	var walk func(blocks []*Block, depth int)
	walk = func(blocks []*Block, depth int) {
		for _, b := range blocks {
			visit(b, depth)
			for _, s := range b.Sections {
				walk(s.Children, depth+1)
			}
		}
	}
	walk(a.Blocks, 0)
}

// Clone deep-copies the AST.
func (a *SeqAST) Clone() *SeqAST {
	out := &SeqAST{
		Participants: make([]*Participant, len(a.Participants)),
		Messages:     make([]*Message, len(a.Messages)),
		Blocks:       make([]*Block, len(a.Blocks)),
	}
	for i, p := range a.Participants {
		cp := *p
		out.Participants[i] = &cp
	}
	for i, m := range a.Messages {
		cm := *m
		out.Messages[i] = &cm
	}
	for i, b := range a.Blocks {
		out.Blocks[i] = cloneBlock(b)
	}
	return out
}

func cloneBlock(b *Block) *Block {
	cb := &Block{ID: b.ID, Kind: b.Kind, Header: b.Header, Sections: make([]*Section, len(b.Sections))}
	for i, s := range b.Sections {
		cs := &Section{
			ID:       s.ID,
			Kind:     s.Kind,
			Header:   s.Header,
			Messages: append([]ObjectID(nil), s.Messages...),
			Children: make([]*Block, len(s.Children)),
		}
		for j, child := range s.Children {
			cs.Children[j] = cloneBlock(child)
		}
		cb.Sections[i] = cs
	}
	return cb
}

// ValidateText rejects multi-line message text and labels.
func ValidateText(text string) error {
	if strings.ContainsAny(text, "\n\r") {
		return schema.NewError(schema.ErrCodeInvalidText, "text must be single-line")
	}
	return nil
}

// Validate checks the structural invariants: endpoints resolve, section
// message ids resolve, every section carries at least one message directly
// or transitively, and nesting stays within MaxBlockNestDepth.
func (a *SeqAST) Validate() error {
	for _, m := range a.Messages {
		if a.Participant(m.From) == nil {
			return schema.NewErrorf(schema.ErrCodeInvalidEndpoint, "message %s references unknown participant %s", m.ID, m.From)
		}
		if a.Participant(m.To) == nil {
			return schema.NewErrorf(schema.ErrCodeInvalidEndpoint, "message %s references unknown participant %s", m.ID, m.To)
		}
		if err := ValidateText(m.Text); err != nil {
			return err
		}
	}
	var check func(b *Block, depth int) error
	check = func(b *Block, depth int) error {
		if depth >= MaxBlockNestDepth {
			return schema.NewErrorf(schema.ErrCodeInvalidParams, "block %s exceeds max nesting depth %d", b.ID, MaxBlockNestDepth)
		}
		if len(b.Sections) == 0 {
			return schema.NewErrorf(schema.ErrCodeInvalidParams, "block %s has no sections", b.ID)
		}
		for _, s := range b.Sections {
			for _, mid := range s.Messages {
				if a.Message(mid) == nil {
					return schema.NewErrorf(schema.ErrCodeInvalidEndpoint, "section %s references unknown message %s", s.ID, mid)
				}
			}
			if sectionMessageCount(s) == 0 {
				return schema.NewErrorf(schema.ErrCodeInvalidParams, "section %s is empty", s.ID)
			}
			for _, child := range s.Children {
				if err := check(child, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, b := range a.Blocks {
		if err := check(b, 0); err != nil {
			return err
		}
	}
	return nil
}

func sectionMessageCount(s *Section) int {
	n := len(s.Messages)
	for _, child := range s.Children {
		for _, cs := range child.Sections {
			n += sectionMessageCount(cs)
		}
	}
	return n
}
