package mermaid

import (
	"fmt"
	"strings"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/pkg/schema"
)

// Arrow tokens of the supported sequence subset. Longest token first so
// "-->>" is never misread as "->>".
var seqArrows = []struct {
	token string
	kind  model.MessageKind
	self  model.MessageKind
}{
	{"-->>", model.MessageReturn, model.MessageReturn},
	{"->>", model.MessageSync, model.MessageSelfSync},
	{"-)", model.MessageAsync, model.MessageSelfAsync},
}

// ParseSequence parses sequence subset text. Participants get name-derived
// ids ("p:<ident>"); messages, blocks, and sections get fresh ids from alloc.
// Long-term id stability is carried by the diagram sidecar, not by parsing.
func ParseSequence(text string, alloc *model.IDAllocator) (*model.SeqAST, error) {
	ast := model.NewSeqAST()
	var stack []*model.Block
	headerSeen := false
	msgIndex := 0

	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		if !headerSeen {
			if line != sequenceHeader {
				return nil, unsupportedErr(lineNo, line, "expected 'sequenceDiagram' header")
			}
			headerSeen = true
			continue
		}

		keyword := strings.Fields(line)[0]
		switch keyword {
		case "participant":
			if err := parseParticipantLine(ast, line, lineNo); err != nil {
				return nil, err
			}

		case "alt", "opt", "loop", "par":
			if len(stack) >= model.MaxBlockNestDepth {
				return nil, parseErr(lineNo, line, ParseKindBlockOverflow, "block nesting exceeds max depth %d", model.MaxBlockNestDepth)
			}
			block := &model.Block{
				ID:     alloc.Mint(model.PrefixBlock),
				Kind:   model.BlockKind(keyword),
				Header: strings.TrimSpace(strings.TrimPrefix(line, keyword)),
				Sections: []*model.Section{{
					ID:   alloc.Mint(model.PrefixSection),
					Kind: model.SectionMain,
				}},
			}
			stack = append(stack, block)

		case "else", "and":
			if len(stack) == 0 {
				return nil, parseErr(lineNo, line, keywordOutsideKind(keyword), "%q outside of a block", keyword)
			}
			top := stack[len(stack)-1]
			if keyword == "else" && top.Kind != model.BlockAlt {
				return nil, parseErr(lineNo, line, ParseKindElseOutsideAlt, "'else' is only valid inside 'alt'")
			}
			if keyword == "and" && top.Kind != model.BlockPar {
				return nil, parseErr(lineNo, line, ParseKindAndOutsidePar, "'and' is only valid inside 'par'")
			}
			if sectionIsEmpty(currentSection(top)) {
				return nil, parseErr(lineNo, line, ParseKindEmptyBlock, "section %s is empty", currentSection(top).ID)
			}
			kind := model.SectionElse
			if keyword == "and" {
				kind = model.SectionAnd
			}
			top.Sections = append(top.Sections, &model.Section{
				ID:     alloc.Mint(model.PrefixSection),
				Kind:   kind,
				Header: strings.TrimSpace(strings.TrimPrefix(line, keyword)),
			})

		case "end":
			if line != "end" {
				return nil, unsupportedErr(lineNo, line, "unexpected content after 'end'")
			}
			if len(stack) == 0 {
				return nil, parseErr(lineNo, line, ParseKindBlockUnderflow, "'end' without an open block")
			}
			top := stack[len(stack)-1]
			if sectionIsEmpty(currentSection(top)) {
				return nil, parseErr(lineNo, line, ParseKindEmptyBlock, "section %s is empty", currentSection(top).ID)
			}
			stack = stack[:len(stack)-1]
			if len(stack) > 0 {
				parent := currentSection(stack[len(stack)-1])
				parent.Children = append(parent.Children, top)
			} else {
				ast.Blocks = append(ast.Blocks, top)
			}

		default:
			msgIndex++
			msg, err := parseMessageLine(ast, alloc, line, lineNo, msgIndex)
			if err != nil {
				return nil, err
			}
			if len(stack) > 0 {
				sec := currentSection(stack[len(stack)-1])
				sec.Messages = append(sec.Messages, msg.ID)
			}
		}
	}

	if !headerSeen {
		return nil, schema.NewError(schema.ErrCodeParse, "empty diagram text").WithKind(ParseKindEmptyDiagram)
	}
	if len(stack) > 0 {
		return nil, schema.NewErrorf(schema.ErrCodeParse, "block %s is not closed with 'end'", stack[len(stack)-1].ID).WithKind(ParseKindUnclosedBlock)
	}
	return ast, nil
}

func currentSection(b *model.Block) *model.Section {
	return b.Sections[len(b.Sections)-1]
}

func keywordOutsideKind(keyword string) string {
	if keyword == "and" {
		return ParseKindAndOutsidePar
	}
	return ParseKindElseOutsideAlt
}

// A closed child block was already checked non-empty, so any child implies
// transitive content.
func sectionIsEmpty(s *model.Section) bool {
	return len(s.Messages) == 0 && len(s.Children) == 0
}

func parseParticipantLine(ast *model.SeqAST, line string, lineNo int) error {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "participant"))
	ident, label := rest, ""
	if before, after, ok := strings.Cut(rest, " as "); ok {
		ident = strings.TrimSpace(before)
		label = strings.TrimSpace(after)
		if label == "" {
			return parseErr(lineNo, line, ParseKindInvalidIdent, "participant alias must not be empty")
		}
	}
	if err := validateIdent(ident); err != nil {
		return parseErr(lineNo, line, ParseKindInvalidIdent, "invalid participant identifier: %v", err)
	}
	if existing := ast.ParticipantByIdent(ident); existing != nil {
		if label != "" && existing.DisplayLabel != "" && existing.DisplayLabel != label {
			return parseErr(lineNo, line, ParseKindAliasConflict, "participant %q re-declared with conflicting alias %q", ident, label)
		}
		if label != "" {
			existing.DisplayLabel = label
		}
		return nil
	}
	ast.Participants = append(ast.Participants, &model.Participant{
		ID:           participantID(ident),
		MermaidIdent: ident,
		DisplayLabel: label,
	})
	return nil
}

func participantID(ident string) model.ObjectID {
	return model.ObjectID(model.PrefixParticipant + ":" + ident)
}

func parseMessageLine(ast *model.SeqAST, alloc *model.IDAllocator, line string, lineNo, index int) (*model.Message, error) {
	head, text, ok := strings.Cut(line, ":")
	if !ok {
		return nil, unsupportedErr(lineNo, line, "unsupported line; expected participant, message, block, or comment")
	}
	text = strings.TrimSpace(text)

	for _, arrow := range seqArrows {
		idx := strings.Index(head, arrow.token)
		if idx < 0 {
			continue
		}
		from := strings.TrimSpace(head[:idx])
		to := strings.TrimSpace(head[idx+len(arrow.token):])
		if err := validateIdent(from); err != nil {
			return nil, parseErr(lineNo, line, ParseKindInvalidIdent, "invalid sender identifier: %v", err)
		}
		if err := validateIdent(to); err != nil {
			return nil, parseErr(lineNo, line, ParseKindInvalidIdent, "invalid receiver identifier: %v", err)
		}
		fromP := ensureParticipant(ast, from)
		toP := ensureParticipant(ast, to)
		kind := arrow.kind
		if from == to {
			kind = arrow.self
		}
		msg := &model.Message{
			ID:       alloc.Mint(model.PrefixMessage),
			From:     fromP.ID,
			To:       toP.ID,
			Kind:     kind,
			Text:     text,
			OrderKey: model.OrderKeyFromIndex(index),
		}
		ast.Messages = append(ast.Messages, msg)
		return msg, nil
	}

	if strings.Contains(head, "-") {
		return nil, parseErr(lineNo, line, ParseKindInvalidArrow, "invalid arrow; supported arrows are '->>', '-)', '-->>'")
	}
	return nil, unsupportedErr(lineNo, line, "unsupported line; expected participant, message, block, or comment")
}

func ensureParticipant(ast *model.SeqAST, ident string) *model.Participant {
	if p := ast.ParticipantByIdent(ident); p != nil {
		return p
	}
	p := &model.Participant{ID: participantID(ident), MermaidIdent: ident}
	ast.Participants = append(ast.Participants, p)
	return p
}

// ExportSequence renders canonical sequence subset text. Participants are
// ordered by object id, messages by (order_key, message_id); block frames are
// emitted around their messages following each message's containment path.
func ExportSequence(ast *model.SeqAST) (string, error) {
	seen := make(map[string]model.ObjectID, len(ast.Participants))
	for _, p := range ast.Participants {
		if strings.ContainsAny(p.MermaidIdent, "\n\r") || strings.ContainsAny(p.DisplayLabel, "\n\r") {
			return "", exportErr("participant %s label contains newline", p.ID)
		}
		if prev, dup := seen[p.MermaidIdent]; dup {
			return "", exportErr("participants %s and %s share mermaid identifier %q", prev, p.ID, p.MermaidIdent)
		}
		seen[p.MermaidIdent] = p.ID
	}

	idents := make(map[model.ObjectID]string, len(ast.Participants))
	for _, p := range ast.Participants {
		idents[p.ID] = p.MermaidIdent
	}

	var b strings.Builder
	b.WriteString(sequenceHeader)
	b.WriteByte('\n')
	for _, p := range ast.SortedParticipants() {
		if p.DisplayLabel != "" {
			fmt.Fprintf(&b, "  participant %s as %s\n", p.MermaidIdent, p.DisplayLabel)
		} else {
			fmt.Fprintf(&b, "  participant %s\n", p.MermaidIdent)
		}
	}

	paths := messageFramePaths(ast)
	var open []framePath
	for _, m := range ast.SortedMessages() {
		if strings.ContainsAny(m.Text, "\n\r") {
			return "", exportErr("message %s text contains newline", m.ID)
		}
		want := paths[m.ID]
		open = emitFrameTransition(&b, open, want)

		arrow := arrowToken(m.Kind)
		indent := strings.Repeat("  ", 1+len(want))
		fmt.Fprintf(&b, "%s%s%s%s: %s\n", indent, idents[m.From], arrow, idents[m.To], m.Text)
	}
	emitFrameTransition(&b, open, nil)
	return b.String(), nil
}

func arrowToken(kind model.MessageKind) string {
	switch kind {
	case model.MessageAsync, model.MessageSelfAsync:
		return "-)"
	case model.MessageReturn:
		return "-->>"
	default:
		return "->>"
	}
}

// framePath is one containment step: a block and the index of the section
// holding the message (directly or through deeper frames).
type framePath struct {
	block   *model.Block
	section int
}

func messageFramePaths(ast *model.SeqAST) map[model.ObjectID][]framePath {
	paths := make(map[model.ObjectID][]framePath)
	var walk func(blocks []*model.Block, prefix []framePath)
	walk = func(blocks []*model.Block, prefix []framePath) {
		for _, blk := range blocks {
			for si, sec := range blk.Sections {
				p := append(append([]framePath(nil), prefix...), framePath{block: blk, section: si})
				for _, mid := range sec.Messages {
					paths[mid] = p
				}
				walk(sec.Children, p)
			}
		}
	}
	walk(ast.Blocks, nil)
	return paths
}

// emitFrameTransition closes and opens block frames so the emission stack
// matches want, and returns the new stack.
func emitFrameTransition(b *strings.Builder, open, want []framePath) []framePath {
	// Longest common prefix with identical block and section.
	common := 0
	for common < len(open) && common < len(want) &&
		open[common].block == want[common].block && open[common].section == want[common].section {
		common++
	}
	sectionAdvance := common < len(open) && common < len(want) &&
		open[common].block == want[common].block && want[common].section > open[common].section

	// Close everything below the divergence point.
	for i := len(open) - 1; i > common; i-- {
		writeFrameLine(b, i, "end", "")
	}
	if len(open) > common+1 {
		open = open[:common+1]
	}
	if sectionAdvance {
		writeSectionOpener(b, common, want[common].block.Sections[want[common].section])
		open[common].section = want[common].section
	} else if common < len(open) {
		writeFrameLine(b, common, "end", "")
		open = open[:common]
	}

	// Open the remaining frames.
	for i := len(open); i < len(want); i++ {
		blk := want[i].block
		writeFrameLine(b, i, string(blk.Kind), blk.Header)
		for si := 1; si <= want[i].section; si++ {
			writeSectionOpener(b, i, blk.Sections[si])
		}
		open = append(open, want[i])
	}
	return open
}

func writeSectionOpener(b *strings.Builder, depth int, sec *model.Section) {
	kw := "else"
	if sec.Kind == model.SectionAnd {
		kw = "and"
	}
	writeFrameLine(b, depth, kw, sec.Header)
}

func writeFrameLine(b *strings.Builder, depth int, keyword, header string) {
	b.WriteString(strings.Repeat("  ", 1+depth))
	b.WriteString(keyword)
	if header != "" {
		b.WriteByte(' ')
		b.WriteString(header)
	}
	b.WriteByte('\n')
}
