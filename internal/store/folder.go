package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nereid-dev/nereid/internal/mermaid"
	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/internal/render"
	"github.com/nereid-dev/nereid/pkg/schema"
)

const (
	diagramsDir     = "diagrams"
	walkthroughsDir = "walkthroughs"

	textExportSuffix   = ".text.txt"
	legacyExportSuffix = ".ascii.txt"
)

// SessionFolder persists one session under a root directory. All writes are
// atomic temp+rename; paths are validated session-relative and symlink
// escapes are refused.
type SessionFolder struct {
	root    string
	durable bool
	logger  *slog.Logger
}

// New creates a SessionFolder over root.
func New(root string, logger *slog.Logger) *SessionFolder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionFolder{root: root, logger: logger}
}

// WithDurability enables fsync of files and directories around renames.
func (f *SessionFolder) WithDurability(durable bool) *SessionFolder {
	f.durable = durable
	return f
}

// Root returns the session root directory.
func (f *SessionFolder) Root() string { return f.root }

// MetaPath returns the absolute path of the session manifest.
func (f *SessionFolder) MetaPath() string {
	return filepath.Join(f.root, SessionMetaFile)
}

// diagramStems assigns a unique filesystem stem to every diagram, in sorted
// diagram-id order so collisions resolve deterministically.
func diagramStems(s *model.Session) map[model.DiagramID]string {
	stems := make(map[model.DiagramID]string, len(s.Diagrams))
	used := make(map[string]bool)
	for _, id := range s.SortedDiagramIDs() {
		stem := fileStem(string(id))
		for n := 2; used[stem]; n++ {
			stem = fmt.Sprintf("%s-%d", fileStem(string(id)), n)
		}
		used[stem] = true
		stems[id] = stem
	}
	return stems
}

// Save writes the whole session: per diagram the canonical .mmd, the Unicode
// text export, and the sidecar; then walkthrough files; then the session
// manifest last. Walkthrough files not named by the session are
// garbage-collected.
func (f *SessionFolder) Save(s *model.Session) error {
	if err := os.MkdirAll(f.root, 0o755); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "cannot create session root %q", f.root).WithCause(err)
	}

	stems := diagramStems(s)
	meta := SessionMeta{
		SessionID:           string(s.ID),
		Diagrams:            []SessionMetaDiagram{},
		ActiveDiagramID:     string(s.ActiveDiagramID),
		ActiveWalkthroughID: string(s.ActiveWalkthroughID),
		XRefs:               []SessionXRef{},
	}

	for _, id := range s.SortedDiagramIDs() {
		d := s.Diagrams[id]
		stem := stems[id]
		mmdPath := diagramsDir + "/" + stem + ".mmd"
		metaPath := diagramsDir + "/" + stem + ".meta.json"

		mmd, err := mermaid.Export(d)
		if err != nil {
			return err
		}
		if err := writeFileAtomic(f.root, mmdPath, []byte(mmd), f.durable); err != nil {
			return err
		}

		rendered, err := render.Diagram(d, render.Options{})
		if err != nil {
			return err
		}
		text := rendered.Text
		if text != "" {
			text += "\n"
		}
		if err := writeFileAtomic(f.root, diagramsDir+"/"+stem+textExportSuffix, []byte(text), f.durable); err != nil {
			return err
		}

		sidecar := buildSidecar(d)
		sidecarBytes, err := canonicalJSON(sidecar)
		if err != nil {
			return err
		}
		if err := writeFileAtomic(f.root, metaPath, sidecarBytes, f.durable); err != nil {
			return err
		}

		meta.Diagrams = append(meta.Diagrams, SessionMetaDiagram{
			DiagramID: string(d.ID),
			Name:      d.Name,
			Kind:      string(d.Kind),
			MmdPath:   mmdPath,
			MetaPath:  metaPath,
			Rev:       d.Rev,
		})
	}

	wtIDs := []string{}
	for _, id := range s.SortedWalkthroughIDs() {
		w := s.Walkthroughs[id]
		if err := f.saveWalkthrough(w); err != nil {
			return err
		}
		wtIDs = append(wtIDs, string(id))
	}
	meta.WalkthroughIDs = &wtIDs

	for _, x := range s.XRefs {
		meta.XRefs = append(meta.XRefs, SessionXRef{
			XRefID: string(x.ID),
			From:   x.From.String(),
			To:     x.To.String(),
			Kind:   x.Kind,
			Label:  x.Label,
		})
	}

	metaBytes, err := canonicalJSON(meta)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(f.root, SessionMetaFile, metaBytes, f.durable); err != nil {
		return err
	}

	f.gcWalkthroughs(s)
	return nil
}

func (f *SessionFolder) saveWalkthrough(w *model.Walkthrough) error {
	doc := WalkthroughDoc{
		WalkthroughID: string(w.ID),
		Title:         w.Title,
		Rev:           w.Rev,
		Nodes:         []WtNodeDoc{},
		Edges:         []WtEdgeDoc{},
	}
	for _, n := range w.SortedNodes() {
		nd := WtNodeDoc{
			ID:     string(n.ID),
			Title:  n.Title,
			BodyMD: n.BodyMD,
			Tags:   n.Tags,
			Status: n.Status,
		}
		for _, r := range n.Refs {
			nd.Refs = append(nd.Refs, r.String())
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	for _, e := range w.Edges {
		doc.Edges = append(doc.Edges, WtEdgeDoc{From: string(e.From), To: string(e.To), Kind: e.Kind, Label: e.Label})
	}

	stem := fileStem(string(w.ID))
	raw, err := canonicalJSON(doc)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(f.root, walkthroughsDir+"/"+stem+".wt.json", raw, f.durable); err != nil {
		return err
	}

	rendered, err := render.Walkthrough(w)
	if err != nil {
		return err
	}
	text := rendered.Text
	if text != "" {
		text += "\n"
	}
	return writeFileAtomic(f.root, walkthroughsDir+"/"+stem+textExportSuffix, []byte(text), f.durable)
}

// gcWalkthroughs removes walkthrough files whose stem is no longer named by
// the session. Failures only log; the save itself already succeeded.
func (f *SessionFolder) gcWalkthroughs(s *model.Session) {
	keep := make(map[string]bool, len(s.Walkthroughs))
	for id := range s.Walkthroughs {
		keep[fileStem(string(id))] = true
	}
	entries, err := os.ReadDir(filepath.Join(f.root, walkthroughsDir))
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		stem := ""
		switch {
		case strings.HasSuffix(name, ".wt.json"):
			stem = strings.TrimSuffix(name, ".wt.json")
		case strings.HasSuffix(name, textExportSuffix):
			stem = strings.TrimSuffix(name, textExportSuffix)
		case strings.HasSuffix(name, legacyExportSuffix):
			stem = strings.TrimSuffix(name, legacyExportSuffix)
		default:
			continue
		}
		if keep[stem] {
			continue
		}
		if rmErr := os.Remove(filepath.Join(f.root, walkthroughsDir, name)); rmErr != nil {
			f.logger.Warn("walkthrough gc failed", "file", name, "error", rmErr)
		}
	}
}

// LoadOrInit loads the session, creating an empty one when the folder holds
// no manifest yet.
func (f *SessionFolder) LoadOrInit() (*model.Session, error) {
	if _, err := os.Stat(f.MetaPath()); os.IsNotExist(err) {
		s := model.NewSession(model.NewSessionID())
		if err := f.Save(s); err != nil {
			return nil, err
		}
		return s, nil
	}
	return f.Load()
}

// Load reads the manifest and reconstitutes the session: parse each .mmd,
// reconcile stable ids through the sidecar, restore revisions, xrefs, and
// walkthroughs.
func (f *SessionFolder) Load() (*model.Session, error) {
	raw, err := os.ReadFile(f.MetaPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, schema.NewErrorf(schema.ErrCodeMissingFile, "session manifest %s is missing", SessionMetaFile).WithCause(err)
		}
		return nil, schema.NewErrorf(schema.ErrCodeStore, "cannot read session manifest").WithCause(err)
	}
	var meta SessionMeta
	if err := decodeValidated("session-meta", SessionMetaFile, raw, &meta); err != nil {
		return nil, err
	}
	if err := model.ValidateID(meta.SessionID); err != nil {
		return nil, err
	}

	s := model.NewSession(model.SessionID(meta.SessionID))
	for _, dm := range meta.Diagrams {
		d, err := f.loadDiagram(dm)
		if err != nil {
			return nil, err
		}
		if err := s.AddDiagram(d); err != nil {
			return nil, err
		}
	}
	s.ActiveDiagramID = model.DiagramID(meta.ActiveDiagramID)
	s.ActiveWalkthroughID = model.WalkthroughID(meta.ActiveWalkthroughID)

	for _, xm := range meta.XRefs {
		from, err := model.ParseObjectRef(xm.From)
		if err != nil {
			return nil, err
		}
		to, err := model.ParseObjectRef(xm.To)
		if err != nil {
			return nil, err
		}
		if err := s.AddXRef(&model.XRef{
			ID:    model.XRefID(xm.XRefID),
			From:  from,
			To:    to,
			Kind:  xm.Kind,
			Label: xm.Label,
		}); err != nil {
			return nil, err
		}
	}

	if err := f.loadWalkthroughs(s, meta.WalkthroughIDs); err != nil {
		return nil, err
	}
	s.RecomputeXRefStatuses()
	return s, nil
}

func (f *SessionFolder) loadDiagram(dm SessionMetaDiagram) (*model.Diagram, error) {
	if err := ValidateRelPath(dm.MmdPath); err != nil {
		return nil, err
	}
	if err := ValidateRelPath(dm.MetaPath); err != nil {
		return nil, err
	}
	if err := model.ValidateID(dm.DiagramID); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(dm.MmdPath)))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeMissingFile, "diagram file %s is missing", dm.MmdPath).WithCause(err)
	}

	var d *model.Diagram
	switch model.DiagramKind(dm.Kind) {
	case model.KindSequence:
		d = model.NewSequenceDiagram(model.DiagramID(dm.DiagramID), dm.Name)
		ast, perr := mermaid.ParseSequence(string(raw), d.Alloc)
		if perr != nil {
			return nil, schema.NewErrorf(schema.ErrCodeParse, "parse of %s failed", dm.MmdPath).WithCause(perr)
		}
		d.Seq = ast
	case model.KindFlowchart:
		d = model.NewFlowchartDiagram(model.DiagramID(dm.DiagramID), dm.Name)
		ast, perr := mermaid.ParseFlowchart(string(raw), d.Alloc)
		if perr != nil {
			return nil, schema.NewErrorf(schema.ErrCodeParse, "parse of %s failed", dm.MmdPath).WithCause(perr)
		}
		d.Flow = ast
	default:
		return nil, schema.NewErrorf(schema.ErrCodeSchemaInvalid, "diagram %s has unknown kind %q", dm.DiagramID, dm.Kind)
	}

	sidecarPath := filepath.Join(f.root, filepath.FromSlash(dm.MetaPath))
	if sidecarRaw, serr := os.ReadFile(sidecarPath); serr == nil {
		var sidecar DiagramMeta
		if err := decodeValidated("diagram-meta", dm.MetaPath, sidecarRaw, &sidecar); err != nil {
			return nil, err
		}
		reconcile(d, &sidecar)
	}

	if err := d.RestoreRev(dm.Rev); err != nil {
		return nil, err
	}
	d.ObserveIDs()
	return d, nil
}

// reconcile replaces freshly parsed ids with the sidecar's stable ids, in
// the fixed order: participants/nodes by name map, then messages/edges by
// fingerprint first-fit, then non-interchange field restore.
func reconcile(d *model.Diagram, sidecar *DiagramMeta) {
	switch d.Kind {
	case model.KindSequence:
		reconcileSequence(d.Seq, sidecar)
	case model.KindFlowchart:
		reconcileFlow(d.Flow, sidecar)
	}
}

func reconcileSequence(ast *model.SeqAST, sidecar *DiagramMeta) {
	remap := make(map[model.ObjectID]model.ObjectID)
	for _, p := range ast.Participants {
		if stable, ok := sidecar.StableIDMap.ByName[p.MermaidIdent]; ok && stable != "" {
			remap[p.ID] = model.ObjectID(stable)
			p.ID = model.ObjectID(stable)
		}
	}
	for _, m := range ast.Messages {
		if id, ok := remap[m.From]; ok {
			m.From = id
		}
		if id, ok := remap[m.To]; ok {
			m.To = id
		}
	}

	idents := make(map[model.ObjectID]string, len(ast.Participants))
	for _, p := range ast.Participants {
		idents[p.ID] = p.MermaidIdent
	}

	// First-fit fingerprint multimap preserving duplicate counts. Unmatched
	// parsed messages keep their fresh ids; unmatched sidecar entries are
	// discarded.
	queues := make(map[string][]string)
	for _, mm := range sidecar.Messages {
		queues[mm.Fingerprint] = append(queues[mm.Fingerprint], mm.MessageID)
	}
	msgRemap := make(map[model.ObjectID]model.ObjectID)
	for _, m := range ast.SortedMessages() {
		fp := MessageFingerprint(idents[m.From], idents[m.To], string(m.Kind), m.Text)
		if q := queues[fp]; len(q) > 0 {
			stable := model.ObjectID(q[0])
			queues[fp] = q[1:]
			msgRemap[m.ID] = stable
			m.ID = stable
		}
	}
	var remapSections func(blocks []*model.Block)
	remapSections = func(blocks []*model.Block) {
		for _, b := range blocks {
			for _, sec := range b.Sections {
				for i, mid := range sec.Messages {
					if stable, ok := msgRemap[mid]; ok {
						sec.Messages[i] = stable
					}
				}
				remapSections(sec.Children)
			}
		}
	}
	remapSections(ast.Blocks)

	for idStr, extra := range sidecar.Participants {
		if p := ast.Participant(model.ObjectID(idStr)); p != nil {
			p.Note = extra.Note
		}
	}
}

func reconcileFlow(ast *model.FlowAST, sidecar *DiagramMeta) {
	remap := make(map[model.ObjectID]model.ObjectID)
	for _, n := range ast.Nodes {
		if stable, ok := sidecar.StableIDMap.ByMermaidID[n.MermaidID]; ok && stable != "" {
			remap[n.ID] = model.ObjectID(stable)
			n.ID = model.ObjectID(stable)
		}
	}
	for _, e := range ast.Edges {
		if id, ok := remap[e.From]; ok {
			e.From = id
		}
		if id, ok := remap[e.To]; ok {
			e.To = id
		}
	}

	mermaidIDs := make(map[model.ObjectID]string, len(ast.Nodes))
	for _, n := range ast.Nodes {
		mermaidIDs[n.ID] = n.MermaidID
	}

	type edgeMetaEntry struct {
		id    string
		style string
	}
	queues := make(map[string][]edgeMetaEntry)
	for _, em := range sidecar.Edges {
		queues[em.Fingerprint] = append(queues[em.Fingerprint], edgeMetaEntry{id: em.EdgeID, style: em.Style})
	}
	for _, e := range ast.SortedEdges() {
		fp := EdgeFingerprint(mermaidIDs[e.From], mermaidIDs[e.To], e.Label)
		if q := queues[fp]; len(q) > 0 {
			e.ID = model.ObjectID(q[0].id)
			e.Style = q[0].style
			queues[fp] = q[1:]
		}
	}

	for idStr, extra := range sidecar.Nodes {
		if n := ast.Node(model.ObjectID(idStr)); n != nil {
			n.Note = extra.Note
		}
	}
}

// buildSidecar derives the identity maps and non-interchange fields of a
// diagram for its sidecar.
func buildSidecar(d *model.Diagram) DiagramMeta {
	meta := DiagramMeta{}
	switch d.Kind {
	case model.KindSequence:
		meta.StableIDMap.ByName = map[string]string{}
		idents := make(map[model.ObjectID]string)
		for _, p := range d.Seq.Participants {
			meta.StableIDMap.ByName[p.MermaidIdent] = string(p.ID)
			idents[p.ID] = p.MermaidIdent
			if p.Note != "" {
				if meta.Participants == nil {
					meta.Participants = map[string]ObjectExtra{}
				}
				meta.Participants[string(p.ID)] = ObjectExtra{Note: p.Note}
			}
		}
		for _, m := range d.Seq.SortedMessages() {
			meta.Messages = append(meta.Messages, MessageMeta{
				Fingerprint: MessageFingerprint(idents[m.From], idents[m.To], string(m.Kind), m.Text),
				MessageID:   string(m.ID),
			})
		}
	case model.KindFlowchart:
		meta.StableIDMap.ByMermaidID = map[string]string{}
		mermaidIDs := make(map[model.ObjectID]string)
		for _, n := range d.Flow.Nodes {
			ident := n.MermaidID
			meta.StableIDMap.ByMermaidID[ident] = string(n.ID)
			mermaidIDs[n.ID] = ident
			if n.Note != "" {
				if meta.Nodes == nil {
					meta.Nodes = map[string]ObjectExtra{}
				}
				meta.Nodes[string(n.ID)] = ObjectExtra{Note: n.Note}
			}
		}
		for _, e := range d.Flow.SortedEdges() {
			meta.Edges = append(meta.Edges, EdgeMeta{
				Fingerprint: EdgeFingerprint(mermaidIDs[e.From], mermaidIDs[e.To], e.Label),
				EdgeID:      string(e.ID),
				Style:       e.Style,
			})
		}
	}
	return meta
}

// loadWalkthroughs restores walkthroughs from the authoritative id list, or
// scans the walkthroughs directory when a legacy manifest omits the list.
func (f *SessionFolder) loadWalkthroughs(s *model.Session, ids *[]string) error {
	if ids != nil {
		for _, id := range *ids {
			w, err := f.loadWalkthrough(fileStem(id))
			if err != nil {
				return err
			}
			s.Walkthroughs[w.ID] = w
		}
		return nil
	}

	entries, err := os.ReadDir(filepath.Join(f.root, walkthroughsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return schema.NewError(schema.ErrCodeStore, "cannot scan walkthroughs directory").WithCause(err)
	}
	var stems []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".wt.json") {
			stems = append(stems, strings.TrimSuffix(e.Name(), ".wt.json"))
		}
	}
	sort.Strings(stems)
	for _, stem := range stems {
		w, err := f.loadWalkthrough(stem)
		if err != nil {
			return err
		}
		s.Walkthroughs[w.ID] = w
	}
	return nil
}

func (f *SessionFolder) loadWalkthrough(stem string) (*model.Walkthrough, error) {
	file := walkthroughsDir + "/" + stem + ".wt.json"
	raw, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(file)))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeMissingFile, "walkthrough file %s is missing", file).WithCause(err)
	}
	var doc WalkthroughDoc
	if err := decodeValidated("walkthrough", file, raw, &doc); err != nil {
		return nil, err
	}

	w := model.NewWalkthrough(model.WalkthroughID(doc.WalkthroughID), doc.Title)
	if err := w.RestoreRev(doc.Rev); err != nil {
		return nil, err
	}
	for _, nd := range doc.Nodes {
		node := &model.WnNode{
			ID:     model.WnID(nd.ID),
			Title:  nd.Title,
			BodyMD: nd.BodyMD,
			Tags:   nd.Tags,
			Status: nd.Status,
		}
		for _, rs := range nd.Refs {
			ref, rerr := model.ParseObjectRef(rs)
			if rerr != nil {
				return nil, rerr
			}
			node.Refs = append(node.Refs, ref)
		}
		w.Nodes[node.ID] = node
	}
	for _, ed := range doc.Edges {
		w.Edges = append(w.Edges, model.WnEdge{
			From:  model.WnID(ed.From),
			To:    model.WnID(ed.To),
			Kind:  ed.Kind,
			Label: ed.Label,
		})
	}
	w.ObserveIDs()
	return w, nil
}
