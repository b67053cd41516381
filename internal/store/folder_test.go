package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/pkg/schema"
)

func testSession(t *testing.T) *model.Session {
	t.Helper()
	s := model.NewSession("sess-1")

	flow := model.NewFlowchartDiagram("deploy", "Deploy")
	flow.Flow.Nodes = []*model.FlowNode{
		{ID: "n:authorize", MermaidID: "authz", Label: "Authorize", Shape: model.ShapeRect, Note: "checks scopes"},
		{ID: "n:ship", MermaidID: "ship", Label: "Ship", Shape: model.ShapeRound},
	}
	flow.Flow.Edges = []*model.FlowEdge{
		{ID: "e:7", From: "n:authorize", To: "n:ship", Label: "ok", Style: "bold"},
	}
	require.NoError(t, flow.RestoreRev(4))
	require.NoError(t, s.AddDiagram(flow))

	seq := model.NewSequenceDiagram("login", "Login")
	seq.Seq.Participants = []*model.Participant{
		{ID: "p:cli", MermaidIdent: "cli", DisplayLabel: "Client", Note: "terminal"},
		{ID: "p:api", MermaidIdent: "api"},
	}
	seq.Seq.Messages = []*model.Message{
		{ID: "m:10", From: "p:cli", To: "p:api", Kind: model.MessageSync, Text: "login", OrderKey: "1"},
		{ID: "m:11", From: "p:api", To: "p:cli", Kind: model.MessageReturn, Text: "ok", OrderKey: "2"},
		{ID: "m:12", From: "p:cli", To: "p:api", Kind: model.MessageSync, Text: "login", OrderKey: "3"},
	}
	require.NoError(t, seq.RestoreRev(2))
	require.NoError(t, s.AddDiagram(seq))

	wt := model.NewWalkthrough("tour", "The tour")
	wt.Nodes["w:1"] = &model.WnNode{
		ID: "w:1", Title: "Start",
		Refs: []model.ObjectRef{flow.Ref(model.CategoryFlowNode, "n:authorize")},
	}
	s.Walkthroughs[wt.ID] = wt

	require.NoError(t, s.AddXRef(&model.XRef{
		ID:   "x:1",
		From: flow.Ref(model.CategoryFlowNode, "n:authorize"),
		To:   seq.Ref(model.CategorySeqMessage, "m:10"),
		Kind: "nav",
	}))
	s.ActiveDiagramID = "deploy"
	return s
}

func TestSaveLoadPreservesIdentity(t *testing.T) {
	root := t.TempDir()
	f := New(root, nil)
	s := testSession(t)
	require.NoError(t, f.Save(s))

	loaded, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, model.SessionID("sess-1"), loaded.ID)
	assert.Equal(t, model.DiagramID("deploy"), loaded.ActiveDiagramID)

	flow, err := loaded.Diagram("deploy")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), flow.Rev)
	n := flow.Flow.Node("n:authorize")
	require.NotNil(t, n, "stable node id survives save/load")
	assert.Equal(t, "authz", n.MermaidID)
	assert.Equal(t, "checks scopes", n.Note)
	e := flow.Flow.Edge("e:7")
	require.NotNil(t, e, "stable edge id survives save/load")
	assert.Equal(t, "bold", e.Style)

	seq, err := loaded.Diagram("login")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq.Rev)
	require.NotNil(t, seq.Seq.Participant("p:cli"))
	assert.Equal(t, "terminal", seq.Seq.Participant("p:cli").Note)
	// Duplicate fingerprints reconcile first-fit, preserving counts.
	require.NotNil(t, seq.Seq.Message("m:10"))
	require.NotNil(t, seq.Seq.Message("m:12"))
	assert.Equal(t, "login", seq.Seq.Message("m:12").Text)

	for _, x := range loaded.XRefs {
		assert.Equal(t, model.XRefOk, x.Status, x.ID)
	}

	wt, err := loaded.Walkthrough("tour")
	require.NoError(t, err)
	require.Len(t, wt.Nodes, 1)
	assert.True(t, loaded.Resolve(wt.Nodes["w:1"].Refs[0]))
}

func TestRenameViaOpSurvivesSaveLoad(t *testing.T) {
	root := t.TempDir()
	f := New(root, nil)
	s := testSession(t)

	// Rename the mermaid id; the stable id must survive the round trip.
	flow := s.Diagrams["deploy"]
	flow.Flow.Node("n:authorize").MermaidID = "authorize"
	require.NoError(t, f.Save(s))

	loaded, err := f.Load()
	require.NoError(t, err)
	n := loaded.Diagrams["deploy"].Flow.Node("n:authorize")
	require.NotNil(t, n)
	assert.Equal(t, "authorize", n.MermaidID)
	for _, x := range loaded.XRefs {
		assert.Equal(t, model.XRefOk, x.Status)
	}
}

func TestSaveIsByteDeterministic(t *testing.T) {
	rootA, rootB := t.TempDir(), t.TempDir()
	require.NoError(t, New(rootA, nil).Save(testSession(t)))
	require.NoError(t, New(rootB, nil).Save(testSession(t)))

	for _, rel := range []string{
		SessionMetaFile,
		"diagrams/deploy.mmd",
		"diagrams/deploy.meta.json",
		"diagrams/login.mmd",
		"diagrams/login.meta.json",
	} {
		a, err := os.ReadFile(filepath.Join(rootA, rel))
		require.NoError(t, err, rel)
		b, err := os.ReadFile(filepath.Join(rootB, rel))
		require.NoError(t, err, rel)
		assert.Equal(t, string(a), string(b), rel)
	}
}

func TestLoadRejectsEscapingPaths(t *testing.T) {
	root := t.TempDir()
	f := New(root, nil)
	require.NoError(t, f.Save(testSession(t)))

	raw, err := os.ReadFile(f.MetaPath())
	require.NoError(t, err)
	tampered := []byte(string(raw))
	tampered = []byte(replaceOnce(string(tampered), "diagrams/deploy.mmd", "../outside.mmd"))
	require.NoError(t, os.WriteFile(f.MetaPath(), tampered, 0o644))

	_, err = f.Load()
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodePathEscape, schema.CodeOf(err))
}

func replaceOnce(s, old, new string) string {
	idx := len(s)
	for i := 0; i+len(old) <= len(s); i++ {
		if s[i:i+len(old)] == old {
			idx = i
			break
		}
	}
	if idx == len(s) {
		return s
	}
	return s[:idx] + new + s[idx+len(old):]
}

func TestSaveRefusesSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "diagrams")))

	f := New(root, nil)
	err := f.Save(testSession(t))
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeUnsafeSymlink, schema.CodeOf(err))
	entries, readErr := os.ReadDir(outside)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "no write may land outside the root")
}

func TestWalkthroughGC(t *testing.T) {
	root := t.TempDir()
	f := New(root, nil)
	s := testSession(t)
	require.NoError(t, f.Save(s))
	require.FileExists(t, filepath.Join(root, "walkthroughs", "tour.wt.json"))

	delete(s.Walkthroughs, "tour")
	require.NoError(t, f.Save(s))
	assert.NoFileExists(t, filepath.Join(root, "walkthroughs", "tour.wt.json"))
}

func TestLoadLegacyDirectoryScan(t *testing.T) {
	root := t.TempDir()
	f := New(root, nil)
	s := testSession(t)
	require.NoError(t, f.Save(s))

	// Strip walkthrough_ids from the manifest to simulate a legacy session.
	raw, err := os.ReadFile(f.MetaPath())
	require.NoError(t, err)
	legacy := replaceOnce(string(raw), `"walkthrough_ids":["tour"],`, "")
	require.NotEqual(t, string(raw), legacy)
	require.NoError(t, os.WriteFile(f.MetaPath(), []byte(legacy), 0o644))

	loaded, err := f.Load()
	require.NoError(t, err)
	_, err = loaded.Walkthrough("tour")
	assert.NoError(t, err, "legacy manifests fall back to a directory scan")
}

func TestLoadOrInitCreatesEmptySession(t *testing.T) {
	root := t.TempDir()
	f := New(root, nil)
	s, err := f.LoadOrInit()
	require.NoError(t, err)
	assert.Empty(t, s.Diagrams)
	require.FileExists(t, f.MetaPath())

	again, err := f.LoadOrInit()
	require.NoError(t, err)
	assert.Equal(t, s.ID, again.ID)
}

func TestLoadRejectsInvalidSchema(t *testing.T) {
	root := t.TempDir()
	f := New(root, nil)
	require.NoError(t, os.WriteFile(f.MetaPath(), []byte(`{"session_id": 42, "diagrams": []}`), 0o644))
	_, err := f.Load()
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeSchemaInvalid, schema.CodeOf(err))
}

func TestValidateRelPath(t *testing.T) {
	assert.NoError(t, ValidateRelPath("diagrams/a.mmd"))
	assert.Error(t, ValidateRelPath("/abs/path"))
	assert.Error(t, ValidateRelPath("a/../../b"))
	assert.Error(t, ValidateRelPath(""))
}

func TestLegacyTextExportAccepted(t *testing.T) {
	// The loader never reads text exports; the GC still recognizes the
	// legacy suffix so stale files disappear.
	root := t.TempDir()
	f := New(root, nil)
	s := testSession(t)
	require.NoError(t, f.Save(s))
	legacyFile := filepath.Join(root, "walkthroughs", "old.ascii.txt")
	require.NoError(t, os.WriteFile(legacyFile, []byte("x"), 0o644))
	require.NoError(t, f.Save(s))
	assert.NoFileExists(t, legacyFile)
}
