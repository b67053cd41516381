package workspace

import (
	"github.com/nereid-dev/nereid/internal/collab"
	"github.com/nereid-dev/nereid/internal/model"
)

// ActiveDiagram returns the active diagram id, if any.
func (w *Workspace) ActiveDiagram() (model.DiagramID, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session.ActiveDiagramID, w.session.ActiveDiagramID != ""
}

// ActiveWalkthrough returns the active walkthrough id, if any.
func (w *Workspace) ActiveWalkthrough() (model.WalkthroughID, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session.ActiveWalkthroughID, w.session.ActiveWalkthroughID != ""
}

// Selection returns a copy of the current selection.
func (w *Workspace) Selection() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.collab.Selection...)
}

// SetSelection replaces the selection. Runtime-only.
func (w *Workspace) SetSelection(refs []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.collab.SetSelection(refs)
}

// HumanAttention returns where the human is looking.
func (w *Workspace) HumanAttention() collab.Attention {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.collab.HumanAttention
}

// SetHumanAttention records the human focus. Called by the shell layer.
func (w *Workspace) SetHumanAttention(diagramID string, refs []string, note string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.collab.SetHumanAttention(diagramID, refs, note)
}

// AgentAttention returns the current agent highlight set.
func (w *Workspace) AgentAttention() collab.Attention {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.collab.AgentAttention
}

// SetAgentAttention replaces the agent highlight set. Runtime-only.
func (w *Workspace) SetAgentAttention(diagramID string, refs []string, note string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.collab.SetAgentAttention(diagramID, refs, note)
}

// ClearAgentAttention drops the agent highlight set.
func (w *Workspace) ClearAgentAttention() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.collab.ClearAgentAttention()
}

// FollowAI reads the follow-ai flag.
func (w *Workspace) FollowAI() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.collab.FollowAI
}

// SetFollowAI sets the follow-ai flag. Runtime-only.
func (w *Workspace) SetFollowAI(v bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.collab.FollowAI = v
}

// View reads the shell view state.
func (w *Workspace) View() collab.ViewState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.collab.View
}

// SetView replaces the shell view state. Called by the shell layer.
func (w *Workspace) SetView(v collab.ViewState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.collab.View = v
}
