package ops

import (
	"sort"

	"github.com/nereid-dev/nereid/pkg/schema"
)

// DefaultHistoryCapacity bounds the per-object delta ring buffer.
const DefaultHistoryCapacity = 64

// Delta summarizes one commit as sets of canonical reference strings.
// added ∩ removed is always empty.
type Delta struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Updated []string `json:"updated"`
}

// Empty reports whether the delta carries no changes.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Updated) == 0
}

// deltaBuilder accumulates per-op changes and collapses them: a ref added
// then removed in the same window appears in neither; repeated updates
// appear once; updates to refs added in the window fold into the add.
type deltaBuilder struct {
	added   map[string]bool
	removed map[string]bool
	updated map[string]bool
}

func newDeltaBuilder() *deltaBuilder {
	return &deltaBuilder{
		added:   make(map[string]bool),
		removed: make(map[string]bool),
		updated: make(map[string]bool),
	}
}

func (b *deltaBuilder) add(ref string) {
	if b.removed[ref] {
		// Removed then re-added: net effect is an update of the pre-state object.
		delete(b.removed, ref)
		b.updated[ref] = true
		return
	}
	b.added[ref] = true
}

func (b *deltaBuilder) update(ref string) {
	if b.added[ref] {
		return
	}
	b.updated[ref] = true
}

func (b *deltaBuilder) remove(ref string) {
	if b.added[ref] {
		delete(b.added, ref)
		return
	}
	delete(b.updated, ref)
	b.removed[ref] = true
}

func (b *deltaBuilder) build() Delta {
	return Delta{
		Added:   sortedKeys(b.added),
		Removed: sortedKeys(b.removed),
		Updated: sortedKeys(b.updated),
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// HistoryEntry records the delta of one committed revision step.
type HistoryEntry struct {
	FromRev uint64 `json:"from_rev"`
	ToRev   uint64 `json:"to_rev"`
	Delta   Delta  `json:"delta"`
}

// History is a bounded FIFO ring of committed delta entries for one object.
type History struct {
	entries  []HistoryEntry
	capacity int
}

// NewHistory creates a history with the given capacity (DefaultHistoryCapacity
// when zero or negative).
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{capacity: capacity}
}

// Append records a committed entry, evicting the oldest beyond capacity.
func (h *History) Append(e HistoryEntry) {
	h.entries = append(h.entries, e)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[len(h.entries)-h.capacity:]
	}
}

// Since returns the collapsed union of entries with from_rev >= sinceRev, or
// UNAVAILABLE when sinceRev predates the oldest retained entry. Callers
// respond to UNAVAILABLE by fetching a full snapshot and resuming.
func (h *History) Since(sinceRev, currentRev uint64) (Delta, error) {
	if sinceRev >= currentRev {
		return Delta{Added: []string{}, Removed: []string{}, Updated: []string{}}, nil
	}
	if len(h.entries) == 0 || h.entries[0].FromRev > sinceRev {
		return Delta{}, schema.
			NewErrorf(schema.ErrCodeUnavailable, "delta history no longer covers rev %d", sinceRev).
			WithDetail("current_rev", currentRev)
	}
	b := newDeltaBuilder()
	for _, e := range h.entries {
		if e.FromRev < sinceRev {
			continue
		}
		for _, ref := range e.Delta.Added {
			b.add(ref)
		}
		for _, ref := range e.Delta.Updated {
			b.update(ref)
		}
		for _, ref := range e.Delta.Removed {
			b.remove(ref)
		}
	}
	return b.build(), nil
}
