package proposal

import "log"

// StateKind is the lifecycle state of a section.
type StateKind string

const (
	StateVisible StateKind = "visible"
	StateHidden  StateKind = "hidden"
	StateDeleted StateKind = "deleted"
)

// sectionState pairs the kind with the snapshot a deleted section owns.
// The type is unexported and only built by Registry methods, which is
// what enforces the deleted-implies-snapshot invariant: the only place a
// StateDeleted value is constructed also stores the snapshot.
type sectionState struct {
	kind     StateKind
	snapshot *Patch
}

// Registry tracks per-section visibility and owns the snapshots behind
// soft deletes. It lives alongside the Document inside one editing
// session and is never persisted: a snapshot survives exactly until it
// is restored or the session ends.
type Registry struct {
	states map[SectionID]sectionState
}

// NewRegistry returns a registry with every section visible.
func NewRegistry() *Registry {
	return &Registry{states: map[SectionID]sectionState{}}
}

// State reports the current kind for a section; unknown sections are
// visible by default.
func (r *Registry) State(id SectionID) StateKind {
	st, ok := r.states[id]
	if !ok {
		return StateVisible
	}
	return st.kind
}

// IsVisible reports whether the section should be rendered.
func (r *Registry) IsVisible(id SectionID) bool {
	return r.State(id) == StateVisible
}

// States returns a plain map for the view model.
func (r *Registry) States() map[SectionID]StateKind {
	out := make(map[SectionID]StateKind, len(AllSections))
	for _, id := range AllSections {
		out[id] = r.State(id)
	}
	return out
}

// Hide marks the section not rendered. Its fields stay live on the
// document and no snapshot is taken. Hiding a deleted section is a
// no-op: deletion owns the stronger state.
func (r *Registry) Hide(id SectionID) {
	if r.State(id) == StateDeleted {
		return
	}
	r.states[id] = sectionState{kind: StateHidden}
}

// Show makes a hidden section visible again. No-op on deleted sections;
// those come back through Restore.
func (r *Registry) Show(id SectionID) {
	if r.State(id) == StateDeleted {
		return
	}
	r.states[id] = sectionState{kind: StateVisible}
}

// Delete soft-deletes the section: its exact field sub-object is
// captured as a snapshot, the live fields are cleared, and the section
// transitions to deleted. Deleting an already-deleted section is a
// no-op so a double click cannot overwrite the snapshot with the
// cleared fields.
func (r *Registry) Delete(d *Document, id SectionID) {
	if r.State(id) == StateDeleted {
		return
	}
	snap := snapshotSection(d, id)
	clearSection(d, id)
	r.states[id] = sectionState{kind: StateDeleted, snapshot: &snap}
}

// Restore merges the stored snapshot back into the document (its keys
// only) and makes the section visible. The snapshot is consumed:
// restoring again without an intervening delete is a no-op. A restore
// with no snapshot (a stale click racing an already-restored state)
// logs and leaves the document unchanged. Returns whether a snapshot
// was applied.
func (r *Registry) Restore(d *Document, id SectionID) bool {
	st, ok := r.states[id]
	if !ok || st.kind != StateDeleted || st.snapshot == nil {
		log.Printf("proposal: restore %q with no snapshot, ignoring", id)
		return false
	}
	d.Apply(*st.snapshot)
	r.states[id] = sectionState{kind: StateVisible}
	return true
}

// RegistryFromStates rebuilds a registry carrying visibility kinds
// only. Snapshots do not transfer; callers use this to render a
// document copy, never to restore.
func RegistryFromStates(states map[SectionID]StateKind) *Registry {
	r := NewRegistry()
	for id, kind := range states {
		if kind == StateVisible {
			continue
		}
		r.states[id] = sectionState{kind: kind}
	}
	return r
}
