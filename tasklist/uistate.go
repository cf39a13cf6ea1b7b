package tasklist

import "sync"

// Draft holds the editable copy of a todo's mutable fields while the member
// is editing.
type Draft struct {
	Title       string
	Description string
	Emoji       string
}

// UIState tracks per-entity transient flags outside the canonical entities:
// collapsed/expanded, an open note composer, and in-progress edit drafts.
// The flag table follows the active identity set: unknown entities default
// to collapsed, known entities keep their state, removed entities lose their
// flags. The very first population collapses everything.
type UIState struct {
	mu        sync.Mutex
	collapsed map[string]bool
	drafts    map[string]Draft
	composers map[string]bool
}

// NewUIState creates an empty flag table.
func NewUIState() *UIState {
	return &UIState{
		collapsed: make(map[string]bool),
		drafts:    make(map[string]Draft),
		composers: make(map[string]bool),
	}
}

// Sync recomputes the flag table for a changed active identity set.
func (u *UIState) Sync(ids []string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	known := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
		if _, seen := u.collapsed[id]; !seen {
			u.collapsed[id] = true
		}
	}

	for id := range u.collapsed {
		if _, ok := known[id]; !ok {
			delete(u.collapsed, id)
			delete(u.drafts, id)
			delete(u.composers, id)
		}
	}
}

// Collapsed reports whether a todo's detail row is collapsed. Unknown
// entities report collapsed.
func (u *UIState) Collapsed(id string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	collapsed, ok := u.collapsed[id]
	if !ok {
		return true
	}
	return collapsed
}

// SetCollapsed records a member's expand/collapse choice.
func (u *UIState) SetCollapsed(id string, collapsed bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.collapsed[id]; !ok {
		return
	}
	u.collapsed[id] = collapsed
}

// StartEdit copies the todo's mutable fields into a draft.
func (u *UIState) StartEdit(todo Todo) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.drafts[todo.ID] = Draft{
		Title:       todo.Title,
		Description: todo.Description,
		Emoji:       todo.Emoji,
	}
}

// SetDraft stores the host's in-progress edits.
func (u *UIState) SetDraft(id string, draft Draft) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.drafts[id] = draft
}

// Draft returns the in-progress draft for a todo.
func (u *UIState) Draft(id string) (Draft, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	draft, ok := u.drafts[id]
	return draft, ok
}

// CancelEdit discards the draft for a todo.
func (u *UIState) CancelEdit(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.drafts, id)
}

// Editing reports whether a draft exists for a todo.
func (u *UIState) Editing(id string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.drafts[id]
	return ok
}

// SetComposerOpen opens or closes the note composer for a todo.
func (u *UIState) SetComposerOpen(id string, open bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if open {
		u.composers[id] = true
		return
	}
	delete(u.composers, id)
}

// ComposerOpen reports whether the note composer is open for a todo.
func (u *UIState) ComposerOpen(id string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.composers[id]
}
