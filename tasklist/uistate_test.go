package tasklist

import "testing"

func TestUIStateFirstSyncCollapsesEverything(t *testing.T) {
	u := NewUIState()
	u.Sync([]string{"a", "b"})

	if !u.Collapsed("a") || !u.Collapsed("b") {
		t.Error("first population did not collapse all entities")
	}
}

func TestUIStateSyncKeepsKnownAddsCollapsedDropsRemoved(t *testing.T) {
	u := NewUIState()
	u.Sync([]string{"a", "b"})
	u.SetCollapsed("a", false)
	u.SetComposerOpen("b", true)
	u.StartEdit(Todo{ID: "b", Title: "draft me"})

	u.Sync([]string{"a", "c"})

	if u.Collapsed("a") {
		t.Error("known entity lost its expanded state")
	}
	if !u.Collapsed("c") {
		t.Error("new entity not collapsed")
	}
	if u.ComposerOpen("b") {
		t.Error("removed entity kept its composer flag")
	}
	if u.Editing("b") {
		t.Error("removed entity kept its draft")
	}
}

func TestUIStateUnknownEntitiesReportCollapsed(t *testing.T) {
	u := NewUIState()
	if !u.Collapsed("never-seen") {
		t.Error("unknown entity not collapsed by default")
	}
}

func TestUIStateSetCollapsedIgnoresUnknownIDs(t *testing.T) {
	u := NewUIState()
	u.Sync([]string{"a"})

	u.SetCollapsed("ghost", false)
	u.Sync([]string{"a", "ghost"})
	if !u.Collapsed("ghost") {
		t.Error("flag recorded for an entity outside the identity set")
	}
}

func TestUIStateDraftLifecycle(t *testing.T) {
	u := NewUIState()
	u.StartEdit(Todo{ID: "t1", Title: "Plan retro", Description: "desc", Emoji: "📝"})

	draft, ok := u.Draft("t1")
	if !ok {
		t.Fatal("draft missing after StartEdit")
	}
	want := Draft{Title: "Plan retro", Description: "desc", Emoji: "📝"}
	if draft != want {
		t.Errorf("draft = %+v, want %+v", draft, want)
	}

	u.SetDraft("t1", Draft{Title: "Edited"})
	if draft, _ = u.Draft("t1"); draft.Title != "Edited" {
		t.Errorf("draft title = %q, want Edited", draft.Title)
	}

	u.CancelEdit("t1")
	if u.Editing("t1") {
		t.Error("draft survived cancel")
	}
}

func TestUIStateComposerFlag(t *testing.T) {
	u := NewUIState()
	u.Sync([]string{"t1"})

	u.SetComposerOpen("t1", true)
	if !u.ComposerOpen("t1") {
		t.Error("composer not open after set")
	}
	u.SetComposerOpen("t1", false)
	if u.ComposerOpen("t1") {
		t.Error("composer still open after close")
	}
}
