package tasklist

import (
	"reflect"
	"testing"
	"time"
)

func TestNormalizeTodoResolvesCandidateKeys(t *testing.T) {
	record := Record{
		"todo_id":    "t1",
		"name":       "Buy snacks",
		"details":    "chips and salsa",
		"state":      "completed",
		"prio":       float64(4),
		"project_id": "p1",
		"due":        "2026-04-01",
		"icon":       "🛒",
	}

	todo, ok := NormalizeTodo(record)
	if !ok {
		t.Fatal("record with resolvable id dropped")
	}
	if todo.ID != "t1" || todo.Title != "Buy snacks" || todo.Description != "chips and salsa" {
		t.Errorf("todo = %+v", todo)
	}
	if todo.Status != StatusCompleted {
		t.Errorf("status = %q, want %q", todo.Status, StatusCompleted)
	}
	if todo.Priority != 4 {
		t.Errorf("priority = %d, want 4", todo.Priority)
	}
	if todo.ProjectID != "p1" {
		t.Errorf("projectId = %q, want p1", todo.ProjectID)
	}
	if todo.DueDate == nil || !todo.DueDate.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("dueDate = %v", todo.DueDate)
	}
	if todo.Emoji != "🛒" {
		t.Errorf("emoji = %q", todo.Emoji)
	}
}

func TestNormalizeTodoCanonicalKeysWinOverAliases(t *testing.T) {
	record := Record{
		"id":      "canonical",
		"todo_id": "alias",
		"title":   "Canonical",
		"name":    "Alias",
	}

	todo, ok := NormalizeTodo(record)
	if !ok {
		t.Fatal("record dropped")
	}
	if todo.ID != "canonical" {
		t.Errorf("id = %q, want the canonical key's value", todo.ID)
	}
	if todo.Title != "Canonical" {
		t.Errorf("title = %q, want the canonical key's value", todo.Title)
	}
}

func TestNormalizeTodoDropsRecordsWithoutIdentity(t *testing.T) {
	records := []Record{
		{"title": "no id at all"},
		{"id": ""},
		{"id": "t1", "title": "kept"},
	}

	todos := NormalizeTodos(records)
	if len(todos) != 1 || todos[0].ID != "t1" {
		t.Errorf("todos = %+v, want only the record with an id", todos)
	}
}

func TestNormalizeTodoIsIdempotent(t *testing.T) {
	record := Record{
		"todo_id": "t1",
		"name":    "Buy snacks",
		"state":   "open",
		"prio":    "7",
	}
	once, ok := NormalizeTodo(record)
	if !ok {
		t.Fatal("record dropped")
	}

	// Re-normalizing the canonical shape must be a no-op.
	canonical := Record{
		"id":       once.ID,
		"title":    once.Title,
		"status":   string(once.Status),
		"priority": once.Priority,
	}
	twice, ok := NormalizeTodo(canonical)
	if !ok {
		t.Fatal("canonical record dropped")
	}
	once.Assignees = nil
	twice.Assignees = nil
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second pass = %+v, want %+v", twice, once)
	}
}

func TestNormalizePriorityCoercion(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		want   int
	}{
		{"absent", Record{"id": "t"}, PriorityDefault},
		{"numeric string", Record{"id": "t", "priority": "4"}, 4},
		{"unparseable string", Record{"id": "t", "priority": "high"}, PriorityDefault},
		{"zero", Record{"id": "t", "priority": float64(0)}, PriorityDefault},
		{"negative", Record{"id": "t", "priority": float64(-2)}, PriorityDefault},
		{"above range", Record{"id": "t", "priority": float64(11)}, PriorityMax},
		{"in range", Record{"id": "t", "priority": float64(1)}, 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			todo, ok := NormalizeTodo(test.record)
			if !ok {
				t.Fatal("record dropped")
			}
			if todo.Priority != test.want {
				t.Errorf("priority = %d, want %d", todo.Priority, test.want)
			}
		})
	}
}

func TestNormalizeStatusFallsBackToOpen(t *testing.T) {
	for _, value := range []string{"", "unknown", "deleted"} {
		todo, ok := NormalizeTodo(Record{"id": "t", "status": value})
		if !ok {
			t.Fatal("record dropped")
		}
		if todo.Status != StatusOpen {
			t.Errorf("status for %q = %q, want %q", value, todo.Status, StatusOpen)
		}
	}
}

func TestNormalizeTodoDeduplicatesNestedCollections(t *testing.T) {
	record := Record{
		"id": "t1",
		"assignees": []any{
			map[string]any{"id": "m1", "name": "Robin"},
			map[string]any{"id": "m1", "name": "Robin again"},
			map[string]any{"id": "m2", "name": "Sam"},
		},
		"notes": []any{
			map[string]any{"id": "n1", "content": "first"},
			map[string]any{"id": "n1", "content": "duplicate"},
		},
		"media": []any{
			map[string]any{"id": "f1", "attachmentId": "att-1", "filename": "v1.pdf"},
			map[string]any{"id": "f2", "attachmentId": "att-1", "filename": "v2.pdf"},
			map[string]any{"filename": "no-attachment-id.pdf"},
		},
	}

	todo, ok := NormalizeTodo(record)
	if !ok {
		t.Fatal("record dropped")
	}
	if len(todo.Assignees) != 2 || todo.Assignees[0].Name != "Robin" {
		t.Errorf("assignees = %+v, want first occurrence kept", todo.Assignees)
	}
	if len(todo.Notes) != 1 || todo.Notes[0].Content != "first" {
		t.Errorf("notes = %+v, want first occurrence kept", todo.Notes)
	}
	if len(todo.Media) != 1 {
		t.Fatalf("media = %+v, want one entry per attachment id", todo.Media)
	}
	if todo.Media[0].Filename != "v2.pdf" {
		t.Errorf("media filename = %q, want last occurrence to win", todo.Media[0].Filename)
	}
}

func TestNormalizeMediaFallsBackToAttachmentID(t *testing.T) {
	media, ok := NormalizeMedia(Record{"attachmentId": "att-1"})
	if !ok {
		t.Fatal("record dropped")
	}
	if media.ID != "att-1" {
		t.Errorf("id = %q, want the attachment id", media.ID)
	}
}

func TestNormalizeMemberAvatar(t *testing.T) {
	member, ok := NormalizeMember(Record{
		"userId": "m1",
		"name":   "Robin",
		"self":   true,
		"avatar": map[string]any{"url": "https://example.com/a.png", "initials": "R"},
	})
	if !ok {
		t.Fatal("record dropped")
	}
	if !member.IsSelf {
		t.Error("isSelf not resolved from alias key")
	}
	if member.Avatar.URL != "https://example.com/a.png" || member.Avatar.Initials != "R" {
		t.Errorf("avatar = %+v", member.Avatar)
	}
}

func TestNormalizeNoteTimestampFormats(t *testing.T) {
	tests := []struct {
		value string
		want  time.Time
	}{
		{"2026-03-01T12:30:00Z", time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)},
		{"2026-03-01T12:30:00.250Z", time.Date(2026, 3, 1, 12, 30, 0, 250000000, time.UTC)},
		{"2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, test := range tests {
		note, ok := NormalizeNote(Record{"id": "n1", "createdAt": test.value})
		if !ok {
			t.Fatal("record dropped")
		}
		if !note.CreatedAt.Equal(test.want) {
			t.Errorf("createdAt for %q = %v, want %v", test.value, note.CreatedAt, test.want)
		}
	}
}

func TestNormalizeNoteUnparseableTimestampIsZero(t *testing.T) {
	note, ok := NormalizeNote(Record{"id": "n1", "createdAt": "yesterday"})
	if !ok {
		t.Fatal("record dropped")
	}
	if !note.CreatedAt.IsZero() {
		t.Errorf("createdAt = %v, want zero", note.CreatedAt)
	}
}

func TestNormalizeProjectAliases(t *testing.T) {
	project, ok := NormalizeProject(Record{"project_id": "p1", "name": "Groceries", "colour": "#fff"})
	if !ok {
		t.Fatal("record dropped")
	}
	want := Project{ID: "p1", Title: "Groceries", Color: "#fff"}
	if project != want {
		t.Errorf("project = %+v, want %+v", project, want)
	}
}
