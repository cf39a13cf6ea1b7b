package tasklist

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

// fakeService implements Service with overridable function fields. Calls are
// recorded so tests can assert which requests were sent.
type fakeService struct {
	calls []string

	fetchActive   func(ListFilter) (ActiveList, error)
	fetchArchived func() (ArchivedList, error)
	create        func(CreateFields) (Todo, error)
	update        func(string, UpdateFields) (Todo, error)
	toggle        func(string, bool) error
	archive       func(string) (*Todo, error)
	restore       func(string) (*Todo, error)
	delete        func(string) error
	addNote       func(string, string) (Note, error)
	deleteNote    func(string, string) error
	attachMedia   func(string, []string) (Todo, error)
	detachMedia   func(string, string) (Todo, error)
	createProject func(string) (Project, error)
}

func (f *fakeService) FetchActive(_ context.Context, filter ListFilter) (ActiveList, error) {
	f.calls = append(f.calls, "fetchActive")
	if f.fetchActive != nil {
		return f.fetchActive(filter)
	}
	return ActiveList{}, nil
}

func (f *fakeService) FetchArchived(context.Context) (ArchivedList, error) {
	f.calls = append(f.calls, "fetchArchived")
	if f.fetchArchived != nil {
		return f.fetchArchived()
	}
	return ArchivedList{}, nil
}

func (f *fakeService) Create(_ context.Context, fields CreateFields) (Todo, error) {
	f.calls = append(f.calls, "create")
	if f.create != nil {
		return f.create(fields)
	}
	return Todo{}, errors.New("create not configured")
}

func (f *fakeService) Update(_ context.Context, id string, fields UpdateFields) (Todo, error) {
	f.calls = append(f.calls, "update")
	if f.update != nil {
		return f.update(id, fields)
	}
	return Todo{}, errors.New("update not configured")
}

func (f *fakeService) Toggle(_ context.Context, id string, complete bool) error {
	f.calls = append(f.calls, "toggle")
	if f.toggle != nil {
		return f.toggle(id, complete)
	}
	return nil
}

func (f *fakeService) Archive(_ context.Context, id string) (*Todo, error) {
	f.calls = append(f.calls, "archive")
	if f.archive != nil {
		return f.archive(id)
	}
	return nil, nil
}

func (f *fakeService) Restore(_ context.Context, id string) (*Todo, error) {
	f.calls = append(f.calls, "restore")
	if f.restore != nil {
		return f.restore(id)
	}
	return nil, nil
}

func (f *fakeService) Delete(_ context.Context, id string) error {
	f.calls = append(f.calls, "delete")
	if f.delete != nil {
		return f.delete(id)
	}
	return nil
}

func (f *fakeService) AddNote(_ context.Context, id, content string) (Note, error) {
	f.calls = append(f.calls, "addNote")
	if f.addNote != nil {
		return f.addNote(id, content)
	}
	return Note{}, errors.New("addNote not configured")
}

func (f *fakeService) DeleteNote(_ context.Context, id, noteID string) error {
	f.calls = append(f.calls, "deleteNote")
	if f.deleteNote != nil {
		return f.deleteNote(id, noteID)
	}
	return nil
}

func (f *fakeService) AttachMedia(_ context.Context, id string, attachmentIDs []string) (Todo, error) {
	f.calls = append(f.calls, "attachMedia")
	if f.attachMedia != nil {
		return f.attachMedia(id, attachmentIDs)
	}
	return Todo{}, errors.New("attachMedia not configured")
}

func (f *fakeService) DetachMedia(_ context.Context, id, attachmentID string) (Todo, error) {
	f.calls = append(f.calls, "detachMedia")
	if f.detachMedia != nil {
		return f.detachMedia(id, attachmentID)
	}
	return Todo{}, errors.New("detachMedia not configured")
}

func (f *fakeService) CreateProject(_ context.Context, title string) (Project, error) {
	f.calls = append(f.calls, "createProject")
	if f.createProject != nil {
		return f.createProject(title)
	}
	return Project{}, errors.New("createProject not configured")
}

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(service Service) *Engine {
	return New(service, Options{
		Viewer: Member{ID: "m1", Name: "Robin"},
		Now:    func() time.Time { return testTime },
	})
}

func seedActive(e *Engine, todos ...Todo) {
	e.Store().ApplyActive(ActiveList{
		Todos:    todos,
		Members:  []Member{{ID: "m1", Name: "Robin"}, {ID: "m2", Name: "Sam"}},
		Projects: []Project{{ID: "p1", Title: "Groceries"}},
	})
}

func TestCreateYieldsSingleOpenTodo(t *testing.T) {
	service := &fakeService{
		create: func(fields CreateFields) (Todo, error) {
			return Todo{
				ID:        "t1",
				Title:     fields.Title,
				Status:    StatusOpen,
				Priority:  fields.Priority,
				Assignees: []Member{{ID: "m1", Name: "Robin"}},
			}, nil
		},
	}
	e := newTestEngine(service)
	seedActive(e)

	created, err := e.Create(context.Background(), CreateFields{
		Title:       "Buy snacks",
		AssigneeIDs: []string{"m1"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	active := e.Store().Active()
	if len(active) != 1 {
		t.Fatalf("active = %d todos, want 1", len(active))
	}
	if active[0].ID != created.ID || created.ID != "t1" {
		t.Errorf("created id = %q, store id = %q", created.ID, active[0].ID)
	}
	if created.Status != StatusOpen {
		t.Errorf("status = %q, want %q", created.Status, StatusOpen)
	}
	if created.Priority != PriorityDefault {
		t.Errorf("priority = %d, want %d", created.Priority, PriorityDefault)
	}
	if len(created.Assignees) != 1 || created.Assignees[0].ID != "m1" {
		t.Errorf("assignees = %+v, want [m1]", created.Assignees)
	}
	if keys := e.Store().PendingKeys(); len(keys) != 0 {
		t.Errorf("pending keys after create = %v, want none", keys)
	}
}

func TestCreateShowsOptimisticEntityDuringRequest(t *testing.T) {
	var e *Engine
	service := &fakeService{
		create: func(fields CreateFields) (Todo, error) {
			active := e.Store().Active()
			if len(active) != 1 {
				return Todo{}, errors.New("optimistic entity missing during request")
			}
			if active[0].Title != "Buy snacks" {
				return Todo{}, errors.New("optimistic entity has wrong title")
			}
			return Todo{ID: "t1", Title: fields.Title, Status: StatusOpen, Priority: fields.Priority}, nil
		},
	}
	e = newTestEngine(service)

	if _, err := e.Create(context.Background(), CreateFields{Title: "Buy snacks", AssigneeIDs: []string{"m1"}}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	active := e.Store().Active()
	if len(active) != 1 || active[0].ID != "t1" {
		t.Errorf("active = %+v, want single canonical todo t1", active)
	}
}

func TestCreateFailureRemovesOptimisticEntity(t *testing.T) {
	service := &fakeService{
		create: func(CreateFields) (Todo, error) {
			return Todo{}, errors.New("boom")
		},
	}
	e := newTestEngine(service)

	_, err := e.Create(context.Background(), CreateFields{Title: "Buy snacks", AssigneeIDs: []string{"m1"}})
	if err == nil {
		t.Fatal("Create succeeded despite service failure")
	}
	if active := e.Store().Active(); len(active) != 0 {
		t.Errorf("active = %+v, want empty after rollback", active)
	}
}

func TestCreateValidatesLocally(t *testing.T) {
	tests := []struct {
		name    string
		fields  CreateFields
		wantErr error
	}{
		{"empty title", CreateFields{Title: "   ", AssigneeIDs: []string{"m1"}}, ErrEmptyTitle},
		{"no assignees", CreateFields{Title: "Buy snacks"}, ErrNoAssignees},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			service := &fakeService{}
			e := newTestEngine(service)

			_, err := e.Create(context.Background(), test.fields)
			if !errors.Is(err, test.wantErr) {
				t.Errorf("err = %v, want %v", err, test.wantErr)
			}
			if len(service.calls) != 0 {
				t.Errorf("service calls = %v, want none", service.calls)
			}
		})
	}
}

func TestUpdateReconcilesCanonicalEntity(t *testing.T) {
	service := &fakeService{
		update: func(id string, fields UpdateFields) (Todo, error) {
			return Todo{ID: id, Title: *fields.Title + " (edited)", Status: StatusOpen, Priority: 3}, nil
		},
	}
	e := newTestEngine(service)
	seedActive(e, Todo{ID: "t1", Title: "Old title", Status: StatusOpen, Priority: 3})

	err := e.Update(context.Background(), "t1", UpdateFields{Title: StringPtr("New title")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	todo, _ := e.Store().TodoByID("t1")
	if todo.Title != "New title (edited)" {
		t.Errorf("title = %q, want the canonical entity's title", todo.Title)
	}
	if e.Store().Pending(PendingKey{ID: "t1", Kind: OpUpdate}) {
		t.Error("pending flag not cleared after reconcile")
	}
}

func TestUpdateFailureRestoresSnapshot(t *testing.T) {
	service := &fakeService{
		update: func(string, UpdateFields) (Todo, error) {
			return Todo{}, errors.New("portal rejected it")
		},
	}
	e := newTestEngine(service)
	seedActive(e, Todo{
		ID:       "t1",
		Title:    "Original",
		Status:   StatusOpen,
		Priority: 2,
		Notes:    []Note{{ID: "n1", Content: "keep me"}},
	})
	before := e.Store().Active()

	err := e.Update(context.Background(), "t1", UpdateFields{Title: StringPtr("Changed")})
	if err == nil {
		t.Fatal("Update succeeded despite service failure")
	}

	after := e.Store().Active()
	if !reflect.DeepEqual(before, after) {
		t.Errorf("active after rollback = %+v, want %+v", after, before)
	}
	if e.Store().Pending(PendingKey{ID: "t1", Kind: OpUpdate}) {
		t.Error("pending flag not cleared after rollback")
	}
	if message, ok := e.Store().Flash("t1"); !ok || message != MessageGenericFailure {
		t.Errorf("flash = %q/%v, want generic failure message", message, ok)
	}
}

func TestUpdateSessionExpiryFlashesSessionMessage(t *testing.T) {
	service := &fakeService{
		update: func(string, UpdateFields) (Todo, error) {
			return Todo{}, ErrSessionExpired
		},
	}
	e := newTestEngine(service)
	seedActive(e, Todo{ID: "t1", Title: "Original", Status: StatusOpen, Priority: 3})

	err := e.Update(context.Background(), "t1", UpdateFields{Title: StringPtr("Changed")})
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if message, _ := e.Store().Flash("t1"); message != MessageSessionExpired {
		t.Errorf("flash = %q, want session expired message", message)
	}
}

func TestToggleSuccessRefreshesActiveList(t *testing.T) {
	completed := Todo{ID: "t1", Title: "Water plants", Status: StatusCompleted, Priority: 3}
	service := &fakeService{
		fetchActive: func(ListFilter) (ActiveList, error) {
			return ActiveList{Todos: []Todo{completed}}, nil
		},
	}
	e := newTestEngine(service)
	seedActive(e, Todo{ID: "t1", Title: "Water plants", Status: StatusOpen, Priority: 3})
	service.calls = nil

	if err := e.Toggle(context.Background(), "t1", true); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	wantCalls := []string{"toggle", "fetchActive"}
	if !reflect.DeepEqual(service.calls, wantCalls) {
		t.Errorf("calls = %v, want %v", service.calls, wantCalls)
	}
	todo, _ := e.Store().TodoByID("t1")
	if todo.Status != StatusCompleted {
		t.Errorf("status = %q, want %q", todo.Status, StatusCompleted)
	}
}

func TestToggleFailureRevertsStatus(t *testing.T) {
	service := &fakeService{
		toggle: func(string, bool) error { return errors.New("boom") },
	}
	e := newTestEngine(service)
	seedActive(e, Todo{ID: "t1", Title: "Water plants", Status: StatusOpen, Priority: 3})

	err := e.Toggle(context.Background(), "t1", true)
	if err == nil {
		t.Fatal("Toggle succeeded despite service failure")
	}

	todo, _ := e.Store().TodoByID("t1")
	if todo.Status != StatusOpen {
		t.Errorf("status = %q, want %q after rollback", todo.Status, StatusOpen)
	}
	if todo.CompletedAt != nil {
		t.Errorf("completedAt = %v, want nil after rollback", todo.CompletedAt)
	}
	if _, ok := e.Store().Flash("t1"); !ok {
		t.Error("no error message recorded for the entity")
	}
}

func TestToggleRefreshUsesLastFilter(t *testing.T) {
	var gotFilter ListFilter
	service := &fakeService{
		fetchActive: func(filter ListFilter) (ActiveList, error) {
			gotFilter = filter
			return ActiveList{Todos: []Todo{{ID: "t1", Status: StatusCompleted, Priority: 3}}}, nil
		},
	}
	e := newTestEngine(service)

	filter := ListFilter{Status: FilterTodo, ProjectID: "p1"}
	if err := e.RefreshActive(context.Background(), filter); err != nil {
		t.Fatalf("RefreshActive: %v", err)
	}
	seedActive(e, Todo{ID: "t1", Status: StatusOpen, Priority: 3})

	if err := e.Toggle(context.Background(), "t1", true); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if gotFilter != filter {
		t.Errorf("refresh filter = %+v, want %+v", gotFilter, filter)
	}
}

func TestToggleRejectsArchivedTodo(t *testing.T) {
	service := &fakeService{}
	e := newTestEngine(service)
	completedAt := testTime
	e.Store().ApplyArchived(ArchivedList{Todos: []Todo{
		{ID: "t1", Title: "Old chore", Status: StatusArchived, Priority: 2, CompletedAt: &completedAt},
	}})
	before := e.Store().Archived()

	err := e.Toggle(context.Background(), "t1", true)
	if !errors.Is(err, ErrArchivedTodo) {
		t.Fatalf("err = %v, want ErrArchivedTodo", err)
	}
	if len(service.calls) != 0 {
		t.Errorf("service calls = %v, want none for a local rejection", service.calls)
	}
	if keys := e.Store().PendingKeys(); len(keys) != 0 {
		t.Errorf("pending keys = %v, want none for a local rejection", keys)
	}
	after := e.Store().Archived()
	if !reflect.DeepEqual(before, after) {
		t.Errorf("archived after rejection = %+v, want %+v", after, before)
	}

	err = e.Toggle(context.Background(), "t1", false)
	if !errors.Is(err, ErrArchivedTodo) {
		t.Fatalf("reopen err = %v, want ErrArchivedTodo", err)
	}
}

func TestSecondRequestForSameKeyRejectedLocally(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	service := &fakeService{
		toggle: func(string, bool) error {
			close(started)
			<-release
			return nil
		},
		fetchActive: func(ListFilter) (ActiveList, error) {
			return ActiveList{Todos: []Todo{{ID: "t1", Status: StatusCompleted, Priority: 3}}}, nil
		},
	}
	e := newTestEngine(service)
	seedActive(e, Todo{ID: "t1", Title: "Water plants", Status: StatusOpen, Priority: 3})

	done := make(chan error, 1)
	go func() {
		done <- e.Toggle(context.Background(), "t1", true)
	}()
	<-started

	if err := e.Toggle(context.Background(), "t1", false); !errors.Is(err, ErrOperationPending) {
		t.Errorf("second toggle err = %v, want ErrOperationPending", err)
	}
	if !e.Store().Pending(PendingKey{ID: "t1", Kind: OpToggle}) {
		t.Error("pending flag missing while request in flight")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if e.Store().Pending(PendingKey{ID: "t1", Kind: OpToggle}) {
		t.Error("pending flag not cleared after request settled")
	}
}

func TestDifferentKindsOnSameEntityRunConcurrently(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	service := &fakeService{
		toggle: func(string, bool) error {
			close(started)
			<-release
			return nil
		},
		update: func(id string, fields UpdateFields) (Todo, error) {
			return Todo{ID: id, Title: *fields.Title, Status: StatusOpen, Priority: 3}, nil
		},
		fetchActive: func(ListFilter) (ActiveList, error) {
			return ActiveList{Todos: []Todo{{ID: "t1", Status: StatusCompleted, Priority: 3}}}, nil
		},
	}
	e := newTestEngine(service)
	seedActive(e, Todo{ID: "t1", Title: "Water plants", Status: StatusOpen, Priority: 3})

	done := make(chan error, 1)
	go func() {
		done <- e.Toggle(context.Background(), "t1", true)
	}()
	<-started

	if err := e.Update(context.Background(), "t1", UpdateFields{Title: StringPtr("Water the plants")}); err != nil {
		t.Errorf("update during in-flight toggle: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("toggle: %v", err)
	}
}

func TestSetPriorityClampsAndSkipsNoops(t *testing.T) {
	service := &fakeService{
		update: func(id string, fields UpdateFields) (Todo, error) {
			return Todo{ID: id, Title: "Water plants", Status: StatusOpen, Priority: *fields.Priority}, nil
		},
	}
	e := newTestEngine(service)
	seedActive(e, Todo{ID: "t1", Title: "Water plants", Status: StatusOpen, Priority: 3})

	if err := e.SetPriority(context.Background(), "t1", 3); err != nil {
		t.Fatalf("SetPriority noop: %v", err)
	}
	if len(service.calls) != 0 {
		t.Errorf("calls = %v, want no request for a no-op", service.calls)
	}
	if err := e.SetPriority(context.Background(), "t1", 9); err != nil {
		t.Fatalf("SetPriority: %v", err)
	}
	todo, _ := e.Store().TodoByID("t1")
	if todo.Priority != PriorityMax {
		t.Errorf("priority = %d, want clamped to %d", todo.Priority, PriorityMax)
	}
}

func TestArchiveMovesToArchivedCollection(t *testing.T) {
	stamped := testTime.Add(time.Hour)
	service := &fakeService{
		archive: func(id string) (*Todo, error) {
			return &Todo{ID: id, Title: "Renew passport", Status: StatusArchived, Priority: 2, CompletedAt: &stamped}, nil
		},
	}
	e := newTestEngine(service)
	seedActive(e, Todo{ID: "t1", Title: "Renew passport", Status: StatusOpen, Priority: 2})

	if err := e.Archive(context.Background(), "t1"); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	if active := e.Store().Active(); len(active) != 0 {
		t.Errorf("active = %+v, want empty", active)
	}
	archived := e.Store().Archived()
	if len(archived) != 1 {
		t.Fatalf("archived = %d todos, want 1", len(archived))
	}
	if archived[0].Status != StatusArchived {
		t.Errorf("status = %q, want %q", archived[0].Status, StatusArchived)
	}
	if archived[0].CompletedAt == nil || !archived[0].CompletedAt.Equal(stamped) {
		t.Errorf("completedAt = %v, want the portal's timestamp", archived[0].CompletedAt)
	}
}

func TestArchiveWithoutResponseKeepsOptimisticState(t *testing.T) {
	e := newTestEngine(&fakeService{})
	seedActive(e, Todo{ID: "t1", Title: "Renew passport", Status: StatusOpen, Priority: 2})

	if err := e.Archive(context.Background(), "t1"); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	archived := e.Store().Archived()
	if len(archived) != 1 || archived[0].Status != StatusArchived {
		t.Errorf("archived = %+v, want the optimistic entity", archived)
	}
}

func TestArchiveFailureSplicesBackAtOriginalPosition(t *testing.T) {
	service := &fakeService{
		archive: func(string) (*Todo, error) { return nil, errors.New("boom") },
	}
	e := newTestEngine(service)
	seedActive(e,
		Todo{ID: "t1", Title: "First", Status: StatusOpen, Priority: 3},
		Todo{ID: "t2", Title: "Second", Status: StatusOpen, Priority: 3},
		Todo{ID: "t3", Title: "Third", Status: StatusOpen, Priority: 3},
	)
	before := e.Store().Active()

	if err := e.Archive(context.Background(), "t2"); err == nil {
		t.Fatal("Archive succeeded despite service failure")
	}

	after := e.Store().Active()
	if !reflect.DeepEqual(before, after) {
		t.Errorf("active after rollback = %+v, want original order %+v", after, before)
	}
	if archived := e.Store().Archived(); len(archived) != 0 {
		t.Errorf("archived = %+v, want empty after rollback", archived)
	}
}

func TestArchiveRestoreRoundTrip(t *testing.T) {
	service := &fakeService{
		fetchActive: func(ListFilter) (ActiveList, error) {
			return ActiveList{Todos: []Todo{{ID: "t1", Title: "Renew passport", Status: StatusOpen, Priority: 2}}}, nil
		},
	}
	e := newTestEngine(service)
	seedActive(e, Todo{ID: "t1", Title: "Renew passport", Status: StatusOpen, Priority: 2})

	if err := e.Archive(context.Background(), "t1"); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if err := e.Restore(context.Background(), "t1"); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if archived := e.Store().Archived(); len(archived) != 0 {
		t.Errorf("archived = %+v, want empty after restore", archived)
	}
	todo, ok := e.Store().TodoByID("t1")
	if !ok {
		t.Fatal("todo missing from active collection after restore")
	}
	if todo.Status != StatusOpen {
		t.Errorf("status = %q, want %q", todo.Status, StatusOpen)
	}
	if todo.CompletedAt != nil {
		t.Errorf("completedAt = %v, want nil after restore", todo.CompletedAt)
	}
}

func TestRestoreFailureReturnsEntityToArchive(t *testing.T) {
	service := &fakeService{
		restore: func(string) (*Todo, error) { return nil, errors.New("boom") },
	}
	e := newTestEngine(service)
	completedAt := testTime
	e.Store().ApplyArchived(ArchivedList{Todos: []Todo{
		{ID: "t1", Title: "Renew passport", Status: StatusArchived, Priority: 2, CompletedAt: &completedAt},
	}})
	before := e.Store().Archived()

	if err := e.Restore(context.Background(), "t1"); err == nil {
		t.Fatal("Restore succeeded despite service failure")
	}
	after := e.Store().Archived()
	if !reflect.DeepEqual(before, after) {
		t.Errorf("archived after rollback = %+v, want %+v", after, before)
	}
	if active := e.Store().Active(); len(active) != 0 {
		t.Errorf("active = %+v, want empty after rollback", active)
	}
}

func TestDeleteRequiresArchivedStatus(t *testing.T) {
	service := &fakeService{}
	e := newTestEngine(service)
	seedActive(e, Todo{ID: "t1", Title: "Water plants", Status: StatusOpen, Priority: 3})

	err := e.Delete(context.Background(), "t1")
	if !errors.Is(err, ErrNotArchived) {
		t.Fatalf("err = %v, want ErrNotArchived", err)
	}
	if len(service.calls) != 0 {
		t.Errorf("service calls = %v, want none for a local rejection", service.calls)
	}
	if keys := e.Store().PendingKeys(); len(keys) != 0 {
		t.Errorf("pending keys = %v, want none for a local rejection", keys)
	}
}

func TestDeleteRemovesArchivedEntity(t *testing.T) {
	e := newTestEngine(&fakeService{})
	e.Store().ApplyArchived(ArchivedList{Todos: []Todo{
		{ID: "t1", Title: "Old chore", Status: StatusArchived, Priority: 1},
	}})

	if err := e.Delete(context.Background(), "t1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if archived := e.Store().Archived(); len(archived) != 0 {
		t.Errorf("archived = %+v, want empty", archived)
	}
}

func TestDeleteFailureRestoresEntity(t *testing.T) {
	service := &fakeService{
		delete: func(string) error { return errors.New("boom") },
	}
	e := newTestEngine(service)
	e.Store().ApplyArchived(ArchivedList{Todos: []Todo{
		{ID: "t1", Title: "Old chore", Status: StatusArchived, Priority: 1},
	}})
	before := e.Store().Archived()

	if err := e.Delete(context.Background(), "t1"); err == nil {
		t.Fatal("Delete succeeded despite service failure")
	}
	after := e.Store().Archived()
	if !reflect.DeepEqual(before, after) {
		t.Errorf("archived after rollback = %+v, want %+v", after, before)
	}
}

func TestAddNoteShowsProvisionalThenCanonical(t *testing.T) {
	var e *Engine
	service := &fakeService{
		addNote: func(id, content string) (Note, error) {
			todo, _ := e.Store().TodoByID(id)
			if len(todo.Notes) != 1 {
				return Note{}, errors.New("provisional note missing during request")
			}
			if todo.Notes[0].AuthorName != "Robin" {
				return Note{}, errors.New("provisional note missing viewer identity")
			}
			return Note{ID: "n1", TodoID: id, MemberID: "m1", Content: content, AuthorName: "Robin", CreatedAt: testTime}, nil
		},
	}
	e = newTestEngine(service)
	seedActive(e, Todo{ID: "t1", Title: "Plan retro", Status: StatusOpen, Priority: 3})

	if err := e.AddNote(context.Background(), "t1", "Draft agenda first"); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	todo, _ := e.Store().TodoByID("t1")
	if len(todo.Notes) != 1 {
		t.Fatalf("notes = %d, want 1", len(todo.Notes))
	}
	if todo.Notes[0].ID != "n1" {
		t.Errorf("note id = %q, want the canonical id n1", todo.Notes[0].ID)
	}
}

func TestAddNoteRejectsEmptyContent(t *testing.T) {
	service := &fakeService{}
	e := newTestEngine(service)
	seedActive(e, Todo{ID: "t1", Title: "Plan retro", Status: StatusOpen, Priority: 3})

	if err := e.AddNote(context.Background(), "t1", "  \n "); !errors.Is(err, ErrEmptyNote) {
		t.Errorf("err = %v, want ErrEmptyNote", err)
	}
	if len(service.calls) != 0 {
		t.Errorf("service calls = %v, want none", service.calls)
	}
}

func TestDeleteNoteRequiresAuthorship(t *testing.T) {
	service := &fakeService{}
	e := newTestEngine(service)
	seedActive(e, Todo{
		ID: "t1", Title: "Plan retro", Status: StatusOpen, Priority: 3,
		Notes: []Note{{ID: "n1", TodoID: "t1", MemberID: "m2", Content: "not yours", AuthorName: "Sam"}},
	})

	err := e.DeleteNote(context.Background(), "t1", "n1")
	if !errors.Is(err, ErrNotNoteAuthor) {
		t.Fatalf("err = %v, want ErrNotNoteAuthor", err)
	}
	if len(service.calls) != 0 {
		t.Errorf("service calls = %v, want none", service.calls)
	}
	todo, _ := e.Store().TodoByID("t1")
	if len(todo.Notes) != 1 {
		t.Errorf("notes = %d, want the note untouched", len(todo.Notes))
	}
}

func TestDeleteNoteAllowedInPreviewMode(t *testing.T) {
	service := &fakeService{}
	e := New(service, Options{
		Viewer:  Member{ID: "m1", Name: "Robin"},
		Preview: true,
		Now:     func() time.Time { return testTime },
	})
	seedActive(e, Todo{
		ID: "t1", Title: "Plan retro", Status: StatusOpen, Priority: 3,
		Notes: []Note{{ID: "n1", TodoID: "t1", MemberID: "m2", Content: "not yours", AuthorName: "Sam"}},
	})

	if err := e.DeleteNote(context.Background(), "t1", "n1"); err != nil {
		t.Fatalf("DeleteNote in preview mode: %v", err)
	}
	todo, _ := e.Store().TodoByID("t1")
	if len(todo.Notes) != 0 {
		t.Errorf("notes = %+v, want empty", todo.Notes)
	}
}

func TestAttachMediaDeduplicatesDescriptors(t *testing.T) {
	var gotIDs []string
	service := &fakeService{
		attachMedia: func(id string, attachmentIDs []string) (Todo, error) {
			gotIDs = attachmentIDs
			return Todo{
				ID: id, Title: "Plan retro", Status: StatusOpen, Priority: 3,
				Media: []MediaAttachment{{ID: "f1", AttachmentID: "att-1", Filename: "agenda-v2.pdf"}},
			}, nil
		},
	}
	e := newTestEngine(service)
	seedActive(e, Todo{ID: "t1", Title: "Plan retro", Status: StatusOpen, Priority: 3})

	err := e.AttachMedia(context.Background(), "t1", []MediaAttachment{
		{AttachmentID: "att-1", Filename: "agenda-v1.pdf"},
		{AttachmentID: "att-1", Filename: "agenda-v2.pdf"},
	})
	if err != nil {
		t.Fatalf("AttachMedia: %v", err)
	}
	if !reflect.DeepEqual(gotIDs, []string{"att-1"}) {
		t.Errorf("submitted ids = %v, want deduplicated [att-1]", gotIDs)
	}
	todo, _ := e.Store().TodoByID("t1")
	if len(todo.Media) != 1 || todo.Media[0].Filename != "agenda-v2.pdf" {
		t.Errorf("media = %+v, want last descriptor to win", todo.Media)
	}
}

func TestAttachMediaRejectsEmptySelection(t *testing.T) {
	service := &fakeService{}
	e := newTestEngine(service)
	seedActive(e, Todo{ID: "t1", Title: "Plan retro", Status: StatusOpen, Priority: 3})

	if err := e.AttachMedia(context.Background(), "t1", nil); !errors.Is(err, ErrNoAttachments) {
		t.Errorf("err = %v, want ErrNoAttachments", err)
	}
	if len(service.calls) != 0 {
		t.Errorf("service calls = %v, want none", service.calls)
	}
}

func TestDetachMediaFailureRestoresAttachment(t *testing.T) {
	service := &fakeService{
		detachMedia: func(string, string) (Todo, error) {
			return Todo{}, errors.New("boom")
		},
	}
	e := newTestEngine(service)
	seedActive(e, Todo{
		ID: "t1", Title: "Plan retro", Status: StatusOpen, Priority: 3,
		Media: []MediaAttachment{{ID: "f1", AttachmentID: "att-1", Filename: "agenda.pdf"}},
	})
	before := e.Store().Active()

	if err := e.DetachMedia(context.Background(), "t1", "att-1"); err == nil {
		t.Fatal("DetachMedia succeeded despite service failure")
	}
	after := e.Store().Active()
	if !reflect.DeepEqual(before, after) {
		t.Errorf("active after rollback = %+v, want %+v", after, before)
	}
}

func TestCreateProjectSwapsLocalForCanonical(t *testing.T) {
	service := &fakeService{
		createProject: func(title string) (Project, error) {
			return Project{ID: "p9", Title: title}, nil
		},
	}
	e := newTestEngine(service)

	project, err := e.CreateProject(context.Background(), "Spring cleaning")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if project.ID != "p9" {
		t.Errorf("project id = %q, want canonical p9", project.ID)
	}
	projects := e.Store().Projects()
	if len(projects) != 1 || projects[0].ID != "p9" {
		t.Errorf("projects = %+v, want only the canonical entry", projects)
	}
}

func TestCloseDiscardsLateResponses(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	service := &fakeService{
		toggle: func(string, bool) error {
			close(started)
			<-release
			return nil
		},
		fetchActive: func(ListFilter) (ActiveList, error) {
			return ActiveList{}, nil
		},
	}
	e := newTestEngine(service)
	seedActive(e, Todo{ID: "t1", Title: "Water plants", Status: StatusOpen, Priority: 3})
	service.calls = nil

	done := make(chan error, 1)
	go func() {
		done <- e.Toggle(context.Background(), "t1", true)
	}()
	<-started
	e.Close()
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("toggle after close: %v", err)
	}

	// No refresh, no store transition: the optimistic state stays as the
	// teardown left it.
	if !reflect.DeepEqual(service.calls, []string{"toggle"}) {
		t.Errorf("calls = %v, want no refresh after close", service.calls)
	}
	if err := e.Toggle(context.Background(), "t1", false); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("toggle on closed engine err = %v, want ErrEngineClosed", err)
	}
}

func TestSubmitEditRunsDraftThroughUpdate(t *testing.T) {
	var gotFields UpdateFields
	service := &fakeService{
		update: func(id string, fields UpdateFields) (Todo, error) {
			gotFields = fields
			return Todo{ID: id, Title: *fields.Title, Description: *fields.Description, Status: StatusOpen, Priority: 3}, nil
		},
	}
	e := newTestEngine(service)
	seedActive(e, Todo{ID: "t1", Title: "Plan retro", Description: "old", Status: StatusOpen, Priority: 3})

	if err := e.StartEdit("t1"); err != nil {
		t.Fatalf("StartEdit: %v", err)
	}
	e.UIState().SetDraft("t1", Draft{Title: "Plan the retro", Description: "with snacks"})

	if err := e.SubmitEdit(context.Background(), "t1"); err != nil {
		t.Fatalf("SubmitEdit: %v", err)
	}
	if gotFields.Title == nil || *gotFields.Title != "Plan the retro" {
		t.Errorf("submitted title = %v, want the draft title", gotFields.Title)
	}
	if gotFields.Description == nil || *gotFields.Description != "with snacks" {
		t.Errorf("submitted description = %v, want the draft description", gotFields.Description)
	}
	if e.UIState().Editing("t1") {
		t.Error("draft not discarded after successful submit")
	}
	todo, _ := e.Store().TodoByID("t1")
	if todo.Title != "Plan the retro" {
		t.Errorf("title = %q, want the canonical title", todo.Title)
	}
}

func TestSubmitEditKeepsDraftOnFailure(t *testing.T) {
	service := &fakeService{
		update: func(string, UpdateFields) (Todo, error) {
			return Todo{}, errors.New("boom")
		},
	}
	e := newTestEngine(service)
	seedActive(e, Todo{ID: "t1", Title: "Plan retro", Status: StatusOpen, Priority: 3})

	if err := e.StartEdit("t1"); err != nil {
		t.Fatalf("StartEdit: %v", err)
	}
	e.UIState().SetDraft("t1", Draft{Title: "Plan the retro"})

	if err := e.SubmitEdit(context.Background(), "t1"); err == nil {
		t.Fatal("SubmitEdit succeeded despite service failure")
	}
	if !e.UIState().Editing("t1") {
		t.Error("draft discarded after failed submit")
	}
}

func TestStoreSubscriberNotifiedOnTransitions(t *testing.T) {
	e := newTestEngine(&fakeService{})
	notified := 0
	cancel := e.Store().Subscribe(func() { notified++ })
	defer cancel()

	seedActive(e, Todo{ID: "t1", Title: "Water plants", Status: StatusOpen, Priority: 3})
	if notified == 0 {
		t.Fatal("subscriber not notified of ApplyActive")
	}

	before := notified
	cancel()
	seedActive(e, Todo{ID: "t2", Title: "Another", Status: StatusOpen, Priority: 3})
	if notified != before {
		t.Errorf("subscriber notified after cancel: %d -> %d", before, notified)
	}
}
