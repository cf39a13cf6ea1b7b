package tasklist

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Options configures an engine.
type Options struct {
	// Viewer is the member using the portal. Note deletion is permitted
	// only for notes the viewer authored.
	Viewer Member

	// Preview lifts the note-author restriction, matching the portal's
	// access-unrestricted preview mode.
	Preview bool

	// Logger receives request logging. Defaults to stderr.
	Logger *log.Logger

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Engine coordinates optimistic mutations between the store and the portal
// service. Every mutation validates locally, applies its optimistic change,
// sends the request, and then either reconciles the canonical entity or
// rolls back to the pre-mutation snapshot. Methods are safe for concurrent
// use; the store serializes transitions.
type Engine struct {
	store   *Store
	ui      *UIState
	service Service
	viewer  Member
	preview bool
	logger  *log.Logger
	now     func() time.Time

	mu         sync.Mutex
	closed     bool
	lastFilter ListFilter
}

// New creates an engine backed by the given service.
func New(service Service, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "tasklist: ", log.LstdFlags)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:   NewStore(),
		ui:      NewUIState(),
		service: service,
		viewer:  opts.Viewer,
		preview: opts.Preview,
		logger:  logger,
		now:     now,
	}
}

// Store exposes the canonical collections and pending sets to the host.
func (e *Engine) Store() *Store {
	return e.store
}

// UIState exposes the per-entity transient flags to the host.
func (e *Engine) UIState() *UIState {
	return e.ui
}

// Viewer returns the member the engine acts as.
func (e *Engine) Viewer() Member {
	return e.viewer
}

// Close suppresses state updates from responses that arrive later. In-flight
// requests are not cancelled; their results are discarded.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Visible computes the ordered list for the given filter and sort mode from
// the current active collection.
func (e *Engine) Visible(filter ListFilter, mode SortMode) []Todo {
	return VisibleTodos(e.store.Active(), e.store.ProjectIndex(), filter, mode)
}

// RefreshActive fetches the active list and replaces the store's active
// collection, projects, and members. The UI identity set is resynced.
func (e *Engine) RefreshActive(ctx context.Context, filter ListFilter) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	e.mu.Lock()
	e.lastFilter = filter
	e.mu.Unlock()

	list, err := e.service.FetchActive(ctx, filter)
	if err != nil {
		return fmt.Errorf("fetch active: %w", err)
	}
	if e.isClosed() {
		return nil
	}
	e.store.ApplyActive(list)
	e.syncUI()
	return nil
}

// RefreshArchived fetches the archived list into the store.
func (e *Engine) RefreshArchived(ctx context.Context) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	list, err := e.service.FetchArchived(ctx)
	if err != nil {
		return fmt.Errorf("fetch archived: %w", err)
	}
	if e.isClosed() {
		return nil
	}
	e.store.ApplyArchived(list)
	return nil
}

// refreshActiveAfterMutation re-fetches the active list with the last used
// filter, preserving the source behavior of reconciling toggles and
// restores through a full list refresh.
func (e *Engine) refreshActiveAfterMutation(ctx context.Context) {
	e.mu.Lock()
	filter := e.lastFilter
	e.mu.Unlock()
	if err := e.RefreshActive(ctx, filter); err != nil {
		e.logger.Printf("refresh after mutation: %v", err)
	}
}

// Create validates and optimistically materializes a new todo, then replaces
// it with the portal's canonical entity once confirmed.
func (e *Engine) Create(ctx context.Context, fields CreateFields) (Todo, error) {
	if e.isClosed() {
		return Todo{}, ErrEngineClosed
	}
	if err := ValidateTitle(fields.Title); err != nil {
		return Todo{}, err
	}
	if len(fields.AssigneeIDs) == 0 {
		return Todo{}, ErrNoAssignees
	}
	fields.Priority = NormalizePriority(fields.Priority)

	now := e.now()
	local := Todo{
		ID:          NewLocalID(fields.Title, now),
		Title:       fields.Title,
		Description: fields.Description,
		Status:      StatusOpen,
		Priority:    fields.Priority,
		ProjectID:   fields.ProjectID,
		DueDate:     fields.DueDate,
		Emoji:       fields.Emoji,
		Assignees:   e.resolveAssignees(fields.AssigneeIDs),
	}
	e.store.AppendActive(local)
	e.syncUI()

	created, err := e.service.Create(ctx, fields)
	if e.isClosed() {
		return local, nil
	}
	if err != nil {
		e.store.RemoveActive(local.ID)
		e.syncUI()
		return Todo{}, fmt.Errorf("create todo: %w", err)
	}

	e.store.RemoveActive(local.ID)
	e.store.AppendActive(created)
	e.syncUI()
	return created, nil
}

// resolveAssignees maps member IDs onto known members, falling back to a
// bare reference for IDs the store hasn't seen.
func (e *Engine) resolveAssignees(ids []string) []Member {
	assignees := make([]Member, 0, len(ids))
	for _, id := range ids {
		if member, ok := e.store.Member(id); ok {
			assignees = append(assignees, member)
			continue
		}
		assignees = append(assignees, Member{ID: id})
	}
	return assignees
}

// Update edits a todo's mutable fields through the optimistic protocol.
func (e *Engine) Update(ctx context.Context, id string, fields UpdateFields) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	if fields.Title != nil {
		if err := ValidateTitle(*fields.Title); err != nil {
			return err
		}
	}
	if fields.Priority != nil {
		normalized := NormalizePriority(*fields.Priority)
		fields.Priority = &normalized
	}

	snapshot, ok := e.store.TodoByID(id)
	if !ok {
		return fmt.Errorf("update %s: %w", id, ErrTodoNotFound)
	}

	key := PendingKey{ID: id, Kind: OpUpdate}
	if !e.store.BeginPending(key) {
		return fmt.Errorf("update %s: %w", id, ErrOperationPending)
	}

	optimistic := snapshot.Clone()
	applyUpdateFields(&optimistic, fields)
	e.store.ReplaceTodo(optimistic)
	e.store.ClearFlash(id)

	updated, err := e.service.Update(ctx, id, fields)
	if e.isClosed() {
		return nil
	}
	defer e.store.EndPending(key)
	if err != nil {
		e.store.ReplaceTodo(snapshot)
		e.store.SetFlash(id, UserMessage(err))
		return fmt.Errorf("update todo: %w", err)
	}
	e.store.ReplaceTodo(updated)
	return nil
}

func applyUpdateFields(todo *Todo, fields UpdateFields) {
	if fields.Title != nil {
		todo.Title = *fields.Title
	}
	if fields.Description != nil {
		todo.Description = *fields.Description
	}
	if fields.Priority != nil {
		todo.Priority = *fields.Priority
	}
	if fields.ProjectID != nil {
		todo.ProjectID = *fields.ProjectID
	}
	if fields.DueDate != nil {
		due := *fields.DueDate
		todo.DueDate = &due
	}
	if fields.Emoji != nil {
		todo.Emoji = *fields.Emoji
	}
}

// Toggle flips a todo between open and completed. Success is reconciled by
// refreshing the whole active list rather than replacing the single entity;
// the portal reorders on completion and only the list response carries the
// resulting order.
func (e *Engine) Toggle(ctx context.Context, id string, complete bool) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	snapshot, ok := e.store.TodoByID(id)
	if !ok {
		return fmt.Errorf("toggle %s: %w", id, ErrTodoNotFound)
	}
	if snapshot.Status == StatusArchived {
		return fmt.Errorf("toggle %s: %w", id, ErrArchivedTodo)
	}

	key := PendingKey{ID: id, Kind: OpToggle}
	if !e.store.BeginPending(key) {
		return fmt.Errorf("toggle %s: %w", id, ErrOperationPending)
	}

	optimistic := snapshot.Clone()
	if complete {
		optimistic.Status = StatusCompleted
		now := e.now()
		optimistic.CompletedAt = &now
	} else {
		optimistic.Status = StatusOpen
		optimistic.CompletedAt = nil
	}
	e.store.ReplaceTodo(optimistic)
	e.store.ClearFlash(id)

	err := e.service.Toggle(ctx, id, complete)
	if e.isClosed() {
		return nil
	}
	defer e.store.EndPending(key)
	if err != nil {
		e.store.ReplaceTodo(snapshot)
		e.store.SetFlash(id, UserMessage(err))
		return fmt.Errorf("toggle todo: %w", err)
	}
	e.refreshActiveAfterMutation(ctx)
	return nil
}

// SetPriority changes a todo's priority. The requested value is clamped to
// the valid range; a request equal to the current value is a no-op.
func (e *Engine) SetPriority(ctx context.Context, id string, priority int) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	priority = NormalizePriority(priority)

	snapshot, ok := e.store.TodoByID(id)
	if !ok {
		return fmt.Errorf("set priority %s: %w", id, ErrTodoNotFound)
	}
	if snapshot.Priority == priority {
		return nil
	}

	key := PendingKey{ID: id, Kind: OpPriority}
	if !e.store.BeginPending(key) {
		return fmt.Errorf("set priority %s: %w", id, ErrOperationPending)
	}

	optimistic := snapshot.Clone()
	optimistic.Priority = priority
	e.store.ReplaceTodo(optimistic)
	e.store.ClearFlash(id)

	updated, err := e.service.Update(ctx, id, UpdateFields{Priority: &priority})
	if e.isClosed() {
		return nil
	}
	defer e.store.EndPending(key)
	if err != nil {
		e.store.ReplaceTodo(snapshot)
		e.store.SetFlash(id, UserMessage(err))
		return fmt.Errorf("set priority: %w", err)
	}
	e.store.ReplaceTodo(updated)
	return nil
}

// Archive moves a todo from the active collection to the archived one. The
// portal may return the updated entity with an authoritative completion
// timestamp; if it returns nothing, the optimistic move stands.
func (e *Engine) Archive(ctx context.Context, id string) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	if _, ok := e.store.TodoByID(id); !ok {
		return fmt.Errorf("archive %s: %w", id, ErrTodoNotFound)
	}

	key := PendingKey{ID: id, Kind: OpArchive}
	if !e.store.BeginPending(key) {
		return fmt.Errorf("archive %s: %w", id, ErrOperationPending)
	}

	snapshot, index, ok := e.store.RemoveActive(id)
	if !ok {
		e.store.EndPending(key)
		return fmt.Errorf("archive %s: %w", id, ErrAlreadyArchived)
	}
	optimistic := snapshot.Clone()
	optimistic.Status = StatusArchived
	e.store.AppendArchived(optimistic)
	e.store.ClearFlash(id)
	e.syncUI()

	archived, err := e.service.Archive(ctx, id)
	if e.isClosed() {
		return nil
	}
	defer e.store.EndPending(key)
	if err != nil {
		e.store.RemoveArchived(id)
		e.store.InsertActive(snapshot, index)
		e.store.SetFlash(id, UserMessage(err))
		e.syncUI()
		return fmt.Errorf("archive todo: %w", err)
	}
	if archived != nil {
		e.store.ReplaceTodo(*archived)
	}
	return nil
}

// Restore moves an archived todo back to the active collection and reopens
// it. After the portal confirms, the active list is refreshed: restoring
// needs position information only the portal computes.
func (e *Engine) Restore(ctx context.Context, id string) error {
	if e.isClosed() {
		return ErrEngineClosed
	}

	key := PendingKey{ID: id, Kind: OpRestore}
	if !e.store.BeginPending(key) {
		return fmt.Errorf("restore %s: %w", id, ErrOperationPending)
	}

	snapshot, index, ok := e.store.RemoveArchived(id)
	if !ok {
		e.store.EndPending(key)
		return fmt.Errorf("restore %s: %w", id, ErrTodoNotFound)
	}
	optimistic := snapshot.Clone()
	optimistic.Status = StatusOpen
	optimistic.CompletedAt = nil
	e.store.AppendActive(optimistic)
	e.store.ClearFlash(id)
	e.syncUI()

	restored, err := e.service.Restore(ctx, id)
	if e.isClosed() {
		return nil
	}
	defer e.store.EndPending(key)
	if err != nil {
		e.store.RemoveActive(id)
		e.store.InsertArchived(snapshot, index)
		e.store.SetFlash(id, UserMessage(err))
		e.syncUI()
		return fmt.Errorf("restore todo: %w", err)
	}
	if restored != nil {
		e.store.ReplaceTodo(*restored)
	}
	e.refreshActiveAfterMutation(ctx)
	return nil
}

// Delete permanently removes an archived todo. Deletion is terminal: once
// the portal confirms there is no rollback path. Hosts must confirm with the
// member before calling.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	todo, ok := e.store.TodoByID(id)
	if !ok {
		return fmt.Errorf("delete %s: %w", id, ErrTodoNotFound)
	}
	if todo.Status != StatusArchived {
		return fmt.Errorf("delete %s: %w", id, ErrNotArchived)
	}

	key := PendingKey{ID: id, Kind: OpDelete}
	if !e.store.BeginPending(key) {
		return fmt.Errorf("delete %s: %w", id, ErrOperationPending)
	}

	snapshot, index, ok := e.store.RemoveArchived(id)
	if !ok {
		e.store.EndPending(key)
		return fmt.Errorf("delete %s: %w", id, ErrTodoNotFound)
	}
	e.store.ClearFlash(id)

	err := e.service.Delete(ctx, id)
	if e.isClosed() {
		return nil
	}
	defer e.store.EndPending(key)
	if err != nil {
		e.store.InsertArchived(snapshot, index)
		e.store.SetFlash(id, UserMessage(err))
		return fmt.Errorf("delete todo: %w", err)
	}
	return nil
}

// AddNote appends a note to a todo. A provisional note carrying the viewer's
// identity is shown until the portal returns the canonical one.
func (e *Engine) AddNote(ctx context.Context, id, content string) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	if err := ValidateNoteContent(content); err != nil {
		return err
	}
	snapshot, ok := e.store.TodoByID(id)
	if !ok {
		return fmt.Errorf("add note %s: %w", id, ErrTodoNotFound)
	}

	key := PendingKey{ID: id, Kind: OpNoteAdd}
	if !e.store.BeginPending(key) {
		return fmt.Errorf("add note %s: %w", id, ErrOperationPending)
	}

	now := e.now()
	provisional := Note{
		ID:         NewLocalID(content, now),
		TodoID:     id,
		MemberID:   e.viewer.ID,
		Content:    content,
		AuthorName: e.viewer.Name,
		CreatedAt:  now,
	}
	optimistic := snapshot.Clone()
	optimistic.Notes = appendNote(optimistic.Notes, provisional)
	e.store.ReplaceTodo(optimistic)
	e.store.ClearFlash(id)

	note, err := e.service.AddNote(ctx, id, content)
	if e.isClosed() {
		return nil
	}
	defer e.store.EndPending(key)
	if err != nil {
		e.store.ReplaceTodo(snapshot)
		e.store.SetFlash(id, UserMessage(err))
		return fmt.Errorf("add note: %w", err)
	}

	confirmed := snapshot.Clone()
	confirmed.Notes = appendNote(confirmed.Notes, note)
	e.store.ReplaceTodo(confirmed)
	return nil
}

// DeleteNote removes a note from a todo. Only the note's author may delete
// it, unless the engine runs in preview mode.
func (e *Engine) DeleteNote(ctx context.Context, id, noteID string) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	snapshot, ok := e.store.TodoByID(id)
	if !ok {
		return fmt.Errorf("delete note %s: %w", id, ErrTodoNotFound)
	}
	note, found := findNote(snapshot.Notes, noteID)
	if !found {
		return fmt.Errorf("delete note %s: %w", noteID, ErrNoteNotFound)
	}
	if !e.preview && note.MemberID != e.viewer.ID {
		return fmt.Errorf("delete note %s: %w", noteID, ErrNotNoteAuthor)
	}

	key := PendingKey{ID: id, Kind: OpNoteDelete}
	if !e.store.BeginPending(key) {
		return fmt.Errorf("delete note %s: %w", id, ErrOperationPending)
	}

	optimistic := snapshot.Clone()
	optimistic.Notes = removeNote(optimistic.Notes, noteID)
	e.store.ReplaceTodo(optimistic)
	e.store.ClearFlash(id)

	err := e.service.DeleteNote(ctx, id, noteID)
	if e.isClosed() {
		return nil
	}
	defer e.store.EndPending(key)
	if err != nil {
		e.store.ReplaceTodo(snapshot)
		e.store.SetFlash(id, UserMessage(err))
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

// AttachMedia links externally selected attachments to a todo. Descriptors
// are deduplicated by attachment ID before submission, last occurrence
// winning. The portal computes the resulting media list, so reconciliation
// replaces the whole entity.
func (e *Engine) AttachMedia(ctx context.Context, id string, descriptors []MediaAttachment) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	deduped := dedupeByAttachmentID(descriptors)
	if len(deduped) == 0 {
		return ErrNoAttachments
	}
	snapshot, ok := e.store.TodoByID(id)
	if !ok {
		return fmt.Errorf("attach media %s: %w", id, ErrTodoNotFound)
	}

	key := PendingKey{ID: id, Kind: OpMediaAdd}
	if !e.store.BeginPending(key) {
		return fmt.Errorf("attach media %s: %w", id, ErrOperationPending)
	}

	optimistic := snapshot.Clone()
	for _, descriptor := range deduped {
		descriptor.TodoID = id
		optimistic.Media = appendMedia(optimistic.Media, descriptor)
	}
	e.store.ReplaceTodo(optimistic)
	e.store.ClearFlash(id)

	attachmentIDs := make([]string, 0, len(deduped))
	for _, descriptor := range deduped {
		attachmentIDs = append(attachmentIDs, descriptor.AttachmentID)
	}

	updated, err := e.service.AttachMedia(ctx, id, attachmentIDs)
	if e.isClosed() {
		return nil
	}
	defer e.store.EndPending(key)
	if err != nil {
		e.store.ReplaceTodo(snapshot)
		e.store.SetFlash(id, UserMessage(err))
		return fmt.Errorf("attach media: %w", err)
	}
	e.store.ReplaceTodo(updated)
	return nil
}

// DetachMedia removes a single attachment from a todo.
func (e *Engine) DetachMedia(ctx context.Context, id, attachmentID string) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	snapshot, ok := e.store.TodoByID(id)
	if !ok {
		return fmt.Errorf("detach media %s: %w", id, ErrTodoNotFound)
	}
	if !hasAttachment(snapshot.Media, attachmentID) {
		return fmt.Errorf("detach media %s: %w", attachmentID, ErrAttachmentNotFound)
	}

	key := PendingKey{ID: id, Kind: OpMediaRemove}
	if !e.store.BeginPending(key) {
		return fmt.Errorf("detach media %s: %w", id, ErrOperationPending)
	}

	optimistic := snapshot.Clone()
	optimistic.Media = removeAttachment(optimistic.Media, attachmentID)
	e.store.ReplaceTodo(optimistic)
	e.store.ClearFlash(id)

	updated, err := e.service.DetachMedia(ctx, id, attachmentID)
	if e.isClosed() {
		return nil
	}
	defer e.store.EndPending(key)
	if err != nil {
		e.store.ReplaceTodo(snapshot)
		e.store.SetFlash(id, UserMessage(err))
		return fmt.Errorf("detach media: %w", err)
	}
	e.store.ReplaceTodo(updated)
	return nil
}

// CreateProject creates a project, optimistically adding a local entry and
// replacing it with the portal's canonical one.
func (e *Engine) CreateProject(ctx context.Context, title string) (Project, error) {
	if e.isClosed() {
		return Project{}, ErrEngineClosed
	}
	if err := ValidateTitle(title); err != nil {
		return Project{}, err
	}

	local := Project{ID: NewLocalID(title, e.now()), Title: title}
	e.store.UpsertProject(local)

	created, err := e.service.CreateProject(ctx, title)
	if e.isClosed() {
		return local, nil
	}
	if err != nil {
		e.store.RemoveProject(local.ID)
		return Project{}, fmt.Errorf("create project: %w", err)
	}
	e.store.RemoveProject(local.ID)
	e.store.UpsertProject(created)
	return created, nil
}

// StartEdit copies a todo's mutable fields into a draft for the host's edit
// form.
func (e *Engine) StartEdit(id string) error {
	todo, ok := e.store.TodoByID(id)
	if !ok {
		return fmt.Errorf("edit %s: %w", id, ErrTodoNotFound)
	}
	e.ui.StartEdit(todo)
	return nil
}

// SubmitEdit validates the draft for a todo and runs it through the update
// protocol. On success the draft is discarded in favor of the canonical
// entity; on failure it stays put so the member can correct it.
func (e *Engine) SubmitEdit(ctx context.Context, id string) error {
	draft, ok := e.ui.Draft(id)
	if !ok {
		return fmt.Errorf("submit edit %s: no draft", id)
	}
	if err := ValidateTitle(draft.Title); err != nil {
		return err
	}
	err := e.Update(ctx, id, UpdateFields{
		Title:       StringPtr(draft.Title),
		Description: StringPtr(draft.Description),
		Emoji:       StringPtr(draft.Emoji),
	})
	if err != nil {
		return err
	}
	e.ui.CancelEdit(id)
	return nil
}

// syncUI recomputes the transient flag table from the active identity set.
func (e *Engine) syncUI() {
	active := e.store.Active()
	ids := make([]string, len(active))
	for i, todo := range active {
		ids[i] = todo.ID
	}
	e.ui.Sync(ids)
}

func findNote(notes []Note, noteID string) (Note, bool) {
	for _, note := range notes {
		if note.ID == noteID {
			return note, true
		}
	}
	return Note{}, false
}

func removeNote(notes []Note, noteID string) []Note {
	remaining := notes[:0]
	for _, note := range notes {
		if note.ID != noteID {
			remaining = append(remaining, note)
		}
	}
	return remaining
}

// dedupeByAttachmentID keeps the last occurrence per attachment ID while
// preserving first-seen order.
func dedupeByAttachmentID(descriptors []MediaAttachment) []MediaAttachment {
	deduped := make([]MediaAttachment, 0, len(descriptors))
	for _, descriptor := range descriptors {
		if descriptor.AttachmentID == "" {
			continue
		}
		deduped = appendMedia(deduped, descriptor)
	}
	return deduped
}

func hasAttachment(media []MediaAttachment, attachmentID string) bool {
	for _, attachment := range media {
		if attachment.AttachmentID == attachmentID {
			return true
		}
	}
	return false
}

func removeAttachment(media []MediaAttachment, attachmentID string) []MediaAttachment {
	remaining := media[:0]
	for _, attachment := range media {
		if attachment.AttachmentID != attachmentID {
			remaining = append(remaining, attachment)
		}
	}
	return remaining
}
