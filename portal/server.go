package portal

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mjpery-beep/tasklist/tasklist"
)

// ServerOptions configures a reference portal server.
type ServerOptions struct {
	// Token, when set, is required in the Authorization header. Requests
	// with a missing or wrong token get the portal's login page, which
	// clients detect as an expired session.
	Token string

	// ActingMember authors notes created through the server.
	ActingMember tasklist.Member

	// Members seeds the member directory.
	Members []tasklist.Member

	// Projects seeds the project list.
	Projects []tasklist.Project

	// Todos seeds the active collection.
	Todos []tasklist.Todo

	// Library resolves attachment IDs to file metadata. Unknown IDs get a
	// minimal placeholder record.
	Library map[string]tasklist.MediaAttachment

	// Logger receives request logging. Defaults to stderr.
	Logger *log.Logger

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Server is an in-memory implementation of the portal task-list API, used by
// tests and the demo command. It honors the contract details the engine
// reconciles against: archiving stamps an authoritative completion
// timestamp, toggling reorders the active list, and media sub-lists are
// computed server-side.
type Server struct {
	token   string
	acting  tasklist.Member
	library map[string]tasklist.MediaAttachment
	logger  *log.Logger
	now     func() time.Time

	mu       sync.Mutex
	active   []tasklist.Todo
	archived []tasklist.Todo
	projects []tasklist.Project
	members  []tasklist.Member
	sequence int
}

// NewServer creates a reference server with the given seed data.
func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "portal: ", log.LstdFlags)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	library := opts.Library
	if library == nil {
		library = make(map[string]tasklist.MediaAttachment)
	}
	server := &Server{
		token:    opts.Token,
		acting:   opts.ActingMember,
		library:  library,
		logger:   logger,
		now:      now,
		projects: append([]tasklist.Project(nil), opts.Projects...),
		members:  append([]tasklist.Member(nil), opts.Members...),
	}
	for _, todo := range opts.Todos {
		server.active = append(server.active, todo.Clone())
	}
	return server
}

// Handler returns the HTTP handler for the portal API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/tasks/list", s.handle(s.handleList))
	mux.HandleFunc("/tasks/archived", s.handle(s.handleArchived))
	mux.HandleFunc("/tasks/create", s.handle(s.handleCreate))
	mux.HandleFunc("/tasks/update", s.handle(s.handleUpdate))
	mux.HandleFunc("/tasks/toggle", s.handle(s.handleToggle))
	mux.HandleFunc("/tasks/archive", s.handle(s.handleArchive))
	mux.HandleFunc("/tasks/restore", s.handle(s.handleRestore))
	mux.HandleFunc("/tasks/delete", s.handle(s.handleDelete))
	mux.HandleFunc("/tasks/notes/add", s.handle(s.handleNoteAdd))
	mux.HandleFunc("/tasks/notes/delete", s.handle(s.handleNoteDelete))
	mux.HandleFunc("/tasks/media/attach", s.handle(s.handleMediaAttach))
	mux.HandleFunc("/tasks/media/detach", s.handle(s.handleMediaDetach))
	mux.HandleFunc("/projects/create", s.handle(s.handleProjectCreate))
	return mux
}

// Serve runs the server on the given address until the listener fails.
func (s *Server) Serve(addr string) error {
	server := &http.Server{Addr: addr, Handler: s.Handler(), ErrorLog: s.logger}
	s.logger.Printf("listening on %s", addr)
	return server.ListenAndServe()
}

type handlerFunc func(body []byte) (any, error)

// handle wraps a route with method, auth, and envelope handling.
func (s *Server) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeFailure(w, "method not allowed")
			return
		}
		if !s.authorized(r) {
			writeLoginPage(w)
			return
		}
		body := make([]byte, 0)
		if r.Body != nil {
			decoded, err := readBody(r)
			if err != nil {
				writeFailure(w, err.Error())
				return
			}
			body = decoded
		}
		data, err := fn(body)
		if err != nil {
			writeFailure(w, err.Error())
			return
		}
		writeSuccess(w, data)
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+s.token
}

func readBody(r *http.Request) ([]byte, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return raw, nil
}

func writeSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: mustMarshal(data)})
}

func writeFailure(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: &envelopeError{Message: message}})
}

// writeLoginPage mimics the portal's session redirect: markup where the
// client expected JSON.
func writeLoginPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprint(w, "<!doctype html><html><head><title>Sign in</title></head><body>Your session has expired.</body></html>")
}

func mustMarshal(data any) json.RawMessage {
	if data == nil {
		return nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return encoded
}

func (s *Server) handleList(body []byte) (any, error) {
	var filter tasklist.ListFilter
	if len(body) > 0 {
		if err := json.Unmarshal(body, &filter); err != nil {
			return nil, fmt.Errorf("decode filter: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	index := make(map[string]tasklist.Project, len(s.projects))
	for _, project := range s.projects {
		index[project.ID] = project
	}
	visible := tasklist.VisibleTodos(s.active, index, filter, tasklist.SortPriority)
	for i, todo := range visible {
		visible[i] = todo.Clone()
	}
	return tasklist.ActiveList{
		Todos:    visible,
		Projects: append([]tasklist.Project(nil), s.projects...),
		Members:  append([]tasklist.Member(nil), s.members...),
	}, nil
}

func (s *Server) handleArchived(body []byte) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	archived := make([]tasklist.Todo, len(s.archived))
	for i, todo := range s.archived {
		archived[i] = todo.Clone()
	}
	return tasklist.ArchivedList{
		Todos:    archived,
		Projects: append([]tasklist.Project(nil), s.projects...),
	}, nil
}

func (s *Server) handleCreate(body []byte) (any, error) {
	var fields tasklist.CreateFields
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	if err := tasklist.ValidateTitle(fields.Title); err != nil {
		return nil, err
	}
	if len(fields.AssigneeIDs) == 0 {
		return nil, tasklist.ErrNoAssignees
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	todo := tasklist.Todo{
		ID:          s.nextIDLocked("todo"),
		Title:       fields.Title,
		Description: fields.Description,
		Status:      tasklist.StatusOpen,
		Priority:    tasklist.NormalizePriority(fields.Priority),
		ProjectID:   fields.ProjectID,
		DueDate:     fields.DueDate,
		Emoji:       fields.Emoji,
		Assignees:   s.resolveMembersLocked(fields.AssigneeIDs),
	}
	s.active = append(s.active, todo)
	return todo.Clone(), nil
}

func (s *Server) handleUpdate(body []byte) (any, error) {
	var request struct {
		ID     string                `json:"id"`
		Fields tasklist.UpdateFields `json:"fields"`
	}
	if err := json.Unmarshal(body, &request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	todo, err := s.findLocked(request.ID)
	if err != nil {
		return nil, err
	}
	if request.Fields.Title != nil {
		if err := tasklist.ValidateTitle(*request.Fields.Title); err != nil {
			return nil, err
		}
		todo.Title = *request.Fields.Title
	}
	if request.Fields.Description != nil {
		todo.Description = *request.Fields.Description
	}
	if request.Fields.Priority != nil {
		todo.Priority = tasklist.NormalizePriority(*request.Fields.Priority)
	}
	if request.Fields.ProjectID != nil {
		todo.ProjectID = *request.Fields.ProjectID
	}
	if request.Fields.DueDate != nil {
		due := *request.Fields.DueDate
		todo.DueDate = &due
	}
	if request.Fields.Emoji != nil {
		todo.Emoji = *request.Fields.Emoji
	}
	return todo.Clone(), nil
}

func (s *Server) handleToggle(body []byte) (any, error) {
	var request struct {
		ID       string `json:"id"`
		Complete bool   `json:"complete"`
	}
	if err := json.Unmarshal(body, &request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	index := s.activeIndexLocked(request.ID)
	if index < 0 {
		return nil, fmt.Errorf("todo %s not found", request.ID)
	}
	if request.Complete {
		s.active[index].Status = tasklist.StatusCompleted
		now := s.now()
		s.active[index].CompletedAt = &now
		// Completed todos sink to the bottom of the list; clients pick
		// up the new order from the next fetch.
		completed := s.active[index]
		s.active = append(s.active[:index], s.active[index+1:]...)
		s.active = append(s.active, completed)
	} else {
		s.active[index].Status = tasklist.StatusOpen
		s.active[index].CompletedAt = nil
	}
	return nil, nil
}

func (s *Server) handleArchive(body []byte) (any, error) {
	var request idRequest
	if err := json.Unmarshal(body, &request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	index := s.activeIndexLocked(request.ID)
	if index < 0 {
		return nil, fmt.Errorf("todo %s not found", request.ID)
	}
	todo := s.active[index]
	s.active = append(s.active[:index], s.active[index+1:]...)
	todo.Status = tasklist.StatusArchived
	if todo.CompletedAt == nil {
		now := s.now()
		todo.CompletedAt = &now
	}
	s.archived = append(s.archived, todo)
	return todo.Clone(), nil
}

func (s *Server) handleRestore(body []byte) (any, error) {
	var request idRequest
	if err := json.Unmarshal(body, &request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	index := s.archivedIndexLocked(request.ID)
	if index < 0 {
		return nil, fmt.Errorf("todo %s not found", request.ID)
	}
	todo := s.archived[index]
	s.archived = append(s.archived[:index], s.archived[index+1:]...)
	todo.Status = tasklist.StatusOpen
	todo.CompletedAt = nil
	s.active = append(s.active, todo)
	// The portal orders restored todos by priority; clients refresh to
	// pick up the computed position.
	sort.SliceStable(s.active, func(i, j int) bool {
		return s.active[i].Priority > s.active[j].Priority
	})
	return todo.Clone(), nil
}

func (s *Server) handleDelete(body []byte) (any, error) {
	var request idRequest
	if err := json.Unmarshal(body, &request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	index := s.archivedIndexLocked(request.ID)
	if index < 0 {
		return nil, tasklist.ErrNotArchived
	}
	s.archived = append(s.archived[:index], s.archived[index+1:]...)
	return nil, nil
}

func (s *Server) handleNoteAdd(body []byte) (any, error) {
	var request struct {
		ID      string `json:"id"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(body, &request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if err := tasklist.ValidateNoteContent(request.Content); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	todo, err := s.findLocked(request.ID)
	if err != nil {
		return nil, err
	}
	note := tasklist.Note{
		ID:         s.nextIDLocked("note"),
		TodoID:     todo.ID,
		MemberID:   s.acting.ID,
		Content:    request.Content,
		AuthorName: s.acting.Name,
		CreatedAt:  s.now(),
	}
	todo.Notes = append(todo.Notes, note)
	return note, nil
}

func (s *Server) handleNoteDelete(body []byte) (any, error) {
	var request struct {
		ID     string `json:"id"`
		NoteID string `json:"noteId"`
	}
	if err := json.Unmarshal(body, &request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	todo, err := s.findLocked(request.ID)
	if err != nil {
		return nil, err
	}
	for i, note := range todo.Notes {
		if note.ID == request.NoteID {
			todo.Notes = append(todo.Notes[:i], todo.Notes[i+1:]...)
			return nil, nil
		}
	}
	return nil, tasklist.ErrNoteNotFound
}

func (s *Server) handleMediaAttach(body []byte) (any, error) {
	var request struct {
		ID            string   `json:"id"`
		AttachmentIDs []string `json:"attachmentIds"`
	}
	if err := json.Unmarshal(body, &request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if len(request.AttachmentIDs) == 0 {
		return nil, tasklist.ErrNoAttachments
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	todo, err := s.findLocked(request.ID)
	if err != nil {
		return nil, err
	}
	for _, attachmentID := range request.AttachmentIDs {
		attachment := s.libraryEntryLocked(attachmentID)
		attachment.TodoID = todo.ID
		attachment.AddedAt = s.now()
		attachment.AddedBy = s.acting.ID
		todo.Media = upsertAttachment(todo.Media, attachment)
	}
	return todo.Clone(), nil
}

func (s *Server) handleMediaDetach(body []byte) (any, error) {
	var request struct {
		ID           string `json:"id"`
		AttachmentID string `json:"attachmentId"`
	}
	if err := json.Unmarshal(body, &request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	todo, err := s.findLocked(request.ID)
	if err != nil {
		return nil, err
	}
	for i, attachment := range todo.Media {
		if attachment.AttachmentID == request.AttachmentID {
			todo.Media = append(todo.Media[:i], todo.Media[i+1:]...)
			return todo.Clone(), nil
		}
	}
	return nil, tasklist.ErrAttachmentNotFound
}

func (s *Server) handleProjectCreate(body []byte) (any, error) {
	var request struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(body, &request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if err := tasklist.ValidateTitle(request.Title); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	project := tasklist.Project{ID: s.nextIDLocked("project"), Title: request.Title}
	s.projects = append(s.projects, project)
	return project, nil
}

func (s *Server) nextIDLocked(kind string) string {
	s.sequence++
	return fmt.Sprintf("%s-%d", kind, s.sequence)
}

func (s *Server) resolveMembersLocked(ids []string) []tasklist.Member {
	members := make([]tasklist.Member, 0, len(ids))
	for _, id := range ids {
		found := false
		for _, member := range s.members {
			if member.ID == id {
				members = append(members, member)
				found = true
				break
			}
		}
		if !found {
			members = append(members, tasklist.Member{ID: id})
		}
	}
	return members
}

func (s *Server) activeIndexLocked(id string) int {
	for i := range s.active {
		if s.active[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) archivedIndexLocked(id string) int {
	for i := range s.archived {
		if s.archived[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) findLocked(id string) (*tasklist.Todo, error) {
	if i := s.activeIndexLocked(id); i >= 0 {
		return &s.active[i], nil
	}
	if i := s.archivedIndexLocked(id); i >= 0 {
		return &s.archived[i], nil
	}
	return nil, fmt.Errorf("todo %s not found", id)
}

func (s *Server) libraryEntryLocked(attachmentID string) tasklist.MediaAttachment {
	if attachment, ok := s.library[attachmentID]; ok {
		return attachment
	}
	return tasklist.MediaAttachment{
		ID:           attachmentID,
		AttachmentID: attachmentID,
		Filename:     attachmentID,
		Type:         "file",
	}
}

func upsertAttachment(media []tasklist.MediaAttachment, attachment tasklist.MediaAttachment) []tasklist.MediaAttachment {
	for i, existing := range media {
		if existing.AttachmentID == attachment.AttachmentID {
			media[i] = attachment
			return media
		}
	}
	return append(media, attachment)
}

// ResolveAddr normalizes a listen address: a bare port becomes
// 127.0.0.1:<port>.
func ResolveAddr(addr string) (string, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return "", fmt.Errorf("address is required")
	}
	if strings.Contains(trimmed, ":") {
		return trimmed, nil
	}
	return "127.0.0.1:" + trimmed, nil
}
