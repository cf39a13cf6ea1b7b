// Package portal speaks the member portal's task-list wire protocol.
//
// Every call POSTs a JSON body to one route and reads back an envelope
// {success, data?, error?: {message}}. The client implements
// tasklist.Service: envelope failures, transport errors, and malformed
// payloads all surface as errors, which the engine routes to its rollback
// branch. Responses that come back empty or markup-shaped where JSON was
// expected indicate an expired session and map to tasklist.ErrSessionExpired.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mjpery-beep/tasklist/tasklist"
)

// Client calls the portal task-list API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a client for the given address or URL. The token is the
// opaque authorization string supplied by the host environment.
func NewClient(addr, token string) *Client {
	baseURL := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return &Client{baseURL: baseURL, token: token, client: &http.Client{}}
}

var _ tasklist.Service = (*Client)(nil)

// envelope is the portal's uniform response shape.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *envelopeError  `json:"error,omitempty"`
}

type envelopeError struct {
	Message string `json:"message"`
}

type idRequest struct {
	ID string `json:"id"`
}

// FetchActive retrieves the active todos, projects, and members.
func (c *Client) FetchActive(ctx context.Context, filter tasklist.ListFilter) (tasklist.ActiveList, error) {
	var payload struct {
		Todos    []tasklist.Record `json:"todos"`
		Projects []tasklist.Record `json:"projects"`
		Members  []tasklist.Record `json:"members"`
	}
	if err := c.post(ctx, "/tasks/list", filter, &payload); err != nil {
		return tasklist.ActiveList{}, err
	}
	return tasklist.ActiveList{
		Todos:    tasklist.NormalizeTodos(payload.Todos),
		Projects: tasklist.NormalizeProjects(payload.Projects),
		Members:  tasklist.NormalizeMembers(payload.Members),
	}, nil
}

// FetchArchived retrieves the archived todos and their projects.
func (c *Client) FetchArchived(ctx context.Context) (tasklist.ArchivedList, error) {
	var payload struct {
		Todos    []tasklist.Record `json:"todos"`
		Projects []tasklist.Record `json:"projects"`
	}
	if err := c.post(ctx, "/tasks/archived", struct{}{}, &payload); err != nil {
		return tasklist.ArchivedList{}, err
	}
	return tasklist.ArchivedList{
		Todos:    tasklist.NormalizeTodos(payload.Todos),
		Projects: tasklist.NormalizeProjects(payload.Projects),
	}, nil
}

// Create creates a todo and returns the canonical entity.
func (c *Client) Create(ctx context.Context, fields tasklist.CreateFields) (tasklist.Todo, error) {
	return c.postTodo(ctx, "/tasks/create", fields)
}

// Update edits a todo and returns the canonical entity.
func (c *Client) Update(ctx context.Context, id string, fields tasklist.UpdateFields) (tasklist.Todo, error) {
	request := struct {
		ID     string                `json:"id"`
		Fields tasklist.UpdateFields `json:"fields"`
	}{ID: id, Fields: fields}
	return c.postTodo(ctx, "/tasks/update", request)
}

// Toggle flips a todo's completion state. The portal acks without a body.
func (c *Client) Toggle(ctx context.Context, id string, complete bool) error {
	request := struct {
		ID       string `json:"id"`
		Complete bool   `json:"complete"`
	}{ID: id, Complete: complete}
	return c.post(ctx, "/tasks/toggle", request, nil)
}

// Archive moves a todo to the archive. The portal may omit the entity.
func (c *Client) Archive(ctx context.Context, id string) (*tasklist.Todo, error) {
	return c.postOptionalTodo(ctx, "/tasks/archive", idRequest{ID: id})
}

// Restore moves an archived todo back to the active list.
func (c *Client) Restore(ctx context.Context, id string) (*tasklist.Todo, error) {
	return c.postOptionalTodo(ctx, "/tasks/restore", idRequest{ID: id})
}

// Delete permanently removes an archived todo.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.post(ctx, "/tasks/delete", idRequest{ID: id}, nil)
}

// AddNote appends a note and returns the canonical note.
func (c *Client) AddNote(ctx context.Context, id, content string) (tasklist.Note, error) {
	request := struct {
		ID      string `json:"id"`
		Content string `json:"content"`
	}{ID: id, Content: content}
	var record tasklist.Record
	if err := c.post(ctx, "/tasks/notes/add", request, &record); err != nil {
		return tasklist.Note{}, err
	}
	note, ok := tasklist.NormalizeNote(record)
	if !ok {
		return tasklist.Note{}, fmt.Errorf("portal: note payload missing id")
	}
	return note, nil
}

// DeleteNote removes a note from a todo.
func (c *Client) DeleteNote(ctx context.Context, id, noteID string) error {
	request := struct {
		ID     string `json:"id"`
		NoteID string `json:"noteId"`
	}{ID: id, NoteID: noteID}
	return c.post(ctx, "/tasks/notes/delete", request, nil)
}

// AttachMedia links attachments to a todo and returns the updated entity.
// The attached-media sub-list is computed by the portal.
func (c *Client) AttachMedia(ctx context.Context, id string, attachmentIDs []string) (tasklist.Todo, error) {
	request := struct {
		ID            string   `json:"id"`
		AttachmentIDs []string `json:"attachmentIds"`
	}{ID: id, AttachmentIDs: attachmentIDs}
	return c.postTodo(ctx, "/tasks/media/attach", request)
}

// DetachMedia removes one attachment and returns the updated entity.
func (c *Client) DetachMedia(ctx context.Context, id, attachmentID string) (tasklist.Todo, error) {
	request := struct {
		ID           string `json:"id"`
		AttachmentID string `json:"attachmentId"`
	}{ID: id, AttachmentID: attachmentID}
	return c.postTodo(ctx, "/tasks/media/detach", request)
}

// CreateProject creates a project and returns the canonical entity.
func (c *Client) CreateProject(ctx context.Context, title string) (tasklist.Project, error) {
	request := struct {
		Title string `json:"title"`
	}{Title: title}
	var record tasklist.Record
	if err := c.post(ctx, "/projects/create", request, &record); err != nil {
		return tasklist.Project{}, err
	}
	project, ok := tasklist.NormalizeProject(record)
	if !ok {
		return tasklist.Project{}, fmt.Errorf("portal: project payload missing id")
	}
	return project, nil
}

func (c *Client) postTodo(ctx context.Context, path string, payload any) (tasklist.Todo, error) {
	var record tasklist.Record
	if err := c.post(ctx, path, payload, &record); err != nil {
		return tasklist.Todo{}, err
	}
	todo, ok := tasklist.NormalizeTodo(record)
	if !ok {
		return tasklist.Todo{}, fmt.Errorf("portal: todo payload missing id")
	}
	return todo, nil
}

func (c *Client) postOptionalTodo(ctx context.Context, path string, payload any) (*tasklist.Todo, error) {
	var record tasklist.Record
	if err := c.post(ctx, path, payload, &record); err != nil {
		return nil, err
	}
	todo, ok := tasklist.NormalizeTodo(record)
	if !ok {
		return nil, nil
	}
	return &todo, nil
}

// post sends one request and decodes the envelope. A nil dest means the
// caller only needs the ack; a non-nil dest requires a data payload.
func (c *Client) post(ctx context.Context, path string, payload any, dest any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if sessionExpired(resp, body) {
		return tasklist.ErrSessionExpired
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("portal: %s", resp.Status)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("portal: decode response: %w", err)
	}
	if !env.Success {
		if env.Error != nil && env.Error.Message != "" {
			return fmt.Errorf("portal: %s", env.Error.Message)
		}
		return fmt.Errorf("portal: request failed")
	}
	if dest == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		// Successful envelope with a missing payload; some routes
		// legitimately omit the entity.
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return fmt.Errorf("portal: decode payload: %w", err)
	}
	return nil
}

// sessionExpired detects the portal's login redirect: an empty body or a
// markup-shaped response where structured data was expected.
func sessionExpired(resp *http.Response, body []byte) bool {
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return true
	}
	return trimmed[0] == '<'
}
