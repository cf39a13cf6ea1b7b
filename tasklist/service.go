package tasklist

import (
	"context"
	"time"
)

// Service is the remote portal boundary the engine mutates against. Any
// transport error, unsuccessful envelope, or malformed payload surfaces as a
// non-nil error and routes the calling mutation to its rollback branch.
//
// Archive and Restore may return nil without error when the portal confirms
// the move without sending an updated entity; the optimistic value then
// stands as canonical.
type Service interface {
	FetchActive(ctx context.Context, filter ListFilter) (ActiveList, error)
	FetchArchived(ctx context.Context) (ArchivedList, error)
	Create(ctx context.Context, fields CreateFields) (Todo, error)
	Update(ctx context.Context, id string, fields UpdateFields) (Todo, error)
	Toggle(ctx context.Context, id string, complete bool) error
	Archive(ctx context.Context, id string) (*Todo, error)
	Restore(ctx context.Context, id string) (*Todo, error)
	Delete(ctx context.Context, id string) error
	AddNote(ctx context.Context, id, content string) (Note, error)
	DeleteNote(ctx context.Context, id, noteID string) error
	AttachMedia(ctx context.Context, id string, attachmentIDs []string) (Todo, error)
	DetachMedia(ctx context.Context, id, attachmentID string) (Todo, error)
	CreateProject(ctx context.Context, title string) (Project, error)
}

// ActiveList is the payload of a fetchActive call.
type ActiveList struct {
	Todos    []Todo    `json:"todos"`
	Projects []Project `json:"projects"`
	Members  []Member  `json:"members"`
}

// ArchivedList is the payload of a fetchArchived call.
type ArchivedList struct {
	Todos    []Todo    `json:"todos"`
	Projects []Project `json:"projects"`
}

// CreateFields configures a new todo.
type CreateFields struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    int        `json:"priority,omitempty"`
	ProjectID   string     `json:"projectId,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Emoji       string     `json:"emoji,omitempty"`

	// AssigneeIDs must name at least one member.
	AssigneeIDs []string `json:"assigneeIds"`
}

// UpdateFields configures fields to update on a todo.
// Nil pointers mean "don't update this field".
type UpdateFields struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Priority    *int       `json:"priority,omitempty"`
	ProjectID   *string    `json:"projectId,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Emoji       *string    `json:"emoji,omitempty"`
}

// StringPtr returns a pointer to the provided string.
func StringPtr(value string) *string {
	return &value
}

// IntPtr returns a pointer to the provided int.
func IntPtr(value int) *int {
	return &value
}
