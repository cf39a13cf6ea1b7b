package tasklist

import "time"

// Todo represents a single shared task.
type Todo struct {
	// ID is the unique identifier. Optimistically created todos carry a
	// locally generated ID until the portal confirms them.
	ID string `json:"id"`

	// Title is the short summary of the todo (max 500 chars).
	Title string `json:"title"`

	// Description provides additional context.
	Description string `json:"description,omitempty"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Priority is the importance level (1=lowest, 5=highest).
	Priority int `json:"priority"`

	// ProjectID links the todo to a project ("" when unfiled).
	ProjectID string `json:"projectId,omitempty"`

	// DueDate is when the todo is due (nil when no due date is set).
	DueDate *time.Time `json:"dueDate,omitempty"`

	// CompletedAt is when the todo was completed (nil while open).
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Emoji is an optional decoration chosen by the member.
	Emoji string `json:"emoji,omitempty"`

	// Assignees are the members responsible for the todo. A todo always
	// has at least one assignee at creation time.
	Assignees []Member `json:"assignees"`

	// Notes are free-text comments attached to the todo.
	Notes []Note `json:"notes,omitempty"`

	// Media are file attachments linked to the todo.
	Media []MediaAttachment `json:"media,omitempty"`
}

// Clone returns a deep copy of the todo.
func (t Todo) Clone() Todo {
	copied := t
	if t.DueDate != nil {
		due := *t.DueDate
		copied.DueDate = &due
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		copied.CompletedAt = &completed
	}
	copied.Assignees = append([]Member(nil), t.Assignees...)
	copied.Notes = append([]Note(nil), t.Notes...)
	copied.Media = append([]MediaAttachment(nil), t.Media...)
	return copied
}

// Project groups todos under a shared label.
type Project struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Color string `json:"color,omitempty"`
}

// Note is a free-text comment on a todo.
type Note struct {
	ID         string    `json:"id"`
	TodoID     string    `json:"todoId,omitempty"`
	MemberID   string    `json:"memberId"`
	Content    string    `json:"content"`
	AuthorName string    `json:"authorName,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MediaAttachment is a file attached to a todo. AttachmentID references the
// externally stored file; the remaining fields are display metadata.
type MediaAttachment struct {
	ID           string    `json:"id"`
	TodoID       string    `json:"todoId,omitempty"`
	AttachmentID string    `json:"attachmentId"`
	Title        string    `json:"title,omitempty"`
	Filename     string    `json:"filename,omitempty"`
	URL          string    `json:"url,omitempty"`
	PreviewURL   string    `json:"previewUrl,omitempty"`
	IconURL      string    `json:"iconUrl,omitempty"`
	MimeType     string    `json:"mimeType,omitempty"`
	Type         string    `json:"type,omitempty"`
	AddedAt      time.Time `json:"addedAt"`
	AddedBy      string    `json:"addedBy,omitempty"`
}

// Member is a portal member who can be assigned todos and author notes.
type Member struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role,omitempty"`
	IsSelf bool   `json:"isSelf,omitempty"`
	Avatar Avatar `json:"avatar"`
}

// Avatar holds the display identity for a member.
type Avatar struct {
	URL      string `json:"url,omitempty"`
	Initials string `json:"initials,omitempty"`
	Alt      string `json:"alt,omitempty"`
}
