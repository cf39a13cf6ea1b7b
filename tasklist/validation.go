package tasklist

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyTitle is returned when a todo title is empty.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrTitleTooLong is returned when a todo title exceeds MaxTitleLength.
	ErrTitleTooLong = errors.New("title exceeds maximum length")

	// ErrNoAssignees is returned when a todo is created without assignees.
	ErrNoAssignees = errors.New("at least one assignee is required")

	// ErrEmptyNote is returned when a note has no content.
	ErrEmptyNote = errors.New("note content cannot be empty")

	// ErrNoAttachments is returned when a media attach has no descriptors.
	ErrNoAttachments = errors.New("no attachments selected")

	// ErrTodoNotFound is returned when a todo with the given ID doesn't exist.
	ErrTodoNotFound = errors.New("todo not found")

	// ErrNoteNotFound is returned when a note with the given ID doesn't exist.
	ErrNoteNotFound = errors.New("note not found")

	// ErrAttachmentNotFound is returned when an attachment isn't on the todo.
	ErrAttachmentNotFound = errors.New("attachment not found")

	// ErrNotArchived is returned when deleting a todo that isn't archived.
	ErrNotArchived = errors.New("only archived todos can be deleted")

	// ErrAlreadyArchived is returned when archiving an archived todo.
	ErrAlreadyArchived = errors.New("todo is already archived")

	// ErrArchivedTodo is returned when toggling an archived todo. Archived
	// todos must be restored before they can be completed or reopened.
	ErrArchivedTodo = errors.New("archived todos cannot be completed or reopened")

	// ErrNotNoteAuthor is returned when deleting another member's note.
	ErrNotNoteAuthor = errors.New("only the note author can delete it")

	// ErrOperationPending is returned when a request for the same
	// (todo, operation) pair is already in flight.
	ErrOperationPending = errors.New("operation already in progress")

	// ErrEngineClosed is returned when an operation is started after Close.
	ErrEngineClosed = errors.New("engine is closed")

	// ErrSessionExpired indicates the portal rejected the session token.
	ErrSessionExpired = errors.New("session expired")
)

// User-facing messages surfaced alongside rolled-back mutations.
const (
	MessageGenericFailure = "Something went wrong. Please try again."
	MessageSessionExpired = "Your session has expired. Please sign in again."
)

// UserMessage maps a mutation failure to the message shown to the member.
func UserMessage(err error) string {
	if errors.Is(err, ErrSessionExpired) {
		return MessageSessionExpired
	}
	return MessageGenericFailure
}

// ValidateTitle checks if the title is valid.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	if len(title) > MaxTitleLength {
		return fmt.Errorf("%w: %d > %d", ErrTitleTooLong, len(title), MaxTitleLength)
	}
	return nil
}

// ValidateNoteContent checks if note content is valid.
func ValidateNoteContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyNote
	}
	return nil
}

// ValidateTodo checks if a todo struct is internally consistent.
func ValidateTodo(t *Todo) error {
	if t.ID == "" {
		return fmt.Errorf("todo has no id")
	}
	if err := ValidateTitle(t.Title); err != nil {
		return err
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status %q", t.Status)
	}
	if t.Priority < PriorityMin || t.Priority > PriorityMax {
		return fmt.Errorf("priority out of range: %d", t.Priority)
	}
	return nil
}
