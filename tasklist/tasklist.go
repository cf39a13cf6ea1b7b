// Package tasklist implements the shared task-list engine for the member
// portal: canonical todo/project/member state, optimistic mutations against
// the remote portal service, and the derived views the rendering layer
// consumes.
//
// The engine applies every mutation locally first, then reconciles with the
// portal's response: a confirmed entity replaces the optimistic one, and a
// failed request rolls the store back to the snapshot taken before the
// mutation. A pending set keyed by (entity id, operation kind) guarantees at
// most one outstanding request per pair.
//
// The public API mirrors the portal actions:
//   - Create, Update, Toggle, SetPriority for todo edits
//   - Archive, Restore, Delete for lifecycle moves
//   - AddNote, DeleteNote, AttachMedia, DetachMedia for sub-collections
//   - RefreshActive, RefreshArchived, CreateProject for list management
package tasklist

// Status represents the lifecycle state of a todo.
type Status string

const (
	// StatusOpen indicates the todo is still to be done.
	StatusOpen Status = "open"

	// StatusCompleted indicates the todo has been checked off.
	StatusCompleted Status = "completed"

	// StatusArchived indicates the todo has been moved out of the active
	// list. Archived todos can be restored or permanently deleted.
	StatusArchived Status = "archived"
)

// ValidStatuses returns all valid status values.
func ValidStatuses() []Status {
	return []Status{StatusOpen, StatusCompleted, StatusArchived}
}

// IsValid returns true if the status is a known valid value.
func (s Status) IsValid() bool {
	for _, valid := range ValidStatuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// OpKind identifies a mutation kind for pending-request bookkeeping.
type OpKind string

const (
	OpToggle      OpKind = "toggle"
	OpUpdate      OpKind = "update"
	OpArchive     OpKind = "archive"
	OpRestore     OpKind = "restore"
	OpDelete      OpKind = "delete"
	OpPriority    OpKind = "priority"
	OpNoteAdd     OpKind = "note-add"
	OpNoteDelete  OpKind = "note-delete"
	OpMediaAdd    OpKind = "media-add"
	OpMediaRemove OpKind = "media-remove"
)

// Priority constants for todos.
const (
	PriorityMin     = 1
	PriorityMax     = 5
	PriorityDefault = 3
)

// NormalizePriority coerces a requested priority into the valid range.
// Values above PriorityMax clamp to PriorityMax; non-positive values fall
// back to PriorityDefault.
func NormalizePriority(priority int) int {
	if priority > PriorityMax {
		return PriorityMax
	}
	if priority < PriorityMin {
		return PriorityDefault
	}
	return priority
}

// MaxTitleLength is the maximum allowed length for a todo title.
const MaxTitleLength = 500
