package tasklist

import (
	"strconv"
	"strings"
	"time"
)

// Record is a loosely shaped incoming entity, as decoded from portal JSON.
// Field names vary between portal endpoints; the normalizer resolves each
// canonical field from an ordered list of candidate source keys.
type Record = map[string]any

// Candidate source keys per canonical field, resolved in order. The
// canonical name always comes first so normalizing an already-normalized
// record is a no-op.
var (
	todoIDKeys      = []string{"id", "todoId", "todo_id"}
	titleKeys       = []string{"title", "name"}
	descriptionKeys = []string{"description", "details"}
	statusKeys      = []string{"status", "state"}
	priorityKeys    = []string{"priority", "prio"}
	projectIDKeys   = []string{"projectId", "project_id", "project"}
	dueDateKeys     = []string{"dueDate", "due_date", "due"}
	completedAtKeys = []string{"completedAt", "completed_at"}
	emojiKeys       = []string{"emoji", "icon"}

	memberIDKeys = []string{"id", "memberId", "member_id", "userId"}
	nameKeys     = []string{"name", "displayName", "display_name"}
	roleKeys     = []string{"role"}
	isSelfKeys   = []string{"isSelf", "is_self", "self"}

	noteIDKeys       = []string{"id", "noteId", "note_id"}
	noteMemberKeys   = []string{"memberId", "member_id", "authorId"}
	contentKeys      = []string{"content", "text", "body"}
	authorNameKeys   = []string{"authorName", "author_name", "author"}
	createdAtKeys    = []string{"createdAt", "created_at", "created"}
	attachmentIDKeys = []string{"attachmentId", "attachment_id", "fileId"}
	mediaIDKeys      = []string{"id", "mediaId", "media_id"}
	filenameKeys     = []string{"filename", "fileName", "file_name"}
	urlKeys          = []string{"url", "href"}
	previewURLKeys   = []string{"previewUrl", "preview_url", "thumbnailUrl"}
	iconURLKeys      = []string{"iconUrl", "icon_url"}
	mimeTypeKeys     = []string{"mimeType", "mime_type", "contentType"}
	mediaTypeKeys    = []string{"type", "mediaType"}
	addedAtKeys      = []string{"addedAt", "added_at"}
	addedByKeys      = []string{"addedBy", "added_by"}
)

// NormalizeTodo converts a loosely shaped record into a canonical todo. The
// second return is false when the record has no resolvable identity, in
// which case the record is dropped rather than propagated.
func NormalizeTodo(record Record) (Todo, bool) {
	id := stringField(record, todoIDKeys)
	if id == "" {
		return Todo{}, false
	}

	todo := Todo{
		ID:          id,
		Title:       stringField(record, titleKeys),
		Description: stringField(record, descriptionKeys),
		Status:      normalizeStatus(stringField(record, statusKeys)),
		Priority:    normalizePriorityField(record),
		ProjectID:   stringField(record, projectIDKeys),
		DueDate:     timeField(record, dueDateKeys),
		CompletedAt: timeField(record, completedAtKeys),
		Emoji:       stringField(record, emojiKeys),
		Assignees:   []Member{},
	}

	for _, raw := range sliceField(record, "assignees", "members") {
		if member, ok := NormalizeMember(raw); ok {
			todo.Assignees = appendMember(todo.Assignees, member)
		}
	}
	for _, raw := range sliceField(record, "notes", "comments") {
		if note, ok := NormalizeNote(raw); ok {
			todo.Notes = appendNote(todo.Notes, note)
		}
	}
	for _, raw := range sliceField(record, "media", "attachments") {
		if media, ok := NormalizeMedia(raw); ok {
			todo.Media = appendMedia(todo.Media, media)
		}
	}

	return todo, true
}

// NormalizeTodos converts a batch of records, silently dropping entries
// without a resolvable identity.
func NormalizeTodos(records []Record) []Todo {
	todos := make([]Todo, 0, len(records))
	for _, record := range records {
		if todo, ok := NormalizeTodo(record); ok {
			todos = append(todos, todo)
		}
	}
	return todos
}

// NormalizeProject converts a loosely shaped record into a project.
func NormalizeProject(record Record) (Project, bool) {
	id := stringField(record, []string{"id", "projectId", "project_id"})
	if id == "" {
		return Project{}, false
	}
	return Project{
		ID:    id,
		Title: stringField(record, titleKeys),
		Color: stringField(record, []string{"color", "colour"}),
	}, true
}

// NormalizeProjects converts a batch of project records.
func NormalizeProjects(records []Record) []Project {
	projects := make([]Project, 0, len(records))
	for _, record := range records {
		if project, ok := NormalizeProject(record); ok {
			projects = append(projects, project)
		}
	}
	return projects
}

// NormalizeMember converts a loosely shaped record into a member.
func NormalizeMember(record Record) (Member, bool) {
	id := stringField(record, memberIDKeys)
	if id == "" {
		return Member{}, false
	}
	member := Member{
		ID:     id,
		Name:   stringField(record, nameKeys),
		Role:   stringField(record, roleKeys),
		IsSelf: boolField(record, isSelfKeys),
	}
	if avatar, ok := record["avatar"].(map[string]any); ok {
		member.Avatar = Avatar{
			URL:      stringField(avatar, urlKeys),
			Initials: stringField(avatar, []string{"initials"}),
			Alt:      stringField(avatar, []string{"alt"}),
		}
	}
	return member, true
}

// NormalizeMembers converts a batch of member records.
func NormalizeMembers(records []Record) []Member {
	members := make([]Member, 0, len(records))
	for _, record := range records {
		if member, ok := NormalizeMember(record); ok {
			members = append(members, member)
		}
	}
	return members
}

// NormalizeNote converts a loosely shaped record into a note.
func NormalizeNote(record Record) (Note, bool) {
	id := stringField(record, noteIDKeys)
	if id == "" {
		return Note{}, false
	}
	return Note{
		ID:         id,
		TodoID:     stringField(record, []string{"todoId", "todo_id"}),
		MemberID:   stringField(record, noteMemberKeys),
		Content:    stringField(record, contentKeys),
		AuthorName: stringField(record, authorNameKeys),
		CreatedAt:  timeFieldValue(record, createdAtKeys),
	}, true
}

// NormalizeMedia converts a loosely shaped record into a media attachment.
// Records without an attachment reference are dropped.
func NormalizeMedia(record Record) (MediaAttachment, bool) {
	attachmentID := stringField(record, attachmentIDKeys)
	if attachmentID == "" {
		return MediaAttachment{}, false
	}
	id := stringField(record, mediaIDKeys)
	if id == "" {
		id = attachmentID
	}
	return MediaAttachment{
		ID:           id,
		TodoID:       stringField(record, []string{"todoId", "todo_id"}),
		AttachmentID: attachmentID,
		Title:        stringField(record, titleKeys),
		Filename:     stringField(record, filenameKeys),
		URL:          stringField(record, urlKeys),
		PreviewURL:   stringField(record, previewURLKeys),
		IconURL:      stringField(record, iconURLKeys),
		MimeType:     stringField(record, mimeTypeKeys),
		Type:         stringField(record, mediaTypeKeys),
		AddedAt:      timeFieldValue(record, addedAtKeys),
		AddedBy:      stringField(record, addedByKeys),
	}, true
}

func normalizeStatus(value string) Status {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if status.IsValid() {
		return status
	}
	return StatusOpen
}

func normalizePriorityField(record Record) int {
	for _, key := range priorityKeys {
		raw, ok := record[key]
		if !ok {
			continue
		}
		if priority, ok := coerceInt(raw); ok {
			return NormalizePriority(priority)
		}
		return PriorityDefault
	}
	return PriorityDefault
}

func coerceInt(raw any) (int, bool) {
	switch value := raw.(type) {
	case int:
		return value, true
	case int64:
		return int(value), true
	case float64:
		return int(value), true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func stringField(record Record, keys []string) string {
	for _, key := range keys {
		raw, ok := record[key]
		if !ok {
			continue
		}
		switch value := raw.(type) {
		case string:
			return strings.TrimSpace(value)
		case float64:
			return strconv.FormatFloat(value, 'f', -1, 64)
		}
	}
	return ""
}

func boolField(record Record, keys []string) bool {
	for _, key := range keys {
		if value, ok := record[key].(bool); ok {
			return value
		}
	}
	return false
}

// timeField parses the first present candidate as RFC 3339 or a bare date.
// Unparseable values are treated as absent.
func timeField(record Record, keys []string) *time.Time {
	for _, key := range keys {
		raw, ok := record[key].(string)
		if !ok {
			continue
		}
		if parsed, ok := parseTime(raw); ok {
			return &parsed
		}
	}
	return nil
}

func timeFieldValue(record Record, keys []string) time.Time {
	if parsed := timeField(record, keys); parsed != nil {
		return *parsed
	}
	return time.Time{}
}

func parseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func sliceField(record Record, keys ...string) []Record {
	for _, key := range keys {
		raw, ok := record[key].([]any)
		if !ok {
			continue
		}
		records := make([]Record, 0, len(raw))
		for _, entry := range raw {
			if mapped, ok := entry.(map[string]any); ok {
				records = append(records, mapped)
			}
		}
		return records
	}
	return nil
}

// appendMember adds a member unless one with the same ID is already present.
func appendMember(members []Member, member Member) []Member {
	for _, existing := range members {
		if existing.ID == member.ID {
			return members
		}
	}
	return append(members, member)
}

// appendNote adds a note unless one with the same ID is already present.
func appendNote(notes []Note, note Note) []Note {
	for _, existing := range notes {
		if existing.ID == note.ID {
			return notes
		}
	}
	return append(notes, note)
}

// appendMedia adds an attachment, replacing any existing entry with the
// same attachment ID.
func appendMedia(media []MediaAttachment, attachment MediaAttachment) []MediaAttachment {
	for i, existing := range media {
		if existing.AttachmentID == attachment.AttachmentID {
			media[i] = attachment
			return media
		}
	}
	return append(media, attachment)
}
