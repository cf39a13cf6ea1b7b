package tasklist

import (
	"sort"
	"strings"
)

// StatusFilter selects which statuses appear in the visible list.
type StatusFilter string

const (
	// FilterAll selects every non-archived todo.
	FilterAll StatusFilter = "all"

	// FilterTodo selects open todos.
	FilterTodo StatusFilter = "todo"

	// FilterCompleted selects completed todos.
	FilterCompleted StatusFilter = "completed"
)

// SortMode selects the ordering of the visible list.
type SortMode string

const (
	// SortPriority orders by descending priority (default).
	SortPriority SortMode = "priority"

	// SortProject orders by resolved project title.
	SortProject SortMode = "project"
)

// ListFilter narrows the visible list. The zero value selects all
// non-archived todos across every project.
type ListFilter struct {
	Status StatusFilter `json:"status,omitempty"`

	// ProjectID restricts to an exact project; empty selects all.
	ProjectID string `json:"projectId,omitempty"`
}

// VisibleTodos computes the ordered visible list from the active collection.
// It is a pure function: the inputs are not modified, and the same inputs
// always produce the same order. Archived todos are served from the separate
// archived collection and never appear here.
func VisibleTodos(todos []Todo, projects map[string]Project, filter ListFilter, mode SortMode) []Todo {
	projectFilter := strings.TrimSpace(filter.ProjectID)

	visible := make([]Todo, 0, len(todos))
	for _, todo := range todos {
		if !matchesStatus(todo, filter.Status) {
			continue
		}
		if projectFilter != "" && strings.TrimSpace(todo.ProjectID) != projectFilter {
			continue
		}
		visible = append(visible, todo)
	}

	sort.SliceStable(visible, func(i, j int) bool {
		if mode == SortProject {
			left := projectSortKey(visible[i], projects)
			right := projectSortKey(visible[j], projects)
			if left != right {
				return left < right
			}
		}
		return lessByPriorityChain(visible[i], visible[j])
	})

	return visible
}

func matchesStatus(todo Todo, filter StatusFilter) bool {
	switch filter {
	case FilterTodo:
		return todo.Status == StatusOpen
	case FilterCompleted:
		return todo.Status == StatusCompleted
	default:
		return todo.Status != StatusArchived
	}
}

// projectSortKey resolves the case-folded project title; todos without a
// resolvable project sort first via the empty string.
func projectSortKey(todo Todo, projects map[string]Project) string {
	project, ok := projects[todo.ProjectID]
	if !ok {
		return ""
	}
	return strings.ToLower(project.Title)
}

// lessByPriorityChain is the shared tie-break chain: descending priority,
// then ascending due date with missing dates last, then case-insensitive
// title, then ID for determinism.
func lessByPriorityChain(a, b Todo) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if due := compareDueDates(a, b); due != 0 {
		return due < 0
	}
	leftTitle := strings.ToLower(a.Title)
	rightTitle := strings.ToLower(b.Title)
	if leftTitle != rightTitle {
		return leftTitle < rightTitle
	}
	return a.ID < b.ID
}

func compareDueDates(a, b Todo) int {
	switch {
	case a.DueDate == nil && b.DueDate == nil:
		return 0
	case a.DueDate == nil:
		return 1
	case b.DueDate == nil:
		return -1
	case a.DueDate.Before(*b.DueDate):
		return -1
	case b.DueDate.Before(*a.DueDate):
		return 1
	default:
		return 0
	}
}
