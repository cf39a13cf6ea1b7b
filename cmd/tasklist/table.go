package main

import (
	"fmt"
	"strings"

	"github.com/mjpery-beep/tasklist/internal/markdown"
	"github.com/mjpery-beep/tasklist/internal/ui"
	"github.com/mjpery-beep/tasklist/tasklist"
	"github.com/muesli/reflow/wordwrap"
)

const detailWidth = 80
const detailIndent = 2

// printTodoTable prints todos in a table format. In-flight operations get a
// pending marker; entity-level errors print below the table.
func printTodoTable(engine *tasklist.Engine, todos []tasklist.Todo) {
	if len(todos) == 0 {
		fmt.Println("No todos found.")
		return
	}

	pendingIDs := make(map[string]bool)
	for _, key := range engine.Store().PendingKeys() {
		pendingIDs[key.ID] = true
	}

	table := ui.NewTable("ID", "PRI", "STATUS", "DUE", "PROJECT", "TITLE")
	for _, todo := range todos {
		projectTitle := ""
		if project, ok := engine.Store().Project(todo.ProjectID); ok {
			projectTitle = project.Title
		}

		title := ui.TruncateTableCell(todo.Title)
		if todo.Emoji != "" {
			title = todo.Emoji + " " + title
		}
		if pendingIDs[todo.ID] {
			title = ui.StylePending(title + " *")
		}

		table.Row(
			todo.ID,
			ui.StylePriority(todo.Priority, fmt.Sprintf("P%d", todo.Priority)),
			ui.StyleStatus(string(todo.Status)),
			ui.FormatDate(todo.DueDate),
			ui.TruncateTableCell(projectTitle),
			title,
		)
	}
	fmt.Print(table.String())

	for _, todo := range todos {
		if message, ok := engine.Store().Flash(todo.ID); ok {
			fmt.Println(ui.StyleError(fmt.Sprintf("%s: %s", todo.ID, message)))
		}
	}
}

// printTodoDetail prints detailed information about a todo.
func printTodoDetail(engine *tasklist.Engine, todo tasklist.Todo) {
	title := todo.Title
	if todo.Emoji != "" {
		title = todo.Emoji + " " + title
	}
	fmt.Printf("%s %s\n", ui.StyleLabel("ID:"), todo.ID)
	fmt.Printf("%s %s\n", ui.StyleLabel("Title:"), title)
	fmt.Printf("%s %s\n", ui.StyleLabel("Status:"), ui.StyleStatus(string(todo.Status)))
	fmt.Printf("%s %s\n", ui.StyleLabel("Priority:"), ui.StylePriority(todo.Priority, fmt.Sprintf("P%d", todo.Priority)))

	if project, ok := engine.Store().Project(todo.ProjectID); ok {
		fmt.Printf("%s %s\n", ui.StyleLabel("Project:"), project.Title)
	}
	if todo.DueDate != nil {
		fmt.Printf("%s %s\n", ui.StyleLabel("Due:"), ui.FormatDate(todo.DueDate))
	}
	if todo.CompletedAt != nil {
		fmt.Printf("%s %s\n", ui.StyleLabel("Completed:"), ui.FormatTimestamp(*todo.CompletedAt))
	}
	if len(todo.Assignees) > 0 {
		names := make([]string, 0, len(todo.Assignees))
		for _, member := range todo.Assignees {
			names = append(names, member.Name)
		}
		fmt.Printf("%s %s\n", ui.StyleLabel("Assignees:"), strings.Join(names, ", "))
	}

	if todo.Description != "" {
		fmt.Printf("\n%s\n%s", ui.StyleLabel("Description:"), markdown.Render(detailWidth, detailIndent, todo.Description))
	}

	if len(todo.Notes) > 0 {
		fmt.Printf("\n%s\n", ui.StyleLabel("Notes:"))
		for _, note := range todo.Notes {
			header := note.AuthorName
			if !note.CreatedAt.IsZero() {
				header += " at " + ui.FormatTimestamp(note.CreatedAt)
			}
			fmt.Printf("  %s\n", header)
			wrapped := wordwrap.String(note.Content, detailWidth-2*detailIndent)
			for _, line := range strings.Split(wrapped, "\n") {
				fmt.Printf("    %s\n", line)
			}
		}
	}

	if len(todo.Media) > 0 {
		fmt.Printf("\n%s\n", ui.StyleLabel("Media:"))
		for _, attachment := range todo.Media {
			name := attachment.Title
			if name == "" {
				name = attachment.Filename
			}
			fmt.Printf("  %s (%s)\n", name, attachment.AttachmentID)
		}
	}

	if message, ok := engine.Store().Flash(todo.ID); ok {
		fmt.Printf("\n%s\n", ui.StyleError(message))
	}
}
