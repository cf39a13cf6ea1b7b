package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mjpery-beep/tasklist/tasklist"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// list
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List active todos",
	RunE:  runList,
}

var (
	listStatus  string
	listProject string
	listSort    string
	listJSON    bool
)

// show
var showCmd = &cobra.Command{
	Use:   "show <id>...",
	Short: "Show detailed information about todos",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runShow,
}

var showJSON bool

// create
var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new todo",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreate,
}

var (
	createDescription string
	createPriority    int
	createProject     string
	createDue         string
	createEmoji       string
	createAssignees   []string
)

// complete / reopen
var completeCmd = &cobra.Command{
	Use:   "complete <id>...",
	Short: "Mark todos as completed",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runComplete,
}

var reopenCmd = &cobra.Command{
	Use:   "reopen <id>...",
	Short: "Reopen completed todos",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReopen,
}

// edit
var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a todo's fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

var (
	editTitle       string
	editDescription string
	editProject     string
	editDue         string
	editEmoji       string
)

// priority
var priorityCmd = &cobra.Command{
	Use:   "priority <id> <1-5>",
	Short: "Change a todo's priority",
	Args:  cobra.ExactArgs(2),
	RunE:  runPriority,
}

// archive lifecycle
var archiveCmd = &cobra.Command{
	Use:   "archive <id>...",
	Short: "Move todos to the archive",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runArchive,
}

var archivedCmd = &cobra.Command{
	Use:   "archived",
	Short: "List archived todos",
	RunE:  runArchived,
}

var archivedJSON bool

var restoreCmd = &cobra.Command{
	Use:   "restore <id>...",
	Short: "Restore archived todos to the active list",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRestore,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Permanently delete an archived todo",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var deleteYes bool

func init() {
	rootCmd.AddCommand(listCmd, showCmd, createCmd, completeCmd, reopenCmd,
		editCmd, priorityCmd, archiveCmd, archivedCmd, restoreCmd, deleteCmd)

	listCmd.Flags().StringVar(&listStatus, "status", "all", "Filter by status (todo, completed, all)")
	listCmd.Flags().StringVar(&listProject, "project", "", "Filter by project id")
	listCmd.Flags().StringVar(&listSort, "sort", "priority", "Sort mode (priority, project)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")

	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output as JSON")

	createCmd.Flags().StringVarP(&createDescription, "description", "d", "", "Description")
	createCmd.Flags().IntVarP(&createPriority, "priority", "p", tasklist.PriorityDefault, "Priority (1=lowest, 5=highest)")
	createCmd.Flags().StringVar(&createProject, "project", "", "Project id")
	createCmd.Flags().StringVar(&createDue, "due", "", "Due date (YYYY-MM-DD)")
	createCmd.Flags().StringVar(&createEmoji, "emoji", "", "Emoji")
	createCmd.Flags().StringArrayVar(&createAssignees, "assignee", nil, "Assignee member id (defaults to the configured viewer)")

	editCmd.Flags().StringVar(&editTitle, "title", "", "New title")
	editCmd.Flags().StringVar(&editDescription, "description", "", "New description")
	editCmd.Flags().StringVar(&editProject, "project", "", "New project id")
	editCmd.Flags().StringVar(&editDue, "due", "", "New due date (YYYY-MM-DD)")
	editCmd.Flags().StringVar(&editEmoji, "emoji", "", "New emoji")

	archivedCmd.Flags().BoolVar(&archivedJSON, "json", false, "Output as JSON")

	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")

	addDescriptionFlagAliases(createCmd, editCmd, listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd)
	if err != nil {
		return err
	}

	status := tasklist.StatusFilter(listStatus)
	switch status {
	case "", tasklist.FilterAll, tasklist.FilterTodo, tasklist.FilterCompleted:
	case tasklist.StatusFilter(tasklist.StatusArchived):
		return fmt.Errorf("archived todos are not in the active list; use %q", "tasklist archived")
	default:
		return fmt.Errorf("unknown status filter %q (expected todo, completed, or all)", listStatus)
	}

	filter := tasklist.ListFilter{
		Status:    status,
		ProjectID: listProject,
	}
	if err := engine.RefreshActive(cmd.Context(), filter); err != nil {
		return err
	}

	todos := engine.Visible(filter, tasklist.SortMode(listSort))
	if listJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(todos)
	}

	printTodoTable(engine, todos)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd)
	if err != nil {
		return err
	}
	if err := engine.RefreshActive(cmd.Context(), tasklist.ListFilter{}); err != nil {
		return err
	}
	if err := engine.RefreshArchived(cmd.Context()); err != nil {
		return err
	}

	todos := make([]tasklist.Todo, 0, len(args))
	for _, id := range args {
		todo, ok := engine.Store().TodoByID(id)
		if !ok {
			return fmt.Errorf("show %s: %w", id, tasklist.ErrTodoNotFound)
		}
		todos = append(todos, todo)
	}

	if showJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(todos)
	}

	for i, todo := range todos {
		if i > 0 {
			fmt.Println("---")
		}
		printTodoDetail(engine, todo)
	}
	return nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd)
	if err != nil {
		return err
	}
	if err := engine.RefreshActive(cmd.Context(), tasklist.ListFilter{}); err != nil {
		return err
	}

	fields := tasklist.CreateFields{
		Title:       args[0],
		Description: createDescription,
		Priority:    createPriority,
		ProjectID:   createProject,
		Emoji:       createEmoji,
		AssigneeIDs: createAssignees,
	}
	if len(fields.AssigneeIDs) == 0 && engine.Viewer().ID != "" {
		fields.AssigneeIDs = []string{engine.Viewer().ID}
	}
	if createDue != "" {
		due, err := parseDueDate(createDue)
		if err != nil {
			return err
		}
		fields.DueDate = &due
	}

	created, err := engine.Create(cmd.Context(), fields)
	if err != nil {
		return err
	}

	fmt.Printf("Created todo %s: %s\n", created.ID, created.Title)
	return nil
}

func runComplete(cmd *cobra.Command, args []string) error {
	return toggleEach(cmd, args, true, "Completed")
}

func runReopen(cmd *cobra.Command, args []string) error {
	return toggleEach(cmd, args, false, "Reopened")
}

func toggleEach(cmd *cobra.Command, ids []string, complete bool, verb string) error {
	engine, err := newEngine(cmd)
	if err != nil {
		return err
	}
	if err := engine.RefreshActive(cmd.Context(), tasklist.ListFilter{}); err != nil {
		return err
	}
	if err := engine.RefreshArchived(cmd.Context()); err != nil {
		return err
	}

	for _, id := range ids {
		todo, ok := engine.Store().TodoByID(id)
		if !ok {
			return fmt.Errorf("toggle %s: %w", id, tasklist.ErrTodoNotFound)
		}
		if err := engine.Toggle(cmd.Context(), id, complete); err != nil {
			return err
		}
		fmt.Printf("%s %s: %s\n", verb, id, todo.Title)
	}
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd)
	if err != nil {
		return err
	}
	if err := engine.RefreshActive(cmd.Context(), tasklist.ListFilter{}); err != nil {
		return err
	}

	fields := tasklist.UpdateFields{}

	// Only set fields that were explicitly provided
	if cmd.Flags().Changed("title") {
		fields.Title = &editTitle
	}
	if cmd.Flags().Changed("description") {
		fields.Description = &editDescription
	}
	if cmd.Flags().Changed("project") {
		fields.ProjectID = &editProject
	}
	if cmd.Flags().Changed("due") {
		due, err := parseDueDate(editDue)
		if err != nil {
			return err
		}
		fields.DueDate = &due
	}
	if cmd.Flags().Changed("emoji") {
		fields.Emoji = &editEmoji
	}

	if err := engine.Update(cmd.Context(), args[0], fields); err != nil {
		return err
	}

	todo, _ := engine.Store().TodoByID(args[0])
	fmt.Printf("Updated %s: %s\n", todo.ID, todo.Title)
	return nil
}

func runPriority(cmd *cobra.Command, args []string) error {
	priority, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("parse priority %q: %w", args[1], err)
	}

	engine, err := newEngine(cmd)
	if err != nil {
		return err
	}
	if err := engine.RefreshActive(cmd.Context(), tasklist.ListFilter{}); err != nil {
		return err
	}

	if err := engine.SetPriority(cmd.Context(), args[0], priority); err != nil {
		return err
	}

	todo, _ := engine.Store().TodoByID(args[0])
	fmt.Printf("Set priority of %s to %d\n", args[0], todo.Priority)
	return nil
}

func runArchive(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd)
	if err != nil {
		return err
	}
	if err := engine.RefreshActive(cmd.Context(), tasklist.ListFilter{}); err != nil {
		return err
	}

	for _, id := range args {
		todo, ok := engine.Store().TodoByID(id)
		if !ok {
			return fmt.Errorf("archive %s: %w", id, tasklist.ErrTodoNotFound)
		}
		if err := engine.Archive(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Archived %s: %s\n", id, todo.Title)
	}
	return nil
}

func runArchived(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd)
	if err != nil {
		return err
	}
	if err := engine.RefreshArchived(cmd.Context()); err != nil {
		return err
	}

	todos := engine.Store().Archived()
	if archivedJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(todos)
	}

	printTodoTable(engine, todos)
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd)
	if err != nil {
		return err
	}
	if err := engine.RefreshArchived(cmd.Context()); err != nil {
		return err
	}

	for _, id := range args {
		todo, ok := engine.Store().TodoByID(id)
		if !ok {
			return fmt.Errorf("restore %s: %w", id, tasklist.ErrTodoNotFound)
		}
		if err := engine.Restore(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Restored %s: %s\n", id, todo.Title)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd)
	if err != nil {
		return err
	}
	if err := engine.RefreshActive(cmd.Context(), tasklist.ListFilter{}); err != nil {
		return err
	}
	if err := engine.RefreshArchived(cmd.Context()); err != nil {
		return err
	}

	id := args[0]
	todo, ok := engine.Store().TodoByID(id)
	if !ok {
		return fmt.Errorf("delete %s: %w", id, tasklist.ErrTodoNotFound)
	}

	if !deleteYes {
		confirmed, err := confirmDelete(todo)
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := engine.Delete(cmd.Context(), id); err != nil {
		return err
	}

	fmt.Printf("Deleted %s: %s\n", id, todo.Title)
	return nil
}

// confirmDelete prompts on the terminal before a permanent delete. Deleting
// without --yes requires an interactive session.
func confirmDelete(todo tasklist.Todo) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("deleting %q is permanent; pass --yes to confirm", todo.Title)
	}

	fmt.Printf("Permanently delete %q? [y/N] ", todo.Title)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func parseDueDate(value string) (time.Time, error) {
	due, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse due date %q: expected YYYY-MM-DD", value)
	}
	return due, nil
}
