package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mjpery-beep/tasklist/internal/ui"
	"github.com/mjpery-beep/tasklist/tasklist"
	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectCreate,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE:  runProjectList,
}

var projectListJSON bool

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectCreateCmd, projectListCmd)

	projectListCmd.Flags().BoolVar(&projectListJSON, "json", false, "Output as JSON")
}

func runProjectCreate(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd)
	if err != nil {
		return err
	}

	created, err := engine.CreateProject(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Created project %s: %s\n", created.ID, created.Title)
	return nil
}

func runProjectList(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd)
	if err != nil {
		return err
	}
	if err := engine.RefreshActive(cmd.Context(), tasklist.ListFilter{}); err != nil {
		return err
	}

	projects := engine.Store().Projects()
	if projectListJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(projects)
	}

	if len(projects) == 0 {
		fmt.Println("No projects found.")
		return nil
	}

	table := ui.NewTable("ID", "TITLE")
	for _, project := range projects {
		table.Row(project.ID, ui.TruncateTableCell(project.Title))
	}
	fmt.Print(table.String())
	return nil
}
