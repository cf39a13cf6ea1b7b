package main

import (
	"log"
	"os"
	"time"

	"github.com/mjpery-beep/tasklist/portal"
	"github.com/mjpery-beep/tasklist/tasklist"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an in-memory portal server for local development",
	RunE:  runServe,
}

var (
	serveAddr  string
	serveToken string
	serveSeed  bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8472", "Listen address")
	serveCmd.Flags().StringVar(&serveToken, "server-token", "", "Require this bearer token")
	serveCmd.Flags().BoolVar(&serveSeed, "seed", false, "Start with sample todos")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, err := portal.ResolveAddr(serveAddr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	acting := tasklist.Member{ID: cfg.Viewer.ID, Name: cfg.Viewer.Name, IsSelf: true}
	if acting.ID == "" {
		acting = tasklist.Member{ID: "local", Name: "Local Member", IsSelf: true}
	}

	opts := portal.ServerOptions{
		Token:        serveToken,
		ActingMember: acting,
		Members:      []tasklist.Member{acting},
		Logger:       log.New(os.Stderr, "tasklist-serve: ", log.LstdFlags),
	}
	if serveSeed {
		due := time.Now().AddDate(0, 0, 7)
		opts.Projects = []tasklist.Project{{ID: "p1", Title: "Household"}}
		opts.Todos = []tasklist.Todo{
			{ID: "t1", Title: "Water plants", Status: tasklist.StatusOpen, Priority: 3, ProjectID: "p1", Assignees: []tasklist.Member{acting}},
			{ID: "t2", Title: "Renew passport", Status: tasklist.StatusOpen, Priority: 5, DueDate: &due, Assignees: []tasklist.Member{acting}},
			{ID: "t3", Title: "Buy snacks", Status: tasklist.StatusCompleted, Priority: 2, ProjectID: "p1", Assignees: []tasklist.Member{acting}},
		}
	}

	return portal.NewServer(opts).Serve(addr)
}
