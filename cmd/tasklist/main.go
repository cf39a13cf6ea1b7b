// Package main implements the tasklist CLI tool.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/mjpery-beep/tasklist/internal/config"
	"github.com/mjpery-beep/tasklist/portal"
	"github.com/mjpery-beep/tasklist/tasklist"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tasklist",
	Short: "Shared task list for the member portal",
}

var (
	rootURL     string
	rootToken   string
	rootPreview bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&rootURL, "url", "", "Portal base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&rootToken, "token", "", "Authorization token (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&rootPreview, "preview", false, "Run in preview mode")
}

// loadConfig merges the global and project config files with any flag
// overrides applied on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("url") {
		cfg.Portal.URL = rootURL
	}
	if cmd.Flags().Changed("token") {
		cfg.Portal.Token = rootToken
	}
	if cmd.Flags().Changed("preview") {
		cfg.Portal.Preview = rootPreview
	}
	return cfg, nil
}

// newEngine builds an engine connected to the configured portal.
func newEngine(cmd *cobra.Command) (*tasklist.Engine, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Portal.URL == "" {
		return nil, fmt.Errorf("no portal url configured; set portal.url in %s or pass --url", config.ProjectFile)
	}

	client := portal.NewClient(cfg.Portal.URL, cfg.Portal.Token)
	return tasklist.New(client, tasklist.Options{
		Viewer:  tasklist.Member{ID: cfg.Viewer.ID, Name: cfg.Viewer.Name, IsSelf: true},
		Preview: cfg.Portal.Preview,
		Logger:  log.New(os.Stderr, "tasklist: ", log.LstdFlags),
	}), nil
}
