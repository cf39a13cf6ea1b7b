// Package config handles loading tasklist configuration files.
//
// Settings come from two TOML files: a global ~/.config/tasklist/config.toml
// and a project-local .tasklist.toml in the working directory. Project
// values win per key.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ProjectFile is the name of the project-local configuration file.
const ProjectFile = ".tasklist.toml"

// Config represents a tasklist configuration file.
type Config struct {
	Portal Portal `toml:"portal"`
	Viewer Viewer `toml:"viewer"`
}

// Portal contains remote-service settings.
type Portal struct {
	// URL is the base address of the portal task-list API.
	URL string `toml:"url"`

	// Token is the opaque authorization token supplied by the host
	// environment. The engine never interprets it.
	Token string `toml:"token"`

	// Preview lifts the note-author restriction, matching the portal's
	// preview mode.
	Preview bool `toml:"preview"`
}

// Viewer identifies the member the CLI acts as.
type Viewer struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

// Load merges the global and project configuration files. Returns an empty
// config when neither exists.
func Load(dir string) (*Config, error) {
	globalPath, err := globalConfigPath()
	if err != nil {
		return nil, err
	}

	globalCfg, globalMeta, err := loadConfigFile(globalPath)
	if err != nil {
		return nil, err
	}

	projectCfg, projectMeta, err := loadConfigFile(filepath.Join(dir, ProjectFile))
	if err != nil {
		return nil, err
	}

	return mergeConfigs(globalCfg, projectCfg, globalMeta, projectMeta), nil
}

func globalConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "tasklist", "config.toml"), nil
}

func loadConfigFile(path string) (*Config, toml.MetaData, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, toml.MetaData{}, nil
	}
	if err != nil {
		return nil, toml.MetaData{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, toml.MetaData{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return &cfg, meta, nil
}

func mergeConfigs(globalCfg, projectCfg *Config, globalMeta, projectMeta toml.MetaData) *Config {
	if globalCfg == nil {
		globalCfg = &Config{}
	}
	if projectCfg == nil {
		projectCfg = &Config{}
	}

	merged := Config{}
	merged.Portal.URL = mergeString(projectMeta.IsDefined("portal", "url"), projectCfg.Portal.URL, globalCfg.Portal.URL)
	merged.Portal.Token = mergeString(projectMeta.IsDefined("portal", "token"), projectCfg.Portal.Token, globalCfg.Portal.Token)
	merged.Viewer.ID = mergeString(projectMeta.IsDefined("viewer", "id"), projectCfg.Viewer.ID, globalCfg.Viewer.ID)
	merged.Viewer.Name = mergeString(projectMeta.IsDefined("viewer", "name"), projectCfg.Viewer.Name, globalCfg.Viewer.Name)
	if projectMeta.IsDefined("portal", "preview") {
		merged.Portal.Preview = projectCfg.Portal.Preview
	} else if globalMeta.IsDefined("portal", "preview") {
		merged.Portal.Preview = globalCfg.Portal.Preview
	}

	return &merged
}

func mergeString(projectDefined bool, projectValue, globalValue string) string {
	value := globalValue
	if projectDefined {
		value = projectValue
	}
	return strings.TrimSpace(value)
}
