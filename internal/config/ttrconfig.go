// Package config loads the sync configuration from .tickets/sync.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ConfigFileName is the sync configuration file inside the tickets dir.
const ConfigFileName = "sync.toml"

// Config is the parsed sync.toml.
type Config struct {
	GitHub  GitHubConfig  `mapstructure:"github"`
	Mapping MappingConfig `mapstructure:"mapping"`
	Labels  LabelsConfig  `mapstructure:"labels"`
	Project ProjectConfig `mapstructure:"project"`
}

// GitHubConfig selects the repository and who to assign created issues to.
type GitHubConfig struct {
	Repo     string `mapstructure:"repo"`     // "owner/repo"
	Project  string `mapstructure:"project"`  // optional project name or number
	Assignee string `mapstructure:"assignee"` // optional username
}

// MappingConfig maps ticket types to GitHub issue types.
type MappingConfig struct {
	TypeField string            `mapstructure:"type_field"`
	Type      map[string]string `mapstructure:"type"` // ticket type -> GitHub issue type name
}

// LabelsConfig controls tag-to-label syncing.
type LabelsConfig struct {
	SyncTags      bool `mapstructure:"sync_tags"`
	CreateMissing bool `mapstructure:"create_missing"`
}

// ProjectConfig controls Projects v2 field syncing. Status maps ticket
// statuses to single-select option names; Iteration is an iteration title
// or the "@current" sentinel for the first active iteration.
type ProjectConfig struct {
	StatusField    string            `mapstructure:"status_field"`
	Status         map[string]string `mapstructure:"status"`
	IterationField string            `mapstructure:"iteration_field"`
	Iteration      string            `mapstructure:"iteration"`
}

// RepoParts splits the configured repo into owner and name.
func (g GitHubConfig) RepoParts() (owner, name string, err error) {
	owner, name, ok := strings.Cut(g.Repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repo format %q, expected \"owner/repo\"", g.Repo)
	}
	return owner, name, nil
}

// Load finds the tickets directory and parses its sync.toml.
// Returns the config and the tickets directory path.
func Load() (*Config, string, error) {
	ticketsDir, err := FindTicketsDir()
	if err != nil {
		return nil, "", err
	}

	cfg, err := LoadFile(filepath.Join(ticketsDir, ConfigFileName))
	if err != nil {
		return nil, "", err
	}
	return cfg, ticketsDir, nil
}

// LoadFile parses a sync.toml at an explicit path.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("configuration file not found: %s (run 'ttr init' to create one)", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetDefault("mapping.type_field", "Type")
	v.SetDefault("labels.sync_tags", true)
	v.SetDefault("labels.create_missing", true)
	v.SetDefault("project.status_field", "Status")
	v.SetDefault("project.iteration_field", "Iteration")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	if _, _, err := cfg.GitHub.RepoParts(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindTicketsDir locates the .tickets directory. The TICKETS_DIR environment
// variable wins; otherwise parent directories are searched from the CWD up.
func FindTicketsDir() (string, error) {
	if dir := os.Getenv("TICKETS_DIR"); dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, ".tickets")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no .tickets directory found (searched parent directories); run 'ttr init' or set TICKETS_DIR")
}
