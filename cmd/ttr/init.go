package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/drew-myers/ticket-to-ride/internal/config"
)

var (
	initRepo     string
	initProject  string
	initAssignee string
	initForce    bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .tickets/sync.toml",
	Long: `Init creates the tickets directory and its sync configuration. The
repository is taken from --repo, detected from the git origin remote, or
prompted for interactively.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initRepo, "repo", "", "GitHub repository (owner/repo)")
	initCmd.Flags().StringVar(&initProject, "project", "", "GitHub project name or number")
	initCmd.Flags().StringVar(&initAssignee, "assignee", "", "default assignee for created issues")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing sync.toml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	ticketsDir := ".tickets"
	if dir := os.Getenv("TICKETS_DIR"); dir != "" {
		ticketsDir = dir
	}
	if err := os.MkdirAll(ticketsDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", ticketsDir, err)
	}

	configPath := filepath.Join(ticketsDir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	if initRepo == "" {
		initRepo = detectRepo()
	}
	if initRepo == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("no repository given; pass --repo owner/repo")
		}
		if err := promptForConfig(); err != nil {
			return err
		}
	}
	if _, _, err := (config.GitHubConfig{Repo: initRepo}).RepoParts(); err != nil {
		return err
	}

	content := renderConfig(initRepo, initProject, initAssignee)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}
	fmt.Printf("Created %s for %s\n", configPath, initRepo)
	return nil
}

// githubRemotePattern matches SSH and HTTPS GitHub remote URLs.
var githubRemotePattern = regexp.MustCompile(`github\.com[:/]([^/]+)/([^/.]+?)(?:\.git)?$`)

// detectRepo reads the git origin remote, if there is one.
func detectRepo() string {
	out, err := exec.Command("git", "remote", "get-url", "origin").Output()
	if err != nil {
		return ""
	}
	m := githubRemotePattern.FindStringSubmatch(strings.TrimSpace(string(out)))
	if m == nil {
		return ""
	}
	return m[1] + "/" + m[2]
}

func promptForConfig() error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("GitHub repository").
				Description("owner/repo").
				Value(&initRepo).
				Validate(func(s string) error {
					_, _, err := (config.GitHubConfig{Repo: s}).RepoParts()
					return err
				}),
			huh.NewInput().
				Title("Project").
				Description("Projects v2 name or number, blank to skip").
				Value(&initProject),
			huh.NewInput().
				Title("Assignee").
				Description("username to assign created issues to, blank to skip").
				Value(&initAssignee),
		),
	)
	return form.Run()
}

func renderConfig(repo, project, assignee string) string {
	var b strings.Builder
	b.WriteString("[github]\n")
	fmt.Fprintf(&b, "repo = %q\n", repo)
	if project != "" {
		fmt.Fprintf(&b, "project = %q\n", project)
	}
	if assignee != "" {
		fmt.Fprintf(&b, "assignee = %q\n", assignee)
	}
	b.WriteString(`
[labels]
sync_tags = true
create_missing = true

# Map ticket types to GitHub issue types.
# [mapping.type]
# bug = "Bug"
# feature = "Feature"
# task = "Task"

# Map ticket statuses to project Status options.
# [project]
# status_field = "Status"
# iteration_field = "Iteration"
# iteration = "@current"
# [project.status]
# open = "Todo"
# in_progress = "In Progress"
# closed = "Done"
`)
	return b.String()
}
