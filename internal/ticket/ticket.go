// Package ticket reads and writes the local flat-file ticket store.
//
// Tickets are markdown files with YAML frontmatter under .tickets/. The
// frontmatter carries the structured fields; the markdown body carries the
// title (first H1) and description. The sync layer records the GitHub link
// by writing an external-ref field back into the frontmatter.
package ticket

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExternalRefPrefix marks a ticket as synced to a GitHub issue.
// The full convention is "gh-<issue-number>".
const ExternalRefPrefix = "gh-"

// Ticket is a parsed ticket file.
type Ticket struct {
	Path        string   // file the ticket was loaded from
	ID          string   // stable ticket ID (e.g. "ttr-0001")
	Status      string   // open, in_progress, closed
	Deps        []string // ticket IDs this ticket depends on
	Links       []string // symmetric relationships
	Created     string   // creation timestamp, verbatim from frontmatter
	Type        string   // bug, feature, task, epic, chore
	Priority    int      // 0-4, 0 = highest
	Assignee    string   //
	ExternalRef string   // e.g. "gh-123" once synced
	Parent      string   // parent ticket ID
	Tags        []string // synced as GitHub labels
	Title       string   // from the first "# " heading
	Body        string   // body content, Notes section excluded
}

// frontmatter is the YAML schema of the block between the --- delimiters.
type frontmatter struct {
	ID          string   `yaml:"id"`
	Status      string   `yaml:"status"`
	Deps        []string `yaml:"deps"`
	Links       []string `yaml:"links"`
	Created     string   `yaml:"created"`
	Type        string   `yaml:"type"`
	Priority    *int     `yaml:"priority"`
	Assignee    string   `yaml:"assignee"`
	ExternalRef string   `yaml:"external-ref"`
	Parent      string   `yaml:"parent"`
	Tags        []string `yaml:"tags"`
}

// Parse reads a single ticket file.
func Parse(path string) (*Ticket, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the tickets dir walk
	if err != nil {
		return nil, fmt.Errorf("reading ticket: %w", err)
	}

	fmRaw, content, err := splitFrontmatter(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(fmRaw), &fm); err != nil {
		return nil, fmt.Errorf("parsing frontmatter in %s: %w", path, err)
	}
	if fm.ID == "" {
		return nil, fmt.Errorf("%s: frontmatter has no id", path)
	}

	t := &Ticket{
		Path:        path,
		ID:          fm.ID,
		Status:      fm.Status,
		Deps:        fm.Deps,
		Links:       fm.Links,
		Created:     fm.Created,
		Type:        fm.Type,
		Priority:    2,
		Assignee:    fm.Assignee,
		ExternalRef: fm.ExternalRef,
		Parent:      fm.Parent,
		Tags:        fm.Tags,
	}
	if t.Status == "" {
		t.Status = "open"
	}
	if t.Type == "" {
		t.Type = "task"
	}
	if fm.Priority != nil {
		t.Priority = *fm.Priority
	}

	body := strings.TrimSpace(content)
	t.Title = "Untitled"
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "# ") {
			t.Title = strings.TrimPrefix(line, "# ")
			break
		}
	}
	t.Body = extractBody(body)

	return t, nil
}

// splitFrontmatter separates the leading YAML block from the markdown body.
func splitFrontmatter(content string) (fm, body string, err error) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r") != "---" {
		return "", "", fmt.Errorf("no frontmatter found")
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r") == "---" {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), nil
		}
	}
	return "", "", fmt.Errorf("unterminated frontmatter")
}

// LoadAll reads every .md ticket in dir, sorted by ID. Files that fail to
// parse are skipped with a warning rather than failing the load.
func LoadAll(dir string) ([]*Ticket, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading tickets directory: %w", err)
	}

	var tickets []*Ticket
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		t, err := Parse(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to parse %s: %v\n", path, err)
			continue
		}
		tickets = append(tickets, t)
	}

	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })
	return tickets, nil
}

// IsSynced reports whether the ticket carries a GitHub external-ref.
func (t *Ticket) IsSynced() bool {
	if !strings.HasPrefix(t.ExternalRef, ExternalRefPrefix) {
		return false
	}
	_, ok := t.IssueNumber()
	return ok
}

// IssueNumber parses the GitHub issue number out of the external-ref.
func (t *Ticket) IssueNumber() (int, bool) {
	rest, found := strings.CutPrefix(t.ExternalRef, ExternalRefPrefix)
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// WriteExternalRef persists ref into the ticket file's frontmatter, updating
// an existing external-ref line in place or inserting one before the closing
// delimiter. Only the frontmatter block is touched; an "external-ref:" that
// appears in the body (say, inside a code fence) is left alone.
func (t *Ticket) WriteExternalRef(ref string) error {
	data, err := os.ReadFile(t.Path) // #nosec G304 - path recorded at parse time
	if err != nil {
		return fmt.Errorf("reading ticket: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	end := frontmatterEnd(lines)
	if end < 0 {
		return fmt.Errorf("%s: no frontmatter to update", t.Path)
	}

	updated := false
	for i := 1; i < end; i++ {
		if strings.HasPrefix(lines[i], "external-ref:") {
			lines[i] = "external-ref: " + ref
			updated = true
			break
		}
	}
	if !updated {
		lines = append(lines[:end], append([]string{"external-ref: " + ref}, lines[end:]...)...)
	}

	out := strings.Join(lines, "\n")
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	if err := os.WriteFile(t.Path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("writing ticket: %w", err)
	}

	t.ExternalRef = ref
	return nil
}

// frontmatterEnd returns the line index of the closing --- delimiter,
// or -1 if the file has no frontmatter.
func frontmatterEnd(lines []string) int {
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r") != "---" {
		return -1
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r") == "---" {
			return i
		}
	}
	return -1
}

// extractBody strips the title line and the "## Notes" section. Notes hold
// local-only annotations that must not be pushed to GitHub.
func extractBody(content string) string {
	var kept []string
	inNotes := false
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "# ") && len(kept) == 0 {
			continue
		}
		if strings.HasPrefix(line, "## Notes") {
			inNotes = true
			continue
		}
		if inNotes && strings.HasPrefix(line, "## ") {
			inNotes = false
		}
		if !inNotes {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
