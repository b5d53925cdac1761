package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Issue is an issue fetched from GitHub. ID is the durable node identifier
// used for mutations; Number is the repo-scoped integer used for the
// external-ref convention and display.
type Issue struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	State  string `json:"state"` // OPEN or CLOSED
	URL    string `json:"url"`
}

// Label is a repository label.
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IssueType is an organization-level issue type (Bug, Feature, Task...).
// Repositories without the feature have none.
type IssueType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateIssueInput is the payload for one batched issue creation.
type CreateIssueInput struct {
	RepositoryID string   `json:"repositoryId"`
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	LabelIDs     []string `json:"labelIds,omitempty"`
	AssigneeIDs  []string `json:"assigneeIds,omitempty"`
	IssueTypeID  string   `json:"issueTypeId,omitempty"`
}

// UpdateIssueInput is the payload for one batched issue update. Nil fields
// are left unchanged remotely.
type UpdateIssueInput struct {
	ID    string  `json:"id"`
	Title *string `json:"title,omitempty"`
	Body  *string `json:"body,omitempty"`
}

// CreateIssueResult is the per-item outcome of CreateIssuesBatch.
type CreateIssueResult struct {
	Issue *Issue
	Err   error
}

// RepositoryID resolves the repository's durable node ID.
func (c *Client) RepositoryID(ctx context.Context, owner, name string) (string, error) {
	var out struct {
		Repository *struct {
			ID string `json:"id"`
		} `json:"repository"`
	}
	query := `query($owner: String!, $name: String!) { repository(owner: $owner, name: $name) { id } }`
	if err := c.do(ctx, query, map[string]any{"owner": owner, "name": name}, &out); err != nil {
		return "", fmt.Errorf("resolving repository %s/%s: %w", owner, name, err)
	}
	if out.Repository == nil {
		return "", fmt.Errorf("repository %s/%s not found", owner, name)
	}
	return out.Repository.ID, nil
}

// UserID resolves a username to its node ID, for issue assignment.
func (c *Client) UserID(ctx context.Context, login string) (string, error) {
	var out struct {
		User *struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	query := `query($login: String!) { user(login: $login) { id } }`
	if err := c.do(ctx, query, map[string]any{"login": login}, &out); err != nil {
		return "", fmt.Errorf("resolving user %s: %w", login, err)
	}
	if out.User == nil {
		return "", fmt.Errorf("user %s not found", login)
	}
	return out.User.ID, nil
}

// ListLabels fetches every label in the repository.
func (c *Client) ListLabels(ctx context.Context, owner, name string) ([]Label, error) {
	query := `query($owner: String!, $name: String!, $cursor: String) {
  repository(owner: $owner, name: $name) {
    labels(first: 100, after: $cursor) {
      nodes { id name }
      pageInfo { hasNextPage endCursor }
    }
  }
}`

	var labels []Label
	var cursor *string
	for {
		var out struct {
			Repository struct {
				Labels struct {
					Nodes    []Label `json:"nodes"`
					PageInfo struct {
						HasNextPage bool   `json:"hasNextPage"`
						EndCursor   string `json:"endCursor"`
					} `json:"pageInfo"`
				} `json:"labels"`
			} `json:"repository"`
		}
		vars := map[string]any{"owner": owner, "name": name, "cursor": cursor}
		if err := c.do(ctx, query, vars, &out); err != nil {
			return nil, fmt.Errorf("listing labels: %w", err)
		}
		labels = append(labels, out.Repository.Labels.Nodes...)
		if !out.Repository.Labels.PageInfo.HasNextPage {
			return labels, nil
		}
		cursor = &out.Repository.Labels.PageInfo.EndCursor
	}
}

// CreateLabel creates a repository label with a color derived from its name.
func (c *Client) CreateLabel(ctx context.Context, repositoryID, name string) (*Label, error) {
	var out struct {
		CreateLabel struct {
			Label *Label `json:"label"`
		} `json:"createLabel"`
	}
	mutation := `mutation($input: CreateLabelInput!) { createLabel(input: $input) { label { id name } } }`
	vars := map[string]any{"input": map[string]any{
		"repositoryId": repositoryID,
		"name":         name,
		"color":        labelColor(name),
	}}
	if err := c.do(ctx, mutation, vars, &out); err != nil {
		return nil, fmt.Errorf("creating label %q: %w", name, err)
	}
	if out.CreateLabel.Label == nil {
		return nil, fmt.Errorf("creating label %q: no label returned", name)
	}
	return out.CreateLabel.Label, nil
}

// labelColor derives a deterministic muted hex color from a label name.
// Channels are clamped to a mid-range so labels stay readable on both light
// and dark backgrounds.
func labelColor(name string) string {
	var hash uint32
	for _, b := range []byte(name) {
		hash = (hash + uint32(b)) * 31
	}
	r := ((hash>>16)&0xFF)%180 + 40
	g := ((hash>>8)&0xFF)%180 + 40
	b := (hash&0xFF)%180 + 40
	return fmt.Sprintf("%02x%02x%02x", r, g, b)
}

// IssueTypes fetches the issue types available on the repository. Repos
// whose organization has not enabled the feature return an empty list, not
// an error.
func (c *Client) IssueTypes(ctx context.Context, owner, name string) ([]IssueType, error) {
	var out struct {
		Repository struct {
			IssueTypes *struct {
				Nodes []IssueType `json:"nodes"`
			} `json:"issueTypes"`
		} `json:"repository"`
	}
	query := `query($owner: String!, $name: String!) {
  repository(owner: $owner, name: $name) { issueTypes(first: 25) { nodes { id name } } }
}`
	err := c.do(ctx, query, map[string]any{"owner": owner, "name": name}, &out)
	if err != nil {
		var gqlErrs *GraphQLErrors
		if errors.As(err, &gqlErrs) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing issue types: %w", err)
	}
	if out.Repository.IssueTypes == nil {
		return nil, nil
	}
	return out.Repository.IssueTypes.Nodes, nil
}

// GetIssuesBatch fetches full records for the given issue numbers in one
// round-trip, keyed by number. Numbers with no matching issue are absent
// from the result.
func (c *Client) GetIssuesBatch(ctx context.Context, owner, name string, numbers []int) (map[int]*Issue, error) {
	if len(numbers) == 0 {
		return map[int]*Issue{}, nil
	}

	var fields strings.Builder
	for i, n := range numbers {
		fmt.Fprintf(&fields, "    issue_%d: issue(number: %d) { id number title body state url }\n", i, n)
	}
	query := fmt.Sprintf(`query($owner: String!, $name: String!) {
  repository(owner: $owner, name: $name) {
%s  }
}`, fields.String())

	var out struct {
		Repository map[string]*Issue `json:"repository"`
	}
	if err := c.do(ctx, query, map[string]any{"owner": owner, "name": name}, &out); err != nil {
		return nil, fmt.Errorf("fetching issues: %w", err)
	}

	issues := make(map[int]*Issue, len(numbers))
	for i, n := range numbers {
		if issue := out.Repository[fmt.Sprintf("issue_%d", i)]; issue != nil {
			issues[n] = issue
		}
	}
	return issues, nil
}

// CreateIssuesBatch creates the given issues in one compound mutation and
// returns per-item results in input order.
func (c *Client) CreateIssuesBatch(ctx context.Context, inputs []CreateIssueInput) ([]CreateIssueResult, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	tmpl := batchTemplate{
		Field:     "createIssue",
		Alias:     "create",
		InputType: "CreateIssueInput!",
		Selection: "issue { id number title body state url }",
	}
	items, err := c.mutateBatch(ctx, tmpl, asAny(inputs))
	if err != nil {
		return nil, fmt.Errorf("creating issues: %w", err)
	}

	results := make([]CreateIssueResult, len(items))
	for i, item := range items {
		if item.Err != nil {
			results[i].Err = item.Err
			continue
		}
		var payload struct {
			Issue *Issue `json:"issue"`
		}
		if item.Payload == nil || json.Unmarshal(item.Payload, &payload) != nil || payload.Issue == nil {
			results[i].Err = fmt.Errorf("no issue returned for item %d", i)
			continue
		}
		results[i].Issue = payload.Issue
	}
	return results, nil
}

// UpdateIssuesBatch applies the given content updates in one compound
// mutation. The returned slice holds one error (or nil) per input.
func (c *Client) UpdateIssuesBatch(ctx context.Context, inputs []UpdateIssueInput) ([]error, error) {
	tmpl := batchTemplate{
		Field:     "updateIssue",
		Alias:     "update",
		InputType: "UpdateIssueInput!",
		Selection: "issue { id }",
	}
	return c.mutateBatchErrs(ctx, tmpl, asAny(inputs), "updating issues")
}

// CloseIssuesBatch closes the given issues (by node ID) in one mutation.
func (c *Client) CloseIssuesBatch(ctx context.Context, issueIDs []string) ([]error, error) {
	tmpl := batchTemplate{
		Field:     "closeIssue",
		Alias:     "close",
		InputType: "CloseIssueInput!",
		Selection: "issue { id }",
	}
	inputs := make([]any, len(issueIDs))
	for i, id := range issueIDs {
		inputs[i] = map[string]any{"issueId": id}
	}
	return c.mutateBatchErrs(ctx, tmpl, inputs, "closing issues")
}

// ReopenIssuesBatch reopens the given issues (by node ID) in one mutation.
func (c *Client) ReopenIssuesBatch(ctx context.Context, issueIDs []string) ([]error, error) {
	tmpl := batchTemplate{
		Field:     "reopenIssue",
		Alias:     "reopen",
		InputType: "ReopenIssueInput!",
		Selection: "issue { id }",
	}
	inputs := make([]any, len(issueIDs))
	for i, id := range issueIDs {
		inputs[i] = map[string]any{"issueId": id}
	}
	return c.mutateBatchErrs(ctx, tmpl, inputs, "reopening issues")
}

// mutateBatch builds, executes, and demultiplexes a compound mutation.
func (c *Client) mutateBatch(ctx context.Context, tmpl batchTemplate, inputs []any) ([]batchItem, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	document, aliases, variables := tmpl.build(inputs)
	resp, err := c.execute(ctx, document, variables)
	if err != nil {
		return nil, err
	}
	return demux(resp, aliases)
}

// mutateBatchErrs is mutateBatch for operations whose payload carries no
// information beyond success, reducing each item to an error or nil.
func (c *Client) mutateBatchErrs(ctx context.Context, tmpl batchTemplate, inputs []any, what string) ([]error, error) {
	items, err := c.mutateBatch(ctx, tmpl, inputs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	errs := make([]error, len(items))
	for i, item := range items {
		if item.Err != nil {
			errs[i] = item.Err
		} else if item.Payload == nil {
			errs[i] = fmt.Errorf("no data returned for item %d", i)
		}
	}
	return errs, nil
}

// asAny widens a typed input slice for the batch builder.
func asAny[T any](inputs []T) []any {
	out := make([]any, len(inputs))
	for i, in := range inputs {
		out[i] = in
	}
	return out
}
