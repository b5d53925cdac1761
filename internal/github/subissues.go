package github

import (
	"context"
	"fmt"
)

// SubIssueLink names a parent issue and the child to nest under it, both by
// node ID.
type SubIssueLink struct {
	ParentID string
	ChildID  string
}

// AddSubIssuesBatch links the given parent/child pairs in one compound
// mutation. Errors indicating a link already exists are treated as success
// so re-running a sync is safe; a missing alias in the response is likewise
// treated as success, since GitHub omits sub-operations it elided.
func (c *Client) AddSubIssuesBatch(ctx context.Context, links []SubIssueLink) ([]error, error) {
	if len(links) == 0 {
		return nil, nil
	}

	tmpl := batchTemplate{
		Field:     "addSubIssue",
		Alias:     "link",
		InputType: "AddSubIssueInput!",
		Selection: "issue { id }",
	}
	inputs := make([]any, len(links))
	for i, l := range links {
		inputs[i] = map[string]any{"issueId": l.ParentID, "subIssueId": l.ChildID}
	}
	items, err := c.mutateBatch(ctx, tmpl, inputs)
	if err != nil {
		return nil, fmt.Errorf("linking sub-issues: %w", err)
	}

	errs := make([]error, len(items))
	for i, item := range items {
		if item.Err != nil && !IsIdempotentConflict(item.Err.Error()) {
			errs[i] = item.Err
		}
	}
	return errs, nil
}
