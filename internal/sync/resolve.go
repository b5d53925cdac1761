package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/drew-myers/ticket-to-ride/internal/github"
)

// validateTypeMappings checks every configured ticket-type mapping against
// the repository's issue types. An empty mapping or an empty type list (the
// repo does not have the feature) validates trivially.
func validateTypeMappings(mapping map[string]string, available []github.IssueType) error {
	if len(mapping) == 0 || len(available) == 0 {
		return nil
	}

	byName := make(map[string]bool, len(available))
	names := make([]string, len(available))
	for i, it := range available {
		byName[strings.ToLower(it.Name)] = true
		names[i] = it.Name
	}

	for ticketType, githubType := range mapping {
		if !byName[strings.ToLower(githubType)] {
			return fmt.Errorf("type mapping %q -> %q: repository has no issue type %q (available: %s)",
				ticketType, githubType, githubType, strings.Join(names, ", "))
		}
	}
	return nil
}

// resolveIssueType maps a ticket type to a GitHub issue type ID, or returns
// empty when the repository has no issue types or the type is unmapped.
func resolveIssueType(ticketType string, mapping map[string]string, typeIDs map[string]string) string {
	if len(typeIDs) == 0 {
		return ""
	}
	githubType, ok := mapping[ticketType]
	if !ok {
		return ""
	}
	return typeIDs[strings.ToLower(githubType)]
}

// resolveLabelIDs maps ticket tags to label IDs, creating missing labels
// when configured to. A tag that cannot be resolved is dropped with a
// warning rather than failing the ticket.
func (e *Engine) resolveLabelIDs(ctx context.Context, tags []string) []string {
	if !e.cfg.Labels.SyncTags || len(tags) == 0 {
		return nil
	}

	var ids []string
	for _, tag := range tags {
		key := strings.ToLower(tag)
		if id, ok := e.labelIDs[key]; ok {
			ids = append(ids, id)
			continue
		}

		// The label may have appeared since construction; refresh once.
		if labels, err := e.client.ListLabels(ctx, e.owner, e.repo); err == nil {
			for _, l := range labels {
				e.labelIDs[strings.ToLower(l.Name)] = l.ID
			}
			if id, ok := e.labelIDs[key]; ok {
				ids = append(ids, id)
				continue
			}
		}

		if !e.cfg.Labels.CreateMissing {
			continue
		}
		label, err := e.client.CreateLabel(ctx, e.repoID, tag)
		if err != nil {
			e.logger.Warn("could not create label", "label", tag, "error", err)
			continue
		}
		e.labelIDs[key] = label.ID
		ids = append(ids, label.ID)
	}
	return ids
}
