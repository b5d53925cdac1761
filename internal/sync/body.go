// Package sync reconciles local tickets against GitHub issues.
//
// A sync run classifies each ticket as create, update, skip, or conflict,
// executes the mutations in batched GraphQL calls, writes issue numbers back
// into the ticket files, and then runs the best-effort phases: sub-issue
// linking, project membership, and project field updates.
package sync

import (
	"fmt"
	"strings"
)

// Marker delimiters. Every issue body this tool creates starts with an
// invisible HTML comment naming the owning ticket; its presence is the sole
// signal that the issue is safe to overwrite on later runs.
const (
	markerPrefix = "<!-- ticket:"
	markerSuffix = " -->"
)

// Marker returns the identity marker for a ticket ID.
func Marker(ticketID string) string {
	return markerPrefix + ticketID + markerSuffix
}

// FormatIssueBody renders the remote issue body: the identity marker, the
// ticket body, a "Depends on" cross-reference section when the ticket has
// dependencies, and an attribution footer. issueNumbers maps ticket IDs to
// remote issue numbers; dependencies without an entry are rendered as
// backticked ticket IDs marked "(not synced)" rather than dropped.
func FormatIssueBody(ticketID, body string, deps []string, issueNumbers map[string]int) string {
	var b strings.Builder
	b.WriteString(Marker(ticketID))
	b.WriteString("\n\n")
	b.WriteString(body)

	if len(deps) > 0 {
		refs := make([]string, len(deps))
		for i, dep := range deps {
			if number, ok := issueNumbers[dep]; ok {
				refs[i] = fmt.Sprintf("#%d", number)
			} else {
				refs[i] = fmt.Sprintf("`%s` (not synced)", dep)
			}
		}
		b.WriteString("\n\n---\n**Depends on:** ")
		b.WriteString(strings.Join(refs, ", "))
	}

	fmt.Fprintf(&b, "\n\n---\n<sub>Synced from ticket `%s`</sub>", ticketID)
	return b.String()
}

// ExtractTicketMarker returns the ticket ID embedded in an issue body, or
// false if no marker is present. The marker is accepted anywhere in the body
// even though generation always places it first.
func ExtractTicketMarker(body string) (string, bool) {
	start := strings.Index(body, markerPrefix)
	if start < 0 {
		return "", false
	}
	rest := body[start+len(markerPrefix):]
	end := strings.Index(rest, markerSuffix)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}
