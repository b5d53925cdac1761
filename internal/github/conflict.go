package github

import "strings"

// idempotentConflictPhrases are the known error messages GitHub returns when
// a mutation's effect is already in place. Matching is a case-insensitive
// substring check because the API reports these as free-text messages.
var idempotentConflictPhrases = []string{
	"already exists",
	"already a sub-issue",
	"is already a child",
	"already has this sub-issue",
	"duplicate sub-issues",
	"may only have one parent",
	"already in the project",
	"already added",
	"duplicate",
}

// IsIdempotentConflict reports whether an error message indicates the
// requested change was already applied. Batched sub-issue links and project
// additions treat such errors as success so re-running a sync is safe.
func IsIdempotentConflict(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range idempotentConflictPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
