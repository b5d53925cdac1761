package github

import "testing"

func TestIsIdempotentConflict(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"The issue is already a sub-issue of this parent", true},
		{"Issue is already a child of another issue", true},
		{"This issue already has this sub-issue", true},
		{"Cannot create duplicate sub-issues", true},
		{"An issue may only have one parent", true},
		{"The item is already in the project", true},
		{"Content already added to this project", true},
		{"ALREADY EXISTS", true},
		{"Something went wrong", false},
		{"Field 'issueId' is required", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsIdempotentConflict(tt.message); got != tt.want {
			t.Errorf("IsIdempotentConflict(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}
