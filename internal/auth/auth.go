// Package auth resolves the GitHub token used for API calls.
package auth

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Token returns a GitHub token from GITHUB_TOKEN, GH_TOKEN, or the gh CLI,
// in that order.
func Token() (string, error) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return token, nil
	}
	if token := os.Getenv("GH_TOKEN"); token != "" {
		return token, nil
	}
	if token, err := ghCLIToken(); err == nil && token != "" {
		return token, nil
	}
	return "", fmt.Errorf("no GitHub token found; set GITHUB_TOKEN or GH_TOKEN, or authenticate with 'gh auth login'")
}

// ghCLIToken shells out to the gh CLI for a stored token.
func ghCLIToken() (string, error) {
	out, err := exec.Command("gh", "auth", "token").Output()
	if err != nil {
		return "", fmt.Errorf("running gh auth token: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
