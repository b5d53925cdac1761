package auth

import "testing"

func TestTokenFromEnv(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp_primary")
	t.Setenv("GH_TOKEN", "ghp_fallback")

	token, err := Token()
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	if token != "ghp_primary" {
		t.Errorf("Token() = %q, want GITHUB_TOKEN to win", token)
	}
}

func TestTokenFallbackEnv(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "ghp_fallback")

	token, err := Token()
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	if token != "ghp_fallback" {
		t.Errorf("Token() = %q, want GH_TOKEN", token)
	}
}

func TestTokenMissing(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "")
	t.Setenv("PATH", t.TempDir()) // hide any gh binary

	if _, err := Token(); err == nil {
		t.Fatal("Token() = nil error, want one naming the env vars")
	}
}
