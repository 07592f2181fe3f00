package version

import "testing"

func TestString(t *testing.T) {
	orig := [3]string{Version, GitSHA, BuildTime}
	defer func() { Version, GitSHA, BuildTime = orig[0], orig[1], orig[2] }()

	Version, GitSHA, BuildTime = "1.2.3", "abc123", "2025-01-01"
	if got, want := String(), "capability 1.2.3 (abc123, built 2025-01-01)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := Current(); got.Version != "1.2.3" || got.GitSHA != "abc123" {
		t.Errorf("Current() = %+v", got)
	}
}
