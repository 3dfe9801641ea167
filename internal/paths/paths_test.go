package paths

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestProfilePathsNested(t *testing.T) {
	dir := Dir("work")
	if !strings.HasSuffix(dir, filepath.Join(".murmur", "profiles", "work")) {
		t.Errorf("Dir = %q, want .murmur/profiles/work suffix", dir)
	}
	if got := TokenPath("work"); filepath.Dir(got) != dir {
		t.Errorf("TokenPath parent = %q, want %q", filepath.Dir(got), dir)
	}
	if got := LogPath("work"); !strings.HasPrefix(got, dir) {
		t.Errorf("LogPath = %q, want under %q", got, dir)
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"main", "work-1", "a_b"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "Upper", "with space", "sla/sh", strings.Repeat("a", 65)}
	for _, name := range invalid {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", name)
		}
	}
}

func TestResolvePrecedence(t *testing.T) {
	if got := Resolve("flagged", "enved"); got != "flagged" {
		t.Errorf("flag override: got %q, want flagged", got)
	}
	if got := Resolve("", "enved"); got != "enved" {
		t.Errorf("env override: got %q, want enved", got)
	}
}
