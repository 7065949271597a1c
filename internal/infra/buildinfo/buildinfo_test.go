package buildinfo

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}
	if info.Commit != Commit {
		t.Errorf("Commit = %q, want %q", info.Commit, Commit)
	}
	if info.BuildTime != BuildTime {
		t.Errorf("BuildTime = %q, want %q", info.BuildTime, BuildTime)
	}
}

func TestString(t *testing.T) {
	s := String()

	if !strings.Contains(s, Version) {
		t.Errorf("String() = %q, missing version", s)
	}
	if !strings.Contains(s, Commit) {
		t.Errorf("String() = %q, missing commit", s)
	}
}
