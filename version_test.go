package twinmesh

import "testing"

func TestVersion(t *testing.T) {
	if Version == "" {
		t.Fatal("Version should not be empty")
	}
	if Version[0] != 'v' {
		t.Fatalf("Version should start with 'v', got %q", Version)
	}
}

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	if info.Version != Version {
		t.Fatalf("Expected %q, got %q", Version, info.Version)
	}
}
