package buildinfo

import (
	"runtime/debug"
	"testing"
)

func TestBinaryVersionDefault(t *testing.T) {
	if BinaryVersion != "dev" {
		t.Errorf("Expected BinaryVersion to be 'dev', got '%s'", BinaryVersion)
	}
}

func TestModuleVersionMatchesBuildInfo(t *testing.T) {
	expected := ""
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		expected = info.Main.Version
	}
	if actual := ModuleVersion(); actual != expected {
		t.Errorf("ModuleVersion() = '%s', expected '%s'", actual, expected)
	}
}

func TestVersionPrefersLdflags(t *testing.T) {
	orig := BinaryVersion
	defer func() { BinaryVersion = orig }()

	BinaryVersion = "v1.4.0"
	if got := Version(); got != "v1.4.0" {
		t.Errorf("Version() = %q, expected v1.4.0", got)
	}

	BinaryVersion = "dev"
	if got := Version(); got == "" {
		t.Error("Version() should never be empty")
	}
}

func TestGet(t *testing.T) {
	origCommit := Commit
	defer func() { Commit = origCommit }()

	Commit = "abc123"
	info := Get()
	if info.Commit != "abc123" {
		t.Errorf("Get().Commit = %q, expected abc123", info.Commit)
	}
	if info.Version == "" {
		t.Error("Get().Version should not be empty")
	}
}
