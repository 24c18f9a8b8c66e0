package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigFile(t *testing.T) {
	got := ConfigFile()
	if !strings.HasSuffix(got, filepath.Join(AppName, "config.ini")) {
		t.Errorf("ConfigFile() = %q, want .../%s/config.ini", got, AppName)
	}
	if !strings.HasPrefix(got, ConfigHome()) {
		t.Errorf("ConfigFile() = %q, want prefix %q", got, ConfigHome())
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	if err := EnsureDir(dir, 0); err != nil {
		t.Fatalf("EnsureDir() error: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected a directory")
	}

	// Idempotent
	if err := EnsureDir(dir, 0); err != nil {
		t.Errorf("second EnsureDir() error: %v", err)
	}
}
