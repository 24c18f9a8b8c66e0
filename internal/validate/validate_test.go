package validate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/qbak/internal/config"
	"github.com/thoreinstein/qbak/internal/qerr"
)

var testTime = time.Date(2025, 6, 3, 14, 52, 31, 0, time.UTC)

func TestSourceValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "document.txt")
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Source(path, testTime, config.Default()); err != nil {
		t.Errorf("Source() = %v, want nil", err)
	}
}

func TestSourceValidDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "project")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := Source(sub, testTime, config.Default()); err != nil {
		t.Errorf("Source() = %v, want nil", err)
	}
}

func TestSourceNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.txt")

	err := Source(path, testTime, config.Default())
	var notFound *qerr.SourceNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want SourceNotFoundError", err)
	}
	if notFound.Path != path {
		t.Errorf("Path = %q, want %q", notFound.Path, path)
	}
}

func TestSourceRejectsTraversal(t *testing.T) {
	inputs := []string{
		"../etc/passwd",
		"../../root/.ssh",
		"subdir/../../../etc/passwd",
		"normal/../dangerous/../../etc",
	}
	for _, input := range inputs {
		err := Source(input, testTime, config.Default())
		var traversal *qerr.PathTraversalError
		if !errors.As(err, &traversal) {
			t.Errorf("Source(%q) = %v, want PathTraversalError", input, err)
		}
	}
}

func TestSourceAllowsDotSegments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	// A single-dot segment is harmless and common in shell usage.
	dotted := dir + string(filepath.Separator) + "." + string(filepath.Separator) + "file.txt"
	if err := Source(dotted, testTime, config.Default()); err != nil {
		t.Errorf("Source(%q) = %v, want nil", dotted, err)
	}
}

func TestSourceSymlinkLoop(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	if err := os.Symlink(b, a); err != nil {
		t.Skipf("symlink: %v", err)
	}
	if err := os.Symlink(a, b); err != nil {
		t.Fatal(err)
	}

	err := Source(a, testTime, config.Default())
	var loop *qerr.SymlinkLoopError
	if !errors.As(err, &loop) {
		t.Fatalf("error = %v, want SymlinkLoopError", err)
	}
}

func TestSourceFollowsSaneSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.txt")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlink: %v", err)
	}

	if err := Source(link, testTime, config.Default()); err != nil {
		t.Errorf("Source() = %v, want nil", err)
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"normal-file.txt", false},
		{"file_with-chars.123", false},
		{"with spaces and ünïcode.txt", false},
		{"file<test>.txt", true},
		{"file:test.txt", true},
		{"file|test.txt", true},
		{"file?.txt", true},
		{"file*.txt", true},
		{"CON.txt", true},
		{"con.txt", true},
		{"COM1.txt", true},
		{"lpt9.txt", true},
		{"file\x00name.txt", true},
		{"file\nname.txt", true},
	}
	for _, tt := range tests {
		err := Name(tt.name, config.DefaultMaxFilenameLength)
		if (err != nil) != tt.wantErr {
			t.Errorf("Name(%q) = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestNameLength(t *testing.T) {
	exact := strings.Repeat("a", 255)
	if err := Name(exact, 255); err != nil {
		t.Errorf("Name(255 chars, max 255) = %v, want nil", err)
	}

	long := strings.Repeat("a", 256)
	err := Name(long, 255)
	var tooLong *qerr.FilenameTooLongError
	if !errors.As(err, &tooLong) {
		t.Fatalf("error = %v, want FilenameTooLongError", err)
	}
	if tooLong.Length != 256 || tooLong.Max != 255 {
		t.Errorf("Length/Max = %d/%d, want 256/255", tooLong.Length, tooLong.Max)
	}
}

func TestDestinationFree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.txt")
	if err := Destination(path); err != nil {
		t.Errorf("Destination() = %v, want nil", err)
	}
}

func TestDestinationExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.txt")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	err := Destination(path)
	var exists *qerr.BackupExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("error = %v, want BackupExistsError", err)
	}
}

func TestDestinationReadOnlyDir(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("running as root, permission checks are bypassed")
	}
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	err := Destination(filepath.Join(dir, "backup.txt"))
	var denied *qerr.PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("error = %v, want PermissionDeniedError", err)
	}
}
