package qerr

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"interrupted", ErrInterrupted, ExitInterrupted},
		{"wrapped interrupted", errors.Wrap(ErrInterrupted, "copying file"), ExitInterrupted},
		{"config", Config("bad key"), ExitUsage},
		{"validation", Validation("no targets"), ExitUsage},
		{"not found", &SourceNotFoundError{Path: "/x"}, ExitFailure},
		{"too long", &FilenameTooLongError{Length: 300, Max: 255}, ExitFailure},
		{"generic", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRecoverable(t *testing.T) {
	recoverable := []error{
		&SourceNotFoundError{Path: "/x"},
		&PermissionDeniedError{Path: "/x"},
		&FilenameTooLongError{Length: 300, Max: 255},
		&InvalidFilesystemCharsError{Name: "a|b", Chars: "|"},
		&PathTraversalError{Path: "../etc"},
		&SymlinkLoopError{Path: "/x"},
		&InsufficientSpaceError{Needed: 10, Available: 5},
		Validation("bad input"),
		errors.Wrap(&SourceNotFoundError{Path: "/x"}, "target 2"),
	}
	for _, err := range recoverable {
		if !Recoverable(err) {
			t.Errorf("Recoverable(%v) = false, want true", err)
		}
	}

	fatal := []error{
		ErrInterrupted,
		Config("broken"),
		errors.New("io failure"),
		&CollisionExhaustedError{Path: "/x", Attempts: 100},
	}
	for _, err := range fatal {
		if Recoverable(err) {
			t.Errorf("Recoverable(%v) = true, want false", err)
		}
	}
}

func TestFilenameTooLongReportsBothLengths(t *testing.T) {
	err := &FilenameTooLongError{Name: "long.txt", Length: 260, Max: 255}
	msg := err.Error()
	if !strings.Contains(msg, "260") || !strings.Contains(msg, "255") {
		t.Errorf("message %q should contain both lengths", msg)
	}
}

func TestInsufficientSpaceMessage(t *testing.T) {
	err := &InsufficientSpaceError{Needed: 2 * 1024 * 1024, Available: 1024}
	msg := err.Error()
	if !strings.Contains(msg, "MiB") {
		t.Errorf("message %q should humanize the needed size", msg)
	}
}

func TestSuggestions(t *testing.T) {
	if s := Suggestions(&FilenameTooLongError{Length: 300, Max: 255}); len(s) == 0 {
		t.Error("expected suggestions for FilenameTooLong")
	}
	if s := Suggestions(&InvalidFilesystemCharsError{Name: "a<b", Chars: "<"}); len(s) == 0 || !strings.Contains(s[0], "<") {
		t.Errorf("chars suggestion should name the offending characters, got %v", s)
	}
	if s := Suggestions(ErrInterrupted); s != nil {
		t.Errorf("no suggestions expected for interruption, got %v", s)
	}
}

func TestWrapPath(t *testing.T) {
	if WrapPath(nil, "/x") != nil {
		t.Error("WrapPath(nil) should be nil")
	}
	err := WrapPath(errors.New("read failed"), "/data/file.txt")
	if !strings.Contains(err.Error(), "/data/file.txt") {
		t.Errorf("wrapped error %q should contain the path", err)
	}
}
