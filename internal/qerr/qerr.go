package qerr

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
)

// Exit codes returned to the operating system.
const (
	// ExitSuccess indicates all targets were backed up.
	ExitSuccess = 0

	// ExitFailure indicates at least one target failed.
	ExitFailure = 1

	// ExitUsage indicates a usage or configuration error.
	ExitUsage = 2

	// ExitInterrupted indicates the run was cancelled by a signal.
	ExitInterrupted = 130
)

// ErrInterrupted is returned when a backup is cancelled by the user.
// It is fatal for the whole process and maps to exit code 130.
var ErrInterrupted = errors.New("operation interrupted by user")

// SourceNotFoundError indicates the target path does not exist.
type SourceNotFoundError struct {
	Path string
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("source not found: %s", e.Path)
}

// FilenameTooLongError indicates the computed backup name exceeds the
// configured maximum. It carries both lengths for the user-facing message.
type FilenameTooLongError struct {
	Name   string
	Length int
	Max    int
}

func (e *FilenameTooLongError) Error() string {
	return fmt.Sprintf("backup filename too long: %d chars (max: %d)", e.Length, e.Max)
}

// InsufficientSpaceError indicates the destination filesystem does not have
// room for the estimated operation size plus the safety margin.
type InsufficientSpaceError struct {
	Needed    uint64
	Available uint64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space: need %s, have %s",
		humanize.IBytes(e.Needed), humanize.IBytes(e.Available))
}

// PermissionDeniedError indicates a path could not be read or written.
type PermissionDeniedError struct {
	Path string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Path)
}

// InvalidFilesystemCharsError indicates a backup name contains characters
// that are unsafe on common filesystems.
type InvalidFilesystemCharsError struct {
	Name  string
	Chars string
}

func (e *InvalidFilesystemCharsError) Error() string {
	return fmt.Sprintf("invalid filesystem characters in %q: %s", e.Name, e.Chars)
}

// SymlinkLoopError indicates symlink resolution exceeded the depth limit or
// revisited an ancestor during a directory walk.
type SymlinkLoopError struct {
	Path string
}

func (e *SymlinkLoopError) Error() string {
	return fmt.Sprintf("symlink loop detected: %s", e.Path)
}

// PathTraversalError indicates the input contained a ".." segment.
type PathTraversalError struct {
	Path string
}

func (e *PathTraversalError) Error() string {
	return fmt.Sprintf("path traversal attempt detected: %s", e.Path)
}

// BackupExistsError indicates the destination name is already taken.
// Collision resolution normally prevents this from surfacing.
type BackupExistsError struct {
	Path string
}

func (e *BackupExistsError) Error() string {
	return fmt.Sprintf("backup already exists: %s", e.Path)
}

// CollisionExhaustedError indicates collision resolution ran out of counter
// values, which requires thousands of same-second backups of one source.
type CollisionExhaustedError struct {
	Path     string
	Attempts int
}

func (e *CollisionExhaustedError) Error() string {
	return fmt.Sprintf("could not find a free backup name for %s after %d attempts", e.Path, e.Attempts)
}

// ConfigError indicates the configuration file could not be loaded or parsed.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// ValidationError indicates invalid user input not covered by a more
// specific variant.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Config creates a ConfigError with the given message.
func Config(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// Validation creates a ValidationError with the given message.
func Validation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// WrapPath annotates an I/O error with the path that caused it.
func WrapPath(err error, path string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "%s", path)
}

// Recoverable reports whether processing may continue with the next target
// after this error. Validation-class and per-path resource errors are
// recoverable; interruption and config errors are not.
func Recoverable(err error) bool {
	switch {
	case errors.HasType(err, (*SourceNotFoundError)(nil)),
		errors.HasType(err, (*PermissionDeniedError)(nil)),
		errors.HasType(err, (*FilenameTooLongError)(nil)),
		errors.HasType(err, (*InvalidFilesystemCharsError)(nil)),
		errors.HasType(err, (*PathTraversalError)(nil)),
		errors.HasType(err, (*SymlinkLoopError)(nil)),
		errors.HasType(err, (*InsufficientSpaceError)(nil)),
		errors.HasType(err, (*ValidationError)(nil)):
		return true
	}
	return false
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrInterrupted):
		return ExitInterrupted
	case errors.HasType(err, (*ConfigError)(nil)),
		errors.HasType(err, (*ValidationError)(nil)):
		return ExitUsage
	}
	return ExitFailure
}

// Suggestions returns remediation hints for the error, if any.
func Suggestions(err error) []string {
	var tooLong *FilenameTooLongError
	if errors.As(err, &tooLong) {
		return []string{
			"Rename the source file to something shorter",
			"Use a shorter backup_suffix in the config file",
		}
	}
	var badChars *InvalidFilesystemCharsError
	if errors.As(err, &badChars) {
		return []string{
			fmt.Sprintf("Rename the file to remove problematic characters: %s", badChars.Chars),
		}
	}
	var noSpace *InsufficientSpaceError
	if errors.As(err, &noSpace) {
		return []string{
			"Free up disk space",
			"Remove old backup files",
		}
	}
	var denied *PermissionDeniedError
	if errors.As(err, &denied) {
		return []string{
			"Check file permissions",
			"Ensure the parent directory is writable",
		}
	}
	return nil
}
