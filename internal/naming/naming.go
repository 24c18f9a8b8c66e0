// Package naming computes timestamped backup names and resolves collisions.
package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/thoreinstein/qbak/internal/config"
	"github.com/thoreinstein/qbak/internal/qerr"
)

// timestampLayout is the ISO-8601 basic format without colons, safe for
// filenames on every filesystem family.
const timestampLayout = "20060102T150405"

// MaxCollisionAttempts bounds the collision counter. Exceeding it requires
// thousands of backups of the same source within one second.
const MaxCollisionAttempts = 9999

// BackupName is the computed destination identity for one backup.
// It is immutable; WithCounter returns a new value.
type BackupName struct {
	// Dir is the directory the backup is created in (the source's parent).
	Dir string

	// Stem is the source name up to the final extension.
	Stem string

	// Ext is the final extension without the dot, or empty.
	Ext string

	// Timestamp is the formatted UTC creation time.
	Timestamp string

	// Suffix is the configured backup suffix literal.
	Suffix string

	// Counter disambiguates collisions; 0 means no counter.
	Counter int
}

// Filename composes the backup filename:
// {stem}-{timestamp}-{suffix}[-{counter}][.{ext}]
func (n BackupName) Filename() string {
	var b strings.Builder
	b.WriteString(n.Stem)
	b.WriteByte('-')
	b.WriteString(n.Timestamp)
	b.WriteByte('-')
	b.WriteString(n.Suffix)
	if n.Counter > 0 {
		fmt.Fprintf(&b, "-%d", n.Counter)
	}
	if n.Ext != "" {
		b.WriteByte('.')
		b.WriteString(n.Ext)
	}
	return b.String()
}

// Path returns the full destination path.
func (n BackupName) Path() string {
	return filepath.Join(n.Dir, n.Filename())
}

// WithCounter returns a copy of the name carrying the given counter.
func (n BackupName) WithCounter(c int) BackupName {
	n.Counter = c
	return n
}

// SplitFilename splits a filename into stem and final extension.
// Only the last dot counts: "data.tar.gz" gives ("data.tar", "gz").
// A leading dot is part of the stem (".bashrc" has no extension), and a
// trailing dot is dropped ("file." gives ("file", "")).
func SplitFilename(name string) (stem, ext string) {
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 {
		return name, ""
	}
	if dot == len(name)-1 {
		return name[:dot], ""
	}
	return name[:dot], name[dot+1:]
}

// FormatTimestamp renders t in UTC using the configured format name.
// Only "YYYYMMDDTHHMMSS" is supported; unknown names fall back to it.
func FormatTimestamp(t time.Time, format string) string {
	_ = format // single supported layout for now
	return t.UTC().Format(timestampLayout)
}

// Resolve computes the backup name for a source path at the given time.
// It does not consult the filesystem; see ResolveCollision.
func Resolve(source string, now time.Time, cfg config.Config) (BackupName, error) {
	base := filepath.Base(source)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return BackupName{}, qerr.Validation("invalid source filename: %q", source)
	}

	stem, ext := SplitFilename(base)
	return BackupName{
		Dir:       filepath.Dir(source),
		Stem:      stem,
		Ext:       ext,
		Timestamp: FormatTimestamp(now, cfg.TimestampFormat),
		Suffix:    cfg.BackupSuffix,
	}, nil
}

// ResolveCollision returns the first name derived from n whose path does not
// exist, incrementing the counter from 1 as needed. The existence check is a
// point-in-time read; the engine re-checks immediately before its atomic
// rename to close the race window.
func ResolveCollision(n BackupName) (BackupName, error) {
	if !exists(n.Path()) {
		return n, nil
	}
	for c := 1; c <= MaxCollisionAttempts; c++ {
		candidate := n.WithCounter(c)
		if !exists(candidate.Path()) {
			return candidate, nil
		}
	}
	return BackupName{}, &qerr.CollisionExhaustedError{
		Path:     n.Path(),
		Attempts: MaxCollisionAttempts,
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
