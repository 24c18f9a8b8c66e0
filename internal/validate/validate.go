// Package validate checks sources, destinations, and composed backup names
// before the engine touches the filesystem.
package validate

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/qbak/internal/config"
	"github.com/thoreinstein/qbak/internal/naming"
	"github.com/thoreinstein/qbak/internal/qerr"
)

// invalidChars are unsafe on at least one mainstream filesystem. Backups
// carrying them would not survive a copy to FAT/NTFS media.
const invalidChars = `<>:"|?*`

// reservedNames are device names Windows refuses as file stems.
var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// Source validates a backup target path before any work begins: traversal
// segments, existence, symlink sanity, readability, and the shape of the
// backup name it would produce.
func Source(path string, now time.Time, cfg config.Config) error {
	if path == "" {
		return qerr.Validation("empty source path")
	}

	// Raw-input check, before any canonicalization can hide a segment.
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return &qerr.PathTraversalError{Path: path}
		}
	}

	resolved, err := resolveLinks(path, cfg.MaxSymlinkDepth)
	if err != nil {
		return err
	}

	info, err := os.Lstat(resolved)
	switch {
	case err == nil:
	case os.IsNotExist(err):
		return &qerr.SourceNotFoundError{Path: path}
	case os.IsPermission(err):
		return &qerr.PermissionDeniedError{Path: path}
	default:
		return errors.Wrapf(err, "stat %s", path)
	}

	if err := probeReadable(resolved, info.IsDir()); err != nil {
		return err
	}

	name, err := naming.Resolve(path, now, cfg)
	if err != nil {
		return err
	}
	return Name(name.Filename(), cfg.MaxFilenameLength)
}

// Name checks a composed backup filename for length and portability.
func Name(name string, maxLength int) error {
	if len(name) > maxLength {
		return &qerr.FilenameTooLongError{
			Name:   name,
			Length: len(name),
			Max:    maxLength,
		}
	}

	var bad []rune
	for _, r := range name {
		if strings.ContainsRune(invalidChars, r) {
			bad = append(bad, r)
		}
	}
	if len(bad) > 0 {
		return &qerr.InvalidFilesystemCharsError{Name: name, Chars: string(bad)}
	}

	stem, _ := naming.SplitFilename(name)
	if _, ok := reservedNames[strings.ToUpper(stem)]; ok {
		return &qerr.InvalidFilesystemCharsError{
			Name:  name,
			Chars: "reserved name: " + strings.ToUpper(stem),
		}
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return &qerr.InvalidFilesystemCharsError{Name: name, Chars: "control characters"}
		}
	}
	return nil
}

// Destination checks that a resolved backup path is still free and that its
// directory accepts new files. The write probe catches read-only directories
// before the engine creates temp artifacts in them.
func Destination(path string) error {
	if _, err := os.Lstat(path); err == nil {
		return &qerr.BackupExistsError{Path: path}
	}

	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return &qerr.PermissionDeniedError{Path: dir}
	}

	probe, err := os.CreateTemp(dir, ".qbak-probe-*")
	if err != nil {
		if os.IsPermission(err) {
			return &qerr.PermissionDeniedError{Path: dir}
		}
		return errors.Wrapf(err, "probe %s", dir)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}

// resolveLinks follows a symlink chain at the given path, spending one unit
// of depth budget per hop. Directory-walk cycle detection is separate; this
// only bounds link-to-link chains such as a -> b -> a.
func resolveLinks(path string, maxDepth int) (string, error) {
	current := path
	for i := 0; i <= maxDepth; i++ {
		info, err := os.Lstat(current)
		if err != nil {
			return current, nil
		}
		if info.Mode()&os.ModeSymlink == 0 {
			return current, nil
		}
		target, err := os.Readlink(current)
		if err != nil {
			return "", errors.Wrapf(err, "readlink %s", current)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(current), target)
		}
		current = target
	}
	return "", &qerr.SymlinkLoopError{Path: path}
}

func probeReadable(path string, isDir bool) error {
	if isDir {
		if _, err := os.ReadDir(path); os.IsPermission(err) {
			return &qerr.PermissionDeniedError{Path: path}
		}
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return &qerr.PermissionDeniedError{Path: path}
		}
		return errors.Wrapf(err, "open %s", path)
	}
	f.Close()
	return nil
}
