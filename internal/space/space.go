// Package space estimates backup sizes and checks destination filesystems
// for room before any copying starts.
package space

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/thoreinstein/qbak/internal/logging"
	"github.com/thoreinstein/qbak/internal/qerr"
)

// fallbackAvailable is assumed when the filesystem cannot be queried.
// Conservative enough to catch obviously oversized backups while keeping
// exotic filesystems usable.
const fallbackAvailable = 1 << 30 // 1 GiB

// Check verifies the destination filesystem can hold needed bytes plus a 10%
// margin for metadata. Failure to query the filesystem degrades to a logged
// warning and an assumed 1 GiB.
func Check(ctx context.Context, needed uint64, destDir string) error {
	available := availableBytes(ctx, destDir)
	required := needed + needed/10
	if available < required {
		return &qerr.InsufficientSpaceError{
			Needed:    required,
			Available: available,
		}
	}
	return nil
}

// Estimate returns the total byte size of a file or directory tree. Symlinks
// contribute their own length, not their target's, and are never traversed.
func Estimate(path string) (uint64, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, errors.Wrapf(err, "stat %s", path)
	}
	if !info.IsDir() {
		return uint64(info.Size()), nil
	}

	visited := make(map[string]struct{})
	return dirSize(path, visited)
}

func dirSize(dir string, visited map[string]struct{}) (uint64, error) {
	canonical, err := filepath.EvalSymlinks(dir)
	if err != nil {
		// Unresolvable entries are skipped rather than failing the estimate.
		return 0, nil
	}
	if _, seen := visited[canonical]; seen {
		return 0, &qerr.SymlinkLoopError{Path: dir}
	}
	visited[canonical] = struct{}{}
	defer delete(visited, canonical)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errors.Wrapf(err, "read dir %s", dir)
	}

	var total uint64
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		info, err := os.Lstat(path)
		if err != nil {
			return 0, errors.Wrapf(err, "stat %s", path)
		}
		if info.IsDir() {
			sub, err := dirSize(path, visited)
			if err != nil {
				return 0, err
			}
			total += sub
		} else {
			total += uint64(info.Size())
		}
	}
	return total, nil
}

// availableBytes queries free space on the filesystem holding dir, walking up
// to the nearest existing ancestor first.
func availableBytes(ctx context.Context, dir string) uint64 {
	probe := nearestExisting(dir)

	usage, err := disk.UsageWithContext(ctx, probe)
	if err != nil {
		logging.FromContext(ctx).Warn("could not determine available disk space, assuming 1 GiB",
			"path", probe, "error", err)
		return fallbackAvailable
	}
	return usage.Free
}

func nearestExisting(dir string) string {
	current := dir
	for {
		if _, err := os.Stat(current); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return current
		}
		current = parent
	}
}
