package engine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/qbak/internal/config"
	"github.com/thoreinstein/qbak/internal/guard"
	"github.com/thoreinstein/qbak/internal/logging"
	"github.com/thoreinstein/qbak/internal/naming"
	"github.com/thoreinstein/qbak/internal/qerr"
	"github.com/thoreinstein/qbak/internal/space"
)

func backupDirectory(ctx context.Context, source string, name naming.BackupName, g *guard.Guard, cfg config.Config, deps Deps) (*Outcome, error) {
	plan, err := scanTree(ctx, source, cfg, deps)
	if err != nil {
		return nil, err
	}
	deps.Reporter.FinishScan(plan.files, plan.bytes)

	if err := space.Check(ctx, plan.bytes, name.Dir); err != nil {
		return nil, err
	}

	root := name.Path()
	if err := os.Mkdir(root, 0o755); err != nil {
		if os.IsPermission(err) {
			return nil, &qerr.PermissionDeniedError{Path: name.Dir}
		}
		return nil, errors.Wrapf(err, "create %s", root)
	}

	outcome := &Outcome{SourcePath: source, BackupPath: root, EntryErrors: plan.errs}
	var dirs []planEntry

	for _, entry := range plan.entries {
		if deps.Registry.Interrupted() || ctx.Err() != nil {
			deps.Reporter.Done()
			return nil, qerr.ErrInterrupted
		}

		dest := filepath.Join(root, entry.Rel)
		switch entry.Kind {
		case kindDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				outcome.EntryErrors = append(outcome.EntryErrors, EntryError{Path: entry.Source, Err: err})
				continue
			}
			dirs = append(dirs, entry)

		case kindSymlink:
			if err := recreateSymlink(entry.Source, dest); err != nil {
				outcome.EntryErrors = append(outcome.EntryErrors, EntryError{Path: entry.Source, Err: err})
			}

		case kindFile:
			written, err := copyEntry(ctx, entry.Source, dest, cfg, deps.Registry)
			if err != nil {
				if errors.Is(err, qerr.ErrInterrupted) {
					deps.Reporter.Done()
					return nil, err
				}
				outcome.EntryErrors = append(outcome.EntryErrors, EntryError{Path: entry.Source, Err: err})
				continue
			}
			outcome.FilesProcessed++
			outcome.TotalBytes += written
			deps.Reporter.CopyProgress(outcome.FilesProcessed, outcome.TotalBytes, entry.Source)
		}
	}

	// Directory metadata is applied children-first so parent timestamps are
	// not disturbed by later writes inside them.
	if cfg.PreservePermissions {
		for i := len(dirs) - 1; i >= 0; i-- {
			preserveMetadata(ctx, dirs[i].Source, filepath.Join(root, dirs[i].Rel))
		}
		preserveMetadata(ctx, source, root)
	}

	deps.Reporter.Done()

	if outcome.Failed() {
		logging.FromContext(ctx).Warn("backup completed with errors",
			"path", root, "failed_entries", len(outcome.EntryErrors))
	}
	return outcome, nil
}

// copyEntry copies one file into the backup tree via a temp file in the same
// directory. The temp lives inside the backup root, so abort cleanup of the
// root covers it.
func copyEntry(ctx context.Context, src, dest string, cfg config.Config, reg *guard.Registry) (uint64, error) {
	tmp, err := tempPath(filepath.Dir(dest))
	if err != nil {
		return 0, err
	}

	written, err := copyContents(ctx, src, tmp, reg)
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if cfg.PreservePermissions {
		preserveMetadata(ctx, src, tmp)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, errors.Wrapf(err, "rename %s", dest)
	}
	return written, nil
}

func recreateSymlink(src, dest string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return errors.Wrapf(err, "readlink %s", src)
	}
	if err := os.Symlink(target, dest); err != nil {
		return errors.Wrapf(err, "symlink %s", dest)
	}
	return nil
}
