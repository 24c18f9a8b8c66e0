// Package engine performs the actual backup work: atomic single-file copies
// and recursive directory trees, with interrupt handling and cleanup
// registration throughout.
package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"

	"github.com/thoreinstein/qbak/internal/config"
	"github.com/thoreinstein/qbak/internal/guard"
	"github.com/thoreinstein/qbak/internal/naming"
	"github.com/thoreinstein/qbak/internal/progress"
	"github.com/thoreinstein/qbak/internal/space"
	"github.com/thoreinstein/qbak/internal/validate"
)

// Deps are the injected collaborators for one run. Registry is required;
// Reporter and Now default to a no-op reporter and time.Now.
type Deps struct {
	Registry *guard.Registry
	Reporter progress.Reporter
	Now      func() time.Time
}

func (d Deps) normalized() Deps {
	if d.Reporter == nil {
		d.Reporter = progress.Nop{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// EntryError records a single failed entry inside a directory backup.
type EntryError struct {
	Path string
	Err  error
}

// Outcome describes a finished backup.
type Outcome struct {
	SourcePath     string
	BackupPath     string
	FilesProcessed int
	TotalBytes     uint64
	Duration       time.Duration

	// EntryErrors are per-entry failures from a directory backup. The
	// partial tree is kept; a non-empty list still fails the target.
	EntryErrors []EntryError
}

// Failed reports whether any entry could not be backed up.
func (o *Outcome) Failed() bool {
	return len(o.EntryErrors) > 0
}

// Summary renders the user-facing success line.
func (o *Outcome) Summary() string {
	if o.FilesProcessed == 1 {
		return fmt.Sprintf("Created backup: %s (%s)", o.BackupPath, humanize.IBytes(o.TotalBytes))
	}
	return fmt.Sprintf("Created backup: %s (%d files, %s)",
		o.BackupPath, o.FilesProcessed, humanize.IBytes(o.TotalBytes))
}

// Backup creates a timestamped backup of source next to it. Directories are
// copied recursively. The returned Outcome may carry entry errors; a nil
// error with entry errors means the backup is partial.
func Backup(ctx context.Context, source string, cfg config.Config, deps Deps) (*Outcome, error) {
	deps = deps.normalized()
	start := time.Now()
	now := deps.Now()

	if err := validate.Source(source, now, cfg); err != nil {
		return nil, err
	}

	name, err := naming.Resolve(source, now, cfg)
	if err != nil {
		return nil, err
	}
	name, err = naming.ResolveCollision(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", source)
	}

	g := deps.Registry.Register(name.Path())

	var outcome *Outcome
	if info.IsDir() {
		outcome, err = backupDirectory(ctx, source, name, g, cfg, deps)
	} else {
		outcome, err = backupFile(ctx, source, name, g, cfg, deps)
	}
	if err != nil {
		g.Abort()
		return nil, err
	}

	g.Complete()
	outcome.Duration = time.Since(start)
	return outcome, nil
}

// Preview resolves what Backup would create without touching the filesystem
// beyond reads. Returns the final backup path and the estimated size.
func Preview(source string, cfg config.Config, now time.Time) (string, uint64, error) {
	if err := validate.Source(source, now, cfg); err != nil {
		return "", 0, err
	}
	name, err := naming.Resolve(source, now, cfg)
	if err != nil {
		return "", 0, err
	}
	name, err = naming.ResolveCollision(name)
	if err != nil {
		return "", 0, err
	}
	size, err := space.Estimate(source)
	if err != nil {
		return "", 0, err
	}
	return name.Path(), size, nil
}
