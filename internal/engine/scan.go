package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/qbak/internal/config"
	"github.com/thoreinstein/qbak/internal/logging"
	"github.com/thoreinstein/qbak/internal/qerr"
)

type entryKind int

const (
	kindFile entryKind = iota
	kindDir
	kindSymlink
)

// planEntry is one item to reproduce in the backup tree. Rel is the path
// under the backup root; Source is where the bytes come from, which differs
// from the tree position when symlinks are followed.
type planEntry struct {
	Rel    string
	Source string
	Kind   entryKind
	Size   uint64
}

// copyPlan is the result of the scan phase: a parent-before-child ordered
// entry list plus the totals that drive space checks and progress gating.
// Entries that fail during the scan land in errs and the walk continues.
type copyPlan struct {
	entries []planEntry
	files   int
	bytes   uint64
	errs    []EntryError
}

func (p *copyPlan) recordError(path string, err error) {
	p.errs = append(p.errs, EntryError{Path: path, Err: err})
}

// scanTree walks the source directory and builds the copy plan. The walk
// checks the interrupt flag per entry and detects symlink cycles by tracking
// canonical ancestors.
func scanTree(ctx context.Context, root string, cfg config.Config, deps Deps) (*copyPlan, error) {
	p := &copyPlan{}
	visited := make(map[string]struct{})
	if err := p.scanDir(ctx, root, "", cfg, deps, visited, 0); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *copyPlan) scanDir(ctx context.Context, dir, rel string, cfg config.Config, deps Deps, visited map[string]struct{}, linkDepth int) error {
	if deps.Registry.Interrupted() || ctx.Err() != nil {
		return qerr.ErrInterrupted
	}
	if linkDepth > cfg.MaxSymlinkDepth {
		return &qerr.SymlinkLoopError{Path: dir}
	}

	canonical, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", dir)
	}
	if _, seen := visited[canonical]; seen {
		return &qerr.SymlinkLoopError{Path: dir}
	}
	visited[canonical] = struct{}{}
	defer delete(visited, canonical)

	dirents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsPermission(err) {
			err = &qerr.PermissionDeniedError{Path: dir}
		} else {
			err = errors.Wrapf(err, "read dir %s", dir)
		}
		// Only the top-level source hard-fails. An unreadable subdirectory
		// is one failed entry; its siblings still get backed up.
		if rel == "" {
			return err
		}
		p.recordError(dir, err)
		return nil
	}

	for _, d := range dirents {
		if deps.Registry.Interrupted() || ctx.Err() != nil {
			return qerr.ErrInterrupted
		}

		name := d.Name()
		if !cfg.IncludeHidden && strings.HasPrefix(name, ".") {
			continue
		}

		src := filepath.Join(dir, name)
		entryRel := filepath.Join(rel, name)

		info, err := d.Info()
		if err != nil {
			p.recordError(src, errors.Wrapf(err, "stat %s", src))
			continue
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			if err := p.scanSymlink(ctx, src, entryRel, cfg, deps, visited, linkDepth); err != nil {
				return err
			}
		case info.IsDir():
			p.entries = append(p.entries, planEntry{Rel: entryRel, Source: src, Kind: kindDir})
			if err := p.scanDir(ctx, src, entryRel, cfg, deps, visited, linkDepth); err != nil {
				return err
			}
		default:
			p.addFile(entryRel, src, uint64(info.Size()), deps)
		}
	}
	return nil
}

func (p *copyPlan) scanSymlink(ctx context.Context, src, rel string, cfg config.Config, deps Deps, visited map[string]struct{}, linkDepth int) error {
	if !cfg.FollowSymlinks {
		p.entries = append(p.entries, planEntry{Rel: rel, Source: src, Kind: kindSymlink})
		return nil
	}

	target, err := os.Readlink(src)
	if err != nil {
		return errors.Wrapf(err, "readlink %s", src)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(src), target)
	}

	info, err := os.Stat(target)
	if err != nil {
		switch {
		case errors.Is(err, syscall.ELOOP):
			p.recordError(src, &qerr.SymlinkLoopError{Path: src})
		case os.IsNotExist(err):
			// Broken links have nothing to copy when following.
			logging.FromContext(ctx).Debug("skipping broken symlink", "path", src, "target", target)
		default:
			p.recordError(src, errors.Wrapf(err, "stat %s", src))
		}
		return nil
	}

	if info.IsDir() {
		p.entries = append(p.entries, planEntry{Rel: rel, Source: target, Kind: kindDir})
		return p.scanDir(ctx, target, rel, cfg, deps, visited, linkDepth+1)
	}
	p.addFile(rel, target, uint64(info.Size()), deps)
	return nil
}

func (p *copyPlan) addFile(rel, src string, size uint64, deps Deps) {
	p.entries = append(p.entries, planEntry{Rel: rel, Source: src, Kind: kindFile, Size: size})
	p.files++
	p.bytes += size
	deps.Reporter.ScanProgress(p.files, p.bytes, src)
}
