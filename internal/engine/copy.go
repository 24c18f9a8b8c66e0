package engine

import (
	"context"
	"crypto/rand"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/qbak/internal/config"
	"github.com/thoreinstein/qbak/internal/guard"
	"github.com/thoreinstein/qbak/internal/naming"
	"github.com/thoreinstein/qbak/internal/qerr"
	"github.com/thoreinstein/qbak/internal/space"
	"github.com/thoreinstein/qbak/internal/validate"
)

// copyChunkSize bounds how much data is copied between interrupt checks.
// 64 KiB keeps Ctrl-C latency imperceptible even on slow media.
const copyChunkSize = 64 * 1024

// tempPrefix marks in-flight artifacts so they are recognizable in listings.
const tempPrefix = ".qbak-tmp-"

// renameAttempts bounds collision re-resolution at commit time. The window
// between the existence check and the rename is tiny; 100 attempts means a
// hostile writer, not normal concurrency.
const renameAttempts = 100

func backupFile(ctx context.Context, source string, name naming.BackupName, g *guard.Guard, cfg config.Config, deps Deps) (*Outcome, error) {
	size, err := space.Estimate(source)
	if err != nil {
		return nil, err
	}
	if err := space.Check(ctx, size, name.Dir); err != nil {
		return nil, err
	}
	if err := validate.Destination(name.Path()); err != nil {
		return nil, err
	}

	tmp, err := tempPath(name.Dir)
	if err != nil {
		return nil, err
	}
	g.AddTemp(tmp)

	written, err := copyContents(ctx, source, tmp, deps.Registry)
	if err != nil {
		return nil, err
	}
	if cfg.PreservePermissions {
		preserveMetadata(ctx, source, tmp)
	}

	final, err := commit(tmp, name, g)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		SourcePath:     source,
		BackupPath:     final,
		FilesProcessed: 1,
		TotalBytes:     written,
	}, nil
}

// copyContents streams src into a freshly created dst, checking the
// interrupt flag before every chunk. dst must not exist.
func copyContents(ctx context.Context, src, dst string, reg *guard.Registry) (uint64, error) {
	in, err := os.Open(src)
	if err != nil {
		if os.IsPermission(err) {
			return 0, &qerr.PermissionDeniedError{Path: src}
		}
		return 0, errors.Wrapf(err, "open %s", src)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return 0, errors.Wrapf(err, "create %s", dst)
	}

	buf := make([]byte, copyChunkSize)
	var written uint64
	for {
		if reg.Interrupted() || ctx.Err() != nil {
			out.Close()
			return written, qerr.ErrInterrupted
		}

		n, readErr := in.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				out.Close()
				return written, errors.Wrapf(err, "write %s", dst)
			}
			written += uint64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			return written, errors.Wrapf(readErr, "read %s", src)
		}
	}

	if err := out.Sync(); err != nil {
		out.Close()
		return written, errors.Wrapf(err, "sync %s", dst)
	}
	if err := out.Close(); err != nil {
		return written, errors.Wrapf(err, "close %s", dst)
	}
	return written, nil
}

// commit atomically renames tmp into place. If another process took the
// destination since collision resolution, the name is re-resolved.
func commit(tmp string, name naming.BackupName, g *guard.Guard) (string, error) {
	current := name
	for i := 0; i < renameAttempts; i++ {
		path := current.Path()
		if _, err := os.Lstat(path); err == nil {
			resolved, err := naming.ResolveCollision(current)
			if err != nil {
				return "", err
			}
			current = resolved
			g.SetFinalPath(current.Path())
			continue
		}
		if err := os.Rename(tmp, path); err != nil {
			return "", errors.Wrapf(err, "rename %s", path)
		}
		g.SetFinalPath(path)
		return path, nil
	}
	return "", &qerr.CollisionExhaustedError{Path: name.Path(), Attempts: renameAttempts}
}

// tempPath returns an unpredictable temp filename in dir. Randomness comes
// from crypto/rand so names cannot be precomputed by another local user.
func tempPath(dir string) (string, error) {
	suffix, err := randomSuffix(16)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, tempPrefix+suffix), nil
}

const alnum = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomSuffix(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.Wrap(err, "generate temp name")
	}
	for i, b := range raw {
		raw[i] = alnum[int(b)%len(alnum)]
	}
	return string(raw), nil
}
