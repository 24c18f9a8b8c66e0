package engine

import (
	"context"
	"os"

	"github.com/thoreinstein/qbak/internal/logging"
)

// preserveMetadata copies permission bits and timestamps from source to dest.
// Metadata is best-effort: the data already copied is worth keeping even when
// the filesystem refuses mode or time changes, so failures only warn.
func preserveMetadata(ctx context.Context, source, dest string) {
	log := logging.FromContext(ctx)

	info, err := os.Stat(source)
	if err != nil {
		log.Warn("could not read source metadata", "path", source, "error", err)
		return
	}

	if err := os.Chmod(dest, info.Mode().Perm()); err != nil {
		log.Warn("could not preserve permissions", "path", dest, "error", err)
	}

	mtime := info.ModTime()
	if err := os.Chtimes(dest, mtime, mtime); err != nil {
		log.Warn("could not preserve timestamps", "path", dest, "error", err)
	}
}
