// Package progress reports scan and copy advancement for long operations.
package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/thoreinstein/qbak/internal/config"
	"github.com/thoreinstein/qbak/internal/logging"
)

// Reporter receives advancement events from the engine. Implementations must
// tolerate being called for operations that turn out to be tiny.
type Reporter interface {
	// ScanProgress reports files discovered so far during the scan phase.
	ScanProgress(files int, bytes uint64, path string)

	// FinishScan reports the final totals and switches to the copy phase.
	FinishScan(files int, bytes uint64)

	// CopyProgress reports files and bytes copied so far.
	CopyProgress(files int, bytes uint64, path string)

	// Done clears any transient output. Safe to call more than once.
	Done()
}

// Options decides whether and where progress is rendered.
type Options struct {
	// Enabled is the configuration gate; false suppresses all output.
	Enabled bool

	// Force bypasses thresholds and interactivity checks.
	Force bool

	// Interactive is true when the output is a terminal outside CI.
	Interactive bool

	// MinFiles and MinBytes are the display thresholds; either one met
	// shows progress.
	MinFiles int
	MinBytes uint64
}

// ciVars mark environments where transient terminal output is useless noise.
var ciVars = []string{
	"CI", "GITHUB_ACTIONS", "GITLAB_CI", "TRAVIS",
	"CIRCLECI", "JENKINS_URL", "BUILDKITE",
}

// Detect builds Options from configuration and the runtime environment.
// force and disable come from the command line; disable wins.
func Detect(cfg config.ProgressConfig, force, disable bool, out io.Writer) Options {
	opts := Options{
		Enabled:     cfg.Enabled && !disable,
		Force:       force,
		Interactive: logging.IsTTY(out) && !inCI(),
		MinFiles:    cfg.MinFiles,
		MinBytes:    cfg.MinBytes,
	}
	return opts
}

// ShouldShow reports whether an operation of the given size warrants
// progress output.
func (o Options) ShouldShow(files int, bytes uint64) bool {
	if !o.Enabled {
		return false
	}
	if o.Force {
		return true
	}
	if !o.Interactive {
		return false
	}
	return files >= o.MinFiles || bytes >= o.MinBytes
}

func inCI() bool {
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

// New returns a console reporter writing to out, or a no-op reporter when
// opts rules rendering out entirely.
func New(out io.Writer, opts Options) Reporter {
	if !opts.Enabled || (!opts.Force && !opts.Interactive) {
		return Nop{}
	}
	return &Console{out: out, opts: opts, interval: 100 * time.Millisecond}
}

// Nop discards all events.
type Nop struct{}

func (Nop) ScanProgress(int, uint64, string) {}
func (Nop) FinishScan(int, uint64)           {}
func (Nop) CopyProgress(int, uint64, string) {}
func (Nop) Done()                            {}

// Console renders single-line progress with carriage returns. Output is
// throttled so per-file updates do not flood slow terminals.
type Console struct {
	out        io.Writer
	opts       Options
	interval   time.Duration
	lastRender time.Time
	total      int
	totalBytes uint64
	dirty      bool
}

func (c *Console) ScanProgress(files int, bytes uint64, path string) {
	if !c.throttle() {
		return
	}
	c.render("Scanning: %d files found, current: %s", files, filepath.Base(path))
}

func (c *Console) FinishScan(files int, bytes uint64) {
	c.total = files
	c.totalBytes = bytes
	if c.dirty || c.opts.ShouldShow(files, bytes) {
		c.render("Scan complete: %d files, %s", files, humanize.IBytes(bytes))
		fmt.Fprintln(c.out)
		c.dirty = false
	}
}

func (c *Console) CopyProgress(files int, bytes uint64, path string) {
	if !c.opts.ShouldShow(c.total, c.totalBytes) {
		return
	}
	if !c.throttle() {
		return
	}
	if c.total > 0 {
		c.render("[%d/%d] %s • %s", files, c.total, humanize.IBytes(bytes), filepath.Base(path))
	} else {
		c.render("%d files • %s • %s", files, humanize.IBytes(bytes), filepath.Base(path))
	}
}

func (c *Console) Done() {
	if c.dirty {
		fmt.Fprint(c.out, "\r\033[K")
		c.dirty = false
	}
}

// throttle allows a render at most every interval.
func (c *Console) throttle() bool {
	now := time.Now()
	if now.Sub(c.lastRender) < c.interval {
		return false
	}
	c.lastRender = now
	return true
}

func (c *Console) render(format string, args ...any) {
	fmt.Fprintf(c.out, "\r\033[K"+format, args...)
	c.dirty = true
}
