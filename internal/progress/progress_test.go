package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/thoreinstein/qbak/internal/config"
)

func defaultOptions() Options {
	return Options{
		Enabled:     true,
		Interactive: true,
		MinFiles:    config.DefaultProgressMinFiles,
		MinBytes:    config.DefaultProgressMinBytes,
	}
}

func TestShouldShowThresholds(t *testing.T) {
	opts := defaultOptions()

	tests := []struct {
		files int
		bytes uint64
		want  bool
	}{
		{10, 1024, false},
		{100, 1024, true},
		{10, 20 * 1024 * 1024, true},
		{50, 0, true},
		{0, 10 * 1024 * 1024, true},
		{49, 10*1024*1024 - 1, false},
	}
	for _, tt := range tests {
		if got := opts.ShouldShow(tt.files, tt.bytes); got != tt.want {
			t.Errorf("ShouldShow(%d, %d) = %v, want %v", tt.files, tt.bytes, got, tt.want)
		}
	}
}

func TestShouldShowDisabled(t *testing.T) {
	opts := defaultOptions()
	opts.Enabled = false
	opts.Force = true

	if opts.ShouldShow(1000, 1<<30) {
		t.Error("disabled options still show progress")
	}
}

func TestShouldShowForced(t *testing.T) {
	opts := defaultOptions()
	opts.Force = true
	opts.Interactive = false

	if !opts.ShouldShow(1, 100) {
		t.Error("forced options do not show progress")
	}
}

func TestShouldShowNonInteractive(t *testing.T) {
	opts := defaultOptions()
	opts.Interactive = false

	if opts.ShouldShow(1000, 1<<30) {
		t.Error("non-interactive options show progress without force")
	}
}

func TestDetectDisableWins(t *testing.T) {
	cfg := config.Default().Progress
	opts := Detect(cfg, true, true, &bytes.Buffer{})
	if opts.Enabled {
		t.Error("disable did not win over force")
	}
}

func TestDetectNonTTY(t *testing.T) {
	cfg := config.Default().Progress
	opts := Detect(cfg, false, false, &bytes.Buffer{})
	if opts.Interactive {
		t.Error("buffer writer reported as interactive")
	}
}

func TestNewReturnsNopWhenSuppressed(t *testing.T) {
	var buf bytes.Buffer

	opts := defaultOptions()
	opts.Interactive = false
	if _, ok := New(&buf, opts).(Nop); !ok {
		t.Error("non-interactive reporter is not Nop")
	}

	opts = defaultOptions()
	opts.Enabled = false
	opts.Force = true
	if _, ok := New(&buf, opts).(Nop); !ok {
		t.Error("disabled reporter is not Nop")
	}
}

func TestConsoleRendersCopyProgress(t *testing.T) {
	var buf bytes.Buffer
	opts := defaultOptions()
	r := &Console{out: &buf, opts: opts}

	r.FinishScan(100, 50*1024*1024)
	r.CopyProgress(25, 1024, "/some/path/file.txt")
	r.Done()

	out := buf.String()
	if !strings.Contains(out, "Scan complete: 100 files") {
		t.Errorf("output missing scan summary: %q", out)
	}
	if !strings.Contains(out, "[25/100]") {
		t.Errorf("output missing copy position: %q", out)
	}
	if !strings.Contains(out, "file.txt") {
		t.Errorf("output missing filename: %q", out)
	}
}

func TestConsoleSilentBelowThresholds(t *testing.T) {
	var buf bytes.Buffer
	opts := defaultOptions()
	r := &Console{out: &buf, opts: opts}

	r.FinishScan(3, 1024)
	r.CopyProgress(1, 512, "small.txt")
	r.Done()

	if buf.Len() != 0 {
		t.Errorf("small operation produced output: %q", buf.String())
	}
}

func TestConsoleThrottles(t *testing.T) {
	var buf bytes.Buffer
	opts := defaultOptions()
	opts.Force = true
	r := &Console{out: &buf, opts: opts, interval: time.Hour}

	r.CopyProgress(1, 1, "a.txt")
	first := buf.Len()
	r.CopyProgress(2, 2, "b.txt")

	if buf.Len() != first {
		t.Error("second update within the interval was rendered")
	}
}

func TestNopIsSilent(t *testing.T) {
	var n Nop
	n.ScanProgress(1, 1, "x")
	n.FinishScan(1, 1)
	n.CopyProgress(1, 1, "x")
	n.Done()
}
