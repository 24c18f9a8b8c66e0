// Package commands implements the qbak CLI.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/qbak/internal/config"
	"github.com/thoreinstein/qbak/internal/engine"
	"github.com/thoreinstein/qbak/internal/guard"
	"github.com/thoreinstein/qbak/internal/logging"
	"github.com/thoreinstein/qbak/internal/paths"
	"github.com/thoreinstein/qbak/internal/progress"
	"github.com/thoreinstein/qbak/internal/qerr"
)

// version is set at build time via ldflags.
// Default to a development version for local builds.
const version = "1.1.0"

// dryRun holds the value of the -n/--dry-run flag.
var dryRun bool

// verbosity holds the count of -v flags.
var verbosity int

// quiet holds the value of the -q/--quiet flag.
var quiet bool

// forceProgress and noProgress hold the --progress/--no-progress flags.
var forceProgress bool
var noProgress bool

// dumpConfigFlag holds the value of the --dump-config flag.
var dumpConfigFlag bool

// logFormat holds the value of the --log-format flag.
var logFormat string

// logFile holds the path to the log file.
var logFile string

// configLoadErr holds any error that occurred during config loading.
var configLoadErr error

// loadedConfig holds the settings resolved by initConfig.
var loadedConfig config.Config

// errTargetsFailed signals that at least one target failed after the
// per-target errors were already reported.
var errTargetsFailed = errors.New("one or more targets failed")

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false,
		"show what would be backed up without doing it")
	rootCmd.Flags().BoolVar(&forceProgress, "progress", false,
		"force progress display regardless of operation size")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false,
		"suppress progress display")
	rootCmd.Flags().BoolVar(&dumpConfigFlag, "dump-config", false,
		"display current configuration settings and exit")

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"increase verbosity level (e.g., -v, -vv)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress all output except errors")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format: text, json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"write logs to file in JSON format")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("qbak version {{.Version}}\n")

	// Silence errors and usage so we can control error output
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return qerr.Validation("%v", err)
	})
}

func initConfig() {
	config.Init()
	loadedConfig, configLoadErr = config.Load("")
}

var rootCmd = &cobra.Command{
	Use:   "qbak TARGET...",
	Short: "Single-command backup helper for files and directories",
	Long: `qbak creates timestamped backup copies of files and directories
next to the originals. Backups never overwrite anything: name
collisions get a numeric counter and all writes go through a
temporary file followed by an atomic rename.

Example: qbak example.txt -> example-20250603T145231-qbak.txt`,
	Example: `  # Back up a single file
  qbak notes.txt

  # Back up a directory tree
  qbak ./project

  # See what would happen first
  qbak --dry-run ./project

  # Inspect the effective configuration
  qbak --dump-config`,
	Args:              cobra.ArbitraryArgs,
	PersistentPreRunE: setupLogging,
	RunE:              run,
}

func run(cmd *cobra.Command, args []string) error {
	if configLoadErr != nil {
		return configLoadErr
	}
	cfg := loadedConfig

	if dumpConfigFlag {
		config.Dump(cmd.OutOrStdout(), cfg)
		return nil
	}
	if len(args) == 0 {
		return qerr.Validation("no targets specified, see --help for usage")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	registry := guard.NewRegistry()
	stop := installSignalHandler(ctx, registry, cmd)
	defer stop()

	opts := progress.Detect(cfg.Progress, forceProgress, noProgress || quiet, cmd.ErrOrStderr())
	deps := engine.Deps{
		Registry: registry,
		Reporter: progress.New(cmd.ErrOrStderr(), opts),
	}

	var succeeded, failed int
	for _, target := range args {
		err := processTarget(ctx, cmd, target, cfg, deps)
		if err == nil {
			succeeded++
			continue
		}
		failed++

		if errors.Is(err, qerr.ErrInterrupted) {
			registry.CleanupAll(ctx)
			return err
		}
		if errors.Is(err, errTargetsFailed) {
			// Entry errors were already reported; keep going.
			continue
		}
		if !qerr.Recoverable(err) {
			return err
		}

		if !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error processing %s: %v\n", target, err)
			if verbosity > 0 {
				printSuggestions(cmd, err)
			}
		}
	}

	if !quiet && (succeeded > 1 || failed > 0) {
		fmt.Fprintf(cmd.OutOrStdout(), "Backup summary: %d succeeded, %d failed\n", succeeded, failed)
	}

	if failed > 0 {
		return errTargetsFailed
	}
	return nil
}

func processTarget(ctx context.Context, cmd *cobra.Command, target string, cfg config.Config, deps engine.Deps) error {
	if dryRun {
		path, size, err := engine.Preview(target, cfg, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Would create backup: %s (%s)\n", path, humanize.IBytes(size))
		return nil
	}

	outcome, err := engine.Backup(ctx, target, cfg, deps)
	if err != nil {
		return err
	}

	if outcome.Failed() {
		if !quiet {
			for _, entry := range outcome.EntryErrors {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error processing %s: %v\n", entry.Path, entry.Err)
			}
		}
		return errors.Wrapf(errTargetsFailed, "%s", target)
	}

	if verbosity > 0 {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Processed: %s\n", target)
		fmt.Fprintf(out, "  -> %s\n", outcome.BackupPath)
		fmt.Fprintf(out, "  Files: %d\n", outcome.FilesProcessed)
		fmt.Fprintf(out, "  Size: %s\n", humanize.IBytes(outcome.TotalBytes))
		fmt.Fprintf(out, "  Duration: %.2fs\n", outcome.Duration.Seconds())
	} else if !quiet {
		fmt.Fprintln(cmd.OutOrStdout(), outcome.Summary())
	}
	return nil
}

// installSignalHandler wires SIGINT/SIGTERM to the interrupt flag. The
// engine observes the flag within one copy chunk; a second signal forces
// immediate cleanup and exit for the case where the engine is stuck.
func installSignalHandler(ctx context.Context, registry *guard.Registry, cmd *cobra.Command) func() {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	go func() {
		if _, ok := <-ch; !ok {
			return
		}
		registry.Interrupt()
		fmt.Fprintln(cmd.ErrOrStderr(), "\nInterrupted by user. Cleaning up...")

		if _, ok := <-ch; !ok {
			return
		}
		registry.CleanupAll(ctx)
		os.Exit(qerr.ExitInterrupted)
	}()

	return func() {
		signal.Stop(ch)
		close(ch)
	}
}

// setupLogging configures the default logger based on verbosity flags.
func setupLogging(cmd *cobra.Command, _ []string) error {
	if quiet && verbosity > 0 {
		return qerr.Validation("cannot use --quiet and --verbose together")
	}

	var level slog.Level
	if quiet {
		level = slog.LevelError
	} else {
		v := verbosity
		if v == 0 {
			if val, ok := os.LookupEnv("QBAK_DEBUG"); ok {
				switch val {
				case "1", "true":
					v = 2
				case "2":
					v = 3
				}
			}
		}
		level = logging.LevelFromVerbosity(v)
	}

	opts := &slog.HandlerOptions{Level: level}

	var primaryHandler slog.Handler
	switch logging.Format(logFormat) {
	case logging.FormatJSON:
		primaryHandler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	default:
		primaryHandler = logging.NewHandler(cmd.ErrOrStderr(), opts)
	}

	handlers := []slog.Handler{primaryHandler}

	if logFile != "" {
		if err := paths.EnsureDir(filepath.Dir(logFile), 0); err != nil {
			return qerr.Config("creating log directory: %v", err)
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return qerr.Config("opening log file: %v", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	}

	var handler slog.Handler
	if len(handlers) > 1 {
		handler = logging.NewMultiHandler(handlers...)
	} else {
		handler = handlers[0]
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.NewContext(ctx, logger))

	return nil
}

func printSuggestions(cmd *cobra.Command, err error) {
	suggestions := qerr.Suggestions(err)
	if len(suggestions) == 0 {
		return
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Suggestions:")
	for _, s := range suggestions {
		fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", s)
	}
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return qerr.ExitSuccess
	}
	if errors.Is(err, errTargetsFailed) {
		return qerr.ExitFailure
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if suggestions := qerr.Suggestions(err); len(suggestions) > 0 {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Suggestions:")
		for _, s := range suggestions {
			fmt.Fprintf(os.Stderr, "  - %s\n", s)
		}
	}
	return qerr.ExitCode(err)
}
