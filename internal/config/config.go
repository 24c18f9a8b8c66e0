// Package config provides configuration management for qbak using Viper.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/viper"

	"github.com/thoreinstein/qbak/internal/paths"
	"github.com/thoreinstein/qbak/internal/qerr"
)

// Defaults for all settings. Documented in the sample config file.
const (
	DefaultTimestampFormat   = "YYYYMMDDTHHMMSS"
	DefaultBackupSuffix      = "qbak"
	DefaultMaxFilenameLength = 255
	DefaultMaxSymlinkDepth   = 32

	DefaultProgressMinFiles = 50
	DefaultProgressMinBytes = 10 * 1024 * 1024
)

// Config holds the resolved settings consumed by the backup pipeline.
type Config struct {
	// TimestampFormat names the backup timestamp layout. Only the ISO-8601
	// basic format ("YYYYMMDDTHHMMSS") is currently supported.
	TimestampFormat string

	// BackupSuffix is the literal appended after the timestamp.
	BackupSuffix string

	// PreservePermissions applies source permission bits and times to backups.
	PreservePermissions bool

	// FollowSymlinks copies symlink targets instead of recreating links.
	FollowSymlinks bool

	// IncludeHidden backs up dotfiles inside directories.
	IncludeHidden bool

	// MaxFilenameLength is the longest backup filename accepted.
	MaxFilenameLength int

	// MaxSymlinkDepth bounds symlink resolution before reporting a loop.
	MaxSymlinkDepth int

	// Progress configures the console progress reporter.
	Progress ProgressConfig
}

// ProgressConfig gates progress reporting on operation size.
type ProgressConfig struct {
	// Enabled allows progress output at all.
	Enabled bool

	// MinFiles is the file count at which progress appears.
	MinFiles int

	// MinBytes is the operation size at which progress appears.
	MinBytes uint64
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		TimestampFormat:     DefaultTimestampFormat,
		BackupSuffix:        DefaultBackupSuffix,
		PreservePermissions: true,
		FollowSymlinks:      true,
		IncludeHidden:       true,
		MaxFilenameLength:   DefaultMaxFilenameLength,
		MaxSymlinkDepth:     DefaultMaxSymlinkDepth,
		Progress: ProgressConfig{
			Enabled:  true,
			MinFiles: DefaultProgressMinFiles,
			MinBytes: DefaultProgressMinBytes,
		},
	}
}

// Init initializes Viper defaults and environment support.
// Call once at application startup before Load.
func Init() {
	viper.SetConfigType("ini")

	viper.SetEnvPrefix("QBAK")
	viper.AutomaticEnv()

	def := Default()
	viper.SetDefault("qbak.timestamp_format", def.TimestampFormat)
	viper.SetDefault("qbak.backup_suffix", def.BackupSuffix)
	viper.SetDefault("qbak.preserve_permissions", def.PreservePermissions)
	viper.SetDefault("qbak.follow_symlinks", def.FollowSymlinks)
	viper.SetDefault("qbak.include_hidden", def.IncludeHidden)
	viper.SetDefault("qbak.max_filename_length", def.MaxFilenameLength)
	viper.SetDefault("qbak.max_symlink_depth", def.MaxSymlinkDepth)
	viper.SetDefault("progress.enabled", def.Progress.Enabled)
	viper.SetDefault("progress.min_files", def.Progress.MinFiles)
	viper.SetDefault("progress.min_bytes", def.Progress.MinBytes)
}

// Load reads the configuration file and returns the resolved settings.
// If path is empty, the default location from paths.ConfigFile is used.
// A missing file is not an error; defaults apply.
func Load(path string) (Config, error) {
	if path == "" {
		path = paths.ConfigFile()
	}

	if _, err := os.Stat(path); err == nil {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return Default(), qerr.Config("parsing %s: %v", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Default(), qerr.Config("reading %s: %v", path, err)
	}

	cfg := Config{
		TimestampFormat:     viper.GetString("qbak.timestamp_format"),
		BackupSuffix:        viper.GetString("qbak.backup_suffix"),
		PreservePermissions: viper.GetBool("qbak.preserve_permissions"),
		FollowSymlinks:      viper.GetBool("qbak.follow_symlinks"),
		IncludeHidden:       viper.GetBool("qbak.include_hidden"),
		MaxFilenameLength:   viper.GetInt("qbak.max_filename_length"),
		MaxSymlinkDepth:     viper.GetInt("qbak.max_symlink_depth"),
		Progress: ProgressConfig{
			Enabled:  viper.GetBool("progress.enabled"),
			MinFiles: viper.GetInt("progress.min_files"),
			MinBytes: viper.GetUint64("progress.min_bytes"),
		},
	}

	if err := cfg.validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.BackupSuffix == "" {
		return qerr.Config("backup_suffix must not be empty")
	}
	if c.MaxFilenameLength <= 0 {
		return qerr.Config("max_filename_length must be positive, got %d", c.MaxFilenameLength)
	}
	if c.MaxSymlinkDepth <= 0 {
		return qerr.Config("max_symlink_depth must be positive, got %d", c.MaxSymlinkDepth)
	}
	return nil
}

// Dump writes the effective configuration to w in a user-friendly format.
func Dump(w io.Writer, c Config) {
	path := paths.ConfigFile()

	fmt.Fprintln(w, "qbak Configuration")
	fmt.Fprintln(w, "==================")
	fmt.Fprintln(w)

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "Config file: %s (found)\n", path)
	} else {
		fmt.Fprintf(w, "Config file: %s (not found, using defaults)\n", path)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Current Settings:")
	fmt.Fprintln(w, "----------------")
	fmt.Fprintf(w, "timestamp_format     = %s\n", c.TimestampFormat)
	fmt.Fprintf(w, "backup_suffix        = %s\n", c.BackupSuffix)
	fmt.Fprintf(w, "preserve_permissions = %t\n", c.PreservePermissions)
	fmt.Fprintf(w, "follow_symlinks      = %t\n", c.FollowSymlinks)
	fmt.Fprintf(w, "include_hidden       = %t\n", c.IncludeHidden)
	fmt.Fprintf(w, "max_filename_length  = %d\n", c.MaxFilenameLength)
	fmt.Fprintf(w, "max_symlink_depth    = %d\n", c.MaxSymlinkDepth)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Example backup names with current settings:")
	fmt.Fprintln(w, "------------------------------------------")
	fmt.Fprintf(w, "example.txt -> example-YYYYMMDDTHHMMSS-%s.txt\n", c.BackupSuffix)
	fmt.Fprintf(w, "data.tar.gz -> data.tar-YYYYMMDDTHHMMSS-%s.gz\n", c.BackupSuffix)
	fmt.Fprintf(w, "no-ext      -> no-ext-YYYYMMDDTHHMMSS-%s\n", c.BackupSuffix)
}

// Sample returns a commented configuration file with all defaults.
func Sample() string {
	return `[qbak]
; Timestamp format for backup names (ISO-8601 basic format)
timestamp_format = YYYYMMDDTHHMMSS

; Suffix added to backup filenames
backup_suffix = qbak

; Preserve original file permissions and timestamps (true/false)
preserve_permissions = true

; Follow symbolic links (copy target) or preserve as symlinks
follow_symlinks = true

; Include hidden files when backing up directories
include_hidden = true

; Maximum filename length before reporting an error
max_filename_length = 255

; Maximum symlink resolution depth before reporting a loop
max_symlink_depth = 32

[progress]
; Show a progress display for large operations
enabled = true

; Thresholds at which progress appears
min_files = 50
min_bytes = 10485760
`
}
