// Package logging configures structured logging for the qbak CLI.
//
// It builds on log/slog with a TTY-optimized text handler that colorizes
// output when the terminal supports it, a JSON handler for machine
// consumption, and a multi-handler for writing to several sinks at once.
// Verbosity flags map to levels through LevelFromVerbosity, and loggers
// travel through contexts via NewContext/FromContext.
package logging
