// Package qerr defines the closed error taxonomy for qbak.
//
// Each failure condition the tool distinguishes has its own error type
// carrying the structured data needed for the user-facing message
// (offending path, computed vs. maximum lengths, byte counts). Callers
// match variants with [errors.As] or [errors.Is]:
//
//	var tooLong *qerr.FilenameTooLongError
//	if errors.As(err, &tooLong) {
//	    fmt.Printf("%d > %d\n", tooLong.Length, tooLong.Max)
//	}
//
// Whether an error aborts the run or only the current target is a property
// of the call site, queried through [Recoverable]: validation and per-path
// resource errors let the remaining targets proceed, while interruption and
// configuration errors stop the process.
//
// # Exit codes
//
//   - ExitSuccess (0): all targets backed up
//   - ExitFailure (1): at least one target failed
//   - ExitUsage (2): usage or configuration error
//   - ExitInterrupted (130): cancelled by signal
//
// [ExitCode] folds any error into one of these; [Suggestions] supplies
// remediation hints rendered under the error message.
package qerr
