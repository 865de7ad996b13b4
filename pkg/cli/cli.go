package cli

import (
	"fmt"
	"os"
)

// exit codes
// inspired by sysexits.h
const (
	ExitCodeGeneral        = 1 // Not in sysexits.h, but is standard practice.
	ExitCodeTemporaryError = 5
	ExitCodeUsage          = 64 // EX_USAGE in sysexits.h
)

// Die prints its arguments to stderr, then exits the program with the default
// error code.
func Die(args ...interface{}) {
	DieWithExitCode(ExitCodeGeneral, args...)
}

// DieWithError prints a description and error to stderr, then exits with the
// general error code. Startup failures (bad DSN, failed migration, bad
// config) have no HTTP status to distinguish on, unlike the teacher's
// client-facing DieWithError.
func DieWithError(description string, err error) {
	DieWithExitCode(ExitCodeGeneral, description, err)
}

// DieWithExitCode prints its arguments to stderr,
// then exits the program with the given exit code.
func DieWithExitCode(code int, args ...interface{}) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(code)
}
