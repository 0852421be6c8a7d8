// Package internal holds the CLI plumbing shared by every weft
// command: exit codes, error-to-exit mapping, and output formatting.
package internal

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weftlab/weft/internal/types"
)

// Exit codes for the CLI.
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitTimeout = 3
	// ExitCancelled indicates the operation was interrupted.
	ExitCancelled = 4
	// ExitConfigError indicates an invalid or unreadable configuration.
	ExitConfigError = 10
	// ExitBuildError indicates a graph build failed or was rejected.
	ExitBuildError = 11
	// ExitStorageError indicates the store is failing or corrupt.
	ExitStorageError = 12
)

// CLIError carries a specific exit code out of a command.
type CLIError struct {
	Code    int
	Message string
	Cause   error
}

func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Cause
}

// NewCLIError creates a CLIError with the given code and message.
func NewCLIError(code int, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapError creates a CLIError wrapping an existing error.
func WrapError(code int, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Cause: err}
}

// HandleError prints err on the command's error stream and returns the
// exit code for it.
func HandleError(cmd *cobra.Command, err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, context.Canceled) {
		cmd.PrintErrln("Operation cancelled")
		return ExitCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		cmd.PrintErrln("Operation timed out")
		return ExitTimeout
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		cmd.PrintErrln("Error:", cliErr.Message)
		if cliErr.Cause != nil && verboseFlagSet(cmd) {
			cmd.PrintErrln("Cause:", cliErr.Cause)
		}
		return cliErr.Code
	}

	var weftErr *types.WeftError
	if errors.As(err, &weftErr) {
		cmd.PrintErrln("Error:", weftErr.Error())
		return mapWeftErrorToExitCode(weftErr)
	}

	cmd.PrintErrln("Error:", err)
	return ExitError
}

func mapWeftErrorToExitCode(err *types.WeftError) int {
	switch err.Code {
	case types.ErrCodeConfigInvalid:
		return ExitConfigError
	case types.ErrCodeBuildInProgress, types.ErrCodeBuildFailed:
		return ExitBuildError
	case types.ErrCodeStorageCorruption, types.ErrCodeStorageFailed:
		return ExitStorageError
	default:
		return ExitError
	}
}

func verboseFlagSet(cmd *cobra.Command) bool {
	flag := cmd.Flag("verbose")
	return flag != nil && flag.Changed
}

// IsVerbose reports whether verbose output was requested, checked from
// the raw arguments so panic recovery can use it before flag parsing.
func IsVerbose() bool {
	if os.Getenv("WEFT_VERBOSE") != "" {
		return true
	}
	for _, arg := range os.Args {
		if arg == "-v" || arg == "--verbose" {
			return true
		}
	}
	return false
}
