package cli

import (
	"errors"
	"fmt"
)

// Exit codes returned by the envroute command.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// UsageError reports an invalid flag or argument. Name is the flag
// ("--output") or argument ("environment") at fault.
type UsageError struct {
	Name    string
	Message string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Name, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewUsageError creates a new UsageError.
func NewUsageError(name, message string) *UsageError {
	return &UsageError{
		Name:    name,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		return ExitUsage
	}
	return ExitFailure
}
