package commands

import (
	"errors"
	"fmt"
)

// Process exit codes. The entry sequence maps its failure taxonomy onto
// them so orchestrators and scripts can tell a dependency problem from a
// preparation problem without parsing logs.
const (
	// ExitOK is returned on graceful shutdown.
	ExitOK = 0

	// ExitFailure covers configuration and other generic errors.
	ExitFailure = 1

	// ExitDependencyUnreachable means the readiness probe could not
	// reach the configured datastore.
	ExitDependencyUnreachable = 2

	// ExitPreparationFailed means a preparation step failed. The
	// diagnostic names the step.
	ExitPreparationFailed = 3

	// ExitPoolFailed means the worker pool failed to start or its
	// listener died while serving.
	ExitPoolFailed = 4
)

// ExitError carries a specific process exit code up to main.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by Execute to the process exit code.
// nil maps to ExitOK, errors without an explicit code to ExitFailure.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}
