package main

import (
	"errors"

	vterrors "github.com/vinhnx/vtcode/pkg/errors"
)

// Exit codes: 0 success, 1 generic failure, 2 configuration/startup
// failure (bad flags, invalid config, no provider credentials), 130
// interrupted (SIGINT/ctx cancellation), matching the conventional
// 128+signal for Ctrl-C.
const (
	exitOK          = 0
	exitFailure     = 1
	exitConfigError = 2
	exitInterrupted = 130
)

// exitCoder is implemented by errors that want to drive a specific
// process exit code rather than the generic failure code.
type exitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e exitError) Unwrap() error { return e.err }

func (e exitError) ExitCode() int {
	if e.code == 0 {
		return 1
	}
	return e.code
}

// withExitCode tags err so exitCodeForError reports code instead of the
// generic failure code (1).
func withExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return exitError{code: code, err: err}
}

func exitCodeForError(err error) int {
	if err == nil {
		return 0
	}
	var coded exitCoder
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	// A bad API key or other rejected credentials is fatal per §7: the
	// session cannot recover in-process, so it aborts like a startup
	// configuration error rather than a generic failure.
	if vterrors.KindOf(err) == vterrors.KindAuthentication {
		return exitConfigError
	}
	return 1
}
