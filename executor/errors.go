package executor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSessionClosed   = errors.New("session closed")
	ErrUnknownLanguage = errors.New("unknown language")
	ErrSpawn           = errors.New("interpreter failed to start")
	ErrWrite           = errors.New("write to interpreter failed")
	ErrProcessExited   = errors.New("interpreter exited unexpectedly")
	ErrProbe           = errors.New("version probe failed")
)

// SpawnError reports an interpreter that could not be started or exited
// within the spawn grace window. It usually means the interpreter is not
// installed.
type SpawnError struct {
	Language string
	Argv     []string
	// Stderr holds whatever the process wrote before exiting, if anything.
	Stderr string
	Err    error
}

func (e *SpawnError) Error() string {
	msg := fmt.Sprintf("start %s (%s): %v", e.Language, strings.Join(e.Argv, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *SpawnError) Unwrap() []error {
	return []error{ErrSpawn, e.Err}
}
