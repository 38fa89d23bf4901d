package config

import (
	"errors"
	"fmt"
)

// UsageError reports invalid or contradictory options. It is detected before
// any cell is contacted and maps to exit status 2.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return e.Msg
}

// EnvError reports a broken environment: missing transport binaries, missing
// or unreadable key files, missing input files. It also maps to exit status 2.
type EnvError struct {
	Msg string
	Err error
}

func (e *EnvError) Error() string {
	return e.Msg
}

func (e *EnvError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is a usage or environment error, either of
// which prevents any execution.
func IsFatal(err error) bool {
	var ue *UsageError
	var ee *EnvError
	return errors.As(err, &ue) || errors.As(err, &ee)
}

// Usagef creates a UsageError.
func Usagef(format string, args ...interface{}) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// Envf creates an EnvError.
func Envf(format string, args ...interface{}) error {
	return &EnvError{Msg: fmt.Sprintf(format, args...)}
}
