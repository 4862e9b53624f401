package action

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

var (
	ErrInvalid        = fmt.Errorf("action: invalid argument: %w", unix.EINVAL)
	ErrStackLimit     = fmt.Errorf("action: stack limit exceeded: %w", unix.ENOMEM)
	ErrRange          = fmt.Errorf("action: stack position out of range: %w", unix.ERANGE)
	ErrOverflow       = fmt.Errorf("action: integer overflow: %w", unix.ERANGE)
	ErrUnknownCommand = fmt.Errorf("action: unknown command: %w", unix.ENOENT)
	ErrNotFound       = fmt.Errorf("action: not found: %w", unix.ENOENT)
	ErrAlreadyRun     = fmt.Errorf("action: processor already executed: %w", unix.EALREADY)
	ErrCanceled       = fmt.Errorf("action: execution canceled: %w", unix.ECANCELED)
	ErrStepLimit      = fmt.Errorf("action: step limit reached: %w", unix.ECANCELED)
	ErrDivideByZero   = fmt.Errorf("action: division by zero: %w", unix.EDOM)
	ErrExists         = fmt.Errorf("action: already exists: %w", unix.EEXIST)
)

// Code returns the positive error code carried by err: the magnitude of
// the wrapped errno, or EIO when err carries none. Code(nil) is zero.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var errno unix.Errno
	if errors.As(err, &errno) && errno != 0 {
		return int(errno)
	}
	return int(unix.EIO)
}

// ExecError reports the statement at which execution stopped.
type ExecError struct {
	Index   int
	Command string
	Err     error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("action: statement %d (%s): %v", e.Index, e.Command, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
