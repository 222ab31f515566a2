package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks invalid or missing mode parameters.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrInputShape marks trajectories that do not share one time grid.
	ErrInputShape = errors.New("invalid input shape")
	// ErrUnknownMode marks a requested mode outside the recognised set.
	ErrUnknownMode = errors.New("unknown alignment mode")
)

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// ShapeError reports which bodies broke the common-grid precondition.
type ShapeError struct {
	Bodies []string
	Reason string
}

func (e *ShapeError) Error() string {
	if len(e.Bodies) == 0 {
		return fmt.Sprintf("%s: %s", ErrInputShape, e.Reason)
	}
	return fmt.Sprintf("%s: %s (bodies: %s)", ErrInputShape, e.Reason, strings.Join(e.Bodies, ", "))
}

func (e *ShapeError) Unwrap() error { return ErrInputShape }

// ModeError ties a failure to the mode that produced it. Only that mode is
// aborted; other requested modes still run.
type ModeError struct {
	Mode string
	Err  error
}

func (e *ModeError) Error() string {
	return fmt.Sprintf("mode %q: %v", e.Mode, e.Err)
}

func (e *ModeError) Unwrap() error { return e.Err }
