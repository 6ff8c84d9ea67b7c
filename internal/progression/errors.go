package progression

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the progression service. Handlers map them
// to HTTP statuses with errors.Is.
var (
	ErrCourseNotFound   = errors.New("course not found")
	ErrTaskNotFound     = errors.New("task not found")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// ErrTaskLocked is returned when an assessment is submitted before it unlocks
var ErrTaskLocked = fmt.Errorf("%w: task is locked", ErrInvalidOperation)

// IsNotFound reports whether err means a course or task is absent
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCourseNotFound) || errors.Is(err, ErrTaskNotFound)
}
