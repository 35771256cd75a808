package domain

import (
	"errors"
	"fmt"
)

// ErrToolNotFound is returned when a call names a tool no backend registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrPerception is returned when perception output cannot be used.
var ErrPerception = errors.New("perception unusable")

// ErrPlan is returned when the planner output carries no recognizable action.
var ErrPlan = errors.New("planner output unusable")

// ErrSession wraps failures that escape the step loop.
var ErrSession = errors.New("session failed")

// ErrAttemptsExhausted is returned when a call fingerprint reached its attempt cap.
var ErrAttemptsExhausted = errors.New("tool attempts exhausted")

// ErrorClass is the typed classification a backend adapter assigns to a failure.
type ErrorClass string

const (
	ClassFailure     ErrorClass = "failure"      // Backend returned an error result
	ClassValidation  ErrorClass = "validation"   // Backend rejected the arguments
	ClassRateLimited ErrorClass = "rate_limited" // Backend asked the caller to slow down
	ClassUnavailable ErrorClass = "unavailable"  // Backend could not be reached
)

// ToolExecutionError is returned when a backend fails to execute a tool.
// Message keeps the backend's own wording.
type ToolExecutionError struct {
	Tool    string
	Backend string
	Class   ErrorClass
	Status  int // Transport status code, when one exists
	Message string
	Err     error
}

func (e *ToolExecutionError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Backend != "" {
		return fmt.Sprintf("tool %s (%s) failed: %s", e.Tool, e.Backend, msg)
	}
	return fmt.Sprintf("tool %s failed: %s", e.Tool, msg)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// ClassOf returns the classification of err, or an empty class when err is
// not a ToolExecutionError.
func ClassOf(err error) ErrorClass {
	var te *ToolExecutionError
	if errors.As(err, &te) {
		return te.Class
	}
	return ""
}

// IsRateLimited reports whether err was classified as a rate limit.
func IsRateLimited(err error) bool {
	return ClassOf(err) == ClassRateLimited
}

// ClassifyStatus maps a transport status code to an ErrorClass.
func ClassifyStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return ClassRateLimited
	case status == 400 || status == 422:
		return ClassValidation
	case status >= 500:
		return ClassUnavailable
	default:
		return ClassFailure
	}
}
