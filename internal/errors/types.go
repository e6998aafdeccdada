// Package errors defines the error taxonomy used by assetpipe tasks.
//
// Every failure that escapes a task is a *TaskError carrying the task name,
// the file involved (when there is one) and a category. Composition code
// never adds context of its own; it only combines child errors.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeIO          ErrorType = "io"
	ErrorTypeTransform   ErrorType = "transform"
	ErrorTypeComposition ErrorType = "composition"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeNetwork     ErrorType = "network"
)

// TaskError is a structured error raised by a task. Hint is a suggested fix
// for the user and is not part of Error().
type TaskError struct {
	Type    ErrorType
	Task    string
	Path    string
	Line    int
	Column  int
	Message string
	Hint    string
	Cause   error
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	var parts []string

	if e.Task != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Task))
	}
	switch {
	case e.Path != "" && e.Line > 0:
		parts = append(parts, fmt.Sprintf("%s:%d:%d", e.Path, e.Line, e.Column))
	case e.Path != "":
		parts = append(parts, e.Path)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		if result == "" {
			return e.Cause.Error()
		}
		result += ": " + e.Cause.Error()
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *TaskError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *TaskError of the same type raised by the
// same task. An empty Task in target matches any task.
func (e *TaskError) Is(target error) bool {
	var t *TaskError
	if !errors.As(target, &t) {
		return false
	}
	if e.Type != t.Type {
		return false
	}

	return t.Task == "" || e.Task == t.Task
}

// WithPath records the file the error relates to.
func (e *TaskError) WithPath(path string) *TaskError {
	e.Path = path
	return e
}

// WithLocation records the line and column inside Path.
func (e *TaskError) WithLocation(line, column int) *TaskError {
	e.Line, e.Column = line, column
	return e
}

// WithHint attaches a suggested fix.
func (e *TaskError) WithHint(hint string) *TaskError {
	e.Hint = hint
	return e
}

// NewIOError creates a filesystem error for task.
func NewIOError(task, message string, cause error) *TaskError {
	return &TaskError{Type: ErrorTypeIO, Task: task, Message: message, Cause: cause}
}

// NewTransformError creates an error reported by an external transformation.
func NewTransformError(task, message string, cause error) *TaskError {
	return &TaskError{Type: ErrorTypeTransform, Task: task, Message: message, Cause: cause}
}

// NewConfigError creates a configuration error.
func NewConfigError(message string, cause error) *TaskError {
	return &TaskError{Type: ErrorTypeConfig, Message: message, Cause: cause}
}

// NewNetworkError creates a listener or transport error.
func NewNetworkError(task, message string, cause error) *TaskError {
	return &TaskError{Type: ErrorTypeNetwork, Task: task, Message: message, Cause: cause}
}

// NewCompositionError reports a malformed pipeline, such as an unknown task name.
func NewCompositionError(task, message string) *TaskError {
	return &TaskError{Type: ErrorTypeComposition, Task: task, Message: message}
}

// IsType reports whether any error in err's chain is a *TaskError of type t.
func IsType(err error, t ErrorType) bool {
	return errors.Is(err, &TaskError{Type: t})
}

// TaskOf returns the name of the first task found in err's chain.
func TaskOf(err error) string {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Task
	}
	return ""
}

// HintOf returns the first non-empty hint in err's chain, looking into
// every branch of joined errors.
func HintOf(err error) string {
	switch e := err.(type) {
	case nil:
		return ""
	case *TaskError:
		if e.Hint != "" {
			return e.Hint
		}
		return HintOf(e.Cause)
	case interface{ Unwrap() []error }:
		for _, child := range e.Unwrap() {
			if h := HintOf(child); h != "" {
				return h
			}
		}
		return ""
	}
	return HintOf(errors.Unwrap(err))
}
