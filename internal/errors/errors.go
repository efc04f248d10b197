package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// Config errors
	ErrConfigNotFound ErrorType = iota
	ErrConfigInvalid
	ErrConfigUnstaged

	// Git state errors
	ErrNotARepository
	ErrUnmergedPaths
	ErrGitCommandFailed

	// Cache and environment errors
	ErrFetchFailed
	ErrInstallFailed
	ErrCacheLockTimeout

	// Run errors
	ErrHookNotFound
	ErrRestoreFailed
	ErrInterrupted
)

// Error represents a structured error with context and helpful messages
type Error struct {
	Type    ErrorType
	Message string
	Context map[string]string
	Cause   error
	Fixes   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Message == "" {
		return "unknown error"
	}
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// Format returns a formatted, human-readable error message with context
func (e *Error) Format() string {
	var buf strings.Builder

	buf.WriteString(e.Message)
	buf.WriteString("\n")

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			buf.WriteString(fmt.Sprintf("  %s: %s\n", k, e.Context[k]))
		}
	}

	if e.Cause != nil {
		buf.WriteString("  caused by: ")
		buf.WriteString(e.Cause.Error())
		buf.WriteString("\n")
	}

	for _, fix := range e.Fixes {
		buf.WriteString(fix)
		buf.WriteString("\n")
	}

	return strings.TrimSuffix(buf.String(), "\n")
}

// New creates a new Error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Context: make(map[string]string),
	}
}

// Newf creates a new Error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return New(errType, fmt.Sprintf(format, args...))
}

// WithContext adds context key-value pairs to the error
func (e *Error) WithContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithCause adds a cause error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithFix adds a fix suggestion
func (e *Error) WithFix(fix string) *Error {
	e.Fixes = append(e.Fixes, fix)
	return e
}

// IsType reports whether err is a *Error of the given type
func IsType(err error, errType ErrorType) bool {
	var structured *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			structured = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return structured != nil && structured.Type == errType
}
