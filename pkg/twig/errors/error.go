package errors

import (
	"errors"
	"fmt"
	"strings"

	"mercator-hq/twigpack/pkg/twig/ast"
)

// ErrorType categorizes the type of error encountered.
type ErrorType string

const (
	ErrorTypeSyntax  ErrorType = "syntax"  // Tokenizer or parser error
	ErrorTypeLoader  ErrorType = "loader"  // Template not found or unreadable
	ErrorTypeRuntime ErrorType = "runtime" // Rendering error
	ErrorTypeIO      ErrorType = "io"      // File I/O error
)

// Error represents a rich error with location, context, and suggestions.
type Error struct {
	Type       ErrorType    // Category of error
	Message    string       // Error message
	Location   ast.Location // Source location (template, line)
	Context    string       // Surrounding lines of source
	Suggestion string       // Suggested fix (optional)
	Err        error        // Underlying cause (optional)
}

// Error implements the error interface.
// It returns a formatted error message with location and context.
func (e *Error) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] %s\n", e.Type, e.Message))

	if e.Location.IsValid() {
		sb.WriteString(fmt.Sprintf("  --> %s\n", e.Location.String()))
	}

	if e.Context != "" {
		sb.WriteString("  |\n")
		sb.WriteString(e.Context)
		sb.WriteString("  |\n")
	}

	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  = suggestion: %s\n", e.Suggestion))
	}

	if e.Err != nil {
		sb.WriteString(fmt.Sprintf("  = cause: %v\n", e.Err))
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Syntax creates a syntax error at the given location.
func Syntax(location ast.Location, format string, args ...any) *Error {
	return &Error{
		Type:     ErrorTypeSyntax,
		Message:  fmt.Sprintf(format, args...),
		Location: location,
	}
}

// Runtime creates a runtime error at the given location.
func Runtime(location ast.Location, format string, args ...any) *Error {
	return &Error{
		Type:     ErrorTypeRuntime,
		Message:  fmt.Sprintf(format, args...),
		Location: location,
	}
}

// Loader creates a loader error at the given location wrapping cause.
func Loader(location ast.Location, cause error, format string, args ...any) *Error {
	return &Error{
		Type:     ErrorTypeLoader,
		Message:  fmt.Sprintf(format, args...),
		Location: location,
		Err:      cause,
	}
}

// WithSuggestion sets the suggestion and returns the error for chaining.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// IsType reports whether err is (or wraps) an *Error of the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == errType
	}
	return false
}

// ErrorList represents a collection of errors.
// It allows accumulating multiple errors instead of failing on the first error.
type ErrorList struct {
	Errors []*Error
}

// NewErrorList creates a new empty error list.
func NewErrorList() *ErrorList {
	return &ErrorList{
		Errors: make([]*Error, 0),
	}
}

// Add appends an error to the list.
func (el *ErrorList) Add(err *Error) {
	el.Errors = append(el.Errors, err)
}

// HasErrors returns true if the error list contains any errors.
func (el *ErrorList) HasErrors() bool {
	return len(el.Errors) > 0
}

// Count returns the number of errors in the list.
func (el *ErrorList) Count() int {
	return len(el.Errors)
}

// Error implements the error interface.
// It returns all errors formatted as a single string.
func (el *ErrorList) Error() string {
	if !el.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d error(s):\n\n", el.Count()))

	for i, err := range el.Errors {
		sb.WriteString(fmt.Sprintf("Error %d:\n", i+1))
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}

	return sb.String()
}

// ToError returns nil if the error list is empty, otherwise returns the error list itself.
func (el *ErrorList) ToError() error {
	if !el.HasErrors() {
		return nil
	}
	return el
}

// ByType returns all errors of the given type.
func (el *ErrorList) ByType(errType ErrorType) []*Error {
	var result []*Error
	for _, err := range el.Errors {
		if err.Type == errType {
			result = append(result, err)
		}
	}
	return result
}
