package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors that can occur while explaining or evaluating posts.
var (
	// ErrMissingReference indicates that a fixture item has neither a post URL nor a post ID.
	ErrMissingReference = errors.New("missing post_url/post_id")
)

// ErrorKind classifies a failure by the collaborator or boundary that produced it.
// The set is closed: callers branch on the kind instead of parsing messages.
type ErrorKind int

const (
	// KindUnknown is the zero value and is never produced by constructors in this package.
	KindUnknown ErrorKind = iota
	// KindFetch marks a failure reading a post from the social network.
	KindFetch
	// KindAgent marks a failure of the explainer agent run.
	KindAgent
	// KindJudge marks a failure of an LLM judge call.
	KindJudge
	// KindEmbedding marks a failure computing embeddings for similarity.
	KindEmbedding
	// KindConfig marks a fatal configuration problem detected before work starts.
	KindConfig
	// KindValidation marks rejected user input at an API boundary.
	KindValidation
)

// String returns the short lowercase label used as an error message prefix.
func (k ErrorKind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindAgent:
		return "agent"
	case KindJudge:
		return "judge"
	case KindEmbedding:
		return "similarity"
	case KindConfig:
		return "config"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is a failure tagged with its ErrorKind and the operation that failed.
// Error() renders "<kind>: <message>", which is the exact text persisted in
// evaluation results (for example "fetch: post not found").
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Op names the operation that failed, for logs. It is not part of Error().
	Op string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for Error.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error, supporting Go 1.13+ error unwrapping.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates a new Error with the given details.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{
		Kind: kind,
		Op:   op,
		Err:  err,
	}
}

// KindOf returns the kind of the first *Error in err's chain,
// or KindUnknown when there is none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %s", e.Entity, strings.Join(e.Errors, "; "))
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
