package restkit

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for RestKit operations.
var (
	// ErrEntityUnknown is returned when a slug has no descriptor in the registry.
	ErrEntityUnknown = errors.New("restkit: unknown entity")

	// ErrActionExcluded is returned when the descriptor excludes the requested action.
	// It surfaces as a 404, indistinguishable from an unknown route.
	ErrActionExcluded = errors.New("restkit: action not available")

	// ErrNotFound is returned when the target row does not exist, or is not in the
	// state the action requires (restore/purge need a currently trashed row).
	ErrNotFound = errors.New("restkit: not found")

	// ErrForbidden is returned when a capability check denies the actor.
	ErrForbidden = errors.New("restkit: forbidden")

	// ErrValidation is returned when the payload fails the effective rule set.
	ErrValidation = errors.New("restkit: validation failed")

	// ErrStructural is returned when the request shape itself is malformed
	// (unknown entity in a batch, update without id, missing payload).
	ErrStructural = errors.New("restkit: malformed request")

	// ErrPersistence is returned when the storage layer fails during persist/commit.
	ErrPersistence = errors.New("restkit: persistence failure")

	// ErrTooManyOperations is returned when a batch exceeds the operation ceiling.
	ErrTooManyOperations = errors.New("restkit: too many operations")
)

// Error wraps a sentinel error with request context.
type Error struct {
	Err     error               // Underlying sentinel error
	Message string              // Additional context
	Entity  string              // Entity slug involved
	Action  Action              // Action involved (if applicable)
	Path    string              // Originally requested include path (if applicable)
	Index   int                 // Batch operation index, -1 outside batches
	Fields  map[string][]string // Per-field validation messages (if applicable)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a target error.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error with context.
func NewError(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
		Index:   -1,
	}
}

// WithEntity adds the entity slug to the error.
func (e *Error) WithEntity(slug string) *Error {
	e.Entity = slug
	return e
}

// WithAction adds the action to the error.
func (e *Error) WithAction(action Action) *Error {
	e.Action = action
	return e
}

// WithPath adds the originally requested include path to the error.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithIndex adds the batch operation index to the error.
func (e *Error) WithIndex(index int) *Error {
	e.Index = index
	return e
}

// WithFields adds per-field validation messages to the error.
func (e *Error) WithFields(fields map[string][]string) *Error {
	e.Fields = fields
	return e
}

// IsNotFound checks if an error is a not-found error (including unknown
// entities and excluded actions, which surface the same way).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrEntityUnknown) ||
		errors.Is(err, ErrActionExcluded)
}

// IsForbidden checks if an error is an authorization denial.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsValidation checks if an error is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsStructural checks if an error is a malformed-request error.
func IsStructural(err error) bool {
	return errors.Is(err, ErrStructural) || errors.Is(err, ErrTooManyOperations)
}

// IsPersistence checks if an error is a storage-layer failure.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// HTTPStatus maps an engine error to its HTTP status code.
// Validation and structural failures share 422; unknown errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsNotFound(err):
		return http.StatusNotFound
	case IsForbidden(err):
		return http.StatusForbidden
	case IsValidation(err), IsStructural(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
