package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrDuplicateISBN signals a unique constraint violation on books.isbn.
	ErrDuplicateISBN = errors.New("isbn already exists")

	// ErrBookHasInstances signals a restricted delete: copies still
	// reference the book.
	ErrBookHasInstances = errors.New("book has instances")

	ErrUnauthorized = errors.New("authorization required")

	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ValidationError reports a bounded-length field exceeding its
// configured maximum.
type ValidationError struct {
	Field string
	Max   int
	Len   int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: length %d exceeds maximum %d", e.Field, e.Len, e.Max)
}

func NewValidationError(field string, max, length int) *ValidationError {
	return &ValidationError{Field: field, Max: max, Len: length}
}
