package service

import (
	"errors"
	"sort"
	"strings"

	"go-blog-app/internal/data"
)

var (
	// ErrNotFound is returned for unknown slugs and out-of-range pages.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the user may not act on the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated is returned when a write is attempted without a user.
	ErrUnauthenticated = errors.New("authentication required")
)

// ValidationError collects field-level messages for a submitted form.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns an empty ValidationError.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records msg for field, keeping the first message per field.
func (e *ValidationError) Add(field, msg string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// HasErrors reports whether any field failed.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// orErr returns e when it holds messages, nil otherwise.
func (e *ValidationError) orErr() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// translate maps repository errors onto the service taxonomy.
func translate(err error) error {
	if errors.Is(err, data.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
