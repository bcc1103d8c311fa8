// Package errors provides the error kinds raised by catalog operations.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrPosterNotFound = errors.New("poster not found")
var ErrUnauthorized = errors.New("admin session required")

// TransportError reports a failed round trip to the remote catalog: either a
// non-success status (StatusCode > 0) or a network failure (Err set).
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		body := strings.TrimSpace(e.Body)
		if body == "" {
			return fmt.Sprintf("%s: remote responded with status %d", e.Op, e.StatusCode)
		}
		return fmt.Sprintf("%s: remote responded with status %d: %s", e.Op, e.StatusCode, body)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UploadError is returned once both upload strategies have failed.
type UploadError struct {
	Key      string
	Primary  error
	Fallback error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %s failed: primary: %v; fallback: %v", e.Key, e.Primary, e.Fallback)
}

// Unwrap exposes the primary failure.
func (e *UploadError) Unwrap() error {
	return e.Primary
}

// ValidationError lists invalid input fields. It is always raised before any
// remote call is made.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

// UserMessage converts an operation error into the short message a view shows
// as a transient notification.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var validation *ValidationError
	var upload *UploadError
	var transport *TransportError
	switch {
	case errors.As(err, &validation):
		return validation.Error()
	case errors.Is(err, ErrPosterNotFound):
		return "Poster not found."
	case errors.Is(err, ErrUnauthorized):
		return "Please log in as admin first."
	case errors.As(err, &upload):
		return "Image upload failed. Please try again."
	case errors.As(err, &transport):
		return "The catalog service is unavailable. Please try again later."
	default:
		return "Something went wrong. Please try again."
	}
}
