package errors

import (
	"fmt"
)

// ErrNotAuthenticated is returned by API calls made before the session was
// authenticated, or after it was invalidated.
var ErrNotAuthenticated = New("not authenticated")

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// NotDirectoryError represents a path that exists but isn't a directory.
type NotDirectoryError struct {
	Path string
}

func (err NotDirectoryError) Error() string {
	return fmt.Sprintf("%q is not a directory", err.Path)
}

// HTTPStatusError is returned when the remote API responds with a non-2xx
// status code.
type HTTPStatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (err HTTPStatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", err.Method, err.URL, err.StatusCode)
}

// IsDirectoryError represents a path that should be a file but is a
// directory.
type IsDirectoryError struct {
	Path string
}

func (err IsDirectoryError) Error() string {
	return fmt.Sprintf("%q is a directory", err.Path)
}
