package sitecontent

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error taxonomy surfaced by Service operations. The API layer maps these to
// HTTP statuses with errors.Is.
var (
	// ErrValidation indicates bad or missing input
	ErrValidation = errors.New("validation failed")

	// ErrUnauthenticated indicates a missing or invalid credential
	ErrUnauthenticated = errors.New("authentication required")

	// ErrNotFoundOrForbidden covers both a missing resource and an ownership
	// mismatch so that non-owners cannot probe for existence
	ErrNotFoundOrForbidden = errors.New("resource not found")

	// ErrConflict indicates a unique constraint violation
	ErrConflict = errors.New("resource already exists")

	// ErrProcessingFailed indicates the media transform failed
	ErrProcessingFailed = errors.New("image processing failed")

	// ErrStorageUnavailable indicates a record store or blob store failure
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrTimeout indicates the caller's deadline expired
	ErrTimeout = errors.New("operation timed out")
)

// Repository-level errors. Implementations must return (or wrap) these so the
// service can translate them.
var (
	// ErrNotFound indicates a record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates a unique constraint was violated
	ErrDuplicate = errors.New("duplicate record")

	// ErrObjectNotFound indicates a blob does not exist in the blob store
	ErrObjectNotFound = errors.New("object not found")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// WebsiteError represents an error related to website operations
type WebsiteError struct {
	WebsiteID uuid.UUID
	Op        string
	Err       error
}

func (e *WebsiteError) Error() string {
	return fmt.Sprintf("website operation %s failed for website %s: %v", e.Op, e.WebsiteID, e.Err)
}

func (e *WebsiteError) Unwrap() error {
	return e.Err
}

// ChildError represents an error related to child resource operations
type ChildError struct {
	ChildID uuid.UUID
	Op      string
	Err     error
}

func (e *ChildError) Error() string {
	return fmt.Sprintf("child operation %s failed for child %s: %v", e.Op, e.ChildID, e.Err)
}

func (e *ChildError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob store operations
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
