package heritage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrEntryNotFound indicates an entry was not found
	ErrEntryNotFound = errors.New("entry not found")

	// ErrCategoryNotFound indicates a category was not found
	ErrCategoryNotFound = errors.New("category not found")

	// ErrCategoryExists indicates a category with the same name exists
	ErrCategoryExists = errors.New("category already exists")

	// ErrInvalidTransition indicates a status change not allowed from the current state
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrEntryChanged indicates the entry was modified after it was read
	ErrEntryChanged = errors.New("entry was modified concurrently")

	// ErrInvalidStatus indicates an unknown status value
	ErrInvalidStatus = errors.New("invalid status")

	// ErrForbidden is matched by every AuthorizationError
	ErrForbidden = errors.New("forbidden")
)

// IsNotFound reports whether err is an unknown entry or category.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) || errors.Is(err, ErrCategoryNotFound)
}

// FieldError is a single failing field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a failing field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Has reports whether field already has an error.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// OrNil returns e if any field failed, nil otherwise.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// AuthorizationError is a wrong-role or non-owner mutation.
type AuthorizationError struct {
	UserID uuid.UUID
	Op     string
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s not permitted for user %s: %s", e.Op, e.UserID, e.Reason)
}

func (e *AuthorizationError) Is(target error) bool {
	return target == ErrForbidden
}

// UnsupportedMediaError rejects an image by type or size.
type UnsupportedMediaError struct {
	Filename string
	Reason   string
}

func (e *UnsupportedMediaError) Error() string {
	return fmt.Sprintf("unsupported media %q: %s", e.Filename, e.Reason)
}

// EntryError represents a failed persistence step for an entry
type EntryError struct {
	EntryID uuid.UUID
	Op      string
	Err     error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry operation %s failed for entry %s: %v", e.Op, e.EntryID, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to image storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
