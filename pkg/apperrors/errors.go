package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUnknownUser       = errors.New("unknown user")
	ErrSchemaEmpty       = errors.New("database schema is not available")
	ErrCatalogLoad       = errors.New("schema catalog load failed")
	ErrGenerationBackend = errors.New("generation backend failed")
	ErrUnsafeSQL         = errors.New("unsafe or empty SQL")
	ErrExecution         = errors.New("SQL execution error")
)

// CatalogLoadError is returned when metadata cannot be read from the database.
// The previous catalog snapshot stays in place; callers may retry.
type CatalogLoadError struct {
	Schema string
	Cause  error
}

func (e *CatalogLoadError) Error() string {
	return fmt.Sprintf("load catalog for schema %q: %v", e.Schema, e.Cause)
}

func (e *CatalogLoadError) Unwrap() error { return e.Cause }

func (e *CatalogLoadError) Is(target error) bool { return target == ErrCatalogLoad }

// GenerationBackendError wraps a failed or timed-out backend call.
type GenerationBackendError struct {
	Stage string
	Cause error
}

func (e *GenerationBackendError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("generation backend: %v", e.Cause)
	}
	return fmt.Sprintf("generation backend (%s): %v", e.Stage, e.Cause)
}

func (e *GenerationBackendError) Unwrap() error { return e.Cause }

func (e *GenerationBackendError) Is(target error) bool { return target == ErrGenerationBackend }

// UnsafeSQLError is returned when generated SQL fails the safety check.
type UnsafeSQLError struct {
	SQL    string
	Reason string
}

func (e *UnsafeSQLError) Error() string {
	if e.Reason == "" {
		return ErrUnsafeSQL.Error()
	}
	return fmt.Sprintf("%s: %s", ErrUnsafeSQL.Error(), e.Reason)
}

func (e *UnsafeSQLError) Is(target error) bool { return target == ErrUnsafeSQL }

// ExecutionError is returned when the database rejects a validated query.
type ExecutionError struct {
	SQL   string
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", ErrExecution.Error(), e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }
