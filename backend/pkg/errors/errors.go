package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeValidation represents malformed caller input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents a missing referenced id
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeDuplicateID represents an entity id uniqueness violation
	ErrorTypeDuplicateID ErrorType = "duplicate_id"
	// ErrorTypeDuplicateRelation represents a (from, to, relation) uniqueness violation
	ErrorTypeDuplicateRelation ErrorType = "duplicate_relation"
	// ErrorTypeCycle represents a hierarchy cycle
	ErrorTypeCycle ErrorType = "cycle"
	// ErrorTypeDependency represents a delete blocked by live references
	ErrorTypeDependency ErrorType = "dependency"
	// ErrorTypeConflict represents lock contention; callers may retry
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeStorage represents an underlying engine failure
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// typed is implemented by every error in this package so the helpers below
// can recover the category without knowing the concrete type.
type typed interface {
	errorType() ErrorType
}

func (e *BaseError) errorType() ErrorType { return e.Type }

// Validation Errors

// ErrValidation is returned when caller input is malformed
type ErrValidation struct {
	*BaseError
	Field  string
	Reason string
}

func NewValidation(field, reason string) *ErrValidation {
	return &ErrValidation{
		BaseError: NewBaseError(ErrorTypeValidation, fmt.Sprintf("invalid %s: %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// Lookup Errors

// ErrNotFound is returned when a referenced id does not exist
type ErrNotFound struct {
	*BaseError
	Kind string // entity, direct_edge, relay_edge, snapshot
	ID   string
}

func NewNotFound(kind, id string) *ErrNotFound {
	return &ErrNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("%s not found: %s", kind, id), nil),
		Kind:      kind,
		ID:        id,
	}
}

// ErrEndpointMismatch is returned when a relay edge names endpoints that differ
// from its parent direct edge. It is a not-found error: no direct edge with
// that id exists between those endpoints.
func NewEndpointMismatch(edgeID, from, to string) *ErrNotFound {
	return &ErrNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound,
			fmt.Sprintf("direct_edge %s does not connect %s -> %s", edgeID, from, to), nil),
		Kind: "direct_edge",
		ID:   edgeID,
	}
}

// Uniqueness Errors

// ErrDuplicateID is returned when an entity id is already taken
type ErrDuplicateID struct {
	*BaseError
	ID string
}

func NewDuplicateID(id string, err error) *ErrDuplicateID {
	return &ErrDuplicateID{
		BaseError: NewBaseError(ErrorTypeDuplicateID, fmt.Sprintf("entity already exists: %s", id), err),
		ID:        id,
	}
}

// ErrDuplicateRelation is returned when a (from, to, relation) direct edge already exists
type ErrDuplicateRelation struct {
	*BaseError
	From     string
	To       string
	Relation string
	EdgeID   string
}

func NewDuplicateRelation(from, to, relation, edgeID string, err error) *ErrDuplicateRelation {
	return &ErrDuplicateRelation{
		BaseError: NewBaseError(ErrorTypeDuplicateRelation,
			fmt.Sprintf("relation already exists: %s -[%s]-> %s", from, relation, to), err),
		From:     from,
		To:       to,
		Relation: relation,
		EdgeID:   edgeID,
	}
}

// Hierarchy Errors

// ErrCycle is returned when linking would make an entity its own ancestor
type ErrCycle struct {
	*BaseError
	ChildID  string
	ParentID string
	Path     []string
}

func NewCycle(childID, parentID string, path []string) *ErrCycle {
	msg := fmt.Sprintf("linking %s under %s creates a cycle", childID, parentID)
	if len(path) > 0 {
		msg += " (" + strings.Join(path, " -> ") + ")"
	}
	return &ErrCycle{
		BaseError: NewBaseError(ErrorTypeCycle, msg, nil),
		ChildID:   childID,
		ParentID:  parentID,
		Path:      path,
	}
}

// ErrDependency is returned when a delete is blocked by live references
type ErrDependency struct {
	*BaseError
	Kind       string
	ID         string
	Dependents int
}

func NewDependency(kind, id string, dependents int, what string) *ErrDependency {
	return &ErrDependency{
		BaseError: NewBaseError(ErrorTypeDependency,
			fmt.Sprintf("%s %s is still referenced by %d %s", kind, id, dependents, what), nil),
		Kind:       kind,
		ID:         id,
		Dependents: dependents,
	}
}

// Concurrency Errors

// ErrConflict is returned when lock contention outlasts the retry budget
type ErrConflict struct {
	*BaseError
	Operation string
	Attempts  int
}

func NewConflict(operation string, attempts int, err error) *ErrConflict {
	return &ErrConflict{
		BaseError: NewBaseError(ErrorTypeConflict,
			fmt.Sprintf("%s: contention after %d attempts", operation, attempts), err),
		Operation: operation,
		Attempts:  attempts,
	}
}

// Storage Errors

// ErrStorage wraps an underlying engine failure
type ErrStorage struct {
	*BaseError
	Operation string
}

func NewStorage(operation string, err error) *ErrStorage {
	return &ErrStorage{
		BaseError: NewBaseError(ErrorTypeStorage, fmt.Sprintf("storage failure: %s", operation), err),
		Operation: operation,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

// TypeOf returns the category of the first typed error in err's chain, or ""
func TypeOf(err error) ErrorType {
	for err != nil {
		if t, ok := err.(typed); ok {
			return t.errorType()
		}
		err = stderrors.Unwrap(err)
	}
	return ""
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// IsRetryable checks if an error is retryable. Only lock contention is.
func IsRetryable(err error) bool {
	return IsErrorType(err, ErrorTypeConflict)
}
