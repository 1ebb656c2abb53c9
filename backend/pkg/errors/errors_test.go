package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeOf_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("create entity: %w", NewDuplicateID("char_a", nil))

	assert.Equal(t, ErrorTypeDuplicateID, TypeOf(err))
	assert.True(t, IsErrorType(err, ErrorTypeDuplicateID))
	assert.False(t, IsErrorType(err, ErrorTypeNotFound))

	var dup *ErrDuplicateID
	require.True(t, stderrors.As(err, &dup))
	assert.Equal(t, "char_a", dup.ID)
}

func TestTypeOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrorType(""), TypeOf(stderrors.New("boom")))
	assert.Equal(t, ErrorType(""), TypeOf(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewConflict("create_entity", 3, nil)))
	assert.False(t, IsRetryable(NewStorage("insert", stderrors.New("disk full"))))
	assert.False(t, IsRetryable(NewNotFound("entity", "x")))
}

func TestStorageUnwrapsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := NewStorage("insert entity", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "[storage]")
	assert.Contains(t, err.Error(), "disk full")
}

func TestCycleMessageIncludesPath(t *testing.T) {
	err := NewCycle("A", "C", []string{"C", "B", "A"})
	assert.Contains(t, err.Error(), "C -> B -> A")
	assert.Equal(t, "A", err.ChildID)
}

func TestEndpointMismatchIsNotFound(t *testing.T) {
	err := NewEndpointMismatch("de_1", "a", "b")
	assert.True(t, IsErrorType(err, ErrorTypeNotFound))
	assert.Equal(t, "de_1", err.ID)
}
