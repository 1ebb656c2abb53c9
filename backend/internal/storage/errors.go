package storage

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a driver error independently of the engine.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	// KindConflict is lock contention or a serialization failure; the
	// transaction can be retried.
	KindConflict
	// KindUnique is a primary key or unique constraint violation.
	KindUnique
	// KindForeignKey is a foreign key violation.
	KindForeignKey
)

func (k ErrorKind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindUnique:
		return "unique violation"
	case KindForeignKey:
		return "foreign key violation"
	default:
		return "engine error"
	}
}

// Error is a classified driver error.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, or KindOther.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindOther
}

// IsConflict reports whether err is retryable contention.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsUnique reports whether err is a uniqueness violation.
func IsUnique(err error) bool { return KindOf(err) == KindUnique }

// IsForeignKey reports whether err is a foreign key violation.
func IsForeignKey(err error) bool { return KindOf(err) == KindForeignKey }

func classify(err error, kindOf func(error) ErrorKind) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if kind := kindOf(err); kind != KindOther {
		return &Error{Kind: kind, Err: err}
	}
	return err
}
