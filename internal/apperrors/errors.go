package apperrors

import (
	"errors"
)

// Kind is one of the four classified failure kinds
type Kind int

const (
	KindDatabaseError Kind = iota
	KindRecordAlreadyExists
	KindRecordNotFound
	KindOperationCanceled
)

func (k Kind) String() string {
	switch k {
	case KindRecordAlreadyExists:
		return "record_already_exists"
	case KindRecordNotFound:
		return "record_not_found"
	case KindOperationCanceled:
		return "operation_canceled"
	default:
		return "database_error"
	}
}

var (
	ErrRecordAlreadyExists = errors.New("record violates a unique constraint")
	ErrRecordNotFound      = errors.New("record does not exist")
	ErrOperationCanceled   = errors.New("running operation was canceled")
)

// DatabaseError is any store failure that is neither a uniqueness violation nor a missing row.
// Cause is kept for diagnostics only, callers must not inspect it.
type DatabaseError struct {
	Cause error
}

func NewDatabaseError(cause error) *DatabaseError {
	return &DatabaseError{Cause: cause}
}

func (e *DatabaseError) Error() string {
	if e.Cause == nil {
		return "database error"
	}
	return "database error: " + e.Cause.Error()
}

func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// KindOf reports the kind of err. Unclassified errors are database errors.
// Must not be called with nil error
func KindOf(err error) Kind {
	var dbErr *DatabaseError

	switch {
	case errors.As(err, &dbErr):
		return KindDatabaseError
	case errors.Is(err, ErrRecordAlreadyExists):
		return KindRecordAlreadyExists
	case errors.Is(err, ErrRecordNotFound):
		return KindRecordNotFound
	case errors.Is(err, ErrOperationCanceled):
		return KindOperationCanceled
	default:
		return KindDatabaseError
	}
}

// Classify returns err unchanged if it already belongs to the taxonomy,
// otherwise wraps it into DatabaseError. Classify(nil) is nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return err
	}

	if KindOf(err) == KindDatabaseError {
		return NewDatabaseError(err)
	}

	return err
}
