// Package apperr defines the error taxonomy shared by the core services and
// the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by who is at fault and whether a retry can help.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindPrecondition
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPrecondition:
		return "precondition_failed"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Precondition sentinels. Match them with errors.Is.
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyProcessed  = errors.New("already processed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrExceedsBalance    = errors.New("payment exceeds balance")
	ErrAlreadyBilled     = errors.New("bill already generated")
	ErrNotEditable       = errors.New("quotation is not editable")
	ErrDuplicate         = errors.New("duplicate record")
	ErrInProgress        = errors.New("request already in progress")
)

// ErrNotFound is the cause attached to every KindNotFound error.
var ErrNotFound = errors.New("not found")

// Error is the typed error returned by core operations.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op != "" && e.Err != nil && e.Kind == KindPersistence {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports malformed or missing input.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports an entity that is missing or not visible to the
// caller's organization.
func NotFound(entity string, id int64) error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s %d not found", entity, id),
		Err:     ErrNotFound,
	}
}

// Precondition wraps one of the precondition sentinels with a message
// naming the violated rule.
func Precondition(cause error, format string, args ...any) error {
	return &Error{Kind: KindPrecondition, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Persistence wraps a store failure. The operation is safe to retry as a
// whole because it ran inside one transaction.
func Persistence(op string, err error) error {
	return &Error{Kind: KindPersistence, Op: op, Message: "store failure", Err: err}
}

// KindOf returns the kind of the first *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Wrap leaves typed errors untouched and turns anything else into a
// persistence error for op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Persistence(op, err)
}

// PublicMessage is the text safe to show to a user. Infrastructure details
// never leak through it.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindPersistence || e.Kind == KindUnknown {
		return "temporarily unavailable, please retry"
	}
	return e.Message
}
