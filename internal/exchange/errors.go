package exchange

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Every SequenceError unwraps to one of these, so
// callers may use errors.Is as well as the Is* helpers.
var (
	ErrProtocol         = errors.New("sequence protocol violation")
	ErrNotBound         = fmt.Errorf("%w: no sequencer attached", ErrProtocol)
	ErrInvalidArbiter   = errors.New("not a sequencer")
	ErrTypeMismatch     = errors.New("not a sequence item")
	ErrDuplicateID      = errors.New("duplicate correlation id")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrClosed           = errors.New("queue closed")
)

// ErrorCode categorizes sequence errors.
type ErrorCode string

const (
	// ErrCodeProtocol indicates the fetch/mark-done pairing was violated.
	ErrCodeProtocol ErrorCode = "PROTOCOL_ERROR"

	// ErrCodeNotBound indicates an item operation on a sequence with no sequencer.
	ErrCodeNotBound ErrorCode = "NOT_BOUND"

	// ErrCodeInvalidArbiter indicates Start was given an unusable sequencer.
	ErrCodeInvalidArbiter ErrorCode = "INVALID_ARBITER"

	// ErrCodeTypeMismatch indicates a value without a sequence item was supplied.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeDuplicateCorrelationID indicates two stored responses share an id.
	ErrCodeDuplicateCorrelationID ErrorCode = "DUPLICATE_CORRELATION_ID"

	// ErrCodeCapacityExceeded indicates a non-blocking insert into a full queue.
	ErrCodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"
)

// SequenceError is a fatal failure of a single exchange operation.
// None of these are retried; they are surfaced to the caller at once.
type SequenceError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ItemID identifies the item involved, if any.
	ItemID string

	// Sequence names the sequence involved, if any.
	Sequence string
}

// Error implements the error interface.
func (e *SequenceError) Error() string {
	switch {
	case e.Sequence != "" && e.ItemID != "":
		return fmt.Sprintf("%s: %s (sequence=%s, item=%s)", e.Code, e.Message, e.Sequence, e.ItemID)
	case e.Sequence != "":
		return fmt.Sprintf("%s: %s (sequence=%s)", e.Code, e.Message, e.Sequence)
	case e.ItemID != "":
		return fmt.Sprintf("%s: %s (item=%s)", e.Code, e.Message, e.ItemID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the sentinel kind for the error code.
func (e *SequenceError) Unwrap() error {
	switch e.Code {
	case ErrCodeProtocol:
		return ErrProtocol
	case ErrCodeNotBound:
		return ErrNotBound
	case ErrCodeInvalidArbiter:
		return ErrInvalidArbiter
	case ErrCodeTypeMismatch:
		return ErrTypeMismatch
	case ErrCodeDuplicateCorrelationID:
		return ErrDuplicateID
	case ErrCodeCapacityExceeded:
		return ErrCapacityExceeded
	}
	return nil
}

// NewProtocolError creates a SequenceError for a pairing violation.
func NewProtocolError(message string) *SequenceError {
	return &SequenceError{Code: ErrCodeProtocol, Message: message}
}

// NewNotBoundError creates a SequenceError for an item operation attempted
// on a virtual sequence.
func NewNotBoundError(op, sequence string) *SequenceError {
	return &SequenceError{
		Code:     ErrCodeNotBound,
		Message:  fmt.Sprintf("tried %s in a virtual sequence", op),
		Sequence: sequence,
	}
}

// NewInvalidArbiterError creates a SequenceError for Start given a
// non-sequencer partner.
func NewInvalidArbiterError(sequence string, partner any) *SequenceError {
	return &SequenceError{
		Code:     ErrCodeInvalidArbiter,
		Message:  fmt.Sprintf("tried to start a sequence with %T", partner),
		Sequence: sequence,
	}
}

// NewTypeMismatchError creates a SequenceError for a value that does not
// carry a sequence item.
func NewTypeMismatchError(op string, v any) *SequenceError {
	return &SequenceError{
		Code:    ErrCodeTypeMismatch,
		Message: fmt.Sprintf("%s only takes sequence items, got %T", op, v),
	}
}

// NewDuplicateIDError creates a SequenceError for a response store holding
// more than one response with the same correlation id.
func NewDuplicateIDError(id string, count int) *SequenceError {
	return &SequenceError{
		Code:    ErrCodeDuplicateCorrelationID,
		Message: fmt.Sprintf("%d responses share correlation id", count),
		ItemID:  id,
	}
}

// NewCapacityError creates a SequenceError for a full bounded queue.
func NewCapacityError(what string, capacity int) *SequenceError {
	return &SequenceError{
		Code:    ErrCodeCapacityExceeded,
		Message: fmt.Sprintf("%s is full (capacity %d)", what, capacity),
	}
}

// CodeOf returns the error code of err, or "" if err is not a SequenceError.
func CodeOf(err error) ErrorCode {
	var se *SequenceError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsProtocolError reports whether err is a protocol violation, including
// NOT_BOUND.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrProtocol)
}

// IsNotBound reports whether err is an item operation on a virtual sequence.
func IsNotBound(err error) bool {
	return CodeOf(err) == ErrCodeNotBound
}

// IsTypeMismatch reports whether err is a type mismatch.
func IsTypeMismatch(err error) bool {
	return CodeOf(err) == ErrCodeTypeMismatch
}

// IsDuplicateID reports whether err is a duplicate correlation id.
func IsDuplicateID(err error) bool {
	return CodeOf(err) == ErrCodeDuplicateCorrelationID
}

// IsCapacityExceeded reports whether err is a full bounded queue.
func IsCapacityExceeded(err error) bool {
	return CodeOf(err) == ErrCodeCapacityExceeded
}
