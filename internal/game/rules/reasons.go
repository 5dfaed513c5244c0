package rules

import (
	"errors"
	"fmt"
)

// RejectReason is the stable wire code for a rejected action.
type RejectReason string

const (
	ReasonIllegalMove           RejectReason = "ILLEGAL_MOVE"
	ReasonCardUseFailed         RejectReason = "CARD_USE_FAILED"
	ReasonMissingRequiredTarget RejectReason = "MISSING_REQUIRED_TARGET"
	ReasonUnknownActionType     RejectReason = "UNKNOWN_ACTION_TYPE"
	ReasonInvalidAction         RejectReason = "INVALID_ACTION"
	ReasonDuplicateAction       RejectReason = "DUPLICATE_ACTION"
	ReasonOutOfOrder            RejectReason = "OUT_OF_ORDER"
	ReasonVersionMismatch       RejectReason = "VERSION_MISMATCH"
	ReasonUnknown               RejectReason = "UNKNOWN"
)

var knownReasons = map[RejectReason]struct{}{
	ReasonIllegalMove:           {},
	ReasonCardUseFailed:         {},
	ReasonMissingRequiredTarget: {},
	ReasonUnknownActionType:     {},
	ReasonInvalidAction:         {},
	ReasonDuplicateAction:       {},
	ReasonOutOfOrder:            {},
	ReasonVersionMismatch:       {},
	ReasonUnknown:               {},
}

// IsKnownReason reports whether r is part of the wire contract.
func IsKnownReason(r RejectReason) bool {
	_, ok := knownReasons[r]
	return ok
}

// RejectError is returned for every rejected action.
type RejectError struct {
	Reason  RejectReason
	Message string
	Cause   error
}

// Reject builds a RejectError.
func Reject(reason RejectReason, format string, args ...any) *RejectError {
	return &RejectError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a RejectError around cause.
func Wrap(reason RejectReason, cause error, message string) *RejectError {
	return &RejectError{Reason: reason, Message: message, Cause: cause}
}

func (e *RejectError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *RejectError) Unwrap() error {
	return e.Cause
}

// Is matches any RejectError carrying the same reason.
func (e *RejectError) Is(target error) bool {
	t, ok := target.(*RejectError)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}

// ReasonOf extracts the rejection reason of err, or UNKNOWN.
func ReasonOf(err error) RejectReason {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ReasonUnknown
}
