package tee

import (
	"errors"
	"fmt"
)

// Error is the structured failure of one transport call.
//
// Status is the pass-through transport status; Origin identifies the tier
// that produced it. Message is for humans and may evolve; use StatusOf and
// OriginOf (or errors.As) for structured handling.
type Error struct {
	Status  Status
	Origin  Origin
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message == "" {
		return fmt.Sprintf("tee: %s (origin %s)", e.Status, e.Origin)
	}
	return fmt.Sprintf("tee: %s: %s (origin %s)", e.Status, e.Message, e.Origin)
}

// NewError builds an *Error with no message.
func NewError(status Status, origin Origin) *Error {
	return &Error{Status: status, Origin: origin}
}

// Errf builds an *Error with a formatted human-readable message.
func Errf(status Status, origin Origin, format string, args ...interface{}) *Error {
	return &Error{Status: status, Origin: origin, Message: fmt.Sprintf(format, args...)}
}

// StatusOf returns the transport status carried by err, if any.
func StatusOf(err error) (Status, bool) {
	var e *Error
	if !errors.As(err, &e) || e == nil {
		return 0, false
	}
	return e.Status, true
}

// OriginOf returns the origin tier carried by err, if any.
func OriginOf(err error) (Origin, bool) {
	var e *Error
	if !errors.As(err, &e) || e == nil {
		return 0, false
	}
	return e.Origin, true
}
