package otp

import (
	"errors"
	"fmt"

	"github.com/fusevault/fusevault/tee"
)

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind (or on Status/Origin) rather than matching
// error strings; Error() strings are for humans and may evolve.
type Kind string

const (
	// KindTransport is a pass-through transport status failure. Status and
	// Origin are set verbatim from the transport.
	KindTransport Kind = "Transport"
	// KindVersion is a version-incompatibility detected at session open.
	// This is the only error this package synthesizes itself.
	KindVersion Kind = "Version"
	// KindShortBuffer is a read whose caller-supplied capacity was smaller
	// than the stored value. Required carries the length the peer needs.
	KindShortBuffer Kind = "ShortBuffer"
)

// Error is the structured error type of the client protocol.
//
// Op names the operation that failed ("open", "read", "lock", ...). For
// transport failures Status and Origin are retained from the transport so
// callers can tell local faults from peer-rejected operations.
type Error struct {
	Op     string
	Kind   Kind
	Status tee.Status
	Origin tee.Origin

	// Required is the stored length reported by the peer on KindShortBuffer.
	Required uint32

	// Peer is the peer's reported version on KindVersion.
	Peer Version

	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case KindVersion:
		return fmt.Sprintf("otp: %s: %s", e.Op, e.Message)
	case KindShortBuffer:
		return fmt.Sprintf("otp: %s: buffer too small, peer requires %d bytes (origin %s)", e.Op, e.Required, e.Origin)
	default:
		if e.Message != "" {
			return fmt.Sprintf("otp: %s: %s: %s (origin %s)", e.Op, e.Status, e.Message, e.Origin)
		}
		return fmt.Sprintf("otp: %s: %s (origin %s)", e.Op, e.Status, e.Origin)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) || e == nil {
		return false
	}
	return e.Kind == kind
}

// IsVersionMismatch reports whether err is the version-incompatibility
// failure of Open.
func IsVersionMismatch(err error) bool { return IsKind(err, KindVersion) }

// wrap turns a transport failure into a *Error for the named operation.
// Status and Origin pass through verbatim; nothing is retried or recovered.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *tee.Error
	if errors.As(err, &te) && te != nil {
		kind := KindTransport
		if te.Status == tee.StatusShortBuffer {
			kind = KindShortBuffer
		}
		return &Error{Op: op, Kind: kind, Status: te.Status, Origin: te.Origin, Message: te.Message, Cause: err}
	}
	return &Error{Op: op, Kind: KindTransport, Status: tee.StatusGeneric, Origin: tee.OriginAPI, Message: err.Error(), Cause: err}
}
