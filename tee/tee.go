// Package tee defines the secure-session transport contract used to reach a
// trusted application running inside a trusted execution environment.
//
// The package owns the boundary only: parameter shapes, status codes, origin
// tags, and the Transport/Conn/Session interfaces. It contains no policy.
// Storage semantics (what a command means, which statuses a peer may return
// for it) belong to the trusted application; the client protocol built on
// top of this contract lives in package otp.
package tee

import "github.com/google/uuid"

// AppID identifies a trusted application at session-open time.
type AppID = uuid.UUID

// Command is a stable numeric command identifier. The numbering is part of
// the wire contract between a client and its trusted application.
type Command uint32

// Transport opens connections into a trusted execution environment.
//
// Contract:
// - Connect MUST return a usable Conn or an error, never both.
// - Distinct Conns MUST be fully independent; no shared mutable state is
//   visible through this interface.
type Transport interface {
	Connect() (Conn, error)
}

// Conn is one established connection into the environment.
type Conn interface {
	// OpenSession opens a session against the named trusted application.
	// A non-nil error is a *Error whenever the failure was reported by the
	// environment rather than by local plumbing.
	OpenSession(app AppID) (Session, error)

	// Close finalizes the connection. Teardown is best-effort and reports
	// nothing; a failed teardown is not recoverable by the caller.
	Close()
}

// Session is one open session against a trusted application.
//
// Invoke is a blocking synchronous call: the calling goroutine is suspended
// until the peer responds, and no timeout is enforced at this layer. The
// session performs no internal serialization; concurrent Invoke calls on one
// Session are undefined unless the caller synchronizes them. Sessions
// obtained from distinct Conns are fully independent.
type Session interface {
	// Invoke executes one command. Output parameter slots of op are written
	// in place. A non-nil error is always a *Error carrying the transport
	// status and the origin tier that produced it.
	Invoke(cmd Command, op *Operation) error

	// Close closes the session, best-effort.
	Close()
}
