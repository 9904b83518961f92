// Package otp is the client protocol for one-time-programmable, fuse-backed
// storage fields owned by a trusted application.
//
// The client never touches the storage itself. Every operation is one
// blocking synchronous invocation delivered through a tee.Transport; all
// storage policy (write-once, invalidation, the global lock) is enforced by
// the peer, and every non-success status is surfaced verbatim with its
// origin tier. The single exception is the version gate run inside Open,
// which is the only error this package synthesizes locally.
//
// Field state, as observed through the protocol, moves one way:
// unwritten -> written -> invalid. The global lock is one-way as well; once
// engaged the peer rejects further writes and invalidations on every field.
//
// A Client is not internally synchronized. Concurrent calls on one Client
// require external synchronization; independent Clients share no state and
// need none.
package otp

import (
	"fmt"

	"github.com/fusevault/fusevault/tee"
)

// Client is one open session against the trusted application.
//
// A Client exists only between a successful Open and a Close. Each Open
// yields an independent instance.
type Client struct {
	conn tee.Conn
	sess tee.Session
}

// Open connects the transport, opens a session against AppUUID, and runs
// the version gate. Acquisition is all-or-nothing: any failure unwinds the
// steps already taken and no partially constructed Client ever escapes.
func Open(t tee.Transport) (*Client, error) {
	conn, err := t.Connect()
	if err != nil {
		return nil, wrap("connect", err)
	}

	sess, err := conn.OpenSession(AppUUID)
	if err != nil {
		conn.Close()
		return nil, wrap("open", err)
	}

	c := &Client{conn: conn, sess: sess}
	if err := c.checkVersion(); err != nil {
		sess.Close()
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Close tears down the session and then the connection. Teardown is
// best-effort and reports nothing. Close on a nil Client is a no-op;
// closing a live Client more than once is caller error.
func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.sess != nil {
		c.sess.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

// Version asks the peer for its protocol version. Purely informational and
// callable any number of times.
func (c *Client) Version() (Version, error) {
	op := &tee.Operation{}
	op.Params[0] = tee.ValueOut()

	if err := c.sess.Invoke(CmdVersion, op); err != nil {
		return Version{}, wrap("version", err)
	}
	return Version{Major: op.Params[0].A, Minor: op.Params[0].B}, nil
}

// checkVersion runs exactly once inside Open, before any field or lock
// operation is reachable.
func (c *Client) checkVersion() error {
	peer, err := c.Version()
	if err != nil {
		return err
	}
	if peer.Major != ProtocolMajor {
		return &Error{
			Op:      "open",
			Kind:    KindVersion,
			Peer:    peer,
			Message: fmt.Sprintf("peer major version mismatch: peer %s, client %d.%d", peer, ProtocolMajor, ProtocolMinor),
		}
	}
	if peer.Minor < ProtocolMinor {
		return &Error{
			Op:      "open",
			Kind:    KindVersion,
			Peer:    peer,
			Message: fmt.Sprintf("peer minor version too old: peer %s, client %d.%d", peer, ProtocolMajor, ProtocolMinor),
		}
	}
	return nil
}
