package otp

import "github.com/fusevault/fusevault/tee"

// Lock engages the global lock. Irreversible: after success the peer rejects
// every subsequent write and invalidate on any field. The client performs no
// local enforcement; this is a pure pass-through command.
func (c *Client) Lock() error {
	op := &tee.Operation{}
	return wrap("lock", c.sess.Invoke(CmdLock, op))
}

// IsLocked reports the global lock state.
//
// The protocol has no dedicated lock-status command; lock state is the
// written-status of the reserved LockFieldID, queried through the same
// primitive as ordinary fields.
func (c *Client) IsLocked() (bool, error) {
	return c.IsWritten(LockFieldID)
}
