package otp

import (
	"errors"

	"github.com/fusevault/fusevault/tee"
)

// Read returns the stored bytes of a field. capacity bounds how much the
// caller is willing to receive; the peer reports the actual stored length,
// which is never larger than capacity on success.
//
// When the stored value exceeds capacity the peer answers with a
// short-buffer status and the required length; Read surfaces that as a
// KindShortBuffer error carrying Required. It never truncates silently.
func (c *Client) Read(id FieldID, capacity int) ([]byte, error) {
	op := &tee.Operation{}
	op.Params[0] = tee.ValueIn(uint32(id), 0)
	op.Params[1] = tee.MemrefOut(capacity)

	if err := c.sess.Invoke(CmdRead, op); err != nil {
		werr := wrap("read", err)
		var e *Error
		if errors.As(werr, &e) && e.Kind == KindShortBuffer {
			e.Required = op.Params[1].Size
		}
		return nil, werr
	}

	n := int(op.Params[1].Size)
	if n > len(op.Params[1].Buf) {
		// A well-behaved transport never reports more bytes than the
		// supplied capacity; treat anything else as a transport fault.
		return nil, &Error{
			Op:      "read",
			Kind:    KindTransport,
			Status:  tee.StatusBadParameters,
			Origin:  tee.OriginAPI,
			Message: "transport reported length beyond supplied capacity",
		}
	}
	return op.Params[1].Buf[:n], nil
}

// Write stores exactly len(data) bytes into a field. There is no length
// negotiation; the peer rejects the write if its policy forbids it (field
// already written, global lock engaged, payload out of bounds).
func (c *Client) Write(id FieldID, data []byte) error {
	op := &tee.Operation{}
	op.Params[0] = tee.ValueIn(uint32(id), 0)
	op.Params[1] = tee.MemrefIn(data)

	return wrap("write", c.sess.Invoke(CmdWrite, op))
}

// Invalidate marks a written field invalid. The peer rejects it on an
// unwritten field or once the global lock is engaged. Invalidation is not
// reversible.
func (c *Client) Invalidate(id FieldID) error {
	op := &tee.Operation{}
	op.Params[0] = tee.ValueIn(uint32(id), 0)

	return wrap("invalidate", c.sess.Invoke(CmdInvalidate, op))
}

// IsValid reports whether a field holds a valid value. Pure query, permitted
// regardless of lock state.
func (c *Client) IsValid(id FieldID) (bool, error) {
	return c.boolQuery("is-valid", CmdIsValid, id)
}

// IsWritten reports whether a field has ever been written. Pure query,
// permitted regardless of lock state.
func (c *Client) IsWritten(id FieldID) (bool, error) {
	return c.boolQuery("is-written", CmdIsWritten, id)
}

func (c *Client) boolQuery(name string, cmd tee.Command, id FieldID) (bool, error) {
	op := &tee.Operation{}
	op.Params[0] = tee.ValueIn(uint32(id), 0)
	op.Params[1] = tee.ValueOut()

	if err := c.sess.Invoke(cmd, op); err != nil {
		return false, wrap(name, err)
	}
	return op.Params[1].A != 0, nil
}
