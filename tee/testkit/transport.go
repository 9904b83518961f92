// Package testkit provides a conformance suite any secure-session transport
// implementation must pass.
package testkit

import (
	"bytes"
	"testing"

	"github.com/fusevault/fusevault/otp"
	"github.com/fusevault/fusevault/tee"
)

// NewTransport constructs a fresh transport in front of a fresh, unwritten,
// unlocked peer for a test. The returned transport MUST be isolated from
// other tests.
type NewTransport func(t *testing.T) tee.Transport

// RunTransportConformance exercises the wire contract of a transport: the
// fixed parameter shapes of every command, status and origin pass-through,
// and the peer's field and lock state machine as observed through it.
func RunTransportConformance(t *testing.T, newTransport NewTransport) {
	t.Helper()

	t.Run("VersionShape", func(t *testing.T) {
		sess := openSession(t, newTransport(t))
		op := &tee.Operation{}
		op.Params[0] = tee.ValueOut()
		if err := sess.Invoke(otp.CmdVersion, op); err != nil {
			t.Fatalf("version failed: %v", err)
		}
		if op.Params[0].A == 0 {
			t.Fatalf("peer reported major version 0")
		}
	})

	t.Run("UnknownAppRejected", func(t *testing.T) {
		conn, err := newTransport(t).Connect()
		if err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		defer conn.Close()
		var bogus tee.AppID
		bogus[0] = 0xFF
		_, err = conn.OpenSession(bogus)
		if err == nil {
			t.Fatalf("OpenSession accepted an unknown application")
		}
		if st, ok := tee.StatusOf(err); !ok || st == tee.StatusSuccess {
			t.Fatalf("unknown app: got err=%v want a transport status", err)
		}
	})

	t.Run("WriteReadRoundTrip", func(t *testing.T) {
		sess := openSession(t, newTransport(t))
		want := []byte("fusevault conformance")

		if err := sess.Invoke(otp.CmdWrite, writeOp(7, want)); err != nil {
			t.Fatalf("write failed: %v", err)
		}

		op := readOp(7, 64)
		if err := sess.Invoke(otp.CmdRead, op); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		n := int(op.Params[1].Size)
		if n != len(want) {
			t.Fatalf("read length: got %d want %d", n, len(want))
		}
		if !bytes.Equal(op.Params[1].Buf[:n], want) {
			t.Fatalf("read bytes mismatch")
		}
	})

	t.Run("OneTimeWrite", func(t *testing.T) {
		sess := openSession(t, newTransport(t))
		if err := sess.Invoke(otp.CmdWrite, writeOp(3, []byte("once"))); err != nil {
			t.Fatalf("first write failed: %v", err)
		}
		err := sess.Invoke(otp.CmdWrite, writeOp(3, []byte("twice")))
		if st, _ := tee.StatusOf(err); st != tee.StatusAccessConflict {
			t.Fatalf("rewrite: got err=%v want access conflict", err)
		}
		if origin, _ := tee.OriginOf(err); !origin.Remote() {
			t.Fatalf("rewrite rejection origin: got %v want a remote tier", origin)
		}
	})

	t.Run("ShortBuffer", func(t *testing.T) {
		sess := openSession(t, newTransport(t))
		payload := []byte("longer than the buffer")
		if err := sess.Invoke(otp.CmdWrite, writeOp(9, payload)); err != nil {
			t.Fatalf("write failed: %v", err)
		}

		op := readOp(9, 4)
		err := sess.Invoke(otp.CmdRead, op)
		if st, _ := tee.StatusOf(err); st != tee.StatusShortBuffer {
			t.Fatalf("short read: got err=%v want short buffer", err)
		}
		if got := int(op.Params[1].Size); got != len(payload) {
			t.Fatalf("required length: got %d want %d", got, len(payload))
		}
	})

	t.Run("InvalidateFlow", func(t *testing.T) {
		sess := openSession(t, newTransport(t))
		if err := sess.Invoke(otp.CmdWrite, writeOp(11, []byte{0xAB})); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if err := sess.Invoke(otp.CmdInvalidate, idOp(11)); err != nil {
			t.Fatalf("invalidate failed: %v", err)
		}
		if got := boolQuery(t, sess, otp.CmdIsValid, 11); got {
			t.Fatalf("IsValid true after invalidate")
		}
		if got := boolQuery(t, sess, otp.CmdIsWritten, 11); !got {
			t.Fatalf("IsWritten false after invalidate")
		}
	})

	t.Run("InvalidateUnwritten", func(t *testing.T) {
		sess := openSession(t, newTransport(t))
		err := sess.Invoke(otp.CmdInvalidate, idOp(42))
		if st, _ := tee.StatusOf(err); st != tee.StatusItemNotFound {
			t.Fatalf("invalidate unwritten: got err=%v want item not found", err)
		}
	})

	t.Run("LockFlow", func(t *testing.T) {
		sess := openSession(t, newTransport(t))
		if err := sess.Invoke(otp.CmdWrite, writeOp(5, []byte("pre"))); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if err := sess.Invoke(otp.CmdLock, &tee.Operation{}); err != nil {
			t.Fatalf("lock failed: %v", err)
		}

		if got := boolQuery(t, sess, otp.CmdIsWritten, uint32(otp.LockFieldID)); !got {
			t.Fatalf("reserved lock field not written after lock")
		}
		err := sess.Invoke(otp.CmdWrite, writeOp(6, []byte("post")))
		if st, _ := tee.StatusOf(err); st != tee.StatusAccessDenied {
			t.Fatalf("write after lock: got err=%v want access denied", err)
		}
		err = sess.Invoke(otp.CmdInvalidate, idOp(5))
		if st, _ := tee.StatusOf(err); st != tee.StatusAccessDenied {
			t.Fatalf("invalidate after lock: got err=%v want access denied", err)
		}
		// Queries stay permitted.
		if got := boolQuery(t, sess, otp.CmdIsValid, 5); !got {
			t.Fatalf("IsValid false for a valid field under lock")
		}
	})
}

func openSession(t *testing.T, tr tee.Transport) tee.Session {
	t.Helper()
	conn, err := tr.Connect()
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(conn.Close)
	sess, err := conn.OpenSession(otp.AppUUID)
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}
	t.Cleanup(sess.Close)
	return sess
}

func writeOp(id uint32, data []byte) *tee.Operation {
	op := &tee.Operation{}
	op.Params[0] = tee.ValueIn(id, 0)
	op.Params[1] = tee.MemrefIn(data)
	return op
}

func readOp(id uint32, capacity int) *tee.Operation {
	op := &tee.Operation{}
	op.Params[0] = tee.ValueIn(id, 0)
	op.Params[1] = tee.MemrefOut(capacity)
	return op
}

func idOp(id uint32) *tee.Operation {
	op := &tee.Operation{}
	op.Params[0] = tee.ValueIn(id, 0)
	return op
}

func boolQuery(t *testing.T, sess tee.Session, cmd tee.Command, id uint32) bool {
	t.Helper()
	op := &tee.Operation{}
	op.Params[0] = tee.ValueIn(id, 0)
	op.Params[1] = tee.ValueOut()
	if err := sess.Invoke(cmd, op); err != nil {
		t.Fatalf("query %d failed: %v", cmd, err)
	}
	return op.Params[1].A != 0
}
