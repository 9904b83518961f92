package emulator

import (
	"testing"

	"github.com/fusevault/fusevault/otp"
	"github.com/fusevault/fusevault/tee"
	"github.com/fusevault/fusevault/tee/testkit"
)

func TestConformance(t *testing.T) {
	testkit.RunTransportConformance(t, func(t *testing.T) tee.Transport {
		return New(Options{})
	})
}

func openSession(t *testing.T, p *Peer) tee.Session {
	t.Helper()
	conn, err := p.Connect()
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	sess, err := conn.OpenSession(otp.AppUUID)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	return sess
}

func TestConfiguredVersion(t *testing.T) {
	sess := openSession(t, New(Options{Major: 3, Minor: 9}))

	op := &tee.Operation{}
	op.Params[0] = tee.ValueOut()
	if err := sess.Invoke(otp.CmdVersion, op); err != nil {
		t.Fatalf("version: %v", err)
	}
	if op.Params[0].A != 3 || op.Params[0].B != 9 {
		t.Fatalf("version: got %d.%d want 3.9", op.Params[0].A, op.Params[0].B)
	}
}

func TestBadParameterShape(t *testing.T) {
	sess := openSession(t, New(Options{}))

	// Read with a value-out where the memref belongs.
	op := &tee.Operation{}
	op.Params[0] = tee.ValueIn(1, 0)
	op.Params[1] = tee.ValueOut()
	err := sess.Invoke(otp.CmdRead, op)
	if st, _ := tee.StatusOf(err); st != tee.StatusBadParameters {
		t.Fatalf("bad shape: got err=%v want bad parameters", err)
	}

	// Extra trailing slot.
	op = &tee.Operation{}
	op.Params[0] = tee.ValueOut()
	op.Params[3] = tee.ValueIn(0, 0)
	err = sess.Invoke(otp.CmdVersion, op)
	if st, _ := tee.StatusOf(err); st != tee.StatusBadParameters {
		t.Fatalf("trailing slot: got err=%v want bad parameters", err)
	}
}

func TestUnknownCommand(t *testing.T) {
	sess := openSession(t, New(Options{}))
	err := sess.Invoke(tee.Command(99), &tee.Operation{})
	if st, _ := tee.StatusOf(err); st != tee.StatusBadParameters {
		t.Fatalf("unknown command: got err=%v want bad parameters", err)
	}
	if origin, _ := tee.OriginOf(err); origin != tee.OriginTrustedApp {
		t.Fatalf("unknown command origin: got %v", origin)
	}
}

func TestMaxFieldSize(t *testing.T) {
	sess := openSession(t, New(Options{MaxFieldSize: 4}))

	op := &tee.Operation{}
	op.Params[0] = tee.ValueIn(1, 0)
	op.Params[1] = tee.MemrefIn([]byte("12345"))
	err := sess.Invoke(otp.CmdWrite, op)
	if st, _ := tee.StatusOf(err); st != tee.StatusBadParameters {
		t.Fatalf("oversized write: got err=%v want bad parameters", err)
	}

	op.Params[1] = tee.MemrefIn([]byte("1234"))
	if err := sess.Invoke(otp.CmdWrite, op); err != nil {
		t.Fatalf("max-sized write: %v", err)
	}
}

func TestEmptyWriteRejected(t *testing.T) {
	sess := openSession(t, New(Options{}))
	op := &tee.Operation{}
	op.Params[0] = tee.ValueIn(1, 0)
	op.Params[1] = tee.MemrefIn(nil)
	err := sess.Invoke(otp.CmdWrite, op)
	if st, _ := tee.StatusOf(err); st != tee.StatusBadParameters {
		t.Fatalf("empty write: got err=%v want bad parameters", err)
	}
}

func TestClosedSession(t *testing.T) {
	sess := openSession(t, New(Options{}))
	sess.Close()

	op := &tee.Operation{}
	op.Params[0] = tee.ValueOut()
	err := sess.Invoke(otp.CmdVersion, op)
	if st, _ := tee.StatusOf(err); st != tee.StatusBadState {
		t.Fatalf("closed session: got err=%v want bad state", err)
	}
	if origin, _ := tee.OriginOf(err); origin != tee.OriginAPI {
		t.Fatalf("closed session origin: got %v", origin)
	}
}

func TestLockViaReservedFieldWrite(t *testing.T) {
	p := New(Options{})
	sess := openSession(t, p)

	// Writing the reserved field directly engages the lock, the same way
	// the lock command does.
	op := &tee.Operation{}
	op.Params[0] = tee.ValueIn(uint32(otp.LockFieldID), 0)
	op.Params[1] = tee.MemrefIn([]byte{1})
	if err := sess.Invoke(otp.CmdWrite, op); err != nil {
		t.Fatalf("write lock field: %v", err)
	}

	wr := &tee.Operation{}
	wr.Params[0] = tee.ValueIn(12, 0)
	wr.Params[1] = tee.MemrefIn([]byte("x"))
	err := sess.Invoke(otp.CmdWrite, wr)
	if st, _ := tee.StatusOf(err); st != tee.StatusAccessDenied {
		t.Fatalf("write after lock-field write: got err=%v want access denied", err)
	}
}

func TestDoubleLock(t *testing.T) {
	sess := openSession(t, New(Options{}))
	if err := sess.Invoke(otp.CmdLock, &tee.Operation{}); err != nil {
		t.Fatalf("lock: %v", err)
	}
	err := sess.Invoke(otp.CmdLock, &tee.Operation{})
	if st, _ := tee.StatusOf(err); st != tee.StatusBadState {
		t.Fatalf("double lock: got err=%v want bad state", err)
	}
}
