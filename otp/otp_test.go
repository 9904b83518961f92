package otp_test

import (
	"errors"
	"testing"

	"github.com/fusevault/fusevault/otp"
	"github.com/fusevault/fusevault/tee"
	"github.com/fusevault/fusevault/tee/emulator"
)

// fakeTransport instruments the open path so resource unwinding is
// observable: it counts connection and session closes and can fail at any
// stage.
type fakeTransport struct {
	connectErr error
	openErr    error
	invokeErr  error
	major      uint32
	minor      uint32

	connCloses int
	sessCloses int
}

func (f *fakeTransport) Connect() (tee.Conn, error) {
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return &fakeConn{f: f}, nil
}

type fakeConn struct{ f *fakeTransport }

func (c *fakeConn) OpenSession(app tee.AppID) (tee.Session, error) {
	if c.f.openErr != nil {
		return nil, c.f.openErr
	}
	return &fakeSession{f: c.f}, nil
}

func (c *fakeConn) Close() { c.f.connCloses++ }

type fakeSession struct{ f *fakeTransport }

func (s *fakeSession) Invoke(cmd tee.Command, op *tee.Operation) error {
	if s.f.invokeErr != nil {
		return s.f.invokeErr
	}
	if cmd == otp.CmdVersion {
		op.Params[0].A = s.f.major
		op.Params[0].B = s.f.minor
	}
	return nil
}

func (s *fakeSession) Close() { s.f.sessCloses++ }

func open(t *testing.T, tr tee.Transport) *otp.Client {
	t.Helper()
	client, err := otp.Open(tr)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestOpenVersionGate(t *testing.T) {
	cases := []struct {
		name         string
		major, minor uint32
		wantOK       bool
	}{
		{"MajorTooOld", otp.ProtocolMajor - 1, otp.ProtocolMinor, false},
		{"MajorTooNewAnyMinor", otp.ProtocolMajor + 1, otp.ProtocolMinor + 5, false},
		{"MinorTooOld", otp.ProtocolMajor, otp.ProtocolMinor - 1, false},
		{"Exact", otp.ProtocolMajor, otp.ProtocolMinor, true},
		{"MinorNewer", otp.ProtocolMajor, otp.ProtocolMinor + 3, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeTransport{major: tc.major, minor: tc.minor}
			client, err := otp.Open(f)
			if tc.wantOK {
				if err != nil {
					t.Fatalf("Open failed: %v", err)
				}
				client.Close()
				return
			}
			if err == nil {
				client.Close()
				t.Fatalf("Open accepted peer %d.%d", tc.major, tc.minor)
			}
			if !otp.IsVersionMismatch(err) {
				t.Fatalf("got err=%v want version mismatch", err)
			}
			var oe *otp.Error
			if !errors.As(err, &oe) {
				t.Fatalf("error is not *otp.Error: %v", err)
			}
			if oe.Peer.Major != tc.major || oe.Peer.Minor != tc.minor {
				t.Fatalf("peer version on error: got %s want %d.%d", oe.Peer, tc.major, tc.minor)
			}
			// Failed opens must unwind everything they acquired.
			if f.sessCloses != 1 || f.connCloses != 1 {
				t.Fatalf("unwind: sessCloses=%d connCloses=%d want 1/1", f.sessCloses, f.connCloses)
			}
		})
	}
}

func TestOpenUnwindOnSessionFailure(t *testing.T) {
	f := &fakeTransport{openErr: tee.NewError(tee.StatusItemNotFound, tee.OriginTEE)}
	if _, err := otp.Open(f); err == nil {
		t.Fatalf("Open succeeded with failing session open")
	}
	if f.connCloses != 1 {
		t.Fatalf("connection not finalized: closes=%d", f.connCloses)
	}
	if f.sessCloses != 0 {
		t.Fatalf("no session existed to close: closes=%d", f.sessCloses)
	}
}

func TestOpenUnwindOnVersionCommandFailure(t *testing.T) {
	f := &fakeTransport{invokeErr: tee.NewError(tee.StatusTargetDead, tee.OriginTEE)}
	_, err := otp.Open(f)
	if err == nil {
		t.Fatalf("Open succeeded with failing version command")
	}
	if otp.IsVersionMismatch(err) {
		t.Fatalf("transport failure misreported as version mismatch: %v", err)
	}
	if f.sessCloses != 1 || f.connCloses != 1 {
		t.Fatalf("unwind: sessCloses=%d connCloses=%d want 1/1", f.sessCloses, f.connCloses)
	}
}

func TestOpenConnectFailure(t *testing.T) {
	f := &fakeTransport{connectErr: errors.New("no tee device")}
	_, err := otp.Open(f)
	if err == nil {
		t.Fatalf("Open succeeded without a transport")
	}
	var oe *otp.Error
	if !errors.As(err, &oe) || oe.Op != "connect" {
		t.Fatalf("got err=%v want connect error", err)
	}
}

func TestCloseNilClient(t *testing.T) {
	var client *otp.Client
	client.Close() // must not panic and must do nothing observable
}

func TestOpenAgainstOlderPeer(t *testing.T) {
	peer := emulator.New(emulator.Options{Major: otp.ProtocolMajor, Minor: otp.ProtocolMinor - 1})
	_, err := otp.Open(peer)
	if !otp.IsVersionMismatch(err) {
		t.Fatalf("got err=%v want version mismatch", err)
	}
}

func TestVersionInformational(t *testing.T) {
	client := open(t, emulator.New(emulator.Options{}))

	for i := 0; i < 3; i++ {
		v, err := client.Version()
		if err != nil {
			t.Fatalf("Version: %v", err)
		}
		if !v.Compatible() {
			t.Fatalf("emulator reported incompatible version %s", v)
		}
	}
}
