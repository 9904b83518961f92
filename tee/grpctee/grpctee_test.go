package grpctee

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/fusevault/fusevault/otp"
	"github.com/fusevault/fusevault/tee"
	"github.com/fusevault/fusevault/tee/emulator"
	"github.com/fusevault/fusevault/tee/testkit"
)

// newBufTransport serves backend over an in-memory gRPC connection and
// returns a Transport dialed against it.
func newBufTransport(t *testing.T, backend tee.Transport) *Transport {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterTEEServer(srv, &Server{Transport: backend})
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(context.Background(), "passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { cc.Close() })

	return &Transport{cc: cc, client: NewTEEClient(cc)}
}

func TestConformanceOverGRPC(t *testing.T) {
	testkit.RunTransportConformance(t, func(t *testing.T) tee.Transport {
		return newBufTransport(t, emulator.New(emulator.Options{}))
	})
}

func TestClientEndToEnd(t *testing.T) {
	tr := newBufTransport(t, emulator.New(emulator.Options{}))
	client, err := otp.Open(tr)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(client.Close)

	if err := client.Write(5, []byte("ABCD")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := client.Read(5, 10)
	if err != nil || !bytes.Equal(got, []byte("ABCD")) {
		t.Fatalf("Read: got %q, %v", got, err)
	}

	// Peer statuses and origins survive the wire intact.
	err = client.Write(5, []byte("again"))
	var oe *otp.Error
	if !errors.As(err, &oe) || oe.Status != tee.StatusAccessConflict {
		t.Fatalf("rewrite: got err=%v want access conflict", err)
	}
	if !oe.Origin.Remote() {
		t.Fatalf("rewrite origin: got %v want a remote tier", oe.Origin)
	}

	// So does the short-buffer required length.
	_, err = client.Read(5, 1)
	if !errors.As(err, &oe) || oe.Kind != otp.KindShortBuffer || oe.Required != 4 {
		t.Fatalf("short read: got err=%v want short buffer requiring 4", err)
	}

	if err := client.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if locked, err := client.IsLocked(); err != nil || !locked {
		t.Fatalf("IsLocked: got %v, %v", locked, err)
	}
}

func TestOpenRejectionStaysInBand(t *testing.T) {
	tr := newBufTransport(t, emulator.New(emulator.Options{}))
	conn, err := tr.Connect()
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	_, err = conn.OpenSession(uuid.New())
	var te *tee.Error
	if !errors.As(err, &te) || te.Status != tee.StatusItemNotFound {
		t.Fatalf("unknown app: got err=%v want item not found", err)
	}
	if te.Origin != tee.OriginTEE {
		t.Fatalf("unknown app origin: got %v want TEE", te.Origin)
	}
}

func TestInvokeUnknownSession(t *testing.T) {
	tr := newBufTransport(t, emulator.New(emulator.Options{}))

	sess := &remoteSession{t: tr, id: 9999}
	op := &tee.Operation{}
	op.Params[0] = tee.ValueOut()
	err := sess.Invoke(otp.CmdVersion, op)
	if st, _ := tee.StatusOf(err); st != tee.StatusBadState {
		t.Fatalf("unknown session: got err=%v want bad state", err)
	}
}

func TestCloseSessionReleasesPeer(t *testing.T) {
	tr := newBufTransport(t, emulator.New(emulator.Options{}))
	conn, err := tr.Connect()
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	sess, err := conn.OpenSession(otp.AppUUID)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	sess.Close()

	op := &tee.Operation{}
	op.Params[0] = tee.ValueOut()
	err = sess.Invoke(otp.CmdVersion, op)
	if st, _ := tee.StatusOf(err); st != tee.StatusBadState {
		t.Fatalf("invoke after close: got err=%v want bad state", err)
	}
}

func TestUndialedTransport(t *testing.T) {
	var tr *Transport
	if _, err := tr.Connect(); err == nil {
		t.Fatalf("nil transport connected")
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("nil transport close: %v", err)
	}
}
