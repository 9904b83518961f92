// Package grpctee carries the secure-session transport over gRPC.
//
// A daemon (typically cmd/fusevault-teed) sits in front of the real or
// emulated trusted environment; this package is the client side plus the
// server adapter. Peer statuses travel inside the reply frames; gRPC status
// codes are reserved for faults of the communication path itself.
package grpctee

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/fusevault/fusevault/tee"
)

// Transport implements tee.Transport over a TEE gRPC service.
type Transport struct {
	cc     *grpc.ClientConn
	client TEEClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Transport, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Transport{cc: cc, client: NewTEEClient(cc), Timeout: 0}, nil
}

// Close releases the underlying gRPC connection. Conns and Sessions handed
// out by this Transport are unusable afterwards.
func (t *Transport) Close() error {
	if t == nil || t.cc == nil {
		return nil
	}
	return t.cc.Close()
}

var _ tee.Transport = (*Transport)(nil)

// Connect implements tee.Transport. The gRPC channel is shared; per-Conn
// state lives on the daemon side, created at session open.
func (t *Transport) Connect() (tee.Conn, error) {
	if t == nil || t.client == nil {
		return nil, tee.Errf(tee.StatusBadState, tee.OriginAPI, "transport not dialed")
	}
	return &conn{t: t}, nil
}

func (t *Transport) ctx() (context.Context, context.CancelFunc) {
	if t.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), t.Timeout)
}

type conn struct {
	t *Transport
}

func (c *conn) OpenSession(app tee.AppID) (tee.Session, error) {
	ctx, cancel := c.t.ctx()
	defer cancel()

	id := app
	reply, err := c.t.client.Open(ctx, wrapperspb.Bytes(id[:]))
	if err != nil {
		return nil, mapRPC(err)
	}
	st, origin, sid, err := unmarshalOpenReply(reply.GetValue())
	if err != nil {
		return nil, tee.Errf(tee.StatusCommunication, tee.OriginComms, "malformed open reply: %v", err)
	}
	if st != tee.StatusSuccess {
		return nil, tee.NewError(st, origin)
	}
	return &remoteSession{t: c.t, id: sid}, nil
}

func (c *conn) Close() {}

type remoteSession struct {
	t  *Transport
	id uint32
}

func (s *remoteSession) Invoke(cmd tee.Command, op *tee.Operation) error {
	frame, err := marshalInvokeRequest(s.id, cmd, op)
	if err != nil {
		return tee.Errf(tee.StatusBadParameters, tee.OriginAPI, "%v", err)
	}

	ctx, cancel := s.t.ctx()
	defer cancel()

	reply, err := s.t.client.Invoke(ctx, wrapperspb.Bytes(frame))
	if err != nil {
		return mapRPC(err)
	}
	st, origin, err := applyInvokeReply(reply.GetValue(), op)
	if err != nil {
		return tee.Errf(tee.StatusCommunication, tee.OriginComms, "malformed reply: %v", err)
	}
	if st != tee.StatusSuccess {
		return tee.NewError(st, origin)
	}
	return nil
}

func (s *remoteSession) Close() {
	ctx, cancel := s.t.ctx()
	defer cancel()
	_, _ = s.t.client.CloseSession(ctx, wrapperspb.UInt32(s.id))
}
