package grpctee

import (
	"context"
	"errors"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/fusevault/fusevault/tee"
)

// Server exposes any tee.Transport over the TEE gRPC service, one remote
// session per served session ID. Peer failures are carried in-band in the
// reply frames; gRPC errors are reserved for the service itself.
type Server struct {
	UnimplementedTEEServer

	// Transport is the environment being served, typically an emulator.
	Transport tee.Transport

	mu       sync.Mutex
	nextID   uint32
	sessions map[uint32]*served
}

type served struct {
	conn tee.Conn
	sess tee.Session
}

var _ TEEServer = (*Server)(nil)

func (s *Server) Open(_ context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	raw := in.GetValue()
	if len(raw) != 16 {
		return nil, status.Error(codes.InvalidArgument, "application id must be 16 bytes")
	}
	var app tee.AppID
	copy(app[:], raw)

	conn, err := s.Transport.Connect()
	if err != nil {
		return openFailure(err)
	}
	sess, err := conn.OpenSession(app)
	if err != nil {
		conn.Close()
		return openFailure(err)
	}

	s.mu.Lock()
	if s.sessions == nil {
		s.sessions = map[uint32]*served{}
	}
	s.nextID++
	id := s.nextID
	s.sessions[id] = &served{conn: conn, sess: sess}
	s.mu.Unlock()

	return wrapperspb.Bytes(marshalOpenReply(tee.StatusSuccess, 0, id)), nil
}

func openFailure(err error) (*wrapperspb.BytesValue, error) {
	var te *tee.Error
	if errors.As(err, &te) && te != nil {
		return wrapperspb.Bytes(marshalOpenReply(te.Status, te.Origin, 0)), nil
	}
	return nil, status.Errorf(codes.Internal, "open: %v", err)
}

func (s *Server) Invoke(_ context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	id, cmd, op, err := unmarshalInvokeRequest(in.GetValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}

	s.mu.Lock()
	sv := s.sessions[id]
	s.mu.Unlock()
	if sv == nil {
		return wrapperspb.Bytes(marshalInvokeReply(tee.StatusBadState, tee.OriginAPI, op)), nil
	}

	if err := sv.sess.Invoke(cmd, op); err != nil {
		var te *tee.Error
		if errors.As(err, &te) && te != nil {
			// Output sizes may have been updated even on failure (short
			// buffer reports the required length this way).
			return wrapperspb.Bytes(marshalInvokeReply(te.Status, te.Origin, op)), nil
		}
		return nil, status.Errorf(codes.Internal, "invoke: %v", err)
	}
	return wrapperspb.Bytes(marshalInvokeReply(tee.StatusSuccess, 0, op)), nil
}

func (s *Server) CloseSession(_ context.Context, in *wrapperspb.UInt32Value) (*emptypb.Empty, error) {
	s.mu.Lock()
	sv := s.sessions[in.GetValue()]
	delete(s.sessions, in.GetValue())
	s.mu.Unlock()

	if sv != nil {
		sv.sess.Close()
		sv.conn.Close()
	}
	return &emptypb.Empty{}, nil
}
