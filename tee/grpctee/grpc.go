package grpctee

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// TEEServer is the server API for the TEE gRPC service.
//
// We intentionally use protobuf well-known wrapper types so this package does
// not require a protoc/codegen toolchain. The payloads are the frames
// described in wire.go.
type TEEServer interface {
	Open(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Invoke(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	CloseSession(context.Context, *wrapperspb.UInt32Value) (*emptypb.Empty, error)
}

// UnimplementedTEEServer can be embedded to have forward compatible implementations.
type UnimplementedTEEServer struct{}

func (UnimplementedTEEServer) Open(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Open not implemented")
}
func (UnimplementedTEEServer) Invoke(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Invoke not implemented")
}
func (UnimplementedTEEServer) CloseSession(context.Context, *wrapperspb.UInt32Value) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method CloseSession not implemented")
}

// RegisterTEEServer registers the TEE service on a gRPC server.
func RegisterTEEServer(s grpc.ServiceRegistrar, srv TEEServer) {
	s.RegisterService(&TEE_ServiceDesc, srv)
}

// TEEClient is the client API for the TEE gRPC service.
type TEEClient interface {
	Open(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Invoke(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	CloseSession(ctx context.Context, in *wrapperspb.UInt32Value, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type teeClient struct{ cc grpc.ClientConnInterface }

func NewTEEClient(cc grpc.ClientConnInterface) TEEClient { return &teeClient{cc: cc} }

func (c *teeClient) Open(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	err := c.cc.Invoke(ctx, "/fusevault.tee.v1.TEE/Open", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *teeClient) Invoke(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	err := c.cc.Invoke(ctx, "/fusevault.tee.v1.TEE/Invoke", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *teeClient) CloseSession(ctx context.Context, in *wrapperspb.UInt32Value, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	err := c.cc.Invoke(ctx, "/fusevault.tee.v1.TEE/CloseSession", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func _TEE_Open_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TEEServer).Open(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/fusevault.tee.v1.TEE/Open"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TEEServer).Open(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _TEE_Invoke_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TEEServer).Invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/fusevault.tee.v1.TEE/Invoke"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TEEServer).Invoke(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _TEE_CloseSession_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.UInt32Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TEEServer).CloseSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/fusevault.tee.v1.TEE/CloseSession"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TEEServer).CloseSession(ctx, req.(*wrapperspb.UInt32Value))
	}
	return interceptor(ctx, in, info, handler)
}

// TEE_ServiceDesc is the grpc.ServiceDesc for the TEE service.
var TEE_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "fusevault.tee.v1.TEE",
	HandlerType: (*TEEServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Open", Handler: _TEE_Open_Handler},
		{MethodName: "Invoke", Handler: _TEE_Invoke_Handler},
		{MethodName: "CloseSession", Handler: _TEE_CloseSession_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tee.proto",
}
