package pinrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// PinnerServer is the server API for the Pinner gRPC service.
//
// Requests carry the payload as a BytesValue; replies are a Struct with
// "cid", "size" and "bytes" fields. Well-known types keep this package free
// of a protoc toolchain.
type PinnerServer interface {
	Add(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	AddCar(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
}

// UnimplementedPinnerServer can be embedded to have forward compatible implementations.
type UnimplementedPinnerServer struct{}

func (UnimplementedPinnerServer) Add(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Add not implemented")
}
func (UnimplementedPinnerServer) AddCar(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method AddCar not implemented")
}

// RegisterPinnerServer registers the Pinner service on a gRPC server.
func RegisterPinnerServer(s grpc.ServiceRegistrar, srv PinnerServer) {
	s.RegisterService(&Pinner_ServiceDesc, srv)
}

// PinnerClient is the client API for the Pinner gRPC service.
type PinnerClient interface {
	Add(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	AddCar(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error)
}

const (
	serviceName      = "carpin.pinning.v1.Pinner"
	methodAdd        = "/" + serviceName + "/Add"
	methodAddCar     = "/" + serviceName + "/AddCar"
	replicationMDKey = "carpin-replication"
)

type pinnerClient struct{ cc grpc.ClientConnInterface }

func NewPinnerClient(cc grpc.ClientConnInterface) PinnerClient { return &pinnerClient{cc: cc} }

func (c *pinnerClient) Add(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodAdd, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pinnerClient) AddCar(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodAddCar, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _Pinner_Add_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PinnerServer).Add(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodAdd}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PinnerServer).Add(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _Pinner_AddCar_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PinnerServer).AddCar(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodAddCar}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PinnerServer).AddCar(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Pinner_ServiceDesc is the grpc.ServiceDesc for the Pinner service.
var Pinner_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PinnerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Add", Handler: _Pinner_Add_Handler},
		{MethodName: "AddCar", Handler: _Pinner_AddCar_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pinner.proto",
}
