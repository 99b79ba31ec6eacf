package pinrpc

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/carpin/pinning"
)

// Server exposes a pinning.Pinner over the Pinner gRPC service.
type Server struct {
	UnimplementedPinnerServer
	Pinner pinning.Pinner
}

func (s *Server) Add(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	if s == nil || s.Pinner == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing pinner")
	}
	opts, err := optionsFromContext(ctx)
	if err != nil {
		return nil, err
	}
	r, err := s.Pinner.Add(ctx, in.GetValue(), opts)
	if err != nil {
		return nil, mapErr(err)
	}
	return encodeResult(r), nil
}

func (s *Server) AddCar(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	if s == nil || s.Pinner == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing pinner")
	}
	opts, err := optionsFromContext(ctx)
	if err != nil {
		return nil, err
	}
	r, err := s.Pinner.AddCar(ctx, in.GetValue(), opts)
	if err != nil {
		return nil, mapErr(err)
	}
	return encodeResult(r), nil
}

func optionsFromContext(ctx context.Context) (pinning.AddOptions, error) {
	var opts pinning.AddOptions
	md, _ := metadata.FromIncomingContext(ctx)
	vals := md.Get(replicationMDKey)
	if len(vals) == 0 {
		return opts, nil
	}
	r, err := pinning.ParseReplication(vals[0])
	if err != nil {
		return opts, status.Error(codes.InvalidArgument, err.Error())
	}
	opts.Replication = r
	return opts, nil
}
