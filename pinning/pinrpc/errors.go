package pinrpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"xdao.co/carpin/pinning"
)

// mapErr converts a Pinner error into a gRPC status on the server side.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pinning.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, pinning.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// mapRPC converts a gRPC status back into the pinning sentinels so callers
// can branch the same way for local and remote pinners.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", pinning.ErrInvalidInput, st.Message())
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", pinning.ErrUnavailable, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, st.Message())
	default:
		return err
	}
}

func encodeResult(r pinning.AddResult) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"cid":   structpb.NewStringValue(r.Cid.String()),
		"size":  structpb.NewNumberValue(float64(r.Size)),
		"bytes": structpb.NewNumberValue(float64(r.Bytes)),
	}}
}

func decodeResult(s *structpb.Struct) (pinning.AddResult, error) {
	f := s.GetFields()
	id, err := cid.Decode(f["cid"].GetStringValue())
	if err != nil {
		return pinning.AddResult{}, fmt.Errorf("pinrpc: invalid cid in reply: %w", err)
	}
	return pinning.AddResult{
		Cid:   id,
		Size:  uint64(f["size"].GetNumberValue()),
		Bytes: uint64(f["bytes"].GetNumberValue()),
	}, nil
}
