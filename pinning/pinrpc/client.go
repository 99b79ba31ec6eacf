// Package pinrpc carries the Pinner contract over gRPC so the pinning
// collaborator can run as a separate daemon.
package pinrpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/carpin/pinning"
)

// Client implements pinning.Pinner over the Pinner gRPC service.
type Client struct {
	cc     *grpc.ClientConn
	client PinnerClient

	// Timeout applies per RPC when non-zero, on top of the caller's context.
	Timeout time.Duration
}

var _ pinning.Pinner = (*Client)(nil)

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero. Archives
	// travel in a single message, so this must exceed the largest upload.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
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
	return NewClient(cc), nil
}

// NewClient wraps an existing connection.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: NewPinnerClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Add(ctx context.Context, data []byte, opts pinning.AddOptions) (pinning.AddResult, error) {
	ctx, cancel := c.ctx(ctx, opts)
	defer cancel()

	reply, err := c.client.Add(ctx, wrapperspb.Bytes(data))
	if err != nil {
		return pinning.AddResult{}, mapRPC(err)
	}
	return decodeResult(reply)
}

func (c *Client) AddCar(ctx context.Context, carBytes []byte, opts pinning.AddOptions) (pinning.AddResult, error) {
	ctx, cancel := c.ctx(ctx, opts)
	defer cancel()

	reply, err := c.client.AddCar(ctx, wrapperspb.Bytes(carBytes))
	if err != nil {
		return pinning.AddResult{}, mapRPC(err)
	}
	return decodeResult(reply)
}

func (c *Client) ctx(parent context.Context, opts pinning.AddOptions) (context.Context, context.CancelFunc) {
	parent = metadata.AppendToOutgoingContext(parent, replicationMDKey, opts.Replication.String())
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}
