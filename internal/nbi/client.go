package nbi

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/orbital-guard/internal/logging"
	"github.com/signalsfoundry/orbital-guard/model"
)

// DefaultClientTimeout bounds one remote prediction.
const DefaultClientTimeout = 2 * time.Second

// Client queries a remote hazard service. It satisfies session.HazardSource.
type Client struct {
	conn    grpc.ClientConnInterface
	closer  func() error
	timeout time.Duration
	log     logging.Logger
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithClientTimeout sets the per-call timeout; zero or negative disables it.
func WithClientTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithClientLogger attaches a logger.
func WithClientLogger(l logging.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient wraps an existing connection.
func NewClient(conn grpc.ClientConnInterface, opts ...ClientOption) *Client {
	c := &Client{conn: conn, timeout: DefaultClientTimeout, log: logging.Noop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial creates a plaintext connection to target. The connection is
// established lazily, so an unreachable target surfaces on the first call.
func Dial(target string, opts ...ClientOption) (*Client, error) {
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(RequestIDUnaryClientInterceptor()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial hazard service %s: %w", target, err)
	}
	c := NewClient(conn, opts...)
	c.closer = conn.Close
	return c, nil
}

// Predict calls PredictHazards.
func (c *Client) Predict(ctx context.Context, req PredictRequest) ([]model.HazardRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	in, err := EncodePredictRequest(req)
	if err != nil {
		return nil, err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, PredictHazardsMethod, in, out); err != nil {
		return nil, err
	}
	return DecodeHazards(out)
}

// PredictHazards asks the remote service about focus at t. The local catalog
// is not sent; the server evaluates against its own.
func (c *Client) PredictHazards(ctx context.Context, focus model.TrackedObject, _ []model.TrackedObject, t time.Time) ([]model.HazardRecord, error) {
	t = t.UTC()
	hazards, err := c.Predict(ctx, PredictRequest{TargetName: focus.Key(), Time: &t})
	if err != nil {
		c.log.Debug(ctx, "remote hazard query failed",
			logging.String("focus", focus.Key()),
			logging.Err(err),
		)
		return nil, err
	}
	return hazards, nil
}

// Close releases a connection opened by Dial.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}
