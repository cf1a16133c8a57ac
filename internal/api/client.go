package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"tradeday/internal/calendar"
	"tradeday/internal/domain"
)

// GRPCClient calls the calendar gRPC service.
type GRPCClient struct {
	conn *grpc.ClientConn
}

// DialGRPC creates a client for target. Extra dial options are appended
// after insecure transport credentials.
func DialGRPC(target string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", target, err)
	}
	return &GRPCClient{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// IsOpen asks whether d is a trading day. A zero d means today.
func (c *GRPCClient) IsOpen(ctx context.Context, d domain.Date) (bool, error) {
	in := wrapperspb.String(dateArg(d))
	out := new(wrapperspb.BoolValue)
	if err := c.conn.Invoke(ctx, methodIsOpen, in, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// NearestOpen returns the nearest trading day from d in dir.
func (c *GRPCClient) NearestOpen(ctx context.Context, d domain.Date, dir calendar.Direction) (domain.Date, error) {
	in, err := structpb.NewStruct(map[string]any{
		"date":      dateArg(d),
		"direction": dir.String(),
	})
	if err != nil {
		return domain.Date{}, err
	}
	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, methodNearestOpen, in, out); err != nil {
		return domain.Date{}, err
	}
	return domain.ParseDate(out.GetValue())
}

// Stats returns the server's exception-list summary as a plain map.
func (c *GRPCClient) Stats(ctx context.Context) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodStats, new(emptypb.Empty), out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func dateArg(d domain.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}
