package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region client-struct
// Client wraps the gRPC connection to a running lab.
type Client struct {
	conn   *grpc.ClientConn
	client LabServiceClient
	health healthpb.HealthClient
}

// SessionView is the whole-session snapshot.
type SessionView struct {
	SessionID string
	Seed      int64
	Modules   []ModuleView
}

// #endregion client-struct

// #region constructor
// NewClient connects to a lab server.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{
		conn:   conn,
		client: NewLabServiceClient(conn),
		health: healthpb.NewHealthClient(conn),
	}, nil
}

// NewClientWithService creates a Client with an injected service
// implementation. Used for testing without a real gRPC connection.
func NewClientWithService(svc LabServiceClient) *Client {
	return &Client{client: svc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region calls
// Healthy reports whether the server says LabService is serving.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	if c.health == nil {
		return false, fmt.Errorf("health rpc: no connection")
	}
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return false, fmt.Errorf("health rpc: %w", err)
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

// Snapshot fetches every module.
func (c *Client) Snapshot(ctx context.Context) (SessionView, error) {
	resp, err := c.client.Snapshot(ctx, &emptypb.Empty{})
	if err != nil {
		return SessionView{}, fmt.Errorf("snapshot rpc: %w", err)
	}
	m := resp.GetFields()
	out := SessionView{
		SessionID: m["session"].GetStringValue(),
		Seed:      int64(m["seed"].GetNumberValue()),
	}
	for _, v := range m["modules"].GetListValue().GetValues() {
		out.Modules = append(out.Modules, moduleViewFrom(v.GetStructValue()))
	}
	return out, nil
}

// SetParam writes one parameter and returns the module afterwards.
func (c *Client) SetParam(ctx context.Context, module, key string, value any) (ModuleView, error) {
	req, err := structpb.NewStruct(map[string]any{
		"module": module,
		"key":    key,
		"value":  plain(value),
	})
	if err != nil {
		return ModuleView{}, fmt.Errorf("encode param %s.%s: %w", module, key, err)
	}
	resp, err := c.client.SetParam(ctx, req)
	if err != nil {
		return ModuleView{}, fmt.Errorf("set param rpc: %w", err)
	}
	return moduleViewFrom(resp), nil
}

// Move shifts the step at index by dir.
func (c *Client) Move(ctx context.Context, index, dir int) (EditResult, error) {
	return c.edit(ctx, map[string]any{"op": "move", "index": index, "dir": dir})
}

// Add appends the next pool channel.
func (c *Client) Add(ctx context.Context) (EditResult, error) {
	return c.edit(ctx, map[string]any{"op": "add"})
}

// Remove drops the step at index.
func (c *Client) Remove(ctx context.Context, index int) (EditResult, error) {
	return c.edit(ctx, map[string]any{"op": "remove", "index": index})
}

func (c *Client) edit(ctx context.Context, fields map[string]any) (EditResult, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return EditResult{}, fmt.Errorf("encode edit: %w", err)
	}
	resp, err := c.client.EditSequence(ctx, req)
	if err != nil {
		return EditResult{}, fmt.Errorf("edit sequence rpc: %w", err)
	}
	return editResultFrom(resp), nil
}

// Score rates an order against the server's tables.
func (c *Client) Score(ctx context.Context, steps []string) (float64, error) {
	list, err := structpb.NewList(plain(steps).([]any))
	if err != nil {
		return 0, fmt.Errorf("encode steps: %w", err)
	}
	resp, err := c.client.Score(ctx, list)
	if err != nil {
		return 0, fmt.Errorf("score rpc: %w", err)
	}
	return resp.GetValue(), nil
}

// Progress fetches the completion mapping.
func (c *Client) Progress(ctx context.Context) (map[string]bool, error) {
	resp, err := c.client.Progress(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, fmt.Errorf("progress rpc: %w", err)
	}
	out := make(map[string]bool, len(resp.GetFields()))
	for k, v := range resp.GetFields() {
		out[k] = v.GetBoolValue()
	}
	return out, nil
}

// #endregion calls
