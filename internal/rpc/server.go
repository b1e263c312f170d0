package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/danielpatrickdp/cdpagentx/internal/lab"
	"github.com/danielpatrickdp/cdpagentx/internal/params"
)

// #region server
// Server serves one lab session.
type Server struct {
	lab    *lab.Lab
	logger *log.Logger
}

// NewServer wraps l. A nil logger discards output.
func NewServer(l *lab.Lab, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{lab: l, logger: logger}
}

// NewGRPCServer builds a grpc.Server carrying LabService and the standard
// health service, with request logging.
func NewGRPCServer(srv *Server, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{grpc.UnaryInterceptor(srv.logUnary)}, opts...)
	gs := grpc.NewServer(opts...)
	RegisterLabServiceServer(gs, srv)
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs, hs
}

// ListenAndServe serves on addr until ctx is cancelled, then drains.
func ListenAndServe(ctx context.Context, addr string, srv *Server) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return Serve(ctx, lis, srv)
}

// Serve serves on lis until ctx is cancelled.
func Serve(ctx context.Context, lis net.Listener, srv *Server) error {
	gs, hs := NewGRPCServer(srv)
	errCh := make(chan error, 1)
	go func() { errCh <- gs.Serve(lis) }()
	srv.logger.Printf("serving %s on %s", ServiceName, lis.Addr())

	select {
	case <-ctx.Done():
		hs.Shutdown()
		gs.GracefulStop()
		return nil
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	}
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		s.logger.Printf("%s: %v", info.FullMethod, err)
	}
	return resp, err
}

// #endregion server

// #region methods
// Snapshot returns the session id and every module view.
func (s *Server) Snapshot(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	mods := make([]any, 0)
	for _, snap := range s.lab.Snapshots() {
		mods = append(mods, NewModuleView(snap).fields())
	}
	out, err := structpb.NewStruct(map[string]any{
		"session": s.lab.ID(),
		"seed":    float64(s.lab.Seed()),
		"modules": mods,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode snapshot: %v", err)
	}
	return out, nil
}

// SetParam writes {module, key, value} and returns the module view.
func (s *Server) SetParam(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := in.GetFields()
	module := f["module"].GetStringValue()
	key := f["key"].GetStringValue()
	if module == "" || key == "" || f["value"] == nil {
		return nil, status.Error(codes.InvalidArgument, "module, key and value are required")
	}
	if _, err := s.lab.SetParam(module, key, f["value"].AsInterface()); err != nil {
		return nil, toStatus(err)
	}
	snap, err := s.lab.Module(module)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := NewModuleView(snap).toStruct()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// EditSequence applies {op: move|add|remove, index, dir}.
func (s *Server) EditSequence(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := in.GetFields()
	index := int(f["index"].GetNumberValue())
	var (
		res lab.EditOutcome
		err error
	)
	switch op := f["op"].GetStringValue(); op {
	case "move":
		dir := int(f["dir"].GetNumberValue())
		if dir == 0 {
			return nil, status.Error(codes.InvalidArgument, "move needs a non-zero dir")
		}
		res, err = s.lab.Move(index, dir)
	case "add":
		res, err = s.lab.Add()
	case "remove":
		res, err = s.lab.Remove(index)
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown op %q", op)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := structpb.NewStruct(editFields(res.Steps, res.Lift, res.Decision))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode edit: %v", err)
	}
	return out, nil
}

// Score rates an arbitrary order against the session's tables.
func (s *Server) Score(_ context.Context, in *structpb.ListValue) (*wrapperspb.DoubleValue, error) {
	steps := make([]string, 0, len(in.GetValues()))
	for i, v := range in.GetValues() {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "step %d is not a string", i)
		}
		steps = append(steps, sv.StringValue)
	}
	return wrapperspb.Double(s.lab.Score(steps)), nil
}

// Progress returns the completion mapping.
func (s *Server) Progress(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	m := make(map[string]any)
	for k, v := range s.lab.Progress() {
		m[k] = v
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode progress: %v", err)
	}
	return out, nil
}

// #endregion methods

func toStatus(err error) error {
	switch {
	case errors.Is(err, lab.ErrUnknownModule):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, params.ErrInvalidValue):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, lab.ErrNotSequence), errors.Is(err, lab.ErrClosed):
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
