// Package rpc exposes a lab session over gRPC. Messages are protobuf
// well-known types, so the service needs no generated code.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cdpagentx.lab.v1.LabService"

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

// #region server-interface
// LabServiceServer is the server API for LabService.
type LabServiceServer interface {
	Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SetParam(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EditSequence(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Score(context.Context, *structpb.ListValue) (*wrapperspb.DoubleValue, error)
	Progress(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterLabServiceServer registers srv on s.
func RegisterLabServiceServer(s grpc.ServiceRegistrar, srv LabServiceServer) {
	s.RegisterService(&LabServiceDesc, srv)
}

// #endregion server-interface

// #region service-desc
// LabServiceDesc is the grpc.ServiceDesc for LabService.
var LabServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LabServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Snapshot",
			Handler: unaryHandler("Snapshot", func() *emptypb.Empty { return new(emptypb.Empty) },
				func(s LabServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) { return s.Snapshot(ctx, in) }),
		},
		{
			MethodName: "SetParam",
			Handler: unaryHandler("SetParam", func() *structpb.Struct { return new(structpb.Struct) },
				func(s LabServiceServer, ctx context.Context, in *structpb.Struct) (any, error) { return s.SetParam(ctx, in) }),
		},
		{
			MethodName: "EditSequence",
			Handler: unaryHandler("EditSequence", func() *structpb.Struct { return new(structpb.Struct) },
				func(s LabServiceServer, ctx context.Context, in *structpb.Struct) (any, error) { return s.EditSequence(ctx, in) }),
		},
		{
			MethodName: "Score",
			Handler: unaryHandler("Score", func() *structpb.ListValue { return new(structpb.ListValue) },
				func(s LabServiceServer, ctx context.Context, in *structpb.ListValue) (any, error) { return s.Score(ctx, in) }),
		},
		{
			MethodName: "Progress",
			Handler: unaryHandler("Progress", func() *emptypb.Empty { return new(emptypb.Empty) },
				func(s LabServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) { return s.Progress(ctx, in) }),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cdpagentx/lab/v1/lab.proto",
}

// unaryHandler adapts a typed server method to grpc's untyped handler shape.
func unaryHandler[Req any](method string, newReq func() Req, call func(LabServiceServer, context.Context, Req) (any, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(LabServiceServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// #endregion service-desc

// #region client-interface
// LabServiceClient is the client API for LabService.
type LabServiceClient interface {
	Snapshot(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	SetParam(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	EditSequence(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Score(ctx context.Context, in *structpb.ListValue, opts ...grpc.CallOption) (*wrapperspb.DoubleValue, error)
	Progress(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type labServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLabServiceClient returns a stub over cc.
func NewLabServiceClient(cc grpc.ClientConnInterface) LabServiceClient {
	return &labServiceClient{cc: cc}
}

func (c *labServiceClient) Snapshot(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Snapshot"), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *labServiceClient) SetParam(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("SetParam"), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *labServiceClient) EditSequence(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("EditSequence"), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *labServiceClient) Score(ctx context.Context, in *structpb.ListValue, opts ...grpc.CallOption) (*wrapperspb.DoubleValue, error) {
	out := new(wrapperspb.DoubleValue)
	if err := c.cc.Invoke(ctx, fullMethod("Score"), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *labServiceClient) Progress(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Progress"), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion client-interface
