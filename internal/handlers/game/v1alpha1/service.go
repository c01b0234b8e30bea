package v1alpha1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "rpgnarrator.game.v1alpha1.GameService"

// Full method names
const (
	FullMethodStartSession  = "/" + ServiceName + "/StartSession"
	FullMethodGetSession    = "/" + ServiceName + "/GetSession"
	FullMethodEndSession    = "/" + ServiceName + "/EndSession"
	FullMethodProcessAction = "/" + ServiceName + "/ProcessAction"
)

// GameServiceServer is the server API for GameService
type GameServiceServer interface {
	StartSession(context.Context, *StartSessionRequest) (*StartSessionResponse, error)
	GetSession(context.Context, *GetSessionRequest) (*GetSessionResponse, error)
	EndSession(context.Context, *EndSessionRequest) (*EndSessionResponse, error)
	ProcessAction(context.Context, *ProcessActionRequest) (*ProcessActionResponse, error)
}

// UnimplementedGameServiceServer can be embedded for forward compatibility
type UnimplementedGameServiceServer struct{}

func (UnimplementedGameServiceServer) StartSession(context.Context, *StartSessionRequest) (*StartSessionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method StartSession not implemented")
}

func (UnimplementedGameServiceServer) GetSession(context.Context, *GetSessionRequest) (*GetSessionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetSession not implemented")
}

func (UnimplementedGameServiceServer) EndSession(context.Context, *EndSessionRequest) (*EndSessionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method EndSession not implemented")
}

func (UnimplementedGameServiceServer) ProcessAction(context.Context, *ProcessActionRequest) (*ProcessActionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ProcessAction not implemented")
}

// RegisterGameServiceServer registers srv on s
func RegisterGameServiceServer(s grpc.ServiceRegistrar, srv GameServiceServer) {
	s.RegisterService(&GameServiceDesc, srv)
}

// unary builds a method handler for one request type
func unary[Req any, Resp any](
	fullMethod string,
	call func(GameServiceServer, context.Context, *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(GameServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(GameServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// GameServiceDesc is the grpc.ServiceDesc for GameService
var GameServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GameServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "StartSession",
			Handler:    unary(FullMethodStartSession, GameServiceServer.StartSession),
		},
		{
			MethodName: "GetSession",
			Handler:    unary(FullMethodGetSession, GameServiceServer.GetSession),
		},
		{
			MethodName: "EndSession",
			Handler:    unary(FullMethodEndSession, GameServiceServer.EndSession),
		},
		{
			MethodName: "ProcessAction",
			Handler:    unary(FullMethodProcessAction, GameServiceServer.ProcessAction),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rpgnarrator/game/v1alpha1/game.json",
}

// GameServiceClient is the client API for GameService
type GameServiceClient interface {
	StartSession(ctx context.Context, in *StartSessionRequest, opts ...grpc.CallOption) (*StartSessionResponse, error)
	GetSession(ctx context.Context, in *GetSessionRequest, opts ...grpc.CallOption) (*GetSessionResponse, error)
	EndSession(ctx context.Context, in *EndSessionRequest, opts ...grpc.CallOption) (*EndSessionResponse, error)
	ProcessAction(ctx context.Context, in *ProcessActionRequest, opts ...grpc.CallOption) (*ProcessActionResponse, error)
}

type gameServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewGameServiceClient returns a client that speaks the JSON codec
func NewGameServiceClient(cc grpc.ClientConnInterface) GameServiceClient {
	return &gameServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *gameServiceClient) StartSession(ctx context.Context, in *StartSessionRequest, opts ...grpc.CallOption) (*StartSessionResponse, error) {
	return invoke[StartSessionResponse](ctx, c.cc, FullMethodStartSession, in, opts)
}

func (c *gameServiceClient) GetSession(ctx context.Context, in *GetSessionRequest, opts ...grpc.CallOption) (*GetSessionResponse, error) {
	return invoke[GetSessionResponse](ctx, c.cc, FullMethodGetSession, in, opts)
}

func (c *gameServiceClient) EndSession(ctx context.Context, in *EndSessionRequest, opts ...grpc.CallOption) (*EndSessionResponse, error) {
	return invoke[EndSessionResponse](ctx, c.cc, FullMethodEndSession, in, opts)
}

func (c *gameServiceClient) ProcessAction(ctx context.Context, in *ProcessActionRequest, opts ...grpc.CallOption) (*ProcessActionResponse, error) {
	return invoke[ProcessActionResponse](ctx, c.cc, FullMethodProcessAction, in, opts)
}
