package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "hermit.Hermit"

// Full method names.
const (
	PingMethod       = "/hermit.Hermit/Ping"
	BenchmarkMethod  = "/hermit.Hermit/Benchmark"
	ServerInfoMethod = "/hermit.Hermit/ServerInfo"
	LoginMethod      = "/hermit.Hermit/Login"
)

// ServiceDesc describes the hermit.Hermit service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HermitServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: pingHandler},
		{MethodName: "Benchmark", Handler: benchmarkHandler},
		{MethodName: "ServerInfo", Handler: serverInfoHandler},
		{MethodName: "Login", Handler: loginHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "proto/hermit.proto",
}

// RegisterHermitServer registers srv on s.
func RegisterHermitServer(s grpc.ServiceRegistrar, srv HermitServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func pingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HermitServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PingMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(HermitServer).Ping(ctx, req.(*PingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func benchmarkHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(BenchmarkRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HermitServer).Benchmark(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: BenchmarkMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(HermitServer).Benchmark(ctx, req.(*BenchmarkRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func serverInfoHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ServerInfoRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HermitServer).ServerInfo(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServerInfoMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(HermitServer).ServerInfo(ctx, req.(*ServerInfoRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func loginHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(LoginRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HermitServer).Login(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LoginMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(HermitServer).Login(ctx, req.(*LoginRequest))
	}
	return interceptor(ctx, in, info, handler)
}
