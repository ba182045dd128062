// Package rpc implements the hermit.Hermit gRPC service: Ping, Benchmark,
// ServerInfo and Login.
//
// Messages are plain Go structs encoded with protowire; proto/hermit.proto
// documents their field numbers. Codec registers under the "proto" content
// subtype and is forced on both sides, so no generated code is needed and
// clients generated from hermit.proto interoperate.
//
// # Serving
//
//	srv, err := rpc.NewServer(rpc.Config{Address: ":9090", TLS: true}, state, material, clk, logger)
//	if err != nil {
//	    // TLS requested without material
//	}
//	if err := srv.Listen(); err != nil {
//	    // bind failure
//	}
//	err = srv.Serve(stop) // drains in-flight calls after stop is closed
//
// # Calling
//
//	conn, err := grpc.NewClient(addr,
//	    grpc.WithTransportCredentials(creds),
//	    grpc.WithDefaultCallOptions(grpc.ForceCodec(rpc.Codec{})))
//	resp := new(rpc.PingResponse)
//	err = conn.Invoke(ctx, rpc.PingMethod, &rpc.PingRequest{ClientSendNs: now}, resp)
package rpc
