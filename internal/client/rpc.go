package client

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/KilimcininKorOglu/hermit/internal/rpc"
)

// Call timeouts.
const (
	DefaultCallTimeout      = 5 * time.Second
	DefaultBenchmarkTimeout = 30 * time.Second
)

// ErrLoginRejected is returned when the server answers Login with
// success=false.
var ErrLoginRejected = errors.New("client: login rejected")

// RPCOptions configures DialRPC.
type RPCOptions struct {
	// Insecure disables transport security for servers run with rpc.tls off.
	Insecure bool
	// Timeout overrides DefaultCallTimeout for unary calls other than
	// Benchmark.
	Timeout time.Duration
}

// RPCClient calls the hermit gRPC service.
type RPCClient struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// DialRPC creates a client for addr. Connection errors surface on the
// first call.
func DialRPC(addr string, opts RPCOptions) (*RPCClient, error) {
	creds := credentials.NewTLS(&tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // self-signed server certificates
	})
	if opts.Insecure {
		creds = insecure.NewCredentials()
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rpc.Codec{})))
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", addr)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultCallTimeout
	}
	return &RPCClient{conn: conn, timeout: timeout}, nil
}

func (c *RPCClient) invoke(timeout time.Duration, method string, req, resp rpc.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.conn.Invoke(ctx, method, req, resp)
}

// Ping sends the current client-side stamp.
func (c *RPCClient) Ping(clientSendNs int64) (*rpc.PingResponse, error) {
	resp := new(rpc.PingResponse)
	if err := c.invoke(c.timeout, rpc.PingMethod, &rpc.PingRequest{ClientSendNs: clientSendNs}, resp); err != nil {
		return nil, errors.Wrap(err, "ping")
	}
	return resp, nil
}

// Benchmark asks the server to run its in-process timing loop.
func (c *RPCClient) Benchmark(iterations, payloadBytes uint32) (*rpc.BenchmarkResponse, error) {
	req := &rpc.BenchmarkRequest{Iterations: iterations, PayloadBytes: payloadBytes}
	resp := new(rpc.BenchmarkResponse)
	if err := c.invoke(DefaultBenchmarkTimeout, rpc.BenchmarkMethod, req, resp); err != nil {
		return nil, errors.Wrap(err, "benchmark")
	}
	return resp, nil
}

// ServerInfo fetches server metadata.
func (c *RPCClient) ServerInfo() (*rpc.ServerInfoResponse, error) {
	resp := new(rpc.ServerInfoResponse)
	if err := c.invoke(c.timeout, rpc.ServerInfoMethod, &rpc.ServerInfoRequest{}, resp); err != nil {
		return nil, errors.Wrap(err, "server info")
	}
	return resp, nil
}

// Login returns the session id issued by the server.
func (c *RPCClient) Login(username, token string) (string, error) {
	resp := new(rpc.LoginResponse)
	if err := c.invoke(c.timeout, rpc.LoginMethod, &rpc.LoginRequest{Username: username, Token: token}, resp); err != nil {
		return "", errors.Wrap(err, "login")
	}
	if !resp.Success {
		return "", errors.Wrap(ErrLoginRejected, resp.Error)
	}
	return resp.SessionID, nil
}

// Close tears down the connection.
func (c *RPCClient) Close() error {
	return c.conn.Close()
}
