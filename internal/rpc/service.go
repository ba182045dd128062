package rpc

import (
	"context"
	"runtime"
	"slices"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/peer"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/KilimcininKorOglu/hermit/internal/certs"
	"github.com/KilimcininKorOglu/hermit/internal/clock"
	"github.com/KilimcininKorOglu/hermit/internal/logging"
	"github.com/KilimcininKorOglu/hermit/internal/stats"
)

// Benchmark iteration bounds.
const (
	MinIterations = 1
	MaxIterations = 10000
)

// benchmarkFill is the byte every benchmark payload is filled with.
const benchmarkFill = 0xAB

// HermitServer is the server API for the hermit.Hermit service.
type HermitServer interface {
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	Benchmark(context.Context, *BenchmarkRequest) (*BenchmarkResponse, error)
	ServerInfo(context.Context, *ServerInfoRequest) (*ServerInfoResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
}

// ServerState is the process metadata reported by ServerInfo. It is
// read-only after construction.
type ServerState struct {
	Version string
	Region  string
	// StartedAt is captured with time.Now, so it carries both the wall
	// clock start (reported) and a monotonic reading (used for uptime).
	StartedAt  time.Time
	RPCPort    uint16
	TCPPort    uint16
	TLSEnabled bool
}

// Uptime returns the monotonic time since StartedAt.
func (s *ServerState) Uptime() time.Duration {
	return time.Since(s.StartedAt)
}

// Service implements HermitServer.
type Service struct {
	state  *ServerState
	clock  *clock.Clock
	logger logging.Logger
}

// NewService returns the hermit service backed by state and clk.
func NewService(state *ServerState, clk *clock.Clock, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{state: state, clock: clk, logger: logger}
}

// Ping stamps receipt on entry and send just before returning.
func (s *Service) Ping(_ context.Context, req *PingRequest) (*PingResponse, error) {
	recv := s.clock.NowNs()
	clientSend := req.ClientSendNs
	send := s.clock.NowNs()
	return &PingResponse{
		ClientSendNs: clientSend,
		ServerRecvNs: recv,
		ServerSendNs: send,
	}, nil
}

// ClampIterations bounds a requested iteration count to
// [MinIterations, MaxIterations].
func ClampIterations(n uint32) int {
	return int(max(MinIterations, min(n, MaxIterations)))
}

// Benchmark times a minimal in-server loop. The payload buffer is allocated
// before the measured window opens.
func (s *Service) Benchmark(ctx context.Context, req *BenchmarkRequest) (*BenchmarkResponse, error) {
	iterations := ClampIterations(req.Iterations)

	var payload []byte
	if req.PayloadBytes > 0 {
		payload = make([]byte, req.PayloadBytes)
		for i := range payload {
			payload[i] = benchmarkFill
		}
	}
	latencies := make([]int64, iterations)

	overheadStart := s.clock.NowNs()
	for i := range latencies {
		t0 := s.clock.NowNs()
		touch(payload)
		t1 := s.clock.NowNs()
		latencies[i] = t1 - t0
	}
	overheadEnd := s.clock.NowNs()

	slices.Sort(latencies)
	st := stats.FromSorted(latencies)
	tlsActive, tlsVersion := transportSecurity(ctx)

	return &BenchmarkResponse{
		LatenciesNs:          latencies,
		MinNs:                st.Min,
		MaxNs:                st.Max,
		MeanNs:               st.Mean,
		P50Ns:                st.P50,
		P99Ns:                st.P99,
		ProcessingOverheadNs: overheadEnd - overheadStart,
		TLSActive:            tlsActive,
		TLSVersion:           tlsVersion,
	}, nil
}

// touch keeps the payload observable to the compiler within the timed
// region.
//
//go:noinline
func touch(b []byte) {
	runtime.KeepAlive(b)
}

// transportSecurity reports whether the caller's connection is TLS and, if
// so, the negotiated protocol version.
func transportSecurity(ctx context.Context) (bool, string) {
	p, ok := peer.FromContext(ctx)
	if !ok || p.AuthInfo == nil {
		return false, ""
	}
	info, ok := p.AuthInfo.(credentials.TLSInfo)
	if !ok {
		return false, ""
	}
	return true, certs.VersionName(info.State.Version)
}

// ServerInfo reports the process metadata.
func (s *Service) ServerInfo(_ context.Context, _ *ServerInfoRequest) (*ServerInfoResponse, error) {
	return &ServerInfoResponse{
		Version:        s.state.Version,
		Region:         s.state.Region,
		StartedAt:      timestamppb.New(s.state.StartedAt),
		UptimeSeconds:  int64(s.state.Uptime() / time.Second),
		RuntimeVersion: runtime.Version(),
		TLSEnabled:     s.state.TLSEnabled,
		GrpcPort:       uint32(s.state.RPCPort),
		TCPPort:        uint32(s.state.TCPPort),
	}, nil
}

// Login always succeeds with a fresh random session id. Credentials are
// not checked and the session id grants nothing.
func (s *Service) Login(_ context.Context, req *LoginRequest) (*LoginResponse, error) {
	s.logger.Warn("login accepted without verification", "username", req.Username)
	return &LoginResponse{
		Success:   true,
		SessionID: uuid.NewString(),
	}, nil
}
