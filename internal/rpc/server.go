package rpc

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/KilimcininKorOglu/hermit/internal/certs"
	"github.com/KilimcininKorOglu/hermit/internal/clock"
	"github.com/KilimcininKorOglu/hermit/internal/logging"
	"github.com/KilimcininKorOglu/hermit/internal/sockopt"
)

// Server errors.
var (
	ErrNoTLSMaterial = errors.New("rpc: TLS enabled but no TLS material provided")
	ErrNotListening  = errors.New("rpc: server is not bound")
)

// stopGrace bounds how long in-flight calls may run after stop.
const stopGrace = 5 * time.Second

// Config holds RPC listener settings.
type Config struct {
	Address string
	// TLS serves the RPC API over TLS with the shared material.
	TLS       bool
	ReusePort bool
}

// Server hosts the hermit service on a gRPC server.
type Server struct {
	config  Config
	grpc    *grpc.Server
	service *Service
	logger  logging.Logger

	mu sync.Mutex
	ln net.Listener
}

// NewServer builds the gRPC server for the hermit service. material is
// required when cfg.TLS is set and ignored otherwise.
func NewServer(cfg Config, state *ServerState, material *certs.Material, clk *clock.Clock, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	opts := []grpc.ServerOption{
		grpc.ForceServerCodec(Codec{}),
		grpc.UnaryInterceptor(unaryInterceptor(logger)),
	}
	if cfg.TLS {
		if material == nil {
			return nil, ErrNoTLSMaterial
		}
		opts = append(opts, grpc.Creds(credentials.NewTLS(material.Config)))
	}

	svc := NewService(state, clk, logger)
	gs := grpc.NewServer(opts...)
	RegisterHermitServer(gs, svc)

	return &Server{
		config:  cfg,
		grpc:    gs,
		service: svc,
		logger:  logger,
	}, nil
}

// Service returns the registered service implementation.
func (s *Server) Service() *Service { return s.service }

// Listen binds the RPC socket.
func (s *Server) Listen() error {
	ln, err := sockopt.Listen(context.Background(), s.config.Address, sockopt.Options{ReusePort: s.config.ReusePort})
	if err != nil {
		return errors.Wrapf(err, "rpc listen on %s", s.config.Address)
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("listener started",
		"transport", "grpc",
		"address", ln.Addr().String(),
		"tls", s.config.TLS)
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve handles RPCs until stop is closed, then drains in-flight calls for
// a bounded grace period. It returns nil after a requested stop and the
// serving error otherwise.
func (s *Server) Serve(stop <-chan struct{}) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-stop:
			s.shutdown()
		case <-done:
		}
	}()

	err := s.grpc.Serve(ln)
	select {
	case <-stop:
		s.logger.Info("listener stopped", "transport", "grpc")
		return nil
	default:
	}
	if err == nil {
		return nil
	}
	return errors.Wrap(err, "rpc serve")
}

func (s *Server) shutdown() {
	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(stopGrace):
		s.grpc.Stop()
	}
}

// unaryInterceptor logs each call and converts handler panics into
// codes.Internal.
func unaryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("rpc handler panic",
					"method", info.FullMethod,
					"panic", r)
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
			logger.Debug("rpc completed",
				"method", info.FullMethod,
				"peer", peerAddr(ctx),
				"code", status.Code(err),
				"duration", time.Since(start))
		}()
		return handler(ctx, req)
	}
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}
