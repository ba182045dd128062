package ops

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/KilimcininKorOglu/hermit/internal/logging"
	"github.com/KilimcininKorOglu/hermit/internal/rpc"
	"github.com/KilimcininKorOglu/hermit/internal/sockopt"
)

// ErrNotListening is returned by Serve before Listen.
var ErrNotListening = errors.New("ops: server is not bound")

// Config holds ops endpoint settings.
type Config struct {
	Address           string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// DefaultConfig returns the timeouts used when none are set.
func DefaultConfig(address string) Config {
	return Config{
		Address:           address,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}

// Info is the /info response body.
type Info struct {
	Version       string    `json:"version"`
	Region        string    `json:"region"`
	StartedAt     time.Time `json:"startedAt"`
	UptimeSeconds uint64    `json:"uptimeSeconds"`
	GoVersion     string    `json:"goVersion"`
	TLSEnabled    bool      `json:"tlsEnabled"`
	GRPCPort      uint16    `json:"grpcPort"`
	TCPPort       uint16    `json:"tcpPort"`
}

// Server is the ops HTTP server.
type Server struct {
	config Config
	state  *rpc.ServerState
	logger logging.Logger
	ready  atomic.Bool
	srv    *http.Server

	mu sync.Mutex
	ln net.Listener
}

// New creates the ops server. It starts out not ready.
func New(cfg Config, state *rpc.ServerState, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		config: cfg,
		state:  state,
		logger: logger,
	}
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s
}

// SetReady flips the readiness reported by /readyz.
func (s *Server) SetReady(ready bool) {
	if s.ready.Swap(ready) != ready {
		s.logger.Info("readiness changed", "ready", ready)
	}
}

// Ready reports the current readiness.
func (s *Server) Ready() bool { return s.ready.Load() }

// Handler returns the router with all ops routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/livez", s.handleLive)
	r.Get("/readyz", s.handleReady)
	r.Get("/info", s.handleInfo)
	return r
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.info())
}

func (s *Server) info() Info {
	return Info{
		Version:       s.state.Version,
		Region:        s.state.Region,
		StartedAt:     s.state.StartedAt.UTC(),
		UptimeSeconds: uint64(s.state.Uptime() / time.Second),
		GoVersion:     runtime.Version(),
		TLSEnabled:    s.state.TLSEnabled,
		GRPCPort:      s.state.RPCPort,
		TCPPort:       s.state.TCPPort,
	}
}

// Listen binds the HTTP socket.
func (s *Server) Listen() error {
	ln, err := sockopt.Listen(context.Background(), s.config.Address, sockopt.Options{})
	if err != nil {
		return errors.Wrapf(err, "ops listen on %s", s.config.Address)
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("listener started",
		"transport", "http",
		"address", ln.Addr().String())
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

// Serve handles HTTP requests until stop is closed. Readiness drops to
// false before in-flight requests are drained.
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
			s.SetReady(false)
			ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
			defer cancel()
			if err := s.srv.Shutdown(ctx); err != nil {
				s.logger.Warn("ops shutdown incomplete", "error", err)
				s.srv.Close()
			}
		case <-done:
		}
	}()

	err := s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		s.logger.Info("listener stopped", "transport", "http")
		return nil
	}
	return errors.Wrap(err, "ops serve")
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// requestLogger logs each request at debug level with chi's request id.
func requestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("http request",
				"requestId", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"remoteAddr", r.RemoteAddr)
		})
	}
}
