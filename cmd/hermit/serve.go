package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/hermit/internal/certs"
	"github.com/KilimcininKorOglu/hermit/internal/clock"
	"github.com/KilimcininKorOglu/hermit/internal/config"
	"github.com/KilimcininKorOglu/hermit/internal/echo"
	"github.com/KilimcininKorOglu/hermit/internal/logging"
	"github.com/KilimcininKorOglu/hermit/internal/ops"
	"github.com/KilimcininKorOglu/hermit/internal/rpc"
	"github.com/KilimcininKorOglu/hermit/internal/server"
	"github.com/KilimcininKorOglu/hermit/internal/supervisor"
)

// Supervisor task names.
const (
	taskGRPC    = "grpc"
	taskTCP     = "tcp"
	taskTLS     = "tls"
	taskOps     = "ops"
	taskSignals = "signals"
)

// hermitServer owns every listener of one serve invocation.
type hermitServer struct {
	config   *config.Config
	logger   logging.Logger
	clock    *clock.Clock
	state    *rpc.ServerState
	material *certs.Material

	rpc   *rpc.Server
	plain *server.Listener
	tls   *server.Listener
	ops   *ops.Server
}

// newHermitServer resolves TLS material and builds the listeners without
// binding them.
func newHermitServer(cfg *config.Config, logger logging.Logger) (*hermitServer, error) {
	clk := clock.New()

	material, err := certs.Resolve(cfg.TLS.Cert, cfg.TLS.Key, nil)
	if err != nil {
		return nil, errors.Wrap(err, "resolve TLS material")
	}
	if material.Generated {
		logger.Info("generated self-signed certificate",
			"hosts", certs.DefaultHosts,
			"notAfter", material.Leaf().NotAfter)
	} else {
		logger.Info("loaded certificate",
			"cert", cfg.TLS.Cert,
			"subject", material.Leaf().Subject.String())
	}

	state := &rpc.ServerState{
		Version:    version,
		Region:     cfg.Server.Region,
		StartedAt:  time.Now(),
		TLSEnabled: cfg.RPC.TLS,
	}

	handler := &echo.Handler{
		Clock:       clk,
		MaxPayload:  cfg.Echo.MaxPayload,
		IdleTimeout: cfg.Echo.IdleTimeout,
	}

	rpcServer, err := rpc.NewServer(rpc.Config{
		Address:   hostPort(cfg.Server.Host, cfg.RPC.Port),
		TLS:       cfg.RPC.TLS,
		ReusePort: cfg.Echo.ReusePort,
	}, state, material, clk, logger)
	if err != nil {
		return nil, err
	}

	plain := server.NewPlaintext(server.Config{
		Address:   hostPort(cfg.Server.Host, cfg.Echo.PlainPort),
		ReusePort: cfg.Echo.ReusePort,
	}, handler, logger)

	tlsListener, err := server.NewTLS(server.Config{
		Address:   hostPort(cfg.Server.Host, cfg.Echo.TLSPort),
		ReusePort: cfg.Echo.ReusePort,
	}, material.Config, handler, logger)
	if err != nil {
		return nil, err
	}

	s := &hermitServer{
		config:   cfg,
		logger:   logger,
		clock:    clk,
		state:    state,
		material: material,
		rpc:      rpcServer,
		plain:    plain,
		tls:      tlsListener,
	}
	if cfg.Ops.Address != "" {
		s.ops = ops.New(ops.DefaultConfig(cfg.Ops.Address), state, logger)
	}
	return s, nil
}

// listen binds every socket and records the bound ports in the server
// state. Nothing is served until all binds succeed.
func (s *hermitServer) listen() error {
	if err := s.rpc.Listen(); err != nil {
		return err
	}
	if err := s.plain.Listen(); err != nil {
		return err
	}
	if err := s.tls.Listen(); err != nil {
		return err
	}
	if s.ops != nil {
		if err := s.ops.Listen(); err != nil {
			return err
		}
	}

	s.state.RPCPort = addrPort(s.rpc.Addr())
	s.state.TCPPort = addrPort(s.plain.Addr())
	return nil
}

// run serves until the first task returns and reports it.
func (s *hermitServer) run(signals <-chan os.Signal) supervisor.Exit {
	sup := supervisor.New(s.logger)
	sup.Add(taskGRPC, s.rpc.Serve)
	sup.Add(taskTCP, s.plain.Serve)
	sup.Add(taskTLS, s.tls.Serve)
	if s.ops != nil {
		sup.Add(taskOps, s.ops.Serve)
		s.ops.SetReady(true)
	}
	sup.Add(taskSignals, func(stop <-chan struct{}) error {
		select {
		case sig := <-signals:
			s.logger.Info("received signal, shutting down", "signal", sig.String())
		case <-stop:
		}
		return nil
	})

	s.logger.Info("hermit serving",
		"version", version,
		"region", s.state.Region,
		"grpc", s.rpc.Addr().String(),
		"tcp", s.plain.Addr().String(),
		"tls", s.tls.Addr().String())

	return sup.Run()
}

// exitCode maps the first task to exit onto the process exit status.
// Only a signal-initiated shutdown is clean.
func (s *hermitServer) exitCode(exit supervisor.Exit) int {
	if exit.Task == taskSignals {
		s.logger.Info("hermit stopped", "uptime", exit.Elapsed)
		return 0
	}
	s.logger.Error("transport exited, shutting down",
		"task", exit.Task,
		"error", exit.Err,
		"uptime", exit.Elapsed)
	return 1
}

func serveCmd(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configFile := fs.String("config", "", "Path to configuration file")
	envFile := fs.String("env-file", ".env", "Dotenv file loaded if present")
	region := fs.String("region", "", "Region (overrides config)")
	host := fs.String("host", "", "Bind host (overrides config)")
	grpcPort := fs.Int("grpc-port", 0, "gRPC port (overrides config)")
	tcpPort := fs.Int("tcp-port", 0, "Plaintext echo port (overrides config)")
	tlsPort := fs.Int("tls-port", 0, "TLS echo port (overrides config)")
	cert := fs.String("cert", "", "PEM certificate chain path")
	key := fs.String("key", "", "PEM private key path")
	opsAddress := fs.String("ops-address", "", "Ops HTTP address (overrides config)")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		printServeUsage(os.Stdout)
		return 0
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
		return 1
	}

	cfg := config.DefaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 1
		}
	}

	// Flags override the file only when given, so an explicit port 0 binds
	// an ephemeral port.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "region":
			cfg.Server.Region = *region
		case "host":
			cfg.Server.Host = *host
		case "grpc-port":
			cfg.RPC.Port = *grpcPort
		case "tcp-port":
			cfg.Echo.PlainPort = *tcpPort
		case "tls-port":
			cfg.Echo.TLSPort = *tlsPort
		case "cert":
			cfg.TLS.Cert = *cert
		case "key":
			cfg.TLS.Key = *key
		case "ops-address":
			cfg.Ops.Address = *opsAddress
		case "log-level":
			cfg.Logging.Level = *logLevel
		}
	})

	if err := config.ApplyEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid environment: %v\n", err)
		return 1
	}

	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
		printConfigErrors(errs)
		return 1
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	srv, err := newHermitServer(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		fmt.Fprintf(os.Stderr, "Failed to create server: %v\n", err)
		return 1
	}
	if err := srv.listen(); err != nil {
		logger.Error("bind failed", "error", err)
		fmt.Fprintf(os.Stderr, "Failed to bind: %v\n", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return srv.exitCode(srv.run(sigCh))
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func addrPort(addr net.Addr) uint16 {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return uint16(tcp.Port)
	}
	return 0
}
