package server

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/hermit/internal/certs"
	"github.com/KilimcininKorOglu/hermit/internal/logging"
	"github.com/KilimcininKorOglu/hermit/internal/sockopt"
)

// Transport names used in logs.
const (
	TransportPlain = "tcp"
	TransportTLS   = "tls"
)

// Listener errors.
var (
	ErrNoTLSConfig      = errors.New("server: TLS configuration required")
	ErrNotListening     = errors.New("server: listener is not bound")
	ErrAlreadyListening = errors.New("server: listener already bound")
)

// maxAcceptDelay caps the backoff after temporary accept failures.
const maxAcceptDelay = time.Second

// StreamHandler serves one connection's byte stream until it ends.
type StreamHandler interface {
	Serve(stream io.ReadWriter) error
}

// Config holds listener settings.
type Config struct {
	// Address is the host:port to bind. Port 0 picks an ephemeral port.
	Address string
	// ReusePort sets SO_REUSEPORT on the listening socket.
	ReusePort bool
	// HandshakeTimeout bounds the TLS handshake. Zero waits indefinitely.
	HandshakeTimeout time.Duration
}

// Listener accepts connections and hands each to a StreamHandler.
type Listener struct {
	transport string
	config    Config
	tlsConfig *tls.Config
	handler   StreamHandler
	logger    logging.Logger

	mu sync.Mutex
	ln net.Listener
}

// NewPlaintext creates a listener serving handler over raw TCP.
func NewPlaintext(cfg Config, handler StreamHandler, logger logging.Logger) *Listener {
	return newListener(TransportPlain, cfg, nil, handler, logger)
}

// NewTLS creates a listener that terminates TLS with tlsConfig and serves
// handler over the decrypted stream.
func NewTLS(cfg Config, tlsConfig *tls.Config, handler StreamHandler, logger logging.Logger) (*Listener, error) {
	if tlsConfig == nil {
		return nil, ErrNoTLSConfig
	}
	return newListener(TransportTLS, cfg, tlsConfig, handler, logger), nil
}

func newListener(transport string, cfg Config, tlsConfig *tls.Config, handler StreamHandler, logger logging.Logger) *Listener {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Listener{
		transport: transport,
		config:    cfg,
		tlsConfig: tlsConfig,
		handler:   handler,
		logger:    logger,
	}
}

// Transport returns TransportPlain or TransportTLS.
func (l *Listener) Transport() string { return l.transport }

// Listen binds the listening socket.
func (l *Listener) Listen() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln != nil {
		return ErrAlreadyListening
	}

	ln, err := sockopt.Listen(context.Background(), l.config.Address, sockopt.Options{ReusePort: l.config.ReusePort})
	if err != nil {
		return errors.Wrapf(err, "%s listen on %s", l.transport, l.config.Address)
	}
	l.ln = ln

	l.logger.Info("listener started",
		"transport", l.transport,
		"address", ln.Addr().String())

	return nil
}

// Addr returns the bound address, or nil before Listen.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Serve accepts connections until stop is closed or accepting fails.
//
// Closing stop closes the listening socket and Serve returns nil. Temporary
// accept errors are retried with backoff; any other accept error is
// returned. Connections already accepted keep running after Serve returns.
func (l *Listener) Serve(stop <-chan struct{}) error {
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-stop:
			ln.Close()
		case <-done:
		}
	}()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-stop:
				l.logger.Info("listener stopped", "transport", l.transport)
				return nil
			default:
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				delay = nextDelay(delay)
				l.logger.Warn("accept error, retrying",
					"transport", l.transport,
					"error", err,
					"delay", delay)
				time.Sleep(delay)
				continue
			}

			ln.Close()
			return errors.Wrapf(err, "%s accept", l.transport)
		}
		delay = 0

		go l.handleConnection(conn)
	}
}

func nextDelay(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > maxAcceptDelay {
		d = maxAcceptDelay
	}
	return d
}

func (l *Listener) handleConnection(conn net.Conn) {
	defer conn.Close()

	log := l.logger.WithConnID(logging.NewConnID()).WithFields(
		"client", conn.RemoteAddr().String(),
		"transport", l.transport)

	defer func() {
		if r := recover(); r != nil {
			log.Error("connection handler panic", "panic", r)
		}
	}()

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	var stream io.ReadWriter = conn
	if l.tlsConfig != nil {
		tlsConn, err := l.handshake(conn)
		if err != nil {
			log.Warn("TLS handshake failed", "error", err)
			return
		}
		state := tlsConn.ConnectionState()
		log.Debug("TLS handshake completed",
			"version", certs.VersionName(state.Version),
			"cipher", tls.CipherSuiteName(state.CipherSuite))
		stream = tlsConn
	}

	log.Debug("connection opened")

	if err := l.handler.Serve(stream); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			log.Info("connection idle timeout")
			return
		}
		log.Warn("echo connection error", "error", err)
		return
	}

	log.Debug("connection closed")
}

func (l *Listener) handshake(conn net.Conn) (*tls.Conn, error) {
	tlsConn := tls.Server(conn, l.tlsConfig)

	if l.config.HandshakeTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(l.config.HandshakeTimeout)); err != nil {
			return nil, err
		}
		defer conn.SetDeadline(time.Time{})
	}

	if err := tlsConn.Handshake(); err != nil {
		return nil, err
	}
	return tlsConn, nil
}
