package client

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/hermit/internal/echo"
)

// DefaultDialTimeout bounds connection setup including the TLS handshake.
const DefaultDialTimeout = 5 * time.Second

// EchoClient is one echo connection.
type EchoClient struct {
	conn    net.Conn
	timeout time.Duration
}

// EchoOptions configures DialEcho.
type EchoOptions struct {
	// TLS wraps the connection in TLS without verifying the server
	// certificate.
	TLS bool
	// Timeout bounds dialing and each Echo round trip. Zero means
	// DefaultDialTimeout for dialing and no per-call deadline.
	Timeout time.Duration
}

// DialEcho connects to an echo listener at addr.
func DialEcho(addr string, opts EchoOptions) (*EchoClient, error) {
	dialTimeout := opts.Timeout
	if dialTimeout == 0 {
		dialTimeout = DefaultDialTimeout
	}
	dialer := &net.Dialer{Timeout: dialTimeout}

	var conn net.Conn
	var err error
	if opts.TLS {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // self-signed server certificates
		})
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "dial echo %s", addr)
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	return &EchoClient{conn: conn, timeout: opts.Timeout}, nil
}

// TLSVersion returns the negotiated TLS version, or 0 for plaintext.
func (c *EchoClient) TLSVersion() uint16 {
	if tc, ok := c.conn.(*tls.Conn); ok {
		return tc.ConnectionState().Version
	}
	return 0
}

// Echo sends payload as one frame and waits for the reply. rttNs is the
// client-side wall time from write to the last reply byte.
func (c *EchoClient) Echo(payload []byte) (reply echo.Reply, rttNs int64, err error) {
	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return echo.Reply{}, 0, errors.Wrap(err, "set deadline")
		}
	}

	start := time.Now()
	if err := echo.WriteFrame(c.conn, payload); err != nil {
		return echo.Reply{}, 0, err
	}
	reply, err = echo.ReadReply(c.conn, len(payload))
	if err != nil {
		return echo.Reply{}, 0, err
	}
	return reply, time.Since(start).Nanoseconds(), nil
}

// Close sends the close sentinel and closes the connection.
func (c *EchoClient) Close() error {
	sentinelErr := echo.WriteClose(c.conn)
	if err := c.conn.Close(); err != nil {
		return errors.Wrap(err, "close echo connection")
	}
	return sentinelErr
}
