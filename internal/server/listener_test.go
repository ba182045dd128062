package server

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/hermit/internal/certs"
	"github.com/KilimcininKorOglu/hermit/internal/clock"
	"github.com/KilimcininKorOglu/hermit/internal/echo"
	"github.com/KilimcininKorOglu/hermit/internal/logging"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newEchoHandler() *echo.Handler {
	return &echo.Handler{Clock: clock.New()}
}

// startListener binds l, serves it in the background and stops it when the
// test ends.
func startListener(t *testing.T, l *Listener) string {
	t.Helper()
	require.NoError(t, l.Listen())

	stop := make(chan struct{})
	errc := make(chan error, 1)
	go func() { errc <- l.Serve(stop) }()

	t.Cleanup(func() {
		close(stop)
		select {
		case err := <-errc:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after stop")
		}
	})

	return l.Addr().String()
}

func roundTrip(t *testing.T, conn io.ReadWriter, payload []byte) echo.Reply {
	t.Helper()
	require.NoError(t, echo.WriteFrame(conn, payload))
	reply, err := echo.ReadReply(conn, len(payload))
	require.NoError(t, err)
	return reply
}

func TestPlaintextEcho(t *testing.T) {
	l := NewPlaintext(Config{Address: "127.0.0.1:0"}, newEchoHandler(), nil)
	addr := startListener(t, l)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	for _, payload := range [][]byte{[]byte("12345678"), bytes.Repeat([]byte{0xAB}, 65536)} {
		reply := roundTrip(t, conn, payload)
		assert.Equal(t, payload, reply.Payload)
		assert.LessOrEqual(t, reply.RecvNs, reply.SendNs)
	}

	require.NoError(t, echo.WriteClose(conn))
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestTLSEcho(t *testing.T) {
	m, err := certs.Resolve("", "", nil)
	require.NoError(t, err)

	logs := &syncBuffer{}
	logger := logging.NewWriter(logs, logging.LevelDebug, logging.FormatText)

	l, err := NewTLS(Config{Address: "127.0.0.1:0"}, m.Config, newEchoHandler(), logger)
	require.NoError(t, err)
	addr := startListener(t, l)

	conn, err := tls.Dial("tcp", addr, &tls.Config{InsecureSkipVerify: true})
	require.NoError(t, err)
	defer conn.Close()

	reply := roundTrip(t, conn, []byte("encrypted"))
	assert.Equal(t, []byte("encrypted"), reply.Payload)
	assert.LessOrEqual(t, reply.RecvNs, reply.SendNs)

	require.NoError(t, echo.WriteClose(conn))
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(logs.String()), []byte("TLS handshake completed"))
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, logs.String(), "version=TLS 1.3")
	assert.Contains(t, logs.String(), "transport=tls")
}

func TestTLSEchoTrustsOnlyGeneratedCertificate(t *testing.T) {
	m, err := certs.Resolve("", "", nil)
	require.NoError(t, err)

	l, err := NewTLS(Config{Address: "127.0.0.1:0"}, m.Config, newEchoHandler(), nil)
	require.NoError(t, err)
	addr := startListener(t, l)

	roots := x509.NewCertPool()
	require.True(t, roots.AppendCertsFromPEM(m.CertPEM))

	conn, err := tls.Dial("tcp", addr, &tls.Config{RootCAs: roots, ServerName: "localhost"})
	require.NoError(t, err)
	defer conn.Close()

	reply := roundTrip(t, conn, []byte("hello"))
	assert.Equal(t, []byte("hello"), reply.Payload)
	require.NoError(t, echo.WriteClose(conn))

	other, err := certs.Resolve("", "", nil)
	require.NoError(t, err)
	otherRoots := x509.NewCertPool()
	require.True(t, otherRoots.AppendCertsFromPEM(other.CertPEM))

	_, err = tls.Dial("tcp", addr, &tls.Config{RootCAs: otherRoots, ServerName: "localhost"})
	assert.Error(t, err)
}

func TestTLSHandshakeFailureDropsOnlyThatConnection(t *testing.T) {
	m, err := certs.Resolve("", "", nil)
	require.NoError(t, err)

	logs := &syncBuffer{}
	logger := logging.NewWriter(logs, logging.LevelDebug, logging.FormatText)

	l, err := NewTLS(Config{Address: "127.0.0.1:0"}, m.Config, newEchoHandler(), logger)
	require.NoError(t, err)
	addr := startListener(t, l)

	bad, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = bad.Write([]byte("this is not a client hello\r\n"))
	require.NoError(t, err)

	_ = bad.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _ = io.ReadAll(bad)
	bad.Close()

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(logs.String()), []byte("TLS handshake failed"))
	}, 2*time.Second, 10*time.Millisecond)

	good, err := tls.Dial("tcp", addr, &tls.Config{InsecureSkipVerify: true})
	require.NoError(t, err)
	defer good.Close()
	assert.Equal(t, []byte("ok"), roundTrip(t, good, []byte("ok")).Payload)
}

func TestNewTLSRequiresConfig(t *testing.T) {
	_, err := NewTLS(Config{}, nil, newEchoHandler(), nil)
	assert.ErrorIs(t, err, ErrNoTLSConfig)
}

func TestConcurrentConnections(t *testing.T) {
	l := NewPlaintext(Config{Address: "127.0.0.1:0"}, newEchoHandler(), nil)
	addr := startListener(t, l)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", addr)
			if !assert.NoError(t, err) {
				return
			}
			defer conn.Close()

			for j := 0; j < 25; j++ {
				payload := []byte{byte(i), byte(j)}
				if !assert.NoError(t, echo.WriteFrame(conn, payload)) {
					return
				}
				reply, err := echo.ReadReply(conn, len(payload))
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, payload, reply.Payload)
			}
		}(i)
	}
	wg.Wait()
}

func TestConnectionErrorIsolated(t *testing.T) {
	logs := &syncBuffer{}
	logger := logging.NewWriter(logs, logging.LevelDebug, logging.FormatText)

	l := NewPlaintext(Config{Address: "127.0.0.1:0"}, newEchoHandler(), logger)
	addr := startListener(t, l)

	broken, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = broken.Write([]byte{10, 0, 0, 0, 'x'})
	require.NoError(t, err)
	require.NoError(t, broken.Close())

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(logs.String()), []byte("echo connection error"))
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, logs.String(), "conn_id=")

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, []byte("still up"), roundTrip(t, conn, []byte("still up")).Payload)
}

type panicHandler struct{}

func (panicHandler) Serve(io.ReadWriter) error { panic("boom") }

func TestHandlerPanicRecovered(t *testing.T) {
	logs := &syncBuffer{}
	logger := logging.NewWriter(logs, logging.LevelDebug, logging.FormatText)

	l := NewPlaintext(Config{Address: "127.0.0.1:0"}, panicHandler{}, logger)
	addr := startListener(t, l)

	for i := 0; i < 2; i++ {
		conn, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, err = conn.Read(make([]byte, 1))
		assert.ErrorIs(t, err, io.EOF)
		conn.Close()
	}

	assert.Contains(t, logs.String(), "connection handler panic")
}

func TestIdleTimeoutLogged(t *testing.T) {
	logs := &syncBuffer{}
	logger := logging.NewWriter(logs, logging.LevelDebug, logging.FormatText)

	h := newEchoHandler()
	h.IdleTimeout = 20 * time.Millisecond
	l := NewPlaintext(Config{Address: "127.0.0.1:0"}, h, logger)
	addr := startListener(t, l)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(logs.String()), []byte("connection idle timeout"))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServeBeforeListen(t *testing.T) {
	l := NewPlaintext(Config{Address: "127.0.0.1:0"}, newEchoHandler(), nil)
	assert.Nil(t, l.Addr())
	assert.ErrorIs(t, l.Serve(make(chan struct{})), ErrNotListening)
}

func TestListenTwice(t *testing.T) {
	l := NewPlaintext(Config{Address: "127.0.0.1:0"}, newEchoHandler(), nil)
	startListener(t, l)
	assert.ErrorIs(t, l.Listen(), ErrAlreadyListening)
}

func TestBindFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	l := NewPlaintext(Config{Address: occupied.Addr().String()}, newEchoHandler(), nil)
	assert.Error(t, l.Listen())
}

func TestStopClosesListener(t *testing.T) {
	l := NewPlaintext(Config{Address: "127.0.0.1:0"}, newEchoHandler(), nil)
	require.NoError(t, l.Listen())
	addr := l.Addr().String()

	stop := make(chan struct{})
	errc := make(chan error, 1)
	go func() { errc <- l.Serve(stop) }()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	conn.Close()

	close(stop)
	require.NoError(t, <-errc)

	_, err = net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err)
}

func TestNextDelay(t *testing.T) {
	assert.Equal(t, 5*time.Millisecond, nextDelay(0))
	assert.Equal(t, 10*time.Millisecond, nextDelay(5*time.Millisecond))
	assert.Equal(t, maxAcceptDelay, nextDelay(800*time.Millisecond))
}

func TestTransport(t *testing.T) {
	m, err := certs.Resolve("", "", nil)
	require.NoError(t, err)
	tl, err := NewTLS(Config{}, m.Config, newEchoHandler(), nil)
	require.NoError(t, err)

	assert.Equal(t, TransportPlain, NewPlaintext(Config{}, newEchoHandler(), nil).Transport())
	assert.Equal(t, TransportTLS, tl.Transport())
}
