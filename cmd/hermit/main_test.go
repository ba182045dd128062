package main

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/hermit/internal/config"
	"github.com/KilimcininKorOglu/hermit/internal/logging"
	"github.com/KilimcininKorOglu/hermit/internal/supervisor"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no args", []string{"hermit"}, 1},
		{"help command", []string{"hermit", "help"}, 0},
		{"short help flag", []string{"hermit", "-h"}, 0},
		{"long help flag", []string{"hermit", "--help"}, 0},
		{"unknown command", []string{"hermit", "unknown"}, 1},
		{"version", []string{"hermit", "version"}, 0},
		{"version short", []string{"hermit", "version", "-short"}, 0},
		{"version help", []string{"hermit", "version", "-h"}, 0},
		{"version bad flag", []string{"hermit", "version", "-bogus"}, 1},
		{"serve help", []string{"hermit", "serve", "-help"}, 0},
		{"probe help", []string{"hermit", "probe", "-h"}, 0},
		{"probe bad mode", []string{"hermit", "probe", "-mode", "udp"}, 1},
		{"probe bad count", []string{"hermit", "probe", "-count", "0"}, 1},
		{"probe bad size", []string{"hermit", "probe", "-size", "0"}, 1},
		{"config usage", []string{"hermit", "config"}, 0},
		{"config help", []string{"hermit", "config", "help"}, 0},
		{"config unknown", []string{"hermit", "config", "show"}, 1},
		{"config init", []string{"hermit", "config", "init"}, 0},
		{"config validate without file", []string{"hermit", "config", "validate"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, run(tt.args))
		})
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hermit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestConfigValidate(t *testing.T) {
	valid := writeConfig(t, "server:\n  region: eu-west2\n")
	assert.Equal(t, 0, run([]string{"hermit", "config", "validate", "-config", valid}))

	clash := writeConfig(t, "echo:\n  plainPort: 9000\n  tlsPort: 9000\n")
	assert.Equal(t, 1, run([]string{"hermit", "config", "validate", "-config", clash}))

	unknown := writeConfig(t, "storage:\n  dataDir: /tmp\n")
	assert.Equal(t, 1, run([]string{"hermit", "config", "validate", "-config", unknown}))

	missing := filepath.Join(t.TempDir(), "missing.yaml")
	assert.Equal(t, 1, run([]string{"hermit", "config", "validate", "-config", missing}))
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: loud\n")
	assert.Equal(t, 1, run([]string{"hermit", "serve", "-config", path, "-env-file", filepath.Join(t.TempDir(), "none.env")}))
}

func TestServeRejectsMissingCertificate(t *testing.T) {
	dir := t.TempDir()
	args := []string{"hermit", "serve",
		"-host", "127.0.0.1",
		"-grpc-port", "0", "-tcp-port", "0", "-tls-port", "0",
		"-cert", filepath.Join(dir, "cert.pem"),
		"-key", filepath.Join(dir, "key.pem"),
		"-env-file", filepath.Join(dir, "none.env"),
	}
	assert.Equal(t, 1, run(args))
}

func loopbackConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Region = "test-region"
	cfg.RPC.Port = 0
	cfg.Echo.PlainPort = 0
	cfg.Echo.TLSPort = 0
	cfg.Ops.Address = "127.0.0.1:0"
	return cfg
}

func TestHermitServerEndToEnd(t *testing.T) {
	srv, err := newHermitServer(loopbackConfig(), logging.NewNop())
	require.NoError(t, err)
	require.True(t, srv.material.Generated)
	require.NoError(t, srv.listen())

	assert.Equal(t, addrPort(srv.rpc.Addr()), srv.state.RPCPort)
	assert.Equal(t, addrPort(srv.plain.Addr()), srv.state.TCPPort)
	assert.NotZero(t, srv.state.RPCPort)

	signals := make(chan os.Signal, 1)
	exitc := make(chan supervisor.Exit, 1)
	go func() { exitc <- srv.run(signals) }()

	var out bytes.Buffer
	require.NoError(t, probeEcho(&out, probeOptions{
		mode: modeTCP, addr: srv.plain.Addr().String(), count: 5, size: 32, timeout: 5 * time.Second,
	}))
	assert.Contains(t, out.String(), "plaintext")
	assert.Contains(t, out.String(), "seq=4")

	out.Reset()
	require.NoError(t, probeEcho(&out, probeOptions{
		mode: modeTLS, addr: srv.tls.Addr().String(), count: 3, size: 16, timeout: 5 * time.Second, quiet: true,
	}))
	assert.Contains(t, out.String(), "TLS 1.3")
	assert.NotContains(t, out.String(), "seq=")

	out.Reset()
	require.NoError(t, probeRPC(&out, probeOptions{
		mode: modeRPC, addr: srv.rpc.Addr().String(), count: 5, size: 8, timeout: 5 * time.Second,
	}))
	assert.Contains(t, out.String(), "region=test-region")
	assert.Contains(t, out.String(), "iterations=5")
	assert.Contains(t, out.String(), "tls=TLS 1.3")

	resp, err := http.Get(fmt.Sprintf("http://%s/readyz", srv.ops.Addr()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	signals <- syscall.SIGTERM
	select {
	case exit := <-exitc:
		assert.Equal(t, taskSignals, exit.Task)
		assert.NoError(t, exit.Err)
		assert.Equal(t, 0, srv.exitCode(exit))
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop after signal")
	}
}

func TestHermitServerWithoutOps(t *testing.T) {
	cfg := loopbackConfig()
	cfg.Ops.Address = ""

	srv, err := newHermitServer(cfg, logging.NewNop())
	require.NoError(t, err)
	assert.Nil(t, srv.ops)
}

func TestExitCode(t *testing.T) {
	srv := &hermitServer{logger: logging.NewNop()}

	assert.Equal(t, 0, srv.exitCode(supervisor.Exit{Task: taskSignals}))
	assert.Equal(t, 1, srv.exitCode(supervisor.Exit{Task: taskTCP, Err: errors.New("accept failed")}))
	assert.Equal(t, 1, srv.exitCode(supervisor.Exit{Task: taskGRPC}))
}

func TestDefaultProbeAddr(t *testing.T) {
	assert.Equal(t, "localhost:9091", defaultProbeAddr(modeTCP))
	assert.Equal(t, "localhost:9093", defaultProbeAddr(modeTLS))
	assert.Equal(t, "localhost:9090", defaultProbeAddr(modeRPC))
}

func TestWriteVersion(t *testing.T) {
	var out bytes.Buffer
	writeVersion(&out)

	assert.Contains(t, out.String(), "hermit "+version)
	assert.Contains(t, out.String(), "service:    hermit.Hermit")
	assert.Contains(t, out.String(), "ports:      grpc=9090 tcp=9091 tls=9093")
	assert.Contains(t, out.String(), "region:     us-west1")
	assert.Contains(t, out.String(), "benchmark:  1..10000 iterations")
}

func TestCommandTable(t *testing.T) {
	for _, name := range []string{"serve", "probe", "config", "version"} {
		assert.Contains(t, commands, name)
	}
	assert.NotContains(t, commands, "help")
}
