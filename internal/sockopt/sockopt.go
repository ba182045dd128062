// Package sockopt applies listener socket options before bind.
package sockopt

import (
	"context"
	"net"
	"syscall"
)

// Options selects socket options for a listening socket.
type Options struct {
	// ReusePort sets SO_REUSEPORT so several processes can share a port.
	ReusePort bool
}

// Listen binds a TCP listener on address with opts applied.
func Listen(ctx context.Context, address string, opts Options) (net.Listener, error) {
	lc := net.ListenConfig{Control: Control(opts)}
	return lc.Listen(ctx, "tcp", address)
}

// Control returns a net.ListenConfig Control hook for opts, or nil when no
// option is set.
func Control(opts Options) func(network, address string, c syscall.RawConn) error {
	if !opts.ReusePort {
		return nil
	}
	return func(_, _ string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = setReusePort(fd)
		})
		if err != nil {
			return err
		}
		return sockErr
	}
}
