//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package sockopt

import "github.com/pkg/errors"

// Supported reports whether ReusePort can be honored on this platform.
const Supported = false

// ErrUnsupported is returned when ReusePort is requested on a platform
// without SO_REUSEPORT.
var ErrUnsupported = errors.New("sockopt: SO_REUSEPORT is not supported on this platform")

func setReusePort(uintptr) error {
	return ErrUnsupported
}
