//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package sockopt

import (
	"os"

	"golang.org/x/sys/unix"
)

// Supported reports whether ReusePort can be honored on this platform.
const Supported = true

func setReusePort(fd uintptr) error {
	return os.NewSyscallError("setsockopt SO_REUSEPORT",
		unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1))
}
