package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/KilimcininKorOglu/hermit/internal/config"
	"github.com/KilimcininKorOglu/hermit/internal/echo"
	"github.com/KilimcininKorOglu/hermit/internal/rpc"
	"github.com/KilimcininKorOglu/hermit/internal/sockopt"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=...".
var (
	version   = "0.1.0"
	commit    = "unknown"
	buildDate = "unknown"
)

func versionCmd(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	short := fs.Bool("short", false, "Show only version number")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	switch {
	case *help || *helpLong:
		printVersionUsage(os.Stdout)
	case *short:
		fmt.Println(version)
	default:
		writeVersion(os.Stdout)
	}
	return 0
}

// writeVersion prints build information followed by the defaults a client
// needs to reach an unconfigured server.
func writeVersion(w io.Writer) {
	defaults := config.DefaultConfig()

	fmt.Fprintf(w, "hermit %s (commit %s, built %s)\n", version, commit, buildDate)
	fmt.Fprintf(w, "  runtime:    %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "  service:    %s\n", rpc.ServiceName)
	fmt.Fprintf(w, "  ports:      grpc=%d tcp=%d tls=%d\n",
		defaults.RPC.Port, defaults.Echo.PlainPort, defaults.Echo.TLSPort)
	fmt.Fprintf(w, "  region:     %s\n", defaults.Server.Region)
	fmt.Fprintf(w, "  echo frame: %d-byte length, %d-byte reply stamps\n",
		echo.HeaderSize, echo.ReplyHeaderSize)
	fmt.Fprintf(w, "  benchmark:  %d..%d iterations\n", rpc.MinIterations, rpc.MaxIterations)
	fmt.Fprintf(w, "  reuseport:  %t\n", sockopt.Supported)
}
