package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage information to the given writer.
func printUsage(w io.Writer) {
	fmt.Fprint(w, `hermit - network latency measurement server

Usage:
  hermit <command> [options]

Commands:
  serve       Start the gRPC, TCP echo and TLS echo listeners
  probe       Measure latency against a running server
  config      Configuration management
  version     Show version information

Use "hermit <command> -h" for more information about a command.
`)
}

// printServeUsage prints the serve command usage.
func printServeUsage(w io.Writer) {
	fmt.Fprint(w, `Start the hermit server

Usage:
  hermit serve [options]

Options:
  -config string
        Path to configuration file
  -env-file string
        Dotenv file loaded into the environment if present (default ".env")
  -region string
        Region reported by ServerInfo (overrides config, default "us-west1")
  -host string
        Bind host for all listeners (overrides config, default "0.0.0.0")
  -grpc-port int
        gRPC port (overrides config, default 9090)
  -tcp-port int
        Plaintext echo port (overrides config, default 9091)
  -tls-port int
        TLS echo port (overrides config, default 9093)
  -cert string
        PEM certificate chain; a self-signed pair is generated if unset
  -key string
        PEM private key; a self-signed pair is generated if unset
  -ops-address string
        Ops HTTP address for /livez, /readyz and /info (empty disables)
  -log-level string
        Log level: debug, info, warn, error (overrides config)
  -h, -help
        Show this help message

Environment Variables:
  HERMIT_SERVER_REGION     Override region
  HERMIT_RPC_PORT          Override gRPC port
  HERMIT_ECHO_PLAIN_PORT   Override plaintext echo port
  HERMIT_ECHO_TLS_PORT     Override TLS echo port
  HERMIT_TLS_CERT          Override certificate path
  HERMIT_TLS_KEY           Override private key path
  HERMIT_OPS_ADDRESS       Override ops HTTP address
  HERMIT_LOGGING_LEVEL     Override log level
`)
}

// printProbeUsage prints the probe command usage.
func printProbeUsage(w io.Writer) {
	fmt.Fprint(w, `Measure latency against a running server

Usage:
  hermit probe [options]

Options:
  -mode string
        Transport to measure: tcp, tls, rpc (default "tcp")
  -addr string
        Server address (default localhost and the mode's default port)
  -count int
        Number of samples (default 10)
  -size int
        Payload size in bytes (default 64)
  -insecure
        Use plaintext gRPC in rpc mode
  -timeout duration
        Per-call timeout (default 5s)
  -quiet
        Print only the summary
  -h, -help
        Show this help message

In rpc mode the probe issues Ping calls and a server-side Benchmark of
-count iterations with -size payload bytes.
`)
}

// printConfigUsage prints the config command usage.
func printConfigUsage(w io.Writer) {
	fmt.Fprint(w, `Configuration management

Usage:
  hermit config <subcommand> [options]

Subcommands:
  validate    Validate configuration file
  init        Generate default configuration

Use "hermit config <subcommand> -h" for more information.
`)
}

// printVersionUsage prints the version command usage.
func printVersionUsage(w io.Writer) {
	fmt.Fprint(w, `Show version information

Usage:
  hermit version [options]

Options:
  -short
        Show only version number
  -h, -help
        Show this help message
`)
}
