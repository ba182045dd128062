package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/hermit/internal/certs"
	"github.com/KilimcininKorOglu/hermit/internal/client"
	"github.com/KilimcininKorOglu/hermit/internal/config"
	"github.com/KilimcininKorOglu/hermit/internal/stats"
)

// Probe modes.
const (
	modeTCP = "tcp"
	modeTLS = "tls"
	modeRPC = "rpc"
)

type probeOptions struct {
	mode     string
	addr     string
	count    int
	size     int
	insecure bool
	timeout  time.Duration
	quiet    bool
}

func probeCmd(args []string) int {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts probeOptions
	fs.StringVar(&opts.mode, "mode", modeTCP, "Transport to measure: tcp, tls, rpc")
	fs.StringVar(&opts.addr, "addr", "", "Server address")
	fs.IntVar(&opts.count, "count", 10, "Number of samples")
	fs.IntVar(&opts.size, "size", 64, "Payload size in bytes")
	fs.BoolVar(&opts.insecure, "insecure", false, "Use plaintext gRPC in rpc mode")
	fs.DurationVar(&opts.timeout, "timeout", client.DefaultDialTimeout, "Per-call timeout")
	fs.BoolVar(&opts.quiet, "quiet", false, "Print only the summary")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		printProbeUsage(os.Stdout)
		return 0
	}

	if opts.count < 1 {
		fmt.Fprintln(os.Stderr, "Error: -count must be at least 1")
		return 1
	}
	if opts.size < 1 {
		fmt.Fprintln(os.Stderr, "Error: -size must be at least 1")
		return 1
	}
	if opts.addr == "" {
		opts.addr = defaultProbeAddr(opts.mode)
	}

	var err error
	switch opts.mode {
	case modeTCP, modeTLS:
		err = probeEcho(os.Stdout, opts)
	case modeRPC:
		err = probeRPC(os.Stdout, opts)
	default:
		fmt.Fprintf(os.Stderr, "Unknown probe mode: %s\n", opts.mode)
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Probe failed: %v\n", err)
		return 1
	}
	return 0
}

func defaultProbeAddr(mode string) string {
	defaults := config.DefaultConfig()
	switch mode {
	case modeTLS:
		return hostPort("localhost", defaults.Echo.TLSPort)
	case modeRPC:
		return hostPort("localhost", defaults.RPC.Port)
	default:
		return hostPort("localhost", defaults.Echo.PlainPort)
	}
}

// probeEcho sends count frames over one echo connection.
func probeEcho(w io.Writer, opts probeOptions) error {
	c, err := client.DialEcho(opts.addr, client.EchoOptions{
		TLS:     opts.mode == modeTLS,
		Timeout: opts.timeout,
	})
	if err != nil {
		return err
	}
	defer c.Close()

	if v := c.TLSVersion(); v != 0 {
		fmt.Fprintf(w, "connected to %s (%s)\n", opts.addr, certs.VersionName(v))
	} else {
		fmt.Fprintf(w, "connected to %s (plaintext)\n", opts.addr)
	}

	payload := bytes.Repeat([]byte{'h'}, opts.size)
	rtts := make([]int64, 0, opts.count)
	serverNs := make([]int64, 0, opts.count)

	for i := 0; i < opts.count; i++ {
		reply, rtt, err := c.Echo(payload)
		if err != nil {
			return err
		}
		if !bytes.Equal(reply.Payload, payload) {
			return errors.Errorf("sample %d: payload mismatch", i)
		}
		rtts = append(rtts, rtt)
		serverNs = append(serverNs, reply.ServerProcessingNs())

		if !opts.quiet {
			fmt.Fprintf(w, "seq=%d bytes=%d rtt=%s server=%s\n",
				i, opts.size, time.Duration(rtt), time.Duration(reply.ServerProcessingNs()))
		}
	}

	fmt.Fprintf(w, "rtt:    %s\n", stats.SortAndReduce(rtts))
	fmt.Fprintf(w, "server: %s\n", stats.SortAndReduce(serverNs))
	return nil
}

// probeRPC issues count Ping calls, then one server-side Benchmark.
func probeRPC(w io.Writer, opts probeOptions) error {
	c, err := client.DialRPC(opts.addr, client.RPCOptions{
		Insecure: opts.insecure,
		Timeout:  opts.timeout,
	})
	if err != nil {
		return err
	}
	defer c.Close()

	info, err := c.ServerInfo()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "server %s region=%s runtime=%s tls=%t uptime=%ds\n",
		info.Version, info.Region, info.RuntimeVersion, info.TLSEnabled, info.UptimeSeconds)

	epoch := time.Now()
	rtts := make([]int64, 0, opts.count)
	for i := 0; i < opts.count; i++ {
		sent := int64(time.Since(epoch))
		resp, err := c.Ping(sent)
		if err != nil {
			return err
		}
		rtt := int64(time.Since(epoch)) - resp.ClientSendNs
		rtts = append(rtts, rtt)

		if !opts.quiet {
			fmt.Fprintf(w, "seq=%d rtt=%s server=%s\n",
				i, time.Duration(rtt), time.Duration(resp.ServerSendNs-resp.ServerRecvNs))
		}
	}
	fmt.Fprintf(w, "ping rtt:  %s\n", stats.SortAndReduce(rtts))

	bench, err := c.Benchmark(uint32(opts.count), uint32(opts.size))
	if err != nil {
		return err
	}
	tlsState := "off"
	if bench.TLSActive {
		tlsState = bench.TLSVersion
	}
	fmt.Fprintf(w, "benchmark: %s iterations=%d overhead=%s tls=%s\n",
		stats.Stats{
			Min:  bench.MinNs,
			Max:  bench.MaxNs,
			Mean: bench.MeanNs,
			P50:  bench.P50Ns,
			P99:  bench.P99Ns,
		},
		len(bench.LatenciesNs),
		time.Duration(bench.ProcessingOverheadNs),
		tlsState)
	return nil
}
