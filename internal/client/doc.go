// Package client drives a running hermit server: EchoClient speaks the
// framed TCP echo protocol over plaintext or TLS, and RPCClient calls the
// gRPC service. Both accept the server's self-signed certificate.
package client
