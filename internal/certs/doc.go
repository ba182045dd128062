// Package certs resolves the TLS identity shared by the TLS echo listener
// and the RPC listener.
//
// When both a certificate path and a key path are configured the PEM files
// are read verbatim. Otherwise a self-signed certificate for localhost,
// hermit.local and 127.0.0.1 is generated in memory with a fresh ECDSA
// P-256 key; nothing is written to disk.
//
// The resulting Material is built once at startup, never mutated, and
// shared by pointer with every listener.
package certs
