// Package server provides the plaintext and TLS echo listeners.
//
// Both listeners share one accept loop. Each accepted connection runs in
// its own goroutine; a failure on one connection is logged and ends only
// that goroutine. The TLS listener performs the handshake explicitly with
// the shared server context before handing the stream to the echo
// handler.
//
// # Lifecycle
//
//	l := server.NewPlaintext(server.Config{Address: ":9091"}, handler, logger)
//	if err := l.Listen(); err != nil {
//	    // bind failure
//	}
//	err := l.Serve(stop) // returns nil once stop is closed
package server
