// Package logging provides structured, leveled logging for hermit.
//
// # Creating a Logger
//
//	logger := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stderr",
//	})
//
// Tests use a logger that discards everything:
//
//	logger := logging.NewNop()
//
// # Fields
//
// Every call takes alternating key/value pairs. Loggers derived with
// WithFields or WithConnID carry their fields into every entry:
//
//	connLog := logger.WithConnID(logging.NewConnID()).
//	    WithFields("client", conn.RemoteAddr().String(), "transport", "tls")
//	connLog.Warn("handshake failed", "error", err)
//
// Fields are written in the order they were added, base fields first.
//
// # Output Formats
//
// Text:
//
//	2026-02-18T10:30:00Z [info] listener started transport=tcp address=0.0.0.0:9091
//
// JSON:
//
//	{"ts":"2026-02-18T10:30:00Z","level":"info","msg":"listener started","transport":"tcp","address":"0.0.0.0:9091"}
package logging
