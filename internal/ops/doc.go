// Package ops serves the operations HTTP endpoint: liveness, readiness
// and a JSON view of the server metadata.
//
// Routes:
//
//	GET /livez   always 200 while the process serves HTTP
//	GET /readyz  200 once SetReady(true) was called, 503 otherwise
//	GET /info    version, region, start time, uptime and bound ports
//
// The endpoint is disabled when no address is configured.
package ops
