// Package config defines hermit's configuration, its defaults, and how it is
// loaded from YAML files, .env files and HERMIT_* environment variables.
//
// # Precedence
//
// Values are resolved in increasing priority:
//
//  1. DefaultConfig
//  2. the YAML file given with -config
//  3. command-line flags
//  4. HERMIT_* environment variables
//
// A .env file next to the working directory, when present, populates the
// environment before step 4 without overriding variables already set.
//
// # Example
//
//	server:
//	  region: us-west1
//	  host: 0.0.0.0
//	rpc:
//	  port: 9090
//	  tls: true
//	echo:
//	  plainPort: 9091
//	  tlsPort: 9093
//	  idleTimeout: 0s
//	tls:
//	  cert: /etc/hermit/cert.pem
//	  key: /etc/hermit/key.pem
//	logging:
//	  level: info
//	  format: text
//
// String values may reference the environment with ${VAR} or
// ${VAR:-default}.
package config
