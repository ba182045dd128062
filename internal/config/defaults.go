package config

// DefaultConfig returns a Config with the default ports and settings.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Region: "us-west1",
			Host:   "0.0.0.0",
		},
		RPC: RPCConfig{
			Port: 9090,
			TLS:  true,
		},
		Echo: EchoConfig{
			PlainPort:   9091,
			TLSPort:     9093,
			IdleTimeout: 0,
			MaxPayload:  0,
			ReusePort:   false,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}
