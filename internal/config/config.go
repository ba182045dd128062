package config

import "time"

// Config holds the complete server configuration.
type Config struct {
	Server  ServerConfig `yaml:"server"`
	RPC     RPCConfig    `yaml:"rpc"`
	Echo    EchoConfig   `yaml:"echo"`
	TLS     TLSConfig    `yaml:"tls"`
	Ops     OpsConfig    `yaml:"ops"`
	Logging LogConfig    `yaml:"logging"`
}

// ServerConfig holds process-wide settings.
type ServerConfig struct {
	// Region is reported verbatim by ServerInfo.
	Region string `yaml:"region" validate:"required"`
	// Host is the address every listener binds to.
	Host string `yaml:"host"`
}

// RPCConfig configures the gRPC listener.
type RPCConfig struct {
	Port int  `yaml:"port" validate:"min=0,max=65535"`
	TLS  bool `yaml:"tls"`
}

// EchoConfig configures the plaintext and TLS echo listeners.
type EchoConfig struct {
	PlainPort int `yaml:"plainPort" validate:"min=0,max=65535"`
	TLSPort   int `yaml:"tlsPort" validate:"min=0,max=65535"`
	// IdleTimeout bounds the wait for each frame header. Zero waits forever.
	IdleTimeout time.Duration `yaml:"idleTimeout" validate:"min=0"`
	// MaxPayload caps a single frame. Zero accepts any u32 length.
	MaxPayload uint32 `yaml:"maxPayload"`
	ReusePort  bool   `yaml:"reusePort"`
}

// TLSConfig names an optional certificate/key pair. When either is empty a
// self-signed pair is generated at startup.
type TLSConfig struct {
	Cert string `yaml:"cert" validate:"required_with=Key"`
	Key  string `yaml:"key" validate:"required_with=Cert"`
}

// OpsConfig configures the HTTP health endpoint. An empty Address disables it.
type OpsConfig struct {
	Address string `yaml:"address"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
	Output string `yaml:"output" validate:"required"`
}

// TLSFilesConfigured reports whether both certificate and key paths are set.
func (c *Config) TLSFilesConfigured() bool {
	return c.TLS.Cert != "" && c.TLS.Key != ""
}
