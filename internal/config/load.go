package config

import (
	"bytes"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	// ErrFileNotFound is returned when the configuration file does not exist.
	ErrFileNotFound = errors.New("configuration file not found")
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HERMIT_"

// LoadConfig reads a YAML file and merges it over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML data over DefaultConfig. ${VAR} and
// ${VAR:-default} references are substituted before parsing. Unknown keys
// are rejected.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(substituteEnvVars(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "parse config")
	}

	return cfg, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "marshal config")
	}
	return data, nil
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(match []byte) []byte {
		content := string(match[2 : len(match)-1])

		if idx := strings.Index(content, ":-"); idx != -1 {
			if val := os.Getenv(content[:idx]); val != "" {
				return []byte(val)
			}
			return []byte(content[idx+2:])
		}

		return []byte(os.Getenv(content))
	})
}

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables that are already set keep their values. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "load %s", path)
	}
	return nil
}

// ApplyEnv overrides cfg from HERMIT_* environment variables. Empty
// variables are ignored. Values that fail to parse are reported and leave
// the field unchanged.
func ApplyEnv(cfg *Config) error {
	return applyEnv(cfg, os.LookupEnv)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var bad []string

	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				bad = append(bad, EnvPrefix+name)
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				bad = append(bad, EnvPrefix+name)
				return
			}
			*dst = b
		}
	}

	str("SERVER_REGION", &cfg.Server.Region)
	str("SERVER_HOST", &cfg.Server.Host)

	num("RPC_PORT", &cfg.RPC.Port)
	boolean("RPC_TLS", &cfg.RPC.TLS)

	num("ECHO_PLAIN_PORT", &cfg.Echo.PlainPort)
	num("ECHO_TLS_PORT", &cfg.Echo.TLSPort)
	boolean("ECHO_REUSE_PORT", &cfg.Echo.ReusePort)
	if v, ok := lookup(EnvPrefix + "ECHO_IDLE_TIMEOUT"); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Echo.IdleTimeout = d
		} else {
			bad = append(bad, EnvPrefix+"ECHO_IDLE_TIMEOUT")
		}
	}
	if v, ok := lookup(EnvPrefix + "ECHO_MAX_PAYLOAD"); ok && v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Echo.MaxPayload = uint32(n)
		} else {
			bad = append(bad, EnvPrefix+"ECHO_MAX_PAYLOAD")
		}
	}

	str("TLS_CERT", &cfg.TLS.Cert)
	str("TLS_KEY", &cfg.TLS.Key)

	str("OPS_ADDRESS", &cfg.Ops.Address)

	str("LOGGING_LEVEL", &cfg.Logging.Level)
	str("LOGGING_FORMAT", &cfg.Logging.Format)
	str("LOGGING_OUTPUT", &cfg.Logging.Output)

	if len(bad) > 0 {
		return errors.Errorf("invalid environment values: %s", strings.Join(bad, ", "))
	}
	return nil
}
