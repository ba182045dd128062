package config

import (
	"fmt"
	"net"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateConfig validates the configuration and returns every problem
// found. An empty slice means the configuration is usable.
func ValidateConfig(cfg *Config) []error {
	var errs []error

	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return []error{err}
		}
		for _, fe := range fieldErrs {
			errs = append(errs, ValidationError{
				Field:   fieldPath(fe.Namespace()),
				Message: describe(fe),
			})
		}
	}

	errs = append(errs, validatePorts(cfg)...)

	if cfg.Server.Host != "" {
		if err := validateHost(cfg.Server.Host); err != nil {
			errs = append(errs, ValidationError{Field: "server.host", Message: err.Error()})
		}
	}

	if cfg.Ops.Address != "" {
		if err := validateAddress(cfg.Ops.Address); err != nil {
			errs = append(errs, ValidationError{Field: "ops.address", Message: err.Error()})
		}
	}

	return errs
}

// fieldPath drops the root struct name: "Config.echo.tlsPort" -> "echo.tlsPort".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_with":
		return fmt.Sprintf("is required when %s is set", strings.ToLower(fe.Param()))
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// validatePorts rejects two listeners sharing a fixed port. Port 0 asks the
// kernel for an ephemeral port and never collides.
func validatePorts(cfg *Config) []error {
	ports := []struct {
		field string
		port  int
	}{
		{"rpc.port", cfg.RPC.Port},
		{"echo.plainPort", cfg.Echo.PlainPort},
		{"echo.tlsPort", cfg.Echo.TLSPort},
	}

	var errs []error
	seen := make(map[int]string)
	for _, p := range ports {
		if p.port == 0 {
			continue
		}
		if other, ok := seen[p.port]; ok {
			errs = append(errs, ValidationError{
				Field:   p.field,
				Message: fmt.Sprintf("port %d already used by %s", p.port, other),
			})
			continue
		}
		seen[p.port] = p.field
	}
	return errs
}

func validateHost(host string) error {
	if net.ParseIP(host) != nil {
		return nil
	}
	if strings.ContainsAny(host, ":/ ") {
		return fmt.Errorf("invalid host %q", host)
	}
	return nil
}

// validateAddress validates a host:port address.
func validateAddress(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format: %w", err)
	}
	if port == "" {
		return fmt.Errorf("port is required")
	}
	return nil
}
