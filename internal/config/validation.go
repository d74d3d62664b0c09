package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// hostname_port rejects port 0, which listeners use for "any free port"
	if err := v.RegisterValidation("listen_addr", validateListenAddr); err != nil {
		panic(err)
	}
	return v
}

// validateListenAddr accepts host:port with an optional host and a port in
// 0..65535.
func validateListenAddr(fl validator.FieldLevel) bool {
	return isListenAddr(fl.Field().String())
}

func isListenAddr(addr string) bool {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return false
	}
	return !strings.ContainsAny(host, " /")
}

// Validate checks field constraints and the rules that span fields.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return err
	}

	p := cfg.Server.Passive
	if (p.MinPort == 0) != (p.MaxPort == 0) {
		return errors.New("server.passive: min_port and max_port must be set together")
	}
	if p.MinPort > p.MaxPort {
		return fmt.Errorf("server.passive: min_port %d is above max_port %d", p.MinPort, p.MaxPort)
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return errors.New("metrics.listen is required when metrics are enabled")
	}
	return nil
}

func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q (%s), got %v", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q, got %v", field, fe.Tag(), fe.Value()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
