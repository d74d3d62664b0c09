package ftp

import (
	"fmt"
	"log/slog"
	"time"
)

// Option is a functional option for configuring an FTP client.
type Option func(*Client) error

// WithTimeout sets the timeout for dialing and for each command round trip
// on the control and data connections. Zero disables timeouts.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout < 0 {
			return fmt.Errorf("timeout cannot be negative")
		}
		c.timeout = timeout
		return nil
	}
}

// WithLogger sets a logger that receives every command and reply at debug
// level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}
