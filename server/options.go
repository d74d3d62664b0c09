package server

import (
	"fmt"
	"log/slog"
	"net"
	"time"
)

// Option is a functional option for configuring an FTP server.
type Option func(*Server) error

// WithRootDir sets the directory sessions start in. This option is
// required. The path must exist and be a directory.
//
// Example:
//
//	s, _ := server.NewServer(":2121", server.WithRootDir("/srv/ftp"))
func WithRootDir(path string) Option {
	return func(s *Server) error {
		if s.rootDir != "" {
			return fmt.Errorf("root directory already set")
		}
		root, err := ValidateRoot(path)
		if err != nil {
			return err
		}
		s.rootDir = root
		return nil
	}
}

// WithLogger sets a custom logger for the server.
// If not specified, slog.Default() is used.
//
// Example with debug logging:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	s, _ := server.NewServer(":2121",
//	    server.WithRootDir(root),
//	    server.WithLogger(logger),
//	)
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithWorkers sets the number of sessions served concurrently. Connections
// beyond that wait in the queue until a worker is free.
// Defaults to 4.
func WithWorkers(n int) Option {
	return func(s *Server) error {
		if n < 1 {
			return fmt.Errorf("workers must be at least 1, got %d", n)
		}
		s.workers = n
		return nil
	}
}

// WithPollInterval sets how often blocked accept and read calls wake up to
// check for shutdown and idle expiry. Defaults to 1 second.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) error {
		if d <= 0 {
			return fmt.Errorf("poll interval must be positive")
		}
		s.pollInterval = d
		return nil
	}
}

// WithMaxIdleTime sets the maximum time a control connection can wait
// between commands before being closed with a 421 reply. Zero disables the
// limit. Defaults to 5 minutes.
func WithMaxIdleTime(d time.Duration) Option {
	return func(s *Server) error {
		if d < 0 {
			return fmt.Errorf("max idle time cannot be negative")
		}
		s.maxIdleTime = d
		return nil
	}
}

// WithMaxPending caps the number of sessions waiting for a worker. When the
// cap is reached, new connections get a 421 reply and are closed.
// Zero (the default) leaves the queue unbounded.
func WithMaxPending(n int) Option {
	return func(s *Server) error {
		if n < 0 {
			return fmt.Errorf("max pending cannot be negative")
		}
		s.maxPending = n
		return nil
	}
}

// WithPassiveHost sets the IPv4 address passive listeners bind to and
// advertise in 227 replies. Defaults to 127.0.0.1.
func WithPassiveHost(host string) Option {
	return func(s *Server) error {
		ip := net.ParseIP(host)
		if ip == nil || ip.To4() == nil {
			return fmt.Errorf("passive host must be an IPv4 address: %q", host)
		}
		s.passive.host = ip.String()
		return nil
	}
}

// WithPassivePortRange restricts passive listeners to [minPort, maxPort].
// Ports are tried round-robin across sessions.
//
// Example:
//
//	s, _ := server.NewServer(":2121",
//	    server.WithRootDir(root),
//	    server.WithPassivePortRange(30000, 30100),
//	)
func WithPassivePortRange(minPort, maxPort int) Option {
	return func(s *Server) error {
		if minPort <= 0 || maxPort > 65535 || minPort > maxPort {
			return fmt.Errorf("invalid passive port range [%d, %d]", minPort, maxPort)
		}
		s.passive.minPort = minPort
		s.passive.maxPort = maxPort
		return nil
	}
}

// WithDataAcceptTimeout bounds how long a transfer waits for the client to
// connect to the passive port. Zero (the default) waits until the session
// ends.
func WithDataAcceptTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d < 0 {
			return fmt.Errorf("data accept timeout cannot be negative")
		}
		s.passive.acceptTimeout = d
		return nil
	}
}

// WithBandwidthLimit limits each RETR transfer to bytesPerSecond.
// Zero (the default) disables throttling.
func WithBandwidthLimit(bytesPerSecond int64) Option {
	return func(s *Server) error {
		if bytesPerSecond < 0 {
			return fmt.Errorf("bandwidth limit cannot be negative")
		}
		s.bandwidthLimit = bytesPerSecond
		return nil
	}
}

// WithMetricsCollector sets a metrics collector for the server.
//
// Example:
//
//	collector := metrics.New()
//	s, _ := server.NewServer(":2121",
//	    server.WithRootDir(root),
//	    server.WithMetricsCollector(collector),
//	)
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(s *Server) error {
		s.metrics = collector
		return nil
	}
}
