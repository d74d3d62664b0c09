package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gonzalop/miniftp/internal/config"
	"github.com/gonzalop/miniftp/internal/logger"
	"github.com/gonzalop/miniftp/internal/metrics"
	"github.com/gonzalop/miniftp/server"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the FTP server",
	Long: `Start the FTP server in the foreground. SIGINT or SIGTERM begins a
graceful shutdown bounded by shutdown_timeout.

Examples:
  # Serve /srv/ftp on the default address
  miniftpd start --root /srv/ftp

  # Start with a config file and expose Prometheus metrics
  miniftpd start --config /etc/miniftpd/config.yaml --metrics

  # Override settings with environment variables
  MINIFTPD_SERVER_WORKERS=16 miniftpd start`,
	RunE: runStart,
}

func init() {
	f := startCmd.Flags()
	f.String("listen", "", "control connection address (host:port)")
	f.String("root", "", "directory served to clients")
	f.Int("workers", 0, "number of concurrent sessions")
	f.String("log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
	f.String("log-format", "", "log format (text, json)")
	f.Bool("metrics", false, "serve Prometheus metrics")
	f.String("metrics-addr", "", "metrics listen address (host:port)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile(), cmd.Flags())
	if err != nil {
		return err
	}

	log, closer, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closer.Close()

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
	}

	srv, err := newServer(cfg, log, collector)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsSrv *http.Server
	if collector != nil {
		metricsSrv = startMetricsServer(cfg.Metrics.Listen, collector, log)
	}

	log.Info("miniftpd starting", "version", Version, "root", srv.RootDir(), "workers", cfg.Server.Workers)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		stopMetricsServer(metricsSrv, log)
		return err
	case <-ctx.Done():
	}

	log.Info("shutdown signal received", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	stopMetricsServer(metricsSrv, log)
	if err != nil {
		log.Warn("shutdown did not complete cleanly", "error", err)
		return err
	}
	if err := <-serveErr; err != nil && !errors.Is(err, server.ErrServerClosed) {
		return err
	}
	log.Info("miniftpd stopped")
	return nil
}

// newServer translates the loaded configuration into server options.
func newServer(cfg *config.Config, log *slog.Logger, collector *metrics.Collector) (*server.Server, error) {
	sc := cfg.Server
	opts := []server.Option{
		server.WithRootDir(sc.RootDir),
		server.WithLogger(log),
		server.WithWorkers(sc.Workers),
		server.WithPollInterval(sc.PollInterval),
		server.WithMaxIdleTime(sc.IdleTimeout),
		server.WithMaxPending(sc.MaxPending),
		server.WithPassiveHost(sc.Passive.Address),
		server.WithDataAcceptTimeout(sc.Passive.AcceptTimeout),
		server.WithBandwidthLimit(int64(sc.BandwidthLimit)),
	}
	if sc.Passive.MinPort != 0 {
		opts = append(opts, server.WithPassivePortRange(sc.Passive.MinPort, sc.Passive.MaxPort))
	}
	if collector != nil {
		opts = append(opts, server.WithMetricsCollector(collector))
	}

	srv, err := server.NewServer(sc.Listen, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}
	return srv, nil
}

func startMetricsServer(addr string, collector *metrics.Collector, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	hs := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("metrics endpoint listening", "addr", addr)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics endpoint failed", "error", err)
		}
	}()
	return hs
}

func stopMetricsServer(hs *http.Server, log *slog.Logger) {
	if hs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(ctx); err != nil {
		log.Warn("metrics endpoint shutdown", "error", err)
	}
}
