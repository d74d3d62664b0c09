package config

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gonzalop/miniftp/internal/cli/output"
	"github.com/gonzalop/miniftp/internal/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration after defaults, the config file and
MINIFTPD_* environment variables are applied.

Examples:
  miniftpd config show
  miniftpd config show --output yaml
  MINIFTPD_SERVER_WORKERS=8 miniftpd config show`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "table", "output format (table|yaml)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch showOutput {
	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = out.Write(data)
		return err
	case "table":
		output.PrintTable(out, []string{"key", "value"}, settings(cfg))
		return nil
	default:
		return fmt.Errorf("unknown output format %q", showOutput)
	}
}

func settings(cfg *config.Config) [][]string {
	s := cfg.Server
	return [][]string{
		{"logging.level", cfg.Logging.Level},
		{"logging.format", cfg.Logging.Format},
		{"logging.output", cfg.Logging.Output},
		{"server.listen", s.Listen},
		{"server.root_dir", s.RootDir},
		{"server.workers", strconv.Itoa(s.Workers)},
		{"server.poll_interval", s.PollInterval.String()},
		{"server.idle_timeout", s.IdleTimeout.String()},
		{"server.max_pending", strconv.Itoa(s.MaxPending)},
		{"server.passive.address", s.Passive.Address},
		{"server.passive.min_port", strconv.Itoa(s.Passive.MinPort)},
		{"server.passive.max_port", strconv.Itoa(s.Passive.MaxPort)},
		{"server.passive.accept_timeout", s.Passive.AcceptTimeout.String()},
		{"server.bandwidth_limit", s.BandwidthLimit.String()},
		{"metrics.enabled", strconv.FormatBool(cfg.Metrics.Enabled)},
		{"metrics.listen", cfg.Metrics.Listen},
		{"shutdown_timeout", cfg.ShutdownTimeout.String()},
	}
}
