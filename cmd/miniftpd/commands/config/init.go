package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gonzalop/miniftp/internal/config"
)

var (
	initForce bool
	initRoot  string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	Long: `Write a configuration file with default values.

By default, the file is created at $XDG_CONFIG_HOME/miniftpd/config.yaml.
Use --config to choose another path.

Examples:
  miniftpd config init --root /srv/ftp
  miniftpd config init --config /etc/miniftpd/config.yaml --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	initCmd.Flags().StringVar(&initRoot, "root", "", "directory to serve")
}

func runInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	cfg := config.GetDefaultConfig()
	if initRoot != "" {
		cfg.Server.RootDir = initRoot
	}

	if err := config.SaveConfig(cfg, path); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created at: %s\n", path)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Set server.root_dir to the directory you want to serve")
	fmt.Fprintf(out, "  2. Start the server with: miniftpd start --config %s\n", path)
	return nil
}
