package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	ftp "github.com/gonzalop/miniftp"
	"github.com/gonzalop/miniftp/internal/cli/output"
)

var (
	probeUser    string
	probePass    string
	probeList    bool
	probePath    string
	probeTimeout time.Duration
)

var probeCmd = &cobra.Command{
	Use:   "probe [address]",
	Short: "Check that an FTP server answers and serves its root",
	Long: `Connect to an FTP server, log in, print the working directory and
optionally list a directory.

Examples:
  # Probe a local server
  miniftpd probe 127.0.0.1:2121

  # Probe and list the root
  miniftpd probe 127.0.0.1:2121 --list`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().StringVarP(&probeUser, "user", "u", "anonymous", "user name")
	probeCmd.Flags().StringVarP(&probePass, "pass", "p", "anonymous@", "password")
	probeCmd.Flags().BoolVarP(&probeList, "list", "l", false, "list the directory after login")
	probeCmd.Flags().StringVar(&probePath, "path", "", "directory to list (default: working directory)")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 10*time.Second, "network timeout")
}

func runProbe(cmd *cobra.Command, args []string) error {
	addr := "127.0.0.1:2121"
	if len(args) == 1 {
		addr = args[0]
	}

	start := time.Now()
	c, err := ftp.Dial(addr, ftp.WithTimeout(probeTimeout))
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	defer c.Close()

	if err := c.Login(probeUser, probePass); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	dir, err := c.CurrentDir()
	if err != nil {
		return fmt.Errorf("PWD: %w", err)
	}

	pairs := [][2]string{
		{"address", addr},
		{"user", probeUser},
		{"directory", dir},
	}

	var names []string
	if probeList {
		names, err = c.NameList(probePath)
		if err != nil {
			return fmt.Errorf("LIST: %w", err)
		}
		pairs = append(pairs, [2]string{"entries", fmt.Sprint(len(names))})
	}

	if err := c.Quit(); err != nil {
		return fmt.Errorf("QUIT: %w", err)
	}
	pairs = append(pairs, [2]string{"elapsed", time.Since(start).Round(time.Millisecond).String()})

	out := cmd.OutOrStdout()
	output.SimpleTable(out, pairs)
	if probeList && len(names) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, len(names))
		for i, n := range names {
			rows[i] = []string{n}
		}
		output.PrintTable(out, []string{"name"}, rows)
	}
	return nil
}
