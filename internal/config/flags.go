package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "masterlist",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	flags.StringP("listen", "l", "0.0.0.0:27010", "UDP address to answer list queries on")
	flags.String("api", "", "HTTP address for the admin API (empty disables it)")
	flags.StringP("store", "s", "servers.yaml", "Path to the server list store file")
	flags.Int("batch-size", 64, "Addresses packed into one reply datagram")
	flags.Float64("rate-limit", 0, "Per-source queries per second (0 means unlimited)")
	flags.Int("rate-burst", 5, "Per-source burst allowance when rate limiting")
	flags.Duration("refresh", time.Second, "Dashboard and console refresh interval")

	flags.Bool("dashboard", false, "Show live terminal dashboard with statistics")
	flags.Bool("json-output", false, "Emit JSON formatted summaries instead of text")
	flags.Bool("log-errors", false, "Log each malformed datagram to stderr")

	flags.String("import-servers", "", "Import ip:port lines from a file into the store before serving")
	flags.String("export-servers", "", "Export the server list to an ip:port line file and exit")

	flags.String("config", "", "Path to configuration file (JSON or YAML)")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config,
// overriding values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("listen") {
		val, err := fs.GetString("listen")
		if err != nil {
			return err
		}
		cfg.ListenAddr = strings.TrimSpace(val)
	}
	if fs.Changed("api") {
		val, err := fs.GetString("api")
		if err != nil {
			return err
		}
		cfg.APIAddr = strings.TrimSpace(val)
	}
	if fs.Changed("store") {
		val, err := fs.GetString("store")
		if err != nil {
			return err
		}
		cfg.StorePath = strings.TrimSpace(val)
	}
	if fs.Changed("batch-size") {
		val, err := fs.GetInt("batch-size")
		if err != nil {
			return err
		}
		cfg.BatchSize = val
	}
	if fs.Changed("rate-limit") {
		val, err := fs.GetFloat64("rate-limit")
		if err != nil {
			return err
		}
		cfg.RateLimit = val
	}
	if fs.Changed("rate-burst") {
		val, err := fs.GetInt("rate-burst")
		if err != nil {
			return err
		}
		cfg.RateBurst = val
	}
	if fs.Changed("refresh") {
		val, err := fs.GetDuration("refresh")
		if err != nil {
			return err
		}
		cfg.Refresh = val
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.LogErrors = val
	}
	if fs.Changed("import-servers") {
		val, err := fs.GetString("import-servers")
		if err != nil {
			return err
		}
		cfg.ImportPath = strings.TrimSpace(val)
	}
	if fs.Changed("export-servers") {
		val, err := fs.GetString("export-servers")
		if err != nil {
			return err
		}
		cfg.ExportPath = strings.TrimSpace(val)
	}
	return nil
}
