package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xtding233/gacha-sim/internal/banner"
	"github.com/xtding233/gacha-sim/internal/config"
	"github.com/xtding233/gacha-sim/internal/logging"
)

var logger = zerolog.Nop()

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gachasim",
		Short:         "Monte Carlo simulator for crystal pulls on limit-break banners",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := initConfig(os.Stderr)
			if err != nil {
				return err
			}
			logger = log
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config-dir", "configs", "Directory holding banners/default.yaml and banner files")
	pf.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	pf.String("log-format", "console", "Log format (console or json)")
	pf.Int("workers", 0, "Worker goroutines for simulations (defaults to GOMAXPROCS)")
	for key, flag := range map[string]string{
		config.KeyConfigDir: "config-dir",
		config.KeyLogLevel:  "log-level",
		config.KeyLogFormat: "log-format",
		config.KeyWorkers:   "workers",
	} {
		_ = viper.BindPFlag(key, pf.Lookup(flag))
	}

	rootCmd.AddCommand(newSimulateCmd(), newServeCmd(), newBannersCmd())
	return rootCmd
}

// initConfig loads the configuration, reporting problems with it on w, and
// builds the configured logger.
func initConfig(w io.Writer) (zerolog.Logger, error) {
	boot, err := logging.NewWriter(w, "info", logging.FormatConsole)
	if err != nil {
		return zerolog.Nop(), err
	}
	config.Init(boot)
	return logging.NewWriter(w, config.LogLevel(), config.LogFormat())
}

func newLoader() *banner.Loader {
	return banner.NewLoader(config.ConfigDir())
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
