package cli

import (
	"fmt"

	"github.com/lazypower/strategist/internal/config"
	"github.com/lazypower/strategist/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "strategist",
	Short: "Layered memory-optimization strategies for macOS",
	Long: "Strategist combines catalog, learned and personal optimization strategies, " +
		"picks a risk tier for the current machine, and filters optimization results for learning.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.strategist/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(strategyCmd)
	rootCmd.AddCommand(prefsCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(levelsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(recordsCmd)
}

// loadConfig reads --config (or the default path) and applies flag overrides.
func loadConfig() (config.Config, error) {
	path := cfgPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	return logging.New(cfg.Log)
}
