package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/geniesugar/glucose-monitor/internal/app"
	"github.com/geniesugar/glucose-monitor/internal/config"
	"github.com/geniesugar/glucose-monitor/internal/logger"
)

var (
	// Global flags
	envFile    string
	verbose    bool
	jsonOutput bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "geniectl",
	Short: "Operator tool for the GenieSugar glucose monitoring backend",
	Long: `geniectl manages a GenieSugar deployment from the command line.

It reads the same environment (or .env file) as the server and talks to the
database directly:
  - provision accounts, including admins and clinicians
  - run a Dexcom sync for one user
  - print the clinician patient summary
  - check the configuration with secrets masked`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from this file instead of ./.env")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level to stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

// loadConfig applies --env-file (or an optional ./.env) and reads the
// configuration. An explicit --env-file must exist.
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return config.Load()
}

// openApp builds the application graph for one command. Logs go to stderr so
// they never mix with command output; only warnings unless --verbose.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logCfg := cfg.Log
	logCfg.Format = "text"
	logCfg.Level = slog.LevelWarn
	if verbose {
		logCfg.Level = slog.LevelDebug
	}
	return app.New(ctx, cfg, logger.New(logCfg, os.Stderr))
}
