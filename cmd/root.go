package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/camden-git/photogallery/config"
	"github.com/camden-git/photogallery/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "photogallery",
	Short:        "A single-tenant photo gallery with a password-protected admin area",
	SilenceUsage: true,
}

func Execute() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	if err := rootCmd.Execute(); err != nil {
		slog.Error("failed to execute command", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to an optional YAML config file; environment variables override it")
}

// loadConfig reads the configuration and installs the configured logger as the slog default.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
