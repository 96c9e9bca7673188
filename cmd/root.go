package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"wadigest/pkg/config"
	"wadigest/pkg/logger"
)

var (
	configPath string
	envFile    string
	logLevel   string

	appConfig *config.Config
	closeLog  = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:           "wadigest",
	Short:         "Normalize and summarize WhatsApp group chats",
	Long:          "wadigest fetches WhatsApp group history through the Green API, normalizes every message into one canonical shape and asks an LLM for a digest.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		if err := loadEnvFile(envFile); err != nil {
			return err
		}
		if value := strings.TrimSpace(configPath); value != "" {
			if err := os.Setenv("WADIGEST_CONFIG", value); err != nil {
				return fmt.Errorf("set config path: %w", err)
			}
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if value := strings.TrimSpace(logLevel); value != "" {
			cfg.Logging.Level = value
		}

		_, closeFn, err := logger.Setup(cfg.Logging)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		closeLog = closeFn
		appConfig = cfg
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Default().Error("Command failed", "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json (overrides WADIGEST_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// loadEnvFile loads a dotenv file without overriding variables that are
// already set. A missing default file is not an error.
func loadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
