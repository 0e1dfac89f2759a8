package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-site/pkg/sitecontent/config"
	"github.com/tendant/simple-site/pkg/sitecontent/scan"
)

var configFile string

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "siteserver",
	Short:        "Website content server with image galleries and carousels",
	SilenceUsage: true,
}

// loadConfig reads the optional config file, then the environment on top of it.
func loadConfig() (*config.ServerConfig, error) {
	var opts []config.Option
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	opts = append(opts, config.WithEnv())

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the structured logger shared by the service and the
// request logger. Production logs are JSON.
func newLogger(cfg *config.ServerConfig) *httplog.Logger {
	return httplog.NewLogger("simple-site", httplog.Options{
		JSON:             cfg.IsProduction() || cfg.LogFormat == "json",
		LogLevel:         parseLevel(cfg.LogLevel),
		Concise:          !cfg.IsProduction(),
		RequestHeaders:   cfg.IsProduction(),
		MessageFieldName: "message",
		QuietDownRoutes:  []string{"/health"},
		QuietDownPeriod:  time.Minute,
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildComponents loads the config and wires the service. The caller must
// Close the components.
func buildComponents(ctx context.Context) (*config.ServerConfig, *config.Components, *httplog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger(cfg)

	components, err := cfg.Build(ctx, logger.Logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing service: %w", err)
	}
	return cfg, components, logger, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (yaml, toml, json or env)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateDownCmd.Flags().IntP("steps", "n", 1, "Number of migrations to roll back (0 rolls back all)")
	migrateCmd.AddCommand(migrateVersionCmd)

	rootCmd.AddCommand(createAdminCmd)
	createAdminCmd.Flags().String("username", "admin", "Admin username")
	createAdminCmd.Flags().String("email", "", "Admin email")
	createAdminCmd.Flags().String("password", "", "Admin password (falls back to ADMIN_PASSWORD)")
	createAdminCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(checkDBCmd)

	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().Bool("dry-run", false, "Report orphaned blobs without deleting them")
	sweepCmd.Flags().String("prefix", "", "Only sweep keys under this prefix")
	sweepCmd.Flags().Duration("grace", scan.DefaultGracePeriod, "Skip blobs modified more recently than this")
}
