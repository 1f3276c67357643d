// Package cli implements the command-line interface for the wizard server.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/backoffice-wizard/internal/config"
	"github.com/garyjia/backoffice-wizard/pkg/utils"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Multi-section form wizard server",
	Long: `wizard serves the request and onboarding form wizards: section navigation,
validation, draft autosave and submission delivery.`,
	SilenceUsage: true,
}

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(draftCmd)
}

// loadRuntime reads the configuration and builds the logger every command shares.
func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}
