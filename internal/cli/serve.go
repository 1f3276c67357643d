package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/backoffice-wizard/internal/container"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting wizard server",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("transport", cfg.Submission.Transport))

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to start: %w", err)
	}

	serveErr := c.Server().Start(ctx)
	if closeErr := c.Close(); closeErr != nil && serveErr == nil {
		return closeErr
	}
	return serveErr
}

// contextOrBackground guards commands run without a cobra context
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
