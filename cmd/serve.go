package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/quote-crawler/internal/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API",
		Long: `Starts the HTTP API: catalog search, streaming quote crawls, and the stored
book library. Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := app.Build(ctx, e.cfg, e.logger, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.ShutdownTimeout())
		defer cancel()
		if cerr := a.Close(closeCtx); cerr != nil {
			e.logger.Warn("close failed", zap.Error(cerr))
		}
	}()

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run server: %w", err)
	}
	return nil
}
