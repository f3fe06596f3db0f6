// Package cmd defines the quote-crawler command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/quote-crawler/internal/config"
	"github.com/JakeFAU/quote-crawler/internal/logging"
)

// envKeyType is the key for storing the loaded environment in the context.
type envKeyType string

const envKey envKeyType = "env"

// env is what every subcommand needs: configuration and a logger.
type env struct {
	cfg    config.Config
	logger *zap.Logger
}

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "quote-crawler",
		Short: "Searches a book catalog and crawls the quotes of a work.",
		Long: `quote-crawler finds books in a catalog and collects their quotes page by
page, reporting progress as the crawl runs. It can run as an HTTP service
that stores books and quotes, or as one-shot search and crawl commands.`,
		SilenceUsage: true,

		// Runs before the subcommand's RunE; loads config and the logger once.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path := cfgFile
			if path == "" {
				path = config.DefaultConfigFile()
			}
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.NewWithLevel(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, &env{cfg: cfg, logger: logger}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e, ok := cmd.Context().Value(envKey).(*env); ok {
				_ = e.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML; default $XDG_CONFIG_HOME/quote-crawler/config.yaml); env vars use the QUOTES_ prefix")

	cmd.AddCommand(newServeCmd(), newSearchCmd(), newCrawlCmd())
	return cmd
}

func resolveEnv(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKey).(*env)
	if !ok || e == nil {
		return nil, errors.New("configuration not loaded")
	}
	return e, nil
}

// Execute runs the command line until it finishes or the process is signaled.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
