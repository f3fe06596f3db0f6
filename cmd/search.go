package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/quote-crawler/internal/config"
	"github.com/JakeFAU/quote-crawler/internal/crawler"
	"github.com/JakeFAU/quote-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/quote-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/quote-crawler/internal/metrics"
)

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Searches the catalog and prints the hits as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	hits, err := newScraper(e.cfg, e.logger).Search(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(hits)
}

// newScraper builds a scraper without storage for one-shot commands.
func newScraper(cfg config.Config, logger *zap.Logger) *crawler.Scraper {
	metrics.Init()
	crawlCfg := cfg.CrawlerConfig()
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: crawlCfg.UserAgent,
		Timeout:   crawlCfg.Timeout,
	}, logger)
	return crawler.NewScraper(crawlCfg, fetcher, extract.NewHTML(), logger)
}
