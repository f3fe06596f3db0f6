package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/quote-crawler/internal/app"
	"github.com/JakeFAU/quote-crawler/internal/crawler"
	"github.com/JakeFAU/quote-crawler/internal/library"
)

// eventLine is one crawl event as printed by the crawl command.
type eventLine struct {
	Type crawler.EventType `json:"type"`
	Data any               `json:"data"`
}

func newCrawlCmd() *cobra.Command {
	var req library.ScrapeRequest
	cmd := &cobra.Command{
		Use:   "crawl <workId>",
		Short: "Crawls a work's quotes and prints events as JSON lines",
		Long: `Crawls every quotes page of a catalog work and prints each progress, error,
and completion event as one JSON line on stdout. With --title and --author the
book and its quotes are also saved to the configured store.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.WorkID = args[0]
			return runCrawl(cmd, req)
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "book title; saves the crawl when set with --author")
	cmd.Flags().StringVar(&req.Author, "author", "", "book author; saves the crawl when set with --title")
	cmd.Flags().StringVar(&req.CoverImageURL, "cover", "", "cover image URL stored with the book")
	return cmd
}

func runCrawl(cmd *cobra.Command, req library.ScrapeRequest) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var events <-chan crawler.Event
	if req.Title == "" && req.Author == "" {
		events, err = newScraper(e.cfg, e.logger).Crawl(ctx, req.WorkID)
		if err != nil {
			return fmt.Errorf("crawl: %w", err)
		}
	} else {
		a, err := app.Build(ctx, e.cfg, e.logger, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize application services: %w", err)
		}
		defer func() {
			if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
				e.logger.Warn("close failed", zap.Error(cerr))
			}
		}()
		events, err = a.Library().Scrape(ctx, req)
		if err != nil {
			return fmt.Errorf("crawl: %w", err)
		}
	}
	return printEvents(cmd.OutOrStdout(), events)
}

// printEvents writes each event as a JSON line and drains the stream. It
// returns an error when the crawl ended with a terminal error.
func printEvents(w io.Writer, events <-chan crawler.Event) error {
	enc := json.NewEncoder(w)
	var failure string
	var writeErr error
	for ev := range events {
		if ev.Type == crawler.EventError && ev.Terminal() {
			failure = ev.Message
		}
		if writeErr != nil {
			continue
		}
		writeErr = enc.Encode(eventLine{Type: ev.Type, Data: ev.Payload()})
	}
	if writeErr != nil {
		return fmt.Errorf("write event: %w", writeErr)
	}
	if failure != "" {
		return fmt.Errorf("crawl failed: %s", failure)
	}
	return nil
}
