package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Scraper runs catalog searches and paginated quote crawls against one origin.
// A Scraper holds no per-crawl state and is safe for concurrent use.
type Scraper struct {
	cfg       Config
	fetcher   Fetcher
	extractor Extractor
	logger    *zap.Logger
}

// NewScraper wires a Scraper. A nil logger is replaced with a no-op logger.
func NewScraper(cfg Config, fetcher Fetcher, extractor Extractor, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		cfg:       cfg.withDefaults(),
		fetcher:   fetcher,
		extractor: extractor,
		logger:    logger.Named("scraper"),
	}
}

// Config returns the effective configuration.
func (s *Scraper) Config() Config {
	return s.cfg
}

// Search returns up to SearchLimit catalog hits for query. A blank query is
// rejected with ErrInvalidInput before any request is made; fetch failures are
// reported as *UpstreamError.
func (s *Scraper) Search(ctx context.Context, query string) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalidInput("search query is required")
	}
	target := s.cfg.SearchURL(query)
	body, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		s.logger.Warn("search fetch failed", zap.String("query", query), zap.Error(err))
		return nil, &UpstreamError{Err: err}
	}
	hits, err := s.extractor.SearchHits(body, SearchLimit)
	if err != nil {
		return nil, &UpstreamError{Err: fmt.Errorf("extract search results: %w", err)}
	}
	s.logger.Debug("search complete", zap.String("query", query), zap.Int("hits", len(hits)))
	return hits, nil
}

// FetchQuotesPage fetches and extracts a single quotes page of workID.
func (s *Scraper) FetchQuotesPage(ctx context.Context, workID string, page int) (PageResult, error) {
	body, err := s.fetcher.Fetch(ctx, s.cfg.QuotesURL(workID, page))
	if err != nil {
		return PageResult{}, err
	}
	res, err := s.extractor.QuotesPage(body, page)
	if err != nil {
		return PageResult{}, fmt.Errorf("extract page %d: %w", page, err)
	}
	return res, nil
}

// Crawl starts a sequential crawl of workID's quote pages and returns its
// event stream. The stream ends with exactly one Complete or one terminal
// Error and is then closed; the channel is unbuffered, so callers must drain
// it until it closes. Cancelling ctx stops the crawl between pages and ends
// it with Complete carrying the quotes gathered so far.
func (s *Scraper) Crawl(ctx context.Context, workID string) (<-chan Event, error) {
	workID = strings.TrimSpace(workID)
	if err := ValidateWorkID(workID); err != nil {
		return nil, err
	}
	events := make(chan Event)
	go s.run(ctx, workID, events)
	return events, nil
}

// ValidateWorkID reports whether id looks like a catalog work identifier.
func ValidateWorkID(id string) error {
	if id == "" {
		return invalidInput("work id is required")
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return invalidInput("work id %q must be numeric", id)
		}
	}
	return nil
}

func (s *Scraper) run(ctx context.Context, workID string, events chan<- Event) {
	defer close(events)
	log := s.logger.With(zap.String("work_id", workID))

	emit := func(ev Event) { events <- ev }

	defer func() {
		if r := recover(); r != nil {
			log.Error("crawl panicked", zap.Any("panic", r))
			emit(ErrorEvent(fmt.Sprintf("Scraping failed: %v", r)))
		}
	}()

	started := time.Now()
	emit(ProgressEvent(1, 1, 0, FetchingStatus(1)))

	first, err := s.FetchQuotesPage(ctx, workID, 1)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("crawl cancelled during first page")
			emit(CompleteEvent(0))
			return
		}
		log.Warn("first page failed", zap.Error(err))
		emit(ErrorEvent(fmt.Sprintf("Scraping failed: %v", err)))
		return
	}

	totalPages := min(MaxPages, max(1, first.TotalPages))
	totalQuotes := len(first.Quotes)
	emit(s.fetched(1, totalPages, totalQuotes, first.Quotes))

	for page := 2; page <= totalPages; page++ {
		if ctx.Err() != nil {
			break
		}
		if !sleep(ctx, s.cfg.Delay) {
			break
		}

		res, err := s.FetchQuotesPage(ctx, workID, page)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warn("page failed", zap.Int("page", page), zap.Error(err))
			emit(PageErrorEvent(page, err))
			continue
		}
		if len(res.Quotes) == 0 {
			log.Debug("empty page ends crawl", zap.Int("page", page))
			break
		}
		totalPages = min(MaxPages, max(totalPages, res.TotalPages))
		totalQuotes += len(res.Quotes)
		emit(s.fetched(page, totalPages, totalQuotes, res.Quotes))
	}

	log.Info("crawl complete",
		zap.Int("total_quotes", totalQuotes),
		zap.Int("total_pages", totalPages),
		zap.Bool("cancelled", ctx.Err() != nil),
		zap.Duration("elapsed", time.Since(started)),
	)
	emit(CompleteEvent(totalQuotes))
}

func (s *Scraper) fetched(page, totalPages, totalQuotes int, quotes []ScrapedQuote) Event {
	ev := ProgressEvent(page, totalPages, totalQuotes, FetchedStatus(page, totalPages, totalQuotes))
	ev.Quotes = quotes
	return ev
}

// FetchingStatus is the progress text shown while a page is requested.
func FetchingStatus(page int) string {
	return fmt.Sprintf("Fetching page %d...", page)
}

// FetchedStatus is the progress text shown once a page's quotes are collected.
func FetchedStatus(page, totalPages, totalQuotes int) string {
	return fmt.Sprintf("Fetched page %d of %d (%d quotes)", page, totalPages, totalQuotes)
}

// sleep waits for d or until ctx is done, reporting whether the full delay
// elapsed with ctx still live.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return ctx.Err() == nil
	}
}

// IsInvalidInput reports whether err was a rejected request.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
