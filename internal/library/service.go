// Package library persists crawled books and their quotes. It wraps the
// scraper so that a crawl's stream is stored as it is relayed, and exposes the
// browse and delete operations used by the HTTP API.
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/quote-crawler/internal/clock/system"
	"github.com/JakeFAU/quote-crawler/internal/crawler"
	uuidgen "github.com/JakeFAU/quote-crawler/internal/id/uuid"
	"github.com/JakeFAU/quote-crawler/internal/progress"
	"github.com/JakeFAU/quote-crawler/internal/store"
)

// TopicCrawlCompleted is the default notification topic.
const TopicCrawlCompleted = "crawl.completed"

const publishTimeout = 10 * time.Second

var tracer = otel.Tracer("github.com/JakeFAU/quote-crawler/internal/library")

// Scraper is the crawl capability the service relies on.
type Scraper interface {
	Search(ctx context.Context, query string) ([]crawler.SearchHit, error)
	Crawl(ctx context.Context, workID string) (<-chan crawler.Event, error)
}

// Publisher sends crawl notifications.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Config tunes the service. An empty Topic disables notifications.
type Config struct {
	Topic string
}

// ScrapeRequest names the work to crawl and the catalog metadata stored with it.
type ScrapeRequest struct {
	WorkID        string `json:"-"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	CoverImageURL string `json:"coverImageUrl"`
}

// CrawlCompleted is the notification published when a crawl finishes.
type CrawlCompleted struct {
	CrawlID     string    `json:"crawl_id"`
	BookID      int64     `json:"book_id"`
	WorkID      string    `json:"work_id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	TotalQuotes int       `json:"total_quotes"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Service coordinates the scraper, the book repository, notifications, and
// progress reporting.
type Service struct {
	scraper   Scraper
	books     store.BookRepository
	publisher Publisher
	emitter   progress.Emitter
	clock     crawler.Clock
	ids       crawler.IDGenerator
	logger    *zap.Logger
	cfg       Config
}

// New wires a Service. publisher, emitter, clock, ids, and logger may be nil.
func New(
	scraper Scraper,
	books store.BookRepository,
	publisher Publisher,
	emitter progress.Emitter,
	clock crawler.Clock,
	ids crawler.IDGenerator,
	logger *zap.Logger,
	cfg Config,
) *Service {
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if clock == nil {
		clock = system.New()
	}
	if ids == nil {
		ids = uuidgen.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		scraper:   scraper,
		books:     books,
		publisher: publisher,
		emitter:   emitter,
		clock:     clock,
		ids:       ids,
		logger:    logger.Named("library"),
		cfg:       cfg,
	}
}

// Search returns catalog hits for query.
func (s *Service) Search(ctx context.Context, query string) ([]crawler.SearchHit, error) {
	return s.scraper.Search(ctx, query)
}

// Scrape stores the book described by req and crawls its quotes. The returned
// stream is the crawl's stream with each page persisted before its progress
// event is relayed; the complete event carries the stored book ID. A storage
// failure cancels the crawl and ends the stream with one error event.
// Callers must drain the stream until it is closed.
func (s *Service) Scrape(ctx context.Context, req ScrapeRequest) (<-chan crawler.Event, error) {
	req.WorkID = strings.TrimSpace(req.WorkID)
	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	if err := crawler.ValidateWorkID(req.WorkID); err != nil {
		return nil, err
	}
	if req.Title == "" || req.Author == "" {
		return nil, fmt.Errorf("%w: title and author are required", crawler.ErrInvalidInput)
	}

	ctx, span := tracer.Start(ctx, "library.Scrape",
		trace.WithAttributes(attribute.String("quotes.work_id", req.WorkID)))

	started := s.clock.Now().UTC()
	book, err := s.books.UpsertBook(ctx, store.BookUpsert{
		WorkID:        req.WorkID,
		Title:         req.Title,
		Author:        req.Author,
		CoverImageURL: strings.TrimSpace(req.CoverImageURL),
		ScrapedAt:     started,
	})
	if err != nil {
		err = fmt.Errorf("store book %s: %w", req.WorkID, err)
		endSpan(span, err)
		return nil, err
	}

	crawlCtx, cancel := context.WithCancel(ctx)
	events, err := s.scraper.Crawl(crawlCtx, req.WorkID)
	if err != nil {
		cancel()
		endSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("quotes.book_id", book.ID))

	run := &crawlRun{
		svc:     s,
		book:    book,
		id:      s.crawlID(),
		started: started,
		// writes outlive a client that disconnects mid-crawl
		storeCtx: context.WithoutCancel(ctx),
		cancel:   cancel,
		span:     span,
		logger:   s.logger.With(zap.String("work_id", req.WorkID), zap.Int64("book_id", book.ID)),
	}
	out := make(chan crawler.Event)
	go run.relay(events, out)
	return out, nil
}

// ListBooks returns every stored book, most recently scraped first.
func (s *Service) ListBooks(ctx context.Context) ([]store.Book, error) {
	books, err := s.books.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// GetBook returns one book or store.ErrNotFound.
func (s *Service) GetBook(ctx context.Context, id int64) (store.Book, error) {
	book, err := s.books.GetBook(ctx, id)
	if err != nil {
		return store.Book{}, fmt.Errorf("get book %d: %w", id, err)
	}
	return book, nil
}

// ListQuotes returns a book's quotes ordered and filtered by filter.
func (s *Service) ListQuotes(ctx context.Context, bookID int64, filter store.QuoteFilter) ([]store.Quote, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	quotes, err := s.books.ListQuotes(ctx, bookID, filter)
	if err != nil {
		return nil, fmt.Errorf("list quotes for book %d: %w", bookID, err)
	}
	return quotes, nil
}

// DeleteBook removes a book and its quotes or returns store.ErrNotFound.
func (s *Service) DeleteBook(ctx context.Context, id int64) error {
	if err := s.books.DeleteBook(ctx, id); err != nil {
		return fmt.Errorf("delete book %d: %w", id, err)
	}
	s.logger.Info("book deleted", zap.Int64("book_id", id))
	return nil
}

func (s *Service) crawlID() uuid.UUID {
	raw, err := s.ids.NewID()
	if err == nil {
		if id, perr := uuid.Parse(raw); perr == nil {
			return id
		}
	}
	return uuid.New()
}

// IsNotFound reports whether err means the book does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
