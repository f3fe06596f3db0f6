// Package app builds the service's long-lived dependencies from configuration
// and runs the HTTP server. It is the only place that knows which storage,
// archive, and publisher implementations are in use.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/quote-crawler/internal/api"
	"github.com/JakeFAU/quote-crawler/internal/archive"
	"github.com/JakeFAU/quote-crawler/internal/clock/system"
	"github.com/JakeFAU/quote-crawler/internal/config"
	"github.com/JakeFAU/quote-crawler/internal/crawler"
	"github.com/JakeFAU/quote-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/quote-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/quote-crawler/internal/hash/sha256"
	"github.com/JakeFAU/quote-crawler/internal/id/uuid"
	"github.com/JakeFAU/quote-crawler/internal/library"
	"github.com/JakeFAU/quote-crawler/internal/metrics"
	"github.com/JakeFAU/quote-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/quote-crawler/internal/progress"
	progresssinks "github.com/JakeFAU/quote-crawler/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/quote-crawler/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/quote-crawler/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/quote-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/quote-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/quote-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/quote-crawler/internal/storage/postgres"
	sqlitestore "github.com/JakeFAU/quote-crawler/internal/storage/sqlite"
	"github.com/JakeFAU/quote-crawler/internal/store"
	"github.com/JakeFAU/quote-crawler/internal/telemetry"
)

const (
	serviceName          = "quote-crawler"
	memoryPublisherLimit = 1000
)

// Version is reported as the service version in traces. Set at link time.
var Version = "dev"

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	scraper   *crawler.Scraper
	library   *library.Service
	apiServer *api.Server

	progressHub  *progress.Hub
	books        store.BookRepository
	postgres     *pgstore.BookStore
	sqlite       *sqlitestore.BookStore
	gcs          *gcsstorage.BlobStore
	gcpPublisher *gcppublisher.Publisher
	tracer       *sdktrace.TracerProvider
}

// Build creates the application's dependencies. reg receives the progress
// metrics; nil means the default Prometheus registerer.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, reg prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a := &App{cfg: cfg, logger: logger}
	a.logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Provider),
		zap.String("archive", cfg.Archive.Provider),
	)

	tp, err := telemetry.InitTracerProvider(ctx, serviceName, Version)
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}
	a.tracer = tp

	fetcher, err := a.setupFetcher(ctx)
	if err != nil {
		a.cleanup()
		return nil, err
	}
	if err := a.setupStore(ctx); err != nil {
		a.cleanup()
		return nil, err
	}
	publisher, err := a.setupPublisher(ctx)
	if err != nil {
		a.cleanup()
		return nil, err
	}
	if err := a.setupProgress(reg); err != nil {
		a.cleanup()
		return nil, err
	}

	a.scraper = crawler.NewScraper(cfg.CrawlerConfig(), fetcher, extract.NewHTML(), logger)
	a.library = library.New(
		a.scraper,
		a.books,
		publisher,
		a.progressHub,
		system.New(),
		uuid.New(),
		logger,
		library.Config{Topic: cfg.PubSub.TopicName},
	)
	a.apiServer = api.NewServer(a.library, a.Ready, logger)
	return a, nil
}

func (a *App) setupFetcher(ctx context.Context) (crawler.Fetcher, error) {
	crawlCfg := a.cfg.CrawlerConfig()
	var fetcher crawler.Fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent: crawlCfg.UserAgent,
		Timeout:   crawlCfg.Timeout,
	}, a.logger)
	if a.cfg.Scraper.MaxRPS > 0 {
		fetcher = ratelimit.NewFetcher(fetcher, ratelimit.New(ratelimit.Config{
			DefaultRPS:   a.cfg.Scraper.MaxRPS,
			DefaultBurst: a.cfg.Scraper.Burst,
		}))
	}

	var blobs archive.BlobStore
	switch a.cfg.Archive.Provider {
	case config.ArchiveGCS:
		gcs, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: a.cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs archive init failed: %w", err)
		}
		a.gcs = gcs
		blobs = gcs
	case config.ArchiveLocal:
		local, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local archive init failed: %w", err)
		}
		blobs = local
	case config.ArchiveMemory:
		blobs = memorystorage.NewBlobStore()
	default:
		a.logger.Info("page archive disabled")
		return fetcher, nil
	}
	a.logger.Info("page archive enabled",
		zap.String("provider", a.cfg.Archive.Provider),
		zap.String("prefix", a.cfg.Archive.Prefix),
	)
	return archive.NewFetcher(fetcher, blobs, sha256.New(), a.cfg.Archive.Prefix, a.logger), nil
}

func (a *App) setupStore(ctx context.Context) error {
	switch a.cfg.Storage.Provider {
	case config.StoragePostgres:
		return a.setupPostgres(ctx)
	case config.StorageSQLite:
		lite, err := sqlitestore.Open(ctx, sqlitestore.Config{Path: a.cfg.Storage.SQLite.Path})
		if err != nil {
			return fmt.Errorf("sqlite store init failed: %w", err)
		}
		a.sqlite = lite
		a.books = lite
		a.logger.Info("sqlite book store initialized", zap.String("path", a.cfg.Storage.SQLite.Path))
		return nil
	default:
		a.logger.Warn("using in-memory book store; books are lost on restart")
		a.books = memorystorage.NewBookStore()
		return nil
	}
}

func (a *App) setupPostgres(ctx context.Context) error {
	pg, err := pgstore.Open(ctx, pgstore.Config{
		DSN:      a.cfg.Storage.Postgres.DSN,
		MaxConns: int32(a.cfg.Storage.Postgres.MaxConns),
		MinConns: int32(a.cfg.Storage.Postgres.MinConns),
	})
	if err != nil {
		return fmt.Errorf("postgres store init failed: %w", err)
	}
	a.postgres = pg
	if err := pg.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("postgres schema init failed: %w", err)
	}
	a.books = pg
	a.logger.Info("postgres book store initialized")
	return nil
}

func (a *App) setupPublisher(ctx context.Context) (library.Publisher, error) {
	if a.cfg.PubSub.ProjectID == "" {
		a.logger.Warn("no Pub/Sub project configured, using in-memory publisher")
		return memorypublisher.NewCapped(memoryPublisherLimit), nil
	}
	pub, err := gcppublisher.Open(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.gcpPublisher = pub
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return pub, nil
}

func (a *App) setupProgress(reg prometheus.Registerer) error {
	promSink, err := progresssinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("progress metrics init failed: %w", err)
	}
	hubCfg := progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   a.cfg.Progress.MaxBatchWait(),
		Logger:         a.logger,
	}
	a.progressHub = progress.NewHub(hubCfg, promSink, progresssinks.NewLogSink(a.logger))
	a.logger.Debug("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
	return nil
}

// Scraper returns the catalog scraper.
func (a *App) Scraper() *crawler.Scraper {
	return a.scraper
}

// Library returns the library service.
func (a *App) Library() *library.Service {
	return a.library
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Ready reports whether the configured store is reachable.
func (a *App) Ready(ctx context.Context) error {
	switch {
	case a.postgres != nil:
		return a.postgres.Ping(ctx)
	case a.sqlite != nil:
		return a.sqlite.Ping(ctx)
	default:
		return nil
	}
}

// Run listens on the configured port and serves until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until ctx is canceled, then shuts down
// gracefully. Open event streams are canceled at shutdown so their crawls
// end with the quotes gathered so far.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	streams, endStreams := context.WithCancel(context.WithoutCancel(ctx))
	defer endStreams()

	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return streams },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown initiated")
		endStreams()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Close flushes progress sinks and releases clients.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
		a.tracer = nil
	}
	a.cleanup()
	_ = a.logger.Sync()
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) cleanup() {
	if a.tracer != nil {
		_ = a.tracer.Shutdown(context.Background())
		a.tracer = nil
	}
	if a.gcpPublisher != nil {
		if err := a.gcpPublisher.Close(); err != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
		a.gcpPublisher = nil
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.gcs = nil
	}
	if a.postgres != nil {
		a.postgres.Close()
		a.postgres = nil
	}
	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			a.logger.Warn("sqlite close failed", zap.Error(err))
		}
		a.sqlite = nil
	}
}
