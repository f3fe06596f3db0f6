package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/quote-crawler/internal/crawler"
	"github.com/JakeFAU/quote-crawler/internal/library"
	"github.com/JakeFAU/quote-crawler/internal/metrics"
	"github.com/JakeFAU/quote-crawler/internal/store"
)

const (
	requestTimeout = 60 * time.Second
	readyTimeout   = 2 * time.Second
)

// Library is the service surface the handlers need.
type Library interface {
	Search(ctx context.Context, query string) ([]crawler.SearchHit, error)
	Scrape(ctx context.Context, req library.ScrapeRequest) (<-chan crawler.Event, error)
	ListBooks(ctx context.Context) ([]store.Book, error)
	GetBook(ctx context.Context, id int64) (store.Book, error)
	ListQuotes(ctx context.Context, bookID int64, filter store.QuoteFilter) ([]store.Quote, error)
	DeleteBook(ctx context.Context, id int64) error
}

// ReadyFunc reports whether downstream dependencies can serve traffic.
type ReadyFunc func(ctx context.Context) error

// Server wires HTTP handlers to the library service.
type Server struct {
	router chi.Router
	lib    Library
	books  *BooksHandler
	ready  ReadyFunc
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. ready may be nil.
func NewServer(lib Library, ready ReadyFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")
	s := &Server{
		lib:    lib,
		books:  NewBooksHandler(lib, logger),
		ready:  ready,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	timeout := timeoutMiddleware(requestTimeout)
	r.With(timeout).Get("/healthz", s.healthz)
	r.With(timeout).Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(timeout).Get("/search", s.search)
		r.Route("/books", func(r chi.Router) {
			r.With(timeout).Get("/", s.books.ListBooks)
			r.Route("/{id}", func(r chi.Router) {
				// streams for the whole crawl, so no request timeout
				r.Post("/scrape", s.scrape)
				r.With(timeout).Get("/", s.books.GetBook)
				r.With(timeout).Delete("/", s.books.DeleteBook)
				r.With(timeout).Get("/quotes", s.books.ListQuotes)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, `query parameter "q" is required`)
		return
	}
	hits, err := s.lib.Search(r.Context(), query)
	if err != nil {
		var upstream *crawler.UpstreamError
		switch {
		case crawler.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &upstream):
			writeError(w, http.StatusBadGateway, upstream.Error())
		default:
			s.logger.Error("search failed", zap.String("query", query), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "search failed")
		}
		return
	}
	if hits == nil {
		hits = []crawler.SearchHit{}
	}
	writeJSON(w, http.StatusOK, hits)
}

type requestIDKey struct{}

// RequestID returns the request ID assigned by the server, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.Info("request completed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("panic recovered",
					zap.String("request_id", RequestID(r.Context())),
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"error":"request timed out"}`)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
