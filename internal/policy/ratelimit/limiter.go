// Package ratelimit paces catalog fetches with a token bucket per site, shared
// by every crawl and search running in the process.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/quote-crawler/internal/crawler"
	"github.com/JakeFAU/quote-crawler/internal/metrics"
)

// Limiter manages per-site rate limits.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// Config holds rate limiter configuration. A non-positive DefaultRPS
// disables limiting.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Wait blocks until a token is available for rawURL's site or ctx is done.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	site := metrics.SanitizeSite(rawURL)
	l.mu.Lock()
	limiter, ok := l.limiters[site]
	if !ok {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[site] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(site, waited)
	}
	return nil
}

// Fetcher waits on a Limiter before each fetch.
type Fetcher struct {
	next    crawler.Fetcher
	limiter *Limiter
}

// NewFetcher wraps next with limiter.
func NewFetcher(next crawler.Fetcher, limiter *Limiter) *Fetcher {
	return &Fetcher{next: next, limiter: limiter}
}

// Fetch implements crawler.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx, url); err != nil {
		return nil, err
	}
	return f.next.Fetch(ctx, url)
}
