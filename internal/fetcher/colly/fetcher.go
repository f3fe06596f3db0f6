// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/quote-crawler/internal/crawler"
	"github.com/JakeFAU/quote-crawler/internal/metrics"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Transport overrides the pooled default transport; tests use it.
	Transport http.RoundTripper
}

// Fetcher implements crawler.Fetcher using the Colly collector. Each call runs
// on a clone of one base collector so clones share its HTTP client.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type fetchResult struct {
	status int
	body   []byte
	err    error
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = crawler.DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = crawler.DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.UserAgent(cfg.UserAgent),
	)
	c.IgnoreRobotsTxt = true
	// non-2xx responses reach OnResponse so the status can be reported
	c.ParseHTTPErrorResponse = true
	transport := cfg.Transport
	if transport == nil {
		transport = newHTTPTransport()
	}
	c.WithTransport(transport)
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger.Named("fetcher"),
	}
}

// Fetch executes a single HTTP GET using Colly. It never retries.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var result fetchResult
	start := time.Now()
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, &result)

	res, err := f.runCollector(ctx, collector, url, &result)
	elapsed := time.Since(start)
	metrics.ObserveFetch(url, metrics.FetchStatus(res.status), len(res.body), elapsed)
	if err != nil {
		f.logger.Debug("fetch failed", zap.String("url", url), zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, err
	}
	f.logger.Debug("fetched",
		zap.String("url", url),
		zap.Int("status", res.status),
		zap.Int("bytes", len(res.body)),
		zap.Duration("elapsed", elapsed),
	)
	return res.body, nil
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *fetchResult) {
	hooks.OnResponse(func(r *colly.Response) {
		result.status = r.StatusCode
		result.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			result.status = r.StatusCode
		}
		result.err = err
	})
}

// runCollector visits url and returns what the hooks captured. result is only
// read once Visit has returned.
func (f *Fetcher) runCollector(
	ctx context.Context,
	collector *colly.Collector,
	url string,
	result *fetchResult,
) (fetchResult, error) {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fetchResult{}, &crawler.TransportError{URL: url, Err: fmt.Errorf("fetch canceled: %w", ctx.Err())}
	case err := <-done:
		res := *result
		if err == nil {
			err = res.err
		}
		if err != nil {
			return res, &crawler.TransportError{URL: url, StatusCode: res.status, Err: err}
		}
		if res.status < 200 || res.status > 299 {
			return res, &crawler.TransportError{URL: url, StatusCode: res.status}
		}
		return res, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
