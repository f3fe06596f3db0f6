package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/quote-crawler/internal/progress"
)

// PrometheusSink turns crawl events into crawl-level metrics: crawls started,
// completed by result, currently running, runtime, pages by result, and quotes
// collected.
type PrometheusSink struct {
	crawlsStarted   prometheus.Counter
	crawlsCompleted *prometheus.CounterVec
	crawlsRunning   prometheus.Gauge
	crawlRuntime    *prometheus.HistogramVec
	pages           *prometheus.CounterVec
	quotes          prometheus.Counter

	mu      sync.Mutex
	running map[[16]byte]struct{}
}

// NewPrometheusSink registers the sink's collectors with reg, defaulting to
// the global registerer.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		crawlsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotes_crawls_started_total",
			Help: "Total quote crawls started.",
		}),
		crawlsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotes_crawls_completed_total",
			Help: "Total quote crawls finished, partitioned by result.",
		}, []string{"result"}),
		crawlsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quotes_crawls_running",
			Help: "Quote crawls currently in progress.",
		}),
		crawlRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quotes_crawl_runtime_seconds",
			Help:    "Wall time per finished crawl.",
			Buckets: []float64{1, 5, 10, 20, 30, 45, 60, 120},
		}, []string{"result"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quotes_crawl_pages_total",
			Help: "Quote pages processed, partitioned by result.",
		}, []string{"result"}),
		quotes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quotes_collected_total",
			Help: "Quotes extracted across all crawls.",
		}),
		running: make(map[[16]byte]struct{}),
	}
	for _, c := range []prometheus.Collector{
		s.crawlsStarted, s.crawlsCompleted, s.crawlsRunning, s.crawlRuntime, s.pages, s.quotes,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageCrawlStart:
			s.crawlsStarted.Inc()
			if s.track(evt.CrawlID, true) {
				s.crawlsRunning.Inc()
			}
		case progress.StagePageDone:
			s.pages.WithLabelValues("success").Inc()
			s.quotes.Add(float64(evt.Quotes))
		case progress.StagePageError:
			s.pages.WithLabelValues("error").Inc()
		case progress.StageCrawlDone:
			s.finish(evt, "success")
		case progress.StageCrawlError:
			s.finish(evt, "error")
		}
	}
	return nil
}

func (s *PrometheusSink) finish(evt progress.Event, result string) {
	s.crawlsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.crawlRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.track(evt.CrawlID, false) {
		s.crawlsRunning.Dec()
	}
}

// track records a crawl as running or finished and reports whether the state
// changed.
func (s *PrometheusSink) track(id [16]byte, running bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[id]
	if running {
		s.running[id] = struct{}{}
		return !ok
	}
	delete(s.running, id)
	return ok
}

// Close is a no-op.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
