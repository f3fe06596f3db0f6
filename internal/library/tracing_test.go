package library_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/JakeFAU/quote-crawler/internal/crawler"
	"github.com/JakeFAU/quote-crawler/internal/library"
	"github.com/JakeFAU/quote-crawler/internal/storage/memory"
)

// Not parallel: installs the global tracer provider.
func TestScrapeRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	findSpan := func(workID string) sdktrace.ReadOnlySpan {
		for _, span := range recorder.Ended() {
			for _, kv := range span.Attributes() {
				if kv.Key == "quotes.work_id" && kv.Value.AsString() == workID {
					return span
				}
			}
		}
		return nil
	}

	ok := &stubScraper{events: []crawler.Event{
		fetchedEvent(1, 1, 1, "only"),
		crawler.CompleteEvent(1),
	}}
	svc := library.New(ok, memory.NewBookStore(), nil, nil, nil, nil, nil, library.Config{})
	events, err := svc.Scrape(context.Background(), library.ScrapeRequest{WorkID: "101", Title: "T", Author: "A"})
	require.NoError(t, err)
	collect(t, events)

	require.Eventually(t, func() bool { return findSpan("101") != nil }, time.Second, 10*time.Millisecond)
	span := findSpan("101")
	require.Equal(t, "library.Scrape", span.Name())
	require.Equal(t, codes.Unset, span.Status().Code)
	require.Contains(t, span.Attributes(), attribute.Int("quotes.total", 1))

	books := failingQuotes{BookStore: memory.NewBookStore(), err: errors.New("disk full")}
	svc = library.New(ok, books, nil, nil, nil, nil, nil, library.Config{})
	events, err = svc.Scrape(context.Background(), library.ScrapeRequest{WorkID: "202", Title: "T", Author: "A"})
	require.NoError(t, err)
	collect(t, events)

	require.Eventually(t, func() bool { return findSpan("202") != nil }, time.Second, 10*time.Millisecond)
	require.Equal(t, codes.Error, findSpan("202").Status().Code)
}
