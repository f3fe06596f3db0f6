package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/quote-crawler/internal/crawler"
	"github.com/JakeFAU/quote-crawler/internal/progress"
	"github.com/JakeFAU/quote-crawler/internal/store"
)

// crawlRun holds the state of one relayed crawl.
type crawlRun struct {
	svc      *Service
	book     store.Book
	id       uuid.UUID
	started  time.Time
	storeCtx context.Context
	cancel   context.CancelFunc
	span     trace.Span
	logger   *zap.Logger
}

func (r *crawlRun) relay(events <-chan crawler.Event, out chan<- crawler.Event) {
	var spanErr error
	defer func() { endSpan(r.span, spanErr) }()
	defer close(out)
	defer r.cancel()

	r.emit(progress.Event{Stage: progress.StageCrawlStart})

	failed := false
	for ev := range events {
		if failed {
			// the crawl was cancelled; drain until the scraper closes the stream
			continue
		}
		switch ev.Type {
		case crawler.EventProgress:
			if ev.Quotes != nil {
				if err := r.savePage(ev); err != nil {
					failed = true
					spanErr = err
					r.fail(out, fmt.Sprintf("Failed to save quotes: %v", err))
					continue
				}
			}
		case crawler.EventError:
			if ev.Terminal() {
				spanErr = errors.New(ev.Message)
				r.emit(progress.Event{Stage: progress.StageCrawlError, Dur: r.elapsed(), Note: ev.Message})
			} else {
				r.span.AddEvent("page error", trace.WithAttributes(attribute.Int("quotes.page", ev.Page)))
				r.emit(progress.Event{Stage: progress.StagePageError, Page: ev.Page, Note: ev.Message})
			}
		case crawler.EventComplete:
			if err := r.svc.books.SetTotalQuotes(r.storeCtx, r.book.ID, ev.TotalQuotes); err != nil {
				failed = true
				spanErr = err
				r.fail(out, fmt.Sprintf("Failed to save book: %v", err))
				continue
			}
			ev.BookID = r.book.ID
			r.span.SetAttributes(attribute.Int("quotes.total", ev.TotalQuotes))
			r.emit(progress.Event{Stage: progress.StageCrawlDone, Quotes: ev.TotalQuotes, Dur: r.elapsed()})
			r.publish(ev.TotalQuotes)
		}
		out <- ev
	}
}

func (r *crawlRun) savePage(ev crawler.Event) error {
	quotes := make([]store.NewQuote, 0, len(ev.Quotes))
	for _, q := range ev.Quotes {
		quotes = append(quotes, store.NewQuote{
			Text:       q.Text,
			Author:     q.Author,
			LikesCount: q.LikesCount,
			Tags:       q.Tags,
			PageNumber: q.PageNumber,
		})
	}
	if err := r.svc.books.AddQuotes(r.storeCtx, r.book.ID, quotes); err != nil {
		return err
	}
	r.emit(progress.Event{Stage: progress.StagePageDone, Page: ev.Page, Quotes: len(quotes)})
	return nil
}

func (r *crawlRun) fail(out chan<- crawler.Event, message string) {
	r.logger.Error("crawl storage failed", zap.String("message", message))
	r.cancel()
	r.emit(progress.Event{Stage: progress.StageCrawlError, Dur: r.elapsed(), Note: message})
	out <- crawler.ErrorEvent(message)
}

func (r *crawlRun) publish(total int) {
	if r.svc.publisher == nil || r.svc.cfg.Topic == "" {
		return
	}
	ctx, cancel := context.WithTimeout(r.storeCtx, publishTimeout)
	defer cancel()
	msg := CrawlCompleted{
		CrawlID:     r.id.String(),
		BookID:      r.book.ID,
		WorkID:      r.book.WorkID,
		Title:       r.book.Title,
		Author:      r.book.Author,
		TotalQuotes: total,
		StartedAt:   r.started,
		FinishedAt:  r.svc.clock.Now().UTC(),
	}
	id, err := r.svc.publisher.Publish(ctx, r.svc.cfg.Topic, msg)
	if err != nil {
		r.logger.Warn("publish crawl completion failed", zap.String("topic", r.svc.cfg.Topic), zap.Error(err))
		return
	}
	r.logger.Debug("crawl completion published", zap.String("message_id", id))
}

func (r *crawlRun) emit(evt progress.Event) {
	evt.CrawlID = progress.UUIDToBytes(r.id)
	evt.TS = r.svc.clock.Now().UTC()
	evt.WorkID = r.book.WorkID
	r.svc.emitter.Emit(evt)
}

func (r *crawlRun) elapsed() time.Duration {
	d := r.svc.clock.Now().Sub(r.started)
	if d < 0 {
		return 0
	}
	return d
}
