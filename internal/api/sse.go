package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/quote-crawler/internal/crawler"
	"github.com/JakeFAU/quote-crawler/internal/library"
	"github.com/JakeFAU/quote-crawler/internal/metrics"
)

// eventWriter frames crawl events as server-sent events and flushes each one.
type eventWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func (e *eventWriter) write(ev crawler.Event) error {
	data, err := json.Marshal(ev.Payload())
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return fmt.Errorf("write %s event: %w", ev.Type, err)
	}
	e.flusher.Flush()
	return nil
}

const maxScrapeBody = 64 << 10

type scrapeBody struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	CoverImageURL string `json:"coverImageUrl"`
}

// scrape handles POST /api/books/{id}/scrape where id is the catalog work ID.
// The body carries the book metadata; the response is an event stream of
// progress, complete, and error events. Closing the connection cancels the
// crawl.
func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	// reading to EOF lets the server notice a client that hangs up mid-stream
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxScrapeBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	var body scrapeBody
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	workID := chi.URLParam(r, "id")
	events, err := s.lib.Scrape(r.Context(), library.ScrapeRequest{
		WorkID:        workID,
		Title:         body.Title,
		Author:        body.Author,
		CoverImageURL: body.CoverImageURL,
	})
	if err != nil {
		if crawler.IsInvalidInput(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("start scrape failed", zap.String("work_id", workID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start scrape")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	metrics.IncActiveStreams()
	defer metrics.DecActiveStreams()

	out := &eventWriter{w: w, flusher: flusher}
	var writeErr error
	for ev := range events {
		if writeErr != nil {
			continue
		}
		if writeErr = out.write(ev); writeErr != nil {
			s.logger.Debug("event stream closed by client", zap.String("work_id", workID), zap.Error(writeErr))
		}
	}
}
