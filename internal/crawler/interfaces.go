package crawler

import (
	"context"
	"time"
)

// Fetcher retrieves the raw document at url. Implementations must not retry;
// transport failures are reported as *TransportError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces crawl IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Extractor turns fetched documents into structured records.
type Extractor interface {
	SearchHits(body []byte, limit int) ([]SearchHit, error)
	QuotesPage(body []byte, page int) (PageResult, error)
}
