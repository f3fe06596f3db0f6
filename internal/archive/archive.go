// Package archive keeps a copy of every catalog page the crawler fetches.
// Fetcher decorates a crawler.Fetcher and writes successful bodies to a
// BlobStore keyed by content hash, so repeated fetches of an unchanged page
// land on the same object.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/quote-crawler/internal/crawler"
	"github.com/JakeFAU/quote-crawler/internal/metrics"
)

// ContentType is recorded on every archived page.
const ContentType = "text/html; charset=utf-8"

// Object is one blob to be written.
type Object struct {
	Path        string
	ContentType string
	Body        io.Reader
	// Metadata is stored alongside the object where the backend supports it.
	Metadata map[string]string
}

// BlobStore persists archived pages and returns a URI for the stored object.
type BlobStore interface {
	PutObject(ctx context.Context, obj Object) (string, error)
}

// Hasher produces the content digest used in object paths.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Fetcher archives every successful fetch of the wrapped Fetcher. Archive
// failures are logged and counted; they never fail the fetch.
type Fetcher struct {
	next   crawler.Fetcher
	blobs  BlobStore
	hasher Hasher
	prefix string
	logger *zap.Logger
}

// NewFetcher wraps next so fetched pages are written to blobs under prefix.
func NewFetcher(next crawler.Fetcher, blobs BlobStore, hasher Hasher, prefix string, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		next:   next,
		blobs:  blobs,
		hasher: hasher,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.Named("archive"),
	}
}

// Fetch delegates to the wrapped Fetcher and archives the body on success.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := f.next.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	uri, archiveErr := f.store(ctx, rawURL, body)
	metrics.ObserveArchiveWrite(archiveErr)
	if archiveErr != nil {
		f.logger.Warn("archive page failed", zap.String("url", rawURL), zap.Error(archiveErr))
	} else {
		f.logger.Debug("archived page", zap.String("url", rawURL), zap.String("uri", uri))
	}
	return body, nil
}

func (f *Fetcher) store(ctx context.Context, rawURL string, body []byte) (string, error) {
	digest, err := f.hasher.Hash(body)
	if err != nil {
		return "", fmt.Errorf("hash page: %w", err)
	}
	uri, err := f.blobs.PutObject(ctx, Object{
		Path:        ObjectPath(f.prefix, rawURL, digest),
		ContentType: ContentType,
		Body:        bytes.NewReader(body),
		Metadata: map[string]string{
			"source_url": rawURL,
			"sha256":     digest,
		},
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return uri, nil
}

// ObjectPath returns "<prefix>/<host>/<digest>.html"; the prefix segment is
// omitted when empty and an unparseable URL files under "unknown".
func ObjectPath(prefix, rawURL, digest string) string {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = strings.ToLower(u.Hostname())
	}
	return path.Join(prefix, host, digest+".html")
}
