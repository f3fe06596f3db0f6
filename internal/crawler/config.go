package crawler

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// MaxPages caps how many quote pages a single crawl fetches.
	MaxPages = 20
	// SearchLimit caps the number of hits returned by Search.
	SearchLimit = 10
	// DefaultTimeout bounds every outbound request.
	DefaultTimeout = 15 * time.Second
	// DefaultDelay is the pause between successive page fetches.
	DefaultDelay = 1500 * time.Millisecond
	// DefaultBaseURL is the catalog origin.
	DefaultBaseURL = "https://www.goodreads.com"
	// DefaultUserAgent is the fixed browser-like identity sent with every request.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config holds the settings the scraper honors. It is built once at startup
// and threaded into the Scraper; nothing here is read from global state.
type Config struct {
	BaseURL   string
	UserAgent string
	Delay     time.Duration
	Timeout   time.Duration
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: DefaultUserAgent,
		Delay:     DefaultDelay,
		Timeout:   DefaultTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Delay < 0 {
		c.Delay = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// SearchURL returns the catalog search URL for query.
func (c Config) SearchURL(query string) string {
	return fmt.Sprintf("%s/search?q=%s", c.BaseURL, url.QueryEscape(query))
}

// QuotesURL returns the URL of one page of a work's quotes.
func (c Config) QuotesURL(workID string, page int) string {
	return fmt.Sprintf("%s/work/quotes/%s?page=%d", c.BaseURL, url.PathEscape(workID), page)
}
