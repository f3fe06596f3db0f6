package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals that the requested book does not exist.
var ErrNotFound = errors.New("book not found")

// Book is one scraped catalog work.
type Book struct {
	ID            int64     `json:"id"`
	WorkID        string    `json:"goodreads_work_id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	CoverImageURL string    `json:"cover_image_url"`
	TotalQuotes   int       `json:"total_quotes"`
	ScrapedAt     time.Time `json:"scraped_at"`
}

// Quote is a stored quotation belonging to a book.
type Quote struct {
	ID         int64    `json:"id"`
	BookID     int64    `json:"book_id"`
	Text       string   `json:"quote_text"`
	Author     string   `json:"author"`
	LikesCount int      `json:"likes_count"`
	Tags       []string `json:"tags"`
	PageNumber int      `json:"page_number"`
}

// QuoteSort selects the ordering of ListQuotes.
type QuoteSort string

// Supported quote orderings.
const (
	// SortByPage orders by page number, then insertion order.
	SortByPage QuoteSort = "page"
	// SortByLikes orders by likes, most liked first.
	SortByLikes QuoteSort = "likes"
)

// ParseQuoteSort maps a query value to a QuoteSort, defaulting to SortByPage.
func ParseQuoteSort(v string) QuoteSort {
	if QuoteSort(v) == SortByLikes {
		return SortByLikes
	}
	return SortByPage
}

// QuoteFilter narrows and orders ListQuotes.
type QuoteFilter struct {
	Sort QuoteSort
	// Search keeps quotes whose text contains it, case-insensitively.
	Search string
}

// BookUpsert carries the catalog metadata written when a crawl starts.
type BookUpsert struct {
	WorkID        string
	Title         string
	Author        string
	CoverImageURL string
	ScrapedAt     time.Time
}

// NewQuote is a quote to be attached to a book.
type NewQuote struct {
	Text       string
	Author     string
	LikesCount int
	Tags       []string
	PageNumber int
}

// BookRepository persists books and their quotes.
type BookRepository interface {
	// UpsertBook inserts the book or refreshes its metadata by work ID. An
	// existing book's quotes are removed and its total reset so a re-scrape
	// starts clean.
	UpsertBook(ctx context.Context, in BookUpsert) (Book, error)
	// AddQuotes appends quotes to a book.
	AddQuotes(ctx context.Context, bookID int64, quotes []NewQuote) error
	// SetTotalQuotes records the final quote count of a crawl.
	SetTotalQuotes(ctx context.Context, bookID int64, total int) error
	// ListBooks returns every book, most recently scraped first.
	ListBooks(ctx context.Context) ([]Book, error)
	// GetBook loads one book or returns ErrNotFound.
	GetBook(ctx context.Context, id int64) (Book, error)
	// ListQuotes returns a book's quotes; an unknown book yields no quotes.
	ListQuotes(ctx context.Context, bookID int64, filter QuoteFilter) ([]Quote, error)
	// DeleteBook removes a book and its quotes or returns ErrNotFound.
	DeleteBook(ctx context.Context, id int64) error
}
