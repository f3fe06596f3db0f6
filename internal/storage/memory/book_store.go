package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/JakeFAU/quote-crawler/internal/store"
)

// BookStore implements store.BookRepository in memory.
type BookStore struct {
	mu          sync.RWMutex
	books       map[int64]store.Book
	byWorkID    map[string]int64
	quotes      map[int64][]store.Quote
	nextBookID  int64
	nextQuoteID int64
}

// NewBookStore constructs an empty BookStore.
func NewBookStore() *BookStore {
	return &BookStore{
		books:    make(map[int64]store.Book),
		byWorkID: make(map[string]int64),
		quotes:   make(map[int64][]store.Quote),
	}
}

// UpsertBook inserts the book or refreshes it by work ID, dropping old quotes.
func (s *BookStore) UpsertBook(_ context.Context, in store.BookUpsert) (store.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byWorkID[in.WorkID]
	if !ok {
		s.nextBookID++
		id = s.nextBookID
		s.byWorkID[in.WorkID] = id
	}
	book := store.Book{
		ID:            id,
		WorkID:        in.WorkID,
		Title:         in.Title,
		Author:        in.Author,
		CoverImageURL: in.CoverImageURL,
		ScrapedAt:     in.ScrapedAt,
	}
	s.books[id] = book
	delete(s.quotes, id)
	return book, nil
}

// AddQuotes appends quotes to a book.
func (s *BookStore) AddQuotes(_ context.Context, bookID int64, quotes []store.NewQuote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[bookID]; !ok {
		return store.ErrNotFound
	}
	for _, q := range quotes {
		s.nextQuoteID++
		s.quotes[bookID] = append(s.quotes[bookID], store.Quote{
			ID:         s.nextQuoteID,
			BookID:     bookID,
			Text:       q.Text,
			Author:     q.Author,
			LikesCount: q.LikesCount,
			Tags:       append([]string{}, q.Tags...),
			PageNumber: q.PageNumber,
		})
	}
	return nil
}

// SetTotalQuotes records a book's final quote count.
func (s *BookStore) SetTotalQuotes(_ context.Context, bookID int64, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[bookID]
	if !ok {
		return store.ErrNotFound
	}
	book.TotalQuotes = total
	s.books[bookID] = book
	return nil
}

// ListBooks returns every book, most recently scraped first.
func (s *BookStore) ListBooks(_ context.Context) ([]store.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Book, 0, len(s.books))
	for _, b := range s.books {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b store.Book) int {
		if c := b.ScrapedAt.Compare(a.ScrapedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

// GetBook loads one book.
func (s *BookStore) GetBook(_ context.Context, id int64) (store.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	book, ok := s.books[id]
	if !ok {
		return store.Book{}, store.ErrNotFound
	}
	return book, nil
}

// ListQuotes returns a book's quotes filtered and ordered by filter.
func (s *BookStore) ListQuotes(_ context.Context, bookID int64, filter store.QuoteFilter) ([]store.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]store.Quote, 0, len(s.quotes[bookID]))
	for _, q := range s.quotes[bookID] {
		if needle != "" && !strings.Contains(strings.ToLower(q.Text), needle) {
			continue
		}
		q.Tags = append([]string{}, q.Tags...)
		out = append(out, q)
	}
	if filter.Sort == store.SortByLikes {
		slices.SortStableFunc(out, func(a, b store.Quote) int {
			return cmp.Compare(b.LikesCount, a.LikesCount)
		})
		return out, nil
	}
	slices.SortStableFunc(out, func(a, b store.Quote) int {
		if c := cmp.Compare(a.PageNumber, b.PageNumber); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// DeleteBook removes a book and its quotes.
func (s *BookStore) DeleteBook(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.books, id)
	delete(s.byWorkID, book.WorkID)
	delete(s.quotes, id)
	return nil
}
