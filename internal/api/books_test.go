package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/quote-crawler/internal/store"
)

func sampleLibrary() *fakeLibrary {
	scraped := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &fakeLibrary{
		books: []store.Book{{
			ID: 7, WorkID: "3244642", Title: "Good Omens", Author: "Terry Pratchett, Neil Gaiman",
			TotalQuotes: 2, ScrapedAt: scraped,
		}},
		quotes: []store.Quote{
			{ID: 1, BookID: 7, Text: "first", Author: "Neil Gaiman", LikesCount: 10, Tags: []string{"humor"}, PageNumber: 1},
		},
	}
}

func TestListBooks(t *testing.T) {
	t.Parallel()

	s := NewServer(sampleLibrary(), nil, nil)
	rec := serve(t, s, http.MethodGet, "/api/books", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[{
		"id": 7,
		"goodreads_work_id": "3244642",
		"title": "Good Omens",
		"author": "Terry Pratchett, Neil Gaiman",
		"cover_image_url": "",
		"total_quotes": 2,
		"scraped_at": "2024-05-01T12:00:00Z"
	}]`, rec.Body.String())

	rec = serve(t, NewServer(&fakeLibrary{}, nil, nil), http.MethodGet, "/api/books", "")
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetBook(t *testing.T) {
	t.Parallel()

	s := NewServer(sampleLibrary(), nil, nil)
	rec := serve(t, s, http.MethodGet, "/api/books/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var book store.Book
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &book))
	require.Equal(t, "Good Omens", book.Title)

	rec = serve(t, s, http.MethodGet, "/api/books/8", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"book not found"}`, rec.Body.String())

	require.Equal(t, http.StatusBadRequest, serve(t, s, http.MethodGet, "/api/books/abc", "").Code)
	require.Equal(t, http.StatusBadRequest, serve(t, s, http.MethodGet, "/api/books/-1", "").Code)
}

func TestListQuotes(t *testing.T) {
	t.Parallel()

	lib := sampleLibrary()
	s := NewServer(lib, nil, nil)
	rec := serve(t, s, http.MethodGet, "/api/books/7/quotes?sort=likes&search=fir", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[{
		"id": 1,
		"book_id": 7,
		"quote_text": "first",
		"author": "Neil Gaiman",
		"likes_count": 10,
		"tags": ["humor"],
		"page_number": 1
	}]`, rec.Body.String())
	require.Equal(t, store.QuoteFilter{Sort: store.SortByLikes, Search: "fir"}, lib.lastFilter)

	serve(t, s, http.MethodGet, "/api/books/7/quotes?sort=bogus", "")
	require.Equal(t, store.SortByPage, lib.lastFilter.Sort)

	rec = serve(t, NewServer(&fakeLibrary{}, nil, nil), http.MethodGet, "/api/books/99/quotes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestDeleteBook(t *testing.T) {
	t.Parallel()

	s := NewServer(sampleLibrary(), nil, nil)
	rec := serve(t, s, http.MethodDelete, "/api/books/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"success":true}`, rec.Body.String())

	require.Equal(t, http.StatusNotFound, serve(t, s, http.MethodDelete, "/api/books/8", "").Code)
}

func TestBooksStoreFailure(t *testing.T) {
	t.Parallel()

	lib := &fakeLibrary{storeErr: errors.New("connection refused")}
	s := NewServer(lib, nil, nil)
	for _, target := range []string{"/api/books", "/api/books/1", "/api/books/1/quotes"} {
		rec := serve(t, s, http.MethodGet, target, "")
		require.Equal(t, http.StatusInternalServerError, rec.Code, target)
		require.NotContains(t, rec.Body.String(), "connection refused", target)
	}
}
