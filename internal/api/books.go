package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/quote-crawler/internal/store"
)

// BooksHandler serves the read and delete endpoints of the library.
type BooksHandler struct {
	lib    Library
	logger *zap.Logger
}

// NewBooksHandler wires the library and logger.
func NewBooksHandler(lib Library, logger *zap.Logger) *BooksHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BooksHandler{lib: lib, logger: logger}
}

// ListBooks handles GET /api/books. It returns a JSON array of books, most
// recently scraped first.
func (h *BooksHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.lib.ListBooks(r.Context())
	if err != nil {
		h.logger.Error("list books failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list books")
		return
	}
	if books == nil {
		books = []store.Book{}
	}
	writeJSON(w, http.StatusOK, books)
}

// GetBook handles GET /api/books/{id}: 200 with the book, 400 for a malformed
// id, 404 when it does not exist.
func (h *BooksHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	book, err := h.lib.GetBook(r.Context(), id)
	if err != nil {
		h.storeError(w, "get book failed", err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// ListQuotes handles GET /api/books/{id}/quotes?sort=likes|page&search=. An
// unknown book yields an empty array.
func (h *BooksHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := store.QuoteFilter{
		Sort:   store.ParseQuoteSort(q.Get("sort")),
		Search: q.Get("search"),
	}
	quotes, err := h.lib.ListQuotes(r.Context(), id, filter)
	if err != nil {
		h.storeError(w, "list quotes failed", err)
		return
	}
	if quotes == nil {
		quotes = []store.Quote{}
	}
	writeJSON(w, http.StatusOK, quotes)
}

// DeleteBook handles DELETE /api/books/{id}, removing the book and its quotes.
func (h *BooksHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	if err := h.lib.DeleteBook(r.Context(), id); err != nil {
		h.storeError(w, "delete book failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *BooksHandler) storeError(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}
	h.logger.Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func bookID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return 0, false
	}
	return id, true
}
