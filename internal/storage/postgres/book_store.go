// Package postgres provides the Postgres-backed book and quote repository.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/quote-crawler/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of *pgxpool.Pool the store uses; pgxmock satisfies it.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
	Ping(ctx context.Context) error
	Close()
}

// BookStore implements store.BookRepository on Postgres.
type BookStore struct {
	pool pool
}

// Open connects a pool using cfg and returns a BookStore.
func Open(ctx context.Context, cfg Config) (*BookStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &BookStore{pool: p}, nil
}

// NewBookStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewBookStoreWithPool(p pool) (*BookStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &BookStore{pool: p}, nil
}

// Ping checks that the database is reachable.
func (s *BookStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *BookStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the books and quotes tables when missing.
func (s *BookStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const upsertBookSQL = `
INSERT INTO books (goodreads_work_id, title, author, cover_image_url, total_quotes, scraped_at)
VALUES ($1, $2, $3, $4, 0, $5)
ON CONFLICT (goodreads_work_id) DO UPDATE
SET title = EXCLUDED.title,
	author = EXCLUDED.author,
	cover_image_url = EXCLUDED.cover_image_url,
	total_quotes = 0,
	scraped_at = EXCLUDED.scraped_at
RETURNING id`

// UpsertBook inserts or refreshes the book and clears its quotes in one
// transaction.
func (s *BookStore) UpsertBook(ctx context.Context, in store.BookUpsert) (store.Book, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return store.Book{}, fmt.Errorf("begin upsert: %w", err)
	}
	var id int64
	err = tx.QueryRow(ctx, upsertBookSQL, in.WorkID, in.Title, in.Author, in.CoverImageURL, in.ScrapedAt).Scan(&id)
	if err != nil {
		return store.Book{}, rollback(ctx, tx, fmt.Errorf("upsert book: %w", err))
	}
	if _, err := tx.Exec(ctx, `DELETE FROM quotes WHERE book_id = $1`, id); err != nil {
		return store.Book{}, rollback(ctx, tx, fmt.Errorf("clear quotes: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return store.Book{}, fmt.Errorf("commit upsert: %w", err)
	}
	return store.Book{
		ID:            id,
		WorkID:        in.WorkID,
		Title:         in.Title,
		Author:        in.Author,
		CoverImageURL: in.CoverImageURL,
		ScrapedAt:     in.ScrapedAt,
	}, nil
}

func rollback(ctx context.Context, tx pgx.Tx, cause error) error {
	if err := tx.Rollback(ctx); err != nil {
		return fmt.Errorf("%w (rollback: %v)", cause, err)
	}
	return cause
}

var quoteColumns = []string{"book_id", "quote_text", "author", "likes_count", "tags", "page_number"}

// AddQuotes bulk-inserts quotes with COPY.
func (s *BookStore) AddQuotes(ctx context.Context, bookID int64, quotes []store.NewQuote) error {
	if len(quotes) == 0 {
		return nil
	}
	rows := make([][]any, len(quotes))
	for i, q := range quotes {
		tags := q.Tags
		if tags == nil {
			tags = []string{}
		}
		rows[i] = []any{bookID, q.Text, q.Author, q.LikesCount, tags, q.PageNumber}
	}
	if _, err := s.pool.CopyFrom(ctx, pgx.Identifier{"quotes"}, quoteColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy quotes: %w", err)
	}
	return nil
}

// SetTotalQuotes records a book's final quote count.
func (s *BookStore) SetTotalQuotes(ctx context.Context, bookID int64, total int) error {
	tag, err := s.pool.Exec(ctx, `UPDATE books SET total_quotes = $1 WHERE id = $2`, total, bookID)
	if err != nil {
		return fmt.Errorf("update total quotes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const bookColumns = `id, goodreads_work_id, title, author, cover_image_url, total_quotes, scraped_at`

func scanBook(row pgx.Row) (store.Book, error) {
	var b store.Book
	err := row.Scan(&b.ID, &b.WorkID, &b.Title, &b.Author, &b.CoverImageURL, &b.TotalQuotes, &b.ScrapedAt)
	return b, err
}

// ListBooks returns every book, most recently scraped first.
func (s *BookStore) ListBooks(ctx context.Context) ([]store.Book, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+bookColumns+` FROM books ORDER BY scraped_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	books, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Book, error) {
		return scanBook(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan books: %w", err)
	}
	return books, nil
}

// GetBook loads one book.
func (s *BookStore) GetBook(ctx context.Context, id int64) (store.Book, error) {
	book, err := scanBook(s.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Book{}, store.ErrNotFound
	}
	if err != nil {
		return store.Book{}, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// ListQuotes returns a book's quotes filtered and ordered by filter.
func (s *BookStore) ListQuotes(ctx context.Context, bookID int64, filter store.QuoteFilter) ([]store.Quote, error) {
	query, args := quotesQuery(bookID, filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	quotes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Quote, error) {
		var q store.Quote
		err := row.Scan(&q.ID, &q.BookID, &q.Text, &q.Author, &q.LikesCount, &q.Tags, &q.PageNumber)
		if q.Tags == nil {
			q.Tags = []string{}
		}
		return q, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan quotes: %w", err)
	}
	return quotes, nil
}

func quotesQuery(bookID int64, filter store.QuoteFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT id, book_id, quote_text, author, likes_count, tags, page_number FROM quotes WHERE book_id = $1`)
	args := []any{bookID}
	if search := strings.TrimSpace(filter.Search); search != "" {
		b.WriteString(` AND quote_text ILIKE $2`)
		args = append(args, "%"+escapeLike(search)+"%")
	}
	if filter.Sort == store.SortByLikes {
		b.WriteString(` ORDER BY likes_count DESC, id ASC`)
	} else {
		b.WriteString(` ORDER BY page_number ASC, id ASC`)
	}
	return b.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// DeleteBook removes a book; its quotes go with it by cascade.
func (s *BookStore) DeleteBook(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
