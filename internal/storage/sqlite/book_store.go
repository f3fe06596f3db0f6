// Package sqlite implements store.BookRepository on a single SQLite file,
// for running the service without a database server.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/JakeFAU/quote-crawler/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Config locates the database file.
type Config struct {
	// Path is the database file; its directory is created when missing.
	Path string
}

// BookStore implements store.BookRepository on SQLite.
type BookStore struct {
	db *sql.DB
}

// Open opens or creates the database at cfg.Path and applies the schema.
func Open(ctx context.Context, cfg Config) (*BookStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("storage.sqlite.path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", cfg.Path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; queries wait for the open transaction
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &BookStore{db: db}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return s, nil
}

// Ping checks that the database is usable.
func (s *BookStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *BookStore) Close() error {
	return s.db.Close()
}

const upsertBookSQL = `
INSERT INTO books (goodreads_work_id, title, author, cover_image_url, total_quotes, scraped_at)
VALUES (?, ?, ?, ?, 0, ?)
ON CONFLICT (goodreads_work_id) DO UPDATE
SET title = excluded.title,
	author = excluded.author,
	cover_image_url = excluded.cover_image_url,
	total_quotes = 0,
	scraped_at = excluded.scraped_at
RETURNING id`

// UpsertBook inserts or refreshes the book and clears its quotes in one
// transaction.
func (s *BookStore) UpsertBook(ctx context.Context, in store.BookUpsert) (store.Book, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Book{}, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	scrapedAt := in.ScrapedAt.UTC()
	var id int64
	err = tx.QueryRowContext(ctx, upsertBookSQL, in.WorkID, in.Title, in.Author, in.CoverImageURL, scrapedAt.UnixNano()).Scan(&id)
	if err != nil {
		return store.Book{}, fmt.Errorf("upsert book: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM quotes WHERE book_id = ?`, id); err != nil {
		return store.Book{}, fmt.Errorf("clear quotes: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return store.Book{}, fmt.Errorf("commit upsert: %w", err)
	}
	return store.Book{
		ID:            id,
		WorkID:        in.WorkID,
		Title:         in.Title,
		Author:        in.Author,
		CoverImageURL: in.CoverImageURL,
		ScrapedAt:     scrapedAt,
	}, nil
}

// AddQuotes inserts quotes in one transaction.
func (s *BookStore) AddQuotes(ctx context.Context, bookID int64, quotes []store.NewQuote) error {
	if len(quotes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add quotes: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM books WHERE id = ?`, bookID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check book: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO quotes (book_id, quote_text, author, likes_count, tags, page_number)
	VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert quote: %w", err)
	}
	defer stmt.Close()

	for _, q := range quotes {
		tags := q.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return fmt.Errorf("encode tags: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, bookID, q.Text, q.Author, q.LikesCount, string(tagsJSON), q.PageNumber); err != nil {
			return fmt.Errorf("insert quote: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit quotes: %w", err)
	}
	return nil
}

// SetTotalQuotes records a book's final quote count.
func (s *BookStore) SetTotalQuotes(ctx context.Context, bookID int64, total int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE books SET total_quotes = ? WHERE id = ?`, total, bookID)
	if err != nil {
		return fmt.Errorf("update total quotes: %w", err)
	}
	return requireRow(res)
}

const bookColumns = `id, goodreads_work_id, title, author, cover_image_url, total_quotes, scraped_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (store.Book, error) {
	var b store.Book
	var scrapedAt int64
	if err := row.Scan(&b.ID, &b.WorkID, &b.Title, &b.Author, &b.CoverImageURL, &b.TotalQuotes, &scrapedAt); err != nil {
		return store.Book{}, err
	}
	b.ScrapedAt = time.Unix(0, scrapedAt).UTC()
	return b, nil
}

// ListBooks returns every book, most recently scraped first.
func (s *BookStore) ListBooks(ctx context.Context) ([]store.Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY scraped_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := []store.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return books, nil
}

// GetBook loads one book.
func (s *BookStore) GetBook(ctx context.Context, id int64) (store.Book, error) {
	book, err := scanBook(s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Book{}, store.ErrNotFound
	}
	if err != nil {
		return store.Book{}, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// ListQuotes returns a book's quotes filtered and ordered by filter. SQLite's
// LIKE folds ASCII case only.
func (s *BookStore) ListQuotes(ctx context.Context, bookID int64, filter store.QuoteFilter) ([]store.Quote, error) {
	query, args := quotesQuery(bookID, filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	defer rows.Close()

	quotes := []store.Quote{}
	for rows.Next() {
		var q store.Quote
		var tags string
		if err := rows.Scan(&q.ID, &q.BookID, &q.Text, &q.Author, &q.LikesCount, &tags, &q.PageNumber); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &q.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of quote %d: %w", q.ID, err)
		}
		if q.Tags == nil {
			q.Tags = []string{}
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotes: %w", err)
	}
	return quotes, nil
}

func quotesQuery(bookID int64, filter store.QuoteFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT id, book_id, quote_text, author, likes_count, tags, page_number FROM quotes WHERE book_id = ?`)
	args := []any{bookID}
	if search := strings.TrimSpace(filter.Search); search != "" {
		b.WriteString(` AND quote_text LIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(search)+"%")
	}
	if filter.Sort == store.SortByLikes {
		b.WriteString(` ORDER BY likes_count DESC, id ASC`)
	} else {
		b.WriteString(` ORDER BY page_number ASC, id ASC`)
	}
	return b.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// DeleteBook removes a book and its quotes.
func (s *BookStore) DeleteBook(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// foreign keys are off by default in SQLite, so quotes go explicitly
	if _, err := tx.ExecContext(ctx, `DELETE FROM quotes WHERE book_id = ?`, id); err != nil {
		return fmt.Errorf("delete quotes: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
