// Package store defines the persistence contract for scraped books and their
// quotes. Implementations live in internal/storage; this package must not
// import database drivers or concrete clients.
package store
