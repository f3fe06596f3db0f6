// Package crawler implements the paginated quote crawl and the catalog search
// that sit at the center of the service. A crawl is a sequential, cancellable
// state machine that fetches one page at a time, extracts quotes from it, keeps
// a running estimate of the page count, and reports progress as a stream of
// Events terminated by exactly one complete or terminal error event.
package crawler
