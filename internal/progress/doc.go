// Package progress carries crawl lifecycle events from the library service to
// observers. The Hub batches events on a background goroutine and fans them
// out to pluggable sinks such as structured logs and Prometheus metrics;
// emitting never blocks the crawl.
package progress
