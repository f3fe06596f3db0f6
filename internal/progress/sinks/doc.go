// Package sinks holds the progress.Sink implementations: structured crawl logs
// and Prometheus crawl metrics.
package sinks
