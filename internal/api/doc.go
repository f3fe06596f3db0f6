// Package api hosts the HTTP server and handlers. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/search?q= for catalog search.
//   - POST /api/books/{id}/scrape, where id is a catalog work ID, streaming
//     crawl progress as server-sent events.
//   - GET /api/books, GET and DELETE /api/books/{id}, and
//     GET /api/books/{id}/quotes?sort=&search= for browsing the library.
package api
