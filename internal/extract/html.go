package extract

import (
	"github.com/JakeFAU/quote-crawler/internal/crawler"
)

// HTML implements crawler.Extractor over raw HTML bodies.
type HTML struct{}

// NewHTML returns the goquery-backed extractor.
func NewHTML() HTML {
	return HTML{}
}

// SearchHits parses body and extracts up to limit hits.
func (HTML) SearchHits(body []byte, limit int) ([]crawler.SearchHit, error) {
	doc, err := ParseHTML(body)
	if err != nil {
		return nil, err
	}
	return SearchHits(doc, limit), nil
}

// QuotesPage parses body and extracts the quotes on page.
func (HTML) QuotesPage(body []byte, page int) (crawler.PageResult, error) {
	doc, err := ParseHTML(body)
	if err != nil {
		return crawler.PageResult{}, err
	}
	return QuotesPage(doc, page), nil
}
