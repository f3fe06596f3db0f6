package extract

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/quote-crawler/internal/crawler"
)

const (
	bookRowSelector   = `tr[itemtype="http://schema.org/Book"]`
	titleSelector     = "a.bookTitle span"
	authorSelector    = "a.authorName span"
	coverSelector     = "img.bookCover"
	editionsSelector  = `a[href*="/work/editions/"]`
	authorsSeparator  = ", "
	defaultSearchHits = crawler.SearchLimit
)

var (
	workIDPattern = regexp.MustCompile(`/work/editions/(\d+)`)
	// thumbnail size (._SX98_, ._SY160_) and crop (._CR0,0,98,160_) tokens,
	// alone or chained as in ._SX98_CR0,0,98,160_
	coverSizeToken = regexp.MustCompile(`\._(?:(?:S[XY]\d+|CR\d+,\d+,\d+,\d+)_)+`)
)

// SearchHits collects up to limit catalog rows from doc in document order.
// Rows missing a title or work ID are skipped and do not count toward limit;
// rows after the limit-th hit are not inspected. A non-positive limit uses
// the default of crawler.SearchLimit.
func SearchHits(doc Document, limit int) []crawler.SearchHit {
	if limit <= 0 {
		limit = defaultSearchHits
	}
	hits := make([]crawler.SearchHit, 0, limit)
	for _, row := range doc.FindAll(bookRowSelector) {
		if len(hits) >= limit {
			break
		}
		hit, ok := searchHit(row)
		if !ok {
			continue
		}
		hits = append(hits, hit)
	}
	return hits
}

func searchHit(row Element) (crawler.SearchHit, bool) {
	title := strings.TrimSpace(firstText(row, titleSelector))
	workID := workIDFromRow(row)
	if title == "" || workID == "" {
		return crawler.SearchHit{}, false
	}
	return crawler.SearchHit{
		Title:         title,
		Author:        authors(row),
		CoverImageURL: coverURL(row),
		WorkID:        workID,
	}, true
}

func authors(row Element) string {
	names := make([]string, 0, 1)
	for _, el := range row.FindAll(authorSelector) {
		if name := strings.TrimSpace(el.Text()); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, authorsSeparator)
}

func coverURL(row Element) string {
	for _, img := range row.FindAll(coverSelector) {
		src, ok := img.Attr("src")
		if !ok {
			continue
		}
		return UpgradeCoverURL(strings.TrimSpace(src))
	}
	return ""
}

func workIDFromRow(row Element) string {
	for _, link := range row.FindAll(editionsSelector) {
		href, _ := link.Attr("href")
		if m := workIDPattern.FindStringSubmatch(href); m != nil {
			return m[1]
		}
	}
	return ""
}

// UpgradeCoverURL strips thumbnail size and crop tokens so the URL points at
// the full-size cover.
func UpgradeCoverURL(src string) string {
	if src == "" {
		return ""
	}
	return coverSizeToken.ReplaceAllString(src, "")
}

func firstText(el Element, selector string) string {
	matches := el.FindAll(selector)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Text()
}
