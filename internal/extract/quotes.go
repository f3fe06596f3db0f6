package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/quote-crawler/internal/crawler"
	"github.com/JakeFAU/quote-crawler/internal/normalize"
)

const (
	quoteBlockSelector = ".quoteDetails"
	quoteTextSelector  = ".quoteText"
	quoteAuthorSel     = ".authorOrTitle"
	likesSelector      = ".right .smallText"
	tagLinkSelector    = ".greyText.smallText.left a"
	pageLinkSelector   = `a[href*="page="]`
	nextPageSelector   = ".next_page"
)

var (
	likesPattern      = regexp.MustCompile(`([\d,]+)\s*likes?`)
	pageParamPattern  = regexp.MustCompile(`(?:^|[?&;])page=(\d+)`)
	trailingSeparator = regexp.MustCompile(`,\s*$`)
)

// QuotesPage extracts every usable quote from one quotes page along with the
// page-count estimate visible on it. Quotes whose normalized body is empty are
// dropped.
func QuotesPage(doc Document, page int) crawler.PageResult {
	var quotes []crawler.ScrapedQuote
	for _, block := range doc.FindAll(quoteBlockSelector) {
		q, ok := quote(block, page)
		if !ok {
			continue
		}
		quotes = append(quotes, q)
	}
	if quotes == nil {
		quotes = []crawler.ScrapedQuote{}
	}
	return crawler.PageResult{
		Quotes:     quotes,
		TotalPages: TotalPages(doc, page),
	}
}

func quote(block Element, page int) (crawler.ScrapedQuote, bool) {
	textEls := block.FindAll(quoteTextSelector)
	if len(textEls) == 0 {
		return crawler.ScrapedQuote{}, false
	}
	textEl := textEls[0]
	text := normalize.Quote(textEl.OwnText())
	if text == "" {
		return crawler.ScrapedQuote{}, false
	}
	author := trailingSeparator.ReplaceAllString(firstText(textEl, quoteAuthorSel), "")
	return crawler.ScrapedQuote{
		Text:       text,
		Author:     strings.TrimSpace(author),
		LikesCount: likes(block),
		Tags:       tags(block),
		PageNumber: page,
	}, true
}

func likes(block Element) int {
	label := strings.TrimSpace(firstText(block, likesSelector))
	return ParseLikes(label)
}

// ParseLikes reads the count from a "1,234 likes" label, returning 0 when the
// label is absent or unparseable.
func ParseLikes(label string) int {
	m := likesPattern.FindStringSubmatch(label)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func tags(block Element) []string {
	out := []string{}
	for _, link := range block.FindAll(tagLinkSelector) {
		if tag := strings.TrimSpace(link.Text()); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// TotalPages estimates the page count from the pagination widget: the largest
// page=N link, or 1 when there are none. When the next-page control is absent
// or disabled the current page is a floor on the estimate.
func TotalPages(doc Document, page int) int {
	total := 1
	for _, link := range doc.FindAll(pageLinkSelector) {
		href, _ := link.Attr("href")
		m := pageParamPattern.FindStringSubmatch(href)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > total {
			total = n
		}
	}
	if next := doc.FindAll(nextPageSelector); len(next) == 0 || next[0].HasClass("disabled") {
		if page > total {
			total = page
		}
	}
	return total
}
