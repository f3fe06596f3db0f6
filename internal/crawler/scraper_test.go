package crawler_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/quote-crawler/internal/crawler"
	"github.com/JakeFAU/quote-crawler/internal/extract"
)

// quotesPage renders a minimal quotes page with n quotes and pagination links
// up to lastLink; next controls whether an enabled next-page link is present.
func quotesPage(n, lastLink int, next bool) []byte {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<div class="quoteDetails"><div class="quoteText">&ldquo;Quote %d&rdquo; &#8213; <span class="authorOrTitle">Author,</span></div>`+
			`<div class="right"><a class="smallText">%d likes</a></div></div>`, i, i)
	}
	for p := 2; p <= lastLink; p++ {
		fmt.Fprintf(&b, `<a href="/work/quotes/1?page=%d">%d</a>`, p, p)
	}
	if next {
		b.WriteString(`<a class="next_page" href="/work/quotes/1?page=2">next</a>`)
	}
	b.WriteString("</body></html>")
	return []byte(b.String())
}

type pageResponse struct {
	body []byte
	err  error
}

// stubFetcher serves quote pages by page number and records the pages asked for.
type stubFetcher struct {
	mu     sync.Mutex
	pages  map[int]pageResponse
	search pageResponse
	calls  []int
	after  func(page int)
}

func (f *stubFetcher) Fetch(ctx context.Context, raw string) ([]byte, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Path == "/search" {
		return f.search.body, f.search.err
	}
	page, _ := strconv.Atoi(u.Query().Get("page"))
	f.mu.Lock()
	f.calls = append(f.calls, page)
	resp, ok := f.pages[page]
	after := f.after
	f.mu.Unlock()
	if after != nil {
		defer after(page)
	}
	if !ok {
		return nil, &crawler.TransportError{URL: raw, StatusCode: 404}
	}
	return resp.body, resp.err
}

func (f *stubFetcher) fetched() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

func newScraper(f crawler.Fetcher, delay time.Duration) *crawler.Scraper {
	cfg := crawler.DefaultConfig()
	cfg.BaseURL = "http://catalog.test"
	cfg.Delay = delay
	return crawler.NewScraper(cfg, f, extract.NewHTML(), nil)
}

func drain(t *testing.T, events <-chan crawler.Event) []crawler.Event {
	t.Helper()
	var out []crawler.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			ev.Quotes = nil
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("crawl did not finish; events so far: %+v", out)
		}
	}
}

func TestCrawlFirstPageFailureIsTerminal(t *testing.T) {
	f := &stubFetcher{pages: map[int]pageResponse{
		1: {err: &crawler.TransportError{URL: "x", StatusCode: 503}},
	}}
	events, err := newScraper(f, 0).Crawl(context.Background(), "1473")
	require.NoError(t, err)

	got := drain(t, events)
	require.Len(t, got, 2)
	require.Equal(t, crawler.ProgressEvent(1, 1, 0, crawler.FetchingStatus(1)), got[0])
	require.Equal(t, crawler.EventError, got[1].Type)
	require.True(t, got[1].Terminal())
	require.Contains(t, got[1].Message, "Scraping failed")
	require.Contains(t, got[1].Message, "503")
	require.Equal(t, []int{1}, f.fetched())
}

// panickingExtractor delegates to the HTML extractor until panicPage.
type panickingExtractor struct {
	crawler.Extractor
	panicPage int
}

func (e panickingExtractor) QuotesPage(body []byte, page int) (crawler.PageResult, error) {
	if page == e.panicPage {
		panic("boom")
	}
	return e.Extractor.QuotesPage(body, page)
}

func TestCrawlPanicIsTerminal(t *testing.T) {
	f := &stubFetcher{pages: map[int]pageResponse{
		1: {body: quotesPage(2, 3, true)},
		2: {body: quotesPage(2, 3, true)},
		3: {body: quotesPage(2, 3, false)},
	}}
	cfg := crawler.DefaultConfig()
	cfg.BaseURL = "http://catalog.test"
	cfg.Delay = 0
	s := crawler.NewScraper(cfg, f, panickingExtractor{Extractor: extract.NewHTML(), panicPage: 2}, nil)

	events, err := s.Crawl(context.Background(), "1473")
	require.NoError(t, err)

	got := drain(t, events)
	require.Len(t, got, 3)
	require.Equal(t, crawler.EventProgress, got[0].Type)
	require.Equal(t, crawler.EventProgress, got[1].Type)
	last := got[2]
	require.Equal(t, crawler.EventError, last.Type)
	require.True(t, last.Terminal())
	require.True(t, strings.HasPrefix(last.Message, "Scraping failed:"), last.Message)
	require.Contains(t, last.Message, "boom")
	for _, ev := range got {
		require.NotEqual(t, crawler.EventComplete, ev.Type)
	}
	_, open := <-events
	require.False(t, open)
}

func TestCrawlStopsOnEmptyPage(t *testing.T) {
	f := &stubFetcher{pages: map[int]pageResponse{
		1: {body: quotesPage(4, 3, true)},
		2: {body: quotesPage(0, 3, true)},
	}}
	events, err := newScraper(f, 0).Crawl(context.Background(), "1473")
	require.NoError(t, err)

	require.Equal(t, []crawler.Event{
		crawler.ProgressEvent(1, 1, 0, crawler.FetchingStatus(1)),
		crawler.ProgressEvent(1, 3, 4, crawler.FetchedStatus(1, 3, 4)),
		crawler.CompleteEvent(4),
	}, drain(t, events))
	require.Equal(t, []int{1, 2}, f.fetched())
}

func TestCrawlProgressCarriesPageQuotes(t *testing.T) {
	f := &stubFetcher{pages: map[int]pageResponse{
		1: {body: quotesPage(2, 1, false)},
	}}
	events, err := newScraper(f, 0).Crawl(context.Background(), "1473")
	require.NoError(t, err)

	var quotes []crawler.ScrapedQuote
	for ev := range events {
		quotes = append(quotes, ev.Quotes...)
	}
	require.Len(t, quotes, 2)
	require.Equal(t, "Quote 0", quotes[0].Text)
	require.Equal(t, "Author", quotes[0].Author)
	require.Equal(t, 1, quotes[1].LikesCount)
	require.Equal(t, 1, quotes[1].PageNumber)
}

func TestCrawlCancelledAfterSecondPageCompletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &stubFetcher{pages: map[int]pageResponse{
		1: {body: quotesPage(3, 5, true)},
		2: {body: quotesPage(2, 5, true)},
		3: {body: quotesPage(4, 5, true)},
	}}
	f.after = func(page int) {
		if page == 2 {
			cancel()
		}
	}
	events, err := newScraper(f, 20*time.Millisecond).Crawl(ctx, "1473")
	require.NoError(t, err)

	got := drain(t, events)
	last := got[len(got)-1]
	require.Equal(t, crawler.CompleteEvent(5), last)
	for _, ev := range got {
		require.NotEqual(t, crawler.EventError, ev.Type)
	}
	require.Equal(t, []int{1, 2}, f.fetched())
}

func TestCrawlCancelledDuringDelayCompletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &stubFetcher{pages: map[int]pageResponse{
		1: {body: quotesPage(3, 5, true)},
		2: {body: quotesPage(2, 5, true)},
	}}
	events, err := newScraper(f, time.Hour).Crawl(ctx, "1473")
	require.NoError(t, err)

	var got []crawler.Event
	for ev := range events {
		got = append(got, ev)
		if ev.Type == crawler.EventProgress && ev.Quotes != nil {
			cancel()
		}
	}
	require.Equal(t, crawler.CompleteEvent(3), got[len(got)-1])
	require.Equal(t, []int{1}, f.fetched())
}

func TestCrawlCancelledDuringFirstPage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &stubFetcher{pages: map[int]pageResponse{
		1: {err: context.Canceled},
	}}
	events, err := newScraper(f, 0).Crawl(ctx, "1473")
	require.NoError(t, err)

	got := drain(t, events)
	require.Equal(t, crawler.CompleteEvent(0), got[len(got)-1])
}

func TestCrawlLaterPageFailureContinues(t *testing.T) {
	f := &stubFetcher{pages: map[int]pageResponse{
		1: {body: quotesPage(2, 3, true)},
		2: {err: errors.New("connection reset")},
		3: {body: quotesPage(1, 3, false)},
	}}
	events, err := newScraper(f, 0).Crawl(context.Background(), "1473")
	require.NoError(t, err)

	got := drain(t, events)
	require.Equal(t, "Error on page 2: connection reset", got[2].Message)
	require.False(t, got[2].Terminal())
	require.True(t, got[4].Terminal())
	require.Equal(t, []crawler.Event{
		crawler.ProgressEvent(1, 1, 0, crawler.FetchingStatus(1)),
		crawler.ProgressEvent(1, 3, 2, crawler.FetchedStatus(1, 3, 2)),
		crawler.PageErrorEvent(2, errors.New("connection reset")),
		crawler.ProgressEvent(3, 3, 3, crawler.FetchedStatus(3, 3, 3)),
		crawler.CompleteEvent(3),
	}, got)
}

func TestCrawlTotalPagesNeverShrinks(t *testing.T) {
	f := &stubFetcher{pages: map[int]pageResponse{
		1: {body: quotesPage(1, 4, true)},
		// page 2 claims only two pages exist
		2: {body: quotesPage(1, 2, true)},
		3: {body: quotesPage(1, 4, true)},
		// page 4 reveals a sixth page
		4: {body: quotesPage(1, 6, true)},
		5: {body: quotesPage(1, 6, true)},
		6: {body: quotesPage(1, 6, false)},
	}}
	events, err := newScraper(f, 0).Crawl(context.Background(), "1473")
	require.NoError(t, err)

	got := drain(t, events)
	var totals []int
	for _, ev := range got {
		if strings.HasPrefix(ev.Status, "Fetched") {
			totals = append(totals, ev.TotalPages)
		}
	}
	require.Equal(t, []int{4, 4, 4, 6, 6, 6}, totals)
	require.Equal(t, crawler.CompleteEvent(6), got[len(got)-1])
}

func TestCrawlHonorsPageCap(t *testing.T) {
	pages := make(map[int]pageResponse)
	for p := 1; p <= crawler.MaxPages+5; p++ {
		pages[p] = pageResponse{body: quotesPage(1, 100, true)}
	}
	f := &stubFetcher{pages: pages}
	events, err := newScraper(f, 0).Crawl(context.Background(), "1473")
	require.NoError(t, err)

	got := drain(t, events)
	require.Equal(t, crawler.CompleteEvent(crawler.MaxPages), got[len(got)-1])
	require.Len(t, f.fetched(), crawler.MaxPages)
	for _, ev := range got {
		require.LessOrEqual(t, ev.TotalPages, crawler.MaxPages)
	}
}

func TestCrawlRejectsInvalidWorkID(t *testing.T) {
	s := newScraper(&stubFetcher{}, 0)
	for _, id := range []string{"", "   ", "12a", "../1"} {
		events, err := s.Crawl(context.Background(), id)
		require.ErrorIs(t, err, crawler.ErrInvalidInput, id)
		require.Nil(t, events)
	}
}

func TestSearch(t *testing.T) {
	row := func(title, id string) string {
		return fmt.Sprintf(`<tr itemtype="http://schema.org/Book"><td>`+
			`<a class="bookTitle"><span>%s</span></a><a class="authorName"><span>Kurt Vonnegut</span></a>`+
			`<a href="/work/editions/%s-x">editions</a></td></tr>`, title, id)
	}
	var b strings.Builder
	b.WriteString("<table>")
	for i := 0; i < crawler.SearchLimit+3; i++ {
		b.WriteString(row(fmt.Sprintf("Book %d", i), strconv.Itoa(100+i)))
	}
	b.WriteString("</table>")

	f := &stubFetcher{search: pageResponse{body: []byte(b.String())}}
	hits, err := newScraper(f, 0).Search(context.Background(), "vonnegut")
	require.NoError(t, err)
	require.Len(t, hits, crawler.SearchLimit)
	require.Equal(t, crawler.SearchHit{Title: "Book 0", Author: "Kurt Vonnegut", WorkID: "100"}, hits[0])
}

func TestSearchErrors(t *testing.T) {
	t.Run("blank query", func(t *testing.T) {
		_, err := newScraper(&stubFetcher{}, 0).Search(context.Background(), " \t ")
		require.ErrorIs(t, err, crawler.ErrInvalidInput)
		require.True(t, crawler.IsInvalidInput(err))
	})

	t.Run("upstream failure", func(t *testing.T) {
		transport := &crawler.TransportError{URL: "http://catalog.test/search", StatusCode: 503}
		f := &stubFetcher{search: pageResponse{err: transport}}
		_, err := newScraper(f, 0).Search(context.Background(), "dune")

		var upstream *crawler.UpstreamError
		require.ErrorAs(t, err, &upstream)
		require.ErrorIs(t, err, transport)
		require.Equal(t, "catalog search failed: upstream returned 503 Service Unavailable", err.Error())
	})
}
