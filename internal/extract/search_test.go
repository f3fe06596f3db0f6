package extract

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/quote-crawler/internal/crawler"
)

func loadFixture(t *testing.T, name string) Document {
	t.Helper()
	body, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	doc, err := ParseHTML(body)
	require.NoError(t, err)
	return doc
}

func parse(t *testing.T, body string) Document {
	t.Helper()
	doc, err := ParseHTML([]byte(body))
	require.NoError(t, err)
	return doc
}

func TestSearchHits(t *testing.T) {
	doc := loadFixture(t, "search.html")

	hits := SearchHits(doc, 10)
	require.Len(t, hits, 6)
	require.Equal(t, crawler.SearchHit{
		Title:         "Slaughterhouse-Five",
		Author:        "Kurt Vonnegut Jr.",
		CoverImageURL: "https://images.example.com/books/1.jpg",
		WorkID:        "1473",
	}, hits[0])
	require.Equal(t, crawler.SearchHit{
		Title:         "Good Omens",
		Author:        "Terry Pratchett, Neil Gaiman",
		CoverImageURL: "https://images.example.com/books/2.jpg",
		WorkID:        "3244642",
	}, hits[1])
	for _, h := range hits {
		require.NotEqual(t, "No Editions Link", h.Title)
	}
}

func TestSearchHitsLimitTakesLeadingRows(t *testing.T) {
	var b strings.Builder
	b.WriteString("<table>")
	for _, id := range []string{"11", "22", "33", "44", "55"} {
		b.WriteString(`<tr itemtype="http://schema.org/Book"><td><a class="bookTitle"><span>Book ` + id +
			`</span></a><a href="/work/editions/` + id + `-slug">editions</a></td></tr>`)
	}
	b.WriteString("</table>")

	hits := SearchHits(parse(t, b.String()), 2)
	require.Len(t, hits, 2)
	require.Equal(t, "11", hits[0].WorkID)
	require.Equal(t, "22", hits[1].WorkID)
}

func TestSearchHitsSkippedRowsDoNotCount(t *testing.T) {
	// the third row has no work id and must not use up the limit
	hits := SearchHits(loadFixture(t, "search.html"), 3)
	require.Len(t, hits, 3)
	require.Equal(t, []string{"1473", "3244642", "4194"}, []string{hits[0].WorkID, hits[1].WorkID, hits[2].WorkID})
}

func TestSearchHitsDefaultLimit(t *testing.T) {
	hits := SearchHits(loadFixture(t, "search.html"), 0)
	require.Len(t, hits, 6)
}

func TestSearchHitsNoRows(t *testing.T) {
	hits := SearchHits(parse(t, "<html><body><p>No results.</p></body></html>"), 10)
	require.NotNil(t, hits)
	require.Empty(t, hits)
}

func TestUpgradeCoverURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"https://img.test/b/1._SX98_.jpg", "https://img.test/b/1.jpg"},
		{"https://img.test/b/1._SY160_.jpg", "https://img.test/b/1.jpg"},
		{"https://img.test/b/1._CR0,0,98,160_.jpg", "https://img.test/b/1.jpg"},
		{"https://img.test/b/1._SX98_CR0,0,98,160_.jpg", "https://img.test/b/1.jpg"},
		{"https://img.test/b/1.jpg", "https://img.test/b/1.jpg"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, UpgradeCoverURL(tt.in), tt.in)
	}
}
