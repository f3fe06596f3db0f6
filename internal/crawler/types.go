package crawler

import "fmt"

// SearchHit is a single catalog search result.
type SearchHit struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	CoverImageURL string `json:"coverImageUrl"`
	WorkID        string `json:"workId"`
}

// ScrapedQuote is one quotation extracted from a quotes page.
type ScrapedQuote struct {
	Text       string   `json:"quoteText"`
	Author     string   `json:"author"`
	LikesCount int      `json:"likesCount"`
	Tags       []string `json:"tags"`
	PageNumber int      `json:"pageNumber"`
}

// PageResult is the extraction result for one quotes page. TotalPages is the
// best estimate of the page count observed on that page, not a final value.
type PageResult struct {
	Quotes     []ScrapedQuote
	TotalPages int
}

// EventType discriminates crawl events on the wire.
type EventType string

// Crawl event types.
const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is a tagged union of the crawl event cases. Only the fields of the
// case named by Type are meaningful; Payload returns the wire form.
type Event struct {
	Type EventType

	// progress; also set on non-terminal page errors
	Page        int
	TotalPages  int
	QuotesFound int
	Status      string
	// Quotes holds the quotes collected on Page. It is set on the progress
	// event emitted after a page is fetched and never sent over the wire.
	Quotes []ScrapedQuote

	// complete
	TotalQuotes int
	// BookID is filled in by the library collaborator once the book is stored.
	BookID int64

	// error
	Message string
}

// ProgressPayload is the wire form of a progress event.
type ProgressPayload struct {
	Page        int    `json:"page"`
	TotalPages  int    `json:"totalPages"`
	QuotesFound int    `json:"quotesFound"`
	Status      string `json:"status"`
}

// CompletePayload is the wire form of a complete event.
type CompletePayload struct {
	BookID      int64 `json:"bookId,omitempty"`
	TotalQuotes int   `json:"totalQuotes"`
}

// ErrorPayload is the wire form of an error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Payload returns the JSON-serialisable body for the event's case.
func (e Event) Payload() any {
	switch e.Type {
	case EventProgress:
		return ProgressPayload{
			Page:        e.Page,
			TotalPages:  e.TotalPages,
			QuotesFound: e.QuotesFound,
			Status:      e.Status,
		}
	case EventComplete:
		return CompletePayload{BookID: e.BookID, TotalQuotes: e.TotalQuotes}
	default:
		return ErrorPayload{Message: e.Message}
	}
}

// ProgressEvent builds a progress event.
func ProgressEvent(page, totalPages, quotesFound int, status string) Event {
	return Event{
		Type:        EventProgress,
		Page:        page,
		TotalPages:  totalPages,
		QuotesFound: quotesFound,
		Status:      status,
	}
}

// CompleteEvent builds a complete event.
func CompleteEvent(totalQuotes int) Event {
	return Event{Type: EventComplete, TotalQuotes: totalQuotes}
}

// ErrorEvent builds a terminal error event.
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}

// PageErrorEvent builds the non-terminal error reported when a page after the
// first fails.
func PageErrorEvent(page int, err error) Event {
	return Event{Type: EventError, Page: page, Message: fmt.Sprintf("Error on page %d: %v", page, err)}
}

// Terminal reports whether e ends a crawl stream.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || (e.Type == EventError && e.Page == 0)
}
