package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the crawl milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageCrawlStart Stage = "CRAWL_START"
	StagePageDone   Stage = "PAGE_DONE"
	StagePageError  Stage = "PAGE_ERROR"
	StageCrawlDone  Stage = "CRAWL_DONE"
	StageCrawlError Stage = "CRAWL_ERROR"
)

// Event captures one milestone of a quote crawl.
type Event struct {
	// CrawlID uniquely identifies a crawl run using the 16-byte UUID form.
	CrawlID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// WorkID is the catalog work being crawled.
	WorkID string
	// Page is set on page stages.
	Page int
	// Quotes is the number of quotes on the page, or the crawl total on
	// CRAWL_DONE.
	Quotes int
	// Dur is the crawl runtime on terminal stages.
	Dur time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.CrawlID == [16]byte{} {
		return errors.New("crawl id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if e.WorkID == "" {
		return errors.New("work id is required")
	}
	switch e.Stage {
	case StageCrawlStart, StageCrawlDone, StageCrawlError:
	case StagePageDone, StagePageError:
		if e.Page < 1 {
			return fmt.Errorf("%s requires a page", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// Terminal reports whether the stage ends a crawl.
func (e Event) Terminal() bool {
	return e.Stage == StageCrawlDone || e.Stage == StageCrawlError
}

// CrawlUUID converts the binary crawl ID to uuid.UUID.
func (e Event) CrawlUUID() uuid.UUID {
	return uuid.UUID(e.CrawlID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
