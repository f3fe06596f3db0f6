package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubFlushesFullBatch(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{BufferSize: 8, MaxBatchEvents: 2, MaxBatchWait: time.Minute}, sink)
	defer func() { require.NoError(t, hub.Close(context.Background())) }()

	hub.Emit(sampleEvent(StageCrawlStart))
	hub.Emit(sampleEvent(StagePageDone))
	require.Eventually(t, func() bool {
		b := sink.Batches()
		return len(b) == 1 && len(b[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHubFlushesPartialBatchAfterWait(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 10, MaxBatchWait: 20 * time.Millisecond}, sink)
	defer func() { require.NoError(t, hub.Close(context.Background())) }()

	hub.Emit(sampleEvent(StageCrawlStart))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHubEmitDoesNotBlock(t *testing.T) {
	t.Parallel()

	hub := &Hub{events: make(chan Event), logger: zap.NewNop()}
	start := time.Now()
	hub.Emit(sampleEvent(StageCrawlStart))
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.EqualValues(t, 1, hub.Dropped())
}

func TestHubCloseFlushesAndClosesSinks(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 100, MaxBatchWait: time.Minute}, sink)
	hub.Emit(sampleEvent(StageCrawlDone))

	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
	require.True(t, sink.Closed())

	// emits after close are ignored and a second close is harmless
	hub.Emit(sampleEvent(StageCrawlStart))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{MaxBatchEvents: 1}, sink)
	hub.Emit(Event{Stage: StageCrawlStart})
	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
}

func TestNilHubIsSafe(t *testing.T) {
	var hub *Hub
	hub.Emit(sampleEvent(StageCrawlStart))
	require.NoError(t, hub.Close(context.Background()))
	require.Zero(t, hub.Dropped())
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	valid := sampleEvent(StagePageDone)
	require.NoError(t, valid.Validate())

	cases := map[string]func(*Event){
		"missing crawl id": func(e *Event) { e.CrawlID = [16]byte{} },
		"missing ts":       func(e *Event) { e.TS = time.Time{} },
		"missing work id":  func(e *Event) { e.WorkID = "" },
		"page stage no page": func(e *Event) {
			e.Page = 0
		},
		"unknown stage":     func(e *Event) { e.Stage = "FETCH" },
		"negative duration": func(e *Event) { e.Dur = -time.Second },
	}
	for name, mutate := range cases {
		evt := valid
		mutate(&evt)
		require.Error(t, evt.Validate(), name)
	}

	start := sampleEvent(StageCrawlStart)
	start.Page = 0
	require.NoError(t, start.Validate())
}

func TestEventTerminal(t *testing.T) {
	t.Parallel()

	require.True(t, sampleEvent(StageCrawlDone).Terminal())
	require.True(t, sampleEvent(StageCrawlError).Terminal())
	require.False(t, sampleEvent(StagePageError).Terminal())
}

func TestCrawlUUIDRoundTrip(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	evt := Event{CrawlID: UUIDToBytes(id)}
	require.Equal(t, id, evt.CrawlUUID())
}

type recordingSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
}

func (s *recordingSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *recordingSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]Event(nil), s.batches...)
}

func (s *recordingSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func sampleEvent(stage Stage) Event {
	return Event{
		CrawlID: UUIDToBytes(uuid.New()),
		TS:      time.Now(),
		Stage:   stage,
		WorkID:  "1473",
		Page:    1,
		Quotes:  3,
	}
}
