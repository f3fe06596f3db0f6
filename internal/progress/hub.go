package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config controls buffering and batching for the Hub.
//   - BufferSize: capacity of the intake channel (default 1024).
//   - MaxBatchEvents: flush once this many events are pending (default 256).
//   - MaxBatchWait: flush a partial batch after this long (default 250ms).
//   - SinkTimeout: deadline for each sink call (default 5s).
type Config struct {
	BufferSize     int
	MaxBatchEvents int
	MaxBatchWait   time.Duration
	SinkTimeout    time.Duration
	Logger         *zap.Logger
}

const (
	defaultBufferSize     = 1024
	defaultMaxBatchEvents = 256
	defaultMaxBatchWait   = 250 * time.Millisecond
	defaultSinkTimeout    = 5 * time.Second
	dropLogInterval       = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.MaxBatchEvents <= 0 {
		c.MaxBatchEvents = defaultMaxBatchEvents
	}
	if c.MaxBatchWait <= 0 {
		c.MaxBatchWait = defaultMaxBatchWait
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = defaultSinkTimeout
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Hub fans crawl events out to sinks from a single background goroutine.
// Emit never blocks: when the buffer is full the event is dropped and counted.
type Hub struct {
	cfg    Config
	sinks  []Sink
	events chan Event
	stop   chan struct{}
	done   chan struct{}
	logger *zap.Logger

	dropped  atomic.Int64
	lastWarn atomic.Int64
	closed   atomic.Bool

	closeOnce sync.Once
	closeCtx  context.Context
}

// NewHub starts a Hub that delivers to sinks.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	cfg = cfg.withDefaults()
	h := &Hub{
		cfg:    cfg,
		sinks:  append([]Sink(nil), sinks...),
		events: make(chan Event, cfg.BufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: cfg.Logger.Named("progress"),
	}
	go h.loop()
	return h
}

// Emit queues evt. Invalid events and events emitted after Close are ignored.
func (h *Hub) Emit(evt Event) {
	if h == nil || h.closed.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	select {
	case h.events <- evt:
	default:
		total := h.dropped.Add(1)
		h.warnDropped(total)
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (h *Hub) Dropped() int64 {
	if h == nil {
		return 0
	}
	return h.dropped.Load()
}

func (h *Hub) warnDropped(total int64) {
	now := time.Now().UnixNano()
	last := h.lastWarn.Load()
	if now-last < dropLogInterval.Nanoseconds() || !h.lastWarn.CompareAndSwap(last, now) {
		return
	}
	h.logger.Warn("progress events dropped due to backpressure", zap.Int64("dropped_total", total))
}

// Close stops intake, flushes pending events, closes every sink, and waits
// for the background goroutine or ctx, whichever comes first. Repeated calls
// only wait.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closeCtx = ctx
		h.closed.Store(true)
		close(h.stop)
	})
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress hub close: %w", ctx.Err())
	}
}

func (h *Hub) loop() {
	defer close(h.done)

	pending := make([]Event, 0, h.cfg.MaxBatchEvents)
	var timer *time.Timer
	var deadline <-chan time.Time

	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, deadline = nil, nil
		}
		if len(pending) == 0 {
			return
		}
		h.deliver(pending)
		pending = pending[:0]
	}

	for {
		select {
		case evt := <-h.events:
			pending = append(pending, evt)
			if len(pending) >= h.cfg.MaxBatchEvents {
				flush()
			} else if timer == nil {
				timer = time.NewTimer(h.cfg.MaxBatchWait)
				deadline = timer.C
			}
		case <-deadline:
			timer, deadline = nil, nil
			flush()
		case <-h.stop:
			for {
				select {
				case evt := <-h.events:
					pending = append(pending, evt)
					if len(pending) >= h.cfg.MaxBatchEvents {
						flush()
					}
					continue
				default:
				}
				break
			}
			flush()
			h.closeSinks()
			return
		}
	}
}

func (h *Hub) deliver(batch []Event) {
	out := append([]Event(nil), batch...)
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, out); err != nil {
			h.logger.Warn("progress sink consume failed", zap.Error(err))
		}
		cancel()
	}
}

func (h *Hub) closeSinks() {
	ctx := h.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("progress sink close failed", zap.Error(err))
		}
	}
}
