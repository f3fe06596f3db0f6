package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/quote-crawler/internal/progress"
)

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))

	id := uuid.New()
	crawl := progress.UUIDToBytes(id)
	batch := []progress.Event{
		{CrawlID: crawl, TS: time.Now(), Stage: progress.StageCrawlStart, WorkID: "1473"},
		{CrawlID: crawl, TS: time.Now(), Stage: progress.StagePageDone, WorkID: "1473", Page: 1, Quotes: 30},
		{CrawlID: crawl, TS: time.Now(), Stage: progress.StagePageError, WorkID: "1473", Page: 2, Note: "boom"},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.NoError(t, sink.Close(context.Background()))

	entries := logs.All()
	require.Len(t, entries, 3)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, zapcore.DebugLevel, entries[1].Level)
	require.Equal(t, zapcore.WarnLevel, entries[2].Level)

	fields := entries[2].ContextMap()
	require.Equal(t, id.String(), fields["crawl_id"])
	require.Equal(t, int64(2), fields["page"])
	require.Equal(t, "boom", fields["note"])
}
