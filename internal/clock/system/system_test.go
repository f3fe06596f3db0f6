package system_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/quote-crawler/internal/clock/system"
	"github.com/JakeFAU/quote-crawler/internal/crawler"
)

var _ crawler.Clock = system.New()

func TestNowIsCurrentUTC(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC().Add(-time.Second)
	got := system.New().Now()
	after := time.Now().UTC().Add(time.Second)

	require.Equal(t, time.UTC, got.Location())
	require.WithinRange(t, got, before, after)
}
