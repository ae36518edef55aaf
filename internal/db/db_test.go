package db

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ace-status/internal/feed"
)

type passthrough struct{ calls []string }

func (p *passthrough) Fetch(_ context.Context, service string) (feed.Records, error) {
	p.calls = append(p.calls, service)
	return feed.Records{}, nil
}

func TestStopSourcePassesOtherFeedsThrough(t *testing.T) {
	next := &passthrough{}
	src := NewStopSource(nil, next)

	_, err := src.Fetch(context.Background(), feed.FeedVehicles)
	require.NoError(t, err)
	assert.Equal(t, []string{feed.FeedVehicles}, next.calls)
}

func TestStopSourceReadsStopsTable(t *testing.T) {
	dsn := os.Getenv("STOPS_DATABASE_URL")
	if dsn == "" {
		t.Skip("STOPS_DATABASE_URL not set - skipping integration test")
	}
	conn, err := Open(dsn)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, Ping(context.Background(), conn))

	recs, err := NewStopSource(conn, &passthrough{}).Fetch(context.Background(), feed.FeedStops)
	require.NoError(t, err)

	stops := feed.DecodeStops(recs)
	assert.Len(t, stops, len(recs), "every row decodes as a feed stop")
	for _, s := range stops {
		assert.NotEmpty(t, s.ID)
	}
}
