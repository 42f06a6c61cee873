package history

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pivotscope/internal/clients/stooq"
	"github.com/aristath/pivotscope/internal/modules/universe"
)

type stubQuotes struct {
	latest  map[string]*stooq.Quote
	history map[string][]stooq.Quote
}

func (s stubQuotes) FetchLatest(symbol string) (*stooq.Quote, error) {
	quote, ok := s.latest[symbol]
	if !ok {
		return nil, errors.New("source unavailable")
	}
	return quote, nil
}

func (s stubQuotes) FetchDaily(symbol, fromDate string) ([]stooq.Quote, error) {
	quotes, ok := s.history[symbol]
	if !ok {
		return nil, errors.New("source unavailable")
	}
	return quotes, nil
}

type stubActive []universe.Security

func (s stubActive) GetAllActive() ([]universe.Security, error) {
	return s, nil
}

func TestSync(t *testing.T) {
	prices := setupPriceRepo(t)

	// AAPL already has history, so only its latest bar is fetched. NEWCO has
	// none and gets a full backfill. NODATA backfills to an empty window, and
	// DOWN is unknown to the source entirely.
	require.NoError(t, prices.Upsert(PriceBar{
		Symbol: "AAPL", Date: "2025-06-02",
		Open: 100, High: 103, Low: 99, Close: 102, Volume: 900_000,
	}))

	quotes := stubQuotes{
		latest: map[string]*stooq.Quote{
			"AAPL": {Date: "2025-06-03", Open: 102, High: 104, Low: 101.5, Close: 103.7, Volume: 980_000},
		},
		history: map[string][]stooq.Quote{
			"NEWCO": {
				{Date: "2025-06-02", Open: 10, High: 11, Low: 9.5, Close: 10.5, Volume: 50_000},
				{Date: "2025-06-03", Open: 10.5, High: 12, Low: 10, Close: 11.8, Volume: 61_000},
			},
			"NODATA": {},
		},
	}
	svc := NewSyncService(quotes, stubActive{
		{Symbol: "AAPL"}, {Symbol: "NEWCO"}, {Symbol: "NODATA"}, {Symbol: "DOWN"},
	}, prices, 730, zerolog.Nop())
	svc.pause = 0

	var calls []int
	svc.Progress = func(done, total int) {
		assert.Equal(t, 4, total)
		calls = append(calls, done)
	}

	result, err := svc.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Synced)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []int{1, 2, 3, 4}, calls)

	bar, err := prices.GetLatest("AAPL")
	require.NoError(t, err)
	require.NotNil(t, bar)
	assert.Equal(t, "2025-06-03", bar.Date)
	assert.Equal(t, 103.7, bar.Close)
	assert.Equal(t, int64(980_000), bar.Volume)

	backfilled, err := prices.GetSince("NEWCO", "")
	require.NoError(t, err)
	require.Len(t, backfilled, 2)
	assert.Equal(t, "2025-06-02", backfilled[0].Date)
	assert.Equal(t, 11.8, backfilled[1].Close)
}

func TestSync_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewSyncService(stubQuotes{}, stubActive{{Symbol: "AAPL"}}, setupPriceRepo(t), 730, zerolog.Nop())
	svc.pause = 0

	_, err := svc.Sync(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
