package history

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pivotscope/internal/database"
)

func setupPriceRepo(t *testing.T) *PriceRepository {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "history.db"),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	return NewPriceRepository(db.Conn(), zerolog.Nop())
}

func seedBars(t *testing.T, repo *PriceRepository, symbol string, bars ...PriceBar) {
	t.Helper()
	for _, bar := range bars {
		bar.Symbol = symbol
		require.NoError(t, repo.Upsert(bar))
	}
}

func TestUpsert_IdempotentAndPreservesLabel(t *testing.T) {
	repo := setupPriceRepo(t)

	bar := PriceBar{Symbol: "AAPL", Date: "2025-06-02", Open: 100, High: 104, Low: 99, Close: 103, Volume: 900_000}
	require.NoError(t, repo.Upsert(bar))
	require.NoError(t, repo.SetLabel("AAPL", "2025-06-02", LabelBreakout))

	// A later ingestion revises the prices but must not wipe the label
	bar.Close = 103.5
	bar.Volume = 950_000
	require.NoError(t, repo.Upsert(bar))

	got, err := repo.GetLatest("AAPL")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, 103.5, got.Close)
	assert.Equal(t, int64(950_000), got.Volume)
	assert.Equal(t, LabelBreakout, got.Label)

	has, err := repo.HasAnyData()
	require.NoError(t, err)
	assert.True(t, has)
}

func TestGetSince(t *testing.T) {
	repo := setupPriceRepo(t)
	seedBars(t, repo, "AAPL",
		PriceBar{Date: "2025-06-04", Close: 103},
		PriceBar{Date: "2025-06-02", Close: 101},
		PriceBar{Date: "2025-06-03", Close: 102},
	)
	seedBars(t, repo, "MSFT", PriceBar{Date: "2025-06-02", Close: 400})

	bars, err := repo.GetSince("AAPL", "2025-06-03")
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, "2025-06-03", bars[0].Date)
	assert.Equal(t, "2025-06-04", bars[1].Date)

	all, err := repo.GetSince("AAPL", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetRange(t *testing.T) {
	repo := setupPriceRepo(t)
	seedBars(t, repo, "AAPL",
		PriceBar{Date: "2025-06-02", Close: 101},
		PriceBar{Date: "2025-06-03", Close: 102},
		PriceBar{Date: "2025-06-04", Close: 103},
	)

	bars, err := repo.GetRange("AAPL", "2025-06-02", "2025-06-03")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "2025-06-02", bars[0].Date)
	assert.Equal(t, "2025-06-03", bars[1].Date)
}

func TestGetEarliestAndLatest(t *testing.T) {
	repo := setupPriceRepo(t)

	earliest, err := repo.GetEarliest("AAPL")
	require.NoError(t, err)
	assert.Nil(t, earliest)

	latest, err := repo.GetLatest("AAPL")
	require.NoError(t, err)
	assert.Nil(t, latest)

	seedBars(t, repo, "AAPL",
		PriceBar{Date: "2025-06-03", Close: 102},
		PriceBar{Date: "2025-06-02", Close: 101},
		PriceBar{Date: "2025-06-04", Close: 103},
	)

	earliest, err = repo.GetEarliest("AAPL")
	require.NoError(t, err)
	require.NotNil(t, earliest)
	assert.Equal(t, "2025-06-02", earliest.Date)

	latest, err = repo.GetLatest("AAPL")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2025-06-04", latest.Date)
}

func TestGetRecentVolumes(t *testing.T) {
	repo := setupPriceRepo(t)
	seedBars(t, repo, "AAPL",
		PriceBar{Date: "2025-06-02", Close: 101, Volume: 100},
		PriceBar{Date: "2025-06-03", Close: 102, Volume: 200},
		PriceBar{Date: "2025-06-04", Close: 103, Volume: 300},
		PriceBar{Date: "2025-06-05", Close: 104, Volume: 400},
	)

	// Most recent bars, returned oldest-first
	volumes, err := repo.GetRecentVolumes("AAPL", 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{200, 300, 400}, volumes)

	volumes, err = repo.GetRecentVolumes("AAPL", 10)
	require.NoError(t, err)
	assert.Len(t, volumes, 4)
}
