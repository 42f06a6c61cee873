package patterns

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pivotscope/internal/database"
	"github.com/aristath/pivotscope/internal/modules/history"
	"github.com/aristath/pivotscope/internal/modules/universe"
)

type analysisFixture struct {
	securityRepo   *universe.SecurityRepository
	breakpointRepo *universe.BreakpointRepository
	priceRepo      *history.PriceRepository
	subpatternRepo *SubpatternRepository
	predictionRepo *PredictionRepository
	service        *AnalysisService
}

func setupAnalysisFixture(t *testing.T) *analysisFixture {
	t.Helper()

	dir := t.TempDir()
	open := func(name string, profile database.Profile) *database.DB {
		db, err := database.New(database.Config{
			Path:    filepath.Join(dir, name+".db"),
			Profile: profile,
			Name:    name,
		})
		require.NoError(t, err)
		require.NoError(t, db.Migrate())
		t.Cleanup(func() { db.Close() })
		return db
	}

	universeDB := open("universe", database.ProfileStandard)
	historyDB := open("history", database.ProfileStandard)
	analysisDB := open("analysis", database.ProfileCache)

	log := zerolog.Nop()
	f := &analysisFixture{
		securityRepo:   universe.NewSecurityRepository(universeDB.Conn(), log),
		breakpointRepo: universe.NewBreakpointRepository(universeDB.Conn(), log),
		priceRepo:      history.NewPriceRepository(historyDB.Conn(), log),
		subpatternRepo: NewSubpatternRepository(analysisDB.Conn(), log),
		predictionRepo: NewPredictionRepository(analysisDB.Conn(), log),
	}
	f.service = NewAnalysisService(
		f.securityRepo, f.breakpointRepo, f.priceRepo,
		f.subpatternRepo, f.predictionRepo, 730, log,
	)
	// Pin the clock so the extraction cutoff is stable relative to seeded dates
	f.service.now = func() time.Time {
		return time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	}
	return f
}

// seedRampSecurity activates a security with a linear close ramp over 25
// trading days and breakpoints opening intervals at bars 0, 10 and 18
func (f *analysisFixture) seedRampSecurity(t *testing.T, symbol string) {
	t.Helper()

	require.NoError(t, f.securityRepo.Upsert(universe.Security{Symbol: symbol, Name: symbol + " Corp"}))
	require.NoError(t, f.securityRepo.Activate(symbol))

	dates := tradingDates("2025-03-03", 25)

	for i, date := range dates {
		require.NoError(t, f.priceRepo.Upsert(history.PriceBar{
			Symbol: symbol,
			Date:   date,
			Close:  100 + float64(i),
			Volume: 500_000,
		}))
	}

	for seq, barIdx := range []int{0, 10, 18} {
		require.NoError(t, f.breakpointRepo.Add(universe.Breakpoint{
			Symbol: symbol,
			Seq:    seq + 1,
			Date:   dates[barIdx],
			Price:  100 + float64(barIdx),
		}))
	}
}

func TestAnalysisRun_EndToEnd(t *testing.T) {
	f := setupAnalysisFixture(t)

	symbols := []string{"ALFA", "BRVO", "CHLI", "DLTA", "ECHO", "FOXT"}
	for _, symbol := range symbols {
		f.seedRampSecurity(t, symbol)
	}

	// Active but without breakpoints: no library contribution, skipped in forecasting
	require.NoError(t, f.securityRepo.Upsert(universe.Security{Symbol: "GOLF", Name: "Golf Corp"}))
	require.NoError(t, f.securityRepo.Activate("GOLF"))

	result, err := f.service.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, result.Securities)
	assert.Equal(t, 12, result.Subpatterns) // two closed intervals per ramp security
	assert.Equal(t, 6, result.Predictions)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Failed)
	assert.NotEmpty(t, result.RunID)

	library, err := f.subpatternRepo.All()
	require.NoError(t, err)
	require.Len(t, library, 12)

	predictions, err := f.predictionRepo.All()
	require.NoError(t, err)
	require.Len(t, predictions, 6)

	p, err := f.predictionRepo.GetBySymbol("ALFA")
	require.NoError(t, err)
	require.NotNil(t, p)

	// Every ramp matches every library entry perfectly
	assert.Equal(t, 12, p.MatchCount)
	assert.Equal(t, 60, p.Confidence)
	assert.Equal(t, result.RunID, p.RunID)
	assert.Equal(t, 3, p.BreakpointSeq)
	assert.Equal(t, 118.0, p.BreakpointPrice)
	assert.Equal(t, 124.0, p.LatestClose)

	// Mean end return across the library is ~8.64%, with 12 matches and no
	// label or unrealized-return bonus: 10 + 20 = 30, the watch floor
	assert.Equal(t, 30, p.Score)
	assert.Equal(t, RecommendWatch, p.Recommendation)
}

func TestAnalysisRun_NoActiveSecurities(t *testing.T) {
	f := setupAnalysisFixture(t)

	_, err := f.service.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active securities")
}

func TestAnalysisRun_NoPriceHistory(t *testing.T) {
	f := setupAnalysisFixture(t)

	require.NoError(t, f.securityRepo.Upsert(universe.Security{Symbol: "ALFA", Name: "Alfa Corp"}))
	require.NoError(t, f.securityRepo.Activate("ALFA"))

	_, err := f.service.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no price history loaded")
}

func TestAnalysisRun_NoBreakpoints(t *testing.T) {
	f := setupAnalysisFixture(t)

	require.NoError(t, f.securityRepo.Upsert(universe.Security{Symbol: "ALFA", Name: "Alfa Corp"}))
	require.NoError(t, f.securityRepo.Activate("ALFA"))
	require.NoError(t, f.priceRepo.Upsert(history.PriceBar{
		Symbol: "ALFA", Date: "2025-03-03", Close: 100, Volume: 500_000,
	}))

	_, err := f.service.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable breakpoint data")
}

func TestAnalysisRun_ExtractionBoundedByLookback(t *testing.T) {
	f := setupAnalysisFixture(t)

	for _, symbol := range []string{"ALFA", "BRVO", "CRLY", "DLTA", "ECHO"} {
		f.seedRampSecurity(t, symbol)
	}

	// OLDC's entire breakpoint history closed years before the lookback window
	require.NoError(t, f.securityRepo.Upsert(universe.Security{Symbol: "OLDC", Name: "Old Corp"}))
	require.NoError(t, f.securityRepo.Activate("OLDC"))

	dates := tradingDates("2020-03-02", 25)
	for i, date := range dates {
		require.NoError(t, f.priceRepo.Upsert(history.PriceBar{
			Symbol: "OLDC",
			Date:   date,
			Close:  100 + float64(i),
			Volume: 500_000,
		}))
	}
	for seq, barIdx := range []int{0, 10, 22} {
		require.NoError(t, f.breakpointRepo.Add(universe.Breakpoint{
			Symbol: "OLDC",
			Seq:    seq + 1,
			Date:   dates[barIdx],
			Price:  100 + float64(barIdx),
		}))
	}

	result, err := f.service.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, result.Subpatterns)
	assert.Equal(t, 5, result.Predictions)
	assert.Equal(t, 1, result.Skipped)

	subpatterns, err := f.subpatternRepo.All()
	require.NoError(t, err)
	for _, sp := range subpatterns {
		assert.NotEqual(t, "OLDC", sp.Symbol)
	}

	pred, err := f.predictionRepo.GetBySymbol("OLDC")
	require.NoError(t, err)
	assert.Nil(t, pred)
}

func TestAnalysisRun_SmallLibrarySkipsForecasting(t *testing.T) {
	f := setupAnalysisFixture(t)

	// Two securities contribute four subpatterns, below the forecasting minimum
	f.seedRampSecurity(t, "ALFA")
	f.seedRampSecurity(t, "BRVO")

	// Stale predictions from an earlier run must be cleared, not left behind
	require.NoError(t, f.predictionRepo.ReplaceAll([]Prediction{testPrediction("STALE", 80)}))

	result, err := f.service.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, result.Subpatterns)
	assert.Equal(t, 0, result.Predictions)

	predictions, err := f.predictionRepo.All()
	require.NoError(t, err)
	assert.Empty(t, predictions)
}
