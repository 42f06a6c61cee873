package history

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// PriceRepository handles daily price database operations
type PriceRepository struct {
	historyDB *sql.DB // history.db - daily_prices table
	log       zerolog.Logger
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(historyDB *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		historyDB: historyDB,
		log:       log.With().Str("repo", "price").Logger(),
	}
}

// Upsert inserts or updates one daily bar keyed by (symbol, date).
// Re-running ingestion for the same day is idempotent; the label column is
// preserved on update since labeling runs as a separate pass.
func (r *PriceRepository) Upsert(bar PriceBar) error {
	query := `
		INSERT INTO daily_prices (symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume
	`

	_, err := r.historyDB.Exec(query, bar.Symbol, bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	if err != nil {
		return fmt.Errorf("failed to upsert price bar %s/%s: %w", bar.Symbol, bar.Date, err)
	}

	return nil
}

// GetSince returns all bars for a symbol with date >= fromDate, ascending by date.
// Pass an empty fromDate for the full history.
func (r *PriceRepository) GetSince(symbol, fromDate string) ([]PriceBar, error) {
	query := `
		SELECT symbol, date, open, high, low, close, volume, pattern
		FROM daily_prices
		WHERE symbol = ? AND date >= ?
		ORDER BY date ASC
	`

	rows, err := r.historyDB.Query(query, symbol, fromDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var bars []PriceBar
	for rows.Next() {
		var bar PriceBar
		var label string
		if err := rows.Scan(&bar.Symbol, &bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume, &label); err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}
		bar.Label = Label(label)
		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return bars, nil
}

// GetRange returns bars with fromDate <= date <= toDate, ascending by date
func (r *PriceRepository) GetRange(symbol, fromDate, toDate string) ([]PriceBar, error) {
	query := `
		SELECT symbol, date, open, high, low, close, volume, pattern
		FROM daily_prices
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := r.historyDB.Query(query, symbol, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var bars []PriceBar
	for rows.Next() {
		var bar PriceBar
		var label string
		if err := rows.Scan(&bar.Symbol, &bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume, &label); err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}
		bar.Label = Label(label)
		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return bars, nil
}

// GetLatest returns the most recent bar for a symbol, or nil when no history exists
func (r *PriceRepository) GetLatest(symbol string) (*PriceBar, error) {
	query := `
		SELECT symbol, date, open, high, low, close, volume, pattern
		FROM daily_prices
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT 1
	`

	var bar PriceBar
	var label string
	err := r.historyDB.QueryRow(query, symbol).
		Scan(&bar.Symbol, &bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume, &label)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest price: %w", err)
	}

	bar.Label = Label(label)
	return &bar, nil
}

// GetEarliest returns the oldest stored bar for a symbol, or nil when no history exists
func (r *PriceRepository) GetEarliest(symbol string) (*PriceBar, error) {
	query := `
		SELECT symbol, date, open, high, low, close, volume, pattern
		FROM daily_prices
		WHERE symbol = ?
		ORDER BY date ASC
		LIMIT 1
	`

	var bar PriceBar
	var label string
	err := r.historyDB.QueryRow(query, symbol).
		Scan(&bar.Symbol, &bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume, &label)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query earliest price: %w", err)
	}

	bar.Label = Label(label)
	return &bar, nil
}

// GetRecentVolumes returns up to limit most recent daily volumes for a symbol,
// ascending by date (oldest first, ready for moving-average input)
func (r *PriceRepository) GetRecentVolumes(symbol string, limit int) ([]float64, error) {
	query := `
		SELECT volume FROM (
			SELECT date, volume
			FROM daily_prices
			WHERE symbol = ?
			ORDER BY date DESC
			LIMIT ?
		) ORDER BY date ASC
	`

	rows, err := r.historyDB.Query(query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent volumes: %w", err)
	}
	defer rows.Close()

	var volumes []float64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan volume: %w", err)
		}
		volumes = append(volumes, float64(v))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating volumes: %w", err)
	}

	return volumes, nil
}

// SetLabel stores the pattern label for one bar
func (r *PriceRepository) SetLabel(symbol, date string, label Label) error {
	query := `UPDATE daily_prices SET pattern = ? WHERE symbol = ? AND date = ?`

	if _, err := r.historyDB.Exec(query, string(label), symbol, date); err != nil {
		return fmt.Errorf("failed to set label for %s/%s: %w", symbol, date, err)
	}

	return nil
}

// HasAnyData reports whether any daily bar exists at all.
// Used by the analysis run's nothing-to-compute guard.
func (r *PriceRepository) HasAnyData() (bool, error) {
	var one int
	err := r.historyDB.QueryRow("SELECT 1 FROM daily_prices LIMIT 1").Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check for price data: %w", err)
	}
	return true, nil
}
