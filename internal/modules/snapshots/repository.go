package snapshots

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/pivotscope/internal/modules/history"
)

// Repository persists monthly snapshots in universe.db
type Repository struct {
	universeDB *sql.DB
	log        zerolog.Logger
}

// NewRepository creates a new snapshot repository
func NewRepository(universeDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		universeDB: universeDB,
		log:        log.With().Str("repo", "snapshots").Logger(),
	}
}

// Upsert inserts or refreshes the snapshot for (symbol, month).
// Re-running within the same month overwrites that month's record.
func (r *Repository) Upsert(s Snapshot) error {
	query := `
		INSERT INTO monthly_snapshots (
			symbol, snapshot_month, name, mean_buy_price, latest_close,
			deviation_pct, label, score, breakpoint_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, snapshot_month) DO UPDATE SET
			name = excluded.name,
			mean_buy_price = excluded.mean_buy_price,
			latest_close = excluded.latest_close,
			deviation_pct = excluded.deviation_pct,
			label = excluded.label,
			score = excluded.score,
			breakpoint_date = excluded.breakpoint_date
	`

	_, err := r.universeDB.Exec(query,
		s.Symbol, s.Month, s.Name, s.MeanBuyPrice, s.LatestClose,
		s.DeviationPct, string(s.Label), s.Score, s.BreakpointDate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot %s/%s: %w", s.Symbol, s.Month, err)
	}
	return nil
}

// GetByMonth returns all snapshots for a month, best deviation first
func (r *Repository) GetByMonth(month string) ([]Snapshot, error) {
	query := `
		SELECT symbol, snapshot_month, name, mean_buy_price, latest_close,
		       deviation_pct, label, score, breakpoint_date
		FROM monthly_snapshots
		WHERE snapshot_month = ?
		ORDER BY deviation_pct ASC
	`

	rows, err := r.universeDB.Query(query, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots for %s: %w", month, err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		var label string
		err := rows.Scan(&s.Symbol, &s.Month, &s.Name, &s.MeanBuyPrice, &s.LatestClose,
			&s.DeviationPct, &label, &s.Score, &s.BreakpointDate)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.Label = history.Label(label)
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}

// GetBySymbol returns one security's snapshot trail, newest month first
func (r *Repository) GetBySymbol(symbol string) ([]Snapshot, error) {
	query := `
		SELECT symbol, snapshot_month, name, mean_buy_price, latest_close,
		       deviation_pct, label, score, breakpoint_date
		FROM monthly_snapshots
		WHERE symbol = ?
		ORDER BY snapshot_month DESC
	`

	rows, err := r.universeDB.Query(query, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots for %s: %w", symbol, err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		var label string
		err := rows.Scan(&s.Symbol, &s.Month, &s.Name, &s.MeanBuyPrice, &s.LatestClose,
			&s.DeviationPct, &label, &s.Score, &s.BreakpointDate)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.Label = history.Label(label)
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}
