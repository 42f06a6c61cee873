package universe

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// BreakpointRepository handles breakpoint database operations.
// Breakpoints are created by an external analytical process and are immutable once
// written; this repository only appends and reads.
type BreakpointRepository struct {
	universeDB *sql.DB // universe.db - breakpoints table
	log        zerolog.Logger
}

// NewBreakpointRepository creates a new breakpoint repository
func NewBreakpointRepository(universeDB *sql.DB, log zerolog.Logger) *BreakpointRepository {
	return &BreakpointRepository{
		universeDB: universeDB,
		log:        log.With().Str("repo", "breakpoint").Logger(),
	}
}

// GetBySymbol returns all breakpoints for a security ascending by sequence number
func (r *BreakpointRepository) GetBySymbol(symbol string) ([]Breakpoint, error) {
	query := `
		SELECT symbol, seq, date, price
		FROM breakpoints
		WHERE symbol = ?
		ORDER BY seq ASC
	`

	rows, err := r.universeDB.Query(query, normalizeSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to query breakpoints: %w", err)
	}
	defer rows.Close()

	var breakpoints []Breakpoint
	for rows.Next() {
		var bp Breakpoint
		if err := rows.Scan(&bp.Symbol, &bp.Seq, &bp.Date, &bp.Price); err != nil {
			return nil, fmt.Errorf("failed to scan breakpoint: %w", err)
		}
		breakpoints = append(breakpoints, bp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating breakpoints: %w", err)
	}

	return breakpoints, nil
}

// GetLatest returns the most recent breakpoint for a security (highest sequence
// number), or nil when the security has none. This breakpoint opens the security's
// current open interval.
func (r *BreakpointRepository) GetLatest(symbol string) (*Breakpoint, error) {
	query := `
		SELECT symbol, seq, date, price
		FROM breakpoints
		WHERE symbol = ?
		ORDER BY seq DESC
		LIMIT 1
	`

	var bp Breakpoint
	err := r.universeDB.QueryRow(query, normalizeSymbol(symbol)).
		Scan(&bp.Symbol, &bp.Seq, &bp.Date, &bp.Price)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest breakpoint: %w", err)
	}

	return &bp, nil
}

// Add appends a new breakpoint. The sequence number must be greater than any
// existing sequence number for the security.
func (r *BreakpointRepository) Add(bp Breakpoint) error {
	latest, err := r.GetLatest(bp.Symbol)
	if err != nil {
		return err
	}
	if latest != nil && bp.Seq <= latest.Seq {
		return fmt.Errorf("breakpoint seq %d for %s is not after latest seq %d", bp.Seq, bp.Symbol, latest.Seq)
	}

	query := `INSERT INTO breakpoints (symbol, seq, date, price) VALUES (?, ?, ?, ?)`
	if _, err := r.universeDB.Exec(query, normalizeSymbol(bp.Symbol), bp.Seq, bp.Date, bp.Price); err != nil {
		return fmt.Errorf("failed to insert breakpoint: %w", err)
	}

	return nil
}
