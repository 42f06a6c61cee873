package universe

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SecurityRepository handles security database operations
type SecurityRepository struct {
	universeDB *sql.DB // universe.db - securities table
	log        zerolog.Logger
}

// securitiesColumns is the list of columns for the securities table.
// Used to avoid SELECT * which can break when the schema changes.
const securitiesColumns = `symbol, name, active, avg_volume, activation_score,
activated_at, deactivated_at, deactivation_reason`

// NewSecurityRepository creates a new security repository
func NewSecurityRepository(universeDB *sql.DB, log zerolog.Logger) *SecurityRepository {
	return &SecurityRepository{
		universeDB: universeDB,
		log:        log.With().Str("repo", "security").Logger(),
	}
}

// GetBySymbol returns a security by symbol, or nil when not found
func (r *SecurityRepository) GetBySymbol(symbol string) (*Security, error) {
	query := "SELECT " + securitiesColumns + " FROM securities WHERE symbol = ?"

	rows, err := r.universeDB.Query(query, normalizeSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to query security by symbol: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil // Security not found
	}

	security, err := scanSecurity(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan security: %w", err)
	}

	return &security, nil
}

// GetAllActive returns all active securities ordered by symbol.
// Only these are processed by the sync, labeling and analysis jobs.
func (r *SecurityRepository) GetAllActive() ([]Security, error) {
	query := "SELECT " + securitiesColumns + " FROM securities WHERE active = 1 ORDER BY symbol"
	return r.querySecurities(query)
}

// GetAll returns every security in the universe ordered by symbol
func (r *SecurityRepository) GetAll() ([]Security, error) {
	query := "SELECT " + securitiesColumns + " FROM securities ORDER BY symbol"
	return r.querySecurities(query)
}

// Upsert inserts or updates a security's reference data.
// Activation bookkeeping columns are left untouched on update.
func (r *SecurityRepository) Upsert(sec Security) error {
	query := `
		INSERT INTO securities (symbol, name, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name,
			updated_at = excluded.updated_at
	`

	if _, err := r.universeDB.Exec(query, normalizeSymbol(sec.Symbol), sec.Name); err != nil {
		return fmt.Errorf("failed to upsert security %s: %w", sec.Symbol, err)
	}

	return nil
}

// SetActivationScore stores the activation score and 20-day average volume for a security
func (r *SecurityRepository) SetActivationScore(symbol string, score float64, avgVolume int64) error {
	query := `
		UPDATE securities
		SET activation_score = ?, avg_volume = ?, updated_at = datetime('now')
		WHERE symbol = ?
	`

	if _, err := r.universeDB.Exec(query, score, avgVolume, normalizeSymbol(symbol)); err != nil {
		return fmt.Errorf("failed to update activation score for %s: %w", symbol, err)
	}

	return nil
}

// Activate marks a security as active, clearing any previous deactivation record
func (r *SecurityRepository) Activate(symbol string) error {
	query := `
		UPDATE securities
		SET active = 1,
		    activated_at = ?,
		    deactivated_at = NULL,
		    deactivation_reason = NULL,
		    updated_at = datetime('now')
		WHERE symbol = ?
	`

	today := time.Now().UTC().Format("2006-01-02")
	if _, err := r.universeDB.Exec(query, today, normalizeSymbol(symbol)); err != nil {
		return fmt.Errorf("failed to activate security %s: %w", symbol, err)
	}

	return nil
}

// Deactivate marks a security as inactive, recording the date and reason
func (r *SecurityRepository) Deactivate(symbol, reason string) error {
	query := `
		UPDATE securities
		SET active = 0,
		    deactivated_at = ?,
		    deactivation_reason = ?,
		    updated_at = datetime('now')
		WHERE symbol = ?
	`

	today := time.Now().UTC().Format("2006-01-02")
	if _, err := r.universeDB.Exec(query, today, reason, normalizeSymbol(symbol)); err != nil {
		return fmt.Errorf("failed to deactivate security %s: %w", symbol, err)
	}

	return nil
}

// querySecurities executes a query returning full security rows
func (r *SecurityRepository) querySecurities(query string, args ...interface{}) ([]Security, error) {
	rows, err := r.universeDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query securities: %w", err)
	}
	defer rows.Close()

	var securities []Security
	for rows.Next() {
		security, err := scanSecurity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security: %w", err)
		}
		securities = append(securities, security)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating securities: %w", err)
	}

	return securities, nil
}

// scanSecurity scans a single security row in securitiesColumns order
func scanSecurity(rows *sql.Rows) (Security, error) {
	var sec Security
	var active int
	var activatedAt, deactivatedAt, deactivationReason sql.NullString

	err := rows.Scan(
		&sec.Symbol,
		&sec.Name,
		&active,
		&sec.AvgVolume,
		&sec.ActivationScore,
		&activatedAt,
		&deactivatedAt,
		&deactivationReason,
	)
	if err != nil {
		return Security{}, err
	}

	sec.Active = active != 0
	if activatedAt.Valid {
		sec.ActivatedAt = &activatedAt.String
	}
	if deactivatedAt.Valid {
		sec.DeactivatedAt = &deactivatedAt.String
	}
	if deactivationReason.Valid {
		sec.DeactivationReason = &deactivationReason.String
	}

	return sec, nil
}

// normalizeSymbol uppercases and trims a symbol for consistent keying
func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
