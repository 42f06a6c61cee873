package patterns

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/pivotscope/internal/database"
	"github.com/aristath/pivotscope/internal/modules/history"
)

// SubpatternRepository persists the subpattern library.
// The library has full-replace semantics only: each analysis run rebuilds it
// wholesale, never merging with prior-run data.
type SubpatternRepository struct {
	analysisDB *sql.DB // analysis.db - subpatterns table
	log        zerolog.Logger
}

// NewSubpatternRepository creates a new subpattern repository
func NewSubpatternRepository(analysisDB *sql.DB, log zerolog.Logger) *SubpatternRepository {
	return &SubpatternRepository{
		analysisDB: analysisDB,
		log:        log.With().Str("repo", "subpattern").Logger(),
	}
}

// ReplaceAll atomically swaps the library contents for the given records.
// Delete and reinsert happen inside one transaction; readers on a WAL snapshot
// never observe an empty table or a mix of two runs.
func (r *SubpatternRepository) ReplaceAll(records []Subpattern, runID string) error {
	return database.WithTransaction(r.analysisDB, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM subpatterns"); err != nil {
			return fmt.Errorf("failed to clear subpatterns: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO subpatterns (
				symbol, start_seq, end_seq, name,
				start_date, start_price, end_date, end_price,
				duration, end_return, max_return, min_return, volatility,
				dominant_label, embedding, run_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare subpattern insert: %w", err)
		}
		defer stmt.Close()

		for _, sp := range records {
			embedding, err := msgpack.Marshal(sp.Embedding)
			if err != nil {
				return fmt.Errorf("failed to encode embedding for %s: %w", sp.Symbol, err)
			}

			_, err = stmt.Exec(
				sp.Symbol, sp.StartSeq, sp.EndSeq, sp.Name,
				sp.StartDate, sp.StartPrice, sp.EndDate, sp.EndPrice,
				sp.Duration, sp.EndReturn, sp.MaxReturn, sp.MinReturn, sp.Volatility,
				string(sp.DominantLabel), embedding, runID,
			)
			if err != nil {
				return fmt.Errorf("failed to insert subpattern %s/%d-%d: %w", sp.Symbol, sp.StartSeq, sp.EndSeq, err)
			}
		}

		return nil
	})
}

// All returns the full library in one bulk fetch, ordered by symbol and start
// sequence. The matcher iterates this slice directly; library order is the
// documented tie-break for equal similarities.
func (r *SubpatternRepository) All() ([]Subpattern, error) {
	query := `
		SELECT symbol, start_seq, end_seq, name,
		       start_date, start_price, end_date, end_price,
		       duration, end_return, max_return, min_return, volatility,
		       dominant_label, embedding
		FROM subpatterns
		ORDER BY symbol, start_seq
	`

	rows, err := r.analysisDB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query subpatterns: %w", err)
	}
	defer rows.Close()

	var records []Subpattern
	for rows.Next() {
		var sp Subpattern
		var label string
		var embedding []byte

		err := rows.Scan(
			&sp.Symbol, &sp.StartSeq, &sp.EndSeq, &sp.Name,
			&sp.StartDate, &sp.StartPrice, &sp.EndDate, &sp.EndPrice,
			&sp.Duration, &sp.EndReturn, &sp.MaxReturn, &sp.MinReturn, &sp.Volatility,
			&label, &embedding,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subpattern: %w", err)
		}

		sp.DominantLabel = history.Label(label)
		if err := msgpack.Unmarshal(embedding, &sp.Embedding); err != nil {
			return nil, fmt.Errorf("failed to decode embedding for %s: %w", sp.Symbol, err)
		}

		records = append(records, sp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subpatterns: %w", err)
	}

	return records, nil
}

// Count returns the library size
func (r *SubpatternRepository) Count() (int, error) {
	var count int
	if err := r.analysisDB.QueryRow("SELECT COUNT(*) FROM subpatterns").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count subpatterns: %w", err)
	}
	return count, nil
}
