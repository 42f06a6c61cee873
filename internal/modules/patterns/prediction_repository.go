package patterns

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/pivotscope/internal/database"
	"github.com/aristath/pivotscope/internal/modules/history"
)

// predictionColumns is the canonical column list for prediction queries
const predictionColumns = `symbol, name, breakpoint_seq, breakpoint_date, breakpoint_price,
	elapsed_days, unrealized_return, latest_close, current_label,
	match_count, mean_expected_return, min_expected_return, max_expected_return,
	mean_max_return, mean_duration, score, confidence,
	buy1, buy2, buy3, buy4, buy5, mean_buy_price,
	target_price, target_return, recommendation, similars, run_id`

// PredictionRepository persists per-security forecasts in analysis.db
type PredictionRepository struct {
	analysisDB *sql.DB
	log        zerolog.Logger
}

// NewPredictionRepository creates a new prediction repository
func NewPredictionRepository(analysisDB *sql.DB, log zerolog.Logger) *PredictionRepository {
	return &PredictionRepository{
		analysisDB: analysisDB,
		log:        log.With().Str("repo", "prediction").Logger(),
	}
}

// ReplaceAll swaps the full prediction set in one transaction
func (r *PredictionRepository) ReplaceAll(predictions []Prediction) error {
	return database.WithTransaction(r.analysisDB, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM predictions"); err != nil {
			return fmt.Errorf("failed to clear predictions: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO predictions (` + predictionColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare prediction insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range predictions {
			similars, err := json.Marshal(p.Similars)
			if err != nil {
				return fmt.Errorf("failed to encode similars for %s: %w", p.Symbol, err)
			}

			_, err = stmt.Exec(
				p.Symbol, p.Name, p.BreakpointSeq, p.BreakpointDate, p.BreakpointPrice,
				p.ElapsedDays, p.UnrealizedReturn, p.LatestClose, string(p.CurrentLabel),
				p.MatchCount, p.MeanExpectedReturn, p.MinExpectedReturn, p.MaxExpectedReturn,
				p.MeanMaxReturn, p.MeanDuration, p.Score, p.Confidence,
				p.BuyPrices[0], p.BuyPrices[1], p.BuyPrices[2], p.BuyPrices[3], p.BuyPrices[4],
				p.MeanBuyPrice, p.TargetPrice, p.TargetReturn, string(p.Recommendation), string(similars), p.RunID,
			)
			if err != nil {
				return fmt.Errorf("failed to insert prediction for %s: %w", p.Symbol, err)
			}
		}

		return nil
	})
}

// All returns every stored prediction ordered by score descending
func (r *PredictionRepository) All() ([]Prediction, error) {
	query := fmt.Sprintf("SELECT %s FROM predictions ORDER BY score DESC, symbol", predictionColumns)

	rows, err := r.analysisDB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var predictions []Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating predictions: %w", err)
	}

	return predictions, nil
}

// GetBySymbol returns the prediction for one security, or nil when absent
func (r *PredictionRepository) GetBySymbol(symbol string) (*Prediction, error) {
	query := fmt.Sprintf("SELECT %s FROM predictions WHERE symbol = ?", predictionColumns)

	rows, err := r.analysisDB.Query(query, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction for %s: %w", symbol, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	p, err := scanPrediction(rows)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPrediction(rows *sql.Rows) (Prediction, error) {
	var p Prediction
	var currentLabel, recommendation, similars string

	err := rows.Scan(
		&p.Symbol, &p.Name, &p.BreakpointSeq, &p.BreakpointDate, &p.BreakpointPrice,
		&p.ElapsedDays, &p.UnrealizedReturn, &p.LatestClose, &currentLabel,
		&p.MatchCount, &p.MeanExpectedReturn, &p.MinExpectedReturn, &p.MaxExpectedReturn,
		&p.MeanMaxReturn, &p.MeanDuration, &p.Score, &p.Confidence,
		&p.BuyPrices[0], &p.BuyPrices[1], &p.BuyPrices[2], &p.BuyPrices[3], &p.BuyPrices[4],
		&p.MeanBuyPrice, &p.TargetPrice, &p.TargetReturn, &recommendation, &similars, &p.RunID,
	)
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to scan prediction: %w", err)
	}

	p.CurrentLabel = history.Label(currentLabel)
	p.Recommendation = Recommendation(recommendation)
	if err := json.Unmarshal([]byte(similars), &p.Similars); err != nil {
		return Prediction{}, fmt.Errorf("failed to decode similars for %s: %w", p.Symbol, err)
	}

	return p, nil
}
