// Package snapshots records a monthly trail of securities trading near their
// forecast buy zone, so entry opportunities can be reviewed after the fact even
// though predictions themselves are replaced every run.
package snapshots

import "github.com/aristath/pivotscope/internal/modules/history"

// Snapshot is one security's monthly buy-zone record, keyed (Symbol, Month)
type Snapshot struct {
	Symbol         string        `json:"symbol"`
	Month          string        `json:"month"` // YYYY-MM
	Name           string        `json:"name"`
	MeanBuyPrice   float64       `json:"mean_buy_price"`
	LatestClose    float64       `json:"latest_close"`
	DeviationPct   float64       `json:"deviation_pct"` // Close vs mean buy price, percent
	Label          history.Label `json:"label"`
	Score          int           `json:"score"`
	BreakpointDate string        `json:"breakpoint_date"`
}
