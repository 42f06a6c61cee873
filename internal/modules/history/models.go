package history

// Label classifies a trading day's close against the reference levels derived from
// the breakpoint prices preceding its interval. Assigned by the labeling classifier.
type Label string

const (
	LabelBreakout         Label = "breakout"          // close above the highest prior breakpoint
	LabelBreakoutPullback Label = "breakout_pullback" // close above the second-highest
	LabelRange            Label = "range"             // close above the median
	LabelBreakdown        Label = "breakdown"         // close at or above the minimum
	LabelCollapse         Label = "collapse"          // close below every prior breakpoint
	LabelNone             Label = ""                  // not yet classified
)

// AllLabels is the closed label set
var AllLabels = []Label{
	LabelBreakout,
	LabelBreakoutPullback,
	LabelRange,
	LabelBreakdown,
	LabelCollapse,
}

// PriceBar is one daily OHLCV bar for a security
type PriceBar struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"` // YYYY-MM-DD
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
	Label  Label   `json:"label,omitempty"`
}
