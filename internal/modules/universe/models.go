package universe

// Security represents a security tracked by the system.
// Activation bookkeeping (active flag, score, activation/deactivation dates and reason)
// is maintained by the activation service; everything else is immutable reference data.
type Security struct {
	Symbol             string  `json:"symbol"`
	Name               string  `json:"name"`
	Active             bool    `json:"active"`
	AvgVolume          int64   `json:"avg_volume"`
	ActivationScore    float64 `json:"activation_score"`
	ActivatedAt        *string `json:"activated_at,omitempty"`
	DeactivatedAt      *string `json:"deactivated_at,omitempty"`
	DeactivationReason *string `json:"deactivation_reason,omitempty"`
}

// Breakpoint is an analyst-identified pivot (date, price) that opens a new tracked
// interval for a security. Sequence numbers are strictly increasing per security and
// define the interval order. Breakpoints are immutable once created.
type Breakpoint struct {
	Symbol string  `json:"symbol"`
	Seq    int     `json:"seq"`
	Date   string  `json:"date"` // YYYY-MM-DD
	Price  float64 `json:"price"`
}
