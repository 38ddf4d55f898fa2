package domain

// OverlappingHolding is a position held by both funds under comparison.
// Contribution is min(WeightA, WeightB), the share of the portfolios
// that is economically identical through this position.
type OverlappingHolding struct {
	Name         string  `json:"name"`
	CUSIP        string  `json:"cusip,omitempty"`
	WeightA      float64 `json:"weight_etf1"`
	WeightB      float64 `json:"weight_etf2"`
	Contribution float64 `json:"overlap_contribution"`
}

// OverlapResult is the derived comparison of two holdings snapshots.
// It is never persisted; OverlapPercentage is in [0, 100] and symmetric
// under swapping the two inputs.
type OverlapResult struct {
	TickerA             string               `json:"etf1_ticker"`
	TickerB             string               `json:"etf2_ticker"`
	NameA               string               `json:"etf1_name"`
	NameB               string               `json:"etf2_name"`
	OverlapPercentage   float64              `json:"overlap_percentage"`
	CommonHoldingsCount int                  `json:"common_holdings_count"`
	TotalHoldingsA      int                  `json:"etf1_total_holdings"`
	TotalHoldingsB      int                  `json:"etf2_total_holdings"`
	TopOverlapping      []OverlappingHolding `json:"top_overlapping"`
}
