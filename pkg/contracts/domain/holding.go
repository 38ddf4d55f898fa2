package domain

import "time"

// Holding is a single reported position in a fund. CUSIP may be empty
// when the filing does not carry a standardized identifier; the weight
// is the position's percentage of net assets and is never negative.
type Holding struct {
	Name           string   `json:"name"`
	CUSIP          string   `json:"cusip,omitempty"`
	PctOfNetAssets float64  `json:"percentage" validate:"min=0"`
	ValueUSD       *float64 `json:"value,omitempty"`
}

// HoldingsSnapshot is the parsed holdings of one fund as of its latest
// filing. Holdings are ordered by descending weight and deduplicated by
// CUSIP. The snapshot is owned by the cache entry that created it;
// consumers must not mutate it.
type HoldingsSnapshot struct {
	Ticker    string    `json:"ticker"`
	FundName  string    `json:"name"`
	AsOfDate  string    `json:"as_of_date,omitempty"`
	Holdings  []Holding `json:"holdings"`
	FetchedAt time.Time `json:"fetched_at"`
}
