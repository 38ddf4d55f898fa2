package domain

import "strings"

// Fund represents one supported exchange-traded fund. Funds are loaded
// from the static registry at startup and never mutated afterwards.
type Fund struct {
	Ticker   string `json:"ticker" yaml:"ticker" validate:"required,min=1,max=10"`
	Name     string `json:"name" yaml:"name" validate:"required"`
	CIK      string `json:"cik" yaml:"cik" validate:"required,numeric"`
	SeriesID string `json:"series_id,omitempty" yaml:"series_id,omitempty"`
}

// NormalizeTicker folds a ticker symbol to its canonical uppercase form.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// PaddedCIK returns the CIK zero-padded to the 10 digits EDGAR URLs expect.
func (f Fund) PaddedCIK() string {
	cik := strings.TrimLeft(f.CIK, "0")
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}
