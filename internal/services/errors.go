package services

import (
	"errors"

	"etfoverlap/internal/edgar"
)

// Fund service errors
var (
	// ErrUnknownTicker means the ticker is not in the fund registry.
	ErrUnknownTicker = errors.New("fund ticker not found")

	// ErrNoFilingFound re-exports the resolver sentinel so the
	// transport layer maps every pipeline error in one place.
	ErrNoFilingFound = edgar.ErrNoFilingFound
)
