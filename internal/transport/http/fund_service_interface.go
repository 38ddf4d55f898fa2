package http

import (
	"context"

	"etfoverlap/pkg/contracts/domain"
)

// FundServiceInterface is what the funds handler needs from the service
// layer. *services.FundService satisfies it; tests substitute a mock.
type FundServiceInterface interface {
	ListFunds() []domain.Fund
	GetHoldings(ctx context.Context, ticker string) (*domain.HoldingsSnapshot, error)
	ComputeOverlap(ctx context.Context, tickerA, tickerB string) (*domain.OverlapResult, error)
}
