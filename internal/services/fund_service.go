// Package services exposes the holdings pipeline to the transport
// layer: fund listing, per-fund holdings, and overlap computation.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"etfoverlap/internal/overlap"
	"etfoverlap/internal/registry"
	"etfoverlap/pkg/contracts/domain"
)

// HoldingsProvider returns the current holdings snapshot for a fund.
// *cache.HoldingsCache satisfies it.
type HoldingsProvider interface {
	Get(ctx context.Context, fund domain.Fund) (*domain.HoldingsSnapshot, error)
}

// FundService is the facade the route layer talks to.
type FundService struct {
	registry *registry.Registry
	holdings HoldingsProvider
	logger   *slog.Logger
}

// NewFundService creates a fund service over the registry and cache.
func NewFundService(reg *registry.Registry, holdings HoldingsProvider, logger *slog.Logger) *FundService {
	return &FundService{
		registry: reg,
		holdings: holdings,
		logger:   logger.With(slog.String("component", "fund_service")),
	}
}

// ListFunds returns all supported funds ordered by ticker.
func (s *FundService) ListFunds() []domain.Fund {
	return s.registry.List()
}

// GetHoldings returns the holdings snapshot for a ticker, fetching and
// caching from EDGAR as needed.
func (s *FundService) GetHoldings(ctx context.Context, ticker string) (*domain.HoldingsSnapshot, error) {
	fund, ok := s.registry.Lookup(ticker)
	if !ok {
		return nil, fmt.Errorf("%q: %w", domain.NormalizeTicker(ticker), ErrUnknownTicker)
	}
	return s.holdings.Get(ctx, fund)
}

// ComputeOverlap compares the holdings of two funds. Both snapshots are
// fetched concurrently; each fetch is still coalesced per ticker by the
// cache and throttled by the shared EDGAR limiter.
func (s *FundService) ComputeOverlap(ctx context.Context, tickerA, tickerB string) (*domain.OverlapResult, error) {
	var snapA, snapB *domain.HoldingsSnapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapA, err = s.GetHoldings(gctx, tickerA)
		return err
	})
	g.Go(func() error {
		var err error
		snapB, err = s.GetHoldings(gctx, tickerB)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := overlap.Compare(snapA, snapB)

	s.logger.InfoContext(ctx, "overlap computed",
		slog.String("ticker_a", result.TickerA),
		slog.String("ticker_b", result.TickerB),
		slog.Float64("overlap_pct", result.OverlapPercentage),
		slog.Int("common_holdings", result.CommonHoldingsCount),
	)

	return &result, nil
}
