// Package cache holds parsed holdings snapshots per ticker with
// time-based expiry and single-flight refresh coalescing.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"etfoverlap/internal/edgar"
	"etfoverlap/internal/infrastructure"
	"etfoverlap/internal/nport"
	"etfoverlap/pkg/contracts/domain"
)

// Resolver locates the document for a fund's latest holdings filing.
// *edgar.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, fund domain.Fund) (domain.FilingReference, error)
	DocumentURL(ctx context.Context, ref domain.FilingReference) (string, error)
}

// entry is one immutable cache record. Expired entries are superseded
// by fresh ones, never mutated in place.
type entry struct {
	snapshot  *domain.HoldingsSnapshot
	expiresAt time.Time
}

// HoldingsCache is a concurrency-safe, TTL-bounded store of parsed
// holdings per ticker. On a miss it runs the resolve→fetch→parse
// pipeline exactly once per key regardless of how many callers are
// waiting, and never caches a failure.
type HoldingsCache struct {
	resolver Resolver
	fetcher  edgar.Fetcher
	ttl      time.Duration
	// refreshTimeout bounds a refresh independently of its callers: the
	// refresh keeps running for other waiters after any one caller
	// abandons it.
	refreshTimeout time.Duration
	logger         *slog.Logger
	metrics        *infrastructure.Metrics

	// now is injectable for expiry tests.
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
}

// New creates a holdings cache over the given pipeline collaborators.
func New(resolver Resolver, fetcher edgar.Fetcher, ttl, refreshTimeout time.Duration, logger *slog.Logger, metrics *infrastructure.Metrics) *HoldingsCache {
	return &HoldingsCache{
		resolver:       resolver,
		fetcher:        fetcher,
		ttl:            ttl,
		refreshTimeout: refreshTimeout,
		logger:         logger.With(slog.String("component", "holdings_cache")),
		metrics:        metrics,
		now:            time.Now,
		entries:        make(map[string]entry),
	}
}

// SetClock replaces the cache's time source. Test use only.
func (c *HoldingsCache) SetClock(now func() time.Time) {
	c.now = now
}

// Get returns the fund's holdings snapshot, refreshing from EDGAR when
// the cached entry is absent or expired. Concurrent callers for the
// same ticker share one refresh and receive the same snapshot or the
// same failure; a caller whose context ends while waiting gets its
// context error without aborting the shared refresh.
func (c *HoldingsCache) Get(ctx context.Context, fund domain.Fund) (*domain.HoldingsSnapshot, error) {
	key := fund.Ticker

	if snap, ok := c.lookup(key); ok {
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
		}
		return snap, nil
	}
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// A waiter queued behind a completed flight may find the entry
		// already fresh; skip the upstream round trip.
		if snap, ok := c.lookup(key); ok {
			return snap, nil
		}

		// The refresh is detached from the triggering caller so its
		// cancellation stays local; co-waiters and the cache itself
		// still get the result.
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()

		snap, err := c.refresh(refreshCtx, fund)
		if err != nil {
			if c.metrics != nil {
				c.metrics.CacheRefresh.WithLabelValues("error").Inc()
			}
			return nil, err
		}

		c.install(key, snap)
		if c.metrics != nil {
			c.metrics.CacheRefresh.WithLabelValues("ok").Inc()
		}
		return snap, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.HoldingsSnapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// lookup returns the snapshot for key when the entry exists and is
// still fresh. An expired entry is indistinguishable from an absent one.
func (c *HoldingsCache) lookup(key string) (*domain.HoldingsSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.snapshot, true
}

func (c *HoldingsCache) install(key string, snap *domain.HoldingsSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{snapshot: snap, expiresAt: c.now().Add(c.ttl)}
}

// refresh runs the resolve→fetch→parse pipeline for one fund.
func (c *HoldingsCache) refresh(ctx context.Context, fund domain.Fund) (*domain.HoldingsSnapshot, error) {
	start := c.now()

	ref, err := c.resolver.Resolve(ctx, fund)
	if err != nil {
		return nil, err
	}

	url, err := c.resolver.DocumentURL(ctx, ref)
	if err != nil {
		return nil, err
	}

	doc, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	filing, err := nport.ParseFiling(doc)
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "holdings refreshed",
		slog.String("ticker", fund.Ticker),
		slog.String("accession", ref.AccessionNumber),
		slog.Int("holdings", len(filing.Holdings)),
		slog.String("duration", c.now().Sub(start).String()),
	)

	return &domain.HoldingsSnapshot{
		Ticker:    fund.Ticker,
		FundName:  fund.Name,
		AsOfDate:  filing.AsOfDate,
		Holdings:  filing.Holdings,
		FetchedAt: c.now(),
	}, nil
}
