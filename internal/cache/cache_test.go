package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"etfoverlap/internal/shared/testutil"
	"etfoverlap/pkg/contracts/domain"
)

var testFund = domain.Fund{
	Ticker: "SPY",
	Name:   "SPDR S&P 500 ETF Trust",
	CIK:    "884394",
}

const testDocument = `<edgarSubmission>
  <formData>
    <genInfo><repPdDate>2025-03-31</repPdDate></genInfo>
    <invstOrSecs>
      <invstOrSec>
        <name>Apple Inc</name>
        <cusip>037833100</cusip>
        <pctVal>7.12</pctVal>
      </invstOrSec>
    </invstOrSecs>
  </formData>
</edgarSubmission>`

// fakePipeline implements both the Resolver and Fetcher collaborators
// and counts upstream round trips.
type fakePipeline struct {
	mu         sync.Mutex
	resolves   atomic.Int32
	fetches    atomic.Int32
	resolveErr error
	fetchErr   error
	document   string
	// block, when set, holds every fetch until released.
	block chan struct{}
}

func (f *fakePipeline) Resolve(_ context.Context, fund domain.Fund) (domain.FilingReference, error) {
	f.resolves.Add(1)
	f.mu.Lock()
	err := f.resolveErr
	f.mu.Unlock()
	if err != nil {
		return domain.FilingReference{}, err
	}
	return domain.FilingReference{
		CIK:             fund.PaddedCIK(),
		AccessionNumber: "0001-23-000003",
		FormType:        domain.FormTypeNPORT,
	}, nil
}

func (f *fakePipeline) DocumentURL(_ context.Context, ref domain.FilingReference) (string, error) {
	return "https://www.example.test/Archives/" + ref.AccessionNumber + "/doc.xml", nil
}

func (f *fakePipeline) Fetch(ctx context.Context, _ string) ([]byte, error) {
	f.fetches.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	doc := f.document
	if doc == "" {
		doc = testDocument
	}
	return []byte(doc), nil
}

func (f *fakePipeline) setFetchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

func newTestCache(t *testing.T, pipeline *fakePipeline, ttl time.Duration) *HoldingsCache {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return New(pipeline, pipeline, ttl, 5*time.Second, logger, nil)
}

func TestGetCachesSnapshot(t *testing.T) {
	pipeline := &fakePipeline{}
	cache := newTestCache(t, pipeline, time.Hour)

	first, err := cache.Get(context.Background(), testFund)
	require.NoError(t, err)
	assert.Equal(t, "SPY", first.Ticker)
	assert.Equal(t, "SPDR S&P 500 ETF Trust", first.FundName)
	assert.Equal(t, "2025-03-31", first.AsOfDate)
	require.Len(t, first.Holdings, 1)

	second, err := cache.Get(context.Background(), testFund)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// One resolve and one document fetch total.
	assert.Equal(t, int32(1), pipeline.resolves.Load())
	assert.Equal(t, int32(1), pipeline.fetches.Load())
}

func TestGetRefreshesAfterExpiry(t *testing.T) {
	pipeline := &fakePipeline{}
	cache := newTestCache(t, pipeline, time.Hour)

	now := time.Now()
	cache.SetClock(func() time.Time { return now })

	_, err := cache.Get(context.Background(), testFund)
	require.NoError(t, err)
	assert.Equal(t, int32(1), pipeline.fetches.Load())

	// Just inside the TTL: still served from cache.
	now = now.Add(time.Hour - time.Second)
	_, err = cache.Get(context.Background(), testFund)
	require.NoError(t, err)
	assert.Equal(t, int32(1), pipeline.fetches.Load())

	// At the TTL boundary the entry is expired.
	now = now.Add(time.Second)
	_, err = cache.Get(context.Background(), testFund)
	require.NoError(t, err)
	assert.Equal(t, int32(2), pipeline.fetches.Load())
}

func TestGetCoalescesConcurrentCallers(t *testing.T) {
	pipeline := &fakePipeline{block: make(chan struct{})}
	cache := newTestCache(t, pipeline, time.Hour)

	const callers = 20

	started := make(chan struct{}, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			started <- struct{}{}
			snap, err := cache.Get(context.Background(), testFund)
			if err != nil {
				return err
			}
			if len(snap.Holdings) != 1 {
				return errors.New("unexpected snapshot")
			}
			return nil
		})
	}

	for i := 0; i < callers; i++ {
		<-started
	}
	// Give the stragglers a moment to join the flight, then release it.
	time.Sleep(50 * time.Millisecond)
	close(pipeline.block)

	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), pipeline.fetches.Load())
	assert.Equal(t, int32(1), pipeline.resolves.Load())
}

func TestGetDoesNotCacheFailures(t *testing.T) {
	pipeline := &fakePipeline{}
	pipeline.setFetchErr(errors.New("edgar unavailable"))
	cache := newTestCache(t, pipeline, time.Hour)

	_, err := cache.Get(context.Background(), testFund)
	require.Error(t, err)

	// The failure is not retained: the next call hits upstream again and
	// succeeds.
	pipeline.setFetchErr(nil)
	snap, err := cache.Get(context.Background(), testFund)
	require.NoError(t, err)
	assert.Equal(t, "SPY", snap.Ticker)
	assert.Equal(t, int32(2), pipeline.fetches.Load())
}

func TestGetResolveFailurePropagates(t *testing.T) {
	sentinel := errors.New("no filing")
	pipeline := &fakePipeline{resolveErr: sentinel}
	cache := newTestCache(t, pipeline, time.Hour)

	_, err := cache.Get(context.Background(), testFund)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
}

func TestGetAbandonedCallerDoesNotAbortRefresh(t *testing.T) {
	pipeline := &fakePipeline{block: make(chan struct{})}
	cache := newTestCache(t, pipeline, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := cache.Get(ctx, testFund)
		errCh <- err
	}()

	// Wait for the refresh to be in flight, then abandon the caller.
	require.Eventually(t, func() bool {
		return pipeline.fetches.Load() == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	require.ErrorIs(t, <-errCh, context.Canceled)

	// The refresh runs on a detached context: releasing it lets it
	// complete and install the entry for later callers.
	close(pipeline.block)

	require.Eventually(t, func() bool {
		snap, err := cache.Get(context.Background(), testFund)
		return err == nil && snap != nil && pipeline.fetches.Load() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestGetPerTickerIsolation(t *testing.T) {
	pipeline := &fakePipeline{}
	cache := newTestCache(t, pipeline, time.Hour)

	other := domain.Fund{Ticker: "QQQ", Name: "Invesco QQQ Trust", CIK: "1067839"}

	_, err := cache.Get(context.Background(), testFund)
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), other)
	require.NoError(t, err)

	assert.Equal(t, int32(2), pipeline.fetches.Load())
}
