package edgar

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etfoverlap/internal/shared/testutil"
	"etfoverlap/pkg/contracts/domain"
)

// stubFetcher serves canned responses by URL.
type stubFetcher struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if body, ok := f.responses[url]; ok {
		return []byte(body), nil
	}
	return nil, errors.New("unexpected url: " + url)
}

func newTestResolver(t *testing.T, fetcher *stubFetcher) *Resolver {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewResolver(fetcher, "https://data.example.test", "https://www.example.test", logger)
}

var testFund = domain.Fund{
	Ticker: "SPY",
	Name:   "SPDR S&P 500 ETF Trust",
	CIK:    "884394",
}

const submissionsURL = "https://data.example.test/submissions/CIK0000884394.json"

func TestResolvePicksLatestHoldingsFiling(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string]string{
		submissionsURL: `{
			"filings": {"recent": {
				"form":            ["10-K", "NPORT-P", "NPORT-P", "8-K"],
				"accessionNumber": ["0001-23-000001", "0001-23-000002", "0001-23-000003", "0001-23-000004"],
				"filingDate":      ["2025-05-01", "2025-01-15", "2025-04-20", "2025-06-01"]
			}}
		}`,
	}}

	resolver := newTestResolver(t, fetcher)

	ref, err := resolver.Resolve(context.Background(), testFund)
	require.NoError(t, err)

	assert.Equal(t, "0001-23-000003", ref.AccessionNumber)
	assert.Equal(t, "NPORT-P", ref.FormType)
	assert.Equal(t, "0000884394", ref.CIK)
	assert.Equal(t, "2025-04-20", ref.FilingDate.Format("2006-01-02"))
}

func TestResolveAmendedFilingsQualify(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string]string{
		submissionsURL: `{
			"filings": {"recent": {
				"form":            ["NPORT-P/A"],
				"accessionNumber": ["0001-23-000009"],
				"filingDate":      ["2025-04-20"]
			}}
		}`,
	}}

	resolver := newTestResolver(t, fetcher)

	ref, err := resolver.Resolve(context.Background(), testFund)
	require.NoError(t, err)
	assert.Equal(t, "NPORT-P/A", ref.FormType)
}

func TestResolveTieBreaksOnAccessionNumber(t *testing.T) {
	// Same filing date: the later accession number is the later
	// submission and wins.
	fetcher := &stubFetcher{responses: map[string]string{
		submissionsURL: `{
			"filings": {"recent": {
				"form":            ["NPORT-P", "NPORT-P"],
				"accessionNumber": ["0001-23-000005", "0001-23-000007"],
				"filingDate":      ["2025-04-20", "2025-04-20"]
			}}
		}`,
	}}

	resolver := newTestResolver(t, fetcher)

	ref, err := resolver.Resolve(context.Background(), testFund)
	require.NoError(t, err)
	assert.Equal(t, "0001-23-000007", ref.AccessionNumber)
}

func TestResolveSkipsUnparseableDates(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string]string{
		submissionsURL: `{
			"filings": {"recent": {
				"form":            ["NPORT-P", "NPORT-P"],
				"accessionNumber": ["0001-23-000001", "0001-23-000002"],
				"filingDate":      ["not-a-date", "2025-02-10"]
			}}
		}`,
	}}

	resolver := newTestResolver(t, fetcher)

	ref, err := resolver.Resolve(context.Background(), testFund)
	require.NoError(t, err)
	assert.Equal(t, "0001-23-000002", ref.AccessionNumber)
}

func TestResolveNoQualifyingFiling(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string]string{
		submissionsURL: `{
			"filings": {"recent": {
				"form":            ["10-K", "8-K"],
				"accessionNumber": ["0001-23-000001", "0001-23-000002"],
				"filingDate":      ["2025-05-01", "2025-06-01"]
			}}
		}`,
	}}

	resolver := newTestResolver(t, fetcher)

	_, err := resolver.Resolve(context.Background(), testFund)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoFilingFound)
}

func TestResolveMalformedSubmissionsIndex(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string]string{
		submissionsURL: `<html>blocked</html>`,
	}}

	resolver := newTestResolver(t, fetcher)

	_, err := resolver.Resolve(context.Background(), testFund)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoFilingFound)
}

func TestResolvePropagatesFetchErrors(t *testing.T) {
	fetchErr := &FetchError{URL: submissionsURL, Status: 503, Err: errors.New("unavailable")}
	fetcher := &stubFetcher{errs: map[string]error{submissionsURL: fetchErr}}

	resolver := newTestResolver(t, fetcher)

	_, err := resolver.Resolve(context.Background(), testFund)
	require.Error(t, err)

	var got *FetchError
	assert.ErrorAs(t, err, &got)
}

func TestDocumentURL(t *testing.T) {
	ref := domain.FilingReference{
		CIK:             "0000884394",
		AccessionNumber: "0001-23-000003",
		FormType:        "NPORT-P",
	}
	base := "https://www.example.test/Archives/edgar/data/0000884394/000123000003"

	tests := []struct {
		name    string
		index   string
		want    string
		wantErr error
	}{
		{
			name: "prefers xml named nport",
			index: `{"directory": {"item": [
				{"name": "primary_doc.html"},
				{"name": "other.xml"},
				{"name": "primary_doc_nport.xml"}
			]}}`,
			want: base + "/primary_doc_nport.xml",
		},
		{
			name: "falls back to first xml",
			index: `{"directory": {"item": [
				{"name": "filing.txt"},
				{"name": "alpha.xml"},
				{"name": "beta.xml"}
			]}}`,
			want: base + "/alpha.xml",
		},
		{
			name: "no xml document",
			index: `{"directory": {"item": [
				{"name": "filing.txt"},
				{"name": "index.html"}
			]}}`,
			wantErr: ErrNoFilingFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &stubFetcher{responses: map[string]string{
				base + "/index.json": tt.index,
			}}
			resolver := newTestResolver(t, fetcher)

			url, err := resolver.DocumentURL(context.Background(), ref)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, url)

			// Accession dashes are stripped in the archive path.
			require.Len(t, fetcher.calls, 1)
			assert.NotContains(t, fetcher.calls[0], "0001-23-000003")
		})
	}
}
