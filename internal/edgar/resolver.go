package edgar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"etfoverlap/pkg/contracts/domain"
)

// ErrNoFilingFound means a registrant has no qualifying N-PORT filing.
var ErrNoFilingFound = errors.New("no qualifying filing found")

// Fetcher is the transport the resolver retrieves index documents with.
// *Client satisfies it; tests substitute a stub.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Resolver maps a fund to its most recent N-PORT filing and from there
// to the filed XML document.
type Resolver struct {
	fetcher        Fetcher
	submissionsURL string
	archivesURL    string
	logger         *slog.Logger
}

// NewResolver creates a resolver on top of the given fetcher. Base URLs
// come from configuration so tests can point them at local servers.
func NewResolver(fetcher Fetcher, submissionsURL, archivesURL string, logger *slog.Logger) *Resolver {
	return &Resolver{
		fetcher:        fetcher,
		submissionsURL: strings.TrimSuffix(submissionsURL, "/"),
		archivesURL:    strings.TrimSuffix(archivesURL, "/"),
		logger:         logger.With(slog.String("component", "filing_resolver")),
	}
}

// submissionsDocument mirrors the EDGAR submissions JSON shape: the
// recent filings are column-oriented parallel arrays.
type submissionsDocument struct {
	Filings struct {
		Recent struct {
			Form            []string `json:"form"`
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
		} `json:"recent"`
	} `json:"filings"`
}

// Resolve returns the fund's most recent qualifying holdings filing.
// On equal filing dates the lexicographically greatest accession number
// wins; accession numbers are assigned monotonically, so this picks the
// later submission.
func (r *Resolver) Resolve(ctx context.Context, fund domain.Fund) (domain.FilingReference, error) {
	url := fmt.Sprintf("%s/submissions/CIK%s.json", r.submissionsURL, fund.PaddedCIK())

	body, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return domain.FilingReference{}, err
	}

	var doc submissionsDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return domain.FilingReference{}, fmt.Errorf("malformed submissions index for CIK %s: %w", fund.CIK, err)
	}

	recent := doc.Filings.Recent
	best := domain.FilingReference{}
	found := false

	for i, form := range recent.Form {
		if !domain.IsHoldingsReport(form) {
			continue
		}
		if i >= len(recent.AccessionNumber) || i >= len(recent.FilingDate) {
			continue
		}

		filingDate, err := time.Parse("2006-01-02", recent.FilingDate[i])
		if err != nil {
			r.logger.WarnContext(ctx, "skipping filing with unparseable date",
				slog.String("cik", fund.CIK),
				slog.String("filing_date", recent.FilingDate[i]),
			)
			continue
		}

		candidate := domain.FilingReference{
			CIK:             fund.PaddedCIK(),
			AccessionNumber: recent.AccessionNumber[i],
			FilingDate:      filingDate,
			FormType:        form,
		}

		if !found || candidate.FilingDate.After(best.FilingDate) ||
			(candidate.FilingDate.Equal(best.FilingDate) && candidate.AccessionNumber > best.AccessionNumber) {
			best = candidate
			found = true
		}
	}

	if !found {
		return domain.FilingReference{}, fmt.Errorf("cik %s: %w", fund.CIK, ErrNoFilingFound)
	}

	r.logger.InfoContext(ctx, "resolved holdings filing",
		slog.String("ticker", fund.Ticker),
		slog.String("accession", best.AccessionNumber),
		slog.String("form", best.FormType),
		slog.String("filed", best.FilingDate.Format("2006-01-02")),
	)

	return best, nil
}

// archiveIndex mirrors the per-accession index.json directory listing.
type archiveIndex struct {
	Directory struct {
		Item []struct {
			Name string `json:"name"`
		} `json:"item"`
	} `json:"directory"`
}

// DocumentURL locates the N-PORT XML inside the filing's archive
// directory. The primary XML usually carries "nport" in its name; when
// it does not, any XML file in the directory is accepted.
func (r *Resolver) DocumentURL(ctx context.Context, ref domain.FilingReference) (string, error) {
	accession := strings.ReplaceAll(ref.AccessionNumber, "-", "")
	base := fmt.Sprintf("%s/Archives/edgar/data/%s/%s", r.archivesURL, ref.CIK, accession)

	body, err := r.fetcher.Fetch(ctx, base+"/index.json")
	if err != nil {
		return "", err
	}

	var index archiveIndex
	if err := json.Unmarshal(body, &index); err != nil {
		return "", fmt.Errorf("malformed archive index for accession %s: %w", ref.AccessionNumber, err)
	}

	var fallback string
	for _, item := range index.Directory.Item {
		name := item.Name
		if !strings.HasSuffix(name, ".xml") {
			continue
		}
		if strings.Contains(strings.ToLower(name), "nport") {
			return base + "/" + name, nil
		}
		if fallback == "" {
			fallback = name
		}
	}

	if fallback != "" {
		return base + "/" + fallback, nil
	}

	return "", fmt.Errorf("accession %s has no XML document: %w", ref.AccessionNumber, ErrNoFilingFound)
}
