// Package overlap computes the holdings overlap between two funds.
package overlap

import (
	"math"
	"sort"
	"strings"

	"etfoverlap/pkg/contracts/domain"
)

// TopN is the number of overlapping positions included in a result.
const TopN = 10

// Compare computes the overlap between two holdings snapshots. Each
// matched position contributes min(weightA, weightB); the total is the
// percentage of the two portfolios that is economically identical.
// Swapping the inputs swaps only which fund is reported first: the
// percentage and count are symmetric. An empty snapshot yields zero
// overlap, not an error.
func Compare(a, b *domain.HoldingsSnapshot) domain.OverlapResult {
	byKey := make(map[string]domain.Holding, len(a.Holdings))
	for _, h := range a.Holdings {
		key := matchKey(h)
		if _, ok := byKey[key]; !ok {
			byKey[key] = h
		}
	}

	var matched []domain.OverlappingHolding
	total := 0.0
	seen := make(map[string]bool, len(b.Holdings))

	for _, hb := range b.Holdings {
		key := matchKey(hb)
		ha, ok := byKey[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true

		contribution := math.Min(ha.PctOfNetAssets, hb.PctOfNetAssets)
		total += contribution

		matched = append(matched, domain.OverlappingHolding{
			Name:         ha.Name,
			CUSIP:        ha.CUSIP,
			WeightA:      ha.PctOfNetAssets,
			WeightB:      hb.PctOfNetAssets,
			Contribution: round2(contribution),
		})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Contribution != matched[j].Contribution {
			return matched[i].Contribution > matched[j].Contribution
		}
		return matched[i].Name < matched[j].Name
	})

	top := matched
	if len(top) > TopN {
		top = top[:TopN]
	}
	if top == nil {
		top = []domain.OverlappingHolding{}
	}

	return domain.OverlapResult{
		TickerA:             a.Ticker,
		TickerB:             b.Ticker,
		NameA:               a.FundName,
		NameB:               b.FundName,
		OverlapPercentage:   round2(total),
		CommonHoldingsCount: len(matched),
		TotalHoldingsA:      len(a.Holdings),
		TotalHoldingsB:      len(b.Holdings),
		TopOverlapping:      top,
	}
}

// matchKey is the identity used to match positions across funds: the
// CUSIP when reported, else the case and whitespace folded name.
func matchKey(h domain.Holding) string {
	if h.CUSIP != "" {
		return "cusip:" + h.CUSIP
	}
	return "name:" + strings.ToUpper(strings.Join(strings.Fields(h.Name), " "))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
