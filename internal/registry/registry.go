// Package registry holds the static set of supported funds. The
// registry is supplied by configuration, not discovered at runtime: a
// built-in fund list is embedded in the binary and can be replaced
// wholesale by pointing the config at a YAML file of the same shape.
package registry

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v2"

	"etfoverlap/pkg/contracts/domain"
)

//go:embed funds.yaml
var embeddedFunds []byte

// Registry is an immutable ticker → fund lookup table.
type Registry struct {
	byTicker map[string]domain.Fund
	ordered  []domain.Fund
}

type fundsFile struct {
	Funds []domain.Fund `yaml:"funds"`
}

// Load builds a registry from the embedded fund list, or from path when
// it is non-empty.
func Load(path string) (*Registry, error) {
	data := embeddedFunds
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read fund registry %s: %w", path, err)
		}
	}
	return parse(data)
}

func parse(data []byte) (*Registry, error) {
	var file fundsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse fund registry: %w", err)
	}
	if len(file.Funds) == 0 {
		return nil, fmt.Errorf("fund registry is empty")
	}

	byTicker := make(map[string]domain.Fund, len(file.Funds))
	for _, f := range file.Funds {
		f.Ticker = domain.NormalizeTicker(f.Ticker)
		if f.Ticker == "" || f.CIK == "" {
			return nil, fmt.Errorf("fund registry entry missing ticker or cik: %+v", f)
		}
		if _, dup := byTicker[f.Ticker]; dup {
			return nil, fmt.Errorf("duplicate ticker %s in fund registry", f.Ticker)
		}
		byTicker[f.Ticker] = f
	}

	ordered := make([]domain.Fund, 0, len(byTicker))
	for _, f := range byTicker {
		ordered = append(ordered, f)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Ticker < ordered[j].Ticker })

	return &Registry{byTicker: byTicker, ordered: ordered}, nil
}

// Lookup returns the fund for a ticker. The ticker is normalized before
// lookup, so callers may pass any case.
func (r *Registry) Lookup(ticker string) (domain.Fund, bool) {
	f, ok := r.byTicker[domain.NormalizeTicker(ticker)]
	return f, ok
}

// List returns all supported funds ordered by ticker.
func (r *Registry) List() []domain.Fund {
	out := make([]domain.Fund, len(r.ordered))
	copy(out, r.ordered)
	return out
}
