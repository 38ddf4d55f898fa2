// Package nport parses SEC N-PORT filing XML into normalized holdings.
// Parsing is pure and deterministic: no I/O, and the same document bytes
// always produce the same ordered output.
package nport

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"etfoverlap/pkg/contracts/domain"
)

// ParseError means the document was not well-formed enough to iterate.
// Missing or irregular fields inside an iterable document never raise
// it; those degrade per field instead.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("nport parse failed: %s: %v", e.Reason, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Filing is the parsed content of one N-PORT document.
type Filing struct {
	AsOfDate string
	Holdings []domain.Holding
}

// document maps the N-PORT XML shape. Field tags carry no namespace so
// the decoder matches local names across the namespace variants EDGAR
// has used over time.
type document struct {
	GenInfo struct {
		RepPdDate string `xml:"repPdDate"`
	} `xml:"formData>genInfo"`
	Positions []position `xml:"formData>invstOrSecs>invstOrSec"`
}

type position struct {
	Name   string `xml:"name"`
	Title  string `xml:"title"`
	CUSIP  string `xml:"cusip"`
	PctVal string `xml:"pctVal"`
	ValUSD string `xml:"valUSD"`
}

// Parse extracts the normalized holdings of an N-PORT document, sorted
// by descending weight with ties broken by ascending name.
func Parse(doc []byte) ([]domain.Holding, error) {
	filing, err := ParseFiling(doc)
	if err != nil {
		return nil, err
	}
	return filing.Holdings, nil
}

// ParseFiling is Parse plus the filing's report period date.
func ParseFiling(doc []byte) (Filing, error) {
	// EDGAR documents occasionally arrive with a UTF-8 BOM or leading
	// whitespace that the XML decoder rejects.
	doc = bytes.TrimSpace(bytes.TrimPrefix(doc, []byte("\xef\xbb\xbf")))

	var parsed document
	if err := xml.Unmarshal(doc, &parsed); err != nil {
		return Filing{}, &ParseError{Reason: "document is not well-formed XML", Err: err}
	}

	// Positions reported in multiple lots share a CUSIP and are merged
	// by summing weights; identifier-less positions merge by name so a
	// snapshot never carries duplicate matching keys.
	merged := make(map[string]*domain.Holding, len(parsed.Positions))
	order := make([]string, 0, len(parsed.Positions))

	for _, pos := range parsed.Positions {
		holding := pos.toHolding()
		key := "cusip:" + holding.CUSIP
		if holding.CUSIP == "" {
			key = "name:" + foldName(holding.Name)
		}

		if existing, ok := merged[key]; ok {
			existing.PctOfNetAssets += holding.PctOfNetAssets
			existing.ValueUSD = sumValues(existing.ValueUSD, holding.ValueUSD)
			continue
		}
		h := holding
		merged[key] = &h
		order = append(order, key)
	}

	holdings := make([]domain.Holding, 0, len(order))
	for _, key := range order {
		holdings = append(holdings, *merged[key])
	}

	sort.SliceStable(holdings, func(i, j int) bool {
		if holdings[i].PctOfNetAssets != holdings[j].PctOfNetAssets {
			return holdings[i].PctOfNetAssets > holdings[j].PctOfNetAssets
		}
		return holdings[i].Name < holdings[j].Name
	})

	return Filing{
		AsOfDate: strings.TrimSpace(parsed.GenInfo.RepPdDate),
		Holdings: holdings,
	}, nil
}

func (p position) toHolding() domain.Holding {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = strings.TrimSpace(p.Title)
	}
	if name == "" {
		name = "Unknown"
	}

	weight := 0.0
	if v, err := strconv.ParseFloat(strings.TrimSpace(p.PctVal), 64); err == nil && v > 0 {
		weight = v
	}

	var value *float64
	if v, err := strconv.ParseFloat(strings.TrimSpace(p.ValUSD), 64); err == nil {
		value = &v
	}

	return domain.Holding{
		Name:           name,
		CUSIP:          normalizeCUSIP(p.CUSIP),
		PctOfNetAssets: weight,
		ValueUSD:       value,
	}
}

// normalizeCUSIP folds a reported CUSIP to its canonical form. Funds
// use placeholder values for positions without one.
func normalizeCUSIP(cusip string) string {
	c := strings.ToUpper(strings.TrimSpace(cusip))
	switch c {
	case "", "N/A", "000000000":
		return ""
	}
	return c
}

// foldName is the case and whitespace insensitive form of a holding
// name used as a matching key when no CUSIP is reported.
func foldName(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}

func sumValues(a, b *float64) *float64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	sum := *a + *b
	return &sum
}
