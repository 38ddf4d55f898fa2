package nport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFiling = `<?xml version="1.0" encoding="UTF-8"?>
<edgarSubmission xmlns="http://www.sec.gov/edgar/nport">
  <formData>
    <genInfo>
      <repPdDate>2025-03-31</repPdDate>
    </genInfo>
    <invstOrSecs>
      <invstOrSec>
        <name>Apple Inc</name>
        <cusip>037833100</cusip>
        <valUSD>35000000.50</valUSD>
        <pctVal>7.12</pctVal>
      </invstOrSec>
      <invstOrSec>
        <name>Microsoft Corp</name>
        <cusip>594918104</cusip>
        <valUSD>30000000</valUSD>
        <pctVal>6.45</pctVal>
      </invstOrSec>
      <invstOrSec>
        <name>NVIDIA Corp</name>
        <cusip>67066G104</cusip>
        <valUSD>28000000</valUSD>
        <pctVal>6.45</pctVal>
      </invstOrSec>
    </invstOrSecs>
  </formData>
</edgarSubmission>`

func TestParseFiling(t *testing.T) {
	filing, err := ParseFiling([]byte(sampleFiling))
	require.NoError(t, err)

	assert.Equal(t, "2025-03-31", filing.AsOfDate)
	require.Len(t, filing.Holdings, 3)

	// Sorted by descending weight, ties broken by ascending name.
	assert.Equal(t, "Apple Inc", filing.Holdings[0].Name)
	assert.Equal(t, "037833100", filing.Holdings[0].CUSIP)
	assert.Equal(t, 7.12, filing.Holdings[0].PctOfNetAssets)
	require.NotNil(t, filing.Holdings[0].ValueUSD)
	assert.Equal(t, 35000000.50, *filing.Holdings[0].ValueUSD)

	assert.Equal(t, "Microsoft Corp", filing.Holdings[1].Name)
	assert.Equal(t, "NVIDIA Corp", filing.Holdings[2].Name)
}

func TestParseDeterminism(t *testing.T) {
	first, err := Parse([]byte(sampleFiling))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := Parse([]byte(sampleFiling))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestParseMergesDuplicateCUSIPs(t *testing.T) {
	doc := `<edgarSubmission>
  <formData>
    <invstOrSecs>
      <invstOrSec>
        <name>Apple Inc Lot 1</name>
        <cusip>037833100</cusip>
        <valUSD>1000</valUSD>
        <pctVal>2.0</pctVal>
      </invstOrSec>
      <invstOrSec>
        <name>Apple Inc Lot 2</name>
        <cusip>037833100</cusip>
        <valUSD>1500</valUSD>
        <pctVal>3.0</pctVal>
      </invstOrSec>
    </invstOrSecs>
  </formData>
</edgarSubmission>`

	holdings, err := Parse([]byte(doc))
	require.NoError(t, err)

	require.Len(t, holdings, 1)
	assert.Equal(t, "Apple Inc Lot 1", holdings[0].Name)
	assert.Equal(t, 5.0, holdings[0].PctOfNetAssets)
	require.NotNil(t, holdings[0].ValueUSD)
	assert.Equal(t, 2500.0, *holdings[0].ValueUSD)
}

func TestParseMergesByNameWithoutCUSIP(t *testing.T) {
	doc := `<edgarSubmission>
  <formData>
    <invstOrSecs>
      <invstOrSec>
        <name>Cash  Collateral</name>
        <cusip>N/A</cusip>
        <pctVal>1.0</pctVal>
      </invstOrSec>
      <invstOrSec>
        <name>CASH COLLATERAL</name>
        <cusip>000000000</cusip>
        <pctVal>0.5</pctVal>
      </invstOrSec>
    </invstOrSecs>
  </formData>
</edgarSubmission>`

	holdings, err := Parse([]byte(doc))
	require.NoError(t, err)

	require.Len(t, holdings, 1)
	assert.Equal(t, "", holdings[0].CUSIP)
	assert.Equal(t, 1.5, holdings[0].PctOfNetAssets)
}

func TestParseFieldDegradation(t *testing.T) {
	tests := []struct {
		name       string
		position   string
		wantName   string
		wantCUSIP  string
		wantWeight float64
	}{
		{
			name:       "missing pctVal defaults to zero weight",
			position:   `<name>Private Placement</name><cusip>12345678A</cusip>`,
			wantName:   "Private Placement",
			wantCUSIP:  "12345678A",
			wantWeight: 0,
		},
		{
			name:       "non-numeric pctVal defaults to zero weight",
			position:   `<name>Odd Position</name><cusip>12345678B</cusip><pctVal>n/a</pctVal>`,
			wantName:   "Odd Position",
			wantCUSIP:  "12345678B",
			wantWeight: 0,
		},
		{
			name:       "negative pctVal clamps to zero",
			position:   `<name>Short Position</name><cusip>12345678C</cusip><pctVal>-1.4</pctVal>`,
			wantName:   "Short Position",
			wantCUSIP:  "12345678C",
			wantWeight: 0,
		},
		{
			name:       "missing name falls back to title",
			position:   `<title>Treasury Note</title><cusip>12345678D</cusip><pctVal>2.0</pctVal>`,
			wantName:   "Treasury Note",
			wantCUSIP:  "12345678D",
			wantWeight: 2.0,
		},
		{
			name:       "missing name and title fall back to Unknown",
			position:   `<cusip>12345678E</cusip><pctVal>2.0</pctVal>`,
			wantName:   "Unknown",
			wantCUSIP:  "12345678E",
			wantWeight: 2.0,
		},
		{
			name:       "placeholder cusip folds to empty",
			position:   `<name>Cash</name><cusip>N/A</cusip><pctVal>0.3</pctVal>`,
			wantName:   "Cash",
			wantCUSIP:  "",
			wantWeight: 0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `<edgarSubmission><formData><invstOrSecs><invstOrSec>` +
				tt.position +
				`</invstOrSec></invstOrSecs></formData></edgarSubmission>`

			holdings, err := Parse([]byte(doc))
			require.NoError(t, err)
			require.Len(t, holdings, 1)

			assert.Equal(t, tt.wantName, holdings[0].Name)
			assert.Equal(t, tt.wantCUSIP, holdings[0].CUSIP)
			assert.Equal(t, tt.wantWeight, holdings[0].PctOfNetAssets)
		})
	}
}

func TestParseByteOrderMark(t *testing.T) {
	doc := append([]byte("\xef\xbb\xbf"), []byte(sampleFiling)...)

	filing, err := ParseFiling(doc)
	require.NoError(t, err)
	assert.Len(t, filing.Holdings, 3)
}

func TestParseNamespaceVariants(t *testing.T) {
	// The same document with and without a default namespace parses
	// identically.
	plain := `<edgarSubmission><formData><invstOrSecs><invstOrSec><name>Apple Inc</name><cusip>037833100</cusip><pctVal>7.0</pctVal></invstOrSec></invstOrSecs></formData></edgarSubmission>`
	namespaced := `<edgarSubmission xmlns="http://www.sec.gov/edgar/nport"><formData><invstOrSecs><invstOrSec><name>Apple Inc</name><cusip>037833100</cusip><pctVal>7.0</pctVal></invstOrSec></invstOrSecs></formData></edgarSubmission>`

	a, err := Parse([]byte(plain))
	require.NoError(t, err)
	b, err := Parse([]byte(namespaced))
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestParseMalformedDocument(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "truncated XML", doc: `<edgarSubmission><formData><invstOrSecs>`},
		{name: "not XML at all", doc: `{"this": "is json"}`},
		{name: "empty document", doc: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)

			var parseErr *ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestParseNoPositions(t *testing.T) {
	doc := `<edgarSubmission><formData><genInfo><repPdDate>2025-03-31</repPdDate></genInfo><invstOrSecs></invstOrSecs></formData></edgarSubmission>`

	filing, err := ParseFiling([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "2025-03-31", filing.AsOfDate)
	assert.Empty(t, filing.Holdings)
}
