package market

import "math"

// Trend classifies the prevailing market direction handed to detectors.
type Trend string

const (
	TrendBullish Trend = "BULLISH"
	TrendBearish Trend = "BEARISH"
	TrendNeutral Trend = "NEUTRAL"
)

// Well-known macro indicator keys. A MacroSnapshot is free to carry others;
// modifiers reference indicators by name.
const (
	MacroVIX              = "vix"
	MacroFearGreedIndex   = "fear_greed_index"
	MacroDXY              = "dxy"
	MacroUS10YYield       = "us_10y_treasury_yield"
	MacroBuffettIndicator = "buffett_indicator"
	MacroSP500SMA200      = "sp500_sma_200"
)

// ReferenceSuffix is appended to an indicator name to look up the reference
// series value used by is_above / is_below conditions (e.g. the S&P 500 close
// vs its 200-day moving average).
const ReferenceSuffix = "_reference"

// MacroSnapshot is the named macro indicator value map available at one
// analysis timestamp. Missing keys are tolerated; affected modifiers skip.
type MacroSnapshot map[string]float64

// Lookup returns the value for an indicator name. NaN values are treated the
// same as missing keys.
func (m MacroSnapshot) Lookup(name string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	v, ok := m[name]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Reference returns the reference series value paired with an indicator.
func (m MacroSnapshot) Reference(name string) (float64, bool) {
	return m.Lookup(name + ReferenceSuffix)
}

// Trend classifies the prevailing market regime from the S&P 500 level
// relative to its 200-day moving average. Neutral when either is missing.
func (m MacroSnapshot) Trend() Trend {
	level, ok := m.Lookup(MacroSP500SMA200)
	if !ok {
		return TrendNeutral
	}
	sma, ok := m.Reference(MacroSP500SMA200)
	if !ok {
		return TrendNeutral
	}
	switch {
	case level > sma*1.005:
		return TrendBullish
	case level < sma*0.995:
		return TrendBearish
	}
	return TrendNeutral
}
