package detector

import (
	"fmt"

	"github.com/hadoobidoop/stock-tracker/internal/indicator"
	"github.com/hadoobidoop/stock-tracker/internal/market"
)

func init() {
	Register("sma_cross", func(weight float64, params map[string]float64) Detector {
		return &SMACrossDetector{
			weight:     weight,
			fastPeriod: int(param(params, "fast_period", 5)),
			slowPeriod: int(param(params, "slow_period", 20)),
			adxPeriod:  int(param(params, "adx_period", 14)),
			adxStrong:  param(params, "adx_strong", 25),
			adxWeak:    param(params, "adx_weak", 20),
		}
	})
	Register("macd_cross", func(weight float64, params map[string]float64) Detector {
		return &MACDCrossDetector{weight: weight}
	})
	Register("adx", func(weight float64, params map[string]float64) Detector {
		return &ADXDetector{
			weight:    weight,
			adxPeriod: int(param(params, "adx_period", 14)),
			strong:    param(params, "adx_strong", 25),
		}
	})
}

// SMACrossDetector scores golden/dead crosses of a fast over a slow moving
// average, gated by ADX trend strength: strong trends amplify the cross,
// weak trends dampen it, and an established trend without a fresh cross
// contributes a reduced continuation score.
type SMACrossDetector struct {
	weight     float64
	fastPeriod int
	slowPeriod int
	adxPeriod  int
	adxStrong  float64
	adxWeak    float64
}

func (d *SMACrossDetector) Name() string { return "sma" }

func (d *SMACrossDetector) Dependencies() []string {
	return []string{
		indicator.SMAName(d.fastPeriod),
		indicator.SMAName(d.slowPeriod),
		indicator.ADXName(d.adxPeriod),
	}
}

const continuationFactor = 0.4

func (d *SMACrossDetector) Detect(table *market.IndicatorTable, asOf int, trend market.Trend) Result {
	deps := d.Dependencies()
	if missing, ok := ready(table, asOf, deps); !ok {
		return insufficient(d.Name(), missing)
	}

	fastPrev, _ := table.Value(deps[0], asOf-1)
	fastNow, _ := table.Value(deps[0], asOf)
	slowPrev, _ := table.Value(deps[1], asOf-1)
	slowNow, _ := table.Value(deps[1], asOf)
	adx, _ := table.Value(deps[2], asOf)

	adj := adjustFor(trend)
	goldenCross := fastPrev < slowPrev && fastNow > slowNow
	deadCross := fastPrev > slowPrev && fastNow < slowNow

	var result Result
	switch {
	case goldenCross:
		score := d.weight * adj.trendFollowBuy * d.adxFactor(adx)
		result.BuyScore = score
		result.Evidence = append(result.Evidence, Fact{
			Indicator: deps[0], Value: fastNow, Contribution: score,
			Note: fmt.Sprintf("golden cross above %s (ADX %.1f)", deps[1], adx),
		})
	case deadCross:
		score := d.weight * adj.trendFollowSell * d.adxFactor(adx)
		result.SellScore = score
		result.Evidence = append(result.Evidence, Fact{
			Indicator: deps[0], Value: fastNow, Contribution: score,
			Note: fmt.Sprintf("dead cross below %s (ADX %.1f)", deps[1], adx),
		})
	case fastNow > slowNow && adx >= d.adxWeak:
		score := d.weight * adj.trendFollowBuy * continuationFactor
		if adx >= d.adxStrong {
			score *= 1.2
		}
		result.BuyScore = score
		result.Evidence = append(result.Evidence, Fact{
			Indicator: deps[0], Value: fastNow, Contribution: score,
			Note: fmt.Sprintf("uptrend continuation (ADX %.1f)", adx),
		})
	case fastNow < slowNow && adx >= d.adxWeak:
		score := d.weight * adj.trendFollowSell * continuationFactor
		if adx >= d.adxStrong {
			score *= 1.2
		}
		result.SellScore = score
		result.Evidence = append(result.Evidence, Fact{
			Indicator: deps[0], Value: fastNow, Contribution: score,
			Note: fmt.Sprintf("downtrend continuation (ADX %.1f)", adx),
		})
	}
	return result
}

func (d *SMACrossDetector) adxFactor(adx float64) float64 {
	switch {
	case adx >= d.adxStrong:
		return 1.2
	case adx < d.adxWeak:
		return 0.8
	default:
		return 1.0
	}
}

// MACDCrossDetector scores the MACD line crossing its signal line.
type MACDCrossDetector struct {
	weight float64
}

func (d *MACDCrossDetector) Name() string { return "macd" }

func (d *MACDCrossDetector) Dependencies() []string {
	return []string{indicator.ColMACD, indicator.ColMACDSig}
}

func (d *MACDCrossDetector) Detect(table *market.IndicatorTable, asOf int, trend market.Trend) Result {
	if missing, ok := ready(table, asOf, d.Dependencies()); !ok {
		return insufficient(d.Name(), missing)
	}

	macdPrev, _ := table.Value(indicator.ColMACD, asOf-1)
	macdNow, _ := table.Value(indicator.ColMACD, asOf)
	sigPrev, _ := table.Value(indicator.ColMACDSig, asOf-1)
	sigNow, _ := table.Value(indicator.ColMACDSig, asOf)

	adj := adjustFor(trend)
	var result Result
	if macdPrev < sigPrev && macdNow > sigNow {
		score := d.weight * adj.trendFollowBuy
		// Crosses below the zero line are weaker confirmations.
		if macdNow < 0 {
			score *= 0.8
		}
		result.BuyScore = score
		result.Evidence = append(result.Evidence, Fact{
			Indicator: indicator.ColMACD, Value: macdNow, Contribution: score,
			Note: "MACD crossed above signal line",
		})
	} else if macdPrev > sigPrev && macdNow < sigNow {
		score := d.weight * adj.trendFollowSell
		if macdNow > 0 {
			score *= 0.8
		}
		result.SellScore = score
		result.Evidence = append(result.Evidence, Fact{
			Indicator: indicator.ColMACD, Value: macdNow, Contribution: score,
			Note: "MACD crossed below signal line",
		})
	}
	return result
}

// ADXDetector gates on trend strength: a rising ADX above the strong
// threshold confirms whichever direction the price trend points.
type ADXDetector struct {
	weight    float64
	adxPeriod int
	strong    float64
}

func (d *ADXDetector) Name() string { return "adx" }

func (d *ADXDetector) Dependencies() []string {
	return []string{indicator.ADXName(d.adxPeriod)}
}

func (d *ADXDetector) Detect(table *market.IndicatorTable, asOf int, trend market.Trend) Result {
	col := indicator.ADXName(d.adxPeriod)
	if missing, ok := ready(table, asOf, d.Dependencies()); !ok {
		return insufficient(d.Name(), missing)
	}

	adxPrev, _ := table.Value(col, asOf-1)
	adxNow, _ := table.Value(col, asOf)
	if adxNow < d.strong || adxNow <= adxPrev {
		return Result{}
	}

	closeNow := table.Bars[asOf].Close
	closePrev := table.Bars[asOf-1].Close

	var result Result
	score := d.weight * (adxNow - d.strong) / d.strong
	if closeNow > closePrev {
		result.BuyScore = score
		result.Evidence = append(result.Evidence, Fact{
			Indicator: col, Value: adxNow, Contribution: score,
			Note: "strengthening trend confirms upward move",
		})
	} else if closeNow < closePrev {
		result.SellScore = score
		result.Evidence = append(result.Evidence, Fact{
			Indicator: col, Value: adxNow, Contribution: score,
			Note: "strengthening trend confirms downward move",
		})
	}
	return result
}
