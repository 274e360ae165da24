package detector

import (
	"fmt"

	"github.com/hadoobidoop/stock-tracker/internal/indicator"
	"github.com/hadoobidoop/stock-tracker/internal/market"
)

func init() {
	Register("rsi", func(weight float64, params map[string]float64) Detector {
		return &RSIDetector{
			weight:        weight,
			rsiPeriod:     int(param(params, "rsi_period", 14)),
			oversold:      param(params, "oversold", 30),
			overbought:    param(params, "overbought", 70),
			normalization: param(params, "normalization", 10),
		}
	})
	Register("stochastic", func(weight float64, params map[string]float64) Detector {
		return &StochasticDetector{
			weight:        weight,
			oversold:      param(params, "oversold", 20),
			overbought:    param(params, "overbought", 80),
			normalization: param(params, "normalization", 10),
		}
	})
}

// RSIDetector scores oversold/overbought extremes proportionally to the
// distance from the threshold: RSI 18 against an oversold bound of 30 with
// normalization 10 contributes weight*(30-18)/10.
type RSIDetector struct {
	weight        float64
	rsiPeriod     int
	oversold      float64
	overbought    float64
	normalization float64
}

func (d *RSIDetector) Name() string { return "rsi" }

func (d *RSIDetector) Dependencies() []string {
	return []string{indicator.RSIName(d.rsiPeriod)}
}

func (d *RSIDetector) Detect(table *market.IndicatorTable, asOf int, trend market.Trend) Result {
	col := indicator.RSIName(d.rsiPeriod)
	if missing, ok := ready(table, asOf, d.Dependencies()); !ok {
		return insufficient(d.Name(), missing)
	}

	rsi, _ := table.Value(col, asOf)
	adj := adjustFor(trend)

	var result Result
	if rsi < d.oversold {
		score := d.weight * (d.oversold - rsi) / d.normalization * adj.momentumReversal
		result.BuyScore = score
		result.Evidence = append(result.Evidence, Fact{
			Indicator: col, Value: rsi, Contribution: score,
			Note: fmt.Sprintf("oversold below %.0f", d.oversold),
		})
	} else if rsi > d.overbought {
		score := d.weight * (rsi - d.overbought) / d.normalization * adj.momentumReversal
		result.SellScore = score
		result.Evidence = append(result.Evidence, Fact{
			Indicator: col, Value: rsi, Contribution: score,
			Note: fmt.Sprintf("overbought above %.0f", d.overbought),
		})
	}
	return result
}

// StochasticDetector scores %K extremes confirmed by a %K/%D cross in the
// same direction.
type StochasticDetector struct {
	weight        float64
	oversold      float64
	overbought    float64
	normalization float64
}

func (d *StochasticDetector) Name() string { return "stoch" }

func (d *StochasticDetector) Dependencies() []string {
	return []string{indicator.ColStochK, indicator.ColStochD}
}

func (d *StochasticDetector) Detect(table *market.IndicatorTable, asOf int, trend market.Trend) Result {
	if missing, ok := ready(table, asOf, d.Dependencies()); !ok {
		return insufficient(d.Name(), missing)
	}

	kPrev, _ := table.Value(indicator.ColStochK, asOf-1)
	kNow, _ := table.Value(indicator.ColStochK, asOf)
	dPrev, _ := table.Value(indicator.ColStochD, asOf-1)
	dNow, _ := table.Value(indicator.ColStochD, asOf)

	adj := adjustFor(trend)
	crossedUp := kPrev < dPrev && kNow > dNow
	crossedDown := kPrev > dPrev && kNow < dNow

	var result Result
	if kNow < d.oversold {
		score := d.weight * (d.oversold - kNow) / d.normalization * adj.momentumReversal
		if crossedUp {
			score *= 1.5
		}
		result.BuyScore = score
		result.Evidence = append(result.Evidence, Fact{
			Indicator: indicator.ColStochK, Value: kNow, Contribution: score,
			Note: fmt.Sprintf("oversold below %.0f (crossed up: %t)", d.oversold, crossedUp),
		})
	} else if kNow > d.overbought {
		score := d.weight * (kNow - d.overbought) / d.normalization * adj.momentumReversal
		if crossedDown {
			score *= 1.5
		}
		result.SellScore = score
		result.Evidence = append(result.Evidence, Fact{
			Indicator: indicator.ColStochK, Value: kNow, Contribution: score,
			Note: fmt.Sprintf("overbought above %.0f (crossed down: %t)", d.overbought, crossedDown),
		})
	}
	return result
}
