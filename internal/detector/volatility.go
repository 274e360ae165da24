package detector

import (
	"fmt"
	"math"

	"github.com/hadoobidoop/stock-tracker/internal/indicator"
	"github.com/hadoobidoop/stock-tracker/internal/market"
)

func init() {
	Register("bollinger", func(weight float64, params map[string]float64) Detector {
		return &BollingerDetector{weight: weight}
	})
	Register("fibonacci", func(weight float64, params map[string]float64) Detector {
		return &FibonacciDetector{
			weight:    weight,
			lookback:  int(param(params, "lookback", 60)),
			tolerance: param(params, "tolerance", 0.005),
		}
	})
}

// BollingerDetector scores closes breaking outside the bands as
// mean-reversion candidates.
type BollingerDetector struct {
	weight float64
}

func (d *BollingerDetector) Name() string { return "bb" }

func (d *BollingerDetector) Dependencies() []string {
	return []string{indicator.ColBBUpper, indicator.ColBBMiddle, indicator.ColBBLower}
}

func (d *BollingerDetector) Detect(table *market.IndicatorTable, asOf int, trend market.Trend) Result {
	if missing, ok := ready(table, asOf, d.Dependencies()); !ok {
		return insufficient(d.Name(), missing)
	}

	upper, _ := table.Value(indicator.ColBBUpper, asOf)
	middle, _ := table.Value(indicator.ColBBMiddle, asOf)
	lower, _ := table.Value(indicator.ColBBLower, asOf)
	closeNow := table.Bars[asOf].Close

	bandWidth := upper - lower
	if bandWidth <= 0 {
		return Result{}
	}

	adj := adjustFor(trend)
	var result Result
	if closeNow < lower {
		score := d.weight * (lower - closeNow) / bandWidth * 2 * adj.momentumReversal
		result.BuyScore = score
		result.Evidence = append(result.Evidence, Fact{
			Indicator: indicator.ColBBLower, Value: closeNow, Contribution: score,
			Note: fmt.Sprintf("close below lower band %.2f (middle %.2f)", lower, middle),
		})
	} else if closeNow > upper {
		score := d.weight * (closeNow - upper) / bandWidth * 2 * adj.momentumReversal
		result.SellScore = score
		result.Evidence = append(result.Evidence, Fact{
			Indicator: indicator.ColBBUpper, Value: closeNow, Contribution: score,
			Note: fmt.Sprintf("close above upper band %.2f (middle %.2f)", upper, middle),
		})
	}
	return result
}

// FibonacciDetector scores proximity to retracement levels of the recent
// swing range. Closes near a retracement act as support in an up-leg (buy)
// and as resistance in a down-leg (sell). Score scales with closeness inside
// the tolerance band.
type FibonacciDetector struct {
	weight    float64
	lookback  int
	tolerance float64
}

var fibRatios = []float64{0.382, 0.5, 0.618}

func (d *FibonacciDetector) Name() string { return "fibonacci" }

// Dependencies is empty: the detector works from raw bars only.
func (d *FibonacciDetector) Dependencies() []string { return nil }

func (d *FibonacciDetector) Detect(table *market.IndicatorTable, asOf int, trend market.Trend) Result {
	if asOf < d.lookback {
		return insufficient(d.Name(), fmt.Sprintf("need %d bars of history", d.lookback))
	}

	start := asOf - d.lookback
	high := table.Bars[start].High
	low := table.Bars[start].Low
	highIdx, lowIdx := start, start
	for i := start + 1; i <= asOf; i++ {
		if table.Bars[i].High > high {
			high = table.Bars[i].High
			highIdx = i
		}
		if table.Bars[i].Low < low {
			low = table.Bars[i].Low
			lowIdx = i
		}
	}
	swing := high - low
	if swing <= 0 {
		return Result{}
	}

	closeNow := table.Bars[asOf].Close
	upLeg := lowIdx < highIdx

	var result Result
	for _, ratio := range fibRatios {
		var level float64
		if upLeg {
			level = high - swing*ratio
		} else {
			level = low + swing*ratio
		}
		distance := math.Abs(closeNow-level) / closeNow
		if distance > d.tolerance {
			continue
		}
		score := d.weight * (1 - distance/d.tolerance)
		fact := Fact{
			Indicator:    d.Name(),
			Value:        level,
			Contribution: score,
			Note:         fmt.Sprintf("close %.2f near %.1f%% retracement", closeNow, ratio*100),
		}
		if upLeg {
			if score > result.BuyScore {
				result.BuyScore = score
			}
		} else {
			if score > result.SellScore {
				result.SellScore = score
			}
		}
		result.Evidence = append(result.Evidence, fact)
	}
	return result
}
