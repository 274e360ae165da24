package detector

import (
	"fmt"

	"github.com/hadoobidoop/stock-tracker/internal/indicator"
	"github.com/hadoobidoop/stock-tracker/internal/market"
)

func init() {
	Register("volume", func(weight float64, params map[string]float64) Detector {
		return &VolumeDetector{
			weight:      weight,
			surgeFactor: param(params, "surge_factor", 2.0),
		}
	})
}

// VolumeDetector flags volume spikes against the trailing average. The spike
// direction follows the close-to-close move: surging volume on an up bar
// confirms buying pressure, on a down bar selling pressure.
type VolumeDetector struct {
	weight      float64
	surgeFactor float64
}

func (d *VolumeDetector) Name() string { return "volume" }

func (d *VolumeDetector) Dependencies() []string {
	return []string{indicator.ColVolumeSMA}
}

func (d *VolumeDetector) Detect(table *market.IndicatorTable, asOf int, trend market.Trend) Result {
	if missing, ok := ready(table, asOf, d.Dependencies()); !ok {
		return insufficient(d.Name(), missing)
	}

	avgVolume, _ := table.Value(indicator.ColVolumeSMA, asOf)
	bar := table.Bars[asOf]
	prev := table.Bars[asOf-1]

	if avgVolume <= 0 || bar.Volume <= avgVolume*d.surgeFactor {
		return Result{}
	}

	adj := adjustFor(trend)
	ratio := bar.Volume / avgVolume
	note := fmt.Sprintf("volume %.0f is %.1fx the %s average", bar.Volume, ratio, indicator.ColVolumeSMA)

	var result Result
	if bar.Close > prev.Close {
		score := d.weight * adj.volume
		result.BuyScore = score
		result.Evidence = append(result.Evidence, Fact{
			Indicator: indicator.ColVolumeSMA, Value: ratio, Contribution: score, Note: note + " on an up bar",
		})
	} else if bar.Close < prev.Close {
		score := d.weight * adj.volume
		result.SellScore = score
		result.Evidence = append(result.Evidence, Fact{
			Indicator: indicator.ColVolumeSMA, Value: ratio, Contribution: score, Note: note + " on a down bar",
		})
	}
	return result
}
