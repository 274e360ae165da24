package indicator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/cinar/indicator/v2/volume"
	"github.com/sirupsen/logrus"

	"github.com/hadoobidoop/stock-tracker/internal/market"
)

// Config holds the periods for every indicator column the calculator
// produces. Zero values fall back to the defaults the detectors expect.
type Config struct {
	SMAPeriods   []int   `mapstructure:"sma_periods" json:"sma_periods"`
	EMAPeriods   []int   `mapstructure:"ema_periods" json:"ema_periods"`
	RSIPeriod    int     `mapstructure:"rsi_period" json:"rsi_period"`
	StochKPeriod int     `mapstructure:"stoch_k_period" json:"stoch_k_period"`
	StochDPeriod int     `mapstructure:"stoch_d_period" json:"stoch_d_period"`
	MACDFast     int     `mapstructure:"macd_fast" json:"macd_fast"`
	MACDSlow     int     `mapstructure:"macd_slow" json:"macd_slow"`
	MACDSignal   int     `mapstructure:"macd_signal" json:"macd_signal"`
	BBPeriod     int     `mapstructure:"bb_period" json:"bb_period"`
	BBStdDev     float64 `mapstructure:"bb_std_dev" json:"bb_std_dev"`
	ADXPeriod    int     `mapstructure:"adx_period" json:"adx_period"`
	VolumeSMA    int     `mapstructure:"volume_sma" json:"volume_sma"`
	OBVEnabled   bool    `mapstructure:"obv_enabled" json:"obv_enabled"`
}

// DefaultConfig returns the indicator set the built-in detectors depend on.
func DefaultConfig() Config {
	return Config{
		SMAPeriods:   []int{5, 20, 60, 120, 200},
		EMAPeriods:   []int{12, 26},
		RSIPeriod:    14,
		StochKPeriod: 14,
		StochDPeriod: 3,
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		BBPeriod:     20,
		BBStdDev:     2.0,
		ADXPeriod:    14,
		VolumeSMA:    20,
		OBVEnabled:   true,
	}
}

// Signature returns a stable digest of the config, used together with the
// ticker as the shared cache key.
func (c Config) Signature() string {
	h := sha256.New()
	fmt.Fprintf(h, "%v|%v|%d|%d|%d|%d|%d|%d|%d|%.4f|%d|%d|%t",
		c.SMAPeriods, c.EMAPeriods, c.RSIPeriod, c.StochKPeriod, c.StochDPeriod,
		c.MACDFast, c.MACDSlow, c.MACDSignal, c.BBPeriod, c.BBStdDev,
		c.ADXPeriod, c.VolumeSMA, c.OBVEnabled)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Column name helpers shared with the detectors.
func SMAName(period int) string { return fmt.Sprintf("SMA_%d", period) }
func EMAName(period int) string { return fmt.Sprintf("EMA_%d", period) }
func RSIName(period int) string { return fmt.Sprintf("RSI_%d", period) }
func ADXName(period int) string { return fmt.Sprintf("ADX_%d", period) }

const (
	ColStochK    = "STOCH_K"
	ColStochD    = "STOCH_D"
	ColMACD      = "MACD"
	ColMACDSig   = "MACD_SIGNAL"
	ColBBUpper   = "BB_UPPER"
	ColBBMiddle  = "BB_MIDDLE"
	ColBBLower   = "BB_LOWER"
	ColATR       = "ATR_14"
	ColVolumeSMA = "VOLUME_SMA_20"
	ColOBV       = "OBV"
)

// Calculator turns raw bars into an IndicatorTable.
type Calculator struct {
	config Config
	logger *logrus.Logger
}

// NewCalculator creates a calculator with the given config.
func NewCalculator(config Config, logger *logrus.Logger) *Calculator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Calculator{config: config, logger: logger}
}

// Config returns the calculator's indicator configuration.
func (c *Calculator) Config() Config {
	return c.config
}

// Build computes every configured indicator column over the bars and returns
// a validated table. Columns whose period exceeds the available history are
// emitted as all-NaN rather than dropped, so downstream detectors see a
// consistent schema and degrade per-row.
func (c *Calculator) Build(ticker string, bars []market.Bar) (*market.IndicatorTable, error) {
	table := market.NewIndicatorTable(ticker, bars)
	if err := table.Validate(); err != nil {
		return nil, err
	}

	n := len(bars)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, bar := range bars {
		closes[i] = bar.Close
		highs[i] = bar.High
		lows[i] = bar.Low
		volumes[i] = bar.Volume
	}

	for _, period := range c.config.SMAPeriods {
		sma := trend.NewSmaWithPeriod[float64](period)
		values := helper.ChanToSlice(sma.Compute(helper.SliceToChan(closes)))
		table.SetColumn(SMAName(period), market.PadLeft(values, n))
	}
	for _, period := range c.config.EMAPeriods {
		ema := trend.NewEmaWithPeriod[float64](period)
		values := helper.ChanToSlice(ema.Compute(helper.SliceToChan(closes)))
		table.SetColumn(EMAName(period), market.PadLeft(values, n))
	}

	rsi := momentum.NewRsiWithPeriod[float64](c.config.RSIPeriod)
	rsiValues := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(closes)))
	table.SetColumn(RSIName(c.config.RSIPeriod), market.PadLeft(rsiValues, n))

	macd := trend.NewMacdWithPeriod[float64](c.config.MACDFast, c.config.MACDSlow, c.config.MACDSignal)
	macdLine, macdSignal := macd.Compute(helper.SliceToChan(closes))
	// Both channels are fed by one unbuffered pipeline; drain them
	// concurrently or the producer blocks and Build deadlocks.
	signalValues := make(chan []float64, 1)
	go func() { signalValues <- helper.ChanToSlice(macdSignal) }()
	table.SetColumn(ColMACD, market.PadLeft(helper.ChanToSlice(macdLine), n))
	table.SetColumn(ColMACDSig, market.PadLeft(<-signalValues, n))

	atr := volatility.NewAtr[float64]()
	atrValues := helper.ChanToSlice(atr.Compute(
		helper.SliceToChan(highs), helper.SliceToChan(lows), helper.SliceToChan(closes)))
	table.SetColumn(ColATR, market.PadLeft(atrValues, n))

	if c.config.OBVEnabled {
		obv := volume.NewObv[float64]()
		obvValues := helper.ChanToSlice(obv.Compute(
			helper.SliceToChan(closes), helper.SliceToChan(volumes)))
		table.SetColumn(ColOBV, market.PadLeft(obvValues, n))
	}

	volSMA := trend.NewSmaWithPeriod[float64](c.config.VolumeSMA)
	volSMAValues := helper.ChanToSlice(volSMA.Compute(helper.SliceToChan(volumes)))
	table.SetColumn(ColVolumeSMA, market.PadLeft(volSMAValues, n))

	// cinar/indicator has no Stochastic %K/%D, Bollinger or Wilder ADX in the
	// shape the detectors need, so these are computed directly.
	stochK, stochD := computeStochastic(highs, lows, closes, c.config.StochKPeriod, c.config.StochDPeriod)
	table.SetColumn(ColStochK, stochK)
	table.SetColumn(ColStochD, stochD)

	upper, middle, lower := computeBollinger(closes, c.config.BBPeriod, c.config.BBStdDev)
	table.SetColumn(ColBBUpper, upper)
	table.SetColumn(ColBBMiddle, middle)
	table.SetColumn(ColBBLower, lower)

	table.SetColumn(ADXName(c.config.ADXPeriod), computeADX(highs, lows, closes, c.config.ADXPeriod))

	if err := table.Validate(); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"ticker":  ticker,
		"bars":    n,
		"columns": len(table.Columns),
	}).Debug("Built indicator table")

	return table, nil
}

// computeStochastic returns %K and %D aligned with the input length.
func computeStochastic(highs, lows, closes []float64, kPeriod, dPeriod int) ([]float64, []float64) {
	n := len(closes)
	k := nanSlice(n)
	d := nanSlice(n)

	for i := kPeriod - 1; i < n; i++ {
		highest := highs[i-kPeriod+1]
		lowest := lows[i-kPeriod+1]
		for j := i - kPeriod + 2; j <= i; j++ {
			if highs[j] > highest {
				highest = highs[j]
			}
			if lows[j] < lowest {
				lowest = lows[j]
			}
		}
		if highest == lowest {
			k[i] = 50
		} else {
			k[i] = (closes[i] - lowest) / (highest - lowest) * 100
		}
	}

	for i := kPeriod + dPeriod - 2; i < n; i++ {
		sum := 0.0
		for j := i - dPeriod + 1; j <= i; j++ {
			sum += k[j]
		}
		d[i] = sum / float64(dPeriod)
	}
	return k, d
}

// computeBollinger returns upper, middle and lower bands.
func computeBollinger(closes []float64, period int, stdDevs float64) ([]float64, []float64, []float64) {
	n := len(closes)
	upper := nanSlice(n)
	middle := nanSlice(n)
	lower := nanSlice(n)

	for i := period - 1; i < n; i++ {
		window := closes[i-period+1 : i+1]
		mean := 0.0
		for _, v := range window {
			mean += v
		}
		mean /= float64(period)

		variance := 0.0
		for _, v := range window {
			diff := v - mean
			variance += diff * diff
		}
		sd := math.Sqrt(variance / float64(period))

		middle[i] = mean
		upper[i] = mean + stdDevs*sd
		lower[i] = mean - stdDevs*sd
	}
	return upper, middle, lower
}

// computeADX implements Wilder's ADX with smoothed DM/TR.
func computeADX(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	adx := nanSlice(n)
	if n < 2*period {
		return adx
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		upMove := highs[i] - highs[i-1]
		downMove := lows[i-1] - lows[i]
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
		tr[i] = math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
	}

	var smPlus, smMinus, smTR float64
	for i := 1; i <= period; i++ {
		smPlus += plusDM[i]
		smMinus += minusDM[i]
		smTR += tr[i]
	}

	dx := nanSlice(n)
	p := float64(period)
	for i := period; i < n; i++ {
		if i > period {
			smPlus = smPlus - smPlus/p + plusDM[i]
			smMinus = smMinus - smMinus/p + minusDM[i]
			smTR = smTR - smTR/p + tr[i]
		}
		if smTR == 0 {
			dx[i] = 0
			continue
		}
		plusDI := 100 * smPlus / smTR
		minusDI := 100 * smMinus / smTR
		if plusDI+minusDI == 0 {
			dx[i] = 0
			continue
		}
		dx[i] = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
	}

	sum := 0.0
	for i := period; i < 2*period; i++ {
		sum += dx[i]
	}
	adx[2*period-1] = sum / p
	for i := 2 * period; i < n; i++ {
		adx[i] = (adx[i-1]*(p-1) + dx[i]) / p
	}
	return adx
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
