package detector

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hadoobidoop/stock-tracker/internal/indicator"
	"github.com/hadoobidoop/stock-tracker/internal/market"
)

// testTable builds a minimal table with the given columns over n flat bars.
func testTable(n int, columns map[string][]float64) *market.IndicatorTable {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = market.Bar{
			Timestamp: base.AddDate(0, 0, i),
			Open:      100, High: 101, Low: 99, Close: 100, Volume: 1000,
		}
	}
	table := market.NewIndicatorTable("TEST", bars)
	for name, values := range columns {
		table.SetColumn(name, values)
	}
	return table
}

func TestRegistry(t *testing.T) {
	for _, kind := range []string{"sma_cross", "macd_cross", "rsi", "stochastic", "bollinger", "volume", "adx", "fibonacci"} {
		assert.True(t, Known(kind), "kind %s not registered", kind)
	}
	assert.False(t, Known("astrology"))

	_, err := New("astrology", 1.0, nil)
	assert.Error(t, err)
}

func TestRSIDetector_OversoldScore(t *testing.T) {
	det, err := New("rsi", 0.3, nil)
	require.NoError(t, err)

	table := testTable(3, map[string][]float64{
		"RSI_14": {25, 22, 18},
	})
	result := det.Detect(table, 2, market.TrendNeutral)

	// weight 0.3, oversold bound 30, RSI 18, normalization 10.
	assert.InDelta(t, 0.36, result.BuyScore, 1e-9)
	assert.Zero(t, result.SellScore)
	require.NotEmpty(t, result.Evidence)
	assert.Equal(t, "RSI_14", result.Evidence[0].Indicator)
}

func TestRSIDetector_OverboughtScore(t *testing.T) {
	det, err := New("rsi", 0.5, nil)
	require.NoError(t, err)

	table := testTable(3, map[string][]float64{
		"RSI_14": {70, 75, 80},
	})
	result := det.Detect(table, 2, market.TrendNeutral)

	assert.InDelta(t, 0.5, result.SellScore, 1e-9)
	assert.Zero(t, result.BuyScore)
}

func TestRSIDetector_NeutralRange(t *testing.T) {
	det, _ := New("rsi", 1.0, nil)
	table := testTable(3, map[string][]float64{
		"RSI_14": {48, 50, 52},
	})
	result := det.Detect(table, 2, market.TrendNeutral)
	assert.Zero(t, result.BuyScore)
	assert.Zero(t, result.SellScore)
}

func TestRSIDetector_TrendAdjustment(t *testing.T) {
	det, _ := New("rsi", 0.3, nil)
	table := testTable(3, map[string][]float64{
		"RSI_14": {25, 22, 18},
	})

	neutral := det.Detect(table, 2, market.TrendNeutral)
	bullish := det.Detect(table, 2, market.TrendBullish)
	bearish := det.Detect(table, 2, market.TrendBearish)

	// Reversal plays are discounted in an uptrend and boosted in a downtrend.
	assert.Less(t, bullish.BuyScore, neutral.BuyScore)
	assert.Greater(t, bearish.BuyScore, neutral.BuyScore)
}

func TestRSIDetector_InsufficientData(t *testing.T) {
	det, _ := New("rsi", 1.0, nil)
	table := testTable(3, map[string][]float64{
		"RSI_14": {math.NaN(), math.NaN(), 18},
	})

	// The previous row is NaN so the detector reports no score.
	result := det.Detect(table, 2, market.TrendNeutral)
	assert.Zero(t, result.BuyScore)
	assert.Zero(t, result.SellScore)
	require.NotEmpty(t, result.Evidence)
	assert.Contains(t, result.Evidence[0].Note, "insufficient data")
}

func TestRSIDetector_CustomParams(t *testing.T) {
	det, err := New("rsi", 1.0, map[string]float64{"oversold": 40, "normalization": 20})
	require.NoError(t, err)

	table := testTable(3, map[string][]float64{
		"RSI_14": {38, 36, 30},
	})
	result := det.Detect(table, 2, market.TrendNeutral)
	assert.InDelta(t, 0.5, result.BuyScore, 1e-9) // (40-30)/20
}

func TestSMACrossDetector_GoldenCross(t *testing.T) {
	det, err := New("sma_cross", 1.0, nil)
	require.NoError(t, err)

	table := testTable(3, map[string][]float64{
		indicator.SMAName(5):  {99, 99.5, 101},
		indicator.SMAName(20): {100, 100, 100},
		indicator.ADXName(14): {22, 22, 22},
	})
	result := det.Detect(table, 2, market.TrendNeutral)
	assert.Greater(t, result.BuyScore, 0.0)
	assert.Zero(t, result.SellScore)
}

func TestSMACrossDetector_DeadCross(t *testing.T) {
	det, _ := New("sma_cross", 1.0, nil)
	table := testTable(3, map[string][]float64{
		indicator.SMAName(5):  {101, 100.5, 99},
		indicator.SMAName(20): {100, 100, 100},
		indicator.ADXName(14): {22, 22, 22},
	})
	result := det.Detect(table, 2, market.TrendNeutral)
	assert.Greater(t, result.SellScore, 0.0)
	assert.Zero(t, result.BuyScore)
}

func TestMACDCrossDetector(t *testing.T) {
	det, err := New("macd_cross", 1.0, nil)
	require.NoError(t, err)

	table := testTable(3, map[string][]float64{
		indicator.ColMACD:    {-0.5, -0.2, 0.3},
		indicator.ColMACDSig: {0, 0, 0},
	})
	result := det.Detect(table, 2, market.TrendNeutral)
	assert.Greater(t, result.BuyScore, 0.0)
}

func TestVolumeDetector_Surge(t *testing.T) {
	det, err := New("volume", 1.0, nil)
	require.NoError(t, err)

	table := testTable(3, map[string][]float64{
		indicator.ColVolumeSMA: {1000, 1000, 1000},
	})
	// Close rising with volume at 3x its average.
	table.Bars[2].Volume = 3000
	table.Bars[2].Close = 102
	table.Bars[1].Close = 100

	result := det.Detect(table, 2, market.TrendNeutral)
	assert.Greater(t, result.BuyScore, 0.0)
}

func TestCompositeDetector_And(t *testing.T) {
	and := NewComposite("both", CombineAnd, []Detector{
		stub{buy: 0.6},
		stub{buy: 0.4},
	})
	result := and.Detect(testTable(3, nil), 2, market.TrendNeutral)
	assert.InDelta(t, 0.4, result.BuyScore, 1e-9, "AND takes the minimum")

	oneSilent := NewComposite("gated", CombineAnd, []Detector{
		stub{buy: 0.6},
		stub{},
	})
	result = oneSilent.Detect(testTable(3, nil), 2, market.TrendNeutral)
	assert.Zero(t, result.BuyScore, "AND requires every sub-detector to fire")
}

func TestCompositeDetector_Or(t *testing.T) {
	or := NewComposite("either", CombineOr, []Detector{
		stub{buy: 0.6},
		stub{},
		stub{buy: 0.9},
	})
	result := or.Detect(testTable(3, nil), 2, market.TrendNeutral)
	assert.InDelta(t, 0.9, result.BuyScore, 1e-9, "OR takes the maximum")
}

func TestCompositeDetector_SellSideSymmetry(t *testing.T) {
	and := NewComposite("both", CombineAnd, []Detector{
		stub{sell: 0.5},
		stub{sell: 0.3},
	})
	result := and.Detect(testTable(3, nil), 2, market.TrendNeutral)
	assert.InDelta(t, 0.3, result.SellScore, 1e-9)
	assert.Zero(t, result.BuyScore)
}

func TestCompositeDetector_EvidenceConcatenated(t *testing.T) {
	or := NewComposite("either", CombineOr, []Detector{
		stub{buy: 0.6, note: "first"},
		stub{buy: 0.2, note: "second"},
	})
	result := or.Detect(testTable(3, nil), 2, market.TrendNeutral)
	require.Len(t, result.Evidence, 2)
	assert.Equal(t, "first", result.Evidence[0].Note)
	assert.Equal(t, "second", result.Evidence[1].Note)
}

type stub struct {
	buy, sell float64
	note      string
}

func (s stub) Name() string           { return "stub" }
func (s stub) Dependencies() []string { return nil }
func (s stub) Detect(*market.IndicatorTable, int, market.Trend) Result {
	r := Result{BuyScore: s.buy, SellScore: s.sell}
	if s.note != "" {
		r.Evidence = []Fact{{Indicator: "stub", Note: s.note}}
	}
	return r
}
