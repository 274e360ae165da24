package market

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dailyBars(n int, start float64) []Bar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]Bar, n)
	for i := range bars {
		price := start + float64(i)
		bars[i] = Bar{
			Timestamp: base.AddDate(0, 0, i),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price + 0.5,
			Volume:    1000,
		}
	}
	return bars
}

func TestIndicatorTable_Validate(t *testing.T) {
	table := NewIndicatorTable("AAPL", dailyBars(5, 100))
	table.SetColumn("SMA_3", []float64{math.NaN(), math.NaN(), 101, 102, 103})
	require.NoError(t, table.Validate())
}

func TestIndicatorTable_Validate_NonMonotonicTimestamps(t *testing.T) {
	bars := dailyBars(3, 100)
	bars[2].Timestamp = bars[0].Timestamp
	table := NewIndicatorTable("AAPL", bars)
	assert.Error(t, table.Validate())
}

func TestIndicatorTable_Validate_MisalignedColumn(t *testing.T) {
	table := NewIndicatorTable("AAPL", dailyBars(5, 100))
	table.SetColumn("SMA_3", []float64{1, 2, 3})
	assert.Error(t, table.Validate())
}

func TestIndicatorTable_Value(t *testing.T) {
	table := NewIndicatorTable("AAPL", dailyBars(3, 100))
	table.SetColumn("RSI_14", []float64{math.NaN(), 45, 55})

	_, ok := table.Value("RSI_14", 0)
	assert.False(t, ok, "NaN must read as missing")

	v, ok := table.Value("RSI_14", 1)
	require.True(t, ok)
	assert.Equal(t, 45.0, v)

	_, ok = table.Value("MISSING", 1)
	assert.False(t, ok)

	_, ok = table.Value("RSI_14", 99)
	assert.False(t, ok)
}

func TestIndicatorTable_Interval(t *testing.T) {
	table := NewIndicatorTable("AAPL", dailyBars(10, 100))
	assert.Equal(t, 24*time.Hour, table.Interval())
}

func TestPadLeft(t *testing.T) {
	padded := PadLeft([]float64{1, 2, 3}, 5)
	require.Len(t, padded, 5)
	assert.True(t, math.IsNaN(padded[0]))
	assert.True(t, math.IsNaN(padded[1]))
	assert.Equal(t, []float64{1, 2, 3}, padded[2:])
}

func TestMacroSnapshot_Lookup(t *testing.T) {
	snap := MacroSnapshot{
		MacroVIX: 22.5,
		"broken": math.NaN(),
	}
	snap[MacroSP500SMA200] = 5000
	snap[MacroSP500SMA200+ReferenceSuffix] = 4800

	v, ok := snap.Lookup(MacroVIX)
	require.True(t, ok)
	assert.Equal(t, 22.5, v)

	_, ok = snap.Lookup("broken")
	assert.False(t, ok, "NaN values are treated as missing")

	_, ok = snap.Lookup("absent")
	assert.False(t, ok)

	ref, ok := snap.Reference(MacroSP500SMA200)
	require.True(t, ok)
	assert.Equal(t, 4800.0, ref)
}

func TestMacroSnapshot_Trend(t *testing.T) {
	tests := []struct {
		name     string
		level    float64
		sma      float64
		expected Trend
	}{
		{"well above", 5000, 4800, TrendBullish},
		{"well below", 4500, 4800, TrendBearish},
		{"on the line", 4800, 4800, TrendNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := MacroSnapshot{
				MacroSP500SMA200:                   tt.level,
				MacroSP500SMA200 + ReferenceSuffix: tt.sma,
			}
			assert.Equal(t, tt.expected, snap.Trend())
		})
	}
}

func TestMacroSnapshot_Trend_MissingData(t *testing.T) {
	assert.Equal(t, TrendNeutral, MacroSnapshot{}.Trend())
	assert.Equal(t, TrendNeutral, MacroSnapshot(nil).Trend())
	assert.Equal(t, TrendNeutral, MacroSnapshot{MacroSP500SMA200: 5000}.Trend())
}
