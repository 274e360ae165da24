package market

import (
	"fmt"
	"math"
	"time"
)

// Bar represents a single OHLCV candle.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// IndicatorTable holds an ordered price series plus precomputed indicator
// columns. Rows are one-per-bar; indicator columns are aligned with Bars and
// padded with NaN for warm-up rows where the indicator has insufficient
// history. The table is treated as immutable once built.
type IndicatorTable struct {
	Ticker  string               `json:"ticker"`
	Bars    []Bar                `json:"bars"`
	Columns map[string][]float64 `json:"columns"`
}

// NewIndicatorTable creates an empty table for a ticker.
func NewIndicatorTable(ticker string, bars []Bar) *IndicatorTable {
	return &IndicatorTable{
		Ticker:  ticker,
		Bars:    bars,
		Columns: make(map[string][]float64),
	}
}

// Len returns the number of bars in the table.
func (t *IndicatorTable) Len() int {
	return len(t.Bars)
}

// Validate checks the structural invariants of the table. Non-monotonic
// timestamps or misaligned columns are treated as data corruption and abort
// the run that consumes this table.
func (t *IndicatorTable) Validate() error {
	if len(t.Bars) == 0 {
		return fmt.Errorf("indicator table for %s has no bars", t.Ticker)
	}
	for i := 1; i < len(t.Bars); i++ {
		if !t.Bars[i].Timestamp.After(t.Bars[i-1].Timestamp) {
			return fmt.Errorf("non-monotonic timestamps in table for %s at row %d (%s -> %s)",
				t.Ticker, i, t.Bars[i-1].Timestamp, t.Bars[i].Timestamp)
		}
	}
	for name, col := range t.Columns {
		if len(col) != len(t.Bars) {
			return fmt.Errorf("column %q has %d rows, expected %d", name, len(col), len(t.Bars))
		}
	}
	return nil
}

// SetColumn attaches an indicator column. The column must be aligned with
// Bars; shorter series should be front-padded with NaN by the producer.
func (t *IndicatorTable) SetColumn(name string, values []float64) {
	t.Columns[name] = values
}

// HasColumn reports whether the named indicator column exists.
func (t *IndicatorTable) HasColumn(name string) bool {
	_, ok := t.Columns[name]
	return ok
}

// Value returns the indicator value for a column at the given row. The second
// return is false when the column is missing or the value is a NaN warm-up
// cell, which callers treat as insufficient data rather than an error.
func (t *IndicatorTable) Value(name string, row int) (float64, bool) {
	col, ok := t.Columns[name]
	if !ok || row < 0 || row >= len(col) {
		return 0, false
	}
	v := col[row]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Interval returns the spacing between the first two bars. Tables with a
// single bar report zero.
func (t *IndicatorTable) Interval() time.Duration {
	if len(t.Bars) < 2 {
		return 0
	}
	return t.Bars[1].Timestamp.Sub(t.Bars[0].Timestamp)
}

// PadLeft front-pads a series with NaN so it aligns with a table of n rows.
// cinar computes indicators without the warm-up rows, so producers use this
// to restore row alignment.
func PadLeft(values []float64, n int) []float64 {
	if len(values) >= n {
		return values[len(values)-n:]
	}
	padded := make([]float64, n)
	offset := n - len(values)
	for i := 0; i < offset; i++ {
		padded[i] = math.NaN()
	}
	copy(padded[offset:], values)
	return padded
}
