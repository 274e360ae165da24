package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LoadBarsCSV reads OHLCV bars from a CSV file with a header row of
// timestamp,open,high,low,close,volume. Timestamps are RFC 3339 or a bare
// date. Rows must already be in ascending time order.
func LoadBarsCSV(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBarsCSV(f)
}

// ReadBarsCSV parses bars from an open CSV stream.
func ReadBarsCSV(r io.Reader) ([]Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"timestamp", "open", "high", "low", "close", "volume"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("csv missing column %q", required)
		}
	}

	var bars []Bar
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv line %d: %w", line+1, err)
		}
		line++

		ts, err := parseTimestamp(record[col["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		bar := Bar{Timestamp: ts}
		for name, dst := range map[string]*float64{
			"open":   &bar.Open,
			"high":   &bar.High,
			"low":    &bar.Low,
			"close":  &bar.Close,
			"volume": &bar.Volume,
		} {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[col[name]]), 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d: bad %s value %q", line, name, record[col[name]])
			}
			*dst = v
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}

// LoadDir loads <TICKER>.csv for each requested ticker from a directory.
// An empty ticker list loads every CSV file found.
func LoadDir(dir string, tickers []string) (map[string][]Bar, error) {
	if len(tickers) == 0 {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".csv") {
				continue
			}
			tickers = append(tickers, strings.TrimSuffix(name, filepath.Ext(name)))
		}
	}
	out := make(map[string][]Bar, len(tickers))
	for _, ticker := range tickers {
		bars, err := LoadBarsCSV(filepath.Join(dir, ticker+".csv"))
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", ticker, err)
		}
		out[strings.ToUpper(ticker)] = bars
	}
	return out, nil
}
