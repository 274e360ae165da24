package backtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func testPosition(ticker string, entry, shares, commission float64) *Position {
	return &Position{
		Ticker:          ticker,
		EntryTime:       time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		EntryPrice:      d(entry),
		Shares:          d(shares),
		StopPrice:       d(entry * 0.95),
		TargetPrice:     d(entry * 1.10),
		EntryCommission: d(commission),
	}
}

func TestPortfolio_OpenDebitsCash(t *testing.T) {
	p := NewPortfolio(d(10000))
	require.NoError(t, p.Open(testPosition("AAPL", 100, 50, 5)))

	// 50 shares at 100 plus 5 commission.
	assert.True(t, p.Cash().Equal(d(4995)), "cash is %s", p.Cash())
	assert.Equal(t, 1, p.OpenPositions())
}

func TestPortfolio_OpenRejectsDuplicate(t *testing.T) {
	p := NewPortfolio(d(100000))
	require.NoError(t, p.Open(testPosition("AAPL", 100, 10, 1)))
	assert.Error(t, p.Open(testPosition("AAPL", 100, 10, 1)))
}

func TestPortfolio_OpenRejectsOverspend(t *testing.T) {
	p := NewPortfolio(d(1000))
	assert.Error(t, p.Open(testPosition("AAPL", 100, 50, 5)))
	assert.True(t, p.Cash().Equal(d(1000)), "failed open must not touch cash")
}

func TestPortfolio_CloseComputesNetPnL(t *testing.T) {
	p := NewPortfolio(d(10000))
	require.NoError(t, p.Open(testPosition("AAPL", 100, 50, 5)))

	exitTime := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	trade, err := p.Close("AAPL", d(110), d(5.5), exitTime, ExitTakeProfit, "balanced")
	require.NoError(t, err)

	// (110-100)*50 minus 5 entry and 5.5 exit commission.
	assert.True(t, trade.PnL.Equal(d(489.5)), "pnl is %s", trade.PnL)
	assert.True(t, trade.Commission.Equal(d(10.5)))
	assert.Equal(t, ExitTakeProfit, trade.ExitReason)
	assert.True(t, trade.Win())
	assert.Equal(t, 0, p.OpenPositions())

	// 10000 - 5005 + (5500 - 5.5)
	assert.True(t, p.Cash().Equal(d(10489.5)), "cash is %s", p.Cash())
}

func shortPosition(ticker string, entry, shares, commission float64) *Position {
	pos := testPosition(ticker, entry, shares, commission)
	pos.Direction = Short
	pos.StopPrice = d(entry * 1.05)
	pos.TargetPrice = d(entry * 0.90)
	return pos
}

func TestPortfolio_CloseShortInvertsPnL(t *testing.T) {
	p := NewPortfolio(d(10000))
	require.NoError(t, p.Open(shortPosition("AAPL", 100, 10, 0)))
	assert.True(t, p.Cash().Equal(d(9000)), "short reserves the entry notional")

	trade, err := p.Close("AAPL", d(90), d(0), time.Now(), ExitTakeProfit, "s")
	require.NoError(t, err)

	// Price fell 10 on 10 shares sold short.
	assert.Equal(t, Short, trade.Direction)
	assert.True(t, trade.PnL.Equal(d(100)), "pnl is %s", trade.PnL)
	assert.True(t, trade.Win())
	assert.True(t, p.Cash().Equal(d(10100)), "cash is %s", p.Cash())
}

func TestPortfolio_CloseShortLoss(t *testing.T) {
	p := NewPortfolio(d(10000))
	require.NoError(t, p.Open(shortPosition("AAPL", 100, 10, 5)))

	trade, err := p.Close("AAPL", d(110), d(5), time.Now(), ExitStopLoss, "s")
	require.NoError(t, err)

	// Price rose 10 against the short, plus both commissions.
	assert.True(t, trade.PnL.Equal(d(-110)), "pnl is %s", trade.PnL)
	assert.False(t, trade.Win())
	assert.True(t, p.Cash().Equal(d(9890)), "cash is %s", p.Cash())
}

func TestPortfolio_MarkToMarketShort(t *testing.T) {
	p := NewPortfolio(d(10000))
	require.NoError(t, p.Open(shortPosition("AAPL", 100, 10, 0)))

	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	equity := p.MarkToMarket(base, map[string]decimal.Decimal{"AAPL": d(90)})
	assert.True(t, equity.Equal(d(10100)), "short gains as price falls, got %s", equity)

	equity = p.MarkToMarket(base.AddDate(0, 0, 1), map[string]decimal.Decimal{"AAPL": d(110)})
	assert.True(t, equity.Equal(d(9900)), "short loses as price rises, got %s", equity)
}

func TestPortfolio_MarkToMarketCarriesLastClose(t *testing.T) {
	p := NewPortfolio(d(10000))
	require.NoError(t, p.Open(testPosition("AAPL", 100, 50, 0)))

	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	p.MarkToMarket(base, map[string]decimal.Decimal{"AAPL": d(120)})

	// The ticker's data ran out; the position stays valued at 120, not at
	// its entry price.
	equity := p.MarkToMarket(base.AddDate(0, 0, 1), nil)
	assert.True(t, equity.Equal(d(11000)), "equity is %s", equity)
}

func TestPortfolio_MarkToMarketReplacesDuplicateTimestamp(t *testing.T) {
	p := NewPortfolio(d(10000))
	require.NoError(t, p.Open(testPosition("AAPL", 100, 50, 0)))

	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	p.MarkToMarket(ts, map[string]decimal.Decimal{"AAPL": d(100)})
	_, err := p.Close("AAPL", d(100), d(0), ts, ExitEndOfData, "s")
	require.NoError(t, err)
	equity := p.MarkToMarket(ts, nil)

	require.Len(t, p.EquityCurve(), 1, "same-timestamp mark must overwrite")
	assert.True(t, p.EquityCurve()[0].Equity.Equal(equity))
}

func TestPortfolio_CloseUnknownTicker(t *testing.T) {
	p := NewPortfolio(d(10000))
	_, err := p.Close("GHOST", d(10), d(0), time.Now(), ExitEndOfData, "s")
	assert.Error(t, err)
}

func TestPortfolio_MarkToMarketAndDrawdown(t *testing.T) {
	p := NewPortfolio(d(10000))
	require.NoError(t, p.Open(testPosition("AAPL", 100, 50, 0)))

	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	equity := p.MarkToMarket(base, map[string]decimal.Decimal{"AAPL": d(100)})
	assert.True(t, equity.Equal(d(10000)))

	// Price doubles, then halves: drawdown measured from the new peak.
	p.MarkToMarket(base.AddDate(0, 0, 1), map[string]decimal.Decimal{"AAPL": d(200)})
	p.MarkToMarket(base.AddDate(0, 0, 2), map[string]decimal.Decimal{"AAPL": d(100)})

	require.Len(t, p.EquityCurve(), 3)
	// Peak 15000, trough back to 10000.
	assert.InDelta(t, 5000.0/15000.0, p.MaxDrawdown(), 1e-9)
}

func TestPortfolio_ReturnPctIncludesCommission(t *testing.T) {
	p := NewPortfolio(d(10000))
	require.NoError(t, p.Open(testPosition("AAPL", 100, 10, 10)))

	trade, err := p.Close("AAPL", d(100), d(10), time.Now(), ExitSignalReversal, "s")
	require.NoError(t, err)

	// Flat price round trip loses exactly the commissions.
	assert.True(t, trade.PnL.Equal(d(-20)), "pnl is %s", trade.PnL)
	assert.False(t, trade.Win())
	assert.InDelta(t, -20.0/1010.0, trade.ReturnPct, 1e-9)
}
