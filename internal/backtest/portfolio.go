package backtest

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hadoobidoop/stock-tracker/internal/utils"
)

// EquityPoint is one mark-to-market sample of total portfolio value.
type EquityPoint struct {
	Time   time.Time       `json:"time"`
	Equity decimal.Decimal `json:"equity"`
}

// Portfolio tracks cash, open positions keyed by ticker, closed trades and
// the equity curve of one simulation. All money amounts use decimal
// arithmetic so repeated commission and fill math does not drift.
type Portfolio struct {
	initialCapital decimal.Decimal
	cash           decimal.Decimal
	positions      map[string]*Position
	trades         []Trade
	equity         []EquityPoint
	lastCloses     map[string]decimal.Decimal

	peakEquity  decimal.Decimal
	maxDrawdown float64
}

// NewPortfolio creates a portfolio holding only cash.
func NewPortfolio(initialCapital decimal.Decimal) *Portfolio {
	return &Portfolio{
		initialCapital: initialCapital,
		cash:           initialCapital,
		positions:      make(map[string]*Position),
		lastCloses:     make(map[string]decimal.Decimal),
		peakEquity:     initialCapital,
	}
}

// Cash returns the uninvested balance.
func (p *Portfolio) Cash() decimal.Decimal { return p.cash }

// InitialCapital returns the starting balance.
func (p *Portfolio) InitialCapital() decimal.Decimal { return p.initialCapital }

// Position returns the open position for a ticker, if any.
func (p *Portfolio) Position(ticker string) (*Position, bool) {
	pos, ok := p.positions[ticker]
	return pos, ok
}

// OpenPositions returns the number of currently open positions.
func (p *Portfolio) OpenPositions() int { return len(p.positions) }

// Tickers lists tickers with an open position.
func (p *Portfolio) Tickers() []string {
	tickers := make([]string, 0, len(p.positions))
	for t := range p.positions {
		tickers = append(tickers, t)
	}
	return tickers
}

// Open debits cash for the entry notional plus entry commission and records
// the position. Shorts reserve the same notional as collateral. Opening on a
// ticker that already has a position, or spending more than available cash,
// is a caller bug and fails.
func (p *Portfolio) Open(pos *Position) error {
	if _, exists := p.positions[pos.Ticker]; exists {
		return utils.NewValidationErrorf("position already open for %s", pos.Ticker)
	}
	cost := pos.EntryPrice.Mul(pos.Shares).Add(pos.EntryCommission)
	if cost.GreaterThan(p.cash) {
		return utils.NewValidationErrorf("open %s: cost %s exceeds cash %s", pos.Ticker, cost, p.cash)
	}
	if pos.Direction == "" {
		pos.Direction = Long
	}
	p.cash = p.cash.Sub(cost)
	p.positions[pos.Ticker] = pos
	return nil
}

// Close removes the position, credits the reserved notional plus the gross
// profit net of exit commission, and records the completed trade. The gross
// profit is inverted for shorts.
func (p *Portfolio) Close(ticker string, exitPrice decimal.Decimal, exitCommission decimal.Decimal, exitTime time.Time, reason ExitReason, strategyID string) (Trade, error) {
	pos, ok := p.positions[ticker]
	if !ok {
		return Trade{}, utils.NewNotFoundError("position", ticker)
	}
	delete(p.positions, ticker)

	proceeds := pos.MarketValue(exitPrice).Sub(exitCommission)
	p.cash = p.cash.Add(proceeds)

	entryCost := pos.EntryPrice.Mul(pos.Shares)
	totalCommission := pos.EntryCommission.Add(exitCommission)
	pnl := pos.GrossPnL(exitPrice).Sub(totalCommission)

	returnPct := 0.0
	if base := entryCost.Add(pos.EntryCommission); base.IsPositive() {
		returnPct, _ = pnl.Div(base).Float64()
	}

	trade := Trade{
		ID:         uuid.NewString(),
		Ticker:     ticker,
		StrategyID: strategyID,
		Direction:  pos.Direction,
		EntryTime:  pos.EntryTime,
		ExitTime:   exitTime,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Shares:     pos.Shares,
		Commission: totalCommission,
		PnL:        pnl,
		ReturnPct:  returnPct,
		BarsHeld:   pos.BarsHeld,
		ExitReason: reason,
	}
	p.trades = append(p.trades, trade)
	return trade, nil
}

// MarkToMarket values the portfolio at the given close prices and appends an
// equity point, replacing the previous point when the timestamp repeats.
// Tickers missing a price are valued at their last seen close, falling back
// to the entry price before any close has been seen.
func (p *Portfolio) MarkToMarket(ts time.Time, closes map[string]decimal.Decimal) decimal.Decimal {
	for ticker, price := range closes {
		p.lastCloses[ticker] = price
	}
	equity := p.cash
	for ticker, pos := range p.positions {
		price, ok := p.lastCloses[ticker]
		if !ok {
			price = pos.EntryPrice
		}
		equity = equity.Add(pos.MarketValue(price))
	}
	if n := len(p.equity); n > 0 && p.equity[n-1].Time.Equal(ts) {
		p.equity[n-1].Equity = equity
	} else {
		p.equity = append(p.equity, EquityPoint{Time: ts, Equity: equity})
	}

	if equity.GreaterThan(p.peakEquity) {
		p.peakEquity = equity
	} else if p.peakEquity.IsPositive() {
		drawdown, _ := p.peakEquity.Sub(equity).Div(p.peakEquity).Float64()
		if drawdown > p.maxDrawdown {
			p.maxDrawdown = drawdown
		}
	}
	return equity
}

// Trades returns the closed trades in exit order.
func (p *Portfolio) Trades() []Trade { return p.trades }

// EquityCurve returns the mark-to-market history.
func (p *Portfolio) EquityCurve() []EquityPoint { return p.equity }

// MaxDrawdown returns the largest observed peak-to-trough equity fraction.
func (p *Portfolio) MaxDrawdown() float64 { return p.maxDrawdown }
