package backtest

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExitReason explains why a position was closed.
type ExitReason string

const (
	ExitSignalReversal ExitReason = "SIGNAL_REVERSAL"
	ExitStopLoss       ExitReason = "STOP_LOSS"
	ExitTakeProfit     ExitReason = "TAKE_PROFIT"
	ExitMaxHoldExpired ExitReason = "MAX_HOLD_EXPIRED"
	ExitEndOfData      ExitReason = "END_OF_DATA"
)

// Direction is the side of a position or trade.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Position is one open holding inside the simulated portfolio. A short
// position reserves its entry notional as collateral, so cash accounting is
// symmetric with the long side.
type Position struct {
	Ticker          string          `json:"ticker"`
	SignalID        string          `json:"signal_id"`
	Direction       Direction       `json:"direction"`
	EntryTime       time.Time       `json:"entry_time"`
	EntryPrice      decimal.Decimal `json:"entry_price"`
	Shares          decimal.Decimal `json:"shares"`
	StopPrice       decimal.Decimal `json:"stop_price"`
	TargetPrice     decimal.Decimal `json:"target_price"`
	EntryCommission decimal.Decimal `json:"entry_commission"`
	BarsHeld        int             `json:"bars_held"`
}

// GrossPnL is the profit before commission of closing at the given price.
func (p *Position) GrossPnL(price decimal.Decimal) decimal.Decimal {
	diff := price.Sub(p.EntryPrice)
	if p.Direction == Short {
		diff = diff.Neg()
	}
	return diff.Mul(p.Shares)
}

// MarketValue is what the position returns to cash if closed at the given
// price, before exit commission: the reserved entry notional plus the gross
// profit so far.
func (p *Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	return p.EntryPrice.Mul(p.Shares).Add(p.GrossPnL(price))
}

// Trade is a completed round trip. PnL is net of commission on both sides.
type Trade struct {
	ID         string          `json:"id"`
	Ticker     string          `json:"ticker"`
	StrategyID string          `json:"strategy_id"`
	Direction  Direction       `json:"direction"`
	EntryTime  time.Time       `json:"entry_time"`
	ExitTime   time.Time       `json:"exit_time"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	Shares     decimal.Decimal `json:"shares"`
	Commission decimal.Decimal `json:"commission"`
	PnL        decimal.Decimal `json:"pnl"`
	ReturnPct  float64         `json:"return_pct"`
	BarsHeld   int             `json:"bars_held"`
	ExitReason ExitReason      `json:"exit_reason"`
}

// Win reports whether the trade closed with a positive net profit.
func (t Trade) Win() bool {
	return t.PnL.IsPositive()
}
