package backtest

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MissedEntry records a buy signal the simulation could not act on.
type MissedEntry struct {
	Ticker string    `json:"ticker"`
	Time   time.Time `json:"time"`
	Reason string    `json:"reason"`
}

// Metrics are the performance indicators computed from one finished run.
type Metrics struct {
	TotalReturnPct      float64 `json:"total_return_pct"`
	AnnualizedReturnPct float64 `json:"annualized_return_pct"`
	SharpeRatio         float64 `json:"sharpe_ratio"`
	MaxDrawdownPct      float64 `json:"max_drawdown_pct"`

	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`

	// ProfitFactorUndefined is set when there are trades but no losing
	// ones, in which case ProfitFactor is reported as zero rather than
	// infinity.
	ProfitFactor          float64 `json:"profit_factor"`
	ProfitFactorUndefined bool    `json:"profit_factor_undefined,omitempty"`

	AvgWinPct      float64 `json:"avg_win_pct"`
	AvgLossPct     float64 `json:"avg_loss_pct"`
	LargestWinPct  float64 `json:"largest_win_pct"`
	LargestLossPct float64 `json:"largest_loss_pct"`
	Expectancy     float64 `json:"expectancy"`
	AvgHoldBars    float64 `json:"avg_hold_bars"`

	TotalCommission decimal.Decimal `json:"total_commission"`
	MissedEntries   int             `json:"missed_entries"`
}

// Result is the complete output of one backtest run.
type Result struct {
	StrategyID     string          `json:"strategy_id"`
	Start          time.Time       `json:"start"`
	End            time.Time       `json:"end"`
	Interval       time.Duration   `json:"interval"`
	InitialCapital decimal.Decimal `json:"initial_capital"`
	FinalEquity    decimal.Decimal `json:"final_equity"`
	Trades         []Trade         `json:"trades"`
	EquityCurve    []EquityPoint   `json:"equity_curve"`
	Missed         []MissedEntry   `json:"missed_entries,omitempty"`
	Metrics        Metrics         `json:"metrics"`
}

const tradingDaysPerYear = 252.0

// periodsPerYear converts a bar interval into an annualization factor.
// Daily and slower bars use trading days; intraday bars assume a 6.5 hour
// session.
func periodsPerYear(interval time.Duration) float64 {
	if interval <= 0 {
		return tradingDaysPerYear
	}
	if interval >= 24*time.Hour {
		days := float64(interval) / float64(24*time.Hour)
		return tradingDaysPerYear / days
	}
	sessionsPerDay := float64(6*time.Hour+30*time.Minute) / float64(interval)
	if sessionsPerDay < 1 {
		sessionsPerDay = 1
	}
	return tradingDaysPerYear * sessionsPerDay
}

// CalculateMetrics derives the performance indicators from the portfolio
// state. Degenerate inputs are deliberate: no trades yields all zeros, zero
// return volatility yields a Sharpe of zero, and an all-winning run flags
// the profit factor as undefined instead of dividing by zero.
func CalculateMetrics(p *Portfolio, interval time.Duration) Metrics {
	m := Metrics{}
	initial := p.InitialCapital()
	curve := p.EquityCurve()

	final := initial
	if len(curve) > 0 {
		final = curve[len(curve)-1].Equity
	}
	if initial.IsPositive() {
		m.TotalReturnPct, _ = final.Sub(initial).Div(initial).Float64()
	}
	m.MaxDrawdownPct = p.MaxDrawdown()

	// Per-bar returns from the equity curve drive Sharpe and the
	// annualized figure.
	returns := make([]float64, 0, len(curve))
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if !prev.IsPositive() {
			continue
		}
		r, _ := curve[i].Equity.Sub(prev).Div(prev).Float64()
		returns = append(returns, r)
	}
	periods := periodsPerYear(interval)
	if len(returns) > 0 {
		mean := 0.0
		for _, r := range returns {
			mean += r
		}
		mean /= float64(len(returns))

		variance := 0.0
		for _, r := range returns {
			variance += (r - mean) * (r - mean)
		}
		variance /= float64(len(returns))
		stddev := math.Sqrt(variance)

		if stddev > 0 {
			m.SharpeRatio = mean / stddev * math.Sqrt(periods)
		}
		years := float64(len(returns)) / periods
		if years > 0 && m.TotalReturnPct > -1 {
			m.AnnualizedReturnPct = math.Pow(1+m.TotalReturnPct, 1/years) - 1
		}
	}

	trades := p.Trades()
	m.TotalTrades = len(trades)
	if len(trades) == 0 {
		return m
	}

	grossProfit := decimal.Zero
	grossLoss := decimal.Zero
	sumWinPct := 0.0
	sumLossPct := 0.0
	sumHold := 0
	for _, t := range trades {
		m.TotalCommission = m.TotalCommission.Add(t.Commission)
		sumHold += t.BarsHeld
		if t.Win() {
			m.Wins++
			grossProfit = grossProfit.Add(t.PnL)
			sumWinPct += t.ReturnPct
			if t.ReturnPct > m.LargestWinPct {
				m.LargestWinPct = t.ReturnPct
			}
		} else {
			m.Losses++
			grossLoss = grossLoss.Add(t.PnL.Abs())
			sumLossPct += t.ReturnPct
			if t.ReturnPct < m.LargestLossPct {
				m.LargestLossPct = t.ReturnPct
			}
		}
	}
	m.AvgHoldBars = float64(sumHold) / float64(m.TotalTrades)
	m.WinRate = float64(m.Wins) / float64(m.TotalTrades)
	if grossLoss.IsPositive() {
		m.ProfitFactor, _ = grossProfit.Div(grossLoss).Float64()
	} else {
		m.ProfitFactorUndefined = true
	}
	if m.Wins > 0 {
		m.AvgWinPct = sumWinPct / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLossPct = sumLossPct / float64(m.Losses)
	}
	m.Expectancy = m.WinRate*m.AvgWinPct + (1-m.WinRate)*m.AvgLossPct
	return m
}
