package backtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/hadoobidoop/stock-tracker/internal/decision"
	"github.com/hadoobidoop/stock-tracker/internal/indicator"
	"github.com/hadoobidoop/stock-tracker/internal/market"
	"github.com/hadoobidoop/stock-tracker/internal/strategy"
	"github.com/hadoobidoop/stock-tracker/internal/utils"
)

// MacroProvider supplies the macro snapshot in effect at a timestamp.
type MacroProvider interface {
	At(ts time.Time) market.MacroSnapshot
}

// StaticMacro is a MacroProvider returning the same snapshot for every bar.
type StaticMacro market.MacroSnapshot

// At implements MacroProvider.
func (s StaticMacro) At(time.Time) market.MacroSnapshot {
	return market.MacroSnapshot(s)
}

// Config holds the simulation-level parameters shared by every strategy run.
type Config struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital" mapstructure:"initial_capital"`
	// CommissionRate is the fraction of notional charged on each side.
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate" mapstructure:"commission_rate"`
}

// DefaultConfig returns the simulation defaults.
func DefaultConfig() Config {
	return Config{
		InitialCapital: 100_000,
		CommissionRate: 0.001,
	}
}

// Engine replays historical bars through a strategy and simulates the
// resulting portfolio bar by bar. Within one bar, protective exits are
// evaluated before new signals, and the stop is checked before the target
// when both are touched.
type Engine struct {
	cfg    Config
	logger *logrus.Logger
}

// NewEngine creates a backtest engine.
func NewEngine(cfg Config, logger *logrus.Logger) (*Engine, error) {
	if cfg.InitialCapital <= 0 {
		return nil, utils.NewConfigErrorf("backtest", "initial capital must be positive, got %v", cfg.InitialCapital)
	}
	if cfg.CommissionRate < 0 || cfg.CommissionRate >= 1 {
		return nil, utils.NewConfigErrorf("backtest", "commission rate must be in [0,1), got %v", cfg.CommissionRate)
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

type tickerState struct {
	table  *market.IndicatorTable
	rowAt  map[time.Time]int
	lastTS time.Time
}

// Run executes one backtest of a strategy over the given indicator tables.
// All tickers share one portfolio and one merged timeline; cash freed by an
// exit is available to entries later the same bar.
func (e *Engine) Run(ctx context.Context, strat *strategy.Strategy, tables map[string]*market.IndicatorTable, macro MacroProvider) (*Result, error) {
	if len(tables) == 0 {
		return nil, utils.NewValidationError("backtest: no tables to replay")
	}
	if macro == nil {
		macro = StaticMacro(nil)
	}

	states := make(map[string]*tickerState, len(tables))
	timelineSet := make(map[time.Time]struct{})
	var interval time.Duration
	for ticker, table := range tables {
		if err := table.Validate(); err != nil {
			return nil, err
		}
		st := &tickerState{table: table, rowAt: make(map[time.Time]int, table.Len())}
		for i := range table.Bars {
			ts := table.Bars[i].Timestamp
			st.rowAt[ts] = i
			timelineSet[ts] = struct{}{}
		}
		if table.Len() > 0 {
			st.lastTS = table.Bars[table.Len()-1].Timestamp
		}
		states[ticker] = st
		if iv := table.Interval(); interval == 0 || (iv > 0 && iv < interval) {
			interval = iv
		}
	}

	timeline := make([]time.Time, 0, len(timelineSet))
	for ts := range timelineSet {
		timeline = append(timeline, ts)
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Before(timeline[j]) })

	tickers := make([]string, 0, len(states))
	for t := range states {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	portfolio := NewPortfolio(decimal.NewFromFloat(e.cfg.InitialCapital))
	risk := strat.Config().Risk
	var missed []MissedEntry

	e.logger.WithFields(logrus.Fields{
		"strategy": strat.ID(),
		"tickers":  len(tickers),
		"bars":     len(timeline),
	}).Info("Starting backtest")

	for _, ts := range timeline {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		closes := make(map[string]decimal.Decimal, len(tickers))
		exitedThisBar := make(map[string]bool)

		for _, ticker := range tickers {
			st := states[ticker]
			row, ok := st.rowAt[ts]
			if !ok {
				continue
			}
			bar := st.table.Bars[row]
			closes[ticker] = decimal.NewFromFloat(bar.Close)

			if pos, open := portfolio.Position(ticker); open {
				pos.BarsHeld++
				if reason, price, hit := e.checkExits(pos, bar, risk.MaxHoldBars); hit {
					e.closePosition(portfolio, ticker, price, ts, reason, strat.ID())
					exitedThisBar[ticker] = true
				}
			}

			signal, err := strat.Analyze(st.table, row, macro.At(ts))
			if err != nil {
				return nil, err
			}
			if signal.Type == decision.SignalHold {
				continue
			}
			dir := Long
			if signal.Type == decision.SignalSell {
				dir = Short
			}
			if pos, open := portfolio.Position(ticker); open {
				// A signal against the open side closes it; a signal on
				// the same side changes nothing.
				if pos.Direction != dir {
					e.closePosition(portfolio, ticker, decimal.NewFromFloat(bar.Close), ts, ExitSignalReversal, strat.ID())
					exitedThisBar[ticker] = true
				}
				continue
			}
			if exitedThisBar[ticker] {
				continue
			}
			if risk.MaxPositions > 0 && portfolio.OpenPositions() >= risk.MaxPositions {
				continue
			}
			if m, ok := e.openPosition(portfolio, st.table, row, signal, risk, dir); !ok {
				missed = append(missed, m)
			}
		}
		portfolio.MarkToMarket(ts, closes)
	}

	// Anything still open is liquidated at its final close.
	for _, ticker := range portfolio.Tickers() {
		st := states[ticker]
		lastBar := st.table.Bars[st.table.Len()-1]
		e.closePosition(portfolio, ticker, decimal.NewFromFloat(lastBar.Close), st.lastTS, ExitEndOfData, strat.ID())
	}

	final := portfolio.InitialCapital()
	if curve := portfolio.EquityCurve(); len(curve) > 0 {
		// Fold the liquidation into the final bar's mark; the repeated
		// timestamp overwrites the point instead of appending a second one.
		final = portfolio.MarkToMarket(timeline[len(timeline)-1], nil)
	}

	result := &Result{
		StrategyID:     strat.ID(),
		Interval:       interval,
		InitialCapital: portfolio.InitialCapital(),
		FinalEquity:    final,
		Trades:         portfolio.Trades(),
		EquityCurve:    portfolio.EquityCurve(),
		Missed:         missed,
	}
	if len(timeline) > 0 {
		result.Start = timeline[0]
		result.End = timeline[len(timeline)-1]
	}
	result.Metrics = CalculateMetrics(portfolio, interval)
	result.Metrics.MissedEntries = len(missed)

	e.logger.WithFields(logrus.Fields{
		"strategy":     strat.ID(),
		"trades":       result.Metrics.TotalTrades,
		"total_return": result.Metrics.TotalReturnPct,
		"max_drawdown": result.Metrics.MaxDrawdownPct,
	}).Info("Backtest complete")
	return result, nil
}

// checkExits applies the intrabar exit rules: stop loss first, then take
// profit, then the hold limit. Fills happen at the protective price, not the
// close. A long stops below and targets above; a short mirrors both.
func (e *Engine) checkExits(pos *Position, bar market.Bar, maxHoldBars int) (ExitReason, decimal.Decimal, bool) {
	low := decimal.NewFromFloat(bar.Low)
	high := decimal.NewFromFloat(bar.High)
	if pos.Direction == Short {
		if pos.StopPrice.IsPositive() && high.GreaterThanOrEqual(pos.StopPrice) {
			return ExitStopLoss, pos.StopPrice, true
		}
		if pos.TargetPrice.IsPositive() && low.LessThanOrEqual(pos.TargetPrice) {
			return ExitTakeProfit, pos.TargetPrice, true
		}
	} else {
		if pos.StopPrice.IsPositive() && low.LessThanOrEqual(pos.StopPrice) {
			return ExitStopLoss, pos.StopPrice, true
		}
		if pos.TargetPrice.IsPositive() && high.GreaterThanOrEqual(pos.TargetPrice) {
			return ExitTakeProfit, pos.TargetPrice, true
		}
	}
	if maxHoldBars > 0 && pos.BarsHeld >= maxHoldBars {
		return ExitMaxHoldExpired, decimal.NewFromFloat(bar.Close), true
	}
	return "", decimal.Zero, false
}

func (e *Engine) closePosition(p *Portfolio, ticker string, price decimal.Decimal, ts time.Time, reason ExitReason, strategyID string) {
	pos, ok := p.Position(ticker)
	if !ok {
		return
	}
	commission := price.Mul(pos.Shares).Mul(decimal.NewFromFloat(e.cfg.CommissionRate))
	trade, err := p.Close(ticker, price, commission, ts, reason, strategyID)
	if err != nil {
		e.logger.WithError(err).WithField("ticker", ticker).Error("Failed to close position")
		return
	}
	e.logger.WithFields(logrus.Fields{
		"ticker": ticker,
		"reason": reason,
		"pnl":    trade.PnL,
		"bars":   trade.BarsHeld,
	}).Debug("Closed position")
}

// openPosition sizes a new position off the current ATR: risk a fixed
// fraction of cash over the stop distance, capped by what cash can actually
// cover including the entry commission. Shorts reserve the same notional a
// long would spend.
func (e *Engine) openPosition(p *Portfolio, table *market.IndicatorTable, row int, signal *strategy.TradingSignal, risk strategy.RiskConfig, dir Direction) (MissedEntry, bool) {
	bar := table.Bars[row]
	atr, ok := table.Value(indicator.ColATR, row)
	if !ok || atr <= 0 {
		return e.miss(table.Ticker, bar.Timestamp, "ATR unavailable"), false
	}
	stopDistance := risk.ATRStopMultiple * atr
	if stopDistance <= 0 {
		return e.miss(table.Ticker, bar.Timestamp, "zero stop distance"), false
	}

	cash, _ := p.Cash().Float64()
	riskAmount := cash * risk.RiskPerTrade
	shares := int64(riskAmount / stopDistance)

	perShareCost := bar.Close * (1 + e.cfg.CommissionRate)
	if perShareCost > 0 {
		if affordable := int64(cash / perShareCost); shares > affordable {
			shares = affordable
		}
	}
	if shares < 1 {
		return e.miss(table.Ticker, bar.Timestamp, "insufficient capital"), false
	}

	price := decimal.NewFromFloat(bar.Close)
	qty := decimal.NewFromInt(shares)
	commission := price.Mul(qty).Mul(decimal.NewFromFloat(e.cfg.CommissionRate))
	stop := bar.Close - stopDistance
	target := bar.Close + risk.ATRTargetMultiple*atr
	if dir == Short {
		stop = bar.Close + stopDistance
		target = bar.Close - risk.ATRTargetMultiple*atr
	}
	pos := &Position{
		Ticker:          table.Ticker,
		SignalID:        signal.ID,
		Direction:       dir,
		EntryTime:       bar.Timestamp,
		EntryPrice:      price,
		Shares:          qty,
		StopPrice:       decimal.NewFromFloat(stop),
		TargetPrice:     decimal.NewFromFloat(target),
		EntryCommission: commission,
	}
	if err := p.Open(pos); err != nil {
		return e.miss(table.Ticker, bar.Timestamp, err.Error()), false
	}
	e.logger.WithFields(logrus.Fields{
		"ticker":    table.Ticker,
		"direction": dir,
		"shares":    shares,
		"entry":     bar.Close,
		"stop":      pos.StopPrice,
		"target":    pos.TargetPrice,
	}).Debug("Opened position")
	return MissedEntry{}, true
}

func (e *Engine) miss(ticker string, ts time.Time, reason string) MissedEntry {
	e.logger.WithFields(logrus.Fields{
		"ticker": ticker,
		"reason": reason,
	}).Warn("Missed entry")
	return MissedEntry{Ticker: ticker, Time: ts, Reason: reason}
}

// Runner executes backtests for several strategies concurrently over the
// same data so their metrics are directly comparable.
type Runner struct {
	engine  *Engine
	manager *strategy.Manager
	logger  *logrus.Logger
}

// NewRunner creates a comparison runner.
func NewRunner(engine *Engine, manager *strategy.Manager, logger *logrus.Logger) *Runner {
	return &Runner{engine: engine, manager: manager, logger: logger}
}

// CompareStrategies runs one backtest per strategy id in parallel and
// returns the results keyed by id. The first error aborts the comparison.
func (r *Runner) CompareStrategies(ctx context.Context, ids []string, tables map[string]*market.IndicatorTable, macro MacroProvider) (map[string]*Result, error) {
	results := make(map[string]*Result, len(ids))
	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error

	for _, id := range ids {
		strat, err := r.manager.Get(id)
		if err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(id string, strat *strategy.Strategy) {
			defer wg.Done()
			result, err := r.engine.Run(ctx, strat, tables, macro)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results[id] = result
		}(id, strat)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
