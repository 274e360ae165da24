package strategy

import (
	"time"

	"github.com/google/uuid"

	"github.com/hadoobidoop/stock-tracker/internal/decision"
	"github.com/hadoobidoop/stock-tracker/internal/detector"
)

// TradingSignal is the final output of one analysis pass: the direction, the
// score that produced it, and the complete evidence trail. HOLD signals are
// emitted too so the audit trail covers vetoed and below-threshold passes.
type TradingSignal struct {
	ID         string              `json:"id"`
	Ticker     string              `json:"ticker"`
	StrategyID string              `json:"strategy_id"`
	Type       decision.SignalType `json:"type"`
	Score      float64             `json:"score"`
	Threshold  float64             `json:"threshold"`
	Price      float64             `json:"price"`
	Timestamp  time.Time           `json:"timestamp"`
	Evidence   []detector.Fact     `json:"evidence,omitempty"`
	Context    *decision.Snapshot  `json:"context,omitempty"`
}

func newSignal(strategyID, ticker string, sigType decision.SignalType, price float64, ts time.Time, snap *decision.Snapshot, evidence []detector.Fact) *TradingSignal {
	return &TradingSignal{
		ID:         uuid.NewString(),
		Ticker:     ticker,
		StrategyID: strategyID,
		Type:       sigType,
		Score:      snap.FinalScore,
		Threshold:  snap.FinalThreshold,
		Price:      price,
		Timestamp:  ts,
		Evidence:   evidence,
		Context:    snap,
	}
}

// Actionable reports whether the signal opens or closes a position.
func (s *TradingSignal) Actionable() bool {
	return s.Type == decision.SignalBuy || s.Type == decision.SignalSell
}
