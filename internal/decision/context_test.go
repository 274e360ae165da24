package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() *Context {
	return NewContext("balanced", "AAPL", map[string]float64{
		"rsi":       1.0,
		"macd":      1.0,
		"sma_cross": 1.0,
	}, 1.0)
}

func TestContext_WeightedPass(t *testing.T) {
	ctx := newTestContext()
	ctx.SetRawScore("rsi", 0.36)
	ctx.SetRawScore("macd", 0.5)
	ctx.SetRawScore("sma_cross", -0.2)

	final := ctx.CalculateFinalScore()
	assert.InDelta(t, 0.66, final, 1e-9)
	assert.Equal(t, final, ctx.FinalScore())
}

func TestContext_AdjustWeight(t *testing.T) {
	ctx := newTestContext()
	ctx.SetRawScore("rsi", 1.0)
	ctx.SetRawScore("macd", 1.0)

	ctx.AdjustWeight("rsi", 0.2, "vix_high_volatility_mode", "high volatility")
	ctx.AdjustWeight("macd", -0.2, "vix_high_volatility_mode", "high volatility")

	final := ctx.CalculateFinalScore()
	assert.InDelta(t, 2.0, final, 1e-9, "1.2*1.0 + 0.8*1.0")

	adjustments := ctx.Adjustments()
	require.Len(t, adjustments, 2)
	assert.Equal(t, "rsi", adjustments[0].TargetDetector)
	assert.Equal(t, 0.2, adjustments[0].Delta)
	assert.Equal(t, 1.0, adjustments[0].OriginalWeight)
	assert.Equal(t, 1.2, adjustments[0].FinalWeight)
}

func TestContext_AdjustWeight_FloorsAtZero(t *testing.T) {
	ctx := newTestContext()
	ctx.AdjustWeight("rsi", -5.0, "mod", "crush it")

	w, ok := ctx.Weight("rsi")
	require.True(t, ok)
	assert.Zero(t, w)

	// The original weight is untouched.
	orig, ok := ctx.OriginalWeight("rsi")
	require.True(t, ok)
	assert.Equal(t, 1.0, orig)
}

func TestContext_AdjustWeight_UnknownDetectorIgnored(t *testing.T) {
	ctx := newTestContext()
	ctx.AdjustWeight("bogus", 0.5, "mod", "")
	assert.Empty(t, ctx.Adjustments())
}

func TestContext_MultipliersApplyInOrder(t *testing.T) {
	ctx := newTestContext()
	ctx.SetRawScore("rsi", 2.0)
	ctx.AddMultiplier(0.6, "extreme_greed_filter")
	ctx.AddMultiplier(0.8, "buffett_overvaluation")

	final := ctx.CalculateFinalScore()
	assert.InDelta(t, 2.0*0.6*0.8, final, 1e-9)
}

func TestContext_ThresholdAdjustment(t *testing.T) {
	ctx := newTestContext()
	assert.Equal(t, 1.0, ctx.Threshold())

	ctx.AdjustThreshold(2, "low_volatility_consolidation")
	assert.Equal(t, 3.0, ctx.Threshold())

	ctx.AdjustThreshold(-0.5, "other")
	assert.Equal(t, 2.5, ctx.Threshold())
}

func TestContext_FirstVetoWins(t *testing.T) {
	ctx := newTestContext()
	ctx.SetVeto(ActionVetoBuy, "vix above 30", "vix_filter")
	ctx.SetVeto(ActionVetoAll, "panic", "extreme_fear_filter")

	assert.True(t, ctx.Vetoed())
	assert.Equal(t, "vix above 30", ctx.VetoReason())
	assert.True(t, ctx.Vetoes(SignalBuy))
	assert.False(t, ctx.Vetoes(SignalSell), "first veto was buy-only and must not widen")
}

func TestContext_VetoKinds(t *testing.T) {
	tests := []struct {
		kind       ActionKind
		blocksBuy  bool
		blocksSell bool
	}{
		{ActionVetoBuy, true, false},
		{ActionVetoSell, false, true},
		{ActionVetoAll, true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			ctx := newTestContext()
			ctx.SetVeto(tt.kind, "reason", "source")
			assert.Equal(t, tt.blocksBuy, ctx.Vetoes(SignalBuy))
			assert.Equal(t, tt.blocksSell, ctx.Vetoes(SignalSell))
			assert.False(t, ctx.Vetoes(SignalHold), "HOLD is never vetoed")
		})
	}
}

func TestContext_Snapshot(t *testing.T) {
	ctx := newTestContext()
	ctx.SetRawScore("rsi", 0.36)
	ctx.AdjustWeight("rsi", 0.2, "mod", "")
	ctx.AddMultiplier(0.6, "mod2")
	ctx.SetVeto(ActionVetoBuy, "fear", "vix_filter")
	ctx.CalculateFinalScore()

	snap := ctx.Snapshot()
	assert.Equal(t, "balanced", snap.StrategyID)
	assert.Equal(t, "AAPL", snap.Ticker)
	assert.Equal(t, 1.0, snap.OriginalWeights["rsi"])
	assert.Equal(t, 1.2, snap.FinalWeights["rsi"])
	assert.InDelta(t, 0.36, snap.RawScores["rsi"], 1e-9)
	assert.True(t, snap.Vetoed)
	assert.Equal(t, ActionVetoBuy, snap.VetoKind)

	// Mutating the context after the snapshot must not leak into it.
	ctx.AdjustWeight("rsi", 0.5, "later", "")
	assert.Equal(t, 1.2, snap.FinalWeights["rsi"])
	assert.Len(t, snap.Adjustments, 1)
}

func TestContext_ScoreOrderDeterministic(t *testing.T) {
	// Same inputs in the same order always produce the same weighted result.
	for i := 0; i < 10; i++ {
		ctx := newTestContext()
		ctx.SetRawScore("sma_cross", 0.3)
		ctx.SetRawScore("macd", 0.2)
		ctx.SetRawScore("rsi", 0.1)
		assert.InDelta(t, 0.6, ctx.CalculateFinalScore(), 1e-9)
	}
}
