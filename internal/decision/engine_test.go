package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hadoobidoop/stock-tracker/internal/logging"
	"github.com/hadoobidoop/stock-tracker/internal/market"
)

func TestCatalog_AllValid(t *testing.T) {
	for _, def := range Catalog() {
		assert.NoError(t, def.Validate(), "catalog modifier %s invalid", def.ID)
	}
}

func TestDefinition_Validate(t *testing.T) {
	valid := Definition{
		ID:        "test",
		Condition: Condition{Indicator: market.MacroVIX, Operator: OpGreater, Value: 30},
		Action:    Action{Kind: ActionVetoBuy},
		Enabled:   true,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Definition)
	}{
		{"missing id", func(d *Definition) { d.ID = "" }},
		{"missing indicator", func(d *Definition) { d.Condition.Indicator = "" }},
		{"bad operator", func(d *Definition) { d.Condition.Operator = "~=" }},
		{"bad action kind", func(d *Definition) { d.Action.Kind = "EXPLODE" }},
		{"adjust weights without targets", func(d *Definition) {
			d.Action = Action{Kind: ActionAdjustWeights}
		}},
		{"adjust score without multiplier", func(d *Definition) {
			d.Action = Action{Kind: ActionAdjustScore}
		}},
		{"adjust threshold with zero delta", func(d *Definition) {
			d.Action = Action{Kind: ActionAdjustThreshold}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := valid
			tt.mutate(&def)
			assert.Error(t, def.Validate())
		})
	}
}

func TestCondition_Evaluate(t *testing.T) {
	macro := market.MacroSnapshot{market.MacroVIX: 32}
	macro[market.MacroSP500SMA200] = 5000
	macro[market.MacroSP500SMA200+market.ReferenceSuffix] = 4800

	tests := []struct {
		name      string
		cond      Condition
		triggered bool
		ok        bool
	}{
		{"greater hit", Condition{Indicator: market.MacroVIX, Operator: OpGreater, Value: 30}, true, true},
		{"greater miss", Condition{Indicator: market.MacroVIX, Operator: OpGreater, Value: 35}, false, true},
		{"less", Condition{Indicator: market.MacroVIX, Operator: OpLess, Value: 35}, true, true},
		{"gte boundary", Condition{Indicator: market.MacroVIX, Operator: OpGreaterEqual, Value: 32}, true, true},
		{"lte boundary", Condition{Indicator: market.MacroVIX, Operator: OpLessEqual, Value: 32}, true, true},
		{"is_above", Condition{Indicator: market.MacroSP500SMA200, Operator: OpIsAbove}, true, true},
		{"is_below", Condition{Indicator: market.MacroSP500SMA200, Operator: OpIsBelow}, false, true},
		{"missing indicator", Condition{Indicator: market.MacroDXY, Operator: OpGreater, Value: 100}, false, false},
		{"missing reference", Condition{Indicator: market.MacroVIX, Operator: OpIsAbove}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			triggered, ok := tt.cond.evaluate(macro)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.triggered, triggered)
		})
	}
}

func TestEngine_PriorityOrder(t *testing.T) {
	defs := []Definition{
		{
			ID:        "second",
			Condition: Condition{Indicator: market.MacroVIX, Operator: OpGreater, Value: 10},
			Action:    Action{Kind: ActionAdjustScore, ScoreMultiplier: 0.5},
			Priority:  10,
			Enabled:   true,
		},
		{
			ID:        "first",
			Condition: Condition{Indicator: market.MacroVIX, Operator: OpGreater, Value: 10},
			Action:    Action{Kind: ActionAdjustScore, ScoreMultiplier: 0.9},
			Priority:  90,
			Enabled:   true,
		},
	}
	engine, err := NewEngine(defs, VetoEvaluateAll, logging.NewNop())
	require.NoError(t, err)

	ordered := engine.Modifiers()
	require.Len(t, ordered, 2)
	assert.Equal(t, "first", ordered[0].ID)
	assert.Equal(t, "second", ordered[1].ID)
}

func TestEngine_EqualPriorityKeepsDeclarationOrder(t *testing.T) {
	defs := []Definition{
		{
			ID:        "declared_first",
			Condition: Condition{Indicator: market.MacroVIX, Operator: OpGreater, Value: 10},
			Action:    Action{Kind: ActionVetoBuy, Reason: "a"},
			Priority:  50,
			Enabled:   true,
		},
		{
			ID:        "declared_second",
			Condition: Condition{Indicator: market.MacroVIX, Operator: OpGreater, Value: 10},
			Action:    Action{Kind: ActionVetoSell, Reason: "b"},
			Priority:  50,
			Enabled:   true,
		},
	}
	engine, err := NewEngine(defs, VetoEvaluateAll, logging.NewNop())
	require.NoError(t, err)

	ctx := NewContext("s", "AAPL", map[string]float64{"rsi": 1}, 1.0)
	engine.ApplyAll(ctx, market.MacroSnapshot{market.MacroVIX: 20})

	// Both trigger; the first declared wins the veto.
	assert.True(t, ctx.Vetoes(SignalBuy))
	assert.False(t, ctx.Vetoes(SignalSell))
}

func TestEngine_SkipsOnMissingMacro(t *testing.T) {
	engine, err := NewEngine(Catalog(), VetoEvaluateAll, logging.NewNop())
	require.NoError(t, err)

	ctx := NewContext("s", "AAPL", map[string]float64{"rsi": 1}, 1.0)
	applications := engine.ApplyAll(ctx, market.MacroSnapshot{})

	require.NotEmpty(t, applications)
	for _, app := range applications {
		assert.True(t, app.Skipped, "modifier %s should skip without macro data", app.ModifierID)
		assert.False(t, app.Triggered)
	}
	assert.False(t, ctx.Vetoed())
	assert.Empty(t, ctx.Adjustments())
}

func TestEngine_VixPanicVetoesAll(t *testing.T) {
	engine, err := NewEngine(Catalog(), VetoEvaluateAll, logging.NewNop())
	require.NoError(t, err)

	ctx := NewContext("s", "AAPL", map[string]float64{"rsi": 1}, 1.0)
	engine.ApplyAll(ctx, market.MacroSnapshot{market.MacroVIX: 40})

	assert.True(t, ctx.Vetoes(SignalBuy))
	assert.True(t, ctx.Vetoes(SignalSell))
}

func TestEngine_ElevatedVixAdjustsWeights(t *testing.T) {
	engine, err := NewEngine(Catalog(), VetoEvaluateAll, logging.NewNop())
	require.NoError(t, err)

	ctx := NewContext("s", "AAPL", map[string]float64{"rsi": 1, "macd_cross": 1}, 1.0)
	engine.ApplyAll(ctx, market.MacroSnapshot{market.MacroVIX: 27})

	// VIX 27 trips the high-volatility mode but neither veto.
	assert.False(t, ctx.Vetoed())
	w, _ := ctx.Weight("rsi")
	assert.InDelta(t, 1.2, w, 1e-9)
	w, _ = ctx.Weight("macd_cross")
	assert.InDelta(t, 0.8, w, 1e-9)
}

func TestEngine_ShortCircuitStopsAtVeto(t *testing.T) {
	defs := []Definition{
		{
			ID:        "panic",
			Condition: Condition{Indicator: market.MacroVIX, Operator: OpGreater, Value: 35},
			Action:    Action{Kind: ActionVetoAll, Reason: "panic"},
			Priority:  100,
			Enabled:   true,
		},
		{
			ID:        "discount",
			Condition: Condition{Indicator: market.MacroVIX, Operator: OpGreater, Value: 10},
			Action:    Action{Kind: ActionAdjustScore, ScoreMultiplier: 0.5},
			Priority:  50,
			Enabled:   true,
		},
	}
	macro := market.MacroSnapshot{market.MacroVIX: 40}

	short, err := NewEngine(defs, VetoShortCircuit, logging.NewNop())
	require.NoError(t, err)
	ctx := NewContext("s", "AAPL", map[string]float64{"rsi": 1}, 1.0)
	apps := short.ApplyAll(ctx, macro)
	assert.Len(t, apps, 1, "evaluation stops at the veto")

	full, err := NewEngine(defs, VetoEvaluateAll, logging.NewNop())
	require.NoError(t, err)
	ctx = NewContext("s", "AAPL", map[string]float64{"rsi": 1}, 1.0)
	apps = full.ApplyAll(ctx, macro)
	assert.Len(t, apps, 2, "evaluate-all keeps going for the audit trail")
}

func TestEngine_DisabledModifierIgnored(t *testing.T) {
	defs := []Definition{
		{
			ID:        "off",
			Condition: Condition{Indicator: market.MacroVIX, Operator: OpGreater, Value: 10},
			Action:    Action{Kind: ActionVetoAll, Reason: "x"},
			Priority:  100,
			Enabled:   false,
		},
	}
	engine, err := NewEngine(defs, VetoEvaluateAll, logging.NewNop())
	require.NoError(t, err)

	ctx := NewContext("s", "AAPL", map[string]float64{"rsi": 1}, 1.0)
	apps := engine.ApplyAll(ctx, market.MacroSnapshot{market.MacroVIX: 40})
	assert.Empty(t, apps)
	assert.False(t, ctx.Vetoed())
}

func TestNewEngine_RejectsInvalidDefinition(t *testing.T) {
	_, err := NewEngine([]Definition{{ID: ""}}, VetoEvaluateAll, logging.NewNop())
	assert.Error(t, err)

	_, err = NewEngine(nil, "sometimes", logging.NewNop())
	assert.Error(t, err)
}
