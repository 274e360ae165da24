package decision

import (
	"fmt"

	"github.com/hadoobidoop/stock-tracker/internal/market"
)

// ActionKind identifies what a triggered modifier does to the context.
type ActionKind string

const (
	ActionVetoBuy         ActionKind = "VETO_BUY"
	ActionVetoSell        ActionKind = "VETO_SELL"
	ActionVetoAll         ActionKind = "VETO_ALL"
	ActionAdjustWeights   ActionKind = "ADJUST_WEIGHTS"
	ActionAdjustScore     ActionKind = "ADJUST_SCORE"
	ActionAdjustThreshold ActionKind = "ADJUST_THRESHOLD"
)

// Operator compares a macro indicator value against the condition target.
type Operator string

const (
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	// OpIsAbove and OpIsBelow compare the indicator against a companion
	// reference series ("<indicator>_reference") instead of a fixed value.
	OpIsAbove Operator = "is_above"
	OpIsBelow Operator = "is_below"
)

// Condition is the trigger of a modifier: one macro indicator, one operator
// and, for the value operators, a fixed comparison target.
type Condition struct {
	Indicator string   `json:"indicator" yaml:"indicator" mapstructure:"indicator"`
	Operator  Operator `json:"operator" yaml:"operator" mapstructure:"operator"`
	Value     float64  `json:"value" yaml:"value" mapstructure:"value"`
}

// Action is what a triggered modifier applies to the decision context.
// Exactly the fields relevant to Kind are read; the rest are ignored.
type Action struct {
	Kind              ActionKind         `json:"kind" yaml:"kind" mapstructure:"kind"`
	WeightAdjustments map[string]float64 `json:"weight_adjustments,omitempty" yaml:"weight_adjustments" mapstructure:"weight_adjustments"`
	ScoreMultiplier   float64            `json:"score_multiplier,omitempty" yaml:"score_multiplier" mapstructure:"score_multiplier"`
	ThresholdDelta    float64            `json:"threshold_delta,omitempty" yaml:"threshold_delta" mapstructure:"threshold_delta"`
	Reason            string             `json:"reason,omitempty" yaml:"reason" mapstructure:"reason"`
}

// Definition is one declarative market-condition rule. Definitions are data,
// not code: the engine evaluates them in priority order against the macro
// snapshot and applies the triggered actions to the context.
type Definition struct {
	ID          string    `json:"id" yaml:"id" mapstructure:"id"`
	Description string    `json:"description,omitempty" yaml:"description" mapstructure:"description"`
	Condition   Condition `json:"condition" yaml:"condition" mapstructure:"condition"`
	Action      Action    `json:"action" yaml:"action" mapstructure:"action"`
	Priority    int       `json:"priority" yaml:"priority" mapstructure:"priority"`
	Enabled     bool      `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

// Validate rejects structurally invalid definitions before they reach the
// engine. An invalid rule is a configuration error, not a runtime skip.
func (d Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("modifier: missing id")
	}
	if d.Condition.Indicator == "" {
		return fmt.Errorf("modifier %s: missing condition indicator", d.ID)
	}
	switch d.Condition.Operator {
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpIsAbove, OpIsBelow:
	default:
		return fmt.Errorf("modifier %s: unknown operator %q", d.ID, d.Condition.Operator)
	}
	switch d.Action.Kind {
	case ActionVetoBuy, ActionVetoSell, ActionVetoAll:
	case ActionAdjustWeights:
		if len(d.Action.WeightAdjustments) == 0 {
			return fmt.Errorf("modifier %s: ADJUST_WEIGHTS with no adjustments", d.ID)
		}
	case ActionAdjustScore:
		if d.Action.ScoreMultiplier <= 0 {
			return fmt.Errorf("modifier %s: ADJUST_SCORE requires a positive multiplier", d.ID)
		}
	case ActionAdjustThreshold:
		if d.Action.ThresholdDelta == 0 {
			return fmt.Errorf("modifier %s: ADJUST_THRESHOLD with zero delta", d.ID)
		}
	default:
		return fmt.Errorf("modifier %s: unknown action kind %q", d.ID, d.Action.Kind)
	}
	return nil
}

// evaluate reports whether the condition holds for the given macro snapshot.
// The second return is false when the required indicator (or its reference)
// is absent, in which case the rule must be skipped rather than triggered.
func (c Condition) evaluate(macro market.MacroSnapshot) (bool, bool) {
	value, ok := macro.Lookup(c.Indicator)
	if !ok {
		return false, false
	}
	switch c.Operator {
	case OpGreater:
		return value > c.Value, true
	case OpLess:
		return value < c.Value, true
	case OpGreaterEqual:
		return value >= c.Value, true
	case OpLessEqual:
		return value <= c.Value, true
	case OpIsAbove, OpIsBelow:
		reference, refOK := macro.Reference(c.Indicator)
		if !refOK {
			return false, false
		}
		if c.Operator == OpIsAbove {
			return value > reference, true
		}
		return value < reference, true
	}
	return false, false
}

// Catalog returns the built-in modifier set. Higher priority runs first.
func Catalog() []Definition {
	return []Definition{
		{
			ID:          "extreme_fear_filter",
			Description: "Panic regime: suspend all trading while VIX is extreme",
			Condition:   Condition{Indicator: market.MacroVIX, Operator: OpGreater, Value: 35},
			Action:      Action{Kind: ActionVetoAll, Reason: "VIX above 35, market in panic"},
			Priority:    100,
			Enabled:     true,
		},
		{
			ID:          "vix_filter",
			Description: "Elevated fear: block new long entries",
			Condition:   Condition{Indicator: market.MacroVIX, Operator: OpGreater, Value: 30},
			Action:      Action{Kind: ActionVetoBuy, Reason: "VIX above 30, elevated fear"},
			Priority:    90,
			Enabled:     true,
		},
		{
			ID:          "extreme_greed_filter",
			Description: "Euphoria: discount every signal",
			Condition:   Condition{Indicator: market.MacroFearGreedIndex, Operator: OpGreaterEqual, Value: 80},
			Action:      Action{Kind: ActionAdjustScore, ScoreMultiplier: 0.6, Reason: "fear & greed in extreme greed"},
			Priority:    80,
			Enabled:     true,
		},
		{
			ID:          "buffett_overvaluation",
			Description: "Buffett indicator stretched: discount long conviction",
			Condition:   Condition{Indicator: market.MacroBuffettIndicator, Operator: OpGreater, Value: 200},
			Action:      Action{Kind: ActionAdjustScore, ScoreMultiplier: 0.8, Reason: "market cap to GDP above 200%"},
			Priority:    75,
			Enabled:     true,
		},
		{
			ID:          "rising_rates_pressure",
			Description: "10Y yield above 4.5%: growth names under pressure",
			Condition:   Condition{Indicator: market.MacroUS10YYield, Operator: OpGreaterEqual, Value: 4.5},
			Action: Action{
				Kind:              ActionAdjustWeights,
				WeightAdjustments: map[string]float64{"rsi": -0.1, "sma_cross": 0.1},
				Reason:            "rates pressure favors trend over dip buying",
			},
			Priority: 70,
			Enabled:  true,
		},
		{
			ID:          "vix_high_volatility_mode",
			Description: "Choppy regime: favor mean reversion over trend",
			Condition:   Condition{Indicator: market.MacroVIX, Operator: OpGreater, Value: 25},
			Action: Action{
				Kind:              ActionAdjustWeights,
				WeightAdjustments: map[string]float64{"rsi": 0.2, "macd_cross": -0.2},
				Reason:            "high volatility favors reversal detectors",
			},
			Priority: 50,
			Enabled:  true,
		},
		{
			ID:          "market_in_uptrend",
			Description: "S&P 500 above its 200-day average: lean long",
			Condition:   Condition{Indicator: market.MacroSP500SMA200, Operator: OpIsAbove},
			Action: Action{
				Kind:              ActionAdjustWeights,
				WeightAdjustments: map[string]float64{"sma_cross": 0.15, "macd_cross": 0.1},
				Reason:            "broad market uptrend",
			},
			Priority: 40,
			Enabled:  true,
		},
		{
			ID:          "market_in_downtrend",
			Description: "S&P 500 below its 200-day average: lean defensive",
			Condition:   Condition{Indicator: market.MacroSP500SMA200, Operator: OpIsBelow},
			Action: Action{
				Kind:              ActionAdjustWeights,
				WeightAdjustments: map[string]float64{"sma_cross": -0.15, "rsi": 0.1},
				Reason:            "broad market downtrend",
			},
			Priority: 40,
			Enabled:  true,
		},
		{
			ID:          "low_volatility_consolidation",
			Description: "Calm regime: demand stronger signals before acting",
			Condition:   Condition{Indicator: market.MacroVIX, Operator: OpLess, Value: 15},
			Action:      Action{Kind: ActionAdjustThreshold, ThresholdDelta: 2, Reason: "low volatility, fewer tradable moves"},
			Priority:    30,
			Enabled:     true,
		},
	}
}

// CatalogByID indexes the built-in catalog for strategy configs that refer
// to modifiers by id.
func CatalogByID() map[string]Definition {
	byID := make(map[string]Definition)
	for _, def := range Catalog() {
		byID[def.ID] = def
	}
	return byID
}
