package strategy

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/hadoobidoop/stock-tracker/internal/decision"
	"github.com/hadoobidoop/stock-tracker/internal/detector"
	"github.com/hadoobidoop/stock-tracker/internal/utils"
)

// DetectorSpec declares one detector instance inside a strategy: the
// registered kind, the scoring weight baked into the detector itself, and
// kind-specific parameters. ID defaults to Kind and is the key modifiers use
// to target the detector.
type DetectorSpec struct {
	ID     string             `json:"id,omitempty" yaml:"id" mapstructure:"id"`
	Kind   string             `json:"kind" yaml:"kind" mapstructure:"kind"`
	Weight float64            `json:"weight" yaml:"weight" mapstructure:"weight"`
	Params map[string]float64 `json:"params,omitempty" yaml:"params" mapstructure:"params"`
}

func (s DetectorSpec) key() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Kind
}

// CompositeSpec declares a composite detector built from inline children.
type CompositeSpec struct {
	ID         string              `json:"id" yaml:"id" mapstructure:"id"`
	Combinator detector.Combinator `json:"combinator" yaml:"combinator" mapstructure:"combinator"`
	Children   []DetectorSpec      `json:"children" yaml:"children" mapstructure:"children"`
}

// RiskConfig carries the position sizing and exit parameters a strategy hands
// to the execution layer.
type RiskConfig struct {
	RiskPerTrade      float64 `json:"risk_per_trade" yaml:"risk_per_trade" mapstructure:"risk_per_trade"`
	ATRStopMultiple   float64 `json:"atr_stop_multiple" yaml:"atr_stop_multiple" mapstructure:"atr_stop_multiple"`
	ATRTargetMultiple float64 `json:"atr_target_multiple" yaml:"atr_target_multiple" mapstructure:"atr_target_multiple"`
	MaxHoldBars       int     `json:"max_hold_bars" yaml:"max_hold_bars" mapstructure:"max_hold_bars"`
	MaxPositions      int     `json:"max_positions" yaml:"max_positions" mapstructure:"max_positions"`
}

// Config is the full declarative description of one strategy.
type Config struct {
	ID          string          `json:"id" yaml:"id" mapstructure:"id"`
	Name        string          `json:"name" yaml:"name" mapstructure:"name"`
	Description string          `json:"description,omitempty" yaml:"description" mapstructure:"description"`
	Detectors   []DetectorSpec  `json:"detectors" yaml:"detectors" mapstructure:"detectors"`
	Composites  []CompositeSpec `json:"composites,omitempty" yaml:"composites" mapstructure:"composites"`

	// SignalThreshold applies symmetrically: BUY at or above it, SELL at or
	// below its negation. Modifiers may shift it per analysis pass.
	SignalThreshold float64 `json:"signal_threshold" yaml:"signal_threshold" mapstructure:"signal_threshold"`

	// Modifiers lists catalog ids this strategy subscribes to. An empty
	// list means no modifiers run at all, making the strategy static.
	// AllModifiers subscribes to the entire built-in catalog instead.
	Modifiers    []string            `json:"modifiers,omitempty" yaml:"modifiers" mapstructure:"modifiers"`
	AllModifiers bool                `json:"all_modifiers,omitempty" yaml:"all_modifiers" mapstructure:"all_modifiers"`
	VetoPolicy   decision.VetoPolicy `json:"veto_policy,omitempty" yaml:"veto_policy" mapstructure:"veto_policy"`

	Risk RiskConfig `json:"risk" yaml:"risk" mapstructure:"risk"`
}

// Validate checks the config is internally consistent and every referenced
// detector kind and modifier id exists.
func (c Config) Validate() error {
	if c.ID == "" {
		return utils.NewConfigError("strategy", "missing id")
	}
	if len(c.Detectors) == 0 && len(c.Composites) == 0 {
		return utils.NewConfigErrorf("strategy "+c.ID, "no detectors declared")
	}
	if c.SignalThreshold <= 0 {
		return utils.NewConfigErrorf("strategy "+c.ID, "signal threshold must be positive, got %v", c.SignalThreshold)
	}
	seen := make(map[string]bool)
	for _, spec := range c.Detectors {
		if err := validateSpec(c.ID, spec, seen); err != nil {
			return err
		}
	}
	for _, comp := range c.Composites {
		if comp.ID == "" {
			return utils.NewConfigErrorf("strategy "+c.ID, "composite with no id")
		}
		if seen[comp.ID] {
			return utils.NewConfigErrorf("strategy "+c.ID, "duplicate detector id %q", comp.ID)
		}
		seen[comp.ID] = true
		if comp.Combinator != detector.CombineAnd && comp.Combinator != detector.CombineOr {
			return utils.NewConfigErrorf("strategy "+c.ID, "composite %s: unknown combinator %q", comp.ID, comp.Combinator)
		}
		if len(comp.Children) == 0 {
			return utils.NewConfigErrorf("strategy "+c.ID, "composite %s has no children", comp.ID)
		}
		for _, child := range comp.Children {
			if err := validateSpec(c.ID, child, make(map[string]bool)); err != nil {
				return err
			}
		}
	}
	if c.AllModifiers && len(c.Modifiers) > 0 {
		return utils.NewConfigErrorf("strategy "+c.ID, "all_modifiers excludes an explicit modifier list")
	}
	catalog := decision.CatalogByID()
	for _, id := range c.Modifiers {
		if _, ok := catalog[id]; !ok {
			return utils.NewConfigErrorf("strategy "+c.ID, "unknown modifier %q", id)
		}
	}
	if c.Risk.RiskPerTrade < 0 || c.Risk.RiskPerTrade > 1 {
		return utils.NewConfigErrorf("strategy "+c.ID, "risk per trade must be in [0,1], got %v", c.Risk.RiskPerTrade)
	}
	return nil
}

func validateSpec(strategyID string, spec DetectorSpec, seen map[string]bool) error {
	if spec.Kind == "" {
		return utils.NewConfigErrorf("strategy "+strategyID, "detector with no kind")
	}
	if !detector.Known(spec.Kind) {
		return utils.NewConfigErrorf("strategy "+strategyID, "unknown detector kind %q", spec.Kind)
	}
	if spec.Weight <= 0 {
		return utils.NewConfigErrorf("strategy "+strategyID, "detector %s: weight must be positive", spec.key())
	}
	if seen[spec.key()] {
		return utils.NewConfigErrorf("strategy "+strategyID, "duplicate detector id %q", spec.key())
	}
	seen[spec.key()] = true
	return nil
}

func defaultRisk() RiskConfig {
	return RiskConfig{
		RiskPerTrade:      0.02,
		ATRStopMultiple:   2.0,
		ATRTargetMultiple: 3.0,
		MaxHoldBars:       40,
		MaxPositions:      5,
	}
}

// BuiltinConfigs returns the static strategy presets shipped with the engine.
func BuiltinConfigs() []Config {
	return []Config{
		{
			ID:          "balanced",
			Name:        "Balanced",
			Description: "Even mix of trend, momentum and volume confirmation",
			Detectors: []DetectorSpec{
				{Kind: "sma_cross", Weight: 1.0},
				{Kind: "macd_cross", Weight: 1.0},
				{Kind: "rsi", Weight: 1.0},
				{Kind: "bollinger", Weight: 0.8},
				{Kind: "volume", Weight: 0.6},
			},
			SignalThreshold: 1.0,
			Risk:            defaultRisk(),
		},
		{
			ID:          "aggressive",
			Name:        "Aggressive",
			Description: "Lower bar to entry, wider targets",
			Detectors: []DetectorSpec{
				{Kind: "sma_cross", Weight: 1.2},
				{Kind: "macd_cross", Weight: 1.2},
				{Kind: "rsi", Weight: 1.0},
				{Kind: "stochastic", Weight: 0.8},
				{Kind: "volume", Weight: 0.8},
			},
			SignalThreshold: 0.7,
			Risk: RiskConfig{
				RiskPerTrade:      0.04,
				ATRStopMultiple:   2.5,
				ATRTargetMultiple: 4.0,
				MaxHoldBars:       60,
				MaxPositions:      8,
			},
		},
		{
			ID:          "momentum",
			Name:        "Momentum",
			Description: "Oscillator driven mean reversion",
			Detectors: []DetectorSpec{
				{Kind: "rsi", Weight: 1.4},
				{Kind: "stochastic", Weight: 1.2},
				{Kind: "bollinger", Weight: 1.0},
				{Kind: "volume", Weight: 0.5},
			},
			SignalThreshold: 0.9,
			Risk:            defaultRisk(),
		},
		{
			ID:          "trend_following",
			Name:        "Trend Following",
			Description: "Crossovers confirmed by trend strength",
			Detectors: []DetectorSpec{
				{Kind: "rsi", Weight: 0.5},
			},
			Composites: []CompositeSpec{
				{
					ID:         "confirmed_trend",
					Combinator: detector.CombineAnd,
					Children: []DetectorSpec{
						{Kind: "sma_cross", Weight: 1.0},
						{Kind: "adx", Weight: 1.0},
					},
				},
				{
					ID:         "any_momentum",
					Combinator: detector.CombineOr,
					Children: []DetectorSpec{
						{Kind: "macd_cross", Weight: 1.0},
						{Kind: "stochastic", Weight: 0.8},
					},
				},
			},
			SignalThreshold: 0.8,
			Risk: RiskConfig{
				RiskPerTrade:      0.02,
				ATRStopMultiple:   3.0,
				ATRTargetMultiple: 5.0,
				MaxHoldBars:       120,
				MaxPositions:      4,
			},
		},
		{
			ID:          "scalping",
			Name:        "Scalping",
			Description: "Short holds, tight stops, volume spikes",
			Detectors: []DetectorSpec{
				{Kind: "stochastic", Weight: 1.2, Params: map[string]float64{"oversold": 25, "overbought": 75}},
				{Kind: "bollinger", Weight: 1.0},
				{Kind: "volume", Weight: 1.2, Params: map[string]float64{"surge_factor": 1.5}},
			},
			SignalThreshold: 0.6,
			Risk: RiskConfig{
				RiskPerTrade:      0.01,
				ATRStopMultiple:   1.0,
				ATRTargetMultiple: 1.5,
				MaxHoldBars:       10,
				MaxPositions:      10,
			},
		},
		{
			ID:          "macro_driven",
			Name:        "Macro Driven",
			Description: "Balanced detector set steered hard by the modifier catalog",
			Detectors: []DetectorSpec{
				{Kind: "sma_cross", Weight: 1.0},
				{Kind: "macd_cross", Weight: 1.0},
				{Kind: "rsi", Weight: 1.0},
				{Kind: "fibonacci", Weight: 0.6},
			},
			SignalThreshold: 1.0,
			AllModifiers:    true,
			VetoPolicy:      decision.VetoEvaluateAll,
			Risk:            defaultRisk(),
		},
	}
}

// LoadConfigs reads additional strategy definitions from a YAML file with a
// top-level "strategies" list. Each entry is validated before it is returned.
func LoadConfigs(path string) ([]Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, utils.NewConfigErrorf("strategy file", "read %s: %v", path, err)
	}
	var file struct {
		Strategies []Config `mapstructure:"strategies"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return nil, utils.NewConfigErrorf("strategy file", "parse %s: %v", path, err)
	}
	for i := range file.Strategies {
		cfg := &file.Strategies[i]
		cfg.ID = strings.TrimSpace(cfg.ID)
		if cfg.VetoPolicy == "" {
			cfg.VetoPolicy = decision.VetoEvaluateAll
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return file.Strategies, nil
}
