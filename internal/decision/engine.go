package decision

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/hadoobidoop/stock-tracker/internal/market"
)

// VetoPolicy controls what the engine does after a veto fires.
type VetoPolicy string

const (
	// VetoEvaluateAll keeps evaluating remaining modifiers after a veto so
	// the audit trail is complete. This is the default.
	VetoEvaluateAll VetoPolicy = "evaluate_all"
	// VetoShortCircuit stops at the first veto.
	VetoShortCircuit VetoPolicy = "short_circuit"
)

// Application records the outcome of evaluating one modifier.
type Application struct {
	ModifierID string `json:"modifier_id"`
	Triggered  bool   `json:"triggered"`
	Skipped    bool   `json:"skipped"`
	Detail     string `json:"detail,omitempty"`
}

// Engine evaluates a fixed set of modifier definitions against a macro
// snapshot and applies the triggered actions to a decision context.
type Engine struct {
	modifiers []Definition
	policy    VetoPolicy
	logger    *logrus.Logger
}

// NewEngine validates and orders the definitions. Evaluation order is
// priority descending; definitions with equal priority keep their
// declaration order.
func NewEngine(defs []Definition, policy VetoPolicy, logger *logrus.Logger) (*Engine, error) {
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
	}
	if policy == "" {
		policy = VetoEvaluateAll
	}
	if policy != VetoEvaluateAll && policy != VetoShortCircuit {
		return nil, fmt.Errorf("modifier engine: unknown veto policy %q", policy)
	}
	ordered := append([]Definition(nil), defs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	return &Engine{modifiers: ordered, policy: policy, logger: logger}, nil
}

// Modifiers returns the definitions in evaluation order.
func (e *Engine) Modifiers() []Definition {
	return append([]Definition(nil), e.modifiers...)
}

// ApplyAll runs every enabled modifier against the macro snapshot and mutates
// the context with each triggered action. A rule whose indicator is missing
// from the snapshot is skipped and logged, never treated as triggered.
func (e *Engine) ApplyAll(ctx *Context, macro market.MacroSnapshot) []Application {
	applications := make([]Application, 0, len(e.modifiers))
	for _, def := range e.modifiers {
		if !def.Enabled {
			continue
		}
		triggered, ok := def.Condition.evaluate(macro)
		if !ok {
			e.logger.WithFields(logrus.Fields{
				"modifier":  def.ID,
				"indicator": def.Condition.Indicator,
				"ticker":    ctx.Ticker,
			}).Debug("Skipping modifier, macro indicator unavailable")
			applications = append(applications, Application{
				ModifierID: def.ID,
				Skipped:    true,
				Detail:     "macro indicator unavailable",
			})
			continue
		}
		if !triggered {
			applications = append(applications, Application{ModifierID: def.ID})
			continue
		}
		e.apply(ctx, def)
		applications = append(applications, Application{
			ModifierID: def.ID,
			Triggered:  true,
			Detail:     string(def.Action.Kind),
		})
		if ctx.Vetoed() && e.policy == VetoShortCircuit {
			break
		}
	}
	return applications
}

func (e *Engine) apply(ctx *Context, def Definition) {
	reason := def.Action.Reason
	if reason == "" {
		reason = def.Description
	}
	switch def.Action.Kind {
	case ActionVetoBuy, ActionVetoSell, ActionVetoAll:
		ctx.SetVeto(def.Action.Kind, reason, def.ID)
	case ActionAdjustWeights:
		// Deterministic application order for the audit log.
		targets := make([]string, 0, len(def.Action.WeightAdjustments))
		for target := range def.Action.WeightAdjustments {
			targets = append(targets, target)
		}
		sort.Strings(targets)
		for _, target := range targets {
			ctx.AdjustWeight(target, def.Action.WeightAdjustments[target], def.ID, reason)
		}
	case ActionAdjustScore:
		ctx.AddMultiplier(def.Action.ScoreMultiplier, def.ID)
	case ActionAdjustThreshold:
		ctx.AdjustThreshold(def.Action.ThresholdDelta, def.ID)
	}
	e.logger.WithFields(logrus.Fields{
		"modifier": def.ID,
		"action":   def.Action.Kind,
		"ticker":   ctx.Ticker,
	}).Debug("Modifier triggered")
}
