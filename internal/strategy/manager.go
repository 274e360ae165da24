package strategy

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hadoobidoop/stock-tracker/internal/decision"
	"github.com/hadoobidoop/stock-tracker/internal/market"
	"github.com/hadoobidoop/stock-tracker/internal/utils"
)

// MixKind selects how a strategy mix combines member outputs.
type MixKind string

const (
	// MixVoting takes the majority direction among member signals.
	MixVoting MixKind = "VOTING"
	// MixWeighted compares the weighted sum of member scores against the
	// weighted sum of member thresholds.
	MixWeighted MixKind = "WEIGHTED"
	// MixEnsemble requires every member to agree on a direction.
	MixEnsemble MixKind = "ENSEMBLE"
)

// MixMember is one strategy participating in a mix.
type MixMember struct {
	StrategyID string  `json:"strategy_id" yaml:"strategy_id" mapstructure:"strategy_id"`
	Weight     float64 `json:"weight" yaml:"weight" mapstructure:"weight"`
}

// MixConfig declares a named combination of registered strategies.
// MinAgreement raises the vote count a VOTING mix needs beyond a plain
// majority; zero keeps the majority rule. ThresholdFactor scales the
// combined threshold of a WEIGHTED mix; zero means unscaled.
type MixConfig struct {
	ID              string      `json:"id" yaml:"id" mapstructure:"id"`
	Kind            MixKind     `json:"kind" yaml:"kind" mapstructure:"kind"`
	Members         []MixMember `json:"members" yaml:"members" mapstructure:"members"`
	MinAgreement    int         `json:"min_agreement,omitempty" yaml:"min_agreement" mapstructure:"min_agreement"`
	ThresholdFactor float64     `json:"threshold_factor,omitempty" yaml:"threshold_factor" mapstructure:"threshold_factor"`
}

// Manager owns the strategy registry, the active strategy, and registered
// mixes. All operations are safe for concurrent use; Switch swaps the active
// strategy without disturbing in-flight analyses.
type Manager struct {
	mu         sync.RWMutex
	strategies map[string]*Strategy
	order      []string
	activeID   string
	mixes      map[string]MixConfig
	logger     *logrus.Logger
}

// NewManager builds a manager pre-loaded with the built-in strategy presets.
// The first preset becomes the active strategy.
func NewManager(logger *logrus.Logger) (*Manager, error) {
	m := &Manager{
		strategies: make(map[string]*Strategy),
		mixes:      make(map[string]MixConfig),
		logger:     logger,
	}
	for _, cfg := range BuiltinConfigs() {
		if err := m.Register(cfg); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Register builds a strategy from its config and adds it to the registry,
// replacing any previous strategy with the same id. The first registered
// strategy becomes active.
func (m *Manager) Register(cfg Config) error {
	s, err := New(cfg, m.logger)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.strategies[cfg.ID]; !exists {
		m.order = append(m.order, cfg.ID)
	}
	m.strategies[cfg.ID] = s
	if m.activeID == "" {
		m.activeID = cfg.ID
	}
	return nil
}

// Get returns a registered strategy by id.
func (m *Manager) Get(id string) (*Strategy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.strategies[id]
	if !ok {
		return nil, utils.NewNotFoundError("strategy", id)
	}
	return s, nil
}

// IDs lists registered strategy ids in registration order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// Active returns the currently active strategy.
func (m *Manager) Active() *Strategy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.strategies[m.activeID]
}

// Switch makes another registered strategy active. Switching to an unknown
// id fails without changing the active strategy.
func (m *Manager) Switch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.strategies[id]; !ok {
		return utils.NewNotFoundError("strategy", id)
	}
	previous := m.activeID
	m.activeID = id
	m.logger.WithFields(logrus.Fields{
		"from": previous,
		"to":   id,
	}).Info("Switched active strategy")
	return nil
}

// RegisterMix validates and stores a mix definition. Every member must
// already be registered.
func (m *Manager) RegisterMix(cfg MixConfig) error {
	if cfg.ID == "" {
		return utils.NewConfigError("mix", "missing id")
	}
	switch cfg.Kind {
	case MixVoting, MixWeighted, MixEnsemble:
	default:
		return utils.NewConfigErrorf("mix "+cfg.ID, "unknown kind %q", cfg.Kind)
	}
	if len(cfg.Members) < 2 {
		return utils.NewConfigErrorf("mix "+cfg.ID, "needs at least two members")
	}
	if cfg.MinAgreement < 0 || cfg.MinAgreement > len(cfg.Members) {
		return utils.NewConfigErrorf("mix "+cfg.ID, "min_agreement %d out of range", cfg.MinAgreement)
	}
	if cfg.ThresholdFactor < 0 {
		return utils.NewConfigErrorf("mix "+cfg.ID, "threshold_factor must not be negative")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, member := range cfg.Members {
		if _, ok := m.strategies[member.StrategyID]; !ok {
			return utils.NewNotFoundError("strategy", member.StrategyID)
		}
		if cfg.Kind == MixWeighted && member.Weight <= 0 {
			return utils.NewConfigErrorf("mix "+cfg.ID, "member %s: weight must be positive", member.StrategyID)
		}
	}
	m.mixes[cfg.ID] = cfg
	return nil
}

// AnalyzeMix runs every member strategy on the same bar and combines their
// signals per the mix kind. Any tie or disagreement resolves to HOLD.
func (m *Manager) AnalyzeMix(mixID string, table *market.IndicatorTable, asOf int, macro market.MacroSnapshot) (*TradingSignal, error) {
	m.mu.RLock()
	cfg, ok := m.mixes[mixID]
	m.mu.RUnlock()
	if !ok {
		return nil, utils.NewNotFoundError("mix", mixID)
	}

	type memberSignal struct {
		weight float64
		signal *TradingSignal
	}
	signals := make([]memberSignal, 0, len(cfg.Members))
	for _, member := range cfg.Members {
		s, err := m.Get(member.StrategyID)
		if err != nil {
			return nil, err
		}
		sig, err := s.Analyze(table, asOf, macro)
		if err != nil {
			return nil, err
		}
		signals = append(signals, memberSignal{weight: member.Weight, signal: sig})
	}

	outcome := decision.SignalHold
	switch cfg.Kind {
	case MixVoting:
		votes := map[decision.SignalType]int{}
		for _, ms := range signals {
			votes[ms.signal.Type]++
		}
		if votes[decision.SignalBuy] > votes[decision.SignalSell] && votes[decision.SignalBuy] > votes[decision.SignalHold] {
			outcome = decision.SignalBuy
		} else if votes[decision.SignalSell] > votes[decision.SignalBuy] && votes[decision.SignalSell] > votes[decision.SignalHold] {
			outcome = decision.SignalSell
		}
		if outcome != decision.SignalHold && votes[outcome] < cfg.MinAgreement {
			outcome = decision.SignalHold
		}
	case MixWeighted:
		var score, threshold, total float64
		for _, ms := range signals {
			score += ms.weight * ms.signal.Score
			threshold += ms.weight * ms.signal.Threshold
			total += ms.weight
		}
		if total > 0 {
			score /= total
			threshold /= total
			if cfg.ThresholdFactor > 0 {
				threshold *= cfg.ThresholdFactor
			}
			if score >= threshold {
				outcome = decision.SignalBuy
			} else if score <= -threshold {
				outcome = decision.SignalSell
			}
		}
	case MixEnsemble:
		outcome = signals[0].signal.Type
		for _, ms := range signals[1:] {
			if ms.signal.Type != outcome {
				outcome = decision.SignalHold
				break
			}
		}
	}

	// The mix signal inherits the strongest member context for evidence.
	best := signals[0].signal
	for _, ms := range signals[1:] {
		if abs(ms.signal.Score) > abs(best.Score) {
			best = ms.signal
		}
	}
	bar := table.Bars[asOf]
	mixSignal := newSignal(mixID, table.Ticker, outcome, bar.Close, bar.Timestamp, best.Context, best.Evidence)

	m.logger.WithFields(logrus.Fields{
		"mix":     mixID,
		"kind":    cfg.Kind,
		"ticker":  table.Ticker,
		"outcome": outcome,
		"members": len(signals),
	}).Debug("Mix analysis complete")
	return mixSignal, nil
}

// Mixes lists registered mix ids.
func (m *Manager) Mixes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.mixes))
	for id := range m.mixes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
