package decision

import (
	"time"
)

// SignalType is the final outcome of one analysis pass.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// WeightAdjustment is one append-only audit record of a weight change.
type WeightAdjustment struct {
	SourceModifier string    `json:"source_modifier"`
	TargetDetector string    `json:"target_detector"`
	Delta          float64   `json:"delta"`
	OriginalWeight float64   `json:"original_weight"`
	FinalWeight    float64   `json:"final_weight"`
	Reason         string    `json:"reason,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// LogEntry records one step of the decision process for the audit trail.
type LogEntry struct {
	Step   string `json:"step"`
	Action string `json:"action"`
}

// Context is the mutable state of a single analysis pass: weights, scores,
// threshold, veto status and the full adjustment history. It is created fresh
// per analysis, mutated only by the scoring step and the modifier engine, and
// snapshotted into the emitted signal.
type Context struct {
	StrategyID string
	Ticker     string
	CreatedAt  time.Time

	originalWeights map[string]float64
	currentWeights  map[string]float64
	rawScores       map[string]float64
	weightedScores  map[string]float64
	scoreOrder      []string

	baseThreshold    float64
	currentThreshold float64
	multipliers      []float64

	vetoed     bool
	vetoKind   ActionKind
	vetoReason string
	vetoSource string

	adjustments []WeightAdjustment
	logEntries  []LogEntry

	finalScore float64
	calculated bool
}

// NewContext creates a context for one analysis pass. Each detector starts at
// its configured weight; the copy in currentWeights is what modifiers mutate.
func NewContext(strategyID, ticker string, weights map[string]float64, threshold float64) *Context {
	original := make(map[string]float64, len(weights))
	current := make(map[string]float64, len(weights))
	for name, w := range weights {
		original[name] = w
		current[name] = w
	}
	return &Context{
		StrategyID:       strategyID,
		Ticker:           ticker,
		CreatedAt:        time.Now().UTC(),
		originalWeights:  original,
		currentWeights:   current,
		rawScores:        make(map[string]float64),
		weightedScores:   make(map[string]float64),
		baseThreshold:    threshold,
		currentThreshold: threshold,
	}
}

func (c *Context) log(step, action string) {
	c.logEntries = append(c.logEntries, LogEntry{Step: step, Action: action})
}

// SetRawScore records a detector's raw score for the weighted pass. Insertion
// order is kept so the weighted pass is deterministic.
func (c *Context) SetRawScore(detector string, score float64) {
	if _, seen := c.rawScores[detector]; !seen {
		c.scoreOrder = append(c.scoreOrder, detector)
	}
	c.rawScores[detector] = score
}

// RawScore returns a detector's captured raw score.
func (c *Context) RawScore(detector string) (float64, bool) {
	v, ok := c.rawScores[detector]
	return v, ok
}

// Weight returns the current weight for a detector.
func (c *Context) Weight(detector string) (float64, bool) {
	v, ok := c.currentWeights[detector]
	return v, ok
}

// OriginalWeight returns the weight the detector started the pass with.
func (c *Context) OriginalWeight(detector string) (float64, bool) {
	v, ok := c.originalWeights[detector]
	return v, ok
}

// AdjustWeight applies an additive delta to a detector's current weight,
// floored at zero, and appends an audit record. Unknown detectors are logged
// and ignored.
func (c *Context) AdjustWeight(detector string, delta float64, source, reason string) {
	current, ok := c.currentWeights[detector]
	if !ok {
		c.log("WEIGHT_ADJUSTMENT", "skipped unknown detector "+detector)
		return
	}
	final := current + delta
	if final < 0 {
		final = 0
	}
	c.currentWeights[detector] = final
	c.adjustments = append(c.adjustments, WeightAdjustment{
		SourceModifier: source,
		TargetDetector: detector,
		Delta:          delta,
		OriginalWeight: current,
		FinalWeight:    final,
		Reason:         reason,
		Timestamp:      time.Now().UTC(),
	})
	c.log("WEIGHT_ADJUSTMENT", source+" adjusted "+detector)
}

// AddMultiplier appends a multiplicative score factor, applied left-to-right
// during the final score calculation.
func (c *Context) AddMultiplier(factor float64, source string) {
	c.multipliers = append(c.multipliers, factor)
	c.log("SCORE_MULTIPLIER", source+" added multiplier")
}

// AdjustThreshold applies an additive delta to the signal threshold.
func (c *Context) AdjustThreshold(delta float64, source string) {
	c.currentThreshold += delta
	c.log("THRESHOLD_ADJUSTMENT", source+" adjusted threshold")
}

// SetVeto marks the context as vetoed. The first veto wins: subsequent calls
// are recorded in the log but do not overwrite the original kind or reason.
func (c *Context) SetVeto(kind ActionKind, reason, source string) {
	if c.vetoed {
		c.log("VETO", "additional veto from "+source+" recorded, first veto kept")
		return
	}
	c.vetoed = true
	c.vetoKind = kind
	c.vetoReason = reason
	c.vetoSource = source
	c.log("VETO", source+" vetoed: "+reason)
}

// Vetoed reports whether any veto has been set.
func (c *Context) Vetoed() bool { return c.vetoed }

// VetoReason returns the reason of the winning veto.
func (c *Context) VetoReason() string { return c.vetoReason }

// Vetoes reports whether the recorded veto blocks the given signal direction.
// VETO_ALL blocks both directions; HOLD is never blocked.
func (c *Context) Vetoes(signal SignalType) bool {
	if !c.vetoed {
		return false
	}
	switch c.vetoKind {
	case ActionVetoAll:
		return signal == SignalBuy || signal == SignalSell
	case ActionVetoBuy:
		return signal == SignalBuy
	case ActionVetoSell:
		return signal == SignalSell
	}
	return false
}

// Threshold returns the threshold after all adjustments.
func (c *Context) Threshold() float64 { return c.currentThreshold }

// CalculateFinalScore performs the weighted pass once: each raw score times
// its current weight, summed, times every multiplier in order. Modifiers must
// have completed before this call; calling it again recomputes from the
// current state.
func (c *Context) CalculateFinalScore() float64 {
	total := 0.0
	for _, detector := range c.scoreOrder {
		weighted := c.rawScores[detector] * c.currentWeights[detector]
		c.weightedScores[detector] = weighted
		total += weighted
	}
	for _, factor := range c.multipliers {
		total *= factor
	}
	c.finalScore = total
	c.calculated = true
	c.log("FINAL_SCORE", "weighted pass complete")
	return total
}

// FinalScore returns the result of the last weighted pass.
func (c *Context) FinalScore() float64 { return c.finalScore }

// Adjustments returns the append-only weight adjustment log.
func (c *Context) Adjustments() []WeightAdjustment { return c.adjustments }

// Snapshot captures the context state for signal evidence. The returned value
// is a deep copy and safe to retain after the context is discarded.
type Snapshot struct {
	StrategyID      string             `json:"strategy_id"`
	Ticker          string             `json:"ticker"`
	OriginalWeights map[string]float64 `json:"original_weights"`
	FinalWeights    map[string]float64 `json:"final_weights"`
	RawScores       map[string]float64 `json:"raw_scores"`
	WeightedScores  map[string]float64 `json:"weighted_scores"`
	Multipliers     []float64          `json:"multipliers,omitempty"`
	BaseThreshold   float64            `json:"base_threshold"`
	FinalThreshold  float64            `json:"final_threshold"`
	FinalScore      float64            `json:"final_score"`
	Vetoed          bool               `json:"vetoed"`
	VetoKind        ActionKind         `json:"veto_kind,omitempty"`
	VetoReason      string             `json:"veto_reason,omitempty"`
	VetoSource      string             `json:"veto_source,omitempty"`
	Adjustments     []WeightAdjustment `json:"adjustments,omitempty"`
	Log             []LogEntry         `json:"log,omitempty"`
}

// Snapshot returns an immutable copy of the context state.
func (c *Context) Snapshot() *Snapshot {
	snap := &Snapshot{
		StrategyID:      c.StrategyID,
		Ticker:          c.Ticker,
		OriginalWeights: copyFloats(c.originalWeights),
		FinalWeights:    copyFloats(c.currentWeights),
		RawScores:       copyFloats(c.rawScores),
		WeightedScores:  copyFloats(c.weightedScores),
		Multipliers:     append([]float64(nil), c.multipliers...),
		BaseThreshold:   c.baseThreshold,
		FinalThreshold:  c.currentThreshold,
		FinalScore:      c.finalScore,
		Vetoed:          c.vetoed,
		VetoKind:        c.vetoKind,
		VetoReason:      c.vetoReason,
		VetoSource:      c.vetoSource,
		Adjustments:     append([]WeightAdjustment(nil), c.adjustments...),
		Log:             append([]LogEntry(nil), c.logEntries...),
	}
	return snap
}

func copyFloats(src map[string]float64) map[string]float64 {
	dst := make(map[string]float64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
