package strategy

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hadoobidoop/stock-tracker/internal/decision"
	"github.com/hadoobidoop/stock-tracker/internal/detector"
	"github.com/hadoobidoop/stock-tracker/internal/market"
	"github.com/hadoobidoop/stock-tracker/internal/utils"
)

type boundDetector struct {
	key      string
	detector detector.Detector
}

// Strategy is one built, ready-to-run strategy: its detector instances and
// the modifier engine resolved from the config.
type Strategy struct {
	cfg       Config
	detectors []boundDetector
	engine    *decision.Engine
	logger    *logrus.Logger

	mu          sync.Mutex
	lastContext *decision.Snapshot
}

// New builds a Strategy from a validated config. Detector instantiation
// failures surface as configuration errors.
func New(cfg Config, logger *logrus.Logger) (*Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bound := make([]boundDetector, 0, len(cfg.Detectors)+len(cfg.Composites))
	for _, spec := range cfg.Detectors {
		det, err := detector.New(spec.Kind, spec.Weight, spec.Params)
		if err != nil {
			return nil, utils.NewConfigErrorf("strategy "+cfg.ID, "%v", err)
		}
		bound = append(bound, boundDetector{key: spec.key(), detector: det})
	}
	for _, comp := range cfg.Composites {
		children := make([]detector.Detector, 0, len(comp.Children))
		for _, childSpec := range comp.Children {
			child, err := detector.New(childSpec.Kind, childSpec.Weight, childSpec.Params)
			if err != nil {
				return nil, utils.NewConfigErrorf("strategy "+cfg.ID, "composite %s: %v", comp.ID, err)
			}
			children = append(children, child)
		}
		bound = append(bound, boundDetector{
			key:      comp.ID,
			detector: detector.NewComposite(comp.ID, comp.Combinator, children),
		})
	}
	engine, err := decision.NewEngine(resolveModifiers(cfg), cfg.VetoPolicy, logger)
	if err != nil {
		return nil, err
	}
	return &Strategy{cfg: cfg, detectors: bound, engine: engine, logger: logger}, nil
}

// resolveModifiers maps the config's subscription onto catalog definitions.
// A static strategy subscribes to nothing and gets an empty rule set.
func resolveModifiers(cfg Config) []decision.Definition {
	if cfg.AllModifiers {
		return decision.Catalog()
	}
	byID := decision.CatalogByID()
	defs := make([]decision.Definition, 0, len(cfg.Modifiers))
	for _, id := range cfg.Modifiers {
		if def, ok := byID[id]; ok {
			defs = append(defs, def)
		}
	}
	return defs
}

// Config returns the config the strategy was built from.
func (s *Strategy) Config() Config { return s.cfg }

// ID returns the strategy id.
func (s *Strategy) ID() string { return s.cfg.ID }

// Analyze runs one full pass for a single ticker at one bar: detect, score,
// modify, decide. It always returns a signal; HOLD carries the same evidence
// trail as an actionable signal.
func (s *Strategy) Analyze(table *market.IndicatorTable, asOf int, macro market.MacroSnapshot) (*TradingSignal, error) {
	if asOf < 0 || asOf >= table.Len() {
		return nil, utils.NewValidationErrorf("analyze %s: row %d out of range [0,%d)", table.Ticker, asOf, table.Len())
	}
	trend := macro.Trend()

	weights := make(map[string]float64, len(s.detectors))
	for _, b := range s.detectors {
		weights[b.key] = 1.0
	}
	ctx := decision.NewContext(s.cfg.ID, table.Ticker, weights, s.cfg.SignalThreshold)

	var evidence []detector.Fact
	for _, b := range s.detectors {
		result := b.detector.Detect(table, asOf, trend)
		ctx.SetRawScore(b.key, result.BuyScore-result.SellScore)
		evidence = append(evidence, result.Evidence...)
	}

	s.engine.ApplyAll(ctx, macro)
	final := ctx.CalculateFinalScore()
	threshold := ctx.Threshold()

	sigType := decision.SignalHold
	switch {
	case final >= threshold:
		sigType = decision.SignalBuy
	case final <= -threshold:
		sigType = decision.SignalSell
	}
	if ctx.Vetoes(sigType) {
		s.logger.WithFields(logrus.Fields{
			"strategy": s.cfg.ID,
			"ticker":   table.Ticker,
			"blocked":  sigType,
			"reason":   ctx.VetoReason(),
		}).Info("Signal vetoed")
		sigType = decision.SignalHold
	}

	bar := table.Bars[asOf]
	snap := ctx.Snapshot()
	signal := newSignal(s.cfg.ID, table.Ticker, sigType, bar.Close, bar.Timestamp, snap, evidence)

	s.mu.Lock()
	s.lastContext = snap
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"strategy":  s.cfg.ID,
		"ticker":    table.Ticker,
		"type":      sigType,
		"score":     final,
		"threshold": threshold,
	}).Debug("Analysis complete")
	return signal, nil
}

// LastContext returns the snapshot of the most recent analysis pass, or nil
// if the strategy has not run yet.
func (s *Strategy) LastContext() *decision.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastContext
}

// AnalyzeAt is a convenience for callers that address bars by timestamp.
func (s *Strategy) AnalyzeAt(table *market.IndicatorTable, ts time.Time, macro market.MacroSnapshot) (*TradingSignal, error) {
	for i := range table.Bars {
		if table.Bars[i].Timestamp.Equal(ts) {
			return s.Analyze(table, i, macro)
		}
	}
	return nil, utils.NewNotFoundError("bar", table.Ticker+"@"+ts.Format(time.RFC3339))
}
