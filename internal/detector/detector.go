package detector

import (
	"fmt"
	"sort"

	"github.com/hadoobidoop/stock-tracker/internal/market"
)

// Fact is one named contributing observation in a detector's evidence trail.
type Fact struct {
	Indicator    string  `json:"indicator"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
	Note         string  `json:"note,omitempty"`
}

// Result is the outcome of one detector evaluation at one bar. Both scores
// are non-negative; a detector that sees nothing returns the zero Result.
type Result struct {
	BuyScore  float64 `json:"buy_score"`
	SellScore float64 `json:"sell_score"`
	Evidence  []Fact  `json:"evidence,omitempty"`
}

// insufficient records why a detector could not evaluate, without failing the
// pipeline.
func insufficient(indicator, reason string) Result {
	return Result{Evidence: []Fact{{Indicator: indicator, Note: "insufficient data: " + reason}}}
}

// Detector interprets one indicator family at a single bar of the table.
// Implementations read only the columns they declare in Dependencies and must
// not look past asOf.
type Detector interface {
	Name() string
	Dependencies() []string
	Detect(table *market.IndicatorTable, asOf int, trend market.Trend) Result
}

// ready reports whether the declared dependency columns have usable values at
// asOf and the bar before it (detectors compare consecutive rows).
func ready(table *market.IndicatorTable, asOf int, deps []string) (string, bool) {
	if asOf < 1 || asOf >= table.Len() {
		return "lookback", false
	}
	for _, dep := range deps {
		if _, ok := table.Value(dep, asOf); !ok {
			return dep, false
		}
		if _, ok := table.Value(dep, asOf-1); !ok {
			return dep, false
		}
	}
	return "", true
}

// adjustments tunes detector scores by the prevailing market trend, keyed by
// signal family.
type adjustments struct {
	trendFollowBuy   float64
	trendFollowSell  float64
	momentumReversal float64
	volume           float64
}

var trendAdjustments = map[market.Trend]adjustments{
	market.TrendBullish: {trendFollowBuy: 1.2, trendFollowSell: 0.8, momentumReversal: 0.9, volume: 1.1},
	market.TrendBearish: {trendFollowBuy: 0.8, trendFollowSell: 1.2, momentumReversal: 1.1, volume: 1.0},
	market.TrendNeutral: {trendFollowBuy: 1.0, trendFollowSell: 1.0, momentumReversal: 1.0, volume: 1.0},
}

func adjustFor(trend market.Trend) adjustments {
	if adj, ok := trendAdjustments[trend]; ok {
		return adj
	}
	return trendAdjustments[market.TrendNeutral]
}

// Factory builds a detector from its configured weight and parameters.
// Unknown parameters are ignored; missing ones use family defaults.
type Factory func(weight float64, params map[string]float64) Detector

var registry = map[string]Factory{}

// Register adds a detector kind to the closed variant set. Called from init
// funcs in this package; external registration is allowed before strategies
// are built.
func Register(kind string, factory Factory) {
	registry[kind] = factory
}

// New builds a detector of the given kind.
func New(kind string, weight float64, params map[string]float64) (Detector, error) {
	factory, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("unknown detector kind %q (known: %v)", kind, Kinds())
	}
	return factory(weight, params), nil
}

// Known reports whether a detector kind is registered.
func Known(kind string) bool {
	_, ok := registry[kind]
	return ok
}

// Kinds lists the registered detector kinds in stable order.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for kind := range registry {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func param(params map[string]float64, key string, fallback float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return fallback
}
