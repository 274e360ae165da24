package detector

import (
	"github.com/hadoobidoop/stock-tracker/internal/market"
)

// Combinator defines how a composite merges its sub-detector scores.
type Combinator string

const (
	// CombineAnd requires every sub-detector to agree: the composite score is
	// the minimum across sub-scores when all are positive, else zero.
	CombineAnd Combinator = "AND"
	// CombineOr takes the strongest sub-detector: the maximum sub-score.
	CombineOr Combinator = "OR"
)

// CompositeDetector logically combines sub-detectors. Buy and sell sides are
// computed symmetrically and independently; evidence is the concatenation of
// sub-detector evidence.
type CompositeDetector struct {
	name       string
	combinator Combinator
	children   []Detector
}

// NewComposite builds a composite over the given sub-detectors.
func NewComposite(name string, combinator Combinator, children []Detector) *CompositeDetector {
	return &CompositeDetector{name: name, combinator: combinator, children: children}
}

func (d *CompositeDetector) Name() string { return d.name }

func (d *CompositeDetector) Dependencies() []string {
	var deps []string
	for _, child := range d.children {
		deps = append(deps, child.Dependencies()...)
	}
	return deps
}

func (d *CompositeDetector) Detect(table *market.IndicatorTable, asOf int, trend market.Trend) Result {
	if len(d.children) == 0 {
		return Result{}
	}

	var result Result
	buyScores := make([]float64, 0, len(d.children))
	sellScores := make([]float64, 0, len(d.children))
	for _, child := range d.children {
		sub := child.Detect(table, asOf, trend)
		buyScores = append(buyScores, sub.BuyScore)
		sellScores = append(sellScores, sub.SellScore)
		result.Evidence = append(result.Evidence, sub.Evidence...)
	}

	result.BuyScore = d.combine(buyScores)
	result.SellScore = d.combine(sellScores)
	return result
}

func (d *CompositeDetector) combine(scores []float64) float64 {
	switch d.combinator {
	case CombineAnd:
		combined := scores[0]
		for _, s := range scores {
			if s <= 0 {
				return 0
			}
			if s < combined {
				combined = s
			}
		}
		return combined
	default: // CombineOr
		combined := 0.0
		for _, s := range scores {
			if s > combined {
				combined = s
			}
		}
		return combined
	}
}
