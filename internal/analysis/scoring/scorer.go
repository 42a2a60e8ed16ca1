// Package scoring turns detected confirmations into a confidence score and
// decides whether an analysis is strong enough to become a signal.
package scoring

import (
	"fmt"
	"math"

	"smc-signals/internal/analysis/structure"
	"smc-signals/internal/models"
)

// Scorer aggregates confirmation weights and applies the validation gate.
type Scorer struct {
	Weights Weights

	// PrimaryBonus is added when at least BonusMinPrimary structure breaks fired.
	PrimaryBonus    int
	BonusMinPrimary int

	// PenaltyFactor scales the score when fewer than PenaltyBelow confirmations fired.
	PenaltyFactor float64
	PenaltyBelow  int

	MinConfirmations int
	MinPrimary       int
	MinConfidence    int
}

// NewScorer creates a scorer with the default bonus, penalty and gate
// settings and the given minimum confidence.
func NewScorer(weights Weights, minConfidence int) *Scorer {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Scorer{
		Weights:          weights,
		PrimaryBonus:     10,
		BonusMinPrimary:  2,
		PenaltyFactor:    0.8,
		PenaltyBelow:     4,
		MinConfirmations: 4,
		MinPrimary:       1,
		MinConfidence:    minConfidence,
	}
}

// Result is the outcome of scoring one confirmation set.
type Result struct {
	Score     int
	Direction models.Direction
	Primary   int
	Total     int
	Valid     bool
	Reason    string // why the gate rejected the set; empty when valid
}

// Score returns the confidence score in [0, 100].
func (s *Scorer) Score(set *Set) int {
	var total float64
	for _, t := range set.order {
		total += float64(s.weight(t))
	}

	if set.PrimaryCount() >= s.BonusMinPrimary {
		total += float64(s.PrimaryBonus)
	}
	if set.Len() < s.PenaltyBelow {
		total *= s.PenaltyFactor
	}

	return int(math.Round(clamp(total, 0, 100)))
}

// Evaluate scores the set and applies the validation gate.
func (s *Scorer) Evaluate(set *Set) Result {
	res := Result{
		Score:     s.Score(set),
		Direction: ResolveDirection(set),
		Primary:   set.PrimaryCount(),
		Total:     set.Len(),
	}

	switch {
	case res.Direction == models.DirectionNone:
		res.Reason = "no structure break"
	case res.Primary < s.MinPrimary:
		res.Reason = fmt.Sprintf("primary confirmations %d < %d", res.Primary, s.MinPrimary)
	case res.Total < s.MinConfirmations:
		res.Reason = fmt.Sprintf("confirmations %d < %d", res.Total, s.MinConfirmations)
	case res.Score < s.MinConfidence:
		res.Reason = fmt.Sprintf("confidence %d < %d", res.Score, s.MinConfidence)
	default:
		res.Valid = true
	}

	return res
}

// ResolveDirection picks BUY if any bullish structure break fired, else SELL
// if any bearish one fired. Bullish is checked first and wins a tie.
func ResolveDirection(set *Set) models.Direction {
	var bearish bool
	for _, t := range set.order {
		if !t.IsPrimary() {
			continue
		}
		switch t.Bias() {
		case structure.BiasBullish:
			return models.DirectionBuy
		case structure.BiasBearish:
			bearish = true
		}
	}
	if bearish {
		return models.DirectionSell
	}
	return models.DirectionNone
}

func (s *Scorer) weight(t Tag) int {
	if w, ok := s.Weights[t]; ok && w > 0 {
		return w
	}
	return 0
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
