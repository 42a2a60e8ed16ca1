package patterns

import (
	"math"
	"sort"

	"smc-signals/internal/analysis/indicators"
	"smc-signals/internal/models"
)

// EqualLevelsDetector clusters recent highs and lows that sit within an
// ATR-derived tolerance of each other.
type EqualLevelsDetector struct {
	Bars      int     // trailing bars scanned
	ATRPeriod int     // period of the ATR used for the tolerance
	Factor    float64 // tolerance = Factor * ATR
}

// NewEqualLevelsDetector returns a detector with the default settings.
func NewEqualLevelsDetector() EqualLevelsDetector {
	return EqualLevelsDetector{Bars: 10, ATRPeriod: 14, Factor: 0.1}
}

// EqualLevels is a cluster of near-equal prices.
type EqualLevels struct {
	Values []float64 // distinct clustered values, ascending
	Broken bool
}

// Max returns the highest clustered value.
func (e EqualLevels) Max() float64 {
	return e.Values[len(e.Values)-1]
}

// Min returns the lowest clustered value.
func (e EqualLevels) Min() float64 {
	return e.Values[0]
}

// EqualLevelsResult holds the high and low clusters; either may be nil.
type EqualLevelsResult struct {
	Highs     *EqualLevels
	Lows      *EqualLevels
	Threshold float64
}

// Detect finds equal highs/lows over the trailing bars and flags a break
// when price trades above the high cluster or below the low cluster.
func (d EqualLevelsDetector) Detect(bars []models.Bar, price float64) EqualLevelsResult {
	if d.Bars < 2 || len(bars) < d.Bars {
		return EqualLevelsResult{}
	}

	threshold := d.Factor * indicators.ATR(bars, d.ATRPeriod)
	if !indicators.IsFinite(threshold) || threshold < 0 {
		return EqualLevelsResult{}
	}

	recent := bars[len(bars)-d.Bars:]
	highs := make([]float64, len(recent))
	lows := make([]float64, len(recent))
	for i, b := range recent {
		highs[i] = b.High
		lows[i] = b.Low
	}

	result := EqualLevelsResult{Threshold: threshold}
	if values := cluster(highs, threshold); len(values) >= 2 {
		eq := &EqualLevels{Values: values}
		eq.Broken = price > eq.Max()
		result.Highs = eq
	}
	if values := cluster(lows, threshold); len(values) >= 2 {
		eq := &EqualLevels{Values: values}
		eq.Broken = price < eq.Min()
		result.Lows = eq
	}
	return result
}

// cluster unions the values of every pair within threshold of each other
// and returns the distinct members in ascending order.
func cluster(values []float64, threshold float64) []float64 {
	members := make(map[float64]struct{})
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			if math.Abs(values[i]-values[j]) <= threshold {
				members[values[i]] = struct{}{}
				members[values[j]] = struct{}{}
			}
		}
	}

	out := make([]float64, 0, len(members))
	for v := range members {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}
