package patterns

import (
	"time"

	"smc-signals/internal/analysis/structure"
	"smc-signals/internal/models"
)

// FairValueGap represents a three-bar imbalance.
type FairValueGap struct {
	Bias      structure.Bias
	Upper     float64
	Lower     float64
	Timestamp time.Time // timestamp of the middle bar
}

// Size returns the height of the gap.
func (g FairValueGap) Size() float64 {
	return g.Upper - g.Lower
}

// FindFairValueGaps scans the last five bars for gaps between bar i-2 and bar i.
// Every match is returned, oldest first.
func FindFairValueGaps(bars []models.Bar) []FairValueGap {
	if len(bars) > formationWindow {
		bars = bars[len(bars)-formationWindow:]
	}

	var gaps []FairValueGap
	for i := 2; i < len(bars); i++ {
		first, middle, last := bars[i-2], bars[i-1], bars[i]

		if first.High < last.Low {
			gaps = append(gaps, FairValueGap{
				Bias:      structure.BiasBullish,
				Upper:     last.Low,
				Lower:     first.High,
				Timestamp: middle.Timestamp,
			})
		}
		if first.Low > last.High {
			gaps = append(gaps, FairValueGap{
				Bias:      structure.BiasBearish,
				Upper:     first.Low,
				Lower:     last.High,
				Timestamp: middle.Timestamp,
			})
		}
	}
	return gaps
}
