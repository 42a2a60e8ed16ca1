package patterns

import (
	"smc-signals/internal/analysis/indicators"
	"smc-signals/internal/models"
)

// Zone is the position of price within the recent trading range.
type Zone string

const (
	ZoneNone        Zone = ""
	ZonePremium     Zone = "premium"
	ZoneDiscount    Zone = "discount"
	ZoneEquilibrium Zone = "equilibrium"
)

// ZoneClassifier places price in the premium, discount or equilibrium part
// of the range spanned by the trailing bars. Positions between the discount
// and equilibrium bands (and between equilibrium and premium) are left
// unclassified.
type ZoneClassifier struct {
	Bars            int
	Discount        float64 // position <= Discount
	EquilibriumLow  float64
	EquilibriumHigh float64
	Premium         float64 // position >= Premium
}

// NewZoneClassifier returns a classifier with the default boundaries.
func NewZoneClassifier() ZoneClassifier {
	return ZoneClassifier{
		Bars:            20,
		Discount:        0.3,
		EquilibriumLow:  0.4,
		EquilibriumHigh: 0.6,
		Premium:         0.7,
	}
}

// Classify returns the zone and the relative position of price in the range.
// A flat range or short history yields ZoneNone.
func (z ZoneClassifier) Classify(bars []models.Bar, price float64) (Zone, float64) {
	if z.Bars < 1 || len(bars) < z.Bars {
		return ZoneNone, 0
	}

	high := indicators.HighestHigh(bars, z.Bars)
	low := indicators.LowestLow(bars, z.Bars)
	rng := high - low
	if rng <= 0 || !indicators.IsFinite(rng) {
		return ZoneNone, 0
	}

	position := (price - low) / rng
	if !indicators.IsFinite(position) {
		return ZoneNone, 0
	}

	switch {
	case position >= z.Premium:
		return ZonePremium, position
	case position <= z.Discount:
		return ZoneDiscount, position
	case position >= z.EquilibriumLow && position <= z.EquilibriumHigh:
		return ZoneEquilibrium, position
	default:
		return ZoneNone, position
	}
}
