// Package signals turns a validated analysis into priced Signal records.
package signals

import (
	"math"

	"smc-signals/internal/analysis/indicators"
	"smc-signals/internal/models"
)

// LevelCalculator derives entry, stop and target from ATR and the symbol's
// volatility constant.
type LevelCalculator struct {
	ATRPeriod            int
	ATRMultiplier        float64 // risk >= ATRMultiplier * ATR
	VolatilityMultiplier float64 // risk >= price * volatility * VolatilityMultiplier
	MaxRisk              float64 // cap as a fraction of price; 0 disables
	FallbackRisk         float64 // fraction of price used without history
}

// NewLevelCalculator returns a calculator with the default settings.
func NewLevelCalculator() LevelCalculator {
	return LevelCalculator{
		ATRPeriod:            14,
		ATRMultiplier:        0.8,
		VolatilityMultiplier: 2,
		MaxRisk:              0.02,
		FallbackRisk:         0.001,
	}
}

// Levels are the prices of one signal candidate.
type Levels struct {
	Entry      float64
	StopLoss   float64
	TakeProfit float64
	RiskReward float64
	Capped     bool // risk was clipped to MaxRisk
}

// Calculate returns the levels for one risk:reward ratio. It reports false
// when the inputs cannot produce correctly ordered levels.
func (c LevelCalculator) Calculate(dir models.Direction, price float64, bars []models.Bar, volatility, ratio float64) (Levels, bool) {
	if dir != models.DirectionBuy && dir != models.DirectionSell {
		return Levels{}, false
	}
	if price <= 0 || ratio <= 0 || !indicators.IsFinite(price) || !indicators.IsFinite(ratio) {
		return Levels{}, false
	}

	fallback := price * c.FallbackRisk
	risk := fallback
	if len(bars) > 0 {
		atr := indicators.ATR(bars, c.ATRPeriod)
		risk = math.Max(c.ATRMultiplier*atr, price*volatility*c.VolatilityMultiplier)
	}
	if risk <= 0 || !indicators.IsFinite(risk) {
		risk = fallback
	}

	capped := false
	if c.MaxRisk > 0 && risk > price*c.MaxRisk {
		risk = price * c.MaxRisk
		capped = true
	}

	lv, ok := place(dir, price, risk, ratio)
	if !ok && risk != fallback {
		lv, ok = place(dir, price, fallback, ratio)
	}
	lv.Capped = capped
	return lv, ok
}

func place(dir models.Direction, price, risk, ratio float64) (Levels, bool) {
	lv := Levels{Entry: price, RiskReward: ratio}
	if dir == models.DirectionBuy {
		lv.StopLoss = price - risk
		lv.TakeProfit = price + (price-lv.StopLoss)*ratio
	} else {
		lv.StopLoss = price + risk
		lv.TakeProfit = price - (lv.StopLoss-price)*ratio
	}
	return lv, Ordered(dir, lv)
}

// Ordered reports whether the levels satisfy stop < entry < target for BUY
// and target < entry < stop for SELL.
func Ordered(dir models.Direction, lv Levels) bool {
	switch dir {
	case models.DirectionBuy:
		return lv.StopLoss < lv.Entry && lv.Entry < lv.TakeProfit
	case models.DirectionSell:
		return lv.TakeProfit < lv.Entry && lv.Entry < lv.StopLoss
	default:
		return false
	}
}
