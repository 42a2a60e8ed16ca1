package indicators

import (
	"smc-signals/internal/models"
)

const (
	// fallbackATRFraction is applied to the first close when there is not enough history.
	fallbackATRFraction = 0.001
	// emptyHistoryATR is returned when no bars are available at all.
	emptyHistoryATR = 0.01
)

// ATR returns the simple average of the last period true ranges.
//
// True range needs the previous close, so period+1 bars are required. With
// less history it falls back to close[0] * 0.001, or 0.01 when bars is empty.
// The result is always finite and non-negative.
func ATR(bars []models.Bar, period int) float64 {
	if len(bars) == 0 {
		return emptyHistoryATR
	}
	if period <= 0 || len(bars) < period+1 {
		return bars[0].Close * fallbackATRFraction
	}

	atr := mean(TrueRanges(bars[len(bars)-period-1:]))
	if !IsFinite(atr) || atr < 0 {
		return bars[0].Close * fallbackATRFraction
	}
	return atr
}

// TrueRanges returns the true range of every bar after the first.
func TrueRanges(bars []models.Bar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		out[i-1] = trueRange(bars[i], bars[i-1])
	}
	return out
}
