// Package structure tracks swing points and classifies structure breaks
// (BOS and CHoCH) over a rolling bar history.
package structure

import (
	"time"

	"smc-signals/internal/models"
)

// Bias represents the prevailing structural trend of a tracker.
type Bias int

const (
	BiasBearish Bias = -1
	BiasNone    Bias = 0
	BiasBullish Bias = 1
)

func (b Bias) String() string {
	switch b {
	case BiasBullish:
		return "bullish"
	case BiasBearish:
		return "bearish"
	default:
		return "none"
	}
}

// BreakType represents the type of market structure event.
type BreakType string

const (
	BOS   BreakType = "BOS"   // Break of Structure
	CHoCH BreakType = "CHOCH" // Change of Character
)

// SwingState is the last confirmed swing level on one side of the market.
type SwingState struct {
	Level   float64
	Time    time.Time // timestamp of the pivot bar
	Valid   bool      // false until the first pivot is found
	Crossed bool
}

// State is a read-only snapshot of a tracker.
type State struct {
	High SwingState
	Low  SwingState
	Bias Bias
}

// Break is a structure break detected on the latest update.
type Break struct {
	Type  BreakType
	Bias  Bias // direction of the break
	Level float64
	Price float64
}

// Tracker detects swing highs/lows with a symmetric lookback window and
// reports the first crossing of each stored level.
type Tracker struct {
	lookback int
	high     SwingState
	low      SwingState
	bias     Bias
}

// NewTracker creates a tracker with the given lookback.
func NewTracker(lookback int) *Tracker {
	if lookback < 1 {
		lookback = 1
	}
	return &Tracker{lookback: lookback}
}

// Lookback returns the number of bars on each side of a pivot.
func (t *Tracker) Lookback() int {
	return t.lookback
}

// State returns a snapshot of the tracker.
func (t *Tracker) State() State {
	return State{High: t.high, Low: t.low, Bias: t.bias}
}

// Update scans the history for a new pivot, then checks whether price
// crosses a stored level that has not been crossed yet.
func (t *Tracker) Update(bars []models.Bar, price float64) []Break {
	if pivot, ok := SwingHigh(bars, t.lookback); ok && !t.high.same(pivot.Timestamp, pivot.High) {
		t.high = SwingState{Level: pivot.High, Time: pivot.Timestamp, Valid: true}
	}
	if pivot, ok := SwingLow(bars, t.lookback); ok && !t.low.same(pivot.Timestamp, pivot.Low) {
		t.low = SwingState{Level: pivot.Low, Time: pivot.Timestamp, Valid: true}
	}

	var breaks []Break

	if t.high.Valid && !t.high.Crossed && price > t.high.Level {
		kind := BOS
		if t.bias == BiasBearish {
			kind = CHoCH
		}
		t.high.Crossed = true
		t.bias = BiasBullish
		breaks = append(breaks, Break{Type: kind, Bias: BiasBullish, Level: t.high.Level, Price: price})
	}

	if t.low.Valid && !t.low.Crossed && price < t.low.Level {
		kind := BOS
		if t.bias == BiasBullish {
			kind = CHoCH
		}
		t.low.Crossed = true
		t.bias = BiasBearish
		breaks = append(breaks, Break{Type: kind, Bias: BiasBearish, Level: t.low.Level, Price: price})
	}

	return breaks
}

func (s SwingState) same(ts time.Time, level float64) bool {
	return s.Valid && s.Time.Equal(ts) && s.Level == level
}

// SwingHigh reports whether the bar lookback positions before the last bar
// has a high strictly above every other high in its 2*lookback+1 window.
func SwingHigh(bars []models.Bar, lookback int) (models.Bar, bool) {
	i, ok := pivotIndex(bars, lookback)
	if !ok {
		return models.Bar{}, false
	}
	for j := i - lookback; j <= i+lookback; j++ {
		if j != i && bars[j].High >= bars[i].High {
			return models.Bar{}, false
		}
	}
	return bars[i], true
}

// SwingLow is the mirror of SwingHigh for lows.
func SwingLow(bars []models.Bar, lookback int) (models.Bar, bool) {
	i, ok := pivotIndex(bars, lookback)
	if !ok {
		return models.Bar{}, false
	}
	for j := i - lookback; j <= i+lookback; j++ {
		if j != i && bars[j].Low <= bars[i].Low {
			return models.Bar{}, false
		}
	}
	return bars[i], true
}

func pivotIndex(bars []models.Bar, lookback int) (int, bool) {
	if lookback < 1 || len(bars) < 2*lookback+1 {
		return 0, false
	}
	return len(bars) - lookback - 1, true
}
