// Package indicators provides volatility and range helpers over bar history.
package indicators

import (
	"math"

	"smc-signals/internal/models"
)

// trueRange calculates the true range for a bar given the previous bar.
func trueRange(current, previous models.Bar) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - previous.Close)
	lowClose := math.Abs(current.Low - previous.Close)
	return math.Max(highLow, math.Max(highClose, lowClose))
}

// mean calculates the arithmetic mean of a slice of float64.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// HighestHigh returns the highest high of the last n bars.
// If fewer than n bars are available, all bars are used.
func HighestHigh(bars []models.Bar, n int) float64 {
	bars = tail(bars, n)
	if len(bars) == 0 {
		return 0
	}
	h := bars[0].High
	for _, b := range bars[1:] {
		if b.High > h {
			h = b.High
		}
	}
	return h
}

// LowestLow returns the lowest low of the last n bars.
// If fewer than n bars are available, all bars are used.
func LowestLow(bars []models.Bar, n int) float64 {
	bars = tail(bars, n)
	if len(bars) == 0 {
		return 0
	}
	l := bars[0].Low
	for _, b := range bars[1:] {
		if b.Low < l {
			l = b.Low
		}
	}
	return l
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func tail(bars []models.Bar, n int) []models.Bar {
	if n <= 0 || n >= len(bars) {
		return bars
	}
	return bars[len(bars)-n:]
}
