package engine

import (
	"math"
	"math/rand"
	"time"

	"smc-signals/internal/models"
)

// History is a capacity-bounded, time-ordered bar store for one symbol.
// Appending to a full history evicts the oldest bar.
type History struct {
	capacity int
	bars     []models.Bar
}

// NewHistory creates an empty history holding at most capacity bars.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		capacity: capacity,
		bars:     make([]models.Bar, 0, capacity),
	}
}

// Append adds a bar, evicting the oldest one when full.
func (h *History) Append(bar models.Bar) {
	if len(h.bars) == h.capacity {
		copy(h.bars, h.bars[1:])
		h.bars = h.bars[:h.capacity-1]
	}
	h.bars = append(h.bars, bar)
}

// Replace discards the stored bars and keeps the newest capacity bars of bars.
func (h *History) Replace(bars []models.Bar) {
	h.bars = h.bars[:0]
	if len(bars) > h.capacity {
		bars = bars[len(bars)-h.capacity:]
	}
	h.bars = append(h.bars, bars...)
}

// Bars returns a copy of the stored bars, oldest first.
func (h *History) Bars() []models.Bar {
	out := make([]models.Bar, len(h.bars))
	copy(out, h.bars)
	return out
}

// Len returns the number of stored bars.
func (h *History) Len() int {
	return len(h.bars)
}

// Capacity returns the maximum number of stored bars.
func (h *History) Capacity() int {
	return h.capacity
}

// Last returns the newest bar.
func (h *History) Last() (models.Bar, bool) {
	if len(h.bars) == 0 {
		return models.Bar{}, false
	}
	return h.bars[len(h.bars)-1], true
}

// SyntheticBar builds an OHLC bar around price for feeds that only supply a
// last price. High and low sit a random fraction of price*volatility away
// from the close and the open is interpolated between them.
func SyntheticBar(price, volatility float64, ts time.Time, rng *rand.Rand) models.Bar {
	spread := math.Abs(price * volatility)
	high := price + spread*rng.Float64()
	low := price - spread*rng.Float64()
	open := low + (high-low)*rng.Float64()
	return models.Bar{
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     price,
	}
}
