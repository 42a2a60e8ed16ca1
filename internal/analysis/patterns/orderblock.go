// Package patterns provides smart-money pattern detection: order blocks,
// fair value gaps, equal highs/lows and premium/discount zones.
package patterns

import (
	"time"

	"smc-signals/internal/analysis/structure"
	"smc-signals/internal/models"
)

// formationWindow is the number of trailing bars scanned for new formations.
const formationWindow = 5

// Tier identifies which structure tier an order block is tied to.
type Tier string

const (
	TierSwing    Tier = "swing"
	TierInternal Tier = "internal"
)

// OrderBlock represents an order block zone.
type OrderBlock struct {
	High      float64
	Low       float64
	Bias      structure.Bias
	Timestamp time.Time // timestamp of the consolidation bar
	Tier      Tier
}

// Contains reports whether price lies within the block.
func (b OrderBlock) Contains(price float64) bool {
	return price >= b.Low && price <= b.High
}

// OrderBlockTracker keeps a bounded, newest-first list of order blocks.
type OrderBlockTracker struct {
	capacity int
	blocks   []OrderBlock
}

// NewOrderBlockTracker creates a tracker retaining at most capacity blocks.
func NewOrderBlockTracker(capacity int) *OrderBlockTracker {
	if capacity < 1 {
		capacity = 1
	}
	return &OrderBlockTracker{capacity: capacity}
}

// Update scans the trailing bars for new formations and stores them.
// New blocks take the swing tier when swingBias agrees with their bias.
// It returns the blocks added by this call.
func (t *OrderBlockTracker) Update(bars []models.Bar, swingBias structure.Bias) []OrderBlock {
	var added []OrderBlock
	for _, block := range FindOrderBlocks(bars) {
		if t.has(block) {
			continue
		}
		block.Tier = TierInternal
		if swingBias != structure.BiasNone && swingBias == block.Bias {
			block.Tier = TierSwing
		}
		t.push(block)
		added = append(added, block)
	}
	return added
}

// Blocks returns a copy of the stored blocks, newest first.
func (t *OrderBlockTracker) Blocks() []OrderBlock {
	out := make([]OrderBlock, len(t.blocks))
	copy(out, t.blocks)
	return out
}

// Containing returns every stored block whose range contains price.
func (t *OrderBlockTracker) Containing(price float64) []OrderBlock {
	var hits []OrderBlock
	for _, b := range t.blocks {
		if b.Contains(price) {
			hits = append(hits, b)
		}
	}
	return hits
}

func (t *OrderBlockTracker) push(block OrderBlock) {
	t.blocks = append([]OrderBlock{block}, t.blocks...)
	if len(t.blocks) > t.capacity {
		t.blocks = t.blocks[:t.capacity]
	}
}

func (t *OrderBlockTracker) has(block OrderBlock) bool {
	for _, b := range t.blocks {
		if b.Bias == block.Bias && b.Timestamp.Equal(block.Timestamp) && b.High == block.High && b.Low == block.Low {
			return true
		}
	}
	return false
}

// FindOrderBlocks slides a [prev, current, next] window over the last five bars.
//
// Bullish: prev is a down bar, next closes above current's high and next's
// range exceeds 1.5x current's range. Bearish is the mirror. Blocks are
// returned oldest first and span current's low to high.
func FindOrderBlocks(bars []models.Bar) []OrderBlock {
	if len(bars) > formationWindow {
		bars = bars[len(bars)-formationWindow:]
	}

	var blocks []OrderBlock
	for j := 1; j+1 < len(bars); j++ {
		prev, cur, next := bars[j-1], bars[j], bars[j+1]
		impulse := next.Range() > 1.5*cur.Range()

		if prev.IsBearish() && next.Close > cur.High && impulse {
			blocks = append(blocks, OrderBlock{
				High:      cur.High,
				Low:       cur.Low,
				Bias:      structure.BiasBullish,
				Timestamp: cur.Timestamp,
			})
		}
		if prev.IsBullish() && next.Close < cur.Low && impulse {
			blocks = append(blocks, OrderBlock{
				High:      cur.High,
				Low:       cur.Low,
				Bias:      structure.BiasBearish,
				Timestamp: cur.Timestamp,
			})
		}
	}
	return blocks
}
