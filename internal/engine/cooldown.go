package engine

import "time"

// Cooldown rate-limits validated analyses for one symbol.
type Cooldown struct {
	period time.Duration
	last   time.Time
}

// NewCooldown creates a gate with the given period. A zero period never blocks.
func NewCooldown(period time.Duration) *Cooldown {
	return &Cooldown{period: period}
}

// Allow reports whether an analysis at ts may emit signals and, if so,
// records ts as the last validated analysis.
func (c *Cooldown) Allow(ts time.Time) bool {
	if c.Active(ts) {
		return false
	}
	c.last = ts
	return true
}

// Active reports whether ts falls within the period after the last
// validated analysis.
func (c *Cooldown) Active(ts time.Time) bool {
	if c.last.IsZero() || c.period <= 0 {
		return false
	}
	return ts.Sub(c.last) < c.period
}

// Last returns the time of the last validated analysis.
func (c *Cooldown) Last() time.Time {
	return c.last
}

// Remaining returns how long the gate stays closed after ts.
func (c *Cooldown) Remaining(ts time.Time) time.Duration {
	if !c.Active(ts) {
		return 0
	}
	return c.period - ts.Sub(c.last)
}
