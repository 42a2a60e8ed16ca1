package signals

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"smc-signals/internal/analysis/scoring"
	"smc-signals/internal/models"
)

// Composer assembles Signal records with a human-readable rationale.
type Composer struct {
	Timeframe string
	Precision int // decimal places used when rendering prices
	NewID     func() string
}

// NewComposer creates a composer for the given timeframe label.
func NewComposer(timeframe string, precision int) *Composer {
	if precision < 0 {
		precision = 0
	}
	return &Composer{
		Timeframe: timeframe,
		Precision: precision,
		NewID:     uuid.NewString,
	}
}

// Compose builds the Signal for one validated analysis and one set of levels.
func (c *Composer) Compose(symbol string, res scoring.Result, set *scoring.Set, lv Levels, ts time.Time) models.Signal {
	session := SessionAt(ts)
	return models.Signal{
		ID:             c.NewID(),
		Symbol:         symbol,
		Direction:      res.Direction,
		Confidence:     res.Score,
		EntryPrice:     lv.Entry,
		StopLoss:       lv.StopLoss,
		TakeProfit:     lv.TakeProfit,
		RiskReward:     lv.RiskReward,
		Confirmations:  set.Keys(),
		Timestamp:      ts,
		Rationale:      c.Rationale(res, set, lv, session),
		Timeframe:      c.Timeframe,
		SessionQuality: session.Quality,
	}
}

// ConfidenceTier names the strength band of a score.
func ConfidenceTier(confidence int) string {
	switch {
	case confidence >= 80:
		return "Very strong"
	case confidence >= 70:
		return "Strong"
	case confidence >= 60:
		return "Moderate"
	default:
		return "Speculative"
	}
}

// Rationale renders the explanation attached to a signal.
func (c *Composer) Rationale(res scoring.Result, set *scoring.Set, lv Levels, session Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s setup (%d%% confidence, %d confirmations).",
		ConfidenceTier(res.Score), res.Direction, res.Score, set.Len())

	var reasons []string
	if labels := labelsOf(set, scoring.CategorySwingStructure); labels != "" {
		reasons = append(reasons, "swing structure broke ("+labels+")")
	}
	if labels := labelsOf(set, scoring.CategoryInternalStructure); labels != "" {
		if set.HasCategory(scoring.CategorySwingStructure) {
			reasons = append(reasons, "internal structure agrees ("+labels+")")
		} else {
			reasons = append(reasons, "internal structure broke ("+labels+")")
		}
	}
	if labels := labelsOf(set, scoring.CategoryOrderBlock); labels != "" {
		reasons = append(reasons, "price is inside "+labels)
	}
	if labels := labelsOf(set, scoring.CategoryFairValueGap); labels != "" {
		reasons = append(reasons, "imbalance left by "+labels)
	}
	if labels := labelsOf(set, scoring.CategoryLiquidity); labels != "" {
		reasons = append(reasons, "liquidity swept ("+labels+")")
	}
	switch {
	case set.Has(scoring.DiscountZoneEntry):
		reasons = append(reasons, "price in the discount zone of the recent range")
	case set.Has(scoring.PremiumZoneEntry):
		reasons = append(reasons, "price in the premium zone of the recent range")
	case set.Has(scoring.EquilibriumZone):
		reasons = append(reasons, "price near range equilibrium")
	}
	if len(reasons) > 0 {
		b.WriteString(" ")
		b.WriteString(capitalize(strings.Join(reasons, "; ")))
		b.WriteString(".")
	}

	fmt.Fprintf(&b, " Entry %s, stop %s, target %s (R:R 1:%s).",
		c.price(lv.Entry), c.price(lv.StopLoss), c.price(lv.TakeProfit),
		decimal.NewFromFloat(lv.RiskReward).StringFixed(1))
	if lv.Capped {
		b.WriteString(" Stop capped at maximum risk.")
	}
	fmt.Fprintf(&b, " %s (%s).", capitalize(session.Name), session.Quality)

	return b.String()
}

func (c *Composer) price(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(int32(c.Precision))
}

func labelsOf(set *scoring.Set, cat scoring.Category) string {
	var labels []string
	for _, t := range set.Tags() {
		if t.Category() == cat {
			labels = append(labels, t.Label())
		}
	}
	return strings.Join(labels, " + ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
