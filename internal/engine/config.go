package engine

import (
	"fmt"
	"time"

	"smc-signals/internal/analysis/scoring"
	apperrors "smc-signals/internal/errors"
)

// Params holds every tunable of the detection and signal pipeline.
type Params struct {
	HistoryCapacity    int     `mapstructure:"history_capacity"`
	MinHistoryBars     int     `mapstructure:"min_history_bars"`
	SwingLookback      int     `mapstructure:"swing_lookback"`
	InternalLookback   int     `mapstructure:"internal_lookback"`
	OrderBlockCapacity int     `mapstructure:"order_block_capacity"`
	ATRPeriod          int     `mapstructure:"atr_period"`
	EqualLevelBars     int     `mapstructure:"equal_level_bars"`
	EqualLevelFactor   float64 `mapstructure:"equal_level_factor"`

	ZoneBars        int     `mapstructure:"zone_bars"`
	DiscountZone    float64 `mapstructure:"discount_zone"`
	EquilibriumLow  float64 `mapstructure:"equilibrium_low"`
	EquilibriumHigh float64 `mapstructure:"equilibrium_high"`
	PremiumZone     float64 `mapstructure:"premium_zone"`

	// Weights overrides the built-in confirmation weights, keyed by tag
	// (e.g. "swingBullishBOS").
	Weights          map[string]int `mapstructure:"weights"`
	MinConfirmations int            `mapstructure:"min_confirmations"`
	MinPrimary       int            `mapstructure:"min_primary"`
	// MinConfidence is the score a validated analysis must reach. Markets
	// differ a lot here (forex profiles use 60, crypto 10), so it is always
	// set explicitly per profile rather than inferred.
	MinConfidence int `mapstructure:"min_confidence"`

	Cooldown         time.Duration `mapstructure:"cooldown"`
	MaxRisk          float64       `mapstructure:"max_risk"`
	RiskRewardRatios []float64     `mapstructure:"risk_reward_ratios"`

	// Volatility is the symbol volatility constant used for synthetic bars
	// and the minimum stop distance.
	Volatility float64 `mapstructure:"volatility"`
	// Precision is the number of decimals used when rendering prices.
	Precision int `mapstructure:"precision"`
}

// SymbolConfig binds a symbol to a profile and optional overrides.
type SymbolConfig struct {
	Profile    string  `mapstructure:"profile"`
	Volatility float64 `mapstructure:"volatility"`
	Precision  *int    `mapstructure:"precision"`
}

// Config is the engine configuration.
type Config struct {
	Params `mapstructure:",squash"`

	Timeframe      string                  `mapstructure:"timeframe"`
	DefaultProfile string                  `mapstructure:"default_profile"`
	Seed           int64                   `mapstructure:"seed"`
	Profiles       map[string]Params       `mapstructure:"-"`
	Symbols        map[string]SymbolConfig `mapstructure:"-"`
}

// DefaultParams returns the built-in parameter set.
func DefaultParams() Params {
	return Params{
		HistoryCapacity:    100,
		MinHistoryBars:     25,
		SwingLookback:      25,
		InternalLookback:   5,
		OrderBlockCapacity: 10,
		ATRPeriod:          14,
		EqualLevelBars:     10,
		EqualLevelFactor:   0.1,
		ZoneBars:           20,
		DiscountZone:       0.3,
		EquilibriumLow:     0.4,
		EquilibriumHigh:    0.6,
		PremiumZone:        0.7,
		MinConfirmations:   4,
		MinPrimary:         1,
		MinConfidence:      60,
		Cooldown:           5 * time.Minute,
		MaxRisk:            0.02,
		RiskRewardRatios:   []float64{2.0},
		Volatility:         0.0001,
		Precision:          5,
	}
}

// DefaultProfiles returns the built-in forex and crypto profiles.
func DefaultProfiles() map[string]Params {
	forex := DefaultParams()

	crypto := DefaultParams()
	crypto.MinConfidence = 10
	crypto.Volatility = 0.002
	crypto.Precision = 2

	return map[string]Params{
		"forex":  forex,
		"crypto": crypto,
	}
}

// DefaultConfig returns the built-in engine configuration.
func DefaultConfig() Config {
	return Config{
		Params:    DefaultParams(),
		Timeframe: "1m",
		Profiles:  DefaultProfiles(),
		Symbols:   map[string]SymbolConfig{},
	}
}

// Clone returns a deep copy of p.
func (p Params) Clone() Params {
	out := p
	if p.Weights != nil {
		out.Weights = make(map[string]int, len(p.Weights))
		for k, v := range p.Weights {
			out.Weights[k] = v
		}
	}
	out.RiskRewardRatios = append([]float64(nil), p.RiskRewardRatios...)
	return out
}

// ParamsFor resolves the parameters for a symbol: its profile (or the
// default profile, or the base params) plus per-symbol overrides.
func (c Config) ParamsFor(symbol string) (Params, error) {
	sc := c.Symbols[symbol]
	name := sc.Profile
	if name == "" {
		name = c.DefaultProfile
	}

	p := c.Params
	if name != "" {
		prof, ok := c.Profiles[name]
		if !ok {
			return Params{}, fmt.Errorf("%w: %q for symbol %s", apperrors.ErrUnknownProfile, name, symbol)
		}
		p = prof
	}
	p = p.Clone()

	if sc.Volatility > 0 {
		p.Volatility = sc.Volatility
	}
	if sc.Precision != nil {
		p.Precision = *sc.Precision
	}
	return p, nil
}

// Validate checks the base params, every profile and every symbol binding.
func (c Config) Validate() error {
	var errs apperrors.ValidationErrors
	c.Params.validate("", &errs)
	for name, p := range c.Profiles {
		p.validate("profiles."+name+".", &errs)
	}
	for symbol, sc := range c.Symbols {
		if sc.Profile != "" {
			if _, ok := c.Profiles[sc.Profile]; !ok {
				errs.Add("symbols."+symbol+".profile", sc.Profile, "unknown profile")
			}
		}
		if sc.Volatility < 0 {
			errs.Add("symbols."+symbol+".volatility", sc.Volatility, "must be non-negative")
		}
		if sc.Precision != nil && (*sc.Precision < 0 || *sc.Precision > 12) {
			errs.Add("symbols."+symbol+".precision", *sc.Precision, "must be between 0 and 12")
		}
	}
	if c.DefaultProfile != "" {
		if _, ok := c.Profiles[c.DefaultProfile]; !ok {
			errs.Add("default_profile", c.DefaultProfile, "unknown profile")
		}
	}
	return errs.Err()
}

// Validate checks a single parameter set.
func (p Params) Validate() error {
	var errs apperrors.ValidationErrors
	p.validate("", &errs)
	return errs.Err()
}

func (p Params) validate(prefix string, errs *apperrors.ValidationErrors) {
	field := func(name string) string { return prefix + name }

	if p.HistoryCapacity < 1 {
		errs.Add(field("history_capacity"), p.HistoryCapacity, "must be at least 1")
	}
	if p.MinHistoryBars < 0 || p.MinHistoryBars > p.HistoryCapacity {
		errs.Add(field("min_history_bars"), p.MinHistoryBars, "must be between 0 and history_capacity")
	}
	if p.SwingLookback < 1 || 2*p.SwingLookback+1 > p.HistoryCapacity {
		errs.Add(field("swing_lookback"), p.SwingLookback, "window 2L+1 must fit in history_capacity")
	}
	if p.InternalLookback < 1 || 2*p.InternalLookback+1 > p.HistoryCapacity {
		errs.Add(field("internal_lookback"), p.InternalLookback, "window 2L+1 must fit in history_capacity")
	}
	if p.OrderBlockCapacity < 1 {
		errs.Add(field("order_block_capacity"), p.OrderBlockCapacity, "must be at least 1")
	}
	if p.ATRPeriod < 1 {
		errs.Add(field("atr_period"), p.ATRPeriod, "must be at least 1")
	}
	if p.EqualLevelBars < 2 {
		errs.Add(field("equal_level_bars"), p.EqualLevelBars, "must be at least 2")
	}
	if p.EqualLevelFactor < 0 {
		errs.Add(field("equal_level_factor"), p.EqualLevelFactor, "must be non-negative")
	}
	if p.ZoneBars < 1 {
		errs.Add(field("zone_bars"), p.ZoneBars, "must be at least 1")
	}
	if !(0 <= p.DiscountZone && p.DiscountZone < p.EquilibriumLow &&
		p.EquilibriumLow <= p.EquilibriumHigh && p.EquilibriumHigh < p.PremiumZone && p.PremiumZone <= 1) {
		errs.Add(field("zones"), []float64{p.DiscountZone, p.EquilibriumLow, p.EquilibriumHigh, p.PremiumZone},
			"must satisfy 0 <= discount < equilibrium_low <= equilibrium_high < premium <= 1")
	}
	if _, err := scoring.ParseWeights(p.Weights); err != nil {
		errs.Add(field("weights"), p.Weights, err.Error())
	}
	if p.MinConfirmations < 0 {
		errs.Add(field("min_confirmations"), p.MinConfirmations, "must be non-negative")
	}
	if p.MinPrimary < 0 {
		errs.Add(field("min_primary"), p.MinPrimary, "must be non-negative")
	}
	if p.MinConfidence < 0 || p.MinConfidence > 100 {
		errs.Add(field("min_confidence"), p.MinConfidence, "must be between 0 and 100")
	}
	if p.Cooldown < 0 {
		errs.Add(field("cooldown"), p.Cooldown, "must be non-negative")
	}
	if p.MaxRisk <= 0 || p.MaxRisk >= 1 {
		errs.Add(field("max_risk"), p.MaxRisk, "must be in (0, 1)")
	}
	if len(p.RiskRewardRatios) == 0 {
		errs.Add(field("risk_reward_ratios"), p.RiskRewardRatios, "must not be empty")
	}
	for _, r := range p.RiskRewardRatios {
		if r <= 0 {
			errs.Add(field("risk_reward_ratios"), r, "ratios must be positive")
		}
	}
	if p.Volatility < 0 {
		errs.Add(field("volatility"), p.Volatility, "must be non-negative")
	}
	if p.Precision < 0 || p.Precision > 12 {
		errs.Add(field("precision"), p.Precision, "must be between 0 and 12")
	}
}
