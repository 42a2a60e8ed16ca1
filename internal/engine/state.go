package engine

import (
	"smc-signals/internal/analysis/patterns"
	"smc-signals/internal/analysis/scoring"
	"smc-signals/internal/analysis/structure"
	"smc-signals/internal/signals"
)

// State is everything the engine keeps for one symbol.
type State struct {
	Symbol string
	Params Params

	history  *History
	primary  *structure.Tracker
	internal *structure.Tracker
	blocks   *patterns.OrderBlockTracker
	cooldown *Cooldown

	equal    patterns.EqualLevelsDetector
	zones    patterns.ZoneClassifier
	scorer   *scoring.Scorer
	levels   signals.LevelCalculator
	composer *signals.Composer
}

func newState(symbol, timeframe string, p Params) (*State, error) {
	weights, err := scoring.ParseWeights(p.Weights)
	if err != nil {
		return nil, err
	}

	scorer := scoring.NewScorer(weights, p.MinConfidence)
	scorer.MinConfirmations = p.MinConfirmations
	scorer.MinPrimary = p.MinPrimary

	levels := signals.NewLevelCalculator()
	levels.ATRPeriod = p.ATRPeriod
	levels.MaxRisk = p.MaxRisk

	return &State{
		Symbol:   symbol,
		Params:   p,
		history:  NewHistory(p.HistoryCapacity),
		primary:  structure.NewTracker(p.SwingLookback),
		internal: structure.NewTracker(p.InternalLookback),
		blocks:   patterns.NewOrderBlockTracker(p.OrderBlockCapacity),
		cooldown: NewCooldown(p.Cooldown),
		equal: patterns.EqualLevelsDetector{
			Bars:      p.EqualLevelBars,
			ATRPeriod: p.ATRPeriod,
			Factor:    p.EqualLevelFactor,
		},
		zones: patterns.ZoneClassifier{
			Bars:            p.ZoneBars,
			Discount:        p.DiscountZone,
			EquilibriumLow:  p.EquilibriumLow,
			EquilibriumHigh: p.EquilibriumHigh,
			Premium:         p.PremiumZone,
		},
		scorer:   scorer,
		levels:   levels,
		composer: signals.NewComposer(timeframe, p.Precision),
	}, nil
}

// History returns the symbol's bar store.
func (s *State) History() *History { return s.history }

// Primary returns the swing structure tracker.
func (s *State) Primary() structure.State { return s.primary.State() }

// Internal returns the internal structure tracker.
func (s *State) Internal() structure.State { return s.internal.State() }

// OrderBlocks returns the stored order blocks, newest first.
func (s *State) OrderBlocks() []patterns.OrderBlock { return s.blocks.Blocks() }

// Cooldown returns the symbol's cooldown gate.
func (s *State) Cooldown() *Cooldown { return s.cooldown }
