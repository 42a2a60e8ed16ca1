// Package engine runs the smart-money detectors over per-symbol bar
// histories and turns validated analyses into signals.
//
// An Engine is synchronous and not safe for concurrent use. Hosts that
// analyze symbols in parallel must partition them so that no two goroutines
// touch the same Engine.
package engine

import (
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"smc-signals/internal/analysis/indicators"
	"smc-signals/internal/analysis/patterns"
	"smc-signals/internal/analysis/scoring"
	"smc-signals/internal/analysis/structure"
	"smc-signals/internal/models"
)

// Outcome is the result class of one analysis.
type Outcome int

const (
	OutcomeNoData Outcome = iota
	OutcomeInsufficientHistory
	OutcomeRejected
	OutcomeCooldown
	OutcomeEmitted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoData:
		return "no_data"
	case OutcomeInsufficientHistory:
		return "insufficient_history"
	case OutcomeRejected:
		return "rejected"
	case OutcomeCooldown:
		return "cooldown"
	case OutcomeEmitted:
		return "emitted"
	default:
		return "unknown"
	}
}

// Recorder receives analysis outcomes and emitted signals.
type Recorder interface {
	RecordOutcome(symbol, outcome string)
	RecordSignal(sig models.Signal)
}

type nopRecorder struct{}

func (nopRecorder) RecordOutcome(string, string) {}
func (nopRecorder) RecordSignal(models.Signal)   {}

// Analysis is the full result of analyzing one symbol at one price.
type Analysis struct {
	Symbol    string
	Outcome   Outcome
	Price     float64
	Timestamp time.Time

	SwingBreaks    []structure.Break
	InternalBreaks []structure.Break
	NewOrderBlocks []patterns.OrderBlock
	FairValueGaps  []patterns.FairValueGap
	EqualLevels    patterns.EqualLevelsResult
	Zone           patterns.Zone
	ZonePosition   float64

	Confirmations *scoring.Set
	Result        scoring.Result
	Signals       []models.Signal
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithClock sets the time source used when a bar carries no timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRand sets the random source used for synthetic bars.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// Engine owns one State per symbol, created on first observation.
type Engine struct {
	cfg      Config
	states   map[string]*State
	logger   zerolog.Logger
	recorder Recorder
	now      func() time.Time
	rng      *rand.Rand
}

// New validates cfg and creates an engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	e := &Engine{
		cfg:      cfg,
		states:   make(map[string]*State),
		logger:   zerolog.Nop(),
		recorder: nopRecorder{},
		now:      time.Now,
		rng:      rand.New(rand.NewSource(seed)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// State returns the state of symbol, if it has been observed.
func (e *Engine) State(symbol string) (*State, bool) {
	st, ok := e.states[symbol]
	return st, ok
}

// Symbols returns the observed symbols in sorted order.
func (e *Engine) Symbols() []string {
	out := make([]string, 0, len(e.states))
	for s := range e.states {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Reset discards the state of every symbol.
func (e *Engine) Reset() {
	e.states = make(map[string]*State)
}

// Seed replaces the history of symbol with bars, skipping invalid ones.
// It returns the number of bars stored.
func (e *Engine) Seed(symbol string, bars []models.Bar) int {
	st := e.state(symbol)
	if st == nil {
		return 0
	}
	valid := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Valid() {
			valid = append(valid, b)
		}
	}
	st.history.Replace(valid)

	e.logger.Debug().
		Str("symbol", symbol).
		Int("bars", st.history.Len()).
		Int("skipped", len(bars)-len(valid)).
		Msg("History seeded")
	return st.history.Len()
}

// OnBar appends bar to the history of symbol and analyzes it.
func (e *Engine) OnBar(symbol string, bar models.Bar) Analysis {
	st := e.state(symbol)
	if st == nil {
		return e.finish(Analysis{Symbol: symbol, Outcome: OutcomeNoData})
	}
	if !bar.Valid() {
		e.logger.Warn().
			Str("symbol", symbol).
			Time("bar_time", bar.Timestamp).
			Float64("close", bar.Close).
			Msg("Ignoring invalid bar")
		return e.finish(Analysis{Symbol: symbol, Outcome: OutcomeNoData, Timestamp: bar.Timestamp})
	}
	st.history.Append(bar)
	return e.analyze(st, bar.Close, bar.Timestamp)
}

// OnPrice synthesizes a bar around price and analyzes it.
func (e *Engine) OnPrice(symbol string, price float64, ts time.Time) Analysis {
	st := e.state(symbol)
	if st == nil {
		return e.finish(Analysis{Symbol: symbol, Outcome: OutcomeNoData, Price: price, Timestamp: ts})
	}
	if ts.IsZero() {
		ts = e.now()
	}
	if !(price > 0) || !indicators.IsFinite(price) {
		e.logger.Warn().
			Str("symbol", symbol).
			Time("bar_time", ts).
			Float64("price", price).
			Msg("Ignoring invalid price")
		return e.finish(Analysis{Symbol: symbol, Outcome: OutcomeNoData, Price: price, Timestamp: ts})
	}
	bar := SyntheticBar(price, st.Params.Volatility, ts, e.rng)
	if !bar.Valid() {
		e.logger.Warn().
			Str("symbol", symbol).
			Time("bar_time", ts).
			Float64("price", price).
			Msg("Ignoring invalid synthetic bar")
		return e.finish(Analysis{Symbol: symbol, Outcome: OutcomeNoData, Price: price, Timestamp: ts})
	}
	st.history.Append(bar)
	return e.analyze(st, price, ts)
}

// Analyze runs the detectors against the newest stored bar of symbol
// without appending anything.
func (e *Engine) Analyze(symbol string) Analysis {
	st, ok := e.states[symbol]
	if !ok {
		return e.finish(Analysis{Symbol: symbol, Outcome: OutcomeNoData})
	}
	last, ok := st.history.Last()
	if !ok {
		return e.finish(Analysis{Symbol: symbol, Outcome: OutcomeNoData})
	}
	return e.analyze(st, last.Close, last.Timestamp)
}

func (e *Engine) state(symbol string) *State {
	if st, ok := e.states[symbol]; ok {
		return st
	}
	p, err := e.cfg.ParamsFor(symbol)
	if err == nil {
		var st *State
		if st, err = newState(symbol, e.cfg.Timeframe, p); err == nil {
			e.states[symbol] = st
			return st
		}
	}
	e.logger.Error().Err(err).Str("symbol", symbol).Msg("Cannot create symbol state")
	return nil
}

func (e *Engine) analyze(st *State, price float64, ts time.Time) Analysis {
	if ts.IsZero() {
		ts = e.now()
	}
	a := Analysis{
		Symbol:        st.Symbol,
		Price:         price,
		Timestamp:     ts,
		Confirmations: scoring.NewSet(),
	}

	bars := st.history.Bars()
	if len(bars) == 0 {
		a.Outcome = OutcomeNoData
		return e.finish(a)
	}
	if len(bars) < st.Params.MinHistoryBars {
		a.Outcome = OutcomeInsufficientHistory
		return e.finish(a)
	}

	set := a.Confirmations

	a.SwingBreaks = st.primary.Update(bars, price)
	for _, b := range a.SwingBreaks {
		set.Add(scoring.StructureTag(true, b))
	}
	a.InternalBreaks = st.internal.Update(bars, price)
	for _, b := range a.InternalBreaks {
		set.Add(scoring.StructureTag(false, b))
	}

	a.NewOrderBlocks = st.blocks.Update(bars, st.primary.State().Bias)
	for _, ob := range st.blocks.Containing(price) {
		set.Add(orderBlockTag(ob))
	}

	a.FairValueGaps = patterns.FindFairValueGaps(bars)
	for _, g := range a.FairValueGaps {
		if g.Bias == structure.BiasBullish {
			set.Add(scoring.BullishFairValueGap)
		} else {
			set.Add(scoring.BearishFairValueGap)
		}
	}

	a.EqualLevels = st.equal.Detect(bars, price)
	if h := a.EqualLevels.Highs; h != nil && h.Broken {
		set.Add(scoring.EqualHighsBreak)
	}
	if l := a.EqualLevels.Lows; l != nil && l.Broken {
		set.Add(scoring.EqualLowsBreak)
	}

	a.Zone, a.ZonePosition = st.zones.Classify(bars, price)
	switch a.Zone {
	case patterns.ZonePremium:
		set.Add(scoring.PremiumZoneEntry)
	case patterns.ZoneDiscount:
		set.Add(scoring.DiscountZoneEntry)
	case patterns.ZoneEquilibrium:
		set.Add(scoring.EquilibriumZone)
	}

	a.Result = st.scorer.Evaluate(set)
	if !a.Result.Valid {
		a.Outcome = OutcomeRejected
		return e.finish(a)
	}

	if !st.cooldown.Allow(ts) {
		a.Outcome = OutcomeCooldown
		return e.finish(a)
	}

	for _, ratio := range st.Params.RiskRewardRatios {
		lv, ok := st.levels.Calculate(a.Result.Direction, price, bars, st.Params.Volatility, ratio)
		if !ok {
			e.logger.Warn().
				Str("symbol", st.Symbol).
				Float64("price", price).
				Float64("ratio", ratio).
				Msg("Cannot place trading levels")
			continue
		}
		a.Signals = append(a.Signals, st.composer.Compose(st.Symbol, a.Result, set, lv, ts))
	}

	a.Outcome = OutcomeEmitted
	if len(a.Signals) == 0 {
		a.Outcome = OutcomeRejected
	}
	return e.finish(a)
}

func (e *Engine) finish(a Analysis) Analysis {
	e.recorder.RecordOutcome(a.Symbol, a.Outcome.String())

	ev := e.logger.Debug()
	if a.Outcome == OutcomeEmitted {
		ev = e.logger.Info()
	}
	ev = ev.Str("symbol", a.Symbol).
		Str("outcome", a.Outcome.String()).
		Time("time", a.Timestamp)
	if a.Confirmations != nil && a.Confirmations.Len() > 0 {
		ev = ev.Strs("confirmations", a.Confirmations.Keys()).
			Int("score", a.Result.Score)
	}
	if a.Result.Reason != "" {
		ev = ev.Str("reason", a.Result.Reason)
	}
	ev.Int("signals", len(a.Signals)).Msg("Analysis complete")

	for _, sig := range a.Signals {
		e.recorder.RecordSignal(sig)
	}
	return a
}

func orderBlockTag(ob patterns.OrderBlock) scoring.Tag {
	bullish := ob.Bias == structure.BiasBullish
	switch {
	case ob.Tier == patterns.TierSwing && bullish:
		return scoring.SwingBullishOrderBlock
	case ob.Tier == patterns.TierSwing:
		return scoring.SwingBearishOrderBlock
	case bullish:
		return scoring.InternalBullishOrderBlock
	default:
		return scoring.InternalBearishOrderBlock
	}
}
