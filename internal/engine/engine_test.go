package engine

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	apperrors "smc-signals/internal/errors"
	"smc-signals/internal/models"
)

var t0 = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

func flatBar(i int, close float64) models.Bar {
	return models.Bar{
		Timestamp: t0.Add(time.Duration(i) * time.Minute),
		Open:      close,
		High:      close + 0.5,
		Low:       close - 0.5,
		Close:     close,
		Volume:    1000,
	}
}

// breakoutCloses produces a bullish break of both structure tiers on bar 5
// and an internal bearish CHoCH on bar 6.
var breakoutCloses = []float64{100, 99, 102, 100, 100, 103, 97}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.HistoryCapacity = 50
	cfg.MinHistoryBars = 3
	cfg.SwingLookback = 2
	cfg.InternalLookback = 1
	cfg.MinConfirmations = 1
	cfg.MinConfidence = 0
	cfg.RiskRewardRatios = []float64{1.5, 2, 3}
	cfg.Profiles = nil
	cfg.Seed = 42
	return cfg
}

type recorder struct {
	outcomes map[string]int
	signals  []models.Signal
}

func (r *recorder) RecordOutcome(_, outcome string) {
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[outcome]++
}

func (r *recorder) RecordSignal(sig models.Signal) {
	r.signals = append(r.signals, sig)
}

func replay(t *testing.T, e *Engine, symbol string, closes []float64) []Analysis {
	t.Helper()
	out := make([]Analysis, 0, len(closes))
	for i, c := range closes {
		out = append(out, e.OnBar(symbol, flatBar(i, c)))
	}
	return out
}

func TestEngine_EmitsSignalPerRatio(t *testing.T) {
	rec := &recorder{}
	e, err := New(testConfig(), WithRecorder(rec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	results := replay(t, e, "EURUSD", breakoutCloses[:6])
	for i, a := range results[:5] {
		if a.Outcome == OutcomeEmitted {
			t.Fatalf("bar %d: unexpected signal", i)
		}
	}

	a := results[5]
	if a.Outcome != OutcomeEmitted {
		t.Fatalf("outcome = %v (%s), want emitted", a.Outcome, a.Result.Reason)
	}
	if a.Result.Direction != models.DirectionBuy {
		t.Errorf("direction = %v, want BUY", a.Result.Direction)
	}
	if a.Result.Score != 90 {
		t.Errorf("score = %d, want 90 (confirmations %v)", a.Result.Score, a.Confirmations.Keys())
	}
	if len(a.Signals) != 3 {
		t.Fatalf("got %d signals, want 3", len(a.Signals))
	}

	ids := map[string]bool{}
	for i, sig := range a.Signals {
		if sig.RiskReward != testConfig().RiskRewardRatios[i] {
			t.Errorf("signal %d ratio = %v", i, sig.RiskReward)
		}
		if !(sig.StopLoss < sig.EntryPrice && sig.EntryPrice < sig.TakeProfit) {
			t.Errorf("signal %d levels out of order: %+v", i, sig)
		}
		if sig.EntryPrice != 103 || sig.Symbol != "EURUSD" || sig.Timeframe != "1m" {
			t.Errorf("signal %d = %+v", i, sig)
		}
		if sig.SessionQuality != "Good" {
			t.Errorf("session quality = %q, want Good", sig.SessionQuality)
		}
		if ids[sig.ID] {
			t.Errorf("duplicate signal id %s", sig.ID)
		}
		ids[sig.ID] = true
	}

	if len(rec.signals) != 3 || rec.outcomes["emitted"] != 1 {
		t.Errorf("recorder = %+v", rec)
	}
}

func TestEngine_CooldownSuppressesSecondAnalysis(t *testing.T) {
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	results := replay(t, e, "EURUSD", breakoutCloses)
	if results[5].Outcome != OutcomeEmitted {
		t.Fatalf("bar 5 outcome = %v, want emitted", results[5].Outcome)
	}

	a := results[6]
	if !a.Result.Valid || a.Result.Direction != models.DirectionSell {
		t.Fatalf("bar 6 result = %+v, want a validated SELL", a.Result)
	}
	if a.Outcome != OutcomeCooldown || len(a.Signals) != 0 {
		t.Errorf("bar 6 outcome = %v with %d signals, want cooldown", a.Outcome, len(a.Signals))
	}

	st, _ := e.State("EURUSD")
	if !st.Cooldown().Last().Equal(results[5].Timestamp) {
		t.Errorf("last validated = %v, want %v", st.Cooldown().Last(), results[5].Timestamp)
	}
}

func TestEngine_NoCooldownEmitsBoth(t *testing.T) {
	cfg := testConfig()
	cfg.Cooldown = 0
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	results := replay(t, e, "EURUSD", breakoutCloses)
	a := results[6]
	if a.Outcome != OutcomeEmitted {
		t.Fatalf("outcome = %v, want emitted", a.Outcome)
	}
	for _, sig := range a.Signals {
		if sig.Direction != models.DirectionSell {
			t.Errorf("direction = %v, want SELL", sig.Direction)
		}
		if !(sig.TakeProfit < sig.EntryPrice && sig.EntryPrice < sig.StopLoss) {
			t.Errorf("levels out of order: %+v", sig)
		}
	}
}

func TestEngine_InsufficientHistory(t *testing.T) {
	e, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 24; i++ {
		a := e.OnBar("EURUSD", flatBar(i, 100))
		if a.Outcome != OutcomeInsufficientHistory {
			t.Fatalf("bar %d outcome = %v, want insufficient history", i, a.Outcome)
		}
	}
	if a := e.OnBar("EURUSD", flatBar(24, 100)); a.Outcome == OutcomeInsufficientHistory {
		t.Errorf("25th bar still reported insufficient history")
	}
}

func TestEngine_NoData(t *testing.T) {
	e, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if a := e.Analyze("GBPUSD"); a.Outcome != OutcomeNoData {
		t.Errorf("unknown symbol outcome = %v", a.Outcome)
	}
	if n := e.Seed("GBPUSD", nil); n != 0 {
		t.Errorf("seeded %d bars from nil", n)
	}
	if a := e.Analyze("GBPUSD"); a.Outcome != OutcomeNoData {
		t.Errorf("empty history outcome = %v", a.Outcome)
	}
	if a := e.OnPrice("GBPUSD", 0, t0); a.Outcome != OutcomeNoData {
		t.Errorf("zero price outcome = %v", a.Outcome)
	}

	bad := flatBar(0, 100)
	bad.High = 90
	if a := e.OnBar("GBPUSD", bad); a.Outcome != OutcomeNoData {
		t.Errorf("invalid bar outcome = %v", a.Outcome)
	}
	st, _ := e.State("GBPUSD")
	if st.History().Len() != 0 {
		t.Errorf("invalid bar was stored")
	}
}

func TestEngine_SeedKeepsNewestBars(t *testing.T) {
	e, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	bars := make([]models.Bar, 150)
	for i := range bars {
		bars[i] = flatBar(i, 100+float64(i)*0.01)
	}
	bars[149].Low = 200 // invalid, skipped

	if n := e.Seed("EURUSD", bars); n != 100 {
		t.Fatalf("seeded %d bars, want 100", n)
	}
	st, _ := e.State("EURUSD")
	got := st.History().Bars()
	if !got[0].Timestamp.Equal(bars[49].Timestamp) || !got[99].Timestamp.Equal(bars[148].Timestamp) {
		t.Errorf("history spans %v..%v", got[0].Timestamp, got[99].Timestamp)
	}

	if a := e.Analyze("EURUSD"); a.Outcome == OutcomeNoData || a.Outcome == OutcomeInsufficientHistory {
		t.Errorf("analyze after seed outcome = %v", a.Outcome)
	}
}

func TestEngine_ResetDropsState(t *testing.T) {
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	replay(t, e, "EURUSD", breakoutCloses[:3])
	replay(t, e, "BTCUSD", breakoutCloses[:3])

	if got := e.Symbols(); len(got) != 2 || got[0] != "BTCUSD" {
		t.Fatalf("symbols = %v", got)
	}
	e.Reset()
	if len(e.Symbols()) != 0 {
		t.Errorf("symbols after reset = %v", e.Symbols())
	}
}

func TestEngine_SymbolsAreIsolated(t *testing.T) {
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	replay(t, e, "EURUSD", breakoutCloses[:6])
	a := e.OnBar("GBPUSD", flatBar(0, 100))
	if a.Outcome != OutcomeNoData && a.Outcome != OutcomeInsufficientHistory {
		t.Errorf("fresh symbol outcome = %v", a.Outcome)
	}
	st, _ := e.State("GBPUSD")
	if st.History().Len() != 1 || st.Cooldown().Last() != (time.Time{}) {
		t.Errorf("GBPUSD state leaked from EURUSD")
	}
}

func TestEngine_OnPriceSynthesizesBar(t *testing.T) {
	e, err := New(testConfig(), WithRand(rand.New(rand.NewSource(1))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a := e.OnPrice("EURUSD", 1.1, t0)
	if a.Outcome != OutcomeInsufficientHistory {
		t.Errorf("outcome = %v", a.Outcome)
	}
	st, _ := e.State("EURUSD")
	last, ok := st.History().Last()
	if !ok || !last.Valid() || last.Close != 1.1 || !last.Timestamp.Equal(t0) {
		t.Errorf("synthetic bar = %+v", last)
	}
}

func TestEngine_OnPriceUsesClock(t *testing.T) {
	now := t0.Add(time.Hour)
	e, err := New(testConfig(), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a := e.OnPrice("EURUSD", 1.1, time.Time{})
	if !a.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", a.Timestamp, now)
	}
}

func TestEngine_OnPriceRejectsNonFinite(t *testing.T) {
	rec := &recorder{}
	e, err := New(testConfig(), WithRecorder(rec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.OnPrice("EURUSD", 1.1, t0)

	for i, price := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -1} {
		a := e.OnPrice("EURUSD", price, t0.Add(time.Duration(i+1)*time.Minute))
		if a.Outcome != OutcomeNoData {
			t.Errorf("price %v: outcome = %v, want no_data", price, a.Outcome)
		}
	}

	st, _ := e.State("EURUSD")
	if n := st.History().Len(); n != 1 {
		t.Fatalf("history holds %d bars, want 1", n)
	}
	for _, b := range st.History().Bars() {
		if !b.Valid() {
			t.Errorf("invalid bar stored: %+v", b)
		}
	}
	if rec.outcomes["no_data"] != 4 {
		t.Errorf("recorded outcomes = %v", rec.outcomes)
	}
}

func TestEngine_OnBarRejectsNonFinite(t *testing.T) {
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	nan := flatBar(0, 100)
	nan.High = math.NaN()
	inf := flatBar(1, 100)
	inf.Close, inf.High = math.Inf(1), math.Inf(1)

	for _, b := range []models.Bar{nan, inf} {
		if a := e.OnBar("EURUSD", b); a.Outcome != OutcomeNoData {
			t.Errorf("bar %+v: outcome = %v, want no_data", b, a.Outcome)
		}
	}
	if st, _ := e.State("EURUSD"); st.History().Len() != 0 {
		t.Errorf("history holds %d bars, want 0", st.History().Len())
	}
}

func TestEngine_ProfilesResolvePerSymbol(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultProfile = "forex"
	prec := 3
	cfg.Symbols = map[string]SymbolConfig{
		"BTCUSD": {Profile: "crypto"},
		"USDJPY": {Volatility: 0.0005, Precision: &prec},
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e.OnBar("BTCUSD", flatBar(0, 60000))
	e.OnBar("USDJPY", flatBar(0, 150))
	e.OnBar("EURUSD", flatBar(0, 1.1))

	btc, _ := e.State("BTCUSD")
	jpy, _ := e.State("USDJPY")
	eur, _ := e.State("EURUSD")
	if btc.Params.MinConfidence != 10 {
		t.Errorf("crypto min confidence = %d, want 10", btc.Params.MinConfidence)
	}
	if eur.Params.MinConfidence != 60 {
		t.Errorf("forex min confidence = %d, want 60", eur.Params.MinConfidence)
	}
	if jpy.Params.Volatility != 0.0005 || jpy.Params.Precision != 3 {
		t.Errorf("USDJPY overrides not applied: %+v", jpy.Params)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SwingLookback = 50 // 2*50+1 > 100
	cfg.Weights = map[string]int{"bogus": 1}
	cfg.RiskRewardRatios = nil

	_, err := New(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperrors.Is(err, apperrors.ErrConfigInvalid) {
		t.Errorf("error %v does not wrap ErrConfigInvalid", err)
	}
	var verrs apperrors.ValidationErrors
	if !apperrors.As(err, &verrs) || len(verrs) != 3 {
		t.Errorf("validation errors = %v", verrs)
	}
}

func TestConfig_UnknownProfile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Symbols = map[string]SymbolConfig{"EURUSD": {Profile: "stocks"}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected unknown profile error")
	}
	if _, err := cfg.ParamsFor("EURUSD"); !apperrors.Is(err, apperrors.ErrUnknownProfile) {
		t.Errorf("ParamsFor error = %v", err)
	}
}

func TestParams_CloneIsDeep(t *testing.T) {
	p := DefaultParams()
	p.Weights = map[string]int{"bullishFairValueGap": 5}
	c := p.Clone()
	c.Weights["bullishFairValueGap"] = 99
	c.RiskRewardRatios[0] = 9
	if p.Weights["bullishFairValueGap"] != 5 || p.RiskRewardRatios[0] != 2 {
		t.Error("clone shares maps or slices")
	}
}

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Append(flatBar(i, float64(100+i)))
	}
	bars := h.Bars()
	if len(bars) != 3 || bars[0].Close != 102 || bars[2].Close != 104 {
		t.Errorf("bars = %+v", bars)
	}

	bars[0].Close = 0
	if h.Bars()[0].Close != 102 {
		t.Error("Bars exposes internal storage")
	}
}

func TestCooldown(t *testing.T) {
	c := NewCooldown(5 * time.Minute)
	if !c.Allow(t0) {
		t.Fatal("first analysis blocked")
	}
	if c.Allow(t0.Add(4*time.Minute + 59*time.Second)) {
		t.Error("analysis inside cooldown allowed")
	}
	if got := c.Remaining(t0.Add(time.Minute)); got != 4*time.Minute {
		t.Errorf("remaining = %v", got)
	}
	if c.Allow(t0.Add(-time.Minute)) {
		t.Error("earlier timestamp allowed")
	}
	if !c.Allow(t0.Add(5 * time.Minute)) {
		t.Error("analysis at cooldown boundary blocked")
	}
}

func TestProperty_HistoryBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("history never exceeds capacity", prop.ForAll(
		func(capacity, appends int) bool {
			h := NewHistory(capacity)
			for i := 0; i < appends; i++ {
				h.Append(flatBar(i, 100))
				if h.Len() > capacity {
					return false
				}
			}
			return h.Len() == min(capacity, appends)
		},
		gen.IntRange(1, 50),
		gen.IntRange(0, 200),
	))

	properties.TestingRun(t)
}

func TestProperty_SyntheticBarValid(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	rng := rand.New(rand.NewSource(7))
	properties.Property("synthetic bar brackets the close", prop.ForAll(
		func(price, vol float64) bool {
			b := SyntheticBar(price, vol, t0, rng)
			return b.Valid() && b.Close == price && !math.IsNaN(b.Open)
		},
		gen.Float64Range(0.0001, 100000),
		gen.Float64Range(0, 0.05),
	))

	properties.TestingRun(t)
}

func TestProperty_SignalsRespectCooldown(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("signals for a symbol are at least a cooldown apart", prop.ForAll(
		func(closes []float64) bool {
			cfg := testConfig()
			e, err := New(cfg)
			if err != nil {
				return false
			}
			var last time.Time
			for i, c := range closes {
				a := e.OnBar("EURUSD", flatBar(i, c))
				if len(a.Signals) == 0 {
					continue
				}
				ts := a.Signals[0].Timestamp
				if !last.IsZero() && ts.Sub(last) < cfg.Cooldown {
					return false
				}
				last = ts
			}
			return true
		},
		gen.SliceOfN(60, gen.Float64Range(90, 110)),
	))

	properties.TestingRun(t)
}
