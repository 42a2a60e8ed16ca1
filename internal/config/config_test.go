package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"smc-signals/internal/analysis/scoring"
	"smc-signals/internal/engine"
	apperrors "smc-signals/internal/errors"
)

func TestLoad_WritesTemplateOnFirstRun(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Fatalf("template not written: %v", err)
	}

	if cfg.Engine.DefaultProfile != "forex" {
		t.Errorf("default profile = %q", cfg.Engine.DefaultProfile)
	}
	if cfg.Engine.HistoryCapacity != 100 || cfg.Engine.MinHistoryBars != 25 {
		t.Errorf("engine params = %+v", cfg.Engine.Params)
	}
	if cfg.Engine.Cooldown != 5*time.Minute {
		t.Errorf("cooldown = %v", cfg.Engine.Cooldown)
	}
	if cfg.Store.Path != filepath.Join(dir, "bars.db") {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
	if cfg.Logging.FilePath != filepath.Join(dir, "logs", "smc-signals.log") {
		t.Errorf("log path = %q", cfg.Logging.FilePath)
	}

	// second load reads the written file
	if _, err := Load(dir); err != nil {
		t.Fatalf("reloading template: %v", err)
	}
}

func TestParse_DefaultsMatchEngine(t *testing.T) {
	cfg, err := Parse("", t.TempDir())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := engine.DefaultProfiles()
	for _, name := range []string{"forex", "crypto"} {
		got := cfg.Engine.Profiles[name]
		w := want[name]
		if got.MinConfidence != w.MinConfidence || got.Volatility != w.Volatility ||
			got.Precision != w.Precision || got.Cooldown != w.Cooldown ||
			got.SwingLookback != w.SwingLookback || len(got.RiskRewardRatios) != len(w.RiskRewardRatios) {
			t.Errorf("profile %s = %+v, want %+v", name, got, w)
		}
	}
	if got := cfg.ProfileNames(); len(got) != 2 || got[0] != "crypto" {
		t.Errorf("profile names = %v", got)
	}
}

func TestParse_ProfilesLayerOverEngine(t *testing.T) {
	const data = `
[engine]
cooldown = "10m"
risk_reward_ratios = [1.5, 3.0]

[engine.weights]
swingBullishBOS = 40

[profiles.crypto]
min_confidence = 15

[profiles.indices]
volatility = 0.0005
precision = 1

[symbols.btcusd]
profile = "Crypto"

[symbols.US30]
profile = "indices"
precision = 0
`
	cfg, err := Parse(data, t.TempDir())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	crypto := cfg.Engine.Profiles["crypto"]
	if crypto.MinConfidence != 15 || crypto.Volatility != 0.002 || crypto.Cooldown != 10*time.Minute {
		t.Errorf("crypto = %+v", crypto)
	}
	if len(crypto.RiskRewardRatios) != 2 || crypto.RiskRewardRatios[1] != 3 {
		t.Errorf("crypto ratios = %v", crypto.RiskRewardRatios)
	}

	weights, err := scoring.ParseWeights(crypto.Weights)
	if err != nil {
		t.Fatalf("crypto weights: %v", err)
	}
	if weights[scoring.SwingBullishBOS] != 40 || weights[scoring.InternalBullishBOS] != 20 {
		t.Errorf("crypto weights = %v", weights)
	}

	indices, ok := cfg.Engine.Profiles["indices"]
	if !ok || indices.Volatility != 0.0005 || indices.MinConfidence != 60 {
		t.Errorf("indices = %+v", indices)
	}

	btc, ok := cfg.Engine.Symbols["BTCUSD"]
	if !ok || btc.Profile != "crypto" {
		t.Errorf("symbols = %+v", cfg.Engine.Symbols)
	}
	p, err := cfg.Engine.ParamsFor("US30")
	if err != nil {
		t.Fatalf("ParamsFor: %v", err)
	}
	if p.Precision != 0 || p.Volatility != 0.0005 {
		t.Errorf("US30 params = %+v", p)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	const data = `
[engine]
swing_lookback = 60
min_confidence = 120

[engine.weights]
nope = 3

[symbols.EURUSD]
profile = "stocks"

[logging]
level = "loud"
`
	_, err := Parse(data, t.TempDir())
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !apperrors.Is(err, apperrors.ErrConfigInvalid) {
		t.Errorf("error %v does not wrap ErrConfigInvalid", err)
	}

	var verrs apperrors.ValidationErrors
	if !apperrors.As(err, &verrs) {
		t.Fatalf("error %T is not ValidationErrors", err)
	}
	fields := map[string]bool{}
	for _, v := range verrs {
		fields[v.Field] = true
	}
	for _, f := range []string{"swing_lookback", "min_confidence", "weights", "symbols.EURUSD.profile", "logging.level"} {
		if !fields[f] {
			t.Errorf("missing validation error for %s (got %v)", f, verrs)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SMC_MIN_CONFIDENCE", "42")
	t.Setenv("SMC_COOLDOWN", "90s")
	t.Setenv("SMC_DB_PATH", "/tmp/other.db")

	cfg, err := Parse("", t.TempDir())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Engine.MinConfidence != 42 || cfg.Engine.Profiles["crypto"].MinConfidence != 42 {
		t.Errorf("min confidence not overridden")
	}
	if cfg.Engine.Profiles["forex"].Cooldown != 90*time.Second {
		t.Errorf("cooldown = %v", cfg.Engine.Profiles["forex"].Cooldown)
	}
	if cfg.Store.Path != "/tmp/other.db" {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
}

func TestEnvOverrides_Invalid(t *testing.T) {
	t.Setenv("SMC_COOLDOWN", "soon")
	if _, err := Parse("", t.TempDir()); !apperrors.Is(err, apperrors.ErrConfigInvalid) {
		t.Errorf("error = %v, want ErrConfigInvalid", err)
	}
}
