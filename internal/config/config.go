// Package config loads the application configuration from TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"smc-signals/internal/engine"
	apperrors "smc-signals/internal/errors"
	"smc-signals/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Engine  engine.Config     `mapstructure:"engine"`
	Logging logging.LogConfig `mapstructure:"logging"`
	Store   StoreConfig       `mapstructure:"store"`
	Metrics MetricsConfig     `mapstructure:"metrics"`
}

// StoreConfig holds the bar archive configuration.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig holds the prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// builtinProfiles are applied on top of the [engine] section before a
// [profiles.<name>] section of the same name.
var builtinProfiles = map[string]map[string]interface{}{
	"forex": {
		"min_confidence": 60,
	},
	"crypto": {
		"min_confidence": 10,
		"volatility":     0.002,
		"precision":      2,
	},
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", logging.AppName)
	}
	return filepath.Join(home, ".config", logging.AppName)
}

// Load loads config.toml from configDir, writing a template first if the
// file does not exist. If configDir is empty, uses the default directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := newViper(configDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
		if _, err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config template: %w", err)
		}
	}

	return decode(v, configDir)
}

// Parse loads configuration from TOML text. Relative paths resolve against configDir.
func Parse(data string, configDir string) (*Config, error) {
	v := newViper(configDir)
	if err := v.ReadConfig(strings.NewReader(data)); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return decode(v, configDir)
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setParamDefaults(v, "engine.", engine.DefaultParams())
	v.SetDefault("engine.timeframe", "1m")
	v.SetDefault("engine.default_profile", "")
	v.SetDefault("engine.seed", 0)

	logCfg := logging.DefaultLogConfig()
	logCfg.FilePath = filepath.Join(configDir, "logs", logging.AppName+".log")
	v.SetDefault("logging.level", logCfg.Level)
	v.SetDefault("logging.console", logCfg.Console)
	v.SetDefault("logging.file", logCfg.File)
	v.SetDefault("logging.file_path", logCfg.FilePath)
	v.SetDefault("logging.max_size", logCfg.MaxSize)
	v.SetDefault("logging.max_backups", logCfg.MaxBackups)
	v.SetDefault("logging.max_age", logCfg.MaxAge)

	v.SetDefault("store.path", filepath.Join(configDir, "bars.db"))

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("metrics.path", "/metrics")
	return v
}

func setParamDefaults(v *viper.Viper, prefix string, p engine.Params) {
	v.SetDefault(prefix+"history_capacity", p.HistoryCapacity)
	v.SetDefault(prefix+"min_history_bars", p.MinHistoryBars)
	v.SetDefault(prefix+"swing_lookback", p.SwingLookback)
	v.SetDefault(prefix+"internal_lookback", p.InternalLookback)
	v.SetDefault(prefix+"order_block_capacity", p.OrderBlockCapacity)
	v.SetDefault(prefix+"atr_period", p.ATRPeriod)
	v.SetDefault(prefix+"equal_level_bars", p.EqualLevelBars)
	v.SetDefault(prefix+"equal_level_factor", p.EqualLevelFactor)
	v.SetDefault(prefix+"zone_bars", p.ZoneBars)
	v.SetDefault(prefix+"discount_zone", p.DiscountZone)
	v.SetDefault(prefix+"equilibrium_low", p.EquilibriumLow)
	v.SetDefault(prefix+"equilibrium_high", p.EquilibriumHigh)
	v.SetDefault(prefix+"premium_zone", p.PremiumZone)
	v.SetDefault(prefix+"min_confirmations", p.MinConfirmations)
	v.SetDefault(prefix+"min_primary", p.MinPrimary)
	v.SetDefault(prefix+"min_confidence", p.MinConfidence)
	v.SetDefault(prefix+"cooldown", p.Cooldown)
	v.SetDefault(prefix+"max_risk", p.MaxRisk)
	v.SetDefault(prefix+"risk_reward_ratios", p.RiskRewardRatios)
	v.SetDefault(prefix+"volatility", p.Volatility)
	v.SetDefault(prefix+"precision", p.Precision)
	for k, w := range p.Weights {
		v.SetDefault(prefix+"weights."+strings.ToLower(k), w)
	}
}

func decode(v *viper.Viper, configDir string) (*Config, error) {
	var file struct {
		Config  `mapstructure:",squash"`
		Symbols map[string]engine.SymbolConfig `mapstructure:"symbols"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg := &file.Config

	profiles, err := loadProfiles(v, cfg.Engine.Params)
	if err != nil {
		return nil, err
	}
	cfg.Engine.Profiles = profiles

	// viper lower-cases keys; symbols are upper case by convention
	cfg.Engine.Symbols = make(map[string]engine.SymbolConfig, len(file.Symbols))
	for name, sc := range file.Symbols {
		sc.Profile = strings.ToLower(sc.Profile)
		cfg.Engine.Symbols[strings.ToUpper(name)] = sc
	}
	cfg.Engine.DefaultProfile = strings.ToLower(cfg.Engine.DefaultProfile)

	cfg.Store.Path = resolvePath(configDir, cfg.Store.Path)
	cfg.Logging.FilePath = resolvePath(configDir, cfg.Logging.FilePath)

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// loadProfiles layers each profile over base: built-in overrides first,
// then the matching [profiles.<name>] section.
func loadProfiles(v *viper.Viper, base engine.Params) (map[string]engine.Params, error) {
	names := map[string]bool{}
	for name := range builtinProfiles {
		names[name] = true
	}
	for name := range v.GetStringMap("profiles") {
		names[strings.ToLower(name)] = true
	}

	profiles := make(map[string]engine.Params, len(names))
	for name := range names {
		pv := viper.New()
		setParamDefaults(pv, "", base)
		if err := pv.MergeConfigMap(builtinProfiles[name]); err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		if err := pv.MergeConfigMap(v.GetStringMap("profiles." + name)); err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}

		var p engine.Params
		if err := pv.Unmarshal(&p); err != nil {
			return nil, fmt.Errorf("decoding [profiles.%s]: %w", name, err)
		}
		profiles[name] = p
	}
	return profiles, nil
}

func resolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return filepath.Join(dir, path)
}

func applyEnvOverrides(cfg *Config) error {
	var errs apperrors.ValidationErrors

	if v := os.Getenv("SMC_MIN_CONFIDENCE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs.Add("SMC_MIN_CONFIDENCE", v, "must be an integer")
		} else {
			cfg.Engine.MinConfidence = n
			for name, p := range cfg.Engine.Profiles {
				p.MinConfidence = n
				cfg.Engine.Profiles[name] = p
			}
		}
	}

	if v := os.Getenv("SMC_COOLDOWN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs.Add("SMC_COOLDOWN", v, "must be a duration such as 5m")
		} else {
			cfg.Engine.Cooldown = d
			for name, p := range cfg.Engine.Profiles {
				p.Cooldown = d
				cfg.Engine.Profiles[name] = p
			}
		}
	}

	if v := os.Getenv("SMC_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}

	return errs.Err()
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs apperrors.ValidationErrors

	if err := c.Engine.Validate(); err != nil {
		var inner apperrors.ValidationErrors
		if apperrors.As(err, &inner) {
			errs = append(errs, inner...)
		} else {
			errs.Add("engine", nil, err.Error())
		}
	}
	if !logging.ValidLevel(c.Logging.Level) {
		errs.Add("logging.level", c.Logging.Level, "must be debug, info, warn or error")
	}
	if c.Store.Path == "" {
		errs.Add("store.path", c.Store.Path, "must not be empty")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs.Add("metrics.addr", c.Metrics.Addr, "required when metrics are enabled")
	}
	if c.Metrics.Path != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs.Add("metrics.path", c.Metrics.Path, "must start with /")
	}

	return errs.Err()
}

// ProfileNames returns the configured profile names in sorted order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Engine.Profiles))
	for name := range c.Engine.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
