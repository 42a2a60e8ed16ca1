package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# smc-signals configuration

[engine]
# Timeframe label stamped on signals
timeframe = "1m"
# Profile used for symbols without their own [symbols.<SYMBOL>] entry.
# Leave empty to use the [engine] values directly.
default_profile = "forex"
# Seed for synthetic bars (0 = time based)
seed = 0

# Bars kept per symbol (oldest evicted first)
history_capacity = 100
# Bars required before structure analysis runs
min_history_bars = 25
# Pivot lookback on each side; 2 * lookback + 1 must fit in history_capacity
swing_lookback = 25
internal_lookback = 5
order_block_capacity = 10
atr_period = 14

# Equal highs/lows tolerance = factor * ATR over the last equal_level_bars
equal_level_bars = 10
equal_level_factor = 0.1

# Premium/discount zones over the last zone_bars
zone_bars = 20
discount_zone = 0.3
equilibrium_low = 0.4
equilibrium_high = 0.6
premium_zone = 0.7

# Validation gate
min_confirmations = 4
min_primary = 1
min_confidence = 60

# Minimum time between signal sets for one symbol
cooldown = "5m"
# Maximum stop distance as a fraction of price
max_risk = 0.02
# One signal is emitted per ratio
risk_reward_ratios = [2.0]

# Symbol volatility constant and price display decimals
volatility = 0.0001
precision = 5

# Confirmation weight overrides
[engine.weights]
# swingBullishBOS = 30
# internalBullishCHoCH = 18
# bullishFairValueGap = 15

# Profiles layer over [engine]. Built in: forex (min_confidence 60) and
# crypto (min_confidence 10, volatility 0.002, precision 2).
[profiles.forex]

[profiles.crypto]

# Per-symbol bindings
# [symbols.EURUSD]
# profile = "forex"
#
# [symbols.BTCUSD]
# profile = "crypto"
# precision = 1

[logging]
# debug, info, warn, error
level = "info"
console = true
file = true
# Relative paths resolve against the config directory
file_path = "logs/smc-signals.log"
max_size = 100
max_backups = 7
max_age = 30

[store]
path = "bars.db"

[metrics]
enabled = false
addr = ":9090"
path = "/metrics"
`

func createTemplateConfig(configDir string) (string, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return "", fmt.Errorf("writing config template: %w", err)
	}
	return path, nil
}
