package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"smc-signals/internal/models"
	"smc-signals/internal/signals"
)

// FormatPrice renders a price with a fixed number of decimals.
func FormatPrice(price float64, precision int) string {
	if precision < 0 {
		precision = 0
	}
	return decimal.NewFromFloat(price).StringFixed(int32(precision))
}

// FormatRiskReward formats a risk:reward ratio as "1:2.0".
func FormatRiskReward(rr float64) string {
	return "1:" + decimal.NewFromFloat(rr).StringFixed(1)
}

// FormatConfidence formats a score with its strength band.
func FormatConfidence(confidence int) string {
	return fmt.Sprintf("%d%% %s", confidence, strings.ToLower(signals.ConfidenceTier(confidence)))
}

// FormatDirection colors BUY green and SELL red.
func (o *Output) FormatDirection(dir models.Direction) string {
	switch dir {
	case models.DirectionBuy:
		return o.Green(string(dir))
	case models.DirectionSell:
		return o.Red(string(dir))
	default:
		return o.DimText("-")
	}
}

// ParseRatios parses a comma separated list such as "1.5,2,3".
func ParseRatios(s string) ([]float64, error) {
	var ratios []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid risk:reward ratio %q", part)
		}
		if r <= 0 {
			return nil, fmt.Errorf("risk:reward ratio must be positive, got %s", part)
		}
		ratios = append(ratios, r)
	}
	if len(ratios) == 0 {
		return nil, fmt.Errorf("no risk:reward ratios in %q", s)
	}
	return ratios, nil
}
