package models

import "time"

// Direction represents the side of a trade signal.
type Direction string

const (
	DirectionNone Direction = ""
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Signal is a validated, fully priced trade idea for one symbol.
// Signals are never mutated after the engine returns them.
type Signal struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Direction      Direction `json:"direction"`
	Confidence     int       `json:"confidence"`
	EntryPrice     float64   `json:"entry_price"`
	StopLoss       float64   `json:"stop_loss"`
	TakeProfit     float64   `json:"take_profit"`
	RiskReward     float64   `json:"risk_reward"`
	Confirmations  []string  `json:"confirmations"`
	Timestamp      time.Time `json:"timestamp"`
	Rationale      string    `json:"rationale"`
	Timeframe      string    `json:"timeframe"`
	SessionQuality string    `json:"session_quality"`
}

// Risk returns the distance between entry and stop.
func (s Signal) Risk() float64 {
	if s.Direction == DirectionSell {
		return s.StopLoss - s.EntryPrice
	}
	return s.EntryPrice - s.StopLoss
}

// Reward returns the distance between entry and target.
func (s Signal) Reward() float64 {
	if s.Direction == DirectionSell {
		return s.EntryPrice - s.TakeProfit
	}
	return s.TakeProfit - s.EntryPrice
}
