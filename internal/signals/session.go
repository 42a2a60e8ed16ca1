package signals

import "time"

// Session describes the trading session active at a given time.
type Session struct {
	Name    string
	Quality string
}

// SessionAt maps the UTC hour of ts to a trading session.
// The London/New York overlap rates highest.
func SessionAt(ts time.Time) Session {
	switch h := ts.UTC().Hour(); {
	case h < 7:
		return Session{Name: "Asian session", Quality: "Fair"}
	case h < 12:
		return Session{Name: "London session", Quality: "Good"}
	case h < 16:
		return Session{Name: "London/New York overlap", Quality: "Excellent"}
	case h < 21:
		return Session{Name: "New York session", Quality: "Good"}
	default:
		return Session{Name: "off-hours", Quality: "Low"}
	}
}
