package domain

import "time"

// Symbol identifies one bar series: a market on an exchange at a given interval.
type Symbol struct {
	Name       string    // e.g. "ETHUSDT"
	Exchange   string    // e.g. "BINANCE"
	Interval   string    // e.g. "1h"
	LastUpdate time.Time // Time of the most recent data refresh (zero if unknown)
}

// WithInterval returns a copy of the symbol pointing at another bar interval.
func (s Symbol) WithInterval(interval string) Symbol {
	s.Interval = interval
	return s
}

// SameMarket reports whether both symbols name the same market, ignoring interval.
func (s Symbol) SameMarket(o Symbol) bool {
	return s.Name == o.Name && s.Exchange == o.Exchange
}
