package domain

import "time"

// Bar represents a single OHLC price observation for a symbol.
type Bar struct {
	Symbol   string    // Trading symbol
	Interval string    // Bar interval (e.g., "1m", "1h")
	OpenTime time.Time // Start time of the interval
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Contains reports whether price traded inside the bar, bounds included.
func (b *Bar) Contains(price float64) bool {
	return price >= b.Low && price <= b.High
}

// Extremes returns the bars holding the lowest low and the highest high.
// The earliest bar wins ties. Returns nil, nil for an empty slice.
func Extremes(bars []*Bar) (lowest, highest *Bar) {
	for _, b := range bars {
		if lowest == nil || b.Low < lowest.Low {
			lowest = b
		}
		if highest == nil || b.High > highest.High {
			highest = b
		}
	}
	return lowest, highest
}
