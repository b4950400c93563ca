package domain

import "fmt"

// MaxPositionSize is the normalized size unit cap: a position of this size
// uses 100% of the allocation available to it.
const MaxPositionSize = 100.0

// Side represents the direction of a trade (LONG or SHORT).
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Long {
		return Short
	}
	return Long
}

// Validate reports whether the side is one of the known values.
func (s Side) Validate() error {
	switch s {
	case Long, Short:
		return nil
	default:
		return fmt.Errorf("unknown side %q", string(s))
	}
}

// ParseSide accepts LONG/SHORT as well as the exchange-style BUY/SELL.
func ParseSide(v string) (Side, error) {
	switch v {
	case "LONG", "BUY", "long", "buy":
		return Long, nil
	case "SHORT", "SELL", "short", "sell":
		return Short, nil
	default:
		return "", fmt.Errorf("unknown side %q", v)
	}
}

// ExitKind records how a position left the market.
type ExitKind string

const (
	ExitNone    ExitKind = ""
	ExitStopped ExitKind = "stopped"
	ExitClosed  ExitKind = "closed"
)

// Float returns a pointer to v. Used for nullable evaluation fields.
func Float(v float64) *float64 {
	return &v
}
