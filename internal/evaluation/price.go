package evaluation

import "time"

// PriceChange is one logged mutation of a Price.
type PriceChange struct {
	Value     float64
	Timestamp time.Time
	Reason    string
	Forced    bool
}

// Price is a re-priceable scalar with an optional lock.
// Every applied change is logged with its provenance.
type Price struct {
	value  float64
	locked bool
	log    []PriceChange
}

// NewPrice creates an unlocked price holding value. Nothing is logged until Set or Log is called.
func NewPrice(value float64) *Price {
	return &Price{value: value}
}

// Set updates the value and logs the change.
// It is a no-op returning false when the price is locked and force is false.
func (p *Price) Set(value float64, ts time.Time, reason string, force bool) bool {
	if p.locked && !force {
		return false
	}
	p.value = value
	p.Log(ts, reason, force)
	return true
}

// Log records the current value without changing it.
func (p *Price) Log(ts time.Time, reason string, forced bool) {
	p.log = append(p.log, PriceChange{Value: p.value, Timestamp: ts, Reason: reason, Forced: forced})
}

// Get returns the current value.
func (p *Price) Get() float64 { return p.value }

// Lock freezes the value against unforced Set calls.
func (p *Price) Lock() { p.locked = true }

// Unlock lifts the lock.
func (p *Price) Unlock() { p.locked = false }

// IsLocked reports whether the price is locked.
func (p *Price) IsLocked() bool { return p.locked }

// History returns a copy of the change log, oldest first.
func (p *Price) History() []PriceChange {
	out := make([]PriceChange, len(p.log))
	copy(out, p.log)
	return out
}
