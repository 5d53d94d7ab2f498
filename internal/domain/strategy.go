package domain

import "time"

// Strategy is one user-configured risk filter for automated trading. A
// strategy accepts an opportunity when the profit percentage meets its
// minimum and both venues are in its allowed exchange set; MaxAmount caps the
// sized quantity of any trade executed under the strategy.
//
// Strategies are immutable for the duration of one scan cycle; the control
// surface reloads them from the store when a user session is (re)installed.
type Strategy struct {
	ID           int64
	UserID       int64
	Active       bool
	MinProfitPct float64
	Exchanges    []string
	MaxAmount    float64
	UpdatedAt    time.Time
}

// AllowsExchange reports whether the given exchange is in the strategy's
// allowed set. Matching is case-insensitive in spirit but exchange names are
// stored lowercase throughout the system, so a direct comparison suffices.
func (s Strategy) AllowsExchange(name string) bool {
	for _, e := range s.Exchanges {
		if e == name {
			return true
		}
	}
	return false
}
