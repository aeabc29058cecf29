// Package strategy holds the data model shared by the combination engine,
// the contextual selector and the deduplication filter.
package strategy

import "fmt"

// RiskTier is the aggressiveness level of an optimization strategy.
type RiskTier string

const (
	Conservative RiskTier = "conservative"
	Balanced     RiskTier = "balanced"
	Aggressive   RiskTier = "aggressive"
)

// Tiers lists every tier in ascending order.
var Tiers = []RiskTier{Conservative, Balanced, Aggressive}

// Rank orders tiers: conservative < balanced < aggressive. Unknown tiers rank -1.
func (t RiskTier) Rank() int {
	switch t {
	case Conservative:
		return 0
	case Balanced:
		return 1
	case Aggressive:
		return 2
	default:
		return -1
	}
}

// Valid reports whether t is one of the three known tiers.
func (t RiskTier) Valid() bool {
	return t.Rank() >= 0
}

// Above reports whether t is strictly more aggressive than o.
func (t RiskTier) Above(o RiskTier) bool {
	return t.Rank() > o.Rank()
}

// ParseRiskTier converts a string into a RiskTier.
func ParseRiskTier(s string) (RiskTier, error) {
	t := RiskTier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown risk tier %q", s)
	}
	return t, nil
}

// RiskTolerance is a user's stated appetite for disruptive optimization.
type RiskTolerance string

const (
	ToleranceLow    RiskTolerance = "low"
	ToleranceMedium RiskTolerance = "medium"
	ToleranceHigh   RiskTolerance = "high"
)

// Valid reports whether t is one of the known tolerances.
func (t RiskTolerance) Valid() bool {
	switch t {
	case ToleranceLow, ToleranceMedium, ToleranceHigh:
		return true
	}
	return false
}
