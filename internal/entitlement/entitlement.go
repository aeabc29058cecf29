// Package entitlement answers which optimization capabilities the current
// subscription unlocks.
package entitlement

import (
	"fmt"
	"strings"
)

// Feature names checked by the selector.
const (
	OSSpecificOptimizations  = "os_specific_optimizations"
	AdvancedSystemStrategies = "advanced_system_strategies"
	SystemDeepOptimization   = "system_deep_optimization"
)

// Plan names.
const (
	PlanFree    = "free"
	PlanPro     = "pro"
	PlanPremium = "premium"
)

// Provider is the entitlement check consumed by the selector.
type Provider interface {
	IsEntitled() bool
	CanAccessFeature(feature string) bool
}

// Static grants features according to a fixed plan.
type Static struct {
	plan     string
	features map[string]bool
}

var planFeatures = map[string][]string{
	PlanFree:    nil,
	PlanPro:     {OSSpecificOptimizations, AdvancedSystemStrategies},
	PlanPremium: {OSSpecificOptimizations, AdvancedSystemStrategies, SystemDeepOptimization},
}

// NewStatic returns a provider for plan ("free", "pro" or "premium").
func NewStatic(plan string) (*Static, error) {
	plan = strings.ToLower(strings.TrimSpace(plan))
	if plan == "" {
		plan = PlanFree
	}
	list, ok := planFeatures[plan]
	if !ok {
		return nil, fmt.Errorf("unknown plan %q", plan)
	}
	s := &Static{plan: plan, features: make(map[string]bool, len(list))}
	for _, f := range list {
		s.features[f] = true
	}
	return s, nil
}

// Plan returns the plan name.
func (s *Static) Plan() string { return s.plan }

// IsEntitled reports whether the plan is a paid one.
func (s *Static) IsEntitled() bool { return s.plan != PlanFree }

// CanAccessFeature reports whether the plan includes feature.
func (s *Static) CanAccessFeature(feature string) bool { return s.features[feature] }

// Features is an explicit grant list, useful when the grant comes from elsewhere.
type Features struct {
	Entitled bool
	Granted  []string
}

func (f Features) IsEntitled() bool { return f.Entitled }

func (f Features) CanAccessFeature(feature string) bool {
	for _, g := range f.Granted {
		if g == feature {
			return true
		}
	}
	return false
}
