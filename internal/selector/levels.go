package selector

import (
	"math"

	"github.com/lazypower/strategist/internal/entitlement"
	"github.com/lazypower/strategist/internal/strategy"
)

// Level describes one optimization tier and whether the plan unlocks it.
type Level struct {
	Level           strategy.RiskTier `json:"level"`
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	Available       bool              `json:"available"`
	RequiresUpgrade bool              `json:"requiresUpgrade,omitempty"`
}

// AvailableLevels lists the tiers of the machine's strategy. Conservative is
// always available; the others depend only on entitlement.
func (s *Selector) AvailableLevels(profile strategy.MachineProfile) []Level {
	st, err := s.Resolve(profile)
	if err != nil || len(st.Strategies) == 0 {
		return []Level{{Level: strategy.Conservative, Available: true}}
	}

	var out []Level
	for _, tier := range strategy.Tiers {
		plan, ok := st.Strategies[tier]
		if !ok {
			continue
		}
		available := true
		switch tier {
		case strategy.Balanced:
			available = s.ent.CanAccessFeature(entitlement.OSSpecificOptimizations)
		case strategy.Aggressive:
			available = s.ent.CanAccessFeature(entitlement.AdvancedSystemStrategies)
		}
		out = append(out, Level{
			Level:           tier,
			Name:            plan.Name,
			Description:     plan.Description,
			Available:       available,
			RequiresUpgrade: !available,
		})
	}
	return out
}

// FeatureAccess lists the entitlement features the selector checks.
type FeatureAccess struct {
	OSSpecificOptimizations  bool `json:"osSpecificOptimizations"`
	AdvancedSystemStrategies bool `json:"advancedSystemStrategies"`
	SystemDeepOptimization   bool `json:"systemDeepOptimization"`
}

// Compatibility summarizes how well the registry covers a machine.
type Compatibility struct {
	OSName             string                               `json:"osName"`
	OSVersion          string                               `json:"osVersion,omitempty"`
	StrategyAvailable  bool                                 `json:"strategyAvailable"`
	SupportedVersions  map[string]strategy.SupportedVersion `json:"supportedVersions"`
	HardwareCompatible bool                                 `json:"hardwareCompatible"`
	FeatureAccess      FeatureAccess                        `json:"featureAccess"`
}

// Compatibility reports registry coverage, hardware fit and feature access.
func (s *Selector) Compatibility(profile strategy.MachineProfile) Compatibility {
	st, err := s.Resolve(profile)
	c := Compatibility{
		OSName:             profile.OSName,
		OSVersion:          profile.OSVersion,
		StrategyAvailable:  err == nil,
		SupportedVersions:  map[string]strategy.SupportedVersion{},
		HardwareCompatible: hardwareCompatible(st, profile.MemoryGB),
		FeatureAccess: FeatureAccess{
			OSSpecificOptimizations:  s.ent.CanAccessFeature(entitlement.OSSpecificOptimizations),
			AdvancedSystemStrategies: s.ent.CanAccessFeature(entitlement.AdvancedSystemStrategies),
			SystemDeepOptimization:   s.ent.CanAccessFeature(entitlement.SystemDeepOptimization),
		},
	}
	if st != nil {
		for k, v := range st.SupportedVersions {
			c.SupportedVersions[k] = v
		}
	}
	return c
}

// hardwareCompatible requires at least the strategy's base system memory, in whole GB.
func hardwareCompatible(st *strategy.SystemStrategy, memoryGB float64) bool {
	if st == nil {
		return true
	}
	minGB := math.Floor(st.MemoryProfile.BaseSystem.Min / 1024)
	return memoryGB >= minGB
}

// MonitoringConfig returns the strategy's monitoring block or the default one.
func (s *Selector) MonitoringConfig(profile strategy.MachineProfile) strategy.Monitoring {
	if st, err := s.Resolve(profile); err == nil && st.Monitoring != nil {
		return *st.Monitoring
	}
	return DefaultMonitoring()
}

// DefaultMonitoring is used when a strategy carries no monitoring block.
func DefaultMonitoring() strategy.Monitoring {
	return strategy.Monitoring{
		ContinuousMetrics: []string{"memoryPressure", "thermalState"},
		PeriodicChecks:    []string{"systemCacheSize"},
		AlertThresholds: map[string]float64{
			"criticalMemoryPressure": 0.9,
			"excessiveSystemCache":   3000,
		},
	}
}
