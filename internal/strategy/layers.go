package strategy

import "time"

// Base is the static, catalog-supplied strategy for one application.
// It is shared and read-only once loaded.
type Base struct {
	AppID           string          `json:"appId" yaml:"appId"`
	DisplayName     string          `json:"displayName" yaml:"displayName"`
	Category        string          `json:"category,omitempty" yaml:"category,omitempty"`
	Version         string          `json:"version,omitempty" yaml:"version,omitempty"`
	MemoryProfile   MemoryProfile   `json:"memoryProfile" yaml:"memoryProfile"`
	Strategies      Plans           `json:"optimizationStrategies" yaml:"optimizationStrategies"`
	ContextualRules ContextualRules `json:"contextualRules,omitempty" yaml:"contextualRules,omitempty"`
}

// SystemStrategy is an OS-level strategy from the system registry.
type SystemStrategy struct {
	SystemID          string                      `json:"systemId" yaml:"systemId"`
	DisplayName       string                      `json:"displayName" yaml:"displayName"`
	Version           string                      `json:"version,omitempty" yaml:"version,omitempty"`
	SupportedVersions map[string]SupportedVersion `json:"supportedVersions,omitempty" yaml:"supportedVersions,omitempty"`
	MemoryProfile     MemoryProfile               `json:"memoryProfile" yaml:"memoryProfile"`
	Strategies        Plans                       `json:"optimizationStrategies" yaml:"optimizationStrategies"`
	ContextualRules   ContextualRules             `json:"contextualRules,omitempty" yaml:"contextualRules,omitempty"`
	Monitoring        *Monitoring                 `json:"monitoring,omitempty" yaml:"monitoring,omitempty"`
}

// SupportedVersion bounds the OS versions a system strategy was written for.
type SupportedVersion struct {
	Version    string `json:"version" yaml:"version"`
	MinVersion string `json:"minVersion" yaml:"minVersion"`
	MaxVersion string `json:"maxVersion" yaml:"maxVersion"`
}

// Monitoring is the metric set an executor should watch for a system strategy.
type Monitoring struct {
	ContinuousMetrics []string           `json:"continuousMetrics" yaml:"continuousMetrics"`
	PeriodicChecks    []string           `json:"periodicChecks" yaml:"periodicChecks"`
	AlertThresholds   map[string]float64 `json:"alertThresholds" yaml:"alertThresholds"`
}

// SavingsPatch overwrites only the estimated-savings fields it sets.
type SavingsPatch struct {
	Min  *int    `json:"min,omitempty"`
	Max  *int    `json:"max,omitempty"`
	Unit *string `json:"unit,omitempty"`
}

// Improvement is a learned revision of one tier's plan.
type Improvement struct {
	EstimatedSavings *SavingsPatch `json:"estimatedSavings,omitempty"`
	NewActions       []Action      `json:"newActions,omitempty"`
}

// Learned is a centrally-sourced incremental improvement to a Base strategy.
type Learned struct {
	AppID                  string                   `json:"appId,omitempty"`
	Version                string                   `json:"version,omitempty"`
	ValidatedAt            *time.Time               `json:"validatedAt,omitempty"`
	ThresholdAdjustments   map[string]float64       `json:"thresholdAdjustments,omitempty"`
	StrategyImprovements   map[RiskTier]Improvement `json:"strategyImprovements,omitempty"`
	ContextualImprovements ContextualRules          `json:"contextualImprovements,omitempty"`
}

// Preference is one user's settings for one application.
type Preference struct {
	PreferredTier   RiskTier      `json:"preferredTier,omitempty"`
	TimePreferences RuleSet       `json:"timePreferences,omitempty"`
	RiskTolerance   RiskTolerance `json:"riskTolerance,omitempty"`
	UpdatedAt       time.Time     `json:"updatedAt,omitempty"`
}

// PreferenceHint is the contextual hint a personal preference leaves behind.
type PreferenceHint struct {
	Preferred RiskTier `json:"preferred"`
	Boost     float64  `json:"boost"`
}

// SafetyConstraints is the snapshot of ceilings a combined strategy was clamped to.
type SafetyConstraints struct {
	MaxMemoryThreshold  int `json:"maxMemoryThreshold"`
	MaxProcessKillCount int `json:"maxProcessKillCount"`
	MaxCacheCleanSize   int `json:"maxCacheCleanSize"`
}

// Provenance records which layers produced a combined strategy.
type Provenance struct {
	HasLearned  bool      `json:"hasLearned"`
	HasPersonal bool      `json:"hasPersonal"`
	CombinedAt  time.Time `json:"combinedAt"`
	Version     string    `json:"version"`
}

// Combined is the safety-clamped merge of base, learned and personal layers
// for one application. It is never mutated after construction.
type Combined struct {
	AppID             string            `json:"appId"`
	DisplayName       string            `json:"displayName"`
	Category          string            `json:"category,omitempty"`
	MemoryProfile     MemoryProfile     `json:"memoryProfile"`
	Strategies        Plans             `json:"optimizationStrategies"`
	ContextualRules   ContextualRules   `json:"contextualRules,omitempty"`
	UserPreference    *PreferenceHint   `json:"userPreference,omitempty"`
	SafetyConstraints SafetyConstraints `json:"safetyConstraints"`
	Metadata          Provenance        `json:"metadata"`
}

// View returns an unmerged Combined view of a base strategy, used before the
// engine has built its combined set.
func (b *Base) View() *Combined {
	return &Combined{
		AppID:           b.AppID,
		DisplayName:     b.DisplayName,
		Category:        b.Category,
		MemoryProfile:   b.MemoryProfile,
		Strategies:      b.Strategies.Clone(),
		ContextualRules: b.ContextualRules.Clone(),
		Metadata:        Provenance{Version: b.Version},
	}
}
