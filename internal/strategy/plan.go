package strategy

// Action types that the safety clamp and entitlement narrowing inspect.
const (
	ActionClearCache            = "clearCache"
	ActionKillProcesses         = "killProcesses"
	ActionRestartApp            = "restartApp"
	ActionCompactDB             = "compactDatabase"
	ActionRegenerateDerivatives = "regenerateDerivatives"
)

// Action is a single optimization step. Limits of zero mean "not set".
type Action struct {
	Type            string `json:"type" yaml:"type"`
	Target          string `json:"target,omitempty" yaml:"target,omitempty"`
	Implementation  string `json:"implementation,omitempty" yaml:"implementation,omitempty"`
	Criteria        string `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	MaxProcesses    int    `json:"maxProcesses,omitempty" yaml:"maxProcesses,omitempty"`
	MaxSize         int    `json:"maxSize,omitempty" yaml:"maxSize,omitempty"` // MB
	RequiresRestart bool   `json:"requiresRestart,omitempty" yaml:"requiresRestart,omitempty"`
	EstimatedTime   int    `json:"estimatedTime,omitempty" yaml:"estimatedTime,omitempty"` // ms
}

// Savings is an estimated-savings range.
type Savings struct {
	Min  int    `json:"min" yaml:"min"`
	Max  int    `json:"max" yaml:"max"`
	Unit string `json:"unit" yaml:"unit"`
}

// TierPlan is the action list and estimates for one RiskTier.
type TierPlan struct {
	Name                 string   `json:"name" yaml:"name"`
	Description          string   `json:"description,omitempty" yaml:"description,omitempty"`
	EstimatedSavings     Savings  `json:"estimatedSavings" yaml:"estimatedSavings"`
	UserImpact           string   `json:"userImpact,omitempty" yaml:"userImpact,omitempty"`
	Warning              string   `json:"warning,omitempty" yaml:"warning,omitempty"`
	RequiresRestart      bool     `json:"requiresRestart,omitempty" yaml:"requiresRestart,omitempty"`
	RequiresConfirmation bool     `json:"requiresConfirmation,omitempty" yaml:"-"`
	Actions              []Action `json:"actions" yaml:"actions"`
}

// Clone returns a copy of p that shares no slices with it.
func (p TierPlan) Clone() TierPlan {
	p.Actions = cloneActions(p.Actions)
	return p
}

func cloneActions(in []Action) []Action {
	if in == nil {
		return nil
	}
	out := make([]Action, len(in))
	copy(out, in)
	return out
}

// Plans maps each tier to its plan.
type Plans map[RiskTier]TierPlan

// Clone deep-copies the plan table.
func (p Plans) Clone() Plans {
	if p == nil {
		return nil
	}
	out := make(Plans, len(p))
	for t, plan := range p {
		out[t] = plan.Clone()
	}
	return out
}

// Range is a min/max pair with a unit.
type Range struct {
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
	Unit string  `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// MemoryProfile describes how an application (or the OS) uses memory.
type MemoryProfile struct {
	Baseline          Range   `json:"baseline" yaml:"baseline"`
	HeavyUsage        Range   `json:"heavyUsage" yaml:"heavyUsage"`
	BaseSystem        Range   `json:"baseSystem,omitempty" yaml:"baseSystem,omitempty"`
	MemoryLeakRate    float64 `json:"memoryLeakRate" yaml:"memoryLeakRate"`       // MB per idle hour
	CriticalThreshold float64 `json:"criticalThreshold" yaml:"criticalThreshold"` // MB
}

// Rule is one contextual rule entry. Only the flags a catalog sets are meaningful.
type Rule struct {
	PreferConservative bool     `json:"preferConservative,omitempty" yaml:"preferConservative,omitempty"`
	AllowConservative  bool     `json:"allowConservative,omitempty" yaml:"allowConservative,omitempty"`
	OnlyConservative   bool     `json:"onlyConservative,omitempty" yaml:"onlyConservative,omitempty"`
	AllowModerate      bool     `json:"allowModerate,omitempty" yaml:"allowModerate,omitempty"`
	PreferModerate     bool     `json:"preferModerate,omitempty" yaml:"preferModerate,omitempty"`
	AllowBalanced      bool     `json:"allowBalanced,omitempty" yaml:"allowBalanced,omitempty"`
	PreferBalanced     bool     `json:"preferBalanced,omitempty" yaml:"preferBalanced,omitempty"`
	AllowAggressive    bool     `json:"allowAggressive,omitempty" yaml:"allowAggressive,omitempty"`
	PreferAggressive   bool     `json:"preferAggressive,omitempty" yaml:"preferAggressive,omitempty"`
	PreferredStrategy  RiskTier `json:"preferredStrategy,omitempty" yaml:"preferredStrategy,omitempty"`
	Reason             string   `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// RuleSet maps a bucket name (e.g. "high", "morning") to its rule.
type RuleSet map[string]Rule

// Clone copies the rule set.
func (r RuleSet) Clone() RuleSet {
	if r == nil {
		return nil
	}
	out := make(RuleSet, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ContextualRules maps a signal name (e.g. "systemLoad", "availableRAM") to its rule set.
type ContextualRules map[string]RuleSet

// Well-known contextual rule names.
const (
	RulesTimeOfDay    = "timeOfDay"
	RulesSystemLoad   = "systemLoad"
	RulesUserActivity = "userActivity"
	RulesSystemAge    = "systemAge"
	RulesAvailableRAM = "availableRAM"
	RulesUptime       = "uptime"
)

// Clone deep-copies the contextual rules.
func (c ContextualRules) Clone() ContextualRules {
	if c == nil {
		return nil
	}
	out := make(ContextualRules, len(c))
	for k, v := range c {
		out[k] = v.Clone()
	}
	return out
}
