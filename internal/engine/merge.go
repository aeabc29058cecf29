package engine

import (
	"time"

	"github.com/lazypower/strategist/internal/config"
	"github.com/lazypower/strategist/internal/strategy"
)

// Layers is the input to Merge. Learned and Personal are optional.
type Layers struct {
	Base     *strategy.Base
	Learned  *strategy.Learned
	Personal *strategy.Preference
}

// MergeOptions carries the engine settings Merge depends on.
type MergeOptions struct {
	Safety          config.SafetyConfig
	PreferenceBoost float64
	Now             time.Time
}

// Merge combines the layers into a new CombinedStrategy: base copy, learned
// improvements, personal preferences, then the safety clamp. The base is
// never modified and the result shares no maps or slices with any input.
func Merge(l Layers, opts MergeOptions) *strategy.Combined {
	c := l.Base.View()

	if l.Learned != nil {
		applyLearned(c, l.Learned)
	}
	if l.Personal != nil {
		applyPersonal(c, l.Personal, opts.PreferenceBoost)
	}
	clamp(c, opts.Safety)

	c.Metadata = strategy.Provenance{
		HasLearned:  l.Learned != nil,
		HasPersonal: l.Personal != nil,
		CombinedAt:  opts.Now.UTC(),
		Version:     versionString(l),
	}
	return c
}

func applyLearned(c *strategy.Combined, l *strategy.Learned) {
	for field, delta := range l.ThresholdAdjustments {
		adjustThreshold(&c.MemoryProfile, field, delta)
	}

	// Tiers are walked in order so appended actions land deterministically.
	for _, tier := range strategy.Tiers {
		imp, ok := l.StrategyImprovements[tier]
		if !ok {
			continue
		}
		plan, ok := c.Strategies[tier]
		if !ok {
			continue
		}
		if s := imp.EstimatedSavings; s != nil {
			if s.Min != nil {
				plan.EstimatedSavings.Min = *s.Min
			}
			if s.Max != nil {
				plan.EstimatedSavings.Max = *s.Max
			}
			if s.Unit != nil {
				plan.EstimatedSavings.Unit = *s.Unit
			}
		}
		if len(imp.NewActions) > 0 {
			actions := make([]strategy.Action, 0, len(plan.Actions)+len(imp.NewActions))
			actions = append(actions, plan.Actions...)
			actions = append(actions, imp.NewActions...)
			plan.Actions = actions
		}
		c.Strategies[tier] = plan
	}

	if len(l.ContextualImprovements) > 0 {
		if c.ContextualRules == nil {
			c.ContextualRules = make(strategy.ContextualRules)
		}
		for name, rules := range l.ContextualImprovements {
			c.ContextualRules[name] = rules.Clone()
		}
	}
}

// adjustThreshold adds delta to a memory profile field. Fields that are
// unset (zero) or unknown are left alone.
func adjustThreshold(mp *strategy.MemoryProfile, field string, delta float64) {
	var target *float64
	switch field {
	case "criticalThreshold":
		target = &mp.CriticalThreshold
	case "memoryLeakRate":
		target = &mp.MemoryLeakRate
	case "baseline.min":
		target = &mp.Baseline.Min
	case "baseline.max":
		target = &mp.Baseline.Max
	case "heavyUsage.min":
		target = &mp.HeavyUsage.Min
	case "heavyUsage.max":
		target = &mp.HeavyUsage.Max
	case "baseSystem.min":
		target = &mp.BaseSystem.Min
	case "baseSystem.max":
		target = &mp.BaseSystem.Max
	default:
		return
	}
	if *target == 0 {
		return
	}
	*target += delta
}

func applyPersonal(c *strategy.Combined, p *strategy.Preference, boost float64) {
	if p.PreferredTier.Valid() {
		c.UserPreference = &strategy.PreferenceHint{Preferred: p.PreferredTier, Boost: boost}
	}

	if c.ContextualRules == nil {
		c.ContextualRules = make(strategy.ContextualRules)
	}

	if len(p.TimePreferences) > 0 {
		tod := c.ContextualRules[strategy.RulesTimeOfDay].Clone()
		if tod == nil {
			tod = make(strategy.RuleSet)
		}
		for bucket, rule := range p.TimePreferences {
			tod[bucket] = rule
		}
		c.ContextualRules[strategy.RulesTimeOfDay] = tod
	}

	switch p.RiskTolerance {
	case strategy.ToleranceLow:
		setSystemLoad(c, "high", strategy.Rule{OnlyConservative: true})
	case strategy.ToleranceHigh:
		setSystemLoad(c, "medium", strategy.Rule{AllowAggressive: true})
	}
}

func setSystemLoad(c *strategy.Combined, bucket string, rule strategy.Rule) {
	load := c.ContextualRules[strategy.RulesSystemLoad].Clone()
	if load == nil {
		load = make(strategy.RuleSet)
	}
	load[bucket] = rule
	c.ContextualRules[strategy.RulesSystemLoad] = load
}

// clamp caps every action limit at the safety ceiling. An unset limit means
// "no limit" and is capped too.
func clamp(c *strategy.Combined, safety config.SafetyConfig) {
	confirm := make(map[strategy.RiskTier]bool, len(safety.RequireUserConfirmation))
	for _, t := range safety.RequireUserConfirmation {
		confirm[strategy.RiskTier(t)] = true
	}

	for tier, plan := range c.Strategies {
		for i := range plan.Actions {
			a := &plan.Actions[i]
			switch a.Type {
			case strategy.ActionKillProcesses:
				if a.MaxProcesses <= 0 || a.MaxProcesses > safety.MaxProcessKillCount {
					a.MaxProcesses = safety.MaxProcessKillCount
				}
			case strategy.ActionClearCache:
				if a.MaxSize <= 0 || a.MaxSize > safety.MaxCacheCleanSize {
					a.MaxSize = safety.MaxCacheCleanSize
				}
			}
		}
		plan.RequiresConfirmation = confirm[tier]
		c.Strategies[tier] = plan
	}

	c.SafetyConstraints = strategy.SafetyConstraints{
		MaxMemoryThreshold:  safety.MaxMemoryThreshold,
		MaxProcessKillCount: safety.MaxProcessKillCount,
		MaxCacheCleanSize:   safety.MaxCacheCleanSize,
	}
}

func versionString(l Layers) string {
	base := l.Base.Version
	if base == "" {
		base = "1.0.0"
	}
	learned := "0.0.0"
	if l.Learned != nil && l.Learned.Version != "" {
		learned = l.Learned.Version
	}
	personal := "0.0.0"
	if l.Personal != nil {
		personal = "1.0.0"
	}
	return base + "+" + learned + "+" + personal
}

// ValidLearned reports whether a learned strategy may be admitted. Both the
// version tag and the validation timestamp are required.
func ValidLearned(l *strategy.Learned) bool {
	return l != nil && l.Version != "" && l.ValidatedAt != nil && !l.ValidatedAt.IsZero()
}
