package selector

import (
	"fmt"

	"github.com/lazypower/strategist/internal/strategy"
)

// RAM buckets, in GB.
const (
	abundantRAMGB = 16
	limitedRAMGB  = 8
)

// Uptime buckets, in days.
const (
	extendedUptimeDays  = 7
	excessiveUptimeDays = 14
)

type decision struct {
	tier    strategy.RiskTier
	reasons []string
}

func (d *decision) set(tier strategy.RiskTier, rule, bucket string, r strategy.Rule) {
	msg := fmt.Sprintf("%s:%s -> %s", rule, bucket, tier)
	if r.Reason != "" {
		msg += " (" + r.Reason + ")"
	}
	d.tier = tier
	d.reasons = append(d.reasons, msg)
}

// decide runs the tier machine. The default is balanced; each rule below may
// move it, in order, and later steps win.
func (s *Selector) decide(rules strategy.ContextualRules, hint *strategy.PreferenceHint, profile strategy.MachineProfile, rc strategy.RuntimeContext) decision {
	d := decision{tier: strategy.Balanced}

	if r, ok := lookup(rules, strategy.RulesSystemAge, profile.SystemAge); ok {
		if r.PreferConservative {
			d.set(strategy.Conservative, strategy.RulesSystemAge, profile.SystemAge, r)
		}
		if r.AllowModerate {
			d.set(strategy.Balanced, strategy.RulesSystemAge, profile.SystemAge, r)
		}
		if r.PreferAggressive {
			d.set(strategy.Aggressive, strategy.RulesSystemAge, profile.SystemAge, r)
		}
	}

	if profile.MemoryGB > 0 {
		bucket := ramBucket(profile.MemoryGB)
		if r, ok := lookup(rules, strategy.RulesAvailableRAM, bucket); ok {
			if r.PreferConservative {
				d.set(strategy.Conservative, strategy.RulesAvailableRAM, bucket, r)
			}
			// allowModerate only lifts a conservative tier; it never lowers one.
			if r.AllowModerate && d.tier == strategy.Conservative {
				d.set(strategy.Balanced, strategy.RulesAvailableRAM, bucket, r)
			}
			if r.AllowAggressive {
				d.set(strategy.Aggressive, strategy.RulesAvailableRAM, bucket, r)
			}
		}
	}

	if profile.UptimeSeconds > 0 {
		bucket := uptimeBucket(profile)
		if r, ok := lookup(rules, strategy.RulesUptime, bucket); ok {
			if r.PreferModerate {
				d.set(strategy.Balanced, strategy.RulesUptime, bucket, r)
			}
			if r.PreferAggressive {
				d.set(strategy.Aggressive, strategy.RulesUptime, bucket, r)
			}
		}
	}

	s.applyAppRules(&d, rules, hint, rc)

	if rc.ForceStrategy != "" {
		if rc.ForceStrategy.Valid() {
			d.tier = rc.ForceStrategy
			d.reasons = append(d.reasons, "forceStrategy -> "+string(rc.ForceStrategy))
		} else {
			s.log.Debug().Str("force", string(rc.ForceStrategy)).Msg("ignoring unknown forced tier")
		}
	}
	if rc.MemoryPressure == strategy.PressureCritical {
		d.tier = strategy.Aggressive
		d.reasons = append(d.reasons, "memoryPressure:critical -> aggressive")
	}

	// A conservative period outranks every rule and runtime override.
	if s.IsInConservativePeriod(profile) {
		d.tier = strategy.Conservative
		d.reasons = append(d.reasons, "conservative period active -> conservative")
	}
	return d
}

// applyAppRules evaluates the application-level rule tables. System
// strategies do not carry them, so this is a no-op there.
func (s *Selector) applyAppRules(d *decision, rules strategy.ContextualRules, hint *strategy.PreferenceHint, rc strategy.RuntimeContext) {
	bucket := timeOfDay(s.now().Hour())
	if r, ok := lookup(rules, strategy.RulesTimeOfDay, bucket); ok && r.PreferredStrategy.Valid() {
		d.set(r.PreferredStrategy, strategy.RulesTimeOfDay, bucket, r)
	}

	if hint != nil && hint.Preferred.Valid() {
		d.tier = hint.Preferred
		d.reasons = append(d.reasons, "userPreference -> "+string(hint.Preferred))
	}

	for _, name := range []string{strategy.RulesSystemLoad, strategy.RulesUserActivity} {
		bucket := rc.SystemLoad
		if name == strategy.RulesUserActivity {
			bucket = rc.UserActivity
		}
		r, ok := lookup(rules, name, bucket)
		if !ok {
			continue
		}
		switch {
		case r.OnlyConservative || r.PreferConservative:
			d.set(strategy.Conservative, name, bucket, r)
		case r.PreferBalanced || r.PreferModerate:
			d.set(strategy.Balanced, name, bucket, r)
		case r.PreferAggressive:
			d.set(strategy.Aggressive, name, bucket, r)
		}
	}
}

func lookup(rules strategy.ContextualRules, name, bucket string) (strategy.Rule, bool) {
	if bucket == "" {
		return strategy.Rule{}, false
	}
	r, ok := rules[name][bucket]
	return r, ok
}

func ramBucket(gb float64) string {
	switch {
	case gb <= limitedRAMGB:
		return "limited"
	case gb >= abundantRAMGB:
		return "abundant"
	default:
		return "adequate"
	}
}

func uptimeBucket(profile strategy.MachineProfile) string {
	days := profile.Uptime().Hours() / 24
	switch {
	case days > excessiveUptimeDays:
		return "excessive"
	case days > extendedUptimeDays:
		return "extended"
	default:
		return "recent"
	}
}

func timeOfDay(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 22:
		return "evening"
	default:
		return "night"
	}
}
