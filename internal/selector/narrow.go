package selector

import (
	"math"
	"strings"

	"github.com/lazypower/strategist/internal/entitlement"
	"github.com/lazypower/strategist/internal/strategy"
)

const freeSuffix = " (Free Version)"

var upgradeMessages = map[string]struct{ title, message string }{
	entitlement.OSSpecificOptimizations: {
		"OS-specific optimizations",
		"Unlock advanced OS-specific optimizations tailored to your macOS version",
	},
	entitlement.AdvancedSystemStrategies: {
		"Advanced system strategies",
		"Access aggressive system optimization strategies for maximum performance gains",
	},
	entitlement.SystemDeepOptimization: {
		"System deep optimization",
		"Deep system optimization including WindowServer reset, cache purging, and memory compression",
	},
}

func upgradePrompt(feature string) *strategy.UpgradePrompt {
	m := upgradeMessages[feature]
	return &strategy.UpgradePrompt{Feature: feature, Title: m.title, Message: m.message}
}

// Narrow applies entitlement narrowing to sel and returns the result; sel is
// not modified. plans supplies the balanced plan for the advanced-strategies
// downgrade. Narrowing an already-narrowed selection changes nothing.
func (s *Selector) Narrow(sel *strategy.Selected, plans strategy.Plans) *strategy.Selected {
	out := *sel
	out.Actions = append(make([]strategy.Action, 0, len(sel.Actions)), sel.Actions...)
	out.Reasons = append([]string(nil), sel.Reasons...)

	deep := s.ent.CanAccessFeature(entitlement.SystemDeepOptimization)

	if !s.ent.IsEntitled() && out.Tier.Above(strategy.Conservative) {
		if out.Tier == strategy.Aggressive && !deep {
			stripDeep(&out)
		}
		limit := s.cfg.FreeActionLimit
		if limit >= 0 && len(out.Actions) > limit {
			out.ActionsStripped = true
			out.Actions = out.Actions[:limit]
		}
		out.EstimatedSavings = strategy.Savings{
			Min:  scale(out.EstimatedSavings.Min, s.cfg.FreeSavingsFactor, s.cfg.FreeSavingsMin),
			Max:  scale(out.EstimatedSavings.Max, s.cfg.FreeSavingsFactor, s.cfg.FreeSavingsMax),
			Unit: "MB",
		}
		if !strings.HasSuffix(out.Name, freeSuffix) {
			out.Name += freeSuffix
		}
		out.Tier = strategy.Conservative
		out.UpgradePrompt = upgradePrompt(entitlement.OSSpecificOptimizations)
		out.Reasons = append(out.Reasons, "free plan -> conservative")
		return &out
	}

	if out.Tier == strategy.Aggressive && !s.ent.CanAccessFeature(entitlement.AdvancedSystemStrategies) {
		if bal, ok := plans[strategy.Balanced]; ok {
			b := fromPlan(out.Source, strategy.Balanced, bal, out.Reasons)
			b.ContextApplied = out.ContextApplied
			out = *b
		} else {
			out.Tier = strategy.Balanced
		}
		out.UpgradePrompt = upgradePrompt(entitlement.AdvancedSystemStrategies)
		out.Reasons = append(out.Reasons, "advanced strategies not included -> balanced")
		return &out
	}

	if out.Tier == strategy.Aggressive && !deep {
		stripDeep(&out)
	}
	return &out
}

// stripDeep removes reset and rebuild actions.
func stripDeep(sel *strategy.Selected) {
	kept := make([]strategy.Action, 0, len(sel.Actions))
	for _, a := range sel.Actions {
		t := strings.ToLower(a.Type)
		if strings.Contains(t, "reset") || strings.Contains(t, "rebuild") {
			sel.ActionsStripped = true
			continue
		}
		kept = append(kept, a)
	}
	sel.Actions = kept
}

// scale multiplies v by factor, rounding down; a zero result uses fallback.
func scale(v int, factor float64, fallback int) int {
	n := int(math.Floor(float64(v) * factor))
	if n == 0 {
		return fallback
	}
	return n
}
