// Package selector picks a RiskTier for a machine and runtime context and
// narrows the resulting plan by entitlement.
package selector

import (
	"errors"
	"fmt"
	"time"

	"github.com/lazypower/strategist/internal/catalog"
	"github.com/lazypower/strategist/internal/config"
	"github.com/lazypower/strategist/internal/entitlement"
	"github.com/lazypower/strategist/internal/strategy"
	"github.com/rs/zerolog"
)

// ErrNoStrategy is returned when the registry has neither the machine's OS
// family nor the universal fallback.
var ErrNoStrategy = errors.New("no system strategy available")

// Selector resolves strategies against the OS-level registry.
type Selector struct {
	systems map[string]*strategy.SystemStrategy
	ent     entitlement.Provider
	cfg     config.SelectorConfig
	log     zerolog.Logger
	now     func() time.Time
}

// Option configures a Selector.
type Option func(*Selector)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) { s.now = now }
}

// WithLogger sets the selector logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Selector) { s.log = l }
}

// New creates a Selector over systems, keyed by OS family name.
func New(systems map[string]*strategy.SystemStrategy, ent entitlement.Provider, cfg config.SelectorConfig, opts ...Option) *Selector {
	s := &Selector{
		systems: systems,
		ent:     ent,
		cfg:     cfg,
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Resolve looks up the system strategy for the machine's OS family, falling
// back to the universal entry.
func (s *Selector) Resolve(profile strategy.MachineProfile) (*strategy.SystemStrategy, error) {
	if st, ok := s.systems[profile.OSName]; ok && st != nil {
		return st, nil
	}
	if st, ok := s.systems[catalog.UniversalKey]; ok && st != nil {
		return st, nil
	}
	return nil, fmt.Errorf("%w for %q", ErrNoStrategy, profile.OSName)
}

// Select picks and narrows the OS-level strategy for a machine.
func (s *Selector) Select(profile strategy.MachineProfile, rc strategy.RuntimeContext) (*strategy.Selected, error) {
	st, err := s.Resolve(profile)
	if err != nil {
		return nil, err
	}

	d := s.decide(st.ContextualRules, nil, profile, rc)
	sel, err := build(st.DisplayName, st.Strategies, d)
	if err != nil {
		return nil, err
	}
	out := s.Narrow(sel, st.Strategies)

	s.log.Debug().
		Str("os", profile.OSName).
		Str("source", st.DisplayName).
		Str("tier", string(d.tier)).
		Str("level", string(out.Tier)).
		Bool("entitled", s.ent.IsEntitled()).
		Msg("selected system strategy")
	return out, nil
}

// SelectForApp runs the same tier machine and narrowing against an
// application's combined strategy.
func (s *Selector) SelectForApp(c *strategy.Combined, profile strategy.MachineProfile, rc strategy.RuntimeContext) (*strategy.Selected, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: unknown application", ErrNoStrategy)
	}
	d := s.decide(c.ContextualRules, c.UserPreference, profile, rc)
	sel, err := build(c.DisplayName, c.Strategies, d)
	if err != nil {
		return nil, err
	}
	out := s.Narrow(sel, c.Strategies)

	s.log.Debug().
		Str("app", c.AppID).
		Str("tier", string(d.tier)).
		Str("level", string(out.Tier)).
		Msg("selected app strategy")
	return out, nil
}

// IsInConservativePeriod reports whether the machine is inside a conservative period.
func (s *Selector) IsInConservativePeriod(profile strategy.MachineProfile) bool {
	return profile.ConservativePeriod.Active(s.now())
}

// build copies the plan for the decided tier into a Selected. A tier the
// strategy has no plan for falls back to conservative.
func build(source string, plans strategy.Plans, d decision) (*strategy.Selected, error) {
	tier := d.tier
	plan, ok := plans[tier]
	if !ok {
		tier = strategy.Conservative
		plan, ok = plans[tier]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no %s plan", ErrNoStrategy, source, d.tier)
		}
		d.reasons = append(d.reasons, fmt.Sprintf("no %s plan -> conservative", d.tier))
	}
	return fromPlan(source, tier, plan, d.reasons), nil
}

func fromPlan(source string, tier strategy.RiskTier, plan strategy.TierPlan, reasons []string) *strategy.Selected {
	plan = plan.Clone()
	return &strategy.Selected{
		Tier:             tier,
		Source:           source,
		Name:             plan.Name,
		Description:      plan.Description,
		EstimatedSavings: plan.EstimatedSavings,
		UserImpact:       plan.UserImpact,
		Warning:          plan.Warning,
		RequiresRestart:  plan.RequiresRestart,
		Actions:          plan.Actions,
		ContextApplied:   true,
		Reasons:          reasons,
	}
}
