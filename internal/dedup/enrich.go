package dedup

import (
	"sort"
	"strings"
	"time"

	"github.com/lazypower/strategist/internal/strategy"
)

const anonymousUser = "anonymous"

// successScore is the effectiveness above which a run counts as a success.
const successScore = 0.8

type userPattern struct {
	count      int
	strategies map[string]int // appId_strategy -> runs
	successes  map[string]int // appId_success -> runs
}

func (f *Filter) enrich(rec strategy.Record, now time.Time, sys strategy.SystemContext) *strategy.EnrichedRecord {
	day := now.Weekday()
	return &strategy.EnrichedRecord{
		Record: rec,
		TemporalContext: strategy.TemporalContext{
			Timestamp: now.UTC().Format(time.RFC3339Nano),
			TimeOfDay: now.Hour(),
			DayOfWeek: int(day),
			IsWeekend: day == time.Saturday || day == time.Sunday,
		},
		SystemContext: sys,
		UserContext:   f.userContext(userID(rec), now),
	}
}

func userID(rec strategy.Record) string {
	if rec.UserID == "" {
		return anonymousUser
	}
	return rec.UserID
}

func (f *Filter) userContext(id string, now time.Time) strategy.UserContext {
	uc := strategy.UserContext{
		SessionDurationMs:     now.Sub(f.started).Milliseconds(),
		OptimizationFrequency: frequency(0),
		PreferredStrategies:   []strategy.RiskTier{},
	}
	p, ok := f.users[id]
	if !ok {
		return uc
	}
	uc.OptimizationFrequency = frequency(p.count)
	uc.PreferredStrategies = p.preferredTiers()
	return uc
}

// frequency buckets a user's accepted run count.
func frequency(count int) string {
	switch {
	case count < 3:
		return "low"
	case count < 10:
		return "medium"
	default:
		return "high"
	}
}

// preferredTiers orders the tiers a user has run, most used first.
func (p *userPattern) preferredTiers() []strategy.RiskTier {
	counts := make(map[strategy.RiskTier]int)
	for key, n := range p.strategies {
		i := strings.LastIndex(key, "_")
		if i < 0 {
			continue
		}
		tier := strategy.RiskTier(key[i+1:])
		if tier.Valid() {
			counts[tier] += n
		}
	}
	out := make([]strategy.RiskTier, 0, len(counts))
	for tier := range counts {
		out = append(out, tier)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i].Rank() < out[j].Rank()
	})
	return out
}

func (f *Filter) updatePatterns(rec strategy.Record) {
	id := userID(rec)
	p, ok := f.users[id]
	if !ok {
		p = &userPattern{
			strategies: make(map[string]int),
			successes:  make(map[string]int),
		}
		f.users[id] = p
	}
	p.count++
	p.strategies[temporalKey(rec)]++
	if rec.EffectivenessScore > successScore {
		p.successes[rec.AppID+"_success"]++
	}
}
