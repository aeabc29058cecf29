package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lazypower/strategist/internal/config"
	"github.com/lazypower/strategist/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func testOpts() MergeOptions {
	return MergeOptions{
		Safety:          config.Default().Engine.Safety,
		PreferenceBoost: 1.1,
		Now:             fixedNow,
	}
}

func intp(v int) *int { return &v }

func testBase() *strategy.Base {
	return &strategy.Base{
		AppID:       "com.test.app",
		DisplayName: "Test App",
		Version:     "1.0.0",
		MemoryProfile: strategy.MemoryProfile{
			Baseline:          strategy.Range{Min: 100, Max: 200, Unit: "MB"},
			CriticalThreshold: 1500,
			MemoryLeakRate:    50,
		},
		Strategies: strategy.Plans{
			strategy.Conservative: {
				Name:             "Safe",
				EstimatedSavings: strategy.Savings{Min: 100, Max: 300, Unit: "MB"},
				Actions: []strategy.Action{
					{Type: strategy.ActionClearCache, Target: "safe", MaxSize: 500},
				},
			},
			strategy.Balanced: {
				Name:             "Balanced",
				EstimatedSavings: strategy.Savings{Min: 500, Max: 1500, Unit: "MB"},
				Actions: []strategy.Action{
					{Type: strategy.ActionKillProcesses, MaxProcesses: 4},
					{Type: strategy.ActionClearCache, MaxSize: 2000},
				},
			},
			strategy.Aggressive: {
				Name:             "Aggressive",
				EstimatedSavings: strategy.Savings{Min: 2000, Max: 4000, Unit: "MB"},
				Actions: []strategy.Action{
					{Type: strategy.ActionKillProcesses, MaxProcesses: 500},
					{Type: strategy.ActionClearCache, MaxSize: 999999},
					{Type: strategy.ActionRestartApp, RequiresRestart: true},
				},
			},
		},
		ContextualRules: strategy.ContextualRules{
			strategy.RulesSystemLoad: {
				"low":  {AllowAggressive: true},
				"high": {PreferBalanced: true},
			},
			strategy.RulesTimeOfDay: {
				"morning": {PreferredStrategy: strategy.Conservative},
			},
		},
	}
}

func validLearned() *strategy.Learned {
	at := fixedNow.Add(-time.Hour)
	return &strategy.Learned{Version: "2.1.0", ValidatedAt: &at}
}

func TestMergeSavingsSubFieldOverwrite(t *testing.T) {
	l := validLearned()
	l.StrategyImprovements = map[strategy.RiskTier]strategy.Improvement{
		strategy.Aggressive: {EstimatedSavings: &strategy.SavingsPatch{Min: intp(2500)}},
	}

	c := Merge(Layers{Base: testBase(), Learned: l}, testOpts())

	got := c.Strategies[strategy.Aggressive].EstimatedSavings
	assert.Equal(t, 2500, got.Min)
	assert.Equal(t, 4000, got.Max)
	assert.Equal(t, "MB", got.Unit)
}

func TestMergeAppendsNewActions(t *testing.T) {
	l := validLearned()
	l.StrategyImprovements = map[strategy.RiskTier]strategy.Improvement{
		strategy.Conservative: {NewActions: []strategy.Action{{Type: strategy.ActionCompactDB}}},
	}

	base := testBase()
	c := Merge(Layers{Base: base, Learned: l}, testOpts())

	acts := c.Strategies[strategy.Conservative].Actions
	require.Len(t, acts, 2)
	assert.Equal(t, strategy.ActionClearCache, acts[0].Type)
	assert.Equal(t, strategy.ActionCompactDB, acts[1].Type)
	assert.Len(t, base.Strategies[strategy.Conservative].Actions, 1, "base must not change")
}

func TestMergeThresholdAdjustments(t *testing.T) {
	l := validLearned()
	l.ThresholdAdjustments = map[string]float64{
		"criticalThreshold": -200,
		"memoryLeakRate":    10,
		"baseline.max":      50,
		"heavyUsage.min":    100, // unset in base, ignored
		"bogus":             1,
	}

	c := Merge(Layers{Base: testBase(), Learned: l}, testOpts())

	assert.Equal(t, 1300.0, c.MemoryProfile.CriticalThreshold)
	assert.Equal(t, 60.0, c.MemoryProfile.MemoryLeakRate)
	assert.Equal(t, 250.0, c.MemoryProfile.Baseline.Max)
	assert.Zero(t, c.MemoryProfile.HeavyUsage.Min)
}

func TestMergeContextualImprovementsShallow(t *testing.T) {
	l := validLearned()
	l.ContextualImprovements = strategy.ContextualRules{
		strategy.RulesSystemLoad: {"medium": {PreferBalanced: true}},
	}

	c := Merge(Layers{Base: testBase(), Learned: l}, testOpts())

	load := c.ContextualRules[strategy.RulesSystemLoad]
	assert.Len(t, load, 1, "later keys replace whole rule sets")
	assert.True(t, load["medium"].PreferBalanced)
	assert.Contains(t, c.ContextualRules, strategy.RulesTimeOfDay)
}

func TestMergePersonalLayer(t *testing.T) {
	base := testBase()

	low := Merge(Layers{Base: base, Personal: &strategy.Preference{
		PreferredTier: strategy.Balanced,
		RiskTolerance: strategy.ToleranceLow,
		TimePreferences: strategy.RuleSet{
			"evening": {PreferredStrategy: strategy.Aggressive},
		},
	}}, testOpts())

	require.NotNil(t, low.UserPreference)
	assert.Equal(t, strategy.Balanced, low.UserPreference.Preferred)
	assert.Equal(t, 1.1, low.UserPreference.Boost)
	assert.Equal(t, strategy.Rule{OnlyConservative: true}, low.ContextualRules[strategy.RulesSystemLoad]["high"])
	tod := low.ContextualRules[strategy.RulesTimeOfDay]
	assert.Equal(t, strategy.Conservative, tod["morning"].PreferredStrategy)
	assert.Equal(t, strategy.Aggressive, tod["evening"].PreferredStrategy)

	high := Merge(Layers{Base: base, Personal: &strategy.Preference{RiskTolerance: strategy.ToleranceHigh}}, testOpts())
	assert.Nil(t, high.UserPreference)
	assert.Equal(t, strategy.Rule{AllowAggressive: true}, high.ContextualRules[strategy.RulesSystemLoad]["medium"])
	assert.Equal(t, strategy.Rule{PreferBalanced: true}, high.ContextualRules[strategy.RulesSystemLoad]["high"])

	_, touched := base.ContextualRules[strategy.RulesSystemLoad]["medium"]
	assert.False(t, touched, "base rules must not change")
}

func TestMergeSafetyCeiling(t *testing.T) {
	l := validLearned()
	l.StrategyImprovements = map[strategy.RiskTier]strategy.Improvement{
		strategy.Balanced: {NewActions: []strategy.Action{
			{Type: strategy.ActionKillProcesses, MaxProcesses: 1 << 20},
			{Type: strategy.ActionClearCache},
		}},
	}
	opts := testOpts()

	c := Merge(Layers{Base: testBase(), Learned: l, Personal: &strategy.Preference{RiskTolerance: strategy.ToleranceHigh}}, opts)

	for tier, plan := range c.Strategies {
		for _, a := range plan.Actions {
			switch a.Type {
			case strategy.ActionKillProcesses:
				assert.LessOrEqual(t, a.MaxProcesses, opts.Safety.MaxProcessKillCount, tier)
				assert.Positive(t, a.MaxProcesses)
			case strategy.ActionClearCache:
				assert.LessOrEqual(t, a.MaxSize, opts.Safety.MaxCacheCleanSize, tier)
				assert.Positive(t, a.MaxSize)
			}
		}
	}
	assert.Equal(t, 4, c.Strategies[strategy.Balanced].Actions[0].MaxProcesses, "limits under the ceiling are kept")
	assert.Equal(t, strategy.SafetyConstraints{MaxMemoryThreshold: 8000, MaxProcessKillCount: 10, MaxCacheCleanSize: 5000}, c.SafetyConstraints)
	assert.True(t, c.Strategies[strategy.Aggressive].RequiresConfirmation)
	assert.False(t, c.Strategies[strategy.Balanced].RequiresConfirmation)
}

func TestMergeDeterministic(t *testing.T) {
	l := validLearned()
	l.ThresholdAdjustments = map[string]float64{"criticalThreshold": 5, "memoryLeakRate": 1}
	l.StrategyImprovements = map[strategy.RiskTier]strategy.Improvement{
		strategy.Aggressive: {NewActions: []strategy.Action{{Type: strategy.ActionRegenerateDerivatives}}},
		strategy.Balanced:   {EstimatedSavings: &strategy.SavingsPatch{Max: intp(1800)}},
	}
	p := &strategy.Preference{PreferredTier: strategy.Aggressive, RiskTolerance: strategy.ToleranceLow}

	first, err := json.Marshal(Merge(Layers{Base: testBase(), Learned: l, Personal: p}, testOpts()))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := json.Marshal(Merge(Layers{Base: testBase(), Learned: l, Personal: p}, testOpts()))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestMergeMetadata(t *testing.T) {
	c := Merge(Layers{Base: testBase()}, testOpts())
	assert.Equal(t, strategy.Provenance{CombinedAt: fixedNow, Version: "1.0.0+0.0.0+0.0.0"}, c.Metadata)

	c = Merge(Layers{Base: testBase(), Learned: validLearned(), Personal: &strategy.Preference{}}, testOpts())
	assert.True(t, c.Metadata.HasLearned)
	assert.True(t, c.Metadata.HasPersonal)
	assert.Equal(t, "1.0.0+2.1.0+1.0.0", c.Metadata.Version)

	b := testBase()
	b.Version = ""
	assert.Equal(t, "1.0.0+0.0.0+0.0.0", Merge(Layers{Base: b}, testOpts()).Metadata.Version)
}

func TestValidLearned(t *testing.T) {
	at := fixedNow
	assert.True(t, ValidLearned(&strategy.Learned{Version: "1", ValidatedAt: &at}))
	assert.False(t, ValidLearned(&strategy.Learned{Version: "1"}))
	assert.False(t, ValidLearned(&strategy.Learned{ValidatedAt: &at}))
	assert.False(t, ValidLearned(&strategy.Learned{}))
	assert.False(t, ValidLearned(nil))
}
