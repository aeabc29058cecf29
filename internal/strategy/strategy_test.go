package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskTierOrder(t *testing.T) {
	assert.True(t, Balanced.Above(Conservative))
	assert.True(t, Aggressive.Above(Balanced))
	assert.False(t, Conservative.Above(Conservative))
	assert.Equal(t, -1, RiskTier("turbo").Rank())
}

func TestParseRiskTier(t *testing.T) {
	tier, err := ParseRiskTier("aggressive")
	require.NoError(t, err)
	assert.Equal(t, Aggressive, tier)

	_, err = ParseRiskTier("reckless")
	assert.Error(t, err)
}

func TestConservativePeriodActive(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var nilPeriod *ConservativePeriod
	assert.False(t, nilPeriod.Active(now))

	p := &ConservativePeriod{Status: ConservativePeriodActive, EndDate: now.Add(time.Hour)}
	assert.True(t, p.Active(now))
	assert.False(t, p.Active(now.Add(2*time.Hour)))

	p.Status = "ended"
	assert.False(t, p.Active(now))
}

func TestPlansCloneIsIndependent(t *testing.T) {
	orig := Plans{
		Balanced: {Name: "b", Actions: []Action{{Type: ActionKillProcesses, MaxProcesses: 8}}},
	}
	cp := orig.Clone()

	plan := cp[Balanced]
	plan.Actions[0].MaxProcesses = 1
	plan.Actions = append(plan.Actions, Action{Type: ActionClearCache})
	cp[Balanced] = plan

	assert.Equal(t, 8, orig[Balanced].Actions[0].MaxProcesses)
	assert.Len(t, orig[Balanced].Actions, 1)
}

func TestBaseView(t *testing.T) {
	b := &Base{
		AppID:   "com.test.app",
		Version: "2.0.0",
		Strategies: Plans{
			Conservative: {Name: "c", Actions: []Action{{Type: ActionClearCache}}},
		},
		ContextualRules: ContextualRules{RulesSystemLoad: {"high": {OnlyConservative: true}}},
	}
	v := b.View()
	assert.Equal(t, "2.0.0", v.Metadata.Version)
	assert.False(t, v.Metadata.HasLearned)

	v.ContextualRules[RulesSystemLoad]["high"] = Rule{AllowAggressive: true}
	assert.True(t, b.ContextualRules[RulesSystemLoad]["high"].OnlyConservative)
}

func TestMachineUptime(t *testing.T) {
	m := MachineProfile{UptimeSeconds: 86400}
	assert.Equal(t, 24*time.Hour, m.Uptime())
}

func TestRiskToleranceValid(t *testing.T) {
	assert.True(t, ToleranceLow.Valid())
	assert.True(t, ToleranceHigh.Valid())
	assert.False(t, RiskTolerance("reckless").Valid())
	assert.False(t, RiskTolerance("").Valid())
}
