package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10, cfg.Engine.Safety.MaxProcessKillCount)
	assert.Equal(t, 5000, cfg.Engine.Safety.MaxCacheCleanSize)
	assert.Equal(t, 24*time.Hour, cfg.Engine.LearnedInterval)
	assert.Equal(t, time.Hour, cfg.Engine.PersonalInterval)
	assert.Equal(t, 30*time.Minute, cfg.Dedup.SameAppWindow)
	assert.Equal(t, 24*time.Hour, cfg.Dedup.IdenticalWindow)
	assert.Equal(t, 1000, cfg.Dedup.CacheMaxEntries)
	assert.Equal(t, 0.4, cfg.Selector.FreeSavingsFactor)
	assert.Equal(t, "127.0.0.1:37780", cfg.ListenAddr())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Dedup, cfg.Dedup)
	assert.Equal(t, Default().Engine.Safety, cfg.Engine.Safety)
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[server]
port = 4100

[engine.safety]
max_process_kill_count = 4

[selector]
conservative_days = 10

[dedup]
same_app_window = "45m"
require_user_active = false
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4100, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Bind)
	assert.Equal(t, 4, cfg.Engine.Safety.MaxProcessKillCount)
	assert.Equal(t, 5000, cfg.Engine.Safety.MaxCacheCleanSize)
	assert.Equal(t, 45*time.Minute, cfg.Dedup.SameAppWindow)
	assert.False(t, cfg.Dedup.RequireUserActive)
	assert.Equal(t, 10, cfg.Selector.ConservativeDays)
	assert.Equal(t, 2, cfg.Selector.FreeActionLimit)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("STRATEGIST_ENTITLEMENT_PLAN", "premium")
	t.Setenv("STRATEGIST_LEARNED_URL", "http://feed.local/strategies")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "premium", cfg.Entitlement.Plan)
	assert.Equal(t, "http://feed.local/strategies", cfg.Learned.URL)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Engine.Safety.MaxProcessKillCount = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Selector.FreeSavingsFactor = 1.5
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Selector.ConservativeDays = 0
	assert.Error(t, cfg.Validate())
}
