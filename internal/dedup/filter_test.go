package dedup

import (
	"fmt"
	"testing"
	"time"

	"github.com/lazypower/strategist/internal/config"
	"github.com/lazypower/strategist/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

// Saturday.
var start = time.Date(2026, 6, 13, 10, 0, 0, 0, time.UTC)

func newFilter(t *testing.T, opts ...Option) (*Filter, *clock) {
	t.Helper()
	clk := &clock{t: start}
	f := New(config.Default().Dedup, append([]Option{WithClock(clk.now)}, opts...)...)
	t.Cleanup(f.Stop)
	return f, clk
}

func record() strategy.Record {
	return strategy.Record{
		AppID:               "com.google.Chrome",
		Strategy:            strategy.Balanced,
		MemoryFreedMB:       420,
		SpeedGainPercent:    12,
		EffectivenessScore:  0.85,
		OptimizationContext: strategy.OptimizationContext{SystemLoad: 0.3, UserActive: true},
		DeviceProfile:       strategy.DeviceProfile{TotalMemory: 16, CPUCores: 8, Architecture: "arm64"},
		UserID:              "u-1",
	}
}

func TestSignificanceIsOR(t *testing.T) {
	f, _ := newFilter(t)

	rec := record()
	rec.MemoryFreedMB = 51
	rec.SpeedGainPercent = 0
	rec.EffectivenessScore = 0
	assert.NotNil(t, f.Evaluate(rec))

	rec = record()
	rec.AppID = "com.apple.Safari"
	rec.MemoryFreedMB = 49
	rec.SpeedGainPercent = 4.9
	rec.EffectivenessScore = 0.69
	assert.Nil(t, f.Evaluate(rec))
	assert.Equal(t, 1, f.Stats().Rejected[StageSignificance])
}

func TestTemporalSuppression(t *testing.T) {
	f, clk := newFilter(t)

	require.NotNil(t, f.Evaluate(record()))

	clk.t = start.Add(10 * time.Minute)
	second := record()
	second.MemoryFreedMB = 900
	assert.Nil(t, f.Evaluate(second))
	assert.Equal(t, 1, f.Stats().Rejected[StageTemporal])

	clk.t = start.Add(31 * time.Minute)
	assert.NotNil(t, f.Evaluate(second))
}

func TestTemporalKeyIncludesStrategy(t *testing.T) {
	f, _ := newFilter(t)

	require.NotNil(t, f.Evaluate(record()))
	rec := record()
	rec.Strategy = strategy.Aggressive
	assert.NotNil(t, f.Evaluate(rec))
}

func TestContextualFilter(t *testing.T) {
	f, _ := newFilter(t)

	rec := record()
	rec.OptimizationContext.SystemLoad = 0.81
	assert.Nil(t, f.Evaluate(rec))

	rec = record()
	rec.OptimizationContext.UserActive = false
	assert.Nil(t, f.Evaluate(rec))
	assert.Equal(t, 2, f.Stats().Rejected[StageContextual])

	rec = record()
	rec.OptimizationContext.SystemLoad = 0
	assert.NotNil(t, f.Evaluate(rec), "unset load passes")
}

func TestContextualFilterWithoutActiveUser(t *testing.T) {
	cfg := config.Default().Dedup
	cfg.RequireUserActive = false
	f := New(cfg)

	rec := record()
	rec.OptimizationContext.UserActive = false
	assert.NotNil(t, f.Evaluate(rec))
}

func TestIdenticalResults(t *testing.T) {
	f, clk := newFilter(t)

	require.NotNil(t, f.Evaluate(record()))

	// Past the temporal window, but same 50MB / 5% buckets on the same device.
	clk.t = start.Add(time.Hour)
	again := record()
	again.MemoryFreedMB = 449
	again.SpeedGainPercent = 14
	assert.Nil(t, f.Evaluate(again))
	assert.Equal(t, 1, f.Stats().Rejected[StageIdentical])

	different := record()
	different.MemoryFreedMB = 450
	assert.NotNil(t, f.Evaluate(different))

	clk.t = start.Add(25 * time.Hour)
	assert.NotNil(t, f.Evaluate(again), "identical window expired")
}

func TestSignatureBuckets(t *testing.T) {
	a := record()
	b := record()
	b.MemoryFreedMB = 401
	b.SpeedGainPercent = 10

	sa, err := signature(a)
	require.NoError(t, err)
	sb, err := signature(b)
	require.NoError(t, err)
	assert.Equal(t, sa, sb)
	assert.Contains(t, sa, `"memoryFreed":400`)

	b.DeviceProfile.Architecture = "x86_64"
	sc, err := signature(b)
	require.NoError(t, err)
	assert.NotEqual(t, sa, sc)
}

func TestEnrichment(t *testing.T) {
	sig := staticSignals{strategy.SystemContext{MemoryPressure: 0.4, CPUUsage: 22, ActiveApps: 9}}
	f, clk := newFilter(t, WithSignals(sig))

	clk.t = start.Add(90 * time.Second)
	out := f.Evaluate(record())
	require.NotNil(t, out)

	assert.Equal(t, "com.google.Chrome", out.AppID)
	assert.Equal(t, "2026-06-13T10:01:30Z", out.TemporalContext.Timestamp)
	assert.Equal(t, 10, out.TemporalContext.TimeOfDay)
	assert.Equal(t, int(time.Saturday), out.TemporalContext.DayOfWeek)
	assert.True(t, out.TemporalContext.IsWeekend)
	assert.Equal(t, sig.sc, out.SystemContext)
	assert.Equal(t, int64(90000), out.UserContext.SessionDurationMs)
	assert.Equal(t, "low", out.UserContext.OptimizationFrequency)
	assert.Empty(t, out.UserContext.PreferredStrategies)
}

func TestUserPatterns(t *testing.T) {
	f, clk := newFilter(t)

	apps := []string{"a", "b", "c", "d"}
	for i, app := range apps {
		clk.t = start.Add(time.Duration(i) * time.Minute)
		rec := record()
		rec.AppID = app
		if i == 3 {
			rec.Strategy = strategy.Aggressive
			rec.EffectivenessScore = 0.5
		}
		require.NotNil(t, f.Evaluate(rec), app)
	}

	clk.t = start.Add(time.Hour)
	rec := record()
	rec.AppID = "e"
	out := f.Evaluate(rec)
	require.NotNil(t, out)
	assert.Equal(t, "medium", out.UserContext.OptimizationFrequency)
	assert.Equal(t, []strategy.RiskTier{strategy.Balanced, strategy.Aggressive}, out.UserContext.PreferredStrategies)

	f.mu.Lock()
	p := f.users["u-1"]
	f.mu.Unlock()
	assert.Equal(t, 5, p.count)
	assert.Equal(t, 1, p.successes["a_success"])
	assert.Zero(t, p.successes["d_success"])
	assert.Equal(t, 1, f.Stats().UsersTracked)
}

func TestAnonymousUser(t *testing.T) {
	f, _ := newFilter(t)
	rec := record()
	rec.UserID = ""
	require.NotNil(t, f.Evaluate(rec))

	f.mu.Lock()
	_, ok := f.users[anonymousUser]
	f.mu.Unlock()
	assert.True(t, ok)
}

func TestSweepByAgeAndCap(t *testing.T) {
	cfg := config.Default().Dedup
	cfg.CacheMaxEntries = 10
	cfg.SameAppWindow = 0
	cfg.IdenticalWindow = 0
	clk := &clock{t: start}
	f := New(cfg, WithClock(clk.now))

	for i := 0; i < 8; i++ {
		clk.t = start.Add(time.Duration(i) * time.Minute)
		rec := record()
		rec.AppID = fmt.Sprintf("app-%d", i)
		require.NotNil(t, f.Evaluate(rec))
	}
	assert.LessOrEqual(t, f.Stats().CacheSize, 10, "inserting past the cap sweeps immediately")

	clk.t = start.Add(8 * 24 * time.Hour)
	f.Sweep()
	assert.Zero(t, f.Stats().CacheSize)
}

func TestSweepKeepsFreshEntries(t *testing.T) {
	f, clk := newFilter(t)
	require.NotNil(t, f.Evaluate(record()))

	clk.t = start.Add(6 * 24 * time.Hour)
	assert.Zero(t, f.Sweep())
	assert.Equal(t, 2, f.Stats().CacheSize)
}

type panicSignals struct{}

func (panicSignals) SystemContext() strategy.SystemContext { panic("sensor") }

func TestSignalsPanicStillEvaluates(t *testing.T) {
	f, _ := newFilter(t, WithSignals(panicSignals{}))
	out := f.Evaluate(record())
	require.NotNil(t, out)
	assert.Equal(t, strategy.SystemContext{}, out.SystemContext)
}

func TestFailClosed(t *testing.T) {
	f, _ := newFilter(t)
	f.users = nil // updatePatterns will panic writing to a nil map

	assert.Nil(t, f.Evaluate(record()))
	assert.Equal(t, 1, f.Stats().Rejected[StageError])
}

func TestStartStopSweeper(t *testing.T) {
	f, _ := newFilter(t)
	f.StartSweeper()
	f.Stop()
	f.Stop()
}

type staticSignals struct{ sc strategy.SystemContext }

func (s staticSignals) SystemContext() strategy.SystemContext { return s.sc }
