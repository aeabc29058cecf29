package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lazypower/strategist/internal/config"
	"github.com/lazypower/strategist/internal/learned"
	"github.com/lazypower/strategist/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPrefs struct {
	mu      sync.Mutex
	data    map[string]strategy.Preference
	loadErr error
	saveErr error
	saves   int
}

func (m *memPrefs) LoadPreferences(ctx context.Context, namespace string) (map[string]strategy.Preference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return copyPersonal(m.data), nil
}

func (m *memPrefs) SavePreferences(ctx context.Context, namespace string, prefs map[string]strategy.Preference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = copyPersonal(prefs)
	return nil
}

type memCache struct {
	data map[string]strategy.Learned
}

func (m *memCache) LoadLearned(ctx context.Context) (map[string]strategy.Learned, error) {
	return m.data, nil
}

func (m *memCache) SaveLearned(ctx context.Context, l map[string]strategy.Learned) error {
	m.data = l
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func testEngine(t *testing.T, feed learned.Feed, prefs PreferenceStore, opts ...Option) (*Engine, *clock) {
	t.Helper()
	clk := &clock{t: fixedNow}
	base := map[string]*strategy.Base{"com.test.app": testBase()}
	opts = append([]Option{WithClock(clk.now)}, opts...)
	return New(config.Default().Engine, base, feed, prefs, opts...), clk
}

func learnedPayload() *learned.Payload {
	l := validLearned()
	l.StrategyImprovements = map[strategy.RiskTier]strategy.Improvement{
		strategy.Aggressive: {EstimatedSavings: &strategy.SavingsPatch{Min: intp(2500)}},
	}
	bad := strategy.Learned{Version: "9.9.9"}
	return &learned.Payload{Strategies: map[string]strategy.Learned{
		"com.test.app":  *l,
		"com.other.app": bad,
	}}
}

func TestGetStrategyBeforeInitialize(t *testing.T) {
	e, _ := testEngine(t, nil, nil)

	c := e.GetStrategyForApp("com.test.app")
	require.NotNil(t, c)
	assert.Equal(t, "1.0.0", c.Metadata.Version)
	assert.Equal(t, 500, c.Strategies[strategy.Aggressive].Actions[0].MaxProcesses, "raw base before initialization")
	assert.Nil(t, e.GetStrategyForApp("com.unknown"))
	assert.False(t, e.Stats().Initialized)
}

func TestInitializeCombinesLayers(t *testing.T) {
	prefs := &memPrefs{data: map[string]strategy.Preference{
		"com.test.app": {PreferredTier: strategy.Balanced},
	}}
	feed := &learned.Static{Payload: learnedPayload()}
	e, _ := testEngine(t, feed, prefs)

	e.Initialize(context.Background())

	c := e.GetStrategyForApp("com.test.app")
	require.NotNil(t, c)
	assert.Equal(t, 2500, c.Strategies[strategy.Aggressive].EstimatedSavings.Min)
	assert.Equal(t, 10, c.Strategies[strategy.Aggressive].Actions[0].MaxProcesses)
	assert.True(t, c.Metadata.HasLearned)
	assert.True(t, c.Metadata.HasPersonal)

	st := e.Stats()
	assert.True(t, st.Initialized)
	assert.Equal(t, LayerCounts{Base: 1, Learned: 1, Personal: 1, Combined: 1}, st.Counts)
	assert.Equal(t, fixedNow, st.LastLearned)
}

func TestInitializeSurvivesLayerFailures(t *testing.T) {
	feed := &learned.Static{Err: errors.New("offline")}
	prefs := &memPrefs{loadErr: errors.New("disk gone")}
	e, _ := testEngine(t, feed, prefs)

	e.Initialize(context.Background())

	c := e.GetStrategyForApp("com.test.app")
	require.NotNil(t, c)
	assert.False(t, c.Metadata.HasLearned)
	assert.False(t, c.Metadata.HasPersonal)
	assert.Equal(t, 10, c.Strategies[strategy.Aggressive].Actions[0].MaxProcesses, "base-only is still clamped")
	assert.True(t, e.Stats().Initialized)
}

type panicFeed struct{}

func (panicFeed) Fetch(ctx context.Context) (*learned.Payload, error) { panic("boom") }

func TestInitializeRecoversPanic(t *testing.T) {
	e, _ := testEngine(t, panicFeed{}, nil)

	e.Initialize(context.Background())

	c := e.GetStrategyForApp("com.test.app")
	require.NotNil(t, c)
	assert.Equal(t, "1.0.0+0.0.0+0.0.0", c.Metadata.Version)
	assert.True(t, e.Stats().Initialized)
}

func TestFetchFailureKeepsPreviousLearned(t *testing.T) {
	feed := &learned.Static{Payload: learnedPayload()}
	e, _ := testEngine(t, feed, nil)
	e.Initialize(context.Background())

	feed.Err = errors.New("timeout")
	e.RefreshLearned(context.Background())

	c := e.GetStrategyForApp("com.test.app")
	assert.True(t, c.Metadata.HasLearned)
	assert.Equal(t, 2500, c.Strategies[strategy.Aggressive].EstimatedSavings.Min)
}

func TestLearnedCacheSeedsAndSaves(t *testing.T) {
	at := fixedNow.Add(-48 * time.Hour)
	cache := &memCache{data: map[string]strategy.Learned{
		"com.test.app": {Version: "0.9.0", ValidatedAt: &at},
	}}
	feed := &learned.Static{Err: errors.New("offline")}
	e, _ := testEngine(t, feed, nil, WithLearnedCache(cache))

	e.Initialize(context.Background())
	assert.Equal(t, "1.0.0+0.9.0+0.0.0", e.GetStrategyForApp("com.test.app").Metadata.Version)

	feed.Err = nil
	feed.Payload = learnedPayload()
	e.RefreshLearned(context.Background())
	assert.Equal(t, "1.0.0+2.1.0+0.0.0", e.GetStrategyForApp("com.test.app").Metadata.Version)
	assert.Equal(t, "2.1.0", cache.data["com.test.app"].Version)
}

func TestUpdatePersonalPreference(t *testing.T) {
	prefs := &memPrefs{}
	e, _ := testEngine(t, nil, prefs)
	e.Initialize(context.Background())

	before := e.GetStrategyForApp("com.test.app")
	e.UpdatePersonalPreference(context.Background(), "com.test.app", strategy.Preference{
		PreferredTier: strategy.Aggressive,
		RiskTolerance: strategy.ToleranceLow,
	})
	after := e.GetStrategyForApp("com.test.app")

	require.NotNil(t, after.UserPreference)
	assert.Equal(t, strategy.Aggressive, after.UserPreference.Preferred)
	assert.True(t, after.ContextualRules[strategy.RulesSystemLoad]["high"].OnlyConservative)
	assert.Nil(t, before.UserPreference, "previously returned strategies are never mutated")

	require.Contains(t, prefs.data, "com.test.app")
	assert.Equal(t, fixedNow, prefs.data["com.test.app"].UpdatedAt)
}

func TestUpdatePersonalPreferencePersistFailure(t *testing.T) {
	prefs := &memPrefs{saveErr: errors.New("read-only")}
	e, _ := testEngine(t, nil, prefs)
	e.Initialize(context.Background())

	e.UpdatePersonalPreference(context.Background(), "com.test.app", strategy.Preference{PreferredTier: strategy.Conservative})

	assert.Equal(t, 1, prefs.saves)
	assert.True(t, e.GetStrategyForApp("com.test.app").Metadata.HasPersonal)
}

func TestPreferenceSurvivesFullRebuild(t *testing.T) {
	prefs := &memPrefs{}
	feed := &learned.Static{Payload: learnedPayload()}
	e, _ := testEngine(t, feed, prefs)
	e.Initialize(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			e.RefreshLearned(context.Background())
		}()
		go func() {
			defer wg.Done()
			e.UpdatePersonalPreference(context.Background(), "com.test.app", strategy.Preference{PreferredTier: strategy.Balanced})
		}()
	}
	wg.Wait()

	c := e.GetStrategyForApp("com.test.app")
	require.NotNil(t, c.UserPreference)
	assert.Equal(t, strategy.Balanced, c.UserPreference.Preferred)
	assert.True(t, c.Metadata.HasLearned)
}

func TestTickHonorsIntervals(t *testing.T) {
	feed := &learned.Static{Payload: learnedPayload()}
	e, clk := testEngine(t, feed, &memPrefs{})
	e.Initialize(context.Background())
	require.Equal(t, 1, feed.Calls)

	clk.t = clk.t.Add(2 * time.Hour)
	e.Tick(context.Background())
	assert.Equal(t, 1, feed.Calls, "learned refresh within its interval is skipped")
	assert.Equal(t, clk.t, e.Stats().LastPersonal)

	clk.t = clk.t.Add(23 * time.Hour)
	e.Tick(context.Background())
	assert.Equal(t, 2, feed.Calls)
}

func TestAll(t *testing.T) {
	e, _ := testEngine(t, nil, nil)
	assert.Len(t, e.All(), 1)

	e.Initialize(context.Background())
	all := e.All()
	require.Contains(t, all, "com.test.app")
	assert.Equal(t, 10, all["com.test.app"].Strategies[strategy.Aggressive].Actions[0].MaxProcesses)
}

func TestStartStopRefresh(t *testing.T) {
	e, _ := testEngine(t, nil, nil)
	e.StartRefresh(context.Background())
	e.Stop()
	e.Stop()
}
