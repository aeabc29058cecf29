package engine

import (
	"context"
	"sync"
	"time"

	"github.com/lazypower/strategist/internal/config"
	"github.com/lazypower/strategist/internal/learned"
	"github.com/lazypower/strategist/internal/strategy"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// PreferenceStore persists the full per-application preference set under a namespace.
type PreferenceStore interface {
	LoadPreferences(ctx context.Context, namespace string) (map[string]strategy.Preference, error)
	SavePreferences(ctx context.Context, namespace string, prefs map[string]strategy.Preference) error
}

// LearnedCache keeps the last accepted learned strategies across restarts.
type LearnedCache interface {
	LoadLearned(ctx context.Context) (map[string]strategy.Learned, error)
	SaveLearned(ctx context.Context, learned map[string]strategy.Learned) error
}

// Engine combines base, learned and personal strategy layers into one
// safety-clamped CombinedStrategy per application.
type Engine struct {
	cfg   config.EngineConfig
	base  map[string]*strategy.Base
	feed  learned.Feed
	prefs PreferenceStore
	cache LearnedCache
	log   zerolog.Logger
	now   func() time.Time

	// buildMu serializes layer installs and rebuilds so a preference update
	// is never overwritten by a concurrent full rebuild.
	buildMu sync.Mutex

	mu           sync.RWMutex
	learned      map[string]strategy.Learned
	personal     map[string]strategy.Preference
	combined     map[string]*strategy.Combined
	initialized  bool
	lastLearned  time.Time
	lastPersonal time.Time

	cron *cron.Cron
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithLearnedCache enables the last-known-good learned cache.
func WithLearnedCache(c LearnedCache) Option {
	return func(e *Engine) { e.cache = c }
}

// New creates a new Engine. feed and prefs may be nil.
func New(cfg config.EngineConfig, base map[string]*strategy.Base, feed learned.Feed, prefs PreferenceStore, opts ...Option) *Engine {
	if feed == nil {
		feed = learned.Nop{}
	}
	e := &Engine{
		cfg:      cfg,
		base:     base,
		feed:     feed,
		prefs:    prefs,
		log:      zerolog.Nop(),
		now:      time.Now,
		learned:  make(map[string]strategy.Learned),
		personal: make(map[string]strategy.Preference),
		combined: make(map[string]*strategy.Combined),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Initialize loads every layer and builds the combined set. It never fails:
// anything that goes wrong after the base catalog leaves base-only strategies.
func (e *Engine) Initialize(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("initialize failed, falling back to base strategies")
			e.installBaseOnly()
		}
	}()

	e.seedLearned(ctx)
	e.RefreshLearned(ctx)
	e.RefreshPersonal(ctx)

	e.mu.Lock()
	e.initialized = true
	e.mu.Unlock()

	e.log.Info().
		Int("base", len(e.base)).
		Int("combined", e.combinedCount()).
		Msg("strategies combined")
}

// seedLearned installs the last-known-good learned strategies.
func (e *Engine) seedLearned(ctx context.Context) {
	if e.cache == nil {
		return
	}
	cached, err := e.cache.LoadLearned(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("load learned cache")
		return
	}
	e.mu.Lock()
	for appID, l := range cached {
		if ValidLearned(&l) {
			e.learned[appID] = l
		}
	}
	e.mu.Unlock()
}

// RefreshLearned fetches the learned feed, admits valid entries and rebuilds
// every combined strategy. Fetch failures keep the current learned layer.
func (e *Engine) RefreshLearned(ctx context.Context) {
	started := e.now()
	payload, err := e.feed.Fetch(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("fetch learned strategies, keeping previous")
		e.rebuildWith(nil)
		return
	}

	accepted := make(map[string]strategy.Learned, len(payload.Strategies))
	for appID, l := range payload.Strategies {
		if !ValidLearned(&l) {
			e.log.Warn().Str("app", appID).Msg("rejecting learned strategy without version and validatedAt")
			continue
		}
		if l.AppID == "" {
			l.AppID = appID
		}
		accepted[appID] = l
	}

	var snapshot map[string]strategy.Learned
	e.rebuildWith(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for appID, l := range accepted {
			e.learned[appID] = l
		}
		e.lastLearned = started
		snapshot = copyLearned(e.learned)
	})

	if e.cache != nil && len(accepted) > 0 {
		if err := e.cache.SaveLearned(ctx, snapshot); err != nil {
			e.log.Warn().Err(err).Msg("save learned cache")
		}
	}
	e.log.Debug().Int("accepted", len(accepted)).Int("learned", len(snapshot)).Msg("learned refresh")
}

// RefreshPersonal reloads stored preferences and rebuilds every combined strategy.
func (e *Engine) RefreshPersonal(ctx context.Context) {
	e.rebuildWith(func() {
		started := e.now()
		var loaded map[string]strategy.Preference
		if e.prefs != nil {
			var err error
			loaded, err = e.prefs.LoadPreferences(ctx, e.cfg.PreferenceNamespace)
			if err != nil {
				e.log.Warn().Err(err).Msg("load personal preferences, keeping previous")
			}
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		for appID, p := range loaded {
			e.personal[appID] = p
		}
		e.lastPersonal = started
	})
}

// Tick runs whichever refresh is due. Hosts that drive their own scheduling
// call it periodically; a refresh within its interval is skipped.
func (e *Engine) Tick(ctx context.Context) {
	now := e.now()
	e.mu.RLock()
	learnedDue := now.Sub(e.lastLearned) >= e.cfg.LearnedInterval
	personalDue := now.Sub(e.lastPersonal) >= e.cfg.PersonalInterval
	e.mu.RUnlock()

	if learnedDue {
		e.RefreshLearned(ctx)
	}
	if personalDue {
		e.RefreshPersonal(ctx)
	}
}

// StartRefresh schedules the learned and personal refreshes on their intervals.
func (e *Engine) StartRefresh(ctx context.Context) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{e.log})))
	if d := e.cfg.LearnedInterval; d > 0 {
		c.Schedule(cron.Every(d), cron.FuncJob(func() { e.RefreshLearned(ctx) }))
	}
	if d := e.cfg.PersonalInterval; d > 0 {
		c.Schedule(cron.Every(d), cron.FuncJob(func() { e.RefreshPersonal(ctx) }))
	}
	c.Start()
	e.cron = c
}

// Stop shuts down the refresh schedule and waits for a running refresh.
func (e *Engine) Stop() {
	if e.cron == nil {
		return
	}
	<-e.cron.Stop().Done()
}

// GetStrategyForApp returns the combined strategy for appID, the raw base
// strategy before initialization, or nil for an unknown application.
func (e *Engine) GetStrategyForApp(appID string) *strategy.Combined {
	e.mu.RLock()
	initialized := e.initialized
	c := e.combined[appID]
	e.mu.RUnlock()

	if initialized && c != nil {
		return c
	}
	b, ok := e.base[appID]
	if !ok {
		return nil
	}
	return b.View()
}

// All returns every strategy, keyed by app id.
func (e *Engine) All() map[string]*strategy.Combined {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]*strategy.Combined, len(e.base))
	if e.initialized {
		for appID, c := range e.combined {
			out[appID] = c
		}
		return out
	}
	for appID, b := range e.base {
		out[appID] = b.View()
	}
	return out
}

// UpdatePersonalPreference stores pref, persists the full preference set and
// rebuilds only appID's combined strategy. Persist failures are logged.
func (e *Engine) UpdatePersonalPreference(ctx context.Context, appID string, pref strategy.Preference) {
	if pref.UpdatedAt.IsZero() {
		pref.UpdatedAt = e.now().UTC()
	}

	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	e.mu.Lock()
	e.personal[appID] = pref
	all := copyPersonal(e.personal)
	e.mu.Unlock()

	if e.prefs != nil {
		if err := e.prefs.SavePreferences(ctx, e.cfg.PreferenceNamespace, all); err != nil {
			e.log.Warn().Err(err).Str("app", appID).Msg("persist personal preferences")
		}
	}

	e.rebuildOne(appID)
	e.log.Info().Str("app", appID).Str("preferred", string(pref.PreferredTier)).Msg("personal preference updated")
}

// Stats is a snapshot of engine state.
type Stats struct {
	Initialized  bool        `json:"initialized"`
	Counts       LayerCounts `json:"strategyCounts"`
	LastLearned  time.Time   `json:"lastLearnedRefresh"`
	LastPersonal time.Time   `json:"lastPersonalRefresh"`
}

// LayerCounts counts the entries held per layer.
type LayerCounts struct {
	Base     int `json:"base"`
	Learned  int `json:"learned"`
	Personal int `json:"personal"`
	Combined int `json:"combined"`
}

// Stats returns engine counters.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		Initialized: e.initialized,
		Counts: LayerCounts{
			Base:     len(e.base),
			Learned:  len(e.learned),
			Personal: len(e.personal),
			Combined: len(e.combined),
		},
		LastLearned:  e.lastLearned,
		LastPersonal: e.lastPersonal,
	}
}

func (e *Engine) mergeOptions() MergeOptions {
	return MergeOptions{
		Safety:          e.cfg.Safety,
		PreferenceBoost: e.cfg.PreferenceBoost,
		Now:             e.now(),
	}
}

// rebuildWith runs install with buildMu held, then rebuilds everything.
func (e *Engine) rebuildWith(install func()) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()
	if install != nil {
		install()
	}
	e.rebuildAll()
}

// rebuildAll recombines every base strategy and swaps the result in.
// Callers hold buildMu.
func (e *Engine) rebuildAll() {
	e.mu.RLock()
	learnedSnap := copyLearned(e.learned)
	personalSnap := copyPersonal(e.personal)
	e.mu.RUnlock()

	opts := e.mergeOptions()
	next := make(map[string]*strategy.Combined, len(e.base))
	for appID, b := range e.base {
		next[appID] = Merge(layersFor(b, learnedSnap, personalSnap), opts)
	}

	e.mu.Lock()
	e.combined = next
	e.mu.Unlock()
}

// rebuildOne recombines a single application. Callers hold buildMu.
func (e *Engine) rebuildOne(appID string) {
	b, ok := e.base[appID]
	if !ok {
		return
	}
	e.mu.RLock()
	l := layersFor(b, e.learned, e.personal)
	e.mu.RUnlock()

	c := Merge(l, e.mergeOptions())

	e.mu.Lock()
	next := make(map[string]*strategy.Combined, len(e.combined)+1)
	for id, existing := range e.combined {
		next[id] = existing
	}
	next[appID] = c
	e.combined = next
	e.mu.Unlock()
}

func (e *Engine) installBaseOnly() {
	opts := e.mergeOptions()
	next := make(map[string]*strategy.Combined, len(e.base))
	for appID, b := range e.base {
		next[appID] = Merge(Layers{Base: b}, opts)
	}
	e.mu.Lock()
	e.combined = next
	e.initialized = true
	e.mu.Unlock()
}

func (e *Engine) combinedCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.combined)
}

func layersFor(b *strategy.Base, learnedSet map[string]strategy.Learned, personalSet map[string]strategy.Preference) Layers {
	l := Layers{Base: b}
	if v, ok := learnedSet[b.AppID]; ok {
		l.Learned = &v
	}
	if v, ok := personalSet[b.AppID]; ok {
		l.Personal = &v
	}
	return l
}

func copyLearned(in map[string]strategy.Learned) map[string]strategy.Learned {
	out := make(map[string]strategy.Learned, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyPersonal(in map[string]strategy.Preference) map[string]strategy.Preference {
	out := make(map[string]strategy.Preference, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// cronLogger routes cron's internal logging through zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
