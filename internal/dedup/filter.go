// Package dedup decides whether a completed optimization run is novel and
// significant enough to feed the learning corpus.
package dedup

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/lazypower/strategist/internal/config"
	"github.com/lazypower/strategist/internal/strategy"
	"github.com/rs/zerolog"
)

// Rejection stages.
const (
	StageTemporal     = "temporal"
	StageSignificance = "significance"
	StageContextual   = "contextual"
	StageIdentical    = "identical"
	StageError        = "error"
)

const identicalPrefix = "identical_"

// Signals supplies host state for the system context of accepted records.
type Signals interface {
	SystemContext() strategy.SystemContext
}

// NoSignals reports zeros. The filter never probes hardware itself.
type NoSignals struct{}

func (NoSignals) SystemContext() strategy.SystemContext { return strategy.SystemContext{} }

// Filter is the significance/deduplication pipeline. It is safe for
// concurrent use; each Evaluate call is applied atomically.
type Filter struct {
	cfg     config.DedupConfig
	signals Signals
	log     zerolog.Logger
	now     func() time.Time
	started time.Time

	mu       sync.Mutex
	recent   map[string]time.Time
	users    map[string]*userPattern
	accepted int
	rejected map[string]int

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option configures a Filter.
type Option func(*Filter)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(f *Filter) { f.now = now }
}

// WithLogger sets the filter logger.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Filter) { f.log = l }
}

// WithSignals sets the system-context provider.
func WithSignals(s Signals) Option {
	return func(f *Filter) { f.signals = s }
}

// New creates a Filter.
func New(cfg config.DedupConfig, opts ...Option) *Filter {
	f := &Filter{
		cfg:      cfg,
		signals:  NoSignals{},
		log:      zerolog.Nop(),
		now:      time.Now,
		recent:   make(map[string]time.Time),
		users:    make(map[string]*userPattern),
		rejected: make(map[string]int),
		stopCh:   make(chan struct{}),
	}
	for _, o := range opts {
		o(f)
	}
	f.started = f.now()
	return f
}

// Evaluate runs rec through the temporal, significance, contextual and
// identical-result stages. It returns the enriched record to persist, or nil
// when any stage rejects it. Internal failures reject.
func (f *Filter) Evaluate(rec strategy.Record) (out *strategy.EnrichedRecord) {
	sys := f.systemContext()

	f.mu.Lock()
	defer f.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			f.log.Error().Interface("panic", r).Str("app", rec.AppID).Msg("dedup pipeline failed, rejecting")
			f.rejected[StageError]++
			out = nil
		}
	}()

	now := f.now()
	sig, err := signature(rec)
	if err != nil {
		f.reject(rec, StageError, err.Error())
		return nil
	}

	if last, ok := f.recent[temporalKey(rec)]; ok && now.Sub(last) < f.cfg.SameAppWindow {
		f.reject(rec, StageTemporal, "same app and strategy too recent")
		return nil
	}
	if !f.significant(rec) {
		f.reject(rec, StageSignificance, "below every significance threshold")
		return nil
	}
	if reason := f.contextual(rec); reason != "" {
		f.reject(rec, StageContextual, reason)
		return nil
	}
	if last, ok := f.recent[identicalPrefix+sig]; ok && now.Sub(last) < f.cfg.IdenticalWindow {
		f.reject(rec, StageIdentical, "identical result too recent")
		return nil
	}

	out = f.enrich(rec, now, sys)

	f.recent[temporalKey(rec)] = now
	f.recent[identicalPrefix+sig] = now
	if len(f.recent) > f.cfg.CacheMaxEntries {
		f.sweepLocked(now)
	}
	f.updatePatterns(rec)
	f.accepted++

	f.log.Info().
		Str("app", rec.AppID).
		Str("strategy", string(rec.Strategy)).
		Float64("memory_freed_mb", rec.MemoryFreedMB).
		Float64("speed_gain_percent", rec.SpeedGainPercent).
		Float64("effectiveness", rec.EffectivenessScore).
		Msg("record accepted")
	return out
}

func (f *Filter) systemContext() (sc strategy.SystemContext) {
	defer func() {
		if r := recover(); r != nil {
			f.log.Warn().Interface("panic", r).Msg("signals provider failed")
			sc = strategy.SystemContext{}
		}
	}()
	return f.signals.SystemContext()
}

func (f *Filter) reject(rec strategy.Record, stage, reason string) {
	f.rejected[stage]++
	f.log.Debug().
		Str("stage", stage).
		Str("app", rec.AppID).
		Str("strategy", string(rec.Strategy)).
		Msg(reason)
}

// significant requires at least one threshold to be met.
func (f *Filter) significant(rec strategy.Record) bool {
	return rec.MemoryFreedMB >= f.cfg.MinMemoryFreedMB ||
		rec.SpeedGainPercent >= f.cfg.MinSpeedGainPercent ||
		rec.EffectivenessScore >= f.cfg.MinEffectiveness
}

func (f *Filter) contextual(rec strategy.Record) string {
	oc := rec.OptimizationContext
	if oc.SystemLoad > f.cfg.MaxSystemLoad {
		return fmt.Sprintf("system load %.2f above %.2f", oc.SystemLoad, f.cfg.MaxSystemLoad)
	}
	if f.cfg.RequireUserActive && !oc.UserActive {
		return "user not active"
	}
	return ""
}

func temporalKey(rec strategy.Record) string {
	return rec.AppID + "_" + string(rec.Strategy)
}

// resultSignature groups results into 50MB and 5% buckets on one device shape.
type resultSignature struct {
	AppID         string            `json:"appId"`
	Strategy      strategy.RiskTier `json:"strategy"`
	MemoryFreed   float64           `json:"memoryFreed"`
	SpeedGain     float64           `json:"speedGain"`
	SystemProfile deviceSignature   `json:"systemProfile"`
}

type deviceSignature struct {
	TotalMemory  float64 `json:"totalMemory"`
	CPUCores     int     `json:"cpuCores"`
	Architecture string  `json:"architecture"`
}

func signature(rec strategy.Record) (string, error) {
	data, err := json.Marshal(resultSignature{
		AppID:       rec.AppID,
		Strategy:    rec.Strategy,
		MemoryFreed: math.Floor(rec.MemoryFreedMB/50) * 50,
		SpeedGain:   math.Floor(rec.SpeedGainPercent/5) * 5,
		SystemProfile: deviceSignature{
			TotalMemory:  rec.DeviceProfile.TotalMemory,
			CPUCores:     rec.DeviceProfile.CPUCores,
			Architecture: rec.DeviceProfile.Architecture,
		},
	})
	if err != nil {
		return "", fmt.Errorf("result signature: %w", err)
	}
	return string(data), nil
}
