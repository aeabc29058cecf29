package dedup

import (
	"sort"
	"time"
)

// Sweep evicts cache entries older than the configured max age, then the
// oldest entries until the cache is within its cap. It returns the number
// of entries removed.
func (f *Filter) Sweep() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweepLocked(f.now())
}

func (f *Filter) sweepLocked(now time.Time) int {
	before := len(f.recent)
	for key, at := range f.recent {
		if now.Sub(at) > f.cfg.CacheMaxAge {
			delete(f.recent, key)
		}
	}

	if over := len(f.recent) - f.cfg.CacheMaxEntries; over > 0 && f.cfg.CacheMaxEntries > 0 {
		keys := make([]string, 0, len(f.recent))
		for key := range f.recent {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, b := f.recent[keys[i]], f.recent[keys[j]]
			if !a.Equal(b) {
				return a.Before(b)
			}
			return keys[i] < keys[j]
		})
		for _, key := range keys[:over] {
			delete(f.recent, key)
		}
	}

	removed := before - len(f.recent)
	if removed > 0 {
		f.log.Debug().Int("removed", removed).Int("entries", len(f.recent)).Msg("cache sweep")
	}
	return removed
}

// StartSweeper sweeps the cache on the configured interval until Stop.
func (f *Filter) StartSweeper() {
	if f.cfg.SweepInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(f.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				f.Sweep()
			case <-f.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the sweeper goroutine.
func (f *Filter) Stop() {
	f.stopOnce.Do(func() { close(f.stopCh) })
}

// Stats is a snapshot of filter state.
type Stats struct {
	CacheSize    int            `json:"cacheSize"`
	UsersTracked int            `json:"userPatternsTracked"`
	Accepted     int            `json:"accepted"`
	Rejected     map[string]int `json:"rejected"`
}

// Stats returns filter counters.
func (f *Filter) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	rejected := make(map[string]int, len(f.rejected))
	for k, v := range f.rejected {
		rejected[k] = v
	}
	return Stats{
		CacheSize:    len(f.recent),
		UsersTracked: len(f.users),
		Accepted:     f.accepted,
		Rejected:     rejected,
	}
}
