package config

import (
	"fmt"
	"time"
)

// Config holds all strategist configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Log         LogConfig         `mapstructure:"log"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Learned     LearnedConfig     `mapstructure:"learned"`
	Selector    SelectorConfig    `mapstructure:"selector"`
	Entitlement EntitlementConfig `mapstructure:"entitlement"`
	Dedup       DedupConfig       `mapstructure:"dedup"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"` // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"`
}

// SafetyConfig holds the ceilings no strategy layer can raise.
type SafetyConfig struct {
	MaxMemoryThreshold      int      `mapstructure:"max_memory_threshold"` // MB
	MaxProcessKillCount     int      `mapstructure:"max_process_kill_count"`
	MaxCacheCleanSize       int      `mapstructure:"max_cache_clean_size"` // MB
	RequireUserConfirmation []string `mapstructure:"require_user_confirmation"`
}

type EngineConfig struct {
	Safety              SafetyConfig  `mapstructure:"safety"`
	LearnedInterval     time.Duration `mapstructure:"learned_interval"`
	PersonalInterval    time.Duration `mapstructure:"personal_interval"`
	PreferenceBoost     float64       `mapstructure:"preference_boost"`
	PreferenceNamespace string        `mapstructure:"preference_namespace"`
}

type LearnedConfig struct {
	URL     string        `mapstructure:"url"` // empty disables the remote feed
	Timeout time.Duration `mapstructure:"timeout"`
}

type SelectorConfig struct {
	FreeActionLimit   int     `mapstructure:"free_action_limit"`
	FreeSavingsFactor float64 `mapstructure:"free_savings_factor"`
	FreeSavingsMin    int     `mapstructure:"free_savings_min"` // MB, used when the scaled value is zero
	FreeSavingsMax    int     `mapstructure:"free_savings_max"`
	ConservativeDays  int     `mapstructure:"conservative_days"`
}

type EntitlementConfig struct {
	Plan string `mapstructure:"plan"` // "free", "pro", "premium"
}

// DedupConfig configures the significance/deduplication filter.
type DedupConfig struct {
	SameAppWindow       time.Duration `mapstructure:"same_app_window"`
	IdenticalWindow     time.Duration `mapstructure:"identical_window"`
	MinMemoryFreedMB    float64       `mapstructure:"min_memory_freed_mb"`
	MinSpeedGainPercent float64       `mapstructure:"min_speed_gain_percent"`
	MinEffectiveness    float64       `mapstructure:"min_effectiveness"`
	MaxSystemLoad       float64       `mapstructure:"max_system_load"`
	RequireUserActive   bool          `mapstructure:"require_user_active"`
	CacheMaxEntries     int           `mapstructure:"cache_max_entries"`
	CacheMaxAge         time.Duration `mapstructure:"cache_max_age"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37780,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Log: LogConfig{
			Level: "info",
		},
		Engine: EngineConfig{
			Safety: SafetyConfig{
				MaxMemoryThreshold:      8000,
				MaxProcessKillCount:     10,
				MaxCacheCleanSize:       5000,
				RequireUserConfirmation: []string{"aggressive"},
			},
			LearnedInterval:     24 * time.Hour,
			PersonalInterval:    time.Hour,
			PreferenceBoost:     1.1,
			PreferenceNamespace: "personal_strategies",
		},
		Learned: LearnedConfig{
			Timeout: 10 * time.Second,
		},
		Selector: SelectorConfig{
			FreeActionLimit:   2,
			FreeSavingsFactor: 0.4,
			FreeSavingsMin:    200,
			FreeSavingsMax:    600,
			ConservativeDays:  7,
		},
		Entitlement: EntitlementConfig{
			Plan: "free",
		},
		Dedup: DedupConfig{
			SameAppWindow:       30 * time.Minute,
			IdenticalWindow:     24 * time.Hour,
			MinMemoryFreedMB:    50,
			MinSpeedGainPercent: 5,
			MinEffectiveness:    0.7,
			MaxSystemLoad:       0.8,
			RequireUserActive:   true,
			CacheMaxEntries:     1000,
			CacheMaxAge:         7 * 24 * time.Hour,
			SweepInterval:       time.Hour,
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
