package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. STRATEGIST_SERVER_PORT.
const EnvPrefix = "STRATEGIST"

// DefaultPath returns the default config file path: ~/.strategist/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".strategist", "config.toml"), nil
}

// Load reads the TOML file at path (a missing file is not an error), applies
// STRATEGIST_* environment overrides, and returns the merged configuration.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, val := range defaultKeys(Default()) {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run safely with.
func (c *Config) Validate() error {
	if c.Engine.Safety.MaxProcessKillCount <= 0 {
		return fmt.Errorf("engine.safety.max_process_kill_count must be positive")
	}
	if c.Engine.Safety.MaxCacheCleanSize <= 0 {
		return fmt.Errorf("engine.safety.max_cache_clean_size must be positive")
	}
	if c.Dedup.CacheMaxEntries <= 0 {
		return fmt.Errorf("dedup.cache_max_entries must be positive")
	}
	if c.Selector.FreeSavingsFactor < 0 || c.Selector.FreeSavingsFactor > 1 {
		return fmt.Errorf("selector.free_savings_factor must be within [0,1], got %v", c.Selector.FreeSavingsFactor)
	}
	if c.Selector.ConservativeDays <= 0 {
		return fmt.Errorf("selector.conservative_days must be positive, got %d", c.Selector.ConservativeDays)
	}
	return nil
}

// defaultKeys flattens cfg into viper keys so every field is visible to
// AutomaticEnv even when the config file does not mention it.
func defaultKeys(cfg Config) map[string]any {
	return map[string]any{
		"server.bind":   cfg.Server.Bind,
		"server.port":   cfg.Server.Port,
		"database.path": cfg.Database.Path,
		"log.level":     cfg.Log.Level,
		"log.pretty":    cfg.Log.Pretty,

		"engine.safety.max_memory_threshold":      cfg.Engine.Safety.MaxMemoryThreshold,
		"engine.safety.max_process_kill_count":    cfg.Engine.Safety.MaxProcessKillCount,
		"engine.safety.max_cache_clean_size":      cfg.Engine.Safety.MaxCacheCleanSize,
		"engine.safety.require_user_confirmation": cfg.Engine.Safety.RequireUserConfirmation,
		"engine.learned_interval":                 cfg.Engine.LearnedInterval,
		"engine.personal_interval":                cfg.Engine.PersonalInterval,
		"engine.preference_boost":                 cfg.Engine.PreferenceBoost,
		"engine.preference_namespace":             cfg.Engine.PreferenceNamespace,

		"learned.url":     cfg.Learned.URL,
		"learned.timeout": cfg.Learned.Timeout,

		"selector.free_action_limit":   cfg.Selector.FreeActionLimit,
		"selector.free_savings_factor": cfg.Selector.FreeSavingsFactor,
		"selector.free_savings_min":    cfg.Selector.FreeSavingsMin,
		"selector.free_savings_max":    cfg.Selector.FreeSavingsMax,
		"selector.conservative_days":   cfg.Selector.ConservativeDays,

		"entitlement.plan": cfg.Entitlement.Plan,

		"dedup.same_app_window":        cfg.Dedup.SameAppWindow,
		"dedup.identical_window":       cfg.Dedup.IdenticalWindow,
		"dedup.min_memory_freed_mb":    cfg.Dedup.MinMemoryFreedMB,
		"dedup.min_speed_gain_percent": cfg.Dedup.MinSpeedGainPercent,
		"dedup.min_effectiveness":      cfg.Dedup.MinEffectiveness,
		"dedup.max_system_load":        cfg.Dedup.MaxSystemLoad,
		"dedup.require_user_active":    cfg.Dedup.RequireUserActive,
		"dedup.cache_max_entries":      cfg.Dedup.CacheMaxEntries,
		"dedup.cache_max_age":          cfg.Dedup.CacheMaxAge,
		"dedup.sweep_interval":         cfg.Dedup.SweepInterval,
	}
}
