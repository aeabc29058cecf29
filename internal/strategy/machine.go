package strategy

import "time"

// HardwareClass distinguishes the two Mac hardware families.
type HardwareClass string

const (
	HardwareAppleSilicon HardwareClass = "apple_silicon"
	HardwareIntel        HardwareClass = "intel"
)

// ConservativePeriodActive is the status of a running conservative period.
const ConservativePeriodActive = "active"

// ConservativePeriod is a window (typically after an OS upgrade) during which
// only conservative optimization is allowed.
type ConservativePeriod struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
	EndDate   time.Time `json:"endDate"`
}

// Active reports whether the period is running at now.
func (p *ConservativePeriod) Active(now time.Time) bool {
	if p == nil || p.Status != ConservativePeriodActive {
		return false
	}
	return now.Before(p.EndDate)
}

// MachineProfile is the slow-changing description of the host machine.
type MachineProfile struct {
	OSName             string              `json:"osName"`
	OSVersion          string              `json:"osVersion,omitempty"`
	SystemAge          string              `json:"systemAge,omitempty"` // fresh | established | mature
	Hardware           HardwareClass       `json:"hardware,omitempty"`
	MemoryGB           float64             `json:"memoryGB"`
	UptimeSeconds      int64               `json:"uptimeSeconds,omitempty"`
	UpgradeDetected    bool                `json:"upgradeDetected,omitempty"`
	ConservativePeriod *ConservativePeriod `json:"conservativePeriod,omitempty"`
}

// Uptime returns the system uptime as a duration.
func (m MachineProfile) Uptime() time.Duration {
	return time.Duration(m.UptimeSeconds) * time.Second
}

// Memory pressure levels reported in a RuntimeContext.
const (
	PressureNormal   = "normal"
	PressureWarn     = "warn"
	PressureCritical = "critical"
)

// RuntimeContext carries the fast-changing signals available at decision time.
type RuntimeContext struct {
	MemoryPressure string   `json:"memoryPressure,omitempty"`
	SystemLoad     string   `json:"systemLoad,omitempty"`   // low | medium | high
	UserActivity   string   `json:"userActivity,omitempty"` // active | idle | away
	ForceStrategy  RiskTier `json:"forceStrategy,omitempty"`
}

// UpgradePrompt is attached to a selection that an entitlement narrowed.
type UpgradePrompt struct {
	Feature string `json:"feature"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Selected is the final, narrowed strategy handed to an executor.
type Selected struct {
	Tier             RiskTier       `json:"level"`
	Source           string         `json:"source"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	EstimatedSavings Savings        `json:"estimatedSavings"`
	UserImpact       string         `json:"userImpact,omitempty"`
	Warning          string         `json:"warning,omitempty"`
	RequiresRestart  bool           `json:"requiresRestart,omitempty"`
	Actions          []Action       `json:"actions"`
	ContextApplied   bool           `json:"contextApplied"`
	Reasons          []string       `json:"reasons,omitempty"`
	UpgradePrompt    *UpgradePrompt `json:"upgradePrompt,omitempty"`
	ActionsStripped  bool           `json:"actionsStripped,omitempty"`
}
