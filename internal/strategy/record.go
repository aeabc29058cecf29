package strategy

// OptimizationContext is the executor's description of the conditions a run happened under.
type OptimizationContext struct {
	SystemLoad float64 `json:"systemLoad,omitempty"` // 0-1
	UserActive bool    `json:"userActive"`
}

// DeviceProfile summarizes the machine a run happened on.
type DeviceProfile struct {
	TotalMemory  float64 `json:"totalMemory,omitempty"`
	CPUCores     int     `json:"cpuCores,omitempty"`
	Architecture string  `json:"architecture,omitempty"`
}

// Record is the outcome of one completed optimization run.
type Record struct {
	AppID               string              `json:"appId"`
	Strategy            RiskTier            `json:"strategy"`
	MemoryFreedMB       float64             `json:"memoryFreedMB"`
	SpeedGainPercent    float64             `json:"speedGainPercent"`
	EffectivenessScore  float64             `json:"effectivenessScore"`
	OptimizationContext OptimizationContext `json:"optimizationContext"`
	DeviceProfile       DeviceProfile       `json:"deviceProfile"`
	UserID              string              `json:"userId,omitempty"`
}

// TemporalContext places an accepted record in time.
type TemporalContext struct {
	Timestamp string `json:"timestamp"`
	TimeOfDay int    `json:"timeOfDay"`
	DayOfWeek int    `json:"dayOfWeek"`
	IsWeekend bool   `json:"isWeekend"`
}

// SystemContext is the host state at acceptance time.
type SystemContext struct {
	MemoryPressure float64 `json:"memoryPressure"`
	CPUUsage       float64 `json:"cpuUsage"`
	ActiveApps     int     `json:"activeApps"`
}

// UserContext summarizes the submitting user's history.
type UserContext struct {
	SessionDurationMs     int64      `json:"sessionDuration"`
	OptimizationFrequency string     `json:"optimizationFrequency"`
	PreferredStrategies   []RiskTier `json:"preferredStrategies"`
}

// EnrichedRecord is an accepted Record bound for the learning-data sink.
type EnrichedRecord struct {
	Record
	TemporalContext TemporalContext `json:"temporalContext"`
	SystemContext   SystemContext   `json:"systemContext"`
	UserContext     UserContext     `json:"userContext"`
}
