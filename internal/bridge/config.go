package bridge

import "enr-network/core"

// EnrBridgeConfig holds every tunable the coordinator reads at construction.
// NewBridge uses the values as given and fills in no defaults: a zero
// interval disables that periodic task. DefaultEnrBridgeConfig supplies the
// default values.
type EnrBridgeConfig struct {
	GradientInterval    core.Duration
	ElectionInterval    core.Duration
	CreditSyncInterval  core.Duration
	HealthCheckInterval core.Duration
	MaxMessageAge       core.Duration

	SeptalGateConfig core.SeptalGateConfig
	EntropyWeights   core.EntropyWeights

	// RequireSignatures, when true, rejects any message whose Signature is
	// all-zero before dispatch.
	RequireSignatures bool
}

func DefaultEnrBridgeConfig() EnrBridgeConfig {
	return EnrBridgeConfig{
		GradientInterval:    core.Seconds(10),
		ElectionInterval:    core.Hours(1),
		CreditSyncInterval:  core.Seconds(30),
		HealthCheckInterval: core.Millis(core.HealthCheckIntervalMs),
		MaxMessageAge:       core.Seconds(60),
		SeptalGateConfig:    core.DefaultSeptalGateConfig(),
		EntropyWeights:      core.DefaultEntropyWeights(),
		RequireSignatures:   false,
	}
}
