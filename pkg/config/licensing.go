package config

import "time"

// LicensingConfig configures the seat engine.
type LicensingConfig struct {
	// AssignMaxRetries bounds the optimistic-concurrency retry loop on seat
	// assignment and revocation.
	AssignMaxRetries int

	// ReconcileInterval is how often the seat reconciliation pass runs.
	// Zero disables the periodic runner.
	ReconcileInterval time.Duration
}

func loadLicensingConfig() LicensingConfig {
	return LicensingConfig{
		AssignMaxRetries:  getEnvInt("LICENSING_ASSIGN_MAX_RETRIES", 5),
		ReconcileInterval: getEnvDuration("LICENSING_RECONCILE_INTERVAL", 0),
	}
}
