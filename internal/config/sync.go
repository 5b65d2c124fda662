package config

import (
	"fmt"
	"time"
)

// SyncConfig holds sync scheduler configuration.
type SyncConfig struct {
	// Interval is the minimum time between successful syncs of one repository.
	Interval time.Duration
	// LockTTL is how long a sync lease stays valid before it is reclaimable.
	LockTTL time.Duration
	// ProcessGuard is the minimum elapsed time since a repository's sync-start
	// marker before it may be picked again.
	ProcessGuard time.Duration
}

// LoadSyncConfigFromEnv loads sync configuration from environment variables.
func LoadSyncConfigFromEnv() SyncConfig {
	return SyncConfig{
		Interval:     GetEnvDuration("SYNC_INTERVAL", 60*time.Minute),
		LockTTL:      GetEnvDuration("SYNC_LOCK_TTL", 10*time.Minute),
		ProcessGuard: GetEnvDuration("SYNC_PROCESS_GUARD", 10*time.Minute),
	}
}

// Validate validates sync configuration.
func (c SyncConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be greater than 0")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("SYNC_LOCK_TTL must be greater than 0")
	}
	if c.ProcessGuard <= 0 {
		return fmt.Errorf("SYNC_PROCESS_GUARD must be greater than 0")
	}
	return nil
}
