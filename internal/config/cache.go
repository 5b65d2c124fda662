package config

import (
	"fmt"
	"time"
)

// CacheConfig holds response cache configuration.
type CacheConfig struct {
	// TTL is how long a cached response stays valid in both tiers.
	TTL time.Duration
	// SweepInterval is how often expired in-memory entries are evicted.
	SweepInterval time.Duration
}

// LoadCacheConfigFromEnv loads cache configuration from environment variables.
func LoadCacheConfigFromEnv() CacheConfig {
	return CacheConfig{
		TTL:           GetEnvDuration("CACHE_TTL", 15*time.Minute),
		SweepInterval: GetEnvDuration("CACHE_SWEEP_INTERVAL", 5*time.Minute),
	}
}

// Validate validates cache configuration.
func (c CacheConfig) Validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be greater than 0")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("CACHE_SWEEP_INTERVAL must be greater than 0")
	}
	return nil
}
