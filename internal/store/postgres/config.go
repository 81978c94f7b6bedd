package postgres

import (
	"fmt"
	"time"
)

// StoreConfig holds store-specific configuration for the PostgreSQL organization store.
// Pool configuration is handled separately via PoolConfig.
type StoreConfig struct {
	// AutoMigrate applies the embedded reference schema on startup.
	// Only intended for local development and integration tests.
	AutoMigrate bool

	// QueryTimeoutSeconds is the maximum time a read query can run before timing out.
	// Default: 30 seconds
	QueryTimeoutSeconds int32

	// PurgeTimeoutSeconds bounds the relational purge transaction.
	// Default: 600 seconds
	PurgeTimeoutSeconds int32

	// PurgePlan overrides the embedded purge plan (YAML). Empty uses the embedded plan.
	PurgePlan []byte
}

// Validate checks that the configuration is valid.
func (c *StoreConfig) Validate() error {
	if c.QueryTimeoutSeconds < 0 {
		return fmt.Errorf("query timeout must not be negative")
	}

	if c.PurgeTimeoutSeconds < 0 {
		return fmt.Errorf("purge timeout must not be negative")
	}

	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *StoreConfig) ApplyDefaults() {
	if c.QueryTimeoutSeconds == 0 {
		c.QueryTimeoutSeconds = 30
	}
	if c.PurgeTimeoutSeconds == 0 {
		c.PurgeTimeoutSeconds = 600 // 10 minutes
	}
}

func (c *StoreConfig) queryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

func (c *StoreConfig) purgeTimeout() time.Duration {
	return time.Duration(c.PurgeTimeoutSeconds) * time.Second
}
