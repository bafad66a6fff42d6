// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Host              string        `env:"RESERVE_HOST" envDefault:"localhost"`
	Port              string        `env:"RESERVE_PORT" envDefault:"8092"`
	ReadHeaderTimeout time.Duration `env:"RESERVE_READ_HEADER_TIMEOUT" envDefault:"20s"`
	LivenessEndpoint  string        `env:"RESERVE_LIVENESS_ENDPOINT" envDefault:"/liveness"`

	// PendingTTL bounds provisional holds; SweepInterval is how often the
	// expiry sweep reclaims them.
	PendingTTL    time.Duration `env:"RESERVE_PENDING_TTL" envDefault:"15m"`
	SweepInterval time.Duration `env:"RESERVE_SWEEP_INTERVAL" envDefault:"1m"`

	// LockWait bounds availability-cell lock acquisition before Busy;
	// ConflictRetries is the internal retry budget on version conflicts.
	LockWait        time.Duration `env:"RESERVE_LOCK_WAIT" envDefault:"2s"`
	ConflictRetries int           `env:"RESERVE_CONFLICT_RETRIES" envDefault:"3"`

	// Ledger backend selection: DSN wins over Path; both empty means the
	// in-memory ledger.
	DBDSN  string `env:"RESERVE_DB_DSN"`
	DBPath string `env:"RESERVE_DB_PATH"`
}

func Load() (Config, error) {
	var conf Config

	if err := env.Parse(&conf); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	return conf, nil
}
