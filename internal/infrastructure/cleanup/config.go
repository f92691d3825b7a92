package cleanup

import (
	"time"

	"github.com/commxr/commxr-go/pkg/config"
)

// Config holds sweeper configuration, sourced from the central config package.
type Config struct {
	SweepInterval    time.Duration
	Retention        time.Duration
	VerboseReporting bool
}

// NewConfig reads the already-initialized values in /pkg/config.
func NewConfig() *Config {
	return &Config{
		SweepInterval:    config.SessionSweepInterval,
		Retention:        config.SessionRetention,
		VerboseReporting: config.SessionSweepVerbose,
	}
}
