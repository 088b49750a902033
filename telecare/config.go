// Package telecare wires the relay server's components together.
package telecare

import (
	"telecare/coordinator"
	"telecare/database"
	"telecare/metric"
	"telecare/relay"
)

// Config contains the configuration for the relay deployment.
type Config struct {
	Relay       relay.Config
	Database    database.Config
	Coordinator coordinator.Config
	Metrics     metric.Config
}

// Validate validates every sub-config.
func (c Config) Validate() error {
	return c.Relay.Validate()
}
