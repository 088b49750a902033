// Package telecare wires the relay server's components together.
package telecare

import (
	"fmt"

	"telecare/broker"
	"telecare/coordinator"
	"telecare/database"
	"telecare/database/memory"
	"telecare/metric"
	"telecare/relay"
)

// Telecare contains servers and configuration.
type Telecare struct {
	broker      *broker.Broker
	database    database.Database
	coordinator *coordinator.Coordinator
	relay       *relay.Relay
	metric      *metric.Metrics
	stop        chan struct{}
}

// New creates a new instance of Telecare.
func New(config Config) *Telecare {
	brk := broker.New()
	db := memory.New(config.Database)
	met := metric.New(config.Metrics)
	cod := coordinator.New(config.Coordinator, brk, db, met)
	rel := relay.New(config.Relay, db, brk, met)

	return &Telecare{
		broker:      brk,
		database:    db,
		coordinator: cod,
		relay:       rel,
		metric:      met,
		stop:        make(chan struct{}),
	}
}

// Start runs the relay server and metrics server.
func (t *Telecare) Start() error {
	t.metric.RegisterMetrics()
	t.metric.Start()
	t.metric.UpdateSystemMetrics(t.stop)
	go t.coordinator.Start()
	if err := t.relay.Start(); err != nil {
		return fmt.Errorf("failed to start relay server: %w", err)
	}
	return nil
}

// Stop shuts down the background servers.
func (t *Telecare) Stop() error {
	close(t.stop)
	return t.metric.Stop()
}
