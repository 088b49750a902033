// Package metric provides Prometheus metrics collection and monitoring.
package metric

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/cpu"
)

const systemMetricsInterval = 5 * time.Second

// Metrics contains the Prometheus metrics server and registered custom metrics.
type Metrics struct {
	httpServer           *http.Server
	config               Config
	webSocketConnections prometheus.Gauge
	registeredUsers      prometheus.Gauge
	activeRooms          prometheus.Gauge
	relayedEnvelopes     *prometheus.CounterVec
	invitesDispatched    prometheus.Counter
	cpuUsage             prometheus.Gauge
	memoryUsage          prometheus.Gauge
}

// New creates a new Metrics instance with the specified configuration.
func New(config Config) *Metrics {
	return &Metrics{
		config: config,
		webSocketConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "websocket_connections_total",
			Help: "Current number of WebSocket connections.",
		}),
		registeredUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "registered_users_total",
			Help: "Current number of users attached to the relay.",
		}),
		activeRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "active_call_rooms_total",
			Help: "Current number of occupied call rooms.",
		}),
		relayedEnvelopes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayed_envelopes_total",
			Help: "Signaling envelopes relayed between room members.",
		}, []string{"type"}),
		invitesDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invites_dispatched_total",
			Help: "Call invitations delivered to personal notification channels.",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percentage",
			Help: "CPU usage percentage.",
		}),
		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_bytes",
			Help: "Current memory usage in bytes.",
		}),
	}
}

// RegisterMetrics registers custom metrics with Prometheus.
func (m *Metrics) RegisterMetrics() {
	prometheus.MustRegister(m.webSocketConnections)
	prometheus.MustRegister(m.registeredUsers)
	prometheus.MustRegister(m.activeRooms)
	prometheus.MustRegister(m.relayedEnvelopes)
	prometheus.MustRegister(m.invitesDispatched)
	prometheus.MustRegister(m.cpuUsage)
	prometheus.MustRegister(m.memoryUsage)
}

// Start initializes and starts the metrics HTTP server.
func (m *Metrics) Start() {
	mux := http.NewServeMux()
	mux.Handle(m.config.Path, promhttp.Handler())
	m.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", m.config.Port),
		Handler: mux,
	}

	go func() {
		log.Printf("Starting metrics server on port %d at path %s", m.config.Port, m.config.Path)
		if err := m.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Error starting metrics server: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (m *Metrics) Stop() error {
	if m.httpServer != nil {
		log.Printf("Stopping metrics server on port %d", m.config.Port)
		return m.httpServer.Close()
	}
	return nil
}

// UpdateSystemMetrics collects and updates system-level metrics until stop
// is closed.
func (m *Metrics) UpdateSystemMetrics(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(systemMetricsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				var memStats runtime.MemStats
				runtime.ReadMemStats(&memStats)
				m.memoryUsage.Set(float64(memStats.Alloc))

				percentages, err := cpu.Percent(0, false)
				if err != nil || len(percentages) == 0 {
					continue
				}
				m.cpuUsage.Set(percentages[0])
			}
		}
	}()
}

// IncrementWebSocketConnections increments the WebSocket connection count.
func (m *Metrics) IncrementWebSocketConnections() {
	m.webSocketConnections.Inc()
}

// DecrementWebSocketConnections decrements the WebSocket connection count.
func (m *Metrics) DecrementWebSocketConnections() {
	m.webSocketConnections.Dec()
}

// IncrementRegisteredUsers increments the registered user count.
func (m *Metrics) IncrementRegisteredUsers() {
	m.registeredUsers.Inc()
}

// DecrementRegisteredUsers decrements the registered user count.
func (m *Metrics) DecrementRegisteredUsers() {
	m.registeredUsers.Dec()
}

// IncrementActiveRooms increments the occupied room count.
func (m *Metrics) IncrementActiveRooms() {
	m.activeRooms.Inc()
}

// DecrementActiveRooms decrements the occupied room count.
func (m *Metrics) DecrementActiveRooms() {
	m.activeRooms.Dec()
}

// CountRelayedEnvelope counts one relayed envelope by type.
func (m *Metrics) CountRelayedEnvelope(envelopeType string) {
	m.relayedEnvelopes.WithLabelValues(envelopeType).Inc()
}

// CountInviteDispatched counts one delivered invitation.
func (m *Metrics) CountInviteDispatched() {
	m.invitesDispatched.Inc()
}
