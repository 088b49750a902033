// Package relay contains the signaling relay server for call rooms.
package relay

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"telecare/broker"
	"telecare/database"
	"telecare/metric"
	"telecare/relay/controller"
	"telecare/relay/handler"
	"telecare/relay/middleware"
)

// Relay contains the server and configuration.
type Relay struct {
	server *http.Server
	conf   Config
}

// New creates a new instance of Relay.
func New(config Config, db database.Database, brk *broker.Broker, met *metric.Metrics) *Relay {
	con := controller.New(brk, db, met)
	mux := http.NewServeMux()
	mux.Handle("/ws", handler.New(con))

	mds := []middleware.Interceptor{
		middleware.NewCORS(),
		middleware.NewLogger(),
	}

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", config.Port),
		ReadTimeout: 2 * time.Second,
		Handler:     middleware.Set(mux, mds...),
	}
	return &Relay{
		server: srv,
		conf:   config,
	}
}

// Start runs the relay server.
func (r *Relay) Start() error {
	if r.conf.CertFile == "" || r.conf.KeyFile == "" {
		log.Printf("Starting server port on %d, without TLS", r.conf.Port)
		if err := r.server.ListenAndServe(); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	}

	log.Printf("Starting server port on %d, with TLS", r.conf.Port)
	if err := r.server.ListenAndServeTLS(r.conf.CertFile, r.conf.KeyFile); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
