// Package handler upgrades HTTP requests to websocket connections.
package handler

import (
	"log"
	"net/http"

	"telecare/pkg/socket"
	"telecare/relay/controller"
)

// Handler wraps the websocket upgrade and hands the connection to the
// controller.
type Handler struct {
	controller *controller.Controller
}

// New creates a new Handler.
func New(c *controller.Controller) *Handler {
	return &Handler{
		controller: c,
	}
}

// ServeHTTP handles the HTTP request and upgrades it to a websocket
// connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := socket.New(w, r)
	if err != nil {
		return
	}
	defer func() {
		if err := sock.Close(); err != nil {
			log.Println("Error occurs in closing connection")
		}
	}()
	if err := h.controller.Process(sock); err != nil {
		log.Printf("Error occurs in connection %v", err)
	}
}
