// Package controller handles the relay's client protocol.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"telecare/broker"
	"telecare/database"
	"telecare/metric"
	"telecare/pkg/socket"
	"telecare/types/client/request"
	"telecare/types/client/response"
	"telecare/types/message"
)

// Controller serves one websocket connection: it registers the user,
// relays room-scoped envelopes to the counterpart member and delivers
// invitations to personal notification channels.
type Controller struct {
	broker   *broker.Broker
	database database.Database
	metric   *metric.Metrics
}

// New creates a new instance of Controller.
func New(b *broker.Broker, db database.Database, m *metric.Metrics) *Controller {
	return &Controller{
		broker:   b,
		database: db,
		metric:   m,
	}
}

// Process handles one websocket connection until it closes.
func (c *Controller) Process(sock socket.Socket) error {
	c.metric.IncrementWebSocketConnections()
	defer c.metric.DecrementWebSocketConnections()

	// 01. Build the context for the response goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 02. Register the user. The socket connection is the single truth of
	// presence; registration lasts exactly as long as the connection.
	userID, err := c.register(sock)
	if err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}

	if err := c.broker.Publish(broker.Client, broker.REGISTER, message.Register{
		UserID: userID,
	}); err != nil {
		return fmt.Errorf("failed to publish register message: %w", err)
	}
	defer func() {
		if err := c.broker.Publish(broker.Client, broker.DEREGISTER, message.Deregister{
			UserID: userID,
		}); err != nil {
			log.Printf("failed to publish deregister message: %v", err)
		}
	}()

	c.metric.IncrementRegisteredUsers()
	defer c.metric.DecrementRegisteredUsers()

	go c.sendResponse(ctx, sock, userID)

	if err := c.receiveRequest(sock, userID); err != nil {
		return fmt.Errorf("failed to receive request: %w", err)
	}
	return nil
}

// register reads the first request on the connection, which must be REGISTER.
func (c *Controller) register(sock socket.Socket) (string, error) {
	var req request.Common
	if err := sock.ReadJSON(&req); err != nil {
		return "", fmt.Errorf("failed to read registration message: %w", err)
	}
	if req.Type != request.REGISTER {
		return "", fmt.Errorf("expected type '%s', got '%s'", request.REGISTER, req.Type)
	}
	var payload request.Register
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return "", fmt.Errorf("failed to unmarshal registration payload: %w", err)
	}
	if payload.UserID == "" {
		return "", errors.New("empty user id")
	}

	// Reject a second connection for the same user.
	if _, err := c.database.FindClientInfoByID(payload.UserID); err == nil {
		return "", fmt.Errorf("%s: %w", payload.UserID, database.ErrClientAlreadyExists)
	} else if !errors.Is(err, database.ErrClientNotFound) {
		return "", fmt.Errorf("failed to find client info: %w", err)
	}

	res := response.Register{
		Type:    response.REGISTER,
		Message: "registered",
	}
	if err := sock.WriteJSON(res); err != nil {
		return "", fmt.Errorf("failed to send registration response: %w", err)
	}

	return payload.UserID, nil
}

// sendResponse forwards messages addressed to the user onto the socket.
func (c *Controller) sendResponse(ctx context.Context, sock socket.Socket, userID string) {
	detail := broker.Detail(userID)
	sub := c.broker.Subscribe(broker.ClientSocket, detail)
	defer func() {
		if err := c.broker.Unsubscribe(broker.ClientSocket, detail, sub); err != nil {
			log.Printf("Error occurs in unsubscribe: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sub.Receive():
			if err := sock.WriteJSON(msg); err != nil {
				log.Printf("Failed to send response: %v", err)
				return
			}
		}
	}
}

// receiveRequest receives requests from the websocket and dispatches them.
func (c *Controller) receiveRequest(sock socket.Socket, userID string) error {
	for {
		var req request.Common
		if err := sock.ReadJSON(&req); err != nil {
			return fmt.Errorf("failed to parse common message: %w", err)
		}
		if err := c.handleRequest(req, userID); err != nil {
			log.Printf("Error handling request: %v", err)
			continue
		}
	}
}

// handleRequest parses the request type and calls the corresponding handler.
func (c *Controller) handleRequest(req request.Common, userID string) error {
	var err error
	switch req.Type {
	case request.JOIN:
		err = c.handleJoin(req, userID)
	case request.SIGNAL:
		err = c.handleSignal(req, userID)
	case request.INVITE:
		err = c.handleInvite(req, userID)
	case request.LEAVE:
		err = c.handleLeave(req, userID)
	default:
		err = fmt.Errorf("invalid request type: %s", req.Type)
	}
	return err
}

// handleJoin handles the join event. The coordinator does the room
// bookkeeping and emits the membership envelopes.
func (c *Controller) handleJoin(req request.Common, userID string) error {
	var payload request.Join
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal join payload: %w", err)
	}
	if err := c.broker.Publish(broker.Client, broker.ROOM, message.Join{
		RoomID: payload.RoomID,
		UserID: userID,
	}); err != nil {
		return fmt.Errorf("failed to publish join message: %w", err)
	}
	return nil
}

// handleSignal relays an envelope to the other room member. The relay never
// interprets the envelope.
func (c *Controller) handleSignal(req request.Common, userID string) error {
	var payload request.Signal
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal signal payload: %w", err)
	}

	// The sender must be a member of the room it signals into.
	members, err := c.database.FindMemberInfoByRoomID(payload.RoomID)
	if err != nil {
		return fmt.Errorf("failed to list room members: %w", err)
	}
	isMember := false
	for _, m := range members {
		if m.Is(userID) {
			isMember = true
			break
		}
	}
	if !isMember {
		return fmt.Errorf("unauthorized signal from %s into %s", userID, payload.RoomID)
	}

	counterpart, err := c.database.FindCounterpart(payload.RoomID, userID)
	if err != nil {
		// No peer yet; best-effort relay drops the envelope.
		return nil
	}

	msg := response.Signal{
		Type:     response.SIGNAL,
		RoomID:   payload.RoomID,
		Envelope: payload.Envelope,
	}
	if err := c.broker.Publish(broker.ClientSocket, broker.Detail(counterpart.UserID), msg); err != nil {
		return fmt.Errorf("failed to publish signal message: %w", err)
	}
	c.metric.CountRelayedEnvelope(payload.Envelope.Type)
	return nil
}

// handleInvite delivers an invitation to the recipient's personal channel.
// Delivery is at-most-once, best-effort; an offline recipient drops it.
func (c *Controller) handleInvite(req request.Common, userID string) error {
	var payload request.Invite
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal invite payload: %w", err)
	}
	if payload.Invitation.CallerID != userID {
		return fmt.Errorf("invite caller %s does not match sender %s", payload.Invitation.CallerID, userID)
	}

	if _, err := c.database.FindClientInfoByID(payload.Invitation.RecipientID); err != nil {
		if errors.Is(err, database.ErrClientNotFound) {
			log.Printf("invite recipient %s is offline, dropping", payload.Invitation.RecipientID)
			return nil
		}
		return fmt.Errorf("failed to find recipient: %w", err)
	}

	msg := response.Notice{
		Type:       response.NOTICE,
		Invitation: payload.Invitation,
	}
	if err := c.broker.Publish(broker.ClientSocket, broker.Detail(payload.Invitation.RecipientID), msg); err != nil {
		return fmt.Errorf("failed to publish notice message: %w", err)
	}
	c.metric.CountInviteDispatched()
	return nil
}

// handleLeave handles the leave event.
func (c *Controller) handleLeave(req request.Common, userID string) error {
	var payload request.Leave
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal leave payload: %w", err)
	}
	if err := c.broker.Publish(broker.Client, broker.ROOM, message.Leave{
		RoomID: payload.RoomID,
		UserID: userID,
	}); err != nil {
		return fmt.Errorf("failed to publish leave message: %w", err)
	}
	return nil
}
