// Package coordinator manages room membership and presence on the relay.
package coordinator

import (
	"errors"
	"log"

	"telecare/broker"
	"telecare/database"
	"telecare/metric"
	"telecare/types/client/response"
	"telecare/types/envelope"
	"telecare/types/message"
)

// Coordinator consumes client lifecycle events, keeps the database in sync
// and emits membership envelopes (user-joined, user-left) to room members.
type Coordinator struct {
	config   Config
	broker   *broker.Broker
	database database.Database
	metric   *metric.Metrics
}

// New creates a new instance of Coordinator.
func New(c Config, b *broker.Broker, db database.Database, m *metric.Metrics) *Coordinator {
	return &Coordinator{
		config:   c,
		broker:   b,
		database: db,
		metric:   m,
	}
}

// Start starts the Coordinator instance. Events are applied on the loop
// itself, in arrival order: a member that leaves a room and rejoins it
// must not have the rejoin overtaken by the leave.
func (c *Coordinator) Start() {
	registerEvent := c.broker.Subscribe(broker.Client, broker.REGISTER)
	deregisterEvent := c.broker.Subscribe(broker.Client, broker.DEREGISTER)
	roomEvent := c.broker.Subscribe(broker.Client, broker.ROOM)
	for {
		select {
		case event := <-registerEvent.Receive():
			c.handleRegister(event)
		case event := <-deregisterEvent.Receive():
			c.handleDeregister(event)
		case event := <-roomEvent.Receive():
			c.handleRoomEvent(event)
		}
	}
}

// handleRegister handles the register event. register event means that a
// client attached to the relay.
func (c *Coordinator) handleRegister(event any) {
	msg, ok := event.(message.Register)
	if !ok {
		log.Printf("error occurs in parsing register message %v", event)
		return
	}

	if err := c.database.CreateClientInfo(msg.UserID); err != nil {
		log.Printf("error occurs in creating client info %v", err)
		return
	}
}

// handleDeregister handles the deregister event. The socket connection is the
// single truth of presence, so a closed socket removes the user from every
// room it occupied and notifies the counterpart with user-left.
func (c *Coordinator) handleDeregister(event any) {
	msg, ok := event.(message.Deregister)
	if !ok {
		log.Printf("error occurs in parsing deregister message %v", event)
		return
	}

	memberships, err := c.database.FindMemberInfoByUserID(msg.UserID)
	if err != nil {
		log.Printf("error occurs in finding memberships %v", err)
		return
	}
	for _, m := range memberships {
		c.removeMember(m.RoomID, m.UserID)
	}

	if err := c.database.DeleteClientInfoByID(msg.UserID); err != nil {
		log.Printf("error occurs in deleting client info %v", err)
		return
	}
}

// handleRoomEvent dispatches one room membership event.
func (c *Coordinator) handleRoomEvent(event any) {
	switch msg := event.(type) {
	case message.Join:
		c.handleJoin(msg)
	case message.Leave:
		c.handleLeave(msg)
	default:
		log.Printf("error occurs in parsing room message %v", event)
	}
}

// handleJoin handles the join event. Each existing member is told about the
// joiner, and the joiner is told about each existing member, so the offer
// side learns of peer presence regardless of join order.
func (c *Coordinator) handleJoin(msg message.Join) {
	members, err := c.database.FindMemberInfoByRoomID(msg.RoomID)
	if err != nil {
		log.Printf("error occurs in finding room members %v", err)
		return
	}

	if _, err := c.database.CreateMemberInfo(msg.RoomID, msg.UserID); err != nil {
		if errors.Is(err, database.ErrRoomFull) {
			c.sendError(msg.UserID, "room is full")
			return
		}
		if errors.Is(err, database.ErrMemberAlreadyExists) {
			// join is idempotent
			return
		}
		log.Printf("error occurs in creating member info %v", err)
		return
	}

	if len(members) == 0 {
		c.metric.IncrementActiveRooms()
	}

	for _, m := range members {
		c.sendEnvelope(m.UserID, msg.RoomID, envelope.NewUserJoined(msg.UserID))
		if !c.config.SkipSelfNotifyOnJoin {
			c.sendEnvelope(msg.UserID, msg.RoomID, envelope.NewUserJoined(m.UserID))
		}
	}
}

// handleLeave handles the leave event.
func (c *Coordinator) handleLeave(msg message.Leave) {
	c.removeMember(msg.RoomID, msg.UserID)
}

// removeMember drops the membership row and notifies the remaining member.
func (c *Coordinator) removeMember(roomID, userID string) {
	counterpart, counterpartErr := c.database.FindCounterpart(roomID, userID)

	if err := c.database.DeleteMemberInfo(roomID, userID); err != nil {
		if !errors.Is(err, database.ErrMemberNotFound) {
			log.Printf("error occurs in deleting member info %v", err)
		}
		return
	}

	if counterpartErr == nil {
		c.sendEnvelope(counterpart.UserID, roomID, envelope.NewUserLeft(userID))
	}

	remaining, err := c.database.FindMemberInfoByRoomID(roomID)
	if err != nil {
		log.Printf("error occurs in finding room members %v", err)
		return
	}
	if len(remaining) == 0 {
		c.metric.DecrementActiveRooms()
	}
}

// sendEnvelope delivers a membership envelope to one user's socket.
func (c *Coordinator) sendEnvelope(userID, roomID string, env envelope.Envelope) {
	if err := c.broker.Publish(broker.ClientSocket, broker.Detail(userID), response.Signal{
		Type:     response.SIGNAL,
		RoomID:   roomID,
		Envelope: env,
	}); err != nil {
		log.Printf("error occurs in publishing envelope %v", err)
	}
}

// sendError delivers an error response to one user's socket.
func (c *Coordinator) sendError(userID, reason string) {
	if err := c.broker.Publish(broker.ClientSocket, broker.Detail(userID), response.Error{
		Type:    response.ERROR,
		Message: reason,
	}); err != nil {
		log.Printf("error occurs in publishing error %v", err)
	}
}
