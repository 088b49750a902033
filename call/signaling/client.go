// Package signaling owns the single relay connection of one client. Every
// room channel and invitation notice multiplexes over this connection; no
// other component dials the relay.
package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"telecare/pkg/socket"
	"telecare/types/client/request"
	"telecare/types/client/response"
	"telecare/types/invite"
)

var (
	// ErrNotConnected is returned when a request is sent before Connect.
	ErrNotConnected = errors.New("not connected to relay")

	// ErrAlreadyConnected is returned when Connect is called twice.
	ErrAlreadyConnected = errors.New("already connected to relay")
)

// Dialer opens the relay connection. Tests inject a fake socket here.
type Dialer func(url string) (socket.Socket, error)

// inbound is the superset of every relay response. The type field picks
// which of the remaining fields are meaningful.
type inbound struct {
	Type       string            `json:"type"`
	Message    string            `json:"message"`
	RoomID     string            `json:"room_id"`
	Envelope   json.RawMessage   `json:"envelope"`
	Invitation invite.Invitation `json:"invitation"`
}

// Client is the signaling connection of one user. It registers the user's
// presence, relays envelopes for the rooms the user joined and receives
// invitation notices.
type Client struct {
	config Config
	dial   Dialer

	mu       sync.Mutex
	conn     socket.Socket
	userID   string
	rooms    map[string]*Channel
	onNotice func(invite.Invitation)
	onDrop   func(error)
	closed   bool
}

// NewClient creates a Client. A nil dialer uses the real websocket dialer.
func NewClient(config Config, dial Dialer) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if dial == nil {
		dial = func(url string) (socket.Socket, error) {
			return socket.Dial(url)
		}
	}
	return &Client{
		config: config,
		dial:   dial,
		rooms:  map[string]*Channel{},
	}, nil
}

// OnNotice registers the callback for incoming invitation notices. Must be
// set before Connect.
func (c *Client) OnNotice(fn func(invite.Invitation)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNotice = fn
}

// OnDrop registers the callback invoked when the relay connection is lost.
// It does not fire on a local Close.
func (c *Client) OnDrop(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDrop = fn
}

// Connect dials the relay with bounded retries, registers the user's
// presence and starts the read loop. The relay rejects a second connection
// for the same user id, so Connect failing with a registration error means
// the user is signed in elsewhere.
func (c *Client) Connect(userID string) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	conn, err := c.dialWithRetry()
	if err != nil {
		return err
	}

	if err := c.register(conn, userID); err != nil {
		_ = conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.userID = userID
	c.closed = false
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

func (c *Client) dialWithRetry() (socket.Socket, error) {
	var lastErr error
	for attempt := 0; attempt < c.config.MaxDialAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(c.config.DialBackoff)
		}
		conn, err := c.dial(c.config.ServerURL)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		log.Printf("dial attempt %d failed: %v", attempt+1, err)
	}
	return nil, fmt.Errorf("failed to dial relay: %w", lastErr)
}

func (c *Client) register(conn socket.Socket, userID string) error {
	payload, err := json.Marshal(request.Register{UserID: userID})
	if err != nil {
		return fmt.Errorf("failed to marshal register: %w", err)
	}
	if err := conn.WriteJSON(request.Common{Type: request.REGISTER, Payload: payload}); err != nil {
		return fmt.Errorf("failed to send register: %w", err)
	}

	var reply inbound
	if err := conn.ReadJSON(&reply); err != nil {
		return fmt.Errorf("failed to read register reply: %w", err)
	}
	if reply.Type != response.REGISTER {
		return fmt.Errorf("registration rejected: %s", reply.Message)
	}
	return nil
}

// readLoop demultiplexes relay responses until the connection drops.
func (c *Client) readLoop(conn socket.Socket) {
	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			closed := c.closed
			onDrop := c.onDrop
			c.mu.Unlock()
			if !closed && onDrop != nil {
				onDrop(err)
			}
			return
		}

		switch msg.Type {
		case response.SIGNAL:
			c.mu.Lock()
			channel := c.rooms[msg.RoomID]
			c.mu.Unlock()
			if channel == nil {
				continue
			}
			channel.deliver(msg.Envelope)
		case response.NOTICE:
			c.mu.Lock()
			onNotice := c.onNotice
			c.mu.Unlock()
			if onNotice != nil {
				onNotice(msg.Invitation)
			}
		case response.ERROR:
			log.Printf("relay error: %s", msg.Message)
		default:
			log.Printf("unknown relay response type: %s", msg.Type)
		}
	}
}

// Invite dispatches a call invitation to the recipient's notification
// channel.
func (c *Client) Invite(invitation invite.Invitation) error {
	return c.send(request.INVITE, request.Invite{Invitation: invitation})
}

// Room returns the channel for the given room, creating it on first use.
// The channel rides this client's connection.
func (c *Client) Room(roomID string) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if channel, ok := c.rooms[roomID]; ok {
		return channel
	}
	channel := newChannel(c, roomID)
	c.rooms[roomID] = channel
	return channel
}

// UserID returns the registered user id.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Close tears down the relay connection. The relay deregisters the user's
// presence and removes room memberships on its side.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.closed = true
	c.rooms = map[string]*Channel{}
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *Client) send(requestType string, body any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", requestType, err)
	}
	if err := conn.WriteJSON(request.Common{Type: requestType, Payload: payload}); err != nil {
		return fmt.Errorf("failed to send %s: %w", requestType, err)
	}
	return nil
}

func (c *Client) dropRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, roomID)
}
