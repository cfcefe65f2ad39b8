// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/logging"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024 // inbound frames are tiny control messages
)

// clientIDCounter orders clients for deterministic room delivery.
var clientIDCounter atomic.Uint64

// Client bridges one websocket connection and the hub.
//
// sendMu serializes writes to and the single close of the send channel:
// the read pump queues replies while the hub may be dropping the client,
// so sends and the close must never race.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn

	sendMu     sync.Mutex
	send       chan Message
	sendClosed bool

	room string
	auth *models.AuthContext
}

// NewClient creates a client homed in its key's tenant room.
func NewClient(hub *Hub, conn *websocket.Conn, ac *models.AuthContext) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan Message, 256),
		room: models.TenantKey(ac.OrgID, ac.ProjectID),
		auth: ac,
	}
}

// Start registers the client and launches its pumps.
func (c *Client) Start() {
	c.hub.register <- c
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("Failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Msg("Unexpected websocket close")
			}
			return
		}

		switch msg.Type {
		case MessageTypePing:
			c.trySend(Message{Type: MessageTypePong})
		case MessageTypeJoinRoom:
			c.handleJoinRoom(&msg)
		}
	}
}

// handleJoinRoom validates the requested room against the client's key
// scope before moving it. A key bound to a project may only watch that
// project; an org-wide key may watch any project in its org.
func (c *Client) handleJoinRoom(msg *Message) {
	raw, err := json.Marshal(msg.Data)
	if err != nil {
		c.trySend(errorMessage("malformed join-room payload"))
		return
	}
	var req JoinRoomData
	if err := json.Unmarshal(raw, &req); err != nil || req.OrgID == "" || req.ProjectID == "" {
		c.trySend(errorMessage("join-room requires orgId and projectId"))
		return
	}

	if req.OrgID != c.auth.OrgID || (c.auth.ProjectID != "" && req.ProjectID != c.auth.ProjectID) {
		c.trySend(errorMessage("room is outside this key's scope"))
		return
	}

	room := models.TenantKey(req.OrgID, req.ProjectID)
	c.hub.move(c, room)
	c.trySend(Message{
		Type:      MessageTypeJoined,
		Data:      map[string]string{"room": room},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// trySend queues a frame without blocking. False means the buffer is full
// or already closed.
func (c *Client) trySend(msg Message) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel exactly once. Only the hub calls this.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
