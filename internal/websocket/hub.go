// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/logging"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/metrics"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// roomMessage pairs a frame with its destination room.
type roomMessage struct {
	room string
	msg  Message
}

// Hub routes event pushes to room members. Rooms are tenant keys
// ({orgId}:{projectId}); a client is in exactly one room at a time.
//
// Serve implements suture.Service so the supervisor restarts the hub loop
// if it ever fails.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan roomMessage
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan roomMessage, 1024),
	}
}

// Serve runs the hub loop until the context is canceled. Lifecycle events
// take priority over broadcasts so membership is settled before delivery.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case client := <-h.register:
			h.add(client)
			continue
		case client := <-h.unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.remove(client)
		case rm := <-h.broadcast:
			h.deliver(rm)
		}
	}
}

// NotifyEvents pushes persisted events to the tenant's room. Implements
// the queue consumer's fan-out interface. A full hub channel drops the
// push; realtime delivery is best-effort.
func (h *Hub) NotifyEvents(orgID, projectID string, events []models.Event) {
	room := models.TenantKey(orgID, projectID)

	h.mu.RLock()
	empty := len(h.rooms[room]) == 0
	h.mu.RUnlock()
	if empty {
		return
	}

	for i := range events {
		select {
		case h.broadcast <- roomMessage{room: room, msg: newEventMessage(&events[i])}:
		default:
			logging.Warn().Str("room", room).Msg("Broadcast channel full, dropping event push")
			return
		}
	}
}

// ClientCount returns the number of connected clients across all rooms.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, members := range h.rooms {
		n += len(members)
	}
	return n
}

// RoomCount returns the number of non-empty rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	members, ok := h.rooms[client.room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[client.room] = members
	}
	members[client] = struct{}{}
	total := len(members)
	h.mu.Unlock()

	metrics.RealtimeClients.Inc()

	logging.Info().
		Str("room", client.room).
		Int("room_clients", total).
		Msg("Realtime client joined")
}

func (h *Hub) remove(client *Client) {
	removed := false
	h.mu.Lock()
	if members, ok := h.rooms[client.room]; ok {
		if _, present := members[client]; present {
			delete(members, client)
			client.closeSend()
			removed = true
		}
		if len(members) == 0 {
			delete(h.rooms, client.room)
		}
	}
	h.mu.Unlock()

	if removed {
		metrics.RealtimeClients.Dec()
		logging.Info().Str("room", client.room).Msg("Realtime client left")
	}
}

// move re-homes a client after a join-room request.
func (h *Hub) move(client *Client, room string) {
	h.mu.Lock()
	if members, ok := h.rooms[client.room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, client.room)
		}
	}
	client.room = room
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[client] = struct{}{}
	h.mu.Unlock()
}

// deliver fans a frame out to the room in client id order. Clients with a
// full send buffer are dropped.
func (h *Hub) deliver(rm roomMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[rm.room]
	if len(members) == 0 {
		return
	}

	clients := make([]*Client, 0, len(members))
	for client := range members {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, client := range clients {
		if client.trySend(rm.msg) {
			metrics.RealtimeEventsPushed.Inc()
			continue
		}
		// Slow consumer: disconnect rather than block the room.
		metrics.RealtimeClients.Dec()
		client.closeSend()
		delete(members, client)
		logging.Warn().Str("room", rm.room).Msg("Dropping slow realtime client")
	}
	if len(members) == 0 {
		delete(h.rooms, rm.room)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	closed := 0
	for room, members := range h.rooms {
		for client := range members {
			client.closeSend()
			metrics.RealtimeClients.Dec()
			closed++
		}
		delete(h.rooms, room)
	}
	logging.Info().
		Str("component", "websocket-hub").
		Int("clients_closed", closed).
		Msg("Realtime hub stopped")
}
