// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

// Package websocket implements the realtime channel: clients join their
// tenant's room and receive persisted events as they land. Delivery is
// best-effort; a slow client is disconnected rather than allowed to stall
// the hub.
package websocket

import (
	"time"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// Message types exchanged with clients.
const (
	MessageTypeNewEvent = "new_event"
	MessageTypeJoinRoom = "join-room"
	MessageTypeJoined   = "joined"
	MessageTypeError    = "error"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
)

// Message is the wire frame for both directions.
type Message struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// NewEventData is the payload of a new_event push.
type NewEventData struct {
	EventName  string            `json:"eventName"`
	UserID     string            `json:"userId"`
	Timestamp  time.Time         `json:"timestamp"`
	Properties models.Properties `json:"properties,omitempty"`
}

// JoinRoomData is the payload of a client's join-room request.
type JoinRoomData struct {
	OrgID     string `json:"orgId"`
	ProjectID string `json:"projectId"`
}

// newEventMessage builds the push frame for one persisted event.
func newEventMessage(event *models.Event) Message {
	return Message{
		Type: MessageTypeNewEvent,
		Data: NewEventData{
			EventName:  event.EventName,
			UserID:     event.UserID,
			Timestamp:  event.Timestamp,
			Properties: event.Properties,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func errorMessage(detail string) Message {
	return Message{
		Type:      MessageTypeError,
		Data:      map[string]string{"message": detail},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
