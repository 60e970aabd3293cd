// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package gateway

// Inbound event payloads. Validation tags are enforced by the dispatcher
// before the handler runs; the body length bound applies after trimming.

// MessagePayload carries a chat message. An empty room targets the configured
// default room.
type MessagePayload struct {
	Room string `json:"room" validate:"omitempty,roomname"`
	Body string `json:"body" validate:"required,min=1,max=1000"`
}

// RoomPayload names a room for join and leave, where the target must be
// explicit.
type RoomPayload struct {
	Room string `json:"room" validate:"required,roomname"`
}

// HistoryRequest asks for a room's retained messages. An empty room targets
// the configured default room.
type HistoryRequest struct {
	Room string `json:"room" validate:"omitempty,roomname"`
}

// TypingPayload toggles the sender's typing indicator. An empty room targets
// the configured default room.
type TypingPayload struct {
	Room     string `json:"room" validate:"omitempty,roomname"`
	IsTyping bool   `json:"isTyping"`
}
