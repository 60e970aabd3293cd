// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

// Package models defines the wire-level and domain types shared across the
// gateway: message frames, chat messages, presence records and metrics
// snapshots. Types here are plain data; behavior lives in the owning packages.
package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Inbound event names accepted on the chat channel.
const (
	EventMessage           = "message"
	EventJoinRoom          = "joinRoom"
	EventLeaveRoom         = "leaveRoom"
	EventTyping            = "typing"
	EventGetOnlineUsers    = "getOnlineUsers"
	EventGetMessageHistory = "getMessageHistory"
)

// Inbound event names accepted on the privileged metrics channel.
const (
	EventRefresh   = "refresh"
	EventSubscribe = "subscribe"
)

// Outbound event names.
const (
	EventUserJoined     = "userJoined"
	EventUserLeft       = "userLeft"
	EventUserJoinedRoom = "userJoinedRoom"
	EventUserLeftRoom   = "userLeftRoom"
	EventPresenceUpdate = "presenceUpdate"
	EventOnlineUsers    = "onlineUsers"
	EventMessageHistory = "messageHistory"
	EventError          = "error"
	EventRateLimitError = "rate_limit_error"
	EventInitial        = "initial"
	EventUpdate         = "update"
)

// Frame is one inbound message as read off the transport. Data stays raw
// until the dispatch table picks the decoder for the event.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Push is one outbound message. Data is marshaled at write time.
type Push struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// ErrorEnvelope is the uniform wire shape for every fault that crosses the
// boundary, expected or not.
type ErrorEnvelope struct {
	Error     bool   `json:"error"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// NewErrorEnvelope builds an error envelope stamped with the current UTC time.
func NewErrorEnvelope(code, message string) ErrorEnvelope {
	return ErrorEnvelope{
		Error:     true,
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
