// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package models

import "time"

// MessageKindChat is the only message kind the gateway currently produces.
// The field exists on the wire so clients can distinguish future system
// messages without a format change.
const MessageKindChat = "chat"

// ChatMessage is an immutable chat message. It is retained only in the
// bounded per-room history buffer; there is no durable persistence.
type ChatMessage struct {
	ID              string    `json:"id"`
	SenderSubjectID string    `json:"senderSubjectId"`
	SenderEmail     string    `json:"senderEmail"`
	Body            string    `json:"body"`
	Room            string    `json:"room"`
	Timestamp       time.Time `json:"timestamp"`
	Kind            string    `json:"kind"`
}

// PresenceStatus is the tracked availability of a subject.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceOffline PresenceStatus = "offline"
)

// PresenceRecord tracks one subject's availability process-wide. A subject is
// offline only while it has zero live connections.
type PresenceRecord struct {
	SubjectID  string         `json:"subjectId"`
	Email      string         `json:"email"`
	Status     PresenceStatus `json:"status"`
	LastSeenAt *time.Time     `json:"lastSeenAt,omitempty"`
}

// TypingNotice is broadcast to a room when a member starts or stops typing,
// and when a typing member disconnects without clearing the indicator.
type TypingNotice struct {
	SubjectID string `json:"subjectId"`
	Email     string `json:"email"`
	Room      string `json:"room"`
	IsTyping  bool   `json:"isTyping"`
}

// RoomNotice announces a membership change to a room's remaining members.
type RoomNotice struct {
	SubjectID string `json:"subjectId"`
	Email     string `json:"email"`
	Room      string `json:"room"`
}

// HistoryPayload carries a room's replayed messages to a single connection.
type HistoryPayload struct {
	Room     string        `json:"room"`
	Messages []ChatMessage `json:"messages"`
}

// OnlineUsersPayload carries the current online member list.
type OnlineUsersPayload struct {
	Users []PresenceRecord `json:"users"`
}
