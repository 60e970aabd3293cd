// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package gateway

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mfeltz/relaygate/internal/models"
	"github.com/mfeltz/relaygate/internal/validation"
)

// Coordinator implements the chat operations behind the event dispatch table.
// All cross-connection state lives in the hub; the coordinator supplies the
// operation semantics: validation, membership checks, history replay, and who
// receives which broadcast.
type Coordinator struct {
	hub *Hub
}

// NewCoordinator creates a coordinator bound to a hub.
func NewCoordinator(hub *Hub) *Coordinator {
	return &Coordinator{hub: hub}
}

// SendMessage validates, retains, and fans out a chat message to the target
// room, sender included. An empty room targets the default room. The body is
// trimmed before the length bound applies.
func (co *Coordinator) SendMessage(c *Client, payload MessagePayload) error {
	payload.Body = strings.TrimSpace(payload.Body)
	if err := validation.ValidateStruct(payload); err != nil {
		return Validationf("%s", err.Message())
	}

	room := payload.Room
	if room == "" {
		room = co.hub.DefaultRoom()
	}
	if !co.hub.IsMember(c, room) {
		return Forbiddenf("not a member of room %q", room)
	}

	p := c.Principal()
	msg := models.ChatMessage{
		ID:              uuid.NewString(),
		SenderSubjectID: p.SubjectID,
		SenderEmail:     p.Email,
		Body:            payload.Body,
		Room:            room,
		Timestamp:       time.Now().UTC(),
		Kind:            models.MessageKindChat,
	}

	co.hub.AppendHistory(msg)
	co.hub.BroadcastRoom(room, models.Push{Event: models.EventMessage, Data: msg}, nil)
	return nil
}

// JoinRoom adds the client to a room. The joiner alone receives the room's
// retained history; the other members alone receive the membership notice.
// Joining a room twice replays history again but announces nothing.
func (co *Coordinator) JoinRoom(c *Client, payload RoomPayload) error {
	if err := validation.ValidateStruct(payload); err != nil {
		return Validationf("%s", err.Message())
	}

	p := c.Principal()
	if co.hub.Join(c, payload.Room) {
		co.hub.BroadcastRoom(payload.Room, models.Push{
			Event: models.EventUserJoinedRoom,
			Data:  models.RoomNotice{SubjectID: p.SubjectID, Email: p.Email, Room: payload.Room},
		}, c)
	}

	c.TrySend(models.Push{
		Event: models.EventMessageHistory,
		Data:  models.HistoryPayload{Room: payload.Room, Messages: co.hub.History(payload.Room)},
	})
	return nil
}

// LeaveRoom removes the client from a room and notifies the remaining
// members. Leaving a room the client is not in is a validation fault.
func (co *Coordinator) LeaveRoom(c *Client, payload RoomPayload) error {
	if err := validation.ValidateStruct(payload); err != nil {
		return Validationf("%s", err.Message())
	}

	if !co.hub.Leave(c, payload.Room) {
		return Validationf("not a member of room %q", payload.Room)
	}

	p := c.Principal()
	co.hub.BroadcastRoom(payload.Room, models.Push{
		Event: models.EventUserLeftRoom,
		Data:  models.RoomNotice{SubjectID: p.SubjectID, Email: p.Email, Room: payload.Room},
	}, nil)
	return nil
}

// SetTyping toggles the sender's typing indicator; everyone in the room
// except the sender is notified. An empty room targets the default room.
func (co *Coordinator) SetTyping(c *Client, payload TypingPayload) error {
	if err := validation.ValidateStruct(payload); err != nil {
		return Validationf("%s", err.Message())
	}

	room := payload.Room
	if room == "" {
		room = co.hub.DefaultRoom()
	}
	if !co.hub.SetTyping(c, room, payload.IsTyping) {
		return Forbiddenf("not a member of room %q", room)
	}
	return nil
}

// OnlineUsers replies to the requester with the current online member list.
func (co *Coordinator) OnlineUsers(c *Client) error {
	c.TrySend(models.Push{
		Event: models.EventOnlineUsers,
		Data:  models.OnlineUsersPayload{Users: co.hub.OnlineMembers()},
	})
	return nil
}

// MessageHistory replies to the requester with a room's retained messages,
// oldest first. Membership is not required to read history; an empty room
// targets the default room.
func (co *Coordinator) MessageHistory(c *Client, payload HistoryRequest) error {
	if err := validation.ValidateStruct(payload); err != nil {
		return Validationf("%s", err.Message())
	}

	room := payload.Room
	if room == "" {
		room = co.hub.DefaultRoom()
	}
	c.TrySend(models.Push{
		Event: models.EventMessageHistory,
		Data:  models.HistoryPayload{Room: room, Messages: co.hub.History(room)},
	})
	return nil
}
