// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package gateway

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mfeltz/relaygate/internal/history"
	"github.com/mfeltz/relaygate/internal/logging"
	"github.com/mfeltz/relaygate/internal/metrics"
	"github.com/mfeltz/relaygate/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path
	// (e.g. SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was
	// exceeded. This may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Hub maintains the set of live connections and all cross-connection state:
// room membership, per-subject presence, and per-room typing indicators.
// Lifecycle events flow through the Register/Unregister channels and are
// applied by the run loop; room and presence mutations triggered by event
// handlers take the hub mutex directly.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	// presence and conns are keyed by subject ID; a subject is online while
	// it has at least one live connection.
	presence map[string]models.PresenceRecord
	conns    map[string]int

	// typing maps room -> subject ID -> email for subjects with an active
	// typing indicator in that room.
	typing map[string]map[string]string

	history     *history.Store
	defaultRoom string

	running atomic.Bool
}

// NewHub creates a hub with the given history store and default room. Every
// admitted connection auto-joins the default room.
func NewHub(store *history.Store, defaultRoom string) *Hub {
	return &Hub{
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
		clients:     make(map[*Client]struct{}),
		rooms:       make(map[string]map[*Client]struct{}),
		presence:    make(map[string]models.PresenceRecord),
		conns:       make(map[string]int),
		typing:      make(map[string]map[string]string),
		history:     store,
		defaultRoom: defaultRoom,
	}
}

// DefaultRoom returns the room every connection auto-joins.
func (h *Hub) DefaultRoom() string {
	return h.defaultRoom
}

// Running reports whether the run loop is active. Used by readiness checks.
func (h *Hub) Running() bool {
	return h.running.Load()
}

// RunWithContext runs the hub's lifecycle loop until the context is canceled.
// Designed for use under suture supervision.
//
// Priority-based selection keeps behavior predictable when multiple channels
// are ready simultaneously: shutdown first, then lifecycle events.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		// Priority 1: shutdown (non-blocking check).
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: lifecycle events (blocking wait).
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.admit(client)

		case client := <-h.Unregister:
			h.drop(client)
		}
	}
}

// admit wires a freshly authenticated connection into the hub: track the
// connection, mark the subject online if this is its first connection, and
// auto-join the default room. The newcomer receives the default room's
// history and the current online member list.
func (h *Hub) admit(c *Client) {
	p := c.principal

	h.mu.Lock()
	h.clients[c] = struct{}{}
	metrics.ConnectionsActive.Inc()

	h.conns[p.SubjectID]++
	if h.conns[p.SubjectID] == 1 {
		record := models.PresenceRecord{
			SubjectID: p.SubjectID,
			Email:     p.Email,
			Status:    models.PresenceOnline,
		}
		h.presence[p.SubjectID] = record

		h.broadcastAllLocked(models.Push{Event: models.EventPresenceUpdate, Data: record}, nil)
		h.broadcastAllLocked(models.Push{
			Event: models.EventUserJoined,
			Data:  models.RoomNotice{SubjectID: p.SubjectID, Email: p.Email},
		}, c)
	}

	h.joinLocked(c, h.defaultRoom)
	h.broadcastRoomLocked(h.defaultRoom, models.Push{
		Event: models.EventUserJoinedRoom,
		Data:  models.RoomNotice{SubjectID: p.SubjectID, Email: p.Email, Room: h.defaultRoom},
	}, c)

	total := len(h.clients)
	h.mu.Unlock()

	c.TrySend(models.Push{
		Event: models.EventMessageHistory,
		Data:  models.HistoryPayload{Room: h.defaultRoom, Messages: h.history.Recent(h.defaultRoom)},
	})
	c.TrySend(models.Push{
		Event: models.EventOnlineUsers,
		Data:  models.OnlineUsersPayload{Users: h.OnlineMembers()},
	})

	logging.Info().
		Str("subject_id", p.SubjectID).
		Int("total_clients", total).
		Msg("client connected")
}

// drop removes a connection from all hub state. When the subject's last
// connection goes away, its typing indicators are cleared with a broadcast
// and its presence flips to offline with lastSeenAt set.
func (h *Hub) drop(c *Client) {
	p := c.principal

	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	c.closeSend()
	metrics.ConnectionsActive.Dec()

	for room, members := range h.rooms {
		if _, ok := members[c]; ok {
			delete(members, c)
			if len(members) == 0 {
				h.removeRoomLocked(room)
			}
		}
	}

	h.conns[p.SubjectID]--
	if h.conns[p.SubjectID] <= 0 {
		delete(h.conns, p.SubjectID)

		// Clear dangling typing indicators so rooms never show a typing
		// member who is gone.
		for room, subjects := range h.typing {
			if email, ok := subjects[p.SubjectID]; ok {
				delete(subjects, p.SubjectID)
				if len(subjects) == 0 {
					delete(h.typing, room)
				}
				h.broadcastRoomLocked(room, models.Push{
					Event: models.EventTyping,
					Data:  models.TypingNotice{SubjectID: p.SubjectID, Email: email, Room: room, IsTyping: false},
				}, nil)
			}
		}

		now := time.Now().UTC()
		record := models.PresenceRecord{
			SubjectID:  p.SubjectID,
			Email:      p.Email,
			Status:     models.PresenceOffline,
			LastSeenAt: &now,
		}
		h.presence[p.SubjectID] = record

		h.broadcastAllLocked(models.Push{Event: models.EventPresenceUpdate, Data: record}, nil)
		h.broadcastAllLocked(models.Push{
			Event: models.EventUserLeft,
			Data:  models.RoomNotice{SubjectID: p.SubjectID, Email: p.Email},
		}, nil)
	}

	total := len(h.clients)
	h.mu.Unlock()

	logging.Info().
		Str("subject_id", p.SubjectID).
		Int("total_clients", total).
		Msg("client disconnected")
}

// Join adds the client to a room. Returns false if it was already a member.
// Membership broadcasts are the coordinator's responsibility so that the
// joiner-only history replay and the userJoinedRoom notice stay ordered.
func (h *Hub) Join(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.joinLocked(c, room)
}

func (h *Hub) joinLocked(c *Client, room string) bool {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	if _, ok := members[c]; ok {
		return false
	}
	members[c] = struct{}{}
	return true
}

// Leave removes the client from a room. Returns false if it was not a member.
// A typing indicator left behind by the subject is cleared with a broadcast.
func (h *Hub) Leave(c *Client, room string) bool {
	p := c.principal

	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[c]; !ok {
		return false
	}
	delete(members, c)
	if len(members) == 0 {
		h.removeRoomLocked(room)
	}

	if subjects, ok := h.typing[room]; ok {
		if email, ok := subjects[p.SubjectID]; ok {
			delete(subjects, p.SubjectID)
			if len(subjects) == 0 {
				delete(h.typing, room)
			}
			h.broadcastRoomLocked(room, models.Push{
				Event: models.EventTyping,
				Data:  models.TypingNotice{SubjectID: p.SubjectID, Email: email, Room: room, IsTyping: false},
			}, nil)
		}
	}
	return true
}

// removeRoomLocked forgets an emptied room. The default room keeps its
// history so reconnecting clients still get a replay; any other room's buffer
// goes with its last member, which bounds memory across room churn.
func (h *Hub) removeRoomLocked(room string) {
	delete(h.rooms, room)
	if room != h.defaultRoom {
		h.history.DropRoom(room)
	}
}

// IsMember reports whether the client is currently in the room.
func (h *Hub) IsMember(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	_, ok = members[c]
	return ok
}

// SetTyping updates the subject's typing indicator in a room and notifies the
// other members. Returns false if the client is not a member of the room.
func (h *Hub) SetTyping(c *Client, room string, isTyping bool) bool {
	p := c.principal

	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[c]; !ok {
		return false
	}

	subjects, ok := h.typing[room]
	if isTyping {
		if !ok {
			subjects = make(map[string]string)
			h.typing[room] = subjects
		}
		subjects[p.SubjectID] = p.Email
	} else if ok {
		delete(subjects, p.SubjectID)
		if len(subjects) == 0 {
			delete(h.typing, room)
		}
	}

	h.broadcastRoomLocked(room, models.Push{
		Event: models.EventTyping,
		Data:  models.TypingNotice{SubjectID: p.SubjectID, Email: p.Email, Room: room, IsTyping: isTyping},
	}, c)
	return true
}

// TypingSubjects returns the subject IDs with an active typing indicator in
// the room, sorted for stable output.
func (h *Hub) TypingSubjects(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subjects := make([]string, 0, len(h.typing[room]))
	for id := range h.typing[room] {
		subjects = append(subjects, id)
	}
	sort.Strings(subjects)
	return subjects
}

// PresenceFor returns the subject's presence record, if it has ever connected.
func (h *Hub) PresenceFor(subjectID string) (models.PresenceRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	record, ok := h.presence[subjectID]
	return record, ok
}

// OnlineMembers returns presence records for every subject currently online,
// sorted by subject ID for stable output.
func (h *Hub) OnlineMembers() []models.PresenceRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]models.PresenceRecord, 0, len(h.presence))
	for _, record := range h.presence {
		if record.Status != models.PresenceOffline {
			users = append(users, record)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].SubjectID < users[j].SubjectID
	})
	return users
}

// History returns the room's retained messages, oldest first.
func (h *Hub) History(room string) []models.ChatMessage {
	return h.history.Recent(room)
}

// AppendHistory retains a message in the room's bounded buffer.
func (h *Hub) AppendHistory(msg models.ChatMessage) {
	h.history.Append(msg)
}

// BroadcastRoom fans a push out to the room's members, excluding at most one
// client (typically the sender).
func (h *Hub) BroadcastRoom(room string, p models.Push, exclude *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastRoomLocked(room, p, exclude)
}

// broadcastRoomLocked requires h.mu held. Recipients are copied out and
// sorted by client ID so delivery order is deterministic; sends never block,
// and a full buffer tears the slow connection down via TrySend.
func (h *Hub) broadcastRoomLocked(room string, p models.Push, exclude *Client) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}

	targets := make([]*Client, 0, len(members))
	for c := range members {
		if c == exclude {
			continue
		}
		targets = append(targets, c)
	}
	sort.Slice(targets, func(i, j int) bool {
		return targets[i].id < targets[j].id
	})

	metrics.MessagesBroadcast.WithLabelValues(p.Event).Inc()
	metrics.BroadcastFanout.Observe(float64(len(targets)))

	for _, c := range targets {
		c.TrySend(p)
	}
}

// broadcastAllLocked requires h.mu held. Same policy as room broadcast, over
// every live connection.
func (h *Hub) broadcastAllLocked(p models.Push, exclude *Client) {
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c == exclude {
			continue
		}
		targets = append(targets, c)
	}
	sort.Slice(targets, func(i, j int) bool {
		return targets[i].id < targets[j].id
	})

	metrics.MessagesBroadcast.WithLabelValues(p.Event).Inc()
	metrics.BroadcastFanout.Observe(float64(len(targets)))

	for _, c := range targets {
		c.TrySend(p)
	}
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// logGracefulShutdown closes all clients and logs structured shutdown info.
// ctx.Err() is not logged as an error because cancellation is the expected
// shutdown path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	count := h.ClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "gateway-hub").
		Str("reason", string(shutdownReason(ctx))).
		Int("clients_closed", count).
		Msg("gateway hub stopped")
}

func shutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// closeAllClients closes every connection in ID order for consistent
// shutdown behavior.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, c := range clients {
		c.closeSend()
		delete(h.clients, c)
	}
	h.rooms = make(map[string]map[*Client]struct{})
	h.typing = make(map[string]map[string]string)
	h.conns = make(map[string]int)
	metrics.ConnectionsActive.Set(0)
}
