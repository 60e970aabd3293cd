// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package gateway

import (
	"github.com/goccy/go-json"

	"github.com/mfeltz/relaygate/internal/metrics"
	"github.com/mfeltz/relaygate/internal/models"
	"github.com/mfeltz/relaygate/internal/ratelimit"
)

// eventHandler decodes a frame's data and runs the operation. Returned errors
// are translated exactly once by the fault boundary.
type eventHandler func(d *Dispatcher, c *Client, data json.RawMessage) error

// dispatchTable maps inbound event names to their handlers. The table is
// explicit so the supported surface is readable in one place and adding an
// event is a deliberate act.
var dispatchTable = map[string]eventHandler{
	models.EventMessage: func(d *Dispatcher, c *Client, data json.RawMessage) error {
		var payload MessagePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return Validationf("invalid message payload")
		}
		return d.coordinator.SendMessage(c, payload)
	},
	models.EventJoinRoom: func(d *Dispatcher, c *Client, data json.RawMessage) error {
		var payload RoomPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return Validationf("invalid joinRoom payload")
		}
		return d.coordinator.JoinRoom(c, payload)
	},
	models.EventLeaveRoom: func(d *Dispatcher, c *Client, data json.RawMessage) error {
		var payload RoomPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return Validationf("invalid leaveRoom payload")
		}
		return d.coordinator.LeaveRoom(c, payload)
	},
	models.EventTyping: func(d *Dispatcher, c *Client, data json.RawMessage) error {
		var payload TypingPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return Validationf("invalid typing payload")
		}
		return d.coordinator.SetTyping(c, payload)
	},
	models.EventGetOnlineUsers: func(d *Dispatcher, c *Client, _ json.RawMessage) error {
		return d.coordinator.OnlineUsers(c)
	},
	models.EventGetMessageHistory: func(d *Dispatcher, c *Client, data json.RawMessage) error {
		var payload HistoryRequest
		if err := json.Unmarshal(data, &payload); err != nil {
			return Validationf("invalid getMessageHistory payload")
		}
		return d.coordinator.MessageHistory(c, payload)
	},
}

// Dispatcher routes inbound frames: rate limit first, then the dispatch
// table, with every error funneled through the fault boundary.
type Dispatcher struct {
	coordinator *Coordinator
	limiter     *ratelimit.Limiter
	boundary    faultBoundary
}

// NewDispatcher creates a dispatcher. A nil limiter disables rate limiting.
func NewDispatcher(coordinator *Coordinator, limiter *ratelimit.Limiter, development bool) *Dispatcher {
	return &Dispatcher{
		coordinator: coordinator,
		limiter:     limiter,
		boundary:    faultBoundary{development: development},
	}
}

// Handle processes one inbound frame. Called from the client's readPump, so
// frames from a single connection are handled strictly in order.
func (d *Dispatcher) Handle(c *Client, frame models.Frame) {
	metrics.EventsTotal.WithLabelValues(frame.Event).Inc()

	if d.limiter != nil {
		decision := d.limiter.Allow(c.Principal().SubjectID)
		if !decision.Allowed {
			d.reject(c, decision)
			return
		}
	}

	handler, ok := dispatchTable[frame.Event]
	if !ok {
		d.boundary.fail(c, frame.Event, Validationf("unknown event %q", frame.Event))
		return
	}

	if err := handler(d, c, frame.Data); err != nil {
		d.boundary.fail(c, frame.Event, err)
	}
}

// reject sends the rate-limit envelope and schedules the disconnect. The
// grace period lets the envelope flush before the socket closes.
func (d *Dispatcher) reject(c *Client, decision ratelimit.Decision) {
	metrics.RateLimitRejections.WithLabelValues(string(decision.Tier)).Inc()

	env := models.NewErrorEnvelope(CodeRateLimit, "rate limit exceeded, disconnecting")
	c.TrySend(models.Push{Event: models.EventRateLimitError, Data: env})
	c.CloseAfter(disconnectGrace)
}
