// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/mfeltz/relaygate/internal/auth"
	"github.com/mfeltz/relaygate/internal/history"
	"github.com/mfeltz/relaygate/internal/models"
	"github.com/mfeltz/relaygate/internal/ratelimit"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// wirePush mirrors the outbound frame shape for decoding in tests.
type wirePush struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type gatewayFixture struct {
	server   *httptest.Server
	verifier *auth.Verifier
	hub      *Hub
}

func newGatewayFixture(t *testing.T, limiter *ratelimit.Limiter) *gatewayFixture {
	t.Helper()

	verifier, err := auth.NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	hub := NewHub(history.NewStore(history.DefaultLimit), "general")
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.RunWithContext(ctx) }()
	time.Sleep(10 * time.Millisecond)

	dispatcher := NewDispatcher(NewCoordinator(hub), limiter, false)
	handler := NewHandler(hub, auth.NewAuthenticator(verifier), dispatcher, []string{"*"})
	server := httptest.NewServer(handler)

	t.Cleanup(func() {
		server.Close()
		cancel()
	})

	return &gatewayFixture{server: server, verifier: verifier, hub: hub}
}

func (f *gatewayFixture) token(t *testing.T, subjectID, email, role string) string {
	t.Helper()
	token, err := f.verifier.Sign(&auth.Principal{SubjectID: subjectID, Email: email, Role: role}, time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return token
}

func (f *gatewayFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http")

	header := http.Header{}
	if token != "" {
		header.Set(auth.HandshakeTokenHeader, token)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v (resp=%v)", err, resp)
	}
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, event string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	raw, err := json.Marshal(models.Frame{Event: event, Data: data})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// awaitEvent reads pushes until one matches the wanted event or the deadline
// expires. Unrelated pushes (presence, membership notices) are skipped.
func awaitEvent(t *testing.T, conn *websocket.Conn, event string) wirePush {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	if err := conn.SetReadDeadline(deadline); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", event, err)
		}
		var push wirePush
		if err := json.Unmarshal(raw, &push); err != nil {
			t.Fatalf("unmarshal push: %v", err)
		}
		if push.Event == event {
			return push
		}
	}
}

func TestHandler_RejectsUnauthenticated(t *testing.T) {
	f := newGatewayFixture(t, nil)

	tests := []struct {
		name  string
		token string
	}{
		{"no token", ""},
		{"garbage token", "not-a-jwt"},
		{"wrong secret", func() string {
			other, _ := auth.NewVerifier("ffffffffffffffffffffffffffffffff")
			tok, _ := other.Sign(&auth.Principal{SubjectID: "mallory"}, time.Hour)
			return tok
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http")
			header := http.Header{}
			if tt.token != "" {
				header.Set(auth.HandshakeTokenHeader, tt.token)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
			if err == nil {
				_ = conn.Close()
				t.Fatal("dial should fail without valid credentials")
			}
			if resp == nil || resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("response = %v, want 401", resp)
			}
			if resp != nil {
				_ = resp.Body.Close()
			}
		})
	}

	if f.hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, rejected peers must never reach the hub", f.hub.ClientCount())
	}
}

func TestHandler_TokenViaQueryParam(t *testing.T) {
	f := newGatewayFixture(t, nil)
	token := f.token(t, "alice", "alice@example.com", "")

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial with query token: %v", err)
	}
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	awaitEvent(t, conn, models.EventMessageHistory)
}

func TestHandler_ConnectReceivesHistoryAndOnlineUsers(t *testing.T) {
	f := newGatewayFixture(t, nil)
	conn := f.dial(t, f.token(t, "alice", "alice@example.com", ""))

	push := awaitEvent(t, conn, models.EventMessageHistory)
	var hist models.HistoryPayload
	if err := json.Unmarshal(push.Data, &hist); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if hist.Room != "general" {
		t.Errorf("history room = %q, want the default room", hist.Room)
	}

	push = awaitEvent(t, conn, models.EventOnlineUsers)
	var users models.OnlineUsersPayload
	if err := json.Unmarshal(push.Data, &users); err != nil {
		t.Fatalf("unmarshal online users: %v", err)
	}
	if len(users.Users) != 1 || users.Users[0].SubjectID != "alice" {
		t.Errorf("online users = %+v, want just alice", users.Users)
	}
}

// TestHandler_RoomMessageScenario covers the full path: two subjects connect,
// both join "ops", one speaks, the other receives the message with all fields
// populated.
func TestHandler_RoomMessageScenario(t *testing.T) {
	f := newGatewayFixture(t, nil)

	connA := f.dial(t, f.token(t, "alice", "alice@example.com", ""))
	connB := f.dial(t, f.token(t, "bob", "bob@example.com", ""))
	awaitEvent(t, connA, models.EventOnlineUsers)
	awaitEvent(t, connB, models.EventOnlineUsers)

	sendFrame(t, connA, models.EventJoinRoom, RoomPayload{Room: "ops"})
	awaitEvent(t, connA, models.EventMessageHistory)
	sendFrame(t, connB, models.EventJoinRoom, RoomPayload{Room: "ops"})
	awaitEvent(t, connB, models.EventMessageHistory)

	sendFrame(t, connA, models.EventMessage, MessagePayload{Room: "ops", Body: "hello"})

	push := awaitEvent(t, connB, models.EventMessage)
	var msg models.ChatMessage
	if err := json.Unmarshal(push.Data, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	if msg.Body != "hello" || msg.Room != "ops" || msg.SenderSubjectID != "alice" ||
		msg.SenderEmail != "alice@example.com" || msg.Kind != models.MessageKindChat {
		t.Errorf("unexpected message: %+v", msg)
	}
	if msg.ID == "" || msg.Timestamp.IsZero() {
		t.Errorf("message missing ID or timestamp: %+v", msg)
	}
}

// TestHandler_RateLimitClosesConnection verifies the denial envelope arrives
// and the connection is closed shortly after the grace period.
func TestHandler_RateLimitClosesConnection(t *testing.T) {
	limiter := ratelimit.New(1, 100)
	defer limiter.Stop()
	f := newGatewayFixture(t, limiter)

	conn := f.dial(t, f.token(t, "alice", "alice@example.com", ""))
	awaitEvent(t, conn, models.EventOnlineUsers)

	sendFrame(t, conn, models.EventGetOnlineUsers, nil)
	awaitEvent(t, conn, models.EventOnlineUsers)

	sendFrame(t, conn, models.EventGetOnlineUsers, nil)
	push := awaitEvent(t, conn, models.EventRateLimitError)
	var env models.ErrorEnvelope
	if err := json.Unmarshal(push.Data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Code != CodeRateLimit {
		t.Errorf("code = %q, want %q", env.Code, CodeRateLimit)
	}

	// The socket must be torn down within the grace period plus slack.
	if err := conn.SetReadDeadline(time.Now().Add(disconnectGrace + 2*time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return // closed as expected
		}
	}
}

func TestHandler_RejectsDisallowedOrigin(t *testing.T) {
	f := newGatewayFixture(t, nil)
	handler := NewHandler(f.hub, auth.NewAuthenticator(f.verifier), NewDispatcher(NewCoordinator(f.hub), nil, false), []string{"https://chat.example.com"})
	server := httptest.NewServer(handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	header := http.Header{}
	header.Set(auth.HandshakeTokenHeader, f.token(t, "alice", "alice@example.com", ""))
	header.Set("Origin", "https://evil.example.com")

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		_ = conn.Close()
		t.Fatal("dial should fail from a disallowed origin")
	}
	if resp != nil {
		_ = resp.Body.Close()
	}
}
