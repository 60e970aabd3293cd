// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"disabled", zerolog.Disabled},
		{"WARN", zerolog.WarnLevel},
		{"garbage", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("room", "general").Msg("member joined")

	out := buf.String()
	if !strings.Contains(out, `"room":"general"`) {
		t.Errorf("expected structured field in output, got %q", out)
	}
	if !strings.Contains(out, `"message":"member joined"`) {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestInitLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Msg("suppressed")
	Warn().Msg("emitted")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "emitted") {
		t.Error("warn message should pass at warn level")
	}
}

func TestRedactToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"empty", "", ""},
		{"short", "abc", "[redacted]"},
		{"long", "eyJhbGciOiJIUzI1NiJ9.payload.sig", "eyJhbG...[redacted]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactToken(tt.token); got != tt.want {
				t.Errorf("RedactToken(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestSanitizeError(t *testing.T) {
	msg := "token is malformed: eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJzdWIiOiIxIn0.sig"
	got := SanitizeError(msg)
	if strings.Contains(got, "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9") {
		t.Errorf("compact JWS should be redacted, got %q", got)
	}
	if !strings.Contains(got, "token is malformed:") {
		t.Errorf("non-sensitive text should survive, got %q", got)
	}
}

func TestSlogAdapterWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	slogger := slog.New(NewSlogHandler())
	slogger.Info("service started", "service", "hub")

	out := buf.String()
	if !strings.Contains(out, `"service":"hub"`) {
		t.Errorf("expected slog attr in zerolog output, got %q", out)
	}
	if !strings.Contains(out, "service started") {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestNewTestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewTestLogger(&buf)
	l.Info().Msg("captured")
	if !strings.Contains(buf.String(), "captured") {
		t.Error("test logger should write to the provided buffer")
	}
}
