// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package validation

import (
	"strings"
	"testing"
)

func TestValidRoomName(t *testing.T) {
	tests := []struct {
		name string
		room string
		want bool
	}{
		{"simple", "general", true},
		{"with hyphen", "ops-oncall", true},
		{"with underscore", "team_42", true},
		{"single char", "a", true},
		{"max length", strings.Repeat("a", 50), true},
		{"too long", strings.Repeat("a", 51), false},
		{"empty", "", false},
		{"spaces", "ops room", false},
		{"slash", "ops/room", false},
		{"unicode", "каналы", false},
		{"dot", "ops.room", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidRoomName(tt.room); got != tt.want {
				t.Errorf("ValidRoomName(%q) = %v, want %v", tt.room, got, tt.want)
			}
		})
	}
}

func TestValidateStructRoomname(t *testing.T) {
	type payload struct {
		Room string `validate:"required,roomname"`
	}

	if verr := ValidateStruct(&payload{Room: "general"}); verr != nil {
		t.Fatalf("valid room rejected: %v", verr)
	}

	verr := ValidateStruct(&payload{Room: "bad room!"})
	if verr == nil {
		t.Fatal("invalid room accepted")
	}
	if len(verr.Errors()) != 1 {
		t.Fatalf("expected 1 field error, got %d", len(verr.Errors()))
	}
	if verr.Errors()[0].Tag() != "roomname" {
		t.Errorf("expected roomname tag, got %q", verr.Errors()[0].Tag())
	}
}

func TestValidateStructBodyBounds(t *testing.T) {
	type payload struct {
		Body string `validate:"required,min=1,max=1000"`
	}

	if verr := ValidateStruct(&payload{Body: "hello"}); verr != nil {
		t.Fatalf("valid body rejected: %v", verr)
	}
	if verr := ValidateStruct(&payload{Body: strings.Repeat("x", 1000)}); verr != nil {
		t.Fatalf("1000-char body rejected: %v", verr)
	}
	if verr := ValidateStruct(&payload{Body: strings.Repeat("x", 1001)}); verr == nil {
		t.Fatal("1001-char body accepted")
	}
	if verr := ValidateStruct(&payload{Body: ""}); verr == nil {
		t.Fatal("empty body accepted")
	}
}

func TestPayloadErrorMessage(t *testing.T) {
	type payload struct {
		Room string `validate:"required,roomname"`
		Body string `validate:"required,max=10"`
	}

	verr := ValidateStruct(&payload{Room: "", Body: strings.Repeat("x", 11)})
	if verr == nil {
		t.Fatal("expected validation failure")
	}
	msg := verr.Message()
	if !strings.Contains(msg, "Room") || !strings.Contains(msg, "Body") {
		t.Errorf("combined message should name both fields, got %q", msg)
	}
}
