// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

// Package validation provides struct validation using go-playground/validator
// v10 through a thread-safe singleton instance, plus the custom `roomname`
// validator used for room identifiers.
//
// Example:
//
//	type JoinRoomPayload struct {
//	    Room string `json:"room" validate:"required,roomname"`
//	}
//
//	if verr := validation.ValidateStruct(&payload); verr != nil {
//	    // verr.Message() is safe to put on the wire
//	}
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// roomNamePattern constrains room identifiers: alnum, underscore, hyphen,
// at most 50 characters. The pattern is observable wire behavior.
var roomNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

// ValidRoomName reports whether a room identifier is acceptable.
func ValidRoomName(room string) bool {
	return roomNamePattern.MatchString(room)
}

// FieldError is a single field validation failure.
type FieldError struct {
	field   string
	tag     string
	param   string
	message string
}

// Field returns the struct field name that failed validation.
func (e *FieldError) Field() string { return e.field }

// Tag returns the validation tag that failed.
func (e *FieldError) Tag() string { return e.tag }

// Error returns a human-readable message.
func (e *FieldError) Error() string { return e.message }

// PayloadError aggregates every field failure of one payload.
type PayloadError struct {
	errors []FieldError
}

// Errors returns the individual field errors.
func (pe *PayloadError) Errors() []FieldError { return pe.errors }

// Error implements the error interface.
func (pe *PayloadError) Error() string {
	return pe.Message()
}

// Message returns a combined message suitable for the wire.
func (pe *PayloadError) Message() string {
	if len(pe.errors) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(pe.errors))
	for i, err := range pe.errors {
		msgs[i] = err.message
	}
	return strings.Join(msgs, "; ")
}

// GetValidator returns the singleton validator, initialized once with the
// custom validators registered. Thread-safe.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Registration only fails for empty tags or nil funcs.
		_ = validate.RegisterValidation("roomname", func(fl validator.FieldLevel) bool {
			return ValidRoomName(fl.Field().String())
		})
	})
	return validate
}

// ValidateStruct validates a struct with the singleton validator.
// Returns nil on success or a *PayloadError describing every failed field.
func ValidateStruct(s interface{}) *PayloadError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &PayloadError{errors: []FieldError{{
			field:   "unknown",
			tag:     "unknown",
			message: err.Error(),
		}}}
	}

	out := make([]FieldError, len(fieldErrs))
	for i, fe := range fieldErrs {
		out[i] = FieldError{
			field:   fe.Field(),
			tag:     fe.Tag(),
			param:   fe.Param(),
			message: translateError(fe),
		}
	}
	return &PayloadError{errors: out}
}

// translateError converts a validator.FieldError to a wire-safe message.
func translateError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "roomname":
		return fmt.Sprintf("%s must be 1-50 characters of letters, digits, underscore or hyphen", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
