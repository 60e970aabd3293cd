// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package gateway

import (
	"fmt"

	"github.com/mfeltz/relaygate/internal/logging"
	"github.com/mfeltz/relaygate/internal/metrics"
	"github.com/mfeltz/relaygate/internal/models"
)

// Wire error codes. Expected faults keep the connection open; internal faults
// and rate-limit denials schedule a disconnect after a short grace.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeRateLimit  = "RATE_LIMIT_EXCEEDED"
	CodeForbidden  = "FORBIDDEN"
	CodeInternal   = "INTERNAL_ERROR"
)

// Fault is an error with a wire code and a disconnect policy. Handlers return
// plain errors; anything that is not a *Fault is treated as internal.
type Fault struct {
	Code       string
	Message    string
	Disconnect bool
	cause      error
}

func (f *Fault) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Code, f.Message, f.cause)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

func (f *Fault) Unwrap() error {
	return f.cause
}

// Validationf builds an expected validation fault. No disconnect.
func Validationf(format string, args ...interface{}) *Fault {
	return &Fault{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Forbiddenf builds an expected authorization fault. No disconnect.
func Forbiddenf(format string, args ...interface{}) *Fault {
	return &Fault{Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

// internalFault wraps an unexpected error. The cause is kept for logs; the
// wire message is decided at translation time based on environment.
func internalFault(err error) *Fault {
	return &Fault{Code: CodeInternal, Message: "internal error", Disconnect: true, cause: err}
}

// faultBoundary translates handler errors into wire envelopes. It is the only
// place on the event path where errors become peer-visible.
type faultBoundary struct {
	development bool
}

// fail translates err, pushes the envelope, and applies the disconnect policy.
func (b *faultBoundary) fail(c *Client, event string, err error) {
	fault, ok := err.(*Fault)
	if !ok {
		fault = internalFault(err)
	}

	message := fault.Message
	if fault.Code == CodeInternal {
		if b.development && fault.cause != nil {
			message = fault.cause.Error()
		} else {
			message = "internal error"
		}
		logging.Error().Err(fault.cause).
			Str("event", event).
			Str("subject_id", c.principal.SubjectID).
			Msg("internal fault on event path")
	}

	metrics.FaultsTotal.WithLabelValues(fault.Code).Inc()

	env := models.NewErrorEnvelope(fault.Code, message)
	c.TrySend(models.Push{Event: models.EventError, Data: env})

	if fault.Disconnect {
		c.CloseAfter(disconnectGrace)
	}
}
