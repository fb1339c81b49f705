// Package circuitbreaker centralizes the gobreaker.Settings and the
// open-state-to-ExternalServiceError translation shared by every
// external oracle client (pkg/digest's ITC client, pkg/smartgcal's
// lookup client): repeated failures against Gaia-style external
// services should trip the breaker and fail fast rather than pile up
// slow timeouts against a downed dependency (spec.md §1, "abstract
// external oracles").
package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker"

	apperrors "github.com/obsdb/odb/internal/errors"
)

// DefaultSettings builds the gobreaker.Settings every oracle wrapper in
// this repository uses: five consecutive failures trip the breaker, a
// single probe request is allowed through during the half-open window.
func DefaultSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

// Breaker wraps *gobreaker.CircuitBreaker with a typed Execute that
// translates the breaker's own open/too-many-requests sentinels into
// the domain's ExternalServiceError taxonomy (spec.md §7), so callers
// never need to know gobreaker's error values.
type Breaker struct {
	service string
	cb      *gobreaker.CircuitBreaker
}

// New builds a Breaker named for service (used both as the gobreaker
// name for metrics/logs and as the ExternalServiceError service label).
func New(service string) *Breaker {
	return &Breaker{service: service, cb: gobreaker.NewCircuitBreaker(DefaultSettings(service))}
}

// Execute runs fn through the breaker, wrapping any failure — whether
// fn's own error or the breaker tripping — as an ExternalServiceError
// for service.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return zero, apperrors.ExternalServiceError(b.service, err.Error())
		}
		return zero, apperrors.Wrap(err, apperrors.ErrorTypeExternalService, b.service+" call failed")
	}
	return result.(T), nil
}
