package digest

import (
	"context"
	"time"

	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/sequence"
	"github.com/obsdb/odb/pkg/shared/circuitbreaker"
)

// ItcResult is the Instrument Time Calculator's verdict on an
// observation: how many science exposures to take and how long each
// runs (spec.md §1, §4.C).
type ItcResult struct {
	ExposureTime  time.Duration
	ExposureCount int
}

// IntegrationTime converts the oracle's result into the generator's
// input shape.
func (r ItcResult) IntegrationTime() sequence.IntegrationTime {
	return sequence.IntegrationTime{
		ExposureTime:  odbtype.SpanFromDuration(r.ExposureTime),
		ExposureCount: r.ExposureCount,
	}
}

// ItcOracle calls the external Instrument Time Calculator (spec.md §1:
// "abstract external oracle").
type ItcOracle interface {
	Estimate(ctx context.Context, params sequence.GeneratorParams) (ItcResult, error)
}

// CircuitBreakingOracle wraps an ItcOracle with a gobreaker circuit
// breaker: repeated ITC failures trip the breaker and fail fast instead
// of piling up slow timeouts against a down service.
type CircuitBreakingOracle struct {
	oracle  ItcOracle
	breaker *circuitbreaker.Breaker
}

// NewCircuitBreakingOracle wraps oracle with a breaker named for logs
// and metrics.
func NewCircuitBreakingOracle(name string, oracle ItcOracle) *CircuitBreakingOracle {
	return &CircuitBreakingOracle{oracle: oracle, breaker: circuitbreaker.New(name)}
}

func (o *CircuitBreakingOracle) Estimate(ctx context.Context, params sequence.GeneratorParams) (ItcResult, error) {
	return circuitbreaker.Execute(o.breaker, func() (ItcResult, error) {
		return o.oracle.Estimate(ctx, params)
	})
}
