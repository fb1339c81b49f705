package digest

import (
	"context"

	"github.com/obsdb/odb/pkg/sequence"
)

// ResolveConfig resolves an observation's generator params and ITC
// result the same way Digest does, then returns the raw, unmaterialized
// ProtoExecutionConfig instead of folding it into planned time. This is
// the primitive behind Query.observation.execution.config(futureLimit)
// (spec.md §6): the caller slices the returned streams with Stream.Take
// or Stream.At rather than ever seeing the whole (conceptually
// unbounded) sequence.
func (d *Digester) ResolveConfig(ctx context.Context, observationID string) (sequence.ProtoExecutionConfig, error) {
	params, err := d.Resolver.ResolveParams(ctx, observationID)
	if err != nil {
		return sequence.ProtoExecutionConfig{}, err
	}
	itc, err := d.resolveItc(ctx, observationID, params)
	if err != nil {
		return sequence.ProtoExecutionConfig{}, err
	}
	params.Integration = itc.IntegrationTime()
	return sequence.Generate(params)
}

// ExpandAtom resolves atom's SmartGcal placeholders into concrete Gcal
// steps, exporting the Digester's internal expansion step for use
// against atoms fetched directly from a Stream (e.g. config's
// possibleFuture entries) rather than ones folded into a digest.
func (d *Digester) ExpandAtom(ctx context.Context, static sequence.StaticConfig, atom sequence.ProtoAtom) (sequence.ProtoAtom, error) {
	return d.expand(ctx, static, atom)
}
