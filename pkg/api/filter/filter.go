// Package filter evaluates the `where` argument of
// Query.observations(where, limit) and Query.programs(where, limit)
// (spec.md §6) as a jq-style boolean predicate over the JSON projection
// of each candidate row, using itchyny/gojq — the filter language
// spec.md leaves abstract ("GraphQL-like query surface
// (transport-neutral)").
package filter

import (
	"github.com/itchyny/gojq"

	apperrors "github.com/obsdb/odb/internal/errors"
)

// Predicate is a compiled `where` expression ready to test candidate
// rows.
type Predicate struct {
	query *gojq.Query
	code  *gojq.Code
}

// Compile parses expr as a gojq program. An empty expr always matches
// (Query.observations/programs's where argument is optional).
func Compile(expr string) (*Predicate, error) {
	if expr == "" {
		return &Predicate{}, nil
	}
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, apperrors.InvalidArgument("invalid where expression: " + err.Error())
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, apperrors.InvalidArgument("invalid where expression: " + err.Error())
	}
	return &Predicate{query: query, code: code}, nil
}

// Match reports whether row — any JSON-marshalable projection of an
// Observation or Program — satisfies the predicate. A predicate
// compiled from an empty expression always matches. Following jq's own
// truthiness rules, any output other than `false` or `null` counts as
// a match, and the first output decides (additional outputs from a
// multi-valued expression are ignored).
func (p *Predicate) Match(row map[string]interface{}) (bool, error) {
	if p.code == nil {
		return true, nil
	}
	iter := p.code.Run(row)
	v, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if err, isErr := v.(error); isErr {
		return false, apperrors.Wrap(err, apperrors.ErrorTypeInvalidArgument, "evaluating where expression")
	}
	return truthy(v), nil
}

func truthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}
