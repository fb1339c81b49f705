// Package authz evaluates the `NotAuthorized` check spec.md §4.F
// requires of recordEvent and the other mutation endpoints, against a
// Rego policy bundle via open-policy-agent/opa's rego package — the
// caller-authorization gate the recorder itself only models as a
// boolean precondition (pkg/recorder.Recorder.RecordEvent's
// `authorized` parameter).
package authz

import (
	"context"

	"github.com/open-policy-agent/opa/v1/rego"

	apperrors "github.com/obsdb/odb/internal/errors"
)

// defaultPolicy allows any caller holding the "observer" role to read,
// and only "operator" or "admin" roles to mutate (recordVisit,
// recordAtom, recordStep, recordDataset, every recordEvent kind, and
// addTimeChargeCorrection). It is the policy a fresh deployment starts
// from; operators are expected to supply their own bundle in
// production.
const defaultPolicy = `
package odb.authz

default allow = false

mutating_actions := {
	"recordVisit", "recordAtom", "recordStep", "recordDataset",
	"recordEvent", "addTimeChargeCorrection", "updateObservations",
	"cloneObservation", "createObservation",
}

allow if {
	not mutating_actions[input.action]
	input.roles[_] == "observer"
}

allow if {
	mutating_actions[input.action]
	input.roles[_] == "operator"
}

allow if {
	mutating_actions[input.action]
	input.roles[_] == "admin"
}
`

// Input is the decision request: the action being attempted and the
// caller's role claims (spec.md §4.F, "caller authorized").
type Input struct {
	Action string   `json:"action"`
	Roles  []string `json:"roles"`
}

// Authorizer evaluates Input against a compiled Rego policy.
type Authorizer struct {
	query rego.PreparedEvalQuery
}

// New compiles policy (Rego source implementing `data.odb.authz.allow`)
// into an Authorizer. An empty policy uses defaultPolicy.
func New(ctx context.Context, policy string) (*Authorizer, error) {
	if policy == "" {
		policy = defaultPolicy
	}
	prepared, err := rego.New(
		rego.Query("data.odb.authz.allow"),
		rego.Module("odb_authz.rego", policy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "compiling authz policy")
	}
	return &Authorizer{query: prepared}, nil
}

// Allow reports whether in is permitted by the compiled policy. A
// malformed policy evaluation (never a `false` allow decision, which is
// a legitimate "not authorized" outcome) surfaces as an internal error.
func (a *Authorizer) Allow(ctx context.Context, in Input) (bool, error) {
	results, err := a.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"action": in.Action,
		"roles":  in.Roles,
	}))
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "evaluating authz policy")
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := results[0].Expressions[0].Value.(bool)
	return ok && allowed, nil
}
