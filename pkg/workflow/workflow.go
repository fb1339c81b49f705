// Package workflow implements the WorkflowResolver of spec.md §4.I: it
// combines validation results, execution state, and a user override
// into the observation's current workflow state and its legal next
// transitions.
package workflow

// WorkflowState is the state an observation's workflow can be in
// (spec.md §4.I). Undefined, Unapproved, and Defined are also the three
// buckets ValidationStateFor reduces a validation error list to; they
// are members of this single enum rather than a separate type because
// the spec's transition table treats them uniformly with Ready,
// Inactive, Ongoing, and Completed.
type WorkflowState string

const (
	WorkflowUndefined  WorkflowState = "UNDEFINED"
	WorkflowUnapproved WorkflowState = "UNAPPROVED"
	WorkflowDefined    WorkflowState = "DEFINED"
	WorkflowReady      WorkflowState = "READY"
	WorkflowInactive   WorkflowState = "INACTIVE"
	WorkflowOngoing    WorkflowState = "ONGOING"
	WorkflowCompleted  WorkflowState = "COMPLETED"
)

// ExecutionState is the observation's execution status as derived from
// the recorder's event history (spec.md §4.I).
type ExecutionState string

const (
	ExecutionNone      ExecutionState = "NONE"
	ExecutionOngoing   ExecutionState = "ONGOING"
	ExecutionCompleted ExecutionState = "COMPLETED"
)

// UserState is the observer-settable workflow override (spec.md §4.I).
type UserState string

const (
	UserInactive UserState = "INACTIVE"
	UserReady    UserState = "READY"
)

// ValidationErrorCode enumerates the validation failures WorkflowResolver
// considers, in the declared severity ordering of spec.md §4.I ("CfP <
// Configuration < ITC < CfR-unavailable < CfR-not-requested <
// CfR-denied < CfR-pending").
type ValidationErrorCode string

const (
	ErrCfP              ValidationErrorCode = "CFP"
	ErrConfiguration    ValidationErrorCode = "CONFIGURATION"
	ErrITC              ValidationErrorCode = "ITC"
	ErrCfRUnavailable   ValidationErrorCode = "CFR_UNAVAILABLE"
	ErrCfRNotRequested  ValidationErrorCode = "CFR_NOT_REQUESTED"
	ErrCfRDenied        ValidationErrorCode = "CFR_DENIED"
	ErrCfRPending       ValidationErrorCode = "CFR_PENDING"
)

// validationRank is the total order spec.md §4.I declares; lower ranks
// are more severe and win when taking the "min" over a set of codes.
var validationRank = map[ValidationErrorCode]int{
	ErrCfP:             0,
	ErrConfiguration:   1,
	ErrITC:             2,
	ErrCfRUnavailable:  3,
	ErrCfRNotRequested: 4,
	ErrCfRDenied:       5,
	ErrCfRPending:      6,
}

// validationBucket maps each error code to the WorkflowState bucket it
// falls into once selected as the minimum: a missing configuration or
// ITC result leaves the observation Undefined (incomplete), while every
// CfR-related code means the observation's data is complete but not yet
// approved (Unapproved).
func validationBucket(code ValidationErrorCode) WorkflowState {
	switch code {
	case ErrCfP, ErrConfiguration, ErrITC:
		return WorkflowUndefined
	default:
		return WorkflowUnapproved
	}
}

// ValidationStateFor reduces a set of current validation error codes to
// one of {Undefined, Unapproved, Defined} by taking the minimum-ranked
// code and mapping it to its bucket; an empty set is Defined (spec.md
// §4.I).
func ValidationStateFor(errs []ValidationErrorCode) WorkflowState {
	if len(errs) == 0 {
		return WorkflowDefined
	}
	min := errs[0]
	for _, e := range errs[1:] {
		if validationRank[e] < validationRank[min] {
			min = e
		}
	}
	return validationBucket(min)
}

// DeriveUserState resolves the effective UserState for an observation:
// an explicit override wins; calibration observations default to Ready
// in its absence (spec.md §4.I, "Ready auto-set for calibrations");
// otherwise there is no override and nil is returned.
func DeriveUserState(override *UserState, isCalibration bool) *UserState {
	if override != nil {
		return override
	}
	if isCalibration {
		ready := UserReady
		return &ready
	}
	return nil
}

// Input bundles everything Resolve and AllowedTransitions need for one
// observation (spec.md §4.I, "Inputs per observation").
type Input struct {
	ValidationErrors []ValidationErrorCode
	ExecutionState   ExecutionState
	UserState        *UserState // see DeriveUserState
	IsCalibration    bool
	ProposalAccepted bool
}

// Resolve computes the observation's current workflow state (spec.md
// §4.I, "Final workflow state selection").
func Resolve(in Input) WorkflowState {
	if in.ExecutionState == ExecutionCompleted {
		return WorkflowCompleted
	}
	if in.UserState != nil && *in.UserState == UserInactive {
		return WorkflowInactive
	}
	if in.ExecutionState == ExecutionOngoing {
		return WorkflowOngoing
	}
	if in.UserState != nil && *in.UserState == UserReady {
		return WorkflowReady
	}
	return ValidationStateFor(in.ValidationErrors)
}

// naturalState is what Resolve would return for in if the UserState
// override were absent — the state Inactive itself overrides, and so
// the target an Inactive observation transitions back to.
func naturalState(in Input) WorkflowState {
	if in.ExecutionState == ExecutionCompleted {
		return WorkflowCompleted
	}
	if in.ExecutionState == ExecutionOngoing {
		return WorkflowOngoing
	}
	return ValidationStateFor(in.ValidationErrors)
}

// AllowedTransitions returns the legal next states from current for the
// observation described by in (spec.md §4.I transition table).
// Calibration observations expose no legal transitions at all.
func AllowedTransitions(current WorkflowState, in Input) []WorkflowState {
	if in.IsCalibration {
		return nil
	}
	switch current {
	case WorkflowInactive:
		return []WorkflowState{naturalState(in)}
	case WorkflowUndefined:
		return []WorkflowState{WorkflowInactive}
	case WorkflowUnapproved:
		return []WorkflowState{WorkflowInactive}
	case WorkflowDefined:
		allowed := []WorkflowState{WorkflowInactive}
		if in.ProposalAccepted {
			allowed = append(allowed, WorkflowReady)
		}
		return allowed
	case WorkflowReady:
		return []WorkflowState{WorkflowInactive, ValidationStateFor(in.ValidationErrors)}
	case WorkflowOngoing:
		return []WorkflowState{WorkflowInactive}
	case WorkflowCompleted:
		return nil
	default:
		return nil
	}
}
