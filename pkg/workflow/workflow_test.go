package workflow_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/obsdb/odb/pkg/workflow"
)

func ready() *workflow.UserState {
	s := workflow.UserReady
	return &s
}

func inactive() *workflow.UserState {
	s := workflow.UserInactive
	return &s
}

var _ = Describe("ValidationStateFor", func() {
	It("is Defined for an empty error set", func() {
		Expect(workflow.ValidationStateFor(nil)).To(Equal(workflow.WorkflowDefined))
	})

	It("takes the minimum-ranked code, not insertion order", func() {
		errs := []workflow.ValidationErrorCode{workflow.ErrCfRPending, workflow.ErrITC, workflow.ErrCfRDenied}
		Expect(workflow.ValidationStateFor(errs)).To(Equal(workflow.WorkflowUndefined))
	})

	DescribeTable("buckets each code correctly",
		func(code workflow.ValidationErrorCode, want workflow.WorkflowState) {
			Expect(workflow.ValidationStateFor([]workflow.ValidationErrorCode{code})).To(Equal(want))
		},
		Entry("CfP is Undefined", workflow.ErrCfP, workflow.WorkflowUndefined),
		Entry("Configuration is Undefined", workflow.ErrConfiguration, workflow.WorkflowUndefined),
		Entry("ITC is Undefined", workflow.ErrITC, workflow.WorkflowUndefined),
		Entry("CfR unavailable is Unapproved", workflow.ErrCfRUnavailable, workflow.WorkflowUnapproved),
		Entry("CfR not requested is Unapproved", workflow.ErrCfRNotRequested, workflow.WorkflowUnapproved),
		Entry("CfR denied is Unapproved", workflow.ErrCfRDenied, workflow.WorkflowUnapproved),
		Entry("CfR pending is Unapproved", workflow.ErrCfRPending, workflow.WorkflowUnapproved),
	)
})

var _ = Describe("DeriveUserState", func() {
	It("returns the explicit override when present", func() {
		Expect(workflow.DeriveUserState(inactive(), true)).To(Equal(inactive()))
	})

	It("defaults calibration observations to Ready absent an override", func() {
		Expect(*workflow.DeriveUserState(nil, true)).To(Equal(workflow.UserReady))
	})

	It("leaves non-calibration observations without an override as nil", func() {
		Expect(workflow.DeriveUserState(nil, false)).To(BeNil())
	})
})

var _ = Describe("Resolve", func() {
	It("is Completed whenever execution is Completed, regardless of everything else", func() {
		in := workflow.Input{
			ExecutionState:   workflow.ExecutionCompleted,
			UserState:        inactive(),
			ValidationErrors: []workflow.ValidationErrorCode{workflow.ErrCfP},
		}
		Expect(workflow.Resolve(in)).To(Equal(workflow.WorkflowCompleted))
	})

	It("is Inactive when the user override is Inactive and execution is not Completed", func() {
		in := workflow.Input{ExecutionState: workflow.ExecutionOngoing, UserState: inactive()}
		Expect(workflow.Resolve(in)).To(Equal(workflow.WorkflowInactive))
	})

	It("is Ongoing when execution is Ongoing and the user has not overridden to Inactive", func() {
		in := workflow.Input{ExecutionState: workflow.ExecutionOngoing}
		Expect(workflow.Resolve(in)).To(Equal(workflow.WorkflowOngoing))
	})

	It("is Ready when the user override is Ready and execution has not started", func() {
		in := workflow.Input{ExecutionState: workflow.ExecutionNone, UserState: ready()}
		Expect(workflow.Resolve(in)).To(Equal(workflow.WorkflowReady))
	})

	It("falls back to the validation state absent any override or execution activity", func() {
		in := workflow.Input{ExecutionState: workflow.ExecutionNone}
		Expect(workflow.Resolve(in)).To(Equal(workflow.WorkflowDefined))
	})
})

var _ = Describe("AllowedTransitions", func() {
	It("returns nil for calibration observations regardless of state", func() {
		in := workflow.Input{IsCalibration: true}
		Expect(workflow.AllowedTransitions(workflow.WorkflowDefined, in)).To(BeNil())
		Expect(workflow.AllowedTransitions(workflow.WorkflowReady, in)).To(BeNil())
	})

	It("has no outgoing transitions from Completed (testable property 7)", func() {
		Expect(workflow.AllowedTransitions(workflow.WorkflowCompleted, workflow.Input{})).To(BeEmpty())
	})

	It("never lists the current state among its own targets", func() {
		states := []workflow.WorkflowState{
			workflow.WorkflowUndefined, workflow.WorkflowUnapproved, workflow.WorkflowDefined,
			workflow.WorkflowReady, workflow.WorkflowInactive, workflow.WorkflowOngoing, workflow.WorkflowCompleted,
		}
		in := workflow.Input{ProposalAccepted: true}
		for _, s := range states {
			for _, target := range workflow.AllowedTransitions(s, in) {
				Expect(target).ToNot(Equal(s), "state %s must not transition to itself", s)
			}
		}
	})

	It("offers Ready from Defined only when the proposal has been accepted", func() {
		Expect(workflow.AllowedTransitions(workflow.WorkflowDefined, workflow.Input{ProposalAccepted: false})).
			To(ConsistOf(workflow.WorkflowInactive))
		Expect(workflow.AllowedTransitions(workflow.WorkflowDefined, workflow.Input{ProposalAccepted: true})).
			To(ConsistOf(workflow.WorkflowInactive, workflow.WorkflowReady))
	})

	It("returns Inactive from Undefined, Unapproved, and Ongoing", func() {
		Expect(workflow.AllowedTransitions(workflow.WorkflowUndefined, workflow.Input{})).To(ConsistOf(workflow.WorkflowInactive))
		Expect(workflow.AllowedTransitions(workflow.WorkflowUnapproved, workflow.Input{})).To(ConsistOf(workflow.WorkflowInactive))
		Expect(workflow.AllowedTransitions(workflow.WorkflowOngoing, workflow.Input{})).To(ConsistOf(workflow.WorkflowInactive))
	})

	It("returns the observation's current natural state from Inactive", func() {
		in := workflow.Input{ExecutionState: workflow.ExecutionOngoing}
		Expect(workflow.AllowedTransitions(workflow.WorkflowInactive, in)).To(ConsistOf(workflow.WorkflowOngoing))
	})

	It("offers Inactive plus the current validation state from Ready", func() {
		in := workflow.Input{ValidationErrors: []workflow.ValidationErrorCode{workflow.ErrCfRPending}}
		Expect(workflow.AllowedTransitions(workflow.WorkflowReady, in)).
			To(ConsistOf(workflow.WorkflowInactive, workflow.WorkflowUnapproved))
	})
})
