package errors

import (
	"errors"
	"net/http"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestErrors(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Errors Suite")
}

var _ = Describe("AppError", func() {
	Context("basic error creation", func() {
		It("should create error with correct properties", func() {
			err := New(ErrorTypeValidation, "test message")

			Expect(err.Type).To(Equal(ErrorTypeValidation))
			Expect(err.Message).To(Equal("test message"))
			Expect(err.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(err.Details).To(BeEmpty())
			Expect(err.Cause).To(BeNil())
		})

		It("should implement the error interface", func() {
			err := New(ErrorTypeValidation, "test message")
			Expect(err.Error()).To(Equal("validation: test message"))
		})

		It("should include details in the error string when present", func() {
			err := New(ErrorTypeValidation, "test message").WithDetails("extra info")
			Expect(err.Error()).To(Equal("validation: test message (extra info)"))
		})
	})

	Context("error wrapping", func() {
		It("should wrap an underlying error", func() {
			originalErr := errors.New("original error")
			wrapped := Wrap(originalErr, ErrorTypeDatabase, "operation failed")

			Expect(wrapped.Type).To(Equal(ErrorTypeDatabase))
			Expect(wrapped.Cause).To(Equal(originalErr))
			Expect(wrapped.Unwrap()).To(Equal(originalErr))
		})

		It("should format wrapped errors with arguments", func() {
			originalErr := errors.New("connection refused")
			wrapped := Wrapf(originalErr, ErrorTypeNetwork, "failed to connect to %s:%d", "localhost", 5432)
			Expect(wrapped.Message).To(Equal("failed to connect to localhost:5432"))
		})
	})

	Describe("HTTP status code mapping", func() {
		DescribeTable("maps each ErrorType to the expected status code",
			func(t ErrorType, expected int) {
				Expect(New(t, "x").StatusCode).To(Equal(expected))
			},
			Entry("validation", ErrorTypeValidation, http.StatusBadRequest),
			Entry("auth", ErrorTypeAuth, http.StatusUnauthorized),
			Entry("not found", ErrorTypeNotFound, http.StatusNotFound),
			Entry("conflict", ErrorTypeConflict, http.StatusConflict),
			Entry("timeout", ErrorTypeTimeout, http.StatusRequestTimeout),
			Entry("rate limit", ErrorTypeRateLimit, http.StatusTooManyRequests),
			Entry("database", ErrorTypeDatabase, http.StatusInternalServerError),
			Entry("not authorized", ErrorTypeNotAuthorized, http.StatusUnauthorized),
			Entry("invalid data", ErrorTypeInvalidData, http.StatusUnprocessableEntity),
			Entry("invalid argument", ErrorTypeInvalidArgument, http.StatusBadRequest),
			Entry("duplicate resource", ErrorTypeDuplicateResource, http.StatusConflict),
			Entry("invalid workflow transition", ErrorTypeInvalidWorkflowTransition, http.StatusConflict),
			Entry("external service", ErrorTypeExternalService, http.StatusBadGateway),
			Entry("sequence too long", ErrorTypeSequenceTooLong, http.StatusUnprocessableEntity),
		)
	})

	Describe("domain constructors", func() {
		It("builds a NotFound error carrying the id as details", func() {
			err := NotFound("Observation", "o-1")
			Expect(err.Type).To(Equal(ErrorTypeNotFound))
			Expect(err.Error()).To(ContainSubstring("o-1"))
		})

		It("builds an InvalidWorkflowTransition error naming both states", func() {
			err := InvalidWorkflowTransition("Completed", "Ongoing")
			Expect(err.Error()).To(ContainSubstring("Completed"))
			Expect(err.Error()).To(ContainSubstring("Ongoing"))
		})
	})

	Describe("IsType / GetType", func() {
		It("identifies the type of an AppError", func() {
			validationErr := New(ErrorTypeValidation, "x")
			authErr := New(ErrorTypeAuth, "y")

			Expect(IsType(validationErr, ErrorTypeValidation)).To(BeTrue())
			Expect(IsType(validationErr, ErrorTypeAuth)).To(BeFalse())
			Expect(IsType(authErr, ErrorTypeAuth)).To(BeTrue())
		})

		It("reports ErrorTypeInternal for non-AppError values", func() {
			regularErr := errors.New("plain error")
			Expect(IsType(regularErr, ErrorTypeValidation)).To(BeFalse())
			Expect(GetType(regularErr)).To(Equal(ErrorTypeInternal))
		})
	})
})
