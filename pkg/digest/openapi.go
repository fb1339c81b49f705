package digest

import (
	"context"
	_ "embed"

	"github.com/getkin/kin-openapi/openapi3"

	apperrors "github.com/obsdb/odb/internal/errors"
)

// itcOpenAPISpec is the minimal OpenAPI description of the external
// Instrument Time Calculator's estimate endpoint (spec.md §1: "abstract
// external oracle"). It exists so the HTTP client can validate what the
// oracle actually sends back against a schema instead of trusting a
// hand-rolled struct tag, the same defense-in-depth kin-openapi buys
// the teacher's generated API clients.
//
//go:embed itc_openapi.yaml
var itcOpenAPISpec []byte

// itcResponseSchema loads and validates the embedded document once and
// returns the JSON schema the "/estimate" response body must satisfy.
func itcResponseSchema() (*openapi3.Schema, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(itcOpenAPISpec)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "parsing ITC OpenAPI document")
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "validating ITC OpenAPI document")
	}
	ref, ok := doc.Components.Schemas["ItcEstimateResponse"]
	if !ok || ref.Value == nil {
		return nil, apperrors.New(apperrors.ErrorTypeInternal, "ITC OpenAPI document is missing ItcEstimateResponse schema")
	}
	return ref.Value, nil
}
