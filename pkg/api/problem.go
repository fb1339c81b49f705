package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-logr/logr"

	apperrors "github.com/obsdb/odb/internal/errors"
)

// problem is an RFC 7807-flavored error body, the same "type"/"detail"
// shape the teacher's datastorage handlers write on failure (see
// test/unit/datastorage/workflow_lifecycle_handler_test.go's
// problem["type"]/problem["detail"] assertions).
type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// writeProblem renders err as a problem+json body, deriving the HTTP
// status from its ErrorType (spec.md §7's propagation policy) and
// logging every 5xx at Error level, every 4xx at V(1).
func writeProblem(w http.ResponseWriter, logger logr.Logger, err error) {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.ErrorTypeInternal, "unexpected error")
	}

	if appErr.StatusCode >= 500 {
		logger.Error(err, "request failed", "type", appErr.Type)
	} else {
		logger.V(1).Info("request rejected", "type", appErr.Type, "detail", appErr.Details)
	}

	body := problem{
		Type:   string(appErr.Type),
		Title:  appErr.Message,
		Detail: appErr.Details,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(appErr.StatusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// writeJSON renders v as a 200 application/json body.
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

// writeCreated renders v as a 201 application/json body.
func writeCreated(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeValidation, "malformed request body")
	}
	return nil
}
