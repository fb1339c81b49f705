// Package ogenx adapts ogen-go/ogen generated client responses to the
// ODB error taxonomy (internal/errors). ogen clients return a typed
// response union per operation rather than a (status, body) pair;
// ToError inspects that union once so every external-oracle client
// (pkg/digest's ITC client, pkg/smartgcal's HTTP oracle) converts
// failures the same way instead of re-deriving status handling per
// call site.
package ogenx

import (
	"fmt"

	faster "github.com/go-faster/errors"
)

// statusGetter is satisfied by every ogen-generated error response type
// that embeds a "status" field (the common shape for RFC 7807-style
// problem responses).
type statusGetter interface {
	GetStatus() int32
}

// detailGetter and messageGetter are satisfied by response types that
// carry a human-readable explanation under different field names,
// depending on which of the generated schemas the operation responds
// with.
type detailGetter interface {
	GetDetail() interface {
		IsSet() bool
		GetValue() string
	}
}

type titleGetter interface {
	GetTitle() string
}

type messageGetter interface {
	GetMessage() string
}

// HTTPError is the uniform shape ToError normalizes every failed ogen
// call into.
type HTTPError struct {
	StatusCode int
	Title      string
	Detail     string
	Message    string
	Response   interface{}
}

func (e *HTTPError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	case e.Detail != "":
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Detail)
	case e.Title != "":
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Title)
	default:
		return fmt.Sprintf("HTTP %d: (%T)", e.StatusCode, e.Response)
	}
}

// ToError converts an ogen operation's (response, err) pair into a
// single error: a transport-level err is returned wrapped as-is; a nil
// response (success with no body, or a 2xx) yields nil; a response
// carrying a non-2xx GetStatus() is normalized into an *HTTPError.
func ToError(resp interface{}, err error) error {
	if err != nil {
		return faster.Wrap(err, "ogen client call")
	}
	if resp == nil {
		return nil
	}
	sg, ok := resp.(statusGetter)
	if !ok {
		// No status accessor: treat as a successful typed response.
		return nil
	}
	status := int(sg.GetStatus())
	if status == 0 || (status >= 200 && status < 300) {
		return nil
	}

	httpErr := &HTTPError{StatusCode: status, Response: resp}
	if tg, ok := resp.(titleGetter); ok {
		httpErr.Title = tg.GetTitle()
	}
	if dg, ok := resp.(detailGetter); ok {
		if v := dg.GetDetail(); v != nil && v.IsSet() {
			httpErr.Detail = v.GetValue()
		}
	}
	if mg, ok := resp.(messageGetter); ok {
		httpErr.Message = mg.GetMessage()
	}
	return httpErr
}

// GetHTTPError unwraps err to its *HTTPError, if any.
func GetHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if faster.As(err, &httpErr) {
		return httpErr
	}
	return nil
}
