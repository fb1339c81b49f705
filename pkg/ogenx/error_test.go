package ogenx_test

import (
	"errors"
	"testing"

	"github.com/obsdb/odb/pkg/ogenx"
)

type optString struct {
	value string
	set   bool
}

func (o optString) IsSet() bool     { return o.set }
func (o optString) GetValue() string { return o.value }

type problemResponse struct {
	status int32
	title  string
	detail optString
}

func (p *problemResponse) GetStatus() int32 { return p.status }
func (p *problemResponse) GetTitle() string { return p.title }
func (p *problemResponse) GetDetail() interface {
	IsSet() bool
	GetValue() string
} {
	return p.detail
}

type messageResponse struct {
	status  int32
	message string
}

func (m *messageResponse) GetStatus() int32   { return m.status }
func (m *messageResponse) GetMessage() string { return m.message }

func TestToError_TransportFailure(t *testing.T) {
	err := ogenx.ToError(nil, errors.New("connection refused"))
	if err == nil {
		t.Fatal("expected a wrapped error")
	}
	if ogenx.GetHTTPError(err) != nil {
		t.Fatal("a transport failure should not be an *HTTPError")
	}
}

func TestToError_NilResponseNilErr(t *testing.T) {
	if err := ogenx.ToError(nil, nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestToError_SuccessStatus(t *testing.T) {
	resp := &messageResponse{status: 200}
	if err := ogenx.ToError(resp, nil); err != nil {
		t.Fatalf("expected nil for a 200 response, got %v", err)
	}
}

func TestToError_ProblemResponse(t *testing.T) {
	resp := &problemResponse{status: 400, title: "Invalid Argument", detail: optString{value: "futureLimit out of range", set: true}}

	err := ogenx.ToError(resp, nil)
	httpErr := ogenx.GetHTTPError(err)
	if httpErr == nil {
		t.Fatalf("expected *HTTPError, got %T", err)
	}
	if httpErr.StatusCode != 400 {
		t.Errorf("expected status 400, got %d", httpErr.StatusCode)
	}
	if httpErr.Title != "Invalid Argument" {
		t.Errorf("expected title to be preserved, got %q", httpErr.Title)
	}
	if httpErr.Detail != "futureLimit out of range" {
		t.Errorf("expected detail to be preserved, got %q", httpErr.Detail)
	}
}

func TestToError_ProblemResponseWithoutDetail(t *testing.T) {
	resp := &problemResponse{status: 422, title: "Unprocessable"}
	err := ogenx.ToError(resp, nil)
	httpErr := ogenx.GetHTTPError(err)
	if httpErr == nil {
		t.Fatalf("expected *HTTPError, got %T", err)
	}
	if httpErr.Detail != "" {
		t.Errorf("expected empty detail when unset, got %q", httpErr.Detail)
	}
}

func TestToError_MessageResponse(t *testing.T) {
	resp := &messageResponse{status: 503, message: "ITC backend unavailable"}
	err := ogenx.ToError(resp, nil)
	httpErr := ogenx.GetHTTPError(err)
	if httpErr == nil {
		t.Fatalf("expected *HTTPError, got %T", err)
	}
	if httpErr.Error() != "HTTP 503: ITC backend unavailable" {
		t.Errorf("unexpected error string: %q", httpErr.Error())
	}
}
