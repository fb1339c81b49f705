package smartgcal

import (
	"bytes"
	"context"
	_ "embed"
	"io"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-faster/jx"

	apperrors "github.com/obsdb/odb/internal/errors"
	"github.com/obsdb/odb/pkg/odbtype"
	"github.com/obsdb/odb/pkg/ogenx"
	"github.com/obsdb/odb/pkg/shared/circuitbreaker"
)

//go:embed smartgcal_openapi.yaml
var openAPISpec []byte

// gcalResponseSchema loads the embedded lookup-table schema once per
// call; callers needing this on a hot path should cache the *Schema
// themselves (Smart-GCAL resolution runs once per atom expansion, not
// per request, so the repeated parse cost here is negligible).
func gcalResponseSchema() (*openapi3.Schema, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "parsing Smart-GCAL OpenAPI document")
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "validating Smart-GCAL OpenAPI document")
	}
	ref, ok := doc.Components.Schemas["GcalLookupResponse"]
	if !ok || ref.Value == nil {
		return nil, apperrors.New(apperrors.ErrorTypeInternal, "Smart-GCAL OpenAPI document is missing GcalLookupResponse schema")
	}
	return ref.Value, nil
}

// httpResponse adapts a raw HTTP status/body pair to ogenx.ToError's
// expected shape.
type httpResponse struct {
	status int32
}

func (r *httpResponse) GetStatus() int32 { return r.status }

// HTTPOracle is the real-deployment Oracle: it looks up a Key against
// an external Smart-GCAL lookup-table service over HTTP.
type HTTPOracle struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPOracle builds an HTTPOracle against baseURL.
func NewHTTPOracle(baseURL string, client *http.Client) *HTTPOracle {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPOracle{BaseURL: baseURL, Client: client}
}

func (o *HTTPOracle) Lookup(ctx context.Context, key Key) ([]GcalConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/smartgcal/"+key.String(), nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "building Smart-GCAL request")
	}

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, apperrors.ExternalServiceError("smartgcal", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, MissingDef(key)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := ogenx.ToError(&httpResponse{status: int32(resp.StatusCode)}, nil)
		return nil, apperrors.ExternalServiceError("smartgcal", httpErr.Error())
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeExternalService, "reading Smart-GCAL response")
	}

	cfgs, err := decodeGcalConfigs(raw)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeExternalService, "decoding Smart-GCAL response")
	}

	schema, err := gcalResponseSchema()
	if err != nil {
		return nil, err
	}
	steps := make([]interface{}, len(cfgs))
	for i, c := range cfgs {
		steps[i] = map[string]interface{}{
			"lamp":               c.Lamp,
			"filter":             c.Filter,
			"diffuser":           c.Diffuser,
			"shutter":            c.Shutter,
			"exposureTimeMicros": c.ExposureTime.Micros(),
		}
	}
	if err := schema.VisitJSON(map[string]interface{}{"steps": steps}); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeExternalService, "Smart-GCAL response failed schema validation")
	}

	return cfgs, nil
}

func decodeGcalConfigs(raw []byte) ([]GcalConfig, error) {
	d := jx.DecodeBytes(raw)
	var out []GcalConfig
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "steps" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var cfg GcalConfig
			var micros int64
			if err := d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "lamp":
					cfg.Lamp, err = d.Str()
				case "filter":
					cfg.Filter, err = d.Str()
				case "diffuser":
					cfg.Diffuser, err = d.Str()
				case "shutter":
					cfg.Shutter, err = d.Str()
				case "exposureTimeMicros":
					micros, err = d.Int64()
				default:
					err = d.Skip()
				}
				return err
			}); err != nil {
				return err
			}
			cfg.ExposureTime = odbtype.SpanFromMicros(micros)
			out = append(out, cfg)
			return nil
		})
	})
	return out, err
}

// NewCircuitBreakingOracle wraps an Oracle with a gobreaker circuit
// breaker, mirroring pkg/digest's CircuitBreakingOracle: repeated
// Smart-GCAL lookup failures should fail fast rather than stall atom
// expansion on a downed lookup service.
func NewCircuitBreakingOracle(name string, oracle Oracle) *CircuitBreakingOracle {
	return &CircuitBreakingOracle{oracle: oracle, breaker: circuitbreaker.New(name)}
}

// CircuitBreakingOracle is an Oracle that fails fast once its wrapped
// oracle has tripped the breaker.
type CircuitBreakingOracle struct {
	oracle  Oracle
	breaker *circuitbreaker.Breaker
}

func (o *CircuitBreakingOracle) Lookup(ctx context.Context, key Key) ([]GcalConfig, error) {
	return circuitbreaker.Execute(o.breaker, func() ([]GcalConfig, error) {
		return o.oracle.Lookup(ctx, key)
	})
}
